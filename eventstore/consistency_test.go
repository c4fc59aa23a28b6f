package eventstore_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/eventfold/eventstore-go/eventstore"
)

func Test_GetConsistencyLevel_Defaults_To_Strong(t *testing.T) {
	// act
	level := eventstore.GetConsistencyLevel(context.Background())

	// assert
	assert.Equal(t, eventstore.StrongConsistency, level)
	assert.Equal(t, "strong", level.String())
}

func Test_GetConsistencyLevel_Reads_The_Level_From_The_Context(t *testing.T) {
	// setup
	ctx := eventstore.WithEventualConsistency(context.Background())

	// act
	level := eventstore.GetConsistencyLevel(ctx)

	// assert
	assert.Equal(t, eventstore.EventualConsistency, level)
	assert.Equal(t, "eventual", level.String())
}

func Test_WithStrongConsistency_Overrides_An_Eventual_Context(t *testing.T) {
	// setup
	ctx := eventstore.WithEventualConsistency(context.Background())

	// act
	ctx = eventstore.WithStrongConsistency(ctx)

	// assert
	assert.Equal(t, eventstore.StrongConsistency, eventstore.GetConsistencyLevel(ctx))
}
