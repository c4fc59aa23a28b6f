package eventstore_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eventfold/eventstore-go/eventstore"
)

func Test_ExpectedVersion_Matches(t *testing.T) {
	tests := []struct {
		expected eventstore.ExpectedVersion
		current  eventstore.EventVersion
		matches  bool
	}{
		{eventstore.AnyVersion(), eventstore.NoEventsVersion, true},
		{eventstore.AnyVersion(), 7, true},
		{eventstore.NoStream(), eventstore.NoEventsVersion, true},
		{eventstore.NoStream(), 0, false},
		{eventstore.StreamExists(), eventstore.NoEventsVersion, false},
		{eventstore.StreamExists(), 0, true},
		{eventstore.StreamExists(), 12, true},
		{eventstore.ExactVersion(3), 3, true},
		{eventstore.ExactVersion(3), 2, false},
		{eventstore.ExactVersion(3), 4, false},
		{eventstore.ExactVersion(0), eventstore.NoEventsVersion, false},
	}

	for _, tc := range tests {
		t.Run(fmt.Sprintf("%s against %d", tc.expected, tc.current), func(t *testing.T) {
			assert.Equal(t, tc.matches, tc.expected.Matches(tc.current))
		})
	}
}

func Test_ExpectedVersion_HasCheck(t *testing.T) {
	assert.False(t, eventstore.AnyVersion().HasCheck())
	assert.True(t, eventstore.NoStream().HasCheck())
	assert.True(t, eventstore.StreamExists().HasCheck())
	assert.True(t, eventstore.ExactVersion(0).HasCheck())
}

func Test_ExpectedVersion_String(t *testing.T) {
	assert.Equal(t, "AnyVersion", eventstore.AnyVersion().String())
	assert.Equal(t, "NoStream", eventstore.NoStream().String())
	assert.Equal(t, "StreamExists", eventstore.StreamExists().String())
	assert.Equal(t, "ExactVersion(5)", eventstore.ExactVersion(5).String())
}

func Test_ConcurrencyError_Carries_The_Actual_Version(t *testing.T) {
	// act
	err := eventstore.NewConcurrencyError(eventstore.ExactVersion(2), 5)

	// assert
	require.ErrorIs(t, err, eventstore.ErrConcurrencyConflict)

	var conflictErr *eventstore.ConcurrencyError
	require.True(t, errors.As(err, &conflictErr))
	assert.Equal(t, eventstore.EventVersion(5), conflictErr.ActualVersion)
	assert.Contains(t, err.Error(), "ExactVersion(2)")
	assert.Contains(t, err.Error(), "5")
}
