package eventstore_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eventfold/eventstore-go/eventstore"
	"github.com/eventfold/eventstore-go/eventstore/memoryengine"
)

func Test_Projection_Fold(t *testing.T) {
	// act
	balance := balanceProjection().Fold(0, 100, -30, 5)

	// assert
	assert.Equal(t, 75, balance)
}

func Test_GetLatestProjection_Folds_The_Whole_Stream(t *testing.T) {
	// arrange
	store := memoryengine.NewEventStore[int]()
	key := eventstore.NewStreamKey()

	require.NoError(t, store.Append(
		context.Background(), eventstore.NoStream(), key, []int{100, -30, 5}))

	// act
	latest, err := eventstore.GetLatestProjection(
		context.Background(), store.StreamReader(), eventstore.NewStreamProjection(key, balanceProjection()))

	// assert
	require.NoError(t, err)
	assert.Equal(t, 75, latest.State)
	assert.Equal(t, eventstore.EventVersion(2), latest.Version)
}

func Test_GetLatestProjection_Resumes_From_A_Prior_Projection(t *testing.T) {
	// arrange
	store := memoryengine.NewEventStore[int]()
	key := eventstore.NewStreamKey()

	require.NoError(t, store.Append(
		context.Background(), eventstore.NoStream(), key, []int{100, -30}))

	prior, err := eventstore.GetLatestProjection(
		context.Background(), store.StreamReader(), eventstore.NewStreamProjection(key, balanceProjection()))
	require.NoError(t, err)

	require.NoError(t, store.Append(
		context.Background(), eventstore.ExactVersion(1), key, []int{5}))

	// act: incremental reconciliation folds only the new events
	incremental, err := eventstore.GetLatestProjection(context.Background(), store.StreamReader(), prior)
	require.NoError(t, err)

	full, err := eventstore.GetLatestProjection(
		context.Background(), store.StreamReader(), eventstore.NewStreamProjection(key, balanceProjection()))
	require.NoError(t, err)

	// assert: incremental and full replay agree
	assert.Equal(t, full.State, incremental.State)
	assert.Equal(t, full.Version, incremental.Version)
	assert.Equal(t, 75, incremental.State)
}

func Test_GetLatestProjection_For_A_Stream_With_No_Events(t *testing.T) {
	// arrange
	store := memoryengine.NewEventStore[int]()
	key := eventstore.NewStreamKey()

	// act
	latest, err := eventstore.GetLatestProjection(
		context.Background(), store.StreamReader(), eventstore.NewStreamProjection(key, balanceProjection()))

	// assert: seed state, version untouched
	require.NoError(t, err)
	assert.Equal(t, 0, latest.State)
	assert.Equal(t, eventstore.NoEventsVersion, latest.Version)
}

func Test_GetLatestGlobalProjection_Folds_Across_Streams(t *testing.T) {
	// arrange
	store := memoryengine.NewEventStore[int]()
	firstStream := eventstore.NewStreamKey()
	secondStream := eventstore.NewStreamKey()

	require.NoError(t, store.Append(context.Background(), eventstore.NoStream(), firstStream, []int{100}))
	require.NoError(t, store.Append(context.Background(), eventstore.NoStream(), secondStream, []int{10}))
	require.NoError(t, store.Append(context.Background(), eventstore.ExactVersion(0), firstStream, []int{-30}))

	perStreamTotals := eventstore.Projection[map[string]int, eventstore.VersionedStreamEvent[int]]{
		Seed: map[string]int{},
		Step: func(totals map[string]int, event eventstore.VersionedStreamEvent[int]) map[string]int {
			next := make(map[string]int, len(totals)+1)
			for k, v := range totals {
				next[k] = v
			}
			next[event.Key.String()] += event.Event

			return next
		},
	}

	// act
	latest, err := eventstore.GetLatestGlobalProjection(
		context.Background(), store.GlobalReader(), eventstore.NewGlobalProjection(perStreamTotals))

	// assert
	require.NoError(t, err)
	assert.Equal(t, eventstore.SequenceNumber(3), latest.SequenceNumber)
	assert.Equal(t, 70, latest.State[firstStream.String()])
	assert.Equal(t, 10, latest.State[secondStream.String()])
}
