package memoryengine_test

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eventfold/eventstore-go/eventstore"
	"github.com/eventfold/eventstore-go/eventstore/memoryengine"
)

func Test_Append_And_Read_One_Stream(t *testing.T) {
	// arrange
	store := memoryengine.NewEventStore[string]()
	key := eventstore.NewStreamKey()

	// act
	appendErr := store.Append(context.Background(), eventstore.NoStream(), key, []string{"a", "b"})

	// assert
	require.NoError(t, appendErr)

	events, readErr := store.StreamReader().Read(context.Background(), eventstore.FromStart(key))
	require.NoError(t, readErr)
	require.Len(t, events, 2)
	assert.Equal(t, eventstore.EventVersion(0), events[0].Position)
	assert.Equal(t, "a", events[0].Event)
	assert.Equal(t, eventstore.EventVersion(1), events[1].Position)
	assert.Equal(t, "b", events[1].Event)
}

func Test_Append_Into_Concurrent_History(t *testing.T) {
	// The canonical optimistic-concurrency walk: create with NoStream,
	// conflict on a stale exact version, succeed on the fresh one.
	store := memoryengine.NewEventStore[string]()
	key := eventstore.NewStreamKey()

	// act + assert, step by step
	require.NoError(t,
		store.Append(context.Background(), eventstore.NoStream(), key, []string{"a", "b"}),
		"creating the stream with two events must succeed")

	version, err := store.CurrentVersion(context.Background(), key)
	require.NoError(t, err)
	require.Equal(t, eventstore.EventVersion(1), version)

	staleErr := store.Append(context.Background(), eventstore.ExactVersion(0), key, []string{"c"})
	require.ErrorIs(t, staleErr, eventstore.ErrConcurrencyConflict)

	var conflictErr *eventstore.ConcurrencyError
	require.ErrorAs(t, staleErr, &conflictErr)
	assert.Equal(t, eventstore.EventVersion(1), conflictErr.ActualVersion)

	version, err = store.CurrentVersion(context.Background(), key)
	require.NoError(t, err)
	require.Equal(t, eventstore.EventVersion(1), version, "a failed append must write nothing")

	require.NoError(t,
		store.Append(context.Background(), eventstore.ExactVersion(1), key, []string{"c"}),
		"appending at the fresh version must succeed")

	version, err = store.CurrentVersion(context.Background(), key)
	require.NoError(t, err)
	assert.Equal(t, eventstore.EventVersion(2), version)
}

func Test_Append_Is_Atomic_Per_Batch(t *testing.T) {
	// arrange
	store := memoryengine.NewEventStore[string]()
	key := eventstore.NewStreamKey()

	require.NoError(t, store.Append(context.Background(), eventstore.NoStream(), key, []string{"a"}))

	// act: the whole batch fails the precondition
	err := store.Append(context.Background(), eventstore.NoStream(), key, []string{"b", "c", "d"})

	// assert: none of the batch is visible
	require.ErrorIs(t, err, eventstore.ErrConcurrencyConflict)

	events, readErr := store.StreamReader().Read(context.Background(), eventstore.FromStart(key))
	require.NoError(t, readErr)
	assert.Len(t, events, 1)
}

func Test_Append_When_There_Are_No_Events(t *testing.T) {
	store := memoryengine.NewEventStore[string]()

	err := store.Append(context.Background(), eventstore.AnyVersion(), eventstore.NewStreamKey(), nil)

	assert.ErrorIs(t, err, eventstore.ErrNoEventsToAppend)
}

func Test_GlobalReader_Interleaves_Streams_In_Append_Order(t *testing.T) {
	// arrange
	store := memoryengine.NewEventStore[string]()
	firstStream := eventstore.NewStreamKey()
	secondStream := eventstore.NewStreamKey()

	require.NoError(t, store.Append(context.Background(), eventstore.NoStream(), firstStream, []string{"a1"}))
	require.NoError(t, store.Append(context.Background(), eventstore.NoStream(), secondStream, []string{"b1"}))
	require.NoError(t, store.Append(context.Background(), eventstore.ExactVersion(0), firstStream, []string{"a2"}))

	// act
	events, err := store.GlobalReader().Read(context.Background(), eventstore.FromGlobalStart())

	// assert: sequence numbers are contiguous from 1 and both orderings are
	// carried on every record
	require.NoError(t, err)
	require.Len(t, events, 3)

	for i, event := range events {
		assert.Equal(t, eventstore.SequenceNumber(i+1), event.SequenceNumber)
	}

	assert.Equal(t, "a1", events[0].Event)
	assert.Equal(t, firstStream, events[0].StreamKey)
	assert.Equal(t, "b1", events[1].Event)
	assert.Equal(t, secondStream, events[1].StreamKey)
	assert.Equal(t, "a2", events[2].Event)
	assert.Equal(t, eventstore.EventVersion(1), events[2].StreamVersion)
}

func Test_RangeQuery_After_Is_Exclusive(t *testing.T) {
	// arrange
	store := memoryengine.NewEventStore[string]()
	key := eventstore.NewStreamKey()

	require.NoError(t, store.Append(context.Background(), eventstore.NoStream(), key, []string{"a", "b", "c"}))

	// act
	events, err := store.StreamReader().Read(context.Background(),
		eventstore.RangeQuery[uuid.UUID, eventstore.EventVersion]{Key: key, After: 0})

	// assert: version 0 itself is excluded
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, eventstore.EventVersion(1), events[0].Position)
}

func Test_RangeQuery_Limit_Caps_The_Result(t *testing.T) {
	// arrange
	store := memoryengine.NewEventStore[string]()
	key := eventstore.NewStreamKey()

	require.NoError(t, store.Append(context.Background(), eventstore.NoStream(), key, []string{"a", "b", "c"}))

	// act
	query := eventstore.FromStart(key)
	query.Limit = 2
	events, err := store.StreamReader().Read(context.Background(), query)

	// assert
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, eventstore.EventVersion(0), events[0].Position)
	assert.Equal(t, eventstore.EventVersion(1), events[1].Position)
}

func Test_Reading_An_Unknown_Stream_Returns_No_Events(t *testing.T) {
	store := memoryengine.NewEventStore[string]()

	events, err := store.StreamReader().Read(
		context.Background(), eventstore.FromStart(eventstore.NewStreamKey()))

	require.NoError(t, err)
	assert.Empty(t, events)

	version, versionErr := store.CurrentVersion(context.Background(), eventstore.NewStreamKey())
	require.NoError(t, versionErr)
	assert.Equal(t, eventstore.NoEventsVersion, version)
}

func Test_Concurrent_Writers_Never_Corrupt_Version_Ordering(t *testing.T) {
	// arrange
	store := memoryengine.NewEventStore[int]()
	key := eventstore.NewStreamKey()

	const writers = 16

	// act: unconditional appends from many goroutines
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_ = store.Append(context.Background(), eventstore.AnyVersion(), key, []int{n})
		}(i)
	}
	wg.Wait()

	// assert: versions are contiguous from 0 with no duplicates
	events, err := store.StreamReader().Read(context.Background(), eventstore.FromStart(key))
	require.NoError(t, err)
	require.Len(t, events, writers)

	for i, event := range events {
		assert.Equal(t, eventstore.EventVersion(i), event.Position)
	}
}

func Test_Operations_Respect_A_Cancelled_Context(t *testing.T) {
	// arrange
	store := memoryengine.NewEventStore[string]()
	key := eventstore.NewStreamKey()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// act + assert
	assert.Error(t, store.Append(ctx, eventstore.AnyVersion(), key, []string{"a"}))

	_, readErr := store.StreamReader().Read(ctx, eventstore.FromStart(key))
	assert.Error(t, readErr)

	_, versionErr := store.CurrentVersion(ctx, key)
	assert.Error(t, versionErr)
}
