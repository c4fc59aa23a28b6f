// Package memoryengine provides an in-memory implementation of the
// eventstore contracts. It is the reference backend: it keeps every
// ordering and atomicity guarantee the contracts demand, at the cost of
// durability, and is intended for tests and prototyping.
package memoryengine

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/eventfold/eventstore-go/eventstore"
)

const (
	logMsgEventsAppended      = "events appended"
	logMsgConcurrencyConflict = "concurrency conflict detected"
	logAttrStreamKey          = "stream_key"
	logAttrEventCount         = "event_count"
	logAttrExpectedVersion    = "expected_version"
	logAttrActualVersion      = "actual_version"
)

// EventStore is a mutex-guarded in-memory event store. It maintains both
// the per-stream ordering (EventVersions per key) and the store-wide total
// order (SequenceNumbers assigned from 1 in append order across all keys).
type EventStore[E any] struct {
	mu      sync.RWMutex
	streams map[uuid.UUID][]eventstore.VersionedStreamEvent[E]
	log     []eventstore.GlobalStreamEvent[E]
	logger  eventstore.Logger
}

// Option defines a functional option for configuring EventStore.
type Option[E any] func(*EventStore[E])

// WithLogger sets the logger for the EventStore.
func WithLogger[E any](logger eventstore.Logger) Option[E] {
	return func(es *EventStore[E]) {
		es.logger = logger
	}
}

// NewEventStore creates an empty in-memory event store.
func NewEventStore[E any](options ...Option[E]) *EventStore[E] {
	es := &EventStore[E]{
		streams: make(map[uuid.UUID][]eventstore.VersionedStreamEvent[E]),
	}

	for _, option := range options {
		option(es)
	}

	return es
}

// Append appends all events atomically to the stream identified by key,
// respecting the expected-version precondition. The store's mutex is the
// atomic boundary required by AppendWithExpectedVersion.
func (es *EventStore[E]) Append(
	ctx context.Context,
	expected eventstore.ExpectedVersion,
	key uuid.UUID,
	events []E,
) error {

	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}

	es.mu.Lock()
	defer es.mu.Unlock()

	err := eventstore.AppendWithExpectedVersion(
		ctx, expected, key, events,
		es.currentVersionLocked,
		es.appendAllLocked,
	)

	if err != nil {
		var concurrencyErr *eventstore.ConcurrencyError
		if es.logger != nil && errors.As(err, &concurrencyErr) {
			es.logger.Info(logMsgConcurrencyConflict,
				logAttrStreamKey, key.String(),
				logAttrExpectedVersion, concurrencyErr.Expected.String(),
				logAttrActualVersion, int64(concurrencyErr.ActualVersion))
		}

		return err
	}

	if es.logger != nil {
		es.logger.Info(logMsgEventsAppended,
			logAttrStreamKey, key.String(),
			logAttrEventCount, len(events))
	}

	return nil
}

func (es *EventStore[E]) currentVersionLocked(_ context.Context, key uuid.UUID) (eventstore.EventVersion, error) {
	stream := es.streams[key]
	if len(stream) == 0 {
		return eventstore.NoEventsVersion, nil
	}

	return stream[len(stream)-1].Position, nil
}

func (es *EventStore[E]) appendAllLocked(_ context.Context, key uuid.UUID, events []E) error {
	stream := es.streams[key]
	version := eventstore.NoEventsVersion
	if len(stream) > 0 {
		version = stream[len(stream)-1].Position
	}

	for _, event := range events {
		version = version.Next()
		versioned := eventstore.NewVersionedStreamEvent(key, version, event)

		stream = append(stream, versioned)
		es.log = append(es.log, eventstore.NewGlobalStreamEvent(
			eventstore.SequenceNumber(len(es.log)+1), versioned))
	}

	es.streams[key] = stream

	return nil
}

// StreamReader returns a reader over one stream's events in EventVersion
// order. The reader is a plain value closing over the store; it can be
// re-wrapped with the serializer adapters without touching the store.
func (es *EventStore[E]) StreamReader() eventstore.StreamReader[E] {
	return eventstore.ReaderFunc[uuid.UUID, eventstore.EventVersion, eventstore.VersionedStreamEvent[E]](
		func(ctx context.Context, query eventstore.RangeQuery[uuid.UUID, eventstore.EventVersion]) (
			[]eventstore.VersionedStreamEvent[E], error) {

			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}

			es.mu.RLock()
			defer es.mu.RUnlock()

			result := make([]eventstore.VersionedStreamEvent[E], 0)
			for _, event := range es.streams[query.Key] {
				if event.Position <= query.After {
					continue
				}

				result = append(result, event)
				if query.Limit > 0 && len(result) == query.Limit {
					break
				}
			}

			return result, nil
		})
}

// GlobalReader returns a reader over the whole store's events in
// SequenceNumber order.
func (es *EventStore[E]) GlobalReader() eventstore.GlobalReader[E] {
	return eventstore.ReaderFunc[eventstore.GlobalKey, eventstore.SequenceNumber, eventstore.GlobalStreamEvent[E]](
		func(ctx context.Context, query eventstore.RangeQuery[eventstore.GlobalKey, eventstore.SequenceNumber]) (
			[]eventstore.GlobalStreamEvent[E], error) {

			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}

			es.mu.RLock()
			defer es.mu.RUnlock()

			result := make([]eventstore.GlobalStreamEvent[E], 0)
			for _, event := range es.log {
				if event.SequenceNumber <= query.After {
					continue
				}

				result = append(result, event)
				if query.Limit > 0 && len(result) == query.Limit {
					break
				}
			}

			return result, nil
		})
}

// CurrentVersion returns the current version of the stream identified by
// key, or NoEventsVersion for a stream with no events.
func (es *EventStore[E]) CurrentVersion(ctx context.Context, key uuid.UUID) (eventstore.EventVersion, error) {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return eventstore.NoEventsVersion, ctxErr
	}

	es.mu.RLock()
	defer es.mu.RUnlock()

	return es.currentVersionLocked(ctx, key)
}
