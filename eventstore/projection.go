package eventstore

import (
	"context"

	"github.com/google/uuid"
)

// Projection derives state from a stream of events by folding: Seed is the
// state of a stream with no events, Step folds one event into the state.
//
// Step must be pure, deterministic and side-effect-free. Non-determinism
// here would silently invalidate snapshot caching and command validation,
// which both assume that folding the same events always yields the same
// state.
type Projection[S any, E any] struct {
	Seed S
	Step func(state S, event E) S
}

// Fold applies Step to state for each event, left to right.
func (p Projection[S, E]) Fold(state S, events ...E) S {
	for _, event := range events {
		state = p.Step(state, event)
	}

	return state
}

// StreamProjection pairs a Projection with the state it has derived so far
// for one stream: State reflects the stream's events up through Version.
// Values are immutable — every reconciliation returns a new value.
type StreamProjection[S any, E any] struct {
	Projection Projection[S, E]
	Key        uuid.UUID
	Version    EventVersion
	State      S
}

// NewStreamProjection creates the projection of the stream identified by
// key before any events have been folded in.
func NewStreamProjection[S any, E any](key uuid.UUID, projection Projection[S, E]) StreamProjection[S, E] {
	return StreamProjection[S, E]{
		Projection: projection,
		Key:        key,
		Version:    NoEventsVersion,
		State:      projection.Seed,
	}
}

// GetLatestProjection replays all events newer than prior.Version from the
// reader and folds them onto prior.State. The returned projection's Version
// is the version of the last folded event, or unchanged if no new events
// exist.
func GetLatestProjection[S any, E any](
	ctx context.Context,
	reader StreamReader[E],
	prior StreamProjection[S, E],
) (StreamProjection[S, E], error) {

	events, err := reader.Read(ctx, RangeQuery[uuid.UUID, EventVersion]{Key: prior.Key, After: prior.Version})
	if err != nil {
		return prior, err
	}

	latest := prior
	for _, event := range events {
		latest.State = latest.Projection.Step(latest.State, event.Event)
		latest.Version = event.Position
	}

	return latest, nil
}

// GlobalProjection is the analog of StreamProjection for the global log,
// keyed by SequenceNumber. The fold sees each event in its per-stream shape
// so the step function knows which stream the event came from.
type GlobalProjection[S any, E any] struct {
	Projection     Projection[S, VersionedStreamEvent[E]]
	SequenceNumber SequenceNumber
	State          S
}

// NewGlobalProjection creates the projection of the global log before any
// events have been folded in.
func NewGlobalProjection[S any, E any](projection Projection[S, VersionedStreamEvent[E]]) GlobalProjection[S, E] {
	return GlobalProjection[S, E]{
		Projection: projection,
		State:      projection.Seed,
	}
}

// GetLatestGlobalProjection replays all events newer than
// prior.SequenceNumber from the global reader and folds them onto
// prior.State, in sequence-number order.
func GetLatestGlobalProjection[S any, E any](
	ctx context.Context,
	reader GlobalReader[E],
	prior GlobalProjection[S, E],
) (GlobalProjection[S, E], error) {

	events, err := reader.Read(ctx, RangeQuery[GlobalKey, SequenceNumber]{Key: Global, After: prior.SequenceNumber})
	if err != nil {
		return prior, err
	}

	latest := prior
	for _, event := range events {
		latest.State = latest.Projection.Step(latest.State, event.VersionedEvent())
		latest.SequenceNumber = event.SequenceNumber
	}

	return latest, nil
}
