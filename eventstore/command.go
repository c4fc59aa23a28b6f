package eventstore

import (
	"context"

	"github.com/google/uuid"
)

// DecideFunc validates a command against the current projection state and
// derives either exactly one new event or a domain error. It must be pure:
// a rejection is a typed return value and has no side effects.
type DecideFunc[S any, C any, E any] func(state S, command C) (E, error)

// EventBus receives successfully persisted events for out-of-band
// consumers. Implementations live outside the core (see natsbus).
type EventBus[E any] interface {
	Publish(ctx context.Context, event VersionedStreamEvent[E]) error
}

// ExecuteCommand loads the latest projection for key, lets decide derive an
// event from the command, persists that event and notifies the bus.
//
// The append carries an expected version derived from the loaded
// projection (NoStream for an empty stream, ExactVersion otherwise), so a
// concurrent writer that appends between the load and the write surfaces
// as a ConcurrencyError instead of silently racing; the caller decides
// whether to reload and retry.
//
// On a domain rejection the error from decide is returned and nothing is
// written or published. On success the persisted event is returned in its
// versioned shape; a bus failure after a successful append returns both
// the persisted event and the publish error.
func ExecuteCommand[S any, C any, E any](
	ctx context.Context,
	reader StreamReader[E],
	writer StreamWriter[E],
	bus EventBus[E],
	projection Projection[S, E],
	key uuid.UUID,
	command C,
	decide DecideFunc[S, C, E],
) (VersionedStreamEvent[E], error) {

	var none VersionedStreamEvent[E]

	// The read-check-write cycle must see its own writes; a replica lagging
	// behind the primary would turn every command into a conflict.
	ctx = WithStrongConsistency(ctx)

	latest, loadErr := GetLatestProjection(ctx, reader, NewStreamProjection(key, projection))
	if loadErr != nil {
		return none, loadErr
	}

	event, decideErr := decide(latest.State, command)
	if decideErr != nil {
		return none, decideErr
	}

	expected := ExactVersion(latest.Version)
	if latest.Version == NoEventsVersion {
		expected = NoStream()
	}

	if appendErr := writer.Append(ctx, expected, key, []E{event}); appendErr != nil {
		return none, appendErr
	}

	written := NewVersionedStreamEvent(key, latest.Version.Next(), event)

	if bus != nil {
		if publishErr := bus.Publish(ctx, written); publishErr != nil {
			return written, publishErr
		}
	}

	return written, nil
}
