package eventstore

import (
	"github.com/google/uuid"
)

// EventVersion is the zero-based position of an event within its own stream.
// Versions are strictly increasing with no gaps, starting at 0.
type EventVersion int64

// NoEventsVersion is the version of a stream that has no events yet.
const NoEventsVersion EventVersion = -1

// Next returns the version following v.
func (v EventVersion) Next() EventVersion {
	return v + 1
}

// SequenceNumber is the position of an event within the total order of the
// whole store, across all streams. Sequence numbers are strictly increasing
// and never reused; the store assigns them starting at 1, so the zero value
// means "before the first event".
type SequenceNumber int64

// GlobalKey is the unit key addressing the global event log. The global log
// is a singleton, so the key carries no information.
type GlobalKey struct{}

// Global is the key of the global event log.
var Global = GlobalKey{}

// NewStreamKey generates a fresh stream key. Keys are UUIDv7, so they sort
// roughly by creation time; any UUID works as a stream key, this is just the
// recommended generator.
func NewStreamKey() uuid.UUID {
	return uuid.Must(uuid.NewV7())
}

// StreamEvent is an immutable triple describing an event and its position
// within the stream identified by Key.
type StreamEvent[K any, P any, E any] struct {
	Key      K
	Position P
	Event    E
}

// VersionedStreamEvent is an event as it appears in its own stream:
// keyed by the stream's UUID, positioned by EventVersion.
type VersionedStreamEvent[E any] = StreamEvent[uuid.UUID, EventVersion, E]

// NewVersionedStreamEvent builds a VersionedStreamEvent from its parts.
func NewVersionedStreamEvent[E any](key uuid.UUID, version EventVersion, event E) VersionedStreamEvent[E] {
	return VersionedStreamEvent[E]{Key: key, Position: version, Event: event}
}

// GlobalStreamEvent is the same event as it appears in the global log.
// It carries both orderings at once: the store-wide SequenceNumber and the
// event's position within its own stream, so per-stream replay and global
// replay are both recoverable from one record.
type GlobalStreamEvent[E any] struct {
	SequenceNumber SequenceNumber
	StreamKey      uuid.UUID
	StreamVersion  EventVersion
	Event          E
}

// NewGlobalStreamEvent builds a GlobalStreamEvent wrapping a versioned event.
func NewGlobalStreamEvent[E any](sequenceNumber SequenceNumber, event VersionedStreamEvent[E]) GlobalStreamEvent[E] {
	return GlobalStreamEvent[E]{
		SequenceNumber: sequenceNumber,
		StreamKey:      event.Key,
		StreamVersion:  event.Position,
		Event:          event.Event,
	}
}

// VersionedEvent returns the per-stream view of the wrapped event.
func (g GlobalStreamEvent[E]) VersionedEvent() VersionedStreamEvent[E] {
	return NewVersionedStreamEvent(g.StreamKey, g.StreamVersion, g.Event)
}
