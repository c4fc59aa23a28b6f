package eventstore

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var ErrNoEventsToAppend = errors.New("no events to append")

// RangeQuery selects a contiguous range of a stream. After is an EXCLUSIVE
// lower bound on the position: the query returns events strictly after it,
// in strictly increasing position order. Passing the zero position
// (NoEventsVersion for streams, SequenceNumber 0 for the global log) reads
// from the beginning. Limit caps the number of returned events; 0 means
// unlimited.
type RangeQuery[K any, P any] struct {
	Key   K
	After P
	Limit int
}

// FromStart returns a RangeQuery reading the stream identified by key from
// its first event.
func FromStart(key uuid.UUID) RangeQuery[uuid.UUID, EventVersion] {
	return RangeQuery[uuid.UUID, EventVersion]{Key: key, After: NoEventsVersion}
}

// FromGlobalStart returns a RangeQuery reading the global log from its
// first event.
func FromGlobalStart() RangeQuery[GlobalKey, SequenceNumber] {
	return RangeQuery[GlobalKey, SequenceNumber]{Key: Global}
}

// Reader is the generic contract for reading a range of events from a
// stream. Implementations guarantee that results come back in strictly
// increasing position order for the queried key, with no event skipped or
// duplicated within the requested range.
//
// A Reader is a value, not an object with hidden state: it can be
// re-wrapped (see NewSerializedReader) without mutation, and a ReaderFunc
// closure is the idiomatic way to adapt a backend that runs in its own
// effect context (open a transaction, query, commit, return the result).
type Reader[K any, P any, E any] interface {
	Read(ctx context.Context, query RangeQuery[K, P]) ([]E, error)
}

// ReaderFunc adapts an ordinary function to the Reader contract.
type ReaderFunc[K any, P any, E any] func(ctx context.Context, query RangeQuery[K, P]) ([]E, error)

// Read calls f.
func (f ReaderFunc[K, P, E]) Read(ctx context.Context, query RangeQuery[K, P]) ([]E, error) {
	return f(ctx, query)
}

// Writer is the generic contract for appending events to a stream under an
// expected-version precondition. On success all events are appended
// atomically, in order, with strictly increasing versions continuing from
// the stream's current version. On a precondition failure NO events are
// written and the returned error matches ErrConcurrencyConflict; errors.As
// with *ConcurrencyError recovers the stream's actual version. Partial
// application of a batch must never be observable.
type Writer[K any, E any] interface {
	Append(ctx context.Context, expected ExpectedVersion, key K, events []E) error
}

// WriterFunc adapts an ordinary function to the Writer contract.
type WriterFunc[K any, E any] func(ctx context.Context, expected ExpectedVersion, key K, events []E) error

// Append calls f.
func (f WriterFunc[K, E]) Append(ctx context.Context, expected ExpectedVersion, key K, events []E) error {
	return f(ctx, expected, key, events)
}

// StreamReader reads one stream's events in EventVersion order.
type StreamReader[E any] = Reader[uuid.UUID, EventVersion, VersionedStreamEvent[E]]

// GlobalReader reads the whole store's events in SequenceNumber order.
type GlobalReader[E any] = Reader[GlobalKey, SequenceNumber, GlobalStreamEvent[E]]

// StreamWriter appends plain domain events to one stream; the store assigns
// the versions.
type StreamWriter[E any] = Writer[uuid.UUID, E]
