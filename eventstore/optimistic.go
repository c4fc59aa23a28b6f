package eventstore

import (
	"context"
)

// CurrentVersionFunc fetches the current version of the stream identified
// by key, returning NoEventsVersion for a stream with no events.
type CurrentVersionFunc[K any] func(ctx context.Context, key K) (EventVersion, error)

// AppendAllFunc unconditionally appends the given events to the stream
// identified by key, assigning versions that continue from the stream's
// current version.
type AppendAllFunc[K any, E any] func(ctx context.Context, key K, events []E) error

// AppendWithExpectedVersion implements the check-then-write pattern for a
// backend given only a way to fetch a stream's current version and a way to
// append unconditionally. It is the single place where the expected-version
// precondition is resolved:
//
//   - AnyVersion appends without fetching the current version.
//   - Every other precondition fetches the current version, evaluates it,
//     and appends only on a match; on a mismatch nothing is appended and a
//     *ConcurrencyError carrying the fetched version is returned.
//
// PRECONDITION: currentVersion and appendAll must run within one
// transaction or equivalent atomic boundary, serialized per stream. This
// helper is a template for backends whose effect context already
// guarantees that (row locking, compare-and-swap, a mutex held around the
// call); it provides no isolation of its own. Without that guarantee two
// concurrent writers can both pass the check and corrupt version ordering.
func AppendWithExpectedVersion[K any, E any](
	ctx context.Context,
	expected ExpectedVersion,
	key K,
	events []E,
	currentVersion CurrentVersionFunc[K],
	appendAll AppendAllFunc[K, E],
) error {

	if len(events) == 0 {
		return ErrNoEventsToAppend
	}

	if !expected.HasCheck() {
		return appendAll(ctx, key, events)
	}

	current, err := currentVersion(ctx, key)
	if err != nil {
		return err
	}

	if !expected.Matches(current) {
		return NewConcurrencyError(expected, current)
	}

	return appendAll(ctx, key, events)
}
