package eventstore

import (
	"context"

	"github.com/google/uuid"
)

// ProjectionCache is a key/order-key addressed store of serialized
// projection snapshots. From the cache's point of view it is a dumb
// key/value store: it performs no validation that a stored value actually
// corresponds to folding the stream's events up through the order key.
// Correctness is entirely the responsibility of the reconciliation
// operations below — the cache is an accelerator, never a source of truth.
//
// A single entry's store/load pair should be atomic so a torn write is
// never returned; no mutual exclusion across calls is required, since
// staleness is tolerated by design.
type ProjectionCache[K any, O any, V any] interface {
	// StoreSnapshot stores value as the snapshot of key at orderKey,
	// replacing any previous entry for key.
	StoreSnapshot(ctx context.Context, key K, orderKey O, value V) error

	// LoadSnapshot loads the snapshot stored for key; ok is false when no
	// entry exists.
	LoadSnapshot(ctx context.Context, key K) (orderKey O, value V, ok bool, err error)
}

// StreamProjectionCache caches per-stream projection snapshots addressed by
// stream key and EventVersion.
type StreamProjectionCache[V any] = ProjectionCache[uuid.UUID, EventVersion, V]

// GlobalProjectionCache caches global-log projection snapshots addressed by
// SequenceNumber. The global log is a singleton, so the key is GlobalKey.
type GlobalProjectionCache[V any] = ProjectionCache[GlobalKey, SequenceNumber, V]

// GetLatestProjectionWithCache reconciles a projection against the snapshot
// cache and the authoritative store:
//
//  1. Load the cache entry for the projection's key.
//  2. Adopt the cached version/state only if the entry exists, claims to be
//     STRICTLY newer than prior.Version, and deserializes cleanly — the
//     cache may never move a projection backward, and an undecodable
//     snapshot is treated as absent (the serializer's usual lossy policy).
//  3. Fold forward from whichever starting point was chosen, against the
//     authoritative reader.
//
// This is what lets the cache be stale, missing, or wrong-but-older without
// breaking correctness: a cached value is only trusted when it claims to be
// newer than what the caller already has, and the result is always
// re-folded forward from there.
func GetLatestProjectionWithCache[S any, E any, V any](
	ctx context.Context,
	reader StreamReader[E],
	cache StreamProjectionCache[V],
	serializer Serializer[S, V],
	prior StreamProjection[S, E],
) (StreamProjection[S, E], error) {

	orderKey, value, ok, loadErr := cache.LoadSnapshot(ctx, prior.Key)
	if loadErr != nil {
		return prior, loadErr
	}

	start := prior
	if ok && orderKey > prior.Version {
		if state, decoded := serializer.Deserialize(value); decoded {
			start.Version = orderKey
			start.State = state
		}
	}

	return GetLatestProjection(ctx, reader, start)
}

// UpdateProjectionCache reconciles like GetLatestProjectionWithCache and
// then writes the reconciled state back to the cache. This is the only path
// that should write to the cache, which ensures every cached value is
// itself derived from a validated fold.
func UpdateProjectionCache[S any, E any, V any](
	ctx context.Context,
	reader StreamReader[E],
	cache StreamProjectionCache[V],
	serializer Serializer[S, V],
	prior StreamProjection[S, E],
) (StreamProjection[S, E], error) {

	latest, err := GetLatestProjectionWithCache(ctx, reader, cache, serializer, prior)
	if err != nil {
		return prior, err
	}

	if storeErr := cache.StoreSnapshot(ctx, latest.Key, latest.Version, serializer.Serialize(latest.State)); storeErr != nil {
		return latest, storeErr
	}

	return latest, nil
}

// GetLatestGlobalProjectionWithCache is the global-log analog of
// GetLatestProjectionWithCache, keyed by SequenceNumber.
func GetLatestGlobalProjectionWithCache[S any, E any, V any](
	ctx context.Context,
	reader GlobalReader[E],
	cache GlobalProjectionCache[V],
	serializer Serializer[S, V],
	prior GlobalProjection[S, E],
) (GlobalProjection[S, E], error) {

	orderKey, value, ok, loadErr := cache.LoadSnapshot(ctx, Global)
	if loadErr != nil {
		return prior, loadErr
	}

	start := prior
	if ok && orderKey > prior.SequenceNumber {
		if state, decoded := serializer.Deserialize(value); decoded {
			start.SequenceNumber = orderKey
			start.State = state
		}
	}

	return GetLatestGlobalProjection(ctx, reader, start)
}

// UpdateGlobalProjectionCache is the global-log analog of
// UpdateProjectionCache.
func UpdateGlobalProjectionCache[S any, E any, V any](
	ctx context.Context,
	reader GlobalReader[E],
	cache GlobalProjectionCache[V],
	serializer Serializer[S, V],
	prior GlobalProjection[S, E],
) (GlobalProjection[S, E], error) {

	latest, err := GetLatestGlobalProjectionWithCache(ctx, reader, cache, serializer, prior)
	if err != nil {
		return prior, err
	}

	if storeErr := cache.StoreSnapshot(ctx, Global, latest.SequenceNumber, serializer.Serialize(latest.State)); storeErr != nil {
		return latest, storeErr
	}

	return latest, nil
}
