package memoryengine

import (
	"context"
	"sync"
)

type cacheEntry[O any, V any] struct {
	orderKey O
	value    V
}

// ProjectionCache is a mutex-guarded in-memory implementation of the
// eventstore.ProjectionCache contract. Each entry's store/load pair is
// atomic, so a torn snapshot is never returned.
type ProjectionCache[K comparable, O any, V any] struct {
	mu      sync.RWMutex
	entries map[K]cacheEntry[O, V]
}

// NewProjectionCache creates an empty in-memory projection cache.
func NewProjectionCache[K comparable, O any, V any]() *ProjectionCache[K, O, V] {
	return &ProjectionCache[K, O, V]{
		entries: make(map[K]cacheEntry[O, V]),
	}
}

// StoreSnapshot stores value as the snapshot of key at orderKey, replacing
// any previous entry for key.
func (c *ProjectionCache[K, O, V]) StoreSnapshot(ctx context.Context, key K, orderKey O, value V) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = cacheEntry[O, V]{orderKey: orderKey, value: value}

	return nil
}

// LoadSnapshot loads the snapshot stored for key; ok is false when no entry
// exists.
func (c *ProjectionCache[K, O, V]) LoadSnapshot(ctx context.Context, key K) (O, V, bool, error) {
	var noOrderKey O
	var noValue V

	if ctxErr := ctx.Err(); ctxErr != nil {
		return noOrderKey, noValue, false, ctxErr
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[key]
	if !ok {
		return noOrderKey, noValue, false, nil
	}

	return entry.orderKey, entry.value, true, nil
}

// Delete removes the snapshot stored for key, if any.
func (c *ProjectionCache[K, O, V]) Delete(ctx context.Context, key K) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, key)

	return nil
}
