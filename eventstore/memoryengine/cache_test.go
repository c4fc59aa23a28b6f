package memoryengine_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eventfold/eventstore-go/eventstore"
	"github.com/eventfold/eventstore-go/eventstore/memoryengine"
)

func Test_ProjectionCache_Store_Load_Delete(t *testing.T) {
	// arrange
	cache := memoryengine.NewProjectionCache[string, eventstore.EventVersion, int]()

	// act + assert: empty cache misses
	_, _, found, err := cache.LoadSnapshot(context.Background(), "wallet-1")
	require.NoError(t, err)
	assert.False(t, found)

	// store then load
	require.NoError(t, cache.StoreSnapshot(context.Background(), "wallet-1", 3, 70))

	orderKey, value, found, err := cache.LoadSnapshot(context.Background(), "wallet-1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, eventstore.EventVersion(3), orderKey)
	assert.Equal(t, 70, value)

	// a later store replaces the entry
	require.NoError(t, cache.StoreSnapshot(context.Background(), "wallet-1", 5, 75))

	orderKey, value, found, err = cache.LoadSnapshot(context.Background(), "wallet-1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, eventstore.EventVersion(5), orderKey)
	assert.Equal(t, 75, value)

	// delete removes it
	require.NoError(t, cache.Delete(context.Background(), "wallet-1"))

	_, _, found, err = cache.LoadSnapshot(context.Background(), "wallet-1")
	require.NoError(t, err)
	assert.False(t, found)
}

func Test_ProjectionCache_Respects_A_Cancelled_Context(t *testing.T) {
	cache := memoryengine.NewProjectionCache[string, eventstore.EventVersion, int]()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.Error(t, cache.StoreSnapshot(ctx, "k", 0, 1))

	_, _, _, err := cache.LoadSnapshot(ctx, "k")
	assert.Error(t, err)
}
