package cache_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/threadline/courier-bridge/pkg/courier"
	"github.com/threadline/courier-bridge/pkg/courier/cache"
)

func TestMemory_SetGet(t *testing.T) {
	store := cache.NewMemory()
	ctx := context.Background()
	fetchedAt := time.Now().Truncate(time.Millisecond)

	require.NoError(t, store.Set(ctx, "carrier_cities_cache", []byte(`[{"city_id":1}]`), fetchedAt))

	payload, ts, err := store.Get(ctx, "carrier_cities_cache")
	require.NoError(t, err)
	assert.Equal(t, []byte(`[{"city_id":1}]`), payload)
	assert.True(t, ts.Equal(fetchedAt))
}

func TestMemory_Miss(t *testing.T) {
	store := cache.NewMemory()

	_, _, err := store.Get(context.Background(), "absent")
	assert.ErrorIs(t, err, courier.ErrCacheMiss)
}

func TestMemory_Delete(t *testing.T) {
	store := cache.NewMemory()
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "k", []byte("v"), time.Now()))
	require.NoError(t, store.Delete(ctx, "k"))

	_, _, err := store.Get(ctx, "k")
	assert.ErrorIs(t, err, courier.ErrCacheMiss)
}

func TestMemory_CopiesPayload(t *testing.T) {
	store := cache.NewMemory()
	ctx := context.Background()

	payload := []byte("original")
	require.NoError(t, store.Set(ctx, "k", payload, time.Now()))
	payload[0] = 'X'

	stored, _, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("original"), stored)
}
