package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/session-scheduler/internal/config"
)

type tokenEntry struct {
	AccessToken string
	ExpiresIn   int
}

func setupTestCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(func() { mr.Close() })

	cache, err := InitServer(context.Background(), config.RedisConnection{AddressRedis: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = cache.Close() })
	return cache, mr
}

func TestSetAndGet(t *testing.T) {
	cache, _ := setupTestCache(t)
	ctx := context.Background()

	expected := tokenEntry{AccessToken: "abc", ExpiresIn: 3600}
	require.NoError(t, cache.Set(ctx, "zoom:token", expected, time.Minute))

	var actual tokenEntry
	found, err := cache.Get(ctx, "zoom:token", &actual)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, expected, actual)
}

func TestGetNotFound(t *testing.T) {
	cache, _ := setupTestCache(t)

	var out tokenEntry
	found, err := cache.Get(context.Background(), "no_such_key", &out)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestExpiration(t *testing.T) {
	cache, mr := setupTestCache(t)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "zoom:token", tokenEntry{AccessToken: "abc"}, time.Minute))
	assert.True(t, mr.Exists("session-scheduler:zoom:token"))

	mr.FastForward(2 * time.Minute)

	var out tokenEntry
	found, err := cache.Get(ctx, "zoom:token", &out)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestInvalidate(t *testing.T) {
	cache, _ := setupTestCache(t)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "k", tokenEntry{AccessToken: "x"}, time.Minute))
	require.NoError(t, cache.Invalidate(ctx, "k"))

	var out tokenEntry
	found, err := cache.Get(ctx, "k", &out)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestGetCorruptedValue(t *testing.T) {
	cache, mr := setupTestCache(t)
	require.NoError(t, mr.Set("session-scheduler:bad", "{not json"))

	var out tokenEntry
	_, err := cache.Get(context.Background(), "bad", &out)
	assert.Error(t, err)
}

func TestInitServer_Unreachable(t *testing.T) {
	_, err := InitServer(context.Background(), config.RedisConnection{
		AddressRedis: "127.0.0.1:1",
		DialTimeout:  100 * time.Millisecond,
	})
	assert.Error(t, err)
}
