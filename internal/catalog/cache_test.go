package catalog

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestRedis creates a miniredis server and returns a RedisCache instance
func setupTestRedis(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisCache(client, 30*time.Minute), mr
}

func TestRedisCache_Miss(t *testing.T) {
	cache, _ := setupTestRedis(t)

	_, err := cache.ListProducts(context.Background())
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestRedisCache_SetAndGet(t *testing.T) {
	cache, mr := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, sampleProducts()))

	got, err := cache.ListProducts(ctx)
	require.NoError(t, err)
	assert.Equal(t, sampleProducts(), got)

	ttl := mr.TTL(snapshotKey)
	assert.GreaterOrEqual(t, ttl, 30*time.Minute)
	assert.Less(t, ttl, 35*time.Minute)
}

func TestRedisCache_Expires(t *testing.T) {
	cache, mr := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, sampleProducts()))
	mr.FastForward(36 * time.Minute)

	_, err := cache.ListProducts(ctx)
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestRedisCache_CorruptPayload(t *testing.T) {
	cache, mr := setupTestRedis(t)
	require.NoError(t, mr.Set(snapshotKey, "{not json"))

	_, err := cache.ListProducts(context.Background())
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrCacheMiss)
}

func TestRedisCache_Delete(t *testing.T) {
	cache, mr := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, sampleProducts()))
	require.NoError(t, cache.Delete(ctx))
	assert.False(t, mr.Exists(snapshotKey))
}

func TestRedisCache_Unavailable(t *testing.T) {
	cache, mr := setupTestRedis(t)
	mr.Close()

	_, err := cache.ListProducts(context.Background())
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrCacheMiss)
}
