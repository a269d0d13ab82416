package cart

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisSlot stores carts under "cart:<key>" with a sliding TTL.
type RedisSlot struct {
	client  redis.UniversalClient
	baseTTL time.Duration
}

func NewRedisSlot(client redis.UniversalClient, baseTTL time.Duration) *RedisSlot {
	if baseTTL <= 0 {
		baseTTL = 7 * 24 * time.Hour
	}
	return &RedisSlot{
		client:  client,
		baseTTL: baseTTL,
	}
}

func (r *RedisSlot) Read(ctx context.Context, key string) ([]byte, error) {
	data, err := r.client.Get(ctx, slotKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrSlotEmpty
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}
	return data, nil
}

func (r *RedisSlot) Write(ctx context.Context, key string, data []byte) error {
	jitter := time.Duration(rand.IntN(60)) * time.Minute
	if err := r.client.Set(ctx, slotKey(key), data, r.baseTTL+jitter).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (r *RedisSlot) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, slotKey(key)).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

func slotKey(key string) string {
	return fmt.Sprintf("cart:%s", key)
}
