package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore implements Store on go-redis. The client is typically
// shared with the redis queue driver and the scheduler locks.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a new RedisStore
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// Get returns the value for key, or redis.Nil when absent.
func (s *RedisStore) Get(ctx context.Context, key string) (string, error) {
	return s.client.Get(ctx, key).Result()
}

// Put stores value under key for ttl.
func (s *RedisStore) Put(ctx context.Context, key string, value string, ttl time.Duration) error {
	return s.client.Set(ctx, key, value, ttl).Err()
}

// Forget removes key.
func (s *RedisStore) Forget(ctx context.Context, key string) error {
	return s.client.Del(ctx, key).Err()
}

// Flush clears the whole database; tests only.
func (s *RedisStore) Flush(ctx context.Context) error {
	return s.client.FlushDB(ctx).Err()
}
