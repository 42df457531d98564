package cache

import (
	"context"
	"time"
)

// Store is a cache backend. The payment service uses it for
// duplicate-callback markers; the scheduler locks live in their own
// provider.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Put(ctx context.Context, key string, value string, ttl time.Duration) error
	Forget(ctx context.Context, key string) error
	Flush(ctx context.Context) error
}
