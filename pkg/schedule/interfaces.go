package schedule

import (
	"context"
	"time"
)

// LockProvider is a distributed lock used to keep a scheduled task on
// one server per tick.
type LockProvider interface {
	// GetLock attempts to acquire the named lock for the given
	// duration. Returns true if acquired.
	GetLock(ctx context.Context, name string, duration time.Duration) (bool, error)
	// ReleaseLock releases the lock.
	ReleaseLock(ctx context.Context, name string) error
}
