package queue

import (
	"context"
)

// FailedJobProvider defines the interface for recording jobs that left
// the retry cycle, either dead after exhausting attempts or terminally
// failed on a business rule.
type FailedJobProvider interface {
	// Log records a failed job
	Log(ctx context.Context, connection string, queue string, payload []byte, exception string) error
}
