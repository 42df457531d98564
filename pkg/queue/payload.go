package queue

import (
	"fmt"
	"reflect"
	"time"

	"github.com/payvide/payworker/pkg/errs"
)

// State is a job lifecycle state. Terminal states are immutable.
type State string

const (
	StateWaiting         State = "waiting"
	StateActive          State = "active"
	StateCompleted       State = "completed"
	StateFailedRetryable State = "failed-retryable"
	StateFailedDead      State = "failed-dead"
)

// Priority is an ordered delivery tier within a queue.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// Rank orders priorities for dequeueing; higher pops first.
func (p Priority) Rank() int {
	switch p {
	case PriorityUrgent:
		return 3
	case PriorityHigh:
		return 2
	case PriorityMedium:
		return 1
	case PriorityLow:
		return 0
	}
	return -1
}

// Valid reports whether p is one of the defined tiers.
func (p Priority) Valid() bool { return p.Rank() >= 0 }

// Tiers lists priorities from highest to lowest, the order drivers
// scan their per-tier queues in.
func Tiers() []Priority {
	return []Priority{PriorityUrgent, PriorityHigh, PriorityMedium, PriorityLow}
}

// Envelope is the JSON structure carried through every queue driver.
type Envelope struct {
	ID            string         `json:"uuid"`
	Queue         string         `json:"queue"`
	Operation     string         `json:"operation"`
	Priority      Priority       `json:"priority"`
	Payload       map[string]any `json:"payload"`
	Attempts      int            `json:"attempts"`
	MaxAttempts   int            `json:"maxAttempts"`
	BackoffBaseMs int            `json:"backoffBaseMs"`
	TimeoutSec    int            `json:"timeoutSec,omitempty"`
	EnqueuedAt    time.Time      `json:"enqueuedAt"`
}

// BackoffDelay returns the retry delay after the current number of
// completed attempts: backoffBase doubling per attempt.
func (e *Envelope) BackoffDelay() time.Duration {
	base := time.Duration(e.BackoffBaseMs) * time.Millisecond
	if base <= 0 {
		base = 2 * time.Second
	}
	shift := e.Attempts - 1
	if shift < 0 {
		shift = 0
	}
	if shift > 16 {
		shift = 16
	}
	return base << uint(shift)
}

// String returns a string payload field, or "" when absent.
func (e *Envelope) String(key string) string {
	if v, ok := e.Payload[key].(string); ok {
		return v
	}
	return ""
}

// Int returns an integer payload field. JSON numbers arrive as
// float64, so both are accepted.
func (e *Envelope) Int(key string) (int, bool) {
	switch v := e.Payload[key].(type) {
	case float64:
		return int(v), true
	case int:
		return v, true
	case int64:
		return int(v), true
	}
	return 0, false
}

// ValidatePayload rejects any payload value that is not a primitive or
// a slice of primitives. Open handles, nested maps, and circular
// structures must never cross the queue boundary; they are rejected
// explicitly rather than silently stripped.
func ValidatePayload(payload map[string]any) error {
	for key, value := range payload {
		if value == nil {
			continue
		}
		if isPrimitive(value) {
			continue
		}
		rv := reflect.ValueOf(value)
		if rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
			ok := true
			for i := 0; i < rv.Len(); i++ {
				el := rv.Index(i).Interface()
				if el != nil && !isPrimitive(el) {
					ok = false
					break
				}
			}
			if ok {
				continue
			}
		}
		return &errs.ValidationError{
			Field: key,
			Msg:   fmt.Sprintf("payload values must be primitives or arrays of primitives, got %T", value),
		}
	}
	return nil
}

func isPrimitive(v any) bool {
	switch v.(type) {
	case string, bool,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return true
	}
	return false
}
