package queue

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Publisher handles dispatching jobs to the queue
type Publisher struct {
	driver          Driver
	defaultAttempts int
	defaultBackoff  time.Duration
}

// NewPublisher creates a new Publisher instance
func NewPublisher(driver Driver) *Publisher {
	return &Publisher{
		driver:          driver,
		defaultAttempts: 3,
		defaultBackoff:  2 * time.Second,
	}
}

// SetDefaults overrides the publisher-wide retry defaults.
func (p *Publisher) SetDefaults(maxAttempts int, backoffBase time.Duration) {
	if maxAttempts > 0 {
		p.defaultAttempts = maxAttempts
	}
	if backoffBase > 0 {
		p.defaultBackoff = backoffBase
	}
}

type dispatchOptions struct {
	priority    Priority
	delay       time.Duration
	maxAttempts int
	backoffBase time.Duration
	timeout     time.Duration
}

// Option configures a single dispatch
type Option func(*dispatchOptions)

// WithPriority sets the delivery tier (defaults to medium)
func WithPriority(p Priority) Option {
	return func(o *dispatchOptions) { o.priority = p }
}

// WithDelay keeps the job invisible for the given duration
func WithDelay(d time.Duration) Option {
	return func(o *dispatchOptions) { o.delay = d }
}

// WithMaxAttempts sets the retry budget for this job
func WithMaxAttempts(n int) Option {
	return func(o *dispatchOptions) { o.maxAttempts = n }
}

// WithBackoffBase sets the base retry delay, doubled per attempt
func WithBackoffBase(d time.Duration) Option {
	return func(o *dispatchOptions) { o.backoffBase = d }
}

// WithTimeout bounds a single handler invocation
func WithTimeout(d time.Duration) Option {
	return func(o *dispatchOptions) { o.timeout = d }
}

// Dispatch validates the payload, wraps it in an envelope, and pushes
// it to the named queue. The returned envelope is the job handle.
func (p *Publisher) Dispatch(ctx context.Context, queueName, operation string, payload map[string]any, opts ...Option) (*Envelope, error) {
	if err := ValidatePayload(payload); err != nil {
		return nil, err
	}

	o := dispatchOptions{
		priority:    PriorityMedium,
		maxAttempts: p.defaultAttempts,
		backoffBase: p.defaultBackoff,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if !o.priority.Valid() {
		o.priority = PriorityMedium
	}

	env := &Envelope{
		ID:            uuid.New().String(),
		Queue:         queueName,
		Operation:     operation,
		Priority:      o.priority,
		Payload:       payload,
		MaxAttempts:   o.maxAttempts,
		BackoffBaseMs: int(o.backoffBase / time.Millisecond),
		TimeoutSec:    int(o.timeout / time.Second),
		EnqueuedAt:    time.Now().UTC(),
	}

	body, err := json.Marshal(env)
	if err != nil {
		return nil, err
	}

	if err := p.driver.Push(ctx, queueName, body, env.Priority, o.delay); err != nil {
		return nil, err
	}
	return env, nil
}
