package queue

import (
	"context"
	"time"
)

// Job represents a job retrieved from a queue driver
type Job struct {
	ID       string    // driver-specific handle (receipt, row id); may be empty
	Body     []byte    // raw JSON envelope
	Envelope *Envelope // parsed envelope, populated by the worker
}

// Handler is the function signature for processing a job
type Handler func(ctx context.Context, job *Job) error

// Driver defines the interface for queue backends
type Driver interface {
	// Pop retrieves a job from the queue, blocking until one is
	// available or the context is done. Drivers must honor priority
	// ordering (urgent first) with FIFO ties within a tier.
	Pop(ctx context.Context, queueName string) (*Job, error)
	// Push adds a job payload to the queue. A non-zero delay keeps the
	// job invisible until the delay elapses.
	Push(ctx context.Context, queueName string, body []byte, priority Priority, delay time.Duration) error
	// Ack marks a popped job as done. Drivers that remove jobs on Pop
	// treat this as a no-op.
	Ack(ctx context.Context, job *Job) error
}
