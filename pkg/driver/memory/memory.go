// Package memory provides an in-process queue driver with the same
// priority, delay, and FIFO semantics as the networked drivers. It
// backs single-process deployments and the test suite.
package memory

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/payvide/payworker/pkg/queue"
)

const pollInterval = 5 * time.Millisecond

type item struct {
	id       string
	body     []byte
	priority queue.Priority
	seq      uint64
	readyAt  time.Time
}

// Driver is an in-memory queue.Driver
type Driver struct {
	mu     sync.Mutex
	queues map[string][]*item
	seq    uint64
}

// NewDriver creates an empty in-memory driver
func NewDriver() *Driver {
	return &Driver{queues: make(map[string][]*item)}
}

// Push stores the job, invisible until the delay elapses. The envelope
// uuid is extracted so waiting jobs can be cancelled by id.
func (d *Driver) Push(ctx context.Context, queueName string, body []byte, priority queue.Priority, delay time.Duration) error {
	var env queue.Envelope
	_ = json.Unmarshal(body, &env)

	d.mu.Lock()
	defer d.mu.Unlock()

	d.seq++
	d.queues[queueName] = append(d.queues[queueName], &item{
		id:       env.ID,
		body:     body,
		priority: priority,
		seq:      d.seq,
		readyAt:  time.Now().Add(delay),
	})
	return nil
}

// Pop blocks until a ready job is available, returning the highest
// priority tier first and FIFO within a tier.
func (d *Driver) Pop(ctx context.Context, queueName string) (*queue.Job, error) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		if it := d.take(queueName); it != nil {
			return &queue.Job{ID: it.id, Body: it.body}, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// Ack is a no-op: Pop already removed the job.
func (d *Driver) Ack(ctx context.Context, job *queue.Job) error { return nil }

// Cancel removes a waiting job by envelope id. Jobs already claimed by
// a worker are not in the driver anymore and run to completion.
func (d *Driver) Cancel(queueName, jobID string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	items := d.queues[queueName]
	for i, it := range items {
		if it.id == jobID {
			d.queues[queueName] = append(items[:i], items[i+1:]...)
			return true
		}
	}
	return false
}

// Len reports how many jobs (ready or delayed) are waiting.
func (d *Driver) Len(queueName string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.queues[queueName])
}

func (d *Driver) take(queueName string) *item {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := time.Now()
	items := d.queues[queueName]
	best := -1
	for i, it := range items {
		if it.readyAt.After(now) {
			continue
		}
		if best == -1 {
			best = i
			continue
		}
		b := items[best]
		if it.priority.Rank() > b.priority.Rank() ||
			(it.priority.Rank() == b.priority.Rank() && it.seq < b.seq) {
			best = i
		}
	}
	if best == -1 {
		return nil
	}
	it := items[best]
	d.queues[queueName] = append(items[:best], items[best+1:]...)
	return it
}
