package payment

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/payvide/payworker/pkg/queue"
)

// Transition is the audit record emitted after a status change commits.
type Transition struct {
	OrderID string
	From    Status
	To      Status
	Notes   string
	At      time.Time
}

// Events receives committed transitions. Implementations must not
// block; the state change is already durable when they run.
type Events interface {
	PaymentTransitioned(ctx context.Context, t Transition)
}

// NopEvents discards transitions.
type NopEvents struct{}

func (NopEvents) PaymentTransitioned(context.Context, Transition) {}

// Dispatcher logs each transition as an audit event and enqueues the
// follow-up notification jobs. Enqueue failures are logged, never
// propagated: the transition itself already committed.
type Dispatcher struct {
	publisher *queue.Publisher
	queueName string
}

// NewDispatcher creates a transition dispatcher publishing onto the
// given queue.
func NewDispatcher(publisher *queue.Publisher, queueName string) *Dispatcher {
	return &Dispatcher{publisher: publisher, queueName: queueName}
}

func (d *Dispatcher) PaymentTransitioned(ctx context.Context, t Transition) {
	log.Info().
		Str("order_id", t.OrderID).
		Str("from", string(t.From)).
		Str("to", string(t.To)).
		Str("notes", t.Notes).
		Msg("payment transitioned")

	var operation string
	switch t.To {
	case StatusCompleted:
		operation = OpSendReceipt
	case StatusRefunded:
		operation = OpSendRefundNotice
	default:
		return
	}

	_, err := d.publisher.Dispatch(ctx, d.queueName, operation,
		map[string]any{"orderId": t.OrderID},
		queue.WithPriority(queue.PriorityLow))
	if err != nil {
		log.Error().Err(err).Str("order_id", t.OrderID).Str("operation", operation).
			Msg("error enqueueing notification job")
	}
}
