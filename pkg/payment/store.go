package payment

import (
	"context"
	"time"
)

// Mutation describes the outcome of a guarded read-modify-write. A nil
// mutation or NoChange commits nothing and appends no history, which is
// how idempotent redeliveries stay invisible in the ledger.
type Mutation struct {
	Status        Status
	Notes         string
	PaymentMethod string
	TransactionID string
	PaidAt        *time.Time
	Metadata      string
	NoChange      bool
}

// Store persists payments, their history ledger and refunds. Writes
// that depend on the current row state happen under a row lock inside a
// short transaction; callers keep slow work (crypto, network) outside.
type Store interface {
	// CreatePayment inserts p and its initial history row. If a payment
	// with the same order id already exists it is returned unchanged
	// with created=false and no rows are written.
	CreatePayment(ctx context.Context, p *Payment, note string) (existing *Payment, created bool, err error)

	// GetByOrderID returns the payment or errs.NotFoundError.
	GetByOrderID(ctx context.Context, orderID string) (*Payment, error)

	// GetByPaymentID is GetByOrderID keyed by the internal payment id.
	GetByPaymentID(ctx context.Context, paymentID string) (*Payment, error)

	// Transition locks the payment row, calls fn with the current state
	// and applies the returned mutation plus one history row in the
	// same transaction. fn's error aborts the transaction and is
	// returned as-is.
	Transition(ctx context.Context, orderID string, fn func(p *Payment) (*Mutation, error)) (*Payment, error)

	// CreateRefund locks the payment row, runs check against it and
	// inserts r if check passes.
	CreateRefund(ctx context.Context, orderID string, r *Refund, check func(p *Payment) error) error

	// GetRefund returns the refund or errs.NotFoundError.
	GetRefund(ctx context.Context, refundID string) (*Refund, error)

	// UpdateRefundStatus moves a refund to its settled or rejected
	// terminal state.
	UpdateRefundStatus(ctx context.Context, refundID string, status RefundStatus) error

	// ListPendingBefore returns order ids of payments still pending and
	// created before cutoff.
	ListPendingBefore(ctx context.Context, cutoff time.Time) ([]string, error)

	// History returns the ledger rows for a payment, oldest first.
	History(ctx context.Context, orderID string) ([]History, error)

	// ArchiveBefore copies terminal payments last updated before cutoff
	// into the archive table and deletes the originals. Pending rows
	// are never touched regardless of age.
	ArchiveBefore(ctx context.Context, cutoff time.Time) (archived int64, deleted int64, err error)
}
