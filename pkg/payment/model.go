package payment

import (
	"time"

	"github.com/shopspring/decimal"
)

// Status is a payment lifecycle state
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
	StatusRefunded  Status = "refunded"
	StatusTimedOut  Status = "timed_out"
)

// Valid reports whether s is a known status
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusCompleted, StatusFailed, StatusCancelled, StatusRefunded, StatusTimedOut:
		return true
	}
	return false
}

// Terminal reports whether s ends the lifecycle. Terminal rows are
// eligible for archival and immutable except completed → refunded.
func (s Status) Terminal() bool {
	return s.Valid() && s != StatusPending
}

// transitions defines the legal state machine edges. Every writer
// (callback processing, manual update, timeout sweep, refund
// settlement) is checked against this table.
var transitions = map[Status][]Status{
	StatusPending:   {StatusCompleted, StatusFailed, StatusCancelled, StatusTimedOut},
	StatusCompleted: {StatusRefunded},
}

// CanTransition reports whether from → to is a legal edge.
func CanTransition(from, to Status) bool {
	for _, t := range transitions[from] {
		if t == to {
			return true
		}
	}
	return false
}

// Payment is a financial transaction record. Customer fields and
// ProductInfo hold ciphertext at rest; Metadata holds encrypted
// operational notes (e.g. the timeout reason).
type Payment struct {
	ID            string
	OrderID       string // unique business key
	Amount        decimal.Decimal
	Currency      string
	Status        Status
	PaymentMethod string
	TransactionID string
	CustomerEmail string
	CustomerName  string
	CustomerPhone string
	ProductInfo   string
	Metadata      string
	CreatedAt     time.Time
	PaidAt        *time.Time
	UpdatedAt     time.Time
}

// History is one append-only ledger row per observed transition.
type History struct {
	ID        int64
	PaymentID string
	Status    Status
	Notes     string
	CreatedAt time.Time
}

// RefundStatus is the sub-lifecycle of a refund request. Creation
// leaves it pending; settlement is a separate update.
type RefundStatus string

const (
	RefundPending  RefundStatus = "pending"
	RefundSettled  RefundStatus = "settled"
	RefundRejected RefundStatus = "rejected"
)

// Refund is a refund request against a completed payment. Reason holds
// ciphertext at rest.
type Refund struct {
	ID          string
	PaymentID   string
	Amount      decimal.Decimal
	Reason      string
	ProcessedBy string
	Status      RefundStatus
	CreatedAt   time.Time
}

// View is a payment with PII decrypted for read paths. Fields that can
// no longer be decrypted carry a placeholder instead of failing the
// whole read.
type View struct {
	Payment
	CustomerEmailPlain string
	CustomerNamePlain  string
	CustomerPhonePlain string
	ProductInfoPlain   string
}
