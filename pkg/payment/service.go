package payment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/payvide/payworker/pkg/cache"
	"github.com/payvide/payworker/pkg/crypto"
	"github.com/payvide/payworker/pkg/errs"
	"github.com/payvide/payworker/pkg/gateway"
	"github.com/payvide/payworker/pkg/token"
)

// Service is the payment state machine. It owns every status change:
// validation, legality of the transition, PII encryption and the
// append-only history ledger all funnel through here. Crypto and event
// fan-out happen outside the store's transactions.
type Service struct {
	store  Store
	enc    *crypto.Encryptor
	tokens *token.Service
	events Events

	dedup     cache.Store
	timeout   time.Duration
	retention time.Duration
	now       func() time.Time
}

// dedupTTL keeps callback markers around long enough to absorb the
// gateway's redelivery window.
const dedupTTL = 24 * time.Hour

// NewService builds the payment service. events may be nil.
func NewService(store Store, enc *crypto.Encryptor, tokens *token.Service, events Events, timeoutMinutes, retentionDays int) *Service {
	if timeoutMinutes <= 0 {
		timeoutMinutes = 60
	}
	if retentionDays <= 0 {
		retentionDays = 90
	}
	if events == nil {
		events = NopEvents{}
	}
	return &Service{
		store:     store,
		enc:       enc,
		tokens:    tokens,
		events:    events,
		timeout:   time.Duration(timeoutMinutes) * time.Minute,
		retention: time.Duration(retentionDays) * 24 * time.Hour,
		now:       time.Now,
	}
}

// CreateInput carries plaintext fields for a new payment. The service
// encrypts PII before anything reaches the store.
type CreateInput struct {
	OrderID       string
	Amount        decimal.Decimal
	Currency      string
	PaymentMethod string
	CustomerEmail string
	CustomerName  string
	CustomerPhone string
	ProductInfo   string
}

func (in CreateInput) validate() error {
	if in.OrderID == "" {
		return &errs.ValidationError{Field: "orderId", Msg: "is required"}
	}
	if !in.Amount.IsPositive() {
		return &errs.ValidationError{Field: "amount", Msg: "must be positive"}
	}
	if in.Currency == "" {
		return &errs.ValidationError{Field: "currency", Msg: "is required"}
	}
	if in.CustomerEmail == "" {
		return &errs.ValidationError{Field: "customerEmail", Msg: "is required"}
	}
	return nil
}

// CreatePayment records a new pending payment. Resubmitting an order id
// returns the existing row with created=false; no duplicate rows, no
// extra history.
func (s *Service) CreatePayment(ctx context.Context, in CreateInput) (*Payment, bool, error) {
	if err := in.validate(); err != nil {
		return nil, false, err
	}

	p := &Payment{
		OrderID:       in.OrderID,
		Amount:        in.Amount,
		Currency:      strings.ToUpper(in.Currency),
		PaymentMethod: in.PaymentMethod,
	}

	var err error
	if p.CustomerEmail, err = s.enc.Encrypt(in.CustomerEmail); err != nil {
		return nil, false, err
	}
	if p.CustomerName, err = s.enc.Encrypt(in.CustomerName); err != nil {
		return nil, false, err
	}
	if p.CustomerPhone, err = s.enc.Encrypt(in.CustomerPhone); err != nil {
		return nil, false, err
	}
	if p.ProductInfo, err = s.enc.Encrypt(in.ProductInfo); err != nil {
		return nil, false, err
	}

	stored, created, err := s.store.CreatePayment(ctx, p, "payment created")
	if err != nil {
		return nil, false, err
	}
	if !created {
		log.Info().Str("order_id", in.OrderID).Msg("duplicate create, returning existing payment")
	}
	return stored, created, nil
}

// callbackStatus maps the gateway's status vocabulary onto the internal
// lifecycle. Unknown values are a validation failure, not a retry.
func callbackStatus(raw string) (Status, error) {
	switch strings.ToLower(raw) {
	case "completed", "success", "paid":
		return StatusCompleted, nil
	case "failed", "error", "declined":
		return StatusFailed, nil
	case "cancelled", "canceled":
		return StatusCancelled, nil
	default:
		return "", &errs.ValidationError{Field: "status", Msg: fmt.Sprintf("unknown gateway status %q", raw)}
	}
}

// WithDedupCache installs a cache used as a fast path for duplicate
// callbacks. The row lock stays authoritative; losing the cache only
// costs an extra no-op transaction.
func (s *Service) WithDedupCache(store cache.Store) *Service {
	s.dedup = store
	return s
}

func dedupKey(orderID string, status Status) string {
	return "callback:" + orderID + ":" + string(status)
}

// ProcessCallback applies a verified gateway notification. Redelivery
// of a status the payment already holds is a silent no-op; a terminal
// row never moves to a different terminal status.
func (s *Service) ProcessCallback(ctx context.Context, cb *gateway.Callback) error {
	if cb.OrderID == "" {
		return &errs.ValidationError{Field: "order_id", Msg: "is required"}
	}
	target, err := callbackStatus(cb.Status)
	if err != nil {
		return err
	}

	if s.dedup != nil {
		if _, err := s.dedup.Get(ctx, dedupKey(cb.OrderID, target)); err == nil {
			log.Info().Str("order_id", cb.OrderID).Str("status", cb.Status).Msg("duplicate callback dropped at cache")
			return nil
		}
	}

	var from Status
	applied := false
	p, err := s.store.Transition(ctx, cb.OrderID, func(p *Payment) (*Mutation, error) {
		if p.Status == target {
			return &Mutation{NoChange: true}, nil
		}
		if !CanTransition(p.Status, target) {
			return nil, &errs.StateConflictError{Entity: "payment", Current: string(p.Status), Wanted: string(target)}
		}

		from = p.Status
		applied = true
		m := &Mutation{
			Status:        target,
			Notes:         "gateway callback",
			PaymentMethod: cb.PaymentMethod,
			TransactionID: cb.TransactionID,
		}
		if target == StatusCompleted {
			t := s.now().UTC()
			m.PaidAt = &t
		}
		return m, nil
	})
	if err != nil {
		return err
	}

	if applied {
		if s.dedup != nil {
			if cacheErr := s.dedup.Put(ctx, dedupKey(cb.OrderID, target), "1", dedupTTL); cacheErr != nil {
				log.Warn().Err(cacheErr).Str("order_id", cb.OrderID).Msg("error writing callback dedup marker")
			}
		}
		s.events.PaymentTransitioned(ctx, Transition{
			OrderID: p.OrderID,
			From:    from,
			To:      target,
			Notes:   "gateway callback",
			At:      s.now().UTC(),
		})
	} else {
		log.Info().Str("order_id", cb.OrderID).Str("status", cb.Status).Msg("duplicate callback ignored")
	}
	return nil
}

// UpdateStatus is the manual transition path. It enforces the same
// legality table as callbacks and always appends a history row.
func (s *Service) UpdateStatus(ctx context.Context, orderID string, to Status, notes string) error {
	if !to.Valid() {
		return &errs.ValidationError{Field: "status", Msg: fmt.Sprintf("unknown status %q", to)}
	}

	var from Status
	p, err := s.store.Transition(ctx, orderID, func(p *Payment) (*Mutation, error) {
		if !CanTransition(p.Status, to) {
			return nil, &errs.StateConflictError{Entity: "payment", Current: string(p.Status), Wanted: string(to)}
		}
		from = p.Status
		return &Mutation{Status: to, Notes: notes}, nil
	})
	if err != nil {
		return err
	}

	s.events.PaymentTransitioned(ctx, Transition{
		OrderID: p.OrderID,
		From:    from,
		To:      to,
		Notes:   notes,
		At:      s.now().UTC(),
	})
	return nil
}

// VerifyPayment checks that an order exists, is completed and matches
// the expected amount and currency. A mismatch is a validation failure
// so callers never retry it.
func (s *Service) VerifyPayment(ctx context.Context, orderID string, amount decimal.Decimal, currency string) error {
	p, err := s.store.GetByOrderID(ctx, orderID)
	if err != nil {
		return err
	}
	if p.Status != StatusCompleted {
		return &errs.StateConflictError{Entity: "payment", Current: string(p.Status), Wanted: string(StatusCompleted)}
	}
	if !p.Amount.Equal(amount) {
		return &errs.ValidationError{Field: "amount", Msg: fmt.Sprintf("expected %s, recorded %s", amount, p.Amount)}
	}
	if !strings.EqualFold(p.Currency, currency) {
		return &errs.ValidationError{Field: "currency", Msg: fmt.Sprintf("expected %s, recorded %s", currency, p.Currency)}
	}
	return nil
}

// RefundPayment records a refund request against a completed payment.
// The request starts pending; SettleRefund moves the payment itself.
func (s *Service) RefundPayment(ctx context.Context, orderID string, amount decimal.Decimal, reason, processedBy string) (*Refund, error) {
	if !amount.IsPositive() {
		return nil, &errs.ValidationError{Field: "amount", Msg: "must be positive"}
	}

	encReason, err := s.enc.Encrypt(reason)
	if err != nil {
		return nil, err
	}

	r := &Refund{
		Amount:      amount,
		Reason:      encReason,
		ProcessedBy: processedBy,
	}
	err = s.store.CreateRefund(ctx, orderID, r, func(p *Payment) error {
		if p.Status != StatusCompleted {
			return &errs.StateConflictError{Entity: "payment", Current: string(p.Status), Wanted: string(StatusCompleted)}
		}
		if amount.GreaterThan(p.Amount) {
			return &errs.ValidationError{Field: "amount", Msg: fmt.Sprintf("refund %s exceeds captured %s", amount, p.Amount)}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return r, nil
}

// SettleRefund finalizes a pending refund. Approval moves the payment
// to refunded; rejection leaves the payment untouched. The payment
// transition commits before the refund is marked settled, so a refund
// is never settled without its effect reaching the payment and its
// history. A refund whose payment can no longer transition (say a
// second approval after the first already refunded the payment) is
// rejected instead.
func (s *Service) SettleRefund(ctx context.Context, refundID string, approve bool) error {
	r, err := s.store.GetRefund(ctx, refundID)
	if err != nil {
		return err
	}
	if r.Status != RefundPending {
		return &errs.StateConflictError{Entity: "refund", Current: string(r.Status), Wanted: string(RefundPending)}
	}

	if !approve {
		return s.store.UpdateRefundStatus(ctx, refundID, RefundRejected)
	}

	p, err := s.paymentByID(ctx, r.PaymentID)
	if err != nil {
		return err
	}

	var from Status
	_, err = s.store.Transition(ctx, p.OrderID, func(p *Payment) (*Mutation, error) {
		if !CanTransition(p.Status, StatusRefunded) {
			return nil, &errs.StateConflictError{Entity: "payment", Current: string(p.Status), Wanted: string(StatusCompleted)}
		}
		from = p.Status
		return &Mutation{Status: StatusRefunded, Notes: "refund settled"}, nil
	})
	if err != nil {
		var sc *errs.StateConflictError
		if errors.As(err, &sc) {
			if rejErr := s.store.UpdateRefundStatus(ctx, refundID, RefundRejected); rejErr != nil {
				log.Error().Err(rejErr).Str("refund_id", refundID).Msg("error rejecting unsettleable refund")
			}
		}
		return err
	}

	if err := s.store.UpdateRefundStatus(ctx, refundID, RefundSettled); err != nil {
		// Payment already moved; the refund stays pending for an
		// operator to reconcile rather than reading as settled.
		return err
	}

	s.events.PaymentTransitioned(ctx, Transition{
		OrderID: p.OrderID,
		From:    from,
		To:      StatusRefunded,
		Notes:   "refund settled",
		At:      s.now().UTC(),
	})
	return nil
}

// TimeoutSweep moves payments that have sat pending longer than the
// configured window to timed_out. Each candidate is re-checked under
// its row lock, so a callback racing the sweep wins cleanly.
func (s *Service) TimeoutSweep(ctx context.Context) (int, error) {
	cutoff := s.now().UTC().Add(-s.timeout)
	ids, err := s.store.ListPendingBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	reason, err := s.enc.Encrypt(fmt.Sprintf("no gateway response within %s", s.timeout))
	if err != nil {
		return 0, err
	}

	swept := 0
	for _, orderID := range ids {
		applied := false
		_, err := s.store.Transition(ctx, orderID, func(p *Payment) (*Mutation, error) {
			if p.Status != StatusPending {
				// A callback beat the sweep to this row; leave it be.
				return &Mutation{NoChange: true}, nil
			}
			applied = true
			return &Mutation{
				Status:   StatusTimedOut,
				Notes:    "timed out by sweep",
				Metadata: reason,
			}, nil
		})
		if err != nil {
			log.Error().Err(err).Str("order_id", orderID).Msg("timeout sweep: transition failed")
			continue
		}
		// Count and announce only what actually committed.
		if !applied {
			continue
		}
		swept++
		s.events.PaymentTransitioned(ctx, Transition{
			OrderID: orderID,
			From:    StatusPending,
			To:      StatusTimedOut,
			Notes:   "timed out by sweep",
			At:      s.now().UTC(),
		})
	}
	return swept, nil
}

// Cleanup archives terminal payments older than the retention window
// and reports how many rows moved.
func (s *Service) Cleanup(ctx context.Context) (archived, deleted int64, err error) {
	cutoff := s.now().UTC().Add(-s.retention)
	return s.store.ArchiveBefore(ctx, cutoff)
}

// OutcomeToken issues a signed redirect token summarizing the payment
// outcome. When the order id cannot be resolved the token carries an
// unknown status so the outcome page still renders something sane.
func (s *Service) OutcomeToken(ctx context.Context, orderID string) (string, error) {
	p, err := s.store.GetByOrderID(ctx, orderID)
	if err != nil {
		var nf *errs.NotFoundError
		if errors.As(err, &nf) {
			return s.tokens.Create(token.Payload{OrderID: orderID, Status: "unknown"})
		}
		return "", err
	}
	return s.tokens.Create(token.Payload{
		OrderID:       p.OrderID,
		Status:        string(p.Status),
		Amount:        p.Amount,
		Currency:      p.Currency,
		PaymentMethod: p.PaymentMethod,
	})
}

// GetPayment returns the payment with PII decrypted. Undecryptable
// fields degrade to a placeholder instead of failing the read.
func (s *Service) GetPayment(ctx context.Context, orderID string) (*View, error) {
	p, err := s.store.GetByOrderID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return &View{
		Payment:            *p,
		CustomerEmailPlain: s.enc.DecryptOrPlaceholder(p.CustomerEmail),
		CustomerNamePlain:  s.enc.DecryptOrPlaceholder(p.CustomerName),
		CustomerPhonePlain: s.enc.DecryptOrPlaceholder(p.CustomerPhone),
		ProductInfoPlain:   s.enc.DecryptOrPlaceholder(p.ProductInfo),
	}, nil
}

// History exposes the append-only ledger for an order.
func (s *Service) History(ctx context.Context, orderID string) ([]History, error) {
	return s.store.History(ctx, orderID)
}

func (s *Service) paymentByID(ctx context.Context, paymentID string) (*Payment, error) {
	return s.store.GetByPaymentID(ctx, paymentID)
}
