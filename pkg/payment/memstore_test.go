package payment

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/payvide/payworker/pkg/errs"
)

// memStore is an in-memory Store for exercising the service without a
// database. It mirrors the SQL store's contract, including the
// no-history rule for NoChange mutations.
type memStore struct {
	mu       sync.Mutex
	byOrder  map[string]*Payment
	byID     map[string]*Payment
	history  map[string][]History // keyed by payment id
	refunds  map[string]*Refund
	archived map[string]*Payment
	histSeq  int64
}

func newMemStore() *memStore {
	return &memStore{
		byOrder:  make(map[string]*Payment),
		byID:     make(map[string]*Payment),
		history:  make(map[string][]History),
		refunds:  make(map[string]*Refund),
		archived: make(map[string]*Payment),
	}
}

func (m *memStore) appendHistory(paymentID string, status Status, notes string, at time.Time) {
	m.histSeq++
	m.history[paymentID] = append(m.history[paymentID], History{
		ID:        m.histSeq,
		PaymentID: paymentID,
		Status:    status,
		Notes:     notes,
		CreatedAt: at,
	})
}

func (m *memStore) CreatePayment(ctx context.Context, p *Payment, note string) (*Payment, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.byOrder[p.OrderID]; ok {
		cp := *existing
		return &cp, false, nil
	}

	now := time.Now().UTC()
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	p.Status = StatusPending
	p.CreatedAt = now
	p.UpdatedAt = now

	cp := *p
	m.byOrder[p.OrderID] = &cp
	m.byID[p.ID] = &cp
	m.appendHistory(p.ID, StatusPending, note, now)
	return p, true, nil
}

func (m *memStore) GetByOrderID(ctx context.Context, orderID string) (*Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.byOrder[orderID]
	if !ok {
		return nil, &errs.NotFoundError{Entity: "payment", Key: orderID}
	}
	cp := *p
	return &cp, nil
}

func (m *memStore) GetByPaymentID(ctx context.Context, paymentID string) (*Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.byID[paymentID]
	if !ok {
		return nil, &errs.NotFoundError{Entity: "payment", Key: paymentID}
	}
	cp := *p
	return &cp, nil
}

func (m *memStore) Transition(ctx context.Context, orderID string, fn func(p *Payment) (*Mutation, error)) (*Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.byOrder[orderID]
	if !ok {
		return nil, &errs.NotFoundError{Entity: "payment", Key: orderID}
	}

	snapshot := *p
	mut, err := fn(&snapshot)
	if err != nil {
		return nil, err
	}
	if mut == nil || mut.NoChange {
		cp := *p
		return &cp, nil
	}

	now := time.Now().UTC()
	p.Status = mut.Status
	p.UpdatedAt = now
	if mut.PaymentMethod != "" {
		p.PaymentMethod = mut.PaymentMethod
	}
	if mut.TransactionID != "" {
		p.TransactionID = mut.TransactionID
	}
	if mut.PaidAt != nil {
		p.PaidAt = mut.PaidAt
	}
	if mut.Metadata != "" {
		p.Metadata = mut.Metadata
	}
	m.appendHistory(p.ID, mut.Status, mut.Notes, now)

	cp := *p
	return &cp, nil
}

func (m *memStore) CreateRefund(ctx context.Context, orderID string, r *Refund, check func(p *Payment) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.byOrder[orderID]
	if !ok {
		return &errs.NotFoundError{Entity: "payment", Key: orderID}
	}
	snapshot := *p
	if err := check(&snapshot); err != nil {
		return err
	}

	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	r.PaymentID = p.ID
	r.Status = RefundPending
	r.CreatedAt = time.Now().UTC()

	cp := *r
	m.refunds[r.ID] = &cp
	return nil
}

func (m *memStore) GetRefund(ctx context.Context, refundID string) (*Refund, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.refunds[refundID]
	if !ok {
		return nil, &errs.NotFoundError{Entity: "refund", Key: refundID}
	}
	cp := *r
	return &cp, nil
}

func (m *memStore) UpdateRefundStatus(ctx context.Context, refundID string, status RefundStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.refunds[refundID]
	if !ok || r.Status != RefundPending {
		return &errs.StateConflictError{Entity: "refund", Current: "settled or missing", Wanted: string(status)}
	}
	r.Status = status
	return nil
}

func (m *memStore) ListPendingBefore(ctx context.Context, cutoff time.Time) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []string
	for _, p := range m.byOrder {
		if p.Status == StatusPending && p.CreatedAt.Before(cutoff) {
			ids = append(ids, p.OrderID)
		}
	}
	return ids, nil
}

func (m *memStore) History(ctx context.Context, orderID string) ([]History, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.byOrder[orderID]
	if !ok {
		return nil, &errs.NotFoundError{Entity: "payment", Key: orderID}
	}
	out := make([]History, len(m.history[p.ID]))
	copy(out, m.history[p.ID])
	return out, nil
}

func (m *memStore) ArchiveBefore(ctx context.Context, cutoff time.Time) (int64, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for orderID, p := range m.byOrder {
		if p.Status != StatusPending && p.UpdatedAt.Before(cutoff) {
			m.archived[orderID] = p
			delete(m.byOrder, orderID)
			delete(m.byID, p.ID)
			n++
		}
	}
	return n, n, nil
}

// backdate rewrites timestamps so sweep and archive tests can age rows.
func (m *memStore) backdate(orderID string, createdAt, updatedAt time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.byOrder[orderID]; ok {
		p.CreatedAt = createdAt
		p.UpdatedAt = updatedAt
	}
}

var _ Store = (*memStore)(nil)

// decimalFromString is a test helper that panics on bad literals.
func decimalFromString(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}
