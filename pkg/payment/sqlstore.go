package payment

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/payvide/payworker/pkg/errs"
)

const paymentColumns = `id, order_id, amount, currency, status, payment_method, transaction_id,
customer_email, customer_name, customer_phone, product_info, metadata, created_at, paid_at, updated_at`

// SQLStore implements Store on database/sql. All state-dependent writes
// use SELECT ... FOR UPDATE inside a transaction that is held only for
// the read-modify-write itself.
type SQLStore struct {
	db *sql.DB
}

// NewSQLStore creates a new SQL-backed payment store.
func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db}
}

func scanPayment(row interface{ Scan(...any) error }) (*Payment, error) {
	var p Payment
	var paidAt sql.NullTime
	err := row.Scan(&p.ID, &p.OrderID, &p.Amount, &p.Currency, &p.Status, &p.PaymentMethod,
		&p.TransactionID, &p.CustomerEmail, &p.CustomerName, &p.CustomerPhone,
		&p.ProductInfo, &p.Metadata, &p.CreatedAt, &paidAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if paidAt.Valid {
		t := paidAt.Time
		p.PaidAt = &t
	}
	return &p, nil
}

func (s *SQLStore) CreatePayment(ctx context.Context, p *Payment, note string) (*Payment, bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, err
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE order_id = ? FOR UPDATE`, p.OrderID)
	existing, err := scanPayment(row)
	if err == nil {
		// Duplicate submission: hand back the original row untouched.
		return existing, false, tx.Commit()
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, false, err
	}

	now := time.Now().UTC()
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	p.Status = StatusPending
	p.CreatedAt = now
	p.UpdatedAt = now

	_, err = tx.ExecContext(ctx,
		`INSERT INTO payments (id, order_id, amount, currency, status, payment_method, transaction_id,
customer_email, customer_name, customer_phone, product_info, metadata, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.OrderID, p.Amount, p.Currency, p.Status, p.PaymentMethod, p.TransactionID,
		p.CustomerEmail, p.CustomerName, p.CustomerPhone, p.ProductInfo, p.Metadata,
		p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return nil, false, err
	}

	if err := insertHistory(ctx, tx, p.ID, StatusPending, note, now); err != nil {
		return nil, false, err
	}

	return p, true, tx.Commit()
}

func (s *SQLStore) GetByOrderID(ctx context.Context, orderID string) (*Payment, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE order_id = ?`, orderID)
	p, err := scanPayment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &errs.NotFoundError{Entity: "payment", Key: orderID}
	}
	return p, err
}

func (s *SQLStore) GetByPaymentID(ctx context.Context, paymentID string) (*Payment, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE id = ?`, paymentID)
	p, err := scanPayment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &errs.NotFoundError{Entity: "payment", Key: paymentID}
	}
	return p, err
}

func (s *SQLStore) Transition(ctx context.Context, orderID string, fn func(p *Payment) (*Mutation, error)) (*Payment, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE order_id = ? FOR UPDATE`, orderID)
	p, err := scanPayment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &errs.NotFoundError{Entity: "payment", Key: orderID}
	}
	if err != nil {
		return nil, err
	}

	m, err := fn(p)
	if err != nil {
		return nil, err
	}
	if m == nil || m.NoChange {
		return p, tx.Commit()
	}

	now := time.Now().UTC()
	p.Status = m.Status
	p.UpdatedAt = now
	if m.PaymentMethod != "" {
		p.PaymentMethod = m.PaymentMethod
	}
	if m.TransactionID != "" {
		p.TransactionID = m.TransactionID
	}
	if m.PaidAt != nil {
		p.PaidAt = m.PaidAt
	}
	if m.Metadata != "" {
		p.Metadata = m.Metadata
	}

	var paidAt sql.NullTime
	if p.PaidAt != nil {
		paidAt = sql.NullTime{Time: *p.PaidAt, Valid: true}
	}
	_, err = tx.ExecContext(ctx,
		`UPDATE payments SET status = ?, payment_method = ?, transaction_id = ?, metadata = ?, paid_at = ?, updated_at = ?
WHERE id = ?`,
		p.Status, p.PaymentMethod, p.TransactionID, p.Metadata, paidAt, p.UpdatedAt, p.ID)
	if err != nil {
		return nil, err
	}

	if err := insertHistory(ctx, tx, p.ID, m.Status, m.Notes, now); err != nil {
		return nil, err
	}

	return p, tx.Commit()
}

func insertHistory(ctx context.Context, tx *sql.Tx, paymentID string, status Status, notes string, at time.Time) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO payment_history (payment_id, status, notes, created_at) VALUES (?, ?, ?, ?)`,
		paymentID, status, notes, at)
	return err
}

func (s *SQLStore) CreateRefund(ctx context.Context, orderID string, r *Refund, check func(p *Payment) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE order_id = ? FOR UPDATE`, orderID)
	p, err := scanPayment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return &errs.NotFoundError{Entity: "payment", Key: orderID}
	}
	if err != nil {
		return err
	}

	if err := check(p); err != nil {
		return err
	}

	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	r.PaymentID = p.ID
	r.Status = RefundPending
	r.CreatedAt = time.Now().UTC()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO refunds (id, payment_id, amount, reason, processed_by, status, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.PaymentID, r.Amount, r.Reason, r.ProcessedBy, r.Status, r.CreatedAt)
	if err != nil {
		return err
	}

	return tx.Commit()
}

func (s *SQLStore) GetRefund(ctx context.Context, refundID string) (*Refund, error) {
	var r Refund
	err := s.db.QueryRowContext(ctx,
		`SELECT id, payment_id, amount, reason, processed_by, status, created_at FROM refunds WHERE id = ?`,
		refundID).
		Scan(&r.ID, &r.PaymentID, &r.Amount, &r.Reason, &r.ProcessedBy, &r.Status, &r.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &errs.NotFoundError{Entity: "refund", Key: refundID}
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *SQLStore) UpdateRefundStatus(ctx context.Context, refundID string, status RefundStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE refunds SET status = ? WHERE id = ? AND status = ?`,
		status, refundID, RefundPending)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return &errs.StateConflictError{Entity: "refund", Current: "settled or missing", Wanted: string(status)}
	}
	return nil
}

func (s *SQLStore) ListPendingBefore(ctx context.Context, cutoff time.Time) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT order_id FROM payments WHERE status = ? AND created_at < ? ORDER BY created_at ASC`,
		StatusPending, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *SQLStore) History(ctx context.Context, orderID string) ([]History, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT h.id, h.payment_id, h.status, h.notes, h.created_at
FROM payment_history h JOIN payments p ON p.id = h.payment_id
WHERE p.order_id = ? ORDER BY h.id ASC`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []History
	for rows.Next() {
		var h History
		if err := rows.Scan(&h.ID, &h.PaymentID, &h.Status, &h.Notes, &h.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

func (s *SQLStore) ArchiveBefore(ctx context.Context, cutoff time.Time) (int64, int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, 0, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO payments_archive SELECT * FROM payments WHERE status <> ? AND updated_at < ?`,
		StatusPending, cutoff)
	if err != nil {
		return 0, 0, err
	}
	archived, err := res.RowsAffected()
	if err != nil {
		return 0, 0, err
	}

	res, err = tx.ExecContext(ctx,
		`DELETE FROM payments WHERE status <> ? AND updated_at < ?`,
		StatusPending, cutoff)
	if err != nil {
		return 0, 0, err
	}
	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, 0, err
	}

	return archived, deleted, tx.Commit()
}
