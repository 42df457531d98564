package payment

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/payvide/payworker/pkg/errs"
)

func paymentRows(orderID string, status Status) *sqlmock.Rows {
	now := time.Now().UTC()
	return sqlmock.NewRows([]string{
		"id", "order_id", "amount", "currency", "status", "payment_method", "transaction_id",
		"customer_email", "customer_name", "customer_phone", "product_info", "metadata",
		"created_at", "paid_at", "updated_at",
	}).AddRow("pay-1", orderID, "149.99", "USD", string(status), "card", "",
		"enc-email", "enc-name", "enc-phone", "enc-product", "", now, nil, now)
}

func TestSQLStore_CreatePayment_New(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer db.Close()

	store := NewSQLStore(db)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM payments WHERE order_id").
		WithArgs("ord-1").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectExec("INSERT INTO payments").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO payment_history").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	p := &Payment{OrderID: "ord-1", Amount: decimalFromString("149.99"), Currency: "USD"}
	stored, created, err := store.CreatePayment(context.Background(), p, "payment created")
	if err != nil {
		t.Fatalf("error was not expected while creating payment: %s", err)
	}
	if !created {
		t.Error("expected created=true")
	}
	if stored.ID == "" {
		t.Error("expected a generated payment id")
	}
	if stored.Status != StatusPending {
		t.Errorf("expected pending, got %s", stored.Status)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("there were unfulfilled expectations: %s", err)
	}
}

func TestSQLStore_CreatePayment_Duplicate(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer db.Close()

	store := NewSQLStore(db)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM payments WHERE order_id").
		WithArgs("ord-1").
		WillReturnRows(paymentRows("ord-1", StatusPending))
	mock.ExpectCommit()

	p := &Payment{OrderID: "ord-1", Amount: decimalFromString("149.99"), Currency: "USD"}
	stored, created, err := store.CreatePayment(context.Background(), p, "payment created")
	if err != nil {
		t.Fatalf("error was not expected while creating payment: %s", err)
	}
	if created {
		t.Error("expected created=false for duplicate order id")
	}
	if stored.ID != "pay-1" {
		t.Errorf("expected existing row back, got id %s", stored.ID)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("there were unfulfilled expectations: %s", err)
	}
}

func TestSQLStore_Transition_AppliesMutationAndHistory(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer db.Close()

	store := NewSQLStore(db)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM payments WHERE order_id").
		WithArgs("ord-1").
		WillReturnRows(paymentRows("ord-1", StatusPending))
	mock.ExpectExec("UPDATE payments SET").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO payment_history").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	p, err := store.Transition(context.Background(), "ord-1", func(p *Payment) (*Mutation, error) {
		return &Mutation{Status: StatusCompleted, Notes: "gateway callback", TransactionID: "txn-1"}, nil
	})
	if err != nil {
		t.Fatalf("error was not expected while transitioning: %s", err)
	}
	if p.Status != StatusCompleted {
		t.Errorf("expected completed, got %s", p.Status)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("there were unfulfilled expectations: %s", err)
	}
}

func TestSQLStore_Transition_NoChangeWritesNothing(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer db.Close()

	store := NewSQLStore(db)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM payments WHERE order_id").
		WithArgs("ord-1").
		WillReturnRows(paymentRows("ord-1", StatusCompleted))
	mock.ExpectCommit()

	_, err = store.Transition(context.Background(), "ord-1", func(p *Payment) (*Mutation, error) {
		return &Mutation{NoChange: true}, nil
	})
	if err != nil {
		t.Fatalf("error was not expected: %s", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("there were unfulfilled expectations: %s", err)
	}
}

func TestSQLStore_Transition_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer db.Close()

	store := NewSQLStore(db)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM payments WHERE order_id").
		WithArgs("ord-missing").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	_, err = store.Transition(context.Background(), "ord-missing", func(p *Payment) (*Mutation, error) {
		t.Fatal("fn must not run for a missing row")
		return nil, nil
	})

	var nf *errs.NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
}

func TestSQLStore_ArchiveBefore(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer db.Close()

	store := NewSQLStore(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO payments_archive").
		WillReturnResult(sqlmock.NewResult(0, 4))
	mock.ExpectExec("DELETE FROM payments").
		WillReturnResult(sqlmock.NewResult(0, 4))
	mock.ExpectCommit()

	archived, deleted, err := store.ArchiveBefore(context.Background(), time.Now().UTC())
	if err != nil {
		t.Fatalf("error was not expected while archiving: %s", err)
	}
	if archived != 4 || deleted != 4 {
		t.Errorf("expected 4/4, got %d/%d", archived, deleted)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("there were unfulfilled expectations: %s", err)
	}
}
