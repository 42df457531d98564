package database

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/payvide/payworker/pkg/config"
	"github.com/payvide/payworker/pkg/queue"
)

func TestDatabaseDriver_Push(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer db.Close()

	driver := NewDatabaseDriver(config.DatabaseConfig{JobsTable: "jobs"}, db)

	queueName := "payments"
	body := []byte(`{"operation":"payment:create"}`)

	mock.ExpectExec("INSERT INTO jobs").
		WithArgs(queueName, queue.PriorityHigh.Rank(), body, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err = driver.Push(context.Background(), queueName, body, queue.PriorityHigh, 0)
	if err != nil {
		t.Errorf("error was not expected while pushing job: %s", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("there were unfulfilled expectations: %s", err)
	}
}

func TestDatabaseDriver_Pop(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer db.Close()

	driver := NewDatabaseDriver(config.DatabaseConfig{JobsTable: "jobs"}, db)

	queueName := "payments"
	body := []byte(`{"operation":"payment:create"}`)

	mock.ExpectBegin()
	rows := sqlmock.NewRows([]string{"id", "payload"}).AddRow(7, body)
	mock.ExpectQuery("SELECT id, payload FROM jobs").
		WithArgs(queueName, sqlmock.AnyArg()).
		WillReturnRows(rows)
	mock.ExpectExec("DELETE FROM jobs").
		WithArgs(7).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	job, err := driver.Pop(ctx, queueName)
	if err != nil {
		t.Fatalf("error was not expected while popping job: %s", err)
	}

	if job.ID != "7" {
		t.Errorf("expected id 7, got %s", job.ID)
	}
	if string(job.Body) != string(body) {
		t.Errorf("expected body %s, got %s", body, job.Body)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("there were unfulfilled expectations: %s", err)
	}
}

func TestFailedJobProvider_Log(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer db.Close()

	provider := NewDatabaseFailedJobProvider(db, "")

	body := []byte(`{"operation":"payment:create"}`)
	mock.ExpectExec("INSERT INTO failed_jobs").
		WithArgs("database", "payments", body, "boom", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	if err := provider.Log(context.Background(), "database", "payments", body, "boom"); err != nil {
		t.Errorf("error was not expected while logging failed job: %s", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("there were unfulfilled expectations: %s", err)
	}
}
