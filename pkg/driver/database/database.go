package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/payvide/payworker/pkg/config"
	"github.com/payvide/payworker/pkg/queue"
)

// DatabaseDriver implements queue.Driver on a SQL jobs table.
// Expected columns: id, queue, priority, payload, available_at, created_at.
type DatabaseDriver struct {
	db    *sql.DB
	table string
}

// NewDatabaseDriver creates a new database driver
func NewDatabaseDriver(cfg config.DatabaseConfig, db *sql.DB) *DatabaseDriver {
	tableName := cfg.JobsTable
	if tableName == "" {
		tableName = "jobs"
	}
	return &DatabaseDriver{
		db:    db,
		table: tableName,
	}
}

// Pop polls for the next available job, highest priority first and
// FIFO within a tier. SQL doesn't block like Redis, so this loops on a
// ticker until a row shows up or the context ends.
func (d *DatabaseDriver) Pop(ctx context.Context, queueName string) (*queue.Job, error) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		job, err := d.popJob(ctx, queueName)
		if err == nil {
			return job, nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (d *DatabaseDriver) popJob(ctx context.Context, queueName string) (*queue.Job, error) {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	// FOR UPDATE serializes competing workers on the candidate row.
	query := fmt.Sprintf(`
		SELECT id, payload
		FROM %s
		WHERE queue = ? AND available_at <= ?
		ORDER BY priority DESC, id ASC
		LIMIT 1 FOR UPDATE`, d.table)

	now := time.Now().Unix()

	var id int64
	var payload []byte
	if err := tx.QueryRowContext(ctx, query, queueName, now).Scan(&id, &payload); err != nil {
		return nil, err
	}

	if _, err := tx.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE id = ?", d.table), id); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return &queue.Job{
		ID:   fmt.Sprintf("%d", id),
		Body: payload,
	}, nil
}

// Push inserts a job row; a delay shifts available_at into the future.
func (d *DatabaseDriver) Push(ctx context.Context, queueName string, body []byte, priority queue.Priority, delay time.Duration) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (queue, priority, payload, available_at, created_at)
		VALUES (?, ?, ?, ?, ?)`, d.table)

	now := time.Now()
	_, err := d.db.ExecContext(ctx, query, queueName, priority.Rank(), body, now.Add(delay).Unix(), now.Unix())
	return err
}

// Ack is a no-op: popJob deletes the row inside its transaction.
func (d *DatabaseDriver) Ack(ctx context.Context, job *queue.Job) error { return nil }
