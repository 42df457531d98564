package database

import (
	"context"
	"database/sql"
	"time"
)

// DatabaseFailedJobProvider is the SQL dead-letter sink. Every job the
// worker gives up on lands here with its final envelope and the error
// that killed it, keyed by queue for operator triage.
type DatabaseFailedJobProvider struct {
	db    *sql.DB
	table string
}

// NewDatabaseFailedJobProvider creates a provider writing to the given
// table; an empty name falls back to "failed_jobs".
func NewDatabaseFailedJobProvider(db *sql.DB, tableName string) *DatabaseFailedJobProvider {
	if tableName == "" {
		tableName = "failed_jobs"
	}
	return &DatabaseFailedJobProvider{
		db:    db,
		table: tableName,
	}
}

// Log records a dead-lettered job. payload is the final JSON envelope,
// attempt counter included.
func (p *DatabaseFailedJobProvider) Log(ctx context.Context, connection string, queue string, payload []byte, exception string) error {
	query := `
		INSERT INTO ` + p.table + ` (connection, queue, payload, exception, failed_at)
		VALUES (?, ?, ?, ?, ?)`

	_, err := p.db.ExecContext(ctx, query, connection, queue, payload, exception, time.Now().UTC())
	return err
}
