package schedule

import (
	"context"
	"database/sql"
	"fmt"
	"hash/crc32"
	"time"
)

// DatabaseLockProvider implements LockProvider on the SQL database:
// GET_LOCK on MySQL, advisory locks on Postgres.
type DatabaseLockProvider struct {
	db     *sql.DB
	driver string // "mysql" or "pgsql"
}

// NewDatabaseLockProvider creates a new database lock provider
func NewDatabaseLockProvider(db *sql.DB, driver string) *DatabaseLockProvider {
	return &DatabaseLockProvider{
		db:     db,
		driver: driver,
	}
}

func (d *DatabaseLockProvider) GetLock(ctx context.Context, name string, duration time.Duration) (bool, error) {
	if isPostgres(d.driver) {
		return d.getPostgresLock(ctx, name)
	}
	return d.getMySQLLock(ctx, name)
}

func (d *DatabaseLockProvider) ReleaseLock(ctx context.Context, name string) error {
	if isPostgres(d.driver) {
		return d.releasePostgresLock(ctx, name)
	}
	return d.releaseMySQLLock(ctx, name)
}

func isPostgres(driver string) bool {
	return driver == "postgres" || driver == "pgsql" || driver == "pq"
}

func (d *DatabaseLockProvider) getMySQLLock(ctx context.Context, name string) (bool, error) {
	// Timeout 0 returns immediately instead of queueing.
	var result sql.NullInt64
	err := d.db.QueryRowContext(ctx, "SELECT GET_LOCK(?, 0)", name).Scan(&result)
	if err != nil {
		return false, err
	}
	if !result.Valid {
		return false, fmt.Errorf("GET_LOCK returned NULL")
	}
	return result.Int64 == 1, nil
}

func (d *DatabaseLockProvider) releaseMySQLLock(ctx context.Context, name string) error {
	var result sql.NullInt64
	return d.db.QueryRowContext(ctx, "SELECT RELEASE_LOCK(?)", name).Scan(&result)
}

func (d *DatabaseLockProvider) getPostgresLock(ctx context.Context, name string) (bool, error) {
	var success bool
	err := d.db.QueryRowContext(ctx, "SELECT pg_try_advisory_lock($1)", d.hashName(name)).Scan(&success)
	if err != nil {
		return false, err
	}
	return success, nil
}

func (d *DatabaseLockProvider) releasePostgresLock(ctx context.Context, name string) error {
	var success bool
	return d.db.QueryRowContext(ctx, "SELECT pg_advisory_unlock($1)", d.hashName(name)).Scan(&success)
}

// hashName maps the lock name onto the bigint key advisory locks need.
func (d *DatabaseLockProvider) hashName(name string) int64 {
	return int64(crc32.ChecksumIEEE([]byte(name)))
}
