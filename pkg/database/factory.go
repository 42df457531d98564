package database

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"

	"github.com/payvide/payworker/pkg/config"
)

// Factory creates database connections
type Factory struct{}

// NewFactory creates a new Factory
func NewFactory() *Factory {
	return &Factory{}
}

// Connect opens a pooled connection for the configured backend and
// verifies it with a ping. The payment tables and the database queue
// driver share this pool.
func (f *Factory) Connect(cfg config.DatabaseConfig) (*sql.DB, error) {
	var dsn string
	var driverName string

	switch cfg.Connection {
	case "mysql":
		driverName = "mysql"
		dsn = fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?parseTime=true&loc=UTC",
			cfg.Username, cfg.Password, cfg.Host, cfg.Port, cfg.Database)
	case "pgsql", "postgres":
		driverName = "postgres"
		dsn = fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
			cfg.Host, cfg.Port, cfg.Username, cfg.Password, cfg.Database)
	default:
		return nil, fmt.Errorf("unsupported database connection: %s", cfg.Connection)
	}

	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}
