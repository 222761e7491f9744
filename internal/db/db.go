// Package db opens the warehouse connections compiled statements run
// against and seeds the bundled sample warehouse.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Supported database/sql driver names.
const (
	DriverDuckDB = "duckdb"
	DriverSQLite = "sqlite3"
)

const pingTimeout = 5 * time.Second

// Open opens a read pool for driver. An empty DuckDB dsn is an in-memory
// database.
func Open(ctx context.Context, driver, dsn string) (*sql.DB, error) {
	switch driver {
	case DriverDuckDB, "":
		return OpenDuckDB(ctx, dsn)
	case DriverSQLite, "sqlite":
		return OpenSQLite(ctx, dsn, true)
	default:
		return nil, fmt.Errorf("unsupported driver %q: must be %q or %q", driver, DriverDuckDB, DriverSQLite)
	}
}

// ping verifies the pool is usable and closes it when it is not.
func ping(ctx context.Context, db *sql.DB, name string) error {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("ping %s: %w", name, err)
	}
	return nil
}
