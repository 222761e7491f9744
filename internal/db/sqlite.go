package db

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"time"

	_ "github.com/mattn/go-sqlite3" // registers the "sqlite3" driver
)

// SQLite DSN parameters.
const (
	defaultBusyTimeout = "5000" // 5 seconds
	defaultJournalMode = "WAL"
	defaultReadConns   = 4
)

// OpenSQLite opens a *sql.DB pool for the given SQLite file path.
//
// Read-only pools allow several connections and reject writes; writable
// pools hold a single connection.
func OpenSQLite(ctx context.Context, path string, readOnly bool) (*sql.DB, error) {
	db, err := sql.Open(DriverSQLite, buildDSN(path, readOnly))
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if readOnly {
		db.SetMaxOpenConns(defaultReadConns)
		db.SetMaxIdleConns(defaultReadConns)
	} else {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	}
	db.SetConnMaxLifetime(time.Hour)

	if err := ping(ctx, db, "sqlite"); err != nil {
		return nil, err
	}
	return db, nil
}

// buildDSN constructs a SQLite DSN.
func buildDSN(path string, readOnly bool) string {
	params := url.Values{}
	params.Set("_journal_mode", defaultJournalMode)
	params.Set("_busy_timeout", defaultBusyTimeout)
	params.Set("_foreign_keys", "on")
	if readOnly {
		params.Set("_query_only", "true")
	} else {
		params.Set("_txlock", "immediate")
	}
	return path + "?" + params.Encode()
}
