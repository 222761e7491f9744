package db

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/duckdb/duckdb-go/v2" // registers the "duckdb" driver
)

// OpenDuckDB opens a DuckDB database file, or an in-memory database when
// path is empty.
func OpenDuckDB(ctx context.Context, path string) (*sql.DB, error) {
	db, err := sql.Open(DriverDuckDB, path)
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}
	if err := ping(ctx, db, "duckdb"); err != nil {
		return nil, err
	}
	return db, nil
}
