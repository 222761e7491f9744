package db

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
)

// OpenTestSQLite creates the sample warehouse in t.TempDir() and returns a
// read-only pool over it. Both pools are closed on cleanup.
func OpenTestSQLite(t *testing.T) *sql.DB {
	t.Helper()

	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "warehouse.sqlite")

	writeDB, err := OpenSQLite(ctx, path, false)
	if err != nil {
		t.Fatalf("open test sqlite: %v", err)
	}
	if err := SeedSample(writeDB); err != nil {
		_ = writeDB.Close()
		t.Fatalf("seed sample warehouse: %v", err)
	}
	if err := writeDB.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}

	readDB, err := OpenSQLite(ctx, path, true)
	if err != nil {
		t.Fatalf("open test sqlite: %v", err)
	}
	t.Cleanup(func() { _ = readDB.Close() })
	return readDB
}
