package db

import (
	"context"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildDSN(t *testing.T) {
	tests := []struct {
		name     string
		readOnly bool
		want     map[string]string
		absent   string
	}{
		{
			name:     "read only",
			readOnly: true,
			want:     map[string]string{"_query_only": "true", "_journal_mode": "WAL", "_busy_timeout": "5000"},
			absent:   "_txlock",
		},
		{
			name:   "writable",
			want:   map[string]string{"_txlock": "immediate", "_foreign_keys": "on"},
			absent: "_query_only",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dsn := buildDSN("/tmp/w.sqlite", tt.readOnly)
			path, query, ok := strings.Cut(dsn, "?")
			require.True(t, ok)
			assert.Equal(t, "/tmp/w.sqlite", path)
			params, err := url.ParseQuery(query)
			require.NoError(t, err)
			for k, v := range tt.want {
				assert.Equal(t, v, params.Get(k), k)
			}
			assert.False(t, params.Has(tt.absent))
		})
	}
}

func TestOpen_UnsupportedDriver(t *testing.T) {
	_, err := Open(context.Background(), "oracle", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unsupported driver "oracle"`)
}

func TestOpenTestSQLite_SeedsSample(t *testing.T) {
	db := OpenTestSQLite(t)

	var count int
	var total float64
	require.NoError(t, db.QueryRow("SELECT COUNT(*), SUM(amount) FROM fact_sales").Scan(&count, &total))
	assert.Equal(t, 6, count)
	assert.InDelta(t, 810.0, total, 1e-9)

	_, err := db.Exec("DELETE FROM fact_sales")
	assert.Error(t, err, "read-only pool must reject writes")
}

func TestOpenDuckDB_InMemory(t *testing.T) {
	db, err := Open(context.Background(), DriverDuckDB, "")
	require.NoError(t, err)
	defer db.Close()

	var n int
	require.NoError(t, db.QueryRow("SELECT 40 + 2").Scan(&n))
	assert.Equal(t, 42, n)
}

func TestSampleModel(t *testing.T) {
	assert.Contains(t, string(SampleModel()), "kind: Model")
}
