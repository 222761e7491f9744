// Package browser executes compiled statements of one cube against a
// database and assembles the results.
package browser

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"starquery/internal/domain"
	"starquery/internal/functions"
	"starquery/internal/mapper"
	"starquery/internal/query"
	"starquery/internal/result"
)

// Options configures a Browser.
type Options struct {
	Locale    string
	Coalesce  bool
	BatchSize int
	Registry  *functions.Registry
	// HideEmptyCells leaves out aggregation cells with a NULL aggregate,
	// the cells outer joins produce for members without facts.
	HideEmptyCells bool
}

// Browser runs aggregations, member listings and fact queries of one cube.
// It is safe for concurrent use.
type Browser struct {
	db      *sql.DB
	cube    *domain.Cube
	builder *query.Builder
	opts    Options
	logger  *slog.Logger
}

// New creates a browser over a linked cube. Mapping problems of the cube
// are reported here.
func New(db *sql.DB, cube *domain.Cube, opts Options, logger *slog.Logger) (*Browser, error) {
	if logger == nil {
		logger = slog.Default()
	}
	m, err := mapper.New(cube, mapper.WithLocale(opts.Locale))
	if err != nil {
		return nil, err
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = result.DefaultBatchSize
	}
	builder := query.NewBuilder(m, query.Options{
		Locale:   opts.Locale,
		Coalesce: opts.Coalesce,
		Registry: opts.Registry,
	})
	return &Browser{
		db:      db,
		cube:    cube,
		builder: builder,
		opts:    opts,
		logger:  logger.With("cube", cube.Name),
	}, nil
}

// Cube returns the browsed cube.
func (b *Browser) Cube() *domain.Cube { return b.cube }

// Builder returns the statement builder of the browser.
func (b *Browser) Builder() *query.Builder { return b.builder }

// execute runs stmt and reads every record.
func (b *Browser) execute(ctx context.Context, op string, stmt *query.Statement, opts ...result.Option) ([]result.Record, error) {
	queryID := uuid.NewString()
	text, args := stmt.SQL()
	b.logger.Debug("executing statement", "query_id", queryID, "op", op, "method", stmt.Method.String(), "sql", text)

	start := time.Now()
	rows, err := b.db.QueryContext(ctx, text, args...)
	if err != nil {
		b.logger.Warn("statement failed", "query_id", queryID, "op", op, "error", err)
		return nil, domain.WrapBackend(op, err)
	}

	opts = append([]result.Option{result.WithBatchSize(b.opts.BatchSize)}, opts...)
	records, err := result.New(rows, stmt.Labels, opts...).All()
	if err != nil {
		b.logger.Warn("reading results failed", "query_id", queryID, "op", op, "error", err)
		return nil, domain.WrapBackend(op, err)
	}

	b.logger.Info("statement executed",
		"query_id", queryID,
		"op", op,
		"rows", len(records),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return records, nil
}

// count runs the row count of stmt.
func (b *Browser) count(ctx context.Context, op string, stmt *query.Statement) (int, error) {
	records, err := b.execute(ctx, op, query.Count(stmt))
	if err != nil {
		return 0, err
	}
	if len(records) == 0 {
		return 0, nil
	}
	return countValue(op, records[0][query.CountLabel])
}

// countValue converts a driver's COUNT result to int.
func countValue(op string, v any) (int, error) {
	n, ok := toInt(v)
	if !ok {
		return 0, domain.WrapBackend(op, fmt.Errorf("unexpected count value %v (%T)", v, v))
	}
	return n, nil
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case uint64:
		return int(n), true
	case float64:
		return int(n), true
	}
	return 0, false
}
