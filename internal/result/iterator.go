// Package result turns statement rows into labeled records.
package result

import (
	"errors"
	"fmt"
)

// DefaultBatchSize is the number of rows buffered per fetch.
const DefaultBatchSize = 1000

// ErrConsumed is returned when an iterator is read a second time.
var ErrConsumed = errors.New("result: iterator already consumed")

// Rows is the cursor an iterator reads. *sql.Rows satisfies it.
type Rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close() error
}

// Record is one result row keyed by statement label.
type Record map[string]any

// Option configures an Iterator.
type Option func(*Iterator)

// WithBatchSize sets the number of rows fetched per batch. Non-positive
// sizes keep the default.
func WithBatchSize(n int) Option {
	return func(it *Iterator) {
		if n > 0 {
			it.batchSize = n
		}
	}
}

// WithExcludeIfNull skips rows where any of the given labels is NULL,
// such as aggregate columns of rows the joins found no fact for.
func WithExcludeIfNull(labels ...string) Option {
	return func(it *Iterator) {
		for _, l := range labels {
			it.exclude[l] = true
		}
	}
}

// WithOmitNull leaves the given labels out of records where they are NULL.
// The row itself is kept.
func WithOmitNull(labels ...string) Option {
	return func(it *Iterator) {
		for _, l := range labels {
			it.omit[l] = true
		}
	}
}

// Iterator is a single-pass iterator over labeled records. Rows are fetched
// in fixed-size batches; the cursor is closed once it is exhausted, on the
// first error, or by Close.
type Iterator struct {
	rows      Rows
	labels    []string
	batchSize int
	exclude   map[string]bool
	omit      map[string]bool

	batch   []Record
	pos     int
	current Record
	started bool
	done    bool
	closed  bool
	err     error
}

// New creates an iterator over rows. labels name the columns positionally.
func New(rows Rows, labels []string, opts ...Option) *Iterator {
	it := &Iterator{
		rows:      rows,
		labels:    labels,
		batchSize: DefaultBatchSize,
		exclude:   make(map[string]bool),
		omit:      make(map[string]bool),
	}
	for _, opt := range opts {
		opt(it)
	}
	return it
}

// Labels returns the record labels in column order.
func (it *Iterator) Labels() []string { return it.labels }

// Next advances to the next record. It returns false when the rows are
// exhausted or an error occurred; see Err.
func (it *Iterator) Next() bool {
	it.started = true
	it.current = nil
	if it.err != nil {
		return false
	}
	if it.pos >= len(it.batch) {
		if it.done {
			return false
		}
		if err := it.fill(); err != nil {
			it.err = err
			it.close()
			return false
		}
		if len(it.batch) == 0 {
			return false
		}
	}
	it.current = it.batch[it.pos]
	it.pos++
	return true
}

// fill fetches the next batch.
func (it *Iterator) fill() error {
	it.batch = it.batch[:0]
	it.pos = 0
	for len(it.batch) < it.batchSize {
		if !it.rows.Next() {
			it.done = true
			err := it.rows.Err()
			if cerr := it.close(); err == nil {
				err = cerr
			}
			return err
		}
		rec, ok, err := it.scan()
		if err != nil {
			return err
		}
		if ok {
			it.batch = append(it.batch, rec)
		}
	}
	return nil
}

// scan reads the current row. ok is false when the row is excluded.
func (it *Iterator) scan() (rec Record, ok bool, err error) {
	vals := make([]any, len(it.labels))
	ptrs := make([]any, len(it.labels))
	for i := range vals {
		ptrs[i] = &vals[i]
	}
	if err := it.rows.Scan(ptrs...); err != nil {
		return nil, false, fmt.Errorf("scan row: %w", err)
	}
	rec = make(Record, len(vals))
	for i, v := range vals {
		if b, isBytes := v.([]byte); isBytes {
			v = string(b)
		}
		if v == nil {
			if it.exclude[it.labels[i]] {
				return nil, false, nil
			}
			if it.omit[it.labels[i]] {
				continue
			}
		}
		rec[it.labels[i]] = v
	}
	return rec, true, nil
}

// Record returns the current record.
func (it *Iterator) Record() Record { return it.current }

// Err returns the first error met while iterating.
func (it *Iterator) Err() error { return it.err }

// All reads every remaining record. It fails with ErrConsumed when
// iteration has already started.
func (it *Iterator) All() ([]Record, error) {
	if it.started {
		return nil, ErrConsumed
	}
	var out []Record
	for it.Next() {
		out = append(out, it.current)
	}
	if it.err != nil {
		return nil, it.err
	}
	return out, nil
}

// Close releases the cursor. It is safe to call more than once.
func (it *Iterator) Close() error {
	it.done = true
	it.batch = nil
	it.pos = 0
	return it.close()
}

func (it *Iterator) close() error {
	if it.closed {
		return nil
	}
	it.closed = true
	return it.rows.Close()
}
