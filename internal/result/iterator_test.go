package result

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRows serves fixed rows and counts how far the iterator has read.
type fakeRows struct {
	data    [][]any
	pos     int
	nexts   int
	closed  int
	scanErr error
	err     error
}

func (r *fakeRows) Next() bool {
	r.nexts++
	if r.pos >= len(r.data) {
		return false
	}
	r.pos++
	return true
}

func (r *fakeRows) Scan(dest ...any) error {
	if r.scanErr != nil {
		return r.scanErr
	}
	row := r.data[r.pos-1]
	if len(dest) != len(row) {
		return fmt.Errorf("expected %d destination arguments, got %d", len(row), len(dest))
	}
	for i, v := range row {
		*(dest[i].(*any)) = v
	}
	return nil
}

func (r *fakeRows) Err() error   { return r.err }
func (r *fakeRows) Close() error { r.closed++; return nil }

func numbered(n int) [][]any {
	out := make([][]any, n)
	for i := range out {
		out[i] = []any{int64(i), []byte(fmt.Sprintf("row %d", i))}
	}
	return out
}

func TestIterator_Records(t *testing.T) {
	rows := &fakeRows{data: [][]any{
		{int64(2013), []byte("books"), 10.5},
		{int64(2013), "music", nil},
	}}
	it := New(rows, []string{"date.year", "product.category", "amount_sum"})

	records, err := it.All()
	require.NoError(t, err)
	assert.Equal(t, []Record{
		{"date.year": int64(2013), "product.category": "books", "amount_sum": 10.5},
		{"date.year": int64(2013), "product.category": "music", "amount_sum": nil},
	}, records)
	assert.Equal(t, 1, rows.closed)
}

func TestIterator_Batching(t *testing.T) {
	rows := &fakeRows{data: numbered(5)}
	it := New(rows, []string{"id", "label"}, WithBatchSize(2))

	require.True(t, it.Next())
	assert.Equal(t, 2, rows.nexts, "first batch is fetched at once")
	assert.Equal(t, "row 0", it.Record()["label"])

	require.True(t, it.Next())
	assert.Equal(t, 2, rows.nexts, "second record comes from the buffer")

	require.True(t, it.Next())
	assert.Equal(t, 4, rows.nexts)

	var ids []int64
	ids = append(ids, 2)
	for it.Next() {
		ids = append(ids, it.Record()["id"].(int64))
	}
	require.NoError(t, it.Err())
	assert.Equal(t, []int64{2, 3, 4}, ids)
	assert.Equal(t, 1, rows.closed)

	assert.False(t, it.Next(), "exhausted iterator stays exhausted")
	assert.Nil(t, it.Record())
}

func TestIterator_ExactBatchBoundary(t *testing.T) {
	rows := &fakeRows{data: numbered(4)}
	it := New(rows, []string{"id", "label"}, WithBatchSize(2))

	records, err := it.All()
	require.NoError(t, err)
	assert.Len(t, records, 4)
}

func TestIterator_ExcludeIfNull(t *testing.T) {
	rows := &fakeRows{data: [][]any{
		{"books", nil},
		{"music", 3.0},
		{"films", nil},
		{"games", 5.0},
	}}
	it := New(rows, []string{"product.category", "amount_sum"}, WithExcludeIfNull("amount_sum"), WithBatchSize(1))

	records, err := it.All()
	require.NoError(t, err)
	assert.Equal(t, []Record{
		{"product.category": "music", "amount_sum": 3.0},
		{"product.category": "games", "amount_sum": 5.0},
	}, records)
}

func TestIterator_ExcludeIfNull_AllRows(t *testing.T) {
	rows := &fakeRows{data: [][]any{{"books", nil}}}
	it := New(rows, []string{"product.category", "amount_sum"}, WithExcludeIfNull("amount_sum"))

	records, err := it.All()
	require.NoError(t, err)
	assert.Empty(t, records)
	assert.Equal(t, 1, rows.closed)
}

func TestIterator_OmitNull(t *testing.T) {
	rows := &fakeRows{data: [][]any{
		{"books", nil},
		{"music", "Music"},
	}}
	it := New(rows, []string{"product.category", "product.category_label"}, WithOmitNull("product.category_label"))

	records, err := it.All()
	require.NoError(t, err)
	assert.Equal(t, []Record{
		{"product.category": "books"},
		{"product.category": "music", "product.category_label": "Music"},
	}, records)
}

func TestIterator_Consumed(t *testing.T) {
	it := New(&fakeRows{data: numbered(1)}, []string{"id", "label"})
	require.True(t, it.Next())

	_, err := it.All()
	assert.ErrorIs(t, err, ErrConsumed)
}

func TestIterator_Errors(t *testing.T) {
	t.Run("scan", func(t *testing.T) {
		scanErr := errors.New("bad value")
		rows := &fakeRows{data: numbered(3), scanErr: scanErr}
		it := New(rows, []string{"id", "label"})

		assert.False(t, it.Next())
		assert.ErrorIs(t, it.Err(), scanErr)
		assert.Equal(t, 1, rows.closed)
		assert.False(t, it.Next())
	})

	t.Run("cursor", func(t *testing.T) {
		cursorErr := errors.New("connection lost")
		rows := &fakeRows{data: numbered(1), err: cursorErr}
		it := New(rows, []string{"id", "label"})

		_, err := it.All()
		assert.ErrorIs(t, err, cursorErr)
	})
}

func TestIterator_Close(t *testing.T) {
	rows := &fakeRows{data: numbered(10)}
	it := New(rows, []string{"id", "label"}, WithBatchSize(3))
	require.True(t, it.Next())

	require.NoError(t, it.Close())
	require.NoError(t, it.Close())
	assert.Equal(t, 1, rows.closed)
	assert.False(t, it.Next())
}
