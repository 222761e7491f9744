package query

import (
	"testing"

	"github.com/stretchr/testify/require"

	"starquery/internal/cell"
	"starquery/internal/domain"
	"starquery/internal/mapper"
)

// salesCube is `sales(date_id, product_id, amount)` joined to
// `date(id, year, month, day)` and `product(id, category, name)`.
func salesCube(t *testing.T, mappings map[string]domain.ColumnSpec) *domain.Cube {
	t.Helper()
	cube := &domain.Cube{
		Name: "sales",
		Key:  "date_id",
		Dimensions: []*domain.Dimension{
			{Name: "date", Role: domain.RoleTime, Levels: []*domain.Level{{Name: "year"}, {Name: "month"}, {Name: "day"}}},
			{Name: "product", Levels: []*domain.Level{{Name: "category"}, {Name: "name"}}},
		},
		Measures: []*domain.Measure{{Attribute: domain.Attribute{Name: "amount"}}},
		Mappings: mappings,
		Joins: []domain.JoinSpec{
			{Master: domain.ColumnSpec{Column: "date_id"}, Detail: domain.ColumnSpec{Table: "date", Column: "id"}},
			{Master: domain.ColumnSpec{Column: "product_id"}, Detail: domain.ColumnSpec{Table: "product", Column: "id"}},
		},
	}
	require.NoError(t, cube.Link())
	return cube
}

// notesCube has an outer-detail `note` table holding many notes per sale.
// The mixed dimension has one level on each side of the fact grain.
func notesCube(t *testing.T) *domain.Cube {
	t.Helper()
	cube := &domain.Cube{
		Name: "sales",
		Dimensions: []*domain.Dimension{
			{Name: "date", Levels: []*domain.Level{{Name: "year"}, {Name: "month"}}},
			{Name: "note", Levels: []*domain.Level{{Name: "author"}, {Name: "text"}}},
			{Name: "mixed", Levels: []*domain.Level{{Name: "region"}, {Name: "remark"}}},
		},
		Measures: []*domain.Measure{{Attribute: domain.Attribute{Name: "amount"}}},
		Mappings: map[string]domain.ColumnSpec{
			"mixed.region": {Table: "date", Column: "region"},
			"mixed.remark": {Table: "note", Column: "remark"},
		},
		Joins: []domain.JoinSpec{
			{Master: domain.ColumnSpec{Column: "date_id"}, Detail: domain.ColumnSpec{Table: "date", Column: "id"}},
			{Master: domain.ColumnSpec{Column: "id"}, Detail: domain.ColumnSpec{Table: "note", Column: "sale_id"}, Method: "detail"},
		},
	}
	require.NoError(t, cube.Link())
	return cube
}

// balanceCube holds daily account balance snapshots. Balances are not
// additive along time.
func balanceCube(t *testing.T) *domain.Cube {
	t.Helper()
	cube := &domain.Cube{
		Name: "balances",
		Dimensions: []*domain.Dimension{
			{Name: "date", Role: domain.RoleTime, Levels: []*domain.Level{{Name: "year"}, {Name: "month"}, {Name: "date"}}},
			{Name: "valuation", Role: domain.RoleTime},
			{Name: "account"},
		},
		Measures: []*domain.Measure{
			{Attribute: domain.Attribute{Name: "balance"}, Nonadditive: domain.NonadditiveTime, Aggregates: []string{"sum", "min"}},
		},
		Joins: []domain.JoinSpec{
			{Master: domain.ColumnSpec{Column: "date_id"}, Detail: domain.ColumnSpec{Table: "date", Column: "id"}},
		},
	}
	require.NoError(t, cube.Link())
	return cube
}

func newBuilder(t *testing.T, cube *domain.Cube, opts Options) *Builder {
	t.Helper()
	m, err := mapper.New(cube)
	require.NoError(t, err)
	return NewBuilder(m, opts)
}

func drilldown(t *testing.T, cube *domain.Cube, c cell.Cell, text string) *cell.Drilldown {
	t.Helper()
	specs, err := cell.ParseDrilldown(text)
	require.NoError(t, err)
	dd, err := cell.NewDrilldown(cube, specs, c)
	require.NoError(t, err)
	return dd
}

func aggregates(t *testing.T, cube *domain.Cube, names ...string) []*domain.MeasureAggregate {
	t.Helper()
	aggs, err := cube.AggregatesByName(names)
	require.NoError(t, err)
	return aggs
}

func attributes(t *testing.T, cube *domain.Cube, refs ...string) []*domain.Attribute {
	t.Helper()
	out := make([]*domain.Attribute, len(refs))
	for i, ref := range refs {
		a, err := cube.Attribute(ref)
		require.NoError(t, err)
		out[i] = a
	}
	return out
}
