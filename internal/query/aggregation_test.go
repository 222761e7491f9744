package query

import (
	"errors"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"starquery/internal/cell"
	"starquery/internal/domain"
)

func assertGolden(t *testing.T, name string, stmt *Statement) {
	t.Helper()
	g := goldie.New(t, goldie.WithFixtureDir("testdata"), goldie.WithNameSuffix(".golden"))
	g.Assert(t, name, []byte(stmt.Inline()+"\n"))
}

func TestAggregation_SalesScenario(t *testing.T) {
	cube := salesCube(t, nil)
	b := newBuilder(t, cube, Options{})
	c := cell.New(cell.Point("date", 2013))

	stmt, err := b.Aggregation(AggregationRequest{
		Cell:      c,
		Drilldown: drilldown(t, cube, c, "date:month|product:category"),
	})
	require.NoError(t, err)

	assert.Equal(t, MethodSimple, stmt.Method)
	assert.Equal(t, []string{"date.year", "date.month", "product.category", "amount_sum", "fact_count"}, stmt.Labels)
	assertGolden(t, "sales_scenario", stmt)

	sql, args := stmt.SQL()
	assert.Contains(t, sql, `WHERE "date"."year" = ? GROUP BY`)
	assert.Equal(t, []any{2013}, args)
}

func TestAggregation_Composed(t *testing.T) {
	cube := notesCube(t)
	b := newBuilder(t, cube, Options{})
	c := cell.New(cell.Point("date", 2013))

	stmt, err := b.Aggregation(AggregationRequest{
		Cell:      c,
		Drilldown: drilldown(t, cube, c, "note:author"),
	})
	require.NoError(t, err)

	assert.Equal(t, MethodComposed, stmt.Method)
	assert.Equal(t, []string{"note.author", "amount_sum", "fact_count"}, stmt.Labels)
	assertGolden(t, "notes_composed", stmt)
}

func TestAggregation_OuterDetailWithoutMasterCuts(t *testing.T) {
	cube := notesCube(t)
	b := newBuilder(t, cube, Options{})

	stmt, err := b.Aggregation(AggregationRequest{
		Drilldown: drilldown(t, cube, cell.Cell{}, "note:author"),
	})
	require.NoError(t, err)

	assert.Equal(t, MethodSimple, stmt.Method)
	assert.Equal(t,
		`SELECT "note"."author" AS "note.author", SUM("sales"."amount") AS "amount_sum", COUNT("sales"."id") AS "fact_count" `+
			`FROM "note" LEFT JOIN "sales" ON "sales"."id" = "note"."sale_id" GROUP BY "note"."author" ORDER BY "note"."author"`,
		stmt.Inline())
}

func TestAggregation_FastPath(t *testing.T) {
	t.Run("count", func(t *testing.T) {
		cube := salesCube(t, nil)
		b := newBuilder(t, cube, Options{})
		stmt, err := b.Aggregation(AggregationRequest{
			Cell:       cell.New(cell.Point("date", 2013)),
			Aggregates: aggregates(t, cube, "fact_count"),
		})
		require.NoError(t, err)
		assert.Equal(t, `SELECT COUNT(*) AS "fact_count" FROM "sales" JOIN "date" ON "sales"."date_id" = "date"."id" WHERE "date"."year" = 2013`, stmt.Inline())
		assert.Equal(t, []string{"fact_count"}, stmt.Labels)
	})

	t.Run("whole cube", func(t *testing.T) {
		cube := salesCube(t, nil)
		b := newBuilder(t, cube, Options{})
		stmt, err := b.Aggregation(AggregationRequest{Aggregates: aggregates(t, cube, "fact_count")})
		require.NoError(t, err)
		assert.Equal(t, `SELECT COUNT(*) AS "fact_count" FROM "sales"`, stmt.Inline())
	})

	t.Run("skipped with outer detail tables", func(t *testing.T) {
		cube := notesCube(t)
		b := newBuilder(t, cube, Options{})
		stmt, err := b.Aggregation(AggregationRequest{
			Cell:       cell.New(cell.Point("note", "ann")),
			Aggregates: aggregates(t, cube, "fact_count"),
		})
		require.NoError(t, err)
		assert.Equal(t,
			`SELECT COUNT("sales"."id") AS "fact_count" FROM "note" LEFT JOIN "sales" ON "sales"."id" = "note"."sale_id" WHERE "note"."author" = 'ann'`,
			stmt.Inline())
	})
}

func TestAggregation_Split(t *testing.T) {
	cube := salesCube(t, nil)
	b := newBuilder(t, cube, Options{})
	split := cell.New(cell.Point("date", 2013))

	stmt, err := b.Aggregation(AggregationRequest{
		Drilldown:  drilldown(t, cube, cell.Cell{}, "product:category"),
		Aggregates: aggregates(t, cube, "amount_sum"),
		Split:      &split,
	})
	require.NoError(t, err)

	flag := `CASE WHEN "date"."year" = 2013 THEN TRUE ELSE FALSE END`
	assert.Equal(t,
		`SELECT `+flag+` AS "__within_split__", "product"."category" AS "product.category", SUM("sales"."amount") AS "amount_sum" `+
			`FROM "sales" JOIN "date" ON "sales"."date_id" = "date"."id" JOIN "product" ON "sales"."product_id" = "product"."id" `+
			`GROUP BY `+flag+`, "product"."category" ORDER BY `+flag+`, "product"."category"`,
		stmt.Inline())
	assert.Equal(t, []string{SplitLabel, "product.category", "amount_sum"}, stmt.Labels)
}

func TestAggregation_OrderAndPaging(t *testing.T) {
	cube := salesCube(t, nil)
	b := newBuilder(t, cube, Options{})

	tests := []struct {
		name  string
		req   AggregationRequest
		order string
		tail  string
	}{
		{
			name: "aggregate label descending",
			req: AggregationRequest{
				Drilldown:  drilldown(t, cube, cell.Cell{}, "product:category"),
				Aggregates: aggregates(t, cube, "amount_sum"),
				Order:      []cell.Order{{Attribute: "amount_sum", Direction: domain.OrderDesc}},
			},
			order: `ORDER BY SUM("sales"."amount") DESC, "product"."category"`,
		},
		{
			name: "explicit order replaces natural order",
			req: AggregationRequest{
				Drilldown:  drilldown(t, cube, cell.Cell{}, "product:category"),
				Aggregates: aggregates(t, cube, "amount_sum"),
				Order:      []cell.Order{{Attribute: "product.category", Direction: domain.OrderDesc}},
			},
			order: `ORDER BY "product"."category" DESC`,
		},
		{
			name: "paged",
			req: AggregationRequest{
				Drilldown:  drilldown(t, cube, cell.Cell{}, "product:category"),
				Aggregates: aggregates(t, cube, "amount_sum"),
				Page:       2,
				PageSize:   10,
			},
			order: `ORDER BY "product"."category"`,
			tail:  ` LIMIT 10 OFFSET 20`,
		},
		{
			name: "first page has no offset",
			req: AggregationRequest{
				Drilldown:  drilldown(t, cube, cell.Cell{}, "product:category"),
				Aggregates: aggregates(t, cube, "amount_sum"),
				PageSize:   10,
			},
			order: `ORDER BY "product"."category"`,
			tail:  ` LIMIT 10`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stmt, err := b.Aggregation(tt.req)
			require.NoError(t, err)
			assert.Equal(t,
				`SELECT "product"."category" AS "product.category", SUM("sales"."amount") AS "amount_sum" `+
					`FROM "sales" JOIN "product" ON "sales"."product_id" = "product"."id" GROUP BY "product"."category" `+tt.order+tt.tail,
				stmt.Inline())
		})
	}
}

func TestAggregation_OrderByUnselectedReference(t *testing.T) {
	cube := salesCube(t, nil)
	b := newBuilder(t, cube, Options{})

	tests := []struct {
		name string
		ref  string
	}{
		{"attribute not drilled down", "product.category"},
		{"aggregate not selected", "fact_count"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := b.Aggregation(AggregationRequest{
				Drilldown:  drilldown(t, cube, cell.Cell{}, "date:year"),
				Aggregates: aggregates(t, cube, "amount_sum"),
				Order:      []cell.Order{{Attribute: tt.ref, Direction: domain.OrderAsc}},
			})
			var argErr *domain.ArgumentError
			require.True(t, errors.As(err, &argErr))
			assert.Contains(t, err.Error(), tt.ref)
		})
	}

	stmt, err := b.Aggregation(AggregationRequest{
		Drilldown:   drilldown(t, cube, cell.Cell{}, "date:year"),
		Aggregates:  aggregates(t, cube, "amount_sum"),
		Order:       []cell.Order{{Attribute: "product.category"}},
		SummaryOnly: true,
	})
	require.NoError(t, err)
	assert.NotContains(t, stmt.Inline(), "ORDER BY")
}

func TestAggregation_SummaryOnly(t *testing.T) {
	cube := salesCube(t, nil)
	b := newBuilder(t, cube, Options{})

	stmt, err := b.Aggregation(AggregationRequest{
		Drilldown:   drilldown(t, cube, cell.Cell{}, "product:category"),
		Aggregates:  aggregates(t, cube, "amount_sum"),
		PageSize:    10,
		SummaryOnly: true,
	})
	require.NoError(t, err)
	assert.Equal(t, `SELECT SUM("sales"."amount") AS "amount_sum" FROM "sales"`, stmt.Inline())
}

func TestAggregation_Coalesce(t *testing.T) {
	cube := salesCube(t, nil)
	b := newBuilder(t, cube, Options{Coalesce: true})

	stmt, err := b.Aggregation(AggregationRequest{
		Drilldown:  drilldown(t, cube, cell.Cell{}, "product:category"),
		Aggregates: aggregates(t, cube, "amount_sum", "fact_count"),
	})
	require.NoError(t, err)
	assert.Contains(t, stmt.Inline(), `COALESCE(SUM("sales"."amount"), 0) AS "amount_sum", COUNT("sales"."date_id") AS "fact_count"`)
}

func TestAggregation_PeriodsToDate(t *testing.T) {
	cube := salesCube(t, map[string]domain.ColumnSpec{
		"date.year": {Condition: "ptd = 1"},
	})
	b := newBuilder(t, cube, Options{})

	stmt, err := b.Aggregation(AggregationRequest{
		Drilldown:  drilldown(t, cube, cell.Cell{}, "date:year"),
		Aggregates: aggregates(t, cube, "amount_sum"),
	})
	require.NoError(t, err)
	assert.Equal(t,
		`SELECT "date"."year" AS "date.year", SUM("sales"."amount") AS "amount_sum" FROM "sales" JOIN "date" ON "sales"."date_id" = "date"."id" `+
			`WHERE ("date"."ptd" = 1) GROUP BY "date"."year" ORDER BY "date"."year"`,
		stmt.Inline())

	stmt, err = b.Aggregation(AggregationRequest{
		Cell:       cell.New(cell.Point("date", 2013)),
		Aggregates: aggregates(t, cube, "amount_sum"),
	})
	require.NoError(t, err)
	assert.Contains(t, stmt.Inline(), `WHERE "date"."year" = 2013 AND ("date"."ptd" = 1)`)
}

func TestAggregation_Derived(t *testing.T) {
	cube := salesCube(t, nil)
	cube.Aggregates = append(cube.Aggregates,
		&domain.MeasureAggregate{Attribute: domain.Attribute{Name: "avg_amount"}, Expression: "amount_sum / fact_count"},
		&domain.MeasureAggregate{Attribute: domain.Attribute{Name: "loop_a"}, Expression: "loop_b + 1"},
		&domain.MeasureAggregate{Attribute: domain.Attribute{Name: "loop_b"}, Expression: "loop_a + 1"},
		&domain.MeasureAggregate{Attribute: domain.Attribute{Name: "broken"}, Expression: "missing * 2"},
	)
	b := newBuilder(t, cube, Options{})

	stmt, err := b.Aggregation(AggregationRequest{Aggregates: aggregates(t, cube, "avg_amount")})
	require.NoError(t, err)
	assert.Equal(t, `SELECT SUM("sales"."amount") / COUNT("sales"."date_id") AS "avg_amount" FROM "sales"`, stmt.Inline())

	for _, name := range []string{"loop_a", "broken"} {
		_, err := b.Aggregation(AggregationRequest{Aggregates: aggregates(t, cube, name)})
		var modelErr *domain.ModelError
		assert.True(t, errors.As(err, &modelErr), "%s: %v", name, err)
	}
}

func TestAggregation_PostAggregates(t *testing.T) {
	cube := &domain.Cube{
		Name: "sales",
		Measures: []*domain.Measure{
			{Attribute: domain.Attribute{Name: "amount"}, Aggregates: []string{"sum", "sma"}},
		},
	}
	require.NoError(t, cube.Link())
	b := newBuilder(t, cube, Options{})

	stmt, err := b.Aggregation(AggregationRequest{Aggregates: aggregates(t, cube, "amount_sma")})
	require.NoError(t, err)
	assert.Equal(t, `SELECT SUM("sales"."amount") AS "amount_sum" FROM "sales"`, stmt.Inline())
	require.Len(t, stmt.PostAggregates, 1)
	assert.Equal(t, "amount_sma", stmt.PostAggregates[0].Aggregate.Name)
	assert.Equal(t, "amount_sum", stmt.PostAggregates[0].Source)
}

func TestAggregation_Semiadditive(t *testing.T) {
	cube := balanceCube(t)
	b := newBuilder(t, cube, Options{})

	t.Run("latest snapshot per period", func(t *testing.T) {
		stmt, err := b.Aggregation(AggregationRequest{
			Drilldown:  drilldown(t, cube, cell.Cell{}, "date:month"),
			Aggregates: aggregates(t, cube, "balance_sum"),
		})
		require.NoError(t, err)
		assertGolden(t, "balance_semiadditive", stmt)
	})

	t.Run("additive along other dimensions", func(t *testing.T) {
		stmt, err := b.Aggregation(AggregationRequest{
			Drilldown:  drilldown(t, cube, cell.Cell{}, "account"),
			Aggregates: aggregates(t, cube, "balance_sum"),
		})
		require.NoError(t, err)
		assert.Equal(t,
			`SELECT "balances"."account" AS "account", SUM("balances"."balance") AS "balance_sum" FROM "balances" GROUP BY "balances"."account" ORDER BY "balances"."account"`,
			stmt.Inline())
	})

	t.Run("coalescing stays inside the snapshot mask", func(t *testing.T) {
		cb := newBuilder(t, cube, Options{Coalesce: true})

		stmt, err := cb.Aggregation(AggregationRequest{
			Drilldown:  drilldown(t, cube, cell.Cell{}, "date:month"),
			Aggregates: aggregates(t, cube, "balance_min"),
		})
		require.NoError(t, err)
		assert.Contains(t, stmt.Inline(),
			`MIN(CASE WHEN "date"."date" = "__snapshot"."__max_time" THEN COALESCE("balances"."balance", 0) END) AS "balance_min"`)
	})

	t.Run("two time dimensions", func(t *testing.T) {
		_, err := b.Aggregation(AggregationRequest{
			Drilldown:  drilldown(t, cube, cell.Cell{}, "date:year|valuation"),
			Aggregates: aggregates(t, cube, "balance_sum"),
		})
		var argErr *domain.ArgumentError
		assert.True(t, errors.As(err, &argErr))
	})
}

func TestAggregation_Errors(t *testing.T) {
	cube := notesCube(t)
	b := newBuilder(t, cube, Options{})

	tests := []struct {
		name   string
		req    AggregationRequest
		target any
	}{
		{
			name:   "straddling cut",
			req:    AggregationRequest{Cell: cell.New(cell.Point("mixed", "eu", "x"))},
			target: new(*domain.ModelError),
		},
		{
			name:   "path deeper than hierarchy",
			req:    AggregationRequest{Cell: cell.New(cell.Point("date", 2013, 1, 1))},
			target: new(*domain.ArgumentError),
		},
		{
			name:   "unknown dimension",
			req:    AggregationRequest{Cell: cell.New(cell.Point("weather", "rain"))},
			target: new(*domain.NotFoundError),
		},
		{
			name:   "negative page",
			req:    AggregationRequest{Page: -1, PageSize: 10, Drilldown: drilldown(t, cube, cell.Cell{}, "date")},
			target: new(*domain.ArgumentError),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := b.Aggregation(tt.req)
			require.Error(t, err)
			assert.True(t, errors.As(err, tt.target), "got %T: %v", err, err)
		})
	}

	_, err := b.Aggregation(AggregationRequest{Cell: cell.New(cell.Point("mixed", "eu"))})
	assert.NoError(t, err)
}

func TestChooseMethod(t *testing.T) {
	cube := notesCube(t)
	year := attributes(t, cube, "date.year")
	author := attributes(t, cube, "note.author")

	tests := []struct {
		name        string
		masterCuts  []*domain.Attribute
		detailCuts  []*domain.Attribute
		detailDrill []*domain.Attribute
		want        Method
	}{
		{name: "nothing", want: MethodSimple},
		{name: "master cuts only", masterCuts: year, want: MethodSimple},
		{name: "detail drilldown only", detailDrill: author, want: MethodSimple},
		{name: "detail cuts only", detailCuts: author, want: MethodSimple},
		{name: "master cuts with detail drilldown", masterCuts: year, detailDrill: author, want: MethodComposed},
		{name: "master cuts with detail cuts", masterCuts: year, detailCuts: author, want: MethodComposed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ChooseMethod(tt.masterCuts, tt.detailCuts, tt.detailDrill))
		})
	}
	assert.Equal(t, "composed", MethodComposed.String())
	assert.Equal(t, "simple", MethodSimple.String())
}
