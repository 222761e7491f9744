package functions

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"starquery/internal/domain"
	"starquery/internal/sqlast"
)

func TestCompile(t *testing.T) {
	reg := Default()
	col := sqlast.Col("sales", "amount")

	tests := []struct {
		fn       string
		coalesce bool
		want     string
	}{
		{fn: "sum", want: `SUM("sales"."amount")`},
		{fn: "sum", coalesce: true, want: `COALESCE(SUM("sales"."amount"), 0)`},
		{fn: "avg", want: `AVG("sales"."amount")`},
		{fn: "avg", coalesce: true, want: `AVG(COALESCE("sales"."amount", 0))`},
		{fn: "min", coalesce: true, want: `MIN(COALESCE("sales"."amount", 0))`},
		{fn: "count_distinct", coalesce: true, want: `COUNT(DISTINCT "sales"."amount")`},
		{fn: "count_nonempty", coalesce: true, want: `COALESCE(COUNT("sales"."amount"), 0)`},
		{fn: "count", want: `COUNT("sales"."amount")`},
		{fn: "identity", coalesce: true, want: `"sales"."amount"`},
		{fn: "", want: `"sales"."amount"`},
		{fn: "SUM", want: `SUM("sales"."amount")`},
	}
	for _, tt := range tests {
		t.Run(tt.fn, func(t *testing.T) {
			fn, ok := reg.Lookup(tt.fn)
			require.True(t, ok)
			assert.Equal(t, tt.want, sqlast.FormatExpr(fn.Compile(col, tt.coalesce)))
		})
	}
}

func TestCompileWhen(t *testing.T) {
	reg := Default()
	col := sqlast.Col("b", "balance")
	latest := sqlast.Eq(sqlast.Col("d", "date"), sqlast.Col("s", "max_date"))

	tests := []struct {
		fn       string
		coalesce bool
		want     string
	}{
		{fn: "min", want: `MIN(CASE WHEN "d"."date" = "s"."max_date" THEN "b"."balance" END)`},
		{fn: "min", coalesce: true, want: `MIN(CASE WHEN "d"."date" = "s"."max_date" THEN COALESCE("b"."balance", 0) END)`},
		{fn: "avg", coalesce: true, want: `AVG(CASE WHEN "d"."date" = "s"."max_date" THEN COALESCE("b"."balance", 0) END)`},
		{fn: "sum", coalesce: true, want: `COALESCE(SUM(CASE WHEN "d"."date" = "s"."max_date" THEN "b"."balance" END), 0)`},
		{fn: "identity", want: `CASE WHEN "d"."date" = "s"."max_date" THEN "b"."balance" END`},
	}
	for _, tt := range tests {
		t.Run(tt.fn, func(t *testing.T) {
			fn, ok := reg.Lookup(tt.fn)
			require.True(t, ok)
			assert.Equal(t, tt.want, sqlast.FormatExpr(fn.CompileWhen(latest, col, tt.coalesce)))
		})
	}
}

func TestRequiredMeasures(t *testing.T) {
	reg := Default()
	sum, _ := reg.Lookup("sum")
	count, _ := reg.Lookup("count")

	agg := &domain.MeasureAggregate{Attribute: domain.Attribute{Name: "amount_sum"}, Function: "sum", Measure: "amount"}
	assert.Equal(t, []string{"amount"}, sum.RequiredMeasures(agg))
	assert.Empty(t, count.RequiredMeasures(&domain.MeasureAggregate{Function: "count"}))
	assert.Empty(t, sum.RequiredMeasures(&domain.MeasureAggregate{Function: "sum"}))
}

func TestLookup_PostAggregation(t *testing.T) {
	reg := Default()
	_, ok := reg.Lookup("sma")
	assert.False(t, ok)

	assert.False(t, reg.IsNative(&domain.MeasureAggregate{Function: "wma"}))
	assert.True(t, reg.IsNative(&domain.MeasureAggregate{Function: "max"}))
	assert.True(t, reg.IsNative(&domain.MeasureAggregate{Expression: "a / b"}))

	reg.Register(&Aggregate{Name: "median", SQL: "MEDIAN"})
	fn, ok := reg.Lookup("median")
	require.True(t, ok)
	assert.Equal(t, "MEDIAN", fn.SQL)
}
