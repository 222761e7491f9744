// Package functions is the registry of native aggregate functions: the ones
// compiled into SQL. Names missing from the registry are post-aggregation
// functions computed over result records.
package functions

import (
	"strings"

	"starquery/internal/domain"
	"starquery/internal/sqlast"
)

// Coalescing says where NULLs are replaced by zero when coalescing is
// enabled.
type Coalescing int

const (
	// CoalesceNone never coalesces.
	CoalesceNone Coalescing = iota
	// CoalesceValue coalesces each source value before aggregation:
	// AGG(COALESCE(x, 0)).
	CoalesceValue
	// CoalesceSummary coalesces the aggregate result: COALESCE(AGG(x), 0).
	CoalesceSummary
)

// Identity is the pass-through function used for pre-aggregated columns.
const Identity = "identity"

// Aggregate is one native aggregate function.
type Aggregate struct {
	Name       string
	SQL        string // SQL function name, empty for identity
	Distinct   bool
	Coalescing Coalescing
	// FactKey marks functions that aggregate the fact key instead of a
	// measure.
	FactKey bool
}

// RequiredMeasures returns the measures agg needs as raw columns.
func (f *Aggregate) RequiredMeasures(agg *domain.MeasureAggregate) []string {
	if f.FactKey || agg.Measure == "" {
		return nil
	}
	return []string{agg.Measure}
}

// Compile applies the function to arg. With coalesce set, NULLs are replaced
// by zero either before or after aggregation, never both.
func (f *Aggregate) Compile(arg sqlast.Expr, coalesce bool) sqlast.Expr {
	if f.SQL == "" {
		return arg
	}
	if coalesce && f.Coalescing == CoalesceValue {
		arg = sqlast.Coalesce(arg, sqlast.Int(0))
	}
	return f.call(arg, coalesce)
}

// CompileWhen applies the function to arg on the rows matching cond only.
// Value coalescing happens inside the CASE so rows outside cond stay NULL
// and are ignored by the aggregate.
func (f *Aggregate) CompileWhen(cond, arg sqlast.Expr, coalesce bool) sqlast.Expr {
	if coalesce && f.Coalescing == CoalesceValue {
		arg = sqlast.Coalesce(arg, sqlast.Int(0))
	}
	masked := &sqlast.CaseExpr{Whens: []sqlast.WhenClause{{Condition: cond, Result: arg}}}
	if f.SQL == "" {
		return masked
	}
	return f.call(masked, coalesce)
}

func (f *Aggregate) call(arg sqlast.Expr, coalesce bool) sqlast.Expr {
	var out sqlast.Expr = &sqlast.FuncCall{Name: f.SQL, Distinct: f.Distinct, Args: []sqlast.Expr{arg}}
	if coalesce && f.Coalescing == CoalesceSummary {
		out = sqlast.Coalesce(out, sqlast.Int(0))
	}
	return out
}

// Registry maps function names to native aggregates.
type Registry struct {
	fns map[string]*Aggregate
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{fns: make(map[string]*Aggregate)}
}

// Default returns the registry of the built-in functions.
func Default() *Registry {
	r := NewRegistry()
	r.Register(&Aggregate{Name: "count", SQL: "COUNT", FactKey: true})
	r.Register(&Aggregate{Name: "count_nonempty", SQL: "COUNT", Coalescing: CoalesceSummary})
	r.Register(&Aggregate{Name: "count_distinct", SQL: "COUNT", Distinct: true})
	r.Register(&Aggregate{Name: "sum", SQL: "SUM", Coalescing: CoalesceSummary})
	r.Register(&Aggregate{Name: "min", SQL: "MIN", Coalescing: CoalesceValue})
	r.Register(&Aggregate{Name: "max", SQL: "MAX", Coalescing: CoalesceValue})
	r.Register(&Aggregate{Name: "avg", SQL: "AVG", Coalescing: CoalesceValue})
	r.Register(&Aggregate{Name: "stddev", SQL: "STDDEV", Coalescing: CoalesceValue})
	r.Register(&Aggregate{Name: "variance", SQL: "VARIANCE", Coalescing: CoalesceValue})
	r.Register(&Aggregate{Name: Identity})
	return r
}

// Register adds or replaces fn.
func (r *Registry) Register(fn *Aggregate) {
	r.fns[strings.ToLower(fn.Name)] = fn
}

// Lookup returns the native function called name. An empty name is the
// identity function. ok is false for post-aggregation functions.
func (r *Registry) Lookup(name string) (*Aggregate, bool) {
	if name == "" {
		name = Identity
	}
	fn, ok := r.fns[strings.ToLower(name)]
	return fn, ok
}

// IsNative reports whether agg is computed in SQL: it either has a native
// function or is derived from other aggregates by an expression.
func (r *Registry) IsNative(agg *domain.MeasureAggregate) bool {
	if agg.Function == "" {
		return true
	}
	_, ok := r.Lookup(agg.Function)
	return ok
}
