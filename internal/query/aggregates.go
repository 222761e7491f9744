package query

import (
	"starquery/internal/cell"
	"starquery/internal/domain"
	"starquery/internal/mapper"
	"starquery/internal/sqlast"
)

// maxDerivedDepth bounds how deep aggregate expressions may refer to other
// aggregates.
const maxDerivedDepth = 8

// PostAggregate is an aggregate computed over result records, reading the
// value of Source in each record.
type PostAggregate struct {
	Aggregate *domain.MeasureAggregate
	Source    string
}

// aggregatePlan separates SQL aggregates from post-aggregates. Sources of
// post-aggregates are appended to native when not requested explicitly.
type aggregatePlan struct {
	native []*domain.MeasureAggregate
	post   []PostAggregate
}

func (b *Builder) planAggregates(aggs []*domain.MeasureAggregate) (aggregatePlan, error) {
	var p aggregatePlan
	var sources []*domain.MeasureAggregate
	for _, agg := range aggs {
		if b.registry.IsNative(agg) {
			p.native = appendAggregate(p.native, agg)
			continue
		}
		src, err := b.postSource(agg)
		if err != nil {
			return aggregatePlan{}, err
		}
		p.post = append(p.post, PostAggregate{Aggregate: agg, Source: src.Name})
		sources = append(sources, src)
	}
	for _, src := range sources {
		p.native = appendAggregate(p.native, src)
	}
	return p, nil
}

// postSource returns the first native aggregate of the post-aggregate's
// measure.
func (b *Builder) postSource(agg *domain.MeasureAggregate) (*domain.MeasureAggregate, error) {
	if agg.Measure == "" {
		return nil, domain.ErrModel("aggregate %q: function %q needs a measure", agg.Name, agg.Function)
	}
	for _, a := range b.cube.Aggregates {
		if a.Measure != agg.Measure || a.Function == "" {
			continue
		}
		if _, ok := b.registry.Lookup(a.Function); ok {
			return a, nil
		}
	}
	return nil, domain.ErrModel("aggregate %q: measure %q has no aggregate computed in SQL", agg.Name, agg.Measure)
}

func appendAggregate(list []*domain.MeasureAggregate, agg *domain.MeasureAggregate) []*domain.MeasureAggregate {
	for _, a := range list {
		if a == agg {
			return list
		}
	}
	return append(list, agg)
}

func isDerived(agg *domain.MeasureAggregate) bool {
	return agg.Function == "" && agg.Expression != ""
}

func isNonadditive(agg *domain.MeasureAggregate) bool {
	return agg.Nonadditive == domain.NonadditiveTime || agg.Nonadditive == domain.NonadditiveAll
}

// aggregateContext carries what aggregate expressions are compiled against.
type aggregateContext struct {
	resolve  resolver
	factKey  sqlast.Expr
	snapshot *snapshot
}

// aggregateExpr compiles agg to its SQL expression.
func (b *Builder) aggregateExpr(ctx aggregateContext, agg *domain.MeasureAggregate, depth int) (sqlast.Expr, error) {
	if depth > maxDerivedDepth {
		return nil, domain.ErrModel("aggregate %q: expression nests too deep (cyclic reference?)", agg.Name)
	}
	if isDerived(agg) {
		return b.derivedExpr(ctx, agg, depth)
	}
	fn, ok := b.registry.Lookup(agg.Function)
	if !ok {
		return nil, domain.ErrModel("aggregate %q: function %q is not computed in SQL", agg.Name, agg.Function)
	}

	var arg sqlast.Expr
	switch {
	case fn.FactKey:
		arg = ctx.factKey
	default:
		attr, err := b.aggregateSource(agg)
		if err != nil {
			return nil, err
		}
		arg, err = ctx.resolve(attr)
		if err != nil {
			return nil, err
		}
	}
	if ctx.snapshot != nil && isNonadditive(agg) {
		latest := sqlast.Eq(ctx.snapshot.timeKey, sqlast.Col(SnapshotAlias, snapshotMax))
		return fn.CompileWhen(latest, arg, b.opts.Coalesce), nil
	}
	return fn.Compile(arg, b.opts.Coalesce), nil
}

// aggregateSource returns the column attribute an aggregate reads: its
// measure, or the aggregate's own column for pre-aggregated facts.
func (b *Builder) aggregateSource(agg *domain.MeasureAggregate) (*domain.Attribute, error) {
	if agg.Measure == "" {
		return &agg.Attribute, nil
	}
	m := b.cube.Measure(agg.Measure)
	if m == nil {
		return nil, domain.ErrModel("aggregate %q refers to unknown measure %q", agg.Name, agg.Measure)
	}
	return &m.Attribute, nil
}

// derivedExpr compiles an expression over other aggregates of the cube.
func (b *Builder) derivedExpr(ctx aggregateContext, agg *domain.MeasureAggregate, depth int) (sqlast.Expr, error) {
	expr, deps, err := b.parseDerived(agg)
	if err != nil {
		return nil, err
	}
	compiled := make(map[string]sqlast.Expr, len(deps))
	for _, dep := range deps {
		e, err := b.aggregateExpr(ctx, dep, depth+1)
		if err != nil {
			return nil, err
		}
		compiled[dep.Name] = sqlast.Paren(e)
	}
	return sqlast.RewriteColumns(expr, func(c *sqlast.ColumnRef) sqlast.Expr {
		return compiled[c.Column]
	}), nil
}

// parseDerived parses the expression of a derived aggregate and resolves
// the aggregates it refers to.
func (b *Builder) parseDerived(agg *domain.MeasureAggregate) (sqlast.Expr, []*domain.MeasureAggregate, error) {
	expr, err := sqlast.ParseExpr(agg.Expression)
	if err != nil {
		return nil, nil, domain.ErrModel("aggregate %q: %v", agg.Name, err)
	}
	for _, fn := range sqlast.CollectFunctions(expr) {
		if !mapper.IsAllowedFunction(fn) {
			return nil, nil, domain.ErrModel("aggregate %q: function %q is not allowed", agg.Name, fn)
		}
	}
	var deps []*domain.MeasureAggregate
	for _, c := range sqlast.CollectColumns(expr) {
		if c.Table != "" {
			return nil, nil, domain.ErrModel("aggregate %q: expression may only refer to aggregates, not %s.%s", agg.Name, c.Table, c.Column)
		}
		dep, err := b.cube.Aggregate(c.Column)
		if err != nil {
			return nil, nil, domain.ErrModel("aggregate %q: %v", agg.Name, err)
		}
		if dep == agg {
			return nil, nil, domain.ErrModel("aggregate %q refers to itself", agg.Name)
		}
		deps = appendAggregate(deps, dep)
	}
	return expr, deps, nil
}

// aggregateAttributes returns the column attributes the aggregates read.
// Fact key aggregates need none besides the fact table.
func (b *Builder) aggregateAttributes(aggs []*domain.MeasureAggregate) ([]*domain.Attribute, error) {
	var out []*domain.Attribute
	var visit func(agg *domain.MeasureAggregate, depth int) error
	visit = func(agg *domain.MeasureAggregate, depth int) error {
		if depth > maxDerivedDepth {
			return domain.ErrModel("aggregate %q: expression nests too deep (cyclic reference?)", agg.Name)
		}
		if isDerived(agg) {
			_, deps, err := b.parseDerived(agg)
			if err != nil {
				return err
			}
			for _, dep := range deps {
				if err := visit(dep, depth+1); err != nil {
					return err
				}
			}
			return nil
		}
		fn, ok := b.registry.Lookup(agg.Function)
		if !ok || fn.FactKey {
			return nil
		}
		attr, err := b.aggregateSource(agg)
		if err != nil {
			return err
		}
		out = appendAttrs(out, attr)
		return nil
	}
	for _, agg := range aggs {
		if err := visit(agg, 0); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// semiadditiveItem returns the drilled time dimension when a requested
// aggregate is non-additive along time, nil otherwise.
func semiadditiveItem(dd *cell.Drilldown, aggs []*domain.MeasureAggregate) (*cell.DrilldownItem, error) {
	need := false
	for _, agg := range aggs {
		if isNonadditive(agg) {
			need = true
			break
		}
	}
	if !need || dd.IsEmpty() {
		return nil, nil
	}
	var found *cell.DrilldownItem
	for i := range dd.Items {
		if !dd.Items[i].Dimension.IsTime() {
			continue
		}
		if found != nil {
			return nil, domain.ErrArgument("non-additive aggregates can not be drilled down by more than one time dimension (%s, %s)",
				found.Dimension.Name, dd.Items[i].Dimension.Name)
		}
		found = &dd.Items[i]
	}
	return found, nil
}
