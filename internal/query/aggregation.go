package query

import (
	"fmt"
	"slices"

	"starquery/internal/cell"
	"starquery/internal/domain"
	"starquery/internal/functions"
	"starquery/internal/mapper"
	"starquery/internal/schema"
	"starquery/internal/sqlast"
)

// Method is the strategy an aggregation statement is compiled with.
type Method int

const (
	// MethodSimple compiles a single SELECT over the full join expression.
	MethodSimple Method = iota
	// MethodComposed filters and projects the fact grain in a master fact
	// sub-query first and joins the outer-detail tables to it.
	MethodComposed
)

func (m Method) String() string {
	if m == MethodComposed {
		return "composed"
	}
	return "simple"
}

// ChooseMethod picks the composed strategy only when master cuts meet
// outer-detail cuts or drilldowns; applying the master cuts after the
// outer join would drop detail rows without facts.
func ChooseMethod(masterCutAttrs, detailCutAttrs, detailDrillAttrs []*domain.Attribute) Method {
	if len(masterCutAttrs) > 0 && (len(detailDrillAttrs) > 0 || len(detailCutAttrs) > 0) {
		return MethodComposed
	}
	return MethodSimple
}

// AggregationRequest describes one aggregated browse of a cell.
type AggregationRequest struct {
	Cell       cell.Cell
	Drilldown  *cell.Drilldown
	Aggregates []*domain.MeasureAggregate // all cube aggregates when empty
	// Split adds a boolean dimension telling whether a row falls into the
	// split cell.
	Split    *cell.Cell
	Order    []cell.Order
	Page     int
	PageSize int
	// SummaryOnly ignores drilldown, split, order and paging.
	SummaryOnly bool
}

// aggregation is the resolved state of one aggregation request.
type aggregation struct {
	star      *schema.Star
	req       AggregationRequest
	drilldown *cell.Drilldown
	drill     []*domain.Attribute
	cuts      []boundCut
	split     []boundCut
	ptd       []ptdCondition
	aggs      aggregatePlan
	snapshot  *cell.DrilldownItem
}

// Aggregation compiles an aggregation request.
func (b *Builder) Aggregation(req AggregationRequest) (*Statement, error) {
	star, err := b.star()
	if err != nil {
		return nil, err
	}
	if req.SummaryOnly {
		req.Drilldown, req.Split, req.Order, req.Page, req.PageSize = nil, nil, nil, 0, 0
	}

	aggs := req.Aggregates
	if len(aggs) == 0 {
		aggs = b.cube.Aggregates
	}
	a := &aggregation{star: star, req: req, drilldown: req.Drilldown, drill: req.Drilldown.AllAttributes()}
	if a.aggs, err = b.planAggregates(aggs); err != nil {
		return nil, err
	}
	if a.cuts, err = bindCuts(star, req.Cell.Cuts); err != nil {
		return nil, err
	}
	if req.Split != nil {
		if a.split, err = bindCuts(star, req.Split.Cuts); err != nil {
			return nil, err
		}
	}
	if a.ptd, err = ptdConditions(star, involvedLevels(a.drilldown, a.cuts)); err != nil {
		return nil, err
	}
	if a.snapshot, err = semiadditiveItem(a.drilldown, a.aggs.native); err != nil {
		return nil, err
	}
	if err := checkGroupedOrder(req.Order, a.labels()); err != nil {
		return nil, err
	}

	masterCuts, detailCuts := splitBuckets(slices.Concat(a.cuts, a.split))
	masterPTD, detailPTD := splitPTD(a.ptd)
	_, detailDrill, err := bucketAttributes(star, a.drill)
	if err != nil {
		return nil, err
	}
	method := ChooseMethod(
		appendAttrs(cutAttributes(masterCuts), ptdAttributes(masterPTD)...),
		appendAttrs(cutAttributes(detailCuts), ptdAttributes(detailPTD)...),
		detailDrill,
	)
	if method == MethodComposed {
		if a.snapshot != nil {
			return nil, domain.ErrArgument("non-additive aggregates drilled by %q can not be combined with cuts across outer-detail tables",
				a.snapshot.Dimension.Name)
		}
		return b.composed(a)
	}
	return b.simple(a)
}

// labels returns the output labels the statement will have.
func (a *aggregation) labels() []string {
	var out []string
	if len(a.split) > 0 {
		out = append(out, SplitLabel)
	}
	for _, attr := range a.drill {
		out = append(out, attr.Ref())
	}
	for _, agg := range a.aggs.native {
		out = append(out, agg.Name)
	}
	return out
}

func (b *Builder) simple(a *aggregation) (*Statement, error) {
	star := a.star
	resolve := resolver(star.Column)

	aggAttrs, err := b.aggregateAttributes(a.aggs.native)
	if err != nil {
		return nil, err
	}
	required := appendAttrs(nil, a.drill...)
	required = appendAttrs(required, cutAttributes(a.cuts)...)
	required = appendAttrs(required, cutAttributes(a.split)...)
	required = appendAttrs(required, ptdAttributes(a.ptd)...)
	required = appendAttrs(required, aggAttrs...)
	if a.snapshot != nil {
		required = appendAttrs(required, finestKey(a.snapshot))
	}
	from, touched, err := star.JoinExpression(required)
	if err != nil {
		return nil, err
	}

	cutWhere, err := cutConditions(a.cuts, resolve)
	if err != nil {
		return nil, err
	}
	where := sqlast.And(cutWhere, ptdWhere(a.ptd))

	ctx := aggregateContext{resolve: resolve, factKey: sqlast.Col(star.Fact().Ident(), b.cube.FactKey())}

	if stmt, ok, err := b.fastPath(a, ctx, from, touched, where); ok || err != nil {
		return stmt, err
	}

	sel, err := a.dimensions(resolve)
	if err != nil {
		return nil, err
	}
	if a.snapshot != nil {
		snap, err := b.snapshot(a, from, where)
		if err != nil {
			return nil, err
		}
		from = &sqlast.JoinedTable{Left: from, Type: sqlast.JoinLeft, Right: snap.relation, Condition: snap.join}
		ctx.snapshot = snap
	}
	if sel, err = b.measures(sel, ctx, a.aggs.native); err != nil {
		return nil, err
	}

	stmt := &sqlast.SelectStmt{Columns: sel.items, From: from, Where: where, GroupBy: sel.groupBy}
	if err := b.finish(stmt, sel, a, resolve); err != nil {
		return nil, err
	}
	return &Statement{Select: stmt, Labels: sel.labels, Method: MethodSimple, PostAggregates: a.aggs.post}, nil
}

// fastPath compiles a summary of a single record count or pre-aggregated
// column without grouping. ok is false when the request does not qualify.
func (b *Builder) fastPath(a *aggregation, ctx aggregateContext, from sqlast.TableRef, touched []*schema.Table, where sqlast.Expr) (*Statement, bool, error) {
	if !a.drilldown.IsEmpty() || len(a.split) > 0 || len(a.aggs.native) != 1 || len(a.aggs.post) > 0 {
		return nil, false, nil
	}
	agg := a.aggs.native[0]
	if isDerived(agg) {
		return nil, false, nil
	}
	fn, ok := b.registry.Lookup(agg.Function)
	if !ok || (fn.Name != "count" && fn.Name != functions.Identity) {
		return nil, false, nil
	}
	for _, t := range touched {
		if t.Relationship == schema.RelationshipOuterDetail {
			return nil, false, nil
		}
	}

	var expr sqlast.Expr = sqlast.CountStar()
	if fn.Name != "count" {
		var err error
		if expr, err = b.aggregateExpr(ctx, agg, 0); err != nil {
			return nil, false, err
		}
	}
	stmt := &sqlast.SelectStmt{Columns: []sqlast.SelectItem{sqlast.Item(expr, agg.Name)}, From: from, Where: where}
	return &Statement{Select: stmt, Labels: []string{agg.Name}, Method: MethodSimple}, true, nil
}

// dimensions selects and groups the split flag and the drilldown
// attributes.
func (a *aggregation) dimensions(resolve resolver) (selection, error) {
	var sel selection
	if len(a.split) > 0 {
		cond, err := cutConditions(a.split, resolve)
		if err != nil {
			return selection{}, err
		}
		if cond == nil {
			cond = sqlast.Bool(true)
		}
		flag := &sqlast.CaseExpr{
			Whens: []sqlast.WhenClause{{Condition: cond, Result: sqlast.Bool(true)}},
			Else:  sqlast.Bool(false),
		}
		sel = sel.grouped(flag, SplitLabel)
	}
	for _, attr := range a.drill {
		col, err := resolve(attr)
		if err != nil {
			return selection{}, err
		}
		sel = sel.grouped(col, attr.Ref())
	}
	return sel, nil
}

// measures selects the aggregates labeled by name.
func (b *Builder) measures(sel selection, ctx aggregateContext, aggs []*domain.MeasureAggregate) (selection, error) {
	for _, agg := range aggs {
		expr, err := b.aggregateExpr(ctx, agg, 0)
		if err != nil {
			return selection{}, err
		}
		sel = sel.with(expr, agg.Name)
	}
	return sel, nil
}

// finish adds ordering and paging.
func (b *Builder) finish(stmt *sqlast.SelectStmt, sel selection, a *aggregation, resolve resolver) error {
	order, err := b.orderBy(sel, a.req.Order, a.drilldown.Levels(), resolve)
	if err != nil {
		return err
	}
	stmt.OrderBy = order
	return paginate(stmt, a.req.Page, a.req.PageSize)
}

// snapshot is the relation of the latest time key per drilldown group,
// used by non-additive aggregates.
type snapshot struct {
	relation sqlast.TableRef
	join     sqlast.Expr
	timeKey  sqlast.Expr
}

func finestKey(item *cell.DrilldownItem) *domain.Attribute {
	levels := item.Hierarchy.Levels
	return levels[len(levels)-1].Key()
}

// snapshot builds `(SELECT keys..., MAX(time key) FROM ... GROUP BY keys)`
// joined back on every drilldown key. The finest time key must be ordered
// across the whole hierarchy, a date or a date id.
func (b *Builder) snapshot(a *aggregation, from sqlast.TableRef, where sqlast.Expr) (*snapshot, error) {
	timeKey, err := a.star.Column(finestKey(a.snapshot))
	if err != nil {
		return nil, err
	}
	var sel selection
	var conds []sqlast.Expr
	for i, key := range a.drilldown.KeyAttributes() {
		col, err := a.star.Column(key)
		if err != nil {
			return nil, err
		}
		alias := fmt.Sprintf("__key%d", i)
		sel = sel.grouped(col, alias)
		conds = append(conds, sqlast.Eq(col, sqlast.Col(SnapshotAlias, alias)))
	}
	sel = sel.with(sqlast.Func("MAX", timeKey), snapshotMax)

	sub := &sqlast.SelectStmt{Columns: sel.items, From: from, Where: where, GroupBy: sel.groupBy}
	return &snapshot{
		relation: &sqlast.DerivedTable{Select: sub, Alias: SnapshotAlias},
		join:     sqlast.And(conds...),
		timeKey:  timeKey,
	}, nil
}

// composed compiles the two-phase statement: the master fact sub-query
// applies master cuts and exposes every column the outer statement reads,
// the outer statement joins the outer-detail tables to it.
func (b *Builder) composed(a *aggregation) (*Statement, error) {
	star := a.star
	masterCuts, detailCuts := splitBuckets(a.cuts)
	masterSplit, detailSplit := splitBuckets(a.split)
	masterPTD, detailPTD := splitPTD(a.ptd)
	masterDrill, detailDrill, err := bucketAttributes(star, a.drill)
	if err != nil {
		return nil, err
	}
	aggAttrs, err := b.aggregateAttributes(a.aggs.native)
	if err != nil {
		return nil, err
	}

	exposed := appendAttrs(nil, masterDrill...)
	exposed = appendAttrs(exposed, cutAttributes(masterSplit)...)
	exposed = appendAttrs(exposed, aggAttrs...)

	details := appendAttrs(nil, detailDrill...)
	details = appendAttrs(details, cutAttributes(detailCuts)...)
	details = appendAttrs(details, cutAttributes(detailSplit)...)
	details = appendAttrs(details, ptdAttributes(detailPTD)...)

	outlets, err := star.Outlets(details)
	if err != nil {
		return nil, err
	}

	master, override, err := b.masterFact(a, exposed, masterCuts, masterPTD, outlets)
	if err != nil {
		return nil, err
	}
	from, _, err := star.RebasedJoinExpression(master, MasterFactAlias, details, outlets)
	if err != nil {
		return nil, err
	}

	resolve := func(attr *domain.Attribute) (sqlast.Expr, error) {
		if e, ok := override[attr]; ok {
			return e, nil
		}
		return star.Column(attr)
	}
	detailWhere, err := cutConditions(detailCuts, star.Column)
	if err != nil {
		return nil, err
	}
	where := sqlast.And(detailWhere, ptdWhere(detailPTD))

	sel, err := a.dimensions(resolve)
	if err != nil {
		return nil, err
	}
	ctx := aggregateContext{resolve: resolve, factKey: sqlast.Col(MasterFactAlias, FactKeyLabel)}
	if sel, err = b.measures(sel, ctx, a.aggs.native); err != nil {
		return nil, err
	}

	stmt := &sqlast.SelectStmt{Columns: sel.items, From: from, Where: where, GroupBy: sel.groupBy}
	if err := b.finish(stmt, sel, a, resolve); err != nil {
		return nil, err
	}
	return &Statement{Select: stmt, Labels: sel.labels, Method: MethodComposed, PostAggregates: a.aggs.post}, nil
}

// masterFact builds the master fact sub-query. It returns the relation and
// the outer column of every exposed attribute.
func (b *Builder) masterFact(a *aggregation, exposed []*domain.Attribute, cuts []boundCut, ptd []ptdCondition, outlets []schema.Outlet) (sqlast.TableRef, map[*domain.Attribute]sqlast.Expr, error) {
	star := a.star
	required := appendAttrs(slices.Clone(exposed), cutAttributes(cuts)...)
	required = appendAttrs(required, ptdAttributes(ptd)...)
	keys, err := star.RequiredTables(required)
	if err != nil {
		return nil, nil, err
	}
	keys = appendKeys(keys, star.Fact().Key())
	keys = appendKeys(keys, schema.OutletTables(outlets)...)
	from, _, err := star.JoinTables(keys)
	if err != nil {
		return nil, nil, err
	}

	var sel selection
	override := make(map[*domain.Attribute]sqlast.Expr, len(exposed))
	for _, attr := range exposed {
		col, err := star.Column(attr)
		if err != nil {
			return nil, nil, err
		}
		sel = sel.with(col, attr.Ref())
		override[attr] = sqlast.Col(MasterFactAlias, attr.Ref())
	}
	sel = sel.with(sqlast.Col(star.Fact().Ident(), b.cube.FactKey()), FactKeyLabel)
	for _, o := range outlets {
		sel = sel.with(sqlast.Col(o.Table.Ident(), o.Column), o.Alias)
	}

	cutWhere, err := cutConditions(cuts, star.Column)
	if err != nil {
		return nil, nil, err
	}
	stmt := &sqlast.SelectStmt{Columns: sel.items, From: from, Where: sqlast.And(cutWhere, ptdWhere(ptd))}
	return &sqlast.DerivedTable{Select: stmt, Alias: MasterFactAlias}, override, nil
}

func appendKeys(list []mapper.TableKey, keys ...mapper.TableKey) []mapper.TableKey {
	for _, k := range keys {
		if !slices.Contains(list, k) {
			list = append(list, k)
		}
	}
	return list
}

// bucketAttributes partitions attributes by the relationship of their
// tables.
func bucketAttributes(star *schema.Star, attrs []*domain.Attribute) (master, detail []*domain.Attribute, err error) {
	for _, attr := range attrs {
		rel, err := star.Relationship(attr)
		if err != nil {
			return nil, nil, err
		}
		if rel == schema.RelationshipOuterDetail {
			detail = append(detail, attr)
		} else {
			master = append(master, attr)
		}
	}
	return master, detail, nil
}

// ptdCondition is the periods-to-date condition of one level key.
type ptdCondition struct {
	attr *domain.Attribute
	rel  schema.Relationship
	cond sqlast.Expr
}

// involvedLevels returns the drilled levels and the levels touched by cuts.
func involvedLevels(dd *cell.Drilldown, cuts []boundCut) []*domain.Level {
	levels := dd.Levels()
	for _, c := range cuts {
		for _, l := range c.hierarchy.Levels[:len(c.attrs)] {
			if !slices.Contains(levels, l) {
				levels = append(levels, l)
			}
		}
	}
	return levels
}

// ptdConditions collects the mapping conditions of the level keys.
func ptdConditions(star *schema.Star, levels []*domain.Level) ([]ptdCondition, error) {
	var out []ptdCondition
	for _, l := range levels {
		key := l.Key()
		cond, err := star.Condition(key)
		if err != nil {
			return nil, err
		}
		if cond == nil {
			continue
		}
		rel, err := star.Relationship(key)
		if err != nil {
			return nil, err
		}
		out = append(out, ptdCondition{attr: key, rel: rel, cond: cond})
	}
	return out, nil
}

func splitPTD(conds []ptdCondition) (master, detail []ptdCondition) {
	for _, c := range conds {
		if c.rel == schema.RelationshipOuterDetail {
			detail = append(detail, c)
		} else {
			master = append(master, c)
		}
	}
	return master, detail
}

func ptdAttributes(conds []ptdCondition) []*domain.Attribute {
	var out []*domain.Attribute
	for _, c := range conds {
		out = appendAttrs(out, c.attr)
	}
	return out
}

func ptdWhere(conds []ptdCondition) sqlast.Expr {
	exprs := make([]sqlast.Expr, len(conds))
	for i, c := range conds {
		exprs[i] = c.cond
	}
	return sqlast.And(exprs...)
}
