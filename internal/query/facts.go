package query

import (
	"starquery/internal/cell"
	"starquery/internal/domain"
	"starquery/internal/sqlast"
)

// FactsRequest describes a flat listing of fact rows.
type FactsRequest struct {
	Cell cell.Cell
	// Attributes to select, by reference. Empty selects the fact details,
	// every dimension attribute and every measure.
	Attributes     []string
	IncludeFactKey bool
	Order          []cell.Order
	Page           int
	PageSize       int
}

// Denormalized compiles a flat listing of the facts in a cell with their
// dimension attributes joined in.
func (b *Builder) Denormalized(req FactsRequest) (*Statement, error) {
	stmt, labels, err := b.denormalized(req, nil)
	if err != nil {
		return nil, err
	}
	return &Statement{Select: stmt, Labels: labels, Method: MethodSimple}, nil
}

// Fact compiles the lookup of a single fact by key.
func (b *Builder) Fact(key any) (*Statement, error) {
	stmt, labels, err := b.denormalized(FactsRequest{IncludeFactKey: true}, key)
	if err != nil {
		return nil, err
	}
	return &Statement{Select: stmt, Labels: labels, Method: MethodSimple}, nil
}

func (b *Builder) denormalized(req FactsRequest, key any) (*sqlast.SelectStmt, []string, error) {
	star, err := b.star()
	if err != nil {
		return nil, nil, err
	}
	attrs, err := b.factAttributes(req.Attributes)
	if err != nil {
		return nil, nil, err
	}
	cuts, err := bindCuts(star, req.Cell.Cuts)
	if err != nil {
		return nil, nil, err
	}

	var sel selection
	factKey := sqlast.Col(star.Fact().Ident(), b.cube.FactKey())
	if req.IncludeFactKey {
		sel = sel.with(factKey, FactKeyLabel)
	}
	for _, attr := range attrs {
		col, err := star.Column(attr)
		if err != nil {
			return nil, nil, err
		}
		sel = sel.with(col, attr.Ref())
	}

	orderAttrs, err := b.orderAttributes(req.Order, sel.labels)
	if err != nil {
		return nil, nil, err
	}
	required := appendAttrs(nil, attrs...)
	required = appendAttrs(required, cutAttributes(cuts)...)
	required = appendAttrs(required, orderAttrs...)
	from, _, err := star.JoinExpression(required)
	if err != nil {
		return nil, nil, err
	}

	where, err := cutConditions(cuts, star.Column)
	if err != nil {
		return nil, nil, err
	}
	if key != nil {
		where = sqlast.And(where, sqlast.Eq(factKey, sqlast.Value(key)))
	}

	stmt := &sqlast.SelectStmt{Columns: sel.items, From: from, Where: where}
	if stmt.OrderBy, err = b.orderBy(sel, req.Order, nil, star.Column); err != nil {
		return nil, nil, err
	}
	if err := paginate(stmt, req.Page, req.PageSize); err != nil {
		return nil, nil, err
	}
	return stmt, sel.labels, nil
}

// factAttributes resolves the listed references, or returns the default
// fact listing attributes.
func (b *Builder) factAttributes(refs []string) ([]*domain.Attribute, error) {
	if len(refs) > 0 {
		out := make([]*domain.Attribute, 0, len(refs))
		for _, ref := range refs {
			attr, err := b.cube.Attribute(ref)
			if err != nil {
				return nil, err
			}
			if _, err := b.cube.Aggregate(ref); err == nil && b.cube.Measure(ref) == nil {
				return nil, domain.ErrArgument("aggregate %q can not be listed with facts", ref)
			}
			out = appendAttrs(out, attr)
		}
		return out, nil
	}
	out := appendAttrs(nil, b.cube.Details...)
	for _, d := range b.cube.Dimensions {
		out = appendAttrs(out, d.Attributes()...)
	}
	for _, m := range b.cube.Measures {
		out = appendAttrs(out, &m.Attribute)
	}
	return out, nil
}

// MembersRequest describes a listing of the distinct members of a
// dimension within a cell.
type MembersRequest struct {
	Cell      cell.Cell
	Dimension string
	Hierarchy string
	// Depth is the number of levels to list, all levels when zero.
	Depth    int
	Order    []cell.Order
	Page     int
	PageSize int
}

// Members compiles a member listing. Members are reached through the fact
// table, so only members with facts in the cell are listed.
func (b *Builder) Members(req MembersRequest) (*Statement, error) {
	star, err := b.star()
	if err != nil {
		return nil, err
	}
	dim, err := b.cube.Dimension(req.Dimension)
	if err != nil {
		return nil, err
	}
	hier, err := dim.Hierarchy(req.Hierarchy)
	if err != nil {
		return nil, err
	}
	depth := req.Depth
	if depth == 0 {
		depth = len(hier.Levels)
	}
	levels, err := hier.LevelsForDepth(depth)
	if err != nil {
		return nil, err
	}
	cuts, err := bindCuts(star, req.Cell.Cuts)
	if err != nil {
		return nil, err
	}

	var sel selection
	var attrs []*domain.Attribute
	for _, l := range levels {
		for _, attr := range l.Attributes {
			col, err := star.Column(attr)
			if err != nil {
				return nil, err
			}
			sel = sel.grouped(col, attr.Ref())
			attrs = appendAttrs(attrs, attr)
		}
	}

	if err := checkGroupedOrder(req.Order, sel.labels); err != nil {
		return nil, err
	}
	required := appendAttrs(attrs, cutAttributes(cuts)...)
	from, _, err := star.JoinExpression(required)
	if err != nil {
		return nil, err
	}
	where, err := cutConditions(cuts, star.Column)
	if err != nil {
		return nil, err
	}

	stmt := &sqlast.SelectStmt{Columns: sel.items, From: from, Where: where, GroupBy: sel.groupBy}
	if stmt.OrderBy, err = b.orderBy(sel, req.Order, levels, star.Column); err != nil {
		return nil, err
	}
	if err := paginate(stmt, req.Page, req.PageSize); err != nil {
		return nil, err
	}
	return &Statement{Select: stmt, Labels: sel.labels, Method: MethodSimple}, nil
}

// CountLabel is the label of the single column of a count statement.
const CountLabel = "count"

// Count wraps stmt to count its rows. Ordering and paging of stmt are
// dropped so the count covers the whole result.
func Count(stmt *Statement) *Statement {
	inner := *stmt.Select
	inner.OrderBy, inner.Limit, inner.Offset = nil, nil, nil
	outer := &sqlast.SelectStmt{
		Columns: []sqlast.SelectItem{sqlast.Item(sqlast.CountStar(), CountLabel)},
		From:    &sqlast.DerivedTable{Select: &inner, Alias: "__count"},
	}
	return &Statement{Select: outer, Labels: []string{CountLabel}, Method: stmt.Method}
}
