package query

import (
	"slices"

	"starquery/internal/cell"
	"starquery/internal/domain"
	"starquery/internal/sqlast"
)

// orderAttributes resolves the explicitly ordered references that are not
// among the output labels. Those attributes must be joined in.
func (b *Builder) orderAttributes(orders []cell.Order, labels []string) ([]*domain.Attribute, error) {
	var out []*domain.Attribute
	for _, o := range orders {
		if slices.Contains(labels, o.Attribute) {
			continue
		}
		if _, err := b.cube.Aggregate(o.Attribute); err == nil {
			return nil, domain.ErrArgument("can not order by aggregate %q that is not selected", o.Attribute)
		}
		attr, err := b.cube.Attribute(o.Attribute)
		if err != nil {
			return nil, err
		}
		out = appendAttrs(out, attr)
	}
	return out, nil
}

// checkGroupedOrder rejects explicit orders of a grouped statement by
// references that are not among its labels. Such a column has no single
// value per group.
func checkGroupedOrder(orders []cell.Order, labels []string) error {
	for _, o := range orders {
		if !slices.Contains(labels, o.Attribute) {
			return domain.ErrArgument("can not order by %q: it is neither grouped nor a selected aggregate", o.Attribute)
		}
	}
	return nil
}

// orderBy returns the ORDER BY list: the split flag first, then explicit
// orders, then the natural order of every level not ordered explicitly.
// Selected expressions are repeated rather than referenced by alias.
func (b *Builder) orderBy(sel selection, orders []cell.Order, levels []*domain.Level, resolve resolver) ([]sqlast.OrderByItem, error) {
	var items []sqlast.OrderByItem
	if e, ok := sel.lookup(SplitLabel); ok {
		items = append(items, sqlast.OrderByItem{Expr: e})
	}

	ordered := make(map[string]bool)
	add := func(ref string, lookup func() (*domain.Attribute, error), desc bool) error {
		if ordered[ref] {
			return nil
		}
		ordered[ref] = true
		expr, ok := sel.lookup(ref)
		if !ok {
			attr, err := lookup()
			if err != nil {
				return err
			}
			if expr, err = resolve(attr); err != nil {
				return err
			}
		}
		items = append(items, sqlast.OrderByItem{Expr: expr, Desc: desc})
		return nil
	}

	for _, o := range orders {
		lookup := func() (*domain.Attribute, error) { return b.cube.Attribute(o.Attribute) }
		if err := add(o.Attribute, lookup, o.Direction == domain.OrderDesc); err != nil {
			return nil, err
		}
	}
	for _, l := range levels {
		attr := l.OrderAttribute()
		lookup := func() (*domain.Attribute, error) { return attr, nil }
		if err := add(attr.Ref(), lookup, l.OrderDirection() == domain.OrderDesc); err != nil {
			return nil, err
		}
	}
	return items, nil
}

// paginate sets LIMIT and OFFSET. A zero page size disables paging.
func paginate(stmt *sqlast.SelectStmt, page, size int) error {
	if page < 0 || size < 0 {
		return domain.ErrArgument("page and page size must not be negative (page %d, size %d)", page, size)
	}
	if size == 0 {
		return nil
	}
	stmt.Limit = sqlast.Int(size)
	if page > 0 {
		stmt.Offset = sqlast.Int(page * size)
	}
	return nil
}
