package schema

import (
	"starquery/internal/domain"
	"starquery/internal/sqlast"
)

// maxExprDepth bounds nested attribute references in mapping expressions.
const maxExprDepth = 8

// Column returns the column expression of attr with extraction, function
// and mapping expression applied.
func (s *Star) Column(attr *domain.Attribute) (sqlast.Expr, error) {
	return s.column(attr, 0)
}

func (s *Star) column(attr *domain.Attribute, depth int) (sqlast.Expr, error) {
	if depth > maxExprDepth {
		return nil, domain.ErrMapping("mapping expression of %s nests too deep (cyclic reference?)", attr.Ref())
	}
	ref, err := s.mapper.Physical(attr, s.locale)
	if err != nil {
		return nil, err
	}
	table, err := s.TableOf(attr)
	if err != nil {
		return nil, err
	}

	var expr sqlast.Expr
	if ref.Expr != nil {
		expr, err = s.bind(ref.Expr, table, depth)
		if err != nil {
			return nil, err
		}
		expr = sqlast.Paren(expr)
	} else {
		expr = sqlast.Col(table.Ident(), ref.Column)
	}
	if ref.Extract != "" {
		expr = &sqlast.ExtractExpr{Field: ref.Extract, Expr: expr}
	}
	if ref.Func != "" {
		expr = sqlast.Func(ref.Func, expr)
	}
	return expr, nil
}

// Condition returns the bound mapping condition of attr, nil when it has
// none.
func (s *Star) Condition(attr *domain.Attribute) (sqlast.Expr, error) {
	ref, err := s.mapper.Physical(attr, s.locale)
	if err != nil {
		return nil, err
	}
	if ref.Condition == nil {
		return nil, nil
	}
	table, err := s.TableOf(attr)
	if err != nil {
		return nil, err
	}
	cond, err := s.bind(ref.Condition, table, 0)
	if err != nil {
		return nil, err
	}
	return sqlast.Paren(cond), nil
}

// bind resolves the column references of a mapping expression: bare names
// are columns of the owning table, qualified names are logical attributes.
func (s *Star) bind(expr sqlast.Expr, table *Table, depth int) (sqlast.Expr, error) {
	var bindErr error
	bound := sqlast.RewriteColumns(expr, func(c *sqlast.ColumnRef) sqlast.Expr {
		if c.Table == "" {
			return sqlast.Col(table.Ident(), c.Column)
		}
		attr, err := s.mapper.Cube().Attribute(c.Table + "." + c.Column)
		if err == nil {
			var col sqlast.Expr
			col, err = s.column(attr, depth+1)
			if err == nil {
				return col
			}
		}
		if bindErr == nil {
			bindErr = err
		}
		return c
	})
	if bindErr != nil {
		return nil, bindErr
	}
	return bound, nil
}
