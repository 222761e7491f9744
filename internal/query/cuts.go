package query

import (
	"starquery/internal/cell"
	"starquery/internal/domain"
	"starquery/internal/schema"
	"starquery/internal/sqlast"
)

// boundCut is a cut resolved against the cube and the join graph.
type boundCut struct {
	cut       cell.Cut
	hierarchy *domain.Hierarchy
	// attrs are the key attributes of every level the cut touches.
	attrs []*domain.Attribute
	rel   schema.Relationship
}

// bindCuts resolves every cut and assigns it to a relationship bucket.
func bindCuts(star *schema.Star, cuts []cell.Cut) ([]boundCut, error) {
	out := make([]boundCut, 0, len(cuts))
	for _, c := range cuts {
		bc, err := bindCut(star, c)
		if err != nil {
			return nil, err
		}
		out = append(out, bc)
	}
	return out, nil
}

func bindCut(star *schema.Star, c cell.Cut) (boundCut, error) {
	target := c.CutTarget()
	dim, err := star.Mapper().Cube().Dimension(target.Dimension)
	if err != nil {
		return boundCut{}, err
	}
	hier, err := dim.Hierarchy(target.Hierarchy)
	if err != nil {
		return boundCut{}, err
	}
	levels, err := hier.LevelsForPath(c.Depth())
	if err != nil {
		return boundCut{}, err
	}

	bc := boundCut{cut: c, hierarchy: hier}
	for i, l := range levels {
		key := l.Key()
		rel, err := star.Relationship(key)
		if err != nil {
			return boundCut{}, err
		}
		if i > 0 && rel != bc.rel {
			return boundCut{}, domain.ErrModel("cut %s straddles %s and %s tables", c, bc.rel, rel)
		}
		bc.rel = rel
		bc.attrs = append(bc.attrs, key)
	}
	return bc, nil
}

// condition compiles the cut to a boolean expression over the columns
// returned by resolve. An empty cut yields nil.
func (bc boundCut) condition(resolve resolver) (sqlast.Expr, error) {
	switch c := bc.cut.(type) {
	case *cell.PointCut:
		cond, err := bc.pointCondition(c.Path, resolve)
		if err != nil || cond == nil {
			return nil, err
		}
		if c.Invert {
			return sqlast.Not(cond), nil
		}
		return cond, nil

	case *cell.RangeCut:
		return bc.rangeCondition(c.From, c.To, c.Invert, resolve)

	case *cell.SetCut:
		conds := make([]sqlast.Expr, 0, len(c.Paths))
		for _, p := range c.Paths {
			cond, err := bc.pointCondition(p, resolve)
			if err != nil {
				return nil, err
			}
			conds = append(conds, cond)
		}
		cond := sqlast.Or(conds...)
		if cond == nil {
			return nil, nil
		}
		if c.Invert {
			return sqlast.Not(cond), nil
		}
		return cond, nil
	}
	return nil, domain.ErrArgument("unsupported cut %T", bc.cut)
}

// pointCondition is the conjunction of key equalities along the path.
func (bc boundCut) pointCondition(path cell.Path, resolve resolver) (sqlast.Expr, error) {
	conds := make([]sqlast.Expr, 0, len(path))
	for i, v := range path {
		col, err := resolve(bc.hierarchy.Levels[i].Key())
		if err != nil {
			return nil, err
		}
		conds = append(conds, sqlast.Eq(col, sqlast.Value(v)))
	}
	return sqlast.And(conds...), nil
}

type bound int

const (
	lowerBound bound = iota
	upperBound
)

// rangeCondition compiles `from <= path <= to` in hierarchical order. An
// inverted range is compiled with negation pushed down to every comparison.
func (bc boundCut) rangeCondition(from, to cell.Path, invert bool, resolve resolver) (sqlast.Expr, error) {
	lower, err := bc.boundary(from, lowerBound, true, invert, resolve)
	if err != nil {
		return nil, err
	}
	upper, err := bc.boundary(to, upperBound, true, invert, resolve)
	if err != nil {
		return nil, err
	}
	if invert {
		return sqlast.Or(lower, upper), nil
	}
	return sqlast.And(lower, upper), nil
}

// boundary compiles one side of a range. For a lower bound [y, m] it yields
// `(y = Y AND m >= M) OR (y > Y)`: the full path compares inclusively, every
// shorter prefix strictly.
func (bc boundCut) boundary(path cell.Path, b bound, full, invert bool, resolve resolver) (sqlast.Expr, error) {
	if len(path) == 0 {
		return nil, nil
	}
	shorter, err := bc.boundary(path[:len(path)-1], b, false, invert, resolve)
	if err != nil {
		return nil, err
	}

	conds := make([]sqlast.Expr, 0, len(path))
	for i, v := range path[:len(path)-1] {
		col, err := resolve(bc.hierarchy.Levels[i].Key())
		if err != nil {
			return nil, err
		}
		if invert {
			conds = append(conds, sqlast.Ne(col, sqlast.Value(v)))
		} else {
			conds = append(conds, sqlast.Eq(col, sqlast.Value(v)))
		}
	}

	last := len(path) - 1
	col, err := resolve(bc.hierarchy.Levels[last].Key())
	if err != nil {
		return nil, err
	}
	conds = append(conds, sqlast.Binary(col, boundOperator(b, full, invert), sqlast.Value(path[last])))

	if invert {
		return sqlast.And(sqlast.Or(conds...), shorter), nil
	}
	return sqlast.Or(sqlast.And(conds...), shorter), nil
}

func boundOperator(b bound, full, invert bool) sqlast.TokenType {
	switch {
	case b == lowerBound && full && !invert:
		return sqlast.TOKEN_GE
	case b == lowerBound && !full && !invert:
		return sqlast.TOKEN_GT
	case b == upperBound && full && !invert:
		return sqlast.TOKEN_LE
	case b == upperBound && !full && !invert:
		return sqlast.TOKEN_LT
	case b == lowerBound && full:
		return sqlast.TOKEN_LT
	case b == lowerBound:
		return sqlast.TOKEN_LE
	case b == upperBound && full:
		return sqlast.TOKEN_GT
	default:
		return sqlast.TOKEN_GE
	}
}

// splitBuckets partitions bound cuts by relationship.
func splitBuckets(cuts []boundCut) (master, detail []boundCut) {
	for _, c := range cuts {
		if c.rel == schema.RelationshipOuterDetail {
			detail = append(detail, c)
		} else {
			master = append(master, c)
		}
	}
	return master, detail
}

func cutAttributes(cuts []boundCut) []*domain.Attribute {
	var out []*domain.Attribute
	for _, c := range cuts {
		out = appendAttrs(out, c.attrs...)
	}
	return out
}

// cutConditions compiles cuts and joins them with AND.
func cutConditions(cuts []boundCut, resolve resolver) (sqlast.Expr, error) {
	conds := make([]sqlast.Expr, 0, len(cuts))
	for _, c := range cuts {
		cond, err := c.condition(resolve)
		if err != nil {
			return nil, err
		}
		conds = append(conds, cond)
	}
	return sqlast.And(conds...), nil
}
