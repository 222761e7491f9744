package sqlast

import "strings"

// WalkExpr calls fn for e and every expression nested in it, in depth-first
// pre-order. Returning false from fn skips the node's children.
func WalkExpr(e Expr, fn func(Expr) bool) {
	if e == nil || !fn(e) {
		return
	}
	switch x := e.(type) {
	case *BinaryExpr:
		WalkExpr(x.Left, fn)
		WalkExpr(x.Right, fn)
	case *UnaryExpr:
		WalkExpr(x.Expr, fn)
	case *ParenExpr:
		WalkExpr(x.Expr, fn)
	case *FuncCall:
		for _, a := range x.Args {
			WalkExpr(a, fn)
		}
	case *CaseExpr:
		WalkExpr(x.Operand, fn)
		for _, w := range x.Whens {
			WalkExpr(w.Condition, fn)
			WalkExpr(w.Result, fn)
		}
		WalkExpr(x.Else, fn)
	case *CastExpr:
		WalkExpr(x.Expr, fn)
	case *InExpr:
		WalkExpr(x.Expr, fn)
		for _, v := range x.Values {
			WalkExpr(v, fn)
		}
	case *BetweenExpr:
		WalkExpr(x.Expr, fn)
		WalkExpr(x.Low, fn)
		WalkExpr(x.High, fn)
	case *IsNullExpr:
		WalkExpr(x.Expr, fn)
	case *LikeExpr:
		WalkExpr(x.Expr, fn)
		WalkExpr(x.Pattern, fn)
	case *ExtractExpr:
		WalkExpr(x.Expr, fn)
	}
}

// CollectFunctions returns the deduplicated, lowercased names of all
// functions called in e.
func CollectFunctions(e Expr) []string {
	seen := make(map[string]bool)
	var names []string
	WalkExpr(e, func(x Expr) bool {
		if fn, ok := x.(*FuncCall); ok {
			name := strings.ToLower(fn.Name)
			if !seen[name] {
				seen[name] = true
				names = append(names, name)
			}
		}
		return true
	})
	return names
}

// CollectColumns returns every column reference in e, in walk order.
func CollectColumns(e Expr) []*ColumnRef {
	var cols []*ColumnRef
	WalkExpr(e, func(x Expr) bool {
		if c, ok := x.(*ColumnRef); ok {
			cols = append(cols, c)
		}
		return true
	})
	return cols
}

// RewriteColumns returns a copy of e in which every column reference is
// replaced by fn's result. The input tree is left untouched.
func RewriteColumns(e Expr, fn func(*ColumnRef) Expr) Expr {
	if e == nil {
		return nil
	}
	rw := func(x Expr) Expr { return RewriteColumns(x, fn) }
	switch x := e.(type) {
	case *ColumnRef:
		return fn(x)
	case *BinaryExpr:
		return &BinaryExpr{Left: rw(x.Left), Op: x.Op, Right: rw(x.Right)}
	case *UnaryExpr:
		return &UnaryExpr{Op: x.Op, Expr: rw(x.Expr)}
	case *ParenExpr:
		return &ParenExpr{Expr: rw(x.Expr)}
	case *FuncCall:
		out := &FuncCall{Name: x.Name, Distinct: x.Distinct, Star: x.Star}
		for _, a := range x.Args {
			out.Args = append(out.Args, rw(a))
		}
		return out
	case *CaseExpr:
		out := &CaseExpr{Operand: rw(x.Operand), Else: rw(x.Else)}
		for _, w := range x.Whens {
			out.Whens = append(out.Whens, WhenClause{Condition: rw(w.Condition), Result: rw(w.Result)})
		}
		return out
	case *CastExpr:
		return &CastExpr{Expr: rw(x.Expr), TypeName: x.TypeName}
	case *InExpr:
		out := &InExpr{Expr: rw(x.Expr), Not: x.Not}
		for _, v := range x.Values {
			out.Values = append(out.Values, rw(v))
		}
		return out
	case *BetweenExpr:
		return &BetweenExpr{Expr: rw(x.Expr), Not: x.Not, Low: rw(x.Low), High: rw(x.High)}
	case *IsNullExpr:
		return &IsNullExpr{Expr: rw(x.Expr), Not: x.Not}
	case *LikeExpr:
		return &LikeExpr{Expr: rw(x.Expr), Not: x.Not, Pattern: rw(x.Pattern)}
	case *ExtractExpr:
		return &ExtractExpr{Field: x.Field, Expr: rw(x.Expr)}
	default:
		return e
	}
}

// CollectTableNames returns the deduplicated names of base tables referenced
// by a FROM tree, descending into joins and derived tables.
func CollectTableNames(ref TableRef) []string {
	seen := make(map[string]bool)
	var tables []string
	var visit func(TableRef)
	visit = func(r TableRef) {
		switch t := r.(type) {
		case *TableName:
			if !seen[t.Name] {
				seen[t.Name] = true
				tables = append(tables, t.Name)
			}
		case *DerivedTable:
			if t.Select != nil {
				visit(t.Select.From)
			}
		case *JoinedTable:
			visit(t.Left)
			visit(t.Right)
		}
	}
	visit(ref)
	return tables
}
