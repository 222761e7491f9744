package sqlast

import "strconv"

// Constructors for the node shapes the compiler emits most often.

// Col returns a qualified column reference.
func Col(table, column string) *ColumnRef {
	return &ColumnRef{Table: table, Column: column}
}

// Value wraps v as a bound parameter.
func Value(v any) *Param {
	return &Param{Value: v}
}

// Int returns an integer literal.
func Int(n int) *Literal {
	return &Literal{Type: LiteralNumber, Value: strconv.Itoa(n)}
}

// Bool returns a boolean literal.
func Bool(b bool) *Literal {
	if b {
		return &Literal{Type: LiteralBool, Value: "TRUE"}
	}
	return &Literal{Type: LiteralBool, Value: "FALSE"}
}

// Null returns the NULL literal.
func Null() *Literal {
	return &Literal{Type: LiteralNull, Value: "NULL"}
}

// Binary returns `left op right`.
func Binary(left Expr, op TokenType, right Expr) *BinaryExpr {
	return &BinaryExpr{Left: left, Op: op, Right: right}
}

// Eq returns `left = right`.
func Eq(left, right Expr) *BinaryExpr { return Binary(left, TOKEN_EQ, right) }

// Ne returns `left <> right`.
func Ne(left, right Expr) *BinaryExpr { return Binary(left, TOKEN_NE, right) }

// Lt returns `left < right`.
func Lt(left, right Expr) *BinaryExpr { return Binary(left, TOKEN_LT, right) }

// Le returns `left <= right`.
func Le(left, right Expr) *BinaryExpr { return Binary(left, TOKEN_LE, right) }

// Gt returns `left > right`.
func Gt(left, right Expr) *BinaryExpr { return Binary(left, TOKEN_GT, right) }

// Ge returns `left >= right`.
func Ge(left, right Expr) *BinaryExpr { return Binary(left, TOKEN_GE, right) }

// And joins the non-nil conditions with AND. OR operands are parenthesized.
// It returns nil when no condition remains.
func And(conds ...Expr) Expr {
	return fold(TOKEN_AND, conds, func(e Expr) Expr {
		if b, ok := e.(*BinaryExpr); ok && b.Op == TOKEN_OR {
			return &ParenExpr{Expr: e}
		}
		return e
	})
}

// Or joins the non-nil conditions with OR. It returns nil when no condition
// remains.
func Or(conds ...Expr) Expr {
	return fold(TOKEN_OR, conds, func(e Expr) Expr { return e })
}

func fold(op TokenType, conds []Expr, wrap func(Expr) Expr) Expr {
	var out Expr
	for _, c := range conds {
		if c == nil {
			continue
		}
		if out == nil {
			out = c
			continue
		}
		out = Binary(wrap(out), op, wrap(c))
	}
	return out
}

// Not negates e. Binary operands are parenthesized.
func Not(e Expr) Expr {
	return &UnaryExpr{Op: TOKEN_NOT, Expr: Paren(e)}
}

// Paren wraps binary expressions in parentheses and returns anything else
// unchanged.
func Paren(e Expr) Expr {
	if _, ok := e.(*BinaryExpr); ok {
		return &ParenExpr{Expr: e}
	}
	return e
}

// Func returns a function call.
func Func(name string, args ...Expr) *FuncCall {
	return &FuncCall{Name: name, Args: args}
}

// CountStar returns COUNT(*).
func CountStar() *FuncCall {
	return &FuncCall{Name: "COUNT", Star: true}
}

// Coalesce returns COALESCE(e, fallback).
func Coalesce(e, fallback Expr) *FuncCall {
	return Func("COALESCE", e, fallback)
}

// Item returns a select list item with an optional alias.
func Item(e Expr, alias string) SelectItem {
	return SelectItem{Expr: e, Alias: alias}
}
