package sqlast

// formatExpr dispatches expression formatting by type.
func (f *formatter) formatExpr(e Expr) {
	if e == nil {
		return
	}

	switch expr := e.(type) {
	case *Literal:
		f.formatLiteral(expr)
	case *Param:
		f.formatParam(expr)
	case *ColumnRef:
		f.formatColumnRef(expr)
	case *BinaryExpr:
		f.formatExpr(expr.Left)
		f.space()
		f.write(operatorString(expr.Op))
		f.space()
		f.formatExpr(expr.Right)
	case *UnaryExpr:
		f.formatUnaryExpr(expr)
	case *ParenExpr:
		f.write("(")
		f.formatExpr(expr.Expr)
		f.write(")")
	case *FuncCall:
		f.formatFuncCall(expr)
	case *CaseExpr:
		f.formatCaseExpr(expr)
	case *CastExpr:
		f.write("CAST(")
		f.formatExpr(expr.Expr)
		f.write(" AS ")
		f.write(expr.TypeName)
		f.write(")")
	case *InExpr:
		f.formatExpr(expr.Expr)
		if expr.Not {
			f.write(" NOT")
		}
		f.write(" IN (")
		f.commaSep(len(expr.Values), func(i int) {
			f.formatExpr(expr.Values[i])
		})
		f.write(")")
	case *BetweenExpr:
		f.formatExpr(expr.Expr)
		if expr.Not {
			f.write(" NOT")
		}
		f.write(" BETWEEN ")
		f.formatExpr(expr.Low)
		f.write(" AND ")
		f.formatExpr(expr.High)
	case *IsNullExpr:
		f.formatExpr(expr.Expr)
		if expr.Not {
			f.write(" IS NOT NULL")
		} else {
			f.write(" IS NULL")
		}
	case *LikeExpr:
		f.formatExpr(expr.Expr)
		if expr.Not {
			f.write(" NOT")
		}
		f.write(" LIKE ")
		f.formatExpr(expr.Pattern)
	case *ExtractExpr:
		f.write("EXTRACT(")
		f.write(expr.Field)
		f.write(" FROM ")
		f.formatExpr(expr.Expr)
		f.write(")")
	}
}

func (f *formatter) formatLiteral(lit *Literal) {
	switch lit.Type {
	case LiteralString:
		f.write(quoteString(lit.Value))
	case LiteralBool:
		if lit.Value == "true" || lit.Value == "TRUE" {
			f.write("TRUE")
		} else {
			f.write("FALSE")
		}
	case LiteralNull:
		f.write("NULL")
	default:
		f.write(lit.Value)
	}
}

func (f *formatter) formatColumnRef(col *ColumnRef) {
	if col.Table != "" {
		f.writeIdent(col.Table)
		f.write(".")
	}
	f.writeIdent(col.Column)
}

// operatorString returns the SQL string for a token type used as an operator.
func operatorString(op TokenType) string {
	if name, ok := tokenNames[op]; ok {
		return name
	}
	return "?"
}

func (f *formatter) formatUnaryExpr(expr *UnaryExpr) {
	switch expr.Op {
	case TOKEN_NOT:
		f.write("NOT ")
	default:
		f.write(operatorString(expr.Op))
	}
	f.formatExpr(expr.Expr)
}

func (f *formatter) formatFuncCall(fn *FuncCall) {
	// Function names are written unquoted in original case
	f.write(fn.Name)
	f.write("(")
	if fn.Distinct {
		f.write("DISTINCT ")
	}
	if fn.Star {
		f.write("*")
	} else {
		f.commaSep(len(fn.Args), func(i int) {
			f.formatExpr(fn.Args[i])
		})
	}
	f.write(")")
}

func (f *formatter) formatCaseExpr(c *CaseExpr) {
	f.write("CASE")
	if c.Operand != nil {
		f.space()
		f.formatExpr(c.Operand)
	}
	for _, when := range c.Whens {
		f.write(" WHEN ")
		f.formatExpr(when.Condition)
		f.write(" THEN ")
		f.formatExpr(when.Result)
	}
	if c.Else != nil {
		f.write(" ELSE ")
		f.formatExpr(c.Else)
	}
	f.write(" END")
}
