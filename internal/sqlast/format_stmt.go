package sqlast

func (f *formatter) formatStmt(stmt Stmt) {
	if s, ok := stmt.(*SelectStmt); ok {
		f.formatSelectStmt(s)
	}
}

func (f *formatter) formatSelectStmt(stmt *SelectStmt) {
	f.write("SELECT ")
	if stmt.Distinct {
		f.write("DISTINCT ")
	}
	f.commaSep(len(stmt.Columns), func(i int) {
		f.formatSelectItem(stmt.Columns[i])
	})

	if stmt.From != nil {
		f.write(" FROM ")
		f.formatTableRef(stmt.From)
	}
	if stmt.Where != nil {
		f.write(" WHERE ")
		f.formatExpr(stmt.Where)
	}
	if len(stmt.GroupBy) > 0 {
		f.write(" GROUP BY ")
		f.commaSep(len(stmt.GroupBy), func(i int) {
			f.formatExpr(stmt.GroupBy[i])
		})
	}
	if stmt.Having != nil {
		f.write(" HAVING ")
		f.formatExpr(stmt.Having)
	}
	if len(stmt.OrderBy) > 0 {
		f.write(" ORDER BY ")
		f.commaSep(len(stmt.OrderBy), func(i int) {
			f.formatOrderByItem(stmt.OrderBy[i])
		})
	}
	if stmt.Limit != nil {
		f.write(" LIMIT ")
		f.formatExpr(stmt.Limit)
	}
	if stmt.Offset != nil {
		f.write(" OFFSET ")
		f.formatExpr(stmt.Offset)
	}
}

func (f *formatter) formatSelectItem(item SelectItem) {
	if item.Star {
		f.write("*")
		return
	}
	f.formatExpr(item.Expr)
	if item.Alias != "" {
		f.write(" AS ")
		f.writeIdent(item.Alias)
	}
}

func (f *formatter) formatOrderByItem(item OrderByItem) {
	f.formatExpr(item.Expr)
	if item.Desc {
		f.write(" DESC")
	}
}

func (f *formatter) formatTableRef(ref TableRef) {
	switch t := ref.(type) {
	case *TableName:
		f.formatTableName(t)
	case *DerivedTable:
		f.formatDerivedTable(t)
	case *JoinedTable:
		f.formatJoinedTable(t)
	}
}

func (f *formatter) formatTableName(t *TableName) {
	if t.Schema != "" {
		f.writeIdent(t.Schema)
		f.write(".")
	}
	f.writeIdent(t.Name)
	if t.Alias != "" {
		f.space()
		f.writeIdent(t.Alias)
	}
}

func (f *formatter) formatDerivedTable(t *DerivedTable) {
	f.write("(")
	f.formatSelectStmt(t.Select)
	f.write(")")
	if t.Alias != "" {
		f.space()
		f.writeIdent(t.Alias)
	}
}

func (f *formatter) formatJoinedTable(j *JoinedTable) {
	f.formatTableRef(j.Left)
	switch j.Type {
	case JoinLeft:
		f.write(" LEFT JOIN ")
	default:
		f.write(" JOIN ")
	}
	if nested, ok := j.Right.(*JoinedTable); ok {
		f.write("(")
		f.formatJoinedTable(nested)
		f.write(")")
	} else {
		f.formatTableRef(j.Right)
	}
	if j.Condition != nil {
		f.write(" ON ")
		f.formatExpr(j.Condition)
	}
}
