package sqlast

// === Statement Nodes ===

// SelectStmt represents a single SELECT statement.
type SelectStmt struct {
	Distinct bool
	Columns  []SelectItem
	From     TableRef
	Where    Expr
	GroupBy  []Expr
	Having   Expr
	OrderBy  []OrderByItem
	Limit    Expr
	Offset   Expr
}

func (*SelectStmt) node()     {}
func (*SelectStmt) stmtNode() {}

// SelectItem represents an item in the SELECT list.
type SelectItem struct {
	Star  bool // SELECT *
	Expr  Expr
	Alias string
}

// OrderByItem represents an item in ORDER BY clause.
type OrderByItem struct {
	Expr Expr
	Desc bool
}

// === Table Reference Nodes ===

// TableName represents a table name reference (schema.name).
type TableName struct {
	Schema string
	Name   string
	Alias  string
}

func (*TableName) node()         {}
func (*TableName) tableRefNode() {}

// Ident returns the name other clauses use to qualify columns of the table.
func (t *TableName) Ident() string {
	if t.Alias != "" {
		return t.Alias
	}
	return t.Name
}

// DerivedTable represents a subquery in FROM clause.
type DerivedTable struct {
	Select *SelectStmt
	Alias  string
}

func (*DerivedTable) node()         {}
func (*DerivedTable) tableRefNode() {}

// JoinType represents the type of join.
type JoinType string

// JoinInner and JoinLeft are the only join types the compiler emits; right
// outer joins are expressed by swapping operands of a left join.
const (
	JoinInner JoinType = "INNER"
	JoinLeft  JoinType = "LEFT"
)

// JoinedTable represents `left JOIN right ON condition`. A JoinedTable used
// as the right operand of another join is parenthesized on output.
type JoinedTable struct {
	Left      TableRef
	Type      JoinType
	Right     TableRef
	Condition Expr
}

func (*JoinedTable) node()         {}
func (*JoinedTable) tableRefNode() {}
