package sqlast

// === Expression Nodes ===

// ColumnRef represents a column reference, optionally qualified with table name.
type ColumnRef struct {
	Table  string // optional table/alias qualifier
	Column string
}

func (*ColumnRef) node()     {}
func (*ColumnRef) exprNode() {}

// Literal represents a literal value written verbatim (number, string, bool, null).
type Literal struct {
	Type  LiteralType
	Value string
}

func (*Literal) node()     {}
func (*Literal) exprNode() {}

// LiteralType represents the type of a literal.
type LiteralType int

const (
	LiteralNumber LiteralType = iota
	LiteralString
	LiteralBool
	LiteralNull
)

// Param is a bound value. It formats as a `?` placeholder in parameterized
// output and as a literal in inline output.
type Param struct {
	Value any
}

func (*Param) node()     {}
func (*Param) exprNode() {}

// BinaryExpr represents a binary expression (left op right).
type BinaryExpr struct {
	Left  Expr
	Op    TokenType
	Right Expr
}

func (*BinaryExpr) node()     {}
func (*BinaryExpr) exprNode() {}

// UnaryExpr represents a unary expression (NOT x, -x).
type UnaryExpr struct {
	Op   TokenType
	Expr Expr
}

func (*UnaryExpr) node()     {}
func (*UnaryExpr) exprNode() {}

// ParenExpr represents a parenthesized expression.
type ParenExpr struct {
	Expr Expr
}

func (*ParenExpr) node()     {}
func (*ParenExpr) exprNode() {}

// FuncCall represents a function call.
type FuncCall struct {
	Name     string // function name, written in original case
	Distinct bool   // COUNT(DISTINCT ...)
	Args     []Expr
	Star     bool // COUNT(*)
}

func (*FuncCall) node()     {}
func (*FuncCall) exprNode() {}

// CaseExpr represents a searched or simple CASE expression.
type CaseExpr struct {
	Operand Expr // nil for searched CASE
	Whens   []WhenClause
	Else    Expr
}

func (*CaseExpr) node()     {}
func (*CaseExpr) exprNode() {}

// WhenClause represents a WHEN clause in a CASE expression.
type WhenClause struct {
	Condition Expr
	Result    Expr
}

// CastExpr represents CAST(expr AS type).
type CastExpr struct {
	Expr     Expr
	TypeName string
}

func (*CastExpr) node()     {}
func (*CastExpr) exprNode() {}

// InExpr represents an IN list expression.
type InExpr struct {
	Expr   Expr
	Not    bool
	Values []Expr
}

func (*InExpr) node()     {}
func (*InExpr) exprNode() {}

// BetweenExpr represents a BETWEEN expression.
type BetweenExpr struct {
	Expr Expr
	Not  bool
	Low  Expr
	High Expr
}

func (*BetweenExpr) node()     {}
func (*BetweenExpr) exprNode() {}

// IsNullExpr represents IS [NOT] NULL.
type IsNullExpr struct {
	Expr Expr
	Not  bool
}

func (*IsNullExpr) node()     {}
func (*IsNullExpr) exprNode() {}

// LikeExpr represents [NOT] LIKE.
type LikeExpr struct {
	Expr    Expr
	Not     bool
	Pattern Expr
}

func (*LikeExpr) node()     {}
func (*LikeExpr) exprNode() {}

// ExtractExpr represents EXTRACT(field FROM expr).
type ExtractExpr struct {
	Field string // YEAR, MONTH, DAY, ...
	Expr  Expr
}

func (*ExtractExpr) node()     {}
func (*ExtractExpr) exprNode() {}
