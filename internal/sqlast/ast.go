// Package sqlast provides the relational statement primitive used by the
// query compiler: a SELECT-only AST, a flat formatter producing either
// parameterized or inline SQL, and a small expression parser for mapping
// expressions and periods-to-date conditions.
//
// The AST is deliberately limited to what star-schema aggregation needs:
// derived tables, nested left/inner joins, boolean predicates, aggregate
// function calls, CASE, EXTRACT and CAST.
package sqlast

// Node is the base interface for all AST nodes.
type Node interface {
	node()
}

// Expr is a marker interface for expression nodes.
type Expr interface {
	Node
	exprNode()
}

// Stmt is a marker interface for statement nodes.
type Stmt interface {
	Node
	stmtNode()
}

// TableRef is a marker interface for table reference nodes.
type TableRef interface {
	Node
	tableRefNode()
}
