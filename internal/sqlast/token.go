package sqlast

import "fmt"

// TokenType represents the type of a lexical token.
type TokenType int

// TOKEN_EOF and friends enumerate the token types of the expression lexer.
const (
	TOKEN_EOF     TokenType = iota // end of input
	TOKEN_ILLEGAL                  // unexpected character

	TOKEN_IDENT  // identifier or "quoted identifier"
	TOKEN_NUMBER // 123, 45.67, 1e10
	TOKEN_STRING // 'hello'

	TOKEN_PLUS   // +
	TOKEN_MINUS  // -
	TOKEN_STAR   // *
	TOKEN_SLASH  // /
	TOKEN_MOD    // %
	TOKEN_DPIPE  // ||
	TOKEN_EQ     // =
	TOKEN_NE     // != or <>
	TOKEN_LT     // <
	TOKEN_GT     // >
	TOKEN_LE     // <=
	TOKEN_GE     // >=
	TOKEN_DOT    // .
	TOKEN_COMMA  // ,
	TOKEN_LPAREN // (
	TOKEN_RPAREN // )

	// TOKEN_AND and below are SQL keywords.
	TOKEN_AND
	TOKEN_AS
	TOKEN_BETWEEN
	TOKEN_CASE
	TOKEN_CAST
	TOKEN_DISTINCT
	TOKEN_ELSE
	TOKEN_END
	TOKEN_EXTRACT
	TOKEN_FALSE
	TOKEN_FROM
	TOKEN_IN
	TOKEN_IS
	TOKEN_LIKE
	TOKEN_NOT
	TOKEN_NULL
	TOKEN_OR
	TOKEN_THEN
	TOKEN_TRUE
	TOKEN_WHEN
)

// Token is a lexical token.
type Token struct {
	Type    TokenType
	Literal string
	Quoted  bool // identifier was double-quoted
}

func (t TokenType) String() string {
	if name, ok := tokenNames[t]; ok {
		return name
	}
	return fmt.Sprintf("TOKEN(%d)", int(t))
}

// tokenNames maps token types to their SQL spelling.
var tokenNames = map[TokenType]string{
	TOKEN_EOF:      "EOF",
	TOKEN_ILLEGAL:  "ILLEGAL",
	TOKEN_IDENT:    "IDENT",
	TOKEN_NUMBER:   "NUMBER",
	TOKEN_STRING:   "STRING",
	TOKEN_PLUS:     "+",
	TOKEN_MINUS:    "-",
	TOKEN_STAR:     "*",
	TOKEN_SLASH:    "/",
	TOKEN_MOD:      "%",
	TOKEN_DPIPE:    "||",
	TOKEN_EQ:       "=",
	TOKEN_NE:       "<>",
	TOKEN_LT:       "<",
	TOKEN_GT:       ">",
	TOKEN_LE:       "<=",
	TOKEN_GE:       ">=",
	TOKEN_DOT:      ".",
	TOKEN_COMMA:    ",",
	TOKEN_LPAREN:   "(",
	TOKEN_RPAREN:   ")",
	TOKEN_AND:      "AND",
	TOKEN_AS:       "AS",
	TOKEN_BETWEEN:  "BETWEEN",
	TOKEN_CASE:     "CASE",
	TOKEN_CAST:     "CAST",
	TOKEN_DISTINCT: "DISTINCT",
	TOKEN_ELSE:     "ELSE",
	TOKEN_END:      "END",
	TOKEN_EXTRACT:  "EXTRACT",
	TOKEN_FALSE:    "FALSE",
	TOKEN_FROM:     "FROM",
	TOKEN_IN:       "IN",
	TOKEN_IS:       "IS",
	TOKEN_LIKE:     "LIKE",
	TOKEN_NOT:      "NOT",
	TOKEN_NULL:     "NULL",
	TOKEN_OR:       "OR",
	TOKEN_THEN:     "THEN",
	TOKEN_TRUE:     "TRUE",
	TOKEN_WHEN:     "WHEN",
}

// keywords maps lowercase keyword strings to their token types.
var keywords = map[string]TokenType{
	"and":      TOKEN_AND,
	"as":       TOKEN_AS,
	"between":  TOKEN_BETWEEN,
	"case":     TOKEN_CASE,
	"cast":     TOKEN_CAST,
	"distinct": TOKEN_DISTINCT,
	"else":     TOKEN_ELSE,
	"end":      TOKEN_END,
	"extract":  TOKEN_EXTRACT,
	"false":    TOKEN_FALSE,
	"from":     TOKEN_FROM,
	"in":       TOKEN_IN,
	"is":       TOKEN_IS,
	"like":     TOKEN_LIKE,
	"not":      TOKEN_NOT,
	"null":     TOKEN_NULL,
	"or":       TOKEN_OR,
	"then":     TOKEN_THEN,
	"true":     TOKEN_TRUE,
	"when":     TOKEN_WHEN,
}

func lookupKeyword(lower string) TokenType {
	if tok, ok := keywords[lower]; ok {
		return tok
	}
	return TOKEN_IDENT
}

// Precedence constants for the Pratt expression parser.
const (
	PrecedenceNone       = 0
	PrecedenceOr         = 1
	PrecedenceAnd        = 2
	PrecedenceNot        = 3
	PrecedenceComparison = 4 // =, <>, <, >, <=, >=, LIKE, IN, BETWEEN, IS
	PrecedenceAddition   = 5 // +, -, ||
	PrecedenceMultiply   = 6 // *, /, %
	PrecedenceUnary      = 7 // prefix -
)
