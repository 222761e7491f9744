package sqlast

import (
	"fmt"
	"strings"
)

// Parser parses SQL expressions into an AST using precedence climbing.
type Parser struct {
	lexer  *Lexer
	token  Token // current token
	peek   Token // lookahead token
	errors []error
}

// NewParser creates a new parser for the given expression text.
func NewParser(input string) *Parser {
	p := &Parser{lexer: NewLexer(input)}
	p.nextToken()
	p.nextToken()
	return p
}

// ParseExpr parses a standalone expression from SQL text.
func ParseExpr(input string) (Expr, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, fmt.Errorf("empty expression")
	}

	p := NewParser(input)
	expr := p.parseExpression()
	if len(p.errors) > 0 {
		return nil, p.errors[0]
	}
	if p.token.Type != TOKEN_EOF {
		return nil, fmt.Errorf("unexpected token after expression: %s", p.token.Literal)
	}
	return expr, nil
}

func (p *Parser) nextToken() {
	p.token = p.peek
	p.peek = p.lexer.NextToken()
}

func (p *Parser) check(t TokenType) bool {
	return p.token.Type == t
}

func (p *Parser) match(t TokenType) bool {
	if p.check(t) {
		p.nextToken()
		return true
	}
	return false
}

func (p *Parser) expect(t TokenType) bool {
	if p.check(t) {
		p.nextToken()
		return true
	}
	p.addError(fmt.Sprintf("unexpected token %s, expected %s", p.token.Type, t))
	return false
}

func (p *Parser) addError(msg string) {
	p.errors = append(p.errors, fmt.Errorf("parse error: %s", msg))
}

func (p *Parser) parseExpression() Expr {
	return p.parseExpressionWithPrecedence(PrecedenceNone + 1)
}

func (p *Parser) parseExpressionWithPrecedence(minPrecedence int) Expr {
	left := p.parsePrefixExpr()
	if left == nil {
		return nil
	}
	for len(p.errors) == 0 {
		prec := p.infixPrecedence()
		if prec < minPrecedence {
			break
		}
		left = p.parseInfixExpr(left, prec)
		if left == nil {
			break
		}
	}
	return left
}

func (p *Parser) parsePrefixExpr() Expr {
	switch p.token.Type {
	case TOKEN_NOT:
		p.nextToken()
		return &UnaryExpr{Op: TOKEN_NOT, Expr: p.parseExpressionWithPrecedence(PrecedenceNot)}
	case TOKEN_MINUS:
		p.nextToken()
		return &UnaryExpr{Op: TOKEN_MINUS, Expr: p.parseExpressionWithPrecedence(PrecedenceUnary)}
	case TOKEN_PLUS:
		p.nextToken()
		return p.parseExpressionWithPrecedence(PrecedenceUnary)
	default:
		return p.parsePrimary()
	}
}

func (p *Parser) infixPrecedence() int {
	switch p.token.Type {
	case TOKEN_OR:
		return PrecedenceOr
	case TOKEN_AND:
		return PrecedenceAnd
	case TOKEN_EQ, TOKEN_NE, TOKEN_LT, TOKEN_GT, TOKEN_LE, TOKEN_GE,
		TOKEN_IS, TOKEN_IN, TOKEN_BETWEEN, TOKEN_LIKE, TOKEN_NOT:
		return PrecedenceComparison
	case TOKEN_PLUS, TOKEN_MINUS, TOKEN_DPIPE:
		return PrecedenceAddition
	case TOKEN_STAR, TOKEN_SLASH, TOKEN_MOD:
		return PrecedenceMultiply
	default:
		return PrecedenceNone
	}
}

func (p *Parser) parseInfixExpr(left Expr, prec int) Expr {
	switch p.token.Type {
	case TOKEN_NOT:
		p.nextToken()
		return p.parseNegatedInfix(left, true)
	case TOKEN_IS:
		p.nextToken()
		not := p.match(TOKEN_NOT)
		if !p.expect(TOKEN_NULL) {
			return nil
		}
		return &IsNullExpr{Expr: left, Not: not}
	case TOKEN_IN, TOKEN_BETWEEN, TOKEN_LIKE:
		return p.parseNegatedInfix(left, false)
	default:
		op := p.token.Type
		p.nextToken()
		right := p.parseExpressionWithPrecedence(prec + 1)
		if right == nil {
			return nil
		}
		return &BinaryExpr{Left: left, Op: op, Right: right}
	}
}

// parseNegatedInfix parses IN, BETWEEN and LIKE with an optional NOT
// already consumed.
func (p *Parser) parseNegatedInfix(left Expr, not bool) Expr {
	switch {
	case p.match(TOKEN_IN):
		in := &InExpr{Expr: left, Not: not}
		p.expect(TOKEN_LPAREN)
		in.Values = p.parseExpressionList()
		p.expect(TOKEN_RPAREN)
		return in
	case p.match(TOKEN_BETWEEN):
		between := &BetweenExpr{Expr: left, Not: not}
		between.Low = p.parseExpressionWithPrecedence(PrecedenceAddition)
		p.expect(TOKEN_AND)
		between.High = p.parseExpressionWithPrecedence(PrecedenceAddition)
		return between
	case p.match(TOKEN_LIKE):
		return &LikeExpr{Expr: left, Not: not, Pattern: p.parseExpressionWithPrecedence(PrecedenceAddition)}
	default:
		p.addError("expected IN, BETWEEN or LIKE after NOT")
		return nil
	}
}

func (p *Parser) parseExpressionList() []Expr {
	var exprs []Expr
	for {
		expr := p.parseExpression()
		if expr == nil {
			return exprs
		}
		exprs = append(exprs, expr)
		if !p.match(TOKEN_COMMA) {
			return exprs
		}
	}
}

func (p *Parser) parsePrimary() Expr {
	switch p.token.Type {
	case TOKEN_NUMBER:
		lit := &Literal{Type: LiteralNumber, Value: p.token.Literal}
		p.nextToken()
		return lit
	case TOKEN_STRING:
		lit := &Literal{Type: LiteralString, Value: p.token.Literal}
		p.nextToken()
		return lit
	case TOKEN_TRUE:
		p.nextToken()
		return &Literal{Type: LiteralBool, Value: "TRUE"}
	case TOKEN_FALSE:
		p.nextToken()
		return &Literal{Type: LiteralBool, Value: "FALSE"}
	case TOKEN_NULL:
		p.nextToken()
		return &Literal{Type: LiteralNull, Value: "NULL"}
	case TOKEN_CASE:
		return p.parseCaseExpr()
	case TOKEN_CAST:
		return p.parseCastExpr()
	case TOKEN_EXTRACT:
		return p.parseExtractExpr()
	case TOKEN_IDENT:
		return p.parseIdentifierExpr()
	case TOKEN_LPAREN:
		p.nextToken()
		expr := p.parseExpression()
		if expr == nil {
			return nil
		}
		p.expect(TOKEN_RPAREN)
		return &ParenExpr{Expr: expr}
	default:
		if p.token.Type == TOKEN_EOF {
			p.addError("unexpected end of expression")
		} else {
			p.addError(fmt.Sprintf("unexpected token in expression: %s (%q)", p.token.Type, p.token.Literal))
		}
		return nil
	}
}

// parseIdentifierExpr parses a column reference (name or table.name) or a
// function call.
func (p *Parser) parseIdentifierExpr() Expr {
	name := p.token.Literal
	quoted := p.token.Quoted
	p.nextToken()

	if p.check(TOKEN_LPAREN) && !quoted {
		return p.parseFuncCall(name)
	}
	if p.match(TOKEN_DOT) {
		if !p.check(TOKEN_IDENT) {
			p.addError("expected column name after '.'")
			return nil
		}
		column := p.token.Literal
		p.nextToken()
		return &ColumnRef{Table: name, Column: column}
	}
	return &ColumnRef{Column: name}
}

func (p *Parser) parseFuncCall(name string) Expr {
	p.expect(TOKEN_LPAREN)
	fn := &FuncCall{Name: name}
	if p.match(TOKEN_STAR) {
		fn.Star = true
		p.expect(TOKEN_RPAREN)
		return fn
	}
	if p.match(TOKEN_RPAREN) {
		return fn
	}
	fn.Distinct = p.match(TOKEN_DISTINCT)
	fn.Args = p.parseExpressionList()
	p.expect(TOKEN_RPAREN)
	return fn
}

func (p *Parser) parseCaseExpr() Expr {
	p.expect(TOKEN_CASE)
	c := &CaseExpr{}
	if !p.check(TOKEN_WHEN) {
		c.Operand = p.parseExpression()
	}
	for p.match(TOKEN_WHEN) {
		when := WhenClause{Condition: p.parseExpression()}
		p.expect(TOKEN_THEN)
		when.Result = p.parseExpression()
		c.Whens = append(c.Whens, when)
	}
	if len(c.Whens) == 0 {
		p.addError("CASE without WHEN")
		return nil
	}
	if p.match(TOKEN_ELSE) {
		c.Else = p.parseExpression()
	}
	p.expect(TOKEN_END)
	return c
}

func (p *Parser) parseCastExpr() Expr {
	p.expect(TOKEN_CAST)
	p.expect(TOKEN_LPAREN)
	cast := &CastExpr{Expr: p.parseExpression()}
	p.expect(TOKEN_AS)
	if !p.check(TOKEN_IDENT) {
		p.addError("expected type name")
		return nil
	}
	cast.TypeName = strings.ToUpper(p.token.Literal)
	p.nextToken()
	p.expect(TOKEN_RPAREN)
	return cast
}

func (p *Parser) parseExtractExpr() Expr {
	p.nextToken() // consume EXTRACT
	p.expect(TOKEN_LPAREN)
	if !p.check(TOKEN_IDENT) {
		p.addError("expected field name in EXTRACT")
		return nil
	}
	field := strings.ToUpper(p.token.Literal)
	p.nextToken()
	p.expect(TOKEN_FROM)
	expr := p.parseExpression()
	p.expect(TOKEN_RPAREN)
	return &ExtractExpr{Field: field, Expr: expr}
}
