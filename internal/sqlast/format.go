package sqlast

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Format formats a statement AST as parameterized SQL. Every Param becomes a
// `?` placeholder and its value is appended to the returned argument list in
// placeholder order. The output is flat and always double-quotes identifiers.
func Format(stmt Stmt) (string, []any) {
	f := &formatter{params: true}
	f.formatStmt(stmt)
	return strings.TrimSpace(f.buf.String()), f.args
}

// FormatInline formats a statement AST with every Param rendered as a SQL
// literal. Used for explain output and golden tests.
func FormatInline(stmt Stmt) string {
	f := &formatter{}
	f.formatStmt(stmt)
	return strings.TrimSpace(f.buf.String())
}

// FormatExpr formats an expression AST with Params rendered inline.
func FormatExpr(expr Expr) string {
	f := &formatter{}
	f.formatExpr(expr)
	return strings.TrimSpace(f.buf.String())
}

// formatter is a simple SQL string builder. No indentation or pretty-printing.
type formatter struct {
	buf    strings.Builder
	params bool
	args   []any
}

func (f *formatter) write(s string) {
	f.buf.WriteString(s)
}

func (f *formatter) space() {
	f.buf.WriteByte(' ')
}

// quoteIdent unconditionally double-quotes an identifier.
// Internal double quotes are escaped by doubling.
func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

func quoteString(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

func (f *formatter) writeIdent(s string) {
	f.write(quoteIdent(s))
}

// commaSep writes items separated by ", ".
func (f *formatter) commaSep(n int, fn func(i int)) {
	for i := 0; i < n; i++ {
		if i > 0 {
			f.write(", ")
		}
		fn(i)
	}
}

func (f *formatter) formatParam(p *Param) {
	if f.params {
		f.write("?")
		f.args = append(f.args, p.Value)
		return
	}
	f.write(InlineValue(p.Value))
}

// InlineValue renders a Go value as a SQL literal.
func InlineValue(v any) string {
	switch val := v.(type) {
	case nil:
		return "NULL"
	case string:
		return quoteString(val)
	case []byte:
		return quoteString(string(val))
	case bool:
		if val {
			return "TRUE"
		}
		return "FALSE"
	case int:
		return strconv.Itoa(val)
	case int32:
		return strconv.FormatInt(int64(val), 10)
	case int64:
		return strconv.FormatInt(val, 10)
	case float32:
		return strconv.FormatFloat(float64(val), 'g', -1, 32)
	case float64:
		return strconv.FormatFloat(val, 'g', -1, 64)
	case time.Time:
		return quoteString(val.Format("2006-01-02 15:04:05"))
	default:
		return quoteString(fmt.Sprint(val))
	}
}
