// Package query compiles cube requests into SELECT statements: flat fact
// listings, member listings and aggregations. Aggregations choose between a
// single-pass statement and a two-phase master fact + outer detail
// composition depending on how the requested cuts and drilldowns relate to
// the fact table.
//
// Every statement comes with an ordered label list matching its select
// list positionally; result records are rebuilt from it.
package query

import (
	"slices"

	"starquery/internal/domain"
	"starquery/internal/functions"
	"starquery/internal/mapper"
	"starquery/internal/schema"
	"starquery/internal/sqlast"
)

// Reserved labels and relation aliases.
const (
	SplitLabel      = "__within_split__"
	FactKeyLabel    = "__fact_key__"
	MasterFactAlias = "__master_fact"
	SnapshotAlias   = "__snapshot"
	snapshotMax     = "__max_time"
)

// Options configures a Builder.
type Options struct {
	// Locale selects the columns of localized attributes.
	Locale string
	// Coalesce replaces NULL measure values or aggregate results by zero,
	// as each function prefers.
	Coalesce bool
	// Registry of native aggregate functions, functions.Default() when nil.
	Registry *functions.Registry
}

// Builder compiles requests for one cube. It holds no per-request state and
// may be shared.
type Builder struct {
	mapper   *mapper.Mapper
	cube     *domain.Cube
	opts     Options
	registry *functions.Registry
}

// NewBuilder creates a builder over the mapper's cube.
func NewBuilder(m *mapper.Mapper, opts Options) *Builder {
	reg := opts.Registry
	if reg == nil {
		reg = functions.Default()
	}
	return &Builder{mapper: m, cube: m.Cube(), opts: opts, registry: reg}
}

// Cube returns the cube the builder compiles for.
func (b *Builder) Cube() *domain.Cube { return b.cube }

// Registry returns the aggregate function registry in use.
func (b *Builder) Registry() *functions.Registry { return b.registry }

// star builds a fresh join graph for one statement.
func (b *Builder) star() (*schema.Star, error) {
	return schema.New(b.mapper, b.opts.Locale)
}

// Statement is a compiled query with its output labels.
type Statement struct {
	Select *sqlast.SelectStmt
	Labels []string
	Method Method
	// PostAggregates are computed over result records after execution.
	PostAggregates []PostAggregate
}

// SQL formats the statement with `?` placeholders.
func (s *Statement) SQL() (string, []any) {
	return sqlast.Format(s.Select)
}

// Inline formats the statement with values rendered as literals.
func (s *Statement) Inline() string {
	return sqlast.FormatInline(s.Select)
}

// selection accumulates select items, their labels and group-by
// expressions. Every method returns a new value; a selection is never
// modified in place.
type selection struct {
	items   []sqlast.SelectItem
	labels  []string
	groupBy []sqlast.Expr
}

func (s selection) with(expr sqlast.Expr, label string) selection {
	return selection{
		items:   append(slices.Clip(s.items), sqlast.Item(expr, label)),
		labels:  append(slices.Clip(s.labels), label),
		groupBy: s.groupBy,
	}
}

func (s selection) grouped(expr sqlast.Expr, label string) selection {
	out := s.with(expr, label)
	out.groupBy = append(slices.Clip(s.groupBy), expr)
	return out
}

func (s selection) lookup(label string) (sqlast.Expr, bool) {
	for i, l := range s.labels {
		if l == label {
			return s.items[i].Expr, true
		}
	}
	return nil, false
}

// resolver returns the column expression of an attribute in the statement
// being built.
type resolver func(*domain.Attribute) (sqlast.Expr, error)

// appendAttrs appends the attributes not yet in list.
func appendAttrs(list []*domain.Attribute, attrs ...*domain.Attribute) []*domain.Attribute {
	for _, a := range attrs {
		if a != nil && !slices.Contains(list, a) {
			list = append(list, a)
		}
	}
	return list
}
