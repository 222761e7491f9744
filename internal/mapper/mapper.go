// Package mapper resolves logical attribute references of a cube to physical
// table columns.
//
// Resolution first consults the explicit mapping table of the cube, keyed by
// logical reference (`dimension.attribute[.locale]`, or the bare name for
// measures, aggregates, details and flat dimensions). Everything else follows
// the naming convention: fact-owned attributes live in the fact table,
// dimension attributes in `prefix + dimension + suffix`, and the column is
// the attribute name, locale-suffixed for localized attributes.
package mapper

import (
	"fmt"
	"slices"
	"strings"

	"starquery/internal/domain"
	"starquery/internal/sqlast"
)

// TableKey identifies a physical table (or an aliased use of one).
type TableKey struct {
	Schema string
	Table  string
}

func (k TableKey) String() string {
	if k.Schema == "" {
		return k.Table
	}
	return k.Schema + "." + k.Table
}

// Reference is the physical location of a logical attribute. Expr and
// Condition are parsed expressions whose column references still have to be
// bound to the query they are used in.
type Reference struct {
	Schema    string
	Table     string
	Column    string
	Extract   string
	Func      string
	Expr      sqlast.Expr
	Condition sqlast.Expr
}

// TableKey returns the key of the table owning the column.
func (r Reference) TableKey() TableKey {
	return TableKey{Schema: r.Schema, Table: r.Table}
}

// Option configures a Mapper.
type Option func(*Mapper)

// WithLocale sets the default locale for localized attributes.
func WithLocale(locale string) Option {
	return func(m *Mapper) { m.locale = locale }
}

// Mapper maps logical attributes of one cube to physical references.
type Mapper struct {
	cube   *domain.Cube
	locale string

	exprs map[string]sqlast.Expr
	conds map[string]sqlast.Expr
	deps  map[string][]*domain.Attribute
}

// New creates a mapper for cube. Mapping expressions and conditions are
// parsed and validated here, so a malformed mapping fails before any query is
// built.
func New(cube *domain.Cube, opts ...Option) (*Mapper, error) {
	m := &Mapper{
		cube:  cube,
		exprs: make(map[string]sqlast.Expr),
		conds: make(map[string]sqlast.Expr),
		deps:  make(map[string][]*domain.Attribute),
	}
	for _, opt := range opts {
		opt(m)
	}

	refs := make([]string, 0, len(cube.Mappings))
	for ref := range cube.Mappings {
		refs = append(refs, ref)
	}
	slices.Sort(refs)

	for _, ref := range refs {
		spec := cube.Mappings[ref]
		if spec.Extract != "" && !IsExtractField(spec.Extract) {
			return nil, domain.ErrMapping("mapping %q: unsupported extract field %q", ref, spec.Extract)
		}
		if spec.Func != "" && !IsAllowedFunction(spec.Func) {
			return nil, domain.ErrMapping("mapping %q: function %q is not allowed", ref, spec.Func)
		}
		if spec.Expr != "" {
			expr, err := m.parse(ref, spec.Expr)
			if err != nil {
				return nil, err
			}
			m.exprs[ref] = expr
		}
		if spec.Condition != "" {
			cond, err := m.parse(ref, spec.Condition)
			if err != nil {
				return nil, err
			}
			m.conds[ref] = cond
		}
	}
	return m, nil
}

func (m *Mapper) parse(ref, text string) (sqlast.Expr, error) {
	expr, err := sqlast.ParseExpr(text)
	if err != nil {
		return nil, domain.ErrMapping("mapping %q: %v", ref, err)
	}
	for _, fn := range sqlast.CollectFunctions(expr) {
		if !IsAllowedFunction(fn) {
			return nil, domain.ErrMapping("mapping %q: function %q is not allowed", ref, fn)
		}
	}
	for _, col := range sqlast.CollectColumns(expr) {
		if col.Table == "" {
			continue
		}
		attr, err := m.cube.Attribute(col.Table + "." + col.Column)
		if err != nil {
			return nil, domain.ErrMapping("mapping %q: %v", ref, err)
		}
		if !slices.Contains(m.deps[ref], attr) {
			m.deps[ref] = append(m.deps[ref], attr)
		}
	}
	return expr, nil
}

// Cube returns the mapped cube.
func (m *Mapper) Cube() *domain.Cube { return m.cube }

// Locale returns the default locale.
func (m *Mapper) Locale() string { return m.locale }

// FactTable returns the key of the fact table.
func (m *Mapper) FactTable() TableKey {
	return TableKey{Schema: m.cube.Schema, Table: m.cube.FactName()}
}

// resolveLocale picks the locale used for attr: the requested one when the
// attribute has it, else the attribute's first locale.
func (m *Mapper) resolveLocale(attr *domain.Attribute, locale string) string {
	if !attr.IsLocalizable() {
		return ""
	}
	if locale == "" {
		locale = m.locale
	}
	if slices.Contains(attr.Locales, locale) {
		return locale
	}
	return attr.Locales[0]
}

// LogicalRef returns the mapping key of attr for locale.
func (m *Mapper) LogicalRef(attr *domain.Attribute, locale string) string {
	ref := attr.Ref()
	if loc := m.resolveLocale(attr, locale); loc != "" {
		ref += "." + loc
	}
	return ref
}

// Physical resolves attr to its physical reference. An empty locale uses the
// mapper default.
func (m *Mapper) Physical(attr *domain.Attribute, locale string) (Reference, error) {
	if attr == nil {
		return Reference{}, domain.ErrMapping("no attribute to map")
	}
	loc := m.resolveLocale(attr, locale)
	ref := m.LogicalRef(attr, locale)

	var r Reference
	if spec, ok := m.cube.Mappings[ref]; ok {
		r = Reference{
			Schema:    spec.Schema,
			Table:     spec.Table,
			Column:    spec.Column,
			Extract:   strings.ToUpper(spec.Extract),
			Func:      spec.Func,
			Expr:      m.exprs[ref],
			Condition: m.conds[ref],
		}
	}
	if r.Table == "" {
		r.Table = m.defaultTable(attr)
	}
	if r.Schema == "" {
		r.Schema = m.schemaFor(r.Table)
	}
	if r.Column == "" {
		r.Column = attr.Name
		if loc != "" {
			r.Column += "_" + loc
		}
	}
	return r, nil
}

// Dependencies returns the attributes referenced by the mapping expression
// and condition of attr.
func (m *Mapper) Dependencies(attr *domain.Attribute) []*domain.Attribute {
	return m.deps[m.LogicalRef(attr, "")]
}

// DimensionTable returns the conventional table of a dimension.
func (m *Mapper) DimensionTable(dim *domain.Dimension) TableKey {
	table := m.cube.DimensionPrefix + dim.Name + m.cube.DimensionSuffix
	return TableKey{Schema: m.schemaFor(table), Table: table}
}

func (m *Mapper) defaultTable(attr *domain.Attribute) string {
	dim := attr.Dimension()
	if dim == nil || (dim.IsFlat() && !dim.HasDetails()) {
		return m.cube.FactName()
	}
	return m.cube.DimensionPrefix + dim.Name + m.cube.DimensionSuffix
}

// schemaFor returns the default schema of a table: the cube schema for the
// fact table, the dimension schema (falling back to the cube schema) for any
// other table.
func (m *Mapper) schemaFor(table string) string {
	if table == m.cube.FactName() || m.cube.DimensionSchema == "" {
		return m.cube.Schema
	}
	return m.cube.DimensionSchema
}

// JoinKey completes one side of a join declaration. Master keys default to
// the fact table.
func (m *Mapper) JoinKey(spec domain.ColumnSpec, master bool) (Reference, error) {
	r := Reference{Schema: spec.Schema, Table: spec.Table, Column: spec.Column}
	if r.Table == "" {
		if !master {
			return Reference{}, domain.ErrModel("join detail %q has no table", spec.Column)
		}
		r.Table = m.cube.FactName()
	}
	if r.Column == "" {
		return Reference{}, domain.ErrModel("join key of table %q has no column", r.Table)
	}
	if r.Schema == "" {
		r.Schema = m.schemaFor(r.Table)
	}
	return r, nil
}

func (r Reference) String() string {
	return fmt.Sprintf("%s.%s", r.TableKey(), r.Column)
}
