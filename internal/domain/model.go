package domain

import (
	"fmt"
	"strings"
)

const (
	// RoleTime marks a dimension as the time dimension of a cube.
	RoleTime = "time"

	// NonadditiveNone and friends classify measure additivity.
	NonadditiveNone = ""
	NonadditiveTime = "time"
	NonadditiveAll  = "all"

	// DefaultFactKey is the fact table key column used when a cube does not
	// name one.
	DefaultFactKey = "id"

	// FactCountAggregate is the aggregate added to every cube that does not
	// declare a record count of its own.
	FactCountAggregate = "fact_count"

	OrderAsc  = "asc"
	OrderDesc = "desc"
)

// Attribute is a named value of a level, a fact detail, or a measure column.
type Attribute struct {
	Name    string
	Label   string
	Locales []string

	dimension *Dimension
}

// Dimension returns the owning dimension, nil for fact details.
func (a *Attribute) Dimension() *Dimension { return a.dimension }

// IsLocalizable reports whether the attribute has per-locale columns.
func (a *Attribute) IsLocalizable() bool { return len(a.Locales) > 0 }

// Ref returns the logical reference of the attribute. Attributes of flat
// dimensions without details are referenced by the dimension name alone.
func (a *Attribute) Ref() string {
	if a.dimension == nil {
		return a.Name
	}
	if a.dimension.IsFlat() && !a.dimension.HasDetails() {
		return a.dimension.Name
	}
	return a.dimension.Name + "." + a.Name
}

// String implements fmt.Stringer.
func (a *Attribute) String() string { return a.Ref() }

// Level is one grain of a dimension hierarchy.
type Level struct {
	Name       string
	Label      string
	Attributes []*Attribute
	KeyName    string
	LabelName  string
	OrderName  string
	Order      string
}

// Key returns the key attribute, the first attribute when none is named.
func (l *Level) Key() *Attribute {
	if l.KeyName != "" {
		if a := l.Attribute(l.KeyName); a != nil {
			return a
		}
	}
	if len(l.Attributes) == 0 {
		return nil
	}
	return l.Attributes[0]
}

// LabelAttribute returns the label attribute, the second attribute or the key
// when not named.
func (l *Level) LabelAttribute() *Attribute {
	if l.LabelName != "" {
		if a := l.Attribute(l.LabelName); a != nil {
			return a
		}
	}
	if len(l.Attributes) > 1 {
		return l.Attributes[1]
	}
	return l.Key()
}

// OrderAttribute returns the attribute used for the natural order of the level.
func (l *Level) OrderAttribute() *Attribute {
	if l.OrderName != "" {
		if a := l.Attribute(l.OrderName); a != nil {
			return a
		}
	}
	return l.Key()
}

// OrderDirection returns the natural order direction, ascending by default.
func (l *Level) OrderDirection() string {
	if strings.EqualFold(l.Order, OrderDesc) {
		return OrderDesc
	}
	return OrderAsc
}

// Attribute returns the level attribute with the given name.
func (l *Level) Attribute(name string) *Attribute {
	for _, a := range l.Attributes {
		if a.Name == name {
			return a
		}
	}
	return nil
}

// HasDetails reports whether the level carries more than its key.
func (l *Level) HasDetails() bool { return len(l.Attributes) > 1 }

// Hierarchy is an ordered list of levels of a dimension.
type Hierarchy struct {
	Name   string
	Levels []*Level
}

// LevelIndex returns the position of the named level or -1.
func (h *Hierarchy) LevelIndex(name string) int {
	for i, l := range h.Levels {
		if l.Name == name {
			return i
		}
	}
	return -1
}

// LevelsForDepth returns the first depth levels of the hierarchy.
func (h *Hierarchy) LevelsForDepth(depth int) ([]*Level, error) {
	if depth < 0 || depth > len(h.Levels) {
		return nil, ErrArgument("hierarchy %q has only %d levels, can not use depth %d", h.Name, len(h.Levels), depth)
	}
	return h.Levels[:depth], nil
}

// LevelsForPath returns the levels addressed by a path of the given length.
func (h *Hierarchy) LevelsForPath(pathLen int) ([]*Level, error) {
	if pathLen > len(h.Levels) {
		return nil, ErrArgument("path of %d elements is longer than hierarchy %q (%d levels)", pathLen, h.Name, len(h.Levels))
	}
	return h.Levels[:pathLen], nil
}

// Dimension is a cube axis with one or more hierarchies over its levels.
type Dimension struct {
	Name             string
	Label            string
	Role             string
	Levels           []*Level
	Hierarchies      []*Hierarchy
	DefaultHierarchy string
}

// Hierarchy returns the named hierarchy, the default one when name is empty.
func (d *Dimension) Hierarchy(name string) (*Hierarchy, error) {
	if name == "" {
		name = d.DefaultHierarchy
	}
	if name == "" && len(d.Hierarchies) > 0 {
		return d.Hierarchies[0], nil
	}
	for _, h := range d.Hierarchies {
		if h.Name == name {
			return h, nil
		}
	}
	return nil, ErrNotFound("dimension %q has no hierarchy %q", d.Name, name)
}

// Level returns the named level or nil.
func (d *Dimension) Level(name string) *Level {
	for _, l := range d.Levels {
		if l.Name == name {
			return l
		}
	}
	return nil
}

// IsFlat reports whether the dimension has a single level.
func (d *Dimension) IsFlat() bool { return len(d.Levels) == 1 }

// HasDetails reports whether any level has attributes besides its key.
func (d *Dimension) HasDetails() bool {
	for _, l := range d.Levels {
		if l.HasDetails() {
			return true
		}
	}
	return false
}

// Attributes returns all level attributes in level order.
func (d *Dimension) Attributes() []*Attribute {
	var out []*Attribute
	for _, l := range d.Levels {
		out = append(out, l.Attributes...)
	}
	return out
}

// Attribute returns the dimension attribute with the given name.
func (d *Dimension) Attribute(name string) *Attribute {
	for _, l := range d.Levels {
		if a := l.Attribute(name); a != nil {
			return a
		}
	}
	return nil
}

// IsTime reports whether the dimension plays the time role.
func (d *Dimension) IsTime() bool { return d.Role == RoleTime }

// Measure is a numeric fact column.
type Measure struct {
	Attribute
	Nonadditive string
	Aggregates  []string
}

// MeasureAggregate is a named aggregation of a measure, of the whole fact
// (count), or an expression over other aggregates.
type MeasureAggregate struct {
	Attribute
	Function    string
	Measure     string
	Expression  string
	WindowSize  int
	Nonadditive string
}

// Cube is a fact table with its dimensions, measures and aggregates.
type Cube struct {
	Name       string
	Label      string
	Fact       string
	Key        string
	Dimensions []*Dimension
	Measures   []*Measure
	Aggregates []*MeasureAggregate
	Details    []*Attribute

	Mappings map[string]ColumnSpec
	Joins    []JoinSpec

	Schema          string
	DimensionSchema string
	DimensionPrefix string
	DimensionSuffix string
}

// ColumnSpec is the configured physical location of a logical attribute or
// one side of a join.
type ColumnSpec struct {
	Schema    string
	Table     string
	Column    string
	Extract   string
	Func      string
	Expr      string
	Condition string
}

// JoinSpec is one configured join between a master and a detail table.
type JoinSpec struct {
	Master ColumnSpec
	Detail ColumnSpec
	Alias  string
	Method string
}

// FactName returns the fact table name, defaulting to the cube name.
func (c *Cube) FactName() string {
	if c.Fact != "" {
		return c.Fact
	}
	return c.Name
}

// FactKey returns the fact key column name.
func (c *Cube) FactKey() string {
	if c.Key != "" {
		return c.Key
	}
	return DefaultFactKey
}

// Dimension returns the named dimension.
func (c *Cube) Dimension(name string) (*Dimension, error) {
	for _, d := range c.Dimensions {
		if d.Name == name {
			return d, nil
		}
	}
	return nil, ErrNotFound("cube %q has no dimension %q", c.Name, name)
}

// Measure returns the named measure or nil.
func (c *Cube) Measure(name string) *Measure {
	for _, m := range c.Measures {
		if m.Name == name {
			return m
		}
	}
	return nil
}

// Aggregate returns the named aggregate.
func (c *Cube) Aggregate(name string) (*MeasureAggregate, error) {
	for _, a := range c.Aggregates {
		if a.Name == name {
			return a, nil
		}
	}
	return nil, ErrNotFound("cube %q has no aggregate %q", c.Name, name)
}

// AggregatesByName resolves a list of aggregate names; an empty list selects
// all aggregates of the cube.
func (c *Cube) AggregatesByName(names []string) ([]*MeasureAggregate, error) {
	if len(names) == 0 {
		return append([]*MeasureAggregate(nil), c.Aggregates...), nil
	}
	out := make([]*MeasureAggregate, 0, len(names))
	for _, n := range names {
		a, err := c.Aggregate(n)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

// Attribute resolves a logical reference: `dimension.attribute`, a flat
// dimension name, a measure, an aggregate or a fact detail.
func (c *Cube) Attribute(ref string) (*Attribute, error) {
	if dimName, attrName, ok := strings.Cut(ref, "."); ok {
		d, err := c.Dimension(dimName)
		if err != nil {
			return nil, err
		}
		if a := d.Attribute(attrName); a != nil {
			return a, nil
		}
		return nil, ErrNotFound("dimension %q has no attribute %q", dimName, attrName)
	}
	for _, d := range c.Dimensions {
		if d.Name == ref && d.IsFlat() && !d.HasDetails() {
			return d.Levels[0].Key(), nil
		}
	}
	if m := c.Measure(ref); m != nil {
		return &m.Attribute, nil
	}
	for _, a := range c.Aggregates {
		if a.Name == ref {
			return &a.Attribute, nil
		}
	}
	for _, a := range c.Details {
		if a.Name == ref {
			return a, nil
		}
	}
	return nil, ErrNotFound("cube %q has no attribute %q", c.Name, ref)
}

// Link wires back-references, fills defaults and expands measure aggregates.
// It must be called once after a cube is assembled.
func (c *Cube) Link() error {
	if c.Name == "" {
		return ErrModel("cube name is required")
	}
	seen := map[string]bool{}
	for _, d := range c.Dimensions {
		if d.Name == "" {
			return ErrModel("cube %q has a dimension without name", c.Name)
		}
		if seen[d.Name] {
			return ErrModel("cube %q declares dimension %q twice", c.Name, d.Name)
		}
		seen[d.Name] = true
		if err := d.link(); err != nil {
			return err
		}
	}

	for _, m := range c.Measures {
		names := m.Aggregates
		if len(names) == 0 {
			names = []string{"sum"}
		}
		for _, fn := range names {
			name := m.Name + "_" + fn
			if _, err := c.Aggregate(name); err == nil {
				continue
			}
			c.Aggregates = append(c.Aggregates, &MeasureAggregate{
				Attribute:   Attribute{Name: name},
				Function:    fn,
				Measure:     m.Name,
				Nonadditive: m.Nonadditive,
			})
		}
	}

	hasCount := false
	for _, a := range c.Aggregates {
		if a.Measure != "" {
			m := c.Measure(a.Measure)
			if m == nil {
				return ErrModel("aggregate %q refers to unknown measure %q", a.Name, a.Measure)
			}
			if a.Nonadditive == NonadditiveNone {
				a.Nonadditive = m.Nonadditive
			}
		}
		if a.Function == "count" {
			hasCount = true
		}
	}
	if !hasCount {
		c.Aggregates = append(c.Aggregates, &MeasureAggregate{
			Attribute: Attribute{Name: FactCountAggregate, Label: "Count"},
			Function:  "count",
		})
	}
	return nil
}

func (d *Dimension) link() error {
	if len(d.Levels) == 0 {
		d.Levels = []*Level{{Name: d.Name, Attributes: []*Attribute{{Name: d.Name}}}}
	}
	for _, l := range d.Levels {
		if len(l.Attributes) == 0 {
			l.Attributes = []*Attribute{{Name: l.Name}}
		}
		for _, a := range l.Attributes {
			a.dimension = d
		}
	}
	if len(d.Hierarchies) == 0 {
		d.Hierarchies = []*Hierarchy{{Name: "default", Levels: d.Levels}}
	}
	for _, h := range d.Hierarchies {
		if len(h.Levels) == 0 {
			return ErrModel("hierarchy %q of dimension %q has no levels", h.Name, d.Name)
		}
	}
	if d.DefaultHierarchy != "" {
		if _, err := d.Hierarchy(d.DefaultHierarchy); err != nil {
			return ErrModel("dimension %q: %v", d.Name, err)
		}
	}
	return nil
}

// String implements fmt.Stringer.
func (c *Cube) String() string { return fmt.Sprintf("cube(%s)", c.Name) }
