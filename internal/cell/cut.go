// Package cell holds the request vocabulary of the query compiler: cuts,
// cells, drilldowns and orderings, plus their compact text syntax.
package cell

import (
	"fmt"
	"strings"
)

// Cut restricts a cell along one dimension.
//
// This is a sealed interface: only PointCut, RangeCut and SetCut implement
// it, so type switches over cuts are exhaustive.
type Cut interface {
	// CutTarget returns the dimension, hierarchy and flags shared by all cuts.
	CutTarget() Target
	// Depth returns the number of hierarchy levels the cut addresses.
	Depth() int
	String() string

	cutNode()
}

// Target is the part of a cut common to every cut kind.
type Target struct {
	Dimension string
	Hierarchy string // empty for the default hierarchy
	Invert    bool
	Hidden    bool
}

// Path is a sequence of level key values from the top of a hierarchy.
type Path []any

// PointCut selects one member: every level of the path equals its value.
type PointCut struct {
	Target
	Path Path
}

// RangeCut selects members between two paths, both inclusive. Either bound
// may be empty to leave that side open.
type RangeCut struct {
	Target
	From Path
	To   Path
}

// SetCut selects any of several members.
type SetCut struct {
	Target
	Paths []Path
}

func (*PointCut) cutNode() {}
func (*RangeCut) cutNode() {}
func (*SetCut) cutNode()   {}

func (c *PointCut) CutTarget() Target { return c.Target }
func (c *RangeCut) CutTarget() Target { return c.Target }
func (c *SetCut) CutTarget() Target   { return c.Target }

func (c *PointCut) Depth() int { return len(c.Path) }

func (c *RangeCut) Depth() int { return max(len(c.From), len(c.To)) }

func (c *SetCut) Depth() int {
	depth := 0
	for _, p := range c.Paths {
		depth = max(depth, len(p))
	}
	return depth
}

// Point returns a point cut on the default hierarchy of dimension.
func Point(dimension string, path ...any) *PointCut {
	return &PointCut{Target: Target{Dimension: dimension}, Path: path}
}

// Range returns a range cut on the default hierarchy of dimension.
func Range(dimension string, from, to Path) *RangeCut {
	return &RangeCut{Target: Target{Dimension: dimension}, From: from, To: to}
}

// Set returns a set cut on the default hierarchy of dimension.
func Set(dimension string, paths ...Path) *SetCut {
	return &SetCut{Target: Target{Dimension: dimension}, Paths: paths}
}

func (c *PointCut) String() string {
	return c.Target.prefix() + c.Path.String()
}

func (c *RangeCut) String() string {
	return c.Target.prefix() + c.From.String() + string(rangeSep) + c.To.String()
}

func (c *SetCut) String() string {
	parts := make([]string, len(c.Paths))
	for i, p := range c.Paths {
		parts[i] = p.String()
	}
	return c.Target.prefix() + strings.Join(parts, string(setSep))
}

func (t Target) prefix() string {
	var b strings.Builder
	if t.Invert {
		b.WriteByte(invertMark)
	}
	b.WriteString(escape(t.Dimension))
	if t.Hierarchy != "" {
		b.WriteByte(hierSep)
		b.WriteString(escape(t.Hierarchy))
	}
	b.WriteByte(dimSep)
	return b.String()
}

// String renders the path in cut text syntax.
func (p Path) String() string {
	parts := make([]string, len(p))
	for i, v := range p {
		parts[i] = escape(fmt.Sprint(v))
	}
	return strings.Join(parts, string(pathSep))
}

// Strings returns the path values formatted as strings.
func (p Path) Strings() []string {
	out := make([]string, len(p))
	for i, v := range p {
		out[i] = fmt.Sprint(v)
	}
	return out
}
