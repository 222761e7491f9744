package cell

// Cell is the set of cuts that defines where in a cube a query looks.
type Cell struct {
	Cuts []Cut
}

// New returns a cell restricted by cuts.
func New(cuts ...Cut) Cell {
	return Cell{Cuts: cuts}
}

// IsEmpty reports whether the cell has no cuts.
func (c Cell) IsEmpty() bool { return len(c.Cuts) == 0 }

// CutsForDimension returns the cuts on the named dimension.
func (c Cell) CutsForDimension(dimension string) []Cut {
	var out []Cut
	for _, cut := range c.Cuts {
		if cut.CutTarget().Dimension == dimension {
			out = append(out, cut)
		}
	}
	return out
}

// PointCutForDimension returns the last non-inverted point cut on the named
// dimension, or nil.
func (c Cell) PointCutForDimension(dimension string) *PointCut {
	var found *PointCut
	for _, cut := range c.Cuts {
		if pc, ok := cut.(*PointCut); ok && !pc.Invert && pc.Dimension == dimension {
			found = pc
		}
	}
	return found
}

// Slice returns a copy of the cell in which cut replaces any existing cut on
// the same dimension and hierarchy, or is appended when there is none.
func (c Cell) Slice(cut Cut) Cell {
	target := cut.CutTarget()
	out := make([]Cut, 0, len(c.Cuts)+1)
	replaced := false
	for _, existing := range c.Cuts {
		t := existing.CutTarget()
		if t.Dimension == target.Dimension && t.Hierarchy == target.Hierarchy {
			if !replaced {
				out = append(out, cut)
				replaced = true
			}
			continue
		}
		out = append(out, existing)
	}
	if !replaced {
		out = append(out, cut)
	}
	return Cell{Cuts: out}
}

// Visible returns the cuts that are not hidden.
func (c Cell) Visible() []Cut {
	var out []Cut
	for _, cut := range c.Cuts {
		if !cut.CutTarget().Hidden {
			out = append(out, cut)
		}
	}
	return out
}

func (c Cell) String() string { return FormatCuts(c.Cuts) }
