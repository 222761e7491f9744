package cell

import (
	"strings"

	"starquery/internal/domain"
)

// DrilldownSpec is an unresolved drilldown request: `dimension[@hierarchy][:level]`.
// An empty Level asks for the level below the cell's point cut.
type DrilldownSpec struct {
	Dimension string
	Hierarchy string
	Level     string
}

// ParseDrilldown parses a '|' or ',' separated list of drilldown specs.
func ParseDrilldown(text string) ([]DrilldownSpec, error) {
	var specs []DrilldownSpec
	for _, part := range strings.FieldsFunc(text, func(r rune) bool { return r == '|' || r == ',' }) {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		head, level, _ := strings.Cut(part, ":")
		dim, hier, _ := strings.Cut(head, "@")
		if dim == "" {
			return nil, domain.ErrArgument("drilldown %q: dimension name is empty", part)
		}
		specs = append(specs, DrilldownSpec{Dimension: dim, Hierarchy: hier, Level: level})
	}
	return specs, nil
}

// DrilldownItem is one resolved drilldown dimension with the levels to group by.
type DrilldownItem struct {
	Dimension *domain.Dimension
	Hierarchy *domain.Hierarchy
	Levels    []*domain.Level
}

// Keys returns the key attributes of the drilled levels.
func (i DrilldownItem) Keys() []*domain.Attribute {
	keys := make([]*domain.Attribute, len(i.Levels))
	for n, l := range i.Levels {
		keys[n] = l.Key()
	}
	return keys
}

// Drilldown is an ordered list of resolved drilldown items.
type Drilldown struct {
	Items []DrilldownItem
}

// NewDrilldown resolves specs against cube. When a spec names no level, the
// next level below the cell's point cut on that dimension is used; flat
// dimensions always drill to their only level.
func NewDrilldown(cube *domain.Cube, specs []DrilldownSpec, c Cell) (*Drilldown, error) {
	dd := &Drilldown{}
	seen := make(map[string]bool)
	for _, spec := range specs {
		dim, err := cube.Dimension(spec.Dimension)
		if err != nil {
			return nil, err
		}
		if seen[dim.Name] {
			return nil, domain.ErrArgument("dimension %q is drilled down more than once", dim.Name)
		}
		seen[dim.Name] = true

		hier, err := dim.Hierarchy(spec.Hierarchy)
		if err != nil {
			return nil, err
		}

		var depth int
		switch {
		case spec.Level != "":
			idx := hier.LevelIndex(spec.Level)
			if idx < 0 {
				return nil, domain.ErrArgument("level %q is not in hierarchy %q of dimension %q", spec.Level, hier.Name, dim.Name)
			}
			depth = idx + 1
		case dim.IsFlat():
			depth = 1
		default:
			depth = 1
			if pc := c.PointCutForDimension(dim.Name); pc != nil && sameHierarchy(dim, pc.Hierarchy, hier) {
				depth = len(pc.Path) + 1
			}
		}
		if depth > len(hier.Levels) {
			return nil, domain.ErrArgument("can not drill down dimension %q deeper than %d levels", dim.Name, len(hier.Levels))
		}
		dd.Items = append(dd.Items, DrilldownItem{Dimension: dim, Hierarchy: hier, Levels: hier.Levels[:depth]})
	}
	return dd, nil
}

func sameHierarchy(dim *domain.Dimension, name string, h *domain.Hierarchy) bool {
	other, err := dim.Hierarchy(name)
	return err == nil && other == h
}

// IsEmpty reports whether nothing is drilled down.
func (d *Drilldown) IsEmpty() bool { return d == nil || len(d.Items) == 0 }

// Item returns the item for the named dimension.
func (d *Drilldown) Item(dimension string) (DrilldownItem, bool) {
	if d == nil {
		return DrilldownItem{}, false
	}
	for _, item := range d.Items {
		if item.Dimension.Name == dimension {
			return item, true
		}
	}
	return DrilldownItem{}, false
}

// Levels returns every drilled level in item order.
func (d *Drilldown) Levels() []*domain.Level {
	if d == nil {
		return nil
	}
	var out []*domain.Level
	for _, item := range d.Items {
		out = append(out, item.Levels...)
	}
	return out
}

// AllAttributes returns every attribute of every drilled level.
func (d *Drilldown) AllAttributes() []*domain.Attribute {
	var out []*domain.Attribute
	for _, l := range d.Levels() {
		out = append(out, l.Attributes...)
	}
	return out
}

// KeyAttributes returns the key attribute of every drilled level.
func (d *Drilldown) KeyAttributes() []*domain.Attribute {
	var out []*domain.Attribute
	for _, l := range d.Levels() {
		out = append(out, l.Key())
	}
	return out
}

// Order is one explicit ordering request.
type Order struct {
	Attribute string
	Direction string
}

// ParseOrder parses `attribute[:asc|desc]` items separated by commas.
func ParseOrder(text string) ([]Order, error) {
	var out []Order
	for _, part := range strings.Split(text, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		attr, dir, _ := strings.Cut(part, ":")
		dir = strings.ToLower(strings.TrimSpace(dir))
		switch dir {
		case "":
			dir = domain.OrderAsc
		case domain.OrderAsc, domain.OrderDesc:
		default:
			return nil, domain.ErrArgument("order %q: direction must be asc or desc", part)
		}
		out = append(out, Order{Attribute: strings.TrimSpace(attr), Direction: dir})
	}
	return out, nil
}
