package declarative

import (
	"errors"
	"fmt"
	"strings"

	"starquery/internal/domain"
	"starquery/internal/functions"
	"starquery/internal/postagg"
)

// ValidationError represents a single validation problem.
type ValidationError struct {
	Path    string // e.g. "cube[sales].measures[amount]"
	Message string
}

func (e ValidationError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s", e.Path, e.Message)
	}
	return e.Message
}

var validRoles = map[string]bool{
	"":              true,
	domain.RoleTime: true,
}

var validNonadditive = map[string]bool{
	domain.NonadditiveNone: true,
	domain.NonadditiveTime: true,
	domain.NonadditiveAll:  true,
}

var validOrders = map[string]bool{
	"":               true,
	domain.OrderAsc:  true,
	domain.OrderDesc: true,
}

var validJoinMethods = map[string]bool{
	"":       true,
	"match":  true,
	"master": true,
	"detail": true,
}

// Validate checks a model document for structural and referential problems
// and returns every problem found.
func Validate(doc *ModelDoc) []ValidationError {
	var errs []ValidationError
	add := func(path, format string, args ...any) {
		errs = append(errs, ValidationError{Path: path, Message: fmt.Sprintf(format, args...)})
	}

	dims := make(map[string]bool, len(doc.Dimensions))
	for i, d := range doc.Dimensions {
		path := fmt.Sprintf("dimensions[%d]", i)
		if d.Name == "" {
			add(path, "name is required")
			continue
		}
		path = fmt.Sprintf("dimension[%s]", d.Name)
		if dims[d.Name] {
			add(path, "duplicate dimension")
		}
		dims[d.Name] = true
		if !validRoles[d.Role] {
			add(path, "invalid role %q", d.Role)
		}
		validateLevels(path, d, add)
	}

	registry := functions.Default()
	cubes := make(map[string]bool, len(doc.Cubes))
	for i, c := range doc.Cubes {
		path := fmt.Sprintf("cubes[%d]", i)
		if c.Name == "" {
			add(path, "name is required")
			continue
		}
		path = fmt.Sprintf("cube[%s]", c.Name)
		if cubes[c.Name] {
			add(path, "duplicate cube")
		}
		cubes[c.Name] = true

		for _, name := range c.Dimensions {
			if !dims[name] {
				add(path, "unknown dimension %q", name)
			}
		}

		measures := make(map[string]bool, len(c.Measures))
		for _, m := range c.Measures {
			mpath := fmt.Sprintf("%s.measures[%s]", path, m.Name)
			if m.Name == "" {
				add(path+".measures", "measure name is required")
				continue
			}
			if measures[m.Name] {
				add(mpath, "duplicate measure")
			}
			measures[m.Name] = true
			if !validNonadditive[m.Nonadditive] {
				add(mpath, "invalid nonadditive %q", m.Nonadditive)
			}
			for _, fn := range m.Aggregates {
				if !knownFunction(registry, fn) {
					add(mpath, "unknown aggregate function %q", fn)
				}
			}
		}

		aggs := make(map[string]bool, len(c.Aggregates))
		for _, a := range c.Aggregates {
			apath := fmt.Sprintf("%s.aggregates[%s]", path, a.Name)
			if a.Name == "" {
				add(path+".aggregates", "aggregate name is required")
				continue
			}
			if aggs[a.Name] {
				add(apath, "duplicate aggregate")
			}
			aggs[a.Name] = true
			if a.Function != "" {
				if !knownFunction(registry, a.Function) {
					add(apath, "unknown aggregate function %q", a.Function)
				}
			}
			if a.Measure != "" && !measures[a.Measure] {
				add(apath, "unknown measure %q", a.Measure)
			}
			if a.Function == "" && a.Expression == "" && a.Measure == "" {
				add(apath, "one of function, measure or expression is required")
			}
			if a.WindowSize < 0 {
				add(apath, "window_size must not be negative")
			}
			if !validNonadditive[a.Nonadditive] {
				add(apath, "invalid nonadditive %q", a.Nonadditive)
			}
		}

		for j, join := range c.Joins {
			jpath := fmt.Sprintf("%s.joins[%d]", path, j)
			if join.Master.Column == "" {
				add(jpath, "master column is required")
			}
			if join.Detail.Table == "" || join.Detail.Column == "" {
				add(jpath, "detail table and column are required")
			}
			if !validJoinMethods[join.Method] {
				add(jpath, "invalid join method %q", join.Method)
			}
		}

		for ref, m := range c.Mappings {
			if m.Column == "" && m.Expr == "" {
				add(fmt.Sprintf("%s.mappings[%s]", path, ref), "column or expression is required")
			}
		}
	}
	return errs
}

func validateLevels(path string, d DimensionDoc, add func(path, format string, args ...any)) {
	levels := make(map[string]bool, len(d.Levels))
	for _, l := range d.Levels {
		lpath := fmt.Sprintf("%s.levels[%s]", path, l.Name)
		if l.Name == "" {
			add(path+".levels", "level name is required")
			continue
		}
		if levels[l.Name] {
			add(lpath, "duplicate level")
		}
		levels[l.Name] = true
		if !validOrders[l.Order] {
			add(lpath, "invalid order %q", l.Order)
		}

		attrs := make(map[string]bool, len(l.Attributes))
		for _, a := range l.Attributes {
			attrs[a.Name] = true
		}
		if len(l.Attributes) == 0 {
			attrs[l.Name] = true
		}
		for _, ref := range []struct{ field, name string }{
			{"key", l.Key},
			{"label_attribute", l.LabelAttribute},
			{"order_attribute", l.OrderAttribute},
		} {
			if ref.name != "" && !attrs[ref.name] {
				add(lpath, "%s %q is not an attribute of the level", ref.field, ref.name)
			}
		}
	}

	hierarchies := make(map[string]bool, len(d.Hierarchies))
	for _, h := range d.Hierarchies {
		hpath := fmt.Sprintf("%s.hierarchies[%s]", path, h.Name)
		hierarchies[h.Name] = true
		if len(h.Levels) == 0 {
			add(hpath, "at least one level is required")
		}
		for _, name := range h.Levels {
			if !levels[name] {
				add(hpath, "unknown level %q", name)
			}
		}
	}
	if d.DefaultHierarchy != "" && len(d.Hierarchies) > 0 && !hierarchies[d.DefaultHierarchy] {
		add(path, "unknown default_hierarchy %q", d.DefaultHierarchy)
	}
}

func knownFunction(r *functions.Registry, name string) bool {
	if _, ok := r.Lookup(name); ok {
		return true
	}
	_, ok := postagg.Calculators[strings.ToLower(name)]
	return ok
}

// joinValidation folds validation problems into a single model error.
func joinValidation(errs []ValidationError) error {
	joined := make([]error, len(errs))
	for i, e := range errs {
		joined[i] = e
	}
	return domain.ErrModel("invalid model: %v", errors.Join(joined...))
}
