package declarative

import (
	"fmt"
	"reflect"
	"strings"

	"gopkg.in/yaml.v3"
)

// SupportedAPIVersion is the only accepted model document version.
const SupportedAPIVersion = "starquery/v1"

// KindModel is the kind of a model document.
const KindModel = "Model"

// ModelDoc is the top-level model document.
type ModelDoc struct {
	APIVersion string         `yaml:"apiVersion"`
	Kind       string         `yaml:"kind"`
	Options    OptionsSpec    `yaml:"options,omitempty"`
	Dimensions []DimensionDoc `yaml:"dimensions"`
	Cubes      []CubeDoc      `yaml:"cubes"`
}

// OptionsSpec holds naming defaults shared by every cube.
type OptionsSpec struct {
	Schema          string `yaml:"schema,omitempty"`
	DimensionSchema string `yaml:"dimension_schema,omitempty"`
	DimensionPrefix string `yaml:"dimension_prefix,omitempty"`
	DimensionSuffix string `yaml:"dimension_suffix,omitempty"`
}

// DimensionDoc declares a dimension shared by cubes.
type DimensionDoc struct {
	Name             string         `yaml:"name"`
	Label            string         `yaml:"label,omitempty"`
	Role             string         `yaml:"role,omitempty"` // "time" or empty
	Levels           []LevelDoc     `yaml:"levels,omitempty"`
	Hierarchies      []HierarchyDoc `yaml:"hierarchies,omitempty"`
	DefaultHierarchy string         `yaml:"default_hierarchy,omitempty"`
}

// LevelDoc declares one level. Attributes default to a single attribute
// named like the level.
type LevelDoc struct {
	Name           string         `yaml:"name"`
	Label          string         `yaml:"label,omitempty"`
	Attributes     []AttributeDoc `yaml:"attributes,omitempty"`
	Key            string         `yaml:"key,omitempty"`
	LabelAttribute string         `yaml:"label_attribute,omitempty"`
	OrderAttribute string         `yaml:"order_attribute,omitempty"`
	Order          string         `yaml:"order,omitempty"` // "asc" or "desc"
}

// HierarchyDoc names an ordered subset of the dimension levels.
type HierarchyDoc struct {
	Name   string   `yaml:"name"`
	Levels []string `yaml:"levels"`
}

// AttributeDoc is written either as a bare name or as an object.
type AttributeDoc struct {
	Name    string   `yaml:"name"`
	Label   string   `yaml:"label,omitempty"`
	Locales []string `yaml:"locales,omitempty"`
}

// UnmarshalYAML accepts `name` or `{name: ..., label: ..., locales: [...]}`.
func (a *AttributeDoc) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		a.Name = node.Value
		return nil
	}
	type plain AttributeDoc
	return decodeStrict(node, (*plain)(a))
}

// CubeDoc declares a cube over a fact table.
type CubeDoc struct {
	Name            string               `yaml:"name"`
	Label           string               `yaml:"label,omitempty"`
	Fact            string               `yaml:"fact,omitempty"`
	Key             string               `yaml:"key,omitempty"`
	Dimensions      []string             `yaml:"dimensions,omitempty"`
	Measures        []MeasureDoc         `yaml:"measures,omitempty"`
	Aggregates      []AggregateDoc       `yaml:"aggregates,omitempty"`
	Details         []AttributeDoc       `yaml:"details,omitempty"`
	Mappings        map[string]ColumnDoc `yaml:"mappings,omitempty"`
	Joins           []JoinDoc            `yaml:"joins,omitempty"`
	Schema          string               `yaml:"schema,omitempty"`
	DimensionSchema string               `yaml:"dimension_schema,omitempty"`
	DimensionPrefix string               `yaml:"dimension_prefix,omitempty"`
	DimensionSuffix string               `yaml:"dimension_suffix,omitempty"`
}

// MeasureDoc declares a measure column. Aggregates default to sum.
type MeasureDoc struct {
	Name        string   `yaml:"name"`
	Label       string   `yaml:"label,omitempty"`
	Aggregates  []string `yaml:"aggregates,omitempty"`
	Nonadditive string   `yaml:"nonadditive,omitempty"` // "time", "all" or empty
}

// AggregateDoc declares a named aggregate explicitly.
type AggregateDoc struct {
	Name        string `yaml:"name"`
	Label       string `yaml:"label,omitempty"`
	Function    string `yaml:"function,omitempty"`
	Measure     string `yaml:"measure,omitempty"`
	Expression  string `yaml:"expression,omitempty"`
	WindowSize  int    `yaml:"window_size,omitempty"`
	Nonadditive string `yaml:"nonadditive,omitempty"`
}

// ColumnDoc is a physical column reference. The string form is
// `column`, `table.column` or `schema.table.column`.
type ColumnDoc struct {
	Schema    string `yaml:"schema,omitempty"`
	Table     string `yaml:"table,omitempty"`
	Column    string `yaml:"column,omitempty"`
	Extract   string `yaml:"extract,omitempty"`
	Func      string `yaml:"function,omitempty"`
	Expr      string `yaml:"expression,omitempty"`
	Condition string `yaml:"condition,omitempty"`
}

// UnmarshalYAML accepts the string and the object form.
func (c *ColumnDoc) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		parsed, err := parseColumnRef(node.Value)
		if err != nil {
			return fmt.Errorf("line %d: %w", node.Line, err)
		}
		*c = parsed
		return nil
	}
	type plain ColumnDoc
	return decodeStrict(node, (*plain)(c))
}

func parseColumnRef(text string) (ColumnDoc, error) {
	parts := strings.Split(text, ".")
	for _, p := range parts {
		if p == "" {
			return ColumnDoc{}, fmt.Errorf("invalid column reference %q", text)
		}
	}
	switch len(parts) {
	case 1:
		return ColumnDoc{Column: parts[0]}, nil
	case 2:
		return ColumnDoc{Table: parts[0], Column: parts[1]}, nil
	case 3:
		return ColumnDoc{Schema: parts[0], Table: parts[1], Column: parts[2]}, nil
	}
	return ColumnDoc{}, fmt.Errorf("invalid column reference %q", text)
}

// JoinDoc declares a join between a master and a detail table.
type JoinDoc struct {
	Master ColumnDoc `yaml:"master"`
	Detail ColumnDoc `yaml:"detail"`
	Alias  string    `yaml:"alias,omitempty"`
	Method string    `yaml:"method,omitempty"` // match, master or detail
}

// decodeStrict decodes an object node rejecting unknown fields.
func decodeStrict(node *yaml.Node, target any) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: expected a mapping", node.Line)
	}
	known := yamlFields(target)
	for i := 0; i < len(node.Content); i += 2 {
		if key := node.Content[i].Value; !known[key] {
			return fmt.Errorf("line %d: field %s not found", node.Content[i].Line, key)
		}
	}
	return node.Decode(target)
}

// yamlFields returns the yaml keys of the struct target points to.
func yamlFields(target any) map[string]bool {
	t := reflect.TypeOf(target)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	out := make(map[string]bool, t.NumField())
	for i := range t.NumField() {
		tag := t.Field(i).Tag.Get("yaml")
		name, _, _ := strings.Cut(tag, ",")
		if name == "" || name == "-" {
			continue
		}
		out[name] = true
	}
	return out
}
