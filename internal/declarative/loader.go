package declarative

import (
	"bytes"
	"fmt"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"starquery/internal/domain"
	"starquery/internal/mapper"
)

// LoadOptions configures model document loading.
type LoadOptions struct {
	AllowUnknownFields bool
}

// Model is a loaded and validated set of cubes.
type Model struct {
	Doc   ModelDoc
	cubes map[string]*domain.Cube
}

// Cube returns the linked cube with the given name.
func (m *Model) Cube(name string) (*domain.Cube, error) {
	c, ok := m.cubes[name]
	if !ok {
		return nil, domain.ErrNotFound("model has no cube %q", name)
	}
	return c, nil
}

// CubeNames returns the cube names in declaration order.
func (m *Model) CubeNames() []string {
	names := make([]string, 0, len(m.Doc.Cubes))
	for _, c := range m.Doc.Cubes {
		names = append(names, c.Name)
	}
	return names
}

// LoadFile reads a YAML or JSON model document.
func LoadFile(path string) (*Model, error) {
	return LoadFileWithOptions(path, LoadOptions{})
}

// LoadFileWithOptions reads a model document using caller-provided options.
func LoadFileWithOptions(path string, opts LoadOptions) (*Model, error) {
	data, err := os.ReadFile(path) //nolint:gosec // intentional: reading user-specified model files
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	m, err := Parse(data, opts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// Parse decodes, validates and links a model document. JSON documents are
// accepted as they are valid YAML.
func Parse(data []byte, opts LoadOptions) (*Model, error) {
	var doc ModelDoc
	if err := decodeDocument(data, &doc, opts); err != nil {
		return nil, err
	}
	if err := validateDocument(doc.APIVersion, doc.Kind, KindModel); err != nil {
		return nil, err
	}
	if errs := Validate(&doc); len(errs) > 0 {
		return nil, joinValidation(errs)
	}

	m := &Model{Doc: doc, cubes: make(map[string]*domain.Cube, len(doc.Cubes))}
	for _, cd := range doc.Cubes {
		cube, err := BuildCube(&doc, cd.Name)
		if err != nil {
			return nil, err
		}
		if _, err := mapper.New(cube); err != nil {
			return nil, err
		}
		m.cubes[cd.Name] = cube
	}
	return m, nil
}

func decodeDocument(data []byte, target any, opts LoadOptions) error {
	if opts.AllowUnknownFields {
		if err := yaml.Unmarshal(data, target); err != nil {
			return domain.ErrModel("parse model: %v", err)
		}
		return nil
	}
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(target); err != nil {
		return domain.ErrModel("parse model: %v", err)
	}
	return nil
}

// validateDocument checks the apiVersion and kind fields.
func validateDocument(apiVersion, kind, expectedKind string) error {
	if apiVersion != SupportedAPIVersion {
		return domain.ErrModel("unsupported apiVersion %q (expected %q)", apiVersion, SupportedAPIVersion)
	}
	if kind != expectedKind {
		return domain.ErrModel("unexpected kind %q (expected %q)", kind, expectedKind)
	}
	return nil
}

// BuildCube assembles and links a fresh domain cube from the document. Every
// call returns new objects, so cubes never share dimensions.
func BuildCube(doc *ModelDoc, name string) (*domain.Cube, error) {
	idx := slices.IndexFunc(doc.Cubes, func(c CubeDoc) bool { return c.Name == name })
	if idx < 0 {
		return nil, domain.ErrNotFound("model has no cube %q", name)
	}
	cd := doc.Cubes[idx]

	cube := &domain.Cube{
		Name:            cd.Name,
		Label:           cd.Label,
		Fact:            cd.Fact,
		Key:             cd.Key,
		Schema:          firstNonEmpty(cd.Schema, doc.Options.Schema),
		DimensionSchema: firstNonEmpty(cd.DimensionSchema, doc.Options.DimensionSchema),
		DimensionPrefix: firstNonEmpty(cd.DimensionPrefix, doc.Options.DimensionPrefix),
		DimensionSuffix: firstNonEmpty(cd.DimensionSuffix, doc.Options.DimensionSuffix),
		Mappings:        make(map[string]domain.ColumnSpec, len(cd.Mappings)),
	}

	for _, dimName := range cd.Dimensions {
		dd, ok := findDimension(doc, dimName)
		if !ok {
			return nil, domain.ErrModel("cube %q uses unknown dimension %q", cd.Name, dimName)
		}
		cube.Dimensions = append(cube.Dimensions, buildDimension(dd))
	}
	for _, md := range cd.Measures {
		cube.Measures = append(cube.Measures, &domain.Measure{
			Attribute:   domain.Attribute{Name: md.Name, Label: md.Label},
			Nonadditive: md.Nonadditive,
			Aggregates:  slices.Clone(md.Aggregates),
		})
	}
	for _, ad := range cd.Aggregates {
		cube.Aggregates = append(cube.Aggregates, &domain.MeasureAggregate{
			Attribute:   domain.Attribute{Name: ad.Name, Label: ad.Label},
			Function:    ad.Function,
			Measure:     ad.Measure,
			Expression:  ad.Expression,
			WindowSize:  ad.WindowSize,
			Nonadditive: ad.Nonadditive,
		})
	}
	for _, a := range cd.Details {
		cube.Details = append(cube.Details, buildAttribute(a))
	}
	for ref, c := range cd.Mappings {
		cube.Mappings[ref] = columnSpec(c)
	}
	for _, j := range cd.Joins {
		cube.Joins = append(cube.Joins, domain.JoinSpec{
			Master: columnSpec(j.Master),
			Detail: columnSpec(j.Detail),
			Alias:  j.Alias,
			Method: j.Method,
		})
	}

	if err := cube.Link(); err != nil {
		return nil, err
	}
	return cube, nil
}

func buildDimension(dd DimensionDoc) *domain.Dimension {
	d := &domain.Dimension{
		Name:             dd.Name,
		Label:            dd.Label,
		Role:             dd.Role,
		DefaultHierarchy: dd.DefaultHierarchy,
	}
	for _, ld := range dd.Levels {
		l := &domain.Level{
			Name:      ld.Name,
			Label:     ld.Label,
			KeyName:   ld.Key,
			LabelName: ld.LabelAttribute,
			OrderName: ld.OrderAttribute,
			Order:     ld.Order,
		}
		for _, a := range ld.Attributes {
			l.Attributes = append(l.Attributes, buildAttribute(a))
		}
		d.Levels = append(d.Levels, l)
	}
	for _, hd := range dd.Hierarchies {
		h := &domain.Hierarchy{Name: hd.Name}
		for _, name := range hd.Levels {
			h.Levels = append(h.Levels, d.Level(name))
		}
		d.Hierarchies = append(d.Hierarchies, h)
	}
	return d
}

func buildAttribute(a AttributeDoc) *domain.Attribute {
	return &domain.Attribute{Name: a.Name, Label: a.Label, Locales: slices.Clone(a.Locales)}
}

func columnSpec(c ColumnDoc) domain.ColumnSpec {
	return domain.ColumnSpec{
		Schema:    c.Schema,
		Table:     c.Table,
		Column:    c.Column,
		Extract:   c.Extract,
		Func:      c.Func,
		Expr:      c.Expr,
		Condition: c.Condition,
	}
}

func findDimension(doc *ModelDoc, name string) (DimensionDoc, bool) {
	for _, d := range doc.Dimensions {
		if d.Name == name {
			return d, true
		}
	}
	return DimensionDoc{}, false
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
