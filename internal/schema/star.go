// Package schema builds the join graph of a star or snowflake schema,
// classifies every table's relationship to the fact table and compiles
// minimal join expressions for sets of attributes.
package schema

import (
	"fmt"
	"slices"

	"starquery/internal/domain"
	"starquery/internal/mapper"
	"starquery/internal/sqlast"
)

// Join methods as written in the model.
const (
	MethodMatch  = "match"
	MethodMaster = "master"
	MethodDetail = "detail"
)

// Relationship tags a table by how it relates to the fact grain.
type Relationship int

const (
	// RelationshipMaster tables are joined directly to the fact grain
	// (inner or left outer from the fact side).
	RelationshipMaster Relationship = iota
	// RelationshipOuterDetail tables must not eliminate fact rows; they are
	// right-outer from the fact's point of view.
	RelationshipOuterDetail
)

func (r Relationship) String() string {
	if r == RelationshipOuterDetail {
		return "outer-detail"
	}
	return "match/master"
}

// Join is a classified join declaration.
type Join struct {
	Master mapper.Reference
	Detail mapper.Reference
	Alias  string
	Method string
	Order  int // position in the declaration list
}

// MasterKey returns the key of the master table. A master may name an alias
// introduced by an earlier join.
func (j *Join) MasterKey() mapper.TableKey { return j.Master.TableKey() }

// DetailKey returns the key of the detail table, its alias when set.
func (j *Join) DetailKey() mapper.TableKey {
	if j.Alias != "" {
		return mapper.TableKey{Schema: j.Detail.Schema, Table: j.Alias}
	}
	return j.Detail.TableKey()
}

// Table is one node of the join graph.
type Table struct {
	Schema       string
	Name         string
	Alias        string
	Relationship Relationship
	// DetailKeys are the columns of this table used as master-side join keys
	// by other tables.
	DetailKeys []string

	join *Join // join that introduced the table, nil for the fact
}

// Key returns the graph key of the table.
func (t *Table) Key() mapper.TableKey {
	if t.Alias != "" {
		return mapper.TableKey{Schema: t.Schema, Table: t.Alias}
	}
	return mapper.TableKey{Schema: t.Schema, Table: t.Name}
}

// Ident returns the name columns of the table are qualified with.
func (t *Table) Ident() string {
	if t.Alias != "" {
		return t.Alias
	}
	return t.Name
}

// Join returns the join that introduced the table, nil for the fact table.
func (t *Table) Join() *Join { return t.join }

func (t *Table) ref() *sqlast.TableName {
	return &sqlast.TableName{Schema: t.Schema, Name: t.Name, Alias: t.Alias}
}

// Star is the classified join graph of one cube. It is built for a single
// statement and discarded afterwards.
type Star struct {
	mapper *mapper.Mapper
	locale string
	fact   *Table
	tables map[mapper.TableKey]*Table
	joins  []*Join
}

// New builds and classifies the join graph of the mapper's cube. Joins are
// processed in declaration order; every master must already be part of the
// graph when its join is reached.
func New(m *mapper.Mapper, locale string) (*Star, error) {
	factKey := m.FactTable()
	s := &Star{
		mapper: m,
		locale: locale,
		fact:   &Table{Schema: factKey.Schema, Name: factKey.Table, Relationship: RelationshipMaster},
		tables: make(map[mapper.TableKey]*Table),
	}
	s.tables[factKey] = s.fact

	for i, spec := range m.Cube().Joins {
		j, err := s.newJoin(i, spec)
		if err != nil {
			return nil, err
		}
		if err := s.classify(j); err != nil {
			return nil, err
		}
		s.joins = append(s.joins, j)
	}
	return s, nil
}

func (s *Star) newJoin(order int, spec domain.JoinSpec) (*Join, error) {
	master, err := s.mapper.JoinKey(spec.Master, true)
	if err != nil {
		return nil, fmt.Errorf("join %d: %w", order, err)
	}
	detail, err := s.mapper.JoinKey(spec.Detail, false)
	if err != nil {
		return nil, fmt.Errorf("join %d: %w", order, err)
	}
	method := spec.Method
	if method == "" {
		method = MethodMatch
	}
	switch method {
	case MethodMatch, MethodMaster, MethodDetail:
	default:
		return nil, domain.ErrModel("join %d: unknown join method %q", order, method)
	}
	return &Join{Master: master, Detail: detail, Alias: spec.Alias, Method: method, Order: order}, nil
}

// classify registers the detail table of j with its relationship: outer
// detail when the join method is detail or the master already is one.
func (s *Star) classify(j *Join) error {
	master, ok := s.tables[j.MasterKey()]
	if !ok {
		return domain.ErrModel("join %d: master table %s is not joined yet (joins must be declared master first)", j.Order, j.MasterKey())
	}
	key := j.DetailKey()
	if key == s.fact.Key() {
		return domain.ErrModel("join %d: fact table %s can not be a detail without an alias", j.Order, key)
	}
	if _, dup := s.tables[key]; dup {
		return domain.ErrModel("join %d: table %s is joined more than once, use an alias", j.Order, key)
	}

	rel := RelationshipMaster
	if j.Method == MethodDetail || master.Relationship == RelationshipOuterDetail {
		rel = RelationshipOuterDetail
	}
	s.tables[key] = &Table{
		Schema:       j.Detail.Schema,
		Name:         j.Detail.Table,
		Alias:        j.Alias,
		Relationship: rel,
		join:         j,
	}
	if !slices.Contains(master.DetailKeys, j.Master.Column) {
		master.DetailKeys = append(master.DetailKeys, j.Master.Column)
	}
	return nil
}

// Fact returns the fact table node.
func (s *Star) Fact() *Table { return s.fact }

// Mapper returns the mapper the star resolves attributes with.
func (s *Star) Mapper() *mapper.Mapper { return s.mapper }

// Table returns the node for key.
func (s *Star) Table(key mapper.TableKey) (*Table, error) {
	t, ok := s.tables[key]
	if !ok {
		return nil, domain.ErrModel("some tables are not joined: %s", key)
	}
	return t, nil
}

// Tables returns all nodes: the fact first, then details in join order.
func (s *Star) Tables() []*Table {
	out := []*Table{s.fact}
	for _, j := range s.joins {
		out = append(out, s.tables[j.DetailKey()])
	}
	return out
}

// TableOf returns the node owning attr.
func (s *Star) TableOf(attr *domain.Attribute) (*Table, error) {
	ref, err := s.mapper.Physical(attr, s.locale)
	if err != nil {
		return nil, err
	}
	t, ok := s.tables[ref.TableKey()]
	if !ok {
		return nil, domain.ErrModel("some tables are not joined: %s (attribute %s)", ref.TableKey(), attr.Ref())
	}
	return t, nil
}

// Relationship returns the relationship of the table owning attr.
func (s *Star) Relationship(attr *domain.Attribute) (Relationship, error) {
	t, err := s.TableOf(attr)
	if err != nil {
		return 0, err
	}
	return t.Relationship, nil
}

// RequiredTables returns the keys of the tables needed to compute attrs,
// including tables referenced by mapping expressions and conditions.
func (s *Star) RequiredTables(attrs []*domain.Attribute) ([]mapper.TableKey, error) {
	var keys []mapper.TableKey
	seen := make(map[*domain.Attribute]bool)
	var visit func(a *domain.Attribute) error
	visit = func(a *domain.Attribute) error {
		if seen[a] {
			return nil
		}
		seen[a] = true
		t, err := s.TableOf(a)
		if err != nil {
			return err
		}
		if !slices.Contains(keys, t.Key()) {
			keys = append(keys, t.Key())
		}
		for _, dep := range s.mapper.Dependencies(a) {
			if err := visit(dep); err != nil {
				return err
			}
		}
		return nil
	}
	for _, a := range attrs {
		if err := visit(a); err != nil {
			return nil, err
		}
	}
	return keys, nil
}
