package schema

import (
	"fmt"
	"slices"

	"starquery/internal/domain"
	"starquery/internal/mapper"
	"starquery/internal/sqlast"
)

// JoinExpression returns the minimal join expression that makes every
// attribute of attrs available, together with the tables it touches. The
// fact table is always the root of the expression and the first touched
// table.
func (s *Star) JoinExpression(attrs []*domain.Attribute) (sqlast.TableRef, []*Table, error) {
	keys, err := s.RequiredTables(attrs)
	if err != nil {
		return nil, nil, err
	}
	return s.JoinTables(keys)
}

// JoinTables returns the join expression over the given tables and every
// table on their paths to the fact table.
func (s *Star) JoinTables(keys []mapper.TableKey) (sqlast.TableRef, []*Table, error) {
	joins, err := s.collect(keys, false)
	if err != nil {
		return nil, nil, err
	}

	var from sqlast.TableRef = s.fact.ref()
	touched := []*Table{s.fact}
	for _, j := range joins {
		master := s.tables[j.MasterKey()]
		detail := s.tables[j.DetailKey()]
		cond := sqlast.Eq(sqlast.Col(master.Ident(), j.Master.Column), sqlast.Col(detail.Ident(), j.Detail.Column))
		from = fold(from, detail.ref(), j.Method, cond)
		touched = append(touched, detail)
	}
	return from, touched, nil
}

// collect walks from every required table towards the fact table and returns
// the joins on the way, in declaration order. With stopAtMaster the walk
// ends at the first match/master table.
func (s *Star) collect(keys []mapper.TableKey, stopAtMaster bool) ([]*Join, error) {
	pending := slices.Clone(keys)
	visited := make(map[mapper.TableKey]bool)
	var joins []*Join

	for len(pending) > 0 {
		key := pending[0]
		pending = pending[1:]
		if visited[key] {
			continue
		}
		visited[key] = true

		t, ok := s.tables[key]
		if !ok {
			return nil, domain.ErrModel("some tables are not joined: %s", key)
		}
		if t == s.fact || (stopAtMaster && t.Relationship == RelationshipMaster) {
			continue
		}
		joins = append(joins, t.join)
		if mk := t.join.MasterKey(); !visited[mk] {
			pending = append(pending, mk)
		}
	}

	slices.SortFunc(joins, func(a, b *Join) int { return a.Order - b.Order })
	return joins, nil
}

// fold adds one join to the accumulated expression. Detail joins swap
// operands so that a left outer join keeps every detail row.
func fold(acc sqlast.TableRef, detail sqlast.TableRef, method string, cond sqlast.Expr) sqlast.TableRef {
	switch method {
	case MethodMaster:
		return &sqlast.JoinedTable{Left: acc, Type: sqlast.JoinLeft, Right: detail, Condition: cond}
	case MethodDetail:
		return &sqlast.JoinedTable{Left: detail, Type: sqlast.JoinLeft, Right: acc, Condition: cond}
	default:
		return &sqlast.JoinedTable{Left: acc, Type: sqlast.JoinInner, Right: detail, Condition: cond}
	}
}

// Outlet is a master-side join key that a master fact relation exposes so
// outer-detail tables can be joined to it.
type Outlet struct {
	Table  *Table
	Column string
	Alias  string
}

// Outlets returns the master-side keys the outer-detail tables owning attrs
// are joined on, named __masterkey0, __masterkey1, ...
func (s *Star) Outlets(attrs []*domain.Attribute) ([]Outlet, error) {
	keys, err := s.RequiredTables(attrs)
	if err != nil {
		return nil, err
	}
	joins, err := s.collect(keys, true)
	if err != nil {
		return nil, err
	}
	var outlets []Outlet
	for _, j := range joins {
		master := s.tables[j.MasterKey()]
		if master.Relationship != RelationshipMaster {
			continue
		}
		if findOutlet(outlets, master, j.Master.Column) != nil {
			continue
		}
		outlets = append(outlets, Outlet{
			Table:  master,
			Column: j.Master.Column,
			Alias:  fmt.Sprintf("__masterkey%d", len(outlets)),
		})
	}
	return outlets, nil
}

func findOutlet(outlets []Outlet, t *Table, column string) *Outlet {
	for i := range outlets {
		if outlets[i].Table == t && outlets[i].Column == column {
			return &outlets[i]
		}
	}
	return nil
}

// OutletTables returns the keys of the tables the outlets are taken from.
func OutletTables(outlets []Outlet) []mapper.TableKey {
	var keys []mapper.TableKey
	for _, o := range outlets {
		if !slices.Contains(keys, o.Table.Key()) {
			keys = append(keys, o.Table.Key())
		}
	}
	return keys
}

// RebasedJoinExpression joins the outer-detail tables owning attrs to a
// master fact relation instead of the fact table. Joins whose master is a
// match/master table are rewritten to use the relation's outlet columns.
func (s *Star) RebasedJoinExpression(relation sqlast.TableRef, relationAlias string, attrs []*domain.Attribute, outlets []Outlet) (sqlast.TableRef, []*Table, error) {
	keys, err := s.RequiredTables(attrs)
	if err != nil {
		return nil, nil, err
	}
	joins, err := s.collect(keys, true)
	if err != nil {
		return nil, nil, err
	}

	from := relation
	var touched []*Table
	for _, j := range joins {
		master := s.tables[j.MasterKey()]
		detail := s.tables[j.DetailKey()]

		var masterCol sqlast.Expr
		if master.Relationship == RelationshipMaster {
			o := findOutlet(outlets, master, j.Master.Column)
			if o == nil {
				return nil, nil, domain.ErrModel("no outlet for join key %s.%s", master.Key(), j.Master.Column)
			}
			masterCol = sqlast.Col(relationAlias, o.Alias)
		} else {
			masterCol = sqlast.Col(master.Ident(), j.Master.Column)
		}
		cond := sqlast.Eq(masterCol, sqlast.Col(detail.Ident(), j.Detail.Column))
		from = fold(from, detail.ref(), j.Method, cond)
		touched = append(touched, detail)
	}
	return from, touched, nil
}
