package schema

import (
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"starquery/internal/domain"
	"starquery/internal/mapper"
	"starquery/internal/sqlast"
)

// snowflakeCube: sales -> customer -> address (master), sales -> note
// (detail) -> author, sales -> date.
func snowflakeCube(t *testing.T) *domain.Cube {
	t.Helper()
	cube := &domain.Cube{
		Name: "sales",
		Dimensions: []*domain.Dimension{
			{Name: "date", Levels: []*domain.Level{{Name: "year"}, {Name: "month"}}},
			{Name: "customer", Levels: []*domain.Level{{Name: "name"}, {Name: "city"}}},
			{Name: "note", Levels: []*domain.Level{{Name: "text"}, {Name: "author"}}},
		},
		Measures: []*domain.Measure{{Attribute: domain.Attribute{Name: "amount"}}},
		Mappings: map[string]domain.ColumnSpec{
			"customer.city": {Table: "address", Column: "city"},
			"note.author":   {Table: "author", Column: "name"},
		},
		Joins: []domain.JoinSpec{
			{Master: domain.ColumnSpec{Column: "date_id"}, Detail: domain.ColumnSpec{Table: "date", Column: "id"}},
			{Master: domain.ColumnSpec{Column: "customer_id"}, Detail: domain.ColumnSpec{Table: "customer", Column: "id"}},
			{Master: domain.ColumnSpec{Table: "customer", Column: "address_id"}, Detail: domain.ColumnSpec{Table: "address", Column: "id"}, Method: MethodMaster},
			{Master: domain.ColumnSpec{Column: "id"}, Detail: domain.ColumnSpec{Table: "note", Column: "sale_id"}, Method: MethodDetail},
			{Master: domain.ColumnSpec{Table: "note", Column: "author_id"}, Detail: domain.ColumnSpec{Table: "author", Column: "id"}},
		},
	}
	require.NoError(t, cube.Link())
	return cube
}

func newStar(t *testing.T, cube *domain.Cube) *Star {
	t.Helper()
	m, err := mapper.New(cube)
	require.NoError(t, err)
	s, err := New(m, "")
	require.NoError(t, err)
	return s
}

func attrs(t *testing.T, cube *domain.Cube, refs ...string) []*domain.Attribute {
	t.Helper()
	out := make([]*domain.Attribute, len(refs))
	for i, ref := range refs {
		a, err := cube.Attribute(ref)
		require.NoError(t, err)
		out[i] = a
	}
	return out
}

func fromSQL(ref sqlast.TableRef) string {
	return sqlast.FormatInline(&sqlast.SelectStmt{Columns: []sqlast.SelectItem{{Star: true}}, From: ref})
}

func TestClassification(t *testing.T) {
	s := newStar(t, snowflakeCube(t))

	want := map[string]Relationship{
		"sales":    RelationshipMaster,
		"date":     RelationshipMaster,
		"customer": RelationshipMaster,
		"address":  RelationshipMaster,
		"note":     RelationshipOuterDetail,
		"author":   RelationshipOuterDetail,
	}
	got := map[string]Relationship{}
	for _, table := range s.Tables() {
		got[table.Name] = table.Relationship
	}
	assert.Equal(t, want, got)

	assert.Equal(t, []string{"date_id", "customer_id", "id"}, s.Fact().DetailKeys)
	customer, err := s.Table(mapper.TableKey{Table: "customer"})
	require.NoError(t, err)
	assert.Equal(t, []string{"address_id"}, customer.DetailKeys)
}

func TestClassification_Errors(t *testing.T) {
	tests := []struct {
		name  string
		joins []domain.JoinSpec
	}{
		{
			name: "master not yet joined",
			joins: []domain.JoinSpec{
				{Master: domain.ColumnSpec{Table: "customer", Column: "address_id"}, Detail: domain.ColumnSpec{Table: "address", Column: "id"}},
				{Master: domain.ColumnSpec{Column: "customer_id"}, Detail: domain.ColumnSpec{Table: "customer", Column: "id"}},
			},
		},
		{
			name: "detail twice without alias",
			joins: []domain.JoinSpec{
				{Master: domain.ColumnSpec{Column: "date_id"}, Detail: domain.ColumnSpec{Table: "date", Column: "id"}},
				{Master: domain.ColumnSpec{Column: "ship_date_id"}, Detail: domain.ColumnSpec{Table: "date", Column: "id"}},
			},
		},
		{
			name: "fact as detail",
			joins: []domain.JoinSpec{
				{Master: domain.ColumnSpec{Column: "parent_id"}, Detail: domain.ColumnSpec{Table: "sales", Column: "id"}},
			},
		},
		{
			name: "unknown method",
			joins: []domain.JoinSpec{
				{Master: domain.ColumnSpec{Column: "date_id"}, Detail: domain.ColumnSpec{Table: "date", Column: "id"}, Method: "cross"},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cube := snowflakeCube(t)
			cube.Joins = tt.joins
			m, err := mapper.New(cube)
			require.NoError(t, err)
			_, err = New(m, "")
			var modelErr *domain.ModelError
			assert.True(t, errors.As(err, &modelErr), "got %v", err)
		})
	}
}

func TestClassification_Alias(t *testing.T) {
	cube := snowflakeCube(t)
	cube.Joins = append(cube.Joins, domain.JoinSpec{
		Master: domain.ColumnSpec{Column: "ship_date_id"},
		Detail: domain.ColumnSpec{Table: "date", Column: "id"},
		Alias:  "ship_date",
	})
	cube.Mappings["customer.name"] = domain.ColumnSpec{Table: "ship_date", Column: "year"}
	s := newStar(t, cube)

	from, touched, err := s.JoinExpression(attrs(t, cube, "customer.name"))
	require.NoError(t, err)
	assert.Len(t, touched, 2)
	assert.Equal(t, `SELECT * FROM "sales" JOIN "date" "ship_date" ON "sales"."ship_date_id" = "ship_date"."id"`, fromSQL(from))
}

func TestJoinExpression_Minimal(t *testing.T) {
	cube := snowflakeCube(t)
	s := newStar(t, cube)

	tests := []struct {
		name string
		refs []string
		want string
	}{
		{
			name: "fact only",
			refs: []string{"amount"},
			want: `SELECT * FROM "sales"`,
		},
		{
			name: "snowflake path",
			refs: []string{"customer.city"},
			want: `SELECT * FROM "sales" JOIN "customer" ON "sales"."customer_id" = "customer"."id" ` +
				`LEFT JOIN "address" ON "customer"."address_id" = "address"."id"`,
		},
		{
			name: "declaration order regardless of request order",
			refs: []string{"customer.name", "date.year"},
			want: `SELECT * FROM "sales" JOIN "date" ON "sales"."date_id" = "date"."id" ` +
				`JOIN "customer" ON "sales"."customer_id" = "customer"."id"`,
		},
		{
			name: "outer detail swaps operands",
			refs: []string{"note.author", "date.year"},
			want: `SELECT * FROM "note" LEFT JOIN ("sales" JOIN "date" ON "sales"."date_id" = "date"."id") ` +
				`ON "sales"."id" = "note"."sale_id" JOIN "author" ON "note"."author_id" = "author"."id"`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			from, _, err := s.JoinExpression(attrs(t, cube, tt.refs...))
			require.NoError(t, err)
			assert.Equal(t, tt.want, fromSQL(from))
		})
	}
}

func TestJoinExpression_RootedAtFact(t *testing.T) {
	cube := snowflakeCube(t)
	s := newStar(t, cube)

	for _, refs := range [][]string{nil, {"amount"}, {"customer.name"}} {
		from, touched, err := s.JoinExpression(attrs(t, cube, refs...))
		require.NoError(t, err)
		require.NotEmpty(t, touched)
		assert.Equal(t, "sales", touched[0].Ident(), "refs %v", refs)
		assert.True(t, strings.HasPrefix(fromSQL(from), `SELECT * FROM "sales"`), "refs %v", refs)
	}
}

func TestJoinExpression_Unjoined(t *testing.T) {
	cube := snowflakeCube(t)
	cube.Mappings["date.month"] = domain.ColumnSpec{Table: "calendar", Column: "month"}
	s := newStar(t, cube)

	_, _, err := s.JoinExpression(attrs(t, cube, "date.month"))
	var modelErr *domain.ModelError
	require.True(t, errors.As(err, &modelErr))
	assert.Contains(t, err.Error(), "some tables are not joined")
}

func TestOutletsAndRebase(t *testing.T) {
	cube := snowflakeCube(t)
	s := newStar(t, cube)
	detail := attrs(t, cube, "note.author")

	outlets, err := s.Outlets(detail)
	require.NoError(t, err)
	require.Len(t, outlets, 1)
	assert.Equal(t, "sales", outlets[0].Table.Name)
	assert.Equal(t, "id", outlets[0].Column)
	assert.Equal(t, "__masterkey0", outlets[0].Alias)
	assert.Equal(t, []mapper.TableKey{{Table: "sales"}}, OutletTables(outlets))

	relation := &sqlast.TableName{Name: "mf"}
	from, touched, err := s.RebasedJoinExpression(relation, "mf", detail, outlets)
	require.NoError(t, err)
	assert.Len(t, touched, 2)
	assert.Equal(t,
		`SELECT * FROM "note" LEFT JOIN "mf" ON "mf"."__masterkey0" = "note"."sale_id" JOIN "author" ON "note"."author_id" = "author"."id"`,
		fromSQL(from))
}

func TestColumn(t *testing.T) {
	cube := snowflakeCube(t)
	cube.Mappings["date.year"] = domain.ColumnSpec{Table: "date", Column: "day", Extract: "year"}
	cube.Mappings["date.month"] = domain.ColumnSpec{Table: "date", Column: "month", Func: "lower", Condition: "month <= date.year"}
	cube.Mappings["customer.name"] = domain.ColumnSpec{Expr: "first_name || ' ' || last_name"}
	s := newStar(t, cube)

	tests := []struct {
		ref  string
		want string
	}{
		{ref: "amount", want: `"sales"."amount"`},
		{ref: "date.year", want: `EXTRACT(YEAR FROM "date"."day")`},
		{ref: "date.month", want: `lower("date"."month")`},
		{ref: "customer.name", want: `("customer"."first_name" || ' ' || "customer"."last_name")`},
		{ref: "customer.city", want: `"address"."city"`},
	}
	for _, tt := range tests {
		t.Run(tt.ref, func(t *testing.T) {
			col, err := s.Column(attrs(t, cube, tt.ref)[0])
			require.NoError(t, err)
			assert.Equal(t, tt.want, sqlast.FormatExpr(col))
		})
	}

	cond, err := s.Condition(attrs(t, cube, "date.month")[0])
	require.NoError(t, err)
	assert.Equal(t, `("date"."month" <= EXTRACT(YEAR FROM "date"."day"))`, sqlast.FormatExpr(cond))

	cond, err = s.Condition(attrs(t, cube, "amount")[0])
	require.NoError(t, err)
	assert.Nil(t, cond)
}

func TestColumn_CyclicExpression(t *testing.T) {
	cube := snowflakeCube(t)
	cube.Mappings["date.year"] = domain.ColumnSpec{Table: "date", Expr: "date.month + 1"}
	cube.Mappings["date.month"] = domain.ColumnSpec{Table: "date", Expr: "date.year - 1"}
	s := newStar(t, cube)

	_, err := s.Column(attrs(t, cube, "date.year")[0])
	var mappingErr *domain.MappingError
	assert.True(t, errors.As(err, &mappingErr), "got %v", err)
}

// TestRelationshipDeterminism classifies random join forests and checks that
// a table is outer-detail exactly when its path to the fact crosses a detail
// join.
func TestRelationshipDeterminism(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	methods := []string{MethodMatch, MethodMaster, MethodDetail}

	for round := 0; round < 50; round++ {
		n := 2 + rng.Intn(12)
		cube := &domain.Cube{Name: "fact"}
		parent := make([]int, n+1) // table i's master, 0 is the fact
		method := make([]string, n+1)
		for i := 1; i <= n; i++ {
			parent[i] = rng.Intn(i)
			method[i] = methods[rng.Intn(len(methods))]
			master := domain.ColumnSpec{Column: fmt.Sprintf("t%d_id", i)}
			if parent[i] > 0 {
				master.Table = fmt.Sprintf("t%d", parent[i])
			}
			cube.Joins = append(cube.Joins, domain.JoinSpec{
				Master: master,
				Detail: domain.ColumnSpec{Table: fmt.Sprintf("t%d", i), Column: "id"},
				Method: method[i],
			})
		}
		require.NoError(t, cube.Link())
		s := newStar(t, cube)

		for i := 1; i <= n; i++ {
			wantDetail := false
			for j := i; j > 0; j = parent[j] {
				if method[j] == MethodDetail {
					wantDetail = true
				}
			}
			table, err := s.Table(mapper.TableKey{Table: fmt.Sprintf("t%d", i)})
			require.NoError(t, err)
			assert.Equal(t, wantDetail, table.Relationship == RelationshipOuterDetail, "round %d table t%d", round, i)
		}

		// minimality: joining table k touches exactly its ancestors
		k := 1 + rng.Intn(n)
		_, touched, err := s.JoinTables([]mapper.TableKey{{Table: fmt.Sprintf("t%d", k)}})
		require.NoError(t, err)
		var wantTouched []string
		for j := k; j > 0; j = parent[j] {
			wantTouched = append(wantTouched, fmt.Sprintf("t%d", j))
		}
		var gotTouched []string
		for _, tbl := range touched[1:] {
			gotTouched = append(gotTouched, tbl.Name)
		}
		assert.ElementsMatch(t, wantTouched, gotTouched, "round %d table t%d", round, k)
	}
}
