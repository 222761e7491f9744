package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"starquery/internal/cell"
	"starquery/internal/mapper"
	"starquery/internal/schema"
	"starquery/internal/sqlast"
)

func inverted[C cell.Cut](c C) C {
	switch v := any(c).(type) {
	case *cell.PointCut:
		v.Invert = true
	case *cell.RangeCut:
		v.Invert = true
	case *cell.SetCut:
		v.Invert = true
	}
	return c
}

func TestCutCondition(t *testing.T) {
	cube := salesCube(t, nil)
	m, err := mapper.New(cube)
	require.NoError(t, err)
	star, err := schema.New(m, "")
	require.NoError(t, err)

	tests := []struct {
		name string
		cut  cell.Cut
		want string
	}{
		{
			name: "point",
			cut:  cell.Point("date", 2013),
			want: `"date"."year" = 2013`,
		},
		{
			name: "point two levels",
			cut:  cell.Point("date", 2013, 4),
			want: `"date"."year" = 2013 AND "date"."month" = 4`,
		},
		{
			name: "inverted point",
			cut:  inverted(cell.Point("date", 2013)),
			want: `NOT ("date"."year" = 2013)`,
		},
		{
			name: "range",
			cut:  cell.Range("date", cell.Path{2012, 6}, cell.Path{2013, 2}),
			want: `("date"."year" = 2012 AND "date"."month" >= 6 OR "date"."year" > 2012) AND ` +
				`("date"."year" = 2013 AND "date"."month" <= 2 OR "date"."year" < 2013)`,
		},
		{
			name: "range from only",
			cut:  cell.Range("date", cell.Path{2012}, nil),
			want: `"date"."year" >= 2012`,
		},
		{
			name: "range to only",
			cut:  cell.Range("date", nil, cell.Path{2013}),
			want: `"date"."year" <= 2013`,
		},
		{
			name: "inverted range",
			cut:  inverted(cell.Range("date", cell.Path{2012, 6}, cell.Path{2013, 2})),
			want: `("date"."year" <> 2012 OR "date"."month" < 6) AND "date"."year" <= 2012 OR ` +
				`("date"."year" <> 2013 OR "date"."month" > 2) AND "date"."year" >= 2013`,
		},
		{
			name: "inverted open range",
			cut:  inverted(cell.Range("date", cell.Path{2012}, nil)),
			want: `"date"."year" < 2012`,
		},
		{
			name: "set",
			cut:  cell.Set("date", cell.Path{2012}, cell.Path{2013, 1}),
			want: `"date"."year" = 2012 OR "date"."year" = 2013 AND "date"."month" = 1`,
		},
		{
			name: "inverted set",
			cut:  inverted(cell.Set("date", cell.Path{2012}, cell.Path{2013, 1})),
			want: `NOT ("date"."year" = 2012 OR "date"."year" = 2013 AND "date"."month" = 1)`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bc, err := bindCut(star, tt.cut)
			require.NoError(t, err)
			cond, err := bc.condition(star.Column)
			require.NoError(t, err)
			assert.Equal(t, tt.want, sqlast.FormatExpr(cond))
		})
	}
}

func TestBindCut_Buckets(t *testing.T) {
	cube := notesCube(t)
	m, err := mapper.New(cube)
	require.NoError(t, err)
	star, err := schema.New(m, "")
	require.NoError(t, err)

	cuts, err := bindCuts(star, []cell.Cut{
		cell.Point("date", 2013),
		cell.Point("note", "ann"),
		cell.Set("mixed", cell.Path{"eu"}, cell.Path{"us"}),
	})
	require.NoError(t, err)

	master, detail := splitBuckets(cuts)
	require.Len(t, master, 2)
	require.Len(t, detail, 1)
	assert.Equal(t, "note", detail[0].cut.CutTarget().Dimension)
	assert.Equal(t, attributes(t, cube, "date.year", "mixed.region"), cutAttributes(master))
}
