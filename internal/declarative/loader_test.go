package declarative

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"starquery/internal/domain"
	"starquery/internal/mapper"
)

func testdataDir(t *testing.T) string {
	t.Helper()
	_, filename, _, ok := runtime.Caller(0)
	require.True(t, ok)
	return filepath.Join(filepath.Dir(filename), "testdata")
}

func aggregateNames(c *domain.Cube) []string {
	names := make([]string, len(c.Aggregates))
	for i, a := range c.Aggregates {
		names[i] = a.Name
	}
	return names
}

func TestLoadFile_YAML(t *testing.T) {
	model, err := LoadFile(filepath.Join(testdataDir(t), "sales.yaml"))
	require.NoError(t, err)
	assert.Equal(t, []string{"sales"}, model.CubeNames())

	cube, err := model.Cube("sales")
	require.NoError(t, err)
	assert.Equal(t, "fact_sales", cube.FactName())
	assert.Equal(t, "sale_id", cube.FactKey())
	assert.Equal(t, "dim_", cube.DimensionPrefix)
	assert.Equal(t, []string{"amount_sma", "net", "amount_sum", "amount_max", "discount_sum", "fact_count"}, aggregateNames(cube))

	sma, err := cube.Aggregate("amount_sma")
	require.NoError(t, err)
	assert.Equal(t, "sma", sma.Function)
	assert.Equal(t, 3, sma.WindowSize)

	net, err := cube.Aggregate("net")
	require.NoError(t, err)
	assert.Equal(t, "amount_sum - discount_sum", net.Expression)

	date, err := cube.Dimension("date")
	require.NoError(t, err)
	assert.True(t, date.IsTime())
	h, err := date.Hierarchy("")
	require.NoError(t, err)
	assert.Equal(t, "ymd", h.Name)
	assert.Len(t, h.Levels, 3)
	month := date.Level("month")
	require.NotNil(t, month)
	assert.Equal(t, "month", month.Key().Name)
	assert.Equal(t, "month_name", month.LabelAttribute().Name)

	product, err := cube.Dimension("product")
	require.NoError(t, err)
	assert.Equal(t, domain.OrderDesc, product.Level("category").OrderDirection())

	channel, err := cube.Attribute("channel")
	require.NoError(t, err)
	assert.Equal(t, "channel", channel.Ref())

	invoice, err := cube.Attribute("invoice")
	require.NoError(t, err)
	assert.Nil(t, invoice.Dimension())

	require.Len(t, cube.Joins, 2)
	assert.Equal(t, domain.ColumnSpec{Column: "date_id"}, cube.Joins[0].Master)
	assert.Equal(t, domain.ColumnSpec{Table: "dim_date", Column: "id"}, cube.Joins[0].Detail)
	assert.Equal(t, "master", cube.Joins[1].Method)
}

func TestLoadFile_MappingsResolve(t *testing.T) {
	model, err := LoadFile(filepath.Join(testdataDir(t), "sales.yaml"))
	require.NoError(t, err)
	cube, err := model.Cube("sales")
	require.NoError(t, err)
	m, err := mapper.New(cube)
	require.NoError(t, err)

	tests := []struct {
		ref    string
		locale string
		table  string
		column string
	}{
		{"date.year", "", "dim_date", "yr"},
		{"date.month", "", "dim_date", "month"},
		{"channel", "", "fact_sales", "channel_code"},
		{"invoice", "", "fact_sales", "invoice"},
		{"product.category_label", "sk", "dim_product", "cat_label_sk"},
		{"product.category_label", "", "dim_product", "category_label_en"},
	}
	for _, tt := range tests {
		t.Run(tt.ref+"/"+tt.locale, func(t *testing.T) {
			attr, err := cube.Attribute(tt.ref)
			require.NoError(t, err)
			ref, err := m.Physical(attr, tt.locale)
			require.NoError(t, err)
			assert.Equal(t, tt.table, ref.Table)
			assert.Equal(t, tt.column, ref.Column)
		})
	}
}

func TestLoadFile_JSON(t *testing.T) {
	model, err := LoadFile(filepath.Join(testdataDir(t), "sales.json"))
	require.NoError(t, err)

	cube, err := model.Cube("sales")
	require.NoError(t, err)
	assert.Equal(t, []string{"amount_sum", "fact_count"}, aggregateNames(cube))
	assert.Equal(t, domain.DefaultFactKey, cube.FactKey())

	_, err = model.Cube("returns")
	var nf *domain.NotFoundError
	require.ErrorAs(t, err, &nf)
}

func TestLoadFile_Missing(t *testing.T) {
	_, err := LoadFile(filepath.Join(testdataDir(t), "nope.yaml"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestBuildCube_FreshObjects(t *testing.T) {
	model, err := LoadFile(filepath.Join(testdataDir(t), "sales.yaml"))
	require.NoError(t, err)

	a, err := BuildCube(&model.Doc, "sales")
	require.NoError(t, err)
	b, err := BuildCube(&model.Doc, "sales")
	require.NoError(t, err)
	assert.NotSame(t, a.Dimensions[0], b.Dimensions[0])
	assert.Equal(t, aggregateNames(a), aggregateNames(b))
}

func TestParse_Envelope(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		opts    LoadOptions
		wantErr string
	}{
		{
			name:    "wrong api version",
			doc:     "apiVersion: v0\nkind: Model\n",
			wantErr: `unsupported apiVersion "v0"`,
		},
		{
			name:    "wrong kind",
			doc:     "apiVersion: starquery/v1\nkind: Catalog\n",
			wantErr: `unexpected kind "Catalog"`,
		},
		{
			name:    "unknown top-level field",
			doc:     "apiVersion: starquery/v1\nkind: Model\ncolor: blue\n",
			wantErr: "field color not found",
		},
		{
			name:    "unknown mapping field",
			doc:     "apiVersion: starquery/v1\nkind: Model\ncubes:\n  - name: s\n    mappings:\n      x: {table: t, colour: c}\n",
			wantErr: "field colour not found",
		},
		{
			name:    "bad column reference",
			doc:     "apiVersion: starquery/v1\nkind: Model\ncubes:\n  - name: s\n    mappings:\n      x: a..b\n",
			wantErr: `invalid column reference "a..b"`,
		},
		{
			name:    "mapping with disallowed function",
			doc:     "apiVersion: starquery/v1\nkind: Model\ncubes:\n  - name: s\n    mappings:\n      x: {column: c, function: system}\n",
			wantErr: `function "system" is not allowed`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc), tt.opts)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestParse_AllowUnknownFields(t *testing.T) {
	doc := "apiVersion: starquery/v1\nkind: Model\ncolor: blue\ncubes:\n  - name: s\n"
	_, err := Parse([]byte(doc), LoadOptions{AllowUnknownFields: true})
	require.NoError(t, err)
}
