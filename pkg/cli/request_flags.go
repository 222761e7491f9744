package cli

import (
	"strings"

	"github.com/spf13/pflag"

	"starquery/internal/cell"
	"starquery/internal/domain"
	"starquery/internal/query"
)

// cellFlags select a cell and the ordering and paging of a listing.
type cellFlags struct {
	cuts     []string
	order    string
	page     int
	pageSize int
}

func (f *cellFlags) bind(fs *pflag.FlagSet) {
	fs.StringArrayVar(&f.cuts, "cut", nil, "Cut `dim[@hier]:path`, repeatable (ranges a-b, sets a;b, ! inverts)")
	fs.StringVar(&f.order, "order", "", "Order `attr[:asc|desc],...`")
	fs.IntVar(&f.page, "page", 0, "Page number, starting at 0")
	fs.IntVar(&f.pageSize, "page-size", -1, "Page size, 0 for no paging (default from config)")
}

func (f *cellFlags) cell() (cell.Cell, error) {
	cuts, err := cell.ParseCuts(strings.Join(f.cuts, "|"))
	if err != nil {
		return cell.Cell{}, err
	}
	return cell.New(cuts...), nil
}

func (f *cellFlags) orders() ([]cell.Order, error) {
	if f.order == "" {
		return nil, nil
	}
	return cell.ParseOrder(f.order)
}

// resolvedPageSize falls back to the configured page size when the flag
// is not set.
func (f *cellFlags) resolvedPageSize(defaultSize int) int {
	if f.pageSize < 0 {
		return defaultSize
	}
	return f.pageSize
}

// aggregateFlags describe an aggregation request.
type aggregateFlags struct {
	cellFlags
	drilldown   []string
	aggregates  []string
	split       string
	summaryOnly bool
}

func (f *aggregateFlags) bind(fs *pflag.FlagSet) {
	f.cellFlags.bind(fs)
	fs.StringArrayVarP(&f.drilldown, "drilldown", "d", nil, "Drilldown `dim[@hier][:level]`, repeatable")
	fs.StringSliceVarP(&f.aggregates, "aggregate", "a", nil, "Aggregates to compute (default all)")
	fs.StringVar(&f.split, "split", "", "Cuts of the split cell, `|` separated")
	fs.BoolVar(&f.summaryOnly, "summary-only", false, "Compute only the summary")
}

func (f *aggregateFlags) request(cube *domain.Cube, defaultPageSize int) (query.AggregationRequest, error) {
	c, err := f.cell()
	if err != nil {
		return query.AggregationRequest{}, err
	}
	req := query.AggregationRequest{
		Cell:        c,
		Page:        f.page,
		PageSize:    f.resolvedPageSize(defaultPageSize),
		SummaryOnly: f.summaryOnly,
	}
	if len(f.drilldown) > 0 {
		specs, err := cell.ParseDrilldown(strings.Join(f.drilldown, "|"))
		if err != nil {
			return query.AggregationRequest{}, err
		}
		if req.Drilldown, err = cell.NewDrilldown(cube, specs, c); err != nil {
			return query.AggregationRequest{}, err
		}
	}
	if len(f.aggregates) > 0 {
		if req.Aggregates, err = cube.AggregatesByName(f.aggregates); err != nil {
			return query.AggregationRequest{}, err
		}
	}
	if f.split != "" {
		cuts, err := cell.ParseCuts(f.split)
		if err != nil {
			return query.AggregationRequest{}, err
		}
		split := cell.New(cuts...)
		req.Split = &split
	}
	if req.Order, err = f.orders(); err != nil {
		return query.AggregationRequest{}, err
	}
	return req, nil
}
