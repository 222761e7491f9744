package browser

import (
	"context"
	"slices"

	"golang.org/x/sync/errgroup"

	"starquery/internal/cell"
	"starquery/internal/postagg"
	"starquery/internal/query"
	"starquery/internal/result"
)

// AggregationResult is the summary and the drilled cells of one
// aggregation.
type AggregationResult struct {
	Cell cell.Cell
	// Labels of the cell records, post-aggregates included.
	Labels  []string
	Summary result.Record
	Cells   []result.Record
	// TotalCellCount counts the cells of all pages. With paging it
	// includes hidden empty cells.
	TotalCellCount int
	Method         query.Method
}

// Aggregate computes the summary of req.Cell and, when drilled or split,
// its cells. Summary, cells and the paged cell count run concurrently.
func (b *Browser) Aggregate(ctx context.Context, req query.AggregationRequest) (*AggregationResult, error) {
	summaryReq := req
	summaryReq.SummaryOnly = true
	summaryStmt, err := b.builder.Aggregation(summaryReq)
	if err != nil {
		return nil, err
	}

	res := &AggregationResult{Cell: req.Cell, Labels: withPostLabels(summaryStmt), Method: summaryStmt.Method}
	var cellsStmt *query.Statement
	if !req.SummaryOnly && (!req.Drilldown.IsEmpty() || req.Split != nil) {
		if cellsStmt, err = b.builder.Aggregation(req); err != nil {
			return nil, err
		}
		res.Method = cellsStmt.Method
		res.Labels = withPostLabels(cellsStmt)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		records, err := b.execute(gctx, "aggregate summary", summaryStmt)
		if err != nil {
			return err
		}
		if err := postagg.Apply(records, postSpecs(summaryStmt, nil)); err != nil {
			return err
		}
		if len(records) > 0 {
			res.Summary = records[0]
		}
		return nil
	})
	if cellsStmt != nil {
		g.Go(func() error {
			var opts []result.Option
			if b.opts.HideEmptyCells {
				opts = append(opts, result.WithExcludeIfNull(b.aggregateLabels(cellsStmt)...))
			}
			records, err := b.execute(gctx, "aggregate cells", cellsStmt, opts...)
			if err != nil {
				return err
			}
			if err := postagg.Apply(records, postSpecs(cellsStmt, seriesKeys(req))); err != nil {
				return err
			}
			res.Cells = records
			return nil
		})
		if req.PageSize > 0 {
			g.Go(func() error {
				n, err := b.count(gctx, "aggregate count", cellsStmt)
				if err != nil {
					return err
				}
				res.TotalCellCount = n
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if cellsStmt != nil && req.PageSize <= 0 {
		res.TotalCellCount = len(res.Cells)
	}
	return res, nil
}

// Explanation holds the statements of one aggregation. Cells and Count are
// empty when the request has no cells or no paging.
type Explanation struct {
	Method  query.Method
	Summary string
	Cells   string
	Count   string
}

// Explain returns the statements Aggregate would run, values inlined.
func (b *Browser) Explain(req query.AggregationRequest) (*Explanation, error) {
	summaryReq := req
	summaryReq.SummaryOnly = true
	summary, err := b.builder.Aggregation(summaryReq)
	if err != nil {
		return nil, err
	}
	out := &Explanation{Method: summary.Method, Summary: summary.Inline()}
	if req.SummaryOnly || (req.Drilldown.IsEmpty() && req.Split == nil) {
		return out, nil
	}
	cells, err := b.builder.Aggregation(req)
	if err != nil {
		return nil, err
	}
	out.Method, out.Cells = cells.Method, cells.Inline()
	if req.PageSize > 0 {
		out.Count = query.Count(cells).Inline()
	}
	return out, nil
}

// aggregateLabels are the labels of stmt computed by SQL aggregates.
func (b *Browser) aggregateLabels(stmt *query.Statement) []string {
	var out []string
	for _, l := range stmt.Labels {
		if _, err := b.cube.Aggregate(l); err == nil {
			out = append(out, l)
		}
	}
	return out
}

func withPostLabels(stmt *query.Statement) []string {
	labels := slices.Clone(stmt.Labels)
	for _, p := range stmt.PostAggregates {
		labels = append(labels, p.Aggregate.Name)
	}
	return labels
}

func postSpecs(stmt *query.Statement, key []string) []postagg.Spec {
	specs := make([]postagg.Spec, 0, len(stmt.PostAggregates))
	for _, p := range stmt.PostAggregates {
		specs = append(specs, postagg.Spec{
			Function:   p.Aggregate.Function,
			Source:     p.Source,
			Target:     p.Aggregate.Name,
			WindowSize: p.Aggregate.WindowSize,
			Key:        key,
		})
	}
	return specs
}

// seriesKeys are the labels separating moving-average series: the split
// flag and the keys of non-time drilldown levels.
func seriesKeys(req query.AggregationRequest) []string {
	var keys []string
	if req.Split != nil {
		keys = append(keys, query.SplitLabel)
	}
	if req.Drilldown.IsEmpty() {
		return keys
	}
	for _, item := range req.Drilldown.Items {
		if item.Dimension.IsTime() {
			continue
		}
		for _, k := range item.Keys() {
			keys = append(keys, k.Ref())
		}
	}
	return keys
}
