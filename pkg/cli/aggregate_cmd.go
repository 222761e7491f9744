package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"starquery/internal/browser"
	"starquery/internal/result"
)

func newAggregateCmd(a *app) *cobra.Command {
	var flags aggregateFlags
	cmd := &cobra.Command{
		Use:   "aggregate",
		Short: "Aggregate a cell, optionally drilled down",
		Example: `  starquery aggregate -m model.yaml -c sales --cut date:2024 -d date
  starquery aggregate -c sales -d product:name --page-size 10 --order amount_sum:desc`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			b, closeFn, err := a.browser(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			req, err := flags.request(b.Cube(), a.cfg.PageSize)
			if err != nil {
				return err
			}
			res, err := b.Aggregate(cmd.Context(), req)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if getOutputFormat(cmd) == "json" {
				return PrintJSON(out, map[string]any{
					"cell":             res.Cell.String(),
					"method":           res.Method.String(),
					"summary":          res.Summary,
					"cells":            res.Cells,
					"labels":           res.Labels,
					"total_cell_count": res.TotalCellCount,
				})
			}

			summaryLabels := make([]string, 0, len(res.Summary))
			for _, l := range res.Labels {
				if _, ok := res.Summary[l]; ok {
					summaryLabels = append(summaryLabels, l)
				}
			}
			PrintTable(out, summaryLabels, recordRows(summaryLabels, []result.Record{res.Summary}))
			if res.Cells != nil {
				_, _ = fmt.Fprintln(out)
				PrintTable(out, res.Labels, recordRows(res.Labels, res.Cells))
				_, _ = fmt.Fprintf(out, "\n%d of %d cells\n", len(res.Cells), res.TotalCellCount)
			}
			return nil
		},
	}
	flags.bind(cmd.Flags())
	cmd.Flags().BoolVar(&a.hideEmpty, "hide-empty", false, "Leave out cells without facts")
	return cmd
}

func newExplainCmd(a *app) *cobra.Command {
	var flags aggregateFlags
	cmd := &cobra.Command{
		Use:   "explain",
		Short: "Print the SQL an aggregation would run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cube, err := a.cube()
			if err != nil {
				return err
			}
			// Explaining needs no database connection.
			b, err := browser.New(nil, cube, a.browserOptions(), a.logger)
			if err != nil {
				return err
			}
			req, err := flags.request(cube, a.cfg.PageSize)
			if err != nil {
				return err
			}
			ex, err := b.Explain(req)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if getOutputFormat(cmd) == "json" {
				return PrintJSON(out, map[string]string{
					"method":  ex.Method.String(),
					"summary": ex.Summary,
					"cells":   ex.Cells,
					"count":   ex.Count,
				})
			}
			_, _ = fmt.Fprintf(out, "-- method: %s\n-- summary\n%s;\n", ex.Method, ex.Summary)
			if ex.Cells != "" {
				_, _ = fmt.Fprintf(out, "-- cells\n%s;\n", ex.Cells)
			}
			if ex.Count != "" {
				_, _ = fmt.Fprintf(out, "-- count\n%s;\n", ex.Count)
			}
			return nil
		},
	}
	flags.bind(cmd.Flags())
	return cmd
}
