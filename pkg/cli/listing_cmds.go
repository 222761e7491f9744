package cli

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"starquery/internal/browser"
	"starquery/internal/query"
	"starquery/internal/result"
)

func newMembersCmd(a *app) *cobra.Command {
	var (
		flags     cellFlags
		dimension string
		hierarchy string
		depth     int
	)
	cmd := &cobra.Command{
		Use:   "members",
		Short: "List the members of a dimension that have facts in a cell",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			b, closeFn, err := a.browser(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			c, err := flags.cell()
			if err != nil {
				return err
			}
			order, err := flags.orders()
			if err != nil {
				return err
			}
			list, err := b.Members(cmd.Context(), query.MembersRequest{
				Cell:      c,
				Dimension: dimension,
				Hierarchy: hierarchy,
				Depth:     depth,
				Order:     order,
				Page:      flags.page,
				PageSize:  flags.resolvedPageSize(a.cfg.PageSize),
			})
			if err != nil {
				return err
			}
			return printListing(cmd, list)
		},
	}
	flags.bind(cmd.Flags())
	cmd.Flags().StringVar(&dimension, "dimension", "", "Dimension to list")
	cmd.Flags().StringVar(&hierarchy, "hierarchy", "", "Hierarchy of the dimension (default hierarchy when empty)")
	cmd.Flags().IntVar(&depth, "depth", 0, "Number of levels to list, all when 0")
	_ = cmd.MarkFlagRequired("dimension")
	return cmd
}

func newFactsCmd(a *app) *cobra.Command {
	var (
		flags      cellFlags
		attributes []string
		withKey    bool
	)
	cmd := &cobra.Command{
		Use:   "facts",
		Short: "List the facts of a cell with their dimension attributes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			b, closeFn, err := a.browser(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			c, err := flags.cell()
			if err != nil {
				return err
			}
			order, err := flags.orders()
			if err != nil {
				return err
			}
			list, err := b.Facts(cmd.Context(), query.FactsRequest{
				Cell:           c,
				Attributes:     attributes,
				IncludeFactKey: withKey,
				Order:          order,
				Page:           flags.page,
				PageSize:       flags.resolvedPageSize(a.cfg.PageSize),
			})
			if err != nil {
				return err
			}
			return printListing(cmd, list)
		},
	}
	flags.bind(cmd.Flags())
	cmd.Flags().StringSliceVar(&attributes, "attribute", nil, "Attributes to list (default details, dimension attributes and measures)")
	cmd.Flags().BoolVar(&withKey, "with-key", false, "Include the fact key")
	return cmd
}

func newFactCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "fact <key>",
		Short: "Show a single fact by key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, closeFn, err := a.browser(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			var key any = args[0]
			if n, err := strconv.ParseInt(args[0], 10, 64); err == nil {
				key = n
			}
			rec, err := b.Fact(cmd.Context(), key)
			if err != nil {
				return err
			}
			if getOutputFormat(cmd) == "json" {
				return PrintJSON(cmd.OutOrStdout(), rec)
			}
			printRecord(cmd.OutOrStdout(), rec)
			return nil
		},
	}
}

func printListing(cmd *cobra.Command, list *browser.Listing) error {
	out := cmd.OutOrStdout()
	if getOutputFormat(cmd) == "json" {
		return PrintJSON(out, map[string]any{
			"labels":  list.Labels,
			"records": list.Records,
			"total":   list.Total,
		})
	}
	PrintTable(out, list.Labels, recordRows(list.Labels, list.Records))
	_, _ = fmt.Fprintf(out, "\n%d of %d records\n", len(list.Records), list.Total)
	return nil
}

// printRecord writes one record as attribute/value lines.
func printRecord(w io.Writer, rec result.Record) {
	rows := make([][]string, 0, len(rec))
	for _, k := range sortedKeys(rec) {
		rows = append(rows, []string{k, formatValue(rec[k])})
	}
	PrintTable(w, []string{"attribute", "value"}, rows)
}
