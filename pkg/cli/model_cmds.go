package cli

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"starquery/internal/db"
)

func newValidateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate a model document and list its cubes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			model, err := a.model()
			if err != nil {
				return err
			}

			type cubeInfo struct {
				Name       string   `json:"name"`
				Fact       string   `json:"fact"`
				Dimensions []string `json:"dimensions"`
				Aggregates []string `json:"aggregates"`
			}
			var cubes []cubeInfo
			for _, name := range model.CubeNames() {
				cube, err := model.Cube(name)
				if err != nil {
					return err
				}
				info := cubeInfo{Name: cube.Name, Fact: cube.FactName()}
				for _, d := range cube.Dimensions {
					info.Dimensions = append(info.Dimensions, d.Name)
				}
				for _, agg := range cube.Aggregates {
					info.Aggregates = append(info.Aggregates, agg.Name)
				}
				cubes = append(cubes, info)
			}

			out := cmd.OutOrStdout()
			if getOutputFormat(cmd) == "json" {
				return PrintJSON(out, map[string]any{"valid": true, "cubes": cubes})
			}
			rows := make([][]string, len(cubes))
			for i, c := range cubes {
				rows[i] = []string{c.Name, c.Fact, strings.Join(c.Dimensions, ","), strconv.Itoa(len(c.Aggregates))}
			}
			PrintTable(out, []string{"cube", "fact", "dimensions", "aggregates"}, rows)
			return nil
		},
	}
}

func newSampleCmd(a *app) *cobra.Command {
	var (
		dbPath    string
		modelPath string
	)
	cmd := &cobra.Command{
		Use:   "sample",
		Short: "Create the sample SQLite sales warehouse and its model document",
		Example: `  starquery sample --db sales.sqlite --model-out sales.yaml
  starquery aggregate --driver sqlite3 --dsn sales.sqlite -m sales.yaml -c sales -d date`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := os.Stat(dbPath); err == nil {
				return fmt.Errorf("%s already exists", dbPath)
			}
			conn, err := db.OpenSQLite(cmd.Context(), dbPath, false)
			if err != nil {
				return err
			}
			defer closeDB(conn, a.logger)
			if err := db.SeedSample(conn); err != nil {
				return err
			}
			if err := os.WriteFile(modelPath, db.SampleModel(), 0o644); err != nil { //nolint:gosec // model documents are not secret
				return fmt.Errorf("write %s: %w", modelPath, err)
			}
			a.logger.Info("sample warehouse created", "db", dbPath, "model", modelPath)

			if getOutputFormat(cmd) == "json" {
				return PrintJSON(cmd.OutOrStdout(), map[string]string{"db": dbPath, "model": modelPath})
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "created %s and %s\n", dbPath, modelPath)
			return nil
		},
	}
	cmd.Flags().StringVar(&dbPath, "db", "sample.sqlite", "SQLite file to create")
	cmd.Flags().StringVar(&modelPath, "model-out", "sample.yaml", "Model document to write")
	return cmd
}
