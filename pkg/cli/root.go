package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"starquery/internal/domain"
)

var (
	version = "dev"
	commit  = "none"
)

// Exit codes returned by Execute.
const (
	exitOK       = 0
	exitFailure  = 1
	exitArgument = 2
	exitModel    = 3
)

// Execute runs the CLI.
func Execute() int {
	rootCmd := newRootCmd()
	err := rootCmd.Execute()
	if err == nil {
		return exitOK
	}
	output, _ := rootCmd.PersistentFlags().GetString("output")
	if output == "json" {
		_ = PrintJSON(os.Stdout, map[string]any{
			"error": err.Error(),
			"kind":  errorKind(err),
		})
	} else {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	return exitCode(err)
}

// errorKind names the error class for machine-readable output.
func errorKind(err error) string {
	var (
		argErr     *domain.ArgumentError
		notFound   *domain.NotFoundError
		modelErr   *domain.ModelError
		mappingErr *domain.MappingError
		backendErr *domain.BackendError
	)
	switch {
	case errors.As(err, &argErr):
		return "argument"
	case errors.As(err, &notFound):
		return "not_found"
	case errors.As(err, &modelErr):
		return "model"
	case errors.As(err, &mappingErr):
		return "mapping"
	case errors.As(err, &backendErr):
		return "backend"
	default:
		return "error"
	}
}

func exitCode(err error) int {
	switch errorKind(err) {
	case "argument", "not_found":
		return exitArgument
	case "model", "mapping":
		return exitModel
	default:
		return exitFailure
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:           "starquery",
		Short:         "OLAP queries over star and snowflake schemas",
		Long:          "Compile and run aggregations, member listings and fact queries described by a logical cube model.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.resolve(cmd)
		},
	}

	a.bindFlags(rootCmd.PersistentFlags())

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newValidateCmd(a))
	rootCmd.AddCommand(newSampleCmd(a))
	rootCmd.AddCommand(newExplainCmd(a))
	rootCmd.AddCommand(newAggregateCmd(a))
	rootCmd.AddCommand(newMembersCmd(a))
	rootCmd.AddCommand(newFactsCmd(a))
	rootCmd.AddCommand(newFactCmd(a))
	rootCmd.AddCommand(newCompletionCmd())

	return rootCmd
}

func newCompletionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion scripts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			switch args[0] {
			case "bash":
				return cmd.Root().GenBashCompletion(out)
			case "zsh":
				return cmd.Root().GenZshCompletion(out)
			case "fish":
				return cmd.Root().GenFishCompletion(out, true)
			case "powershell":
				return cmd.Root().GenPowerShellCompletionWithDesc(out)
			default:
				return fmt.Errorf("unsupported shell: %s", args[0])
			}
		},
	}
	return cmd
}
