package cli

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"reposcope/internal/analyzers"
)

var analyzersListQuiet bool

var analyzersCmd = &cobra.Command{
	Use:   "analyzers",
	Short: "List the analyzers answers are built from",
	Long: `List the analyzers reposcope runs.

Analyzers are picked per question by the router (see "reposcope ask --help");
--analyzers adds more to one ask.

Examples:
  reposcope analyzers list
`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

var analyzersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List available analyzers",
	Long: `List all analyzers registered in this build, sorted by name.

Output:
  A vertical list of analyzers:
    ----------------------------------------
    ANALYZER: {NAME}
    ----------------------------------------
    {DESCRIPTION}

    Metrics:
      {METRIC}
`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, a := range analyzers.Builtins().List() {
			if analyzersListQuiet {
				fmt.Fprintln(cmd.OutOrStdout(), a.Name())
			} else {
				printAnalyzer(cmd.OutOrStdout(), a)
			}
		}
		return nil
	},
}

func printAnalyzer(w io.Writer, a analyzers.Analyzer) {
	bold := color.New(color.Bold)
	fmt.Fprintln(w, "----------------------------------------")
	bold.Fprintf(w, "ANALYZER: %s\n", a.Name())
	fmt.Fprintln(w, "----------------------------------------")
	fmt.Fprintln(w, a.Description())

	if ms := a.Metrics(); len(ms) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Metrics:")
		for _, m := range ms {
			fmt.Fprintf(w, "  %s\n", m)
		}
	}
	fmt.Fprintln(w)
}

func init() {
	rootCmd.AddCommand(analyzersCmd)
	analyzersCmd.AddCommand(analyzersListCmd)
	analyzersListCmd.Flags().BoolVarP(&analyzersListQuiet, "quiet", "q", false, "Only print analyzer names")
}
