package cli

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"reposcope/internal/flags"
	"reposcope/internal/mcpserver"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Run as an MCP tool server over stdio",
	Long: `Run as a Model Context Protocol server on stdin/stdout.

Tools:
	ask_repository               answer a question about a repository
	invalidate_repository_cache  drop cached answers for a repository

Logs go to stderr so stdout stays reserved for the protocol.

Examples:
  reposcope mcp --cache-backend sqlite
`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate(); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		deps, err := buildRuntime(ctx, cfg)
		if err != nil {
			return err
		}
		defer deps.Close()

		version, _, _ := BuildInfo()
		return mcpserver.NewServer(deps.Engine, version).Run(ctx)
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
	mcpCmd.Flags().String(flags.FlagCacheBackend, cfg.Cache.Backend, "Process cache tier: memory|sqlite")
	mcpCmd.Flags().String(flags.FlagCachePath, "", "SQLite cache file (default: <user cache dir>/reposcope/cache.db)")
	mcpCmd.Flags().String(flags.FlagSummarizer, cfg.Summarizer.Provider, "Summary generator: template|openai")
}
