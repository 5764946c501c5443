package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"reposcope/internal/cache"
	"reposcope/internal/config"
	"reposcope/internal/flags"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and invalidate the persistent answer cache",
	Long: `Inspect and invalidate the persistent answer cache.

These commands operate on the SQLite process tier (cache.backend=sqlite);
the in-memory tier lives only as long as one ask, serve or mcp process.

Examples:
  reposcope cache stats
  reposcope cache invalidate --repos acme/widgets
`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

var cacheInvalidateCmd = &cobra.Command{
	Use:   "invalidate",
	Short: "Drop cached answers for repositories",
	Long: `Drop every cached answer for the given repositories. Without a
revision all revisions are dropped; OWNER/NAME@REV drops only that revision.

Examples:
  reposcope cache invalidate --repos acme/widgets,acme/gadgets@v2
`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, closeStore, err := openPersistentCache(cfg)
		if err != nil {
			return err
		}
		defer closeStore()

		refs, err := cfg.RepoRefs()
		if err != nil {
			return err
		}
		total := 0
		for _, ref := range refs {
			n := store.InvalidateAllFor(cmd.Context(), ref)
			total += n
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d entries\n", ref, n)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "invalidated %d entries\n", total)
		return nil
	},
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show cache entry counts",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, closeStore, err := openPersistentCache(cfg)
		if err != nil {
			return err
		}
		defer closeStore()

		st, ok, err := store.Stats(cmd.Context())
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("cache backend %q cannot report stats", cfg.Cache.Backend)
		}
		printStats(cmd.OutOrStdout(), cfg.Cache.Path, st)
		return nil
	},
}

// openPersistentCache opens the configured SQLite tier. The memory backend
// is rejected since a fresh process would see an empty cache.
func openPersistentCache(c *config.Config) (*cache.Layered, func() error, error) {
	c.Cache.Backend = "sqlite"
	if err := c.Validate(); err != nil {
		return nil, nil, err
	}
	store, closeStore, err := newStore(c)
	if err != nil {
		return nil, nil, err
	}
	return store, closeStore, nil
}

func printStats(w io.Writer, path string, st cache.Stats) {
	fmt.Fprintf(w, "path:    %s\n", path)
	fmt.Fprintf(w, "entries: %d\n", st.Entries)
	fmt.Fprintf(w, "expired: %d\n", st.Expired)
}

func init() {
	rootCmd.AddCommand(cacheCmd)
	cacheCmd.PersistentFlags().String(flags.FlagCachePath, "", "SQLite cache file (default: <user cache dir>/reposcope/cache.db)")
	cacheCmd.AddCommand(cacheInvalidateCmd)
	cacheInvalidateCmd.Flags().StringSlice(flags.FlagRepos, nil, "Repositories as OWNER/NAME or OWNER/NAME@REV (repeatable; comma-separated accepted)")
	cacheCmd.AddCommand(cacheStatsCmd)
}
