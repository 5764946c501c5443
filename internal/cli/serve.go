package cli

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"reposcope/internal/flags"
	"reposcope/internal/logging"
	"reposcope/internal/server"
)

const shutdownGrace = 15 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP API",
	Long: `Serve the HTTP API.

Routes:
	POST   /v1/ask             answer one question ({"repo": "...", "question": "..."})
	DELETE /v1/sessions/{id}   drop a session cache tier
	GET    /v1/cache/stats     process cache entry counts
	POST   /webhooks/github    drop cached answers for pushed repositories
	                           (enabled when server.webhook_secret is set)
	GET    /metrics            Prometheus metrics
	GET    /healthz            liveness

Examples:
  reposcope serve --addr :8080
  REPOSCOPE_SERVER_WEBHOOK_SECRET=... reposcope serve --cache-backend sqlite
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

		srv := server.New(cfg.Server.Addr, deps.Engine,
			server.WithMetrics(deps.Metrics.Handler()),
			server.WithWebhookSecret(cfg.Server.WebhookSecret),
		)

		errCh := make(chan error, 1)
		go func() { errCh <- srv.Start() }()

		select {
		case err := <-errCh:
			return err
		case <-ctx.Done():
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; err != nil {
			return err
		}
		logging.New("cli").Info("server stopped")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String(flags.FlagAddr, cfg.Server.Addr, "HTTP listen address")
	serveCmd.Flags().String(flags.FlagCacheBackend, cfg.Cache.Backend, "Process cache tier: memory|sqlite")
	serveCmd.Flags().String(flags.FlagCachePath, "", "SQLite cache file (default: <user cache dir>/reposcope/cache.db)")
	serveCmd.Flags().String(flags.FlagSummarizer, cfg.Summarizer.Provider, "Summary generator: template|openai")
}
