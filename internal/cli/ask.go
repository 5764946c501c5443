package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"reposcope/internal/config"
	"reposcope/internal/engine"
	"reposcope/internal/flags"
	"reposcope/internal/intent"
	"reposcope/internal/output"
)

func exitCodeForRun(fatal, partial, degraded bool) int {
	// Exit code contract:
	// 0 = every request answered, every analyzer succeeded
	// 1 = answered, but at least one analyzer failed
	// 2 = partial failure (some requests were refused or failed outright)
	// 3 = fatal error (nothing ran)
	if fatal {
		return 3
	}
	if partial {
		return 2
	}
	if degraded {
		return 1
	}
	return 0
}

const askHelpTemplate = `{{with (or .Long .Short)}}{{. | trimTrailingWhitespaces}}

{{end}}Usage:
  {{.UseLine}}

{{if .HasAvailableLocalFlags}}Flags:
{{.LocalFlags.FlagUsages | trimTrailingWhitespaces}}

{{end}}{{if .HasAvailableInheritedFlags}}Global Flags:
{{.InheritedFlags.FlagUsages | trimTrailingWhitespaces}}

{{end}}Environment:
	reposcope authenticates to GitHub using an access token.

	Sources (in order):
	1) github.token in the config file (or REPOSCOPE_GITHUB_TOKEN)
	2) GITHUB_TOKEN, then GH_TOKEN environment variables
	3) GitHub CLI (gh) authentication via gh auth token (if gh is installed and logged in)

	A public-repository token needs no scopes. Security alerts need a token
	that can read Dependabot alerts; without it the security analyzer
	reports the alerts as unavailable.

	Examples:
	  export GITHUB_TOKEN="<your_token>"
	  reposcope ask --repos acme/widgets --question "Is it safe to depend on this?"

{{if .HasAvailableSubCommands}}Available Commands:
{{range .Commands}}{{if (or .IsAvailableCommand (eq .Name "help"))}}
  {{rpad .Name .NamePadding }} {{.Short}}{{end}}{{end}}

{{end}}{{if .HasAvailableSubCommands}}Use "{{.CommandPath}} [command] --help" for more information about a command.
{{end}}`

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask a question about one or more GitHub repositories",
	Long: `Ask a natural-language question about one or more GitHub repositories.

The question is classified into a full diagnosis, a targeted check (docs,
activity, security, onboarding, structure) or a re-explanation of an earlier
answer. Cached answers are reused while they are fresh; use --force-refresh
to recompute. The same question is asked of every repository in --repos.

Output:
	Console output is controlled by --console-format (default: text).
	Structured outputs can be written via:
	- --out / --out-format: write a JSON array, YAML list or NDJSON stream to a file
	- --emit: write an additional structured stream to stdout (json or ndjson)
	- --report: write a Markdown report
	- --no-console: suppress the console sink (use with --emit/--out for machine output)

	NDJSON mode emits one JSON object per line. Objects are lifecycle Events with a
	"type" field (run.started, request.started, answer, request.failed, run.finished).
	Answers are an Event with type "answer" and a nested "answer" object.

Exit codes:
	0 = every request answered, every analyzer succeeded
	1 = answered, but at least one analyzer failed
	2 = partial failure (some requests were refused or failed outright)
	3 = fatal error (nothing ran)

Examples:
  reposcope ask --repos acme/widgets "Give me a health diagnosis"

  # Several repositories, Markdown report
  reposcope ask --repos acme/widgets,acme/gadgets --question "How active is it?" --report report.md

  # AI Agent: stream machine-readable events to stdout
  reposcope ask --repos acme/widgets --question "Any security issues?" --no-console --emit ndjson
`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if len(args) == 0 && cmd.Flags().NFlag() == 0 {
			_ = cmd.Help()
			return
		}
		if len(args) == 1 {
			cfg.Ask.Question = args[0]
		}

		reqs, err := buildRequests(cfg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(exitCodeForRun(true, false, false))
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Runtime.Timeout)
		deps, err := buildRuntime(ctx, cfg)
		if err != nil {
			cancel()
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(exitCodeForRun(true, false, false))
		}

		code := runAsk(ctx, cfg, deps.Engine, reqs, os.Stdout)
		cancel()
		if err := deps.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		}
		os.Exit(code)
	},
}

// buildRequests validates c and turns its ask section into one request per
// repository.
func buildRequests(c *config.Config) ([]engine.Request, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(c.Ask.Question) == "" {
		return nil, fmt.Errorf("a question is required (positional argument or --%s)", flags.FlagQuestion)
	}
	refs, err := c.RepoRefs()
	if err != nil {
		return nil, err
	}
	reqs := make([]engine.Request, 0, len(refs))
	for _, ref := range refs {
		reqs = append(reqs, engine.Request{
			Repo:         ref,
			Question:     c.Ask.Question,
			SessionID:    c.Ask.SessionID,
			ForceRefresh: c.Ask.ForceRefresh,
			Depth:        intent.Depth(c.Ask.Depth),
			Analyzers:    c.Ask.Analyzers,
		})
	}
	return reqs, nil
}

// batchAsker is the slice of the engine runAsk drives.
type batchAsker interface {
	AskMany(ctx context.Context, reqs []engine.Request, concurrency int) (<-chan engine.BatchResult, <-chan error)
}

func setupOutputManager(c *config.Config, stdout io.Writer) (*output.Manager, error) {
	outMgr := output.NewManager()

	// Console Sink
	if !c.Output.NoConsole {
		if err := outMgr.AddSink(output.NewConsoleSink(stdout, c.Output.ConsoleFormat, c.Output.ConsoleFilterQuality)); err != nil {
			outMgr.Close()
			return nil, err
		}
	}

	// Emit Sinks (additional structured streams)
	for _, emit := range c.Output.Emit {
		es, err := output.NewEmitSink(stdout, emit)
		if err != nil {
			outMgr.Close()
			return nil, err
		}
		if err := outMgr.AddSink(es); err != nil {
			outMgr.Close()
			return nil, err
		}
	}

	// File Sink
	if c.Output.Out != "" {
		fs, err := output.NewFileSink(c.Output.Out, c.Output.OutFormat)
		if err != nil {
			outMgr.Close()
			return nil, err
		}
		if err := outMgr.AddSink(fs); err != nil {
			outMgr.Close()
			return nil, err
		}
	}

	// Report Sink
	if c.Output.Report != "" {
		rs, err := output.NewReportSink(c.Output.Report)
		if err != nil {
			outMgr.Close()
			return nil, err
		}
		if err := outMgr.AddSink(rs); err != nil {
			outMgr.Close()
			return nil, err
		}
	}

	return outMgr, nil
}

// runAsk streams every answer to the configured sinks and returns the exit
// code.
func runAsk(ctx context.Context, c *config.Config, eng batchAsker, reqs []engine.Request, stdout io.Writer) int {
	outMgr, err := setupOutputManager(c, stdout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating output sinks: %v\n", err)
		return exitCodeForRun(true, false, false)
	}

	_ = outMgr.Write(output.Event{Type: "run.started", Requests: len(reqs)})
	for _, r := range reqs {
		_ = outMgr.Write(output.Event{Type: "request.started", Repo: r.Repo.String(), Question: r.Question})
	}

	resCh, errCh := eng.AskMany(ctx, reqs, c.Runtime.Concurrency)

	var partial, degraded bool
	answered := 0
	for res := range resCh {
		answered++
		req := reqs[res.Index]
		if res.Err != nil {
			partial = true
			_ = outMgr.Write(output.Event{Type: "request.failed", Repo: req.Repo.String(), Question: req.Question, Error: res.Err.Error()})
			continue
		}
		if res.Answer.Failed() {
			partial = true
		}
		for _, r := range res.Answer.PerAnalyzerResults {
			if !r.OK {
				degraded = true
			}
		}
		_ = outMgr.Write(res.Answer)
	}

	var runErr error
	// Drain batch errors; one is enough to know the run was cut short.
	for err := range errCh {
		if err != nil {
			runErr = err
		}
	}
	if runErr != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", runErr)
		partial = true
	}

	code := exitCodeForRun(runErr != nil && answered == 0, partial, degraded)
	_ = outMgr.Write(output.Event{Type: "run.finished", ExitCode: code})
	if err := outMgr.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "Error closing output sinks: %v\n", err)
		if code == 0 {
			code = exitCodeForRun(false, true, false)
		}
	}
	return code
}

func init() {
	rootCmd.AddCommand(askCmd)
	askCmd.SetHelpTemplate(askHelpTemplate)

	d := config.New()

	// Ask
	askCmd.Flags().StringSlice(flags.FlagRepos, nil, "Repositories as OWNER/NAME, OWNER/NAME@REV or GitHub URLs (repeatable; comma-separated accepted)")
	askCmd.Flags().String(flags.FlagQuestion, "", "Question to ask (alternative to the positional argument)")
	askCmd.Flags().String(flags.FlagDepth, "", "Override the classified depth: quick|standard|thorough")
	askCmd.Flags().String(flags.FlagSession, "", "Session id; answers are also cached per session")
	askCmd.Flags().Bool(flags.FlagForceRefresh, false, "Ignore cached answers")
	askCmd.Flags().StringSlice(flags.FlagAnalyzers, nil, "Extra analyzers to run (repeatable; comma-separated accepted; see 'reposcope analyzers list')")

	// Output
	askCmd.Flags().String(flags.FlagConsoleFormat, d.Output.ConsoleFormat, "Console output format: text|json|yaml|ndjson (default: text)")
	askCmd.Flags().StringSlice(flags.FlagConsoleFilterQuality, nil, "Filter console output by overall quality (high, medium, low, failed). Comma-separated.")
	askCmd.Flags().String(flags.FlagReport, "", "Write a Markdown report to this path")
	askCmd.Flags().String(flags.FlagOut, "", "Write structured output to this path")
	askCmd.Flags().String(flags.FlagOutFormat, "", "Structured output format for --out: json|ndjson|yaml (default: inferred from file extension)")
	askCmd.Flags().StringSlice(flags.FlagEmit, nil, "Emit additional structured stream to stdout: json|ndjson (repeatable; comma-separated accepted)")
	askCmd.Flags().Bool(flags.FlagNoConsole, false, "Suppress console output (use with --emit/--out/--report)")

	// Runtime
	askCmd.Flags().Int(flags.FlagConcurrency, d.Runtime.Concurrency, "Requests in flight at once")
	askCmd.Flags().Duration(flags.FlagTimeout, d.Runtime.Timeout, "Global timeout for the run")
	askCmd.Flags().String(flags.FlagCacheBackend, d.Cache.Backend, "Process cache tier: memory|sqlite")
	askCmd.Flags().String(flags.FlagCachePath, "", "SQLite cache file (default: <user cache dir>/reposcope/cache.db)")
	askCmd.Flags().String(flags.FlagSummarizer, d.Summarizer.Provider, "Summary generator: template|openai")
}
