package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"reposcope/internal/config"
	"reposcope/internal/flags"
	"reposcope/internal/logging"
)

var (
	buildVersion = "dev"
	buildCommit  = "unknown"
	buildDate    = "unknown"
)

// cfg is loaded in PersistentPreRunE, before any command body runs.
var (
	cfg        = config.New()
	configPath string
)

var rootCmd = &cobra.Command{
	Use:   "reposcope",
	Short: "Answer questions about GitHub repositories",
	Long: `reposcope answers natural-language questions about GitHub repositories.

It classifies each question, reuses cached answers when they are fresh
enough, runs only the analysis the question needs and merges the results
into one graded answer.

Examples:
	# Ask one question about one repository
	reposcope ask --repos acme/widgets --question "Give me a health diagnosis"

	# Serve the HTTP API with GitHub push webhooks
	reposcope serve --addr :8080

	# Run as an MCP tool server over stdio
	reposcope mcp

	# List analyzers
	reposcope analyzers list

Configuration:
	Settings are read, lowest precedence first, from built-in defaults, a
	reposcope.yaml|json|toml file in the working directory or
	$HOME/.config/reposcope (or --config), REPOSCOPE_* environment variables
	(e.g. REPOSCOPE_CACHE_BACKEND=sqlite) and command-line flags. A .env file
	in the working directory is loaded into the environment first.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return loadConfig(cmd)
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configPath, flags.FlagConfig, "", "Config file (default: ./reposcope.yaml or $HOME/.config/reposcope/reposcope.yaml)")
	pf.Bool(flags.FlagVerbose, false, "Enable verbose logging (prints every GitHub API call and full error details)")
	pf.String(flags.FlagLogLevel, "info", "Log level: debug|info|warn|error")
	pf.String(flags.FlagLogFormat, "text", "Log format on stderr: text|json")
}

// loadConfig builds cfg from .env, the config file, the environment and the
// flags of cmd, then initializes logging.
func loadConfig(cmd *cobra.Command) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Warning: failed to load .env file: %v\n", err)
	}

	loaded, err := config.Load(configPath, bindFlags(cmd.Flags()))
	if err != nil {
		return err
	}
	cfg = loaded

	level := logging.ParseLevel(cfg.Runtime.LogLevel)
	if cfg.Runtime.Verbose {
		level = slog.LevelDebug
	}
	logging.Init(level, cfg.Runtime.LogFormat)
	return nil
}

// bindFlags binds every flag of fs that has a config key. Inherited
// persistent flags are part of cmd.Flags() once cobra has parsed.
func bindFlags(fs *pflag.FlagSet) config.Binder {
	return func(v *viper.Viper) error {
		for name, key := range flags.ConfigKeys {
			f := fs.Lookup(name)
			if f == nil {
				continue
			}
			if err := v.BindPFlag(key, f); err != nil {
				return err
			}
		}
		return nil
	}
}

func SetBuildInfo(version, commit, date string) {
	if version != "" {
		buildVersion = version
	}
	if commit != "" {
		buildCommit = commit
	}
	if date != "" {
		buildDate = date
	}

	rootCmd.Version = fmt.Sprintf("%s (%s) %s", buildVersion, buildCommit, buildDate)
	rootCmd.SetVersionTemplate("{{.Version}}\n")
}

func BuildInfo() (version, commit, date string) {
	return buildVersion, buildCommit, buildDate
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
