package flags

// Package flags defines canonical CLI flag names shared across the CLI and the
// config layer. Each flag is bound to the config key of the same setting, so
// a flag, a REPOSCOPE_* variable and a config file entry all reach one field.
// IMPORTANT: These are flag *names* without leading dashes.
// Example usage:
//
//	cmd.Flags().StringSlice(flags.FlagRepos, nil, "...")
//	arg := "--" + flags.FlagRepos
const (
	// Global
	FlagConfig    = "config"
	FlagVerbose   = "verbose"
	FlagLogLevel  = "log-level"
	FlagLogFormat = "log-format"

	// Ask
	FlagRepos        = "repos"
	FlagQuestion     = "question"
	FlagDepth        = "depth"
	FlagSession      = "session"
	FlagForceRefresh = "force-refresh"
	FlagAnalyzers    = "analyzers"

	// Output
	FlagConsoleFormat        = "console-format"
	FlagConsoleFilterQuality = "console-filter-quality"
	FlagReport               = "report"
	FlagOut                  = "out"
	FlagOutFormat            = "out-format"
	FlagEmit                 = "emit"
	FlagNoConsole            = "no-console"

	// Runtime
	FlagConcurrency = "concurrency"
	FlagTimeout     = "timeout"

	// Cache and summarizer
	FlagCacheBackend = "cache-backend"
	FlagCachePath    = "cache-path"
	FlagSummarizer   = "summarizer"

	// Server
	FlagAddr = "addr"
)

// ConfigKeys maps each flag to the config key it overrides.
var ConfigKeys = map[string]string{
	FlagVerbose:              "runtime.verbose",
	FlagLogLevel:             "runtime.log_level",
	FlagLogFormat:            "runtime.log_format",
	FlagRepos:                "ask.repos",
	FlagQuestion:             "ask.question",
	FlagDepth:                "ask.depth",
	FlagSession:              "ask.session_id",
	FlagForceRefresh:         "ask.force_refresh",
	FlagAnalyzers:            "ask.analyzers",
	FlagConsoleFormat:        "output.console_format",
	FlagConsoleFilterQuality: "output.console_filter_quality",
	FlagReport:               "output.report",
	FlagOut:                  "output.out",
	FlagOutFormat:            "output.out_format",
	FlagEmit:                 "output.emit",
	FlagNoConsole:            "output.no_console",
	FlagConcurrency:          "runtime.concurrency",
	FlagTimeout:              "runtime.timeout",
	FlagCacheBackend:         "cache.backend",
	FlagCachePath:            "cache.path",
	FlagSummarizer:           "summarizer.provider",
	FlagAddr:                 "server.addr",
}
