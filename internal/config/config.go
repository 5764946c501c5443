package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"reposcope/internal/data"
	"reposcope/internal/intent"
)

// EnvPrefix prefixes every environment override, e.g. REPOSCOPE_CACHE_BACKEND.
const EnvPrefix = "REPOSCOPE"

type Config struct {
	// MAINTAINER NOTE: every field here needs a key in setDefaults so that
	// environment overrides reach it, and a flag in internal/cli when it is
	// meant to be set per invocation.
	Ask        Ask        `mapstructure:"ask"`
	GitHub     GitHub     `mapstructure:"github"`
	Cache      Cache      `mapstructure:"cache"`
	Summarizer Summarizer `mapstructure:"summarizer"`
	Engine     Engine     `mapstructure:"engine"`
	Server     Server     `mapstructure:"server"`
	Output     Output     `mapstructure:"output"`
	Runtime    Runtime    `mapstructure:"runtime"`
}

type Ask struct {
	// Repos are the repositories to ask about (see --repos). Values may be
	// OWNER/NAME, OWNER/NAME@REV or GitHub URLs.
	Repos []string `mapstructure:"repos"`

	// Question is the natural-language request (see --question).
	Question string `mapstructure:"question"`

	// Depth overrides the classified depth (see --depth).
	// Allowed values: quick, standard, thorough (deep is an alias).
	Depth string `mapstructure:"depth"`

	// SessionID selects the session cache tier (see --session).
	SessionID string `mapstructure:"session_id"`

	// ForceRefresh bypasses cached answers (see --force-refresh).
	ForceRefresh bool `mapstructure:"force_refresh"`

	// Analyzers are run in addition to the classified ones (see --analyzers).
	Analyzers []string `mapstructure:"analyzers"`
}

type GitHub struct {
	// Token is an explicit GitHub token. Empty falls back to GITHUB_TOKEN and
	// then to gh auth token.
	Token string `mapstructure:"token"`

	// BaseURL points the client at GitHub Enterprise Server; empty means api.github.com.
	BaseURL string `mapstructure:"base_url"`

	// Timeout bounds each GitHub HTTP request.
	Timeout time.Duration `mapstructure:"timeout"`
}

type Cache struct {
	// Backend selects the process tier. Allowed values: memory, sqlite.
	Backend string `mapstructure:"backend"`

	// Path is the SQLite database file, used when Backend is sqlite.
	// Empty means <user cache dir>/reposcope/cache.db.
	Path string `mapstructure:"path"`

	// SessionIdle expires session tiers that saw no request for this long.
	SessionIdle time.Duration `mapstructure:"session_idle"`

	FullTTL     time.Duration `mapstructure:"full_ttl"`
	TargetedTTL time.Duration `mapstructure:"targeted_ttl"`
	FreshFor    time.Duration `mapstructure:"fresh_for"`
	StaleAfter  time.Duration `mapstructure:"stale_after"`
	ServeStale  bool          `mapstructure:"serve_stale"`
}

type Summarizer struct {
	// Provider selects the summary generator. Allowed values: template, openai.
	Provider string `mapstructure:"provider"`

	// APIKey for the openai provider. Empty falls back to OPENAI_API_KEY.
	APIKey    string `mapstructure:"api_key"`
	BaseURL   string `mapstructure:"base_url"`
	Model     string `mapstructure:"model"`
	MaxTokens int    `mapstructure:"max_tokens"`
}

type Engine struct {
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	StageTimeout   time.Duration `mapstructure:"stage_timeout"`
	MaxRetries     int           `mapstructure:"max_retries"`
	// AgentTimeout bounds one analyzer run, its AgentRetries included.
	AgentTimeout   time.Duration `mapstructure:"agent_timeout"`
	AgentRetries   int           `mapstructure:"agent_retries"`
}

type Server struct {
	// Addr is the HTTP listen address for serve.
	Addr string `mapstructure:"addr"`

	// WebhookSecret validates X-Hub-Signature-256 on GitHub webhooks. Empty
	// disables the webhook route.
	WebhookSecret string `mapstructure:"webhook_secret"`
}

type Output struct {
	// ConsoleFormat controls the human-facing console sink format (see --console-format).
	// Allowed values: text, json, yaml, ndjson.
	ConsoleFormat string `mapstructure:"console_format"`

	// ConsoleFilterQuality filters console output by overall quality (see --console-filter-quality).
	// Allowed values: high, medium, low, failed.
	ConsoleFilterQuality []string `mapstructure:"console_filter_quality"`

	// Report writes a Markdown report to this path (see --report).
	Report string `mapstructure:"report"`

	// Out writes structured output to this path (see --out).
	Out string `mapstructure:"out"`

	// OutFormat selects the format for --out (see --out-format).
	// Allowed values: json, ndjson, yaml. If empty, it is inferred from the --out file extension.
	OutFormat string `mapstructure:"out_format"`

	// Emit writes an additional structured event stream to stdout (see --emit).
	// Allowed values: json, ndjson.
	Emit []string `mapstructure:"emit"`

	// NoConsole suppresses the console sink (see --no-console).
	NoConsole bool `mapstructure:"no_console"`
}

type Runtime struct {
	// Concurrency bounds how many requests ask runs at once (see --concurrency).
	// Must be >= 1.
	Concurrency int `mapstructure:"concurrency"`

	// Timeout is the global timeout for one ask run (see --timeout).
	// Must be > 0.
	Timeout time.Duration `mapstructure:"timeout"`

	// Verbose logs every GitHub API call and full error details.
	Verbose bool `mapstructure:"verbose"`

	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`
}

func New() *Config {
	return &Config{
		GitHub: GitHub{
			Timeout: 30 * time.Second,
		},
		Cache: Cache{
			Backend:     "memory",
			SessionIdle: 30 * time.Minute,
			FullTTL:     30 * time.Minute,
			TargetedTTL: 6 * time.Hour,
			FreshFor:    10 * time.Minute,
			StaleAfter:  25 * time.Minute,
			ServeStale:  true,
		},
		Summarizer: Summarizer{
			Provider:  "template",
			MaxTokens: 400,
		},
		Engine: Engine{
			RequestTimeout: 2 * time.Minute,
			StageTimeout:   30 * time.Second,
			MaxRetries:     2,
			AgentTimeout:   20 * time.Second,
		},
		Server: Server{
			Addr: "127.0.0.1:8080",
		},
		Output: Output{
			ConsoleFormat: "text",
		},
		Runtime: Runtime{
			Concurrency: 4,
			Timeout:     10 * time.Minute,
			LogLevel:    "info",
			LogFormat:   "text",
		},
	}
}

func setDefaults(v *viper.Viper, c *Config) {
	for key, val := range map[string]any{
		"ask.repos":                     c.Ask.Repos,
		"ask.question":                  c.Ask.Question,
		"ask.depth":                     c.Ask.Depth,
		"ask.session_id":                c.Ask.SessionID,
		"ask.force_refresh":             c.Ask.ForceRefresh,
		"ask.analyzers":                 c.Ask.Analyzers,
		"github.token":                  c.GitHub.Token,
		"github.base_url":               c.GitHub.BaseURL,
		"github.timeout":                c.GitHub.Timeout,
		"cache.backend":                 c.Cache.Backend,
		"cache.path":                    c.Cache.Path,
		"cache.session_idle":            c.Cache.SessionIdle,
		"cache.full_ttl":                c.Cache.FullTTL,
		"cache.targeted_ttl":            c.Cache.TargetedTTL,
		"cache.fresh_for":               c.Cache.FreshFor,
		"cache.stale_after":             c.Cache.StaleAfter,
		"cache.serve_stale":             c.Cache.ServeStale,
		"summarizer.provider":           c.Summarizer.Provider,
		"summarizer.api_key":            c.Summarizer.APIKey,
		"summarizer.base_url":           c.Summarizer.BaseURL,
		"summarizer.model":              c.Summarizer.Model,
		"summarizer.max_tokens":         c.Summarizer.MaxTokens,
		"engine.request_timeout":        c.Engine.RequestTimeout,
		"engine.stage_timeout":          c.Engine.StageTimeout,
		"engine.max_retries":            c.Engine.MaxRetries,
		"engine.agent_timeout":          c.Engine.AgentTimeout,
		"engine.agent_retries":          c.Engine.AgentRetries,
		"server.addr":                   c.Server.Addr,
		"server.webhook_secret":         c.Server.WebhookSecret,
		"output.console_format":         c.Output.ConsoleFormat,
		"output.console_filter_quality": c.Output.ConsoleFilterQuality,
		"output.report":                 c.Output.Report,
		"output.out":                    c.Output.Out,
		"output.out_format":             c.Output.OutFormat,
		"output.emit":                   c.Output.Emit,
		"output.no_console":             c.Output.NoConsole,
		"runtime.concurrency":           c.Runtime.Concurrency,
		"runtime.timeout":               c.Runtime.Timeout,
		"runtime.verbose":               c.Runtime.Verbose,
		"runtime.log_level":             c.Runtime.LogLevel,
		"runtime.log_format":            c.Runtime.LogFormat,
	} {
		v.SetDefault(key, val)
	}
}

// Binder attaches extra sources, usually command-line flags, to the viper
// instance before it is read.
type Binder func(v *viper.Viper) error

// Load layers, from lowest to highest precedence: New() defaults, a
// reposcope.{yaml,json,toml} file, REPOSCOPE_* environment variables and
// whatever the binders attach. With an explicit path the file must exist;
// otherwise the working directory and $HOME/.config/reposcope are searched
// and a missing file means defaults.
func Load(path string, binders ...Binder) (*Config, error) {
	c := New()
	v := viper.New()
	setDefaults(v, c)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("reposcope")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "reposcope"))
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for _, bind := range binders {
		if err := bind(v); err != nil {
			return nil, fmt.Errorf("bind config source: %w", err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	if err := v.Unmarshal(c); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return c, nil
}

func (c *Config) Validate() error {
	// Normalize comma-delimited list inputs.
	c.Ask.Repos = splitCommaList(c.Ask.Repos)
	c.Ask.Analyzers = splitCommaList(c.Ask.Analyzers)
	c.Output.Emit = splitCommaList(c.Output.Emit)
	c.Output.ConsoleFilterQuality = splitCommaList(c.Output.ConsoleFilterQuality)

	if c.Ask.Depth != "" {
		d, err := intent.ParseDepth(c.Ask.Depth)
		if err != nil {
			return fmt.Errorf("invalid --depth value: %w", err)
		}
		c.Ask.Depth = string(d)
	}

	// Output validation
	c.Output.ConsoleFormat = normalizeEnumValue(c.Output.ConsoleFormat)
	if c.Output.ConsoleFormat == "" {
		return errors.New("--console-format must be one of: text, json, yaml, ndjson")
	}
	if !oneOf(c.Output.ConsoleFormat, "text", "json", "yaml", "ndjson") {
		return fmt.Errorf("unsupported --console-format: %s (must be one of: text, json, yaml, ndjson)", c.Output.ConsoleFormat)
	}

	for i, emit := range c.Output.Emit {
		v := normalizeEnumValue(emit)
		if !oneOf(v, "json", "ndjson") {
			return fmt.Errorf("unsupported --emit value: %s (must be one of: json, ndjson)", v)
		}
		c.Output.Emit[i] = v
	}

	for i, q := range c.Output.ConsoleFilterQuality {
		v := normalizeEnumValue(q)
		if !oneOf(v, "high", "medium", "low", "failed") {
			return fmt.Errorf("unsupported --console-filter-quality value: %s (must be one of: high, medium, low, failed)", v)
		}
		c.Output.ConsoleFilterQuality[i] = v
	}

	if c.Output.Out != "" {
		c.Output.OutFormat = normalizeEnumValue(c.Output.OutFormat)
		if c.Output.OutFormat == "" {
			ext := strings.ToLower(filepath.Ext(c.Output.Out))
			switch ext {
			case ".json":
				c.Output.OutFormat = "json"
			case ".ndjson", ".jsonl":
				c.Output.OutFormat = "ndjson"
			case ".yaml", ".yml":
				c.Output.OutFormat = "yaml"
			default:
				if ext == "" {
					return errors.New("cannot infer output format from file extension (missing extension); use --out-format")
				}
				return fmt.Errorf("cannot infer output format from file extension %q; use --out-format", ext)
			}
		} else if !oneOf(c.Output.OutFormat, "json", "ndjson", "yaml") {
			return fmt.Errorf("unsupported output format: %s", c.Output.OutFormat)
		}
	}

	// Cache validation
	c.Cache.Backend = normalizeEnumValue(c.Cache.Backend)
	switch c.Cache.Backend {
	case "", "memory":
		c.Cache.Backend = "memory"
	case "sqlite":
		if strings.TrimSpace(c.Cache.Path) == "" {
			dir, err := os.UserCacheDir()
			if err != nil {
				return fmt.Errorf("cache.path is required for the sqlite backend: %w", err)
			}
			c.Cache.Path = filepath.Join(dir, "reposcope", "cache.db")
		}
	default:
		return fmt.Errorf("unsupported cache backend: %s (must be one of: memory, sqlite)", c.Cache.Backend)
	}
	if c.Cache.FreshFor <= 0 || c.Cache.StaleAfter < c.Cache.FreshFor {
		return errors.New("cache.fresh_for must be > 0 and <= cache.stale_after")
	}
	if c.Cache.FullTTL <= 0 || c.Cache.TargetedTTL <= 0 || c.Cache.SessionIdle <= 0 {
		return errors.New("cache TTLs and cache.session_idle must be > 0")
	}

	// Summarizer validation
	c.Summarizer.Provider = normalizeEnumValue(c.Summarizer.Provider)
	switch c.Summarizer.Provider {
	case "", "template":
		c.Summarizer.Provider = "template"
	case "openai":
		if c.Summarizer.APIKey == "" {
			c.Summarizer.APIKey = strings.TrimSpace(os.Getenv("OPENAI_API_KEY"))
		}
		if c.Summarizer.APIKey == "" {
			return errors.New("the openai summarizer needs summarizer.api_key or OPENAI_API_KEY")
		}
	default:
		return fmt.Errorf("unsupported summarizer provider: %s (must be one of: template, openai)", c.Summarizer.Provider)
	}

	// Runtime validation
	if c.Runtime.Concurrency <= 0 {
		return errors.New("--concurrency must be >= 1")
	}
	if c.Runtime.Timeout <= 0 {
		return errors.New("--timeout must be > 0")
	}
	if c.Engine.RequestTimeout <= 0 || c.Engine.StageTimeout <= 0 || c.Engine.AgentTimeout <= 0 {
		return errors.New("engine timeouts must be > 0")
	}
	if c.Engine.MaxRetries < 0 || c.Engine.AgentRetries < 0 {
		return errors.New("engine retry counts must be >= 0")
	}
	c.Runtime.LogFormat = normalizeEnumValue(c.Runtime.LogFormat)
	if !oneOf(c.Runtime.LogFormat, "text", "json") {
		return fmt.Errorf("unsupported log format: %s (must be one of: text, json)", c.Runtime.LogFormat)
	}

	return nil
}

// RepoRefs parses Ask.Repos. At least one repository is required.
func (c *Config) RepoRefs() ([]data.RepoRef, error) {
	repos := splitCommaList(c.Ask.Repos)
	if len(repos) == 0 {
		return nil, errors.New("at least one repository must be provided (see --repos)")
	}
	out := make([]data.RepoRef, 0, len(repos))
	for _, raw := range repos {
		ref, err := data.ParseRepoRef(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid --repos value: %w", err)
		}
		out = append(out, ref)
	}
	return out, nil
}

func normalizeEnumValue(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

func oneOf(v string, allowed ...string) bool {
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}

func splitCommaList(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			p := strings.TrimSpace(part)
			if p == "" {
				continue
			}
			out = append(out, p)
		}
	}
	return out
}
