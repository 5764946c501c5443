package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"

	"reposcope/internal/data"
)

func TestValidate_NormalizesCommaDelimitedLists(t *testing.T) {
	cfg := New()
	cfg.Ask.Repos = []string{"acme/foo, acme/bar", "acme/baz", ",,"}
	cfg.Output.Emit = []string{" NDJSON,json"}
	cfg.Output.ConsoleFilterQuality = []string{"Low, FAILED"}

	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() returned error: %v", err)
	}

	if want := []string{"acme/foo", "acme/bar", "acme/baz"}; !reflect.DeepEqual(cfg.Ask.Repos, want) {
		t.Fatalf("Repos normalized mismatch: got %v want %v", cfg.Ask.Repos, want)
	}
	if want := []string{"ndjson", "json"}; !reflect.DeepEqual(cfg.Output.Emit, want) {
		t.Fatalf("Emit normalized mismatch: got %v want %v", cfg.Output.Emit, want)
	}
	if want := []string{"low", "failed"}; !reflect.DeepEqual(cfg.Output.ConsoleFilterQuality, want) {
		t.Fatalf("filter normalized mismatch: got %v want %v", cfg.Output.ConsoleFilterQuality, want)
	}
}

func TestValidate_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		want   string
	}{
		{"console format", func(c *Config) { c.Output.ConsoleFormat = "xml" }, "--console-format"},
		{"emit", func(c *Config) { c.Output.Emit = []string{"yaml"} }, "--emit"},
		{"filter", func(c *Config) { c.Output.ConsoleFilterQuality = []string{"pass"} }, "--console-filter-quality"},
		{"out without extension", func(c *Config) { c.Output.Out = "answers" }, "missing extension"},
		{"out unknown extension", func(c *Config) { c.Output.Out = "answers.txt" }, `".txt"`},
		{"depth", func(c *Config) { c.Ask.Depth = "bottomless" }, "--depth"},
		{"cache backend", func(c *Config) { c.Cache.Backend = "redis" }, "cache backend"},
		{"freshness order", func(c *Config) { c.Cache.StaleAfter = time.Minute }, "fresh_for"},
		{"summarizer", func(c *Config) { c.Summarizer.Provider = "gemini" }, "summarizer provider"},
		{"concurrency", func(c *Config) { c.Runtime.Concurrency = 0 }, "--concurrency"},
		{"timeout", func(c *Config) { c.Runtime.Timeout = 0 }, "--timeout"},
		{"agent timeout", func(c *Config) { c.Engine.AgentTimeout = 0 }, "engine timeouts"},
		{"log format", func(c *Config) { c.Runtime.LogFormat = "logfmt" }, "log format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := New()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatalf("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestValidate_InfersOutFormat(t *testing.T) {
	for file, want := range map[string]string{
		"a.json":   "json",
		"a.NDJSON": "ndjson",
		"a.jsonl":  "ndjson",
		"a.yml":    "yaml",
	} {
		cfg := New()
		cfg.Output.Out = file
		if err := cfg.Validate(); err != nil {
			t.Fatalf("Validate(%s): %v", file, err)
		}
		if cfg.Output.OutFormat != want {
			t.Fatalf("%s: OutFormat = %q, want %q", file, cfg.Output.OutFormat, want)
		}
	}
}

func TestValidate_DepthAlias(t *testing.T) {
	cfg := New()
	cfg.Ask.Depth = "Deep"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if cfg.Ask.Depth != "thorough" {
		t.Fatalf("Depth = %q, want thorough", cfg.Ask.Depth)
	}
}

func TestValidate_OpenAIKeyFromEnvironment(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	cfg := New()
	cfg.Summarizer.Provider = "openai"
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected error without an api key")
	}

	t.Setenv("OPENAI_API_KEY", "sk-test")
	cfg = New()
	cfg.Summarizer.Provider = "OpenAI"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if cfg.Summarizer.APIKey != "sk-test" || cfg.Summarizer.Provider != "openai" {
		t.Fatalf("unexpected summarizer config: %+v", cfg.Summarizer)
	}
}

func TestValidate_SQLiteDefaultPath(t *testing.T) {
	t.Setenv("XDG_CACHE_HOME", t.TempDir())
	cfg := New()
	cfg.Cache.Backend = "sqlite"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if filepath.Base(cfg.Cache.Path) != "cache.db" || !strings.Contains(cfg.Cache.Path, "reposcope") {
		t.Fatalf("unexpected default sqlite path %q", cfg.Cache.Path)
	}
}

func TestRepoRefs(t *testing.T) {
	cfg := New()
	if _, err := cfg.RepoRefs(); err == nil {
		t.Fatalf("expected error without repositories")
	}

	cfg.Ask.Repos = []string{"acme/widgets, https://github.com/acme/gadgets/tree/v2"}
	refs, err := cfg.RepoRefs()
	if err != nil {
		t.Fatalf("RepoRefs: %v", err)
	}
	want := []data.RepoRef{{Owner: "acme", Name: "widgets"}, {Owner: "acme", Name: "gadgets", Revision: "v2"}}
	if !reflect.DeepEqual(refs, want) {
		t.Fatalf("RepoRefs = %+v, want %+v", refs, want)
	}

	cfg.Ask.Repos = []string{"not-a-repo"}
	if _, err := cfg.RepoRefs(); err == nil {
		t.Fatalf("expected error for invalid repository")
	}
}

func isolate(t *testing.T) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	t.Chdir(t.TempDir())
}

func TestLoad_DefaultsWithoutFile(t *testing.T) {
	isolate(t)
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	want := New()
	if cfg.Cache != want.Cache || cfg.Engine != want.Engine || cfg.Runtime != want.Runtime || cfg.Server != want.Server {
		t.Fatalf("Load without a file differs from New():\n%+v\n%+v", cfg, want)
	}
	if cfg.Output.ConsoleFormat != "text" || len(cfg.Ask.Repos) != 0 || len(cfg.Output.Emit) != 0 {
		t.Fatalf("unexpected output defaults: %+v", cfg.Output)
	}
}

func TestLoad_FileEnvAndBinderPrecedence(t *testing.T) {
	isolate(t)
	yamlCfg := `
cache:
  backend: sqlite
  path: /tmp/rs.db
  fresh_for: 5m
engine:
  agent_timeout: 45s
output:
  console_format: json
  emit: [ndjson]
server:
  addr: ":9999"
`
	if err := os.WriteFile("reposcope.yaml", []byte(yamlCfg), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("REPOSCOPE_SERVER_ADDR", ":7000")
	t.Setenv("REPOSCOPE_RUNTIME_CONCURRENCY", "9")

	override := func(v *viper.Viper) error {
		v.Set("output.console_format", "yaml")
		return nil
	}
	cfg, err := Load("", override)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Cache.Backend != "sqlite" || cfg.Cache.Path != "/tmp/rs.db" || cfg.Cache.FreshFor != 5*time.Minute {
		t.Fatalf("file values not applied: %+v", cfg.Cache)
	}
	if cfg.Cache.StaleAfter != 25*time.Minute {
		t.Fatalf("unset keys should keep defaults, got stale_after=%s", cfg.Cache.StaleAfter)
	}
	if cfg.Engine.AgentTimeout != 45*time.Second {
		t.Fatalf("duration not decoded: %s", cfg.Engine.AgentTimeout)
	}
	if !reflect.DeepEqual(cfg.Output.Emit, []string{"ndjson"}) {
		t.Fatalf("emit = %v", cfg.Output.Emit)
	}
	if cfg.Server.Addr != ":7000" {
		t.Fatalf("environment should override the file, got %q", cfg.Server.Addr)
	}
	if cfg.Runtime.Concurrency != 9 {
		t.Fatalf("environment concurrency not applied: %d", cfg.Runtime.Concurrency)
	}
	if cfg.Output.ConsoleFormat != "yaml" {
		t.Fatalf("binder should win, got %q", cfg.Output.ConsoleFormat)
	}
}

func TestLoad_ExplicitPath(t *testing.T) {
	isolate(t)
	if _, err := Load(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Fatalf("expected error for a missing explicit config file")
	}

	p := filepath.Join(t.TempDir(), "custom.toml")
	if err := os.WriteFile(p, []byte("[summarizer]\nmodel = \"gpt-4o\"\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Summarizer.Model != "gpt-4o" || cfg.Summarizer.Provider != "template" {
		t.Fatalf("unexpected summarizer config: %+v", cfg.Summarizer)
	}
}
