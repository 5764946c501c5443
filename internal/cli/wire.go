package cli

import (
	"context"
	"fmt"
	"strings"

	"reposcope/internal/cache"
	"reposcope/internal/config"
	"reposcope/internal/engine"
	"reposcope/internal/fetcher"
	gh "reposcope/internal/github"
	"reposcope/internal/logging"
	"reposcope/internal/metrics"
	"reposcope/internal/snapshot"
	"reposcope/internal/summarize"
)

// runtimeDeps is everything a command needs to answer questions.
type runtimeDeps struct {
	Engine  *engine.Engine
	Metrics *metrics.Metrics
	close   []func() error
}

func (d *runtimeDeps) Close() error {
	var first error
	for i := len(d.close) - 1; i >= 0; i-- {
		if err := d.close[i](); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// engineConfig maps the user-facing settings onto the engine's knobs.
func engineConfig(c *config.Config) engine.Config {
	ec := engine.DefaultConfig()
	ec.RequestTimeout = c.Engine.RequestTimeout
	ec.SessionIdle = c.Cache.SessionIdle
	ec.Pipeline.StageTimeout = c.Engine.StageTimeout
	ec.Pipeline.MaxRetries = c.Engine.MaxRetries
	ec.Fanout.AgentTimeout = c.Engine.AgentTimeout
	ec.Fanout.AgentRetries = c.Engine.AgentRetries
	ec.Router.FullTTL = c.Cache.FullTTL
	ec.Router.TargetedTTL = c.Cache.TargetedTTL
	ec.Router.ReinterpretTTL = c.Cache.TargetedTTL
	ec.Router.FreshFor = c.Cache.FreshFor
	ec.Router.StaleAfter = c.Cache.StaleAfter
	ec.Router.ServeStale = c.Cache.ServeStale
	return ec
}

func newSummarizer(c *config.Config) (summarize.Summarizer, error) {
	if c.Summarizer.Provider != "openai" {
		return summarize.Template{}, nil
	}
	return summarize.NewOpenAI(summarize.OpenAIConfig{
		APIKey:    c.Summarizer.APIKey,
		BaseURL:   c.Summarizer.BaseURL,
		Model:     c.Summarizer.Model,
		MaxTokens: c.Summarizer.MaxTokens,
	})
}

func newStore(c *config.Config) (*cache.Layered, func() error, error) {
	if c.Cache.Backend != "sqlite" {
		return nil, nil, nil
	}
	db, err := cache.OpenSQLite(c.Cache.Path)
	if err != nil {
		return nil, nil, err
	}
	return cache.NewLayered(db, cache.WithLogger(logging.New("cache"))), db.Close, nil
}

// buildRuntime resolves the GitHub token and wires the engine from c. c must
// already be validated.
func buildRuntime(ctx context.Context, c *config.Config) (*runtimeDeps, error) {
	token, source, err := gh.ResolveAuthToken(ctx, c.GitHub.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve GitHub auth token: %w", err)
	}
	if strings.TrimSpace(token) == "" {
		return nil, fmt.Errorf("GitHub auth token is required (set GITHUB_TOKEN or run 'gh auth login')")
	}
	logging.New("cli").Debug("resolved GitHub token", "source", source)

	client, err := gh.NewClient(ctx, token,
		gh.WithVerbose(c.Runtime.Verbose, nil),
		gh.WithBaseURL(c.GitHub.BaseURL),
		gh.WithTimeout(c.GitHub.Timeout),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create GitHub client: %w", err)
	}

	summarizer, err := newSummarizer(c)
	if err != nil {
		return nil, err
	}

	deps := &runtimeDeps{Metrics: metrics.New()}
	f := fetcher.NewFetcher(client, fetcher.NewRequestBudget())
	opts := []engine.Option{
		engine.WithConfig(engineConfig(c)),
		engine.WithSummarizer(summarizer),
		engine.WithMetrics(deps.Metrics),
		engine.WithForgetter(f),
	}

	store, closeStore, err := newStore(c)
	if err != nil {
		return nil, err
	}
	if store != nil {
		opts = append(opts, engine.WithCache(store))
		deps.close = append(deps.close, closeStore)
	}

	deps.Engine = engine.New(snapshot.NewBuilder(f), opts...)
	return deps, nil
}
