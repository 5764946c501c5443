// Package fanout runs independent analyzers concurrently and collects one
// result per analyzer, whatever each of them does.
package fanout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"reposcope/internal/analyzers"
	"reposcope/internal/logging"
	"reposcope/internal/pipeline"
)

// ErrUnknownAnalyzer is the cause recorded for names the registry lacks.
var ErrUnknownAnalyzer = errors.New("unknown analyzer")

// AgentCallRecord describes one analyzer invocation. Retries fold into the
// same record: Attempts counts them and Latency spans all of them.
type AgentCallRecord struct {
	Agent     string        `json:"agent"`
	OK        bool          `json:"ok"`
	Latency   time.Duration `json:"-"`
	LatencyMS int64         `json:"latency_ms"`
	Attempts  int           `json:"attempts"`
	Error     string        `json:"error,omitempty"`
}

// Recorder receives one observation per invocation.
type Recorder interface {
	ObserveAgent(agent string, ok bool, d time.Duration)
}

type Config struct {
	// AgentTimeout bounds each analyzer's whole invocation, retries included.
	AgentTimeout time.Duration
	// AgentRetries is the number of extra attempts after a failure, made
	// while the analyzer's deadline allows.
	AgentRetries int
}

func DefaultConfig() Config {
	return Config{AgentTimeout: 20 * time.Second}
}

type Coordinator struct {
	registry *analyzers.Registry
	cfg      Config
	recorder Recorder
	log      *slog.Logger
}

type Option func(*Coordinator)

func WithConfig(cfg Config) Option {
	return func(c *Coordinator) { c.cfg = cfg }
}

func WithRecorder(r Recorder) Option {
	return func(c *Coordinator) { c.recorder = r }
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Coordinator) {
		if l != nil {
			c.log = l
		}
	}
}

func New(reg *analyzers.Registry, opts ...Option) *Coordinator {
	c := &Coordinator{registry: reg, cfg: DefaultConfig(), log: logging.New("fanout")}
	for _, opt := range opts {
		opt(c)
	}
	if c.cfg.AgentRetries < 0 {
		c.cfg.AgentRetries = 0
	}
	return c
}

// RunConcurrently starts every named analyzer, then waits for all of them.
// A failing, panicking or slow analyzer only affects its own entry. Records
// follow the order of names; duplicate names run once.
func (c *Coordinator) RunConcurrently(ctx context.Context, names []string, in analyzers.Input) (map[string]analyzers.Result, []AgentCallRecord) {
	names = dedupe(names)
	results := make([]analyzers.Result, len(names))
	records := make([]AgentCallRecord, len(names))

	g, gctx := errgroup.WithContext(ctx)
	for i, name := range names {
		input := in.Clone()
		g.Go(func() error {
			start := time.Now()
			res, attempts := c.invoke(gctx, name, input)
			rec := AgentCallRecord{Agent: name, OK: res.OK, Latency: time.Since(start), Attempts: attempts, Error: res.Error}
			rec.LatencyMS = rec.Latency.Milliseconds()
			results[i], records[i] = res, rec
			return nil
		})
	}
	_ = g.Wait()

	out := make(map[string]analyzers.Result, len(names))
	for i, name := range names {
		out[name] = results[i]
		if c.recorder != nil {
			c.recorder.ObserveAgent(name, records[i].OK, records[i].Latency)
		}
		if !records[i].OK {
			c.log.Warn("analyzer failed", "agent", name, "attempts", records[i].Attempts, "error", records[i].Error)
		}
	}
	return out, records
}

func (c *Coordinator) invoke(ctx context.Context, name string, in analyzers.Input) (analyzers.Result, int) {
	a, ok := c.registry.Resolve(name)
	if !ok {
		return analyzers.Failed(name, fmt.Errorf("%w: %s", ErrUnknownAnalyzer, name)), 0
	}
	if c.cfg.AgentTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.AgentTimeout)
		defer cancel()
	}
	var res analyzers.Result
	attempts := 0
	for attempts <= c.cfg.AgentRetries {
		attempts++
		res = c.attempt(ctx, a, in)
		if res.OK || ctx.Err() != nil {
			break
		}
		var schema *analyzers.SchemaError
		if errors.As(res.Err, &schema) {
			break
		}
	}
	return res, attempts
}

type outcome struct {
	res analyzers.Result
	err error
}

// attempt runs a once before ctx's deadline. The analyzer runs in a nested
// goroutine so one that ignores its context still resolves on time.
func (c *Coordinator) attempt(ctx context.Context, a analyzers.Analyzer, in analyzers.Input) analyzers.Result {
	name := a.Name()
	actx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("analyzer %s panicked: %v", name, r)}
			}
		}()
		res, err := a.Analyze(actx, in)
		done <- outcome{res: res, err: err}
	}()

	var o outcome
	select {
	case o = <-done:
	case <-actx.Done():
		o.err = fmt.Errorf("analyzer %s: %w", name, actx.Err())
	}

	if o.err != nil {
		return analyzers.Failed(name, o.err)
	}
	res := o.res
	res.Agent = name
	if !res.OK {
		msg := res.Error
		if msg == "" {
			msg = "analyzer reported failure"
		}
		return analyzers.Failed(name, errors.New(msg))
	}
	if missing := analyzers.MissingMetrics(a, res); len(missing) > 0 {
		err := &pipeline.OptionalStageError{
			Stage: pipeline.Stage("analyzer." + name),
			Err:   &analyzers.SchemaError{Agent: name, Missing: missing},
		}
		return analyzers.Failed(name, err)
	}
	res.Confidence = min(1, max(0, res.Confidence))
	if res.Quality == "" || res.Quality == analyzers.QualityFailed {
		res.Quality = analyzers.QualityLow
	}
	return res
}

func dedupe(names []string) []string {
	seen := make(map[string]bool, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	return out
}
