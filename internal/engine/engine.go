// Package engine answers questions about repositories: it classifies the
// question, routes it to a strategy, fans out to analyzers and aggregates the
// results into one Answer. It owns every cache read and write.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"

	"reposcope/internal/aggregate"
	"reposcope/internal/analyzers"
	"reposcope/internal/cache"
	"reposcope/internal/data"
	"reposcope/internal/fanout"
	"reposcope/internal/intent"
	"reposcope/internal/logging"
	"reposcope/internal/metrics"
	"reposcope/internal/pipeline"
	"reposcope/internal/router"
	"reposcope/internal/snapshot"
	"reposcope/internal/summarize"
)

type Config struct {
	// RequestTimeout bounds a whole Ask. Output is still built after it
	// fires.
	RequestTimeout time.Duration
	// SessionIdle drops session tiers unused for this long.
	SessionIdle time.Duration

	Pipeline  pipeline.Config
	Fanout    fanout.Config
	Router    router.Policy
	Aggregate aggregate.Policy
}

func DefaultConfig() Config {
	return Config{
		RequestTimeout: 2 * time.Minute,
		SessionIdle:    30 * time.Minute,
		Pipeline:       pipeline.DefaultConfig(),
		Fanout:         fanout.DefaultConfig(),
		Router:         router.DefaultPolicy(),
		Aggregate:      aggregate.DefaultPolicy(),
	}
}

// Forgetter drops memoized upstream data for a repository.
type Forgetter interface {
	Forget(ref data.RepoRef) int
}

type Engine struct {
	cfg        Config
	classifier intent.Classifier
	fetcher    snapshot.Fetcher
	store      *cache.Layered
	sessions   *cache.Sessions
	registry   *analyzers.Registry
	summarizer summarize.Summarizer
	scorers    pipeline.Scorers
	metrics    *metrics.Metrics
	forgetter  Forgetter
	now        func() time.Time
	log        *slog.Logger

	executor *pipeline.Executor
	fanout   *fanout.Coordinator
}

type Option func(*Engine)

func WithConfig(cfg Config) Option {
	return func(e *Engine) { e.cfg = cfg }
}

func WithClassifier(c intent.Classifier) Option {
	return func(e *Engine) {
		if c != nil {
			e.classifier = c
		}
	}
}

// WithCache sets the process-wide store. Session tiers are layered on top
// of it per request.
func WithCache(store *cache.Layered) Option {
	return func(e *Engine) { e.store = store }
}

func WithRegistry(r *analyzers.Registry) Option {
	return func(e *Engine) {
		if r != nil {
			e.registry = r
		}
	}
}

func WithSummarizer(s summarize.Summarizer) Option {
	return func(e *Engine) {
		if s != nil {
			e.summarizer = s
		}
	}
}

func WithScorers(s pipeline.Scorers) Option {
	return func(e *Engine) {
		if s != nil {
			e.scorers = s
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithForgetter is called on invalidation so the next request refetches.
func WithForgetter(f Forgetter) Option {
	return func(e *Engine) { e.forgetter = f }
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

func New(f snapshot.Fetcher, opts ...Option) *Engine {
	e := &Engine{
		cfg:        DefaultConfig(),
		classifier: intent.NewKeywordClassifier(),
		fetcher:    f,
		registry:   analyzers.Builtins(),
		summarizer: summarize.Template{},
		scorers:    pipeline.DefaultScorers{},
		now:        time.Now,
		log:        logging.New("engine"),
	}
	for _, apply := range opts {
		apply(e)
	}
	if e.store == nil {
		e.store = cache.NewLayered(cache.NewMemory(cache.WithMemoryClock(e.now)), cache.WithClock(e.now))
	}
	if e.sessions == nil {
		e.sessions = cache.NewSessions(e.cfg.SessionIdle)
	}

	popts := []pipeline.Option{
		pipeline.WithSummarizer(e.summarizer),
		pipeline.WithScorers(e.scorers),
		pipeline.WithConfig(e.cfg.Pipeline),
		pipeline.WithClock(e.now),
	}
	fopts := []fanout.Option{fanout.WithConfig(e.cfg.Fanout)}
	if e.metrics != nil {
		popts = append(popts, pipeline.WithObserver(e.metrics))
		fopts = append(fopts, fanout.WithRecorder(e.metrics))
	}
	e.executor = pipeline.NewExecutor(f, popts...)
	e.fanout = fanout.New(e.registry, fopts...)
	return e
}

// cachedResult is the payload stored under a decision key. Only successful
// analyzer results are stored; failed ones are rerun on the next hit.
type cachedResult struct {
	Primary       *pipeline.Output            `json:"primary,omitempty"`
	Agents        map[string]analyzers.Result `json:"agents,omitempty"`
	Summary       string                      `json:"summary"`
	SummarySource string                      `json:"summary_source,omitempty"`
}

// outcome is what one strategy produced, before aggregation.
type outcome struct {
	results       map[string]analyzers.Result
	calls         []fanout.AgentCallRecord
	timings       map[string]time.Duration
	summary       string
	summarySource string
	primary       *pipeline.Output
	err           *pipeline.ErrorInfo
	hit           bool
}

func newOutcome() *outcome {
	return &outcome{results: make(map[string]analyzers.Result), timings: make(map[string]time.Duration)}
}

// Ask answers req. Only an invalid repository or a classifier failure is
// returned as an error; everything that goes wrong later is reported in the
// Answer.
func (e *Engine) Ask(ctx context.Context, req Request) (*Answer, error) {
	ref := req.Repo
	if err := ref.Validate(); err != nil {
		return nil, err
	}
	if e.cfg.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.RequestTimeout)
		defer cancel()
	}
	started := time.Now()

	classified, err := e.classifier.Classify(ctx, req.Question)
	if err != nil {
		return nil, fmt.Errorf("classify request: %w", err)
	}
	in := applyOverrides(classified, req)

	store := e.store.WithSession(e.sessions.Get(req.SessionID))
	dec := router.Route(ctx, in, ref, e.cfg.Router, store, e.now())
	if dec.Freshness != router.Bypass {
		e.metrics.ObserveCache(string(dec.Tier), dec.Entry != nil)
	}

	var o *outcome
	switch dec.Strategy {
	case intent.Targeted:
		o = e.targeted(ctx, req, in, dec, store)
	case intent.Reinterpret:
		var ok bool
		if o, ok = e.reinterpret(ctx, in, dec, store); !ok {
			dec = router.Route(ctx, asFull(in), ref, e.cfg.Router, store, e.now())
			dec.Requested = intent.Reinterpret
			dec.Downgraded = true
			o = e.full(ctx, req, in, dec, store)
		}
	default:
		o = e.full(ctx, req, in, dec, store)
	}

	agg := e.cfg.Aggregate.Aggregate(o.results, req.Question)
	ans := &Answer{
		RequestID:          uuid.NewString(),
		Repo:               ref.FullName(),
		Question:           req.Question,
		Intent:             in,
		StrategyUsed:       dec.Strategy,
		Downgraded:         dec.Downgraded,
		PerAnalyzerResults: agg.PerAgent,
		OverallQuality:     agg.OverallQuality,
		OverallConfidence:  agg.OverallConfidence,
		Conflicts:          agg.Conflicts,
		MissingInfo:        agg.MissingInfo,
		Sources:            agg.Sources,
		Summary:            o.summary,
		SummarySource:      o.summarySource,
		Calls:              o.calls,
		Pipeline:           o.primary,
		Error:              o.err,
		Cache:              CacheInfo{Key: dec.Key, Freshness: dec.Freshness},
	}
	if o.hit {
		ans.Cache.Hit = true
		ans.Cache.Tier = dec.Tier
		ans.Cache.Age = dec.Age
		ans.Cache.AgeMS = dec.Age.Milliseconds()
		ans.Cache.Stale = dec.Freshness == router.Stale
	}
	o.timings["total"] = time.Since(started)
	ans.setTimings(o.timings)

	e.metrics.ObserveRequest(string(ans.StrategyUsed), string(ans.OverallQuality))
	e.log.Info("request answered",
		"request_id", ans.RequestID,
		"repo", ans.Repo,
		"strategy", ans.StrategyUsed,
		"quality", ans.OverallQuality,
		"cache_hit", ans.Cache.Hit,
		"duration", o.timings["total"],
	)
	return ans, nil
}

// applyOverrides folds request-level knobs into the classified intent. The
// result is final for the rest of the request.
func applyOverrides(in intent.ExecutionIntent, req Request) intent.ExecutionIntent {
	if req.Depth != "" {
		in.Depth = req.Depth
	}
	if in.Depth == "" {
		in.Depth = intent.Standard
	}
	if req.ForceRefresh {
		in.ForceRefresh = true
	}
	if len(req.Analyzers) > 0 {
		in.Analyzers = dedupe(append(append([]string(nil), in.Analyzers...), req.Analyzers...))
	}
	return in
}

func asFull(in intent.ExecutionIntent) intent.ExecutionIntent {
	in.Strategy = intent.Full
	in.ReinterpretPerspective = ""
	in.ReinterpretDetail = ""
	return in
}

// full serves the primary pipeline run, from the cache when the router
// found a usable entry.
func (e *Engine) full(ctx context.Context, req Request, in intent.ExecutionIntent, dec router.Decision, store cache.Store) *outcome {
	o := newOutcome()
	if cr, ok := e.decode(dec.Entry); ok && cr.Primary != nil {
		o.hit = true
		o.primary = cr.Primary
		o.summary, o.summarySource = cr.Primary.Summary, cr.Primary.SummarySource
		mergeResults(o, cr.Agents)
		o.results[aggregate.AgentPipeline] = pipelineResult(cr.Primary)
		e.runAnalyzers(ctx, req, in, o, in.Analyzers, nil, true)
		return o
	}

	st := pipeline.NewState(req.Repo, in.Depth)
	out := e.executor.Resume(ctx, st)
	o.primary = out
	o.summary, o.summarySource = out.Summary, out.SummarySource
	o.err = out.Error
	for stage, d := range out.Timings() {
		o.timings[stage] = d
	}
	o.results[aggregate.AgentPipeline] = pipelineResult(out)
	e.runAnalyzers(ctx, req, in, o, in.Analyzers, st.Snapshot, false)

	if out.Error == nil {
		e.put(ctx, store, dec, cachedResult{Primary: out, Agents: o.results, Summary: out.Summary, SummarySource: out.SummarySource})
	}
	return o
}

// targeted answers one topic from a fresh snapshot without running the
// pipeline.
func (e *Engine) targeted(ctx context.Context, req Request, in intent.ExecutionIntent, dec router.Decision, store cache.Store) *outcome {
	topic := in.TargetedTopic
	if topic == "" {
		topic = "snapshot"
	}
	names := dedupe(append([]string{topic}, in.Analyzers...))

	o := newOutcome()
	if cr, ok := e.decode(dec.Entry); ok {
		o.hit = true
		o.summary, o.summarySource = cr.Summary, cr.SummarySource
		mergeResults(o, cr.Agents)
		e.runAnalyzers(ctx, req, in, o, names, nil, true)
		return o
	}

	start := time.Now()
	snap, err := e.fetchSnapshot(ctx, req.Repo, in.Depth)
	o.timings[string(pipeline.FetchSnapshot)] = time.Since(start)
	if err != nil {
		o.err = &pipeline.ErrorInfo{
			Stage:    pipeline.FetchSnapshot,
			Message:  snapshot.ScrubError(err),
			NotFound: errors.Is(err, snapshot.ErrRepoNotFound),
		}
	}
	e.runAnalyzers(ctx, req, in, o, names, snap, false)

	main := o.results[topic]
	o.summary, o.summarySource = topicSummary(req.Repo, main), topic
	if o.err == nil && main.OK {
		e.put(ctx, store, dec, cachedResult{Agents: o.results, Summary: o.summary, SummarySource: o.summarySource})
	}
	return o
}

// reinterpret re-explains a cached primary result. It never fetches. It
// reports false when there is nothing to reinterpret.
func (e *Engine) reinterpret(ctx context.Context, in intent.ExecutionIntent, dec router.Decision, store cache.Store) (*outcome, bool) {
	o := newOutcome()
	if cr, ok := e.decode(dec.Entry); ok {
		o.hit = true
		o.summary, o.summarySource = cr.Summary, cr.SummarySource
		mergeResults(o, cr.Agents)
		return o, true
	}

	src, ok := e.decode(dec.Source)
	if !ok || src.Primary == nil {
		return nil, false
	}
	mergeResults(o, src.Agents)
	o.results[aggregate.AgentPipeline] = pipelineResult(src.Primary)

	start := time.Now()
	sin := src.Primary.SummaryInput(in.ReinterpretPerspective, in.ReinterpretDetail)
	o.summary, o.summarySource = e.resummarize(ctx, sin)
	o.timings[string(pipeline.GenerateSummary)] = time.Since(start)

	e.put(ctx, store, dec, cachedResult{Agents: o.results, Summary: o.summary, SummarySource: o.summarySource})
	return o, true
}

// resummarize asks the summarizer for a new rendering and falls back to the
// template when it fails or returns nothing.
func (e *Engine) resummarize(ctx context.Context, in summarize.Input) (string, string) {
	sctx, cancel := e.stageContext(ctx)
	defer cancel()
	text, err := e.summarizer.Summarize(sctx, in)
	if err == nil && text != "" {
		return text, summarize.SourceName(e.summarizer)
	}
	if err != nil {
		e.log.Warn("summarizer failed; using template", "repo", in.Repo, "error", err)
	}
	return summarize.Render(in), summarize.Template{}.Name()
}

// runAnalyzers fans out to the named analyzers that have no successful
// result in o yet. A nil snap is fetched first when fetch is set.
func (e *Engine) runAnalyzers(ctx context.Context, req Request, in intent.ExecutionIntent, o *outcome, names []string, snap *snapshot.Snapshot, fetch bool) {
	var pending []string
	for _, n := range names {
		if r, ok := o.results[n]; !ok || !r.OK {
			pending = append(pending, n)
		}
	}
	if len(pending) == 0 {
		return
	}
	if snap == nil && fetch {
		start := time.Now()
		s, err := e.fetchSnapshot(ctx, req.Repo, in.Depth)
		o.timings[string(pipeline.FetchSnapshot)] = time.Since(start)
		if err != nil {
			e.log.Warn("snapshot for analyzers failed", "repo", req.Repo.String(), "error", snapshot.ScrubError(err))
		}
		snap = s
	}

	start := time.Now()
	results, calls := e.fanout.RunConcurrently(ctx, pending, analyzers.Input{
		Ref:      req.Repo,
		Depth:    in.Depth,
		Question: req.Question,
		Snapshot: snap,
		Now:      e.now(),
	})
	o.timings["fanout"] = time.Since(start)
	mergeResults(o, results)
	o.calls = append(o.calls, calls...)
}

func (e *Engine) fetchSnapshot(ctx context.Context, ref data.RepoRef, depth intent.Depth) (*snapshot.Snapshot, error) {
	sctx, cancel := e.stageContext(ctx)
	defer cancel()
	snap, err := e.fetcher.Fetch(sctx, ref, snapshot.Options{ActivityWindowDays: pipeline.ActivityWindowDays(depth)})
	if err != nil {
		return nil, err
	}
	if snap == nil || !snap.OK {
		return nil, pipeline.ErrSnapshotIncomplete
	}
	return snap, nil
}

func (e *Engine) stageContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.cfg.Pipeline.StageTimeout > 0 {
		return context.WithTimeout(ctx, e.cfg.Pipeline.StageTimeout)
	}
	return context.WithCancel(ctx)
}

func (e *Engine) decode(entry *cache.Entry) (cachedResult, bool) {
	if entry == nil {
		return cachedResult{}, false
	}
	cr, err := decodeResult(entry.Payload)
	if err != nil {
		e.log.Warn("discarding unreadable cached result", "key", entry.Key, "error", err)
		return cachedResult{}, false
	}
	return cr, true
}

func (e *Engine) put(ctx context.Context, store cache.Store, dec router.Decision, cr cachedResult) {
	cr.Agents = successful(cr.Agents)
	payload, err := encodeResult(cr)
	if err != nil {
		e.log.Warn("result not cached", "key", dec.Key, "error", err)
		return
	}
	store.Set(ctx, dec.Key, payload, dec.TTL)
}

// InvalidateAllFor drops every cached result for ref from the process tier
// and all session tiers, plus memoized upstream data.
func (e *Engine) InvalidateAllFor(ctx context.Context, ref data.RepoRef) int {
	n := e.store.InvalidateAllFor(ctx, ref) + e.sessions.InvalidateAllFor(ctx, ref)
	if e.forgetter != nil {
		e.forgetter.Forget(ref)
	}
	e.metrics.ObserveInvalidation(n)
	return n
}

// EndSession discards a session tier.
func (e *Engine) EndSession(id string) {
	e.sessions.Drop(id)
}

// CacheStats reports the process tier when its backend can count entries.
func (e *Engine) CacheStats(ctx context.Context) (cache.Stats, bool, error) {
	return e.store.Stats(ctx)
}

// pipelineResult presents a primary run as an analyzer result so it can be
// aggregated with the fan-out results.
func pipelineResult(out *pipeline.Output) analyzers.Result {
	if out == nil {
		return analyzers.Failed(aggregate.AgentPipeline, errors.New("pipeline did not run"))
	}
	if out.Error != nil {
		return analyzers.Failed(aggregate.AgentPipeline, errors.New(out.Error.Message))
	}
	if out.Scores == nil {
		return analyzers.Failed(aggregate.AgentPipeline, errors.New("pipeline produced no scores"))
	}

	s := out.Scores
	m := map[analyzers.Metric]float64{
		aggregate.MetricHealth:        float64(s.Health),
		aggregate.MetricDocumentation: float64(s.Documentation),
	}
	if s.Activity != nil {
		m[aggregate.MetricActivity] = float64(*s.Activity)
	}
	if s.Structure != nil {
		m[aggregate.MetricStructure] = float64(*s.Structure)
	}
	if s.Dependencies != nil {
		m[aggregate.MetricDependencies] = float64(*s.Dependencies)
	}

	conf := 0.9 - 0.1*float64(len(out.Failed)) - 0.05*float64(len(out.Missing))
	for _, reason := range out.Skipped {
		if reason != "depth" {
			conf -= 0.05
		}
	}
	conf = math.Round(max(conf, 0.2)*1000) / 1000

	res := analyzers.Result{
		Agent:      aggregate.AgentPipeline,
		OK:         true,
		Quality:    analyzers.QualityForScore(s.Health),
		Confidence: conf,
		Metrics:    m,
		Summary:    out.Summary,
	}
	if md := out.Metadata; md != nil && md.HTMLURL != "" {
		res.Evidence = []analyzers.Source{{URL: md.HTMLURL, Title: md.FullName, Relevance: 0.6}}
	}
	return res
}

func topicSummary(ref data.RepoRef, r analyzers.Result) string {
	if r.OK && r.Summary != "" {
		return r.Summary
	}
	if r.Error != "" {
		return fmt.Sprintf("%s could not be analyzed: %s", ref.FullName(), r.Error)
	}
	return fmt.Sprintf("%s could not be analyzed.", ref.FullName())
}

func successful(results map[string]analyzers.Result) map[string]analyzers.Result {
	out := make(map[string]analyzers.Result, len(results))
	for k, v := range results {
		if v.OK {
			out[k] = v
		}
	}
	return out
}

func mergeResults(o *outcome, results map[string]analyzers.Result) {
	for k, v := range results {
		o.results[k] = v
	}
}

func dedupe(names []string) []string {
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		if _, ok := seen[n]; ok || n == "" {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}
