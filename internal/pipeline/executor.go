package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"reposcope/internal/data"
	"reposcope/internal/intent"
	"reposcope/internal/logging"
	"reposcope/internal/scoring"
	"reposcope/internal/snapshot"
	"reposcope/internal/summarize"
)

var errNothingToScore = errors.New("no stage results to score")

// Config bounds retries and per-attempt time.
type Config struct {
	MaxRetries   int
	StageTimeout time.Duration
	// RetryBackoff is multiplied by the attempt number between attempts.
	RetryBackoff time.Duration
}

func DefaultConfig() Config {
	return Config{MaxRetries: 2, StageTimeout: 30 * time.Second, RetryBackoff: 200 * time.Millisecond}
}

// Scorers computes the enrichment stage results from a snapshot. Each call
// receives its own copy of the snapshot.
type Scorers interface {
	Docs(ctx context.Context, s *snapshot.Snapshot) (scoring.DocsResult, error)
	Activity(ctx context.Context, s *snapshot.Snapshot, now time.Time) (scoring.ActivityResult, error)
	Structure(ctx context.Context, s *snapshot.Snapshot) (scoring.StructureResult, error)
	Dependencies(ctx context.Context, s *snapshot.Snapshot) (scoring.DependencyResult, error)
}

// DefaultScorers wraps the scoring package.
type DefaultScorers struct{}

func (DefaultScorers) Docs(_ context.Context, s *snapshot.Snapshot) (scoring.DocsResult, error) {
	var license string
	if s.Metadata != nil {
		license = s.Metadata.License
	}
	return scoring.Docs(s.Readme, s.Tree, license), nil
}

func (DefaultScorers) Activity(_ context.Context, s *snapshot.Snapshot, now time.Time) (scoring.ActivityResult, error) {
	if s.Activity == nil {
		return scoring.ActivityResult{}, errors.New("activity data unavailable")
	}
	return scoring.Activity(s.Activity, s.Metadata, now), nil
}

func (DefaultScorers) Structure(_ context.Context, s *snapshot.Snapshot) (scoring.StructureResult, error) {
	if s.Tree == nil {
		return scoring.StructureResult{}, errors.New("repository tree unavailable")
	}
	return scoring.Structure(s.Tree), nil
}

func (DefaultScorers) Dependencies(_ context.Context, s *snapshot.Snapshot) (scoring.DependencyResult, error) {
	return scoring.Dependencies(s.Manifests, s.Tree)
}

// Observer receives one call per finished stage.
type Observer interface {
	ObserveStage(stage, status string, d time.Duration)
}

// Executor runs the stage machine.
type Executor struct {
	fetcher    snapshot.Fetcher
	summarizer summarize.Summarizer
	scorers    Scorers
	cfg        Config
	now        func() time.Time
	log        *slog.Logger
	observer   Observer
}

type Option func(*Executor)

func WithSummarizer(s summarize.Summarizer) Option {
	return func(e *Executor) {
		if s != nil {
			e.summarizer = s
		}
	}
}

func WithScorers(s Scorers) Option {
	return func(e *Executor) {
		if s != nil {
			e.scorers = s
		}
	}
}

func WithConfig(cfg Config) Option {
	return func(e *Executor) { e.cfg = cfg }
}

func WithClock(now func() time.Time) Option {
	return func(e *Executor) {
		if now != nil {
			e.now = now
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(e *Executor) {
		if l != nil {
			e.log = l
		}
	}
}

func WithObserver(o Observer) Option {
	return func(e *Executor) { e.observer = o }
}

func NewExecutor(f snapshot.Fetcher, opts ...Option) *Executor {
	e := &Executor{
		fetcher:    f,
		summarizer: summarize.Template{},
		scorers:    DefaultScorers{},
		cfg:        DefaultConfig(),
		now:        time.Now,
		log:        logging.New("pipeline"),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.cfg.MaxRetries < 0 {
		e.cfg.MaxRetries = 0
	}
	return e
}

// Run analyzes ref at depth from scratch.
func (e *Executor) Run(ctx context.Context, ref data.RepoRef, depth intent.Depth) *Output {
	return e.Resume(ctx, NewState(ref, depth))
}

// Resume continues from st. Stages whose output st already holds are
// reported reused and not recomputed. It never returns nil.
func (e *Executor) Resume(ctx context.Context, st *State) *Output {
	st.ensureMaps()
	var out *Output
	for stage := FetchSnapshot; stage != Done; {
		switch stage {
		case AnalyzeDocs:
			e.enrich(ctx, st)
			stage = next(ParseDependencies, st)
			continue
		case BuildOutput:
			start := e.now()
			out = buildOutput(st)
			e.report(st, StageReport{Stage: BuildOutput, Status: StatusOK, Attempts: 1, Duration: e.now().Sub(start)})
			out.Stages = append(out.Stages, st.Reports[BuildOutput])
		default:
			e.runStage(ctx, stage, st)
		}
		stage = next(stage, st)
	}
	return out
}

func (e *Executor) runStage(ctx context.Context, stage Stage, st *State) {
	if st.Err != nil && stage != ErrorCheck {
		return
	}
	switch stage {
	case FetchSnapshot:
		e.fetchSnapshot(ctx, st)
	case ComputeScores:
		e.computeScores(st)
	case GenerateSummary:
		e.generateSummary(ctx, st)
	case ErrorCheck:
		e.errorCheck(st)
	}
}

func (e *Executor) fetchSnapshot(ctx context.Context, st *State) {
	if st.has(FetchSnapshot) {
		e.report(st, StageReport{Stage: FetchSnapshot, Status: StatusReused})
		return
	}
	opts := snapshot.Options{ActivityWindowDays: ActivityWindowDays(st.Depth)}
	snap, rep, err := attempt(ctx, e, FetchSnapshot, func(ctx context.Context) (*snapshot.Snapshot, error) {
		return e.fetcher.Fetch(ctx, st.Ref, opts)
	})
	if err == nil && (snap == nil || !snap.OK) {
		err = ErrSnapshotIncomplete
		rep.Status = StatusFailed
		rep.Error = err.Error()
	}
	e.report(st, rep)
	if err != nil {
		st.Err = &FatalStageError{Stage: FetchSnapshot, Err: err}
		st.FailedStage = FetchSnapshot
		st.RetryCount = rep.Attempts - 1
		return
	}
	st.Snapshot = snap
}

// ActivityWindowDays is the commit window fetched at depth d.
func ActivityWindowDays(d intent.Depth) int {
	if d == intent.Thorough {
		return 365
	}
	return 90
}

type enrichment struct {
	docs      *scoring.DocsResult
	activity  *scoring.ActivityResult
	structure *scoring.StructureResult
	deps      *scoring.DependencyResult
	report    StageReport
	err       error
}

// enrich runs the four enrichment stages concurrently. Every goroutine works
// on its own snapshot copy and writes only its own slot; results are merged
// into st after all of them settle.
func (e *Executor) enrich(ctx context.Context, st *State) {
	if st.Err != nil {
		return
	}
	now := e.now()
	pending := make([]Stage, 0, 4)
	for _, s := range EnrichmentStages() {
		switch {
		case st.has(s):
			e.report(st, StageReport{Stage: s, Status: StatusReused})
		case s.skippedAt(st.Depth):
			st.Skipped[s] = nil
			e.report(st, StageReport{Stage: s, Status: StatusSkipped})
		default:
			pending = append(pending, s)
		}
	}

	slots := make([]enrichment, len(pending))
	g, gctx := errgroup.WithContext(ctx)
	for i, s := range pending {
		snap := st.Snapshot.Clone()
		g.Go(func() error {
			slots[i] = e.enrichOne(gctx, s, snap, now)
			return nil
		})
	}
	_ = g.Wait()

	for i, s := range pending {
		slot := slots[i]
		e.report(st, slot.report)
		if slot.err != nil {
			if s.Optional() {
				st.Skipped[s] = slot.err
			} else {
				st.Failed[s] = slot.err
			}
			continue
		}
		switch s {
		case AnalyzeDocs:
			st.Docs = slot.docs
		case AnalyzeActivity:
			st.Activity = slot.activity
		case AnalyzeStructure:
			st.Structure = slot.structure
		case ParseDependencies:
			st.Deps = slot.deps
		}
	}
}

func (e *Executor) enrichOne(ctx context.Context, s Stage, snap *snapshot.Snapshot, now time.Time) enrichment {
	var slot enrichment
	switch s {
	case AnalyzeDocs:
		v, rep, err := attempt(ctx, e, s, func(ctx context.Context) (scoring.DocsResult, error) {
			return e.scorers.Docs(ctx, snap)
		})
		slot.report, slot.err = rep, err
		if err == nil {
			slot.docs = &v
		}
	case AnalyzeActivity:
		v, rep, err := attempt(ctx, e, s, func(ctx context.Context) (scoring.ActivityResult, error) {
			return e.scorers.Activity(ctx, snap, now)
		})
		slot.report, slot.err = rep, err
		if err == nil {
			slot.activity = &v
		}
	case AnalyzeStructure:
		v, rep, err := attempt(ctx, e, s, func(ctx context.Context) (scoring.StructureResult, error) {
			return e.scorers.Structure(ctx, snap)
		})
		slot.report, slot.err = rep, err
		if err == nil {
			slot.structure = &v
		}
	case ParseDependencies:
		v, rep, err := attempt(ctx, e, s, func(ctx context.Context) (scoring.DependencyResult, error) {
			return e.scorers.Dependencies(ctx, snap)
		})
		slot.report, slot.err = rep, err
		if err == nil {
			slot.deps = &v
		}
	}
	return slot
}

func (e *Executor) computeScores(st *State) {
	if st.has(ComputeScores) {
		e.report(st, StageReport{Stage: ComputeScores, Status: StatusReused})
		return
	}
	start := e.now()
	if st.Docs == nil && st.Activity == nil && st.Structure == nil && st.Deps == nil {
		st.Skipped[ComputeScores] = &OptionalStageError{Stage: ComputeScores, Err: errNothingToScore}
		e.report(st, StageReport{Stage: ComputeScores, Status: StatusSkipped, Attempts: 1, Duration: e.now().Sub(start), Error: errNothingToScore.Error()})
		return
	}
	scores := scoring.Compute(st.Docs, st.Activity, st.Structure, st.Deps)
	st.Scores = &scores
	e.report(st, StageReport{Stage: ComputeScores, Status: StatusOK, Attempts: 1, Duration: e.now().Sub(start)})
}

func (e *Executor) generateSummary(ctx context.Context, st *State) {
	if st.has(GenerateSummary) {
		e.report(st, StageReport{Stage: GenerateSummary, Status: StatusReused})
		return
	}
	in := summaryInput(st)
	text, rep, err := attempt(ctx, e, GenerateSummary, func(ctx context.Context) (string, error) {
		return e.summarizer.Summarize(ctx, in)
	})
	e.report(st, rep)
	if err != nil {
		st.Skipped[GenerateSummary] = err
		return
	}
	st.Summary = &text
	st.summarySource = summarize.SourceName(e.summarizer)
}

// errorCheck moves a fatal error off Err so build_output can run.
func (e *Executor) errorCheck(st *State) {
	if st.Err == nil {
		return
	}
	e.log.Warn("pipeline run failed", "repo", st.Ref.String(), "stage", st.FailedStage, "error", st.Err)
	st.Fatal = st.Err
	st.Err = nil
	e.report(st, StageReport{Stage: ErrorCheck, Status: StatusOK, Attempts: 1})
}

func (e *Executor) report(st *State, r StageReport) {
	r.DurationMS = r.Duration.Milliseconds()
	st.Reports[r.Stage] = r
	if e.observer != nil {
		e.observer.ObserveStage(string(r.Stage), string(r.Status), r.Duration)
	}
}

// attempt runs fn under a per-attempt timeout. Retryable stages get up to
// MaxRetries more attempts; parent cancellation and ErrRepoNotFound end the
// loop early. The returned error is typed by the stage's class.
func attempt[T any](ctx context.Context, e *Executor, stage Stage, fn func(context.Context) (T, error)) (T, StageReport, error) {
	attempts := 1
	if stage.Retryable() {
		attempts += e.cfg.MaxRetries
	}
	rep := StageReport{Stage: stage}
	start := e.now()

	var zero T
	var lastErr error
	for i := 1; i <= attempts; i++ {
		rep.Attempts = i
		actx, cancel := e.attemptContext(ctx)
		v, err := fn(actx)
		cancel()
		if err == nil {
			rep.Status = StatusOK
			rep.Duration = e.now().Sub(start)
			return v, rep, nil
		}
		lastErr = err
		e.log.Debug("stage attempt failed", "stage", stage, "attempt", i, "error", err)
		if ctx.Err() != nil || errors.Is(err, snapshot.ErrRepoNotFound) || i == attempts {
			break
		}
		if err := sleep(ctx, e.cfg.RetryBackoff*time.Duration(i)); err != nil {
			break
		}
	}

	rep.Duration = e.now().Sub(start)
	rep.Error = lastErr.Error()
	var err error
	switch {
	case stage.Optional():
		rep.Status = StatusSkipped
		err = &OptionalStageError{Stage: stage, Err: lastErr}
	case stage.Retryable():
		rep.Status = StatusFailed
		err = &TransientStageError{Stage: stage, Attempts: rep.Attempts, Err: lastErr}
	default:
		rep.Status = StatusFailed
		err = fmt.Errorf("stage %s: %w", stage, lastErr)
	}
	if stage != FetchSnapshot {
		e.log.Warn("stage failed", "stage", stage, "attempts", rep.Attempts, "error", lastErr)
	}
	return zero, rep, err
}

func (e *Executor) attemptContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.cfg.StageTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, e.cfg.StageTimeout)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
