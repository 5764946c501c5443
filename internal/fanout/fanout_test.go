package fanout

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"reposcope/internal/analyzers"
	"reposcope/internal/pipeline"
	"reposcope/internal/snapshot"
)

type stubAnalyzer struct {
	name    string
	delay   time.Duration
	err     error
	panics  bool
	metrics map[analyzers.Metric]float64
	// ignoreCtx keeps sleeping after the context is done.
	ignoreCtx bool
	calls     atomic.Int32
	// failTimes fails this many leading calls.
	failTimes int32
	mutate    bool
}

func (s *stubAnalyzer) Name() string        { return s.name }
func (s *stubAnalyzer) Description() string { return "stub" }
func (s *stubAnalyzer) Metrics() []analyzers.Metric {
	return []analyzers.Metric{analyzers.Metric(s.name + ".score")}
}

func (s *stubAnalyzer) Analyze(ctx context.Context, in analyzers.Input) (analyzers.Result, error) {
	n := s.calls.Add(1)
	if s.mutate && in.Snapshot != nil {
		in.Snapshot.SHA = "mutated-by-" + s.name
	}
	if s.delay > 0 {
		if s.ignoreCtx {
			time.Sleep(s.delay)
		} else {
			select {
			case <-time.After(s.delay):
			case <-ctx.Done():
				return analyzers.Result{}, ctx.Err()
			}
		}
	}
	if s.panics {
		panic("analyzer exploded")
	}
	if n <= s.failTimes {
		return analyzers.Result{}, errors.New("flaky")
	}
	if s.err != nil {
		return analyzers.Result{}, s.err
	}
	m := s.metrics
	if m == nil {
		m = map[analyzers.Metric]float64{analyzers.Metric(s.name + ".score"): 80}
	}
	return analyzers.Result{OK: true, Quality: analyzers.QualityHigh, Confidence: 0.9, Metrics: m}, nil
}

type recorder struct {
	mu  sync.Mutex
	obs map[string]bool
}

func (r *recorder) ObserveAgent(agent string, ok bool, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.obs == nil {
		r.obs = map[string]bool{}
	}
	r.obs[agent] = ok
}

func registry(t *testing.T, as ...analyzers.Analyzer) *analyzers.Registry {
	t.Helper()
	reg := analyzers.NewRegistry()
	for _, a := range as {
		if err := reg.Register(a); err != nil {
			t.Fatalf("Register: %v", err)
		}
	}
	return reg
}

func TestRunConcurrently_Isolation(t *testing.T) {
	slow := &stubAnalyzer{name: "slow", delay: 150 * time.Millisecond}
	fast := &stubAnalyzer{name: "fast"}
	boom := &stubAnalyzer{name: "boom", panics: true}
	rec := &recorder{}
	c := New(registry(t, slow, fast, boom), WithRecorder(rec))

	start := time.Now()
	results, records := c.RunConcurrently(context.Background(), []string{"slow", "fast", "boom"}, analyzers.Input{})
	elapsed := time.Since(start)

	if len(results) != 3 || len(records) != 3 {
		t.Fatalf("expected 3 results and records, got %d and %d", len(results), len(records))
	}
	if !results["slow"].OK || !results["fast"].OK {
		t.Fatalf("siblings of a panicking analyzer must succeed: %+v", results)
	}
	if results["boom"].OK || results["boom"].Quality != analyzers.QualityFailed || results["boom"].Error == "" {
		t.Fatalf("expected failed result for panicking analyzer, got %+v", results["boom"])
	}
	if elapsed > 150*time.Millisecond+300*time.Millisecond {
		t.Fatalf("fan-out took %v, longer than the slowest successful analyzer allows", elapsed)
	}
	for i, want := range []string{"slow", "fast", "boom"} {
		if records[i].Agent != want {
			t.Fatalf("records out of order: %+v", records)
		}
	}
	if records[0].Latency < 150*time.Millisecond {
		t.Fatalf("expected wall-clock latency for slow analyzer, got %v", records[0].Latency)
	}
	if rec.obs["boom"] || !rec.obs["fast"] {
		t.Fatalf("recorder saw %+v", rec.obs)
	}
}

func TestRunConcurrently_LaunchesAllBeforeAwaiting(t *testing.T) {
	var as []analyzers.Analyzer
	var names []string
	for _, n := range []string{"a", "b", "c", "d"} {
		as = append(as, &stubAnalyzer{name: n, delay: 100 * time.Millisecond})
		names = append(names, n)
	}
	c := New(registry(t, as...))
	start := time.Now()
	results, _ := c.RunConcurrently(context.Background(), names, analyzers.Input{})
	if elapsed := time.Since(start); elapsed > 300*time.Millisecond {
		t.Fatalf("four 100ms analyzers took %v; they did not run concurrently", elapsed)
	}
	for _, n := range names {
		if !results[n].OK {
			t.Fatalf("expected %s ok", n)
		}
	}
}

func TestRunConcurrently_TimeoutIsPerAnalyzer(t *testing.T) {
	stuck := &stubAnalyzer{name: "stuck", delay: 2 * time.Second, ignoreCtx: true}
	ok := &stubAnalyzer{name: "ok"}
	c := New(registry(t, stuck, ok), WithConfig(Config{AgentTimeout: 50 * time.Millisecond}))

	start := time.Now()
	results, records := c.RunConcurrently(context.Background(), []string{"stuck", "ok"}, analyzers.Input{})
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("an analyzer ignoring its context held the fan-out for %v", elapsed)
	}
	if results["stuck"].OK || !errors.Is(results["stuck"].Err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline failure, got %+v", results["stuck"])
	}
	if !results["ok"].OK || !records[1].OK {
		t.Fatalf("sibling of a timed out analyzer must succeed")
	}
}

func TestRunConcurrently_UnknownAnalyzer(t *testing.T) {
	c := New(registry(t, &stubAnalyzer{name: "known"}))
	results, records := c.RunConcurrently(context.Background(), []string{"known", "ghost", "known"}, analyzers.Input{})
	if len(results) != 2 || len(records) != 2 {
		t.Fatalf("expected duplicates collapsed, got %d results", len(results))
	}
	if results["ghost"].OK || !errors.Is(results["ghost"].Err, ErrUnknownAnalyzer) {
		t.Fatalf("expected unknown analyzer failure, got %+v", results["ghost"])
	}
	if records[1].Attempts != 0 {
		t.Fatalf("unknown analyzers are never invoked")
	}
}

func TestRunConcurrently_SchemaMismatch(t *testing.T) {
	bad := &stubAnalyzer{name: "bad", metrics: map[analyzers.Metric]float64{"bad.other": 1}}
	c := New(registry(t, bad), WithConfig(Config{AgentTimeout: time.Second, AgentRetries: 2}))
	results, _ := c.RunConcurrently(context.Background(), []string{"bad"}, analyzers.Input{})

	res := results["bad"]
	var opt *pipeline.OptionalStageError
	var schema *analyzers.SchemaError
	if res.OK || !errors.As(res.Err, &opt) || !errors.As(res.Err, &schema) {
		t.Fatalf("expected optional stage error wrapping a schema error, got %v", res.Err)
	}
	if bad.calls.Load() != 1 {
		t.Fatalf("a schema mismatch is not retried, got %d calls", bad.calls.Load())
	}
}

func TestRunConcurrently_Retries(t *testing.T) {
	flaky := &stubAnalyzer{name: "flaky", failTimes: 1}
	c := New(registry(t, flaky), WithConfig(Config{AgentTimeout: time.Second, AgentRetries: 1}))
	results, records := c.RunConcurrently(context.Background(), []string{"flaky"}, analyzers.Input{})
	if !results["flaky"].OK || records[0].Attempts != 2 {
		t.Fatalf("expected success on retry, got %+v %+v", results["flaky"], records[0])
	}

	noRetry := &stubAnalyzer{name: "flaky", failTimes: 1}
	results, _ = New(registry(t, noRetry)).RunConcurrently(context.Background(), []string{"flaky"}, analyzers.Input{})
	if results["flaky"].OK || noRetry.calls.Load() != 1 {
		t.Fatalf("default is no retries")
	}
}

func TestRunConcurrently_RetriesShareTheDeadline(t *testing.T) {
	stubborn := &stubAnalyzer{name: "stubborn", delay: 80 * time.Millisecond, err: errors.New("still broken")}
	fast := &stubAnalyzer{name: "fast"}
	c := New(registry(t, stubborn, fast), WithConfig(Config{AgentTimeout: 200 * time.Millisecond, AgentRetries: 5}))

	start := time.Now()
	results, records := c.RunConcurrently(context.Background(), []string{"stubborn", "fast"}, analyzers.Input{})
	elapsed := time.Since(start)

	if results["stubborn"].OK || !results["fast"].OK {
		t.Fatalf("unexpected results %+v", results)
	}
	if elapsed > 200*time.Millisecond+300*time.Millisecond {
		t.Fatalf("retries ran past the analyzer deadline: %v", elapsed)
	}
	if records[0].Attempts < 2 || records[0].Attempts > 3 {
		t.Fatalf("expected the retries that fit the deadline in one record, got %+v", records[0])
	}
}

func TestRunConcurrently_InputCopies(t *testing.T) {
	a := &stubAnalyzer{name: "a", mutate: true}
	b := &stubAnalyzer{name: "b", mutate: true}
	snap := &snapshot.Snapshot{SHA: "original", OK: true}
	c := New(registry(t, a, b))
	c.RunConcurrently(context.Background(), []string{"a", "b"}, analyzers.Input{Snapshot: snap})
	if snap.SHA != "original" {
		t.Fatalf("analyzer mutated the shared snapshot: %s", snap.SHA)
	}
}
