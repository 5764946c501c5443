package cli

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"reposcope/internal/analyzers"
	"reposcope/internal/config"
	"reposcope/internal/data"
	"reposcope/internal/engine"
	"reposcope/internal/intent"
	"reposcope/internal/output"
)

func TestExitCodeForRun(t *testing.T) {
	tests := []struct {
		fatal, partial, degraded bool
		want                     int
	}{
		{false, false, false, 0},
		{false, false, true, 1},
		{false, true, true, 2},
		{true, true, true, 3},
		{true, false, false, 3},
	}
	for _, tt := range tests {
		if got := exitCodeForRun(tt.fatal, tt.partial, tt.degraded); got != tt.want {
			t.Fatalf("exitCodeForRun(%v, %v, %v) = %d, want %d", tt.fatal, tt.partial, tt.degraded, got, tt.want)
		}
	}
}

func TestBuildRequests(t *testing.T) {
	c := config.New()
	c.Ask.Repos = []string{"acme/widgets,acme/gadgets@v2"}
	c.Ask.Question = "Any security issues?"
	c.Ask.Depth = "deep"
	c.Ask.SessionID = "s1"
	c.Ask.Analyzers = []string{"docs"}

	reqs, err := buildRequests(c)
	if err != nil {
		t.Fatalf("buildRequests: %v", err)
	}
	want := []engine.Request{
		{Repo: data.RepoRef{Owner: "acme", Name: "widgets"}, Question: "Any security issues?", SessionID: "s1", Depth: intent.Thorough, Analyzers: []string{"docs"}},
		{Repo: data.RepoRef{Owner: "acme", Name: "gadgets", Revision: "v2"}, Question: "Any security issues?", SessionID: "s1", Depth: intent.Thorough, Analyzers: []string{"docs"}},
	}
	if diff := cmp.Diff(want, reqs); diff != "" {
		t.Fatalf("unexpected requests (-want +got):\n%s", diff)
	}
}

func TestBuildRequests_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *config.Config)
		want   string
	}{
		{"no question", func(c *config.Config) { c.Ask.Repos = []string{"acme/widgets"} }, "a question is required"},
		{"no repos", func(c *config.Config) { c.Ask.Question = "How active is it?" }, "repositor"},
		{"invalid config", func(c *config.Config) {
			c.Ask.Repos = []string{"acme/widgets"}
			c.Ask.Question = "q"
			c.Output.ConsoleFormat = "xml"
		}, "--console-format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := config.New()
			tt.mutate(c)
			_, err := buildRequests(c)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("buildRequests error = %v, want mention of %q", err, tt.want)
			}
		})
	}
}

// fakeAsker answers from a fixed table of results.
type fakeAsker struct {
	results []engine.BatchResult
	err     error
	gotConc int
}

func (f *fakeAsker) AskMany(_ context.Context, _ []engine.Request, concurrency int) (<-chan engine.BatchResult, <-chan error) {
	f.gotConc = concurrency
	resCh := make(chan engine.BatchResult, len(f.results))
	errCh := make(chan error, 1)
	for _, r := range f.results {
		resCh <- r
	}
	close(resCh)
	if f.err != nil {
		errCh <- f.err
	}
	close(errCh)
	return resCh, errCh
}

func okAnswer(repo string) *engine.Answer {
	return &engine.Answer{
		Repo:           repo,
		Question:       "q",
		OverallQuality: analyzers.QualityHigh,
		PerAnalyzerResults: map[string]analyzers.Result{
			"pipeline": {Agent: "pipeline", OK: true, Quality: analyzers.QualityHigh},
		},
	}
}

func degradedAnswer(repo string) *engine.Answer {
	a := okAnswer(repo)
	a.OverallQuality = analyzers.QualityMedium
	a.PerAnalyzerResults["security"] = analyzers.Failed("security", context.DeadlineExceeded)
	return a
}

func failedAnswer(repo string) *engine.Answer {
	return &engine.Answer{Repo: repo, Question: "q", OverallQuality: analyzers.QualityFailed}
}

func askConfig() *config.Config {
	c := config.New()
	c.Output.NoConsole = true
	c.Output.Emit = []string{"ndjson"}
	c.Runtime.Concurrency = 3
	return c
}

func testRequests(repos ...string) []engine.Request {
	reqs := make([]engine.Request, 0, len(repos))
	for _, r := range repos {
		ref, _ := data.ParseRepoRef(r)
		reqs = append(reqs, engine.Request{Repo: ref, Question: "q"})
	}
	return reqs
}

func eventTypes(t *testing.T, b []byte) []string {
	t.Helper()
	var types []string
	sc := bufio.NewScanner(bytes.NewReader(b))
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		var ev output.Event
		if err := json.Unmarshal(sc.Bytes(), &ev); err != nil {
			t.Fatalf("line %q is not an event: %v", sc.Text(), err)
		}
		types = append(types, ev.Type)
	}
	return types
}

func TestRunAsk_ExitCodes(t *testing.T) {
	tests := []struct {
		name    string
		results []engine.BatchResult
		err     error
		want    int
	}{
		{
			name:    "all answered",
			results: []engine.BatchResult{{Index: 0, Answer: okAnswer("acme/a")}, {Index: 1, Answer: okAnswer("acme/b")}},
			want:    0,
		},
		{
			name:    "analyzer failed",
			results: []engine.BatchResult{{Index: 0, Answer: okAnswer("acme/a")}, {Index: 1, Answer: degradedAnswer("acme/b")}},
			want:    1,
		},
		{
			name:    "answer failed",
			results: []engine.BatchResult{{Index: 0, Answer: okAnswer("acme/a")}, {Index: 1, Answer: failedAnswer("acme/b")}},
			want:    2,
		},
		{
			name:    "request refused",
			results: []engine.BatchResult{{Index: 0, Answer: okAnswer("acme/a")}, {Index: 1, Err: errors.New("invalid repository")}},
			want:    2,
		},
		{
			name: "cut short",
			err:  context.DeadlineExceeded,
			want: 3,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stdout bytes.Buffer
			asker := &fakeAsker{results: tt.results, err: tt.err}
			got := runAsk(context.Background(), askConfig(), asker, testRequests("acme/a", "acme/b"), &stdout)
			if got != tt.want {
				t.Fatalf("runAsk = %d, want %d; output=%s", got, tt.want, stdout.String())
			}
			if asker.gotConc != 3 {
				t.Fatalf("concurrency = %d, want 3", asker.gotConc)
			}
		})
	}
}

func TestRunAsk_NDJSONEventStream(t *testing.T) {
	var stdout bytes.Buffer
	asker := &fakeAsker{results: []engine.BatchResult{
		{Index: 1, Answer: okAnswer("acme/b")},
		{Index: 0, Err: errors.New("boom")},
	}}
	code := runAsk(context.Background(), askConfig(), asker, testRequests("acme/a", "acme/b"), &stdout)
	if code != 2 {
		t.Fatalf("runAsk = %d, want 2", code)
	}

	want := []string{"run.started", "request.started", "request.started", "answer", "request.failed", "run.finished"}
	if diff := cmp.Diff(want, eventTypes(t, stdout.Bytes())); diff != "" {
		t.Fatalf("unexpected event stream (-want +got):\n%s", diff)
	}
	if !strings.Contains(stdout.String(), `"error":"boom"`) || !strings.Contains(stdout.String(), `"exit_code":2`) {
		t.Fatalf("expected failure and exit code in the stream; output=%s", stdout.String())
	}
}

func TestRunAsk_TextConsole(t *testing.T) {
	var stdout bytes.Buffer
	c := config.New()
	asker := &fakeAsker{results: []engine.BatchResult{{Index: 0, Answer: okAnswer("acme/a")}}}
	if code := runAsk(context.Background(), c, asker, testRequests("acme/a"), &stdout); code != 0 {
		t.Fatalf("runAsk = %d, want 0", code)
	}
	if !strings.Contains(stdout.String(), "acme/a") {
		t.Fatalf("expected console output for the answer; output=%s", stdout.String())
	}
}

func TestRunAsk_BadSinkIsFatal(t *testing.T) {
	c := askConfig()
	c.Output.Emit = []string{"xml"}
	if code := runAsk(context.Background(), c, &fakeAsker{}, testRequests("acme/a"), &bytes.Buffer{}); code != 3 {
		t.Fatalf("runAsk = %d, want 3", code)
	}
}
