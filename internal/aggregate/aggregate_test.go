package aggregate

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"reposcope/internal/analyzers"
)

func ok(agent string, q analyzers.Quality, conf float64, metrics map[analyzers.Metric]float64, ev ...analyzers.Source) analyzers.Result {
	return analyzers.Result{Agent: agent, OK: true, Quality: q, Confidence: conf, Metrics: metrics, Evidence: ev}
}

func failed(agent string) analyzers.Result {
	return analyzers.Result{Agent: agent, Quality: analyzers.QualityFailed, Confidence: 0.99, Error: "timeout"}
}

func TestAggregate_PessimisticQuality(t *testing.T) {
	tests := []struct {
		name    string
		results map[string]analyzers.Result
		want    analyzers.Quality
		conf    float64
	}{
		{
			name:    "high and low",
			results: map[string]analyzers.Result{"a": ok("a", analyzers.QualityHigh, 0.9, nil), "b": ok("b", analyzers.QualityLow, 0.5, nil)},
			want:    analyzers.QualityLow,
			conf:    0.7,
		},
		{
			name:    "failures are ignored",
			results: map[string]analyzers.Result{"a": ok("a", analyzers.QualityMedium, 0.8, nil), "b": failed("b")},
			want:    analyzers.QualityMedium,
			conf:    0.8,
		},
		{
			name:    "nothing succeeded",
			results: map[string]analyzers.Result{"a": failed("a"), "b": failed("b")},
			want:    analyzers.QualityFailed,
			conf:    0,
		},
		{
			name:    "empty",
			results: map[string]analyzers.Result{},
			want:    analyzers.QualityFailed,
			conf:    0,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Aggregate(tt.results, "")
			if got.OverallQuality != tt.want || got.OverallConfidence != tt.conf {
				t.Fatalf("got %s/%v, want %s/%v", got.OverallQuality, got.OverallConfidence, tt.want, tt.conf)
			}
		})
	}
}

func TestAggregate_ConflictThreshold(t *testing.T) {
	tests := []struct {
		name   string
		health float64
		risk   float64
		want   bool
	}{
		{"agree", 80, 20, false},
		{"below threshold", 80, 49, false},
		{"at threshold", 80, 50, false},
		{"above threshold", 80, 51, true},
		{"far apart", 90, 90, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			results := map[string]analyzers.Result{
				AgentPipeline: ok(AgentPipeline, analyzers.QualityHigh, 0.9, map[analyzers.Metric]float64{MetricHealth: tt.health}),
				"security":    ok("security", analyzers.QualityLow, 0.8, map[analyzers.Metric]float64{analyzers.MetricSecurityRisk: tt.risk}),
			}
			got := Aggregate(results, "")
			if (len(got.Conflicts) == 1) != tt.want {
				t.Fatalf("conflicts = %+v, want conflict=%t", got.Conflicts, tt.want)
			}
			if tt.want && got.Conflicts[0].Rule != "health_vs_security" {
				t.Fatalf("unexpected rule %s", got.Conflicts[0].Rule)
			}
		})
	}
}

func TestAggregate_ConflictNeedsBothSuccessful(t *testing.T) {
	results := map[string]analyzers.Result{
		AgentPipeline: ok(AgentPipeline, analyzers.QualityHigh, 0.9, map[analyzers.Metric]float64{MetricDocumentation: 90}),
		"onboarding":  failed("onboarding"),
	}
	if got := Aggregate(results, ""); len(got.Conflicts) != 0 {
		t.Fatalf("failed results never conflict: %+v", got.Conflicts)
	}

	results["onboarding"] = ok("onboarding", analyzers.QualityLow, 0.7, map[analyzers.Metric]float64{analyzers.MetricOnboardingReadiness: 40})
	got := Aggregate(results, "")
	if len(got.Conflicts) != 1 || got.Conflicts[0].Difference != 50 {
		t.Fatalf("expected documentation vs onboarding conflict, got %+v", got.Conflicts)
	}
	if !strings.Contains(got.Conflicts[0].String(), "documentation_vs_onboarding") {
		t.Fatalf("unexpected conflict text %q", got.Conflicts[0].String())
	}
}

func TestAggregate_MissingInfo(t *testing.T) {
	results := map[string]analyzers.Result{
		AgentPipeline: ok(AgentPipeline, analyzers.QualityHigh, 0.9, nil),
		"security":    failed("security"),
	}
	tests := []struct {
		name    string
		request string
		policy  func(*Policy)
		want    int
	}{
		{"no keywords", "tell me about this repo", nil, 0},
		{"present analyzer", "give me a health diagnosis", nil, 0},
		{"failed is not a gap by default", "any security problems?", nil, 0},
		{"absent analyzer", "how do I start to contribute?", nil, 1},
		{"several absent", "onboarding and architecture overview", nil, 2},
		{"gap on failure", "any secrets leaked?", func(p *Policy) { p.GapOnFailure = true }, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := DefaultPolicy()
			if tt.policy != nil {
				tt.policy(&p)
			}
			got := p.Aggregate(results, tt.request)
			if len(got.MissingInfo) != tt.want {
				t.Fatalf("missing_info = %v, want %d entries", got.MissingInfo, tt.want)
			}
		})
	}
}

func TestAggregate_MissingInfoAnsweredByPipelineMetric(t *testing.T) {
	withStructure := ok(AgentPipeline, analyzers.QualityHigh, 0.9, map[analyzers.Metric]float64{MetricHealth: 80, MetricStructure: 70})
	withoutStructure := ok(AgentPipeline, analyzers.QualityHigh, 0.9, map[analyzers.Metric]float64{MetricHealth: 80})
	failedPipeline := failed(AgentPipeline)
	failedPipeline.Metrics = map[analyzers.Metric]float64{MetricStructure: 70}

	tests := []struct {
		name     string
		pipeline analyzers.Result
		want     int
	}{
		{"pipeline scored structure", withStructure, 0},
		{"structure skipped", withoutStructure, 1},
		{"failed pipeline", failedPipeline, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Aggregate(map[string]analyzers.Result{AgentPipeline: tt.pipeline}, "Analyze the architecture of this repo")
			if len(got.MissingInfo) != tt.want {
				t.Fatalf("missing_info = %v, want %d entries", got.MissingInfo, tt.want)
			}
		})
	}
}

func TestAggregate_Sources(t *testing.T) {
	results := map[string]analyzers.Result{
		"docs": ok("docs", analyzers.QualityHigh, 0.9, nil,
			analyzers.Source{URL: "https://x/readme", Title: "README", Relevance: 0.9},
			analyzers.Source{URL: "https://x/repo", Title: "repo", Relevance: 0.5},
		),
		"onboarding": ok("onboarding", analyzers.QualityHigh, 0.9, nil,
			analyzers.Source{URL: "https://x/readme", Title: "README", Relevance: 0.95},
			analyzers.Source{URL: "https://x/contributing", Title: "CONTRIBUTING", Relevance: 0.5},
			analyzers.Source{URL: "", Title: "dropped", Relevance: 1},
		),
	}
	got := Aggregate(results, "").Sources
	want := []analyzers.Source{
		{URL: "https://x/readme", Title: "README", Relevance: 0.95},
		{URL: "https://x/contributing", Title: "CONTRIBUTING", Relevance: 0.5},
		{URL: "https://x/repo", Title: "repo", Relevance: 0.5},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("unexpected sources (-want +got):\n%s", diff)
	}
}
