// Package aggregate merges analyzer results into one graded answer.
package aggregate

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"reposcope/internal/analyzers"
)

// Agent names the aggregator knows about beyond the built-in analyzers.
const AgentPipeline = "pipeline"

// Pipeline result metrics, produced from a Full run's scores.
const (
	MetricHealth        analyzers.Metric = "pipeline.health"
	MetricDocumentation analyzers.Metric = "pipeline.documentation"
	MetricActivity      analyzers.Metric = "pipeline.activity"
	MetricStructure     analyzers.Metric = "pipeline.structure"
	MetricDependencies  analyzers.Metric = "pipeline.dependencies"
)

// ConflictRule compares two metrics of two results. Invert compares Left
// against 100 - Right, for a risk-style metric facing a health-style one.
type ConflictRule struct {
	Name       string
	LeftAgent  string
	Left       analyzers.Metric
	RightAgent string
	Right      analyzers.Metric
	Invert     bool
}

// GapRule maps request keywords to the analyzer that answers them. A
// successful pipeline result carrying Metric answers them as well.
type GapRule struct {
	Keywords []string
	Agent    string
	Metric   analyzers.Metric
}

// Policy holds the aggregation knobs.
type Policy struct {
	// ConflictThreshold is exclusive: only a larger difference conflicts.
	ConflictThreshold float64
	Conflicts         []ConflictRule
	Gaps              []GapRule
	// GapOnFailure also reports a gap when the answering analyzer ran but
	// failed.
	GapOnFailure bool
}

func DefaultPolicy() Policy {
	return Policy{
		ConflictThreshold: 30,
		Conflicts: []ConflictRule{
			{Name: "health_vs_security", LeftAgent: AgentPipeline, Left: MetricHealth, RightAgent: "security", Right: analyzers.MetricSecurityRisk, Invert: true},
			{Name: "documentation_vs_onboarding", LeftAgent: AgentPipeline, Left: MetricDocumentation, RightAgent: "onboarding", Right: analyzers.MetricOnboardingReadiness},
		},
		Gaps: []GapRule{
			{Keywords: []string{"diagnos", "health", "problem"}, Agent: AgentPipeline},
			{Keywords: []string{"security", "vulnerab", "secret"}, Agent: "security"},
			{Keywords: []string{"onboard", "contribut", "getting started"}, Agent: "onboarding"},
			{Keywords: []string{"structure", "architecture", "layout"}, Agent: "structure", Metric: MetricStructure},
		},
	}
}

// Conflict is a disagreement between two successful results. It is
// reported, never raised.
type Conflict struct {
	Rule       string  `json:"rule"`
	LeftAgent  string  `json:"left_agent"`
	Left       float64 `json:"left"`
	RightAgent string  `json:"right_agent"`
	Right      float64 `json:"right"`
	Difference float64 `json:"difference"`
}

func (c Conflict) String() string {
	return fmt.Sprintf("%s: %s=%.0f vs %s=%.0f (difference %.0f)", c.Rule, c.LeftAgent, c.Left, c.RightAgent, c.Right, c.Difference)
}

// Result is the merged answer.
type Result struct {
	PerAgent          map[string]analyzers.Result `json:"per_agent"`
	OverallQuality    analyzers.Quality           `json:"overall_quality"`
	OverallConfidence float64                     `json:"overall_confidence"`
	Conflicts         []Conflict                  `json:"conflicts,omitempty"`
	MissingInfo       []string                    `json:"missing_info,omitempty"`
	Sources           []analyzers.Source          `json:"sources,omitempty"`
}

// Aggregate merges results with the default policy.
func Aggregate(results map[string]analyzers.Result, request string) Result {
	return DefaultPolicy().Aggregate(results, request)
}

func (p Policy) Aggregate(results map[string]analyzers.Result, request string) Result {
	out := Result{PerAgent: results, OverallQuality: analyzers.QualityFailed}

	var sum float64
	var ok int
	for _, name := range sortedNames(results) {
		r := results[name]
		if !r.OK {
			continue
		}
		ok++
		sum += r.Confidence
		if ok == 1 || r.Quality.Rank() < out.OverallQuality.Rank() {
			out.OverallQuality = r.Quality
		}
	}
	if ok > 0 {
		out.OverallConfidence = math.Round(sum/float64(ok)*1000) / 1000
	}

	out.Conflicts = p.conflicts(results)
	out.MissingInfo = p.gaps(results, request)
	out.Sources = mergeSources(results)
	return out
}

func (p Policy) conflicts(results map[string]analyzers.Result) []Conflict {
	var out []Conflict
	for _, rule := range p.Conflicts {
		l, lok := results[rule.LeftAgent]
		r, rok := results[rule.RightAgent]
		if !lok || !rok || !l.OK || !r.OK {
			continue
		}
		lv, ok1 := l.Metric(rule.Left)
		rv, ok2 := r.Metric(rule.Right)
		if !ok1 || !ok2 {
			continue
		}
		cmp := rv
		if rule.Invert {
			cmp = 100 - rv
		}
		diff := math.Abs(lv - cmp)
		if diff > p.ConflictThreshold {
			out = append(out, Conflict{Rule: rule.Name, LeftAgent: rule.LeftAgent, Left: lv, RightAgent: rule.RightAgent, Right: rv, Difference: diff})
		}
	}
	return out
}

func (p Policy) gaps(results map[string]analyzers.Result, request string) []string {
	q := strings.ToLower(request)
	var out []string
	seen := map[string]bool{}
	for _, rule := range p.Gaps {
		kw, hit := firstKeyword(q, rule.Keywords)
		if !hit || seen[rule.Agent] {
			continue
		}
		if coveredByPipeline(results, rule.Metric) {
			continue
		}
		r, present := results[rule.Agent]
		if present && (r.OK || !p.GapOnFailure) {
			continue
		}
		seen[rule.Agent] = true
		reason := "no " + rule.Agent + " analysis was run"
		if present {
			reason = rule.Agent + " analysis failed"
		}
		out = append(out, fmt.Sprintf("request mentions %q but %s", kw, reason))
	}
	return out
}

func coveredByPipeline(results map[string]analyzers.Result, m analyzers.Metric) bool {
	if m == "" {
		return false
	}
	r, ok := results[AgentPipeline]
	if !ok || !r.OK {
		return false
	}
	_, has := r.Metric(m)
	return has
}

func firstKeyword(q string, keywords []string) (string, bool) {
	for _, k := range keywords {
		if strings.Contains(q, k) {
			return k, true
		}
	}
	return "", false
}

// mergeSources dedupes by URL keeping the highest relevance, then orders by
// relevance descending and URL.
func mergeSources(results map[string]analyzers.Result) []analyzers.Source {
	best := map[string]analyzers.Source{}
	for _, r := range results {
		for _, s := range r.Evidence {
			if s.URL == "" {
				continue
			}
			if cur, ok := best[s.URL]; !ok || s.Relevance > cur.Relevance || (s.Relevance == cur.Relevance && s.Title < cur.Title) {
				best[s.URL] = s
			}
		}
	}
	out := make([]analyzers.Source, 0, len(best))
	for _, s := range best {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Relevance != out[j].Relevance {
			return out[i].Relevance > out[j].Relevance
		}
		return out[i].URL < out[j].URL
	})
	return out
}

func sortedNames(m map[string]analyzers.Result) []string {
	names := make([]string, 0, len(m))
	for n := range m {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
