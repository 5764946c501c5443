package output

import (
	"reposcope/internal/aggregate"
	"reposcope/internal/analyzers"
	"reposcope/internal/engine"
	"reposcope/internal/intent"
	"reposcope/internal/pipeline"
	"reposcope/internal/router"
)

func answer(repo string, q analyzers.Quality) *engine.Answer {
	return &engine.Answer{
		RequestID:    "req-" + repo,
		Repo:         repo,
		Question:     "Give me a health diagnosis",
		Intent:       intent.ExecutionIntent{Strategy: intent.Full, Depth: intent.Standard},
		StrategyUsed: intent.Full,
		PerAnalyzerResults: map[string]analyzers.Result{
			aggregate.AgentPipeline: {Agent: aggregate.AgentPipeline, OK: true, Quality: q, Confidence: 0.9, Summary: repo + " scores 70/100 overall."},
		},
		OverallQuality:    q,
		OverallConfidence: 0.9,
		Summary:           repo + " scores 70/100 overall.",
		TimingsByStage:    map[string]int64{"fetch_snapshot": 12, "total": 40},
		Cache:             engine.CacheInfo{Key: "reposcope:v1:" + repo + "@HEAD:full:standard", Freshness: router.Miss},
	}
}

// troubled has a failed analyzer, a conflict, a gap and a stale cache hit.
func troubled() *engine.Answer {
	a := answer("acme/gadgets", analyzers.QualityLow)
	a.PerAnalyzerResults["security"] = analyzers.Result{Agent: "security", Quality: analyzers.QualityFailed, Error: "context deadline exceeded"}
	a.Conflicts = []aggregate.Conflict{{Rule: "health_vs_security", LeftAgent: "pipeline", Left: 90, RightAgent: "security", Right: 80, Difference: 70}}
	a.MissingInfo = []string{`request mentions "onboard" but no onboarding analysis was run`}
	a.Sources = []analyzers.Source{{URL: "https://github.com/acme/gadgets", Title: "acme/gadgets", Relevance: 0.6}}
	a.Cache = engine.CacheInfo{Hit: true, Tier: "process", Stale: true, AgeMS: 15 * 60_000, Freshness: router.Stale}
	return a
}

func fatal() *engine.Answer {
	a := answer("acme/ghost", analyzers.QualityFailed)
	a.PerAnalyzerResults = map[string]analyzers.Result{aggregate.AgentPipeline: {Agent: aggregate.AgentPipeline, Quality: analyzers.QualityFailed, Error: "repository not found"}}
	a.OverallConfidence = 0
	a.Error = &pipeline.ErrorInfo{Stage: pipeline.FetchSnapshot, Message: "repository not found", NotFound: true}
	return a
}
