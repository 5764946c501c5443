package engine

import (
	"time"

	"reposcope/internal/aggregate"
	"reposcope/internal/analyzers"
	"reposcope/internal/cache"
	"reposcope/internal/data"
	"reposcope/internal/fanout"
	"reposcope/internal/intent"
	"reposcope/internal/pipeline"
	"reposcope/internal/router"
)

// Request is one question about one repository.
type Request struct {
	Repo     data.RepoRef `json:"repo"`
	Question string       `json:"question"`
	// SessionID selects the session cache tier; empty means none.
	SessionID    string `json:"session_id,omitempty"`
	ForceRefresh bool   `json:"force_refresh,omitempty"`
	// Depth overrides the classified depth when set.
	Depth intent.Depth `json:"depth,omitempty"`
	// Analyzers are run in addition to the classified ones.
	Analyzers []string `json:"analyzers,omitempty"`
}

// CacheInfo says whether, and how, the answer came from the cache.
type CacheInfo struct {
	Hit       bool             `json:"hit"`
	Tier      cache.Tier       `json:"tier,omitempty"`
	Key       string           `json:"key"`
	Age       time.Duration    `json:"-"`
	AgeMS     int64            `json:"age_ms,omitempty"`
	Stale     bool             `json:"stale,omitempty"`
	Freshness router.Freshness `json:"freshness"`
}

// Answer is the final, aggregated response to a Request.
type Answer struct {
	RequestID string                 `json:"request_id"`
	Repo      string                 `json:"repo"`
	Question  string                 `json:"question"`
	Intent    intent.ExecutionIntent `json:"intent"`

	StrategyUsed intent.Strategy `json:"strategy_used"`
	// Downgraded is set when a reinterpretation had no source material and
	// ran the full pipeline instead.
	Downgraded bool `json:"downgraded,omitempty"`

	PerAnalyzerResults map[string]analyzers.Result `json:"per_analyzer_results"`
	OverallQuality     analyzers.Quality           `json:"overall_quality"`
	OverallConfidence  float64                     `json:"overall_confidence"`
	Conflicts          []aggregate.Conflict        `json:"conflicts,omitempty"`
	MissingInfo        []string                    `json:"missing_info,omitempty"`
	Sources            []analyzers.Source          `json:"sources,omitempty"`

	Summary       string `json:"summary"`
	SummarySource string `json:"summary_source,omitempty"`

	Timings        map[string]time.Duration `json:"-"`
	TimingsByStage map[string]int64         `json:"timings_ms"`
	Calls          []fanout.AgentCallRecord `json:"calls,omitempty"`
	Cache          CacheInfo                `json:"cache"`

	// Pipeline is the primary run's output, on Full answers computed now or
	// served from the cache.
	Pipeline *pipeline.Output    `json:"pipeline,omitempty"`
	Error    *pipeline.ErrorInfo `json:"error,omitempty"`
}

// Failed reports whether the answer carries a fatal error or no successful
// analyzer result.
func (a *Answer) Failed() bool {
	return a == nil || a.Error != nil || a.OverallQuality == analyzers.QualityFailed
}

func (a *Answer) setTimings(t map[string]time.Duration) {
	a.Timings = t
	a.TimingsByStage = make(map[string]int64, len(t))
	for k, d := range t {
		a.TimingsByStage[k] = d.Milliseconds()
	}
}
