// Package analyzers defines the fan-out analyzer contract, its fixed result
// schema and the built-in analyzers that work from a repository snapshot.
package analyzers

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"reposcope/internal/data"
	"reposcope/internal/intent"
	"reposcope/internal/snapshot"
)

// ErrNoSnapshot is returned by analyzers that need repository data when the
// input carries none or a failed one.
var ErrNoSnapshot = errors.New("no usable repository snapshot")

// Quality grades one result.
type Quality string

const (
	QualityHigh   Quality = "high"
	QualityMedium Quality = "medium"
	QualityLow    Quality = "low"
	QualityFailed Quality = "failed"
)

// Rank orders qualities; Failed is lowest.
func (q Quality) Rank() int {
	switch q {
	case QualityHigh:
		return 3
	case QualityMedium:
		return 2
	case QualityLow:
		return 1
	default:
		return 0
	}
}

// QualityForScore maps a 0-100 score to a quality band.
func QualityForScore(score int) Quality {
	switch {
	case score >= 75:
		return QualityHigh
	case score >= 50:
		return QualityMedium
	default:
		return QualityLow
	}
}

// Metric names one numeric field of a result, namespaced by analyzer.
type Metric string

// Source is a piece of evidence behind a result.
type Source struct {
	URL       string  `json:"url"`
	Title     string  `json:"title,omitempty"`
	Relevance float64 `json:"relevance"`
}

// Result is the one schema every analyzer returns.
type Result struct {
	Agent      string             `json:"agent"`
	OK         bool               `json:"ok"`
	Quality    Quality            `json:"quality"`
	Confidence float64            `json:"confidence"`
	Metrics    map[Metric]float64 `json:"metrics,omitempty"`
	Summary    string             `json:"summary,omitempty"`
	Evidence   []Source           `json:"evidence,omitempty"`
	Error      string             `json:"error,omitempty"`

	// Err keeps the typed cause for the current process; it is not cached.
	Err error `json:"-"`
}

// Failed builds the result recorded for an analyzer that did not produce
// one.
func Failed(agent string, err error) Result {
	r := Result{Agent: agent, Quality: QualityFailed, Err: err}
	if err != nil {
		r.Error = err.Error()
	}
	return r
}

// Metric returns the named metric and whether it is present.
func (r Result) Metric(m Metric) (float64, bool) {
	v, ok := r.Metrics[m]
	return v, ok
}

// Input is what every analyzer receives. The fan-out hands each analyzer its
// own Clone.
type Input struct {
	Ref      data.RepoRef
	Depth    intent.Depth
	Question string
	Snapshot *snapshot.Snapshot
	// Now pins the clock; zero means time.Now.
	Now time.Time
}

func (in Input) Clone() Input {
	in.Snapshot = in.Snapshot.Clone()
	return in
}

func (in Input) now() time.Time {
	if in.Now.IsZero() {
		return time.Now()
	}
	return in.Now
}

func (in Input) usableSnapshot() (*snapshot.Snapshot, error) {
	if in.Snapshot == nil || !in.Snapshot.OK {
		return nil, ErrNoSnapshot
	}
	return in.Snapshot, nil
}

// Analyzer is one independently runnable analysis.
type Analyzer interface {
	Name() string
	Description() string
	// Metrics declares every metric a successful result carries.
	Metrics() []Metric
	Analyze(ctx context.Context, in Input) (Result, error)
}

// MissingMetrics lists declared metrics absent from r, sorted.
func MissingMetrics(a Analyzer, r Result) []Metric {
	var missing []Metric
	for _, m := range a.Metrics() {
		if _, ok := r.Metrics[m]; !ok {
			missing = append(missing, m)
		}
	}
	sort.Slice(missing, func(i, j int) bool { return missing[i] < missing[j] })
	return missing
}

// SchemaError reports a successful result that did not carry its declared
// metrics.
type SchemaError struct {
	Agent   string
	Missing []Metric
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("analyzer %s result missing declared metrics %v", e.Agent, e.Missing)
}
