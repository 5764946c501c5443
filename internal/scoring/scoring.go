// Package scoring holds the bounded heuristics behind each pipeline stage.
// Every function is pure and returns a 0-100 score.
package scoring

import "math"

func clamp(v float64) int {
	return int(math.Round(math.Max(0, math.Min(100, v))))
}

// Scores is the compute_scores output.
type Scores struct {
	// Health weights every component scored; absent components are dropped
	// from the weighting instead of counting as zero.
	Health        int  `json:"health"`
	Documentation int  `json:"documentation"`
	Activity      *int `json:"activity,omitempty"`
	Structure     *int `json:"structure,omitempty"`
	Dependencies  *int `json:"dependencies,omitempty"`
	// Onboarding blends documentation and structure.
	Onboarding int `json:"onboarding"`
}

var weights = struct{ docs, activity, structure, deps float64 }{0.3, 0.3, 0.2, 0.2}

// Compute combines stage results. Any argument may be nil.
func Compute(docs *DocsResult, activity *ActivityResult, structure *StructureResult, deps *DependencyResult) Scores {
	var out Scores
	var sum, total float64
	add := func(score int, w float64) {
		sum += float64(score) * w
		total += w
	}

	if docs != nil {
		out.Documentation = docs.Score
		add(docs.Score, weights.docs)
	}
	if activity != nil {
		v := activity.Score
		out.Activity = &v
		add(v, weights.activity)
	}
	if structure != nil {
		v := structure.Score
		out.Structure = &v
		add(v, weights.structure)
	}
	if deps != nil {
		v := deps.Score
		out.Dependencies = &v
		add(v, weights.deps)
	}
	if total > 0 {
		out.Health = clamp(sum / total)
	}

	switch {
	case docs != nil && structure != nil:
		out.Onboarding = clamp(0.6*float64(docs.Score) + 0.4*float64(structure.Score))
	case docs != nil:
		out.Onboarding = docs.Score
	case structure != nil:
		out.Onboarding = structure.Score
	}
	return out
}
