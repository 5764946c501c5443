// Package intent holds the request vocabulary shared by routing, the pipeline
// and the cache key space, plus the default keyword classifier.
package intent

import (
	"context"
	"fmt"
	"strings"
)

// Strategy selects how a request is executed.
type Strategy string

const (
	Targeted    Strategy = "targeted"
	Full        Strategy = "full"
	Reinterpret Strategy = "reinterpret"
)

// Depth controls how much of the pipeline runs.
type Depth string

const (
	Quick    Depth = "quick"
	Standard Depth = "standard"
	Thorough Depth = "thorough"
)

// ParseDepth accepts quick|standard|thorough; "deep" is an alias of thorough.
func ParseDepth(raw string) (Depth, error) {
	switch v := strings.ToLower(strings.TrimSpace(raw)); v {
	case "quick":
		return Quick, nil
	case "", "standard":
		return Standard, nil
	case "thorough", "deep":
		return Thorough, nil
	default:
		return "", fmt.Errorf("unsupported depth %q (must be one of: quick, standard, thorough)", raw)
	}
}

// Depths lists every depth, deepest first. Reinterpretation searches for a
// source result in this order after the requested depth.
func Depths() []Depth {
	return []Depth{Thorough, Standard, Quick}
}

// ExecutionIntent is produced once per request and not modified afterwards.
type ExecutionIntent struct {
	Strategy      Strategy `json:"strategy"`
	TargetedTopic string   `json:"targeted_topic,omitempty"`
	Depth         Depth    `json:"depth"`
	ForceRefresh  bool     `json:"force_refresh"`

	ReinterpretPerspective string `json:"reinterpret_perspective,omitempty"`
	ReinterpretDetail      string `json:"reinterpret_detail,omitempty"`

	Confidence float64 `json:"confidence"`

	// Analyzers are the fan-out analyzers requested on top of the pipeline.
	Analyzers []string `json:"analyzers,omitempty"`
}

// Classifier turns a question into an ExecutionIntent.
type Classifier interface {
	Classify(ctx context.Context, question string) (ExecutionIntent, error)
}

// AnalysisType names the cache key segment an intent's result is stored
// under.
func (i ExecutionIntent) AnalysisType() string {
	switch i.Strategy {
	case Targeted:
		topic := i.TargetedTopic
		if topic == "" {
			topic = "overview"
		}
		return "targeted." + topic
	case Reinterpret:
		p := i.ReinterpretPerspective
		if p == "" {
			p = "general"
		}
		d := i.ReinterpretDetail
		if d == "" {
			d = "standard"
		}
		return "reinterpret." + p + "." + d
	default:
		return FullAnalysisType
	}
}

// FullAnalysisType is the cache segment for primary Full results, the
// source material for reinterpretation.
const FullAnalysisType = "full"
