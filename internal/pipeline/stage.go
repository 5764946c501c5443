// Package pipeline runs the Full analysis of one repository as an explicit
// stage machine over a typed state record.
package pipeline

import "reposcope/internal/intent"

// Stage is one node of the analysis.
type Stage string

const (
	FetchSnapshot     Stage = "fetch_snapshot"
	AnalyzeDocs       Stage = "analyze_docs"
	AnalyzeActivity   Stage = "analyze_activity"
	AnalyzeStructure  Stage = "analyze_structure"
	ParseDependencies Stage = "parse_dependencies"
	ComputeScores     Stage = "compute_scores"
	GenerateSummary   Stage = "generate_summary"
	BuildOutput       Stage = "build_output"
	ErrorCheck        Stage = "error_check"

	// Done is the terminal marker; no stage runs for it.
	Done Stage = "done"
)

// Stages lists the main path in execution order.
func Stages() []Stage {
	return []Stage{FetchSnapshot, AnalyzeDocs, AnalyzeActivity, AnalyzeStructure, ParseDependencies, ComputeScores, GenerateSummary, BuildOutput}
}

// EnrichmentStages depend only on fetch_snapshot and run concurrently.
func EnrichmentStages() []Stage {
	return []Stage{AnalyzeDocs, AnalyzeActivity, AnalyzeStructure, ParseDependencies}
}

// Retryable stages are attempted up to MaxRetries+1 times.
func (s Stage) Retryable() bool {
	switch s {
	case FetchSnapshot, AnalyzeDocs, AnalyzeActivity, AnalyzeStructure:
		return true
	default:
		return false
	}
}

// Optional stages are skipped, with the error preserved, when they fail.
func (s Stage) Optional() bool {
	return s == ParseDependencies || s == GenerateSummary
}

// skippedAt reports whether depth leaves s out.
func (s Stage) skippedAt(d intent.Depth) bool {
	return d == intent.Quick && (s == AnalyzeStructure || s == ParseDependencies)
}

// next is the transition function. Any stage with st.Err set goes to
// error_check, which always hands over to build_output.
func next(s Stage, st *State) Stage {
	switch s {
	case BuildOutput, Done:
		return Done
	case ErrorCheck:
		return BuildOutput
	}
	if st.Err != nil {
		return ErrorCheck
	}
	switch s {
	case FetchSnapshot:
		return AnalyzeDocs
	case AnalyzeDocs:
		return AnalyzeActivity
	case AnalyzeActivity:
		return AnalyzeStructure
	case AnalyzeStructure:
		return ParseDependencies
	case ParseDependencies:
		return ComputeScores
	case ComputeScores:
		return GenerateSummary
	case GenerateSummary:
		return BuildOutput
	default:
		return ErrorCheck
	}
}
