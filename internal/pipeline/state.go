package pipeline

import (
	"time"

	"reposcope/internal/data"
	"reposcope/internal/intent"
	"reposcope/internal/scoring"
	"reposcope/internal/snapshot"
)

// Status is the outcome of one stage.
type Status string

const (
	StatusOK      Status = "ok"
	StatusReused  Status = "reused"
	StatusSkipped Status = "skipped"
	StatusFailed  Status = "failed"
)

// StageReport records how a stage went.
type StageReport struct {
	Stage      Stage         `json:"stage"`
	Status     Status        `json:"status"`
	Attempts   int           `json:"attempts"`
	Duration   time.Duration `json:"-"`
	DurationMS int64         `json:"duration_ms"`
	Error      string        `json:"error,omitempty"`
}

// State is threaded through the stages. A nil stage output means the stage
// has not produced one; a non-nil output is never recomputed.
type State struct {
	Ref   data.RepoRef
	Depth intent.Depth

	Snapshot  *snapshot.Snapshot
	Docs      *scoring.DocsResult
	Activity  *scoring.ActivityResult
	Structure *scoring.StructureResult
	Deps      *scoring.DependencyResult
	Scores    *scoring.Scores
	Summary   *string

	// Err is set by a fatal failure. Once set, every stage except
	// error_check and build_output is a no-op, and only error_check clears
	// it.
	Err         error
	FailedStage Stage
	RetryCount  int

	// Skipped holds stages left out. A nil error means the depth excluded
	// the stage; otherwise it is the OptionalStageError that caused it.
	Skipped map[Stage]error
	// Failed holds retryable stages that exhausted their attempts.
	Failed map[Stage]error
	// Fatal is the error error_check took off Err.
	Fatal error

	Reports map[Stage]StageReport

	summarySource string
}

// NewState starts a run for ref at depth.
func NewState(ref data.RepoRef, depth intent.Depth) *State {
	if depth == "" {
		depth = intent.Standard
	}
	return &State{
		Ref:     ref,
		Depth:   depth,
		Skipped: make(map[Stage]error),
		Failed:  make(map[Stage]error),
		Reports: make(map[Stage]StageReport),
	}
}

func (st *State) ensureMaps() {
	if st.Skipped == nil {
		st.Skipped = make(map[Stage]error)
	}
	if st.Failed == nil {
		st.Failed = make(map[Stage]error)
	}
	if st.Reports == nil {
		st.Reports = make(map[Stage]StageReport)
	}
}

// has reports whether s already produced its output.
func (st *State) has(s Stage) bool {
	switch s {
	case FetchSnapshot:
		return st.Snapshot != nil
	case AnalyzeDocs:
		return st.Docs != nil
	case AnalyzeActivity:
		return st.Activity != nil
	case AnalyzeStructure:
		return st.Structure != nil
	case ParseDependencies:
		return st.Deps != nil
	case ComputeScores:
		return st.Scores != nil
	case GenerateSummary:
		return st.Summary != nil
	default:
		return false
	}
}
