package pipeline

import (
	"errors"
	"sort"
	"time"

	"reposcope/internal/data"
	"reposcope/internal/data/models"
	"reposcope/internal/intent"
	"reposcope/internal/scoring"
	"reposcope/internal/snapshot"
	"reposcope/internal/summarize"
)

// ErrorInfo is the structured error of a fatal run.
type ErrorInfo struct {
	Stage    Stage  `json:"stage"`
	Message  string `json:"message"`
	NotFound bool   `json:"not_found,omitempty"`
	Retries  int    `json:"retries"`
}

// Output is what build_output produces on every path. Fields of stages that
// did not run are nil.
type Output struct {
	Repo     string               `json:"repo"`
	SHA      string               `json:"sha,omitempty"`
	Depth    intent.Depth         `json:"depth"`
	OK       bool                 `json:"ok"`
	Metadata *models.RepoMetadata `json:"metadata,omitempty"`

	Scores    *scoring.Scores           `json:"scores,omitempty"`
	Docs      *scoring.DocsResult       `json:"docs,omitempty"`
	Activity  *scoring.ActivityResult   `json:"activity,omitempty"`
	Structure *scoring.StructureResult  `json:"structure,omitempty"`
	Deps      *scoring.DependencyResult `json:"dependencies,omitempty"`

	Summary       string `json:"summary"`
	SummarySource string `json:"summary_source"`

	Stages []StageReport `json:"stages"`
	// Skipped maps stage to reason; "depth" when the depth excluded it.
	Skipped map[Stage]string `json:"skipped,omitempty"`
	Failed  map[Stage]string `json:"failed,omitempty"`
	// Missing lists snapshot data that could not be fetched.
	Missing map[data.DependencyKey]string `json:"missing,omitempty"`

	Error *ErrorInfo `json:"error,omitempty"`
}

// Timings returns stage durations keyed by stage name.
func (o *Output) Timings() map[string]time.Duration {
	out := make(map[string]time.Duration, len(o.Stages))
	for _, r := range o.Stages {
		out[string(r.Stage)] = r.Duration
	}
	return out
}

// SummaryInput rebuilds what a summarizer needs from a finished run, for
// re-explaining it from another perspective.
func (o *Output) SummaryInput(perspective, detail string) summarize.Input {
	in := summarize.Input{
		Repo:        o.Repo,
		Scores:      o.Scores,
		Docs:        o.Docs,
		Activity:    o.Activity,
		Structure:   o.Structure,
		Deps:        o.Deps,
		Perspective: perspective,
		Detail:      detail,
	}
	if o.Metadata != nil {
		in.Description = o.Metadata.Description
		in.Language = o.Metadata.Language
	}
	for s := range o.Skipped {
		in.Skipped = append(in.Skipped, string(s))
	}
	for s := range o.Failed {
		in.Failed = append(in.Failed, string(s))
	}
	sort.Strings(in.Skipped)
	sort.Strings(in.Failed)
	return in
}

func summaryInput(st *State) summarize.Input {
	in := summarize.Input{
		Repo:      st.Ref.FullName(),
		Scores:    st.Scores,
		Docs:      st.Docs,
		Activity:  st.Activity,
		Structure: st.Structure,
		Deps:      st.Deps,
	}
	if st.Snapshot != nil {
		in.Repo = st.Snapshot.FullName()
		if md := st.Snapshot.Metadata; md != nil {
			in.Description = md.Description
			in.Language = md.Language
		}
	}
	for s := range st.Skipped {
		in.Skipped = append(in.Skipped, string(s))
	}
	for s := range st.Failed {
		in.Failed = append(in.Failed, string(s))
	}
	if st.FailedStage != "" && st.Fatal != nil {
		in.Failed = append(in.Failed, string(st.FailedStage))
	}
	sort.Strings(in.Skipped)
	sort.Strings(in.Failed)
	return in
}

// buildOutput tolerates every field of st being absent.
func buildOutput(st *State) *Output {
	out := &Output{
		Repo:      st.Ref.FullName(),
		Depth:     st.Depth,
		OK:        st.Fatal == nil && st.Err == nil,
		Scores:    st.Scores,
		Docs:      st.Docs,
		Activity:  st.Activity,
		Structure: st.Structure,
		Deps:      st.Deps,
	}
	if s := st.Snapshot; s != nil {
		out.Repo = s.FullName()
		out.SHA = s.SHA
		out.Metadata = s.Metadata
		if len(s.Missing) > 0 {
			out.Missing = make(map[data.DependencyKey]string, len(s.Missing))
			for k, v := range s.Missing {
				out.Missing[k] = v
			}
		}
	}

	if st.Summary != nil {
		out.Summary = *st.Summary
		out.SummarySource = st.summarySource
	} else {
		out.Summary = summarize.Render(summaryInput(st))
		out.SummarySource = "template"
	}

	// build_output reports itself once it has finished.
	for _, s := range []Stage{FetchSnapshot, AnalyzeDocs, AnalyzeActivity, AnalyzeStructure, ParseDependencies, ComputeScores, GenerateSummary, ErrorCheck} {
		if r, ok := st.Reports[s]; ok {
			out.Stages = append(out.Stages, r)
		}
	}
	if len(st.Skipped) > 0 {
		out.Skipped = make(map[Stage]string, len(st.Skipped))
		for s, err := range st.Skipped {
			reason := "depth"
			if err != nil {
				reason = err.Error()
			}
			out.Skipped[s] = reason
		}
	}
	if len(st.Failed) > 0 {
		out.Failed = make(map[Stage]string, len(st.Failed))
		for s, err := range st.Failed {
			out.Failed[s] = err.Error()
		}
	}

	fatal := st.Fatal
	if fatal == nil {
		fatal = st.Err
	}
	if fatal != nil {
		out.Error = &ErrorInfo{
			Stage:    st.FailedStage,
			Message:  fatal.Error(),
			NotFound: errors.Is(fatal, snapshot.ErrRepoNotFound),
			Retries:  st.RetryCount,
		}
	}
	return out
}
