package output

import (
	"fmt"
	"sort"
	"strings"

	"reposcope/internal/analyzers"
	"reposcope/internal/engine"
)

var qualityOrder = []analyzers.Quality{
	analyzers.QualityHigh,
	analyzers.QualityMedium,
	analyzers.QualityLow,
	analyzers.QualityFailed,
}

// sortedAnswers orders by repository, then question, without reordering the
// caller's slice.
func sortedAnswers(in []*engine.Answer) []*engine.Answer {
	out := append([]*engine.Answer(nil), in...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Repo != out[j].Repo {
			return out[i].Repo < out[j].Repo
		}
		return out[i].Question < out[j].Question
	})
	return out
}

func qualityCounts(answers []*engine.Answer) map[analyzers.Quality]int {
	out := make(map[analyzers.Quality]int)
	for _, a := range answers {
		out[a.OverallQuality]++
	}
	return out
}

func formatQualityCounts(counts map[analyzers.Quality]int) string {
	var parts []string
	for _, q := range qualityOrder {
		if n := counts[q]; n > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", n, q))
		}
	}
	if len(parts) == 0 {
		return "none graded"
	}
	return strings.Join(parts, ", ")
}

// attentionItems lists what a reader should look at first for one answer.
func attentionItems(a *engine.Answer) []string {
	var out []string
	if a.Error != nil {
		out = append(out, fmt.Sprintf("request failed in %s (%s)", a.Error.Stage, a.Error.Message))
	}
	for _, n := range sortedAnalyzerNames(a) {
		if r := a.PerAnalyzerResults[n]; !r.OK {
			out = append(out, fmt.Sprintf("%s analyzer failed: %s", n, r.Error))
		}
	}
	for _, c := range a.Conflicts {
		out = append(out, "conflicting signals: "+c.String())
	}
	out = append(out, a.MissingInfo...)
	if a.Cache.Stale {
		out = append(out, fmt.Sprintf("served from a stale cache entry (%s old)", formatAge(a.Cache.AgeMS)))
	}
	return out
}

func sortedAnalyzerNames(a *engine.Answer) []string {
	names := make([]string, 0, len(a.PerAnalyzerResults))
	for n := range a.PerAnalyzerResults {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func sortedTimings(t map[string]int64) []string {
	out := make([]string, 0, len(t))
	for k := range t {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func strategyLabel(a *engine.Answer) string {
	if a.Downgraded {
		return fmt.Sprintf("%s (from %s)", a.StrategyUsed, a.Intent.Strategy)
	}
	return string(a.StrategyUsed)
}

func formatAge(ms int64) string {
	switch {
	case ms >= 60_000:
		return fmt.Sprintf("%dm", ms/60_000)
	case ms >= 1000:
		return fmt.Sprintf("%ds", ms/1000)
	default:
		return fmt.Sprintf("%dms", ms)
	}
}

// escapeCell keeps a value inside one Markdown table cell.
func escapeCell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	s = strings.ReplaceAll(s, "\r", "")
	return strings.ReplaceAll(s, "\n", " ")
}
