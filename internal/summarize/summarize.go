// Package summarize turns scored pipeline output into prose.
package summarize

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"reposcope/internal/scoring"
)

// Perspectives a summary can be written for.
const (
	PerspectiveGeneral    = "general"
	PerspectiveBeginner   = "beginner"
	PerspectiveMaintainer = "maintainer"
	PerspectiveSecurity   = "security"
	PerspectiveManager    = "manager"
)

// Detail levels.
const (
	DetailBrief    = "brief"
	DetailStandard = "standard"
	DetailDetailed = "detailed"
)

// Input is everything a summarizer may draw on. Any pointer may be nil when
// the corresponding stage was skipped or failed.
type Input struct {
	Repo        string
	Description string
	Language    string

	Scores    *scoring.Scores
	Docs      *scoring.DocsResult
	Activity  *scoring.ActivityResult
	Structure *scoring.StructureResult
	Deps      *scoring.DependencyResult

	// SecurityRisk is set when a security analysis ran alongside.
	SecurityRisk *int

	Perspective string
	Detail      string

	// Skipped and Failed name pipeline stages that produced nothing.
	Skipped []string
	Failed  []string
}

// Summarizer writes a summary for in.
type Summarizer interface {
	Summarize(ctx context.Context, in Input) (string, error)
}

// Named is implemented by summarizers that report where the text came from.
type Named interface {
	Name() string
}

// SourceName returns s's name, or "custom".
func SourceName(s Summarizer) string {
	if n, ok := s.(Named); ok {
		return n.Name()
	}
	return "custom"
}

// Template builds a deterministic summary from the numeric fields alone. It
// never fails and needs no external call.
type Template struct{}

func (Template) Name() string { return "template" }

func (Template) Summarize(_ context.Context, in Input) (string, error) {
	return Render(in), nil
}

// Render is Template without the interface plumbing.
func Render(in Input) string {
	repo := in.Repo
	if repo == "" {
		repo = "The repository"
	}
	detail := normalizeDetail(in.Detail)

	var b strings.Builder
	b.WriteString(headline(repo, in))

	if detail == DetailBrief {
		return b.String()
	}

	for _, line := range componentLines(in) {
		b.WriteString("\n")
		b.WriteString(line)
	}
	if detail == DetailDetailed {
		for _, line := range detailLines(in) {
			b.WriteString("\n")
			b.WriteString(line)
		}
	}
	if len(in.Failed) > 0 {
		fmt.Fprintf(&b, "\nNot analyzed because of errors: %s.", strings.Join(sorted(in.Failed), ", "))
	}
	if len(in.Skipped) > 0 {
		fmt.Fprintf(&b, "\nSkipped: %s.", strings.Join(sorted(in.Skipped), ", "))
	}
	return b.String()
}

func headline(repo string, in Input) string {
	if in.Scores == nil {
		return repo + " could not be scored; no analysis results are available."
	}
	s := in.Scores
	var lead string
	switch normalizePerspective(in.Perspective) {
	case PerspectiveBeginner:
		lead = fmt.Sprintf("%s is %s for newcomers (onboarding %d/100).", repo, onboardingWord(s.Onboarding), s.Onboarding)
	case PerspectiveMaintainer:
		if s.Activity != nil {
			lead = fmt.Sprintf("%s is %s maintained (activity %d/100, health %d/100).", repo, activityWord(*s.Activity), *s.Activity, s.Health)
		} else {
			lead = fmt.Sprintf("%s has a health score of %d/100; activity was not measured.", repo, s.Health)
		}
	case PerspectiveSecurity:
		if in.SecurityRisk != nil {
			lead = fmt.Sprintf("%s carries %s security risk (%d/100) with a health score of %d/100.", repo, riskWord(*in.SecurityRisk), *in.SecurityRisk, s.Health)
		} else {
			lead = fmt.Sprintf("%s has a health score of %d/100; no security analysis is available.", repo, s.Health)
		}
	case PerspectiveManager:
		lead = fmt.Sprintf("%s rates %s overall (%d/100).", repo, healthWord(s.Health), s.Health)
	default:
		lead = fmt.Sprintf("%s scores %d/100 overall.", repo, s.Health)
	}
	if in.Description != "" {
		lead += " " + strings.TrimSuffix(in.Description, ".") + "."
	}
	return lead
}

func componentLines(in Input) []string {
	var out []string
	if in.Docs != nil {
		line := fmt.Sprintf("Documentation: %d/100", in.Docs.Score)
		if len(in.Docs.Missing) > 0 {
			line += "; missing " + strings.Join(in.Docs.Missing, ", ")
		}
		out = append(out, line+".")
	}
	if in.Activity != nil {
		a := in.Activity
		line := fmt.Sprintf("Activity: %d/100 (%s), %d commits by %d authors in %d days", a.Score, a.Level, a.Commits, a.Authors, a.WindowDays)
		if a.Archived {
			line += "; archived"
		}
		out = append(out, line+".")
	}
	if in.Structure != nil {
		s := in.Structure
		var has []string
		if s.HasTests {
			has = append(has, "tests")
		}
		if s.HasCI {
			has = append(has, "CI")
		}
		if s.HasBuild {
			has = append(has, "build tooling")
		}
		line := fmt.Sprintf("Structure: %d/100 across %d files", s.Score, s.Files)
		if len(has) > 0 {
			line += " with " + strings.Join(has, ", ")
		}
		out = append(out, line+".")
	}
	if in.Deps != nil {
		d := in.Deps
		line := fmt.Sprintf("Dependencies: %d/100, %d direct", d.Score, d.Direct)
		if len(d.Ecosystems) > 0 {
			line += " (" + strings.Join(d.Ecosystems, ", ") + ")"
		}
		if !d.HasLock && d.Direct > 0 {
			line += "; no lockfile"
		}
		out = append(out, line+".")
	}
	if in.SecurityRisk != nil && normalizePerspective(in.Perspective) != PerspectiveSecurity {
		out = append(out, fmt.Sprintf("Security risk: %d/100.", *in.SecurityRisk))
	}
	return out
}

func detailLines(in Input) []string {
	var out []string
	if in.Language != "" {
		out = append(out, "Primary language: "+in.Language+".")
	}
	if in.Scores != nil {
		out = append(out, fmt.Sprintf("Onboarding readiness: %d/100.", in.Scores.Onboarding))
	}
	if in.Structure != nil && len(in.Structure.Languages) > 0 {
		langs := make([]string, 0, len(in.Structure.Languages))
		for l, n := range in.Structure.Languages {
			langs = append(langs, fmt.Sprintf("%s %d", l, n))
		}
		sort.Strings(langs)
		out = append(out, "Files by language: "+strings.Join(langs, ", ")+".")
	}
	if in.Docs != nil && len(in.Docs.Sections) > 0 {
		out = append(out, "README sections: "+strings.Join(in.Docs.Sections, ", ")+".")
	}
	if in.Deps != nil && len(in.Deps.ParseErrors) > 0 {
		out = append(out, "Unparsable manifests: "+strings.Join(in.Deps.ParseErrors, "; ")+".")
	}
	return out
}

func normalizePerspective(p string) string {
	switch p := strings.ToLower(strings.TrimSpace(p)); p {
	case PerspectiveBeginner, PerspectiveMaintainer, PerspectiveSecurity, PerspectiveManager:
		return p
	default:
		return PerspectiveGeneral
	}
}

func normalizeDetail(d string) string {
	switch d := strings.ToLower(strings.TrimSpace(d)); d {
	case DetailBrief, DetailDetailed:
		return d
	default:
		return DetailStandard
	}
}

func healthWord(score int) string {
	switch {
	case score >= 75:
		return "strong"
	case score >= 50:
		return "fair"
	default:
		return "weak"
	}
}

func onboardingWord(score int) string {
	switch {
	case score >= 75:
		return "easy to approach"
	case score >= 50:
		return "reasonably approachable"
	default:
		return "hard to approach"
	}
}

func activityWord(score int) string {
	switch {
	case score >= 75:
		return "actively"
	case score >= 40:
		return "moderately"
	default:
		return "barely"
	}
}

func riskWord(risk int) string {
	switch {
	case risk >= 60:
		return "high"
	case risk >= 25:
		return "moderate"
	default:
		return "low"
	}
}

func sorted(in []string) []string {
	out := append([]string(nil), in...)
	sort.Strings(out)
	return out
}
