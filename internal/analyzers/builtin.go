package analyzers

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"reposcope/internal/scoring"
	"reposcope/internal/security"
	"reposcope/internal/snapshot"
)

// Metric names of the built-in analyzers.
const (
	MetricStars      Metric = "snapshot.stars"
	MetricForks      Metric = "snapshot.forks"
	MetricOpenIssues Metric = "snapshot.open_issues"
	MetricFiles      Metric = "snapshot.files"

	MetricDocsScore Metric = "docs.score"

	MetricActivityScore   Metric = "activity.score"
	MetricActivityCommits Metric = "activity.commits"

	MetricStructureScore Metric = "structure.score"
	MetricStructureFiles Metric = "structure.files"

	MetricDependencyScore Metric = "dependencies.score"
	MetricDependencyTotal Metric = "dependencies.total"

	MetricSecurityRisk     Metric = "security.risk"
	MetricSecurityAlerts   Metric = "security.alerts"
	MetricSecurityFindings Metric = "security.findings"

	MetricOnboardingReadiness Metric = "onboarding.readiness"
)

// confidence starts at base and loses 0.15 for every input the analysis had
// to do without.
func confidence(base float64, missing ...bool) float64 {
	c := base
	for _, m := range missing {
		if m {
			c -= 0.15
		}
	}
	return math.Max(0.1, math.Round(c*100)/100)
}

func license(s *snapshot.Snapshot) string {
	if s.Metadata == nil {
		return ""
	}
	return s.Metadata.License
}

// Snapshot reports repository identity and counters.
type Snapshot struct{}

func (Snapshot) Name() string        { return "snapshot" }
func (Snapshot) Description() string { return "Repository identity, popularity and size" }
func (Snapshot) Metrics() []Metric {
	return []Metric{MetricStars, MetricForks, MetricOpenIssues, MetricFiles}
}

func (a Snapshot) Analyze(_ context.Context, in Input) (Result, error) {
	s, err := in.usableSnapshot()
	if err != nil {
		return Result{}, err
	}
	var files int
	if s.Tree != nil {
		files = len(s.Tree.Blobs())
	}
	md := s.Metadata
	summary := fmt.Sprintf("%s at %s: %d stars, %d forks, %d open issues, %d files.", s.FullName(), shortSHA(s.SHA), md.Stars, md.Forks, md.OpenIssues, files)
	if md.Archived {
		summary += " The repository is archived."
	}
	q := QualityHigh
	if len(s.Missing) > 0 {
		q = QualityMedium
	}
	return Result{
		Agent:      a.Name(),
		OK:         true,
		Quality:    q,
		Confidence: confidence(1.0, s.Tree == nil, s.Readme == nil),
		Metrics: map[Metric]float64{
			MetricStars:      float64(md.Stars),
			MetricForks:      float64(md.Forks),
			MetricOpenIssues: float64(md.OpenIssues),
			MetricFiles:      float64(files),
		},
		Summary:  summary,
		Evidence: []Source{{URL: s.HTMLURL(), Title: s.FullName(), Relevance: 0.5}},
	}, nil
}

func shortSHA(sha string) string {
	if len(sha) > 7 {
		return sha[:7]
	}
	return sha
}

// Docs grades the README and community files.
type Docs struct{}

func (Docs) Name() string        { return "docs" }
func (Docs) Description() string { return "README quality and community documentation" }
func (Docs) Metrics() []Metric   { return []Metric{MetricDocsScore} }

func (a Docs) Analyze(_ context.Context, in Input) (Result, error) {
	s, err := in.usableSnapshot()
	if err != nil {
		return Result{}, err
	}
	d := scoring.Docs(s.Readme, s.Tree, license(s))
	summary := fmt.Sprintf("Documentation scores %d/100.", d.Score)
	if len(d.Missing) > 0 {
		summary += " Missing: " + strings.Join(d.Missing, ", ") + "."
	}
	var evidence []Source
	if s.Readme != nil && s.Readme.Found {
		evidence = append(evidence, Source{URL: s.Readme.HTMLURL, Title: s.Readme.Path, Relevance: 0.9})
	}
	return Result{
		Agent:      a.Name(),
		OK:         true,
		Quality:    QualityForScore(d.Score),
		Confidence: confidence(0.9, s.Readme == nil, s.Tree == nil),
		Metrics:    map[Metric]float64{MetricDocsScore: float64(d.Score)},
		Summary:    summary,
		Evidence:   evidence,
	}, nil
}

// Activity grades commit cadence over the snapshot's activity window.
type Activity struct{}

func (Activity) Name() string        { return "activity" }
func (Activity) Description() string { return "Commit cadence, recency and contributor spread" }
func (Activity) Metrics() []Metric {
	return []Metric{MetricActivityScore, MetricActivityCommits}
}

func (a Activity) Analyze(_ context.Context, in Input) (Result, error) {
	s, err := in.usableSnapshot()
	if err != nil {
		return Result{}, err
	}
	if s.Activity == nil {
		return Result{}, errors.New("activity data unavailable")
	}
	r := scoring.Activity(s.Activity, s.Metadata, in.now())
	return Result{
		Agent:      a.Name(),
		OK:         true,
		Quality:    QualityForScore(r.Score),
		Confidence: confidence(0.9, s.Activity.Truncated),
		Metrics: map[Metric]float64{
			MetricActivityScore:   float64(r.Score),
			MetricActivityCommits: float64(r.Commits),
		},
		Summary:  fmt.Sprintf("Activity is %s: %d commits by %d authors in the last %d days.", r.Level, r.Commits, r.Authors, r.WindowDays),
		Evidence: []Source{{URL: s.HTMLURL() + "/commits", Title: "Commit history", Relevance: 0.6}},
	}, nil
}

// Structure grades repository layout.
type Structure struct{}

func (Structure) Name() string        { return "structure" }
func (Structure) Description() string { return "Repository layout, tests, CI and build tooling" }
func (Structure) Metrics() []Metric {
	return []Metric{MetricStructureScore, MetricStructureFiles}
}

func (a Structure) Analyze(_ context.Context, in Input) (Result, error) {
	s, err := in.usableSnapshot()
	if err != nil {
		return Result{}, err
	}
	if s.Tree == nil {
		return Result{}, errors.New("repository tree unavailable")
	}
	r := scoring.Structure(s.Tree)
	return Result{
		Agent:      a.Name(),
		OK:         true,
		Quality:    QualityForScore(r.Score),
		Confidence: confidence(0.9, r.Truncated),
		Metrics: map[Metric]float64{
			MetricStructureScore: float64(r.Score),
			MetricStructureFiles: float64(r.Files),
		},
		Summary:  fmt.Sprintf("Structure scores %d/100 over %d files (tests: %t, CI: %t).", r.Score, r.Files, r.HasTests, r.HasCI),
		Evidence: []Source{{URL: s.HTMLURL() + "/tree/" + s.SHA, Title: "Repository tree", Relevance: 0.5}},
	}, nil
}

// Dependencies grades dependency hygiene from the root manifests.
type Dependencies struct{}

func (Dependencies) Name() string        { return "dependencies" }
func (Dependencies) Description() string { return "Manifest parsing, pinning, lockfiles and update automation" }
func (Dependencies) Metrics() []Metric {
	return []Metric{MetricDependencyScore, MetricDependencyTotal}
}

func (a Dependencies) Analyze(_ context.Context, in Input) (Result, error) {
	s, err := in.usableSnapshot()
	if err != nil {
		return Result{}, err
	}
	r, err := scoring.Dependencies(s.Manifests, s.Tree)
	if err != nil {
		return Result{}, err
	}
	var evidence []Source
	if s.Manifests != nil {
		for _, f := range s.Manifests.Files {
			evidence = append(evidence, Source{URL: f.HTMLURL, Title: f.Path, Relevance: 0.7})
		}
	}
	return Result{
		Agent:      a.Name(),
		OK:         true,
		Quality:    QualityForScore(r.Score),
		Confidence: confidence(0.85, s.Manifests == nil, len(r.ParseErrors) > 0),
		Metrics: map[Metric]float64{
			MetricDependencyScore: float64(r.Score),
			MetricDependencyTotal: float64(r.Direct + r.Dev),
		},
		Summary:  fmt.Sprintf("Dependencies score %d/100: %d direct, %d dev, %d unpinned, lockfile: %t.", r.Score, r.Direct, r.Dev, r.Unpinned, r.HasLock),
		Evidence: evidence,
	}, nil
}

// Security scans snapshot text for secrets and folds in open alerts.
type Security struct{}

func (Security) Name() string        { return "security" }
func (Security) Description() string { return "Secret scan, sensitive files and open Dependabot alerts" }
func (Security) Metrics() []Metric {
	return []Metric{MetricSecurityRisk, MetricSecurityAlerts, MetricSecurityFindings}
}

func (a Security) Analyze(ctx context.Context, in Input) (Result, error) {
	s, err := in.usableSnapshot()
	if err != nil {
		return Result{}, err
	}
	var docs []security.Document
	if s.Readme != nil && s.Readme.Found {
		docs = append(docs, security.Document{Path: s.Readme.Path, Content: s.Readme.Content})
	}
	if s.Manifests != nil {
		for _, f := range s.Manifests.Files {
			docs = append(docs, security.Document{Path: f.Path, Content: f.Content})
		}
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	findings := append(security.ScanText(docs), security.ScanPaths(s.Tree)...)
	rep := security.Assess(findings, s.Alerts, s.Tree)

	evidence := make([]Source, 0, len(rep.Findings)+len(rep.Alerts))
	for _, f := range rep.Findings {
		evidence = append(evidence, Source{URL: s.BlobURL(f.Path), Title: f.Rule + " in " + f.Path, Relevance: 0.8})
	}
	for _, al := range rep.Alerts {
		rel := math.Min(1, security.Severity(al.Severity).Weight()/40)
		evidence = append(evidence, Source{URL: al.HTMLURL, Title: al.Package + ": " + al.Summary, Relevance: rel})
	}

	summary := fmt.Sprintf("Security risk %d/100: %d findings, %d open alerts.", rep.Risk, len(rep.Findings), len(rep.Alerts))
	if !rep.AlertsAvailable {
		summary += " Dependabot alerts were not readable."
	}
	if !rep.HasPolicy {
		summary += " No SECURITY.md."
	}
	return Result{
		Agent:      a.Name(),
		OK:         true,
		Quality:    QualityForScore(100 - rep.Risk),
		Confidence: confidence(0.85, !rep.AlertsAvailable, s.Tree == nil),
		Metrics: map[Metric]float64{
			MetricSecurityRisk:     float64(rep.Risk),
			MetricSecurityAlerts:   float64(len(rep.Alerts)),
			MetricSecurityFindings: float64(len(rep.Findings)),
		},
		Summary:  summary,
		Evidence: evidence,
	}, nil
}

// Onboarding estimates how easy the project is to start contributing to.
type Onboarding struct{}

func (Onboarding) Name() string        { return "onboarding" }
func (Onboarding) Description() string { return "Readiness for new contributors" }
func (Onboarding) Metrics() []Metric   { return []Metric{MetricOnboardingReadiness} }

var contributingPaths = []string{"CONTRIBUTING.md", ".github/CONTRIBUTING.md", "docs/CONTRIBUTING.md"}

func (a Onboarding) Analyze(_ context.Context, in Input) (Result, error) {
	s, err := in.usableSnapshot()
	if err != nil {
		return Result{}, err
	}
	docs := scoring.Docs(s.Readme, s.Tree, license(s))
	var structure *scoring.StructureResult
	if s.Tree != nil {
		r := scoring.Structure(s.Tree)
		structure = &r
	}
	readiness := scoring.Compute(&docs, nil, structure, nil).Onboarding

	var evidence []Source
	for _, p := range contributingPaths {
		if s.Tree.Has(p) {
			evidence = append(evidence, Source{URL: s.BlobURL(p), Title: "Contributing guide", Relevance: 0.85})
			break
		}
	}
	if s.Readme != nil && s.Readme.Found {
		evidence = append(evidence, Source{URL: s.Readme.HTMLURL, Title: s.Readme.Path, Relevance: 0.9})
	}

	summary := fmt.Sprintf("Onboarding readiness %d/100 (install notes: %t, usage: %t, contributing guide: %t).", readiness, docs.HasInstall, docs.HasUsage, docs.HasContributing)
	return Result{
		Agent:      a.Name(),
		OK:         true,
		Quality:    QualityForScore(readiness),
		Confidence: confidence(0.8, s.Readme == nil, s.Tree == nil),
		Metrics:    map[Metric]float64{MetricOnboardingReadiness: float64(readiness)},
		Summary:    summary,
		Evidence:   evidence,
	}, nil
}
