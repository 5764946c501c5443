package output

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"reposcope/internal/analyzers"
)

func TestMarkdownReportContract(t *testing.T) {
	reportPath := filepath.Join(t.TempDir(), "reposcope-report.md")
	s, err := NewReportSink(reportPath)
	if err != nil {
		t.Fatalf("NewReportSink failed: %v", err)
	}

	s.Write(Event{Type: "run.started", Requests: 4})
	s.Write(troubled())
	s.Write(answer("acme/a", analyzers.QualityHigh))
	s.Write(fatal())
	s.Write(Event{Type: "request.failed", Repo: "acme/bad|repo", Question: "hi", Error: "invalid repository"})
	s.Write(Event{Type: "run.finished", ExitCode: 2})
	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	b, err := os.ReadFile(reportPath)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	out := string(b)

	required := []string{
		"# reposcope Report",
		"## Overview",
		"3 answers: 1 high, 1 low, 1 failed.",
		"## Needs Attention",
		"**acme/gadgets**: security analyzer failed: context deadline exceeded",
		"**acme/gadgets**: conflicting signals: health_vs_security",
		"served from a stale cache entry (15m old)",
		"**acme/ghost**: request failed in fetch_snapshot (repository not found)",
		"## Findings",
		"### acme/a",
		"| pipeline | ok | high | 0.90 |",
		"[acme/gadgets](https://github.com/acme/gadgets)",
		"## Failed Requests",
		`acme/bad\|repo`,
		"_Exit code: 2_",
	}
	for _, want := range required {
		if !strings.Contains(out, want) {
			t.Errorf("report missing %q\n%s", want, out)
		}
	}

	// Answers are ordered by repository.
	if strings.Index(out, "### acme/a") > strings.Index(out, "### acme/gadgets") {
		t.Fatalf("findings are not sorted by repository")
	}
}

func TestMarkdownReport_Empty(t *testing.T) {
	reportPath := filepath.Join(t.TempDir(), "empty.md")
	s, err := NewReportSink(reportPath)
	if err != nil {
		t.Fatalf("NewReportSink failed: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	b, _ := os.ReadFile(reportPath)
	for _, want := range []string{"No answers.", "Nothing needs attention."} {
		if !strings.Contains(string(b), want) {
			t.Fatalf("empty report missing %q:\n%s", want, b)
		}
	}
}
