package output

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"reposcope/internal/engine"
)

// ReportSink collects answers and writes one Markdown report on Close.
type ReportSink struct {
	path         string
	file         *os.File
	mu           sync.Mutex
	answers      []*engine.Answer
	failures     []Event
	exitCode     int
	haveExitCode bool
}

func NewReportSink(path string) (*ReportSink, error) {
	if path == "" {
		return nil, fmt.Errorf("report path required")
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create report file: %w", err)
	}

	return &ReportSink{path: path, file: f}, nil
}

func (s *ReportSink) Write(v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a, ok := asAnswer(v); ok {
		s.answers = append(s.answers, a)
		return nil
	}
	if ev, ok := v.(Event); ok {
		switch ev.Type {
		case "request.failed":
			s.failures = append(s.failures, ev)
		case "run.finished":
			s.exitCode = ev.ExitCode
			s.haveExitCode = true
		}
	}
	return nil
}

func (s *ReportSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	answers := sortedAnswers(s.answers)
	var b strings.Builder
	b.WriteString("# reposcope Report\n\n")

	// --- Overview ---
	b.WriteString("## Overview\n\n")
	if len(answers) == 0 {
		b.WriteString("No answers.\n\n")
	} else {
		counts := qualityCounts(answers)
		b.WriteString(fmt.Sprintf("%d answers: %s.\n\n", len(answers), formatQualityCounts(counts)))
		b.WriteString("| Repository | Question | Strategy | Quality | Confidence | Cache |\n")
		b.WriteString("| --- | --- | --- | --- | ---: | --- |\n")
		for _, a := range answers {
			b.WriteString(fmt.Sprintf("| %s | %s | %s | %s | %.2f | %s |\n",
				escapeCell(a.Repo), escapeCell(a.Question), strategyLabel(a), a.OverallQuality, a.OverallConfidence, cacheLabel(a.Cache)))
		}
		b.WriteString("\n")
	}

	// --- Needs attention ---
	b.WriteString("## Needs Attention\n\n")
	attention := 0
	for _, a := range answers {
		for _, item := range attentionItems(a) {
			b.WriteString(fmt.Sprintf("- **%s**: %s\n", a.Repo, item))
			attention++
		}
	}
	if attention == 0 {
		b.WriteString("- Nothing needs attention.\n")
	}
	b.WriteString("\n")

	// --- Per-repository findings ---
	b.WriteString("## Findings\n\n")
	for _, a := range answers {
		writeAnswerSection(&b, a)
	}

	if len(s.failures) > 0 {
		b.WriteString("## Failed Requests\n\n")
		b.WriteString("| Repository | Question | Error |\n")
		b.WriteString("| --- | --- | --- |\n")
		for _, f := range s.failures {
			b.WriteString(fmt.Sprintf("| %s | %s | %s |\n", escapeCell(f.Repo), escapeCell(f.Question), escapeCell(f.Error)))
		}
		b.WriteString("\n")
	}

	if s.haveExitCode {
		b.WriteString(fmt.Sprintf("_Exit code: %d_\n", s.exitCode))
	}

	if _, err := s.file.WriteString(b.String()); err != nil {
		_ = s.file.Close()
		return err
	}
	return s.file.Close()
}

func writeAnswerSection(b *strings.Builder, a *engine.Answer) {
	b.WriteString(fmt.Sprintf("### %s\n\n", a.Repo))
	if a.Question != "" {
		b.WriteString("> " + strings.ReplaceAll(a.Question, "\n", " ") + "\n\n")
	}
	if a.Error != nil {
		b.WriteString(fmt.Sprintf("**Error** in `%s`: %s\n\n", a.Error.Stage, a.Error.Message))
	}
	if a.Summary != "" {
		b.WriteString(a.Summary + "\n\n")
	}

	if names := sortedAnalyzerNames(a); len(names) > 0 {
		b.WriteString("| Analyzer | Status | Quality | Confidence | Detail |\n")
		b.WriteString("| --- | --- | --- | ---: | --- |\n")
		for _, n := range names {
			r := a.PerAnalyzerResults[n]
			status, detail := "ok", firstLine(r.Summary)
			if !r.OK {
				status, detail = "failed", r.Error
			}
			b.WriteString(fmt.Sprintf("| %s | %s | %s | %.2f | %s |\n", n, status, r.Quality, r.Confidence, escapeCell(detail)))
		}
		b.WriteString("\n")
	}

	if len(a.Conflicts) > 0 {
		b.WriteString("**Conflicts**\n")
		for _, c := range a.Conflicts {
			b.WriteString("- " + c.String() + "\n")
		}
		b.WriteString("\n")
	}
	if len(a.MissingInfo) > 0 {
		b.WriteString("**Missing information**\n")
		for _, m := range a.MissingInfo {
			b.WriteString("- " + m + "\n")
		}
		b.WriteString("\n")
	}
	if len(a.Sources) > 0 {
		b.WriteString("**Sources**\n")
		for _, src := range a.Sources {
			b.WriteString(fmt.Sprintf("- [%s](%s)\n", src.Title, src.URL))
		}
		b.WriteString("\n")
	}
	if stages := sortedTimings(a.TimingsByStage); len(stages) > 0 {
		b.WriteString("<details><summary>Timings</summary>\n\n")
		b.WriteString("| Stage | ms |\n| --- | ---: |\n")
		for _, st := range stages {
			b.WriteString(fmt.Sprintf("| %s | %d |\n", st, a.TimingsByStage[st]))
		}
		b.WriteString("\n</details>\n\n")
	}
}
