package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/fatih/color"
	"gopkg.in/yaml.v3"

	"reposcope/internal/analyzers"
	"reposcope/internal/engine"
)

type ConsoleSink struct {
	writer           io.Writer
	format           string // "text", "json", "yaml", "ndjson"
	mu               sync.Mutex
	answers          []*engine.Answer // For json/yaml aggregate output
	allowedQualities map[string]bool
}

func NewConsoleSink(w io.Writer, format string, filterQualities []string) *ConsoleSink {
	if w == nil {
		w = os.Stdout
	}
	if format == "" {
		format = "text"
	}

	s := &ConsoleSink{
		writer: w,
		format: format,
	}

	if len(filterQualities) > 0 {
		s.allowedQualities = make(map[string]bool)
		for _, q := range filterQualities {
			s.allowedQualities[strings.ToLower(strings.TrimSpace(q))] = true
		}
	}

	return s
}

func (s *ConsoleSink) Write(v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeLocked(v)
}

func (s *ConsoleSink) writeLocked(v any) error {
	a, isAnswer := asAnswer(v)
	if isAnswer && len(s.allowedQualities) > 0 && !s.allowedQualities[string(a.OverallQuality)] {
		return nil
	}

	switch s.format {
	case "json", "yaml":
		if isAnswer {
			s.answers = append(s.answers, a)
		}
		return nil
	case "ndjson":
		encoder := json.NewEncoder(s.writer)
		switch t := v.(type) {
		case Event:
			if err := encoder.Encode(t); err != nil {
				return err
			}
			return flushIfPossible(s.writer)
		default:
			if !isAnswer {
				return nil
			}
			if err := encoder.Encode(eventFromAnswer(a)); err != nil {
				return err
			}
			return flushIfPossible(s.writer)
		}
	case "text":
		if ev, ok := v.(Event); ok {
			if ev.Type != "request.failed" {
				return nil
			}
			if _, err := fmt.Fprintf(s.writer, "%s %s: %s\n", color.RedString("[ERROR]"), ev.Repo, ev.Error); err != nil {
				return err
			}
			return flushIfPossible(s.writer)
		}
		if !isAnswer {
			return nil
		}
		if err := writeAnswerText(s.writer, a); err != nil {
			return err
		}
		return flushIfPossible(s.writer)
	default:
		return fmt.Errorf("unsupported console format: %s", s.format)
	}
}

func (s *ConsoleSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.format {
	case "json":
		if err := writeJSONArray(s.writer, s.answers); err != nil {
			return err
		}
		return flushIfPossible(s.writer)
	case "yaml":
		if err := writeYAML(s.writer, s.answers); err != nil {
			return err
		}
		return flushIfPossible(s.writer)
	case "text", "ndjson":
		return nil
	default:
		return fmt.Errorf("unsupported console format: %s", s.format)
	}
}

func writeJSONArray(w io.Writer, answers []*engine.Answer) error {
	if answers == nil {
		answers = []*engine.Answer{}
	}
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(answers)
}

// writeYAML goes through JSON first so YAML keys match the JSON field names.
func writeYAML(w io.Writer, answers []*engine.Answer) error {
	if answers == nil {
		answers = []*engine.Answer{}
	}
	raw, err := json.Marshal(answers)
	if err != nil {
		return err
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return err
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return err
	}
	return enc.Close()
}

func qualityColor(q analyzers.Quality) *color.Color {
	switch q {
	case analyzers.QualityHigh:
		return color.New(color.FgGreen, color.Bold)
	case analyzers.QualityMedium:
		return color.New(color.FgYellow, color.Bold)
	default:
		return color.New(color.FgRed, color.Bold)
	}
}

func writeAnswerText(w io.Writer, a *engine.Answer) error {
	bold := color.New(color.Bold)
	faint := color.New(color.Faint)

	var b strings.Builder
	strategy := string(a.StrategyUsed)
	if a.Downgraded {
		strategy += ", downgraded"
	}
	fmt.Fprintf(&b, "%s (%s, %s)\n", bold.Sprint(a.Repo), strategy, a.Intent.Depth)
	fmt.Fprintf(&b, "Quality: %s  Confidence: %.2f  Cache: %s\n",
		qualityColor(a.OverallQuality).Sprint(a.OverallQuality), a.OverallConfidence, cacheLabel(a.Cache))
	if a.Error != nil {
		fmt.Fprintf(&b, "%s %s: %s\n", color.RedString("Error:"), a.Error.Stage, a.Error.Message)
	}
	if a.Summary != "" {
		b.WriteString("\n" + a.Summary + "\n")
	}

	if len(a.PerAnalyzerResults) > 0 {
		b.WriteString("\n" + bold.Sprint("Analyzers:") + "\n")
		names := make([]string, 0, len(a.PerAnalyzerResults))
		for n := range a.PerAnalyzerResults {
			names = append(names, n)
		}
		sort.Strings(names)
		for _, n := range names {
			r := a.PerAnalyzerResults[n]
			mark, detail := color.GreenString("✓"), firstLine(r.Summary)
			if !r.OK {
				mark, detail = color.RedString("✗"), r.Error
			}
			fmt.Fprintf(&b, "  %s %-13s %-7s %.2f  %s\n", mark, n, qualityColor(r.Quality).Sprint(r.Quality), r.Confidence, detail)
		}
	}
	if len(a.Conflicts) > 0 {
		b.WriteString("\n" + color.YellowString("Conflicts:") + "\n")
		for _, c := range a.Conflicts {
			b.WriteString("  - " + c.String() + "\n")
		}
	}
	if len(a.MissingInfo) > 0 {
		b.WriteString("\n" + color.YellowString("Missing info:") + "\n")
		for _, m := range a.MissingInfo {
			b.WriteString("  - " + m + "\n")
		}
	}
	if len(a.Sources) > 0 {
		b.WriteString("\n" + bold.Sprint("Sources:") + "\n")
		for _, src := range a.Sources {
			fmt.Fprintf(&b, "  - %s %s\n", src.Title, faint.Sprint(src.URL))
		}
	}
	b.WriteString("\n")

	_, err := io.WriteString(w, b.String())
	return err
}

func cacheLabel(c engine.CacheInfo) string {
	if !c.Hit {
		return string(c.Freshness)
	}
	label := "hit (" + string(c.Tier) + ")"
	if c.Stale {
		label += ", stale"
	}
	return label
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
