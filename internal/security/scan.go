// Package security runs a lightweight secret scan over the text a snapshot
// carries and turns open Dependabot alerts into a risk score.
package security

import (
	"math"
	"path"
	"sort"
	"strings"

	"reposcope/internal/data/models"
)

// Finding is one suspected secret or sensitive file.
type Finding struct {
	Rule     string   `json:"rule"`
	Severity Severity `json:"severity"`
	Path     string   `json:"path"`
	Line     int      `json:"line,omitempty"`
	// Redacted shows only the first four characters of the match.
	Redacted string `json:"redacted,omitempty"`
}

// Document is a piece of repository text to scan.
type Document struct {
	Path    string
	Content string
}

// ScanText applies BuiltinPatterns line by line.
func ScanText(docs []Document) []Finding {
	var out []Finding
	for _, d := range docs {
		for i, line := range strings.Split(d.Content, "\n") {
			for _, p := range BuiltinPatterns {
				m := p.Regex.FindStringSubmatch(line)
				if m == nil {
					continue
				}
				secret := m[0]
				if len(m) > 1 && m[1] != "" {
					secret = m[1]
				}
				if p.MinEntropy > 0 && ShannonEntropy(secret) < p.MinEntropy {
					continue
				}
				out = append(out, Finding{Rule: p.Name, Severity: p.Severity, Path: d.Path, Line: i + 1, Redacted: redact(secret)})
			}
		}
	}
	return out
}

// ScanPaths flags committed files that usually hold credentials. Example
// and template variants (.env.example) are ignored.
func ScanPaths(tree *models.Tree) []Finding {
	if tree == nil {
		return nil
	}
	var out []Finding
	for _, p := range tree.Blobs() {
		base := strings.ToLower(path.Base(p))
		if strings.Contains(base, "example") || strings.Contains(base, "sample") || strings.Contains(base, "template") {
			continue
		}
		for _, s := range sensitivePaths {
			if base == s.suffix || strings.HasSuffix(base, s.suffix) {
				out = append(out, Finding{Rule: "sensitive_file", Severity: s.severity, Path: p})
				break
			}
		}
	}
	return out
}

// Report is the security analyzer output.
type Report struct {
	// Risk is 0 (nothing found) to 100.
	Risk            int                    `json:"risk"`
	Findings        []Finding              `json:"findings,omitempty"`
	Alerts          []models.SecurityAlert `json:"alerts,omitempty"`
	AlertsAvailable bool                   `json:"alerts_available"`
	AlertsReason    string                 `json:"alerts_reason,omitempty"`
	HasPolicy       bool                   `json:"has_security_policy"`
}

// Assess combines scan findings and alerts into a risk score.
func Assess(findings []Finding, alerts *models.SecurityAlerts, tree *models.Tree) Report {
	out := Report{Findings: findings}
	out.HasPolicy = tree.Has("SECURITY.md") || tree.Has(".github/SECURITY.md") || tree.Has("docs/SECURITY.md")

	var risk float64
	for _, f := range findings {
		risk += f.Severity.Weight()
	}
	if alerts != nil {
		out.AlertsAvailable = alerts.Available
		out.AlertsReason = alerts.Reason
		out.Alerts = alerts.Alerts
		for _, a := range alerts.Alerts {
			risk += Severity(strings.ToLower(a.Severity)).Weight()
		}
	}
	if !out.HasPolicy {
		risk += 5
	}
	out.Risk = int(math.Round(math.Min(100, risk)))

	sort.SliceStable(out.Findings, func(i, j int) bool {
		wi, wj := out.Findings[i].Severity.Weight(), out.Findings[j].Severity.Weight()
		if wi != wj {
			return wi > wj
		}
		return out.Findings[i].Path < out.Findings[j].Path
	})
	return out
}

func redact(s string) string {
	if len(s) <= 4 {
		return "****"
	}
	return s[:4] + strings.Repeat("*", min(len(s)-4, 16))
}

// ShannonEntropy measures randomness in bits per character.
func ShannonEntropy(s string) float64 {
	if s == "" {
		return 0
	}
	freq := make(map[rune]int)
	n := 0
	for _, r := range s {
		freq[r]++
		n++
	}
	var e float64
	for _, c := range freq {
		p := float64(c) / float64(n)
		e -= p * math.Log2(p)
	}
	return e
}
