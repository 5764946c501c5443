package cli

import (
	"bytes"
	"os"
	"strings"
	"testing"

	"github.com/fatih/color"

	"reposcope/internal/analyzers"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestPrintAnalyzer(t *testing.T) {
	prev := color.NoColor
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = prev })

	var buf bytes.Buffer
	printAnalyzer(&buf, analyzers.Security{})
	got := buf.String()

	for _, want := range []string{
		"ANALYZER: security\n",
		analyzers.Security{}.Description(),
		"Metrics:\n",
		"  " + string(analyzers.MetricSecurityRisk) + "\n",
	} {
		if !strings.Contains(got, want) {
			t.Fatalf("expected output to contain %q; output=%s", want, got)
		}
	}
}

func TestAnalyzersList_Quiet(t *testing.T) {
	var buf bytes.Buffer
	analyzersListQuiet = true
	t.Cleanup(func() { analyzersListQuiet = false })
	analyzersListCmd.SetOut(&buf)
	t.Cleanup(func() { analyzersListCmd.SetOut(nil) })

	if err := analyzersListCmd.RunE(analyzersListCmd, nil); err != nil {
		t.Fatalf("RunE: %v", err)
	}
	want := "activity\ndependencies\ndocs\nonboarding\nsecurity\nsnapshot\nstructure\n"
	if buf.String() != want {
		t.Fatalf("unexpected list:\n%s", buf.String())
	}
}
