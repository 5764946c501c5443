package summarize

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"reposcope/internal/scoring"
)

func intp(v int) *int { return &v }

func sampleInput() Input {
	return Input{
		Repo:        "acme/widgets",
		Description: "Widgets for everyone",
		Language:    "Go",
		Scores:      &scoring.Scores{Health: 72, Documentation: 80, Activity: intp(65), Structure: intp(70), Dependencies: intp(75), Onboarding: 76},
		Docs:        &scoring.DocsResult{Score: 80, Missing: []string{"CONTRIBUTING"}},
		Activity:    &scoring.ActivityResult{Score: 65, Level: scoring.LevelModerate, Commits: 12, Authors: 3, WindowDays: 90},
		Structure:   &scoring.StructureResult{Score: 70, Files: 40, HasTests: true, HasCI: true},
		Deps:        &scoring.DependencyResult{Score: 75, Direct: 4, Ecosystems: []string{"go"}, HasLock: true},
	}
}

func TestRender_DetailLevels(t *testing.T) {
	in := sampleInput()

	in.Detail = DetailBrief
	brief := Render(in)
	if strings.Contains(brief, "\n") {
		t.Fatalf("expected brief summary on one line, got %q", brief)
	}
	if !strings.HasPrefix(brief, "acme/widgets scores 72/100 overall.") {
		t.Fatalf("unexpected headline: %q", brief)
	}

	in.Detail = DetailStandard
	std := Render(in)
	for _, want := range []string{
		"Documentation: 80/100; missing CONTRIBUTING.",
		"Activity: 65/100 (moderate), 12 commits by 3 authors in 90 days.",
		"Structure: 70/100 across 40 files with tests, CI.",
		"Dependencies: 75/100, 4 direct (go).",
	} {
		if !strings.Contains(std, want) {
			t.Errorf("standard summary missing %q:\n%s", want, std)
		}
	}
	if strings.Contains(std, "Primary language") {
		t.Errorf("standard summary should not carry detailed lines")
	}

	in.Detail = DetailDetailed
	if got := Render(in); !strings.Contains(got, "Primary language: Go.") || !strings.Contains(got, "Onboarding readiness: 76/100.") {
		t.Fatalf("detailed summary missing detail lines:\n%s", got)
	}
}

func TestRender_Deterministic(t *testing.T) {
	in := sampleInput()
	in.Structure.Languages = map[string]int{"Go": 30, "Shell": 2, "Python": 1}
	in.Detail = DetailDetailed
	first := Render(in)
	for i := 0; i < 20; i++ {
		if got := Render(in); got != first {
			t.Fatalf("render is not deterministic:\n%s\n---\n%s", first, got)
		}
	}
}

func TestRender_Perspectives(t *testing.T) {
	tests := []struct {
		perspective string
		risk        *int
		want        string
	}{
		{PerspectiveGeneral, nil, "acme/widgets scores 72/100 overall."},
		{PerspectiveBeginner, nil, "acme/widgets is easy to approach for newcomers (onboarding 76/100)."},
		{PerspectiveMaintainer, nil, "acme/widgets is moderately maintained (activity 65/100, health 72/100)."},
		{PerspectiveSecurity, intp(30), "acme/widgets carries moderate security risk (30/100)"},
		{PerspectiveSecurity, nil, "no security analysis is available"},
		{PerspectiveManager, nil, "acme/widgets rates fair overall (72/100)."},
		{"unknown", nil, "acme/widgets scores 72/100 overall."},
	}
	for _, tt := range tests {
		t.Run(tt.perspective, func(t *testing.T) {
			in := sampleInput()
			in.Perspective = tt.perspective
			in.SecurityRisk = tt.risk
			in.Detail = DetailBrief
			if got := Render(in); !strings.Contains(got, tt.want) {
				t.Fatalf("expected %q in %q", tt.want, got)
			}
		})
	}
}

func TestRender_AbsentEverything(t *testing.T) {
	got := Render(Input{Repo: "acme/empty", Failed: []string{"fetch_snapshot"}, Skipped: []string{"parse_dependencies", "analyze_structure"}})
	for _, want := range []string{
		"acme/empty could not be scored",
		"Not analyzed because of errors: fetch_snapshot.",
		"Skipped: analyze_structure, parse_dependencies.",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("expected %q in %q", want, got)
		}
	}
}

func TestTemplate_NeverFails(t *testing.T) {
	var s Summarizer = Template{}
	out, err := s.Summarize(context.Background(), Input{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out == "" {
		t.Fatalf("expected text for empty input")
	}
	if SourceName(s) != "template" {
		t.Fatalf("expected template source, got %q", SourceName(s))
	}
}

type chatRequest struct {
	Model    string `json:"model"`
	Messages []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

func TestOpenAI_Summarize(t *testing.T) {
	var got chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			http.NotFound(w, r)
			return
		}
		if r.Header.Get("Authorization") != "Bearer test-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"c1","object":"chat.completion","model":"test-model","choices":[{"index":0,"message":{"role":"assistant","content":"  A healthy widget library.  "},"finish_reason":"stop"}],"usage":{"prompt_tokens":10,"completion_tokens":5,"total_tokens":15}}`))
	}))
	defer srv.Close()

	s, err := NewOpenAI(OpenAIConfig{APIKey: "test-key", BaseURL: srv.URL + "/v1/", Model: "test-model"})
	if err != nil {
		t.Fatalf("NewOpenAI: %v", err)
	}
	in := sampleInput()
	in.Perspective = PerspectiveBeginner
	in.Detail = DetailBrief

	out, err := s.Summarize(context.Background(), in)
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if out != "A healthy widget library." {
		t.Fatalf("unexpected summary %q", out)
	}
	if got.Model != "test-model" || len(got.Messages) != 2 {
		t.Fatalf("unexpected request: %+v", got)
	}
	if !strings.Contains(got.Messages[0].Content, "newcomer") || !strings.Contains(got.Messages[0].Content, "one or two sentences") {
		t.Errorf("system prompt does not reflect perspective and detail: %q", got.Messages[0].Content)
	}
	if !strings.Contains(got.Messages[1].Content, "Primary language: Go.") {
		t.Errorf("expected detailed facts in user message: %q", got.Messages[1].Content)
	}
	if s.Name() != "openai:test-model" {
		t.Errorf("unexpected name %q", s.Name())
	}
}

func TestOpenAI_Errors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
	}{
		{"server error", http.StatusInternalServerError, `{"error":{"message":"boom","type":"server_error"}}`, nil},
		{"no choices", http.StatusOK, `{"id":"c1","object":"chat.completion","choices":[]}`, ErrEmptyCompletion},
		{"blank content", http.StatusOK, `{"id":"c1","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"   "}}]}`, ErrEmptyCompletion},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			s, err := NewOpenAI(OpenAIConfig{APIKey: "k", BaseURL: srv.URL})
			if err != nil {
				t.Fatalf("NewOpenAI: %v", err)
			}
			_, err = s.Summarize(context.Background(), sampleInput())
			if err == nil {
				t.Fatalf("expected error")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestNewOpenAI_RequiresKey(t *testing.T) {
	if _, err := NewOpenAI(OpenAIConfig{}); err == nil {
		t.Fatalf("expected error without api key")
	}
}
