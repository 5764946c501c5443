package intent

import (
	"context"
	"testing"
)

func TestKeywordClassifier_Classify(t *testing.T) {
	tests := []struct {
		name         string
		question     string
		wantStrategy Strategy
		wantTopic    string
		wantDepth    Depth
		wantForce    bool
	}{
		{name: "full diagnosis", question: "Give me a health diagnosis of this repo", wantStrategy: Full, wantDepth: Standard},
		{name: "targeted docs", question: "Does it have a readme?", wantStrategy: Targeted, wantTopic: TopicDocs, wantDepth: Standard},
		{name: "quick targeted activity", question: "quick: is it still maintained?", wantStrategy: Targeted, wantTopic: TopicActivity, wantDepth: Quick},
		{name: "reinterpret", question: "Explain that again for a beginner", wantStrategy: Reinterpret, wantDepth: Standard},
		{name: "thorough refresh", question: "thorough review, ignore cache", wantStrategy: Full, wantDepth: Thorough, wantForce: true},
	}

	c := NewKeywordClassifier()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := c.Classify(context.Background(), tt.question)
			if err != nil {
				t.Fatalf("Classify failed: %v", err)
			}
			if got.Strategy != tt.wantStrategy {
				t.Fatalf("expected strategy %q, got %q", tt.wantStrategy, got.Strategy)
			}
			if got.TargetedTopic != tt.wantTopic {
				t.Fatalf("expected topic %q, got %q", tt.wantTopic, got.TargetedTopic)
			}
			if got.Depth != tt.wantDepth {
				t.Fatalf("expected depth %q, got %q", tt.wantDepth, got.Depth)
			}
			if got.ForceRefresh != tt.wantForce {
				t.Fatalf("expected force_refresh=%v, got %v", tt.wantForce, got.ForceRefresh)
			}
		})
	}
}

func TestKeywordClassifier_ReinterpretPerspective(t *testing.T) {
	got, err := NewKeywordClassifier().Classify(context.Background(), "Explain it again for a manager")
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}
	if got.ReinterpretPerspective != "manager" {
		t.Fatalf("expected manager perspective, got %q", got.ReinterpretPerspective)
	}
	if got.AnalysisType() != "reinterpret.manager.standard" {
		t.Fatalf("unexpected analysis type %q", got.AnalysisType())
	}
}

func TestKeywordClassifier_SecurityJoinsFanOut(t *testing.T) {
	got, err := NewKeywordClassifier().Classify(context.Background(), "Diagnose the repo and check security")
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}
	if got.Strategy != Full {
		t.Fatalf("expected full, got %q", got.Strategy)
	}
	if len(got.Analyzers) != 1 || got.Analyzers[0] != TopicSecurity {
		t.Fatalf("expected security fan-out, got %v", got.Analyzers)
	}
}

func TestParseDepth(t *testing.T) {
	tests := map[string]Depth{"quick": Quick, "": Standard, "Standard": Standard, "thorough": Thorough, "deep": Thorough}
	for in, want := range tests {
		got, err := ParseDepth(in)
		if err != nil {
			t.Fatalf("ParseDepth(%q) failed: %v", in, err)
		}
		if got != want {
			t.Fatalf("ParseDepth(%q): expected %q, got %q", in, want, got)
		}
	}
	if _, err := ParseDepth("huge"); err == nil {
		t.Fatalf("expected error for unknown depth")
	}
}
