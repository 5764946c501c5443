package intent

import (
	"context"
	"sort"
	"strings"
)

// Topics a targeted lookup can answer, each backed by one analyzer.
const (
	TopicDocs         = "docs"
	TopicActivity     = "activity"
	TopicStructure    = "structure"
	TopicDependencies = "dependencies"
	TopicSecurity     = "security"
	TopicOnboarding   = "onboarding"
)

var topicTerms = map[string][]string{
	TopicDocs:         {"readme", "documentation", "docs"},
	TopicActivity:     {"activity", "active", "maintained", "commits", "stale"},
	TopicStructure:    {"structure", "layout", "architecture", "tests", "ci/cd", "workflows"},
	TopicDependencies: {"dependencies", "dependency", "packages", "libraries"},
	TopicSecurity:     {"security", "vulnerab", "secret", "cve"},
	TopicOnboarding:   {"onboard", "contribut", "getting started", "newcomer"},
}

var reinterpretTerms = []string{"explain", "again", "rephrase", "in simpler", "simplify", "from the perspective", "eli5", "summarize that"}

var perspectives = map[string][]string{
	"beginner":   {"beginner", "newcomer", "simpler", "eli5", "non-technical"},
	"maintainer": {"maintainer", "owner"},
	"security":   {"security team", "auditor"},
	"manager":    {"manager", "executive", "business"},
}

var fullTerms = []string{"full analysis", "analyze", "analyse", "diagnos", "health", "overall", "review", "assess", "evaluate"}

// KeywordClassifier maps a question to an intent by term matching. It is a
// deterministic stand-in for a model-backed classifier.
type KeywordClassifier struct {
	// DefaultDepth applies when the question names none.
	DefaultDepth Depth
}

func NewKeywordClassifier() *KeywordClassifier {
	return &KeywordClassifier{DefaultDepth: Standard}
}

func (c *KeywordClassifier) Classify(_ context.Context, question string) (ExecutionIntent, error) {
	q := strings.ToLower(question)
	out := ExecutionIntent{Depth: c.DefaultDepth}
	if out.Depth == "" {
		out.Depth = Standard
	}

	switch {
	case containsAny(q, "quick", "brief", "tl;dr", "short"):
		out.Depth = Quick
	case containsAny(q, "thorough", "deep", "in depth", "in-depth", "detailed"):
		out.Depth = Thorough
	}
	out.ForceRefresh = containsAny(q, "refresh", "latest", "re-run", "rerun", "ignore cache")

	topics := matchedTopics(q)
	// Security and onboarding are fan-out analyzers; they also join Full runs.
	for _, t := range topics {
		if t == TopicSecurity || t == TopicOnboarding {
			out.Analyzers = append(out.Analyzers, t)
		}
	}

	switch {
	case containsAny(q, reinterpretTerms...):
		out.Strategy = Reinterpret
		out.ReinterpretPerspective = "general"
		for _, name := range sortedKeys(perspectives) {
			if containsAny(q, perspectives[name]...) {
				out.ReinterpretPerspective = name
				break
			}
		}
		out.ReinterpretDetail = "standard"
		if out.Depth == Quick {
			out.ReinterpretDetail = "brief"
		} else if out.Depth == Thorough {
			out.ReinterpretDetail = "detailed"
		}
		out.Confidence = 0.7
	case len(topics) == 1 && !containsAny(q, fullTerms...):
		out.Strategy = Targeted
		out.TargetedTopic = topics[0]
		out.Confidence = 0.8
	default:
		out.Strategy = Full
		out.Confidence = 0.6
		if len(topics) > 0 || containsAny(q, fullTerms...) {
			out.Confidence = 0.85
		}
	}
	return out, nil
}

func matchedTopics(q string) []string {
	var out []string
	for _, topic := range sortedKeys(topicTerms) {
		if containsAny(q, topicTerms[topic]...) {
			out = append(out, topic)
		}
	}
	return out
}

func containsAny(s string, terms ...string) bool {
	for _, t := range terms {
		if strings.Contains(s, t) {
			return true
		}
	}
	return false
}

func sortedKeys(m map[string][]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
