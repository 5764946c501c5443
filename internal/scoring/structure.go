package scoring

import (
	"path"
	"sort"
	"strings"

	"reposcope/internal/data/models"
)

// StructureResult is the analyze_structure output.
type StructureResult struct {
	Score     int            `json:"score"`
	Files     int            `json:"files"`
	Dirs      int            `json:"dirs"`
	MaxDepth  int            `json:"max_depth"`
	TopLevel  []string       `json:"top_level,omitempty"`
	Languages map[string]int `json:"languages,omitempty"`
	HasTests  bool           `json:"has_tests"`
	HasCI     bool           `json:"has_ci"`
	// HasBuild is set for a Makefile, Dockerfile, Taskfile or similar.
	HasBuild     bool `json:"has_build"`
	HasSourceDir bool `json:"has_source_dir"`
	HasGitignore bool `json:"has_gitignore"`
	Truncated    bool `json:"truncated,omitempty"`
}

var extLanguages = map[string]string{
	".go": "Go", ".py": "Python", ".js": "JavaScript", ".jsx": "JavaScript", ".ts": "TypeScript",
	".tsx": "TypeScript", ".rs": "Rust", ".java": "Java", ".kt": "Kotlin", ".rb": "Ruby",
	".c": "C", ".h": "C", ".cc": "C++", ".cpp": "C++", ".cs": "C#", ".swift": "Swift",
	".php": "PHP", ".scala": "Scala", ".sh": "Shell", ".dart": "Dart",
}

var sourceDirs = map[string]bool{"src": true, "lib": true, "pkg": true, "internal": true, "cmd": true, "app": true}

var buildFiles = map[string]bool{
	"makefile": true, "dockerfile": true, "taskfile.yml": true, "justfile": true,
	"build.gradle": true, "pom.xml": true, "cmakelists.txt": true, "magefile.go": true,
}

// Structure scores the repository layout from its git tree.
func Structure(tree *models.Tree) StructureResult {
	var out StructureResult
	if tree == nil || len(tree.Entries) == 0 {
		return out
	}
	out.Truncated = tree.Truncated
	out.Languages = make(map[string]int)

	for _, e := range tree.Entries {
		depth := strings.Count(e.Path, "/") + 1
		if depth > out.MaxDepth {
			out.MaxDepth = depth
		}
		lower := strings.ToLower(e.Path)
		if depth == 1 {
			out.TopLevel = append(out.TopLevel, e.Path)
		}
		if e.Type == "tree" {
			out.Dirs++
			if depth == 1 && sourceDirs[lower] {
				out.HasSourceDir = true
			}
			if isTestDir(lower) {
				out.HasTests = true
			}
			continue
		}

		out.Files++
		base := path.Base(lower)
		if lang, ok := extLanguages[path.Ext(base)]; ok {
			out.Languages[lang]++
		}
		if isTestFile(base) {
			out.HasTests = true
		}
		if strings.HasPrefix(lower, ".github/workflows/") || lower == ".gitlab-ci.yml" || lower == ".travis.yml" ||
			lower == "azure-pipelines.yml" || lower == "jenkinsfile" || strings.HasPrefix(lower, ".circleci/") {
			out.HasCI = true
		}
		if depth == 1 && buildFiles[base] {
			out.HasBuild = true
		}
		if lower == ".gitignore" {
			out.HasGitignore = true
		}
	}
	sort.Strings(out.TopLevel)
	if len(out.Languages) == 0 {
		out.Languages = nil
	}

	var score float64
	if out.HasTests {
		score += 25
	}
	if out.HasCI {
		score += 20
	}
	if out.HasSourceDir || len(out.Languages) > 0 && len(out.TopLevel) <= 25 {
		score += 15
	}
	if out.HasBuild {
		score += 10
	}
	if out.HasGitignore {
		score += 5
	}
	switch n := len(out.TopLevel); {
	case n > 0 && n <= 15:
		score += 15
	case n > 15 && n <= 30:
		score += 8
	}
	if out.MaxDepth <= 8 {
		score += 10
	} else if out.MaxDepth <= 12 {
		score += 5
	}
	out.Score = clamp(score)
	return out
}

func isTestDir(p string) bool {
	for _, seg := range strings.Split(p, "/") {
		switch seg {
		case "test", "tests", "__tests__", "spec", "testdata", "e2e":
			return true
		}
	}
	return false
}

func isTestFile(base string) bool {
	return strings.HasSuffix(base, "_test.go") ||
		strings.HasPrefix(base, "test_") && strings.HasSuffix(base, ".py") ||
		strings.Contains(base, ".test.") || strings.Contains(base, ".spec.")
}
