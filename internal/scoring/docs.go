package scoring

import (
	"path"
	"regexp"
	"strings"

	"reposcope/internal/data/models"
)

// DocsResult is the analyze_docs output.
type DocsResult struct {
	Score            int      `json:"score"`
	HasReadme        bool     `json:"has_readme"`
	ReadmePath       string   `json:"readme_path,omitempty"`
	ReadmeWords      int      `json:"readme_words"`
	Sections         []string `json:"sections,omitempty"`
	HasInstall       bool     `json:"has_install"`
	HasUsage         bool     `json:"has_usage"`
	HasCodeBlocks    bool     `json:"has_code_blocks"`
	HasLicense       bool     `json:"has_license"`
	HasContributing  bool     `json:"has_contributing"`
	HasChangelog     bool     `json:"has_changelog"`
	HasCodeOfConduct bool     `json:"has_code_of_conduct"`
	HasDocsDir       bool     `json:"has_docs_dir"`
	HasExamples      bool     `json:"has_examples"`
	// Missing names the documentation a reader would look for and not find.
	Missing []string `json:"missing,omitempty"`
}

var headingRE = regexp.MustCompile(`(?m)^#{1,3}[ \t]+(.+?)[ \t]*#*[ \t]*$`)

// Docs scores the README and the standard community files. tree may be nil.
func Docs(readme *models.Readme, tree *models.Tree, license string) DocsResult {
	var out DocsResult
	var score float64

	if readme != nil && readme.Found {
		out.HasReadme = true
		out.ReadmePath = readme.Path
		text := readme.Content
		out.ReadmeWords = len(strings.Fields(text))
		for _, m := range headingRE.FindAllStringSubmatch(text, -1) {
			out.Sections = append(out.Sections, strings.TrimSpace(m[1]))
		}
		lower := strings.ToLower(text)
		out.HasInstall = containsAny(lower, "install", "getting started", "quick start", "quickstart", "setup")
		out.HasUsage = containsAny(lower, "usage", "example", "how to use")
		out.HasCodeBlocks = strings.Contains(text, "```") || strings.Contains(text, "\n    ")

		score += 30
		switch {
		case out.ReadmeWords >= 300:
			score += 15
		case out.ReadmeWords >= 100:
			score += 10
		case out.ReadmeWords >= 30:
			score += 5
		}
		if len(out.Sections) >= 3 {
			score += 5
		}
		if out.HasInstall {
			score += 10
		}
		if out.HasUsage {
			score += 10
		}
		if out.HasCodeBlocks {
			score += 5
		}
	}

	out.HasLicense = license != "" || hasRootFile(tree, "license", "licence", "copying")
	out.HasContributing = hasCommunityFile(tree, "contributing")
	out.HasChangelog = hasRootFile(tree, "changelog", "changes", "history", "releases")
	out.HasCodeOfConduct = hasCommunityFile(tree, "code_of_conduct")
	out.HasDocsDir = hasDir(tree, "docs", "doc", "documentation")
	out.HasExamples = hasDir(tree, "examples", "example", "_examples", "samples")

	for _, c := range []struct {
		ok     bool
		points float64
		name   string
	}{
		{out.HasLicense, 10, "license"},
		{out.HasContributing, 5, "contributing guide"},
		{out.HasChangelog, 3, "changelog"},
		{out.HasCodeOfConduct, 2, "code of conduct"},
		{out.HasDocsDir, 3, "docs directory"},
		{out.HasExamples, 2, "examples"},
	} {
		if c.ok {
			score += c.points
		} else {
			out.Missing = append(out.Missing, c.name)
		}
	}
	if !out.HasReadme {
		out.Missing = append([]string{"readme"}, out.Missing...)
	} else {
		if !out.HasInstall {
			out.Missing = append(out.Missing, "installation instructions")
		}
		if !out.HasUsage {
			out.Missing = append(out.Missing, "usage examples")
		}
	}

	out.Score = clamp(score)
	return out
}

// hasRootFile matches root-level blobs by lowercase name without extension.
func hasRootFile(tree *models.Tree, stems ...string) bool {
	if tree == nil {
		return false
	}
	for _, e := range tree.Entries {
		if e.Type != "blob" || strings.Contains(e.Path, "/") {
			continue
		}
		if matchesStem(e.Path, stems) {
			return true
		}
	}
	return false
}

// hasCommunityFile also looks in .github/ and docs/, where GitHub finds
// community health files.
func hasCommunityFile(tree *models.Tree, stems ...string) bool {
	if hasRootFile(tree, stems...) {
		return true
	}
	if tree == nil {
		return false
	}
	for _, e := range tree.Entries {
		if e.Type != "blob" {
			continue
		}
		dir := strings.ToLower(path.Dir(e.Path))
		if (dir == ".github" || dir == "docs") && matchesStem(e.Path, stems) {
			return true
		}
	}
	return false
}

func hasDir(tree *models.Tree, names ...string) bool {
	if tree == nil {
		return false
	}
	for _, e := range tree.Entries {
		if e.Type != "tree" || strings.Contains(e.Path, "/") {
			continue
		}
		for _, n := range names {
			if strings.EqualFold(e.Path, n) {
				return true
			}
		}
	}
	return false
}

func matchesStem(p string, stems []string) bool {
	base := strings.ToLower(path.Base(p))
	stem := strings.TrimSuffix(base, path.Ext(base))
	for _, s := range stems {
		if stem == s {
			return true
		}
	}
	return false
}

func containsAny(s string, terms ...string) bool {
	for _, t := range terms {
		if strings.Contains(s, t) {
			return true
		}
	}
	return false
}
