package models

import "strings"

// TreeEntry is one blob or tree in a recursive git tree listing.
type TreeEntry struct {
	Path string `json:"path"`
	Type string `json:"type"` // "blob" | "tree"
	Size int    `json:"size,omitempty"`
}

// Tree is a recursive listing of the repository at a revision. Truncated
// mirrors the GitHub API flag for very large trees.
type Tree struct {
	SHA       string      `json:"sha"`
	Entries   []TreeEntry `json:"entries"`
	Truncated bool        `json:"truncated"`
}

// Has reports whether a blob exists at path (case-insensitive).
func (t *Tree) Has(path string) bool {
	if t == nil {
		return false
	}
	for _, e := range t.Entries {
		if e.Type == "blob" && strings.EqualFold(e.Path, path) {
			return true
		}
	}
	return false
}

// Blobs returns the paths of all blob entries.
func (t *Tree) Blobs() []string {
	if t == nil {
		return nil
	}
	out := make([]string, 0, len(t.Entries))
	for _, e := range t.Entries {
		if e.Type == "blob" {
			out = append(out, e.Path)
		}
	}
	return out
}
