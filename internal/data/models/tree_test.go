package models

import (
	"reflect"
	"testing"
)

func TestTree_HasAndBlobs(t *testing.T) {
	tree := &Tree{Entries: []TreeEntry{
		{Path: "README.md", Type: "blob"},
		{Path: "docs", Type: "tree"},
		{Path: "docs/guide.md", Type: "blob"},
	}}

	if !tree.Has("readme.md") {
		t.Fatalf("expected case-insensitive match for readme.md")
	}
	if tree.Has("docs") {
		t.Fatalf("expected tree entries to be ignored by Has")
	}
	var nilTree *Tree
	if nilTree.Has("README.md") {
		t.Fatalf("expected nil tree to have nothing")
	}

	want := []string{"README.md", "docs/guide.md"}
	if got := tree.Blobs(); !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}
