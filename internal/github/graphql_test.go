package github

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"
)

func TestGraphqlEndpoint(t *testing.T) {
	tests := []struct {
		base string
		want string
	}{
		{"https://api.github.com/", "https://api.github.com/graphql"},
		{"https://ghe.example.com/api/v3/", "https://ghe.example.com/api/graphql"},
		{"http://127.0.0.1:8080/", "http://127.0.0.1:8080/graphql"},
	}
	for _, tt := range tests {
		u, _ := url.Parse(tt.base)
		got, err := graphqlEndpoint(u)
		if err != nil {
			t.Fatalf("graphqlEndpoint(%q) failed: %v", tt.base, err)
		}
		if got.String() != tt.want {
			t.Fatalf("graphqlEndpoint(%q): expected %q, got %q", tt.base, tt.want, got.String())
		}
	}
}

func TestFetchActivityCounts(t *testing.T) {
	var gotVars map[string]any
	mux := http.NewServeMux()
	mux.HandleFunc("/graphql", func(w http.ResponseWriter, r *http.Request) {
		var req GraphQLRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		gotVars = req.Variables
		_, _ = w.Write([]byte(`{"data":{"repository":{
			"issues":{"totalCount":4},
			"pullRequests":{"totalCount":2},
			"defaultBranchRef":{"target":{"history":{"totalCount":37}}}}}}`))
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	c, err := NewClient(context.Background(), "tok", WithBaseURL(server.URL))
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}

	since := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	got, _, err := FetchActivityCounts(context.Background(), c, "acme", "widgets", since)
	if err != nil {
		t.Fatalf("FetchActivityCounts failed: %v", err)
	}
	want := ActivityCounts{OpenIssues: 4, OpenPRs: 2, CommitsSince: 37}
	if got != want {
		t.Fatalf("expected %+v, got %+v", want, got)
	}
	if gotVars["since"] != "2025-01-01T00:00:00Z" || gotVars["owner"] != "acme" {
		t.Fatalf("unexpected variables %v", gotVars)
	}
}

func TestFetchActivityCounts_GraphQLErrorSurfaces(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":null,"errors":[{"message":"Could not resolve to a Repository"}]}`))
	}))
	t.Cleanup(server.Close)

	c, _ := NewClient(context.Background(), "tok", WithBaseURL(server.URL))
	if _, _, err := FetchActivityCounts(context.Background(), c, "acme", "nope", time.Now()); err == nil {
		t.Fatalf("expected error")
	}
}
