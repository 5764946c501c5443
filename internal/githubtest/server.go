// Package githubtest serves a small in-memory slice of the GitHub REST and
// GraphQL APIs for tests.
package githubtest

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	gh "reposcope/internal/github"
)

type Commit struct {
	SHA    string
	Author string
	Date   time.Time
}

type Alert struct {
	Number   int
	Severity string
	Package  string
	Summary  string
}

// Repo is one fixture repository. Files double as the git tree.
type Repo struct {
	Owner         string
	Name          string
	DefaultBranch string
	SHA           string
	// Branches maps extra branch or tag names to commit SHAs.
	Branches    map[string]string
	Description string
	Language    string
	License     string
	Topics      []string
	Stars       int
	Forks       int
	Archived    bool
	PushedAt    time.Time
	Files       map[string]string
	Commits     []Commit
	OpenIssues  int
	OpenPRs     int
	Alerts      []Alert
	// AlertsStatus overrides the Dependabot response code (e.g. 403).
	AlertsStatus int
}

// Server is an httptest.Server with per-route hit counters.
type Server struct {
	*httptest.Server

	mu    sync.Mutex
	repos map[string]*Repo
	hits  map[string]int
}

func NewServer(t testing.TB, repos ...Repo) *Server {
	t.Helper()
	s := &Server{repos: make(map[string]*Repo), hits: make(map[string]int)}
	for i := range repos {
		r := repos[i]
		if r.DefaultBranch == "" {
			r.DefaultBranch = "main"
		}
		s.repos[strings.ToLower(r.Owner+"/"+r.Name)] = &r
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /repos/{owner}/{name}", s.count(s.handleRepo))
	mux.HandleFunc("GET /repos/{owner}/{name}/commits", s.count(s.handleCommits))
	mux.HandleFunc("GET /repos/{owner}/{name}/commits/{ref...}", s.count(s.handleCommitSHA))
	mux.HandleFunc("GET /repos/{owner}/{name}/readme", s.count(s.handleReadme))
	mux.HandleFunc("GET /repos/{owner}/{name}/contents/{path...}", s.count(s.handleContents))
	mux.HandleFunc("GET /repos/{owner}/{name}/git/trees/{sha}", s.count(s.handleTree))
	mux.HandleFunc("GET /repos/{owner}/{name}/dependabot/alerts", s.count(s.handleAlerts))
	mux.HandleFunc("POST /graphql", s.count(s.handleGraphQL))

	s.Server = httptest.NewServer(mux)
	t.Cleanup(s.Close)
	return s
}

// Client returns a GitHub client pointed at the server.
func (s *Server) Client(t testing.TB) *gh.Client {
	t.Helper()
	c, err := gh.NewClient(context.Background(), "test-token", gh.WithBaseURL(s.URL))
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	return c
}

// Hits returns how many requests matched the route pattern,
// e.g. "GET /repos/{owner}/{name}".
func (s *Server) Hits(pattern string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[pattern]
}

// TotalHits returns the number of requests served.
func (s *Server) TotalHits() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, v := range s.hits {
		n += v
	}
	return n
}

// SetSHA moves the default branch head, simulating a push.
func (s *Server) SetSHA(owner, name, sha string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.repos[strings.ToLower(owner+"/"+name)]; ok {
		r.SHA = sha
	}
}

func (s *Server) count(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.hits[r.Pattern]++
		s.mu.Unlock()
		w.Header().Set("X-RateLimit-Remaining", "4999")
		h(w, r)
	}
}

func (s *Server) repo(w http.ResponseWriter, owner, name string) (*Repo, bool) {
	s.mu.Lock()
	r, ok := s.repos[strings.ToLower(owner+"/"+name)]
	var cp Repo
	if ok {
		cp = *r
	}
	s.mu.Unlock()
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "Not Found"})
		return nil, false
	}
	return &cp, true
}

func (s *Server) handleRepo(w http.ResponseWriter, r *http.Request) {
	repo, ok := s.repo(w, r.PathValue("owner"), r.PathValue("name"))
	if !ok {
		return
	}
	body := map[string]any{
		"full_name":         repo.Owner + "/" + repo.Name,
		"name":              repo.Name,
		"owner":             map[string]any{"login": repo.Owner},
		"description":       repo.Description,
		"html_url":          "https://github.com/" + repo.Owner + "/" + repo.Name,
		"default_branch":    repo.DefaultBranch,
		"language":          repo.Language,
		"topics":            repo.Topics,
		"stargazers_count":  repo.Stars,
		"forks_count":       repo.Forks,
		"open_issues_count": repo.OpenIssues + repo.OpenPRs,
		"archived":          repo.Archived,
	}
	if !repo.PushedAt.IsZero() {
		body["pushed_at"] = repo.PushedAt.UTC().Format(time.RFC3339)
	}
	if repo.License != "" {
		body["license"] = map[string]any{"spdx_id": repo.License, "name": repo.License}
	}
	writeJSON(w, http.StatusOK, body)
}

func (s *Server) resolve(repo *Repo, ref string) (string, bool) {
	switch {
	case ref == repo.DefaultBranch || ref == repo.SHA:
		return repo.SHA, true
	case repo.Branches[ref] != "":
		return repo.Branches[ref], true
	}
	for _, sha := range repo.Branches {
		if sha == ref {
			return sha, true
		}
	}
	return "", false
}

func (s *Server) handleCommitSHA(w http.ResponseWriter, r *http.Request) {
	repo, ok := s.repo(w, r.PathValue("owner"), r.PathValue("name"))
	if !ok {
		return
	}
	sha, ok := s.resolve(repo, r.PathValue("ref"))
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "No commit found"})
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(sha))
}

func (s *Server) handleCommits(w http.ResponseWriter, r *http.Request) {
	repo, ok := s.repo(w, r.PathValue("owner"), r.PathValue("name"))
	if !ok {
		return
	}
	var since time.Time
	if raw := r.URL.Query().Get("since"); raw != "" {
		since, _ = time.Parse(time.RFC3339, raw)
	}
	out := make([]map[string]any, 0, len(repo.Commits))
	for _, c := range commitsSince(repo.Commits, since) {
		date := c.Date.UTC().Format(time.RFC3339)
		out = append(out, map[string]any{
			"sha":    c.SHA,
			"author": map[string]any{"login": c.Author},
			"commit": map[string]any{
				"author":    map[string]any{"name": c.Author, "date": date},
				"committer": map[string]any{"name": c.Author, "date": date},
			},
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleReadme(w http.ResponseWriter, r *http.Request) {
	repo, ok := s.repo(w, r.PathValue("owner"), r.PathValue("name"))
	if !ok {
		return
	}
	for p, content := range repo.Files {
		if strings.Contains(p, "/") {
			continue
		}
		if strings.HasPrefix(strings.ToLower(p), "readme") {
			writeJSON(w, http.StatusOK, fileBody(repo, p, content))
			return
		}
	}
	writeJSON(w, http.StatusNotFound, map[string]string{"message": "Not Found"})
}

func (s *Server) handleContents(w http.ResponseWriter, r *http.Request) {
	repo, ok := s.repo(w, r.PathValue("owner"), r.PathValue("name"))
	if !ok {
		return
	}
	p := r.PathValue("path")
	content, ok := repo.Files[p]
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "Not Found"})
		return
	}
	writeJSON(w, http.StatusOK, fileBody(repo, p, content))
}

func (s *Server) handleTree(w http.ResponseWriter, r *http.Request) {
	repo, ok := s.repo(w, r.PathValue("owner"), r.PathValue("name"))
	if !ok {
		return
	}
	sha, ok := s.resolve(repo, r.PathValue("sha"))
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "Not Found"})
		return
	}

	dirs := make(map[string]struct{})
	var entries []map[string]any
	for _, p := range sortedKeys(repo.Files) {
		for d := path.Dir(p); d != "." && d != "/"; d = path.Dir(d) {
			dirs[d] = struct{}{}
		}
		entries = append(entries, map[string]any{"path": p, "type": "blob", "size": len(repo.Files[p])})
	}
	for _, d := range sortedKeys(dirs) {
		entries = append(entries, map[string]any{"path": d, "type": "tree"})
	}
	writeJSON(w, http.StatusOK, map[string]any{"sha": sha, "tree": entries, "truncated": false})
}

func (s *Server) handleAlerts(w http.ResponseWriter, r *http.Request) {
	repo, ok := s.repo(w, r.PathValue("owner"), r.PathValue("name"))
	if !ok {
		return
	}
	if repo.AlertsStatus != 0 && repo.AlertsStatus != http.StatusOK {
		writeJSON(w, repo.AlertsStatus, map[string]string{"message": "Resource not accessible by integration"})
		return
	}
	out := make([]map[string]any, 0, len(repo.Alerts))
	for _, a := range repo.Alerts {
		out = append(out, map[string]any{
			"number":                 a.Number,
			"state":                  "open",
			"html_url":               "https://github.com/" + repo.Owner + "/" + repo.Name + "/security/dependabot/" + strconv.Itoa(a.Number),
			"dependency":             map[string]any{"package": map[string]any{"name": a.Package}},
			"security_advisory":      map[string]any{"summary": a.Summary, "severity": a.Severity},
			"security_vulnerability": map[string]any{"severity": a.Severity},
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGraphQL(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Variables struct {
			Owner string `json:"owner"`
			Name  string `json:"name"`
			Since string `json:"since"`
		} `json:"variables"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": err.Error()})
		return
	}
	s.mu.Lock()
	repo, ok := s.repos[strings.ToLower(req.Variables.Owner+"/"+req.Variables.Name)]
	var cp Repo
	if ok {
		cp = *repo
	}
	s.mu.Unlock()
	if !ok {
		writeJSON(w, http.StatusOK, map[string]any{"data": map[string]any{"repository": nil}})
		return
	}
	since, _ := time.Parse(time.RFC3339, req.Variables.Since)
	writeJSON(w, http.StatusOK, map[string]any{"data": map[string]any{"repository": map[string]any{
		"issues":       map[string]any{"totalCount": cp.OpenIssues},
		"pullRequests": map[string]any{"totalCount": cp.OpenPRs},
		"defaultBranchRef": map[string]any{"target": map[string]any{
			"history": map[string]any{"totalCount": len(commitsSince(cp.Commits, since))},
		}},
	}}})
}

func fileBody(repo *Repo, p, content string) map[string]any {
	return map[string]any{
		"type":     "file",
		"encoding": "base64",
		"path":     p,
		"name":     path.Base(p),
		"size":     len(content),
		"content":  base64.StdEncoding.EncodeToString([]byte(content)),
		"html_url": "https://github.com/" + repo.Owner + "/" + repo.Name + "/blob/" + repo.DefaultBranch + "/" + p,
	}
}

func commitsSince(commits []Commit, since time.Time) []Commit {
	out := make([]Commit, 0, len(commits))
	for _, c := range commits {
		if since.IsZero() || !c.Date.Before(since) {
			out = append(out, c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.After(out[j].Date) })
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
