package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/google/go-github/v81/github"

	"reposcope/internal/data"
	"reposcope/internal/engine"
	"reposcope/internal/intent"
)

const maxBodyBytes = 1 << 20

type errorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg, RequestID: w.Header().Get(requestIDHeader)})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// askRequest is the POST /v1/ask body. Repo takes the same forms as --repos.
type askRequest struct {
	Repo         string   `json:"repo"`
	Question     string   `json:"question"`
	SessionID    string   `json:"session_id,omitempty"`
	ForceRefresh bool     `json:"force_refresh,omitempty"`
	Depth        string   `json:"depth,omitempty"`
	Analyzers    []string `json:"analyzers,omitempty"`
}

func (r askRequest) toEngine() (engine.Request, error) {
	ref, err := data.ParseRepoRef(r.Repo)
	if err != nil {
		return engine.Request{}, err
	}
	if strings.TrimSpace(r.Question) == "" {
		return engine.Request{}, errors.New("question is required")
	}
	req := engine.Request{
		Repo:         ref,
		Question:     r.Question,
		SessionID:    r.SessionID,
		ForceRefresh: r.ForceRefresh,
		Analyzers:    r.Analyzers,
	}
	if r.Depth != "" {
		d, err := intent.ParseDepth(r.Depth)
		if err != nil {
			return engine.Request{}, err
		}
		req.Depth = d
	}
	return req, nil
}

// handleAsk answers one question. A repository that does not exist is a 404
// that still carries the answer body; every other pipeline failure is
// reported inside a 200 answer.
func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var body askRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}
	req, err := body.toEngine()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ans, err := s.svc.Ask(r.Context(), req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	status := http.StatusOK
	if ans.Error != nil && ans.Error.NotFound {
		status = http.StatusNotFound
	}
	writeJSON(w, status, ans)
}

func (s *Server) handleEndSession(w http.ResponseWriter, r *http.Request) {
	s.svc.EndSession(r.PathValue("id"))
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCacheStats(w http.ResponseWriter, r *http.Request) {
	st, ok, err := s.svc.CacheStats(r.Context())
	switch {
	case err != nil:
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case !ok:
		writeError(w, http.StatusNotImplemented, "cache backend cannot report stats")
	default:
		writeJSON(w, http.StatusOK, st)
	}
}

type webhookResponse struct {
	Event       string `json:"event"`
	Repo        string `json:"repo,omitempty"`
	Invalidated int    `json:"invalidated"`
}

// handleWebhook drops every cached answer for a repository that received a
// push. Other events are acknowledged and ignored.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	payload, err := github.ValidatePayload(r, s.webhookSecret)
	if err != nil {
		s.log.Warn("rejected webhook", "error", err, "request_id", requestID(r.Context()))
		writeError(w, http.StatusUnauthorized, "invalid webhook signature")
		return
	}
	kind := github.WebHookType(r)
	event, err := github.ParseWebHook(kind, payload)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid %s payload: %v", kind, err))
		return
	}

	switch e := event.(type) {
	case *github.PushEvent:
		repo := e.GetRepo()
		ref := data.RepoRef{Owner: repo.GetOwner().GetLogin(), Name: repo.GetName()}
		if ref.Owner == "" || ref.Name == "" {
			owner, name, _ := strings.Cut(repo.GetFullName(), "/")
			ref = data.RepoRef{Owner: owner, Name: name}
		}
		if err := ref.Validate(); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		n := s.svc.InvalidateAllFor(r.Context(), ref)
		s.log.Info("invalidated cache on push", "repo", ref.FullName(), "ref", e.GetRef(), "entries", n)
		writeJSON(w, http.StatusOK, webhookResponse{Event: kind, Repo: ref.FullName(), Invalidated: n})
	default:
		_, _ = io.Copy(io.Discard, r.Body)
		writeJSON(w, http.StatusAccepted, webhookResponse{Event: kind})
	}
}
