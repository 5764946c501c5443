// Package mcpserver exposes the engine as MCP tools over stdio.
package mcpserver

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"reposcope/internal/data"
	"reposcope/internal/engine"
	"reposcope/internal/intent"
	"reposcope/internal/logging"
)

// Service is the part of the engine the tools call.
type Service interface {
	Ask(ctx context.Context, req engine.Request) (*engine.Answer, error)
	InvalidateAllFor(ctx context.Context, ref data.RepoRef) int
}

// Server wraps the MCP SDK server.
type Server struct {
	MCPServer *sdkmcp.Server

	svc Service
	log *slog.Logger
}

func NewServer(svc Service, version string) *Server {
	if version == "" {
		version = "dev"
	}
	s := &Server{svc: svc, log: logging.New("mcp")}
	s.MCPServer = sdkmcp.NewServer(
		&sdkmcp.Implementation{Name: "reposcope", Version: version},
		nil,
	)
	s.registerTools()
	return s
}

// Run serves over stdin/stdout until ctx is done or the client disconnects.
func (s *Server) Run(ctx context.Context) error {
	return s.MCPServer.Run(ctx, &sdkmcp.StdioTransport{})
}

func (s *Server) registerTools() {
	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "ask_repository",
		Description: "Answer a natural-language question about a GitHub repository: health diagnosis, documentation, activity, security, onboarding or a re-explanation of an earlier answer. Repeated questions are served from cache.",
	}, s.handleAsk)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "invalidate_repository_cache",
		Description: "Drop every cached answer for a repository, for example after a push.",
	}, s.handleInvalidate)
}

// --- Tool input/output types ---

type askInput struct {
	Repo         string   `json:"repo" jsonschema:"repository as OWNER/NAME, OWNER/NAME@REV or a GitHub URL"`
	Question     string   `json:"question" jsonschema:"the question to answer"`
	SessionID    string   `json:"session_id,omitempty" jsonschema:"conversation id; answers are cached per session as well as per process"`
	ForceRefresh bool     `json:"force_refresh,omitempty" jsonschema:"ignore cached answers"`
	Depth        string   `json:"depth,omitempty" jsonschema:"analysis depth: quick, standard or thorough"`
	Analyzers    []string `json:"analyzers,omitempty" jsonschema:"extra analyzers to run (docs, activity, security, onboarding, structure)"`
}

type analyzerOutput struct {
	Name       string  `json:"name"`
	OK         bool    `json:"ok"`
	Quality    string  `json:"quality"`
	Confidence float64 `json:"confidence"`
	Summary    string  `json:"summary,omitempty"`
	Error      string  `json:"error,omitempty"`
}

type askOutput struct {
	RequestID   string           `json:"request_id"`
	Repo        string           `json:"repo"`
	Strategy    string           `json:"strategy"`
	Downgraded  bool             `json:"downgraded,omitempty"`
	Quality     string           `json:"quality"`
	Confidence  float64          `json:"confidence"`
	Summary     string           `json:"summary"`
	Analyzers   []analyzerOutput `json:"analyzers,omitempty"`
	Conflicts   []string         `json:"conflicts,omitempty"`
	MissingInfo []string         `json:"missing_info,omitempty"`
	Sources     []string         `json:"sources,omitempty"`
	CacheHit    bool             `json:"cache_hit"`
	CacheTier   string           `json:"cache_tier,omitempty"`
	Error       string           `json:"error,omitempty"`
}

type invalidateInput struct {
	Repo string `json:"repo" jsonschema:"repository as OWNER/NAME; a revision limits the drop to that revision"`
}

type invalidateOutput struct {
	Repo        string `json:"repo"`
	Invalidated int    `json:"invalidated"`
}

// --- Handlers ---

func (s *Server) handleAsk(ctx context.Context, _ *sdkmcp.CallToolRequest, input askInput) (*sdkmcp.CallToolResult, askOutput, error) {
	ref, err := data.ParseRepoRef(input.Repo)
	if err != nil {
		return nil, askOutput{}, err
	}
	if strings.TrimSpace(input.Question) == "" {
		return nil, askOutput{}, fmt.Errorf("question is required")
	}
	req := engine.Request{
		Repo:         ref,
		Question:     input.Question,
		SessionID:    input.SessionID,
		ForceRefresh: input.ForceRefresh,
		Analyzers:    input.Analyzers,
	}
	if input.Depth != "" {
		d, err := intent.ParseDepth(input.Depth)
		if err != nil {
			return nil, askOutput{}, err
		}
		req.Depth = d
	}

	ans, err := s.svc.Ask(ctx, req)
	if err != nil {
		return nil, askOutput{}, fmt.Errorf("ask_repository: %w", err)
	}
	s.log.Debug("answered", "repo", ans.Repo, "strategy", ans.StrategyUsed, "cache_hit", ans.Cache.Hit)
	return nil, toOutput(ans), nil
}

func (s *Server) handleInvalidate(ctx context.Context, _ *sdkmcp.CallToolRequest, input invalidateInput) (*sdkmcp.CallToolResult, invalidateOutput, error) {
	ref, err := data.ParseRepoRef(input.Repo)
	if err != nil {
		return nil, invalidateOutput{}, err
	}
	n := s.svc.InvalidateAllFor(ctx, ref)
	return nil, invalidateOutput{Repo: ref.String(), Invalidated: n}, nil
}

func toOutput(a *engine.Answer) askOutput {
	out := askOutput{
		RequestID:   a.RequestID,
		Repo:        a.Repo,
		Strategy:    string(a.StrategyUsed),
		Downgraded:  a.Downgraded,
		Quality:     string(a.OverallQuality),
		Confidence:  a.OverallConfidence,
		Summary:     a.Summary,
		MissingInfo: a.MissingInfo,
		CacheHit:    a.Cache.Hit,
		CacheTier:   string(a.Cache.Tier),
	}
	names := make([]string, 0, len(a.PerAnalyzerResults))
	for n := range a.PerAnalyzerResults {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		r := a.PerAnalyzerResults[n]
		out.Analyzers = append(out.Analyzers, analyzerOutput{
			Name:       n,
			OK:         r.OK,
			Quality:    string(r.Quality),
			Confidence: r.Confidence,
			Summary:    r.Summary,
			Error:      r.Error,
		})
	}
	for _, c := range a.Conflicts {
		out.Conflicts = append(out.Conflicts, c.String())
	}
	for _, src := range a.Sources {
		out.Sources = append(out.Sources, src.URL)
	}
	if a.Error != nil {
		out.Error = fmt.Sprintf("%s: %s", a.Error.Stage, a.Error.Message)
	}
	return out
}
