// Package server exposes the engine over HTTP: question answering, GitHub
// push webhooks that invalidate cached answers, session and cache
// management, health and metrics.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"reposcope/internal/cache"
	"reposcope/internal/data"
	"reposcope/internal/engine"
	"reposcope/internal/logging"
)

// Service is the part of the engine the server needs.
type Service interface {
	Ask(ctx context.Context, req engine.Request) (*engine.Answer, error)
	InvalidateAllFor(ctx context.Context, ref data.RepoRef) int
	EndSession(id string)
	CacheStats(ctx context.Context) (cache.Stats, bool, error)
}

type Server struct {
	router        *http.ServeMux
	server        *http.Server
	addr          string
	svc           Service
	metrics       http.Handler
	webhookSecret []byte
	log           *slog.Logger
}

type Option func(*Server)

// WithMetrics serves h on /metrics.
func WithMetrics(h http.Handler) Option {
	return func(s *Server) { s.metrics = h }
}

// WithWebhookSecret enables /webhooks/github. Payloads must carry a valid
// X-Hub-Signature-256 for this secret.
func WithWebhookSecret(secret string) Option {
	return func(s *Server) {
		if secret != "" {
			s.webhookSecret = []byte(secret)
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.log = l
		}
	}
}

func New(addr string, svc Service, opts ...Option) *Server {
	s := &Server{
		addr:   addr,
		svc:    svc,
		router: http.NewServeMux(),
		log:    logging.New("server"),
	}
	for _, apply := range opts {
		apply(s)
	}
	s.registerRoutes()

	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.applyMiddleware(s.router),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

func (s *Server) registerRoutes() {
	s.router.HandleFunc("GET /healthz", s.handleHealth)
	s.router.HandleFunc("POST /v1/ask", s.handleAsk)
	s.router.HandleFunc("DELETE /v1/sessions/{id}", s.handleEndSession)
	s.router.HandleFunc("GET /v1/cache/stats", s.handleCacheStats)
	if s.webhookSecret != nil {
		s.router.HandleFunc("POST /webhooks/github", s.handleWebhook)
	}
	if s.metrics != nil {
		s.router.Handle("GET /metrics", s.metrics)
	}
}

// Start serves until Shutdown is called.
func (s *Server) Start() error {
	s.log.Info("starting HTTP server", "addr", s.addr, "webhooks", s.webhookSecret != nil)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("shutting down HTTP server")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}
	return nil
}

// ServeHTTP runs the full handler chain; used by tests.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.server.Handler.ServeHTTP(w, r)
}

// applyMiddleware wraps the handler; the last one applied runs first.
func (s *Server) applyMiddleware(h http.Handler) http.Handler {
	h = recoveryMiddleware(s.log)(h)
	h = loggingMiddleware(s.log)(h)
	h = requestIDMiddleware()(h)
	return h
}
