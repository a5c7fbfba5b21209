// Package server exposes the UI generation pipeline over HTTP. It accepts
// chat requests, serves published artifacts and streams pipeline log lines
// to browsers as Server-Sent Events.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"uiforge/internal/logging"
	"uiforge/internal/perception"
	"uiforge/internal/pipeline"
	"uiforge/internal/store"
	"uiforge/internal/types"
)

// Runner executes one pipeline run.
type Runner interface {
	Run(ctx context.Context, spec types.TaskSpecification, optimize bool) (*pipeline.Outcome, error)
}

// ArtifactSource looks up published artifacts.
type ArtifactSource interface {
	Get(ctx context.Context, id string) (*store.StoredArtifact, error)
	List(ctx context.Context, limit int) ([]store.StoredArtifact, error)
}

// TraceSource reads completion traces.
type TraceSource interface {
	RunTraces(ctx context.Context, runID string) ([]perception.CompletionTrace, error)
	Stats(ctx context.Context) ([]store.StageStats, error)
}

// Config holds server options.
type Config struct {
	Addr              string
	AllowedOrigins    []string
	MaxConcurrentRuns int
	ShutdownTimeout   time.Duration
	// OptimizeDefault applies when a request does not set optimize.
	OptimizeDefault bool
	// MaxBodyBytes bounds chat request bodies.
	MaxBodyBytes int64
}

// Server is the HTTP front end.
type Server struct {
	cfg       Config
	runner    Runner
	artifacts ArtifactSource
	traces    TraceSource
	hub       *logging.Hub
	log       *zap.Logger
	runs      *semaphore.Weighted

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
	cancel   context.CancelFunc
	started  bool
}

// Option configures a Server.
type Option func(*Server)

// WithArtifacts enables artifact retrieval routes.
func WithArtifacts(a ArtifactSource) Option {
	return func(s *Server) { s.artifacts = a }
}

// WithTraces enables trace inspection routes.
func WithTraces(t TraceSource) Option {
	return func(s *Server) { s.traces = t }
}

// WithLogger sets the request logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Server) { s.log = l }
}

// WithHub sets the log hub streamed by /api/logs.
func WithHub(h *logging.Hub) Option {
	return func(s *Server) { s.hub = h }
}

// New creates a Server.
func New(cfg Config, runner Runner, opts ...Option) (*Server, error) {
	if runner == nil {
		return nil, errors.New("runner is required")
	}
	if cfg.Addr == "" {
		cfg.Addr = ":8000"
	}
	if cfg.MaxConcurrentRuns <= 0 {
		cfg.MaxConcurrentRuns = 4
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 10 << 20
	}

	s := &Server{
		cfg:    cfg,
		runner: runner,
		hub:    logging.DefaultHub(),
		log:    zap.NewNop(),
		runs:   semaphore.NewWeighted(int64(cfg.MaxConcurrentRuns)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Handler returns the routed handler with middleware applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.setupRoutes(mux)
	return s.withRequestLog(s.withCORS(mux))
}

func (s *Server) setupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/{$}", s.handleRoot)
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("POST /api/chat/", s.handleChat)
	mux.HandleFunc("POST /api/chat", s.handleChat)
	mux.HandleFunc("GET /api/artifacts", s.handleListArtifacts)
	mux.HandleFunc("GET "+store.ArtifactPath+"{id}", s.handleArtifact)
	mux.HandleFunc("GET /api/runs/{id}/traces", s.handleRunTraces)
	mux.HandleFunc("GET /api/stats", s.handleStats)
	mux.HandleFunc("GET /api/logs", s.handleLogs)
}

// Start listens on the configured address and serves until Stop is called
// or the server fails.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return errors.New("server already started")
	}

	listener, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.Addr, err)
	}
	s.listener = listener

	// Streaming handlers derive from baseCtx and end when it is cancelled.
	baseCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel
	s.server = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return baseCtx },
	}
	s.started = true
	srv := s.server
	s.mu.Unlock()

	logging.Server("listening on %s", listener.Addr())
	err = srv.Serve(listener)
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Stop shuts the server down, waiting up to the shutdown timeout for
// in-flight pipeline runs.
func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started || s.server == nil {
		return nil
	}

	s.cancel()

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	logging.Server("shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown error: %w", err)
	}

	s.started = false
	return nil
}

// ListenAddr returns the bound address, or "" before Start.
func (s *Server) ListenAddr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}
