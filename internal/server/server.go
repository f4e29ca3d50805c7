// Package server exposes account sign-up, log-in and handle analysis over HTTP.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spacesedan/sentiscope/internal/accounts"
	"github.com/spacesedan/sentiscope/internal/metrics"
	"github.com/spacesedan/sentiscope/internal/processing"
)

// Analyzer runs the document pipeline for one handle.
type Analyzer interface {
	Run(ctx context.Context, handle string, limit int, mode processing.Mode) (processing.Result, error)
}

type AccountService interface {
	Register(ctx context.Context, username, password string) (accounts.Account, error)
	Authenticate(ctx context.Context, username, password string) (accounts.Account, error)
}

type HealthReporter interface {
	Snapshot() map[string]bool
	Healthy() bool
	Unhealthy() []string
}

type Options struct {
	RequireAuth  bool
	DefaultLimit int
	MaxLimit     int
	FetchTimeout time.Duration
	// Metrics, when set, instruments requests, runs and sinks and is served
	// on /metrics.
	Metrics *metrics.Metrics
}

type Server struct {
	analyzer Analyzer
	accounts AccountService
	health   HealthReporter
	sinks    []processing.Sink
	opts     Options
	exports  sync.WaitGroup

	mu     sync.Mutex
	server *http.Server
}

// NewServer wires the handlers. health may be nil; sinks receive every
// finished analysis in the background.
func NewServer(analyzer Analyzer, accts AccountService, health HealthReporter, opts Options, sinks ...processing.Sink) *Server {
	if opts.DefaultLimit <= 0 {
		opts.DefaultLimit = 100
	}
	if opts.MaxLimit < opts.DefaultLimit {
		opts.MaxLimit = opts.DefaultLimit
	}
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = 30 * time.Second
	}
	return &Server{
		analyzer: analyzer,
		accounts: accts,
		health:   health,
		sinks:    opts.Metrics.InstrumentSinks(sinks...),
		opts:     opts,
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(s.opts.Metrics.Middleware)

	r.Get("/healthz", s.handleHealth)
	if s.opts.Metrics != nil {
		r.Handle("/metrics", s.opts.Metrics.Handler())
	}

	r.Post("/api/accounts", s.handleRegister)
	r.Post("/api/sessions", s.handleLogin)

	r.Group(func(r chi.Router) {
		r.Use(s.basicAuth)
		r.Get("/api/handles/{handle}/documents", s.handleDocuments)
		r.Get("/api/handles/{handle}/analysis", s.handleAnalysis)
		r.Get("/handles/{handle}/report", s.handleReport)
	})

	return r
}

// Start serves on addr and blocks until the server stops.
func (s *Server) Start(addr string) error {
	hs := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.mu.Lock()
	s.server = hs
	s.mu.Unlock()

	slog.Info("[Server] Starting server", slog.String("addr", addr))
	return hs.ListenAndServe()
}

// Stop shuts the listener down and waits for background exports.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	hs := s.server
	s.mu.Unlock()

	var err error
	if hs != nil {
		err = hs.Shutdown(ctx)
	}

	done := make(chan struct{})
	go func() {
		s.exports.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		slog.Warn("[Server] Shutdown deadline reached with exports in flight")
	}
	return err
}
