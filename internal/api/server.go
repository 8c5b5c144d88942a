package api

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/mattjoyce/warden/internal/auth"
	"github.com/mattjoyce/warden/internal/events"
	"github.com/mattjoyce/warden/internal/runlog"
	"github.com/mattjoyce/warden/internal/track"
)

//go:generate mockgen -destination=mocks/mock_api.go -package=mocks github.com/mattjoyce/warden/internal/api Tracker,RunLog

// Tracker is the script tracker as seen by the API.
type Tracker interface {
	Register(job track.JobID, pid int, owner track.OwnerID) (*track.Handle, error)
	UpdatePID(owner track.OwnerID, pid int)
	Deregister(owner track.OwnerID) bool
	KillJob(job track.JobID) int
	Flush()
	Killed(owner track.OwnerID, status track.WaitStatus) bool
	Lookup(owner track.OwnerID) (track.Record, bool)
	Snapshot() []track.Record
	Stats() track.Stats
}

// RunLog persists script runs. It is optional.
type RunLog interface {
	Start(ctx context.Context, req runlog.StartRequest) error
	SetPID(ctx context.Context, owner string, pid int) error
	Finish(ctx context.Context, req runlog.FinishRequest) error
	Recent(ctx context.Context, limit int) ([]runlog.Run, error)
	Anomalies(ctx context.Context, limit int) ([]runlog.Anomaly, error)
}

// EventSource feeds the SSE endpoint. events.Hub satisfies it.
type EventSource interface {
	SubscribeMatching(match func(eventType string) bool) (<-chan events.Event, func())
	SnapshotSince(lastID int64) []events.Event
}

// Config holds API server configuration
type Config struct {
	Listen string
	// APIKey is a single bearer token with full access.
	APIKey string
	// Tokens is an optional list of scoped bearer tokens.
	Tokens []auth.TokenConfig
	// FlushTimeout bounds POST /flush. Zero means no bound beyond the
	// server's write timeout.
	FlushTimeout time.Duration
}

// Server represents the HTTP API server
type Server struct {
	config    Config
	tracker   Tracker
	runs      RunLog
	events    EventSource
	logger    *slog.Logger
	server    *http.Server
	startedAt time.Time
	newOwner  func() track.OwnerID

	// closing is closed when shutdown begins so long-lived streams end
	// instead of holding Shutdown open.
	closing   chan struct{}
	closeOnce sync.Once
}

// New creates a new API server instance. runs may be nil.
func New(config Config, tracker Tracker, runs RunLog, events EventSource, logger *slog.Logger) *Server {
	return &Server{
		config:    config,
		tracker:   tracker,
		runs:      runs,
		events:    events,
		logger:    logger,
		startedAt: time.Now(),
		newOwner:  newOwnerID,
		closing:   make(chan struct{}),
	}
}

// Handler returns the routed handler without starting a listener.
func (s *Server) Handler() http.Handler {
	return s.setupRoutes()
}

// Serve runs the API on ln until ctx is done.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.server = &http.Server{
		Handler:     s.setupRoutes(),
		ReadTimeout: 10 * time.Second,
		// Flush blocks until every killed script is cleaned up.
		WriteTimeout: 10 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}
	s.server.RegisterOnShutdown(func() {
		s.closeOnce.Do(func() { close(s.closing) })
	})

	s.logger.Info("API server starting", "listen", ln.Addr().String())

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("API server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn("API server did not drain, closing connections", "error", err)
			if cerr := s.server.Close(); cerr != nil {
				return fmt.Errorf("server close failed: %w", cerr)
			}
		}
		return nil
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}
}

// setupRoutes configures the HTTP router
func (s *Server) setupRoutes() *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggingMiddleware)
	r.Use(middleware.Recoverer)

	// Unauthenticated ops endpoint.
	r.Get("/healthz", s.handleHealthz)

	r.Group(func(r chi.Router) {
		r.Use(s.authMiddleware)

		read := s.requireScopes(auth.ScopeScriptsRead, auth.ScopeAdmin)
		write := s.requireScopes(auth.ScopeScriptsWrite, auth.ScopeAdmin)

		r.With(write).Post("/scripts", s.handleRegister)
		r.With(read).Get("/scripts", s.handleListScripts)
		r.With(read).Get("/scripts/{owner}", s.handleGetScript)
		r.With(write).Put("/scripts/{owner}/pid", s.handleUpdatePID)
		r.With(write).Post("/scripts/{owner}/exit", s.handleExit)
		r.With(write).Delete("/scripts/{owner}", s.handleDeregister)

		r.With(s.requireScopes(auth.ScopeJobsWrite, auth.ScopeAdmin)).Post("/jobs/{jobID}/kill", s.handleKillJob)
		r.With(s.requireScopes(auth.ScopeAdmin)).Post("/flush", s.handleFlush)

		r.With(read).Get("/stats", s.handleStats)
		r.With(read).Get("/runs", s.handleRuns)
		r.With(read).Get("/anomalies", s.handleAnomalies)
		r.With(s.requireScopes(auth.ScopeEventsRead, auth.ScopeAdmin)).Get("/events", s.handleEvents)
	})

	return r
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
