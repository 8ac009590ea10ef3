// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package api serves the streamcap control API.
package api

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/ManuGH/streamcap/internal/api/middleware"
	"github.com/ManuGH/streamcap/internal/capture/model"
	"github.com/ManuGH/streamcap/internal/log"
	"github.com/ManuGH/streamcap/internal/schedule"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// BaseURL prefixes every API route.
const BaseURL = "/api/v1"

const (
	maxBodyBytes    = 64 << 10
	shutdownTimeout = 10 * time.Second
)

// SessionService is implemented by the session registry.
type SessionService interface {
	Launch(ctx context.Context, req model.LaunchRequest) (*model.Snapshot, error)
	Get(id string) (*model.Snapshot, error)
	List() []*model.Snapshot
	Select(id, url string) (*model.Snapshot, error)
	Close(id string) (*model.Snapshot, error)
	KeepOpen(id string) (*model.Snapshot, error)
	ClearProfile(ctx context.Context) error
}

// ScheduleService is implemented by the schedule engine.
type ScheduleService interface {
	Create(ctx context.Context, in schedule.Input) (schedule.Schedule, error)
	Update(ctx context.Context, id string, in schedule.Input) (schedule.Schedule, error)
	Delete(ctx context.Context, id string) error
	Get(id string) (schedule.Schedule, error)
	List() []schedule.Schedule
	RefreshAll(ctx context.Context) (int, error)
}

// Config configures the server.
type Config struct {
	Listen         string
	AllowedOrigins []string
	// Session starts per minute per client; 0 disables the limit.
	RateLimitRPM int
	// Enables otelhttp server spans.
	Tracing bool
}

// Deps are the services behind the API.
type Deps struct {
	Sessions  SessionService
	Schedules ScheduleService
	// Health serves /healthz; nil answers 200.
	Health http.HandlerFunc
	// Ready serves /readyz; nil falls back to Health.
	Ready http.HandlerFunc
	// ScheduleChanged runs after a schedule was created, updated, deleted
	// or refreshed.
	ScheduleChanged func()
}

// Server is the HTTP control API.
type Server struct {
	cfg  Config
	deps Deps
	srv  *http.Server
}

// New creates a server; call Handler for tests or ListenAndServe to run it.
func New(cfg Config, deps Deps) *Server {
	s := &Server{cfg: cfg, deps: deps}
	s.srv = &http.Server{
		Addr:              cfg.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}
	return s
}

// Handler returns the routed handler with the middleware stack applied.
func (s *Server) Handler() http.Handler {
	tracing := ""
	if s.cfg.Tracing {
		tracing = "streamcap-api"
	}
	r := middleware.NewRouter(middleware.StackConfig{
		EnableCORS:            len(s.cfg.AllowedOrigins) > 0,
		AllowedOrigins:        s.cfg.AllowedOrigins,
		EnableSecurityHeaders: true,
		EnableCSRF:            true,
		EnableMetrics:         true,
		TracingService:        tracing,
		EnableLogging:         true,
	})

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Handle("/metrics", promhttp.Handler())

	r.Route(BaseURL, func(r chi.Router) {
		r.Route("/sessions", func(r chi.Router) {
			r.With(middleware.SessionStartLimit(s.cfg.RateLimitRPM)).Post("/", s.handleStartSession)
			r.Get("/", s.handleListSessions)
			r.Get("/{id}", s.handleGetSession)
			r.Post("/{id}/select", s.handleSelectStream)
			r.Post("/{id}/keep-open", s.handleKeepOpen)
			r.Delete("/{id}", s.handleCloseSession)
		})
		r.Route("/schedules", func(r chi.Router) {
			r.Get("/", s.handleListSchedules)
			r.Post("/", s.handleCreateSchedule)
			r.Post("/refresh", s.handleRefreshSchedules)
			r.Get("/{id}", s.handleGetSchedule)
			r.Put("/{id}", s.handleUpdateSchedule)
			r.Delete("/{id}", s.handleDeleteSchedule)
		})
		r.Post("/browser/clear-profile", s.handleClearProfile)
	})
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeProblem(w, r, http.StatusNotFound, "request/not-found", "Not found", "NOT_FOUND", "No route for "+r.URL.Path)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeProblem(w, r, http.StatusMethodNotAllowed, "request/method-not-allowed", "Method not allowed", "METHOD_NOT_ALLOWED", r.Method+" is not allowed on "+r.URL.Path)
	})
	return r
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Listen)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	logger := log.WithComponent("api")
	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", ln.Addr().String()).Msg("api listening")
		errCh <- s.srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	logger.Info().Msg("api shutting down")
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.deps.Health == nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
		return
	}
	s.deps.Health(w, r)
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.deps.Ready == nil {
		s.handleHealth(w, r)
		return
	}
	s.deps.Ready(w, r)
}

func (s *Server) scheduleChanged() {
	if s.deps.ScheduleChanged != nil {
		s.deps.ScheduleChanged()
	}
}
