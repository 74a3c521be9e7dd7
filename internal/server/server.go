// Package server hosts the admin HTTP API: health probes and read-only
// views of the jobs tracked by the job manager.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	apperrors "github.com/hpcforge/simrun/internal/errors"
	"github.com/hpcforge/simrun/internal/observability"
	"github.com/hpcforge/simrun/internal/server/handlers"
	"github.com/hpcforge/simrun/internal/server/middleware"
	"github.com/hpcforge/simrun/pkg/jobmanager"
)

// Options tunes server construction.
type Options struct {
	Host    string
	Port    int
	Version string

	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// Server is the admin HTTP server.
type Server struct {
	opts    Options
	router  chi.Router
	manager *jobmanager.Manager
	log     *zap.Logger
}

// New builds a server exposing the given job manager.
func New(opts Options, manager *jobmanager.Manager) *Server {
	if opts.Version == "" {
		opts.Version = "dev"
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = 10 * time.Second
	}

	s := &Server{
		opts:    opts,
		manager: manager,
		log:     observability.Logger("server"),
	}
	s.router = s.buildRouter()
	return s
}

// Handler returns the server's root handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Port returns the configured listen port.
func (s *Server) Port() int {
	return s.opts.Port
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return fmt.Sprintf("%s:%d", s.opts.Host, s.opts.Port)
}

// ListenAndServe runs the server until ctx is cancelled, then shuts down
// gracefully within the configured shutdown timeout.
func (s *Server) ListenAndServe(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:         s.Addr(),
		Handler:      s.router,
		ReadTimeout:  s.opts.ReadTimeout,
		WriteTimeout: s.opts.WriteTimeout,
		IdleTimeout:  s.opts.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("admin server listening", zap.String("addr", s.Addr()))
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recovery)
	r.Use(chimiddleware.RealIP)

	r.NotFound(apperrors.NotFoundHandler)
	r.MethodNotAllowed(apperrors.MethodNotAllowedHandler)

	health := handlers.NewHealthManager(s.opts.Version)
	health.RegisterChecker("jobmanager", s.checkManager)

	r.Get("/healthz", health.HealthHandler)
	r.Get("/healthz/live", health.LivenessHandler)
	r.Get("/version", s.versionHandler)

	jobs := handlers.NewJobs(s.manager)
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/jobs", jobs.List)
		r.Get("/jobs/{entity}", jobs.Get)
		r.Get("/featurestore/addresses", jobs.Addresses)
	})

	return r
}

// checkManager verifies the job manager is wired in. The server can come up
// before monitoring starts, so a stopped manager is still healthy.
func (s *Server) checkManager(ctx context.Context) error {
	if s.manager == nil {
		return fmt.Errorf("no job manager attached")
	}
	return nil
}

func (s *Server) versionHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"version": s.opts.Version})
}
