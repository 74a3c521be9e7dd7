// Package handlers implements the admin server's HTTP handlers.
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	apperrors "github.com/hpcforge/simrun/internal/errors"
)

// Checker probes one dependency's health.
type Checker func(ctx context.Context) error

// HealthResponse is the body of a successful health check.
type HealthResponse struct {
	Status  string            `json:"status"`
	Version string            `json:"version"`
	Checks  map[string]string `json:"checks,omitempty"`
}

// HealthManager runs registered checkers and serves the health endpoints.
type HealthManager struct {
	version string

	mu       sync.Mutex
	checkers map[string]Checker
}

// NewHealthManager returns a manager reporting the given version.
func NewHealthManager(version string) *HealthManager {
	return &HealthManager{
		version:  version,
		checkers: make(map[string]Checker),
	}
}

// RegisterChecker adds a named health checker.
func (m *HealthManager) RegisterChecker(name string, c Checker) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checkers[name] = c
}

// HealthHandler serves GET /healthz: 200 with per-check statuses when all
// checks pass, 503 with the standard error envelope otherwise.
func (m *HealthManager) HealthHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	checks := m.runChecks(ctx)
	status := overallStatus(checks)

	if status == "unhealthy" {
		apperrors.WriteErrorDetails(w, http.StatusServiceUnavailable,
			apperrors.CodeServiceUnavail, "one or more health checks failed",
			map[string]any{"checks": checks})
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(HealthResponse{
		Status:  status,
		Version: m.version,
		Checks:  checks,
	})
}

// LivenessHandler serves GET /healthz/live: always 200 while the process is
// up, regardless of checker state.
func (m *HealthManager) LivenessHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(HealthResponse{Status: "alive", Version: m.version})
}

func (m *HealthManager) runChecks(ctx context.Context) map[string]string {
	m.mu.Lock()
	checkers := make(map[string]Checker, len(m.checkers))
	for name, c := range m.checkers {
		checkers[name] = c
	}
	m.mu.Unlock()

	results := make(map[string]string, len(checkers))
	for name, check := range checkers {
		switch err := check(ctx); {
		case err == nil:
			results[name] = "healthy"
		case ctx.Err() != nil:
			results[name] = "timeout"
		default:
			results[name] = "unhealthy"
		}
	}
	return results
}

// overallStatus folds per-check results: any unhealthy check fails the
// whole probe, a timeout alone only degrades it.
func overallStatus(checks map[string]string) string {
	status := "healthy"
	for _, s := range checks {
		switch s {
		case "unhealthy":
			return "unhealthy"
		case "timeout":
			status = "degraded"
		}
	}
	return status
}
