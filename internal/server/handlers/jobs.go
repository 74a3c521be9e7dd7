package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	apperrors "github.com/hpcforge/simrun/internal/errors"
	"github.com/hpcforge/simrun/pkg/jobmanager"
)

// Jobs serves read-only views of the job manager's tracked jobs.
type Jobs struct {
	manager *jobmanager.Manager
}

// NewJobs returns handlers backed by the given manager.
func NewJobs(m *jobmanager.Manager) *Jobs {
	return &Jobs{manager: m}
}

// ListResponse is the body of GET /api/v1/jobs.
type ListResponse struct {
	State string                  `json:"state"`
	Jobs  []jobmanager.JobSummary `json:"jobs"`
}

// List serves GET /api/v1/jobs: every tracked job, active first.
func (h *Jobs) List(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(ListResponse{
		State: string(h.manager.State()),
		Jobs:  h.manager.Snapshot(),
	})
}

// Get serves GET /api/v1/jobs/{entity}: one job by entity name.
func (h *Jobs) Get(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "entity")

	for _, summary := range h.manager.Snapshot() {
		if summary.EntityName == name {
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(summary)
			return
		}
	}
	apperrors.WriteError(w, http.StatusNotFound, apperrors.CodeNotFound,
		"no job tracked for entity "+name)
}

// Addresses serves GET /api/v1/featurestore/addresses: every resolved
// ip:port pair of the tracked feature store.
func (h *Jobs) Addresses(w http.ResponseWriter, r *http.Request) {
	addrs, err := h.manager.FeatureStoreAddresses()
	if err != nil {
		apperrors.WriteError(w, http.StatusServiceUnavailable, apperrors.CodeServiceUnavail, err.Error())
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string][]string{"addresses": addrs})
}
