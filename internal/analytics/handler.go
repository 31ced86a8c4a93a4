package analytics

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/sentinel-labs/safety-sentinel/internal/domain"
	"github.com/sentinel-labs/safety-sentinel/internal/pkg/httputil"
)

// SnapshotProvider supplies the collection snapshot aggregates are
// derived from (implemented by the incidents service).
type SnapshotProvider interface {
	Snapshot() []domain.Incident
}

// Handler handles HTTP requests for the analytics module.
type Handler struct {
	incidents SnapshotProvider
}

// NewHandler creates a new analytics handler.
func NewHandler(incidents SnapshotProvider) *Handler {
	return &Handler{incidents: incidents}
}

// RegisterRoutes registers all HTTP routes for the analytics module.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/analytics", func(r chi.Router) {
		r.Get("/severity", h.GetSeverityCounts)
		r.Get("/status", h.GetStatusCounts)
		r.Get("/trend", h.GetTrend)
	})
}

// GetSeverityCounts handles GET /analytics/severity requests.
func (h *Handler) GetSeverityCounts(w http.ResponseWriter, _ *http.Request) {
	httputil.Success(w, http.StatusOK, CountBySeverity(h.incidents.Snapshot()))
}

// GetStatusCounts handles GET /analytics/status requests.
func (h *Handler) GetStatusCounts(w http.ResponseWriter, _ *http.Request) {
	httputil.Success(w, http.StatusOK, CountByStatus(h.incidents.Snapshot()))
}

// GetTrend handles GET /analytics/trend requests.
func (h *Handler) GetTrend(w http.ResponseWriter, _ *http.Request) {
	httputil.Success(w, http.StatusOK, CountByDay(h.incidents.Snapshot()))
}
