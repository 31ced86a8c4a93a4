package incidents

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/sentinel-labs/safety-sentinel/internal/domain"
	"github.com/sentinel-labs/safety-sentinel/internal/pkg/httputil"
)

// Handler handles HTTP requests for the incidents module.
type Handler struct {
	service   *Service
	validator *validator.Validate
}

// NewHandler creates a new incidents handler.
func NewHandler(service *Service) *Handler {
	return &Handler{
		service:   service,
		validator: validator.New(),
	}
}

// RegisterReadRoutes registers the query routes.
func (h *Handler) RegisterReadRoutes(r chi.Router) {
	r.Get("/incidents", h.ListIncidents)
}

// RegisterWriteRoutes registers the mutation routes. Kept separate so the
// composition root can wrap them with write-path middleware.
func (h *Handler) RegisterWriteRoutes(r chi.Router) {
	r.Post("/incidents", h.CreateIncident)
	r.Patch("/incidents/{id}", h.UpdateIncident)
	r.Delete("/incidents/{id}", h.DeleteIncident)
}

// CreateIncidentRequest represents the request body for reporting an incident.
type CreateIncidentRequest struct {
	Title       string `json:"title" validate:"required,max=255"`
	Description string `json:"description" validate:"required"`
	Severity    string `json:"severity" validate:"required,oneof=Low Medium High"`
	Status      string `json:"status" validate:"max=255"`
	AssignedTo  string `json:"assigned_to" validate:"max=255"`
}

// ToDraft converts the request to a mutation draft.
func (r *CreateIncidentRequest) ToDraft() Draft {
	return Draft{
		Title:       r.Title,
		Description: r.Description,
		Severity:    domain.Severity(r.Severity),
		Status:      r.Status,
		AssignedTo:  r.AssignedTo,
	}
}

// UpdateIncidentRequest represents the request body for patching an
// incident. Absent fields are left unchanged; id and reported_at are
// immutable and not accepted.
type UpdateIncidentRequest struct {
	Title       *string `json:"title" validate:"omitempty,max=255"`
	Description *string `json:"description"`
	Severity    *string `json:"severity" validate:"omitempty,oneof=Low Medium High"`
	Status      *string `json:"status" validate:"omitempty,max=255"`
	AssignedTo  *string `json:"assigned_to" validate:"omitempty,max=255"`
}

// ToPatch converts the request to a mutation patch.
func (r *UpdateIncidentRequest) ToPatch() Patch {
	patch := Patch{
		Title:       r.Title,
		Description: r.Description,
		Status:      r.Status,
		AssignedTo:  r.AssignedTo,
	}
	if r.Severity != nil {
		severity := domain.Severity(*r.Severity)
		patch.Severity = &severity
	}
	return patch
}

// ListIncidents handles GET /incidents requests.
//
// Query parameters: severity (All|Low|Medium|High, default All),
// q (case-insensitive substring over title and description),
// sort (Newest|Oldest, default Newest).
func (h *Handler) ListIncidents(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()

	severity := SeverityFilter(params.Get("severity"))
	if !severity.IsValid() {
		httputil.Error(w, http.StatusBadRequest, "severity must be one of All, Low, Medium, High")
		return
	}

	sort := SortOrder(params.Get("sort"))
	if !sort.IsValid() {
		httputil.Error(w, http.StatusBadRequest, "sort must be Newest or Oldest")
		return
	}

	result := h.service.List(Query{
		Severity: severity,
		Search:   params.Get("q"),
		Sort:     sort,
	})

	httputil.Success(w, http.StatusOK, result)
}

// CreateIncident handles POST /incidents requests.
func (h *Handler) CreateIncident(w http.ResponseWriter, r *http.Request) {
	var req CreateIncidentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	incident, err := h.service.Add(r.Context(), req.ToDraft())
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	h.markDegraded(w)
	httputil.Success(w, http.StatusCreated, incident)
}

// UpdateIncident handles PATCH /incidents/{id} requests.
func (h *Handler) UpdateIncident(w http.ResponseWriter, r *http.Request) {
	id, ok := h.incidentID(w, r)
	if !ok {
		return
	}

	var req UpdateIncidentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	incident, err := h.service.Update(r.Context(), id, req.ToPatch())
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	h.markDegraded(w)
	httputil.Success(w, http.StatusOK, incident)
}

// DeleteIncident handles DELETE /incidents/{id} requests. Deleting an
// unknown id still responds 204 so duplicate deletes stay idempotent.
func (h *Handler) DeleteIncident(w http.ResponseWriter, r *http.Request) {
	id, ok := h.incidentID(w, r)
	if !ok {
		return
	}

	h.service.Remove(r.Context(), id)

	h.markDegraded(w)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) incidentID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid incident id")
		return 0, false
	}
	return id, true
}

func (h *Handler) handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *ValidationError
	if errors.As(err, &verr) {
		httputil.FieldError(w, verr.Field, verr.Reason)
		return
	}

	httputil.HandleError(r.Context(), w, err, []httputil.ErrorMapping{
		{Error: ErrIncidentNotFound, Status: http.StatusNotFound},
	})
}

// markDegraded flags the response when the last persistence attempt
// failed and the session is running in-memory only.
func (h *Handler) markDegraded(w http.ResponseWriter) {
	if h.service.SaveError() != nil {
		w.Header().Set("X-Storage-Degraded", "true")
	}
}
