package incidents

import (
	"strings"
	"time"

	"github.com/sentinel-labs/safety-sentinel/internal/domain"
)

// Draft holds the user-supplied data for a new incident, prior to
// defaulting and id assignment.
type Draft struct {
	Title       string
	Description string
	Severity    domain.Severity
	Status      string
	AssignedTo  string
}

// Patch holds a partial update for an existing incident. Nil fields are
// left unchanged. ID and ReportedAt are immutable and cannot be patched.
type Patch struct {
	Title       *string
	Description *string
	Severity    *domain.Severity
	Status      *string
	AssignedTo  *string
}

// AddIncident validates the draft and returns a new collection with the
// created incident appended. The input collection is never mutated.
//
// The new incident gets a unique id derived from now (unix milliseconds,
// bumped past any collision), reported_at stamped to now, and the status
// and assignee defaults when the draft omits them.
func AddIncident(collection []domain.Incident, draft Draft, now time.Time) ([]domain.Incident, domain.Incident, error) {
	if err := validateDraft(draft); err != nil {
		return nil, domain.Incident{}, err
	}

	incident := domain.Incident{
		ID:          nextID(collection, now),
		Title:       draft.Title,
		Description: draft.Description,
		Severity:    draft.Severity,
		ReportedAt:  now.UTC(),
		Status:      draft.Status,
		AssignedTo:  draft.AssignedTo,
	}
	if incident.Status == "" {
		incident.Status = domain.DefaultStatus
	}
	if incident.AssignedTo == "" {
		incident.AssignedTo = domain.DefaultAssignee
	}

	next := make([]domain.Incident, 0, len(collection)+1)
	next = append(next, collection...)
	next = append(next, incident)

	return next, incident, nil
}

// RemoveIncident returns a new collection with the incident matching id
// excluded. Removing an unknown id is not an error: the result is simply
// an equal collection, which keeps duplicate delete requests idempotent.
func RemoveIncident(collection []domain.Incident, id int64) []domain.Incident {
	next := make([]domain.Incident, 0, len(collection))
	for _, incident := range collection {
		if incident.ID == id {
			continue
		}
		next = append(next, incident)
	}
	return next
}

// UpdateIncident applies a patch to the incident matching id and returns
// a new collection with the incident replaced in place (insertion order
// preserved). Unlike removal, patching an unknown id is an error.
func UpdateIncident(collection []domain.Incident, id int64, patch Patch) ([]domain.Incident, domain.Incident, error) {
	if err := validatePatch(patch); err != nil {
		return nil, domain.Incident{}, err
	}

	next := make([]domain.Incident, len(collection))
	copy(next, collection)

	for i := range next {
		if next[i].ID != id {
			continue
		}
		if patch.Title != nil {
			next[i].Title = *patch.Title
		}
		if patch.Description != nil {
			next[i].Description = *patch.Description
		}
		if patch.Severity != nil {
			next[i].Severity = *patch.Severity
		}
		if patch.Status != nil {
			next[i].Status = *patch.Status
		}
		if patch.AssignedTo != nil {
			next[i].AssignedTo = *patch.AssignedTo
		}
		return next, next[i], nil
	}

	return nil, domain.Incident{}, ErrIncidentNotFound
}

func validateDraft(draft Draft) error {
	if strings.TrimSpace(draft.Title) == "" {
		return &ValidationError{Field: "title", Reason: "must not be empty"}
	}
	if strings.TrimSpace(draft.Description) == "" {
		return &ValidationError{Field: "description", Reason: "must not be empty"}
	}
	if !draft.Severity.IsValid() {
		return &ValidationError{Field: "severity", Reason: "must be one of Low, Medium, High"}
	}
	return nil
}

func validatePatch(patch Patch) error {
	if patch.Title != nil && strings.TrimSpace(*patch.Title) == "" {
		return &ValidationError{Field: "title", Reason: "must not be empty"}
	}
	if patch.Description != nil && strings.TrimSpace(*patch.Description) == "" {
		return &ValidationError{Field: "description", Reason: "must not be empty"}
	}
	if patch.Severity != nil && !patch.Severity.IsValid() {
		return &ValidationError{Field: "severity", Reason: "must be one of Low, Medium, High"}
	}
	return nil
}

// nextID derives a fresh id from the creation instant. Millisecond
// timestamps collide when two incidents are created within the same
// millisecond, so the candidate is bumped until it is unique.
func nextID(collection []domain.Incident, now time.Time) int64 {
	taken := make(map[int64]struct{}, len(collection))
	for _, incident := range collection {
		taken[incident.ID] = struct{}{}
	}

	id := now.UnixMilli()
	for {
		if _, exists := taken[id]; !exists {
			return id
		}
		id++
	}
}
