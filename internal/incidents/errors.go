package incidents

import (
	"errors"
	"fmt"
)

// Service errors.
var (
	ErrIncidentNotFound = errors.New("incident not found")
)

// Storage errors.
var (
	// ErrNoData indicates the backend holds no prior collection at all,
	// as opposed to holding an empty one. First-run seeding keys off this.
	ErrNoData = errors.New("no stored incident data")
)

// ValidationError reports a draft or patch field that failed validation.
// It blocks the mutation; the existing collection is left untouched.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}
