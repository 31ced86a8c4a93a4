package domain

import "time"

// Severity is the closed three-level classification of incident impact.
type Severity string

// Severity levels.
const (
	SeverityLow    Severity = "Low"
	SeverityMedium Severity = "Medium"
	SeverityHigh   Severity = "High"
)

// Defaults applied when a draft omits the optional fields.
const (
	DefaultStatus   = "Under Review"
	DefaultAssignee = "Unassigned"
)

// Incident is a recorded safety incident.
//
// Status is deliberately an open string rather than an enum: persisted
// collections may carry values beyond the ones the reporting form suggests,
// and narrowing the type would reject previously valid data on load.
type Incident struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Severity    Severity  `json:"severity"`
	ReportedAt  time.Time `json:"reported_at"`
	Status      string    `json:"status"`
	AssignedTo  string    `json:"assigned_to"`
}

// IsValid checks if the severity is one of the three allowed levels.
func (s Severity) IsValid() bool {
	return s == SeverityLow || s == SeverityMedium || s == SeverityHigh
}

// Severities returns all severity levels in escalation order.
func Severities() []Severity {
	return []Severity{SeverityLow, SeverityMedium, SeverityHigh}
}
