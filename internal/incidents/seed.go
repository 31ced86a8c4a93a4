package incidents

import (
	"time"

	"github.com/sentinel-labs/safety-sentinel/internal/domain"
)

// SeedIncidents returns the sample incidents shipped for the first-run
// experience. Also used as the recovery collection when stored data turns
// out to be unreadable.
func SeedIncidents() []domain.Incident {
	return []domain.Incident{
		{
			ID:          1,
			Title:       "Biased Recommendation Algorithm",
			Description: "Algorithm consistently favored certain demographics in job recommendations",
			Severity:    domain.SeverityMedium,
			ReportedAt:  time.Date(2025, 3, 15, 10, 0, 0, 0, time.UTC),
			Status:      "Under Review",
			AssignedTo:  "Safety Team Alpha",
		},
		{
			ID:          2,
			Title:       "LLM Hallucination in Critical Info",
			Description: "LLM provided incorrect medical information that could have serious consequences",
			Severity:    domain.SeverityHigh,
			ReportedAt:  time.Date(2025, 4, 1, 14, 30, 0, 0, time.UTC),
			Status:      "Critical",
			AssignedTo:  "Emergency Response",
		},
		{
			ID:          3,
			Title:       "Minor Data Leak via Chatbot",
			Description: "Chatbot inadvertently exposed non-sensitive user metadata through API response",
			Severity:    domain.SeverityLow,
			ReportedAt:  time.Date(2025, 3, 20, 9, 15, 0, 0, time.UTC),
			Status:      "Resolved",
			AssignedTo:  "Data Protection Unit",
		},
	}
}
