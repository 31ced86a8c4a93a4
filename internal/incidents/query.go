package incidents

import (
	"sort"
	"strings"

	"github.com/sentinel-labs/safety-sentinel/internal/domain"
	"golang.org/x/text/cases"
)

// SeverityFilter narrows a query to one severity level. The zero value
// and FilterAll both pass every incident.
type SeverityFilter string

// FilterAll passes incidents of any severity.
const FilterAll SeverityFilter = "All"

// IsValid checks if the filter is All or one of the severity levels.
func (f SeverityFilter) IsValid() bool {
	return f == "" || f == FilterAll || domain.Severity(f).IsValid()
}

func (f SeverityFilter) matches(s domain.Severity) bool {
	return f == "" || f == FilterAll || domain.Severity(f) == s
}

// SortOrder selects the direction of the reported_at sort. The zero
// value sorts newest first.
type SortOrder string

// Sort orders.
const (
	SortNewest SortOrder = "Newest"
	SortOldest SortOrder = "Oldest"
)

// IsValid checks if the sort order is one of the known directions.
func (o SortOrder) IsValid() bool {
	return o == "" || o == SortNewest || o == SortOldest
}

// Query holds the three independent criteria of the list view.
type Query struct {
	Severity SeverityFilter
	Search   string
	Sort     SortOrder
}

// QueryIncidents derives the filtered, searched, sorted view of the
// collection. The input is never mutated and the result is deterministic:
// incidents with equal reported_at keep their relative insertion order.
//
// Search is a case-insensitive substring match over title and description,
// using Unicode case folding rather than ASCII lowercasing.
func QueryIncidents(collection []domain.Incident, q Query) []domain.Incident {
	// cases.Caser is stateful, so a fresh one per call.
	fold := cases.Fold()

	var needle string
	if q.Search != "" {
		needle = fold.String(q.Search)
	}

	matched := make([]domain.Incident, 0, len(collection))
	for _, incident := range collection {
		if !q.Severity.matches(incident.Severity) {
			continue
		}
		if needle != "" &&
			!strings.Contains(fold.String(incident.Title), needle) &&
			!strings.Contains(fold.String(incident.Description), needle) {
			continue
		}
		matched = append(matched, incident)
	}

	if q.Sort == SortOldest {
		sort.SliceStable(matched, func(i, j int) bool {
			return matched[i].ReportedAt.Before(matched[j].ReportedAt)
		})
	} else {
		sort.SliceStable(matched, func(i, j int) bool {
			return matched[i].ReportedAt.After(matched[j].ReportedAt)
		})
	}

	return matched
}
