// Package analytics derives summary statistics from an incident
// collection snapshot. All functions are pure and recomputed per call;
// no aggregate is ever cached.
package analytics

import (
	"sort"

	"github.com/sentinel-labs/safety-sentinel/internal/domain"
)

// DayCount is the number of incidents reported on one calendar date.
type DayCount struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

// dateLayout is the calendar-date form of reported_at, truncated in UTC
// so the grouping is reproducible across host time zones.
const dateLayout = "2006-01-02"

// CountBySeverity counts incidents per severity level. Every level is
// present in the result, zero or not, since severity is a closed set.
func CountBySeverity(collection []domain.Incident) map[domain.Severity]int {
	counts := make(map[domain.Severity]int, 3)
	for _, severity := range domain.Severities() {
		counts[severity] = 0
	}
	for _, incident := range collection {
		counts[incident.Severity]++
	}
	return counts
}

// CountByStatus counts incidents per status. Status is open-ended, so
// only the values actually present appear; there is no zero-filling.
func CountByStatus(collection []domain.Incident) map[string]int {
	counts := make(map[string]int)
	for _, incident := range collection {
		counts[incident.Status]++
	}
	return counts
}

// CountByDay groups incidents by the UTC calendar date of reported_at,
// one entry per distinct date, in ascending chronological order. Map
// iteration order would not give that, and the trend consumer needs it.
func CountByDay(collection []domain.Incident) []DayCount {
	byDate := make(map[string]int)
	for _, incident := range collection {
		byDate[incident.ReportedAt.UTC().Format(dateLayout)]++
	}

	days := make([]DayCount, 0, len(byDate))
	for date, count := range byDate {
		days = append(days, DayCount{Date: date, Count: count})
	}
	sort.Slice(days, func(i, j int) bool {
		return days[i].Date < days[j].Date
	})

	return days
}
