package analytics

import (
	"testing"
	"time"

	"github.com/sentinel-labs/safety-sentinel/internal/domain"
	"github.com/sentinel-labs/safety-sentinel/internal/incidents"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCountBySeverity(t *testing.T) {
	got := CountBySeverity(incidents.SeedIncidents())

	assert.Equal(t, map[domain.Severity]int{
		domain.SeverityLow:    1,
		domain.SeverityMedium: 1,
		domain.SeverityHigh:   1,
	}, got)
}

func TestCountBySeverity_ZeroFillsEmptyCollection(t *testing.T) {
	got := CountBySeverity(nil)

	// Severity is a closed set, every level appears even at zero.
	assert.Equal(t, map[domain.Severity]int{
		domain.SeverityLow:    0,
		domain.SeverityMedium: 0,
		domain.SeverityHigh:   0,
	}, got)
}

func TestCountBySeverity_TotalsMatchCollectionSize(t *testing.T) {
	collection := incidents.SeedIncidents()
	collection = append(collection, domain.Incident{
		ID: 4, Title: "t", Description: "d", Severity: domain.SeverityHigh,
		ReportedAt: time.Date(2025, 4, 2, 0, 0, 0, 0, time.UTC),
	})

	got := CountBySeverity(collection)

	total := 0
	for _, count := range got {
		total += count
	}
	assert.Equal(t, len(collection), total)
}

func TestCountByStatus(t *testing.T) {
	got := CountByStatus(incidents.SeedIncidents())

	assert.Equal(t, map[string]int{
		"Under Review": 1,
		"Critical":     1,
		"Resolved":     1,
	}, got)
}

func TestCountByStatus_OnlyPresentValues(t *testing.T) {
	got := CountByStatus(nil)

	// Status is open-ended, nothing to zero-fill.
	assert.Empty(t, got)
}

func TestCountByDay(t *testing.T) {
	got := CountByDay(incidents.SeedIncidents())

	assert.Equal(t, []DayCount{
		{Date: "2025-03-15", Count: 1},
		{Date: "2025-03-20", Count: 1},
		{Date: "2025-04-01", Count: 1},
	}, got)
}

func TestCountByDay_GroupsSameDate(t *testing.T) {
	day := time.Date(2025, 7, 4, 0, 0, 0, 0, time.UTC)
	collection := []domain.Incident{
		{ID: 1, ReportedAt: day.Add(2 * time.Hour)},
		{ID: 2, ReportedAt: day.Add(23 * time.Hour)},
		{ID: 3, ReportedAt: day.Add(26 * time.Hour)},
	}

	got := CountByDay(collection)

	assert.Equal(t, []DayCount{
		{Date: "2025-07-04", Count: 2},
		{Date: "2025-07-05", Count: 1},
	}, got)
}

func TestCountByDay_TruncatesInUTC(t *testing.T) {
	loc := time.FixedZone("UTC-5", -5*60*60)
	collection := []domain.Incident{
		// 23:30 local on the 15th is already the 16th in UTC.
		{ID: 1, ReportedAt: time.Date(2025, 3, 15, 23, 30, 0, 0, loc)},
	}

	got := CountByDay(collection)

	require.Len(t, got, 1)
	assert.Equal(t, "2025-03-16", got[0].Date)
}

func TestCountByDay_EmptyCollection(t *testing.T) {
	assert.Empty(t, CountByDay(nil))
}
