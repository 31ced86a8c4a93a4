package app_test

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/sentinel-labs/safety-sentinel/internal/app"
	"github.com/sentinel-labs/safety-sentinel/internal/config"
	"github.com/sentinel-labs/safety-sentinel/internal/domain"
	"github.com/sentinel-labs/safety-sentinel/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const specPath = "../../api/openapi/openapi.yaml"

type listPayload struct {
	Data []domain.Incident `json:"data"`
}

type incidentPayload struct {
	Data domain.Incident `json:"data"`
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()

	cfg := config.Default()
	cfg.Storage.Dir = t.TempDir()
	return cfg
}

// newTestClient boots a fresh application over its own data directory and
// returns a client that validates every response against the contract.
func newTestClient(t *testing.T, cfg *config.Config) *testutil.Client {
	t.Helper()

	application, err := app.New(cfg)
	require.NoError(t, err)

	server := httptest.NewServer(application.Router())
	t.Cleanup(server.Close)

	return testutil.NewClientWithValidation(t, server.URL, specPath)
}

func TestListIncidents_SeedsOnFirstRun(t *testing.T) {
	client := newTestClient(t, testConfig(t))

	resp, err := client.GET("/api/v1/incidents")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var payload listPayload
	testutil.DecodeJSON(t, resp, &payload)

	require.Len(t, payload.Data, 3)
	// Newest first by default.
	assert.Equal(t, int64(2), payload.Data[0].ID)
	assert.Equal(t, int64(3), payload.Data[1].ID)
	assert.Equal(t, int64(1), payload.Data[2].ID)
}

func TestListIncidents_QueryParameters(t *testing.T) {
	client := newTestClient(t, testConfig(t))

	tests := []struct {
		name  string
		query string
		want  []int64
	}{
		{name: "severity filter", query: "?severity=High", want: []int64{2}},
		{name: "severity all", query: "?severity=All", want: []int64{2, 3, 1}},
		{name: "search", query: "?q=chatbot", want: []int64{3}},
		{name: "search case insensitive", query: "?q=MEDICAL", want: []int64{2}},
		{name: "sort oldest", query: "?sort=Oldest", want: []int64{1, 3, 2}},
		{name: "combined", query: "?severity=Low&q=chatbot&sort=Oldest", want: []int64{3}},
		{name: "no match", query: "?q=quantum", want: []int64{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client.SetT(t)

			resp, err := client.GET("/api/v1/incidents" + tt.query)
			require.NoError(t, err)
			require.Equal(t, http.StatusOK, resp.StatusCode)

			var payload listPayload
			testutil.DecodeJSON(t, resp, &payload)

			got := make([]int64, 0, len(payload.Data))
			for _, incident := range payload.Data {
				got = append(got, incident.ID)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestListIncidents_InvalidParameters(t *testing.T) {
	client := newTestClient(t, testConfig(t))

	resp, err := client.GET("/api/v1/incidents?severity=urgent")
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	_ = resp.Body.Close()

	resp, err = client.GET("/api/v1/incidents?sort=Alphabetical")
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	_ = resp.Body.Close()
}

func TestCreateIncident(t *testing.T) {
	client := newTestClient(t, testConfig(t))

	resp, err := client.POST("/api/v1/incidents", map[string]string{
		"title":       "Training Data Contamination",
		"description": "Benchmark answers found verbatim in the training corpus",
		"severity":    "Medium",
	})
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var payload incidentPayload
	testutil.DecodeJSON(t, resp, &payload)

	created := payload.Data
	assert.NotZero(t, created.ID)
	assert.Equal(t, "Training Data Contamination", created.Title)
	assert.Equal(t, domain.SeverityMedium, created.Severity)
	assert.Equal(t, domain.DefaultStatus, created.Status)
	assert.Equal(t, domain.DefaultAssignee, created.AssignedTo)
	assert.False(t, created.ReportedAt.IsZero())

	resp, err = client.GET("/api/v1/incidents")
	require.NoError(t, err)
	var list listPayload
	testutil.DecodeJSON(t, resp, &list)
	assert.Len(t, list.Data, 4)
}

func TestCreateIncident_Validation(t *testing.T) {
	client := newTestClient(t, testConfig(t))

	tests := []struct {
		name string
		body map[string]string
	}{
		{name: "missing title", body: map[string]string{"description": "d", "severity": "Low"}},
		{name: "missing description", body: map[string]string{"title": "t", "severity": "Low"}},
		{name: "unknown severity", body: map[string]string{"title": "t", "description": "d", "severity": "Extreme"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client.SetT(t)

			resp, err := client.POST("/api/v1/incidents", tt.body)
			require.NoError(t, err)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			_ = resp.Body.Close()
		})
	}
}

func TestUpdateIncident(t *testing.T) {
	client := newTestClient(t, testConfig(t))

	resp, err := client.PATCH("/api/v1/incidents/1", map[string]string{
		"status":      "Mitigated",
		"assigned_to": "Red Team",
	})
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var payload incidentPayload
	testutil.DecodeJSON(t, resp, &payload)

	assert.Equal(t, int64(1), payload.Data.ID)
	assert.Equal(t, "Mitigated", payload.Data.Status)
	assert.Equal(t, "Red Team", payload.Data.AssignedTo)
	assert.Equal(t, "Biased Recommendation Algorithm", payload.Data.Title, "unpatched fields unchanged")
}

func TestUpdateIncident_Errors(t *testing.T) {
	client := newTestClient(t, testConfig(t))

	resp, err := client.PATCH("/api/v1/incidents/42424242", map[string]string{"status": "x"})
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	_ = resp.Body.Close()

	resp, err = client.PATCH("/api/v1/incidents/1", map[string]string{"severity": "Extreme"})
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	_ = resp.Body.Close()
}

func TestDeleteIncident_Idempotent(t *testing.T) {
	client := newTestClient(t, testConfig(t))

	resp, err := client.DELETE("/api/v1/incidents/2")
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	_ = resp.Body.Close()

	// Deleting again is still a 204.
	resp, err = client.DELETE("/api/v1/incidents/2")
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	_ = resp.Body.Close()

	resp, err = client.GET("/api/v1/incidents")
	require.NoError(t, err)
	var list listPayload
	testutil.DecodeJSON(t, resp, &list)
	assert.Len(t, list.Data, 2)
}

func TestDeleteIncident_InvalidID(t *testing.T) {
	client := newTestClient(t, testConfig(t))

	resp, err := client.DELETE("/api/v1/incidents/abc")
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	_ = resp.Body.Close()
}

func TestAnalytics(t *testing.T) {
	client := newTestClient(t, testConfig(t))

	t.Run("severity", func(t *testing.T) {
		client.SetT(t)

		resp, err := client.GET("/api/v1/analytics/severity")
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var payload struct {
			Data map[string]int `json:"data"`
		}
		testutil.DecodeJSON(t, resp, &payload)
		assert.Equal(t, map[string]int{"Low": 1, "Medium": 1, "High": 1}, payload.Data)
	})

	t.Run("status", func(t *testing.T) {
		client.SetT(t)

		resp, err := client.GET("/api/v1/analytics/status")
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var payload struct {
			Data map[string]int `json:"data"`
		}
		testutil.DecodeJSON(t, resp, &payload)
		assert.Equal(t, map[string]int{"Under Review": 1, "Critical": 1, "Resolved": 1}, payload.Data)
	})

	t.Run("trend", func(t *testing.T) {
		client.SetT(t)

		resp, err := client.GET("/api/v1/analytics/trend")
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var payload struct {
			Data []struct {
				Date  string `json:"date"`
				Count int    `json:"count"`
			} `json:"data"`
		}
		testutil.DecodeJSON(t, resp, &payload)

		require.Len(t, payload.Data, 3)
		assert.Equal(t, "2025-03-15", payload.Data[0].Date)
		assert.Equal(t, "2025-03-20", payload.Data[1].Date)
		assert.Equal(t, "2025-04-01", payload.Data[2].Date)
	})
}

func TestAnalytics_ReflectMutations(t *testing.T) {
	client := newTestClient(t, testConfig(t))

	resp, err := client.POST("/api/v1/incidents", map[string]string{
		"title":       "Jailbreak via Roleplay",
		"description": "Layered persona prompt bypassed the refusal policy",
		"severity":    "High",
	})
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	_ = resp.Body.Close()

	resp, err = client.GET("/api/v1/analytics/severity")
	require.NoError(t, err)

	var payload struct {
		Data map[string]int `json:"data"`
	}
	testutil.DecodeJSON(t, resp, &payload)
	assert.Equal(t, 2, payload.Data["High"])
}

func TestPersistenceAcrossRestart(t *testing.T) {
	cfg := testConfig(t)
	client := newTestClient(t, cfg)

	resp, err := client.POST("/api/v1/incidents", map[string]string{
		"title":       "Survives Restart",
		"description": "d",
		"severity":    "Low",
	})
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	_ = resp.Body.Close()

	resp, err = client.DELETE("/api/v1/incidents/1")
	require.NoError(t, err)
	_ = resp.Body.Close()

	// Same data directory, fresh process.
	restarted := newTestClient(t, cfg)

	resp, err = restarted.GET("/api/v1/incidents?sort=Newest")
	require.NoError(t, err)

	var list listPayload
	testutil.DecodeJSON(t, resp, &list)

	require.Len(t, list.Data, 3)
	assert.Equal(t, "Survives Restart", list.Data[0].Title)
	for _, incident := range list.Data {
		assert.NotEqual(t, int64(1), incident.ID)
	}
}

func TestSQLiteDriverEndToEnd(t *testing.T) {
	cfg := testConfig(t)
	cfg.Storage.Driver = config.DriverSQLite
	client := newTestClient(t, cfg)

	resp, err := client.POST("/api/v1/incidents", map[string]string{
		"title":       "Stored in SQLite",
		"description": "d",
		"severity":    "Medium",
	})
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	_ = resp.Body.Close()

	restarted := newTestClient(t, cfg)

	resp, err = restarted.GET("/api/v1/incidents?q=sqlite")
	require.NoError(t, err)

	var list listPayload
	testutil.DecodeJSON(t, resp, &list)
	require.Len(t, list.Data, 1)
	assert.Equal(t, "Stored in SQLite", list.Data[0].Title)
}

func TestWriteRateLimit(t *testing.T) {
	cfg := testConfig(t)
	cfg.Server.WriteRate = 0
	cfg.Server.WriteBurst = 1
	client := newTestClient(t, cfg)

	resp, err := client.DELETE("/api/v1/incidents/1")
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	_ = resp.Body.Close()

	resp, err = client.DELETE("/api/v1/incidents/2")
	require.NoError(t, err)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	_ = resp.Body.Close()

	// Reads are not throttled.
	resp, err = client.GET("/api/v1/incidents")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	_ = resp.Body.Close()
}

func TestHealthEndpoints(t *testing.T) {
	client := newTestClient(t, testConfig(t))

	resp, err := client.GET("/healthz")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "OK", testutil.ReadBody(t, resp))

	resp, err = client.GET("/readyz")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "OK", testutil.ReadBody(t, resp))
}

func TestReadyzReportsDegradedStorage(t *testing.T) {
	cfg := testConfig(t)

	// Point the data directory at a regular file so every save fails.
	blocker := filepath.Join(t.TempDir(), "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o640))
	cfg.Storage.Dir = filepath.Join(blocker, "data")

	client := newTestClient(t, cfg)

	// The mutation still works in memory and flags the failed save.
	resp, err := client.POST("/api/v1/incidents", map[string]string{
		"title":       "t",
		"description": "d",
		"severity":    "Low",
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "true", resp.Header.Get("X-Storage-Degraded"))
	_ = resp.Body.Close()

	resp, err = client.GET("/readyz")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode, "a degraded store never takes the session down")
	assert.Contains(t, testutil.ReadBody(t, resp), "degraded")
}

func TestVersionEndpoint(t *testing.T) {
	client := newTestClient(t, testConfig(t))

	resp, err := client.GET("/version")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var payload map[string]string
	testutil.DecodeJSON(t, resp, &payload)
	assert.Contains(t, payload, "version")
	assert.Contains(t, payload, "commit")
	assert.Contains(t, payload, "build_date")
}

func TestRequestIDHeader(t *testing.T) {
	cfg := testConfig(t)
	application, err := app.New(cfg)
	require.NoError(t, err)

	server := httptest.NewServer(application.Router())
	t.Cleanup(server.Close)

	resp, err := http.Get(server.URL + "/healthz")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
}

func TestCORSPreflight(t *testing.T) {
	cfg := testConfig(t)
	application, err := app.New(cfg)
	require.NoError(t, err)

	server := httptest.NewServer(application.Router())
	t.Cleanup(server.Close)

	req, err := http.NewRequest(http.MethodOptions, server.URL+"/api/v1/incidents", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://localhost:5173")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "http://localhost:5173", resp.Header.Get("Access-Control-Allow-Origin"))
	assert.Contains(t, resp.Header.Get("Access-Control-Allow-Methods"), "PATCH")
}
