package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/opportunity-engine/internal/detector"
	"github.com/ignite/opportunity-engine/internal/domain"
	"github.com/ignite/opportunity-engine/internal/metrics"
	"github.com/ignite/opportunity-engine/internal/opportunity"
	"github.com/ignite/opportunity-engine/internal/scoring"
)

// newAPIHandlers builds a full in-memory stack with one organization
// whose sessions dropped 45% against a steady baseline.
func newAPIHandlers(t *testing.T) *Handlers {
	t.Helper()

	metricStore := metrics.NewMemoryStore()
	end := time.Now().UTC().Truncate(24 * time.Hour)
	for i := 0; i < 29; i++ {
		value := 950.0
		if i%2 == 1 {
			value = 1050
		}
		if i == 28 {
			value = 550
		}
		metricStore.Put(domain.MetricPoint{
			OrganizationID: "org-1",
			EntityID:       "page-1",
			EntityType:     domain.EntityPage,
			PeriodDate:     end.AddDate(0, 0, i-28),
			Granularity:    domain.GranularityDaily,
			Metrics:        map[string]float64{domain.MetricSessions: value},
		})
	}

	registry := detector.NewRegistry()
	runner := detector.NewRunner(registry, metricStore, detector.DefaultThresholds())
	scorer := scoring.NewScorer(registry, scoring.DefaultWeights())
	store := opportunity.NewMemoryStore(0)

	return NewHandlers(store, runner, scorer, registry)
}

func setupAPITest(t *testing.T) http.Handler {
	t.Helper()
	return SetupRoutes(newAPIHandlers(t))
}

func doJSON(t *testing.T, handler http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func runDetect(t *testing.T, handler http.Handler) RunSummary {
	t.Helper()
	rec := doJSON(t, handler, http.MethodPost, "/api/detect",
		map[string]string{"organization_id": "org-1", "cadence_layer": "fast"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var summary RunSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	return summary
}

func TestDetectEndpoint_IdempotentAcrossRuns(t *testing.T) {
	handler := setupAPITest(t)

	first := runDetect(t, handler)
	require.GreaterOrEqual(t, first.TotalOpportunities, 1)
	assert.GreaterOrEqual(t, first.PerCategoryCounts["traffic"], 1)

	// Second run with unchanged metrics: same totals, no duplicates.
	second := runDetect(t, handler)
	assert.Equal(t, first.TotalOpportunities, second.TotalOpportunities)

	rec := doJSON(t, handler, http.MethodGet, "/api/opportunities?organization_id=org-1&status=new", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var page PaginatedResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	assert.Equal(t, first.TotalOpportunities, page.Count)
}

func TestDetectEndpoint_Validation(t *testing.T) {
	handler := setupAPITest(t)

	rec := doJSON(t, handler, http.MethodPost, "/api/detect", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, handler, http.MethodPost, "/api/detect",
		map[string]string{"organization_id": "org-1", "cadence_layer": "hourly"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListOpportunities_RequiresOrganization(t *testing.T) {
	handler := setupAPITest(t)

	rec := doJSON(t, handler, http.MethodGet, "/api/opportunities", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListOpportunities_EmptyPageIsAnEmptyArray(t *testing.T) {
	handler := setupAPITest(t)

	rec := doJSON(t, handler, http.MethodGet, "/api/opportunities?organization_id=org-none", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"data":[]`)
}

func firstOpportunityID(t *testing.T, handler http.Handler) string {
	t.Helper()
	rec := doJSON(t, handler, http.MethodGet, "/api/opportunities?organization_id=org-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var page struct {
		Data []domain.Opportunity `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	require.NotEmpty(t, page.Data)
	return page.Data[0].ID
}

func TestStatusEndpoint_LifecycleAndConflicts(t *testing.T) {
	handler := setupAPITest(t)
	runDetect(t, handler)
	id := firstOpportunityID(t, handler)

	// Dismissal without a reason.
	rec := doJSON(t, handler, http.MethodPost, "/api/opportunities/"+id+"/status",
		map[string]string{"status": "dismissed"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, handler, http.MethodPost, "/api/opportunities/"+id+"/status",
		map[string]string{"status": "dismissed", "reason": "seasonal dip"})
	require.Equal(t, http.StatusOK, rec.Code)

	var opp domain.Opportunity
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &opp))
	assert.Equal(t, domain.StatusDismissed, opp.Status)
	assert.Equal(t, "seasonal dip", opp.StatusReason)

	// Terminal records reject further transitions.
	rec = doJSON(t, handler, http.MethodPost, "/api/opportunities/"+id+"/status",
		map[string]string{"status": "completed"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = doJSON(t, handler, http.MethodPost, "/api/opportunities/missing/status",
		map[string]string{"status": "completed"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDetectEndpoint_CooldownCachePreemptsUpsert(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	cache := opportunity.NewCooldownCache(client, time.Hour)
	scope := domain.CooldownScope("org-1", domain.CategoryTraffic, "page-1", "traffic_drop")
	require.NoError(t, cache.MarkDismissed(context.Background(), scope))

	handler := SetupRoutes(newAPIHandlers(t).WithCooldownCache(cache))

	summary := runDetect(t, handler)
	assert.Zero(t, summary.TotalOpportunities, "dismissed condition must be suppressed")

	require.NoError(t, cache.Clear(context.Background(), scope))
	summary = runDetect(t, handler)
	assert.GreaterOrEqual(t, summary.TotalOpportunities, 1)
}

func TestListDetectors(t *testing.T) {
	handler := setupAPITest(t)

	rec := doJSON(t, handler, http.MethodGet, "/api/detectors", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Detectors []domain.DetectorInfo `json:"detectors"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Detectors)

	var planned int
	ids := make(map[string]bool)
	for _, d := range resp.Detectors {
		ids[d.ID] = true
		if d.Status == domain.DetectorPlanned {
			planned++
		}
	}
	assert.True(t, ids["traffic_drop"])
	assert.Equal(t, 2, planned)
}

func TestHealthCheck(t *testing.T) {
	handler := setupAPITest(t)

	rec := doJSON(t, handler, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}
