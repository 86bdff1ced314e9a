package service

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/ttapp-api/internal/timetable"
)

func scrapeMetrics(t *testing.T, metrics *MetricsService) string {
	t.Helper()
	rec := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	return rec.Body.String()
}

func TestMetricsServiceObserveGeneration(t *testing.T) {
	metrics := NewMetricsService()
	report := &timetable.Report{
		SlotCount:          120,
		NoTeacherAvailable: []timetable.NoTeacherAvailableError{{ClassID: "c1"}, {ClassID: "c2"}},
	}

	metrics.ObserveGeneration(GenerationStatusCommitted, 20*time.Millisecond, report)
	metrics.ObserveGeneration(GenerationStatusFailed, time.Millisecond, nil)

	body := scrapeMetrics(t, metrics)
	assert.Contains(t, body, `timetable_generation_runs_total{status="committed"} 1`)
	assert.Contains(t, body, `timetable_generation_runs_total{status="failed"} 1`)
	assert.Contains(t, body, "timetable_generated_slots 120")
	assert.Contains(t, body, `timetable_unmet_requirements{kind="no_teacher_available"} 2`)
	assert.Contains(t, body, `timetable_unmet_requirements{kind="missing_subjects"} 0`)
	assert.Contains(t, body, "timetable_generation_duration_seconds_count 2")
}

func TestMetricsServiceObserveRequestsAndSuggestions(t *testing.T) {
	metrics := NewMetricsService()
	metrics.ObserveHTTPRequest(http.MethodGet, "/api/v1/substitutions", http.StatusOK, 5*time.Millisecond)
	metrics.ObserveSuggestion(SuggestionOutcomeCached)
	metrics.ObserveSuggestion(SuggestionOutcomeCached)

	body := scrapeMetrics(t, metrics)
	assert.Contains(t, body, `http_requests_total{method="GET",path="/api/v1/substitutions",status="200"} 1`)
	assert.Contains(t, body, `substitution_suggestion_requests_total{outcome="cached"} 2`)
	assert.Contains(t, body, "goroutines_total")
}

func TestMetricsServiceNilSafe(t *testing.T) {
	var metrics *MetricsService
	metrics.ObserveHTTPRequest(http.MethodGet, "/", http.StatusOK, time.Millisecond)
	metrics.ObserveGeneration(GenerationStatusDryRun, time.Millisecond, nil)
	metrics.ObserveSuggestion(SuggestionOutcomeComputed)

	rec := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
