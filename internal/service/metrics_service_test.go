package service

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsServiceSnapshot(t *testing.T) {
	m := NewMetricsService()
	m.ObserveHTTPRequest("POST", "/api/v1/schedules", 400, 20*time.Millisecond)
	m.ObserveHTTPRequest("GET", "/api/v1/schedules", 200, 10*time.Millisecond)
	m.IncConflictRejection("TEACHER_DAY")
	m.IncConflictRejection("TEACHER_DAY")
	m.IncConflictRejection("PERIOD_EVENTS")
	m.AddPeriodTransitions("ACTIVE", 2)
	m.AddPeriodTransitions("COMPLETED", 0)
	m.ObserveLockWait(true, time.Millisecond)
	m.IncAuditDropped()

	snap := m.Snapshot()
	assert.Equal(t, uint64(2), snap.RequestsTotal)
	assert.InDelta(t, 15, snap.AverageRequestDurationMs, 0.01)
	assert.Equal(t, map[string]uint64{"TEACHER_DAY": 2, "PERIOD_EVENTS": 1}, snap.ConflictRejections)
	assert.Equal(t, uint64(2), snap.PeriodTransitions)
	assert.Greater(t, snap.Goroutines, 0)
}

func TestMetricsServiceNilSafe(t *testing.T) {
	var m *MetricsService
	m.ObserveHTTPRequest("GET", "/", 200, time.Millisecond)
	m.IncConflictRejection("COURSE_DAY")
	m.ObserveLockWait(false, time.Millisecond)
	assert.Empty(t, m.Snapshot().ConflictRejections)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestMetricsServiceExposesCollectors(t *testing.T) {
	m := NewMetricsService()
	m.IncConflictRejection("ENROLLMENT")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `scheduling_conflict_rejections_total{scope="ENROLLMENT"} 1`)
}
