package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-scheduling-api/internal/models"
	"github.com/noah-isme/sma-scheduling-api/internal/service"
	appErrors "github.com/noah-isme/sma-scheduling-api/pkg/errors"
)

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) PingContext(ctx context.Context) error { return f(ctx) }

func TestMetricsHandlerReady(t *testing.T) {
	healthy := NewMetricsHandler(nil, map[string]Pinger{
		"postgres": pingerFunc(func(context.Context) error { return nil }),
	})
	c, rec := newTestContext(http.MethodGet, "/ready", "")
	healthy.Ready(c)
	assert.Equal(t, http.StatusOK, rec.Code)

	degraded := NewMetricsHandler(nil, map[string]Pinger{
		"postgres": pingerFunc(func(context.Context) error { return nil }),
		"redis":    pingerFunc(func(context.Context) error { return errors.New("connection refused") }),
	})
	c, rec = newTestContext(http.MethodGet, "/ready", "")
	degraded.Ready(c)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "degraded", body.Status)
	assert.Equal(t, "ok", body.Checks["postgres"])
	assert.Equal(t, "connection refused", body.Checks["redis"])
}

func TestMetricsHandlerSummary(t *testing.T) {
	metrics := service.NewMetricsService()
	metrics.IncConflictRejection(string(models.ScopeCourseDay))
	h := NewMetricsHandler(metrics, nil)

	c, rec := newTestContext(http.MethodGet, "/metrics/summary", "")
	h.Summary(c)

	require.Equal(t, http.StatusOK, rec.Code)
	var envelope responseEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	data := envelope.Data.(map[string]interface{})
	rejections := data["conflict_rejections"].(map[string]interface{})
	assert.Equal(t, float64(1), rejections["COURSE_DAY"])
}

type fakeAuditLister struct {
	resource, action string
	limit            int
}

func (f *fakeAuditLister) List(_ context.Context, resource, action string, limit int) ([]models.AuditLog, error) {
	if resource == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "resource is required")
	}
	f.resource, f.action, f.limit = resource, action, limit
	return []models.AuditLog{}, nil
}

func TestAuditHandlerList(t *testing.T) {
	lister := &fakeAuditLister{}
	h := NewAuditHandler(lister)

	c, rec := newTestContext(http.MethodGet, "/audit-logs?resource=schedule&action=create&limit=1000", "")
	h.List(c)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "schedule", lister.resource)
	assert.Equal(t, "CREATE", lister.action)
	assert.Equal(t, maxPageSize, lister.limit)

	c, rec = newTestContext(http.MethodGet, "/audit-logs", "")
	h.List(c)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
