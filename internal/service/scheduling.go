package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-scheduling-api/internal/conflict"
	"github.com/noah-isme/sma-scheduling-api/internal/models"
	"github.com/noah-isme/sma-scheduling-api/internal/repository"
	appErrors "github.com/noah-isme/sma-scheduling-api/pkg/errors"
	"github.com/noah-isme/sma-scheduling-api/pkg/lock"
	"github.com/noah-isme/sma-scheduling-api/pkg/logger"
)

// conflictRecorder receives every rejected time placement.
type conflictRecorder interface {
	RecordRejection(ctx context.Context, rejection *models.IntervalConflictError)
}

// placementReporter turns conflict findings into API errors and records them.
type placementReporter struct {
	recorder conflictRecorder
	logger   *zap.Logger
}

func (r placementReporter) overlap(ctx context.Context, scope models.ConflictScope, key conflict.ResourceKey, message string, hits []conflict.Interval) error {
	return r.reject(ctx, appErrors.ErrScheduleConflict, scope, key, message, hits)
}

func (r placementReporter) outside(ctx context.Context, key conflict.ResourceKey, message string, parentID string) error {
	return r.reject(ctx, appErrors.ErrOutsidePeriod, models.ScopePeriodWindow, key, message, []conflict.Interval{{ID: parentID}})
}

// storage maps an exclusion constraint hit that slipped past the in-process check.
func (r placementReporter) storage(ctx context.Context, err error, scope models.ConflictScope, key conflict.ResourceKey, message, fallback string) error {
	if errors.Is(err, repository.ErrOverlap) {
		return r.reject(ctx, appErrors.ErrScheduleConflict, scope, key, message, nil)
	}
	return appErrors.Derive(appErrors.ErrInternal, err, fallback)
}

func (r placementReporter) reject(ctx context.Context, base *appErrors.Error, scope models.ConflictScope, key conflict.ResourceKey, message string, hits []conflict.Interval) error {
	ids := make([]string, 0, len(hits))
	for _, hit := range hits {
		if hit.ID != "" {
			ids = append(ids, hit.ID)
		}
	}
	rejection := &models.IntervalConflictError{
		Scope:          scope,
		ResourceKey:    string(key),
		Message:        message,
		ConflictingIDs: ids,
	}

	logger.For(ctx, r.logger).Info("time placement rejected",
		zap.String("scope", string(scope)),
		zap.String("resource_key", string(key)),
		zap.Strings("conflicting_ids", ids),
	)
	if r.recorder != nil {
		r.recorder.RecordRejection(ctx, rejection)
	}
	return appErrors.Derive(base, rejection, message)
}

// guardError translates a Guard.Do failure. Errors produced inside the guarded
// function are already typed and pass through.
func guardError(err error, message string) error {
	if err == nil {
		return nil
	}
	var appErr *appErrors.Error
	if errors.As(err, &appErr) {
		return err
	}
	if errors.Is(err, lock.ErrTimeout) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return appErrors.Derive(appErrors.ErrUnavailable, err, "resource is busy, retry shortly")
	}
	return appErrors.Derive(appErrors.ErrInternal, err, message)
}

// invalidInterval is returned for any range whose start is not before its end.
func invalidInterval(message string) error {
	return appErrors.Clone(appErrors.ErrInvalidInterval, message)
}

func validationError(err error, message string) error {
	return appErrors.Derive(appErrors.ErrValidation, err, message)
}

func internalError(err error, message string) error {
	return appErrors.Derive(appErrors.ErrInternal, err, message)
}

func paginate(page, size, total int) *models.Pagination {
	if page < 1 {
		page = 1
	}
	if size <= 0 || size > 100 {
		size = 20
	}
	return models.NewPagination(page, size, total)
}

// dateOnly truncates t to midnight UTC of its calendar day in loc.
func dateOnly(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// TimedLocker reports lock acquisition latency to metrics.
type TimedLocker struct {
	inner   conflict.Locker
	metrics *MetricsService
}

// NewTimedLocker wraps a locker with wait-time instrumentation.
func NewTimedLocker(inner conflict.Locker, metrics *MetricsService) *TimedLocker {
	return &TimedLocker{inner: inner, metrics: metrics}
}

// Acquire implements conflict.Locker.
func (l *TimedLocker) Acquire(ctx context.Context, key string) (func(), error) {
	start := time.Now()
	release, err := l.inner.Acquire(ctx, key)
	l.metrics.ObserveLockWait(err == nil, time.Since(start))
	return release, err
}
