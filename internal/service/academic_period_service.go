package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-scheduling-api/internal/conflict"
	"github.com/noah-isme/sma-scheduling-api/internal/models"
	"github.com/noah-isme/sma-scheduling-api/internal/repository"
	appErrors "github.com/noah-isme/sma-scheduling-api/pkg/errors"
)

const (
	periodStatsKey  = "stats:periods"
	resourcePeriod  = "academic_period"
	upcomingPeriods = 5
)

type academicPeriodRepository interface {
	List(ctx context.Context, filter models.AcademicPeriodFilter) ([]models.AcademicPeriodSummary, int, error)
	FindByID(ctx context.Context, id string) (*models.AcademicPeriod, error)
	ListActive(ctx context.Context) ([]models.AcademicPeriod, error)
	ListByStatus(ctx context.Context, status models.PeriodStatus) ([]models.AcademicPeriod, error)
	FindCurrent(ctx context.Context, day time.Time) (*models.AcademicPeriod, error)
	ListUpcoming(ctx context.Context, day time.Time, limit int) ([]models.AcademicPeriod, error)
	ExistsCode(ctx context.Context, code, excludeID string) (bool, error)
	CountActiveEnrollments(ctx context.Context, periodID string) (int, error)
	Create(ctx context.Context, period *models.AcademicPeriod) error
	Update(ctx context.Context, period *models.AcademicPeriod) error
	Deactivate(ctx context.Context, id string) error
	Stats(ctx context.Context) (*models.AcademicPeriodStats, error)
	ApplyStatusTransitions(ctx context.Context, today time.Time) ([]models.PeriodTransition, error)
}

type periodEventLister interface {
	ListActiveByPeriod(ctx context.Context, periodID string) ([]models.AcademicEvent, error)
}

// CreateAcademicPeriodRequest describes payload for creating a period.
type CreateAcademicPeriodRequest struct {
	Name        string              `json:"name" validate:"required,max=100"`
	Code        string              `json:"code" validate:"required,max=20"`
	Description string              `json:"description" validate:"max=255"`
	StartDate   time.Time           `json:"start_date" validate:"required"`
	EndDate     time.Time           `json:"end_date" validate:"required"`
	Status      models.PeriodStatus `json:"status" validate:"omitempty,oneof=PLANNING ACTIVE COMPLETED CANCELLED"`
}

// UpdateAcademicPeriodRequest carries the fields to change.
type UpdateAcademicPeriodRequest struct {
	Name        *string              `json:"name" validate:"omitempty,min=1,max=100"`
	Code        *string              `json:"code" validate:"omitempty,min=1,max=20"`
	Description *string              `json:"description" validate:"omitempty,max=255"`
	StartDate   *time.Time           `json:"start_date"`
	EndDate     *time.Time           `json:"end_date"`
	Status      *models.PeriodStatus `json:"status" validate:"omitempty,oneof=PLANNING ACTIVE COMPLETED CANCELLED"`
}

// AcademicPeriodService keeps active academic periods from overlapping one another.
type AcademicPeriodService struct {
	repo      academicPeriodRepository
	events    periodEventLister
	guard     *conflict.Guard
	audit     *AuditService
	cache     *CacheService
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	reporter  placementReporter
	location  *time.Location
	now       func() time.Time
}

// NewAcademicPeriodService instantiates AcademicPeriodService.
func NewAcademicPeriodService(repo academicPeriodRepository, events periodEventLister, guard *conflict.Guard, audit *AuditService, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *AcademicPeriodService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &AcademicPeriodService{
		repo:      repo,
		events:    events,
		guard:     guard,
		audit:     audit,
		cache:     cache,
		validator: validate,
		logger:    logger,
		reporter:  placementReporter{logger: logger},
		location:  time.UTC,
		now:       time.Now,
	}
	if audit != nil {
		s.reporter.recorder = audit
	}
	return s
}

// WithLocation sets the timezone used to decide what "today" is.
func (s *AcademicPeriodService) WithLocation(loc *time.Location) *AcademicPeriodService {
	if loc != nil {
		s.location = loc
	}
	return s
}

// WithMetrics enables sweep counters.
func (s *AcademicPeriodService) WithMetrics(metrics *MetricsService) *AcademicPeriodService {
	s.metrics = metrics
	return s
}

func (s *AcademicPeriodService) today() time.Time {
	return dateOnly(s.now(), s.location)
}

// List returns periods with their enrollment and event counts.
func (s *AcademicPeriodService) List(ctx context.Context, filter models.AcademicPeriodFilter) ([]models.AcademicPeriodSummary, *models.Pagination, error) {
	periods, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, internalError(err, "failed to list academic periods")
	}
	return periods, paginate(filter.Page, filter.PageSize, total), nil
}

// Get returns a single period.
func (s *AcademicPeriodService) Get(ctx context.Context, id string) (*models.AcademicPeriod, error) {
	period, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "academic period not found")
		}
		return nil, internalError(err, "failed to load academic period")
	}
	return period, nil
}

// Current returns the active period that contains today.
func (s *AcademicPeriodService) Current(ctx context.Context) (*models.AcademicPeriod, error) {
	period, err := s.repo.FindCurrent(ctx, s.today())
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "no academic period is in progress")
		}
		return nil, internalError(err, "failed to load current academic period")
	}
	return period, nil
}

// Upcoming returns the next periods that start after today.
func (s *AcademicPeriodService) Upcoming(ctx context.Context) ([]models.AcademicPeriod, error) {
	periods, err := s.repo.ListUpcoming(ctx, s.today(), upcomingPeriods)
	if err != nil {
		return nil, internalError(err, "failed to list upcoming academic periods")
	}
	return periods, nil
}

// Active returns periods in ACTIVE status.
func (s *AcademicPeriodService) Active(ctx context.Context) ([]models.AcademicPeriod, error) {
	periods, err := s.repo.ListByStatus(ctx, models.PeriodStatusActive)
	if err != nil {
		return nil, internalError(err, "failed to list active academic periods")
	}
	return periods, nil
}

// Events returns the active events of a period.
func (s *AcademicPeriodService) Events(ctx context.Context, id string) ([]models.AcademicEvent, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	events, err := s.events.ListActiveByPeriod(ctx, id)
	if err != nil {
		return nil, internalError(err, "failed to list academic period events")
	}
	return events, nil
}

// Create stores a period once its code is unique and its span overlaps no other active period.
func (s *AcademicPeriodService) Create(ctx context.Context, req CreateAcademicPeriodRequest) (*models.AcademicPeriod, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid academic period payload")
	}
	if req.StartDate.IsZero() || req.EndDate.IsZero() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "start_date and end_date are required")
	}

	period := models.AcademicPeriod{
		Name:        strings.TrimSpace(req.Name),
		Code:        strings.ToUpper(strings.TrimSpace(req.Code)),
		Description: req.Description,
		StartDate:   req.StartDate.UTC(),
		EndDate:     req.EndDate.UTC(),
		Status:      req.Status,
	}
	if !period.StartDate.Before(period.EndDate) {
		return nil, invalidInterval("start_date must be before end_date")
	}

	err := s.guard.Do(ctx, []conflict.ResourceKey{conflict.AllPeriods()}, func(ctx context.Context) error {
		if err := s.ensureCodeFree(ctx, period.Code, ""); err != nil {
			return err
		}
		if err := s.ensureNoOverlap(ctx, period, ""); err != nil {
			return err
		}
		if err := s.repo.Create(ctx, &period); err != nil {
			return s.storageError(ctx, err, "failed to create academic period")
		}
		return nil
	})
	if err != nil {
		return nil, guardError(err, "failed to create academic period")
	}

	s.afterWrite(ctx, models.AuditActionCreate, period)
	return &period, nil
}

// Update merges the request and re-checks code uniqueness, overlap and the placement of existing events.
func (s *AcademicPeriodService) Update(ctx context.Context, id string, req UpdateAcademicPeriodRequest) (*models.AcademicPeriod, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid academic period payload")
	}

	existing, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !existing.IsActive {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "academic period not found")
	}

	updated := *existing
	if req.Name != nil {
		updated.Name = strings.TrimSpace(*req.Name)
	}
	if req.Code != nil {
		updated.Code = strings.ToUpper(strings.TrimSpace(*req.Code))
	}
	if req.Description != nil {
		updated.Description = *req.Description
	}
	if req.StartDate != nil {
		updated.StartDate = req.StartDate.UTC()
	}
	if req.EndDate != nil {
		updated.EndDate = req.EndDate.UTC()
	}
	if req.Status != nil {
		updated.Status = *req.Status
	}
	if !updated.StartDate.Before(updated.EndDate) {
		return nil, invalidInterval("start_date must be before end_date")
	}

	keys := []conflict.ResourceKey{conflict.AllPeriods(), conflict.Period(id)}
	err = s.guard.Do(ctx, keys, func(ctx context.Context) error {
		if !strings.EqualFold(updated.Code, existing.Code) {
			if err := s.ensureCodeFree(ctx, updated.Code, id); err != nil {
				return err
			}
		}
		if err := s.ensureNoOverlap(ctx, updated, id); err != nil {
			return err
		}
		if err := s.ensureEventsInside(ctx, updated); err != nil {
			return err
		}
		if err := s.repo.Update(ctx, &updated); err != nil {
			return s.storageError(ctx, err, "failed to update academic period")
		}
		return nil
	})
	if err != nil {
		return nil, guardError(err, "failed to update academic period")
	}

	s.afterWrite(ctx, models.AuditActionUpdate, updated)
	return &updated, nil
}

// Deactivate soft deletes a period unless students are actively enrolled in it.
func (s *AcademicPeriodService) Deactivate(ctx context.Context, id string) error {
	existing, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if !existing.IsActive {
		return appErrors.Clone(appErrors.ErrNotFound, "academic period not found")
	}
	count, err := s.repo.CountActiveEnrollments(ctx, id)
	if err != nil {
		return internalError(err, "failed to count academic period enrollments")
	}
	if count > 0 {
		return appErrors.Clone(appErrors.ErrConflict, "academic period has active enrollments")
	}
	if err := s.repo.Deactivate(ctx, id); err != nil {
		return internalError(err, "failed to deactivate academic period")
	}
	existing.IsActive = false
	s.afterWrite(ctx, models.AuditActionDeactivate, *existing)
	return nil
}

// Stats aggregates periods by status and attaches the current one.
func (s *AcademicPeriodService) Stats(ctx context.Context) (*models.AcademicPeriodStats, error) {
	return remember(ctx, s.cache, periodStatsKey, func(ctx context.Context) (*models.AcademicPeriodStats, error) {
		stats, err := s.repo.Stats(ctx)
		if err != nil {
			return nil, internalError(err, "failed to compute academic period stats")
		}
		current, err := s.repo.FindCurrent(ctx, s.today())
		switch {
		case err == nil:
			stats.Current = current
		case !errors.Is(err, sql.ErrNoRows):
			return nil, internalError(err, "failed to load current academic period")
		}
		return stats, nil
	})
}

// SweepStatuses moves periods through PLANNING, ACTIVE and COMPLETED as the calendar advances.
func (s *AcademicPeriodService) SweepStatuses(ctx context.Context) ([]models.PeriodTransition, error) {
	start := time.Now()
	transitions, err := s.repo.ApplyStatusTransitions(ctx, s.today())
	s.metrics.ObserveDBQuery("period_status_sweep", time.Since(start))
	if err != nil {
		return nil, internalError(err, "failed to sweep academic period statuses")
	}
	if len(transitions) == 0 {
		return transitions, nil
	}

	counts := map[models.PeriodStatus]int{}
	for _, tr := range transitions {
		counts[tr.To]++
		s.audit.Record(ctx, models.AuditActionStatusSweep, resourcePeriod, tr.ID, tr)
	}
	for to, n := range counts {
		s.metrics.AddPeriodTransitions(string(to), n)
	}
	_ = s.cache.Invalidate(ctx, statsPattern)
	s.logger.Info("academic period statuses advanced", zap.Int("transitions", len(transitions)))
	return transitions, nil
}

func (s *AcademicPeriodService) ensureCodeFree(ctx context.Context, code, excludeID string) error {
	exists, err := s.repo.ExistsCode(ctx, code, excludeID)
	if err != nil {
		return internalError(err, "failed to check academic period code")
	}
	if exists {
		return appErrors.Clone(appErrors.ErrConflict, "academic period code already exists")
	}
	return nil
}

func (s *AcademicPeriodService) ensureNoOverlap(ctx context.Context, period models.AcademicPeriod, excludeID string) error {
	active, err := s.repo.ListActive(ctx)
	if err != nil {
		return internalError(err, "failed to load academic periods")
	}
	existing := make([]conflict.Interval, 0, len(active))
	for _, item := range active {
		existing = append(existing, item.Interval())
	}
	if hits := conflict.FindConflicts(period.Interval(), existing, excludeID); len(hits) > 0 {
		return s.reporter.overlap(ctx, models.ScopeAllPeriods, conflict.AllPeriods(), "academic periods overlap", hits)
	}
	return nil
}

// ensureEventsInside rejects a span change that would strand existing events outside the period.
func (s *AcademicPeriodService) ensureEventsInside(ctx context.Context, period models.AcademicPeriod) error {
	if s.events == nil {
		return nil
	}
	events, err := s.events.ListActiveByPeriod(ctx, period.ID)
	if err != nil {
		return internalError(err, "failed to load academic period events")
	}
	span := period.Interval()
	var stranded []conflict.Interval
	for _, event := range events {
		if !conflict.Contains(span, event.Interval()) {
			stranded = append(stranded, event.Interval())
		}
	}
	if len(stranded) > 0 {
		return s.reporter.reject(ctx, appErrors.ErrOutsidePeriod, models.ScopePeriodWindow, conflict.Period(period.ID), "academic period change would leave events outside its span", stranded)
	}
	return nil
}

func (s *AcademicPeriodService) storageError(ctx context.Context, err error, message string) error {
	if errors.Is(err, repository.ErrDuplicate) {
		return appErrors.Clone(appErrors.ErrConflict, "academic period code already exists")
	}
	return s.reporter.storage(ctx, err, models.ScopeAllPeriods, conflict.AllPeriods(), "academic periods overlap", message)
}

func (s *AcademicPeriodService) afterWrite(ctx context.Context, action string, period models.AcademicPeriod) {
	_ = s.cache.Invalidate(ctx, statsPattern)
	s.audit.Record(ctx, action, resourcePeriod, period.ID, period)
}
