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
	appErrors "github.com/noah-isme/sma-scheduling-api/pkg/errors"
)

const (
	eventStatsKey       = "stats:events"
	resourceEvent       = "academic_event"
	defaultUpcomingDays = 30
	maxUpcomingDays     = 365
	maxUpcomingEvents   = 20
)

type academicEventRepository interface {
	List(ctx context.Context, filter models.AcademicEventFilter) ([]models.AcademicEventDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.AcademicEvent, error)
	ListActiveByPeriod(ctx context.Context, periodID string) ([]models.AcademicEvent, error)
	ListIntersecting(ctx context.Context, from, to time.Time, periodID string) ([]models.AcademicEventDetail, error)
	ListStartingBetween(ctx context.Context, from, to time.Time, periodID string) ([]models.AcademicEventDetail, error)
	ListByType(ctx context.Context, eventType models.EventType) ([]models.AcademicEventDetail, error)
	Create(ctx context.Context, event *models.AcademicEvent) error
	Update(ctx context.Context, event *models.AcademicEvent) error
	Deactivate(ctx context.Context, id string) error
	Stats(ctx context.Context, now time.Time) (*models.AcademicEventStats, error)
}

type periodFinder interface {
	FindByID(ctx context.Context, id string) (*models.AcademicPeriod, error)
}

// CreateAcademicEventRequest describes payload for creating an event.
type CreateAcademicEventRequest struct {
	AcademicPeriodID string           `json:"academic_period_id" validate:"required"`
	Title            string           `json:"title" validate:"required,max=200"`
	Description      string           `json:"description" validate:"max=1000"`
	Type             models.EventType `json:"type" validate:"required"`
	StartDate        time.Time        `json:"start_date" validate:"required"`
	EndDate          time.Time        `json:"end_date" validate:"required"`
	IsAllDay         bool             `json:"is_all_day"`
	Location         string           `json:"location" validate:"max=200"`
	Notes            string           `json:"notes" validate:"max=500"`
}

// UpdateAcademicEventRequest carries the fields to change.
type UpdateAcademicEventRequest struct {
	AcademicPeriodID *string           `json:"academic_period_id" validate:"omitempty,min=1"`
	Title            *string           `json:"title" validate:"omitempty,min=1,max=200"`
	Description      *string           `json:"description" validate:"omitempty,max=1000"`
	Type             *models.EventType `json:"type"`
	StartDate        *time.Time        `json:"start_date"`
	EndDate          *time.Time        `json:"end_date"`
	IsAllDay         *bool             `json:"is_all_day"`
	Location         *string           `json:"location" validate:"omitempty,max=200"`
	Notes            *string           `json:"notes" validate:"omitempty,max=500"`
}

// CalendarQuery selects events intersecting a window.
type CalendarQuery struct {
	From     time.Time
	To       time.Time
	PeriodID string
}

// AcademicEventService keeps events inside their period and apart from each other.
type AcademicEventService struct {
	repo      academicEventRepository
	periods   periodFinder
	guard     *conflict.Guard
	audit     *AuditService
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
	reporter  placementReporter
	now       func() time.Time
}

// NewAcademicEventService instantiates AcademicEventService.
func NewAcademicEventService(repo academicEventRepository, periods periodFinder, guard *conflict.Guard, audit *AuditService, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *AcademicEventService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &AcademicEventService{
		repo:      repo,
		periods:   periods,
		guard:     guard,
		audit:     audit,
		cache:     cache,
		validator: validate,
		logger:    logger,
		reporter:  placementReporter{logger: logger},
		now:       time.Now,
	}
	if audit != nil {
		s.reporter.recorder = audit
	}
	return s
}

// List returns events with pagination metadata.
func (s *AcademicEventService) List(ctx context.Context, filter models.AcademicEventFilter) ([]models.AcademicEventDetail, *models.Pagination, error) {
	if filter.Type != "" && !filter.Type.Valid() {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "unknown event type")
	}
	events, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, internalError(err, "failed to list academic events")
	}
	return events, paginate(filter.Page, filter.PageSize, total), nil
}

// Get returns a single event.
func (s *AcademicEventService) Get(ctx context.Context, id string) (*models.AcademicEvent, error) {
	event, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "academic event not found")
		}
		return nil, internalError(err, "failed to load academic event")
	}
	return event, nil
}

// Calendar returns events intersecting [From, To].
func (s *AcademicEventService) Calendar(ctx context.Context, query CalendarQuery) ([]models.AcademicEventDetail, error) {
	if query.From.IsZero() || query.To.IsZero() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "start_date and end_date are required")
	}
	if query.To.Before(query.From) {
		return nil, invalidInterval("end_date must not be before start_date")
	}
	events, err := s.repo.ListIntersecting(ctx, query.From, query.To, query.PeriodID)
	if err != nil {
		return nil, internalError(err, "failed to load calendar")
	}
	return events, nil
}

// Upcoming returns at most 20 events starting within the next days.
func (s *AcademicEventService) Upcoming(ctx context.Context, days int, periodID string) ([]models.AcademicEventDetail, error) {
	if days <= 0 {
		days = defaultUpcomingDays
	}
	if days > maxUpcomingDays {
		days = maxUpcomingDays
	}
	from := dateOnly(s.now(), time.UTC)
	events, err := s.repo.ListStartingBetween(ctx, from, from.AddDate(0, 0, days), periodID)
	if err != nil {
		return nil, internalError(err, "failed to list upcoming academic events")
	}
	if len(events) > maxUpcomingEvents {
		events = events[:maxUpcomingEvents]
	}
	return events, nil
}

// Today returns events in progress at any moment today.
func (s *AcademicEventService) Today(ctx context.Context, periodID string) ([]models.AcademicEventDetail, error) {
	from := dateOnly(s.now(), time.UTC)
	events, err := s.repo.ListIntersecting(ctx, from, from.AddDate(0, 0, 1).Add(-time.Microsecond), periodID)
	if err != nil {
		return nil, internalError(err, "failed to list today's academic events")
	}
	return events, nil
}

// ByType returns active events of one type.
func (s *AcademicEventService) ByType(ctx context.Context, raw string) ([]models.AcademicEventDetail, error) {
	eventType := models.EventType(strings.ToUpper(raw))
	if !eventType.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown event type")
	}
	events, err := s.repo.ListByType(ctx, eventType)
	if err != nil {
		return nil, internalError(err, "failed to list academic events by type")
	}
	return events, nil
}

// Create stores an event that lies inside its period and overlaps no sibling.
func (s *AcademicEventService) Create(ctx context.Context, req CreateAcademicEventRequest) (*models.AcademicEvent, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid academic event payload")
	}
	event := models.AcademicEvent{
		AcademicPeriodID: req.AcademicPeriodID,
		Title:            strings.TrimSpace(req.Title),
		Description:      req.Description,
		Type:             models.EventType(strings.ToUpper(string(req.Type))),
		StartDate:        req.StartDate.UTC(),
		EndDate:          req.EndDate.UTC(),
		IsAllDay:         req.IsAllDay,
		Location:         req.Location,
		Notes:            req.Notes,
	}
	if err := s.validateEvent(event); err != nil {
		return nil, err
	}

	err := s.guard.Do(ctx, []conflict.ResourceKey{conflict.Period(event.AcademicPeriodID)}, func(ctx context.Context) error {
		if err := s.ensurePlacement(ctx, event, ""); err != nil {
			return err
		}
		if err := s.repo.Create(ctx, &event); err != nil {
			return s.reporter.storage(ctx, err, models.ScopePeriodEvents, conflict.Period(event.AcademicPeriodID), "event overlaps an existing event", "failed to create academic event")
		}
		return nil
	})
	if err != nil {
		return nil, guardError(err, "failed to create academic event")
	}

	s.afterWrite(ctx, models.AuditActionCreate, event)
	return &event, nil
}

// Update merges the request and re-checks placement against the (possibly new) parent period.
func (s *AcademicEventService) Update(ctx context.Context, id string, req UpdateAcademicEventRequest) (*models.AcademicEvent, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid academic event payload")
	}
	existing, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !existing.IsActive {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "academic event not found")
	}

	updated := *existing
	if req.AcademicPeriodID != nil {
		updated.AcademicPeriodID = *req.AcademicPeriodID
	}
	if req.Title != nil {
		updated.Title = strings.TrimSpace(*req.Title)
	}
	if req.Description != nil {
		updated.Description = *req.Description
	}
	if req.Type != nil {
		updated.Type = models.EventType(strings.ToUpper(string(*req.Type)))
	}
	if req.StartDate != nil {
		updated.StartDate = req.StartDate.UTC()
	}
	if req.EndDate != nil {
		updated.EndDate = req.EndDate.UTC()
	}
	if req.IsAllDay != nil {
		updated.IsAllDay = *req.IsAllDay
	}
	if req.Location != nil {
		updated.Location = *req.Location
	}
	if req.Notes != nil {
		updated.Notes = *req.Notes
	}
	if err := s.validateEvent(updated); err != nil {
		return nil, err
	}

	err = s.guard.Do(ctx, []conflict.ResourceKey{conflict.Period(updated.AcademicPeriodID)}, func(ctx context.Context) error {
		if err := s.ensurePlacement(ctx, updated, updated.ID); err != nil {
			return err
		}
		if err := s.repo.Update(ctx, &updated); err != nil {
			return s.reporter.storage(ctx, err, models.ScopePeriodEvents, conflict.Period(updated.AcademicPeriodID), "event overlaps an existing event", "failed to update academic event")
		}
		return nil
	})
	if err != nil {
		return nil, guardError(err, "failed to update academic event")
	}

	s.afterWrite(ctx, models.AuditActionUpdate, updated)
	return &updated, nil
}

// Deactivate soft deletes an event.
func (s *AcademicEventService) Deactivate(ctx context.Context, id string) error {
	existing, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if !existing.IsActive {
		return appErrors.Clone(appErrors.ErrNotFound, "academic event not found")
	}
	if err := s.repo.Deactivate(ctx, id); err != nil {
		return internalError(err, "failed to deactivate academic event")
	}
	existing.IsActive = false
	s.afterWrite(ctx, models.AuditActionDeactivate, *existing)
	return nil
}

// Stats aggregates active events.
func (s *AcademicEventService) Stats(ctx context.Context) (*models.AcademicEventStats, error) {
	return remember(ctx, s.cache, eventStatsKey, func(ctx context.Context) (*models.AcademicEventStats, error) {
		stats, err := s.repo.Stats(ctx, s.now().UTC())
		if err != nil {
			return nil, internalError(err, "failed to compute academic event stats")
		}
		return stats, nil
	})
}

func (s *AcademicEventService) validateEvent(event models.AcademicEvent) error {
	if !event.Type.Valid() {
		return appErrors.Clone(appErrors.ErrValidation, "unknown event type")
	}
	if event.StartDate.IsZero() || event.EndDate.IsZero() {
		return appErrors.Clone(appErrors.ErrValidation, "start_date and end_date are required")
	}
	if !event.StartDate.Before(event.EndDate) {
		return invalidInterval("start_date must be before end_date")
	}
	return nil
}

// ensurePlacement checks the parent period is live, contains the event, and has no overlapping sibling.
func (s *AcademicEventService) ensurePlacement(ctx context.Context, event models.AcademicEvent, excludeID string) error {
	period, err := s.periods.FindByID(ctx, event.AcademicPeriodID)
	if err := referenceError(err, period != nil && period.IsActive, "academic period"); err != nil {
		return err
	}

	key := conflict.Period(period.ID)
	if !conflict.Contains(period.Interval(), event.Interval()) {
		return s.reporter.outside(ctx, key, "event must fall within the academic period", period.ID)
	}

	siblings, err := s.repo.ListActiveByPeriod(ctx, period.ID)
	if err != nil {
		return internalError(err, "failed to load academic period events")
	}
	existing := make([]conflict.Interval, 0, len(siblings))
	for _, item := range siblings {
		existing = append(existing, item.Interval())
	}
	if hits := conflict.FindConflicts(event.Interval(), existing, excludeID); len(hits) > 0 {
		return s.reporter.overlap(ctx, models.ScopePeriodEvents, key, "event overlaps an existing event", hits)
	}
	return nil
}

func (s *AcademicEventService) afterWrite(ctx context.Context, action string, event models.AcademicEvent) {
	_ = s.cache.Invalidate(ctx, statsPattern)
	s.audit.Record(ctx, action, resourceEvent, event.ID, event)
}
