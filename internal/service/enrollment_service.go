package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-scheduling-api/internal/conflict"
	"github.com/noah-isme/sma-scheduling-api/internal/models"
	"github.com/noah-isme/sma-scheduling-api/internal/repository"
	appErrors "github.com/noah-isme/sma-scheduling-api/pkg/errors"
)

const (
	enrollmentStatsKey = "stats:enrollments"
	resourceEnrollment = "enrollment"
	duplicateMessage   = "student is already enrolled in this course for the academic period"

	capacityMessage         = "course has reached capacity"
	alreadyCancelledMessage = "enrollment is already cancelled"
)

type enrollmentRepository interface {
	List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.Enrollment, error)
	ExistsActive(ctx context.Context, studentID, courseID, periodID, excludeID string) (bool, error)
	Create(ctx context.Context, enrollment *models.Enrollment) error
	Update(ctx context.Context, enrollment *models.Enrollment) error
	Cancel(ctx context.Context, id, courseID string) error
	Stats(ctx context.Context) (*models.EnrollmentStats, error)
}

// CreateEnrollmentRequest describes enrollment creation request.
type CreateEnrollmentRequest struct {
	StudentID        string                  `json:"student_id" validate:"required"`
	CourseID         string                  `json:"course_id" validate:"required"`
	AcademicPeriodID string                  `json:"academic_period_id" validate:"required"`
	StartDate        *time.Time              `json:"start_date"`
	EndDate          *time.Time              `json:"end_date"`
	Status           models.EnrollmentStatus `json:"status" validate:"omitempty,oneof=PENDING ACTIVE COMPLETED SUSPENDED"`
	Notes            string                  `json:"notes" validate:"max=500"`
}

// UpdateEnrollmentRequest changes the window, status or notes of an enrollment.
type UpdateEnrollmentRequest struct {
	StartDate *time.Time               `json:"start_date"`
	EndDate   *time.Time               `json:"end_date"`
	Status    *models.EnrollmentStatus `json:"status" validate:"omitempty,oneof=PENDING ACTIVE COMPLETED SUSPENDED"`
	Notes     *string                  `json:"notes" validate:"omitempty,max=500"`
}

// EnrollmentService registers students in courses for an academic period.
type EnrollmentService struct {
	repo      enrollmentRepository
	refs      referenceReader
	periods   periodFinder
	guard     *conflict.Guard
	audit     *AuditService
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
	reporter  placementReporter
}

// NewEnrollmentService constructs EnrollmentService.
func NewEnrollmentService(repo enrollmentRepository, refs referenceReader, periods periodFinder, guard *conflict.Guard, audit *AuditService, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *EnrollmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &EnrollmentService{
		repo:      repo,
		refs:      refs,
		periods:   periods,
		guard:     guard,
		audit:     audit,
		cache:     cache,
		validator: validate,
		logger:    logger,
		reporter:  placementReporter{logger: logger},
	}
	if audit != nil {
		s.reporter.recorder = audit
	}
	return s
}

// List returns enrollments with pagination metadata.
func (s *EnrollmentService) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, *models.Pagination, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "unknown enrollment status")
	}
	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, internalError(err, "failed to list enrollments")
	}
	return items, paginate(filter.Page, filter.PageSize, total), nil
}

// Get returns a single enrollment.
func (s *EnrollmentService) Get(ctx context.Context, id string) (*models.Enrollment, error) {
	enrollment, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, internalError(err, "failed to load enrollment")
	}
	return enrollment, nil
}

// Create enrolls a student once per course and period, with an optional window inside the period.
func (s *EnrollmentService) Create(ctx context.Context, req CreateEnrollmentRequest) (*models.Enrollment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid enrollment payload")
	}

	enrollment := models.Enrollment{
		StudentID:        req.StudentID,
		CourseID:         req.CourseID,
		AcademicPeriodID: req.AcademicPeriodID,
		StartDate:        req.StartDate,
		EndDate:          req.EndDate,
		Status:           req.Status,
		Notes:            req.Notes,
	}
	if enrollment.Status == "" {
		enrollment.Status = models.EnrollmentStatusPending
	}
	if err := checkWindow(enrollment); err != nil {
		return nil, err
	}

	student, err := s.refs.FindStudent(ctx, enrollment.StudentID)
	if err := referenceError(err, student != nil && student.IsActive, "student"); err != nil {
		return nil, err
	}

	key := conflict.Enrollment(enrollment.StudentID, enrollment.CourseID, enrollment.AcademicPeriodID)
	keys := []conflict.ResourceKey{key, conflict.CourseSeats(enrollment.CourseID)}
	err = s.guard.Do(ctx, keys, func(ctx context.Context) error {
		course, err := s.refs.FindCourse(ctx, enrollment.CourseID)
		if err := referenceError(err, course != nil && course.IsActive, "course"); err != nil {
			return err
		}
		if course.Full() {
			return appErrors.Clone(appErrors.ErrConflict, capacityMessage)
		}
		period, err := s.loadPeriod(ctx, enrollment.AcademicPeriodID)
		if err != nil {
			return err
		}
		if err := s.ensureWindowInside(ctx, enrollment, period); err != nil {
			return err
		}

		exists, err := s.repo.ExistsActive(ctx, enrollment.StudentID, enrollment.CourseID, enrollment.AcademicPeriodID, "")
		if err != nil {
			return internalError(err, "failed to check existing enrollment")
		}
		if exists {
			return s.reporter.reject(ctx, appErrors.ErrConflict, models.ScopeEnrollment, key, duplicateMessage, nil)
		}
		if err := s.repo.Create(ctx, &enrollment); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return s.reporter.reject(ctx, appErrors.ErrConflict, models.ScopeEnrollment, key, duplicateMessage, nil)
			}
			if errors.Is(err, repository.ErrCapacity) {
				return appErrors.Derive(appErrors.ErrConflict, err, capacityMessage)
			}
			return internalError(err, "failed to create enrollment")
		}
		return nil
	})
	if err != nil {
		return nil, guardError(err, "failed to create enrollment")
	}

	s.afterWrite(ctx, models.AuditActionCreate, enrollment)
	return &enrollment, nil
}

// Update changes the window, status or notes, re-validating the window against the period.
func (s *EnrollmentService) Update(ctx context.Context, id string, req UpdateEnrollmentRequest) (*models.Enrollment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid enrollment payload")
	}
	existing, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !existing.IsActive {
		return nil, appErrors.Clone(appErrors.ErrConflict, "enrollment is cancelled")
	}

	updated := *existing
	if req.StartDate != nil {
		updated.StartDate = req.StartDate
	}
	if req.EndDate != nil {
		updated.EndDate = req.EndDate
	}
	if req.Status != nil {
		updated.Status = *req.Status
	}
	if req.Notes != nil {
		updated.Notes = *req.Notes
	}
	if err := checkWindow(updated); err != nil {
		return nil, err
	}

	period, err := s.loadPeriod(ctx, updated.AcademicPeriodID)
	if err != nil {
		return nil, err
	}
	if err := s.ensureWindowInside(ctx, updated, period); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, &updated); err != nil {
		return nil, internalError(err, "failed to update enrollment")
	}

	s.afterWrite(ctx, models.AuditActionUpdate, updated)
	return &updated, nil
}

// Cancel marks the enrollment cancelled and frees its seat in the course.
func (s *EnrollmentService) Cancel(ctx context.Context, id string) error {
	existing, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if !existing.IsActive || existing.Status == models.EnrollmentStatusCancelled {
		return appErrors.Clone(appErrors.ErrConflict, alreadyCancelledMessage)
	}
	err = s.guard.Do(ctx, []conflict.ResourceKey{conflict.CourseSeats(existing.CourseID)}, func(ctx context.Context) error {
		if err := s.repo.Cancel(ctx, id, existing.CourseID); err != nil {
			if errors.Is(err, repository.ErrNotActive) {
				return appErrors.Derive(appErrors.ErrConflict, err, alreadyCancelledMessage)
			}
			return internalError(err, "failed to cancel enrollment")
		}
		return nil
	})
	if err != nil {
		return guardError(err, "failed to cancel enrollment")
	}
	existing.Status = models.EnrollmentStatusCancelled
	existing.IsActive = false
	s.afterWrite(ctx, models.AuditActionDeactivate, *existing)
	return nil
}

// Stats aggregates enrollments by status.
func (s *EnrollmentService) Stats(ctx context.Context) (*models.EnrollmentStats, error) {
	return remember(ctx, s.cache, enrollmentStatsKey, func(ctx context.Context) (*models.EnrollmentStats, error) {
		stats, err := s.repo.Stats(ctx)
		if err != nil {
			return nil, internalError(err, "failed to compute enrollment stats")
		}
		return stats, nil
	})
}

func (s *EnrollmentService) loadPeriod(ctx context.Context, id string) (*models.AcademicPeriod, error) {
	period, err := s.periods.FindByID(ctx, id)
	if err := referenceError(err, period != nil && period.IsActive, "academic period"); err != nil {
		return nil, err
	}
	return period, nil
}

func (s *EnrollmentService) ensureWindowInside(ctx context.Context, enrollment models.Enrollment, period *models.AcademicPeriod) error {
	window, ok := enrollment.Window()
	if !ok {
		return nil
	}
	if !conflict.Contains(period.Interval(), window) {
		return s.reporter.outside(ctx, conflict.Period(period.ID), "enrollment window must fall within the academic period", period.ID)
	}
	return nil
}

func (s *EnrollmentService) afterWrite(ctx context.Context, action string, enrollment models.Enrollment) {
	_ = s.cache.Invalidate(ctx, statsPattern)
	s.audit.Record(ctx, action, resourceEnrollment, enrollment.ID, enrollment)
}

// checkWindow requires start before end when both bounds are present.
func checkWindow(enrollment models.Enrollment) error {
	window, ok := enrollment.Window()
	if ok && !window.Start.Before(window.End) {
		return invalidInterval("start_date must be before end_date")
	}
	return nil
}
