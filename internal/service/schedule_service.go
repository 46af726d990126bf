package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-scheduling-api/internal/conflict"
	"github.com/noah-isme/sma-scheduling-api/internal/models"
	appErrors "github.com/noah-isme/sma-scheduling-api/pkg/errors"
)

const (
	scheduleStatsKey = "stats:schedules"
	statsPattern     = "stats:*"
	resourceSchedule = "schedule"
)

type scheduleRepository interface {
	List(ctx context.Context, filter models.ScheduleFilter) ([]models.ScheduleDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.Schedule, error)
	ListActiveByTeacherDay(ctx context.Context, teacherID string, day int) ([]models.Schedule, error)
	ListActiveByCourseDay(ctx context.Context, courseID string, day int) ([]models.Schedule, error)
	ListByTeacher(ctx context.Context, teacherID string) ([]models.ScheduleDetail, error)
	ListByCourse(ctx context.Context, courseID string) ([]models.ScheduleDetail, error)
	Create(ctx context.Context, schedule *models.Schedule) error
	Update(ctx context.Context, schedule *models.Schedule) error
	Deactivate(ctx context.Context, id string) error
	Stats(ctx context.Context) (*models.ScheduleStats, error)
}

type referenceReader interface {
	FindCourse(ctx context.Context, id string) (*models.Course, error)
	FindSubject(ctx context.Context, id string) (*models.Subject, error)
	FindTeacher(ctx context.Context, id string) (*models.Teacher, error)
	FindStudent(ctx context.Context, id string) (*models.Student, error)
}

// CreateScheduleRequest describes payload for creating a schedule.
type CreateScheduleRequest struct {
	CourseID  string `json:"course_id" validate:"required"`
	SubjectID string `json:"subject_id" validate:"required"`
	TeacherID string `json:"teacher_id" validate:"required"`
	DayOfWeek *int   `json:"day_of_week" validate:"required,min=0,max=6"`
	StartTime string `json:"start_time" validate:"required"`
	EndTime   string `json:"end_time" validate:"required"`
	Room      string `json:"room" validate:"max=50"`
	Notes     string `json:"notes" validate:"max=255"`
}

// UpdateScheduleRequest carries the fields to change. Nil fields keep their stored value.
type UpdateScheduleRequest struct {
	CourseID  *string `json:"course_id" validate:"omitempty,min=1"`
	SubjectID *string `json:"subject_id" validate:"omitempty,min=1"`
	TeacherID *string `json:"teacher_id" validate:"omitempty,min=1"`
	DayOfWeek *int    `json:"day_of_week" validate:"omitempty,min=0,max=6"`
	StartTime *string `json:"start_time"`
	EndTime   *string `json:"end_time"`
	Room      *string `json:"room" validate:"omitempty,max=50"`
	Notes     *string `json:"notes" validate:"omitempty,max=255"`
}

// ScheduleService places weekly class slots without double-booking teachers or courses.
type ScheduleService struct {
	repo      scheduleRepository
	refs      referenceReader
	guard     *conflict.Guard
	audit     *AuditService
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
	reporter  placementReporter
}

// NewScheduleService instantiates ScheduleService.
func NewScheduleService(repo scheduleRepository, refs referenceReader, guard *conflict.Guard, audit *AuditService, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *ScheduleService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &ScheduleService{repo: repo, refs: refs, guard: guard, audit: audit, cache: cache, validator: validate, logger: logger}
	s.reporter = placementReporter{logger: logger}
	if audit != nil {
		s.reporter.recorder = audit
	}
	return s
}

// List returns schedules with pagination metadata.
func (s *ScheduleService) List(ctx context.Context, filter models.ScheduleFilter) ([]models.ScheduleDetail, *models.Pagination, error) {
	schedules, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, internalError(err, "failed to list schedules")
	}
	return schedules, paginate(filter.Page, filter.PageSize, total), nil
}

// Get returns a single schedule.
func (s *ScheduleService) Get(ctx context.Context, id string) (*models.Schedule, error) {
	schedule, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "schedule not found")
		}
		return nil, internalError(err, "failed to load schedule")
	}
	return schedule, nil
}

// ListByTeacher returns the active timetable of a teacher.
func (s *ScheduleService) ListByTeacher(ctx context.Context, teacherID string) ([]models.ScheduleDetail, error) {
	schedules, err := s.repo.ListByTeacher(ctx, teacherID)
	if err != nil {
		return nil, internalError(err, "failed to list teacher schedules")
	}
	return schedules, nil
}

// ListByCourse returns the active timetable of a course.
func (s *ScheduleService) ListByCourse(ctx context.Context, courseID string) ([]models.ScheduleDetail, error) {
	schedules, err := s.repo.ListByCourse(ctx, courseID)
	if err != nil {
		return nil, internalError(err, "failed to list course schedules")
	}
	return schedules, nil
}

// Create inserts a new schedule after both teacher and course slots are checked.
func (s *ScheduleService) Create(ctx context.Context, req CreateScheduleRequest) (*models.Schedule, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid schedule payload")
	}

	start, end, err := parseSlot(req.StartTime, req.EndTime)
	if err != nil {
		return nil, err
	}

	schedule := models.Schedule{
		CourseID:  req.CourseID,
		SubjectID: req.SubjectID,
		TeacherID: req.TeacherID,
		DayOfWeek: *req.DayOfWeek,
		StartTime: start,
		EndTime:   end,
		Room:      req.Room,
		Notes:     req.Notes,
	}

	if err := s.ensureReferences(ctx, schedule.CourseID, schedule.SubjectID, schedule.TeacherID); err != nil {
		return nil, err
	}

	err = s.guard.Do(ctx, slotKeys(schedule), func(ctx context.Context) error {
		if err := s.ensureSlotFree(ctx, schedule, ""); err != nil {
			return err
		}
		if err := s.repo.Create(ctx, &schedule); err != nil {
			return s.reporter.storage(ctx, err, models.ScopeTeacherDay, conflict.TeacherDay(schedule.TeacherID, schedule.DayOfWeek), "teacher or course already has a class at this time", "failed to create schedule")
		}
		return nil
	})
	if err != nil {
		return nil, guardError(err, "failed to create schedule")
	}

	s.afterWrite(ctx, models.AuditActionCreate, schedule)
	return &schedule, nil
}

// Update merges the request into the stored schedule and re-checks both slots, ignoring the schedule itself.
func (s *ScheduleService) Update(ctx context.Context, id string, req UpdateScheduleRequest) (*models.Schedule, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid schedule payload")
	}

	existing, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !existing.IsActive {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "schedule not found")
	}

	updated := *existing
	var course, subject, teacher string
	if req.CourseID != nil && *req.CourseID != existing.CourseID {
		updated.CourseID = *req.CourseID
		course = updated.CourseID
	}
	if req.SubjectID != nil && *req.SubjectID != existing.SubjectID {
		updated.SubjectID = *req.SubjectID
		subject = updated.SubjectID
	}
	if req.TeacherID != nil && *req.TeacherID != existing.TeacherID {
		updated.TeacherID = *req.TeacherID
		teacher = updated.TeacherID
	}
	if req.DayOfWeek != nil {
		updated.DayOfWeek = *req.DayOfWeek
	}
	if req.Room != nil {
		updated.Room = *req.Room
	}
	if req.Notes != nil {
		updated.Notes = *req.Notes
	}

	startRaw, endRaw := existing.StartTime.String(), existing.EndTime.String()
	if req.StartTime != nil {
		startRaw = *req.StartTime
	}
	if req.EndTime != nil {
		endRaw = *req.EndTime
	}
	if updated.StartTime, updated.EndTime, err = parseSlot(startRaw, endRaw); err != nil {
		return nil, err
	}

	if err := s.ensureReferences(ctx, course, subject, teacher); err != nil {
		return nil, err
	}

	err = s.guard.Do(ctx, slotKeys(updated), func(ctx context.Context) error {
		if err := s.ensureSlotFree(ctx, updated, updated.ID); err != nil {
			return err
		}
		if err := s.repo.Update(ctx, &updated); err != nil {
			return s.reporter.storage(ctx, err, models.ScopeTeacherDay, conflict.TeacherDay(updated.TeacherID, updated.DayOfWeek), "teacher or course already has a class at this time", "failed to update schedule")
		}
		return nil
	})
	if err != nil {
		return nil, guardError(err, "failed to update schedule")
	}

	s.afterWrite(ctx, models.AuditActionUpdate, updated)
	return &updated, nil
}

// Deactivate soft deletes a schedule, freeing its slot.
func (s *ScheduleService) Deactivate(ctx context.Context, id string) error {
	existing, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if !existing.IsActive {
		return appErrors.Clone(appErrors.ErrNotFound, "schedule not found")
	}
	if err := s.repo.Deactivate(ctx, id); err != nil {
		return internalError(err, "failed to deactivate schedule")
	}
	existing.IsActive = false
	s.afterWrite(ctx, models.AuditActionDeactivate, *existing)
	return nil
}

// Stats summarises the active timetable.
func (s *ScheduleService) Stats(ctx context.Context) (*models.ScheduleStats, error) {
	return remember(ctx, s.cache, scheduleStatsKey, func(ctx context.Context) (*models.ScheduleStats, error) {
		stats, err := s.repo.Stats(ctx)
		if err != nil {
			return nil, internalError(err, "failed to compute schedule stats")
		}
		for i := range stats.ByDay {
			stats.ByDay[i].DayName = models.DayName(stats.ByDay[i].DayOfWeek)
		}
		return stats, nil
	})
}

func (s *ScheduleService) ensureSlotFree(ctx context.Context, schedule models.Schedule, excludeID string) error {
	candidate := schedule.Interval()

	teacherSlots, err := s.repo.ListActiveByTeacherDay(ctx, schedule.TeacherID, schedule.DayOfWeek)
	if err != nil {
		return internalError(err, "failed to check teacher availability")
	}
	if hits := conflict.FindConflicts(candidate, scheduleIntervals(teacherSlots), excludeID); len(hits) > 0 {
		return s.reporter.overlap(ctx, models.ScopeTeacherDay, conflict.TeacherDay(schedule.TeacherID, schedule.DayOfWeek), "teacher already has a class at this time", hits)
	}

	courseSlots, err := s.repo.ListActiveByCourseDay(ctx, schedule.CourseID, schedule.DayOfWeek)
	if err != nil {
		return internalError(err, "failed to check course availability")
	}
	if hits := conflict.FindConflicts(candidate, scheduleIntervals(courseSlots), excludeID); len(hits) > 0 {
		return s.reporter.overlap(ctx, models.ScopeCourseDay, conflict.CourseDay(schedule.CourseID, schedule.DayOfWeek), "course already has a class at this time", hits)
	}
	return nil
}

// ensureReferences checks each non-empty id points at an active record.
func (s *ScheduleService) ensureReferences(ctx context.Context, courseID, subjectID, teacherID string) error {
	if courseID != "" {
		course, err := s.refs.FindCourse(ctx, courseID)
		if err := referenceError(err, course != nil && course.IsActive, "course"); err != nil {
			return err
		}
	}
	if subjectID != "" {
		subject, err := s.refs.FindSubject(ctx, subjectID)
		if err := referenceError(err, subject != nil && subject.IsActive, "subject"); err != nil {
			return err
		}
	}
	if teacherID != "" {
		teacher, err := s.refs.FindTeacher(ctx, teacherID)
		if err := referenceError(err, teacher != nil && teacher.IsActive, "teacher"); err != nil {
			return err
		}
	}
	return nil
}

func (s *ScheduleService) afterWrite(ctx context.Context, action string, schedule models.Schedule) {
	_ = s.cache.Invalidate(ctx, statsPattern)
	s.audit.Record(ctx, action, resourceSchedule, schedule.ID, schedule)
}

func referenceError(err error, active bool, name string) error {
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return internalError(err, "failed to load "+name)
	}
	if err != nil || !active {
		return appErrors.Clone(appErrors.ErrInvalidReference, name+" not found or inactive")
	}
	return nil
}

func parseSlot(startRaw, endRaw string) (models.TimeOfDay, models.TimeOfDay, error) {
	start, err := models.ParseTimeOfDay(startRaw)
	if err != nil {
		return 0, 0, validationError(err, "start_time must be HH:MM")
	}
	end, err := models.ParseTimeOfDay(endRaw)
	if err != nil {
		return 0, 0, validationError(err, "end_time must be HH:MM")
	}
	if start >= end {
		return 0, 0, invalidInterval("start_time must be before end_time")
	}
	return start, end, nil
}

func slotKeys(schedule models.Schedule) []conflict.ResourceKey {
	return []conflict.ResourceKey{
		conflict.TeacherDay(schedule.TeacherID, schedule.DayOfWeek),
		conflict.CourseDay(schedule.CourseID, schedule.DayOfWeek),
	}
}

func scheduleIntervals(schedules []models.Schedule) []conflict.Interval {
	out := make([]conflict.Interval, 0, len(schedules))
	for _, item := range schedules {
		out = append(out, item.Interval())
	}
	return out
}
