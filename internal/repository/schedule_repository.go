package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-scheduling-api/internal/models"
)

const scheduleColumns = "id, course_id, subject_id, teacher_id, day_of_week, start_time, end_time, room, notes, is_active, created_at, updated_at"

const scheduleDetailSelect = `SELECT s.id, s.course_id, s.subject_id, s.teacher_id, s.day_of_week, s.start_time, s.end_time, s.room, s.notes, s.is_active, s.created_at, s.updated_at,
COALESCE(c.name, '') AS course_name, COALESCE(sub.name, '') AS subject_name, COALESCE(t.full_name, '') AS teacher_name
FROM schedules s
LEFT JOIN courses c ON c.id = s.course_id
LEFT JOIN subjects sub ON sub.id = s.subject_id
LEFT JOIN teachers t ON t.id = s.teacher_id`

// ScheduleRepository provides persistence for weekly schedules.
type ScheduleRepository struct {
	db *sqlx.DB
}

// NewScheduleRepository creates a new schedule repository.
func NewScheduleRepository(db *sqlx.DB) *ScheduleRepository {
	return &ScheduleRepository{db: db}
}

// List returns schedules with optional filtering and pagination.
func (r *ScheduleRepository) List(ctx context.Context, filter models.ScheduleFilter) ([]models.ScheduleDetail, int, error) {
	var conditions []string
	var args []interface{}

	if !filter.IncludeInactive {
		conditions = append(conditions, "s.is_active = TRUE")
	}
	if filter.CourseID != "" {
		conditions = append(conditions, fmt.Sprintf("s.course_id = $%d", len(args)+1))
		args = append(args, filter.CourseID)
	}
	if filter.SubjectID != "" {
		conditions = append(conditions, fmt.Sprintf("s.subject_id = $%d", len(args)+1))
		args = append(args, filter.SubjectID)
	}
	if filter.TeacherID != "" {
		conditions = append(conditions, fmt.Sprintf("s.teacher_id = $%d", len(args)+1))
		args = append(args, filter.TeacherID)
	}
	if filter.DayOfWeek != nil {
		conditions = append(conditions, fmt.Sprintf("s.day_of_week = $%d", len(args)+1))
		args = append(args, *filter.DayOfWeek)
	}

	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	allowedSorts := map[string]string{
		"day_of_week": "s.day_of_week",
		"start_time":  "s.start_time",
		"room":        "s.room",
		"created_at":  "s.created_at",
	}
	orderBy, ok := allowedSorts[filter.SortBy]
	if !ok {
		orderBy = "s.day_of_week"
	}
	order := sortOrder(filter.SortOrder, "ASC")
	size, offset := pageWindow(filter.Page, filter.PageSize)

	query := fmt.Sprintf("%s%s ORDER BY %s %s, s.start_time ASC LIMIT %d OFFSET %d", scheduleDetailSelect, where, orderBy, order, size, offset)
	var schedules []models.ScheduleDetail
	if err := r.db.SelectContext(ctx, &schedules, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list schedules: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM schedules s"+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count schedules: %w", err)
	}

	return schedules, total, nil
}

// FindByID loads a schedule by id.
func (r *ScheduleRepository) FindByID(ctx context.Context, id string) (*models.Schedule, error) {
	query := "SELECT " + scheduleColumns + " FROM schedules WHERE id = $1"
	var sched models.Schedule
	if err := r.db.GetContext(ctx, &sched, query, id); err != nil {
		return nil, err
	}
	return &sched, nil
}

// ListActiveByTeacherDay returns the active slots a teacher holds on a weekday.
func (r *ScheduleRepository) ListActiveByTeacherDay(ctx context.Context, teacherID string, day int) ([]models.Schedule, error) {
	query := "SELECT " + scheduleColumns + " FROM schedules WHERE teacher_id = $1 AND day_of_week = $2 AND is_active = TRUE ORDER BY start_time ASC"
	var schedules []models.Schedule
	if err := r.db.SelectContext(ctx, &schedules, query, teacherID, day); err != nil {
		return nil, fmt.Errorf("list teacher day schedules: %w", err)
	}
	return schedules, nil
}

// ListActiveByCourseDay returns the active slots of a course on a weekday.
func (r *ScheduleRepository) ListActiveByCourseDay(ctx context.Context, courseID string, day int) ([]models.Schedule, error) {
	query := "SELECT " + scheduleColumns + " FROM schedules WHERE course_id = $1 AND day_of_week = $2 AND is_active = TRUE ORDER BY start_time ASC"
	var schedules []models.Schedule
	if err := r.db.SelectContext(ctx, &schedules, query, courseID, day); err != nil {
		return nil, fmt.Errorf("list course day schedules: %w", err)
	}
	return schedules, nil
}

// ListByTeacher returns the active timetable of a teacher ordered by day and time.
func (r *ScheduleRepository) ListByTeacher(ctx context.Context, teacherID string) ([]models.ScheduleDetail, error) {
	query := scheduleDetailSelect + " WHERE s.teacher_id = $1 AND s.is_active = TRUE ORDER BY s.day_of_week ASC, s.start_time ASC"
	var schedules []models.ScheduleDetail
	if err := r.db.SelectContext(ctx, &schedules, query, teacherID); err != nil {
		return nil, fmt.Errorf("list schedules by teacher: %w", err)
	}
	return schedules, nil
}

// ListByCourse returns the active timetable of a course ordered by day and time.
func (r *ScheduleRepository) ListByCourse(ctx context.Context, courseID string) ([]models.ScheduleDetail, error) {
	query := scheduleDetailSelect + " WHERE s.course_id = $1 AND s.is_active = TRUE ORDER BY s.day_of_week ASC, s.start_time ASC"
	var schedules []models.ScheduleDetail
	if err := r.db.SelectContext(ctx, &schedules, query, courseID); err != nil {
		return nil, fmt.Errorf("list schedules by course: %w", err)
	}
	return schedules, nil
}

// Create stores a new schedule record.
func (r *ScheduleRepository) Create(ctx context.Context, schedule *models.Schedule) error {
	if schedule.ID == "" {
		schedule.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if schedule.CreatedAt.IsZero() {
		schedule.CreatedAt = now
	}
	schedule.UpdatedAt = now
	schedule.IsActive = true

	const query = `INSERT INTO schedules (id, course_id, subject_id, teacher_id, day_of_week, start_time, end_time, room, notes, is_active, created_at, updated_at) VALUES (:id, :course_id, :subject_id, :teacher_id, :day_of_week, :start_time, :end_time, :room, :notes, :is_active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, schedule); err != nil {
		return classify("create schedule", err)
	}
	return nil
}

// Update modifies a schedule record.
func (r *ScheduleRepository) Update(ctx context.Context, schedule *models.Schedule) error {
	schedule.UpdatedAt = time.Now().UTC()
	const query = `UPDATE schedules SET course_id = :course_id, subject_id = :subject_id, teacher_id = :teacher_id, day_of_week = :day_of_week, start_time = :start_time, end_time = :end_time, room = :room, notes = :notes, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, schedule); err != nil {
		return classify("update schedule", err)
	}
	return nil
}

// Deactivate soft deletes a schedule so it no longer takes part in conflict checks.
func (r *ScheduleRepository) Deactivate(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE schedules SET is_active = FALSE, updated_at = $2 WHERE id = $1`, id, time.Now().UTC()); err != nil {
		return fmt.Errorf("deactivate schedule: %w", err)
	}
	return nil
}

// Stats aggregates the active timetable.
func (r *ScheduleRepository) Stats(ctx context.Context) (*models.ScheduleStats, error) {
	stats := &models.ScheduleStats{}
	if err := r.db.GetContext(ctx, &stats.TotalActive, `SELECT COUNT(*) FROM schedules WHERE is_active = TRUE`); err != nil {
		return nil, fmt.Errorf("count active schedules: %w", err)
	}

	if err := r.db.SelectContext(ctx, &stats.ByDay, `SELECT day_of_week, COUNT(*) AS count FROM schedules WHERE is_active = TRUE GROUP BY day_of_week ORDER BY day_of_week ASC`); err != nil {
		return nil, fmt.Errorf("count schedules by day: %w", err)
	}
	for i := range stats.ByDay {
		stats.ByDay[i].DayName = models.DayName(stats.ByDay[i].DayOfWeek)
	}

	const topTeachers = `SELECT s.teacher_id, COALESCE(t.full_name, '') AS teacher_name, COUNT(*) AS count
FROM schedules s
LEFT JOIN teachers t ON t.id = s.teacher_id
WHERE s.is_active = TRUE
GROUP BY s.teacher_id, t.full_name
ORDER BY count DESC
LIMIT 10`
	if err := r.db.SelectContext(ctx, &stats.TopTeachers, topTeachers); err != nil {
		return nil, fmt.Errorf("count schedules by teacher: %w", err)
	}

	return stats, nil
}
