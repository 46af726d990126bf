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

const enrollmentColumns = "id, student_id, course_id, academic_period_id, enrollment_date, start_date, end_date, status, notes, is_active, created_at, updated_at"

// EnrollmentRepository handles persistence of enrollments.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

// List returns enrollments filtered by the provided criteria.
func (r *EnrollmentRepository) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error) {
	base := `FROM enrollments e
LEFT JOIN students s ON s.id = e.student_id
LEFT JOIN courses c ON c.id = e.course_id
LEFT JOIN academic_periods p ON p.id = e.academic_period_id`
	var conditions []string
	var args []interface{}

	if !filter.IncludeInactive {
		conditions = append(conditions, "e.is_active = TRUE")
	}
	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("e.student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.CourseID != "" {
		conditions = append(conditions, fmt.Sprintf("e.course_id = $%d", len(args)+1))
		args = append(args, filter.CourseID)
	}
	if filter.AcademicPeriodID != "" {
		conditions = append(conditions, fmt.Sprintf("e.academic_period_id = $%d", len(args)+1))
		args = append(args, filter.AcademicPeriodID)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("e.status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	allowedSorts := map[string]string{
		"enrollment_date": "e.enrollment_date",
		"student_name":    "s.full_name",
		"course_name":     "c.name",
	}
	orderBy, ok := allowedSorts[filter.SortBy]
	if !ok {
		orderBy = "e.enrollment_date"
	}
	order := sortOrder(filter.SortOrder, "DESC")
	size, offset := pageWindow(filter.Page, filter.PageSize)

	query := fmt.Sprintf(`SELECT e.id, e.student_id, e.course_id, e.academic_period_id, e.enrollment_date, e.start_date, e.end_date, e.status, e.notes, e.is_active, e.created_at, e.updated_at,
COALESCE(s.full_name, '') AS student_name, COALESCE(c.name, '') AS course_name, COALESCE(p.name, '') AS period_name
%s%s ORDER BY %s %s LIMIT %d OFFSET %d`, base, clause, orderBy, order, size, offset)

	var enrollments []models.EnrollmentDetail
	if err := r.db.SelectContext(ctx, &enrollments, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list enrollments: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) "+base+clause, args...); err != nil {
		return nil, 0, fmt.Errorf("count enrollments: %w", err)
	}
	return enrollments, total, nil
}

// FindByID loads an enrollment.
func (r *EnrollmentRepository) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	var enrollment models.Enrollment
	if err := r.db.GetContext(ctx, &enrollment, "SELECT "+enrollmentColumns+" FROM enrollments WHERE id = $1", id); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// ExistsActive checks whether a student already holds an active enrollment in the course for the period.
func (r *EnrollmentRepository) ExistsActive(ctx context.Context, studentID, courseID, periodID, excludeID string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM enrollments WHERE student_id = $1 AND course_id = $2 AND academic_period_id = $3 AND is_active = TRUE`
	args := []interface{}{studentID, courseID, periodID}
	if excludeID != "" {
		query += " AND id <> $4"
		args = append(args, excludeID)
	}
	query += ")"
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, args...); err != nil {
		return false, fmt.Errorf("check active enrollment: %w", err)
	}
	return exists, nil
}

// Create inserts an enrollment and bumps the course counter in one transaction.
func (r *EnrollmentRepository) Create(ctx context.Context, enrollment *models.Enrollment) (err error) {
	if enrollment.ID == "" {
		enrollment.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if enrollment.EnrollmentDate.IsZero() {
		enrollment.EnrollmentDate = now
	}
	if enrollment.CreatedAt.IsZero() {
		enrollment.CreatedAt = now
	}
	enrollment.UpdatedAt = now
	enrollment.IsActive = true

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create enrollment: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const insert = `INSERT INTO enrollments (id, student_id, course_id, academic_period_id, enrollment_date, start_date, end_date, status, notes, is_active, created_at, updated_at) VALUES (:id, :student_id, :course_id, :academic_period_id, :enrollment_date, :start_date, :end_date, :status, :notes, :is_active, :created_at, :updated_at)`
	if _, err = sqlx.NamedExecContext(ctx, tx, insert, enrollment); err != nil {
		return classify("create enrollment", err)
	}
	res, err := tx.ExecContext(ctx, `UPDATE courses SET current_enrollment = current_enrollment + 1 WHERE id = $1 AND (capacity IS NULL OR current_enrollment < capacity)`, enrollment.CourseID)
	if err != nil {
		return fmt.Errorf("increment course enrollment: %w", err)
	}
	if err = expectOne(res, ErrCapacity); err != nil {
		return fmt.Errorf("increment course enrollment: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit create enrollment: %w", err)
	}
	return nil
}

// Update persists window, status and notes changes.
func (r *EnrollmentRepository) Update(ctx context.Context, enrollment *models.Enrollment) error {
	enrollment.UpdatedAt = time.Now().UTC()
	const query = `UPDATE enrollments SET start_date = :start_date, end_date = :end_date, status = :status, notes = :notes, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, enrollment); err != nil {
		return classify("update enrollment", err)
	}
	return nil
}

// Cancel marks an active enrollment cancelled and releases its course seat.
// A row that is already inactive yields ErrNotActive and leaves the counter alone.
func (r *EnrollmentRepository) Cancel(ctx context.Context, id, courseID string) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin cancel enrollment: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx, `UPDATE enrollments SET status = 'CANCELLED', is_active = FALSE, updated_at = $2 WHERE id = $1 AND is_active`, id, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("cancel enrollment: %w", err)
	}
	if err = expectOne(res, ErrNotActive); err != nil {
		return fmt.Errorf("cancel enrollment: %w", err)
	}
	if _, err = tx.ExecContext(ctx, `UPDATE courses SET current_enrollment = GREATEST(current_enrollment - 1, 0) WHERE id = $1`, courseID); err != nil {
		return fmt.Errorf("decrement course enrollment: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit cancel enrollment: %w", err)
	}
	return nil
}

// Stats aggregates live enrollments by status.
func (r *EnrollmentRepository) Stats(ctx context.Context) (*models.EnrollmentStats, error) {
	stats := &models.EnrollmentStats{}
	if err := r.db.GetContext(ctx, &stats.Total, `SELECT COUNT(*) FROM enrollments WHERE is_active = TRUE`); err != nil {
		return nil, fmt.Errorf("count enrollments: %w", err)
	}
	if err := r.db.SelectContext(ctx, &stats.ByStatus, `SELECT status, COUNT(*) AS count FROM enrollments WHERE is_active = TRUE GROUP BY status ORDER BY status ASC`); err != nil {
		return nil, fmt.Errorf("count enrollments by status: %w", err)
	}
	for _, bucket := range stats.ByStatus {
		if bucket.Status == string(models.EnrollmentStatusActive) {
			stats.Active = bucket.Count
		}
	}
	return stats, nil
}
