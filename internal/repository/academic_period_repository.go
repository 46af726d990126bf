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

const periodColumns = "id, name, code, description, start_date, end_date, status, is_active, created_at, updated_at"

// AcademicPeriodRepository persists academic periods.
type AcademicPeriodRepository struct {
	db *sqlx.DB
}

// NewAcademicPeriodRepository constructs the repository.
func NewAcademicPeriodRepository(db *sqlx.DB) *AcademicPeriodRepository {
	return &AcademicPeriodRepository{db: db}
}

// List returns periods with enrollment and event counts.
func (r *AcademicPeriodRepository) List(ctx context.Context, filter models.AcademicPeriodFilter) ([]models.AcademicPeriodSummary, int, error) {
	var conditions []string
	var args []interface{}

	if !filter.IncludeInactive {
		conditions = append(conditions, "p.is_active = TRUE")
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("p.status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}
	if filter.StartFrom != nil {
		conditions = append(conditions, fmt.Sprintf("p.start_date >= $%d", len(args)+1))
		args = append(args, *filter.StartFrom)
	}
	if filter.EndUntil != nil {
		conditions = append(conditions, fmt.Sprintf("p.end_date <= $%d", len(args)+1))
		args = append(args, *filter.EndUntil)
	}

	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	allowedSorts := map[string]string{
		"start_date": "p.start_date",
		"end_date":   "p.end_date",
		"name":       "p.name",
		"code":       "p.code",
	}
	orderBy, ok := allowedSorts[filter.SortBy]
	if !ok {
		orderBy = "p.start_date"
	}
	order := sortOrder(filter.SortOrder, "DESC")
	size, offset := pageWindow(filter.Page, filter.PageSize)

	query := fmt.Sprintf(`SELECT p.id, p.name, p.code, p.description, p.start_date, p.end_date, p.status, p.is_active, p.created_at, p.updated_at,
(SELECT COUNT(*) FROM enrollments e WHERE e.academic_period_id = p.id AND e.is_active = TRUE) AS enrollment_count,
(SELECT COUNT(*) FROM academic_events ev WHERE ev.academic_period_id = p.id AND ev.is_active = TRUE) AS event_count
FROM academic_periods p%s ORDER BY %s %s LIMIT %d OFFSET %d`, where, orderBy, order, size, offset)

	var periods []models.AcademicPeriodSummary
	if err := r.db.SelectContext(ctx, &periods, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list academic periods: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM academic_periods p"+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count academic periods: %w", err)
	}
	return periods, total, nil
}

// FindByID loads a period by id.
func (r *AcademicPeriodRepository) FindByID(ctx context.Context, id string) (*models.AcademicPeriod, error) {
	var period models.AcademicPeriod
	if err := r.db.GetContext(ctx, &period, "SELECT "+periodColumns+" FROM academic_periods WHERE id = $1", id); err != nil {
		return nil, err
	}
	return &period, nil
}

// ListActive returns every active period; they share a single overlap scope.
func (r *AcademicPeriodRepository) ListActive(ctx context.Context) ([]models.AcademicPeriod, error) {
	var periods []models.AcademicPeriod
	if err := r.db.SelectContext(ctx, &periods, "SELECT "+periodColumns+" FROM academic_periods WHERE is_active = TRUE ORDER BY start_date ASC"); err != nil {
		return nil, fmt.Errorf("list active academic periods: %w", err)
	}
	return periods, nil
}

// ListByStatus returns active periods in the given status.
func (r *AcademicPeriodRepository) ListByStatus(ctx context.Context, status models.PeriodStatus) ([]models.AcademicPeriod, error) {
	var periods []models.AcademicPeriod
	if err := r.db.SelectContext(ctx, &periods, "SELECT "+periodColumns+" FROM academic_periods WHERE status = $1 AND is_active = TRUE ORDER BY start_date ASC", status); err != nil {
		return nil, fmt.Errorf("list academic periods by status: %w", err)
	}
	return periods, nil
}

// FindCurrent returns the active period whose span includes day.
func (r *AcademicPeriodRepository) FindCurrent(ctx context.Context, day time.Time) (*models.AcademicPeriod, error) {
	var period models.AcademicPeriod
	query := "SELECT " + periodColumns + " FROM academic_periods WHERE is_active = TRUE AND start_date <= $1 AND end_date >= $1 ORDER BY start_date DESC LIMIT 1"
	if err := r.db.GetContext(ctx, &period, query, day); err != nil {
		return nil, err
	}
	return &period, nil
}

// ListUpcoming returns active periods starting after day.
func (r *AcademicPeriodRepository) ListUpcoming(ctx context.Context, day time.Time, limit int) ([]models.AcademicPeriod, error) {
	var periods []models.AcademicPeriod
	query := "SELECT " + periodColumns + " FROM academic_periods WHERE is_active = TRUE AND start_date > $1 ORDER BY start_date ASC LIMIT $2"
	if err := r.db.SelectContext(ctx, &periods, query, day, limit); err != nil {
		return nil, fmt.Errorf("list upcoming academic periods: %w", err)
	}
	return periods, nil
}

// ExistsCode reports whether another active period already uses code.
func (r *AcademicPeriodRepository) ExistsCode(ctx context.Context, code, excludeID string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM academic_periods WHERE LOWER(code) = LOWER($1) AND is_active = TRUE`
	args := []interface{}{code}
	if excludeID != "" {
		query += " AND id <> $2"
		args = append(args, excludeID)
	}
	query += ")"
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, args...); err != nil {
		return false, fmt.Errorf("check academic period code: %w", err)
	}
	return exists, nil
}

// CountActiveEnrollments counts live ACTIVE enrollments in a period.
func (r *AcademicPeriodRepository) CountActiveEnrollments(ctx context.Context, periodID string) (int, error) {
	var count int
	const query = `SELECT COUNT(*) FROM enrollments WHERE academic_period_id = $1 AND is_active = TRUE AND status = 'ACTIVE'`
	if err := r.db.GetContext(ctx, &count, query, periodID); err != nil {
		return 0, fmt.Errorf("count period enrollments: %w", err)
	}
	return count, nil
}

// Create stores a new period.
func (r *AcademicPeriodRepository) Create(ctx context.Context, period *models.AcademicPeriod) error {
	if period.ID == "" {
		period.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if period.CreatedAt.IsZero() {
		period.CreatedAt = now
	}
	period.UpdatedAt = now
	period.IsActive = true
	if period.Status == "" {
		period.Status = models.PeriodStatusPlanning
	}

	const query = `INSERT INTO academic_periods (id, name, code, description, start_date, end_date, status, is_active, created_at, updated_at) VALUES (:id, :name, :code, :description, :start_date, :end_date, :status, :is_active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, period); err != nil {
		return classify("create academic period", err)
	}
	return nil
}

// Update modifies a period.
func (r *AcademicPeriodRepository) Update(ctx context.Context, period *models.AcademicPeriod) error {
	period.UpdatedAt = time.Now().UTC()
	const query = `UPDATE academic_periods SET name = :name, code = :code, description = :description, start_date = :start_date, end_date = :end_date, status = :status, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, period); err != nil {
		return classify("update academic period", err)
	}
	return nil
}

// Deactivate soft deletes a period.
func (r *AcademicPeriodRepository) Deactivate(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE academic_periods SET is_active = FALSE, updated_at = $2 WHERE id = $1`, id, time.Now().UTC()); err != nil {
		return fmt.Errorf("deactivate academic period: %w", err)
	}
	return nil
}

// Stats aggregates active periods by status.
func (r *AcademicPeriodRepository) Stats(ctx context.Context) (*models.AcademicPeriodStats, error) {
	stats := &models.AcademicPeriodStats{}
	if err := r.db.GetContext(ctx, &stats.Total, `SELECT COUNT(*) FROM academic_periods WHERE is_active = TRUE`); err != nil {
		return nil, fmt.Errorf("count academic periods: %w", err)
	}
	if err := r.db.SelectContext(ctx, &stats.ByStatus, `SELECT status, COUNT(*) AS count FROM academic_periods WHERE is_active = TRUE GROUP BY status ORDER BY status ASC`); err != nil {
		return nil, fmt.Errorf("count academic periods by status: %w", err)
	}
	const enrollments = `SELECT COUNT(*) FROM enrollments e JOIN academic_periods p ON p.id = e.academic_period_id WHERE e.is_active = TRUE AND p.is_active = TRUE`
	if err := r.db.GetContext(ctx, &stats.TotalEnrollments, enrollments); err != nil {
		return nil, fmt.Errorf("count period enrollments: %w", err)
	}
	return stats, nil
}

// ApplyStatusTransitions starts periods that have begun and completes periods that have ended.
func (r *AcademicPeriodRepository) ApplyStatusTransitions(ctx context.Context, today time.Time) ([]models.PeriodTransition, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin period sweep: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	now := time.Now().UTC()
	var started []models.PeriodTransition
	const start = `UPDATE academic_periods SET status = 'ACTIVE', updated_at = $2
WHERE is_active = TRUE AND status = 'PLANNING' AND start_date <= $1 AND end_date >= $1
RETURNING id, 'PLANNING' AS from_status, 'ACTIVE' AS to_status`
	if err = sqlx.SelectContext(ctx, tx, &started, start, today, now); err != nil {
		return nil, fmt.Errorf("activate started periods: %w", err)
	}

	var completed []models.PeriodTransition
	const complete = `UPDATE academic_periods SET status = 'COMPLETED', updated_at = $2
WHERE is_active = TRUE AND status = 'ACTIVE' AND end_date < $1
RETURNING id, 'ACTIVE' AS from_status, 'COMPLETED' AS to_status`
	if err = sqlx.SelectContext(ctx, tx, &completed, complete, today, now); err != nil {
		return nil, fmt.Errorf("complete ended periods: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit period sweep: %w", err)
	}
	return append(started, completed...), nil
}
