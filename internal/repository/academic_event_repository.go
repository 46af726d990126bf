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

const eventColumns = "id, academic_period_id, title, description, type, start_date, end_date, is_all_day, location, notes, is_active, created_at, updated_at"

const eventDetailSelect = `SELECT ev.id, ev.academic_period_id, ev.title, ev.description, ev.type, ev.start_date, ev.end_date, ev.is_all_day, ev.location, ev.notes, ev.is_active, ev.created_at, ev.updated_at,
COALESCE(p.name, '') AS period_name, COALESCE(p.code, '') AS period_code
FROM academic_events ev
LEFT JOIN academic_periods p ON p.id = ev.academic_period_id`

// AcademicEventRepository persists academic calendar events.
type AcademicEventRepository struct {
	db *sqlx.DB
}

// NewAcademicEventRepository constructs the repository.
func NewAcademicEventRepository(db *sqlx.DB) *AcademicEventRepository {
	return &AcademicEventRepository{db: db}
}

// List returns events using optional filters.
func (r *AcademicEventRepository) List(ctx context.Context, filter models.AcademicEventFilter) ([]models.AcademicEventDetail, int, error) {
	var conditions []string
	var args []interface{}

	if !filter.IncludeInactive {
		conditions = append(conditions, "ev.is_active = TRUE")
	}
	if filter.AcademicPeriodID != "" {
		conditions = append(conditions, fmt.Sprintf("ev.academic_period_id = $%d", len(args)+1))
		args = append(args, filter.AcademicPeriodID)
	}
	if filter.Type != "" {
		conditions = append(conditions, fmt.Sprintf("ev.type = $%d", len(args)+1))
		args = append(args, filter.Type)
	}
	if filter.StartFrom != nil {
		conditions = append(conditions, fmt.Sprintf("ev.start_date >= $%d", len(args)+1))
		args = append(args, *filter.StartFrom)
	}
	if filter.EndUntil != nil {
		conditions = append(conditions, fmt.Sprintf("ev.end_date <= $%d", len(args)+1))
		args = append(args, *filter.EndUntil)
	}
	if filter.IsAllDay != nil {
		conditions = append(conditions, fmt.Sprintf("ev.is_all_day = $%d", len(args)+1))
		args = append(args, *filter.IsAllDay)
	}

	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	allowedSorts := map[string]string{
		"start_date": "ev.start_date",
		"end_date":   "ev.end_date",
		"title":      "ev.title",
		"type":       "ev.type",
	}
	orderBy, ok := allowedSorts[filter.SortBy]
	if !ok {
		orderBy = "ev.start_date"
	}
	order := sortOrder(filter.SortOrder, "ASC")
	size, offset := pageWindow(filter.Page, filter.PageSize)

	query := fmt.Sprintf("%s%s ORDER BY %s %s LIMIT %d OFFSET %d", eventDetailSelect, where, orderBy, order, size, offset)
	var events []models.AcademicEventDetail
	if err := r.db.SelectContext(ctx, &events, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list academic events: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM academic_events ev"+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count academic events: %w", err)
	}
	return events, total, nil
}

// FindByID loads an event.
func (r *AcademicEventRepository) FindByID(ctx context.Context, id string) (*models.AcademicEvent, error) {
	var event models.AcademicEvent
	if err := r.db.GetContext(ctx, &event, "SELECT "+eventColumns+" FROM academic_events WHERE id = $1", id); err != nil {
		return nil, err
	}
	return &event, nil
}

// ListActiveByPeriod returns the active events of a period ordered by start.
func (r *AcademicEventRepository) ListActiveByPeriod(ctx context.Context, periodID string) ([]models.AcademicEvent, error) {
	var events []models.AcademicEvent
	query := "SELECT " + eventColumns + " FROM academic_events WHERE academic_period_id = $1 AND is_active = TRUE ORDER BY start_date ASC"
	if err := r.db.SelectContext(ctx, &events, query, periodID); err != nil {
		return nil, fmt.Errorf("list period events: %w", err)
	}
	return events, nil
}

// ListIntersecting returns active events sharing at least one instant with [from, to].
func (r *AcademicEventRepository) ListIntersecting(ctx context.Context, from, to time.Time, periodID string) ([]models.AcademicEventDetail, error) {
	query := eventDetailSelect + " WHERE ev.is_active = TRUE AND ev.start_date <= $2 AND ev.end_date >= $1"
	args := []interface{}{from, to}
	if periodID != "" {
		query += " AND ev.academic_period_id = $3"
		args = append(args, periodID)
	}
	query += " ORDER BY ev.start_date ASC"

	var events []models.AcademicEventDetail
	if err := r.db.SelectContext(ctx, &events, query, args...); err != nil {
		return nil, fmt.Errorf("list calendar events: %w", err)
	}
	return events, nil
}

// ListStartingBetween returns active events whose start falls in [from, to].
func (r *AcademicEventRepository) ListStartingBetween(ctx context.Context, from, to time.Time, periodID string) ([]models.AcademicEventDetail, error) {
	query := eventDetailSelect + " WHERE ev.is_active = TRUE AND ev.start_date >= $1 AND ev.start_date <= $2"
	args := []interface{}{from, to}
	if periodID != "" {
		query += " AND ev.academic_period_id = $3"
		args = append(args, periodID)
	}
	query += " ORDER BY ev.start_date ASC"

	var events []models.AcademicEventDetail
	if err := r.db.SelectContext(ctx, &events, query, args...); err != nil {
		return nil, fmt.Errorf("list upcoming events: %w", err)
	}
	return events, nil
}

// ListByType returns active events of a type.
func (r *AcademicEventRepository) ListByType(ctx context.Context, eventType models.EventType) ([]models.AcademicEventDetail, error) {
	var events []models.AcademicEventDetail
	query := eventDetailSelect + " WHERE ev.is_active = TRUE AND ev.type = $1 ORDER BY ev.start_date ASC"
	if err := r.db.SelectContext(ctx, &events, query, eventType); err != nil {
		return nil, fmt.Errorf("list events by type: %w", err)
	}
	return events, nil
}

// Create stores an event.
func (r *AcademicEventRepository) Create(ctx context.Context, event *models.AcademicEvent) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if event.CreatedAt.IsZero() {
		event.CreatedAt = now
	}
	event.UpdatedAt = now
	event.IsActive = true

	const query = `INSERT INTO academic_events (id, academic_period_id, title, description, type, start_date, end_date, is_all_day, location, notes, is_active, created_at, updated_at) VALUES (:id, :academic_period_id, :title, :description, :type, :start_date, :end_date, :is_all_day, :location, :notes, :is_active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, event); err != nil {
		return classify("create academic event", err)
	}
	return nil
}

// Update modifies an event.
func (r *AcademicEventRepository) Update(ctx context.Context, event *models.AcademicEvent) error {
	event.UpdatedAt = time.Now().UTC()
	const query = `UPDATE academic_events SET academic_period_id = :academic_period_id, title = :title, description = :description, type = :type, start_date = :start_date, end_date = :end_date, is_all_day = :is_all_day, location = :location, notes = :notes, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, event); err != nil {
		return classify("update academic event", err)
	}
	return nil
}

// Deactivate soft deletes an event.
func (r *AcademicEventRepository) Deactivate(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE academic_events SET is_active = FALSE, updated_at = $2 WHERE id = $1`, id, time.Now().UTC()); err != nil {
		return fmt.Errorf("deactivate academic event: %w", err)
	}
	return nil
}

// Stats aggregates active events relative to now.
func (r *AcademicEventRepository) Stats(ctx context.Context, now time.Time) (*models.AcademicEventStats, error) {
	stats := &models.AcademicEventStats{}
	if err := r.db.GetContext(ctx, &stats.Total, `SELECT COUNT(*) FROM academic_events WHERE is_active = TRUE`); err != nil {
		return nil, fmt.Errorf("count academic events: %w", err)
	}

	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	dayEnd := dayStart.Add(24*time.Hour - time.Nanosecond)
	if err := r.db.GetContext(ctx, &stats.Today, `SELECT COUNT(*) FROM academic_events WHERE is_active = TRUE AND start_date <= $2 AND end_date >= $1`, dayStart, dayEnd); err != nil {
		return nil, fmt.Errorf("count today events: %w", err)
	}
	if err := r.db.GetContext(ctx, &stats.Upcoming, `SELECT COUNT(*) FROM academic_events WHERE is_active = TRUE AND start_date > $1`, dayEnd); err != nil {
		return nil, fmt.Errorf("count upcoming events: %w", err)
	}
	if err := r.db.SelectContext(ctx, &stats.ByType, `SELECT type, COUNT(*) AS count FROM academic_events WHERE is_active = TRUE GROUP BY type ORDER BY count DESC`); err != nil {
		return nil, fmt.Errorf("count events by type: %w", err)
	}

	const topPeriods = `SELECT ev.academic_period_id, COALESCE(p.name, '') AS period_name, COUNT(*) AS count
FROM academic_events ev
LEFT JOIN academic_periods p ON p.id = ev.academic_period_id
WHERE ev.is_active = TRUE
GROUP BY ev.academic_period_id, p.name
ORDER BY count DESC
LIMIT 5`
	if err := r.db.SelectContext(ctx, &stats.TopPeriods, topPeriods); err != nil {
		return nil, fmt.Errorf("count events by period: %w", err)
	}
	return stats, nil
}
