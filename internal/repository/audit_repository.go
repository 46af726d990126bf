package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-scheduling-api/internal/models"
)

const (
	auditColumns      = `id, user_id, action, resource, resource_id, old_values, new_values, ip_address, user_agent, created_at`
	defaultAuditLimit = 50
	maxAuditListLimit = 200
)

// AuditRepository appends to and reads back the audit trail.
type AuditRepository struct {
	db *sqlx.DB
}

func NewAuditRepository(db *sqlx.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// CreateAuditLog inserts entry, filling ID and CreatedAt when empty.
func (r *AuditRepository) CreateAuditLog(ctx context.Context, entry *models.AuditLog) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO audit_logs (` + auditColumns + `) VALUES (:id, :user_id, :action, :resource, :resource_id, :old_values, :new_values, :ip_address, :user_agent, :created_at)`
	_, err := r.db.NamedExecContext(ctx, query, entry)
	return classify("create audit log", err)
}

// ListAuditLogs returns the newest entries for resource, optionally
// narrowed to one action.
func (r *AuditRepository) ListAuditLogs(ctx context.Context, resource, action string, limit int) ([]models.AuditLog, error) {
	if limit <= 0 || limit > maxAuditListLimit {
		limit = defaultAuditLimit
	}
	query := `SELECT ` + auditColumns + ` FROM audit_logs WHERE resource = $1`
	args := []interface{}{resource}
	if action != "" {
		args = append(args, action)
		query += fmt.Sprintf(" AND action = $%d", len(args))
	}
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT %d", limit)

	var logs []models.AuditLog
	if err := r.db.SelectContext(ctx, &logs, query, args...); err != nil {
		return nil, fmt.Errorf("list audit logs: %w", err)
	}
	return logs, nil
}
