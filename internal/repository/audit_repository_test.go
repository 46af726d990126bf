package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-scheduling-api/internal/models"
)

func TestCreateAuditLogAssignsIdentity(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAuditRepository(db)

	mock.ExpectExec("INSERT INTO audit_logs").WillReturnResult(sqlmock.NewResult(1, 1))

	entry := &models.AuditLog{Action: models.AuditActionConflict, Resource: "schedules"}
	require.NoError(t, repo.CreateAuditLog(context.Background(), entry))
	assert.NotEmpty(t, entry.ID)
	assert.False(t, entry.CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListAuditLogsFiltersByAction(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAuditRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "user_id", "action", "resource", "resource_id", "old_values", "new_values", "ip_address", "user_agent", "created_at"}).
		AddRow("a1", nil, models.AuditActionConflict, "schedules", nil, nil, []byte(`{"scope":"TEACHER_DAY"}`), "", "", now)
	mock.ExpectQuery(regexp.QuoteMeta("FROM audit_logs WHERE resource = $1 AND action = $2 ORDER BY created_at DESC LIMIT 50")).
		WithArgs("schedules", models.AuditActionConflict).
		WillReturnRows(rows)

	logs, err := repo.ListAuditLogs(context.Background(), "schedules", models.AuditActionConflict, 0)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Nil(t, logs[0].UserID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListAuditLogsClampsLimit(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAuditRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM audit_logs WHERE resource = $1 ORDER BY created_at DESC LIMIT 50")).
		WithArgs("enrollments").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := repo.ListAuditLogs(context.Background(), "enrollments", "", 5000)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
