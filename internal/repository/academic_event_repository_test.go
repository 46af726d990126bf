package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-scheduling-api/internal/models"
)

var eventRowColumns = []string{"id", "academic_period_id", "title", "description", "type", "start_date", "end_date", "is_all_day", "location", "notes", "is_active", "created_at", "updated_at"}

func TestEventListActiveByPeriod(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAcademicEventRepository(db)

	start := time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta("FROM academic_events WHERE academic_period_id = $1 AND is_active = TRUE ORDER BY start_date ASC")).
		WithArgs("p1").
		WillReturnRows(sqlmock.NewRows(eventRowColumns).AddRow("e1", "p1", "Midterms", "", "EXAM", start, start.Add(48*time.Hour), false, "Hall", "", true, start, start))

	events, err := repo.ListActiveByPeriod(context.Background(), "p1")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, models.EventTypeExam, events[0].Type)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEventListIntersectingScopesPeriod(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAcademicEventRepository(db)

	from := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, 0)
	cols := append(append([]string{}, eventRowColumns...), "period_name", "period_code")
	mock.ExpectQuery(regexp.QuoteMeta("WHERE ev.is_active = TRUE AND ev.start_date <= $2 AND ev.end_date >= $1 AND ev.academic_period_id = $3 ORDER BY ev.start_date ASC")).
		WithArgs(from, to, "p1").
		WillReturnRows(sqlmock.NewRows(cols))

	events, err := repo.ListIntersecting(context.Background(), from, to, "p1")
	require.NoError(t, err)
	assert.Empty(t, events)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEventUpdateMapsOverlap(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAcademicEventRepository(db)

	mock.ExpectExec("UPDATE academic_events SET").
		WillReturnError(&pq.Error{Code: "23P01"})

	err := repo.Update(context.Background(), &models.AcademicEvent{ID: "e1", AcademicPeriodID: "p1"})
	assert.ErrorIs(t, err, ErrOverlap)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEventStats(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAcademicEventRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM academic_events WHERE is_active = TRUE")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(7))
	mock.ExpectQuery(regexp.QuoteMeta("start_date <= $2 AND end_date >= $1")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(regexp.QuoteMeta("start_date > $1")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(4))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT type, COUNT(*) AS count FROM academic_events")).
		WillReturnRows(sqlmock.NewRows([]string{"type", "count"}).AddRow("EXAM", 4).AddRow("HOLIDAY", 3))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT ev.academic_period_id")).
		WillReturnRows(sqlmock.NewRows([]string{"academic_period_id", "period_name", "count"}).AddRow("p1", "Semester 1", 7))

	stats, err := repo.Stats(context.Background(), time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, 7, stats.Total)
	assert.Equal(t, 1, stats.Today)
	assert.Equal(t, 4, stats.Upcoming)
	assert.Len(t, stats.ByType, 2)
	assert.Equal(t, "p1", stats.TopPeriods[0].AcademicPeriodID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
