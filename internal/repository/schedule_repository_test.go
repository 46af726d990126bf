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

var scheduleRowColumns = []string{"id", "course_id", "subject_id", "teacher_id", "day_of_week", "start_time", "end_time", "room", "notes", "is_active", "created_at", "updated_at"}

func TestScheduleListActiveByTeacherDay(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewScheduleRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows(scheduleRowColumns).
		AddRow("s1", "c1", "sub1", "t1", 1, "09:00:00", "10:00:00", "R1", "", true, now, now)
	mock.ExpectQuery(regexp.QuoteMeta("FROM schedules WHERE teacher_id = $1 AND day_of_week = $2 AND is_active = TRUE ORDER BY start_time ASC")).
		WithArgs("t1", 1).
		WillReturnRows(rows)

	schedules, err := repo.ListActiveByTeacherDay(context.Background(), "t1", 1)
	require.NoError(t, err)
	require.Len(t, schedules, 1)
	assert.Equal(t, "09:00", schedules[0].StartTime.String())
	assert.Equal(t, 600, schedules[0].EndTime.Minutes())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScheduleCreateMapsExclusionViolation(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewScheduleRepository(db)

	mock.ExpectExec("INSERT INTO schedules").
		WillReturnError(&pq.Error{Code: "23P01", Constraint: "schedules_teacher_no_overlap"})

	err := repo.Create(context.Background(), &models.Schedule{CourseID: "c1", SubjectID: "sub1", TeacherID: "t1", DayOfWeek: 1, StartTime: 540, EndTime: 600})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrOverlap)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScheduleCreateAssignsIdentity(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewScheduleRepository(db)

	mock.ExpectExec("INSERT INTO schedules").WillReturnResult(sqlmock.NewResult(1, 1))

	sched := &models.Schedule{CourseID: "c1", SubjectID: "sub1", TeacherID: "t1", DayOfWeek: 2, StartTime: 540, EndTime: 600}
	require.NoError(t, repo.Create(context.Background(), sched))
	assert.NotEmpty(t, sched.ID)
	assert.True(t, sched.IsActive)
	assert.False(t, sched.CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScheduleListAppliesFilters(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewScheduleRepository(db)

	day := 3
	now := time.Now()
	cols := append(append([]string{}, scheduleRowColumns...), "course_name", "subject_name", "teacher_name")
	mock.ExpectQuery(regexp.QuoteMeta("WHERE s.is_active = TRUE AND s.teacher_id = $1 AND s.day_of_week = $2 ORDER BY s.day_of_week ASC, s.start_time ASC LIMIT 20 OFFSET 0")).
		WithArgs("t1", 3).
		WillReturnRows(sqlmock.NewRows(cols).AddRow("s1", "c1", "sub1", "t1", 3, "08:00:00", "09:00:00", "", "", true, now, now, "X-A", "Math", "Ana"))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM schedules s WHERE s.is_active = TRUE AND s.teacher_id = $1 AND s.day_of_week = $2")).
		WithArgs("t1", 3).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	items, total, err := repo.List(context.Background(), models.ScheduleFilter{TeacherID: "t1", DayOfWeek: &day})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, items, 1)
	assert.Equal(t, "Ana", items[0].TeacherName)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScheduleStats(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewScheduleRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM schedules WHERE is_active = TRUE")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT day_of_week, COUNT(*) AS count FROM schedules")).
		WillReturnRows(sqlmock.NewRows([]string{"day_of_week", "count"}).AddRow(1, 2).AddRow(5, 1))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT s.teacher_id, COALESCE(t.full_name, '') AS teacher_name")).
		WillReturnRows(sqlmock.NewRows([]string{"teacher_id", "teacher_name", "count"}).AddRow("t1", "Ana", 3))

	stats, err := repo.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, stats.TotalActive)
	require.Len(t, stats.ByDay, 2)
	assert.Equal(t, "Monday", stats.ByDay[0].DayName)
	assert.Equal(t, "Friday", stats.ByDay[1].DayName)
	assert.Equal(t, "t1", stats.TopTeachers[0].TeacherID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScheduleDeactivate(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewScheduleRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE schedules SET is_active = FALSE")).
		WithArgs("s1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Deactivate(context.Background(), "s1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}
