package service

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-scheduling-api/internal/models"
)

type timetableStub struct {
	slots []models.ScheduleDetail
}

func (s timetableStub) ListByTeacher(ctx context.Context, teacherID string) ([]models.ScheduleDetail, error) {
	return s.slots, nil
}

func (s timetableStub) ListByCourse(ctx context.Context, courseID string) ([]models.ScheduleDetail, error) {
	return s.slots, nil
}

func detail(day int, start, end, subject string) models.ScheduleDetail {
	st, _ := models.ParseTimeOfDay(start)
	en, _ := models.ParseTimeOfDay(end)
	return models.ScheduleDetail{
		Schedule:    models.Schedule{ID: subject, DayOfWeek: day, StartTime: st, EndTime: en, Room: "R1"},
		SubjectName: subject,
		CourseName:  "X-A",
		TeacherName: "Ana",
	}
}

func newTestExportService(audit *auditStore, slots ...models.ScheduleDetail) *ExportService {
	svc := NewExportService(timetableStub{slots: slots}, NewAuditService(audit, nil, AuditConfig{}, zap.NewNop()), zap.NewNop())
	svc.now = func() time.Time { return time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC) }
	return svc
}

func TestExportTimetableCSVIsOrdered(t *testing.T) {
	audit := &auditStore{}
	svc := newTestExportService(audit,
		detail(2, "08:00", "09:00", "Physics"),
		detail(1, "10:00", "11:00", "Biology"),
		detail(1, "08:00", "09:00", "Mathematics"),
	)

	out, err := svc.Timetable(context.Background(), TimetableExportRequest{Owner: "teacher", ID: "t1"})
	require.NoError(t, err)
	assert.Equal(t, "timetable_teacher_t1_20250310.csv", out.Filename)
	assert.Equal(t, 3, out.Rows)

	var buf bytes.Buffer
	require.NoError(t, out.WriteTo(&buf))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "Day,Start,End,Subject,Course,Room", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "Monday,08:00,09:00,Mathematics"))
	assert.True(t, strings.HasPrefix(lines[3], "Tuesday,08:00"))
	assert.Equal(t, []string{models.AuditActionExport}, audit.actions())
}

func TestExportTimetablePDF(t *testing.T) {
	svc := newTestExportService(&auditStore{}, detail(1, "08:00", "09:00", "Mathematics"))

	out, err := svc.Timetable(context.Background(), TimetableExportRequest{Owner: "course", ID: "course-a", Format: "pdf"})
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", out.ContentType)

	var buf bytes.Buffer
	require.NoError(t, out.WriteTo(&buf))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF")))
}

func TestExportTimetableValidation(t *testing.T) {
	svc := newTestExportService(&auditStore{})
	ctx := context.Background()

	_, err := svc.Timetable(ctx, TimetableExportRequest{Owner: "room", ID: "r1"})
	requireAppError(t, err, "VALIDATION_ERROR")

	_, err = svc.Timetable(ctx, TimetableExportRequest{Owner: "teacher"})
	requireAppError(t, err, "VALIDATION_ERROR")

	_, err = svc.Timetable(ctx, TimetableExportRequest{Owner: "teacher", ID: "t1", Format: "xlsx"})
	requireAppError(t, err, "VALIDATION_ERROR")
}
