package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-scheduling-api/internal/models"
	"github.com/noah-isme/sma-scheduling-api/internal/service"
	appErrors "github.com/noah-isme/sma-scheduling-api/pkg/errors"
)

type fakeScheduleService struct {
	lastFilter  models.ScheduleFilter
	lastCreate  service.CreateScheduleRequest
	createErr   error
	deactivated string
	byTeacher   []models.ScheduleDetail
}

func (f *fakeScheduleService) List(_ context.Context, filter models.ScheduleFilter) ([]models.ScheduleDetail, *models.Pagination, error) {
	f.lastFilter = filter
	return []models.ScheduleDetail{}, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize}, nil
}

func (f *fakeScheduleService) Get(_ context.Context, id string) (*models.Schedule, error) {
	if id != "s1" {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "schedule not found")
	}
	return &models.Schedule{ID: id}, nil
}

func (f *fakeScheduleService) ListByTeacher(context.Context, string) ([]models.ScheduleDetail, error) {
	return f.byTeacher, nil
}

func (f *fakeScheduleService) ListByCourse(context.Context, string) ([]models.ScheduleDetail, error) {
	return nil, nil
}

func (f *fakeScheduleService) Create(_ context.Context, req service.CreateScheduleRequest) (*models.Schedule, error) {
	f.lastCreate = req
	if f.createErr != nil {
		return nil, f.createErr
	}
	return &models.Schedule{ID: "s-new", TeacherID: req.TeacherID}, nil
}

func (f *fakeScheduleService) Update(_ context.Context, id string, _ service.UpdateScheduleRequest) (*models.Schedule, error) {
	return &models.Schedule{ID: id}, nil
}

func (f *fakeScheduleService) Deactivate(_ context.Context, id string) error {
	f.deactivated = id
	return nil
}

func (f *fakeScheduleService) Stats(context.Context) (*models.ScheduleStats, error) {
	return &models.ScheduleStats{TotalActive: 3}, nil
}

func TestScheduleHandlerListMapsQuery(t *testing.T) {
	svc := &fakeScheduleService{}
	h := NewScheduleHandler(svc, nil)

	c, rec := newTestContext(http.MethodGet, "/schedules?teacher_id=t1&day_of_week=2&include_inactive=true&limit=500", "")
	h.List(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "t1", svc.lastFilter.TeacherID)
	require.NotNil(t, svc.lastFilter.DayOfWeek)
	assert.Equal(t, 2, *svc.lastFilter.DayOfWeek)
	assert.True(t, svc.lastFilter.IncludeInactive)
	assert.Equal(t, 1, svc.lastFilter.Page)
	assert.Equal(t, maxPageSize, svc.lastFilter.PageSize)
}

func TestScheduleHandlerListRejectsBadWeekday(t *testing.T) {
	h := NewScheduleHandler(&fakeScheduleService{}, nil)

	c, rec := newTestContext(http.MethodGet, "/schedules?day_of_week=7", "")
	h.List(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestScheduleHandlerCreateConflictCarriesDetails(t *testing.T) {
	rejection := &models.IntervalConflictError{
		Scope:          models.ScopeTeacherDay,
		ResourceKey:    "teacher:t1:day:1",
		Message:        "teacher already has a class at this time",
		ConflictingIDs: []string{"s1"},
	}
	svc := &fakeScheduleService{
		createErr: appErrors.Derive(appErrors.ErrScheduleConflict, rejection, rejection.Message),
	}
	h := NewScheduleHandler(svc, nil)

	body := `{"course_id":"c1","subject_id":"m1","teacher_id":"t1","day_of_week":1,"start_time":"08:30","end_time":"09:30"}`
	c, rec := newTestContext(http.MethodPost, "/schedules", body)
	h.Create(c)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "08:30", svc.lastCreate.StartTime)
	var envelope responseEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, "SCHEDULE_CONFLICT", envelope.Error["code"])
	conflict, ok := envelope.Meta["conflict"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "teacher:t1:day:1", conflict["resource_key"])
}

func TestScheduleHandlerCreateRejectsMalformedJSON(t *testing.T) {
	h := NewScheduleHandler(&fakeScheduleService{}, nil)

	c, rec := newTestContext(http.MethodPost, "/schedules", `{"course_id":`)
	h.Create(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestScheduleHandlerGetAndDelete(t *testing.T) {
	svc := &fakeScheduleService{}
	h := NewScheduleHandler(svc, nil)

	c, rec := newTestContext(http.MethodGet, "/schedules/missing", "", gin.Param{Key: "id", Value: "missing"})
	h.Get(c)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	c, rec = newTestContext(http.MethodDelete, "/schedules/s1", "", gin.Param{Key: "id", Value: "s1"})
	h.Delete(c)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "s1", svc.deactivated)
}

func TestScheduleHandlerExportStreamsCSV(t *testing.T) {
	start, _ := models.ParseTimeOfDay("08:00")
	end, _ := models.ParseTimeOfDay("09:00")
	svc := &fakeScheduleService{byTeacher: []models.ScheduleDetail{{
		Schedule:    models.Schedule{ID: "s1", DayOfWeek: 1, StartTime: start, EndTime: end, Room: "R1"},
		SubjectName: "Mathematics",
		CourseName:  "X-A",
	}}}
	h := NewScheduleHandler(svc, service.NewExportService(svc, nil, nil))

	c, rec := newTestContext(http.MethodGet, "/schedules/export?owner=teacher&id=t1", "")
	h.Export(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Header().Get("Content-Type"), "text/csv"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "timetable_teacher_t1_")
	assert.True(t, strings.HasPrefix(rec.Body.String(), "Day,Start,End,Subject,Course,Room\n"))
	assert.Contains(t, rec.Body.String(), "Mathematics")
}

func TestScheduleHandlerExportValidatesOwner(t *testing.T) {
	svc := &fakeScheduleService{}
	h := NewScheduleHandler(svc, service.NewExportService(svc, nil, nil))

	c, rec := newTestContext(http.MethodGet, "/schedules/export?owner=room&id=r1", "")
	h.Export(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
