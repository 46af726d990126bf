package handler

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-scheduling-api/internal/models"
	"github.com/noah-isme/sma-scheduling-api/internal/service"
	appErrors "github.com/noah-isme/sma-scheduling-api/pkg/errors"
	"github.com/noah-isme/sma-scheduling-api/pkg/response"
)

type scheduleService interface {
	List(ctx context.Context, filter models.ScheduleFilter) ([]models.ScheduleDetail, *models.Pagination, error)
	Get(ctx context.Context, id string) (*models.Schedule, error)
	ListByTeacher(ctx context.Context, teacherID string) ([]models.ScheduleDetail, error)
	ListByCourse(ctx context.Context, courseID string) ([]models.ScheduleDetail, error)
	Create(ctx context.Context, req service.CreateScheduleRequest) (*models.Schedule, error)
	Update(ctx context.Context, id string, req service.UpdateScheduleRequest) (*models.Schedule, error)
	Deactivate(ctx context.Context, id string) error
	Stats(ctx context.Context) (*models.ScheduleStats, error)
}

type timetableExporter interface {
	Timetable(ctx context.Context, req service.TimetableExportRequest) (*service.TimetableExport, error)
}

// ScheduleHandler manages weekly schedule endpoints.
type ScheduleHandler struct {
	service  scheduleService
	exporter timetableExporter
}

// NewScheduleHandler constructs handler.
func NewScheduleHandler(svc scheduleService, exporter timetableExporter) *ScheduleHandler {
	return &ScheduleHandler{service: svc, exporter: exporter}
}

// List godoc
// @Summary List schedules
// @Tags Schedules
// @Produce json
// @Param course_id query string false "Filter by course"
// @Param subject_id query string false "Filter by subject"
// @Param teacher_id query string false "Filter by teacher"
// @Param day_of_week query int false "0 (Sunday) to 6 (Saturday)"
// @Param include_inactive query bool false "Include deactivated slots"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Param sort query string false "Sort field"
// @Param order query string false "asc or desc"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /schedules [get]
func (h *ScheduleHandler) List(c *gin.Context) {
	filter := models.ScheduleFilter{
		CourseID:        c.Query("course_id"),
		SubjectID:       c.Query("subject_id"),
		TeacherID:       c.Query("teacher_id"),
		IncludeInactive: boolQuery(c, "include_inactive"),
		SortBy:          c.Query("sort"),
		SortOrder:       c.Query("order"),
	}
	if raw := c.Query("day_of_week"); raw != "" {
		day, err := strconv.Atoi(raw)
		if err != nil || day < 0 || day > 6 {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "day_of_week must be between 0 and 6"))
			return
		}
		filter.DayOfWeek = &day
	}
	filter.Page, filter.PageSize = pageParams(c)

	schedules, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, schedules, pagination)
}

// Get godoc
// @Summary Get schedule
// @Tags Schedules
// @Produce json
// @Param id path string true "Schedule ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /schedules/{id} [get]
func (h *ScheduleHandler) Get(c *gin.Context) {
	schedule, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, schedule, nil)
}

// ListByTeacher godoc
// @Summary Weekly timetable of a teacher
// @Tags Schedules
// @Produce json
// @Param id path string true "Teacher ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /schedules/teacher/{id} [get]
func (h *ScheduleHandler) ListByTeacher(c *gin.Context) {
	schedules, err := h.service.ListByTeacher(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, schedules, nil)
}

// ListByCourse godoc
// @Summary Weekly timetable of a course
// @Tags Schedules
// @Produce json
// @Param id path string true "Course ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /schedules/course/{id} [get]
func (h *ScheduleHandler) ListByCourse(c *gin.Context) {
	schedules, err := h.service.ListByCourse(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, schedules, nil)
}

// Create godoc
// @Summary Create schedule
// @Description Rejects slots overlapping the teacher's or course's existing slots on the same weekday.
// @Tags Schedules
// @Accept json
// @Produce json
// @Param payload body service.CreateScheduleRequest true "Schedule payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope "SCHEDULE_CONFLICT, INVALID_INTERVAL or INVALID_REFERENCE"
// @Security BearerAuth
// @Router /schedules [post]
func (h *ScheduleHandler) Create(c *gin.Context) {
	var req service.CreateScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err))
		return
	}
	schedule, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, schedule)
}

// Update godoc
// @Summary Update schedule
// @Tags Schedules
// @Accept json
// @Produce json
// @Param id path string true "Schedule ID"
// @Param payload body service.UpdateScheduleRequest true "Fields to change"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Security BearerAuth
// @Router /schedules/{id} [put]
func (h *ScheduleHandler) Update(c *gin.Context) {
	var req service.UpdateScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err))
		return
	}
	schedule, err := h.service.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, schedule, nil)
}

// Delete godoc
// @Summary Deactivate schedule
// @Tags Schedules
// @Param id path string true "Schedule ID"
// @Success 204 {string} string "No Content"
// @Security BearerAuth
// @Router /schedules/{id} [delete]
func (h *ScheduleHandler) Delete(c *gin.Context) {
	if err := h.service.Deactivate(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Stats godoc
// @Summary Timetable statistics
// @Tags Schedules
// @Produce json
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /schedules/stats [get]
func (h *ScheduleHandler) Stats(c *gin.Context) {
	stats, err := h.service.Stats(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stats, nil)
}

// Export godoc
// @Summary Export a weekly timetable
// @Tags Schedules
// @Produce text/csv
// @Produce application/pdf
// @Param owner query string true "teacher or course"
// @Param id query string true "Teacher or course ID"
// @Param format query string false "csv (default) or pdf"
// @Success 200 {file} file
// @Security BearerAuth
// @Router /schedules/export [get]
func (h *ScheduleHandler) Export(c *gin.Context) {
	var req service.TimetableExportRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.Error(c, bindError(err))
		return
	}
	doc, err := h.exporter.Timetable(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	var buf bytes.Buffer
	if err := doc.WriteTo(&buf); err != nil {
		response.Error(c, appErrors.Derive(appErrors.ErrInternal, err, "failed to render timetable"))
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", doc.Filename))
	c.Data(http.StatusOK, doc.ContentType, buf.Bytes())
}
