package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-scheduling-api/internal/models"
	"github.com/noah-isme/sma-scheduling-api/internal/service"
	"github.com/noah-isme/sma-scheduling-api/pkg/response"
)

type enrollmentService interface {
	List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, *models.Pagination, error)
	Get(ctx context.Context, id string) (*models.Enrollment, error)
	Create(ctx context.Context, req service.CreateEnrollmentRequest) (*models.Enrollment, error)
	Update(ctx context.Context, id string, req service.UpdateEnrollmentRequest) (*models.Enrollment, error)
	Cancel(ctx context.Context, id string) error
	Stats(ctx context.Context) (*models.EnrollmentStats, error)
}

// EnrollmentHandler exposes enrollment endpoints.
type EnrollmentHandler struct {
	enrollments enrollmentService
}

// NewEnrollmentHandler constructs EnrollmentHandler.
func NewEnrollmentHandler(enrollments enrollmentService) *EnrollmentHandler {
	return &EnrollmentHandler{enrollments: enrollments}
}

// List godoc
// @Summary List enrollments
// @Tags Enrollments
// @Produce json
// @Param student_id query string false "Filter by student"
// @Param course_id query string false "Filter by course"
// @Param period_id query string false "Filter by academic period"
// @Param status query string false "Filter by status"
// @Param include_inactive query bool false "Include cancelled enrollments"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /enrollments [get]
func (h *EnrollmentHandler) List(c *gin.Context) {
	filter := models.EnrollmentFilter{
		StudentID:        c.Query("student_id"),
		CourseID:         c.Query("course_id"),
		AcademicPeriodID: c.Query("period_id"),
		Status:           models.EnrollmentStatus(strings.ToUpper(c.Query("status"))),
		IncludeInactive:  boolQuery(c, "include_inactive"),
		SortBy:           c.Query("sort"),
		SortOrder:        c.Query("order"),
	}
	filter.Page, filter.PageSize = pageParams(c)

	enrollments, pagination, err := h.enrollments.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, enrollments, pagination)
}

// Get godoc
// @Summary Get enrollment
// @Tags Enrollments
// @Produce json
// @Param id path string true "Enrollment ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /enrollments/{id} [get]
func (h *EnrollmentHandler) Get(c *gin.Context) {
	enrollment, err := h.enrollments.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, enrollment, nil)
}

// Create godoc
// @Summary Enroll student
// @Description A student holds at most one live enrollment per course and period.
// @Tags Enrollments
// @Accept json
// @Produce json
// @Param payload body service.CreateEnrollmentRequest true "Enrollment payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope "OUTSIDE_PERIOD, INVALID_INTERVAL or INVALID_REFERENCE"
// @Failure 409 {object} response.Envelope "Duplicate enrollment or course full"
// @Security BearerAuth
// @Router /enrollments [post]
func (h *EnrollmentHandler) Create(c *gin.Context) {
	var req service.CreateEnrollmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err))
		return
	}
	enrollment, err := h.enrollments.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, enrollment)
}

// Update godoc
// @Summary Update enrollment
// @Tags Enrollments
// @Accept json
// @Produce json
// @Param id path string true "Enrollment ID"
// @Param payload body service.UpdateEnrollmentRequest true "Fields to change"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /enrollments/{id} [put]
func (h *EnrollmentHandler) Update(c *gin.Context) {
	var req service.UpdateEnrollmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err))
		return
	}
	enrollment, err := h.enrollments.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, enrollment, nil)
}

// Delete godoc
// @Summary Cancel enrollment
// @Tags Enrollments
// @Param id path string true "Enrollment ID"
// @Success 204 {string} string "No Content"
// @Failure 409 {object} response.Envelope "Already cancelled"
// @Security BearerAuth
// @Router /enrollments/{id} [delete]
func (h *EnrollmentHandler) Delete(c *gin.Context) {
	if err := h.enrollments.Cancel(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Stats godoc
// @Summary Enrollment statistics
// @Tags Enrollments
// @Produce json
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /enrollments/stats [get]
func (h *EnrollmentHandler) Stats(c *gin.Context) {
	stats, err := h.enrollments.Stats(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stats, nil)
}
