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

type academicPeriodService interface {
	List(ctx context.Context, filter models.AcademicPeriodFilter) ([]models.AcademicPeriodSummary, *models.Pagination, error)
	Get(ctx context.Context, id string) (*models.AcademicPeriod, error)
	Current(ctx context.Context) (*models.AcademicPeriod, error)
	Upcoming(ctx context.Context) ([]models.AcademicPeriod, error)
	Active(ctx context.Context) ([]models.AcademicPeriod, error)
	Events(ctx context.Context, id string) ([]models.AcademicEvent, error)
	Create(ctx context.Context, req service.CreateAcademicPeriodRequest) (*models.AcademicPeriod, error)
	Update(ctx context.Context, id string, req service.UpdateAcademicPeriodRequest) (*models.AcademicPeriod, error)
	Deactivate(ctx context.Context, id string) error
	Stats(ctx context.Context) (*models.AcademicPeriodStats, error)
}

// AcademicPeriodHandler serves semester and term endpoints.
type AcademicPeriodHandler struct {
	service academicPeriodService
}

// NewAcademicPeriodHandler constructs handler.
func NewAcademicPeriodHandler(svc academicPeriodService) *AcademicPeriodHandler {
	return &AcademicPeriodHandler{service: svc}
}

// List godoc
// @Summary List academic periods
// @Tags AcademicPeriods
// @Produce json
// @Param status query string false "PLANNING, ACTIVE, COMPLETED or CANCELLED"
// @Param start_from query string false "Only periods starting on or after this date"
// @Param end_until query string false "Only periods ending on or before this date"
// @Param include_inactive query bool false "Include deactivated periods"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /academic-periods [get]
func (h *AcademicPeriodHandler) List(c *gin.Context) {
	filter := models.AcademicPeriodFilter{
		Status:          models.PeriodStatus(strings.ToUpper(c.Query("status"))),
		IncludeInactive: boolQuery(c, "include_inactive"),
		SortBy:          c.Query("sort"),
		SortOrder:       c.Query("order"),
	}
	var err error
	if filter.StartFrom, err = timeQuery(c, "start_from"); err != nil {
		response.Error(c, err)
		return
	}
	if filter.EndUntil, err = timeQuery(c, "end_until"); err != nil {
		response.Error(c, err)
		return
	}
	filter.Page, filter.PageSize = pageParams(c)

	periods, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, periods, pagination)
}

// Get godoc
// @Summary Get academic period
// @Tags AcademicPeriods
// @Produce json
// @Param id path string true "Academic period ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /academic-periods/{id} [get]
func (h *AcademicPeriodHandler) Get(c *gin.Context) {
	period, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, period, nil)
}

// Current godoc
// @Summary Academic period in progress today
// @Tags AcademicPeriods
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /academic-periods/current [get]
func (h *AcademicPeriodHandler) Current(c *gin.Context) {
	period, err := h.service.Current(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, period, nil)
}

// Upcoming godoc
// @Summary Next academic periods
// @Tags AcademicPeriods
// @Produce json
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /academic-periods/upcoming [get]
func (h *AcademicPeriodHandler) Upcoming(c *gin.Context) {
	periods, err := h.service.Upcoming(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, periods, nil)
}

// Active godoc
// @Summary Active academic periods
// @Tags AcademicPeriods
// @Produce json
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /academic-periods/active [get]
func (h *AcademicPeriodHandler) Active(c *gin.Context) {
	periods, err := h.service.Active(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, periods, nil)
}

// Events godoc
// @Summary Events of an academic period
// @Tags AcademicPeriods
// @Produce json
// @Param id path string true "Academic period ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /academic-periods/{id}/events [get]
func (h *AcademicPeriodHandler) Events(c *gin.Context) {
	events, err := h.service.Events(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, events, nil)
}

// Create godoc
// @Summary Create academic period
// @Description Rejects spans overlapping another active period.
// @Tags AcademicPeriods
// @Accept json
// @Produce json
// @Param payload body service.CreateAcademicPeriodRequest true "Academic period payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope "SCHEDULE_CONFLICT or INVALID_INTERVAL"
// @Failure 409 {object} response.Envelope "Duplicate code"
// @Security BearerAuth
// @Router /academic-periods [post]
func (h *AcademicPeriodHandler) Create(c *gin.Context) {
	var req service.CreateAcademicPeriodRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err))
		return
	}
	period, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, period)
}

// Update godoc
// @Summary Update academic period
// @Tags AcademicPeriods
// @Accept json
// @Produce json
// @Param id path string true "Academic period ID"
// @Param payload body service.UpdateAcademicPeriodRequest true "Fields to change"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope "SCHEDULE_CONFLICT, OUTSIDE_PERIOD or INVALID_INTERVAL"
// @Security BearerAuth
// @Router /academic-periods/{id} [put]
func (h *AcademicPeriodHandler) Update(c *gin.Context) {
	var req service.UpdateAcademicPeriodRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err))
		return
	}
	period, err := h.service.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, period, nil)
}

// Delete godoc
// @Summary Deactivate academic period
// @Tags AcademicPeriods
// @Param id path string true "Academic period ID"
// @Success 204 {string} string "No Content"
// @Failure 409 {object} response.Envelope "Period has active enrollments"
// @Security BearerAuth
// @Router /academic-periods/{id} [delete]
func (h *AcademicPeriodHandler) Delete(c *gin.Context) {
	if err := h.service.Deactivate(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Stats godoc
// @Summary Academic period statistics
// @Tags AcademicPeriods
// @Produce json
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /academic-periods/stats [get]
func (h *AcademicPeriodHandler) Stats(c *gin.Context) {
	stats, err := h.service.Stats(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stats, nil)
}
