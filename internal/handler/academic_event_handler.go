package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-scheduling-api/internal/models"
	"github.com/noah-isme/sma-scheduling-api/internal/service"
	appErrors "github.com/noah-isme/sma-scheduling-api/pkg/errors"
	"github.com/noah-isme/sma-scheduling-api/pkg/response"
)

type academicEventService interface {
	List(ctx context.Context, filter models.AcademicEventFilter) ([]models.AcademicEventDetail, *models.Pagination, error)
	Get(ctx context.Context, id string) (*models.AcademicEvent, error)
	Calendar(ctx context.Context, query service.CalendarQuery) ([]models.AcademicEventDetail, error)
	Upcoming(ctx context.Context, days int, periodID string) ([]models.AcademicEventDetail, error)
	Today(ctx context.Context, periodID string) ([]models.AcademicEventDetail, error)
	ByType(ctx context.Context, raw string) ([]models.AcademicEventDetail, error)
	Create(ctx context.Context, req service.CreateAcademicEventRequest) (*models.AcademicEvent, error)
	Update(ctx context.Context, id string, req service.UpdateAcademicEventRequest) (*models.AcademicEvent, error)
	Deactivate(ctx context.Context, id string) error
	Stats(ctx context.Context) (*models.AcademicEventStats, error)
}

// AcademicEventHandler serves the school calendar endpoints.
type AcademicEventHandler struct {
	service academicEventService
}

// NewAcademicEventHandler constructs handler.
func NewAcademicEventHandler(svc academicEventService) *AcademicEventHandler {
	return &AcademicEventHandler{service: svc}
}

// List godoc
// @Summary List academic events
// @Tags AcademicEvents
// @Produce json
// @Param period_id query string false "Filter by academic period"
// @Param type query string false "Event type"
// @Param start_from query string false "Events starting at or after"
// @Param end_until query string false "Events ending at or before"
// @Param all_day query bool false "Only all-day (true) or timed (false) events"
// @Param include_inactive query bool false "Include deactivated events"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /academic-events [get]
func (h *AcademicEventHandler) List(c *gin.Context) {
	filter := models.AcademicEventFilter{
		AcademicPeriodID: c.Query("period_id"),
		Type:             models.EventType(strings.ToUpper(c.Query("type"))),
		IncludeInactive:  boolQuery(c, "include_inactive"),
		SortBy:           c.Query("sort"),
		SortOrder:        c.Query("order"),
	}
	if raw := c.Query("all_day"); raw != "" {
		allDay, err := strconv.ParseBool(raw)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "all_day must be a boolean"))
			return
		}
		filter.IsAllDay = &allDay
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

	events, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, events, pagination)
}

// Get godoc
// @Summary Get academic event
// @Tags AcademicEvents
// @Produce json
// @Param id path string true "Academic event ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /academic-events/{id} [get]
func (h *AcademicEventHandler) Get(c *gin.Context) {
	event, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, event, nil)
}

// Calendar godoc
// @Summary Events intersecting a window
// @Tags AcademicEvents
// @Produce json
// @Param from query string true "Window start"
// @Param to query string true "Window end"
// @Param period_id query string false "Restrict to one academic period"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Security BearerAuth
// @Router /academic-events/calendar [get]
func (h *AcademicEventHandler) Calendar(c *gin.Context) {
	from, err := timeQuery(c, "from")
	if err != nil {
		response.Error(c, err)
		return
	}
	to, err := timeQuery(c, "to")
	if err != nil {
		response.Error(c, err)
		return
	}
	if from == nil || to == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "from and to are required"))
		return
	}
	events, err := h.service.Calendar(c.Request.Context(), service.CalendarQuery{From: *from, To: *to, PeriodID: c.Query("period_id")})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, events, nil)
}

// Upcoming godoc
// @Summary Events starting soon
// @Tags AcademicEvents
// @Produce json
// @Param days query int false "Look-ahead in days (default 30)"
// @Param period_id query string false "Restrict to one academic period"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /academic-events/upcoming [get]
func (h *AcademicEventHandler) Upcoming(c *gin.Context) {
	days := 0
	if raw := c.Query("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "days must be a number"))
			return
		}
		days = parsed
	}
	events, err := h.service.Upcoming(c.Request.Context(), days, c.Query("period_id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, events, nil)
}

// Today godoc
// @Summary Events in progress today
// @Tags AcademicEvents
// @Produce json
// @Param period_id query string false "Restrict to one academic period"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /academic-events/today [get]
func (h *AcademicEventHandler) Today(c *gin.Context) {
	events, err := h.service.Today(c.Request.Context(), c.Query("period_id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, events, nil)
}

// ByType godoc
// @Summary Events of one type
// @Tags AcademicEvents
// @Produce json
// @Param type path string true "HOLIDAY, EXAM, MEETING, ACTIVITY, DEADLINE or OTHER"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /academic-events/type/{type} [get]
func (h *AcademicEventHandler) ByType(c *gin.Context) {
	events, err := h.service.ByType(c.Request.Context(), c.Param("type"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, events, nil)
}

// Create godoc
// @Summary Create academic event
// @Description The event must lie inside its period and must not overlap another event of that period.
// @Tags AcademicEvents
// @Accept json
// @Produce json
// @Param payload body service.CreateAcademicEventRequest true "Academic event payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope "SCHEDULE_CONFLICT, OUTSIDE_PERIOD or INVALID_INTERVAL"
// @Security BearerAuth
// @Router /academic-events [post]
func (h *AcademicEventHandler) Create(c *gin.Context) {
	var req service.CreateAcademicEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err))
		return
	}
	event, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, event)
}

// Update godoc
// @Summary Update academic event
// @Tags AcademicEvents
// @Accept json
// @Produce json
// @Param id path string true "Academic event ID"
// @Param payload body service.UpdateAcademicEventRequest true "Fields to change"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Security BearerAuth
// @Router /academic-events/{id} [put]
func (h *AcademicEventHandler) Update(c *gin.Context) {
	var req service.UpdateAcademicEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err))
		return
	}
	event, err := h.service.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, event, nil)
}

// Delete godoc
// @Summary Deactivate academic event
// @Tags AcademicEvents
// @Param id path string true "Academic event ID"
// @Success 204 {string} string "No Content"
// @Security BearerAuth
// @Router /academic-events/{id} [delete]
func (h *AcademicEventHandler) Delete(c *gin.Context) {
	if err := h.service.Deactivate(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Stats godoc
// @Summary Academic event statistics
// @Tags AcademicEvents
// @Produce json
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /academic-events/stats [get]
func (h *AcademicEventHandler) Stats(c *gin.Context) {
	stats, err := h.service.Stats(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stats, nil)
}
