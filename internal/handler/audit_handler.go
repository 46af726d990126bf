package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-scheduling-api/internal/models"
	"github.com/noah-isme/sma-scheduling-api/pkg/response"
)

const defaultAuditLimit = 50

type auditLister interface {
	List(ctx context.Context, resource, action string, limit int) ([]models.AuditLog, error)
}

// AuditHandler exposes the audit trail to administrators.
type AuditHandler struct {
	audit auditLister
}

// NewAuditHandler constructs AuditHandler.
func NewAuditHandler(audit auditLister) *AuditHandler {
	return &AuditHandler{audit: audit}
}

// List godoc
// @Summary List audit entries
// @Description Newest first. Conflict rejections are stored under their scope, e.g. TEACHER_DAY.
// @Tags Audit
// @Produce json
// @Param resource query string true "Resource such as schedule, academic_period or TEACHER_DAY"
// @Param action query string false "e.g. CREATE, UPDATE, DEACTIVATE, CONFLICT_REJECTED, EXPORT"
// @Param limit query int false "Maximum entries (default 50)"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /audit-logs [get]
func (h *AuditHandler) List(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultAuditLimit)))
	if err != nil || limit < 1 {
		limit = defaultAuditLimit
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	logs, err := h.audit.List(c.Request.Context(), c.Query("resource"), strings.ToUpper(c.Query("action")), limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, logs, nil)
}
