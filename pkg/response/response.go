package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-scheduling-api/internal/models"
	appErrors "github.com/noah-isme/sma-scheduling-api/pkg/errors"
	"github.com/noah-isme/sma-scheduling-api/pkg/middleware/requestid"
)

// Envelope is the body of every JSON response. Exactly one of Data and
// Error is set.
type Envelope struct {
	Data       interface{}            `json:"data,omitempty"`
	Error      *appErrors.Error       `json:"error,omitempty"`
	Pagination *models.Pagination     `json:"pagination,omitempty"`
	Meta       map[string]interface{} `json:"meta,omitempty"`
}

// JSON writes data with optional pagination and meta.
func JSON(c *gin.Context, status int, data interface{}, pagination *models.Pagination, meta ...map[string]interface{}) {
	noStore(c)
	envelope := Envelope{Data: data, Pagination: pagination}
	if len(meta) > 0 && meta[0] != nil {
		envelope.Meta = meta[0]
	}
	c.JSON(status, envelope)
}

func Created(c *gin.Context, data interface{}) {
	JSON(c, http.StatusCreated, data, nil)
}

// detailer is implemented by domain errors that carry structured context,
// such as placement conflicts.
type detailer interface {
	Details() map[string]interface{}
}

// Error writes err using the status of the first *appErrors.Error in its
// chain. Details from a wrapped detailer are exposed as meta.conflict and the
// request ID, when known, as meta.request_id.
func Error(c *gin.Context, err error) {
	appErr := appErrors.FromError(err)
	if appErr.Status >= http.StatusInternalServerError {
		_ = c.Error(err)
	}
	noStore(c)

	meta := map[string]interface{}{}
	var d detailer
	if errors.As(err, &d) {
		if details := d.Details(); details != nil {
			meta["conflict"] = details
		}
	}
	if id := requestid.Value(c); id != "" {
		meta["request_id"] = id
	}
	envelope := Envelope{Error: appErr}
	if len(meta) > 0 {
		envelope.Meta = meta
	}
	c.JSON(appErr.Status, envelope)
}

func NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

func noStore(c *gin.Context) {
	c.Header("Cache-Control", "no-store")
	c.Header("Pragma", "no-cache")
}
