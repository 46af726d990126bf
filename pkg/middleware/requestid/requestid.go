package requestid

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	// Header carries the correlation ID in both directions.
	Header     = "X-Request-ID"
	headerKey  = Header
	contextKey = "request_id"
	maxLength  = 128
)

type ctxKey struct{}

// Middleware reuses a well formed incoming X-Request-ID or mints a UUID. The
// ID is echoed on the response and stored on both the gin and request
// contexts.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		reqID := c.GetHeader(headerKey)
		if !acceptable(reqID) {
			reqID = uuid.NewString()
		}

		c.Set(contextKey, reqID)
		c.Writer.Header().Set(headerKey, reqID)
		c.Request = c.Request.WithContext(WithValue(c.Request.Context(), reqID))
		c.Next()
	}
}

// WithValue stores id on ctx. Background jobs use it to tag their runs.
func WithValue(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

func Value(c *gin.Context) string {
	if id, ok := c.Get(contextKey); ok {
		s, _ := id.(string)
		return s
	}
	return ""
}

func FromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}

// acceptable limits client supplied IDs to short tokens that are safe to
// log and echo.
func acceptable(id string) bool {
	if id == "" || len(id) > maxLength {
		return false
	}
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '-', r == '_', r == '.', r == ':':
		default:
			return false
		}
	}
	return true
}
