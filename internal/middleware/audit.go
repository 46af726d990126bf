package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-scheduling-api/internal/service"
)

// AuditContext records the client address and user agent on the request
// context so audit entries written by services carry them.
func AuditContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, _ := service.ActorFrom(c.Request.Context())
		actor.IP = c.ClientIP()
		actor.UserAgent = c.GetHeader("User-Agent")
		c.Request = c.Request.WithContext(service.WithActor(c.Request.Context(), actor))
		c.Next()
	}
}
