package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-scheduling-api/internal/models"
	appErrors "github.com/noah-isme/sma-scheduling-api/pkg/errors"
	"github.com/noah-isme/sma-scheduling-api/pkg/response"
)

// Role groups used by the route table.
var (
	AdminRoles  = []models.UserRole{models.RoleSuperAdmin, models.RoleAdmin}
	EditorRoles = []models.UserRole{models.RoleSuperAdmin, models.RoleAdmin, models.RoleTeacher}
)

// RequireRoles lets the request through only when the caller holds one of roles.
// It must run after JWT.
func RequireRoles(roles ...models.UserRole) gin.HandlerFunc {
	allowed := make(map[models.UserRole]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return func(c *gin.Context) {
		claims, ok := ClaimsFrom(c)
		if !ok {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		if _, ok := allowed[claims.Role]; !ok {
			response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "role "+string(claims.Role)+" may not perform this action"))
			c.Abort()
			return
		}
		c.Next()
	}
}
