// rbac.go implements role-based authorization middleware.
//
// The role is read from context (populated by AuthMiddleware from the user
// row, not the JWT), so a demotion takes effect immediately on the user's
// next request without invalidating their token.
package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ems-platform/ems-backend/internal/db/models"
)

// RequireRole aborts with 403 unless the authenticated caller holds the role.
func RequireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		roleVal, exists := c.Get(ContextUserRoleKey)
		if !exists {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": "Insufficient permissions",
			})
			return
		}

		userRole, ok := roleVal.(string)
		if !ok || userRole != role {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": "Insufficient permissions",
			})
			return
		}

		c.Next()
	}
}

// RequireAdmin aborts with 403 unless the caller is an admin.
func RequireAdmin() gin.HandlerFunc {
	return RequireRole(models.RoleAdmin)
}
