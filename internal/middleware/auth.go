// Package middleware provides Gin HTTP middleware for authentication,
// authorization, rate limiting, security headers, and audit interception.
//
// Middleware ordering matters and is enforced in router.go:
//
//	Security → RequestID → Metrics → RateLimit → Auth → RBAC → Audit → Handler
//
// Security headers run first so they appear on all responses including errors.
// Rate limiting runs before auth to block brute-force attacks before any DB work.
// Auth populates the caller identity; RBAC reads it from context. The audit
// interceptor runs innermost so it observes the response the handler actually
// produced, including the status RBAC or the handler set.
package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/ems-platform/ems-backend/internal/auth"
	"github.com/ems-platform/ems-backend/internal/db/repositories"
)

// Context keys under which the authenticated caller's identity is stored.
const (
	ContextUserKey      = "user"
	ContextUserIDKey    = "user_id"
	ContextUserNameKey  = "user_name"
	ContextUserEmailKey = "user_email"
	ContextUserRoleKey  = "user_role"
)

// AuthMiddleware validates the Bearer JWT and loads the caller into context.
// The user row is loaded on every request rather than trusting the token's
// role claim, so role changes and deletions take effect on the next request
// without token rotation.
func AuthMiddleware(userRepo *repositories.UserRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Missing authorization header",
			})
			return
		}

		if !strings.HasPrefix(authHeader, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Authorization header must start with 'Bearer '",
			})
			return
		}

		token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Authorization token is empty",
			})
			return
		}

		claims, err := auth.ValidateJWT(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Invalid or expired token",
			})
			return
		}

		user, err := userRepo.GetUserByID(c.Request.Context(), claims.UserID)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to load user",
			})
			return
		}
		if user == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "User not found",
			})
			return
		}

		c.Set(ContextUserKey, user)
		c.Set(ContextUserIDKey, user.ID)
		c.Set(ContextUserNameKey, user.Name)
		c.Set(ContextUserEmailKey, user.Email)
		c.Set(ContextUserRoleKey, user.Role)

		c.Next()
	}
}
