// Package authn implements the authentication endpoints: login, logout,
// register, and the current-user lookup.
//
// Login is the one place an audit record is emitted from a handler instead of
// the interceptor: the interceptor only audits authenticated traffic, and a
// login request has no identity in context until the handler verifies the
// credentials. A successful login submits a LOGIN record directly; a failed
// attempt emits nothing.
package authn

import (
	"database/sql"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ems-platform/ems-backend/internal/audit"
	"github.com/ems-platform/ems-backend/internal/auth"
	"github.com/ems-platform/ems-backend/internal/config"
	"github.com/ems-platform/ems-backend/internal/db/models"
	"github.com/ems-platform/ems-backend/internal/db/repositories"
	"github.com/ems-platform/ems-backend/internal/middleware"
)

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type registerRequest struct {
	Name         string  `json:"name" binding:"required"`
	Email        string  `json:"email" binding:"required,email"`
	Password     string  `json:"password" binding:"required,min=8"`
	Role         string  `json:"role"`
	DepartmentID *string `json:"departmentId"`
}

// LoginHandler verifies credentials and issues a JWT.
// Implements: POST /api/auth/login
func LoginHandler(db *sql.DB, cfg *config.Config, sink audit.Sink) gin.HandlerFunc {
	userRepo := repositories.NewUserRepository(db)

	return func(c *gin.Context) {
		var req loginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"message": "Email and password are required"})
			return
		}

		user, err := userRepo.GetUserByEmail(c.Request.Context(), req.Email)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to look up user"})
			return
		}
		// Unknown email and wrong password are indistinguishable to the caller.
		if user == nil || !auth.CheckPassword(user.PasswordHash, req.Password) {
			c.JSON(http.StatusUnauthorized, gin.H{"message": "Invalid credentials"})
			return
		}

		token, err := auth.GenerateJWT(user.ID, user.Email, user.Role, cfg.Auth.TokenTTL)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to issue token"})
			return
		}

		submitLoginRecord(c, sink, user)

		c.JSON(http.StatusOK, gin.H{
			"token": token,
			"user":  user,
		})
	}
}

// submitLoginRecord emits the LOGIN audit record for a successful login.
func submitLoginRecord(c *gin.Context, sink audit.Sink, user *models.User) {
	status := http.StatusOK
	record := &models.AuditLog{
		ActorID:      user.ID,
		ActorName:    user.Name,
		ActorEmail:   user.Email,
		Action:       models.ActionLogin,
		ResourceType: models.ResourceAuth,
		Method:       c.Request.Method,
		Endpoint:     c.Request.URL.Path,
		StatusCode:   &status,
	}
	if ip := c.ClientIP(); ip != "" {
		record.IPAddress = &ip
	}
	if ua := c.Request.UserAgent(); ua != "" {
		record.UserAgent = &ua
	}
	sink.Submit(record)
}

// LogoutHandler acknowledges a logout. Tokens are stateless, so there is
// nothing to revoke server-side; the audit interceptor classifies the call as
// LOGOUT from the path and records it.
// Implements: POST /api/auth/logout
func LogoutHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "Logged out"})
	}
}

// RegisterHandler creates a new user account. Admin only.
// Implements: POST /api/auth/register
func RegisterHandler(db *sql.DB, cfg *config.Config) gin.HandlerFunc {
	userRepo := repositories.NewUserRepository(db)

	return func(c *gin.Context) {
		var req registerRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid registration payload"})
			return
		}

		role := req.Role
		if role == "" {
			role = models.RoleEmployee
		}
		if role != models.RoleAdmin && role != models.RoleEmployee {
			c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid role"})
			return
		}

		existing, err := userRepo.GetUserByEmail(c.Request.Context(), req.Email)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to look up user"})
			return
		}
		if existing != nil {
			c.JSON(http.StatusConflict, gin.H{"message": "Email already in use"})
			return
		}

		hash, err := auth.HashPassword(req.Password, cfg.Auth.BcryptCost)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to hash password"})
			return
		}

		callerID := c.GetString(middleware.ContextUserIDKey)
		user := &models.User{
			Name:         req.Name,
			Email:        req.Email,
			PasswordHash: hash,
			Role:         role,
			DepartmentID: req.DepartmentID,
			CreatedBy:    &callerID,
		}

		if err := userRepo.CreateUser(c.Request.Context(), user); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to create user"})
			return
		}

		c.JSON(http.StatusCreated, gin.H{
			"message": "User registered",
			"user":    user,
		})
	}
}

// MeHandler returns the authenticated caller's profile.
// Implements: GET /api/auth/me
func MeHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		value, exists := c.Get(middleware.ContextUserKey)
		if !exists {
			c.JSON(http.StatusUnauthorized, gin.H{"message": "Not authenticated"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"user": value})
	}
}
