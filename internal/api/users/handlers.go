// Package users implements the user administration endpoints. All routes are
// admin-scoped and pass through the audit interceptor.
package users

import (
	"database/sql"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ems-platform/ems-backend/internal/db/models"
	"github.com/ems-platform/ems-backend/internal/db/repositories"
)

type updateUserRequest struct {
	Name         *string `json:"name"`
	Role         *string `json:"role"`
	DepartmentID *string `json:"departmentId"`
}

// ListUsersHandler lists users, optionally filtered by role.
// Implements: GET /api/users
func ListUsersHandler(db *sql.DB) gin.HandlerFunc {
	userRepo := repositories.NewUserRepository(db)

	return func(c *gin.Context) {
		role := c.Query("role")
		if role != "" && role != models.RoleAdmin && role != models.RoleEmployee {
			c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid role filter"})
			return
		}

		users, err := userRepo.ListUsers(c.Request.Context(), role)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to list users"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"users": users})
	}
}

// GetUserHandler fetches one user by ID.
// Implements: GET /api/users/:id
func GetUserHandler(db *sql.DB) gin.HandlerFunc {
	userRepo := repositories.NewUserRepository(db)

	return func(c *gin.Context) {
		user, err := userRepo.GetUserByID(c.Request.Context(), c.Param("id"))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to fetch user"})
			return
		}
		if user == nil {
			c.JSON(http.StatusNotFound, gin.H{"message": "User not found"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"user": user})
	}
}

// UpdateUserHandler applies a partial update to a user's name, role, or
// department. A role change is a permission change and is audited as such by
// the interceptor via the request body.
// Implements: PUT /api/users/:id
func UpdateUserHandler(db *sql.DB) gin.HandlerFunc {
	userRepo := repositories.NewUserRepository(db)

	return func(c *gin.Context) {
		var req updateUserRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid update payload"})
			return
		}

		user, err := userRepo.GetUserByID(c.Request.Context(), c.Param("id"))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to fetch user"})
			return
		}
		if user == nil {
			c.JSON(http.StatusNotFound, gin.H{"message": "User not found"})
			return
		}

		if req.Name != nil {
			user.Name = *req.Name
		}
		if req.Role != nil {
			if *req.Role != models.RoleAdmin && *req.Role != models.RoleEmployee {
				c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid role"})
				return
			}
			user.Role = *req.Role
		}
		if req.DepartmentID != nil {
			user.DepartmentID = req.DepartmentID
		}

		if err := userRepo.UpdateUser(c.Request.Context(), user); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				c.JSON(http.StatusNotFound, gin.H{"message": "User not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to update user"})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"message": "User updated",
			"user":    user,
		})
	}
}

// DeleteUserHandler removes a user. Their audit trail survives because actor
// name and email are denormalized into every record at write time.
// Implements: DELETE /api/users/:id
func DeleteUserHandler(db *sql.DB) gin.HandlerFunc {
	userRepo := repositories.NewUserRepository(db)

	return func(c *gin.Context) {
		if err := userRepo.DeleteUser(c.Request.Context(), c.Param("id")); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				c.JSON(http.StatusNotFound, gin.H{"message": "User not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to delete user"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"message": "User deleted"})
	}
}
