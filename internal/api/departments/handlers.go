// Package departments implements the department endpoints. Reads are open to
// all authenticated users; mutations are admin only.
package departments

import (
	"database/sql"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ems-platform/ems-backend/internal/db/models"
	"github.com/ems-platform/ems-backend/internal/db/repositories"
)

type departmentRequest struct {
	Name        string  `json:"name" binding:"required"`
	Description *string `json:"description"`
}

// CreateDepartmentHandler creates a department. Admin only.
// Implements: POST /api/departments
func CreateDepartmentHandler(db *sql.DB) gin.HandlerFunc {
	deptRepo := repositories.NewDepartmentRepository(db)

	return func(c *gin.Context) {
		var req departmentRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"message": "Name is required"})
			return
		}

		dept := &models.Department{
			Name:        req.Name,
			Description: req.Description,
		}
		if err := deptRepo.CreateDepartment(c.Request.Context(), dept); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to create department"})
			return
		}

		c.JSON(http.StatusCreated, gin.H{
			"message":    "Department created",
			"department": dept,
		})
	}
}

// ListDepartmentsHandler lists all departments.
// Implements: GET /api/departments
func ListDepartmentsHandler(db *sql.DB) gin.HandlerFunc {
	deptRepo := repositories.NewDepartmentRepository(db)

	return func(c *gin.Context) {
		depts, err := deptRepo.ListDepartments(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to list departments"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"departments": depts})
	}
}

// GetDepartmentHandler fetches one department.
// Implements: GET /api/departments/:id
func GetDepartmentHandler(db *sql.DB) gin.HandlerFunc {
	deptRepo := repositories.NewDepartmentRepository(db)

	return func(c *gin.Context) {
		dept, err := deptRepo.GetDepartmentByID(c.Request.Context(), c.Param("id"))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to fetch department"})
			return
		}
		if dept == nil {
			c.JSON(http.StatusNotFound, gin.H{"message": "Department not found"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"department": dept})
	}
}

// UpdateDepartmentHandler renames a department or changes its description.
// Admin only.
// Implements: PUT /api/departments/:id
func UpdateDepartmentHandler(db *sql.DB) gin.HandlerFunc {
	deptRepo := repositories.NewDepartmentRepository(db)

	return func(c *gin.Context) {
		var req departmentRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"message": "Name is required"})
			return
		}

		dept, err := deptRepo.GetDepartmentByID(c.Request.Context(), c.Param("id"))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to fetch department"})
			return
		}
		if dept == nil {
			c.JSON(http.StatusNotFound, gin.H{"message": "Department not found"})
			return
		}

		dept.Name = req.Name
		if req.Description != nil {
			dept.Description = req.Description
		}

		if err := deptRepo.UpdateDepartment(c.Request.Context(), dept); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				c.JSON(http.StatusNotFound, gin.H{"message": "Department not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to update department"})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"message":    "Department updated",
			"department": dept,
		})
	}
}

// DeleteDepartmentHandler removes a department. Admin only. Members of the
// department get their departmentId nulled by the FK's ON DELETE SET NULL.
// Implements: DELETE /api/departments/:id
func DeleteDepartmentHandler(db *sql.DB) gin.HandlerFunc {
	deptRepo := repositories.NewDepartmentRepository(db)

	return func(c *gin.Context) {
		if err := deptRepo.DeleteDepartment(c.Request.Context(), c.Param("id")); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				c.JSON(http.StatusNotFound, gin.H{"message": "Department not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to delete department"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"message": "Department deleted"})
	}
}
