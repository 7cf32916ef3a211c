// Package tasks implements the task endpoints. Admins see and manage every
// task; employees see their own assignments and may only move their own tasks
// through the status workflow.
package tasks

import (
	"database/sql"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ems-platform/ems-backend/internal/db/models"
	"github.com/ems-platform/ems-backend/internal/db/repositories"
	"github.com/ems-platform/ems-backend/internal/middleware"
)

type createTaskRequest struct {
	Title       string     `json:"title" binding:"required"`
	Description *string    `json:"description"`
	Category    *string    `json:"category"`
	DueDate     *time.Time `json:"dueDate"`
	AssignedTo  *string    `json:"assignedTo"`
}

type updateTaskRequest struct {
	Title       *string    `json:"title"`
	Description *string    `json:"description"`
	Category    *string    `json:"category"`
	Status      *string    `json:"status"`
	DueDate     *time.Time `json:"dueDate"`
	AssignedTo  *string    `json:"assignedTo"`
}

// CreateTaskHandler creates a task and assigns it to a user. Admin only.
// Implements: POST /api/tasks
func CreateTaskHandler(db *sql.DB) gin.HandlerFunc {
	taskRepo := repositories.NewTaskRepository(db)

	return func(c *gin.Context) {
		var req createTaskRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"message": "Title is required"})
			return
		}

		callerID := c.GetString(middleware.ContextUserIDKey)
		task := &models.Task{
			Title:       req.Title,
			Description: req.Description,
			Category:    req.Category,
			Status:      models.TaskPending,
			DueDate:     req.DueDate,
			AssignedTo:  req.AssignedTo,
			CreatedBy:   &callerID,
		}

		if err := taskRepo.CreateTask(c.Request.Context(), task); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to create task"})
			return
		}

		c.JSON(http.StatusCreated, gin.H{
			"message": "Task created",
			"task":    task,
		})
	}
}

// ListTasksHandler lists tasks: all of them for admins, own assignments for
// employees.
// Implements: GET /api/tasks
func ListTasksHandler(db *sql.DB) gin.HandlerFunc {
	taskRepo := repositories.NewTaskRepository(db)

	return func(c *gin.Context) {
		assignedTo := ""
		if c.GetString(middleware.ContextUserRoleKey) != models.RoleAdmin {
			assignedTo = c.GetString(middleware.ContextUserIDKey)
		}

		tasks, err := taskRepo.ListTasks(c.Request.Context(), assignedTo)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to list tasks"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"tasks": tasks})
	}
}

// GetTaskHandler fetches one task. Employees may only fetch their own.
// Implements: GET /api/tasks/:id
func GetTaskHandler(db *sql.DB) gin.HandlerFunc {
	taskRepo := repositories.NewTaskRepository(db)

	return func(c *gin.Context) {
		task, err := taskRepo.GetTaskByID(c.Request.Context(), c.Param("id"))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to fetch task"})
			return
		}
		if task == nil {
			c.JSON(http.StatusNotFound, gin.H{"message": "Task not found"})
			return
		}
		if !callerMayAccess(c, task) {
			c.JSON(http.StatusForbidden, gin.H{"message": "Not your task"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"task": task})
	}
}

// UpdateTaskHandler applies a partial update. Admins may change any field of
// any task; employees may only change the status of tasks assigned to them.
// Implements: PUT /api/tasks/:id
func UpdateTaskHandler(db *sql.DB) gin.HandlerFunc {
	taskRepo := repositories.NewTaskRepository(db)

	return func(c *gin.Context) {
		var req updateTaskRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid update payload"})
			return
		}
		if req.Status != nil && !models.ValidTaskStatuses[*req.Status] {
			c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid task status"})
			return
		}

		task, err := taskRepo.GetTaskByID(c.Request.Context(), c.Param("id"))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to fetch task"})
			return
		}
		if task == nil {
			c.JSON(http.StatusNotFound, gin.H{"message": "Task not found"})
			return
		}

		isAdmin := c.GetString(middleware.ContextUserRoleKey) == models.RoleAdmin
		if !isAdmin {
			if !callerMayAccess(c, task) {
				c.JSON(http.StatusForbidden, gin.H{"message": "Not your task"})
				return
			}
			// Employees walk the status workflow, nothing else.
			if req.Title != nil || req.Description != nil || req.Category != nil ||
				req.DueDate != nil || req.AssignedTo != nil {
				c.JSON(http.StatusForbidden, gin.H{"message": "Only the task status can be changed"})
				return
			}
		}

		if req.Title != nil {
			task.Title = *req.Title
		}
		if req.Description != nil {
			task.Description = req.Description
		}
		if req.Category != nil {
			task.Category = req.Category
		}
		if req.Status != nil {
			task.Status = *req.Status
		}
		if req.DueDate != nil {
			task.DueDate = req.DueDate
		}
		if req.AssignedTo != nil {
			task.AssignedTo = req.AssignedTo
		}

		if err := taskRepo.UpdateTask(c.Request.Context(), task); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				c.JSON(http.StatusNotFound, gin.H{"message": "Task not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to update task"})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"message": "Task updated",
			"task":    task,
		})
	}
}

// DeleteTaskHandler removes a task. Admin only.
// Implements: DELETE /api/tasks/:id
func DeleteTaskHandler(db *sql.DB) gin.HandlerFunc {
	taskRepo := repositories.NewTaskRepository(db)

	return func(c *gin.Context) {
		if err := taskRepo.DeleteTask(c.Request.Context(), c.Param("id")); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				c.JSON(http.StatusNotFound, gin.H{"message": "Task not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to delete task"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"message": "Task deleted"})
	}
}

// callerMayAccess reports whether the caller may read or advance the task:
// admins always, employees only when the task is assigned to them.
func callerMayAccess(c *gin.Context, task *models.Task) bool {
	if c.GetString(middleware.ContextUserRoleKey) == models.RoleAdmin {
		return true
	}
	callerID := c.GetString(middleware.ContextUserIDKey)
	return task.AssignedTo != nil && *task.AssignedTo == callerID
}
