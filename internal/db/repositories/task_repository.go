// task_repository.go implements TaskRepository for assigned work items.
package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ems-platform/ems-backend/internal/db/models"
)

// TaskRepository handles task database operations
type TaskRepository struct {
	db *sql.DB
}

// NewTaskRepository creates a new TaskRepository
func NewTaskRepository(db *sql.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

const taskColumns = `id, title, description, category, status, due_date, assigned_to, created_by, created_at, updated_at`

// CreateTask inserts a new task.
func (r *TaskRepository) CreateTask(ctx context.Context, task *models.Task) error {
	task.ID = uuid.New().String()
	now := time.Now()
	task.CreatedAt = now
	task.UpdatedAt = now
	if task.Status == "" {
		task.Status = models.TaskPending
	}

	query := `
		INSERT INTO tasks (id, title, description, category, status, due_date, assigned_to, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := r.db.ExecContext(ctx, query,
		task.ID, task.Title, task.Description, task.Category, task.Status,
		task.DueDate, task.AssignedTo, task.CreatedBy, task.CreatedAt, task.UpdatedAt,
	)
	return err
}

// GetTaskByID retrieves a task by ID. Returns (nil, nil) when not found.
func (r *TaskRepository) GetTaskByID(ctx context.Context, id string) (*models.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE id = $1`

	task := &models.Task{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&task.ID, &task.Title, &task.Description, &task.Category, &task.Status,
		&task.DueDate, &task.AssignedTo, &task.CreatedBy, &task.CreatedAt, &task.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return task, nil
}

// ListTasks retrieves tasks newest first. When assignedTo is non-empty only
// tasks assigned to that user are returned.
func (r *TaskRepository) ListTasks(ctx context.Context, assignedTo string) ([]*models.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks`
	args := make([]interface{}, 0, 1)
	if assignedTo != "" {
		query += ` WHERE assigned_to = $1`
		args = append(args, assignedTo)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query tasks: %w", err)
	}
	defer rows.Close()

	tasks := make([]*models.Task, 0)
	for rows.Next() {
		task := &models.Task{}
		if err := rows.Scan(
			&task.ID, &task.Title, &task.Description, &task.Category, &task.Status,
			&task.DueDate, &task.AssignedTo, &task.CreatedBy, &task.CreatedAt, &task.UpdatedAt,
		); err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}

	return tasks, rows.Err()
}

// UpdateTask updates a task's mutable fields.
func (r *TaskRepository) UpdateTask(ctx context.Context, task *models.Task) error {
	task.UpdatedAt = time.Now()

	query := `
		UPDATE tasks SET title = $1, description = $2, category = $3, status = $4,
			due_date = $5, assigned_to = $6, updated_at = $7
		WHERE id = $8
	`

	result, err := r.db.ExecContext(ctx, query,
		task.Title, task.Description, task.Category, task.Status,
		task.DueDate, task.AssignedTo, task.UpdatedAt, task.ID,
	)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// DeleteTask removes a task by ID.
func (r *TaskRepository) DeleteTask(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = $1`, id)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
