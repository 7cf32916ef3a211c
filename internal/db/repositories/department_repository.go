// department_repository.go implements DepartmentRepository for organisational units.
package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ems-platform/ems-backend/internal/db/models"
)

// DepartmentRepository handles department database operations
type DepartmentRepository struct {
	db *sql.DB
}

// NewDepartmentRepository creates a new DepartmentRepository
func NewDepartmentRepository(db *sql.DB) *DepartmentRepository {
	return &DepartmentRepository{db: db}
}

const departmentColumns = `id, name, description, created_at, updated_at`

// CreateDepartment inserts a new department.
func (r *DepartmentRepository) CreateDepartment(ctx context.Context, dept *models.Department) error {
	dept.ID = uuid.New().String()
	now := time.Now()
	dept.CreatedAt = now
	dept.UpdatedAt = now

	query := `
		INSERT INTO departments (id, name, description, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := r.db.ExecContext(ctx, query,
		dept.ID, dept.Name, dept.Description, dept.CreatedAt, dept.UpdatedAt,
	)
	return err
}

// GetDepartmentByID retrieves a department by ID. Returns (nil, nil) when not found.
func (r *DepartmentRepository) GetDepartmentByID(ctx context.Context, id string) (*models.Department, error) {
	query := `SELECT ` + departmentColumns + ` FROM departments WHERE id = $1`

	dept := &models.Department{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&dept.ID, &dept.Name, &dept.Description, &dept.CreatedAt, &dept.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return dept, nil
}

// ListDepartments retrieves all departments ordered by name.
func (r *DepartmentRepository) ListDepartments(ctx context.Context) ([]*models.Department, error) {
	query := `SELECT ` + departmentColumns + ` FROM departments ORDER BY name`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query departments: %w", err)
	}
	defer rows.Close()

	depts := make([]*models.Department, 0)
	for rows.Next() {
		dept := &models.Department{}
		if err := rows.Scan(
			&dept.ID, &dept.Name, &dept.Description, &dept.CreatedAt, &dept.UpdatedAt,
		); err != nil {
			return nil, err
		}
		depts = append(depts, dept)
	}

	return depts, rows.Err()
}

// UpdateDepartment updates a department's name and description.
func (r *DepartmentRepository) UpdateDepartment(ctx context.Context, dept *models.Department) error {
	dept.UpdatedAt = time.Now()

	result, err := r.db.ExecContext(ctx,
		`UPDATE departments SET name = $1, description = $2, updated_at = $3 WHERE id = $4`,
		dept.Name, dept.Description, dept.UpdatedAt, dept.ID,
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

// DeleteDepartment removes a department by ID.
func (r *DepartmentRepository) DeleteDepartment(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM departments WHERE id = $1`, id)
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
