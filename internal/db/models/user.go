package models

import "time"

// User roles. RBAC middleware grants the elevated audit/user-management
// surface to admins only.
const (
	RoleAdmin    = "admin"
	RoleEmployee = "employee"
)

// User represents an EMS account
type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         string    `json:"role"`
	DepartmentID *string   `json:"departmentId"`
	CreatedBy    *string   `json:"createdBy"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// IsAdmin reports whether the user holds the admin role
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}
