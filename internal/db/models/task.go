package models

import "time"

// Task statuses
const (
	TaskPending    = "pending"
	TaskInProgress = "in-progress"
	TaskCompleted  = "completed"
)

// ValidTaskStatuses is the closed set of task statuses.
var ValidTaskStatuses = map[string]bool{
	TaskPending:    true,
	TaskInProgress: true,
	TaskCompleted:  true,
}

// Task represents a unit of assigned work
type Task struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description *string    `json:"description"`
	Category    *string    `json:"category"`
	Status      string     `json:"status"`
	DueDate     *time.Time `json:"dueDate"`
	AssignedTo  *string    `json:"assignedTo"`
	CreatedBy   *string    `json:"createdBy"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}
