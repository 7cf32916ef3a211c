// Package models - audit_log.go defines the AuditLog model: one immutable record
// per observed authenticated operation, capturing actor, action, affected resource,
// network provenance, and arbitrary metadata. Actor name and email are denormalized
// at write time so historical records survive user renames and deletions.
package models

import "time"

// Audit actions. Every record carries exactly one of these; classification
// that does not map to a specific action falls back to ActionAccess.
const (
	ActionLogin            = "LOGIN"
	ActionLogout           = "LOGOUT"
	ActionCreate           = "CREATE"
	ActionRead             = "READ"
	ActionUpdate           = "UPDATE"
	ActionDelete           = "DELETE"
	ActionAccess           = "ACCESS"
	ActionExport           = "EXPORT"
	ActionPermissionChange = "PERMISSION_CHANGE"
)

// Audit resource types. Unrecognized endpoints fall back to ResourceSystem.
const (
	ResourceUser       = "USER"
	ResourceTask       = "TASK"
	ResourceDepartment = "DEPARTMENT"
	ResourceAuth       = "AUTH"
	ResourceSystem     = "SYSTEM"
)

// ValidActions is the closed set of audit actions.
var ValidActions = map[string]bool{
	ActionLogin:            true,
	ActionLogout:           true,
	ActionCreate:           true,
	ActionRead:             true,
	ActionUpdate:           true,
	ActionDelete:           true,
	ActionAccess:           true,
	ActionExport:           true,
	ActionPermissionChange: true,
}

// ValidResourceTypes is the closed set of audit resource types.
var ValidResourceTypes = map[string]bool{
	ResourceUser:       true,
	ResourceTask:       true,
	ResourceDepartment: true,
	ResourceAuth:       true,
	ResourceSystem:     true,
}

// AuditLog represents one audit trail entry. Records are append-only: there is
// no update or delete path through the API surface.
type AuditLog struct {
	ID           string                 `json:"id"`
	ActorID      string                 `json:"userId"`
	ActorName    string                 `json:"userName"`
	ActorEmail   string                 `json:"userEmail"`
	Action       string                 `json:"action"`
	ResourceType string                 `json:"resourceType"`
	ResourceID   *string                `json:"resourceId"`
	ResourceName *string                `json:"resourceName"`
	Method       string                 `json:"method"`
	Endpoint     string                 `json:"endpoint"`
	IPAddress    *string                `json:"ipAddress"`
	UserAgent    *string                `json:"userAgent"`
	StatusCode   *int                   `json:"statusCode"`
	Changes      map[string]interface{} `json:"changes,omitempty"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt    time.Time              `json:"createdAt"`
}
