// audit_repository.go implements AuditRepository, the append-only store for
// audit trail records. It supports filtered, paginated retrieval, per-resource
// and per-actor history, windowed aggregation, and a capped export query.
// Records are never updated or deleted through this repository.
package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ems-platform/ems-backend/internal/db/models"
)

// AuditRepository handles audit log database operations
type AuditRepository struct {
	db *sql.DB
	// dbx wraps db for struct-scanning aggregate queries
	dbx *sqlx.DB
}

// NewAuditRepository creates a new AuditRepository
func NewAuditRepository(db *sql.DB) *AuditRepository {
	return &AuditRepository{db: db, dbx: sqlx.NewDb(db, "postgres")}
}

// AuditFilters contains filters for querying audit logs. Distinct filters are
// AND-combined; the Search term is OR-combined across actor name, actor email,
// resource name, and endpoint (case-insensitive substring match).
type AuditFilters struct {
	ActorID      *string
	ResourceType *string
	Action       *string
	StartDate    *time.Time
	EndDate      *time.Time
	Search       *string
}

const auditColumns = `id, actor_id, actor_name, actor_email, action, resource_type,
		resource_id, resource_name, method, endpoint, ip_address, user_agent,
		status_code, changes, metadata, created_at`

// CreateAuditLog appends one audit record. The ID and CreatedAt are assigned
// here; callers must treat the record as immutable afterwards.
func (r *AuditRepository) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	log.ID = uuid.New().String()
	log.CreatedAt = time.Now()

	changesJSON, err := marshalJSONB(log.Changes)
	if err != nil {
		return fmt.Errorf("failed to marshal changes: %w", err)
	}
	metadataJSON, err := marshalJSONB(log.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	query := `
		INSERT INTO audit_logs (id, actor_id, actor_name, actor_email, action, resource_type,
			resource_id, resource_name, method, endpoint, ip_address, user_agent,
			status_code, changes, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`

	_, err = r.db.ExecContext(ctx, query,
		log.ID,
		log.ActorID,
		log.ActorName,
		log.ActorEmail,
		log.Action,
		log.ResourceType,
		log.ResourceID,
		log.ResourceName,
		log.Method,
		log.Endpoint,
		log.IPAddress,
		log.UserAgent,
		log.StatusCode,
		changesJSON,
		metadataJSON,
		log.CreatedAt,
	)

	return err
}

// buildFilterClause converts filters into a WHERE fragment starting at
// parameter $1. The returned fragment always begins with " WHERE 1=1" so
// callers can append it directly after the FROM clause.
func buildFilterClause(filters AuditFilters) (string, []interface{}) {
	clause := ` WHERE 1=1`
	args := make([]interface{}, 0)

	if filters.ActorID != nil {
		args = append(args, *filters.ActorID)
		clause += fmt.Sprintf(` AND actor_id = $%d`, len(args))
	}

	if filters.ResourceType != nil {
		args = append(args, *filters.ResourceType)
		clause += fmt.Sprintf(` AND resource_type = $%d`, len(args))
	}

	if filters.Action != nil {
		args = append(args, *filters.Action)
		clause += fmt.Sprintf(` AND action = $%d`, len(args))
	}

	// Date range is inclusive on both ends.
	if filters.StartDate != nil {
		args = append(args, *filters.StartDate)
		clause += fmt.Sprintf(` AND created_at >= $%d`, len(args))
	}

	if filters.EndDate != nil {
		args = append(args, *filters.EndDate)
		clause += fmt.Sprintf(` AND created_at <= $%d`, len(args))
	}

	if filters.Search != nil && *filters.Search != "" {
		args = append(args, "%"+*filters.Search+"%")
		n := len(args)
		clause += fmt.Sprintf(
			` AND (actor_name ILIKE $%d OR actor_email ILIKE $%d OR resource_name ILIKE $%d OR endpoint ILIKE $%d)`,
			n, n, n, n,
		)
	}

	return clause, args
}

// ListAuditLogs retrieves audit logs matching the filters, newest first, along
// with the total match count for pagination.
func (r *AuditRepository) ListAuditLogs(ctx context.Context, filters AuditFilters, limit, offset int) ([]*models.AuditLog, int, error) {
	clause, args := buildFilterClause(filters)

	var total int
	countQuery := `SELECT COUNT(*) FROM audit_logs` + clause
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count audit logs: %w", err)
	}

	query := `SELECT ` + auditColumns + ` FROM audit_logs` + clause +
		fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	logs, err := r.queryAuditLogs(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}

	return logs, total, nil
}

// ListResourceAuditLogs retrieves the history of one resource, newest first.
func (r *AuditRepository) ListResourceAuditLogs(ctx context.Context, resourceType, resourceID string, limit int) ([]*models.AuditLog, error) {
	query := `SELECT ` + auditColumns + ` FROM audit_logs
		WHERE resource_type = $1 AND resource_id = $2
		ORDER BY created_at DESC LIMIT $3`

	return r.queryAuditLogs(ctx, query, resourceType, resourceID, limit)
}

// ListActorAuditLogs retrieves one actor's history, newest first, with the
// actor's total record count.
func (r *AuditRepository) ListActorAuditLogs(ctx context.Context, actorID string, limit, offset int) ([]*models.AuditLog, int, error) {
	var total int
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM audit_logs WHERE actor_id = $1`, actorID,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count actor audit logs: %w", err)
	}

	query := `SELECT ` + auditColumns + ` FROM audit_logs
		WHERE actor_id = $1
		ORDER BY created_at DESC LIMIT $2 OFFSET $3`

	logs, err := r.queryAuditLogs(ctx, query, actorID, limit, offset)
	if err != nil {
		return nil, 0, err
	}

	return logs, total, nil
}

// ActionCount is one row of an action breakdown.
type ActionCount struct {
	Action string `json:"action" db:"action"`
	Count  int64  `json:"count" db:"count"`
}

// ResourceCount is one row of a resource type breakdown.
type ResourceCount struct {
	Resource string `json:"resource" db:"resource_type"`
	Count    int64  `json:"count" db:"count"`
}

// ActorCount is one row of a most-active-actors breakdown. ActorName is taken
// from the denormalized column, so it reflects the name at the time of the
// actor's most recent recorded action.
type ActorCount struct {
	ActorID   string `json:"userId" db:"actor_id"`
	ActorName string `json:"userName" db:"actor_name"`
	Count     int64  `json:"activityCount" db:"count"`
}

// AuditStats bundles the windowed aggregate figures served by the stats endpoint.
type AuditStats struct {
	TotalLogs         int64           `json:"totalLogs"`
	RecentActivity    int64           `json:"recentActivity"`
	ActionBreakdown   []ActionCount   `json:"actionBreakdown"`
	ResourceBreakdown []ResourceCount `json:"resourceBreakdown"`
	TopActors         []ActorCount    `json:"topUsers"`
}

// GetAuditStats computes the aggregate figures for records created at or after
// since. recentSince bounds the trailing-activity count (normally now-24h)
// independently of the main window. The five figures are read in sequence
// without a transaction: concurrent appends may or may not be reflected, which
// is acceptable for a best-effort activity dashboard.
func (r *AuditRepository) GetAuditStats(ctx context.Context, since, recentSince time.Time) (*AuditStats, error) {
	stats := &AuditStats{
		ActionBreakdown:   make([]ActionCount, 0),
		ResourceBreakdown: make([]ResourceCount, 0),
		TopActors:         make([]ActorCount, 0),
	}

	if err := r.dbx.GetContext(ctx, &stats.TotalLogs,
		`SELECT COUNT(*) FROM audit_logs WHERE created_at >= $1`, since,
	); err != nil {
		return nil, fmt.Errorf("failed to count audit logs: %w", err)
	}

	if err := r.dbx.GetContext(ctx, &stats.RecentActivity,
		`SELECT COUNT(*) FROM audit_logs WHERE created_at >= $1`, recentSince,
	); err != nil {
		return nil, fmt.Errorf("failed to count recent activity: %w", err)
	}

	if err := r.dbx.SelectContext(ctx, &stats.ActionBreakdown,
		`SELECT action, COUNT(*) AS count FROM audit_logs
		 WHERE created_at >= $1 GROUP BY action ORDER BY count DESC`, since,
	); err != nil {
		return nil, fmt.Errorf("failed to aggregate actions: %w", err)
	}

	if err := r.dbx.SelectContext(ctx, &stats.ResourceBreakdown,
		`SELECT resource_type, COUNT(*) AS count FROM audit_logs
		 WHERE created_at >= $1 GROUP BY resource_type ORDER BY count DESC`, since,
	); err != nil {
		return nil, fmt.Errorf("failed to aggregate resource types: %w", err)
	}

	// max(actor_name) picks one denormalized name per actor; names only differ
	// across rows if the user was renamed mid-window.
	if err := r.dbx.SelectContext(ctx, &stats.TopActors,
		`SELECT actor_id, MAX(actor_name) AS actor_name, COUNT(*) AS count FROM audit_logs
		 WHERE created_at >= $1 GROUP BY actor_id ORDER BY count DESC LIMIT 10`, since,
	); err != nil {
		return nil, fmt.Errorf("failed to aggregate top actors: %w", err)
	}

	return stats, nil
}

// ExportAuditLogs retrieves up to maxRows records matching the filters, newest
// first, for CSV export. The row cap bounds memory and response size no matter
// how broad the filter is.
func (r *AuditRepository) ExportAuditLogs(ctx context.Context, filters AuditFilters, maxRows int) ([]*models.AuditLog, error) {
	clause, args := buildFilterClause(filters)

	query := `SELECT ` + auditColumns + ` FROM audit_logs` + clause +
		fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d`, len(args)+1)
	args = append(args, maxRows)

	return r.queryAuditLogs(ctx, query, args...)
}

// queryAuditLogs executes a SELECT over auditColumns and scans all rows.
func (r *AuditRepository) queryAuditLogs(ctx context.Context, query string, args ...interface{}) ([]*models.AuditLog, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit logs: %w", err)
	}
	defer rows.Close()

	logs := make([]*models.AuditLog, 0)
	for rows.Next() {
		log, err := scanAuditLog(rows)
		if err != nil {
			return nil, err
		}
		logs = append(logs, log)
	}

	return logs, rows.Err()
}

// scanAuditLog scans one audit_logs row, decoding the JSONB columns.
func scanAuditLog(rows *sql.Rows) (*models.AuditLog, error) {
	log := &models.AuditLog{}
	var changesJSON, metadataJSON []byte

	err := rows.Scan(
		&log.ID,
		&log.ActorID,
		&log.ActorName,
		&log.ActorEmail,
		&log.Action,
		&log.ResourceType,
		&log.ResourceID,
		&log.ResourceName,
		&log.Method,
		&log.Endpoint,
		&log.IPAddress,
		&log.UserAgent,
		&log.StatusCode,
		&changesJSON,
		&metadataJSON,
		&log.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if changesJSON != nil {
		if err := json.Unmarshal(changesJSON, &log.Changes); err != nil {
			return nil, fmt.Errorf("failed to unmarshal changes: %w", err)
		}
	}
	if metadataJSON != nil {
		if err := json.Unmarshal(metadataJSON, &log.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
	}

	return log, nil
}

// marshalJSONB encodes a map for a JSONB column, preserving NULL for nil maps.
func marshalJSONB(m map[string]interface{}) ([]byte, error) {
	if m == nil {
		return nil, nil
	}
	return json.Marshal(m)
}
