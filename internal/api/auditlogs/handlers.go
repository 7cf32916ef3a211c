// Package auditlogs implements the audit trail query endpoints: filtered
// listing, per-resource history, per-actor history, self history, aggregate
// statistics, and CSV export. Everything here is read-only; records are
// written exclusively by the recorder behind the interceptor.
package auditlogs

import (
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ems-platform/ems-backend/internal/audit"
	"github.com/ems-platform/ems-backend/internal/db/repositories"
	"github.com/ems-platform/ems-backend/internal/middleware"
	"github.com/ems-platform/ems-backend/internal/telemetry"
)

const (
	defaultPageSize = 50
	maxPageSize     = 500
)

// parsePagination reads page and limit query parameters. Pages are 1-indexed;
// out-of-range values fall back to defaults rather than erroring.
func parsePagination(c *gin.Context) (page, limit int) {
	page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	if page < 1 {
		page = 1
	}
	limit, _ = strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultPageSize)))
	if limit < 1 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	return page, limit
}

// parseFilters builds AuditFilters from the query string. Dates accept
// RFC 3339 or plain YYYY-MM-DD; both bounds are inclusive.
func parseFilters(c *gin.Context) (repositories.AuditFilters, error) {
	var filters repositories.AuditFilters

	if v := c.Query("userId"); v != "" {
		filters.ActorID = &v
	}
	if v := c.Query("resourceType"); v != "" {
		upper := strings.ToUpper(v)
		filters.ResourceType = &upper
	}
	if v := c.Query("action"); v != "" {
		upper := strings.ToUpper(v)
		filters.Action = &upper
	}
	if v := c.Query("search"); v != "" {
		filters.Search = &v
	}

	if v := c.Query("startDate"); v != "" {
		t, err := parseDate(v)
		if err != nil {
			return filters, fmt.Errorf("invalid startDate: %w", err)
		}
		filters.StartDate = &t
	}
	if v := c.Query("endDate"); v != "" {
		t, err := parseDate(v)
		if err != nil {
			return filters, fmt.Errorf("invalid endDate: %w", err)
		}
		// A date-only upper bound means "through the end of that day".
		if len(v) == len("2006-01-02") {
			t = t.Add(24*time.Hour - time.Nanosecond)
		}
		filters.EndDate = &t
	}

	return filters, nil
}

func parseDate(v string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", v)
}

func totalPages(totalCount, limit int) int {
	return (totalCount + limit - 1) / limit
}

// ListAuditLogsHandler lists audit records with filtering, free-text search,
// and pagination. Admin only.
// Implements: GET /api/audit
func ListAuditLogsHandler(db *sql.DB) gin.HandlerFunc {
	auditRepo := repositories.NewAuditRepository(db)

	return func(c *gin.Context) {
		filters, err := parseFilters(c)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
			return
		}
		page, limit := parsePagination(c)

		logs, totalCount, err := auditRepo.ListAuditLogs(c.Request.Context(), filters, limit, (page-1)*limit)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to fetch audit logs"})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"logs":       logs,
			"totalCount": totalCount,
			"page":       page,
			"totalPages": totalPages(totalCount, limit),
		})
	}
}

// ResourceAuditLogsHandler lists the history of one resource, newest first.
// Admin only.
// Implements: GET /api/audit/resource/:resourceType/:resourceId
func ResourceAuditLogsHandler(db *sql.DB) gin.HandlerFunc {
	auditRepo := repositories.NewAuditRepository(db)

	return func(c *gin.Context) {
		resourceType := strings.ToUpper(c.Param("resourceType"))
		resourceID := c.Param("resourceId")
		_, limit := parsePagination(c)

		logs, err := auditRepo.ListResourceAuditLogs(c.Request.Context(), resourceType, resourceID, limit)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to fetch resource audit logs"})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"logs":         logs,
			"totalCount":   len(logs),
			"resourceType": resourceType,
			"resourceId":   resourceID,
		})
	}
}

// UserAuditLogsHandler lists one actor's history. The actor must exist: an
// unknown userId is a 404, not an empty page. Admin only.
// Implements: GET /api/audit/user/:userId
func UserAuditLogsHandler(db *sql.DB) gin.HandlerFunc {
	auditRepo := repositories.NewAuditRepository(db)
	userRepo := repositories.NewUserRepository(db)

	return func(c *gin.Context) {
		userID := c.Param("userId")
		page, limit := parsePagination(c)

		user, err := userRepo.GetUserByID(c.Request.Context(), userID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to look up user"})
			return
		}
		if user == nil {
			c.JSON(http.StatusNotFound, gin.H{"message": "User not found"})
			return
		}

		logs, totalCount, err := auditRepo.ListActorAuditLogs(c.Request.Context(), userID, limit, (page-1)*limit)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to fetch user audit logs"})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"logs":       logs,
			"totalCount": totalCount,
			"page":       page,
			"totalPages": totalPages(totalCount, limit),
			"user":       user,
		})
	}
}

// MyAuditLogsHandler lists the caller's own history. Open to any
// authenticated user.
// Implements: GET /api/audit/me
func MyAuditLogsHandler(db *sql.DB) gin.HandlerFunc {
	auditRepo := repositories.NewAuditRepository(db)

	return func(c *gin.Context) {
		callerID := c.GetString(middleware.ContextUserIDKey)
		page, limit := parsePagination(c)

		logs, totalCount, err := auditRepo.ListActorAuditLogs(c.Request.Context(), callerID, limit, (page-1)*limit)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to fetch audit logs"})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"logs":       logs,
			"totalCount": totalCount,
			"page":       page,
			"totalPages": totalPages(totalCount, limit),
		})
	}
}

// AuditStatsHandler serves the aggregate activity figures over a lookback
// window given in days (default 30). Admin only.
// Implements: GET /api/audit/stats
func AuditStatsHandler(db *sql.DB) gin.HandlerFunc {
	auditRepo := repositories.NewAuditRepository(db)

	return func(c *gin.Context) {
		days, err := strconv.Atoi(c.DefaultQuery("days", "30"))
		if err != nil || days < 1 {
			days = 30
		}

		now := time.Now()
		stats, err := auditRepo.GetAuditStats(c.Request.Context(),
			now.AddDate(0, 0, -days), now.Add(-24*time.Hour))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to fetch audit statistics"})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"period":            fmt.Sprintf("Last %d days", days),
			"totalLogs":         stats.TotalLogs,
			"recentActivity":    stats.RecentActivity,
			"actionBreakdown":   stats.ActionBreakdown,
			"resourceBreakdown": stats.ResourceBreakdown,
			"topUsers":          stats.TopActors,
		})
	}
}

// ExportAuditLogsHandler streams a CSV snapshot of the (filtered) audit trail,
// capped at the export row limit. Admin only.
// Implements: GET /api/audit/export
func ExportAuditLogsHandler(db *sql.DB) gin.HandlerFunc {
	auditRepo := repositories.NewAuditRepository(db)

	return func(c *gin.Context) {
		filters, err := parseFilters(c)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
			return
		}

		logs, err := auditRepo.ExportAuditLogs(c.Request.Context(), filters, audit.MaxExportRows)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to export audit logs"})
			return
		}

		c.Header("Content-Disposition", "attachment; filename="+audit.ExportFilename(time.Now()))
		c.Header("Content-Type", "text/csv")
		c.Status(http.StatusOK)
		if err := audit.WriteCSV(c.Writer, logs); err != nil {
			// Headers are already out; the client sees a truncated body.
			slog.Error("failed to stream audit export", "error", err)
			return
		}

		telemetry.AuditExportsTotal.Inc()
	}
}
