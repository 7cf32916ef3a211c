// Package api wires together all HTTP routes for the EMS backend.
//
// Route grouping philosophy:
//   - /health, /version, and /api/auth/login are the only public routes.
//     Login carries a stricter per-IP rate limit than the rest of the API.
//   - Everything under /api requires a valid JWT; admin-scoped groups add the
//     RBAC check on top.
//   - The audit interceptor is installed on the authenticated group, after
//     auth, so it observes every identified call including RBAC denials.
package api

import (
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/ems-platform/ems-backend/internal/api/auditlogs"
	"github.com/ems-platform/ems-backend/internal/api/authn"
	"github.com/ems-platform/ems-backend/internal/api/departments"
	"github.com/ems-platform/ems-backend/internal/api/tasks"
	"github.com/ems-platform/ems-backend/internal/api/users"
	"github.com/ems-platform/ems-backend/internal/audit"
	"github.com/ems-platform/ems-backend/internal/config"
	"github.com/ems-platform/ems-backend/internal/db/repositories"
	"github.com/ems-platform/ems-backend/internal/middleware"
)

// BackgroundServices holds references to background resources that must be
// stopped during graceful shutdown. The caller (cmd/server) is responsible
// for calling Shutdown() after the HTTP server has drained.
type BackgroundServices struct {
	recorder *audit.Recorder
}

// Shutdown stops the audit recorder, draining whatever records are still
// queued so a clean shutdown loses nothing.
func (bg *BackgroundServices) Shutdown() {
	slog.Info("stopping background services")
	if bg.recorder != nil {
		bg.recorder.Stop()
	}
	slog.Info("all background services stopped")
}

// NewRouter creates and configures the Gin router. rdb may be nil when Redis
// is not configured; rate limiting is skipped in that case.
func NewRouter(cfg *config.Config, db *sql.DB, rdb *redis.Client) (*gin.Engine, *BackgroundServices) {
	router := gin.New()

	auditRepo := repositories.NewAuditRepository(db)
	userRepo := repositories.NewUserRepository(db)

	recorder := audit.NewRecorder(auditRepo, cfg.Audit.QueueSize)
	bg := &BackgroundServices{recorder: recorder}

	router.Use(gin.Recovery())
	router.Use(middleware.SecurityHeadersMiddleware(middleware.APISecurityHeadersConfig()))
	router.Use(middleware.CORSMiddleware(cfg.Security.CORS))
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.MetricsMiddleware())
	router.Use(LoggerMiddleware())

	rateLimitingOn := cfg.Security.RateLimiting.Enabled && rdb != nil
	if cfg.Security.RateLimiting.Enabled && rdb == nil {
		slog.Warn("rate limiting enabled but redis is not configured, skipping")
	}

	router.GET("/health", healthCheckHandler(db))
	router.GET("/version", versionHandler())

	// Login is public and carries its own, stricter limiter.
	login := router.Group("/api/auth")
	if rateLimitingOn {
		authLimiter := middleware.NewRateLimiter(rdb, middleware.RateLimitConfig{
			RequestsPerMinute: cfg.Security.RateLimiting.AuthRequestsPerMinute,
			Burst:             cfg.Security.RateLimiting.AuthRequestsPerMinute,
		})
		login.Use(middleware.RateLimitMiddleware(authLimiter))
	}
	login.POST("/login", authn.LoginHandler(db, cfg, recorder))

	// Everything else requires an authenticated caller.
	authed := router.Group("/api")
	if rateLimitingOn {
		apiLimiter := middleware.NewRateLimiter(rdb, middleware.RateLimitConfig{
			RequestsPerMinute: cfg.Security.RateLimiting.RequestsPerMinute,
			Burst:             cfg.Security.RateLimiting.Burst,
		})
		authed.Use(middleware.RateLimitMiddleware(apiLimiter))
	}
	authed.Use(middleware.AuthMiddleware(userRepo))
	if cfg.Audit.Enabled {
		authed.Use(middleware.AuditMiddleware(recorder, cfg.Audit.MaxBodyBytes))
	}

	authed.POST("/auth/logout", authn.LogoutHandler())
	authed.GET("/auth/me", authn.MeHandler())
	authed.POST("/auth/register", middleware.RequireAdmin(), authn.RegisterHandler(db, cfg))

	userRoutes := authed.Group("/users", middleware.RequireAdmin())
	{
		userRoutes.GET("", users.ListUsersHandler(db))
		userRoutes.GET("/:id", users.GetUserHandler(db))
		userRoutes.PUT("/:id", users.UpdateUserHandler(db))
		userRoutes.DELETE("/:id", users.DeleteUserHandler(db))
	}

	taskRoutes := authed.Group("/tasks")
	{
		taskRoutes.POST("", middleware.RequireAdmin(), tasks.CreateTaskHandler(db))
		taskRoutes.GET("", tasks.ListTasksHandler(db))
		taskRoutes.GET("/:id", tasks.GetTaskHandler(db))
		taskRoutes.PUT("/:id", tasks.UpdateTaskHandler(db))
		taskRoutes.DELETE("/:id", middleware.RequireAdmin(), tasks.DeleteTaskHandler(db))
	}

	deptRoutes := authed.Group("/departments")
	{
		deptRoutes.GET("", departments.ListDepartmentsHandler(db))
		deptRoutes.GET("/:id", departments.GetDepartmentHandler(db))
		deptRoutes.POST("", middleware.RequireAdmin(), departments.CreateDepartmentHandler(db))
		deptRoutes.PUT("/:id", middleware.RequireAdmin(), departments.UpdateDepartmentHandler(db))
		deptRoutes.DELETE("/:id", middleware.RequireAdmin(), departments.DeleteDepartmentHandler(db))
	}

	auditRoutes := authed.Group("/audit")
	{
		auditRoutes.GET("/me", auditlogs.MyAuditLogsHandler(db))

		adminAudit := auditRoutes.Group("", middleware.RequireAdmin())
		adminAudit.GET("", auditlogs.ListAuditLogsHandler(db))
		adminAudit.GET("/resource/:resourceType/:resourceId", auditlogs.ResourceAuditLogsHandler(db))
		adminAudit.GET("/user/:userId", auditlogs.UserAuditLogsHandler(db))
		adminAudit.GET("/stats", auditlogs.AuditStatsHandler(db))
		adminAudit.GET("/export", auditlogs.ExportAuditLogsHandler(db))
	}

	return router, bg
}

// healthCheckHandler reports liveness: process up, database reachable.
func healthCheckHandler(db *sql.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := db.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "unhealthy",
				"error":  "database connection failed",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status": "healthy",
			"time":   time.Now().UTC().Format(time.RFC3339),
		})
	}
}

func versionHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"version":     "0.1.0",
			"api_version": "v1",
		})
	}
}

// LoggerMiddleware logs one structured record per request.
func LoggerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		requestID, _ := c.Get(middleware.RequestIDKey)
		slog.LogAttrs(
			c.Request.Context(),
			slog.LevelInfo,
			"http request",
			slog.String("method", c.Request.Method),
			slog.String("path", path),
			slog.String("query", query),
			slog.Int("status", c.Writer.Status()),
			slog.Int("size", c.Writer.Size()),
			slog.Duration("latency", time.Since(start)),
			slog.String("ip", c.ClientIP()),
			slog.String("request_id", fmt.Sprintf("%v", requestID)),
			slog.String("user_agent", c.Request.UserAgent()),
		)
	}
}
