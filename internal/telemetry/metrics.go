// Package telemetry provides application-level observability for the EMS backend.
//
// All metrics are registered against the default Prometheus registry and are
// served by the side-channel HTTP server started by cmd/server:
//
//	GET http://<host>:<EMS_TELEMETRY_METRICS_PROMETHEUS_PORT>/metrics
//
// Default port: 9090. The endpoint is NOT served by the Gin router, so it stays
// off the public ingress and is unaffected by rate limiting middleware.
//
// HTTP metrics use c.FullPath() (route template such as /api/tasks/:id) rather
// than the raw request URL to prevent unbounded label cardinality from
// user-supplied path segments.
//
// The audit_* metrics are the operator-visible channel for the audit trail's
// best-effort persistence: a rising audit_records_dropped_total or
// audit_write_failures_total is the signal that audit records are being lost.
package telemetry

import (
	"database/sql"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics — labelled by method, route template, and status code.
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests processed, by method, route template, and status code.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Histogram of HTTP request latencies, by method and route template.",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"method", "path"},
	)
)

// Audit trail metrics.
//
// AuditRecordsWritten counts records durably appended to the audit log,
// labelled by action so dashboards can break activity down without querying
// the database. AuditWriteFailures counts append attempts the store rejected;
// those records are gone (the trail is best-effort by design). AuditQueueDropped
// counts records discarded because the in-process write queue was full.
// AuditQueueDepth is the instantaneous number of records waiting to be written.
var (
	AuditRecordsWritten = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "audit_records_written_total",
			Help: "Total number of audit records successfully appended to the log, by action.",
		},
		[]string{"action"},
	)

	AuditWriteFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "audit_write_failures_total",
			Help: "Total number of audit record appends rejected by the store.",
		},
	)

	AuditQueueDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "audit_records_dropped_total",
			Help: "Total number of audit records dropped because the write queue was full.",
		},
	)

	AuditQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "audit_queue_depth",
			Help: "Number of audit records currently buffered in the write queue.",
		},
	)

	AuditExportsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "audit_exports_total",
			Help: "Total number of audit CSV exports served.",
		},
	)
)

// Database metrics.
var (
	DBConnectionsOpen = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "db_connections_open",
			Help: "Number of open connections in the database pool.",
		},
	)
)

// StartDBPoolMetrics polls the connection pool every interval and exports the
// open-connection count. It runs until the process exits; the goroutine is
// cheap and there is exactly one per process.
func StartDBPoolMetrics(db *sql.DB, interval time.Duration) {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for range ticker.C {
			stats := db.Stats()
			DBConnectionsOpen.Set(float64(stats.OpenConnections))
		}
	}()
	slog.Debug("database pool metrics collector started", "interval", interval.String())
}
