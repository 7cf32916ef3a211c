package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/ems-platform/ems-backend/internal/db/models"
	"github.com/ems-platform/ems-backend/internal/safego"
	"github.com/ems-platform/ems-backend/internal/telemetry"
)

// Appender is the slice of the audit store the recorder needs.
type Appender interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// Sink accepts audit records for asynchronous persistence. Submit never
// blocks; the return value reports whether the record was accepted.
type Sink interface {
	Submit(log *models.AuditLog) bool
}

// writeTimeout bounds each store append so a hung database cannot back the
// queue up forever.
const writeTimeout = 5 * time.Second

// Recorder is the bounded fire-and-forget write path between the interceptor
// and the audit store. Records are submitted to a buffered channel and drained
// by a single worker goroutine, so the request path never waits on, or sees
// failures from, audit persistence.
//
// Overflow policy is drop-newest: when the queue is full Submit discards the
// record, increments the drop counter, and returns false. Failed appends are
// logged and counted, then discarded; there is no retry. The trail is
// best-effort by design.
type Recorder struct {
	store Appender
	queue chan *models.AuditLog
	done  chan struct{}
}

// NewRecorder creates a Recorder with the given queue capacity and starts its
// worker. Call Stop during shutdown to drain the queue.
func NewRecorder(store Appender, queueSize int) *Recorder {
	if queueSize < 1 {
		queueSize = 1
	}
	r := &Recorder{
		store: store,
		queue: make(chan *models.AuditLog, queueSize),
		done:  make(chan struct{}),
	}
	safego.Go(r.run)
	return r
}

// Submit enqueues one record for persistence. It never blocks: when the queue
// is full the record is dropped and false is returned.
func (r *Recorder) Submit(log *models.AuditLog) bool {
	select {
	case r.queue <- log:
		telemetry.AuditQueueDepth.Set(float64(len(r.queue)))
		return true
	default:
		telemetry.AuditQueueDropped.Inc()
		slog.Warn("audit queue full, dropping record",
			"action", log.Action,
			"resource_type", log.ResourceType,
			"endpoint", log.Endpoint)
		return false
	}
}

// Stop closes the queue and waits for the worker to drain buffered records.
// Submit must not be called after Stop.
func (r *Recorder) Stop() {
	close(r.queue)
	<-r.done
}

// run is the worker loop. It exits after the queue is closed and drained.
func (r *Recorder) run() {
	defer close(r.done)

	for log := range r.queue {
		telemetry.AuditQueueDepth.Set(float64(len(r.queue)))
		r.write(log)
	}
}

// write performs one store append. Errors are contained here: logged, counted,
// and otherwise discarded.
func (r *Recorder) write(log *models.AuditLog) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	if err := r.store.CreateAuditLog(ctx, log); err != nil {
		telemetry.AuditWriteFailures.Inc()
		slog.Error("failed to append audit record",
			"error", err,
			"action", log.Action,
			"resource_type", log.ResourceType,
			"actor_id", log.ActorID)
		return
	}

	telemetry.AuditRecordsWritten.WithLabelValues(log.Action).Inc()
}
