// audit.go provides the audit interceptor: Gin middleware that observes every
// authenticated request/response pair and submits one audit record per call to
// the recorder's bounded queue. The response delivered to the caller is never
// modified or delayed, and no failure in here ever reaches the request path.
package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ems-platform/ems-backend/internal/audit"
	"github.com/ems-platform/ems-backend/internal/db/models"
)

// captureMethods are the verbs whose request bodies are buffered for the
// classifier's change-set extraction.
var captureMethods = map[string]bool{
	"POST":  true,
	"PUT":   true,
	"PATCH": true,
}

// bodyCaptureWriter tees response bytes into a bounded buffer while passing
// them through to the real writer untouched.
type bodyCaptureWriter struct {
	gin.ResponseWriter
	buf       bytes.Buffer
	limit     int
	truncated bool
}

func (w *bodyCaptureWriter) capture(b []byte) {
	if w.truncated {
		return
	}
	if w.buf.Len()+len(b) > w.limit {
		w.truncated = true
		return
	}
	w.buf.Write(b)
}

func (w *bodyCaptureWriter) Write(b []byte) (int, error) {
	w.capture(b)
	return w.ResponseWriter.Write(b)
}

func (w *bodyCaptureWriter) WriteString(s string) (int, error) {
	w.capture([]byte(s))
	return w.ResponseWriter.WriteString(s)
}

// AuditMiddleware returns the audit interceptor. It observes the completed
// call (identity, method, path, request body, response body, status, elapsed
// time), classifies it, and submits one record to the sink. Requests without
// an authenticated identity are not audited.
//
// Submission is non-blocking and best-effort: the sink drops on overflow and
// the worker behind it swallows store failures. Whatever happens, the caller
// receives the handler's response unchanged.
func AuditMiddleware(sink audit.Sink, maxBodyBytes int) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == "OPTIONS" {
			c.Next()
			return
		}

		start := time.Now()

		// Buffer the request body for change-set extraction, then restore it
		// so binding in the handler sees the full stream.
		var reqBody map[string]interface{}
		if c.Request.Body != nil && captureMethods[c.Request.Method] {
			raw, err := io.ReadAll(c.Request.Body)
			if err == nil {
				c.Request.Body = io.NopCloser(bytes.NewReader(raw))
				if len(raw) > 0 && len(raw) <= maxBodyBytes {
					// Non-JSON bodies are simply not captured.
					_ = json.Unmarshal(raw, &reqBody)
				}
			}
		}

		w := &bodyCaptureWriter{ResponseWriter: c.Writer, limit: maxBodyBytes}
		c.Writer = w

		c.Next()

		// Unauthenticated and public traffic is out of audit scope.
		userID := c.GetString(ContextUserIDKey)
		if userID == "" {
			return
		}

		emitAuditRecord(c, sink, w, reqBody, time.Since(start))
	}
}

// emitAuditRecord classifies the observed call and submits the record. All
// failures are contained here; by the time this runs the response has already
// been written, and nothing may disturb the request path retroactively.
func emitAuditRecord(c *gin.Context, sink audit.Sink, w *bodyCaptureWriter, reqBody map[string]interface{}, elapsed time.Duration) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("recovered panic in audit interceptor", "panic", r, "endpoint", c.Request.URL.Path)
		}
	}()

	var response interface{}
	if !w.truncated && w.buf.Len() > 0 &&
		strings.Contains(w.Header().Get("Content-Type"), "application/json") {
		_ = json.Unmarshal(w.buf.Bytes(), &response)
	}

	cls := audit.Classify(audit.Input{
		Method:      c.Request.Method,
		Path:        c.Request.URL.Path,
		PathID:      c.Param("id"),
		RequestBody: reqBody,
		Response:    response,
	})

	metadata := map[string]interface{}{
		"responseTime": elapsed.Milliseconds(),
	}
	if query := c.Request.URL.Query(); len(query) > 0 {
		params := make(map[string]interface{}, len(query))
		for k, v := range query {
			if len(v) == 1 {
				params[k] = v[0]
			} else {
				params[k] = v
			}
		}
		metadata["queryParams"] = params
	}
	if reqBody != nil {
		metadata["bodyParams"] = audit.Sanitize(reqBody)
	}

	status := c.Writer.Status()
	record := &models.AuditLog{
		ActorID:      c.GetString(ContextUserIDKey),
		ActorName:    c.GetString(ContextUserNameKey),
		ActorEmail:   c.GetString(ContextUserEmailKey),
		Action:       cls.Action,
		ResourceType: cls.ResourceType,
		ResourceID:   cls.ResourceID,
		ResourceName: cls.ResourceName,
		Method:       c.Request.Method,
		Endpoint:     c.Request.URL.Path,
		StatusCode:   &status,
		Changes:      cls.Changes,
		Metadata:     metadata,
	}

	if ip := c.ClientIP(); ip != "" {
		record.IPAddress = &ip
	}
	if ua := c.Request.UserAgent(); ua != "" {
		record.UserAgent = &ua
	}

	sink.Submit(record)
}
