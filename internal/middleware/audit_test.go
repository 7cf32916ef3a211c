package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/ems-platform/ems-backend/internal/db/models"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// captureSink collects submitted records.
type captureSink struct {
	mu      sync.Mutex
	records []*models.AuditLog
	accept  bool
}

func (s *captureSink) Submit(log *models.AuditLog) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, log)
	return s.accept
}

func (s *captureSink) all() []*models.AuditLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*models.AuditLog(nil), s.records...)
}

// identity simulates the auth middleware for a logged-in caller.
func identity(userID, name, email, role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(ContextUserIDKey, userID)
		c.Set(ContextUserNameKey, name)
		c.Set(ContextUserEmailKey, email)
		c.Set(ContextUserRoleKey, role)
		c.Next()
	}
}

func newAuditTestRouter(sink *captureSink, authed bool) *gin.Engine {
	router := gin.New()
	if authed {
		router.Use(identity("user-1", "Ada", "ada@example.com", "admin"))
	}
	router.Use(AuditMiddleware(sink, 65536))

	router.GET("/api/tasks", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"tasks": []gin.H{{"id": "t-1"}, {"id": "t-2"}}})
	})
	router.PUT("/api/tasks/:id", func(c *gin.Context) {
		body, _ := io.ReadAll(c.Request.Body)
		if len(body) == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"message": "empty body"})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"message": "Task updated",
			"task":    gin.H{"id": c.Param("id"), "title": "Ship it"},
		})
	})
	router.DELETE("/api/users/:id", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "User deleted"})
	})
	return router
}

// ---------------------------------------------------------------------------
// Record emission
// ---------------------------------------------------------------------------

func TestAuditMiddleware_RecordsAuthenticatedCall(t *testing.T) {
	sink := &captureSink{accept: true}
	router := newAuditTestRouter(sink, true)

	req := httptest.NewRequest("PUT", "/api/tasks/t-9",
		strings.NewReader(`{"status":"completed","password":"hunter2"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "test-agent")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	records := sink.all()
	if len(records) != 1 {
		t.Fatalf("submitted %d records, want 1", len(records))
	}
	rec := records[0]

	if rec.ActorID != "user-1" || rec.ActorName != "Ada" || rec.ActorEmail != "ada@example.com" {
		t.Errorf("actor = %s/%s/%s, want user-1/Ada/ada@example.com",
			rec.ActorID, rec.ActorName, rec.ActorEmail)
	}
	if rec.Action != models.ActionUpdate {
		t.Errorf("Action = %s, want UPDATE", rec.Action)
	}
	if rec.ResourceType != models.ResourceTask {
		t.Errorf("ResourceType = %s, want TASK", rec.ResourceType)
	}
	if rec.Method != "PUT" || rec.Endpoint != "/api/tasks/t-9" {
		t.Errorf("call = %s %s", rec.Method, rec.Endpoint)
	}
	if rec.StatusCode == nil || *rec.StatusCode != http.StatusOK {
		t.Errorf("StatusCode = %v, want 200", rec.StatusCode)
	}
	if rec.UserAgent == nil || *rec.UserAgent != "test-agent" {
		t.Errorf("UserAgent = %v, want test-agent", rec.UserAgent)
	}
}

func TestAuditMiddleware_NestedEntityWinsExtraction(t *testing.T) {
	sink := &captureSink{accept: true}
	router := newAuditTestRouter(sink, true)

	req := httptest.NewRequest("PUT", "/api/tasks/route-id",
		strings.NewReader(`{"status":"completed"}`))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	rec := sink.all()[0]
	// ID comes from the route parameter, name from the wrapped task entity.
	if rec.ResourceID == nil || *rec.ResourceID != "route-id" {
		t.Errorf("ResourceID = %v, want route-id", rec.ResourceID)
	}
	if rec.ResourceName == nil || *rec.ResourceName != "Ship it" {
		t.Errorf("ResourceName = %v, want Ship it", rec.ResourceName)
	}
}

func TestAuditMiddleware_ChangesSanitized(t *testing.T) {
	sink := &captureSink{accept: true}
	router := newAuditTestRouter(sink, true)

	req := httptest.NewRequest("PUT", "/api/tasks/t-1",
		strings.NewReader(`{"status":"completed","password":"hunter2"}`))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	rec := sink.all()[0]
	if rec.Changes == nil {
		t.Fatal("Changes = nil for an update")
	}
	if _, ok := rec.Changes["password"]; ok {
		t.Error("password leaked into Changes")
	}
	if rec.Changes["status"] != "completed" {
		t.Errorf("Changes[status] = %v, want completed", rec.Changes["status"])
	}

	body, ok := rec.Metadata["bodyParams"].(map[string]interface{})
	if !ok {
		t.Fatal("metadata bodyParams missing")
	}
	if _, leak := body["password"]; leak {
		t.Error("password leaked into metadata bodyParams")
	}
}

func TestAuditMiddleware_MetadataIncludesResponseTimeAndQuery(t *testing.T) {
	sink := &captureSink{accept: true}
	router := newAuditTestRouter(sink, true)

	req := httptest.NewRequest("GET", "/api/tasks?status=pending", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	rec := sink.all()[0]
	if _, ok := rec.Metadata["responseTime"]; !ok {
		t.Error("metadata responseTime missing")
	}
	params, ok := rec.Metadata["queryParams"].(map[string]interface{})
	if !ok || params["status"] != "pending" {
		t.Errorf("queryParams = %v, want status=pending", rec.Metadata["queryParams"])
	}
}

func TestAuditMiddleware_ListSummaryName(t *testing.T) {
	sink := &captureSink{accept: true}
	router := newAuditTestRouter(sink, true)

	req := httptest.NewRequest("GET", "/api/tasks", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	rec := sink.all()[0]
	if rec.Action != models.ActionRead {
		t.Errorf("Action = %s, want READ", rec.Action)
	}
	if rec.ResourceName == nil || *rec.ResourceName != "2 tasks" {
		t.Errorf("ResourceName = %v, want \"2 tasks\"", rec.ResourceName)
	}
}

// ---------------------------------------------------------------------------
// Skip conditions
// ---------------------------------------------------------------------------

func TestAuditMiddleware_SkipsUnauthenticated(t *testing.T) {
	sink := &captureSink{accept: true}
	router := newAuditTestRouter(sink, false)

	req := httptest.NewRequest("GET", "/api/tasks", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if got := len(sink.all()); got != 0 {
		t.Errorf("submitted %d records for anonymous call, want 0", got)
	}
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
}

// ---------------------------------------------------------------------------
// Request-path isolation
// ---------------------------------------------------------------------------

func TestAuditMiddleware_ResponseUnmodified(t *testing.T) {
	sink := &captureSink{accept: true}
	router := newAuditTestRouter(sink, true)

	req := httptest.NewRequest("GET", "/api/tasks", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	want := `{"tasks":[{"id":"t-1"},{"id":"t-2"}]}`
	if w.Body.String() != want {
		t.Errorf("response body = %q, want %q", w.Body.String(), want)
	}
}

func TestAuditMiddleware_RequestBodyRestoredForHandler(t *testing.T) {
	sink := &captureSink{accept: true}
	router := newAuditTestRouter(sink, true)

	// The handler 400s on an empty body, so a 200 proves the body the
	// interceptor consumed was put back.
	req := httptest.NewRequest("PUT", "/api/tasks/t-1",
		strings.NewReader(`{"status":"completed"}`))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200 (request body was not restored)", w.Code)
	}
}

func TestAuditMiddleware_DroppedRecordDoesNotAffectResponse(t *testing.T) {
	sink := &captureSink{accept: false} // queue full
	router := newAuditTestRouter(sink, true)

	req := httptest.NewRequest("DELETE", "/api/users/u-2", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200 regardless of audit drop", w.Code)
	}
	if got := len(sink.all()); got != 1 {
		t.Errorf("Submit called %d times, want 1", got)
	}
}
