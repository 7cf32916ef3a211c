package middleware

import (
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"

	"github.com/ems-platform/ems-backend/internal/auth"
	"github.com/ems-platform/ems-backend/internal/db/repositories"
)

func TestMain(m *testing.M) {
	// The sync.Once in the auth package captures this on first use.
	os.Setenv("EMS_JWT_SECRET", "test-jwt-secret-that-is-32-chars-!")
	os.Exit(m.Run())
}

var userCols = []string{
	"id", "name", "email", "password_hash", "role",
	"department_id", "created_by", "created_at", "updated_at",
}

func newAuthTestRouter(t *testing.T) (*gin.Engine, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	router := gin.New()
	router.Use(AuthMiddleware(repositories.NewUserRepository(db)))
	router.GET("/whoami", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"id":   c.GetString(ContextUserIDKey),
			"role": c.GetString(ContextUserRoleKey),
		})
	})
	return router, mock
}

func doAuthRequest(router *gin.Engine, header string) *httptest.ResponseRecorder {
	req := httptest.NewRequest("GET", "/whoami", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

// ---------------------------------------------------------------------------
// Header validation
// ---------------------------------------------------------------------------

func TestAuthMiddleware_MissingHeader(t *testing.T) {
	router, _ := newAuthTestRouter(t)
	if w := doAuthRequest(router, ""); w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_NonBearerHeader(t *testing.T) {
	router, _ := newAuthTestRouter(t)
	if w := doAuthRequest(router, "Basic dXNlcg=="); w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_GarbageToken(t *testing.T) {
	router, _ := newAuthTestRouter(t)
	if w := doAuthRequest(router, "Bearer not-a-jwt"); w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

// ---------------------------------------------------------------------------
// Token + user row
// ---------------------------------------------------------------------------

func TestAuthMiddleware_ValidTokenLoadsUser(t *testing.T) {
	router, mock := newAuthTestRouter(t)

	token, err := auth.GenerateJWT("user-1", "ada@example.com", "admin", time.Hour)
	if err != nil {
		t.Fatalf("GenerateJWT: %v", err)
	}

	mock.ExpectQuery(`SELECT (.+) FROM users WHERE id = \$1`).
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows(userCols).
			AddRow("user-1", "Ada", "ada@example.com", "hash", "admin", nil, nil, time.Now(), time.Now()))

	w := doAuthRequest(router, "Bearer "+token)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}
}

func TestAuthMiddleware_DeletedUserRejected(t *testing.T) {
	router, mock := newAuthTestRouter(t)

	token, err := auth.GenerateJWT("ghost", "ghost@example.com", "admin", time.Hour)
	if err != nil {
		t.Fatalf("GenerateJWT: %v", err)
	}

	// Valid token, but the row is gone: access ends immediately.
	mock.ExpectQuery(`SELECT (.+) FROM users WHERE id = \$1`).
		WithArgs("ghost").
		WillReturnRows(sqlmock.NewRows(userCols))

	w := doAuthRequest(router, "Bearer "+token)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

// ---------------------------------------------------------------------------
// RBAC
// ---------------------------------------------------------------------------

func TestRequireAdmin(t *testing.T) {
	cases := []struct {
		name string
		role string
		want int
	}{
		{"admin passes", "admin", http.StatusOK},
		{"employee forbidden", "employee", http.StatusForbidden},
		{"no identity forbidden", "", http.StatusForbidden},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			router := gin.New()
			if tc.role != "" {
				router.Use(identity("user-1", "Ada", "ada@example.com", tc.role))
			}
			router.Use(RequireAdmin())
			router.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest("GET", "/", nil))
			if w.Code != tc.want {
				t.Errorf("status = %d, want %d", w.Code, tc.want)
			}
		})
	}
}
