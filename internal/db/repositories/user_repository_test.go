package repositories

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"

	"github.com/ems-platform/ems-backend/internal/db/models"
)

var userCols = []string{
	"id", "name", "email", "password_hash", "role",
	"department_id", "created_by", "created_at", "updated_at",
}

func newUserRepo(t *testing.T) (*UserRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewUserRepository(db), mock
}

func sampleUserRow(id, email string) *sqlmock.Rows {
	return sqlmock.NewRows(userCols).
		AddRow(id, "Ada", email, "$2a$12$hash", "employee", nil, nil, time.Now(), time.Now())
}

// ---------------------------------------------------------------------------
// CreateUser
// ---------------------------------------------------------------------------

func TestCreateUser_AssignsIDAndTimestamps(t *testing.T) {
	repo, mock := newUserRepo(t)
	mock.ExpectExec("INSERT INTO users").
		WillReturnResult(sqlmock.NewResult(1, 1))

	user := &models.User{
		Name:         "Ada",
		Email:        "ada@example.com",
		PasswordHash: "$2a$12$hash",
		Role:         models.RoleEmployee,
	}
	if err := repo.CreateUser(context.Background(), user); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	if user.ID == "" {
		t.Error("ID not assigned")
	}
	if user.CreatedAt.IsZero() || user.UpdatedAt.IsZero() {
		t.Error("timestamps not assigned")
	}
}

// ---------------------------------------------------------------------------
// Lookups
// ---------------------------------------------------------------------------

func TestGetUserByID_Found(t *testing.T) {
	repo, mock := newUserRepo(t)
	mock.ExpectQuery(`SELECT (.+) FROM users WHERE id = \$1`).
		WithArgs("user-1").
		WillReturnRows(sampleUserRow("user-1", "ada@example.com"))

	user, err := repo.GetUserByID(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("GetUserByID: %v", err)
	}
	if user == nil || user.Email != "ada@example.com" {
		t.Errorf("user = %+v, want ada@example.com", user)
	}
}

func TestGetUserByID_NotFoundIsNilNil(t *testing.T) {
	repo, mock := newUserRepo(t)
	mock.ExpectQuery(`SELECT (.+) FROM users WHERE id = \$1`).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	user, err := repo.GetUserByID(context.Background(), "missing")
	if err != nil {
		t.Fatalf("GetUserByID: %v", err)
	}
	if user != nil {
		t.Errorf("user = %+v, want nil", user)
	}
}

func TestGetUserByEmail(t *testing.T) {
	repo, mock := newUserRepo(t)
	mock.ExpectQuery(`SELECT (.+) FROM users WHERE email = \$1`).
		WithArgs("ada@example.com").
		WillReturnRows(sampleUserRow("user-1", "ada@example.com"))

	user, err := repo.GetUserByEmail(context.Background(), "ada@example.com")
	if err != nil {
		t.Fatalf("GetUserByEmail: %v", err)
	}
	if user == nil || user.ID != "user-1" {
		t.Errorf("user = %+v, want user-1", user)
	}
}

// ---------------------------------------------------------------------------
// ListUsers
// ---------------------------------------------------------------------------

func TestListUsers_RoleFilter(t *testing.T) {
	repo, mock := newUserRepo(t)
	mock.ExpectQuery(`SELECT (.+) FROM users WHERE role = \$1 ORDER BY name`).
		WithArgs("admin").
		WillReturnRows(sampleUserRow("user-1", "ada@example.com"))

	users, err := repo.ListUsers(context.Background(), "admin")
	if err != nil {
		t.Fatalf("ListUsers: %v", err)
	}
	if len(users) != 1 {
		t.Errorf("len(users) = %d, want 1", len(users))
	}
}

func TestListUsers_NoFilter(t *testing.T) {
	repo, mock := newUserRepo(t)
	mock.ExpectQuery(`SELECT (.+) FROM users ORDER BY name`).
		WillReturnRows(sqlmock.NewRows(userCols))

	users, err := repo.ListUsers(context.Background(), "")
	if err != nil {
		t.Fatalf("ListUsers: %v", err)
	}
	if len(users) != 0 {
		t.Errorf("len(users) = %d, want 0", len(users))
	}
}

// ---------------------------------------------------------------------------
// UpdateUser / DeleteUser
// ---------------------------------------------------------------------------

func TestUpdateUser_NoRowsIsErrNoRows(t *testing.T) {
	repo, mock := newUserRepo(t)
	mock.ExpectExec("UPDATE users SET").
		WillReturnResult(sqlmock.NewResult(0, 0))

	user := &models.User{ID: "missing", Name: "Ada", Role: models.RoleEmployee}
	err := repo.UpdateUser(context.Background(), user)
	if !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("UpdateUser = %v, want sql.ErrNoRows", err)
	}
}

func TestDeleteUser_Success(t *testing.T) {
	repo, mock := newUserRepo(t)
	mock.ExpectExec("DELETE FROM users WHERE id").
		WithArgs("user-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.DeleteUser(context.Background(), "user-1"); err != nil {
		t.Fatalf("DeleteUser: %v", err)
	}
}

func TestDeleteUser_NoRowsIsErrNoRows(t *testing.T) {
	repo, mock := newUserRepo(t)
	mock.ExpectExec("DELETE FROM users WHERE id").
		WithArgs("missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.DeleteUser(context.Background(), "missing")
	if !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("DeleteUser = %v, want sql.ErrNoRows", err)
	}
}
