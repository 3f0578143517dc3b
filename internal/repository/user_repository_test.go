package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/iliyamo/chat-platform/internal/model"
	"github.com/iliyamo/chat-platform/internal/utils"
)

func TestAuthenticateBuildsSnapshot(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	hash, err := utils.HashPassword("hunter2", 4)
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	rows := sqlmock.NewRows([]string{"id", "username", "hashed_password", "is_site_admin",
		"m_id", "server_id", "role_id", "is_admin"}).
		AddRow(7, "sam", hash, false, 500, 10, 100, true).
		AddRow(7, "sam", hash, false, 501, 11, 200, false)
	mock.ExpectQuery("FROM users u").WithArgs("sam").WillReturnRows(rows)

	snap, err := NewUserRepo(db).Authenticate(context.Background(), "sam", "hunter2")
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if snap.UserID != 7 || snap.Username != "sam" || snap.IsSiteAdmin {
		t.Fatalf("unexpected identity: %+v", snap)
	}
	if len(snap.Memberships) != 2 {
		t.Fatalf("expected 2 memberships, got %d", len(snap.Memberships))
	}
	if !snap.Memberships[0].IsAdmin || snap.Memberships[0].ServerID != 10 {
		t.Fatalf("first membership lost its standing: %+v", snap.Memberships[0])
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

// An unknown username and a wrong password must be indistinguishable from the
// caller's side.
func TestAuthenticateFailuresAreUniform(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	repo := NewUserRepo(db)

	mock.ExpectQuery("FROM users u").WithArgs("ghost").
		WillReturnRows(sqlmock.NewRows([]string{"id", "username", "hashed_password", "is_site_admin",
			"m_id", "server_id", "role_id", "is_admin"}))
	_, unknownErr := repo.Authenticate(context.Background(), "ghost", "whatever")

	hash, err := utils.HashPassword("hunter2", 4)
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	mock.ExpectQuery("FROM users u").WithArgs("sam").
		WillReturnRows(sqlmock.NewRows([]string{"id", "username", "hashed_password", "is_site_admin",
			"m_id", "server_id", "role_id", "is_admin"}).
			AddRow(7, "sam", hash, false, nil, nil, nil, nil))
	_, wrongErr := repo.Authenticate(context.Background(), "sam", "not-hunter2")

	if !errors.Is(unknownErr, ErrBadCredentials) || !errors.Is(wrongErr, ErrBadCredentials) {
		t.Fatalf("expected ErrBadCredentials for both, got %v and %v", unknownErr, wrongErr)
	}
	if unknownErr.Error() != wrongErr.Error() {
		t.Fatalf("failure modes are distinguishable: %q vs %q", unknownErr, wrongErr)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUserRemoveClearsAttributionBeforeDelete(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id, username, picture_url, is_site_admin, joining_date, last_on").
		WithArgs(uint64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "username", "picture_url", "is_site_admin", "joining_date", "last_on"}).
			AddRow(7, "sam", nil, false, time.Now(), nil))
	mock.ExpectExec("UPDATE reactions SET member_id = NULL").
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec("UPDATE posts SET member_id = NULL").
		WillReturnResult(sqlmock.NewResult(0, 12))
	mock.ExpectExec("DELETE FROM memberships").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec("DELETE FROM users").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	u, err := NewUserRepo(db).Remove(context.Background(), 7)
	if err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if u.ID != 7 || u.Username != "sam" {
		t.Fatalf("unexpected removed user: %+v", u)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUserCreateDuplicateUsername(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectExec("INSERT INTO users").
		WillReturnError(errors.New("Error 1062 (23000): Duplicate entry 'sam' for key 'users.username'"))

	if _, err := NewUserRepo(db).Create(context.Background(), "sam", "hunter2", nil, false, 4); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUpdateProfileRejectsEmptyPatch(t *testing.T) {
	db, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	if _, err := NewUserRepo(db).UpdateProfile(context.Background(), 7, model.UserPatch{}); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}
