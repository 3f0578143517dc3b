package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestServerBootstrapCommitsAllSteps(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO servers").
		WithArgs("lounge", nil, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(10, 1))
	mock.ExpectExec("INSERT INTO roles").
		WithArgs("admin", int64(10), sqlmock.AnyArg(), true).
		WillReturnResult(sqlmock.NewResult(100, 1))
	mock.ExpectExec("INSERT INTO roles").
		WithArgs("member", int64(10), sqlmock.AnyArg(), false).
		WillReturnResult(sqlmock.NewResult(101, 1))
	mock.ExpectQuery("SELECT username, picture_url FROM users").
		WithArgs(uint64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"username", "picture_url"}).AddRow("sam", nil))
	mock.ExpectExec("INSERT INTO memberships").
		WithArgs(uint64(7), int64(10), int64(100), "sam", nil, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(500, 1))
	mock.ExpectExec("INSERT INTO rooms").
		WithArgs("Main Room", int64(10), "text").
		WillReturnResult(sqlmock.NewResult(900, 1))
	mock.ExpectExec("INSERT INTO access").
		WithArgs(int64(100), int64(900), true).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	out, err := NewServerRepo(db).Bootstrap(context.Background(), "lounge", nil, 7)
	if err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}
	if out.Server.ID != 10 || out.Server.Name != "lounge" {
		t.Fatalf("unexpected server: %+v", out.Server)
	}
	if !out.AdminRole.IsAdmin || out.MemberRole.IsAdmin {
		t.Fatalf("seed roles carry wrong admin flags: %+v %+v", out.AdminRole, out.MemberRole)
	}
	if out.Founder.Role.ID != out.AdminRole.ID {
		t.Fatalf("founder not on admin role: %+v", out.Founder)
	}
	if out.DefaultRoom.Name != "Main Room" || out.DefaultRoom.ServerID != 10 {
		t.Fatalf("unexpected default room: %+v", out.DefaultRoom)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestServerBootstrapRollsBackOnRoomFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO servers").
		WillReturnResult(sqlmock.NewResult(10, 1))
	mock.ExpectExec("INSERT INTO roles").
		WillReturnResult(sqlmock.NewResult(100, 1))
	mock.ExpectExec("INSERT INTO roles").
		WillReturnResult(sqlmock.NewResult(101, 1))
	mock.ExpectQuery("SELECT username, picture_url FROM users").
		WillReturnRows(sqlmock.NewRows([]string{"username", "picture_url"}).AddRow("sam", nil))
	mock.ExpectExec("INSERT INTO memberships").
		WillReturnResult(sqlmock.NewResult(500, 1))
	mock.ExpectExec("INSERT INTO rooms").
		WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	if _, err := NewServerRepo(db).Bootstrap(context.Background(), "lounge", nil, 7); err == nil {
		t.Fatalf("expected failure when the default room cannot be created")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestServerBootstrapDuplicateName(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO servers").
		WillReturnError(errors.New("Error 1062 (23000): Duplicate entry 'lounge' for key 'servers.name'"))
	mock.ExpectRollback()

	if _, err := NewServerRepo(db).Bootstrap(context.Background(), "lounge", nil, 7); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestServerRemoveCascadeOrder(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id, name, picture_url, start_date FROM servers").
		WithArgs(uint64(10)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "picture_url", "start_date"}).
			AddRow(10, "lounge", nil, time.Now()))
	mock.ExpectExec("DELETE FROM reactions").WillReturnResult(sqlmock.NewResult(0, 4))
	mock.ExpectExec("DELETE FROM posts").WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec("DELETE FROM access").WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec("DELETE FROM memberships").WillReturnResult(sqlmock.NewResult(0, 5))
	mock.ExpectExec("DELETE FROM roles").WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec("DELETE FROM rooms").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM servers").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	s, err := NewServerRepo(db).Remove(context.Background(), 10)
	if err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if s.ID != 10 || s.Name != "lounge" {
		t.Fatalf("unexpected removed server: %+v", s)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestServerRemoveRollsBackMidCascade(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id, name, picture_url, start_date FROM servers").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "picture_url", "start_date"}).
			AddRow(10, "lounge", nil, time.Now()))
	mock.ExpectExec("DELETE FROM reactions").WillReturnResult(sqlmock.NewResult(0, 4))
	mock.ExpectExec("DELETE FROM posts").WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec("DELETE FROM access").WillReturnError(errors.New("lock wait timeout"))
	mock.ExpectRollback()

	if _, err := NewServerRepo(db).Remove(context.Background(), 10); err == nil {
		t.Fatalf("expected mid-cascade failure to surface")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestServerRemoveUnknownServer(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id, name, picture_url, start_date FROM servers").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "picture_url", "start_date"}))
	mock.ExpectRollback()

	if _, err := NewServerRepo(db).Remove(context.Background(), 99); !errors.Is(err, ErrServerNotFound) {
		t.Fatalf("expected ErrServerNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestServerCreateBareRow(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectExec("INSERT INTO servers").
		WillReturnResult(sqlmock.NewResult(10, 1))

	s, err := NewServerRepo(db).Create(context.Background(), "  gophers  ", nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if s.ID != 10 || s.Name != "gophers" {
		t.Fatalf("unexpected server: %+v", s)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestServerCreateDuplicateName(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectExec("INSERT INTO servers").
		WillReturnError(errors.New("Error 1062: Duplicate entry 'gophers' for key 'servers.name'"))

	if _, err := NewServerRepo(db).Create(context.Background(), "gophers", nil); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
