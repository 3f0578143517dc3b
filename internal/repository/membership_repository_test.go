package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/iliyamo/chat-platform/internal/model"
)

func TestMembershipCreateRoleOnOtherServer(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery("SELECT id, title, color, is_admin, server_id FROM roles").
		WithArgs(uint64(200)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "title", "color", "is_admin", "server_id"}).
			AddRow(200, "member", 0, false, 99))

	_, err = NewMembershipRepo(db).Create(context.Background(), MembershipInput{
		UserID: 7, RoleID: 200, ServerID: 10,
	})
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden for a role on another server, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestMembershipCreateDefaultsNicknameFromProfile(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery("SELECT id, title, color, is_admin, server_id FROM roles").
		WillReturnRows(sqlmock.NewRows([]string{"id", "title", "color", "is_admin", "server_id"}).
			AddRow(200, "member", 0, false, 10))
	mock.ExpectQuery("SELECT username, picture_url FROM users").
		WillReturnRows(sqlmock.NewRows([]string{"username", "picture_url"}).AddRow("sam", "http://cdn/sam.png"))
	mock.ExpectExec("INSERT INTO memberships").
		WithArgs(uint64(7), uint64(10), uint64(200), "sam", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(500, 1))

	m, err := NewMembershipRepo(db).Create(context.Background(), MembershipInput{
		UserID: 7, RoleID: 200, ServerID: 10,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if m.Nickname != "sam" {
		t.Fatalf("nickname not defaulted from profile: %q", m.Nickname)
	}
	if m.PictureURL == nil || *m.PictureURL != "http://cdn/sam.png" {
		t.Fatalf("picture not defaulted from profile: %v", m.PictureURL)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestMembershipNicknameTaken(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery("SELECT server_id FROM memberships").
		WithArgs(uint64(500)).
		WillReturnRows(sqlmock.NewRows([]string{"server_id"}).AddRow(10))
	mock.ExpectExec("UPDATE memberships SET nickname").
		WillReturnError(errors.New("Error 1062 (23000): Duplicate entry '10-sam' for key 'memberships.server_nickname'"))

	if _, err := NewMembershipRepo(db).UpdateNickname(context.Background(), 500, "sam"); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict on a taken nickname, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestMembershipRemoveNullifiesAuthorship(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery("FROM memberships m").
		WithArgs(uint64(500)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "server_id", "nickname", "picture_url", "joining_date",
			"role_id", "title", "color", "is_admin"}).
			AddRow(500, 7, 10, "sam", nil, time.Now(), 200, "member", 0, false))
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE reactions SET member_id = NULL").
		WithArgs(uint64(500)).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec("UPDATE posts SET member_id = NULL").
		WithArgs(uint64(500)).
		WillReturnResult(sqlmock.NewResult(0, 6))
	mock.ExpectExec("DELETE FROM memberships").
		WithArgs(uint64(500)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	m, err := NewMembershipRepo(db).Remove(context.Background(), 500)
	if err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if m.ID != 500 || m.Nickname != "sam" {
		t.Fatalf("unexpected removed membership: %+v", m)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestMembershipFindRejectsEmptyFilter(t *testing.T) {
	db, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	if _, err := NewMembershipRepo(db).Find(context.Background(), model.MembershipFilter{}); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestMembershipUpdateRoleCrossServer(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery("SELECT server_id FROM memberships").
		WithArgs(uint64(500)).
		WillReturnRows(sqlmock.NewRows([]string{"server_id"}).AddRow(10))
	mock.ExpectQuery("SELECT server_id FROM roles").
		WithArgs(uint64(777)).
		WillReturnRows(sqlmock.NewRows([]string{"server_id"}).AddRow(99))

	if _, err := NewMembershipRepo(db).UpdateRole(context.Background(), 500, 777); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden for a role on another server, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
