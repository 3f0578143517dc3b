package handler_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/chat-platform/internal/auth"
	"github.com/iliyamo/chat-platform/internal/config"
	"github.com/iliyamo/chat-platform/internal/handler"
	"github.com/iliyamo/chat-platform/internal/repository"
	"github.com/iliyamo/chat-platform/internal/router"
	"github.com/iliyamo/chat-platform/internal/utils"
)

const testSecret = "handler-test-secret"

// newAPI assembles the full routed surface over one mocked database, so
// requests travel the same guard and scope chains they would in production.
func newAPI(t *testing.T) (*echo.Echo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	users := repository.NewUserRepo(db)
	servers := repository.NewServerRepo(db)
	roles := repository.NewRoleRepo(db)
	rooms := repository.NewRoomRepo(db)
	members := repository.NewMembershipRepo(db)
	posts := repository.NewPostRepo(db)
	cfg := config.Config{JWTSecret: testSecret, TokenTTLMin: 15, BcryptCost: 4}

	e := echo.New()
	router.Register(e, router.Deps{
		JWTSecret: testSecret,
		Users:     users,
		Servers:   servers,
		Roles:     roles,
		Rooms:     rooms,
		Members:   members,
		Posts:     posts,

		Auth:    handler.NewAuthHandler(cfg, users),
		UserH:   handler.NewUserHandler(cfg, users),
		ServerH: handler.NewServerHandler(servers, rooms, nil, nil),
		RoleH:   handler.NewRoleHandler(roles, nil),
		RoomH:   handler.NewRoomHandler(rooms, nil, nil),
		MemberH: handler.NewMemberHandler(members),
		PostH:   handler.NewPostHandler(posts, nil),
	})
	return e, mock
}

func mintToken(t *testing.T, snap auth.Snapshot) string {
	t.Helper()
	tok, err := utils.NewSnapshotToken(testSecret, snap, 15)
	if err != nil {
		t.Fatalf("NewSnapshotToken: %v", err)
	}
	return tok.Token
}

func send(e *echo.Echo, method, path, token, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

// A site admin passes the membership guard everywhere but holds no
// membership to attribute a post to; the request must stop at 401 before
// anything is written.
func TestCreatePostSiteAdminWithoutMembership(t *testing.T) {
	e, mock := newAPI(t)

	mock.ExpectQuery("SELECT 1 FROM servers").
		WithArgs(uint64(10)).
		WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))
	mock.ExpectQuery("SELECT server_id FROM rooms").
		WithArgs(uint64(900)).
		WillReturnRows(sqlmock.NewRows([]string{"server_id"}).AddRow(10))

	token := mintToken(t, auth.Snapshot{UserID: 1, Username: "root", IsSiteAdmin: true})
	rec := send(e, http.MethodPost, "/v1/servers/10/rooms/900/posts", token, `{"content":"hello"}`)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without a membership to attribute to, got %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "membership required") {
		t.Fatalf("unexpected body: %s", rec.Body.String())
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("a write happened after the 401: %v", err)
	}
}

func TestCreatePostAttributesCallerMembership(t *testing.T) {
	e, mock := newAPI(t)

	mock.ExpectQuery("SELECT 1 FROM servers").
		WithArgs(uint64(10)).
		WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))
	mock.ExpectQuery("SELECT server_id FROM rooms").
		WithArgs(uint64(900)).
		WillReturnRows(sqlmock.NewRows([]string{"server_id"}).AddRow(10))
	mock.ExpectExec("INSERT INTO posts").
		WithArgs(uint64(7), uint64(900), "hello", sqlmock.AnyArg(), nil).
		WillReturnResult(sqlmock.NewResult(555, 1))

	token := mintToken(t, auth.Snapshot{
		UserID:   2,
		Username: "sam",
		Memberships: []auth.SnapshotMembership{
			{ID: 7, ServerID: 10, RoleID: 2, IsAdmin: false},
		},
	})
	rec := send(e, http.MethodPost, "/v1/servers/10/rooms/900/posts", token, `{"content":"hello"}`)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"id":555`) {
		t.Fatalf("unexpected body: %s", rec.Body.String())
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

// A post reached through a room it does not belong to is a scope violation:
// 403, and nothing is deleted.
func TestDeletePostAddressedThroughWrongRoom(t *testing.T) {
	e, mock := newAPI(t)

	mock.ExpectQuery("SELECT 1 FROM servers").
		WithArgs(uint64(10)).
		WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))
	mock.ExpectQuery("SELECT server_id FROM rooms").
		WithArgs(uint64(900)).
		WillReturnRows(sqlmock.NewRows([]string{"server_id"}).AddRow(10))
	mock.ExpectQuery("SELECT room_id FROM posts").
		WithArgs(uint64(555)).
		WillReturnRows(sqlmock.NewRows([]string{"room_id"}).AddRow(777))

	token := mintToken(t, auth.Snapshot{
		UserID:   2,
		Username: "sam",
		Memberships: []auth.SnapshotMembership{
			{ID: 7, ServerID: 10, RoleID: 2, IsAdmin: true},
		},
	})
	rec := send(e, http.MethodDelete, "/v1/servers/10/rooms/900/posts/555", token, "")

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for a post in another room, got %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "another room") {
		t.Fatalf("unexpected body: %s", rec.Body.String())
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("the foreign post was touched: %v", err)
	}
}

func TestDeletePostMissing(t *testing.T) {
	e, mock := newAPI(t)

	mock.ExpectQuery("SELECT 1 FROM servers").
		WithArgs(uint64(10)).
		WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))
	mock.ExpectQuery("SELECT server_id FROM rooms").
		WithArgs(uint64(900)).
		WillReturnRows(sqlmock.NewRows([]string{"server_id"}).AddRow(10))
	mock.ExpectQuery("SELECT room_id FROM posts").
		WithArgs(uint64(999)).
		WillReturnRows(sqlmock.NewRows([]string{"room_id"}))

	token := mintToken(t, auth.Snapshot{
		UserID:   2,
		Username: "sam",
		Memberships: []auth.SnapshotMembership{
			{ID: 7, ServerID: 10, RoleID: 2, IsAdmin: true},
		},
	})
	rec := send(e, http.MethodDelete, "/v1/servers/10/rooms/900/posts/999", token, "")

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for an absent post, got %d: %s", rec.Code, rec.Body.String())
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
