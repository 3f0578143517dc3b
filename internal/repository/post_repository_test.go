package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestPostCreateRejectsEmptyContent(t *testing.T) {
	db, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	if _, err := NewPostRepo(db).Create(context.Background(), PostInput{
		MemberID: 500, RoomID: 900, Content: "   ",
	}); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestPostFindGroupsReactionsByType(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	now := time.Now()
	mock.ExpectQuery("FROM posts p").
		WithArgs(uint64(900)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "member_id", "room_id", "content", "post_date", "threaded_from",
			"nickname", "picture_url", "type", "react_member"}).
			AddRow(1, 500, 900, "hello", now, nil, "sam", nil, "like", 501).
			AddRow(1, 500, 900, "hello", now, nil, "sam", nil, "like", 502).
			AddRow(1, 500, 900, "hello", now, nil, "sam", nil, "heart", 501).
			AddRow(2, nil, 900, "orphaned", now, nil, nil, nil, "like", nil))

	posts, err := NewPostRepo(db).Find(context.Background(), 900)
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if len(posts) != 2 {
		t.Fatalf("expected 2 posts, got %d", len(posts))
	}
	first := posts[0]
	if len(first.Reactions["like"]) != 2 || len(first.Reactions["heart"]) != 1 {
		t.Fatalf("reactions not grouped by type: %+v", first.Reactions)
	}
	if *first.Reactions["like"][0] != 501 || *first.Reactions["like"][1] != 502 {
		t.Fatalf("reaction order lost: %+v", first.Reactions["like"])
	}
	if first.Poster.Nickname == nil || *first.Poster.Nickname != "sam" {
		t.Fatalf("poster not joined in: %+v", first.Poster)
	}
	second := posts[1]
	if second.MemberID != nil || second.Poster.Nickname != nil {
		t.Fatalf("orphaned post should render anonymous: %+v", second)
	}
	if len(second.Reactions["like"]) != 1 || second.Reactions["like"][0] != nil {
		t.Fatalf("nullified reaction attribution lost: %+v", second.Reactions)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPostFindEmptyRoom(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery("FROM posts p").
		WillReturnRows(sqlmock.NewRows([]string{"id", "member_id", "room_id", "content", "post_date", "threaded_from",
			"nickname", "picture_url", "type", "react_member"}))

	if _, err := NewPostRepo(db).Find(context.Background(), 900); !errors.Is(err, ErrPostNotFound) {
		t.Fatalf("expected ErrPostNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPostRemoveDeletesReactionsFirst(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	now := time.Now()
	mock.ExpectQuery("FROM posts p").
		WithArgs(uint64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "member_id", "room_id", "content", "post_date", "threaded_from",
			"type", "react_member"}).
			AddRow(1, 500, 900, "hello", now, nil, "like", 501))
	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM reactions").
		WithArgs(uint64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM posts").
		WithArgs(uint64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	p, err := NewPostRepo(db).Remove(context.Background(), 1)
	if err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if p.Content != "hello" || len(p.Reactions["like"]) != 1 {
		t.Fatalf("removal payload lost data: %+v", p)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestAddReactionDuplicate(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectExec("INSERT INTO reactions").
		WithArgs(uint64(501), uint64(1), "like").
		WillReturnError(errors.New("Error 1062 (23000): Duplicate entry '501-1-like' for key 'reactions.member_post_type'"))

	if _, err := NewPostRepo(db).AddReaction(context.Background(), 1, 501, "like"); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict on a repeated reaction, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestRemoveReactionMissing(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectExec("DELETE FROM reactions").
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := NewPostRepo(db).RemoveReaction(context.Background(), 1, 501, "like"); !errors.Is(err, ErrPostNotFound) {
		t.Fatalf("expected ErrPostNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
