package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/iliyamo/chat-platform/internal/model"
)

// PostRepo owns the posts and reactions tables.
type PostRepo struct{ db *sql.DB }

// NewPostRepo returns a new PostRepo bound to the given database.
func NewPostRepo(db *sql.DB) *PostRepo { return &PostRepo{db: db} }

// PostInput carries the fields of a new post. ThreadedFrom is nil for
// top-level posts.
type PostInput struct {
	MemberID     uint64
	RoomID       uint64
	Content      string
	ThreadedFrom *uint64
}

// Create appends a post to a room. Empty content is a validation error.
func (r *PostRepo) Create(ctx context.Context, in PostInput) (model.Post, error) {
	if strings.TrimSpace(in.Content) == "" {
		return model.Post{}, ErrValidation
	}
	now := time.Now().UTC()
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO posts (member_id, room_id, content, post_date, threaded_from)
		 VALUES (?, ?, ?, ?, ?)`,
		in.MemberID, in.RoomID, in.Content, now, in.ThreadedFrom)
	if err != nil {
		return model.Post{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return model.Post{}, err
	}
	memberID := in.MemberID
	return model.Post{
		ID:           uint64(id),
		MemberID:     &memberID,
		RoomID:       in.RoomID,
		Content:      in.Content,
		PostDate:     now,
		ThreadedFrom: in.ThreadedFrom,
		Reactions:    map[string][]*uint64{},
	}, nil
}

// Find returns a room's feed: every post with its author joined in through
// the membership and its reactions grouped by type. ErrPostNotFound when the
// room has no posts.
func (r *PostRepo) Find(ctx context.Context, roomID uint64) ([]model.PostListing, error) {
	const q = `SELECT p.id, p.member_id, p.room_id, p.content, p.post_date, p.threaded_from,
	                  m.nickname, m.picture_url,
	                  re.type, re.member_id
	           FROM posts p
	           LEFT JOIN memberships m ON m.id = p.member_id
	           LEFT JOIN reactions re ON re.post_id = p.id
	           WHERE p.room_id = ?
	           ORDER BY p.id`
	rows, err := r.db.QueryContext(ctx, q, roomID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.PostListing
	index := map[uint64]int{}
	for rows.Next() {
		var (
			p            model.PostListing
			memberID     sql.NullInt64
			threadedFrom sql.NullInt64
			nickname     sql.NullString
			pictureURL   sql.NullString
			reactType    sql.NullString
			reactMember  sql.NullInt64
		)
		if err := rows.Scan(&p.ID, &memberID, &p.RoomID, &p.Content, &p.PostDate, &threadedFrom,
			&nickname, &pictureURL, &reactType, &reactMember); err != nil {
			return nil, err
		}
		i, seen := index[p.ID]
		if !seen {
			if memberID.Valid {
				v := uint64(memberID.Int64)
				p.MemberID = &v
				p.Poster.MemberID = &v
			}
			if threadedFrom.Valid {
				v := uint64(threadedFrom.Int64)
				p.ThreadedFrom = &v
			}
			if nickname.Valid {
				n := nickname.String
				p.Poster.Nickname = &n
			}
			if pictureURL.Valid {
				u := pictureURL.String
				p.Poster.PictureURL = &u
			}
			p.Reactions = map[string][]*uint64{}
			out = append(out, p)
			i = len(out) - 1
			index[p.ID] = i
		}
		if reactType.Valid {
			var member *uint64
			if reactMember.Valid {
				v := uint64(reactMember.Int64)
				member = &v
			}
			out[i].Reactions[reactType.String] = append(out[i].Reactions[reactType.String], member)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, ErrPostNotFound
	}
	return out, nil
}

// Get returns one post with its reactions.
func (r *PostRepo) Get(ctx context.Context, id uint64) (model.Post, error) {
	const q = `SELECT p.id, p.member_id, p.room_id, p.content, p.post_date, p.threaded_from,
	                  re.type, re.member_id
	           FROM posts p
	           LEFT JOIN reactions re ON re.post_id = p.id
	           WHERE p.id = ?`
	rows, err := r.db.QueryContext(ctx, q, id)
	if err != nil {
		return model.Post{}, err
	}
	defer rows.Close()

	var p model.Post
	found := false
	for rows.Next() {
		var (
			memberID     sql.NullInt64
			threadedFrom sql.NullInt64
			reactType    sql.NullString
			reactMember  sql.NullInt64
		)
		if err := rows.Scan(&p.ID, &memberID, &p.RoomID, &p.Content, &p.PostDate, &threadedFrom,
			&reactType, &reactMember); err != nil {
			return model.Post{}, err
		}
		if !found {
			found = true
			if memberID.Valid {
				v := uint64(memberID.Int64)
				p.MemberID = &v
			}
			if threadedFrom.Valid {
				v := uint64(threadedFrom.Int64)
				p.ThreadedFrom = &v
			}
			p.Reactions = map[string][]*uint64{}
		}
		if reactType.Valid {
			var member *uint64
			if reactMember.Valid {
				v := uint64(reactMember.Int64)
				member = &v
			}
			p.Reactions[reactType.String] = append(p.Reactions[reactType.String], member)
		}
	}
	if err := rows.Err(); err != nil {
		return model.Post{}, err
	}
	if !found {
		return model.Post{}, ErrPostNotFound
	}
	return p, nil
}

// RoomOf returns the id of the room holding the post, for structural scope
// checks.
func (r *PostRepo) RoomOf(ctx context.Context, id uint64) (uint64, error) {
	var roomID uint64
	err := r.db.QueryRowContext(ctx,
		`SELECT room_id FROM posts WHERE id = ?`, id).Scan(&roomID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrPostNotFound
	}
	if err != nil {
		return 0, err
	}
	return roomID, nil
}

// AuthorOf returns the authoring membership id, nil when attribution has been
// cleared.
func (r *PostRepo) AuthorOf(ctx context.Context, id uint64) (*uint64, error) {
	var memberID sql.NullInt64
	err := r.db.QueryRowContext(ctx,
		`SELECT member_id FROM posts WHERE id = ?`, id).Scan(&memberID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPostNotFound
	}
	if err != nil {
		return nil, err
	}
	if !memberID.Valid {
		return nil, nil
	}
	v := uint64(memberID.Int64)
	return &v, nil
}

// Remove deletes a post in one transaction, reactions first, and returns the
// removed post with the reactions it carried.
func (r *PostRepo) Remove(ctx context.Context, id uint64) (model.Post, error) {
	p, err := r.Get(ctx, id)
	if err != nil {
		return model.Post{}, err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return model.Post{}, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx,
		`DELETE FROM reactions WHERE post_id = ?`, id); err != nil {
		return model.Post{}, err
	}
	if _, err = tx.ExecContext(ctx,
		`DELETE FROM posts WHERE id = ?`, id); err != nil {
		return model.Post{}, err
	}
	if err = tx.Commit(); err != nil {
		return model.Post{}, err
	}
	return p, nil
}

// AddReaction records one member's reaction of a given type on a post. The
// (member_id, post_id, type) UNIQUE key maps a repeat to ErrConflict.
func (r *PostRepo) AddReaction(ctx context.Context, postID, memberID uint64, reactionType string) (model.Reaction, error) {
	if strings.TrimSpace(reactionType) == "" {
		return model.Reaction{}, ErrValidation
	}
	if _, err := r.db.ExecContext(ctx,
		`INSERT INTO reactions (member_id, post_id, type) VALUES (?, ?, ?)`,
		memberID, postID, reactionType); err != nil {
		if isDuplicateKey(err) {
			return model.Reaction{}, ErrConflict
		}
		return model.Reaction{}, err
	}
	return model.Reaction{MemberID: &memberID, PostID: postID, Type: reactionType}, nil
}

// RemoveReaction withdraws a member's reaction. A triple that was never
// recorded maps to ErrPostNotFound.
func (r *PostRepo) RemoveReaction(ctx context.Context, postID, memberID uint64, reactionType string) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM reactions WHERE member_id = ? AND post_id = ? AND type = ?`,
		memberID, postID, reactionType)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrPostNotFound
	}
	return nil
}
