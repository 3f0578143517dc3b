package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/iliyamo/chat-platform/internal/model"
)

// RoomRepo owns the rooms table and the room-scoped cascade: deleting a room
// removes its reactions, posts and access grants before the room row, and
// hands the removed posts back to the caller.
type RoomRepo struct{ db *sql.DB }

// NewRoomRepo returns a new RoomRepo bound to the given database.
func NewRoomRepo(db *sql.DB) *RoomRepo { return &RoomRepo{db: db} }

// Create inserts a room scoped to one server. The (server_id, name) UNIQUE
// key allows the same name on different servers while mapping a same-server
// duplicate to ErrConflict.
func (r *RoomRepo) Create(ctx context.Context, name string, serverID uint64, roomType string) (model.Room, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return model.Room{}, ErrValidation
	}
	if roomType == "" {
		roomType = model.RoomTypeText
	}
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO rooms (name, server_id, type) VALUES (?, ?, ?)`,
		name, serverID, roomType)
	if err != nil {
		if isDuplicateKey(err) {
			return model.Room{}, ErrConflict
		}
		return model.Room{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return model.Room{}, err
	}
	return model.Room{ID: uint64(id), Name: name, ServerID: serverID, Type: roomType}, nil
}

// Find lists every room on a server.
func (r *RoomRepo) Find(ctx context.Context, serverID uint64) ([]model.Room, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, server_id, type FROM rooms WHERE server_id = ? ORDER BY id`, serverID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Room
	for rows.Next() {
		var rm model.Room
		if err := rows.Scan(&rm.ID, &rm.Name, &rm.ServerID, &rm.Type); err != nil {
			return nil, err
		}
		out = append(out, rm)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Get returns the full room read model: the memberships that can use it
// (resolved through their roles' access grants) and every post with its
// reactions grouped by type.
func (r *RoomRepo) Get(ctx context.Context, id uint64) (model.RoomDetail, error) {
	var det model.RoomDetail
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, server_id, type FROM rooms WHERE id = ?`, id).
		Scan(&det.ID, &det.Name, &det.ServerID, &det.Type)
	if errors.Is(err, sql.ErrNoRows) {
		return model.RoomDetail{}, ErrRoomNotFound
	}
	if err != nil {
		return model.RoomDetail{}, err
	}

	memberRows, err := r.db.QueryContext(ctx,
		`SELECT m.id, m.user_id, m.role_id, a.is_moderator
		 FROM access a
		 INNER JOIN memberships m ON m.role_id = a.role_id
		 WHERE a.room_id = ?
		 ORDER BY m.id`, id)
	if err != nil {
		return model.RoomDetail{}, err
	}
	defer memberRows.Close()
	for memberRows.Next() {
		var m model.RoomMember
		if err := memberRows.Scan(&m.MembershipID, &m.UserID, &m.RoleID, &m.IsModerator); err != nil {
			return model.RoomDetail{}, err
		}
		det.Members = append(det.Members, m)
	}
	if err := memberRows.Err(); err != nil {
		return model.RoomDetail{}, err
	}

	posts, err := r.postsWithReactions(ctx, r.db, id)
	if err != nil {
		return model.RoomDetail{}, err
	}
	det.Posts = posts
	return det, nil
}

// rowQuerier abstracts *sql.DB and *sql.Tx so read helpers can run inside an
// open transaction when the caller needs the rows it is about to delete.
type rowQuerier interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
}

// postsWithReactions folds the post x reaction join into posts carrying a
// type to reacting-member-ids mapping, appending ids in row order.
func (r *RoomRepo) postsWithReactions(ctx context.Context, q rowQuerier, roomID uint64) ([]model.Post, error) {
	const query = `SELECT p.id, p.member_id, p.room_id, p.content, p.post_date, p.threaded_from,
	                  re.type, re.member_id
	           FROM posts p
	           LEFT JOIN reactions re ON re.post_id = p.id
	           WHERE p.room_id = ?
	           ORDER BY p.id`
	rows, err := q.QueryContext(ctx, query, roomID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Post
	index := map[uint64]int{}
	for rows.Next() {
		var (
			p            model.Post
			memberID     sql.NullInt64
			threadedFrom sql.NullInt64
			reactType    sql.NullString
			reactMember  sql.NullInt64
		)
		if err := rows.Scan(&p.ID, &memberID, &p.RoomID, &p.Content, &p.PostDate, &threadedFrom,
			&reactType, &reactMember); err != nil {
			return nil, err
		}
		i, seen := index[p.ID]
		if !seen {
			if memberID.Valid {
				v := uint64(memberID.Int64)
				p.MemberID = &v
			}
			if threadedFrom.Valid {
				v := uint64(threadedFrom.Int64)
				p.ThreadedFrom = &v
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
	return out, nil
}

// ServerOf returns the id of the server owning the room, for structural
// scope checks.
func (r *RoomRepo) ServerOf(ctx context.Context, id uint64) (uint64, error) {
	var serverID uint64
	err := r.db.QueryRowContext(ctx,
		`SELECT server_id FROM rooms WHERE id = ?`, id).Scan(&serverID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrRoomNotFound
	}
	if err != nil {
		return 0, err
	}
	return serverID, nil
}

// Update renames a room. Renaming is the only permitted room mutation.
func (r *RoomRepo) Update(ctx context.Context, id uint64, name string) (model.Room, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return model.Room{}, ErrValidation
	}
	if _, err := r.db.ExecContext(ctx,
		`UPDATE rooms SET name = ? WHERE id = ?`, name, id); err != nil {
		if isDuplicateKey(err) {
			return model.Room{}, ErrConflict
		}
		return model.Room{}, err
	}
	var rm model.Room
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, server_id, type FROM rooms WHERE id = ?`, id).
		Scan(&rm.ID, &rm.Name, &rm.ServerID, &rm.Type)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Room{}, ErrRoomNotFound
	}
	if err != nil {
		return model.Room{}, err
	}
	return rm, nil
}

// ListGrantedRoles is the read path the authorization fallback uses: every
// role granted access to the room.
func (r *RoomRepo) ListGrantedRoles(ctx context.Context, roomID uint64) ([]model.GrantedRole, error) {
	const q = `SELECT a.role_id, ro.title, ro.is_admin, a.is_moderator
	           FROM access a
	           INNER JOIN roles ro ON ro.id = a.role_id
	           WHERE a.room_id = ?
	           ORDER BY a.role_id`
	rows, err := r.db.QueryContext(ctx, q, roomID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.GrantedRole
	for rows.Next() {
		var g model.GrantedRole
		if err := rows.Scan(&g.RoleID, &g.Title, &g.IsAdmin, &g.IsModerator); err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Remove deletes a room in one transaction: reactions on its posts, the
// posts, the access grants pointing at it, then the room row. The removed
// posts and their reactions are captured inside the same transaction and
// returned, so the audit payload lists exactly what the deletes took with
// them.
func (r *RoomRepo) Remove(ctx context.Context, id uint64) (model.RoomRemoval, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return model.RoomRemoval{}, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var removal model.RoomRemoval
	err = tx.QueryRowContext(ctx,
		`SELECT id, name, server_id, type FROM rooms WHERE id = ?`, id).
		Scan(&removal.ID, &removal.Name, &removal.ServerID, &removal.Type)
	if errors.Is(err, sql.ErrNoRows) {
		err = ErrRoomNotFound
		return model.RoomRemoval{}, err
	}
	if err != nil {
		return model.RoomRemoval{}, err
	}

	posts, err := r.postsWithReactions(ctx, tx, id)
	if err != nil {
		return model.RoomRemoval{}, err
	}
	removal.Posts = posts

	if _, err = tx.ExecContext(ctx,
		`DELETE FROM reactions
		 WHERE post_id IN (SELECT id FROM posts WHERE room_id = ?)`, id); err != nil {
		return model.RoomRemoval{}, err
	}
	if _, err = tx.ExecContext(ctx,
		`DELETE FROM posts WHERE room_id = ?`, id); err != nil {
		return model.RoomRemoval{}, err
	}
	if _, err = tx.ExecContext(ctx,
		`DELETE FROM access WHERE room_id = ?`, id); err != nil {
		return model.RoomRemoval{}, err
	}
	if _, err = tx.ExecContext(ctx,
		`DELETE FROM rooms WHERE id = ?`, id); err != nil {
		return model.RoomRemoval{}, err
	}
	if err = tx.Commit(); err != nil {
		return model.RoomRemoval{}, err
	}
	return removal, nil
}
