package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/iliyamo/chat-platform/internal/model"
)

// RoleRepo owns the roles table and the access table (the role→room grant
// edges). Grants are written here; the room side only reads them.
type RoleRepo struct{ db *sql.DB }

// NewRoleRepo returns a new RoleRepo bound to the given database.
func NewRoleRepo(db *sql.DB) *RoleRepo { return &RoleRepo{db: db} }

// RoleInput carries the fields of a role creation request. Color arrives
// unvalidated; nil means the default color.
type RoleInput struct {
	Title    string
	ServerID uint64
	Color    *model.ColorInput
	IsAdmin  bool
}

// Create inserts a role scoped to one server. Color components outside
// [0,255] fail with ErrValidation before any SQL runs; the packed integer
// form only exists between here and the column.
func (r *RoleRepo) Create(ctx context.Context, in RoleInput) (model.Role, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return model.Role{}, ErrValidation
	}
	color := model.DefaultRoleColor
	if in.Color != nil {
		c, err := in.Color.Validate()
		if err != nil {
			return model.Role{}, fmt.Errorf("%w: %v", ErrValidation, err)
		}
		color = c
	}
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO roles (title, server_id, color, is_admin) VALUES (?, ?, ?, ?)`,
		title, in.ServerID, model.PackColor(color), in.IsAdmin)
	if err != nil {
		return model.Role{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return model.Role{}, err
	}
	return model.Role{ID: uint64(id), Title: title, ServerID: in.ServerID, Color: color, IsAdmin: in.IsAdmin}, nil
}

// Find lists every role on a server.
func (r *RoleRepo) Find(ctx context.Context, serverID uint64) ([]model.Role, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, title, server_id, color, is_admin FROM roles WHERE server_id = ? ORDER BY id`, serverID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Role
	for rows.Next() {
		var ro model.Role
		var packed int
		if err := rows.Scan(&ro.ID, &ro.Title, &ro.ServerID, &packed, &ro.IsAdmin); err != nil {
			return nil, err
		}
		ro.Color = model.UnpackColor(packed)
		out = append(out, ro)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Get returns a role with the memberships holding it and the rooms it has
// been granted. One joined query; members and grants are deduplicated while
// folding the rows.
func (r *RoleRepo) Get(ctx context.Context, id uint64) (model.RoleDetail, error) {
	const q = `SELECT r.id, r.title, r.server_id, r.color, r.is_admin,
	                  m.id, m.nickname, m.picture_url,
	                  a.room_id, a.is_moderator, room.name, room.type
	           FROM roles r
	           LEFT JOIN memberships m ON m.role_id = r.id
	           LEFT JOIN access a ON a.role_id = r.id
	           LEFT JOIN rooms room ON room.id = a.room_id
	           WHERE r.id = ?`
	rows, err := r.db.QueryContext(ctx, q, id)
	if err != nil {
		return model.RoleDetail{}, err
	}
	defer rows.Close()

	var det model.RoleDetail
	seenMembers := map[uint64]bool{}
	seenRooms := map[uint64]bool{}
	found := false
	for rows.Next() {
		var (
			packed            int
			memberID, roomID  sql.NullInt64
			nickname          sql.NullString
			memberPic         sql.NullString
			isModerator       sql.NullBool
			roomName, roomTyp sql.NullString
		)
		if err := rows.Scan(&det.ID, &det.Title, &det.ServerID, &packed, &det.IsAdmin,
			&memberID, &nickname, &memberPic,
			&roomID, &isModerator, &roomName, &roomTyp); err != nil {
			return model.RoleDetail{}, err
		}
		found = true
		det.Color = model.UnpackColor(packed)
		if memberID.Valid && !seenMembers[uint64(memberID.Int64)] {
			seenMembers[uint64(memberID.Int64)] = true
			var pic *string
			if memberPic.Valid {
				p := memberPic.String
				pic = &p
			}
			det.Members = append(det.Members, model.RoleMember{
				ID:         uint64(memberID.Int64),
				Nickname:   nickname.String,
				PictureURL: pic,
			})
		}
		if roomID.Valid && !seenRooms[uint64(roomID.Int64)] {
			seenRooms[uint64(roomID.Int64)] = true
			det.Access = append(det.Access, model.RoleAccess{
				RoomID:      uint64(roomID.Int64),
				RoomName:    roomName.String,
				RoomType:    roomTyp.String,
				IsModerator: isModerator.Bool,
			})
		}
	}
	if err := rows.Err(); err != nil {
		return model.RoleDetail{}, err
	}
	if !found {
		return model.RoleDetail{}, ErrRoleNotFound
	}
	return det, nil
}

// ServerOf returns the id of the server owning the role, for structural
// scope checks.
func (r *RoleRepo) ServerOf(ctx context.Context, id uint64) (uint64, error) {
	var serverID uint64
	err := r.db.QueryRowContext(ctx,
		`SELECT server_id FROM roles WHERE id = ?`, id).Scan(&serverID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrRoleNotFound
	}
	if err != nil {
		return 0, err
	}
	return serverID, nil
}

// Update applies a typed patch to the whitelisted role columns. A color in
// the patch is validated before packing.
func (r *RoleRepo) Update(ctx context.Context, id uint64, patch model.RolePatch) (model.Role, error) {
	if patch.IsZero() {
		return model.Role{}, ErrValidation
	}
	set := make([]string, 0, 3)
	args := make([]interface{}, 0, 4)
	if patch.Title != nil {
		set = append(set, "title = ?")
		args = append(args, strings.TrimSpace(*patch.Title))
	}
	if patch.Color != nil {
		c, err := patch.Color.Validate()
		if err != nil {
			return model.Role{}, fmt.Errorf("%w: %v", ErrValidation, err)
		}
		set = append(set, "color = ?")
		args = append(args, model.PackColor(c))
	}
	if patch.IsAdmin != nil {
		set = append(set, "is_admin = ?")
		args = append(args, *patch.IsAdmin)
	}
	args = append(args, id)

	if _, err := r.db.ExecContext(ctx,
		"UPDATE roles SET "+strings.Join(set, ", ")+" WHERE id = ?", args...); err != nil {
		return model.Role{}, err
	}
	var ro model.Role
	var packed int
	err := r.db.QueryRowContext(ctx,
		`SELECT id, title, server_id, color, is_admin FROM roles WHERE id = ?`, id).
		Scan(&ro.ID, &ro.Title, &ro.ServerID, &packed, &ro.IsAdmin)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Role{}, ErrRoleNotFound
	}
	if err != nil {
		return model.Role{}, err
	}
	ro.Color = model.UnpackColor(packed)
	return ro, nil
}

// AddAccess grants the role use of a room. The role and the room must belong
// to the same server; a cross-server grant fails with ErrForbidden. The
// (role_id, room_id) UNIQUE key maps duplicates to ErrConflict.
func (r *RoleRepo) AddAccess(ctx context.Context, roleID, roomID uint64, isModerator bool) (model.AccessGrant, error) {
	roleServer, err := r.ServerOf(ctx, roleID)
	if err != nil {
		return model.AccessGrant{}, err
	}
	var roomServer uint64
	err = r.db.QueryRowContext(ctx,
		`SELECT server_id FROM rooms WHERE id = ?`, roomID).Scan(&roomServer)
	if errors.Is(err, sql.ErrNoRows) {
		return model.AccessGrant{}, ErrRoomNotFound
	}
	if err != nil {
		return model.AccessGrant{}, err
	}
	if roleServer != roomServer {
		return model.AccessGrant{}, ErrForbidden
	}
	if _, err := r.db.ExecContext(ctx,
		`INSERT INTO access (role_id, room_id, is_moderator) VALUES (?, ?, ?)`,
		roleID, roomID, isModerator); err != nil {
		if isDuplicateKey(err) {
			return model.AccessGrant{}, ErrConflict
		}
		return model.AccessGrant{}, err
	}
	return model.AccessGrant{RoleID: roleID, RoomID: roomID, IsModerator: isModerator}, nil
}

// RemoveAccess revokes the role's grant on a room. ErrAccessNotFound when no
// such grant exists.
func (r *RoleRepo) RemoveAccess(ctx context.Context, roleID, roomID uint64) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM access WHERE role_id = ? AND room_id = ?`, roleID, roomID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrAccessNotFound
	}
	return nil
}

// SetModerator flips the moderator flag on an existing grant.
func (r *RoleRepo) SetModerator(ctx context.Context, roleID, roomID uint64, isModerator bool) (model.AccessGrant, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE access SET is_moderator = ? WHERE role_id = ? AND room_id = ?`,
		isModerator, roleID, roomID)
	if err != nil {
		return model.AccessGrant{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		// Zero rows can mean "absent" or "already at that value"; look it up.
		var current bool
		err := r.db.QueryRowContext(ctx,
			`SELECT is_moderator FROM access WHERE role_id = ? AND room_id = ?`,
			roleID, roomID).Scan(&current)
		if errors.Is(err, sql.ErrNoRows) {
			return model.AccessGrant{}, ErrAccessNotFound
		}
		if err != nil {
			return model.AccessGrant{}, err
		}
	}
	return model.AccessGrant{RoleID: roleID, RoomID: roomID, IsModerator: isModerator}, nil
}

// ListGrantedRooms is the read path the authorization fallback uses: every
// room the role has been granted, with the moderator flag.
func (r *RoleRepo) ListGrantedRooms(ctx context.Context, roleID uint64) ([]model.RoleAccess, error) {
	const q = `SELECT a.room_id, a.is_moderator, room.name, room.type
	           FROM access a
	           INNER JOIN rooms room ON room.id = a.room_id
	           WHERE a.role_id = ?
	           ORDER BY a.room_id`
	rows, err := r.db.QueryContext(ctx, q, roleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.RoleAccess
	for rows.Next() {
		var a model.RoleAccess
		if err := rows.Scan(&a.RoomID, &a.IsModerator, &a.RoomName, &a.RoomType); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Remove deletes a role, but only when nothing references it: a role still
// held by memberships fails with ErrConflict and leaves everything
// untouched. Automatically reassigning those members would silently change
// their privileges. The role's own access grants go with it.
func (r *RoleRepo) Remove(ctx context.Context, id uint64) (model.Role, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return model.Role{}, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var ro model.Role
	var packed int
	err = tx.QueryRowContext(ctx,
		`SELECT id, title, server_id, color, is_admin FROM roles WHERE id = ?`, id).
		Scan(&ro.ID, &ro.Title, &ro.ServerID, &packed, &ro.IsAdmin)
	if errors.Is(err, sql.ErrNoRows) {
		err = ErrRoleNotFound
		return model.Role{}, err
	}
	if err != nil {
		return model.Role{}, err
	}
	ro.Color = model.UnpackColor(packed)

	var memberCount int
	if err = tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM memberships WHERE role_id = ?`, id).Scan(&memberCount); err != nil {
		return model.Role{}, err
	}
	if memberCount > 0 {
		err = ErrConflict
		return model.Role{}, err
	}

	if _, err = tx.ExecContext(ctx,
		`DELETE FROM access WHERE role_id = ?`, id); err != nil {
		return model.Role{}, err
	}
	if _, err = tx.ExecContext(ctx,
		`DELETE FROM roles WHERE id = ?`, id); err != nil {
		return model.Role{}, err
	}
	if err = tx.Commit(); err != nil {
		return model.Role{}, err
	}
	return ro, nil
}
