package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/iliyamo/chat-platform/internal/model"
)

// MembershipRepo owns the memberships table: the edges binding users to
// servers through roles. Removing a membership preserves message history by
// clearing attribution instead of deleting posts.
type MembershipRepo struct{ db *sql.DB }

// NewMembershipRepo returns a new MembershipRepo bound to the given database.
func NewMembershipRepo(db *sql.DB) *MembershipRepo { return &MembershipRepo{db: db} }

// MembershipInput carries the fields of a join request. Nickname and
// PictureURL default from the user profile when nil.
type MembershipInput struct {
	UserID     uint64
	RoleID     uint64
	ServerID   uint64
	Nickname   *string
	PictureURL *string
}

// Create binds a user to a server under a role. The role must live on the
// target server (ErrForbidden otherwise). The (server_id, nickname) UNIQUE
// key maps a taken nickname to ErrConflict; comparison is case-sensitive.
func (r *MembershipRepo) Create(ctx context.Context, in MembershipInput) (model.Membership, error) {
	var role model.RoleRef
	var roleServer uint64
	var packed int
	err := r.db.QueryRowContext(ctx,
		`SELECT id, title, color, is_admin, server_id FROM roles WHERE id = ?`, in.RoleID).
		Scan(&role.ID, &role.Title, &packed, &role.IsAdmin, &roleServer)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Membership{}, ErrRoleNotFound
	}
	if err != nil {
		return model.Membership{}, err
	}
	if roleServer != in.ServerID {
		return model.Membership{}, ErrForbidden
	}
	role.Color = model.UnpackColor(packed)

	var username string
	var userPic sql.NullString
	err = r.db.QueryRowContext(ctx,
		`SELECT username, picture_url FROM users WHERE id = ?`, in.UserID).
		Scan(&username, &userPic)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Membership{}, ErrUserNotFound
	}
	if err != nil {
		return model.Membership{}, err
	}

	nickname := username
	if in.Nickname != nil && strings.TrimSpace(*in.Nickname) != "" {
		nickname = *in.Nickname
	}
	pic := in.PictureURL
	if pic == nil && userPic.Valid {
		p := userPic.String
		pic = &p
	}

	now := time.Now().UTC()
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO memberships (user_id, server_id, role_id, nickname, picture_url, joining_date)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		in.UserID, in.ServerID, in.RoleID, nickname, pic, now)
	if err != nil {
		if isDuplicateKey(err) {
			return model.Membership{}, ErrConflict
		}
		return model.Membership{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return model.Membership{}, err
	}
	return model.Membership{
		ID:          uint64(id),
		UserID:      in.UserID,
		ServerID:    in.ServerID,
		Nickname:    nickname,
		PictureURL:  pic,
		JoiningDate: now,
		Role:        role,
	}, nil
}

const membershipSelect = `SELECT m.id, m.user_id, m.server_id, m.nickname, m.picture_url, m.joining_date,
	       r.id, r.title, r.color, r.is_admin
	FROM memberships m
	INNER JOIN roles r ON r.id = m.role_id`

func (r *MembershipRepo) queryMemberships(ctx context.Context, where string, args ...interface{}) ([]model.Membership, error) {
	rows, err := r.db.QueryContext(ctx, membershipSelect+" "+where, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Membership
	for rows.Next() {
		var m model.Membership
		var packed int
		if err := rows.Scan(&m.ID, &m.UserID, &m.ServerID, &m.Nickname, &m.PictureURL, &m.JoiningDate,
			&m.Role.ID, &m.Role.Title, &packed, &m.Role.IsAdmin); err != nil {
			return nil, err
		}
		m.Role.Color = model.UnpackColor(packed)
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, ErrMembershipNotFound
	}
	return out, nil
}

// FindByServer lists every membership on a server. ErrMembershipNotFound
// when the server has none.
func (r *MembershipRepo) FindByServer(ctx context.Context, serverID uint64) ([]model.Membership, error) {
	return r.queryMemberships(ctx, "WHERE m.server_id = ? ORDER BY m.id", serverID)
}

// FindByUser lists every membership a user holds.
func (r *MembershipRepo) FindByUser(ctx context.Context, userID uint64) ([]model.Membership, error) {
	return r.queryMemberships(ctx, "WHERE m.user_id = ? ORDER BY m.id", userID)
}

// FindByRole lists every membership holding a role.
func (r *MembershipRepo) FindByRole(ctx context.Context, roleID uint64) ([]model.Membership, error) {
	return r.queryMemberships(ctx, "WHERE m.role_id = ? ORDER BY m.id", roleID)
}

// Find narrows memberships by any combination of user, server and role. The
// filter fields translate to a fixed set of columns; an empty filter is a
// validation error rather than a full scan.
func (r *MembershipRepo) Find(ctx context.Context, f model.MembershipFilter) ([]model.Membership, error) {
	if f.IsZero() {
		return nil, ErrValidation
	}
	conds := make([]string, 0, 3)
	args := make([]interface{}, 0, 3)
	if f.UserID != nil {
		conds = append(conds, "m.user_id = ?")
		args = append(args, *f.UserID)
	}
	if f.ServerID != nil {
		conds = append(conds, "m.server_id = ?")
		args = append(args, *f.ServerID)
	}
	if f.RoleID != nil {
		conds = append(conds, "m.role_id = ?")
		args = append(args, *f.RoleID)
	}
	return r.queryMemberships(ctx, "WHERE "+strings.Join(conds, " AND ")+" ORDER BY m.id", args...)
}

// Get returns one membership with its role and the room access that role
// carries.
func (r *MembershipRepo) Get(ctx context.Context, id uint64) (model.MembershipDetail, error) {
	const q = `SELECT m.id, m.user_id, m.server_id, m.nickname, m.picture_url, m.joining_date,
	                  r.id, r.title, r.color, r.is_admin,
	                  a.room_id, rooms.name, a.is_moderator
	           FROM memberships m
	           LEFT JOIN roles r ON r.id = m.role_id
	           LEFT JOIN access a ON a.role_id = r.id
	           LEFT JOIN rooms ON rooms.id = a.room_id
	           WHERE m.id = ?`
	rows, err := r.db.QueryContext(ctx, q, id)
	if err != nil {
		return model.MembershipDetail{}, err
	}
	defer rows.Close()

	var det model.MembershipDetail
	found := false
	for rows.Next() {
		var (
			packed      int
			roomID      sql.NullInt64
			roomName    sql.NullString
			isModerator sql.NullBool
		)
		if err := rows.Scan(&det.ID, &det.UserID, &det.ServerID, &det.Nickname, &det.PictureURL, &det.JoiningDate,
			&det.Role.ID, &det.Role.Title, &packed, &det.Role.IsAdmin,
			&roomID, &roomName, &isModerator); err != nil {
			return model.MembershipDetail{}, err
		}
		found = true
		det.Role.Color = model.UnpackColor(packed)
		if roomID.Valid {
			det.Access = append(det.Access, model.MembershipAccess{
				RoomID:      uint64(roomID.Int64),
				RoomName:    roomName.String,
				IsModerator: isModerator.Bool,
			})
		}
	}
	if err := rows.Err(); err != nil {
		return model.MembershipDetail{}, err
	}
	if !found {
		return model.MembershipDetail{}, ErrMembershipNotFound
	}
	return det, nil
}

// ServerOf returns the id of the server owning the membership, for
// structural scope checks.
func (r *MembershipRepo) ServerOf(ctx context.Context, id uint64) (uint64, error) {
	var serverID uint64
	err := r.db.QueryRowContext(ctx,
		`SELECT server_id FROM memberships WHERE id = ?`, id).Scan(&serverID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrMembershipNotFound
	}
	if err != nil {
		return 0, err
	}
	return serverID, nil
}

// Update applies a typed patch. A role change must stay on the membership's
// own server (ErrForbidden otherwise); a nickname change races against the
// (server_id, nickname) UNIQUE key and a loss maps to ErrConflict.
func (r *MembershipRepo) Update(ctx context.Context, id uint64, patch model.MembershipPatch) (model.Membership, error) {
	if patch.IsZero() {
		return model.Membership{}, ErrValidation
	}
	serverID, err := r.ServerOf(ctx, id)
	if err != nil {
		return model.Membership{}, err
	}
	if patch.RoleID != nil {
		var roleServer uint64
		err := r.db.QueryRowContext(ctx,
			`SELECT server_id FROM roles WHERE id = ?`, *patch.RoleID).Scan(&roleServer)
		if errors.Is(err, sql.ErrNoRows) {
			return model.Membership{}, ErrRoleNotFound
		}
		if err != nil {
			return model.Membership{}, err
		}
		if roleServer != serverID {
			return model.Membership{}, ErrForbidden
		}
	}

	set := make([]string, 0, 3)
	args := make([]interface{}, 0, 4)
	if patch.Nickname != nil {
		set = append(set, "nickname = ?")
		args = append(args, *patch.Nickname)
	}
	if patch.RoleID != nil {
		set = append(set, "role_id = ?")
		args = append(args, *patch.RoleID)
	}
	if patch.PictureURL != nil {
		set = append(set, "picture_url = ?")
		args = append(args, *patch.PictureURL)
	}
	args = append(args, id)

	if _, err := r.db.ExecContext(ctx,
		"UPDATE memberships SET "+strings.Join(set, ", ")+" WHERE id = ?", args...); err != nil {
		if isDuplicateKey(err) {
			return model.Membership{}, ErrConflict
		}
		return model.Membership{}, err
	}

	rows, err := r.queryMemberships(ctx, "WHERE m.id = ?", id)
	if err != nil {
		return model.Membership{}, err
	}
	return rows[0], nil
}

// UpdateNickname renames the member within its server.
func (r *MembershipRepo) UpdateNickname(ctx context.Context, id uint64, newName string) (model.Membership, error) {
	return r.Update(ctx, id, model.MembershipPatch{Nickname: &newName})
}

// UpdateRole moves the member to another role on the same server.
func (r *MembershipRepo) UpdateRole(ctx context.Context, id uint64, newRoleID uint64) (model.Membership, error) {
	return r.Update(ctx, id, model.MembershipPatch{RoleID: &newRoleID})
}

// Remove deletes a membership in one transaction, nullifying rather than
// deleting the member's authored reactions and posts first. The user and the
// server are untouched; only the edge and its attribution go away.
func (r *MembershipRepo) Remove(ctx context.Context, id uint64) (model.Membership, error) {
	rows, err := r.queryMemberships(ctx, "WHERE m.id = ?", id)
	if err != nil {
		return model.Membership{}, err
	}
	m := rows[0]

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return model.Membership{}, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx,
		`UPDATE reactions SET member_id = NULL WHERE member_id = ?`, id); err != nil {
		return model.Membership{}, err
	}
	if _, err = tx.ExecContext(ctx,
		`UPDATE posts SET member_id = NULL WHERE member_id = ?`, id); err != nil {
		return model.Membership{}, err
	}
	if _, err = tx.ExecContext(ctx,
		`DELETE FROM memberships WHERE id = ?`, id); err != nil {
		return model.Membership{}, err
	}
	if err = tx.Commit(); err != nil {
		return model.Membership{}, err
	}
	return m, nil
}
