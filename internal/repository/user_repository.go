package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/iliyamo/chat-platform/internal/auth"
	"github.com/iliyamo/chat-platform/internal/model"
	"github.com/iliyamo/chat-platform/internal/utils"
)

// UserRepo owns the users table and the user-scoped cascade: removing a user
// clears message attribution for all of their memberships before the
// memberships and the user row go away.
type UserRepo struct{ db *sql.DB }

// NewUserRepo returns a new UserRepo bound to the given database.
func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{db: db} }

// Authenticate verifies a username/password pair and returns the credential
// snapshot captured at this moment: identity, site-admin flag and every
// membership with its admin standing. An unknown username and a wrong
// password both fail with ErrBadCredentials so the two cases cannot be told
// apart from outside.
func (r *UserRepo) Authenticate(ctx context.Context, username, password string) (auth.Snapshot, error) {
	const q = `SELECT u.id, u.username, u.hashed_password, u.is_site_admin,
	                  m.id, m.server_id, m.role_id, ro.is_admin
	           FROM users u
	           LEFT JOIN memberships m ON m.user_id = u.id
	           LEFT JOIN roles ro ON ro.id = m.role_id
	           WHERE u.username = ?`
	rows, err := r.db.QueryContext(ctx, q, username)
	if err != nil {
		return auth.Snapshot{}, err
	}
	defer rows.Close()

	var snap auth.Snapshot
	var hash string
	found := false
	for rows.Next() {
		var (
			memberID, serverID, roleID sql.NullInt64
			isAdmin                    sql.NullBool
		)
		if err := rows.Scan(&snap.UserID, &snap.Username, &hash, &snap.IsSiteAdmin,
			&memberID, &serverID, &roleID, &isAdmin); err != nil {
			return auth.Snapshot{}, err
		}
		found = true
		if memberID.Valid {
			snap.Memberships = append(snap.Memberships, auth.SnapshotMembership{
				ID:       uint64(memberID.Int64),
				ServerID: uint64(serverID.Int64),
				RoleID:   uint64(roleID.Int64),
				IsAdmin:  isAdmin.Bool,
			})
		}
	}
	if err := rows.Err(); err != nil {
		return auth.Snapshot{}, err
	}
	if !found || !utils.VerifyPassword(hash, password) {
		return auth.Snapshot{}, ErrBadCredentials
	}
	return snap, nil
}

// SnapshotFor rebuilds a fresh credential snapshot for an already
// authenticated user. The token refresh endpoint uses it to close the
// staleness window on demand.
func (r *UserRepo) SnapshotFor(ctx context.Context, userID uint64) (auth.Snapshot, error) {
	const q = `SELECT u.id, u.username, u.is_site_admin,
	                  m.id, m.server_id, m.role_id, ro.is_admin
	           FROM users u
	           LEFT JOIN memberships m ON m.user_id = u.id
	           LEFT JOIN roles ro ON ro.id = m.role_id
	           WHERE u.id = ?`
	rows, err := r.db.QueryContext(ctx, q, userID)
	if err != nil {
		return auth.Snapshot{}, err
	}
	defer rows.Close()

	var snap auth.Snapshot
	found := false
	for rows.Next() {
		var (
			memberID, serverID, roleID sql.NullInt64
			isAdmin                    sql.NullBool
		)
		if err := rows.Scan(&snap.UserID, &snap.Username, &snap.IsSiteAdmin,
			&memberID, &serverID, &roleID, &isAdmin); err != nil {
			return auth.Snapshot{}, err
		}
		found = true
		if memberID.Valid {
			snap.Memberships = append(snap.Memberships, auth.SnapshotMembership{
				ID:       uint64(memberID.Int64),
				ServerID: uint64(serverID.Int64),
				RoleID:   uint64(roleID.Int64),
				IsAdmin:  isAdmin.Bool,
			})
		}
	}
	if err := rows.Err(); err != nil {
		return auth.Snapshot{}, err
	}
	if !found {
		return auth.Snapshot{}, ErrUserNotFound
	}
	return snap, nil
}

// Create inserts a new user. The username UNIQUE key resolves races between
// concurrent registrations; a duplicate maps to ErrConflict.
func (r *UserRepo) Create(ctx context.Context, username, password string, pictureURL *string, isSiteAdmin bool, cost int) (model.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return model.User{}, ErrValidation
	}
	hash, err := utils.HashPassword(password, cost)
	if err != nil {
		return model.User{}, err
	}
	now := time.Now().UTC()
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO users (username, hashed_password, picture_url, is_site_admin, joining_date, last_on)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		username, hash, pictureURL, isSiteAdmin, now, now)
	if err != nil {
		if isDuplicateKey(err) {
			return model.User{}, ErrConflict
		}
		return model.User{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return model.User{}, err
	}
	return model.User{
		ID:          uint64(id),
		Username:    username,
		PictureURL:  pictureURL,
		IsSiteAdmin: isSiteAdmin,
		JoiningDate: now,
		LastOn:      &now,
	}, nil
}

// Get returns a user with all of their memberships, each joined with its
// server and role.
func (r *UserRepo) Get(ctx context.Context, id uint64) (model.UserDetail, error) {
	const q = `SELECT u.id, u.username, u.picture_url, u.is_site_admin, u.joining_date, u.last_on,
	                  m.id, m.nickname, m.joining_date,
	                  s.id, s.name, s.picture_url,
	                  ro.id, ro.title, ro.color, ro.is_admin
	           FROM users u
	           LEFT JOIN memberships m ON m.user_id = u.id
	           LEFT JOIN servers s ON s.id = m.server_id
	           LEFT JOIN roles ro ON ro.id = m.role_id
	           WHERE u.id = ?`
	rows, err := r.db.QueryContext(ctx, q, id)
	if err != nil {
		return model.UserDetail{}, err
	}
	defer rows.Close()

	var det model.UserDetail
	found := false
	for rows.Next() {
		var (
			memberID, serverID, roleID sql.NullInt64
			nickname                   sql.NullString
			memberJoined               sql.NullTime
			serverName                 sql.NullString
			serverPic                  sql.NullString
			roleTitle                  sql.NullString
			roleColor                  sql.NullInt64
			roleAdmin                  sql.NullBool
			lastOn                     sql.NullTime
		)
		if err := rows.Scan(&det.ID, &det.Username, &det.PictureURL, &det.IsSiteAdmin, &det.JoiningDate, &lastOn,
			&memberID, &nickname, &memberJoined,
			&serverID, &serverName, &serverPic,
			&roleID, &roleTitle, &roleColor, &roleAdmin); err != nil {
			return model.UserDetail{}, err
		}
		found = true
		if lastOn.Valid {
			t := lastOn.Time
			det.LastOn = &t
		}
		if memberID.Valid {
			var joined *time.Time
			if memberJoined.Valid {
				t := memberJoined.Time
				joined = &t
			}
			var pic *string
			if serverPic.Valid {
				p := serverPic.String
				pic = &p
			}
			det.Memberships = append(det.Memberships, model.UserMembership{
				ID:          uint64(memberID.Int64),
				Nickname:    nickname.String,
				JoiningDate: joined,
				Server: model.ServerRef{
					ID:         uint64(serverID.Int64),
					Name:       serverName.String,
					PictureURL: pic,
				},
				Role: model.RoleRef{
					ID:      uint64(roleID.Int64),
					Title:   roleTitle.String,
					Color:   model.UnpackColor(int(roleColor.Int64)),
					IsAdmin: roleAdmin.Bool,
				},
			})
		}
	}
	if err := rows.Err(); err != nil {
		return model.UserDetail{}, err
	}
	if !found {
		return model.UserDetail{}, ErrUserNotFound
	}
	return det, nil
}

// FindByUsername returns the user carrying the exact username.
func (r *UserRepo) FindByUsername(ctx context.Context, username string) (model.User, error) {
	var u model.User
	err := r.db.QueryRowContext(ctx,
		`SELECT id, username, picture_url, is_site_admin, joining_date, last_on
		 FROM users WHERE username = ? LIMIT 1`, username).
		Scan(&u.ID, &u.Username, &u.PictureURL, &u.IsSiteAdmin, &u.JoiningDate, &u.LastOn)
	if errors.Is(err, sql.ErrNoRows) {
		return model.User{}, ErrUserNotFound
	}
	if err != nil {
		return model.User{}, err
	}
	return u, nil
}

// FindAll lists every user, ordered by id.
func (r *UserRepo) FindAll(ctx context.Context) ([]model.User, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, username, picture_url, is_site_admin, joining_date, last_on
		 FROM users ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.User
	for rows.Next() {
		var u model.User
		if err := rows.Scan(&u.ID, &u.Username, &u.PictureURL, &u.IsSiteAdmin, &u.JoiningDate, &u.LastOn); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateProfile applies a typed patch to the whitelisted profile columns.
// Field names never come from the request; each present field maps to a
// statically known column.
func (r *UserRepo) UpdateProfile(ctx context.Context, id uint64, patch model.UserPatch) (model.User, error) {
	if patch.IsZero() {
		return model.User{}, ErrValidation
	}
	set := make([]string, 0, 3)
	args := make([]interface{}, 0, 4)
	if patch.Username != nil {
		set = append(set, "username = ?")
		args = append(args, strings.TrimSpace(*patch.Username))
	}
	if patch.PictureURL != nil {
		set = append(set, "picture_url = ?")
		args = append(args, *patch.PictureURL)
	}
	if patch.IsSiteAdmin != nil {
		set = append(set, "is_site_admin = ?")
		args = append(args, *patch.IsSiteAdmin)
	}
	args = append(args, id)

	if _, err := r.db.ExecContext(ctx,
		"UPDATE users SET "+strings.Join(set, ", ")+" WHERE id = ?", args...); err != nil {
		if isDuplicateKey(err) {
			return model.User{}, ErrConflict
		}
		return model.User{}, err
	}
	// Read the row back; a missing id surfaces as ErrUserNotFound here.
	return r.GetByID(ctx, id)
}

// GetByID fetches the flat user row by id.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (model.User, error) {
	var u model.User
	err := r.db.QueryRowContext(ctx,
		`SELECT id, username, picture_url, is_site_admin, joining_date, last_on
		 FROM users WHERE id = ? LIMIT 1`, id).
		Scan(&u.ID, &u.Username, &u.PictureURL, &u.IsSiteAdmin, &u.JoiningDate, &u.LastOn)
	if errors.Is(err, sql.ErrNoRows) {
		return model.User{}, ErrUserNotFound
	}
	if err != nil {
		return model.User{}, err
	}
	return u, nil
}

// TouchLastSeen advances last_on to now. It runs on every authenticated
// request and deliberately ignores a missing row.
func (r *UserRepo) TouchLastSeen(ctx context.Context, id uint64) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE users SET last_on = ? WHERE id = ?`, time.Now().UTC(), id)
	return err
}

// Remove deletes a user inside one transaction: posts and reactions authored
// through any of the user's memberships keep their content but lose their
// member attribution, then the memberships are hard-deleted, then the user
// row itself. A failure at any step rolls the whole cascade back.
func (r *UserRepo) Remove(ctx context.Context, id uint64) (model.User, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return model.User{}, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var u model.User
	err = tx.QueryRowContext(ctx,
		`SELECT id, username, picture_url, is_site_admin, joining_date, last_on
		 FROM users WHERE id = ?`, id).
		Scan(&u.ID, &u.Username, &u.PictureURL, &u.IsSiteAdmin, &u.JoiningDate, &u.LastOn)
	if errors.Is(err, sql.ErrNoRows) {
		err = ErrUserNotFound
		return model.User{}, err
	}
	if err != nil {
		return model.User{}, err
	}

	if _, err = tx.ExecContext(ctx,
		`UPDATE reactions SET member_id = NULL
		 WHERE member_id IN (SELECT id FROM memberships WHERE user_id = ?)`, id); err != nil {
		return model.User{}, err
	}
	if _, err = tx.ExecContext(ctx,
		`UPDATE posts SET member_id = NULL
		 WHERE member_id IN (SELECT id FROM memberships WHERE user_id = ?)`, id); err != nil {
		return model.User{}, err
	}
	if _, err = tx.ExecContext(ctx,
		`DELETE FROM memberships WHERE user_id = ?`, id); err != nil {
		return model.User{}, err
	}
	if _, err = tx.ExecContext(ctx,
		`DELETE FROM users WHERE id = ?`, id); err != nil {
		return model.User{}, err
	}
	if err = tx.Commit(); err != nil {
		return model.User{}, err
	}
	return u, nil
}
