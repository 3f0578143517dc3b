package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/iliyamo/chat-platform/internal/model"
)

// ServerRepo owns the servers table, the founding bootstrap and the deepest
// cascade in the system: deleting a server removes reactions, posts, access
// grants, memberships, roles and rooms before the server row, in that order,
// inside one transaction. Order matters because each layer's foreign key is
// scoped by the layer above it.
type ServerRepo struct{ db *sql.DB }

// NewServerRepo returns a new ServerRepo bound to the given database.
func NewServerRepo(db *sql.DB) *ServerRepo { return &ServerRepo{db: db} }

// Create inserts a bare server row. Most callers want Bootstrap instead,
// which also seeds roles, the founder membership and the default room.
func (r *ServerRepo) Create(ctx context.Context, name string, pictureURL *string) (model.Server, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return model.Server{}, ErrValidation
	}
	now := time.Now().UTC()
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO servers (name, picture_url, start_date) VALUES (?, ?, ?)`,
		name, pictureURL, now)
	if err != nil {
		if isDuplicateKey(err) {
			return model.Server{}, ErrConflict
		}
		return model.Server{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return model.Server{}, err
	}
	return model.Server{ID: uint64(id), Name: name, PictureURL: pictureURL, StartDate: now}, nil
}

// Bootstrap founds a server as one logical unit: the server row, an "admin"
// role and a "member" role, a membership binding the founder to the admin
// role, a default room, and a moderator access grant for the admin role on
// that room. Any failure rolls back every prior step so a server can never
// exist without an admin member and a room.
func (r *ServerRepo) Bootstrap(ctx context.Context, name string, pictureURL *string, founderUserID uint64) (model.Bootstrap, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return model.Bootstrap{}, ErrValidation
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return model.Bootstrap{}, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	now := time.Now().UTC()
	var out model.Bootstrap

	// 1. The server row.
	res, err := tx.ExecContext(ctx,
		`INSERT INTO servers (name, picture_url, start_date) VALUES (?, ?, ?)`,
		name, pictureURL, now)
	if err != nil {
		if isDuplicateKey(err) {
			err = ErrConflict
		}
		return model.Bootstrap{}, err
	}
	serverID, err := res.LastInsertId()
	if err != nil {
		return model.Bootstrap{}, err
	}
	out.Server = model.Server{ID: uint64(serverID), Name: name, PictureURL: pictureURL, StartDate: now}

	// 2. The two seed roles.
	packed := model.PackColor(model.DefaultRoleColor)
	res, err = tx.ExecContext(ctx,
		`INSERT INTO roles (title, server_id, color, is_admin) VALUES (?, ?, ?, ?)`,
		"admin", serverID, packed, true)
	if err != nil {
		return model.Bootstrap{}, err
	}
	adminRoleID, err := res.LastInsertId()
	if err != nil {
		return model.Bootstrap{}, err
	}
	out.AdminRole = model.Role{ID: uint64(adminRoleID), Title: "admin", ServerID: uint64(serverID), Color: model.DefaultRoleColor, IsAdmin: true}

	res, err = tx.ExecContext(ctx,
		`INSERT INTO roles (title, server_id, color, is_admin) VALUES (?, ?, ?, ?)`,
		"member", serverID, packed, false)
	if err != nil {
		return model.Bootstrap{}, err
	}
	memberRoleID, err := res.LastInsertId()
	if err != nil {
		return model.Bootstrap{}, err
	}
	out.MemberRole = model.Role{ID: uint64(memberRoleID), Title: "member", ServerID: uint64(serverID), Color: model.DefaultRoleColor, IsAdmin: false}

	// 3. The founder's membership on the admin role, defaulting nickname and
	// picture from the user profile.
	var username string
	var userPic sql.NullString
	err = tx.QueryRowContext(ctx,
		`SELECT username, picture_url FROM users WHERE id = ?`, founderUserID).
		Scan(&username, &userPic)
	if errors.Is(err, sql.ErrNoRows) {
		err = ErrUserNotFound
		return model.Bootstrap{}, err
	}
	if err != nil {
		return model.Bootstrap{}, err
	}
	var pic *string
	if userPic.Valid {
		p := userPic.String
		pic = &p
	}
	res, err = tx.ExecContext(ctx,
		`INSERT INTO memberships (user_id, server_id, role_id, nickname, picture_url, joining_date)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		founderUserID, serverID, adminRoleID, username, pic, now)
	if err != nil {
		return model.Bootstrap{}, err
	}
	membershipID, err := res.LastInsertId()
	if err != nil {
		return model.Bootstrap{}, err
	}
	out.Founder = model.Membership{
		ID:          uint64(membershipID),
		UserID:      founderUserID,
		ServerID:    uint64(serverID),
		Nickname:    username,
		PictureURL:  pic,
		JoiningDate: now,
		Role:        model.RoleRef{ID: uint64(adminRoleID), Title: "admin", Color: model.DefaultRoleColor, IsAdmin: true},
	}

	// 4. The default room.
	res, err = tx.ExecContext(ctx,
		`INSERT INTO rooms (name, server_id, type) VALUES (?, ?, ?)`,
		"Main Room", serverID, model.RoomTypeText)
	if err != nil {
		return model.Bootstrap{}, err
	}
	roomID, err := res.LastInsertId()
	if err != nil {
		return model.Bootstrap{}, err
	}
	out.DefaultRoom = model.Room{ID: uint64(roomID), Name: "Main Room", ServerID: uint64(serverID), Type: model.RoomTypeText}

	// 5. Moderator access for the admin role on the default room.
	if _, err = tx.ExecContext(ctx,
		`INSERT INTO access (role_id, room_id, is_moderator) VALUES (?, ?, ?)`,
		adminRoleID, roomID, true); err != nil {
		return model.Bootstrap{}, err
	}

	if err = tx.Commit(); err != nil {
		return model.Bootstrap{}, err
	}
	return out, nil
}

// Exists reports whether a server row is present, for structural scope
// checks. ErrServerNotFound when it is not.
func (r *ServerRepo) Exists(ctx context.Context, id uint64) error {
	var one int
	err := r.db.QueryRowContext(ctx,
		`SELECT 1 FROM servers WHERE id = ?`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrServerNotFound
	}
	return err
}

// FindAll lists every server with its member count.
func (r *ServerRepo) FindAll(ctx context.Context) ([]model.ServerSummary, error) {
	const q = `SELECT s.id, s.name, s.picture_url, s.start_date, COUNT(m.id)
	           FROM servers s
	           LEFT JOIN memberships m ON m.server_id = s.id
	           GROUP BY s.id, s.name, s.picture_url, s.start_date
	           ORDER BY s.id`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.ServerSummary
	for rows.Next() {
		var s model.ServerSummary
		if err := rows.Scan(&s.ID, &s.Name, &s.PictureURL, &s.StartDate, &s.NumberOfMembers); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// FindByName lists servers carrying the exact name, with member counts.
// Returns ErrServerNotFound when none match.
func (r *ServerRepo) FindByName(ctx context.Context, name string) ([]model.ServerSummary, error) {
	const q = `SELECT s.id, s.name, s.picture_url, s.start_date, COUNT(m.id)
	           FROM servers s
	           LEFT JOIN memberships m ON m.server_id = s.id
	           WHERE s.name = ?
	           GROUP BY s.id, s.name, s.picture_url, s.start_date`
	rows, err := r.db.QueryContext(ctx, q, name)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.ServerSummary
	for rows.Next() {
		var s model.ServerSummary
		if err := rows.Scan(&s.ID, &s.Name, &s.PictureURL, &s.StartDate, &s.NumberOfMembers); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, ErrServerNotFound
	}
	return out, nil
}

// Get returns the full server detail: rooms, roles and members in one
// payload, assembled from four queries like the read model expects.
func (r *ServerRepo) Get(ctx context.Context, id uint64) (model.ServerDetail, error) {
	var det model.ServerDetail
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, picture_url, start_date FROM servers WHERE id = ?`, id).
		Scan(&det.ID, &det.Name, &det.PictureURL, &det.StartDate)
	if errors.Is(err, sql.ErrNoRows) {
		return model.ServerDetail{}, ErrServerNotFound
	}
	if err != nil {
		return model.ServerDetail{}, err
	}

	roleRows, err := r.db.QueryContext(ctx,
		`SELECT id, title, server_id, color, is_admin FROM roles WHERE server_id = ? ORDER BY id`, id)
	if err != nil {
		return model.ServerDetail{}, err
	}
	defer roleRows.Close()
	for roleRows.Next() {
		var ro model.Role
		var packed int
		if err := roleRows.Scan(&ro.ID, &ro.Title, &ro.ServerID, &packed, &ro.IsAdmin); err != nil {
			return model.ServerDetail{}, err
		}
		ro.Color = model.UnpackColor(packed)
		det.Roles = append(det.Roles, ro)
	}
	if err := roleRows.Err(); err != nil {
		return model.ServerDetail{}, err
	}

	roomRows, err := r.db.QueryContext(ctx,
		`SELECT id, name, server_id, type FROM rooms WHERE server_id = ? ORDER BY id`, id)
	if err != nil {
		return model.ServerDetail{}, err
	}
	defer roomRows.Close()
	for roomRows.Next() {
		var rm model.Room
		if err := roomRows.Scan(&rm.ID, &rm.Name, &rm.ServerID, &rm.Type); err != nil {
			return model.ServerDetail{}, err
		}
		det.Rooms = append(det.Rooms, rm)
	}
	if err := roomRows.Err(); err != nil {
		return model.ServerDetail{}, err
	}

	memberRows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, nickname, role_id, picture_url, joining_date
		 FROM memberships WHERE server_id = ? ORDER BY id`, id)
	if err != nil {
		return model.ServerDetail{}, err
	}
	defer memberRows.Close()
	for memberRows.Next() {
		var m model.ServerMember
		var joined sql.NullTime
		if err := memberRows.Scan(&m.ID, &m.UserID, &m.Nickname, &m.RoleID, &m.PictureURL, &joined); err != nil {
			return model.ServerDetail{}, err
		}
		if joined.Valid {
			t := joined.Time
			m.JoiningDate = &t
		}
		det.Members = append(det.Members, m)
	}
	if err := memberRows.Err(); err != nil {
		return model.ServerDetail{}, err
	}
	return det, nil
}

// Update applies a typed patch to the whitelisted server columns.
func (r *ServerRepo) Update(ctx context.Context, id uint64, patch model.ServerPatch) (model.Server, error) {
	if patch.IsZero() {
		return model.Server{}, ErrValidation
	}
	set := make([]string, 0, 2)
	args := make([]interface{}, 0, 3)
	if patch.Name != nil {
		set = append(set, "name = ?")
		args = append(args, strings.TrimSpace(*patch.Name))
	}
	if patch.PictureURL != nil {
		set = append(set, "picture_url = ?")
		args = append(args, *patch.PictureURL)
	}
	args = append(args, id)

	if _, err := r.db.ExecContext(ctx,
		"UPDATE servers SET "+strings.Join(set, ", ")+" WHERE id = ?", args...); err != nil {
		if isDuplicateKey(err) {
			return model.Server{}, ErrConflict
		}
		return model.Server{}, err
	}
	var s model.Server
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, picture_url, start_date FROM servers WHERE id = ?`, id).
		Scan(&s.ID, &s.Name, &s.PictureURL, &s.StartDate)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Server{}, ErrServerNotFound
	}
	if err != nil {
		return model.Server{}, err
	}
	return s, nil
}

// Remove deletes a server and everything scoped to it in one transaction.
// The layers go leaf-first: reactions on posts in the server's rooms, the
// posts themselves, access grants on the rooms, memberships, roles, rooms,
// and finally the server row. A failure at any layer rolls back the whole
// cascade; no orphaned rows survive.
func (r *ServerRepo) Remove(ctx context.Context, id uint64) (model.Server, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return model.Server{}, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var s model.Server
	err = tx.QueryRowContext(ctx,
		`SELECT id, name, picture_url, start_date FROM servers WHERE id = ?`, id).
		Scan(&s.ID, &s.Name, &s.PictureURL, &s.StartDate)
	if errors.Is(err, sql.ErrNoRows) {
		err = ErrServerNotFound
		return model.Server{}, err
	}
	if err != nil {
		return model.Server{}, err
	}

	if _, err = tx.ExecContext(ctx,
		`DELETE FROM reactions
		 WHERE post_id IN (
		     SELECT p.id FROM posts p
		     INNER JOIN rooms rm ON p.room_id = rm.id
		     WHERE rm.server_id = ?)`, id); err != nil {
		return model.Server{}, err
	}
	if _, err = tx.ExecContext(ctx,
		`DELETE FROM posts
		 WHERE room_id IN (SELECT id FROM rooms WHERE server_id = ?)`, id); err != nil {
		return model.Server{}, err
	}
	if _, err = tx.ExecContext(ctx,
		`DELETE FROM access
		 WHERE room_id IN (SELECT id FROM rooms WHERE server_id = ?)`, id); err != nil {
		return model.Server{}, err
	}
	if _, err = tx.ExecContext(ctx,
		`DELETE FROM memberships WHERE server_id = ?`, id); err != nil {
		return model.Server{}, err
	}
	if _, err = tx.ExecContext(ctx,
		`DELETE FROM roles WHERE server_id = ?`, id); err != nil {
		return model.Server{}, err
	}
	if _, err = tx.ExecContext(ctx,
		`DELETE FROM rooms WHERE server_id = ?`, id); err != nil {
		return model.Server{}, err
	}
	if _, err = tx.ExecContext(ctx,
		`DELETE FROM servers WHERE id = ?`, id); err != nil {
		return model.Server{}, err
	}
	if err = tx.Commit(); err != nil {
		return model.Server{}, err
	}
	return s, nil
}
