package model

// Role is a named permission bundle scoped to exactly one server. IsAdmin
// grants server-wide administrative standing to every membership holding the
// role. A role cannot be deleted while memberships still reference it.
type Role struct {
	ID       uint64 `json:"id"`
	Title    string `json:"title"`
	ServerID uint64 `json:"server_id"`
	Color    Color  `json:"color"`
	IsAdmin  bool   `json:"is_admin"`
}

// RoleRef is the compact form embedded in membership payloads.
type RoleRef struct {
	ID      uint64 `json:"id"`
	Title   string `json:"title"`
	Color   Color  `json:"color"`
	IsAdmin bool   `json:"is_admin"`
}

// RoleMember is a membership as listed inside a role detail payload.
type RoleMember struct {
	ID         uint64  `json:"id"`
	Nickname   string  `json:"nickname"`
	PictureURL *string `json:"picture_url"`
}

// RoleAccess is one room the role has been granted, as listed inside a role
// detail payload.
type RoleAccess struct {
	RoomID      uint64 `json:"room_id"`
	RoomName    string `json:"name"`
	RoomType    string `json:"type"`
	IsModerator bool   `json:"is_moderator"`
}

// RoleDetail is a role plus the memberships holding it and the rooms it can
// use.
type RoleDetail struct {
	Role
	Members []RoleMember `json:"members"`
	Access  []RoleAccess `json:"access"`
}

// AccessGrant is the permission edge between a role and a room. The pair
// (role_id, room_id) is unique and both ends must belong to the same server.
type AccessGrant struct {
	RoleID      uint64 `json:"role_id"`
	RoomID      uint64 `json:"room_id"`
	IsModerator bool   `json:"is_moderator"`
}

// RolePatch carries the updatable role columns. Color arrives unvalidated and
// is checked against [0,255] before it reaches the repository.
type RolePatch struct {
	Title   *string     `json:"title"`
	Color   *ColorInput `json:"color"`
	IsAdmin *bool       `json:"is_admin"`
}

// IsZero reports whether the patch carries no change at all.
func (p RolePatch) IsZero() bool { return p.Title == nil && p.Color == nil && p.IsAdmin == nil }
