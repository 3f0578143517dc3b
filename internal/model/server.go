package model

import "time"

// Server is one isolated chat community. Server names are unique across the
// site. Everything else in the schema hangs off a server: roles, rooms,
// memberships, and through them access grants, posts and reactions.
type Server struct {
	ID         uint64    `json:"id"`
	Name       string    `json:"name"`
	PictureURL *string   `json:"picture_url"`
	StartDate  time.Time `json:"start_date"`
}

// ServerRef is the compact form embedded in membership payloads.
type ServerRef struct {
	ID         uint64  `json:"id"`
	Name       string  `json:"name"`
	PictureURL *string `json:"picture_url"`
}

// ServerSummary is a server row plus its member count, as returned by list
// endpoints.
type ServerSummary struct {
	Server
	NumberOfMembers int `json:"number_of_members"`
}

// ServerDetail is the full read model for a single server: its rooms, roles
// and members in one payload.
type ServerDetail struct {
	Server
	Rooms   []Room         `json:"rooms"`
	Roles   []Role         `json:"roles"`
	Members []ServerMember `json:"members"`
}

// ServerMember is a membership as listed inside a server detail payload.
type ServerMember struct {
	ID          uint64     `json:"id"`
	UserID      uint64     `json:"user_id"`
	Nickname    string     `json:"nickname"`
	RoleID      uint64     `json:"role_id"`
	PictureURL  *string    `json:"picture_url"`
	JoiningDate *time.Time `json:"joining_date,omitempty"`
}

// ServerPatch carries the updatable server columns.
type ServerPatch struct {
	Name       *string `json:"name"`
	PictureURL *string `json:"picture_url"`
}

// IsZero reports whether the patch carries no change at all.
func (p ServerPatch) IsZero() bool { return p.Name == nil && p.PictureURL == nil }

// Bootstrap holds everything created when a server is founded: the server
// itself, its two seed roles, the founder's membership and the default room.
// The whole set is created in one transaction so a server can never exist
// without an admin member and a room.
type Bootstrap struct {
	Server      Server     `json:"server"`
	AdminRole   Role       `json:"admin_role"`
	MemberRole  Role       `json:"member_role"`
	Founder     Membership `json:"founder"`
	DefaultRoom Room       `json:"default_room"`
}
