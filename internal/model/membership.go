package model

import "time"

// Membership binds one user to one server under exactly one role. Nicknames
// are unique within a server (case-sensitive). The referenced role must live
// on the same server as the membership itself.
type Membership struct {
	ID          uint64    `json:"id"`
	UserID      uint64    `json:"user_id"`
	ServerID    uint64    `json:"server_id"`
	Nickname    string    `json:"nickname"`
	PictureURL  *string   `json:"picture_url"`
	JoiningDate time.Time `json:"joining_date"`
	Role        RoleRef   `json:"role"`
}

// MembershipAccess is one room reachable through the membership's role.
type MembershipAccess struct {
	RoomID      uint64 `json:"room_id"`
	RoomName    string `json:"name"`
	IsModerator bool   `json:"is_moderator"`
}

// MembershipDetail is a membership plus the room access its role carries.
type MembershipDetail struct {
	Membership
	Access []MembershipAccess `json:"access"`
}

// MembershipFilter narrows a membership search. Nil fields are ignored; at
// least one must be set.
type MembershipFilter struct {
	UserID   *uint64
	ServerID *uint64
	RoleID   *uint64
}

// IsZero reports whether no criterion is set.
func (f MembershipFilter) IsZero() bool {
	return f.UserID == nil && f.ServerID == nil && f.RoleID == nil
}

// MembershipPatch carries the updatable membership columns.
type MembershipPatch struct {
	Nickname   *string `json:"nickname"`
	RoleID     *uint64 `json:"role_id"`
	PictureURL *string `json:"picture_url"`
}

// IsZero reports whether the patch carries no change at all.
func (p MembershipPatch) IsZero() bool {
	return p.Nickname == nil && p.RoleID == nil && p.PictureURL == nil
}
