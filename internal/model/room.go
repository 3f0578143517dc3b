package model

// RoomTypeText is the default room type assigned when a request omits one.
const RoomTypeText = "text"

// Room is a channel inside one server. Room names are unique per server;
// the same name may exist on different servers.
type Room struct {
	ID       uint64 `json:"id"`
	Name     string `json:"name"`
	ServerID uint64 `json:"server_id"`
	Type     string `json:"type"`
}

// RoomMember is a membership that can use the room via an access grant on its
// role, as listed inside a room detail payload.
type RoomMember struct {
	MembershipID uint64 `json:"id"`
	UserID       uint64 `json:"user_id"`
	RoleID       uint64 `json:"role_id"`
	IsModerator  bool   `json:"is_moderator"`
}

// GrantedRole is a role holding access to a room, as returned by the room
// store's read path for the authorization fallback.
type GrantedRole struct {
	RoleID      uint64 `json:"role_id"`
	Title       string `json:"title"`
	IsAdmin     bool   `json:"is_admin"`
	IsModerator bool   `json:"is_moderator"`
}

// RoomDetail is the full read model for a room: who can use it and every post
// with its aggregated reactions.
type RoomDetail struct {
	Room
	Members []RoomMember `json:"members"`
	Posts   []Post       `json:"posts"`
}

// RoomRemoval is the payload returned by a room deletion: the removed room
// and the posts (with reactions) that were deleted with it, preserved so the
// caller can audit or broadcast the retraction.
type RoomRemoval struct {
	Room
	Posts []Post `json:"posts"`
}
