package model

import "time"

// User represents a row in the `users` table. Usernames are unique across the
// whole site. LastOn is advanced on every authenticated request so that
// clients can display recency without a dedicated presence service.
//
// Fields:
//  ID             – primary key identifier.
//  Username       – globally unique handle.
//  HashedPassword – bcrypt digest; never serialized.
//  PictureURL     – optional avatar location.
//  IsSiteAdmin    – site-wide operator flag; supersedes per-server standing.
//  JoiningDate    – account creation timestamp.
//  LastOn         – last authenticated activity.
type User struct {
	ID             uint64     `json:"id"`
	Username       string     `json:"username"`
	HashedPassword string     `json:"-"`
	PictureURL     *string    `json:"picture_url"`
	IsSiteAdmin    bool       `json:"is_site_admin"`
	JoiningDate    time.Time  `json:"joining_date"`
	LastOn         *time.Time `json:"last_on,omitempty"`
}

// UserMembership is one server the user belongs to, as embedded in the
// detailed user payload.
type UserMembership struct {
	ID          uint64     `json:"id"`
	Nickname    string     `json:"nickname"`
	JoiningDate *time.Time `json:"joining_date,omitempty"`
	Server      ServerRef  `json:"server"`
	Role        RoleRef    `json:"role"`
}

// UserDetail is a user together with all of their memberships.
type UserDetail struct {
	User
	Memberships []UserMembership `json:"memberships"`
}

// UserPatch lists the columns a profile update may touch. Each field is
// independently optional; the repository translates present fields into a
// statically known column list, so request data can never name a column.
type UserPatch struct {
	Username    *string `json:"username"`
	PictureURL  *string `json:"picture_url"`
	IsSiteAdmin *bool   `json:"is_site_admin"`
}

// IsZero reports whether the patch carries no change at all.
func (p UserPatch) IsZero() bool {
	return p.Username == nil && p.PictureURL == nil && p.IsSiteAdmin == nil
}
