package model

import "time"

// Post is one message in a room. Authorship is attributed to a membership,
// not a user: when the authoring membership is removed, MemberID becomes nil
// and the content is preserved.
type Post struct {
	ID           uint64    `json:"id"`
	MemberID     *uint64   `json:"member_id"`
	RoomID       uint64    `json:"room_id"`
	Content      string    `json:"content"`
	PostDate     time.Time `json:"post_date"`
	ThreadedFrom *uint64   `json:"threaded_from,omitempty"`
	// Reactions groups reacting member ids by reaction type, in the order
	// the reactions were recorded.
	Reactions map[string][]*uint64 `json:"reactions"`
}

// Poster identifies the author of a post in listing payloads, resolved
// through the membership so removed members render as anonymous.
type Poster struct {
	MemberID   *uint64 `json:"id"`
	Nickname   *string `json:"name"`
	PictureURL *string `json:"picture_url"`
}

// PostListing is a post as returned by the room feed, with author info joined
// in.
type PostListing struct {
	Post
	Poster Poster `json:"poster"`
}

// Reaction is one member's reaction of a given type on a post. The triple
// (member_id, post_id, type) is unique. MemberID is nulled, not deleted, when
// the reacting membership goes away.
type Reaction struct {
	MemberID *uint64 `json:"member_id"`
	PostID   uint64  `json:"post_id"`
	Type     string  `json:"type"`
}
