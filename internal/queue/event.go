// Package queue defines the broadcast events published to the message broker
// when chat state changes, plus the background consumer that drains them.
// The broker is a presentation boundary: consumers fan events out to clients
// or logs, and nothing in the authoritative stores depends on delivery.
package queue

// Event kinds carried on the broadcast queue.
const (
	EventPostCreated   = "post.created"
	EventRoomDeleted   = "room.deleted"
	EventServerDeleted = "server.deleted"
)

// BroadcastEvent is one chat state change as published to the broker. Fields
// not meaningful for a kind are zero: a server deletion carries no room or
// post ids.
type BroadcastEvent struct {
	Kind       string  `json:"kind"`
	ServerID   uint64  `json:"server_id"`
	RoomID     uint64  `json:"room_id,omitempty"`
	PostID     uint64  `json:"post_id,omitempty"`
	MemberID   *uint64 `json:"member_id,omitempty"`
	Content    string  `json:"content,omitempty"`
	OccurredAt string  `json:"occurred_at"`
}
