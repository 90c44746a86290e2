package models

import "time"

// RoomKind classifies a room for cleanup and stats.
type RoomKind string

const (
	// KindChat is an active pairing room between two matched users.
	KindChat RoomKind = "chat"
	// KindUser is the private per-connection room used for system messages.
	KindUser RoomKind = "user"
	// KindAbandoned marks a room whose members are all gone but which has
	// not been explicitly destroyed yet. The sweep reclaims these.
	KindAbandoned RoomKind = "abandoned"
	// KindOther covers rooms that fit none of the above.
	KindOther RoomKind = "other"
)

// Room is the relay-scoped pairing context through which two matched peers
// exchange signaling and application messages. A chat room has exactly two
// members; a user room has one.
type Room struct {
	RoomID    string    `json:"room_id"`
	Members   []string  `json:"members"`
	Kind      RoomKind  `json:"kind"`
	CreatedAt time.Time `json:"created_at"`
	// AbandonedAt is set by classification when all members have gone away;
	// zero while the room is live.
	AbandonedAt time.Time `json:"abandoned_at,omitempty"`
}

// Has reports whether userID is a member of the room.
func (r *Room) Has(userID string) bool {
	for _, m := range r.Members {
		if m == userID {
			return true
		}
	}
	return false
}

// Other returns the member that is not userID, or "" when the room does not
// hold exactly one other member.
func (r *Room) Other(userID string) string {
	if len(r.Members) != 2 || !r.Has(userID) {
		return ""
	}
	if r.Members[0] == userID {
		return r.Members[1]
	}
	return r.Members[0]
}

// Clone returns a copy safe to hand outside the room manager's lock.
func (r *Room) Clone() Room {
	c := *r
	c.Members = append([]string(nil), r.Members...)
	return c
}
