package models

import "time"

// UserState is the lifecycle state of a connected user. A user is in exactly
// one state at any time; transitions are owned by the registry and the
// matcher, never set directly by callers.
type UserState string

const (
	// StateIdle is a connected user that is neither searching nor paired.
	StateIdle UserState = "idle"
	// StateWaiting is a user enqueued for matching.
	StateWaiting UserState = "waiting"
	// StateMatched is a user currently paired with a peer.
	StateMatched UserState = "matched"
)

// User represents one connected participant.
// The maps (PreviousMatches, BlockedUsers, RecentSkips) are owned exclusively
// by this entity; all mutation goes through the registry and policy so the
// state invariants hold.
type User struct {
	// ID is the anonymous session identifier, stable for the connection's
	// lifetime.
	ID string `json:"id"`
	// State is one of idle/waiting/matched.
	State UserState `json:"state"`
	// JoinedAt is when the user registered. Used for queue ordering and
	// stats, not correctness.
	JoinedAt time.Time `json:"joined_at"`
	// MatchedWith is the peer's ID while State == StateMatched, empty
	// otherwise. Always symmetric between the two sides of a match.
	MatchedWith string `json:"matched_with,omitempty"`

	// PreviousMatches is the set of user IDs this user has ever been paired
	// with. It only grows.
	PreviousMatches map[string]struct{} `json:"-"`
	// BlockedUsers is the set of IDs this user refuses as partners.
	BlockedUsers map[string]struct{} `json:"-"`
	// RecentSkips maps a peer ID to the time of the most recent skip between
	// the two. Entries older than the skip cooldown are ignored.
	RecentSkips map[string]time.Time `json:"-"`
}

// NewUser returns an idle user with initialized policy sets.
func NewUser(id string, now time.Time) *User {
	return &User{
		ID:              id,
		State:           StateIdle,
		JoinedAt:        now,
		PreviousMatches: make(map[string]struct{}),
		BlockedUsers:    make(map[string]struct{}),
		RecentSkips:     make(map[string]time.Time),
	}
}

// Clone returns a deep copy safe to hand outside the registry's lock.
func (u *User) Clone() User {
	c := *u
	c.PreviousMatches = make(map[string]struct{}, len(u.PreviousMatches))
	for id := range u.PreviousMatches {
		c.PreviousMatches[id] = struct{}{}
	}
	c.BlockedUsers = make(map[string]struct{}, len(u.BlockedUsers))
	for id := range u.BlockedUsers {
		c.BlockedUsers[id] = struct{}{}
	}
	c.RecentSkips = make(map[string]time.Time, len(u.RecentSkips))
	for id, ts := range u.RecentSkips {
		c.RecentSkips[id] = ts
	}
	return c
}

// HasMatched reports whether the user was ever paired with id.
func (u *User) HasMatched(id string) bool {
	_, ok := u.PreviousMatches[id]
	return ok
}

// Blocks reports whether the user has blocked id.
func (u *User) Blocks(id string) bool {
	_, ok := u.BlockedUsers[id]
	return ok
}
