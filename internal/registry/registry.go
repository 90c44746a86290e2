package registry

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"peerlink/backend/internal/models"
)

var (
	// ErrAlreadyRegistered means the session ID is already connected.
	ErrAlreadyRegistered = errors.New("user already registered")
	// ErrNotFound means the session ID is unknown.
	ErrNotFound = errors.New("user not found")
	// ErrInvalidTransition means the requested state change violates the
	// idle/waiting/matched state machine.
	ErrInvalidTransition = errors.New("invalid state transition")
	// ErrCapacity means the registry is full and the join was rejected.
	ErrCapacity = errors.New("registry at capacity")
)

// Registry tracks every connected participant and owns all mutation of their
// state. Pairing two users is a single critical section so no observer can
// see one side matched while the other is still waiting.
type Registry struct {
	mu    sync.RWMutex
	users map[string]*models.User

	// retained holds previousMatches for disconnected users when history
	// retention is keyed by identity. Unused in per-session mode.
	retained      map[string]map[string]struct{}
	retainHistory bool

	capacity int
	now      func() time.Time
}

// New creates a registry. capacity <= 0 means unbounded. retainHistory keeps
// previousMatches across reconnects with the same session ID.
func New(capacity int, retainHistory bool) *Registry {
	return &Registry{
		users:         make(map[string]*models.User),
		retained:      make(map[string]map[string]struct{}),
		retainHistory: retainHistory,
		capacity:      capacity,
		now:           time.Now,
	}
}

// SetClock overrides the registry's time source. Tests only.
func (r *Registry) SetClock(now func() time.Time) {
	r.mu.Lock()
	r.now = now
	r.mu.Unlock()
}

// Register adds a new idle user and returns a snapshot of it.
func (r *Registry) Register(id string) (models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.users[id]; ok {
		return models.User{}, fmt.Errorf("register %s: %w", id, ErrAlreadyRegistered)
	}
	if r.capacity > 0 && len(r.users) >= r.capacity {
		return models.User{}, fmt.Errorf("register %s: %w", id, ErrCapacity)
	}

	u := models.NewUser(id, r.now())
	if prev, ok := r.retained[id]; ok {
		u.PreviousMatches = prev
		delete(r.retained, id)
	}
	r.users[id] = u
	return u.Clone(), nil
}

// Unregister removes the user. The caller is responsible for having released
// any match the user held (EndMatch) and for room cleanup; the registry only
// retains match history when configured to.
func (r *Registry) Unregister(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok {
		return fmt.Errorf("unregister %s: %w", id, ErrNotFound)
	}
	if r.retainHistory && len(u.PreviousMatches) > 0 {
		r.retained[id] = u.PreviousMatches
	}
	delete(r.users, id)
	return nil
}

// Get returns a snapshot of the user.
func (r *Registry) Get(id string) (models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.users[id]
	if !ok {
		return models.User{}, fmt.Errorf("get %s: %w", id, ErrNotFound)
	}
	return u.Clone(), nil
}

// Len returns the number of registered users.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.users)
}

// Known reports whether the user is currently registered.
func (r *Registry) Known(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.users[id]
	return ok
}

// Transition moves a user between idle and waiting. Entering and leaving
// matched is only possible through CommitMatch and EndMatch, which keep the
// pairing symmetric.
func (r *Registry) Transition(id string, to models.UserState) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok {
		return fmt.Errorf("transition %s: %w", id, ErrNotFound)
	}
	legal := (u.State == models.StateIdle && to == models.StateWaiting) ||
		(u.State == models.StateWaiting && to == models.StateIdle)
	if !legal {
		return fmt.Errorf("transition %s: %s -> %s: %w", id, u.State, to, ErrInvalidTransition)
	}
	u.State = to
	return nil
}

// CommitMatch atomically pairs two users. Both must still be waiting at
// commit time; a failure means the optimistic match scan lost a race and
// should retry with fresh state.
func (r *Registry) CommitMatch(a, b string) error {
	if a == b {
		return fmt.Errorf("commit match %s with itself: %w", a, ErrInvalidTransition)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	ua, ok := r.users[a]
	if !ok {
		return fmt.Errorf("commit match %s: %w", a, ErrNotFound)
	}
	ub, ok := r.users[b]
	if !ok {
		return fmt.Errorf("commit match %s: %w", b, ErrNotFound)
	}
	if ua.State != models.StateWaiting || ub.State != models.StateWaiting {
		return fmt.Errorf("commit match %s/%s: not both waiting: %w", a, b, ErrInvalidTransition)
	}

	ua.State = models.StateMatched
	ua.MatchedWith = b
	ub.State = models.StateMatched
	ub.MatchedWith = a
	return nil
}

// EndMatch atomically dissolves the match the user is in and returns the
// peer's ID. Both sides go back to idle.
func (r *Registry) EndMatch(id string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok {
		return "", fmt.Errorf("end match %s: %w", id, ErrNotFound)
	}
	if u.State != models.StateMatched || u.MatchedWith == "" {
		return "", fmt.Errorf("end match %s: not matched: %w", id, ErrInvalidTransition)
	}

	peerID := u.MatchedWith
	u.State = models.StateIdle
	u.MatchedWith = ""

	// The peer may already be gone if it disconnected first.
	if peer, ok := r.users[peerID]; ok && peer.MatchedWith == id {
		peer.State = models.StateIdle
		peer.MatchedWith = ""
	}
	return peerID, nil
}

// Waiting returns snapshots of all waiting users ordered by JoinedAt, ties
// broken by ID so the result is reproducible.
func (r *Registry) Waiting() []models.User {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []models.User
	for _, u := range r.users {
		if u.State == models.StateWaiting {
			out = append(out, u.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].JoinedAt.Equal(out[j].JoinedAt) {
			return out[i].JoinedAt.Before(out[j].JoinedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// AddSkip records a mutual skip between a and b at ts. Storage primitive for
// the anti-rematch policy.
func (r *Registry) AddSkip(a, b string, ts time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	ua, ok := r.users[a]
	if !ok {
		return fmt.Errorf("add skip %s: %w", a, ErrNotFound)
	}
	ua.RecentSkips[b] = ts
	// The other side may have disconnected already; the cooldown still
	// applies from the survivor's side.
	if ub, ok := r.users[b]; ok {
		ub.RecentSkips[a] = ts
	}
	return nil
}

// AddPreviousMatch records that a and b have been paired, on both sides.
func (r *Registry) AddPreviousMatch(a, b string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	ua, ok := r.users[a]
	if !ok {
		return fmt.Errorf("add previous match %s: %w", a, ErrNotFound)
	}
	ub, ok := r.users[b]
	if !ok {
		return fmt.Errorf("add previous match %s: %w", b, ErrNotFound)
	}
	ua.PreviousMatches[b] = struct{}{}
	ub.PreviousMatches[a] = struct{}{}
	return nil
}

// AddBlock adds target to the user's block list. One-directional: blocking
// someone does not add you to their list, but eligibility checks both sides.
func (r *Registry) AddBlock(id, target string) error {
	if id == target {
		return fmt.Errorf("block %s: cannot block self: %w", id, ErrInvalidTransition)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok {
		return fmt.Errorf("block %s: %w", id, ErrNotFound)
	}
	u.BlockedUsers[target] = struct{}{}
	return nil
}
