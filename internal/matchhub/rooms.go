package matchhub

import (
	"errors"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"peerlink/backend/internal/models"
	"peerlink/backend/internal/registry"
)

// ErrNotInRoom means a signal referenced a room its sender is not a current
// member of, usually because the room was already torn down. Callers drop the
// signal rather than escalating.
var ErrNotInRoom = errors.New("sender not in room")

// RoomManager owns the lifecycle of all rooms: the chat rooms created by the
// matcher and the private per-connection rooms used for system messages. A
// periodic sweep reclaims rooms whose members vanished without an explicit
// leave, which bounds memory growth from dropped connections.
type RoomManager struct {
	mu    sync.RWMutex
	rooms map[string]*models.Room

	registry *registry.Registry
	grace    time.Duration
	now      func() time.Time

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewRoomManager creates a room manager. grace is how long an abandoned room
// survives before the sweep removes it. Call Start to run the sweep loop.
func NewRoomManager(reg *registry.Registry, grace time.Duration) *RoomManager {
	return &RoomManager{
		rooms:    make(map[string]*models.Room),
		registry: reg,
		grace:    grace,
		now:      time.Now,
		stopCh:   make(chan struct{}),
	}
}

// SetClock overrides the manager's time source. Tests only.
func (rm *RoomManager) SetClock(now func() time.Time) {
	rm.mu.Lock()
	rm.now = now
	rm.mu.Unlock()
}

// CreateChatRoom creates the pairing room for two matched users.
func (rm *RoomManager) CreateChatRoom(a, b string) models.Room {
	return rm.create([]string{a, b}, models.KindChat)
}

// CreateUserRoom creates the private room a user receives on registration.
func (rm *RoomManager) CreateUserRoom(userID string) models.Room {
	return rm.create([]string{userID}, models.KindUser)
}

func (rm *RoomManager) create(members []string, kind models.RoomKind) models.Room {
	room := &models.Room{
		RoomID:    uuid.New().String(),
		Members:   members,
		Kind:      kind,
		CreatedAt: rm.now(),
	}

	rm.mu.Lock()
	rm.rooms[room.RoomID] = room
	rm.mu.Unlock()

	return room.Clone()
}

// Destroy removes a room and with it all relay state scoped to it. Destroying
// an unknown room is a no-op: teardown races with late signals are expected.
func (rm *RoomManager) Destroy(roomID string) {
	rm.mu.Lock()
	delete(rm.rooms, roomID)
	rm.mu.Unlock()
}

// DestroyFor removes every room the user is a member of. Used on disconnect.
func (rm *RoomManager) DestroyFor(userID string) {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	for id, room := range rm.rooms {
		if room.Has(userID) {
			delete(rm.rooms, id)
		}
	}
}

// Get returns a snapshot of the room.
func (rm *RoomManager) Get(roomID string) (models.Room, bool) {
	rm.mu.RLock()
	defer rm.mu.RUnlock()

	room, ok := rm.rooms[roomID]
	if !ok {
		return models.Room{}, false
	}
	return room.Clone(), true
}

// RoomsFor returns snapshots of every room the user belongs to.
func (rm *RoomManager) RoomsFor(userID string) []models.Room {
	rm.mu.RLock()
	defer rm.mu.RUnlock()

	var out []models.Room
	for _, room := range rm.rooms {
		if room.Has(userID) {
			out = append(out, room.Clone())
		}
	}
	return out
}

// ChatRoomFor returns the chat room the user is currently paired in.
func (rm *RoomManager) ChatRoomFor(userID string) (models.Room, bool) {
	rm.mu.RLock()
	defer rm.mu.RUnlock()

	for _, room := range rm.rooms {
		if room.Kind == models.KindChat && room.Has(userID) {
			return room.Clone(), true
		}
	}
	return models.Room{}, false
}

// Peer validates that userID is a member of roomID with exactly one other
// member and returns that member.
func (rm *RoomManager) Peer(roomID, userID string) (string, error) {
	rm.mu.RLock()
	defer rm.mu.RUnlock()

	room, ok := rm.rooms[roomID]
	if !ok {
		return "", ErrNotInRoom
	}
	other := room.Other(userID)
	if other == "" {
		return "", ErrNotInRoom
	}
	return other, nil
}

// Count returns the number of live rooms.
func (rm *RoomManager) Count() int {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	return len(rm.rooms)
}

// Classify recomputes every room's kind and returns the per-kind breakdown.
// A room whose members have all unregistered without an explicit teardown is
// reclassified as abandoned and becomes eligible for the sweep.
func (rm *RoomManager) Classify() models.RoomStats {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	now := rm.now()
	var stats models.RoomStats
	for _, room := range rm.rooms {
		if room.Kind != models.KindAbandoned && rm.allGone(room) {
			room.Kind = models.KindAbandoned
			room.AbandonedAt = now
		}

		stats.Total++
		switch room.Kind {
		case models.KindUser:
			stats.UserRooms++
		case models.KindChat:
			stats.ChatRooms++
		case models.KindAbandoned:
			stats.AbandonedRooms++
		default:
			stats.OtherRooms++
		}
	}
	return stats
}

func (rm *RoomManager) allGone(room *models.Room) bool {
	for _, m := range room.Members {
		if rm.registry.Known(m) {
			return false
		}
	}
	return true
}

// Sweep classifies and removes abandoned rooms older than the grace period.
// It always re-evaluates from current state, so a transiently inconsistent
// pass heals on the next run.
func (rm *RoomManager) Sweep() int {
	rm.Classify()

	rm.mu.Lock()
	defer rm.mu.Unlock()

	now := rm.now()
	removed := 0
	for id, room := range rm.rooms {
		if room.Kind == models.KindAbandoned && now.Sub(room.AbandonedAt) >= rm.grace {
			delete(rm.rooms, id)
			removed++
		}
	}
	if removed > 0 {
		log.Printf("room sweep reclaimed %d abandoned room(s)", removed)
	}
	return removed
}

// Start runs the periodic sweep until Stop is called.
func (rm *RoomManager) Start(interval time.Duration) {
	rm.wg.Add(1)
	go func() {
		defer rm.wg.Done()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				rm.Sweep()
			case <-rm.stopCh:
				return
			}
		}
	}()
}

// Stop terminates the sweep loop.
func (rm *RoomManager) Stop() {
	close(rm.stopCh)
	rm.wg.Wait()
}
