package matchhub

import (
	"encoding/json"
	"errors"
	"log"
	"sync"
	"time"

	"peerlink/backend/internal/models"
	"peerlink/backend/internal/policy"
	"peerlink/backend/internal/registry"
)

// Hub owns the set of connected clients and routes every inbound event to
// the matcher, the relay, or the registry. Clients register and unregister
// through channels; everything a client sends arrives on IncomingCh.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]Client

	RegisterCh   chan Client
	UnregisterCh chan Client
	IncomingCh   chan InboundMessage

	registry *registry.Registry
	policy   *policy.Policy
	rooms    *RoomManager

	matcher *Matcher
	relay   *Relay

	now    func() time.Time
	stopCh chan struct{}
}

// NewHub creates a hub. The matcher and relay are attached afterwards with
// SetMatcher and SetRelay, since they in turn need the hub as their sink.
func NewHub(reg *registry.Registry, pol *policy.Policy, rooms *RoomManager) *Hub {
	return &Hub{
		clients:      make(map[string]Client),
		RegisterCh:   make(chan Client),
		UnregisterCh: make(chan Client),
		IncomingCh:   make(chan InboundMessage, 64),
		registry:     reg,
		policy:       pol,
		rooms:        rooms,
		now:          time.Now,
		stopCh:       make(chan struct{}),
	}
}

// SetMatcher attaches the matcher. Must be called before Run.
func (h *Hub) SetMatcher(m *Matcher) { h.matcher = m }

// SetRelay attaches the relay. Must be called before Run.
func (h *Hub) SetRelay(r *Relay) { h.relay = r }

// Run is the hub's dispatch loop. One goroutine.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.RegisterCh:
			h.handleRegister(client)
		case client := <-h.UnregisterCh:
			h.handleUnregister(client)
		case msg := <-h.IncomingCh:
			h.dispatch(msg)
		case <-h.stopCh:
			return
		}
	}
}

// Stop terminates the dispatch loop.
func (h *Hub) Stop() {
	close(h.stopCh)
}

// ClientCount returns the number of attached clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// SendToUser enqueues an envelope on the user's session queue. The send is
// non-blocking: a client whose buffer is full loses the envelope rather than
// stalling the core (signaling above us is expected to retry).
func (h *Hub) SendToUser(userID string, env models.Envelope) bool {
	h.mu.RLock()
	client, ok := h.clients[userID]
	h.mu.RUnlock()
	if !ok {
		return false
	}

	select {
	case client.GetSendChannel() <- env:
		return true
	default:
		log.Printf("debug: send buffer full for %s, dropping %s", userID, env.Event)
		return false
	}
}

// AssignRoom records the client's current chat room.
func (h *Hub) AssignRoom(userID, roomID string) {
	h.mu.RLock()
	client, ok := h.clients[userID]
	h.mu.RUnlock()
	if ok {
		client.SetRoomID(roomID)
	}
}

func (h *Hub) handleRegister(client Client) {
	id := client.GetUserID()

	if _, err := h.registry.Register(id); err != nil {
		log.Printf("register %s rejected: %v", id, err)
		h.sendError(client, err)
		client.Close()
		return
	}

	h.rooms.CreateUserRoom(id)

	h.mu.Lock()
	h.clients[id] = client
	h.mu.Unlock()

	log.Printf("client registered: %s", id)
}

// handleUnregister tears a departing user down: the disconnect is treated as
// an implicit skip without a cooldown recorded against the surviving peer.
func (h *Hub) handleUnregister(client Client) {
	id := client.GetUserID()

	h.mu.Lock()
	current, ok := h.clients[id]
	if !ok || current != client {
		// A stale pump from a superseded connection; nothing to tear down.
		h.mu.Unlock()
		client.Close()
		return
	}
	delete(h.clients, id)
	h.mu.Unlock()

	if peer, err := h.registry.EndMatch(id); err == nil {
		h.AssignRoom(peer, "")
		h.SendToUser(peer, models.NewEnvelope(models.EventMatchEnded, models.MatchEndedEvent{
			Reason: models.ReasonPeerDisconnected,
		}))
	}
	h.matcher.Forget(id)
	h.rooms.DestroyFor(id)

	if err := h.registry.Unregister(id); err != nil {
		log.Printf("unregister %s: %v", id, err)
	}
	client.Close()
	log.Printf("client unregistered: %s", id)
}

func (h *Hub) dispatch(msg InboundMessage) {
	switch msg.Env.Event {
	case models.EventStartSearch:
		h.handleStartSearch(msg.UserID)
	case models.EventStopSearch:
		h.handleStopSearch(msg.UserID)
	case models.EventSkip:
		h.handleSkip(msg.UserID)
	case models.EventBlock:
		h.handleBlock(msg.UserID, msg.Env.Data)
	case models.EventSignal:
		h.handleSignal(msg.UserID, msg.Env.Data)
	default:
		h.sendErrorTo(msg.UserID, "unknown event", "bad-event")
	}
}

func (h *Hub) handleStartSearch(userID string) {
	if err := h.matcher.RequestMatch(userID); err != nil {
		h.sendErrorTo(userID, err.Error(), errorCode(err))
	}
}

// handleStopSearch takes a waiting user out of the queue and acknowledges it.
// A stop from a user that was never searching is a silent no-op.
func (h *Hub) handleStopSearch(userID string) {
	u, err := h.registry.Get(userID)
	if err != nil || u.State != models.StateWaiting {
		return
	}
	h.matcher.CancelWait(userID)
	h.SendToUser(userID, models.NewEnvelope(models.EventMatchEnded, models.MatchEndedEvent{
		Reason: models.ReasonStopped,
	}))
}

// handleSkip ends the current pairing, records the mutual cooldown, tears the
// room down, and puts the skipper straight back into the queue.
func (h *Hub) handleSkip(userID string) {
	peer, err := h.registry.EndMatch(userID)
	if err != nil {
		h.sendErrorTo(userID, "no active match to skip", errorCode(err))
		return
	}

	if err := h.policy.RecordSkip(userID, peer, h.now()); err != nil {
		log.Printf("record skip %s/%s: %v", userID, peer, err)
	}

	if room, ok := h.rooms.ChatRoomFor(userID); ok {
		h.rooms.Destroy(room.RoomID)
	}
	h.AssignRoom(userID, "")
	h.AssignRoom(peer, "")

	h.SendToUser(peer, models.NewEnvelope(models.EventMatchEnded, models.MatchEndedEvent{
		Reason: models.ReasonPeerSkipped,
	}))

	// The skipper rejoins the queue immediately; the cooldown just recorded
	// keeps the same pair from reforming.
	if err := h.matcher.RequestMatch(userID); err != nil {
		h.sendErrorTo(userID, err.Error(), errorCode(err))
	}
}

func (h *Hub) handleBlock(userID string, data json.RawMessage) {
	var req models.BlockRequest
	if err := json.Unmarshal(data, &req); err != nil || req.UserID == "" {
		h.sendErrorTo(userID, "block requires a userId", "bad-request")
		return
	}
	if err := h.registry.AddBlock(userID, req.UserID); err != nil {
		h.sendErrorTo(userID, err.Error(), errorCode(err))
	}
}

func (h *Hub) handleSignal(userID string, data json.RawMessage) {
	var sig models.SignalData
	if err := json.Unmarshal(data, &sig); err != nil {
		h.sendErrorTo(userID, "malformed signal", "bad-request")
		return
	}

	if err := h.relay.Relay(userID, sig); err != nil {
		// Stale signals after teardown are expected; drop quietly.
		log.Printf("debug: %v", err)
	}
}

func (h *Hub) sendError(client Client, err error) {
	env := models.NewEnvelope(models.EventError, models.ErrorEvent{
		Message: err.Error(),
		Code:    errorCode(err),
	})
	select {
	case client.GetSendChannel() <- env:
	default:
	}
}

func (h *Hub) sendErrorTo(userID, message, code string) {
	h.SendToUser(userID, models.NewEnvelope(models.EventError, models.ErrorEvent{
		Message: message,
		Code:    code,
	}))
}

func errorCode(err error) string {
	switch {
	case errors.Is(err, registry.ErrAlreadyRegistered):
		return "already-registered"
	case errors.Is(err, registry.ErrNotFound):
		return "not-found"
	case errors.Is(err, registry.ErrInvalidTransition):
		return "invalid-transition"
	case errors.Is(err, registry.ErrCapacity):
		return "resource-exhausted"
	default:
		return "internal"
	}
}
