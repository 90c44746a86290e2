package matchhub

import (
	"fmt"
	"log"

	"peerlink/backend/internal/models"
)

// Relay forwards signaling and application payloads between the two members
// of a room. Payloads pass through verbatim; the relay only validates
// membership and stamps the sender.
type Relay struct {
	rooms  *RoomManager
	sink   EventSink
	bridge *Bridge // nil when running single-instance
}

// NewRelay creates a relay. bridge may be nil.
func NewRelay(rooms *RoomManager, sink EventSink, bridge *Bridge) *Relay {
	return &Relay{rooms: rooms, sink: sink, bridge: bridge}
}

// Relay validates that fromUser is a member of the signal's room and forwards
// the payload to the one other member. ErrNotInRoom covers every stale-signal
// shape (room gone, sender not a member, no second member yet); callers treat
// it as best-effort and drop.
//
// Types beyond offer/answer/candidate are application payloads (mini-games)
// multiplexed over the same channel; they are forwarded the same way and can
// never affect room lifecycle.
func (r *Relay) Relay(fromUser string, sig models.SignalData) error {
	if sig.RoomID == "" || sig.Type == "" {
		return fmt.Errorf("relay from %s: malformed signal: %w", fromUser, ErrNotInRoom)
	}

	peer, err := r.rooms.Peer(sig.RoomID, fromUser)
	if err != nil {
		return fmt.Errorf("relay from %s to room %s: %w", fromUser, sig.RoomID, err)
	}

	sig.SenderID = fromUser

	// With the bridge enabled, delivery goes through Redis so members on
	// other instances see the signal too; our own subscription delivers to
	// local members. Without it, deliver directly.
	if r.bridge != nil {
		return r.bridge.Publish(sig)
	}

	if !r.sink.SendToUser(peer, models.NewEnvelope(models.EventSignal, sig)) {
		log.Printf("debug: relay: peer %s unreachable for room %s, dropping", peer, sig.RoomID)
	}
	return nil
}
