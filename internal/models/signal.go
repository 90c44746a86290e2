package models

import "encoding/json"

// WebRTC handshake signal types. Any other non-empty type is treated as an
// application payload (mini-games and the like) and forwarded through the
// same per-room channel without inspection.
const (
	SignalOffer     = "offer"
	SignalAnswer    = "answer"
	SignalCandidate = "candidate"
)

// SignalData is a transient relay message. It belongs to the sending peer;
// the relay forwards Payload verbatim and never mutates it.
type SignalData struct {
	Type    string          `json:"type"`
	RoomID  string          `json:"roomId"`
	Payload json.RawMessage `json:"payload,omitempty"`
	// SenderID is stamped by the hub from the authenticated connection, so
	// a client cannot spoof it. Omitted on the wire from the client side.
	SenderID string `json:"senderId,omitempty"`
}
