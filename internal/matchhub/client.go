package matchhub

import "peerlink/backend/internal/models"

// Client is the interface for any type of connection attached to the hub.
// It abstracts the underlying transport, so the core never touches a socket
// directly; a future non-WebSocket transport only has to implement this.
type Client interface {
	// GetUserID returns the session identifier of the user behind the
	// connection.
	GetUserID() string
	// GetRoomID returns the chat room the client is currently paired in, or
	// "" when unpaired.
	GetRoomID() string
	// SetRoomID assigns the client to a chat room. Called by the matcher on
	// a successful pairing and cleared on teardown.
	SetRoomID(string)

	// GetSendChannel returns the channel through which the hub delivers
	// outbound envelopes to this client. It is the per-session outbound
	// event queue: the core enqueues, the transport drains.
	GetSendChannel() chan<- models.Envelope

	// Run starts the client's read and write pumps.
	Run()
	// Close shuts down the client's connection and send channel. It must be
	// idempotent: a rejected registration and the read pump's teardown can
	// both reach it for the same client.
	Close()
}

// InboundMessage is an envelope received from a client, stamped with the
// authenticated user it came from.
type InboundMessage struct {
	UserID string
	Env    models.Envelope
}

// EventSink delivers an outbound envelope to a user's session queue. The hub
// implements it; the relay depends on nothing more.
type EventSink interface {
	SendToUser(userID string, env models.Envelope) bool
}

// MatchNotifier is what the matcher needs from the hub: event delivery plus
// keeping each client's current room assignment in step with the pairing.
type MatchNotifier interface {
	EventSink
	AssignRoom(userID, roomID string)
}
