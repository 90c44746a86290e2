package models

import "encoding/json"

// Inbound events, sent by clients over the WebSocket.
const (
	EventStartSearch = "start-search"
	EventStopSearch  = "stop-search"
	EventSkip        = "skip"
	EventBlock       = "block"
	EventSignal      = "signal"
)

// Outbound events, emitted by the core to clients.
const (
	EventWaitingForPeer = "waiting-for-peer"
	EventMatchReady     = "match-ready"
	EventMatchEnded     = "match-ended"
	EventError          = "error"
)

// Reasons carried by a match-ended event.
const (
	ReasonPeerSkipped      = "peer-skipped"
	ReasonPeerDisconnected = "peer-disconnected"
	ReasonStopped          = "stopped"
)

// Envelope is the wire frame for every WebSocket message in both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// NewEnvelope marshals v into an Envelope for event. Marshal failures are a
// programming error on our own payload types, so they surface as an empty
// Data rather than an error return.
func NewEnvelope(event string, v any) Envelope {
	if v == nil {
		return Envelope{Event: event}
	}
	data, err := json.Marshal(v)
	if err != nil {
		return Envelope{Event: event}
	}
	return Envelope{Event: event, Data: data}
}

// MatchReadyEvent tells a client its pairing is established. Exactly one side
// of a match receives IsInitiator == true and starts the WebRTC handshake.
type MatchReadyEvent struct {
	RoomID      string `json:"roomId"`
	IsInitiator bool   `json:"isInitiator"`
	PeerID      string `json:"peerId"`
	// Forced is true when the pairing was made past the wait threshold with
	// a normally ineligible candidate, so the UI can disclose it.
	Forced bool `json:"forced"`
}

// MatchEndedEvent tells a client its pairing is over.
type MatchEndedEvent struct {
	Reason string `json:"reason"`
}

// BlockRequest is the payload of an inbound block event.
type BlockRequest struct {
	UserID string `json:"userId"`
}

// ErrorEvent is an error surfaced to the client as a normal envelope; the
// core never tears the connection down for a rejected request.
type ErrorEvent struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}
