package matchhub_test

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"peerlink/backend/internal/models"
)

// mockClient implements matchhub.Client for tests. Envelopes the hub sends
// arrive on Recv. Close mirrors the WebSocket client: it closes the send
// channel, exactly once.
type mockClient struct {
	userID string

	mu     sync.Mutex
	roomID string

	Recv      chan models.Envelope
	closeOnce sync.Once
}

func newMockClient(userID string) *mockClient {
	return &mockClient{
		userID: userID,
		Recv:   make(chan models.Envelope, 32),
	}
}

func (c *mockClient) GetUserID() string { return c.userID }

func (c *mockClient) GetRoomID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.roomID
}

func (c *mockClient) SetRoomID(roomID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.roomID = roomID
}

func (c *mockClient) GetSendChannel() chan<- models.Envelope { return c.Recv }

func (c *mockClient) Run() {}

func (c *mockClient) Close() {
	c.closeOnce.Do(func() {
		close(c.Recv)
	})
}

// waitEvent blocks until the client receives an envelope with the given
// event name, failing the test after a timeout. Envelopes for other events
// are discarded.
func (c *mockClient) waitEvent(t *testing.T, event string) models.Envelope {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case env, ok := <-c.Recv:
			if !ok {
				t.Fatalf("client %s: closed while waiting for %q", c.userID, event)
				return models.Envelope{}
			}
			if env.Event == event {
				return env
			}
		case <-deadline:
			t.Fatalf("client %s: timed out waiting for %q", c.userID, event)
			return models.Envelope{}
		}
	}
}

// expectSilence asserts the client receives nothing for the given window. A
// closed channel counts as silence.
func (c *mockClient) expectSilence(t *testing.T, d time.Duration) {
	t.Helper()
	select {
	case env, ok := <-c.Recv:
		if ok {
			t.Fatalf("client %s: unexpected envelope %q", c.userID, env.Event)
		}
	case <-time.After(d):
	}
}

func decodeInto[T any](t *testing.T, env models.Envelope) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(env.Data, &v); err != nil {
		t.Fatalf("decoding %s payload: %v", env.Event, err)
	}
	return v
}

// sinkRecorder implements matchhub.MatchNotifier, capturing every delivered
// envelope per user for direct component tests that bypass the hub.
type sinkRecorder struct {
	mu    sync.Mutex
	sent  map[string][]models.Envelope
	rooms map[string]string
}

func newSinkRecorder() *sinkRecorder {
	return &sinkRecorder{
		sent:  make(map[string][]models.Envelope),
		rooms: make(map[string]string),
	}
}

func (s *sinkRecorder) SendToUser(userID string, env models.Envelope) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent[userID] = append(s.sent[userID], env)
	return true
}

func (s *sinkRecorder) AssignRoom(userID, roomID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rooms[userID] = roomID
}

func (s *sinkRecorder) envelopes(userID string) []models.Envelope {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Envelope(nil), s.sent[userID]...)
}
