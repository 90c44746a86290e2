package matchhub

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"peerlink/backend/internal/models"
	"peerlink/backend/internal/policy"
	"peerlink/backend/internal/registry"
)

// How often the background loop retries queued searchers. Also the upper
// bound on how late a forced match fires past its threshold.
const matchRetryInterval = 500 * time.Millisecond

// Matcher pairs waiting users. The scan over candidates is optimistic: it
// reads snapshots without holding the registry lock, then commits through
// registry.CommitMatch, which re-validates that both sides are still waiting.
// A lost race simply rescans.
type Matcher struct {
	registry *registry.Registry
	policy   *policy.Policy
	rooms    *RoomManager
	sink     MatchNotifier

	forcedAfter time.Duration

	// mu serializes match commits and guards searchingSince.
	mu sync.Mutex
	// searchingSince tracks when each user entered the queue; it drives the
	// forced-match threshold and the initiator choice.
	searchingSince map[string]time.Time

	now    func() time.Time
	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewMatcher creates a matcher. forcedAfter is how long a user waits before
// normally ineligible candidates become acceptable.
func NewMatcher(reg *registry.Registry, pol *policy.Policy, rooms *RoomManager, sink MatchNotifier, forcedAfter time.Duration) *Matcher {
	return &Matcher{
		registry:       reg,
		policy:         pol,
		rooms:          rooms,
		sink:           sink,
		forcedAfter:    forcedAfter,
		searchingSince: make(map[string]time.Time),
		now:            time.Now,
		stopCh:         make(chan struct{}),
	}
}

// SetClock overrides the matcher's time source. Tests only.
func (m *Matcher) SetClock(now func() time.Time) {
	m.mu.Lock()
	m.now = now
	m.mu.Unlock()
}

// RequestMatch moves the user into the waiting queue and immediately attempts
// to pair them. It never blocks on a missing partner: with no eligible
// candidate the user stays enqueued for the retry loop.
func (m *Matcher) RequestMatch(id string) error {
	if err := m.registry.Transition(id, models.StateWaiting); err != nil {
		if !errors.Is(err, registry.ErrInvalidTransition) {
			return err
		}
		// Re-requesting while already waiting is a harmless retry; any
		// other source state is a protocol violation.
		u, getErr := m.registry.Get(id)
		if getErr != nil {
			return getErr
		}
		if u.State != models.StateWaiting {
			return fmt.Errorf("request match: user is %s: %w", u.State, registry.ErrInvalidTransition)
		}
	}

	m.mu.Lock()
	if _, ok := m.searchingSince[id]; !ok {
		m.searchingSince[id] = m.now()
	}
	m.mu.Unlock()

	m.sink.SendToUser(id, models.NewEnvelope(models.EventWaitingForPeer, nil))
	m.tryMatch(id)
	return nil
}

// CancelWait returns a waiting user to idle and removes it from the queue.
// Effective immediately: once it returns, no later-committing scan can pick
// the user, because CommitMatch re-validates the waiting state. No-op for
// users that are not waiting.
func (m *Matcher) CancelWait(id string) {
	_ = m.registry.Transition(id, models.StateIdle)

	m.mu.Lock()
	delete(m.searchingSince, id)
	m.mu.Unlock()
}

// Forget drops matcher-local state for a user that is going away.
func (m *Matcher) Forget(id string) {
	m.mu.Lock()
	delete(m.searchingSince, id)
	m.mu.Unlock()
}

// tryMatch scans the waiting set for a partner for id and commits a pairing
// if one is found.
func (m *Matcher) tryMatch(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for {
		now := m.now()
		waiting := m.registry.Waiting()

		var requester *models.User
		var candidates []models.User
		for i := range waiting {
			if waiting[i].ID == id {
				requester = &waiting[i]
			} else {
				candidates = append(candidates, waiting[i])
			}
		}
		if requester == nil {
			return // no longer waiting
		}

		var eligible []models.User
		for _, c := range candidates {
			if m.policy.Eligible(*requester, c, now) {
				eligible = append(eligible, c)
			}
		}

		forced := false
		partner, ok := m.pickBest(*requester, eligible)
		if !ok {
			since, tracked := m.searchingSince[id]
			if !tracked || now.Sub(since) < m.forcedAfter {
				return
			}
			// Past the threshold: accept normally ineligible candidates.
			// Safety blocks still hold even here.
			var pool []models.User
			for _, c := range candidates {
				if !m.policy.Blocked(*requester, c) {
					pool = append(pool, c)
				}
			}
			partner, ok = m.pickBest(*requester, pool)
			if !ok {
				return
			}
			forced = true
		}

		if err := m.registry.CommitMatch(id, partner.ID); err != nil {
			if errors.Is(err, registry.ErrInvalidTransition) || errors.Is(err, registry.ErrNotFound) {
				continue // lost the race, rescan with fresh state
			}
			log.Printf("matcher: commit %s/%s: %v", id, partner.ID, err)
			return
		}

		m.finalizeMatch(id, partner.ID, forced)
		return
	}
}

// pickBest selects a partner: never-before-matched candidates first, then
// the longest-waiting (oldest JoinedAt), then lowest ID for reproducibility.
func (m *Matcher) pickBest(requester models.User, candidates []models.User) (models.User, bool) {
	var best *models.User
	for i := range candidates {
		c := &candidates[i]
		if best == nil || m.better(requester, c, best) {
			best = c
		}
	}
	if best == nil {
		return models.User{}, false
	}
	return *best, true
}

func (m *Matcher) better(requester models.User, a, b *models.User) bool {
	aNew := !requester.HasMatched(a.ID)
	bNew := !requester.HasMatched(b.ID)
	if aNew != bNew {
		return aNew
	}
	if !a.JoinedAt.Equal(b.JoinedAt) {
		return a.JoinedAt.Before(b.JoinedAt)
	}
	return a.ID < b.ID
}

// finalizeMatch runs after a committed pairing: room creation, history
// recording, and the match-ready notifications. Called with mu held.
func (m *Matcher) finalizeMatch(a, b string, forced bool) {
	room := m.rooms.CreateChatRoom(a, b)

	if err := m.policy.RecordMatch(a, b); err != nil {
		log.Printf("matcher: record match %s/%s: %v", a, b, err)
	}

	// The side that has been searching longer initiates the handshake.
	initiator := a
	sa, okA := m.searchingSince[a]
	sb, okB := m.searchingSince[b]
	switch {
	case okA && okB && !sa.Equal(sb):
		if sb.Before(sa) {
			initiator = b
		}
	case okB && !okA:
		initiator = b
	default:
		if b < a {
			initiator = b
		}
	}

	delete(m.searchingSince, a)
	delete(m.searchingSince, b)

	m.sink.AssignRoom(a, room.RoomID)
	m.sink.AssignRoom(b, room.RoomID)

	m.sink.SendToUser(a, models.NewEnvelope(models.EventMatchReady, models.MatchReadyEvent{
		RoomID:      room.RoomID,
		IsInitiator: initiator == a,
		PeerID:      b,
		Forced:      forced,
	}))
	m.sink.SendToUser(b, models.NewEnvelope(models.EventMatchReady, models.MatchReadyEvent{
		RoomID:      room.RoomID,
		IsInitiator: initiator == b,
		PeerID:      a,
		Forced:      forced,
	}))

	log.Printf("match committed: %s and %s in room %s (forced=%v)", a, b, room.RoomID, forced)
}

// Run drives the retry loop: queued searchers that found no partner on their
// own request get re-scanned periodically, which is also what fires forced
// matches once their threshold elapses.
func (m *Matcher) Run() {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()

		ticker := time.NewTicker(matchRetryInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				for _, u := range m.registry.Waiting() {
					m.tryMatch(u.ID)
				}
			case <-m.stopCh:
				return
			}
		}
	}()
}

// Stop terminates the retry loop.
func (m *Matcher) Stop() {
	close(m.stopCh)
	m.wg.Wait()
}
