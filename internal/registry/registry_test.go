package registry_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"peerlink/backend/internal/models"
	"peerlink/backend/internal/registry"
)

func TestRegisterAndGet(t *testing.T) {
	reg := registry.New(0, false)

	u, err := reg.Register("user_A")
	require.NoError(t, err)
	assert.Equal(t, "user_A", u.ID)
	assert.Equal(t, models.StateIdle, u.State)
	assert.Empty(t, u.MatchedWith)

	got, err := reg.Get("user_A")
	require.NoError(t, err)
	assert.Equal(t, models.StateIdle, got.State)

	_, err = reg.Get("nobody")
	assert.ErrorIs(t, err, registry.ErrNotFound)
}

func TestRegisterDuplicate(t *testing.T) {
	reg := registry.New(0, false)

	_, err := reg.Register("user_A")
	require.NoError(t, err)

	_, err = reg.Register("user_A")
	assert.ErrorIs(t, err, registry.ErrAlreadyRegistered)
}

func TestRegisterCapacity(t *testing.T) {
	reg := registry.New(2, false)

	_, err := reg.Register("user_A")
	require.NoError(t, err)
	_, err = reg.Register("user_B")
	require.NoError(t, err)

	_, err = reg.Register("user_C")
	assert.ErrorIs(t, err, registry.ErrCapacity)

	// Freeing a slot makes room again.
	require.NoError(t, reg.Unregister("user_A"))
	_, err = reg.Register("user_C")
	assert.NoError(t, err)
}

func TestTransitionRules(t *testing.T) {
	reg := registry.New(0, false)
	_, err := reg.Register("user_A")
	require.NoError(t, err)

	// idle -> waiting is legal.
	require.NoError(t, reg.Transition("user_A", models.StateWaiting))
	// waiting -> idle is legal.
	require.NoError(t, reg.Transition("user_A", models.StateIdle))

	// idle -> matched must go through CommitMatch.
	err = reg.Transition("user_A", models.StateMatched)
	assert.ErrorIs(t, err, registry.ErrInvalidTransition)

	// idle -> idle is not a transition.
	err = reg.Transition("user_A", models.StateIdle)
	assert.ErrorIs(t, err, registry.ErrInvalidTransition)

	err = reg.Transition("ghost", models.StateWaiting)
	assert.ErrorIs(t, err, registry.ErrNotFound)
}

func TestCommitMatchSymmetry(t *testing.T) {
	reg := registry.New(0, false)
	for _, id := range []string{"user_A", "user_B"} {
		_, err := reg.Register(id)
		require.NoError(t, err)
		require.NoError(t, reg.Transition(id, models.StateWaiting))
	}

	require.NoError(t, reg.CommitMatch("user_A", "user_B"))

	a, _ := reg.Get("user_A")
	b, _ := reg.Get("user_B")
	assert.Equal(t, models.StateMatched, a.State)
	assert.Equal(t, models.StateMatched, b.State)
	assert.Equal(t, "user_B", a.MatchedWith)
	assert.Equal(t, "user_A", b.MatchedWith)
}

func TestCommitMatchRequiresBothWaiting(t *testing.T) {
	reg := registry.New(0, false)
	_, err := reg.Register("user_A")
	require.NoError(t, err)
	_, err = reg.Register("user_B")
	require.NoError(t, err)

	require.NoError(t, reg.Transition("user_A", models.StateWaiting))
	// user_B stayed idle: the optimistic scan must fail at commit time.
	err = reg.CommitMatch("user_A", "user_B")
	assert.ErrorIs(t, err, registry.ErrInvalidTransition)

	// Neither side may be left half-matched.
	a, _ := reg.Get("user_A")
	b, _ := reg.Get("user_B")
	assert.Equal(t, models.StateWaiting, a.State)
	assert.Equal(t, models.StateIdle, b.State)
	assert.Empty(t, a.MatchedWith)
	assert.Empty(t, b.MatchedWith)
}

func TestCommitMatchSelf(t *testing.T) {
	reg := registry.New(0, false)
	_, err := reg.Register("user_A")
	require.NoError(t, err)
	require.NoError(t, reg.Transition("user_A", models.StateWaiting))

	err = reg.CommitMatch("user_A", "user_A")
	assert.ErrorIs(t, err, registry.ErrInvalidTransition)
}

func TestEndMatch(t *testing.T) {
	reg := registry.New(0, false)
	for _, id := range []string{"user_A", "user_B"} {
		_, err := reg.Register(id)
		require.NoError(t, err)
		require.NoError(t, reg.Transition(id, models.StateWaiting))
	}
	require.NoError(t, reg.CommitMatch("user_A", "user_B"))

	peer, err := reg.EndMatch("user_A")
	require.NoError(t, err)
	assert.Equal(t, "user_B", peer)

	a, _ := reg.Get("user_A")
	b, _ := reg.Get("user_B")
	assert.Equal(t, models.StateIdle, a.State)
	assert.Equal(t, models.StateIdle, b.State)
	assert.Empty(t, a.MatchedWith)
	assert.Empty(t, b.MatchedWith)

	// Ending twice is an invalid transition, not a crash.
	_, err = reg.EndMatch("user_A")
	assert.ErrorIs(t, err, registry.ErrInvalidTransition)
}

func TestWaitingOrder(t *testing.T) {
	reg := registry.New(0, false)

	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	current := base
	reg.SetClock(func() time.Time { return current })

	_, err := reg.Register("user_B")
	require.NoError(t, err)
	current = base.Add(5 * time.Second)
	_, err = reg.Register("user_A")
	require.NoError(t, err)
	current = base.Add(5 * time.Second) // same joined time as user_A
	_, err = reg.Register("user_C")
	require.NoError(t, err)

	for _, id := range []string{"user_A", "user_B", "user_C"} {
		require.NoError(t, reg.Transition(id, models.StateWaiting))
	}

	waiting := reg.Waiting()
	require.Len(t, waiting, 3)
	assert.Equal(t, "user_B", waiting[0].ID, "oldest joiner first")
	assert.Equal(t, "user_A", waiting[1].ID, "equal join time ties break by ID")
	assert.Equal(t, "user_C", waiting[2].ID)
}

func TestHistoryRetention(t *testing.T) {
	t.Run("identity mode keeps previous matches", func(t *testing.T) {
		reg := registry.New(0, true)
		for _, id := range []string{"user_A", "user_B"} {
			_, err := reg.Register(id)
			require.NoError(t, err)
		}
		require.NoError(t, reg.AddPreviousMatch("user_A", "user_B"))

		require.NoError(t, reg.Unregister("user_A"))
		u, err := reg.Register("user_A")
		require.NoError(t, err)
		assert.True(t, u.HasMatched("user_B"))
	})

	t.Run("session mode drops previous matches", func(t *testing.T) {
		reg := registry.New(0, false)
		for _, id := range []string{"user_A", "user_B"} {
			_, err := reg.Register(id)
			require.NoError(t, err)
		}
		require.NoError(t, reg.AddPreviousMatch("user_A", "user_B"))

		require.NoError(t, reg.Unregister("user_A"))
		u, err := reg.Register("user_A")
		require.NoError(t, err)
		assert.False(t, u.HasMatched("user_B"))
	})
}

func TestAddSkipSurvivesPeerDeparture(t *testing.T) {
	reg := registry.New(0, false)
	_, err := reg.Register("user_A")
	require.NoError(t, err)

	// user_B is already gone; the skip still lands on user_A's side.
	now := time.Now()
	require.NoError(t, reg.AddSkip("user_A", "user_B", now))

	a, _ := reg.Get("user_A")
	assert.Equal(t, now, a.RecentSkips["user_B"])
}

// TestConcurrentCommit hammers CommitMatch from many goroutines over the same
// pool of waiting users and verifies no user ends up in two pairings.
func TestConcurrentCommit(t *testing.T) {
	reg := registry.New(0, false)
	ids := make([]string, 0, 16)
	for i := 0; i < 16; i++ {
		id := "user_" + string(rune('A'+i))
		ids = append(ids, id)
		_, err := reg.Register(id)
		require.NoError(t, err)
		require.NoError(t, reg.Transition(id, models.StateWaiting))
	}

	var wg sync.WaitGroup
	for i := 0; i < len(ids); i++ {
		for j := i + 1; j < len(ids); j++ {
			wg.Add(1)
			go func(a, b string) {
				defer wg.Done()
				_ = reg.CommitMatch(a, b) // most of these must lose the race
			}(ids[i], ids[j])
		}
	}
	wg.Wait()

	// Every matched user must point at a peer that points back.
	matched := 0
	for _, id := range ids {
		u, err := reg.Get(id)
		require.NoError(t, err)
		if u.State == models.StateMatched {
			matched++
			require.NotEqual(t, id, u.MatchedWith)
			peer, err := reg.Get(u.MatchedWith)
			require.NoError(t, err)
			assert.Equal(t, models.StateMatched, peer.State)
			assert.Equal(t, id, peer.MatchedWith)
		} else {
			assert.Empty(t, u.MatchedWith)
		}
	}
	assert.Equal(t, 0, matched%2, "matched users must come in pairs")
}
