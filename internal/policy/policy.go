// Package policy decides whether two candidate users may be paired, based on
// blocks and recent-skip cooldowns, and records the pairing history the
// matcher consults for its soft tie-breaks.
package policy

import (
	"time"

	"peerlink/backend/internal/models"
	"peerlink/backend/internal/registry"
)

// Policy is pure with respect to the registry: Eligible reads snapshots only,
// and the record operations touch nothing but the policy-relevant fields.
type Policy struct {
	registry *registry.Registry
	cooldown time.Duration
}

// New creates a policy with the given skip-cooldown window.
func New(reg *registry.Registry, cooldown time.Duration) *Policy {
	return &Policy{registry: reg, cooldown: cooldown}
}

// Cooldown returns the configured skip-cooldown window.
func (p *Policy) Cooldown() time.Duration {
	return p.cooldown
}

// Eligible reports whether a and b may be paired at time now: neither blocks
// the other and no unexpired skip exists between them. Previous matches do
// not disqualify; the matcher only deprioritizes them.
func (p *Policy) Eligible(a, b models.User, now time.Time) bool {
	if a.ID == b.ID {
		return false
	}
	if a.Blocks(b.ID) || b.Blocks(a.ID) {
		return false
	}
	if p.skipActive(a, b.ID, now) || p.skipActive(b, a.ID, now) {
		return false
	}
	return true
}

// Blocked reports whether a block exists in either direction. Blocks hold
// even for forced matches.
func (p *Policy) Blocked(a, b models.User) bool {
	return a.Blocks(b.ID) || b.Blocks(a.ID)
}

func (p *Policy) skipActive(u models.User, peerID string, now time.Time) bool {
	ts, ok := u.RecentSkips[peerID]
	if !ok {
		return false
	}
	return now.Sub(ts) < p.cooldown
}

// RecordSkip inserts a mutual cooldown entry stamped at now.
func (p *Policy) RecordSkip(a, b string, now time.Time) error {
	return p.registry.AddSkip(a, b, now)
}

// RecordMatch appends each user to the other's previousMatches set.
func (p *Policy) RecordMatch(a, b string) error {
	return p.registry.AddPreviousMatch(a, b)
}
