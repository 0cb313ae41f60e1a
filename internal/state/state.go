// Package state holds the shared in-memory trading state that several
// loops touch concurrently: cooldowns and the in-flight trade guard.
package state

import (
	"sync"
	"time"
)

type cooldownKey struct {
	userID int64
	mint   string
}

// Tracker enforces per-(user, token) cooldowns and marks trades that
// are mid-execution so two loops cannot double-fire on the same token.
type Tracker struct {
	mu        sync.Mutex
	cooldowns map[cooldownKey]time.Time
	inFlight  map[cooldownKey]struct{}
	cooldown  time.Duration
}

// NewTracker creates a tracker with the given cooldown window.
func NewTracker(cooldown time.Duration) *Tracker {
	return &Tracker{
		cooldowns: make(map[cooldownKey]time.Time),
		inFlight:  make(map[cooldownKey]struct{}),
		cooldown:  cooldown,
	}
}

// OnCooldown reports whether a user traded this mint too recently.
func (t *Tracker) OnCooldown(userID int64, mint string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	until, ok := t.cooldowns[cooldownKey{userID, mint}]
	if !ok {
		return false
	}
	if time.Now().After(until) {
		delete(t.cooldowns, cooldownKey{userID, mint})
		return false
	}
	return true
}

// StartCooldown arms the cooldown after a trade completes.
func (t *Tracker) StartCooldown(userID int64, mint string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cooldowns[cooldownKey{userID, mint}] = time.Now().Add(t.cooldown)
}

// TryAcquire marks a (user, mint) trade as in flight. Returns false if
// one is already running.
func (t *Tracker) TryAcquire(userID int64, mint string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	key := cooldownKey{userID, mint}
	if _, ok := t.inFlight[key]; ok {
		return false
	}
	t.inFlight[key] = struct{}{}
	return true
}

// Release clears the in-flight mark.
func (t *Tracker) Release(userID int64, mint string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.inFlight, cooldownKey{userID, mint})
}
