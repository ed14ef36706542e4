package service

import (
	"sync"
	"time"
)

// DefaultDebounceWindow is the minimum spacing between accepted triggers
// for one identity at one station.
const DefaultDebounceWindow = 5 * time.Second

// DebounceGuard remembers when each identity last produced an accepted
// trigger. One guard belongs to one scanning station and lives only while
// that station is scanning.
//
// Callers should pass time values read from time.Now so comparisons use the
// monotonic clock.
type DebounceGuard struct {
	window time.Duration

	mu   sync.Mutex
	last map[string]time.Time
}

func NewDebounceGuard(window time.Duration) *DebounceGuard {
	if window <= 0 {
		window = DefaultDebounceWindow
	}
	return &DebounceGuard{
		window: window,
		last:   make(map[string]time.Time),
	}
}

func (g *DebounceGuard) Window() time.Duration { return g.window }

// ShouldSuppress reports whether identityID triggered less than one window
// before now.
func (g *DebounceGuard) ShouldSuppress(identityID string, now time.Time) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.suppressedLocked(identityID, now)
}

// RecordTrigger marks now as the last accepted trigger for identityID.
func (g *DebounceGuard) RecordTrigger(identityID string, now time.Time) {
	g.mu.Lock()
	g.last[identityID] = now
	g.mu.Unlock()
}

// Admit is ShouldSuppress followed by RecordTrigger under one lock. It
// returns false, leaving the entry untouched, when the trigger is suppressed.
func (g *DebounceGuard) Admit(identityID string, now time.Time) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.suppressedLocked(identityID, now) {
		return false
	}
	g.last[identityID] = now
	return true
}

// Sweep drops entries whose window has elapsed and returns how many were
// removed. Swept identities behave exactly as if they had expired.
func (g *DebounceGuard) Sweep(now time.Time) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	n := 0
	for id, t := range g.last {
		if now.Sub(t) >= g.window {
			delete(g.last, id)
			n++
		}
	}
	return n
}

func (g *DebounceGuard) Reset() {
	g.mu.Lock()
	clear(g.last)
	g.mu.Unlock()
}

func (g *DebounceGuard) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.last)
}

func (g *DebounceGuard) suppressedLocked(identityID string, now time.Time) bool {
	t, ok := g.last[identityID]
	return ok && now.Sub(t) < g.window
}
