package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Memory is an in-process sliding-window limiter. State is lost on restart.
type Memory struct {
	mu    sync.Mutex
	clock clockwork.Clock
	hits  map[string][]time.Time
}

// NewMemory builds an empty limiter reading time from clock.
func NewMemory(clock clockwork.Clock) *Memory {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Memory{
		clock: clock,
		hits:  make(map[string][]time.Time),
	}
}

// CanRequest drops timestamps that fell out of the window, then records now
// if the key still has budget.
func (m *Memory) CanRequest(_ context.Context, key string, rule Rule) bool {
	now := m.clock.Now()
	cutoff := now.Add(-rule.Window)

	m.mu.Lock()
	defer m.mu.Unlock()

	hits := m.hits[key]
	kept := hits[:0]
	for _, t := range hits {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	if len(kept) >= rule.MaxRequests {
		m.hits[key] = kept
		return false
	}
	m.hits[key] = append(kept, now)
	return true
}

// Clear forgets the history of one key.
func (m *Memory) Clear(_ context.Context, key string) {
	m.mu.Lock()
	delete(m.hits, key)
	m.mu.Unlock()
}

// ClearAll forgets every key.
func (m *Memory) ClearAll(_ context.Context) {
	m.mu.Lock()
	m.hits = make(map[string][]time.Time)
	m.mu.Unlock()
}

// Prune removes keys whose newest timestamp is older than maxWindow. The
// tracker registry calls it while sweeping idle sessions.
func (m *Memory) Prune(maxWindow time.Duration) int {
	cutoff := m.clock.Now().Add(-maxWindow)
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for key, hits := range m.hits {
		if len(hits) == 0 || !hits[len(hits)-1].After(cutoff) {
			delete(m.hits, key)
			removed++
		}
	}
	return removed
}
