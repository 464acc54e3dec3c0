package tracker

import (
	"context"
	"sync"
	"time"
)

// Registry hosts one Tab per browser session.
type Registry struct {
	mu   sync.Mutex
	deps Deps
	idle time.Duration
	tabs map[string]*Tab
}

// NewRegistry creates an empty registry. Tabs idle for longer than idle are
// evicted by Sweep.
func NewRegistry(deps Deps, idle time.Duration) *Registry {
	return &Registry{deps: deps, idle: idle, tabs: make(map[string]*Tab)}
}

// Tab returns the tab for sessionID, creating it on first use. visitorID only
// matters on creation.
func (r *Registry) Tab(sessionID, visitorID string) *Tab {
	r.mu.Lock()
	defer r.mu.Unlock()
	if tab, ok := r.tabs[sessionID]; ok {
		return tab
	}
	tab := NewTab(r.deps, sessionID, visitorID)
	r.tabs[sessionID] = tab
	r.deps.Metrics.Sessions.Set(float64(len(r.tabs)))
	return tab
}

// Lookup returns an existing tab.
func (r *Registry) Lookup(sessionID string) (*Tab, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	tab, ok := r.tabs[sessionID]
	return tab, ok
}

// Len reports the number of live tabs.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.tabs)
}

// Sweep abandons tabs that have been idle past the timeout and returns how
// many were evicted. Open views are finalized at the tab's last activity.
func (r *Registry) Sweep() int {
	cutoff := r.deps.Clock.Now().Add(-r.idle)
	r.mu.Lock()
	var stale []*Tab
	for id, tab := range r.tabs {
		if tab.LastActive().Before(cutoff) {
			stale = append(stale, tab)
			delete(r.tabs, id)
		}
	}
	r.deps.Metrics.Sessions.Set(float64(len(r.tabs)))
	r.mu.Unlock()

	for _, tab := range stale {
		tab.Expire()
	}
	if p, ok := r.deps.Limiter.(pruner); ok {
		p.Prune(r.longestWindow())
	}
	if len(stale) > 0 {
		r.deps.Logger.Debug("evicted idle sessions", "count", len(stale))
	}
	return len(stale)
}

type pruner interface {
	Prune(maxWindow time.Duration) int
}

func (r *Registry) longestWindow() time.Duration {
	s := r.deps.Settings
	return max(s.PageViewRateLimit.Window, s.ButtonClickRateLimit.Window, s.FunnelEventRateLimit.Window)
}

// Run sweeps on every interval until ctx is done.
func (r *Registry) Run(ctx context.Context, interval time.Duration) {
	ticker := r.deps.Clock.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			r.Sweep()
		}
	}
}

// Close finalizes every tab's open view and empties the registry.
func (r *Registry) Close() {
	r.mu.Lock()
	tabs := r.tabs
	r.tabs = make(map[string]*Tab)
	r.deps.Metrics.Sessions.Set(0)
	r.mu.Unlock()

	for _, tab := range tabs {
		tab.Close()
	}
}
