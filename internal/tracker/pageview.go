package tracker

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"brandsite/internal/config"
	"brandsite/internal/identity"
	"brandsite/internal/model"
	"brandsite/internal/ratelimit"
	"brandsite/pkg/debounce"
)

// ViewHandle identifies one BeginView call. The zero handle is never issued.
type ViewHandle uint64

// Deps are shared by every tab.
type Deps struct {
	Clock      clockwork.Clock
	Limiter    ratelimit.Limiter
	Dispatcher *Dispatcher
	Settings   config.Tracking
	Logger     *slog.Logger
	Metrics    *Metrics
}

// Tab is the tracker state of one browser session. At most one page view is
// open at a time; beginning a new view always closes the previous one first.
type Tab struct {
	mu       sync.Mutex
	deps     Deps
	resolver *identity.Resolver
	keySpace string

	openDebounce   *debounce.Debouncer
	scrollDebounce *debounce.Debouncer

	seq        ViewHandle
	pending    ViewHandle
	handle     ViewHandle
	current    *model.PageView
	entry      time.Time
	maxScroll  int
	lastActive time.Time
	closed     bool
}

// NewTab creates the tracker state for a session. visitorID is the visitor
// token the browser already had, or empty for a browser seen for the first
// time.
func NewTab(deps Deps, sessionID, visitorID string) *Tab {
	if deps.Clock == nil {
		deps.Clock = clockwork.NewRealClock()
	}
	tabStore := identity.NewMemoryStorage()
	tabStore.Set(identity.SessionKey, sessionID)
	durable := identity.NewMemoryStorage()
	if visitorID != "" {
		durable.Set(identity.VisitorKey, visitorID)
	}
	now := deps.Clock.Now()
	return &Tab{
		deps:           deps,
		resolver:       identity.NewResolver(tabStore, durable),
		keySpace:       sessionID,
		openDebounce:   debounce.New(deps.Clock, deps.Settings.PageViewDebounce),
		scrollDebounce: debounce.New(deps.Clock, deps.Settings.ScrollDebounce),
		entry:          now,
		lastActive:     now,
	}
}

// SessionID returns the session this tab tracks.
func (t *Tab) SessionID() string {
	return t.resolver.SessionID()
}

// BeginView closes any open view and schedules the open of a new one once
// navigation settles. Only the last of a burst of calls opens a view.
func (t *Tab) BeginView(visit model.Visit) ViewHandle {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return 0
	}
	t.endLocked()
	t.seq++
	h := t.seq
	t.pending = h
	t.handle = h
	t.lastActive = t.deps.Clock.Now()
	t.openDebounce.Call(func() { t.open(h, visit) })
	return h
}

func (t *Tab) open(h ViewHandle, visit model.Visit) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed || h != t.pending {
		return
	}
	t.pending = 0

	if !t.allow("page-view:"+visit.Path, "page_view", t.deps.Settings.PageViewRateLimit) {
		return
	}

	pv := model.PageView{
		ID:             uuid.NewString(),
		SessionID:      t.resolver.SessionID(),
		PagePath:       visit.Path,
		UserAgent:      visit.UserAgent,
		DeviceType:     visit.DeviceType,
		Referrer:       visit.Referrer,
		UTM:            visit.UTM,
		IsReturning:    t.resolver.IsReturningVisitor(),
		PagesInSession: t.resolver.NextPageCount(),
		CreatedAt:      t.deps.Clock.Now().UTC(),
		Revision:       1,
	}
	t.current = &pv
	t.deps.Dispatcher.insertPageView(pv)
}

// Scroll records a scroll sample once scrolling settles. The maximum depth
// only grows; each increase on an open view is written through. A sample
// naming a view other than the current one is dropped.
func (t *Tab) Scroll(sample model.ScrollBeacon) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}
	if sample.View != 0 && ViewHandle(sample.View) != t.handle {
		return
	}
	t.lastActive = t.deps.Clock.Now()
	t.scrollDebounce.Call(func() { t.applyScroll(sample) })
}

func (t *Tab) applyScroll(sample model.ScrollBeacon) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}
	depth := ScrollPercent(sample)
	if depth <= t.maxScroll {
		return
	}
	t.maxScroll = depth
	if t.current == nil {
		return
	}
	t.current.ScrollDepth = depth
	t.current.Revision++
	t.deps.Dispatcher.updatePageView(*t.current)
}

// EndView finalizes the view opened by h. Handles of views already closed
// are ignored.
func (t *Tab) EndView(h ViewHandle) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if h == 0 || h != t.handle {
		return
	}
	t.endLocked()
}

// EndCurrent finalizes whatever view is open, as on page unload.
func (t *Tab) EndCurrent() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.endLocked()
}

// Close finalizes the open view and stops all timers. The tab accepts no
// further calls.
func (t *Tab) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}
	t.endLocked()
	t.closed = true
}

// Expire finalizes the open view as if the visitor left at their last
// activity, then stops all timers. Used when a session goes idle without an
// unload beacon.
func (t *Tab) Expire() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}
	t.endAt(t.lastActive)
	t.closed = true
}

// LastActive reports when the tab last received a call.
func (t *Tab) LastActive() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastActive
}

func (t *Tab) endLocked() {
	t.endAt(t.deps.Clock.Now())
}

func (t *Tab) endAt(now time.Time) {
	if t.pending != 0 {
		t.openDebounce.Cancel()
		t.pending = 0
	}
	t.scrollDebounce.Cancel()

	if t.current != nil {
		timeOnPage := int(math.Round(now.Sub(t.entry).Seconds()))
		if timeOnPage < 0 {
			timeOnPage = 0
		}
		pages := t.resolver.PageCount()
		pv := *t.current
		pv.ScrollDepth = t.maxScroll
		pv.TimeOnPage = timeOnPage
		pv.IsBounce = pages == 1 && time.Duration(timeOnPage)*time.Second < t.deps.Settings.BounceThreshold
		pv.Revision++
		t.deps.Dispatcher.updatePageView(pv)
	}

	t.entry = now
	t.maxScroll = 0
	t.current = nil
	t.handle = 0
	t.lastActive = now
}

// allow checks the session-scoped limiter key and counts rejections.
func (t *Tab) allow(key, kind string, rule ratelimit.Rule) bool {
	ctx, cancel := context.WithTimeout(context.Background(), t.deps.Settings.WriteTimeout)
	defer cancel()
	if t.deps.Limiter.CanRequest(ctx, t.keySpace+":"+key, rule) {
		return true
	}
	t.deps.Metrics.RateLimited.WithLabelValues(kind).Inc()
	return false
}

// ScrollPercent converts scroll geometry into a 0..100 depth. A document that
// cannot scroll is fully seen; a sample without real heights counts as 0.
func ScrollPercent(s model.ScrollBeacon) int {
	if !(s.DocumentHeight > 0 && s.WindowHeight > 0) {
		return 0
	}
	scrollable := s.DocumentHeight - s.WindowHeight
	if scrollable <= 0 {
		return 100
	}
	pct := math.Round(s.ScrollTop / scrollable * 100)
	switch {
	case math.IsNaN(pct) || pct < 0:
		return 0
	case pct > 100:
		return 100
	default:
		return int(pct)
	}
}
