package analytics

import (
	"math"
	"sort"
	"strings"
	"time"

	"brandsite/internal/model"
)

const (
	topPagesLimit     = 5
	landingPagesLimit = 10
	exitPagesLimit    = 10

	unknownDevice = "unknown"
	directSource  = "direct"
)

// PathCount is a page path with a row count.
type PathCount struct {
	Path  string `json:"path"`
	Count int    `json:"count"`
}

// SourceCount is a utm_source value with a row count.
type SourceCount struct {
	Source string `json:"source"`
	Count  int    `json:"count"`
}

// PageConversion is the per-path conversion funnel. Views are unique
// sessions; conversions count sessions, not clicks.
type PageConversion struct {
	Path           string  `json:"path"`
	Views          int     `json:"views"`
	Clicks         int     `json:"clicks"`
	PurchaseClicks int     `json:"purchaseClicks"`
	ConversionRate float64 `json:"conversionRate"`
}

// FunnelStep is one funnel event name. DropoffRate is relative to the total
// volume of all funnel events, not to the previous step.
type FunnelStep struct {
	EventName   string `json:"eventName"`
	Count       int    `json:"count"`
	DropoffRate int    `json:"dropoffRate"`
}

// Snapshot is the dashboard aggregate for one window. It is recomputed on
// every load and never stored.
type Snapshot struct {
	Window      Window     `json:"window"`
	Since       *time.Time `json:"since,omitempty"`
	GeneratedAt time.Time  `json:"generatedAt"`

	TotalPageViews       int              `json:"totalPageViews"`
	UniqueSessions       int              `json:"uniqueSessions"`
	TotalClicks          int              `json:"totalClicks"`
	PurchaseClicks       int              `json:"purchaseClicks"`
	DeviceBreakdown      map[string]int   `json:"deviceBreakdown"`
	TopPages             []PathCount      `json:"topPages"`
	PageConversions      []PageConversion `json:"pageConversions"`
	UTMSources           []SourceCount    `json:"utmSources"`
	ConversionRate       float64          `json:"conversionRate"`
	AvgScrollDepth       float64          `json:"avgScrollDepth"`
	AvgTimeOnPage        float64          `json:"avgTimeOnPage"`
	BounceRate           float64          `json:"bounceRate"`
	ReturningVisitorRate float64          `json:"returningVisitorRate"`
	LandingPages         []PathCount      `json:"landingPages"`
	ExitPages            []PathCount      `json:"exitPages"`
	FunnelSteps          []FunnelStep     `json:"funnelSteps"`
}

// Conversion returns the conversion entry for path.
func (s Snapshot) Conversion(path string) (PageConversion, bool) {
	for _, pc := range s.PageConversions {
		if pc.Path == path {
			return pc, true
		}
	}
	return PageConversion{}, false
}

type sessionSet map[string]struct{}

func (s sessionSet) add(id string) {
	if id != "" {
		s[id] = struct{}{}
	}
}

// Aggregate folds raw rows into a snapshot. It is pure: the same rows always
// give the same snapshot apart from the caller-set window fields.
func Aggregate(views []model.PageView, clicks []model.ButtonClick, events []model.FunnelEvent) Snapshot {
	snap := Snapshot{
		TotalPageViews:  len(views),
		TotalClicks:     len(clicks),
		DeviceBreakdown: make(map[string]int),
	}

	sessions := sessionSet{}
	pathViews := map[string]int{}
	pathSessions := map[string]sessionSet{}
	utm := map[string]int{}
	landing := map[string]int{}
	exits := map[string]int{}
	var scrollSum, timeSum, bounces, returning int

	for _, pv := range views {
		sessions.add(pv.SessionID)

		device := pv.DeviceType
		if device == "" {
			device = unknownDevice
		}
		snap.DeviceBreakdown[device]++

		pathViews[pv.PagePath]++
		if pathSessions[pv.PagePath] == nil {
			pathSessions[pv.PagePath] = sessionSet{}
		}
		pathSessions[pv.PagePath].add(pv.SessionID)

		source := directSource
		if pv.UTM.Source != nil && *pv.UTM.Source != "" {
			source = *pv.UTM.Source
		}
		utm[source]++

		scrollSum += pv.ScrollDepth
		timeSum += pv.TimeOnPage
		if pv.IsBounce {
			bounces++
			// exitPages := bounce-only approximation; exits after page 2+ are
			// not counted.
			exits[pv.PagePath]++
		}
		if pv.IsReturning {
			returning++
		}
		if pv.PagesInSession == 1 {
			landing[pv.PagePath]++
		}
	}
	snap.UniqueSessions = len(sessions)

	pathClicks := map[string]int{}
	pathPurchases := map[string]int{}
	pathBuyers := map[string]sessionSet{}
	buyers := sessionSet{}
	for _, c := range clicks {
		pathClicks[c.PagePath]++
		if c.ButtonType != model.ButtonPurchase {
			continue
		}
		snap.PurchaseClicks++
		pathPurchases[c.PagePath]++
		if pathBuyers[c.PagePath] == nil {
			pathBuyers[c.PagePath] = sessionSet{}
		}
		pathBuyers[c.PagePath].add(c.SessionID)
		buyers.add(c.SessionID)
	}

	snap.TopPages = topPaths(pathViews, topPagesLimit)
	snap.LandingPages = topPaths(landing, landingPagesLimit)
	snap.ExitPages = topPaths(exits, exitPagesLimit)
	snap.UTMSources = rankSources(utm)
	snap.PageConversions = pageConversions(pathSessions, pathClicks, pathPurchases, pathBuyers)

	snap.ConversionRate = percent(overlap(buyers, sessions), len(sessions))
	snap.BounceRate = percent(bounces, len(views))
	snap.ReturningVisitorRate = percent(returning, len(views))
	if len(views) > 0 {
		snap.AvgScrollDepth = round2(float64(scrollSum) / float64(len(views)))
		snap.AvgTimeOnPage = round2(float64(timeSum) / float64(len(views)))
	}
	snap.FunnelSteps = funnelSteps(events)
	return snap
}

func pageConversions(viewers map[string]sessionSet, clicks, purchases map[string]int, buyers map[string]sessionSet) []PageConversion {
	out := make([]PageConversion, 0, len(viewers))
	for path, sessions := range viewers {
		if excludedPath(path) {
			continue
		}
		views := len(sessions)
		out = append(out, PageConversion{
			Path:           path,
			Views:          views,
			Clicks:         clicks[path],
			PurchaseClicks: purchases[path],
			ConversionRate: percent(overlap(buyers[path], sessions), views),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Views != out[j].Views {
			return out[i].Views > out[j].Views
		}
		return out[i].Path < out[j].Path
	})
	return out
}

func excludedPath(path string) bool {
	return strings.Contains(path, "/admin") || strings.Contains(path, "/auth")
}

func funnelSteps(events []model.FunnelEvent) []FunnelStep {
	counts := map[string]int{}
	for _, e := range events {
		counts[e.EventName]++
	}
	total := len(events)
	out := make([]FunnelStep, 0, len(counts))
	for name, n := range counts {
		dropoff := 0
		if total > 0 {
			dropoff = int(math.Round(float64(total-n) / float64(total) * 100))
		}
		out = append(out, FunnelStep{EventName: name, Count: n, DropoffRate: dropoff})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].EventName < out[j].EventName
	})
	return out
}

func topPaths(counts map[string]int, limit int) []PathCount {
	out := make([]PathCount, 0, len(counts))
	for path, n := range counts {
		out = append(out, PathCount{Path: path, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Path < out[j].Path
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

func rankSources(counts map[string]int) []SourceCount {
	out := make([]SourceCount, 0, len(counts))
	for source, n := range counts {
		out = append(out, SourceCount{Source: source, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Source < out[j].Source
	})
	return out
}

// overlap counts members of a that are also in b.
func overlap(a, b sessionSet) int {
	n := 0
	for id := range a {
		if _, ok := b[id]; ok {
			n++
		}
	}
	return n
}

// percent returns part/whole*100 rounded to two decimals, or 0 when whole is 0.
func percent(part, whole int) float64 {
	if whole == 0 {
		return 0
	}
	return round2(float64(part) / float64(whole) * 100)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
