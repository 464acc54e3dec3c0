package handlers

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"brandsite/internal/auth"
	"brandsite/internal/model"
)

func TestPageViewIssuesSignedCookies(t *testing.T) {
	h := newHarness(t)

	w := h.do(t, http.MethodPost, "/v1/track/pageview", map[string]string{
		"path": "offers?ref=nav",
		"url":  "https://example.com/offers?utm_source=newsletter",
	})
	require.Equal(t, http.StatusAccepted, w.Code)
	require.Equal(t, float64(1), decode(t, w)["view"])

	sid := cookieNamed(w, sessionCookie)
	vid := cookieNamed(w, visitorCookie)
	require.NotNil(t, sid)
	require.NotNil(t, vid)
	require.Zero(t, sid.MaxAge)
	require.Equal(t, visitorMaxAge, vid.MaxAge)
	require.True(t, sid.HttpOnly)

	sessionID, ok := auth.VerifyValue(testSecret, sid.Value)
	require.True(t, ok)

	h.clock.Advance(500 * time.Millisecond)
	inserts := h.waitFor(t, model.KindPageViewInsert, 1)
	require.Len(t, inserts, 1)
	pv := inserts[0].PageView
	require.Equal(t, sessionID, pv.SessionID)
	require.Equal(t, "/offers", pv.PagePath)
	require.Equal(t, model.DeviceMobile, pv.DeviceType)
	require.Equal(t, "newsletter", *pv.UTM.Source)
	require.False(t, pv.IsReturning)
	require.Equal(t, 1, pv.PagesInSession)
}

func TestKnownVisitorIsReturning(t *testing.T) {
	h := newHarness(t)

	w := h.do(t, http.MethodPost, "/v1/track/pageview", map[string]string{"path": "/"},
		signed(visitorCookie, "visitor-1"))
	require.Equal(t, http.StatusAccepted, w.Code)
	require.Nil(t, cookieNamed(w, visitorCookie))

	h.clock.Advance(500 * time.Millisecond)
	inserts := h.waitFor(t, model.KindPageViewInsert, 1)
	require.True(t, inserts[0].PageView.IsReturning)
}

func TestTamperedSessionCookieIsReplaced(t *testing.T) {
	h := newHarness(t)

	forged := signed(sessionCookie, "victim")
	forged.Value = "victim.deadbeef"
	w := h.do(t, http.MethodPost, "/v1/track/pageview", map[string]string{"path": "/"}, forged)
	require.Equal(t, http.StatusAccepted, w.Code)

	sid := cookieNamed(w, sessionCookie)
	require.NotNil(t, sid)
	value, ok := auth.VerifyValue(testSecret, sid.Value)
	require.True(t, ok)
	require.NotEqual(t, "victim", value)
	_, exists := h.registry.Lookup("victim")
	require.False(t, exists)
}

func TestBotsAreIgnored(t *testing.T) {
	h := newHarness(t)

	req := map[string]string{"path": "/"}
	w := h.do(t, http.MethodPost, "/v1/track/pageview", req)
	require.Equal(t, http.StatusAccepted, w.Code)

	rec := h.doAs(t, "Googlebot/2.1 (+http://www.google.com/bot.html)", http.MethodPost, "/v1/track/pageview", req)
	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Equal(t, "ignored", decode(t, rec)["status"])
	require.Empty(t, rec.Result().Cookies())
	require.Equal(t, 1, h.registry.Len())
}

func TestPageViewRequiresPath(t *testing.T) {
	h := newHarness(t)
	w := h.do(t, http.MethodPost, "/v1/track/pageview", map[string]string{"url": "https://example.com"})
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLeaveFinalizesView(t *testing.T) {
	h := newHarness(t)
	sid := signed(sessionCookie, "sess-leave")

	w := h.do(t, http.MethodPost, "/v1/track/pageview", map[string]string{"path": "/about"}, sid)
	require.Equal(t, http.StatusAccepted, w.Code)
	h.clock.Advance(500 * time.Millisecond)
	h.waitFor(t, model.KindPageViewInsert, 1)

	w = h.do(t, http.MethodPost, "/v1/track/scroll", map[string]float64{
		"scroll_top": 500, "document_height": 2000, "window_height": 1000,
	}, sid)
	require.Equal(t, http.StatusAccepted, w.Code)
	h.clock.Advance(200 * time.Millisecond)
	h.waitFor(t, model.KindPageViewUpdate, 1)

	h.clock.Advance(30 * time.Second)
	w = h.do(t, http.MethodPost, "/v1/track/leave", map[string]uint64{"view": 1}, sid)
	require.Equal(t, http.StatusAccepted, w.Code)
	updates := h.waitFor(t, model.KindPageViewUpdate, 2)
	final := updates[len(updates)-1].PageView
	require.Equal(t, "sess-leave", final.SessionID)
	require.Equal(t, 50, final.ScrollDepth)
	require.GreaterOrEqual(t, final.TimeOnPage, 30)
	require.False(t, final.IsBounce)
}

func TestLeaveWithoutSessionIsHarmless(t *testing.T) {
	h := newHarness(t)
	w := h.do(t, http.MethodPost, "/v1/track/leave", nil)
	require.Equal(t, http.StatusAccepted, w.Code)
	require.Zero(t, h.registry.Len())
}

func TestClickBudgetPerButtonAndPath(t *testing.T) {
	h := newHarness(t)
	sid := signed(sessionCookie, "sess-click")
	click := map[string]string{"path": "/offers", "button_name": "Buy", "button_type": "purchase"}

	var statuses []any
	for range 4 {
		w := h.do(t, http.MethodPost, "/v1/track/click", click, sid)
		require.Equal(t, http.StatusAccepted, w.Code)
		statuses = append(statuses, decode(t, w)["status"])
	}
	require.Equal(t, []any{"accepted", "accepted", "accepted", "dropped"}, statuses)

	h.dispatch.Wait()
	clicks := h.sent.byKind(model.KindButtonClick)
	require.Len(t, clicks, 3)
	require.Equal(t, model.ButtonPurchase, clicks[0].ButtonClick.ButtonType)
}

func TestFunnelEventCarriesData(t *testing.T) {
	h := newHarness(t)
	w := h.do(t, http.MethodPost, "/v1/track/funnel", map[string]any{
		"path": "/offers", "event_name": "offer_viewed", "event_data": map[string]string{"offer_id": "o1"},
	}, signed(sessionCookie, "sess-funnel"))
	require.Equal(t, http.StatusAccepted, w.Code)

	h.dispatch.Wait()
	events := h.sent.byKind(model.KindFunnelEvent)
	require.Len(t, events, 1)
	require.JSONEq(t, `{"offer_id":"o1"}`, string(events[0].FunnelEvent.EventData))
}

func TestScrollRejectsIncompleteGeometry(t *testing.T) {
	h := newHarness(t)
	sid := signed(sessionCookie, "sess-scroll")

	w := h.do(t, http.MethodPost, "/v1/track/pageview", map[string]string{"path": "/about"}, sid)
	require.Equal(t, http.StatusAccepted, w.Code)
	h.clock.Advance(500 * time.Millisecond)
	h.waitFor(t, model.KindPageViewInsert, 1)

	for _, body := range []any{
		map[string]float64{},
		map[string]float64{"scroll_top": 300, "document_height": 2000},
		map[string]float64{"scroll_top": -5, "document_height": 2000, "window_height": 1000},
	} {
		w = h.do(t, http.MethodPost, "/v1/track/scroll", body, sid)
		require.Equal(t, http.StatusBadRequest, w.Code, "%v", body)
	}
	h.clock.Advance(200 * time.Millisecond)

	h.clock.Advance(20 * time.Second)
	w = h.do(t, http.MethodPost, "/v1/track/leave", nil, sid)
	require.Equal(t, http.StatusAccepted, w.Code)
	updates := h.waitFor(t, model.KindPageViewUpdate, 1)
	require.Len(t, updates, 1)
	require.Zero(t, updates[0].PageView.ScrollDepth)
}

func TestScrollForPreviousViewIsIgnored(t *testing.T) {
	h := newHarness(t)
	sid := signed(sessionCookie, "sess-nav")

	w := h.do(t, http.MethodPost, "/v1/track/pageview", map[string]string{"path": "/a"}, sid)
	first := decode(t, w)["view"]
	h.clock.Advance(500 * time.Millisecond)
	h.waitFor(t, model.KindPageViewInsert, 1)

	w = h.do(t, http.MethodPost, "/v1/track/pageview", map[string]string{"path": "/b"}, sid)
	second := decode(t, w)["view"]
	h.clock.Advance(500 * time.Millisecond)
	h.waitFor(t, model.KindPageViewInsert, 2)
	h.waitFor(t, model.KindPageViewUpdate, 1)

	w = h.do(t, http.MethodPost, "/v1/track/scroll", map[string]any{
		"view": first, "scroll_top": 1000, "document_height": 2000, "window_height": 1000,
	}, sid)
	require.Equal(t, http.StatusAccepted, w.Code)
	h.clock.Advance(200 * time.Millisecond)

	w = h.do(t, http.MethodPost, "/v1/track/leave", map[string]any{"view": second}, sid)
	require.Equal(t, http.StatusAccepted, w.Code)
	updates := h.waitFor(t, model.KindPageViewUpdate, 2)
	require.Len(t, updates, 2)
	for _, env := range updates {
		if env.PageView.PagePath == "/b" {
			require.Zero(t, env.PageView.ScrollDepth)
		}
	}
}
