package tracker

import (
	"encoding/json"

	"brandsite/internal/model"
)

// TrackButtonClick records a click on a named button of path. It reports
// whether the click was accepted; over-budget clicks are dropped silently.
func (t *Tab) TrackButtonClick(path, name string, typ model.ButtonType) bool {
	if typ == "" {
		typ = model.ButtonLink
	}
	if !t.touch() {
		return false
	}
	if !t.allow("button-click:"+name+":"+path, "button_click", t.deps.Settings.ButtonClickRateLimit) {
		return false
	}
	t.deps.Dispatcher.insertButtonClick(model.ButtonClick{
		SessionID:  t.resolver.SessionID(),
		PagePath:   path,
		ButtonName: name,
		ButtonType: typ,
		CreatedAt:  t.deps.Clock.Now().UTC(),
	})
	return true
}

// TrackFunnelEvent records a named funnel milestone with optional JSON data.
func (t *Tab) TrackFunnelEvent(path, name string, data json.RawMessage) bool {
	if !t.touch() {
		return false
	}
	if !t.allow("funnel-event:"+name+":"+path, "funnel_event", t.deps.Settings.FunnelEventRateLimit) {
		return false
	}
	t.deps.Dispatcher.insertFunnelEvent(model.FunnelEvent{
		SessionID: t.resolver.SessionID(),
		PagePath:  path,
		EventName: name,
		EventData: data,
		CreatedAt: t.deps.Clock.Now().UTC(),
	})
	return true
}

func (t *Tab) touch() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return false
	}
	t.lastActive = t.deps.Clock.Now()
	return true
}
