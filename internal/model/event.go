package model

import (
	"encoding/json"
	"time"
)

// Device classes stored on page views.
const (
	DeviceMobile  = "mobile"
	DeviceTablet  = "tablet"
	DeviceDesktop = "desktop"
)

// ButtonType classifies a tracked click.
type ButtonType string

const (
	ButtonPurchase ButtonType = "purchase"
	ButtonContact  ButtonType = "contact"
	ButtonLink     ButtonType = "link"
)

// ParseButtonType maps free text to a ButtonType, defaulting to link.
func ParseButtonType(s string) ButtonType {
	switch ButtonType(s) {
	case ButtonPurchase, ButtonContact:
		return ButtonType(s)
	default:
		return ButtonLink
	}
}

// UTM holds the five campaign parameters. Empty strings are stored as NULL.
type UTM struct {
	Source   *string `json:"utm_source,omitempty"`
	Medium   *string `json:"utm_medium,omitempty"`
	Campaign *string `json:"utm_campaign,omitempty"`
	Term     *string `json:"utm_term,omitempty"`
	Content  *string `json:"utm_content,omitempty"`
}

// PageView is one session's visit to one path. Rows are versioned by
// Revision; the highest revision for an id is the current state.
type PageView struct {
	ID             string    `json:"id"`
	SessionID      string    `json:"session_id"`
	PagePath       string    `json:"page_path"`
	UserAgent      string    `json:"user_agent"`
	DeviceType     string    `json:"device_type"`
	Referrer       *string   `json:"referrer,omitempty"`
	UTM            UTM       `json:"utm"`
	ScrollDepth    int       `json:"scroll_depth"`
	TimeOnPage     int       `json:"time_on_page"`
	IsReturning    bool      `json:"is_returning"`
	PagesInSession int       `json:"pages_in_session"`
	IsBounce       bool      `json:"is_bounce"`
	CreatedAt      time.Time `json:"created_at"`
	Revision       uint32    `json:"revision"`
}

// ButtonClick is an append-only click row.
type ButtonClick struct {
	SessionID  string     `json:"session_id"`
	PagePath   string     `json:"page_path"`
	ButtonName string     `json:"button_name"`
	ButtonType ButtonType `json:"button_type"`
	CreatedAt  time.Time  `json:"created_at"`
}

// FunnelEvent is an append-only milestone row. EventData is raw JSON and may
// be empty.
type FunnelEvent struct {
	SessionID string          `json:"session_id"`
	PagePath  string          `json:"page_path"`
	EventName string          `json:"event_name"`
	EventData json.RawMessage `json:"event_data,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// Envelope kinds.
const (
	KindPageViewInsert = "page_view.insert"
	KindPageViewUpdate = "page_view.update"
	KindButtonClick    = "button_click"
	KindFunnelEvent    = "funnel_event"
)

// Envelope is the message carried on the telemetry topic.
type Envelope struct {
	Kind        string       `json:"kind"`
	PageView    *PageView    `json:"page_view,omitempty"`
	ButtonClick *ButtonClick `json:"button_click,omitempty"`
	FunnelEvent *FunnelEvent `json:"funnel_event,omitempty"`
	SentAt      time.Time    `json:"sent_at"`
}

// SessionID returns the session the envelope belongs to, used as the
// partition key.
func (e Envelope) SessionID() string {
	switch {
	case e.PageView != nil:
		return e.PageView.SessionID
	case e.ButtonClick != nil:
		return e.ButtonClick.SessionID
	case e.FunnelEvent != nil:
		return e.FunnelEvent.SessionID
	default:
		return ""
	}
}
