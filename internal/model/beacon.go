package model

import "encoding/json"

// PageViewBeacon is sent by the site on route entry.
type PageViewBeacon struct {
	Path     string `json:"path" binding:"required"`
	URL      string `json:"url"`
	Referrer string `json:"referrer"`
}

// ScrollBeacon carries the raw scroll geometry of the current document.
// View, when set, is the handle of the page view the sample belongs to.
type ScrollBeacon struct {
	View           uint64  `json:"view"`
	ScrollTop      float64 `json:"scroll_top" binding:"gte=0"`
	DocumentHeight float64 `json:"document_height" binding:"required,gt=0"`
	WindowHeight   float64 `json:"window_height" binding:"required,gt=0"`
}

// ClickBeacon reports a tracked button press.
type ClickBeacon struct {
	Path       string `json:"path" binding:"required"`
	ButtonName string `json:"button_name" binding:"required"`
	ButtonType string `json:"button_type"`
}

// FunnelBeacon reports a named funnel milestone.
type FunnelBeacon struct {
	Path      string          `json:"path" binding:"required"`
	EventName string          `json:"event_name" binding:"required"`
	EventData json.RawMessage `json:"event_data"`
}

// Visit is the enriched context of a route entry, fixed for the life of the
// page view it opens.
type Visit struct {
	Path       string
	UserAgent  string
	DeviceType string
	Referrer   *string
	UTM        UTM
}
