package pipeline

import (
	"net/url"
	"strings"

	"brandsite/internal/model"
	"brandsite/internal/util"
)

// Enrich turns a page-view beacon plus request metadata into a Visit.
// Campaign parameters are read from the page URL; a blank referrer or
// parameter becomes nil.
func Enrich(beacon model.PageViewBeacon, ua string) model.Visit {
	return model.Visit{
		Path:       NormalizePath(beacon.Path),
		UserAgent:  ua,
		DeviceType: util.ParseDeviceType(ua),
		Referrer:   nullable(beacon.Referrer),
		UTM:        parseUTM(beacon.URL),
	}
}

// NormalizePath strips query and fragment and guarantees a leading slash.
func NormalizePath(p string) string {
	p = strings.TrimSpace(p)
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return p
}

func parseUTM(rawURL string) model.UTM {
	if rawURL == "" {
		return model.UTM{}
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return model.UTM{}
	}
	values := u.Query()
	return model.UTM{
		Source:   nullable(values.Get("utm_source")),
		Medium:   nullable(values.Get("utm_medium")),
		Campaign: nullable(values.Get("utm_campaign")),
		Term:     nullable(values.Get("utm_term")),
		Content:  nullable(values.Get("utm_content")),
	}
}

func nullable(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
