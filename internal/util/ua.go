package util

import (
	"strings"

	"brandsite/internal/model"
)

// ParseDeviceType performs a best-effort device classification based on UA
// fragments. Page views only distinguish mobile, tablet and desktop.
func ParseDeviceType(ua string) string {
	ua = strings.ToLower(ua)
	switch {
	case strings.Contains(ua, "ipad") || strings.Contains(ua, "tablet"):
		return model.DeviceTablet
	case strings.Contains(ua, "android") && !strings.Contains(ua, "mobile"):
		return model.DeviceTablet
	case strings.Contains(ua, "mobile") || strings.Contains(ua, "iphone"):
		return model.DeviceMobile
	default:
		return model.DeviceDesktop
	}
}

// IsBot checks if a UA matches a configurable deny list.
func IsBot(ua string, denyList []string) bool {
	if ua == "" {
		return false
	}
	uaLower := strings.ToLower(ua)
	for _, fragment := range denyList {
		fragment = strings.ToLower(strings.TrimSpace(fragment))
		if fragment == "" {
			continue
		}
		if strings.Contains(uaLower, fragment) {
			return true
		}
	}
	return false
}
