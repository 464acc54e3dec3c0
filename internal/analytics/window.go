package analytics

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Window selects the time range of a snapshot.
type Window string

const (
	Today Window = "today"
	Week  Window = "week"
	Month Window = "month"
	All   Window = "all"
)

// ErrInvalidWindow is returned for an unknown window name.
var ErrInvalidWindow = errors.New("invalid analytics window")

// ParseWindow accepts today, week, month or all. An empty string means week.
func ParseWindow(s string) (Window, error) {
	switch w := Window(strings.ToLower(strings.TrimSpace(s))); w {
	case "":
		return Week, nil
	case Today, Week, Month, All:
		return w, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidWindow, s)
	}
}

// Since resolves the window's lower bound. Today starts at midnight in loc;
// All has no bound.
func (w Window) Since(now time.Time, loc *time.Location) *time.Time {
	var since time.Time
	switch w {
	case Today:
		if loc == nil {
			loc = time.Local
		}
		local := now.In(loc)
		since = time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	case Week:
		since = now.Add(-7 * 24 * time.Hour)
	case Month:
		since = now.Add(-30 * 24 * time.Hour)
	default:
		return nil
	}
	return &since
}
