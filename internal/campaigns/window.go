package campaigns

import (
	"fmt"
	"time"
)

func parseClock(s string) (int, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("campaigns: invalid time of day %q", s)
	}
	return t.Hour()*60 + t.Minute(), nil
}

// bounds returns the window in minutes after midnight, or -1, -1 when unset.
func (w SendWindow) bounds() (int, int, error) {
	if w.Start == "" && w.End == "" {
		return -1, -1, nil
	}
	start, err := parseClock(w.Start)
	if err != nil {
		return 0, 0, err
	}
	end, err := parseClock(w.End)
	if err != nil {
		return 0, 0, err
	}
	return start, end, nil
}

// NextOpen returns now when now falls inside the window, else the next time
// the window opens. An unset or invalid window is always open.
func (w SendWindow) NextOpen(now time.Time, loc *time.Location) (time.Time, bool) {
	start, end, err := w.bounds()
	if err != nil || start < 0 || start == end {
		return now, true
	}
	if loc == nil {
		loc = time.UTC
	}
	local := now.In(loc)
	m := local.Hour()*60 + local.Minute()

	inside := m >= start && m < end
	if start > end {
		inside = m >= start || m < end
	}
	if inside {
		return now, true
	}

	open := time.Date(local.Year(), local.Month(), local.Day(), start/60, start%60, 0, 0, loc)
	if !open.After(local) {
		open = open.AddDate(0, 0, 1)
	}
	return open, false
}

func startOfDay(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	l := t.In(loc)
	return time.Date(l.Year(), l.Month(), l.Day(), 0, 0, 0, 0, loc)
}
