package timeutil

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var ErrInvalidPeriod = errors.New("invalid period")

// periodKeyLayout is the canonical usage period key format; the day is always 01.
const periodKeyLayout = "2006-01-02"

// Window represents a normalized time window anchored to a location.
type Window struct {
	period string
	start  time.Time
	end    time.Time
	loc    *time.Location
}

// EnsureLocation returns UTC when loc is nil.
func EnsureLocation(loc *time.Location) *time.Location {
	if loc == nil {
		return time.UTC
	}
	return loc
}

// UsagePeriodKey returns the YYYY-MM-01 key for the calendar month containing t,
// evaluated in t's own location.
func UsagePeriodKey(t time.Time) string {
	return fmt.Sprintf("%04d-%02d-01", t.Year(), int(t.Month()))
}

// UsagePeriodKeyIn evaluates the usage period key in loc (nil means UTC).
func UsagePeriodKeyIn(t time.Time, loc *time.Location) string {
	return UsagePeriodKey(t.In(EnsureLocation(loc)))
}

// CurrentUsagePeriodKey returns the key for the month containing now in loc.
// A nil loc means the process local zone.
func CurrentUsagePeriodKey(loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	return UsagePeriodKeyIn(time.Now(), loc)
}

// UsagePeriodBounds parses a usage period key and returns the [start, end) bounds
// of that month in loc.
func UsagePeriodBounds(key string, loc *time.Location) (time.Time, time.Time, error) {
	loc = EnsureLocation(loc)
	key = strings.TrimSpace(key)
	parsed, err := time.ParseInLocation(periodKeyLayout, key, loc)
	if err != nil || parsed.Day() != 1 || parsed.Format(periodKeyLayout) != key {
		return time.Time{}, time.Time{}, ErrInvalidPeriod
	}
	start := time.Date(parsed.Year(), parsed.Month(), 1, 0, 0, 0, 0, loc)
	return start, start.AddDate(0, 1, 0), nil
}

// NewMonthWindow builds the window covering the month named by a usage period key.
func NewMonthWindow(key string, loc *time.Location) (Window, error) {
	start, end, err := UsagePeriodBounds(key, loc)
	if err != nil {
		return Window{}, err
	}
	return NewWindowFromRange(start, end, loc, strings.TrimSpace(key))
}

// NewWindowFromRange constructs a window covering the provided [start, end) bounds.
func NewWindowFromRange(start, end time.Time, loc *time.Location, label string) (Window, error) {
	loc = EnsureLocation(loc)
	start = start.In(loc)
	end = end.In(loc)
	if !end.After(start) {
		return Window{}, ErrInvalidPeriod
	}
	p := strings.ToLower(strings.TrimSpace(label))
	if p == "" {
		p = "custom"
	}
	return Window{
		period: p,
		start:  start,
		end:    end,
		loc:    loc,
	}, nil
}

// Period returns the normalized period label (e.g., "2024-03-01").
func (w Window) Period() string { return w.period }

// Start returns the inclusive start of the window.
func (w Window) Start() time.Time { return w.start }

// End returns the exclusive end of the window.
func (w Window) End() time.Time { return w.end }

// Location returns the reporting timezone for the window.
func (w Window) Location() *time.Location { return EnsureLocation(w.loc) }

// Timezone returns the location name for JSON responses.
func (w Window) Timezone() string { return w.Location().String() }

// StartString returns the start timestamp formatted as RFC3339 in the window's zone.
func (w Window) StartString() string { return w.start.In(w.Location()).Format(time.RFC3339) }

// EndString returns the end timestamp formatted as RFC3339 in the window's zone.
func (w Window) EndString() string { return w.end.In(w.Location()).Format(time.RFC3339) }

// Contains reports whether the timestamp falls within [start, end).
func (w Window) Contains(ts time.Time) bool {
	return !ts.Before(w.start) && ts.Before(w.end)
}
