package timeutil

import (
	"errors"
	"testing"
	"time"
)

func TestUsagePeriodKeySameMonth(t *testing.T) {
	mid := time.Date(2024, time.March, 15, 12, 0, 0, 0, time.UTC)
	first := time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)
	last := time.Date(2024, time.March, 31, 23, 59, 59, 0, time.UTC)

	for _, ts := range []time.Time{mid, first, last} {
		if got := UsagePeriodKey(ts); got != "2024-03-01" {
			t.Fatalf("UsagePeriodKey(%v) = %s, want 2024-03-01", ts, got)
		}
	}
}

func TestUsagePeriodKeyDifferentMonthOrYear(t *testing.T) {
	march := UsagePeriodKey(time.Date(2024, time.March, 31, 23, 0, 0, 0, time.UTC))
	april := UsagePeriodKey(time.Date(2024, time.April, 1, 0, 0, 0, 0, time.UTC))
	if april != "2024-04-01" {
		t.Fatalf("unexpected april key %s", april)
	}
	if march == april {
		t.Fatalf("expected different keys for adjacent months")
	}

	lastYear := UsagePeriodKey(time.Date(2023, time.March, 10, 0, 0, 0, 0, time.UTC))
	if lastYear == march {
		t.Fatalf("expected different keys for the same month in different years")
	}
	if lastYear != "2023-03-01" {
		t.Fatalf("unexpected key %s", lastYear)
	}
}

func TestUsagePeriodKeyInUsesLocation(t *testing.T) {
	loc, err := time.LoadLocation("America/Los_Angeles")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	// 2024-04-01 03:00 UTC is still March 31 in Los Angeles.
	ts := time.Date(2024, time.April, 1, 3, 0, 0, 0, time.UTC)
	if got := UsagePeriodKeyIn(ts, loc); got != "2024-03-01" {
		t.Fatalf("expected march key in LA, got %s", got)
	}
	if got := UsagePeriodKeyIn(ts, nil); got != "2024-04-01" {
		t.Fatalf("expected april key in UTC, got %s", got)
	}
}

func TestCurrentUsagePeriodKeyMatchesNow(t *testing.T) {
	before := UsagePeriodKeyIn(time.Now(), time.UTC)
	got := CurrentUsagePeriodKey(time.UTC)
	after := UsagePeriodKeyIn(time.Now(), time.UTC)
	if got != before && got != after {
		t.Fatalf("unexpected current key %s", got)
	}
}

func TestCurrentUsagePeriodKeyNilIsLocal(t *testing.T) {
	before := UsagePeriodKey(time.Now())
	got := CurrentUsagePeriodKey(nil)
	after := UsagePeriodKey(time.Now())
	if got != before && got != after {
		t.Fatalf("expected local-zone key, got %s", got)
	}
}

func TestUsagePeriodBounds(t *testing.T) {
	start, end, err := UsagePeriodBounds("2024-02-01", time.UTC)
	if err != nil {
		t.Fatalf("bounds: %v", err)
	}
	if !start.Equal(time.Date(2024, time.February, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected start %v", start)
	}
	if !end.Equal(time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected end %v", end)
	}
	if UsagePeriodKey(start) != "2024-02-01" {
		t.Fatalf("start should round-trip to its key")
	}
}

func TestUsagePeriodBoundsRejectsMalformed(t *testing.T) {
	for _, key := range []string{"", "2024-02", "2024-02-15", "2024-13-01", "24-02-01", "2024-2-01"} {
		if _, _, err := UsagePeriodBounds(key, time.UTC); !errors.Is(err, ErrInvalidPeriod) {
			t.Fatalf("expected ErrInvalidPeriod for %q, got %v", key, err)
		}
	}
}

func TestNewMonthWindow(t *testing.T) {
	loc, err := time.LoadLocation("Europe/Berlin")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	win, err := NewMonthWindow("2024-12-01", loc)
	if err != nil {
		t.Fatalf("month window: %v", err)
	}
	if win.Period() != "2024-12-01" {
		t.Fatalf("unexpected period %s", win.Period())
	}
	if win.Timezone() != "Europe/Berlin" {
		t.Fatalf("unexpected timezone %s", win.Timezone())
	}
	if win.StartString() != "2024-12-01T00:00:00+01:00" {
		t.Fatalf("unexpected start %s", win.StartString())
	}
	if win.EndString() != "2025-01-01T00:00:00+01:00" {
		t.Fatalf("unexpected end %s", win.EndString())
	}
	if !win.Contains(time.Date(2024, time.December, 31, 22, 0, 0, 0, time.UTC)) {
		t.Fatalf("expected last evening of december inside window")
	}
	if win.Contains(time.Date(2024, time.December, 31, 23, 30, 0, 0, time.UTC)) {
		t.Fatalf("berlin new year should be outside window")
	}
}

func TestNewWindowFromRangeValidation(t *testing.T) {
	start := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	if _, err := NewWindowFromRange(start, start, time.UTC, "custom"); !errors.Is(err, ErrInvalidPeriod) {
		t.Fatalf("expected ErrInvalidPeriod, got %v", err)
	}
	win, err := NewWindowFromRange(start, start.Add(time.Hour), nil, "")
	if err != nil {
		t.Fatalf("range: %v", err)
	}
	if win.Period() != "custom" || win.Location() != time.UTC {
		t.Fatalf("unexpected window %+v", win)
	}
}
