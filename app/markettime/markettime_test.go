package markettime

import (
	"testing"
	"time"
)

func TestWeekendClosed(t *testing.T) {
	saturday := time.Date(2025, 7, 5, 12, 0, 0, 0, time.UTC)
	sunday := time.Date(2025, 7, 6, 12, 0, 0, 0, time.UTC)
	monday := time.Date(2025, 7, 7, 12, 0, 0, 0, time.UTC)

	if !IsMarketClosed(saturday) {
		t.Error("Saturday must be closed")
	}
	if !IsMarketClosed(sunday) {
		t.Error("Sunday must be closed")
	}
	if IsMarketClosed(monday) {
		t.Error("A plain Monday must be open")
	}
}

func TestFixedHolidays(t *testing.T) {
	tests := []struct {
		name string
		day  time.Time
	}{
		{"New Year's Day 2025", time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)},
		{"Juneteenth 2025", time.Date(2025, 6, 19, 12, 0, 0, 0, time.UTC)},
		{"Independence Day 2025", time.Date(2025, 7, 4, 12, 0, 0, 0, time.UTC)},
		{"Christmas 2025", time.Date(2025, 12, 25, 12, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !IsMarketClosed(tt.day) {
				t.Errorf("%s must be closed", tt.name)
			}
		})
	}
}

func TestObservedShift(t *testing.T) {
	// July 4 2026 falls on a Saturday; Friday July 3 is the observed holiday.
	observed := time.Date(2026, 7, 3, 12, 0, 0, 0, time.UTC)
	if !IsMarketClosed(observed) {
		t.Error("Observed Friday before a Saturday July 4 must be closed")
	}
}

func TestFloatingHolidays(t *testing.T) {
	tests := []struct {
		name string
		day  time.Time
	}{
		{"MLK Day 2025 (3rd Mon Jan)", time.Date(2025, 1, 20, 12, 0, 0, 0, time.UTC)},
		{"Presidents Day 2025 (3rd Mon Feb)", time.Date(2025, 2, 17, 12, 0, 0, 0, time.UTC)},
		{"Memorial Day 2025 (last Mon May)", time.Date(2025, 5, 26, 12, 0, 0, 0, time.UTC)},
		{"Labor Day 2025 (1st Mon Sep)", time.Date(2025, 9, 1, 12, 0, 0, 0, time.UTC)},
		{"Thanksgiving 2025 (4th Thu Nov)", time.Date(2025, 11, 27, 12, 0, 0, 0, time.UTC)},
		{"Good Friday 2025", time.Date(2025, 4, 18, 12, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !IsMarketClosed(tt.day) {
				t.Errorf("%s must be closed", tt.name)
			}
		})
	}
}

func TestStatusFor(t *testing.T) {
	holiday := time.Date(2025, 12, 25, 12, 0, 0, 0, time.UTC)
	if StatusFor(holiday) != StatusClosed {
		t.Error("Holiday must map to closed")
	}

	earlyMorning := time.Date(2025, 7, 7, 6, 0, 0, 0, time.UTC)
	if StatusFor(earlyMorning) != StatusQuiet {
		t.Error("Pre-open market day must map to quiet")
	}

	midday := time.Date(2025, 7, 7, 13, 0, 0, 0, time.UTC)
	if StatusFor(midday) != StatusOpen {
		t.Error("Midday market day must map to open")
	}
}

func TestBadge(t *testing.T) {
	if Badge(time.Date(2025, 7, 7, 12, 0, 0, 0, time.UTC)) != "Market Day" {
		t.Error("Expected 'Market Day' on a plain weekday")
	}
	if Badge(time.Date(2025, 7, 5, 12, 0, 0, 0, time.UTC)) != "Market Closed" {
		t.Error("Expected 'Market Closed' on a Saturday")
	}
}
