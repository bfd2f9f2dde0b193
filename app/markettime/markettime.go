// Package markettime determines U.S. equity market day status
// (NYSE/Nasdaq) from the weekday and the federal market holiday table.
package markettime

import (
	"time"
)

// Status describes the market-day hint used in prompts and digests.
type Status string

const (
	StatusOpen   Status = "open"
	StatusQuiet  Status = "quiet"
	StatusClosed Status = "closed"
)

// IsMarketClosed reports whether U.S. markets are closed for the local day.
// Only weekends and holidays count; intraday hours are ignored so a digest
// produced before the bell still reads as a market day.
func IsMarketClosed(t time.Time) bool {
	if t.Weekday() == time.Saturday || t.Weekday() == time.Sunday {
		return true
	}

	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	for _, holiday := range ObservedHolidays(t.Year()) {
		if holiday.Equal(day) {
			return true
		}
	}
	return false
}

// StatusFor maps a local time to the prompt hint: closed on weekends and
// holidays, quiet before the open on a market day, open otherwise.
func StatusFor(t time.Time) Status {
	if IsMarketClosed(t) {
		return StatusClosed
	}
	if t.Hour() < 9 {
		return StatusQuiet
	}
	return StatusOpen
}

// Badge returns the date badge label for the digest header.
func Badge(t time.Time) string {
	if IsMarketClosed(t) {
		return "Market Closed"
	}
	return "Market Day"
}

// ObservedHolidays returns the U.S. federal market holidays for a year as
// UTC midnights, with weekend fixed-date holidays shifted to their observed
// weekday.
func ObservedHolidays(year int) []time.Time {
	fixed := []time.Time{
		date(year, time.January, 1),   // New Year's Day
		date(year, time.June, 19),     // Juneteenth
		date(year, time.July, 4),      // Independence Day
		date(year, time.December, 25), // Christmas Day
	}

	holidays := make([]time.Time, 0, 12)
	for _, day := range fixed {
		holidays = append(holidays, day)
		switch day.Weekday() {
		case time.Saturday:
			holidays = append(holidays, day.AddDate(0, 0, -1))
		case time.Sunday:
			holidays = append(holidays, day.AddDate(0, 0, 1))
		}
	}

	holidays = append(holidays,
		nthWeekday(year, time.January, time.Monday, 3),    // MLK Jr Day
		nthWeekday(year, time.February, time.Monday, 3),   // Presidents Day
		lastWeekday(year, time.May, time.Monday),          // Memorial Day
		nthWeekday(year, time.September, time.Monday, 1),  // Labor Day
		nthWeekday(year, time.November, time.Thursday, 4), // Thanksgiving
		goodFriday(year),
	)

	return holidays
}

func date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

func nthWeekday(year int, month time.Month, weekday time.Weekday, n int) time.Time {
	day := date(year, month, 1)
	for day.Weekday() != weekday {
		day = day.AddDate(0, 0, 1)
	}
	return day.AddDate(0, 0, 7*(n-1))
}

func lastWeekday(year int, month time.Month, weekday time.Weekday) time.Time {
	day := date(year, month+1, 1).AddDate(0, 0, -1)
	for day.Weekday() != weekday {
		day = day.AddDate(0, 0, -1)
	}
	return day
}

// goodFriday computes the Friday before Easter via the anonymous Gregorian
// algorithm.
func goodFriday(year int) time.Time {
	a := year % 19
	b := year / 100
	c := year % 100
	d := b / 4
	e := b % 4
	f := (b + 8) / 25
	g := (b - f + 1) / 3
	h := (19*a + b - d - g + 15) % 30
	i := c / 4
	k := c % 4
	l := (32 + 2*e + 2*i - h - k) % 7
	m := (a + 11*h + 22*l) / 451
	month := (h + l - 7*m + 114) / 31
	day := 1 + (h+l-7*m+114)%31
	easter := date(year, time.Month(month), day)
	return easter.AddDate(0, 0, -2)
}
