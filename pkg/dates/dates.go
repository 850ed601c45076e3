package dates

import (
	"strings"
	"time"
)

// Entity dates are free-form strings typed by end users; ISO and the
// Turkish day-first forms are the ones that occur in real data files.
var layouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02 15:04:05",
	"02.01.2006",
	"02/01/2006",
	"02-01-2006",
}

// Parse parses a free-form date string. The boolean is false when the
// string matches none of the supported layouts.
func Parse(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// DaysBetween returns whole calendar days from a to b. Both dates are
// rebuilt at UTC midnight first, so neither time-of-day nor the zone a
// value was parsed or observed in can shift the count.
func DaysBetween(a, b time.Time) int {
	au := time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	bu := time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	return int(bu.Sub(au) / (24 * time.Hour))
}

// DaysUntil parses a date string and returns the whole-day offset from
// now to it. The boolean is false when the string is unparseable.
func DaysUntil(s string, now time.Time) (int, bool) {
	t, ok := Parse(s)
	if !ok {
		return 0, false
	}
	return DaysBetween(now, t), true
}
