// Package dateutils provides the civil-date and fixed-offset helpers used throughout the application.
package dateutils

import (
	"fmt"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
)

// Date layouts used throughout the application
const (
	DateLayoutISO     = "2006-01-02"
	DateLayoutCompact = "20060102"
	ClockLayout       = "15:04"
)

// CommonFormats is the list of formats accepted for a target date
var CommonFormats = []string{
	DateLayoutISO,
	DateLayoutCompact,
}

// ParseDate parses a calendar date in ISO (YYYY-MM-DD) or compact (YYYYMMDD)
// form. The result is a civil date: midnight UTC.
func ParseDate(dateStr string) (time.Time, error) {
	dateStr = strings.TrimSpace(dateStr)

	for _, format := range CommonFormats {
		if t, err := time.Parse(format, dateStr); err == nil {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("unable to parse date: %q (expected YYYY-MM-DD)", dateStr)
}

// ToISODate formats a time.Time value as an ISO date (YYYY-MM-DD)
func ToISODate(date time.Time) string {
	return date.Format(DateLayoutISO)
}

// Compact formats a date without separators (YYYYMMDD)
func Compact(date time.Time) string {
	return date.Format(DateLayoutCompact)
}

// Civil strips the clock and zone from t, keeping its wall-clock calendar
// date as midnight UTC.
func Civil(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Today returns the current civil date as observed in loc.
func Today(clock clockwork.Clock, loc *time.Location) time.Time {
	return Civil(clock.Now().In(loc))
}

// CompareDates compares two civil dates.
// Returns -1 if a < b, 0 if equal, 1 if a > b
func CompareDates(a, b time.Time) int {
	a, b = Civil(a), Civil(b)
	switch {
	case a.Before(b):
		return -1
	case a.After(b):
		return 1
	default:
		return 0
	}
}

// ParseUTCOffset parses a fixed civil offset such as "+05:30" or "-0300".
func ParseUTCOffset(offset string) (*time.Location, error) {
	offset = strings.TrimSpace(offset)
	for _, layout := range []string{"-07:00", "-0700"} {
		if t, err := time.Parse(layout, offset); err == nil {
			_, secs := t.Zone()
			return time.FixedZone("UTC"+offset, secs), nil
		}
	}
	return nil, fmt.Errorf("invalid UTC offset %q (expected ±HH:MM)", offset)
}

// ParseClockTime parses an HH:MM time of day into the duration since midnight.
func ParseClockTime(clock string) (time.Duration, error) {
	t, err := time.Parse(ClockLayout, strings.TrimSpace(clock))
	if err != nil {
		return 0, fmt.Errorf("invalid time of day %q (expected HH:MM): %w", clock, err)
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, nil
}

// TimeOfDay returns the time elapsed since local midnight of t.
func TimeOfDay(t time.Time) time.Duration {
	return time.Duration(t.Hour())*time.Hour +
		time.Duration(t.Minute())*time.Minute +
		time.Duration(t.Second())*time.Second +
		time.Duration(t.Nanosecond())
}
