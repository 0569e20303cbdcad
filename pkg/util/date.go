package util

import (
	"fmt"
	"time"
)

// DayLayout is the calendar date format used in requests, files and messages.
const DayLayout = "2006-01-02"

// ParseDay parses a YYYY-MM-DD date as midnight UTC.
func ParseDay(s string) (time.Time, error) {
	t, err := time.ParseInLocation(DayLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse day %q: %w", s, err)
	}
	return t, nil
}

// DayOrToday parses s, or returns today's UTC date when s is empty.
func DayOrToday(s string, now func() time.Time) (time.Time, error) {
	if s == "" {
		y, m, d := now().UTC().Date()
		return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), nil
	}
	return ParseDay(s)
}
