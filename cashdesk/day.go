package cashdesk

import (
	"fmt"
	"time"
)

// =============================================================================
// CALENDAR DAYS
// =============================================================================
// Shift dates and daily summaries work on calendar days. A day is stored as
// midnight UTC of that date.

const DayLayout = "2006-01-02"

// Day truncates t to its calendar date (midnight UTC).
func Day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// NewDay builds a day from its parts.
func NewDay(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// ParseDay parses a YYYY-MM-DD string.
func ParseDay(s string) (time.Time, error) {
	t, err := time.Parse(DayLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid day %q (use YYYY-MM-DD): %w", s, err)
	}
	return t, nil
}

// DayBounds returns the first and last instant of day d.
func DayBounds(d time.Time) (time.Time, time.Time) {
	start := Day(d)
	return start, start.AddDate(0, 0, 1).Add(-time.Nanosecond)
}

func SameDay(a, b time.Time) bool { return Day(a).Equal(Day(b)) }
