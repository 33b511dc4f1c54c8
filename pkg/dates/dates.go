// Package dates holds the calendar-day arithmetic shared by record badges and
// dashboards. All comparisons are at day granularity in a given location.
package dates

import (
	"fmt"
	"time"
)

const (
	// ISOLayout is the wire format of date-only fields.
	ISOLayout = "2006-01-02"
	// DisplayLayout is how dates appear in view payloads.
	DisplayLayout = "Jan 2, 2006"
	TimeLayout    = "3:04 PM"
)

// Day truncates t to midnight in loc. The result is a UTC time carrying
// the calendar date, so two Days compare by date alone.
func Day(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DateOnly interprets a stored DATE value, whose location is irrelevant, as a
// calendar day comparable with Day.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DaysUntil returns the number of calendar days from today (in loc) to the
// stored date d. Negative means d is in the past.
func DaysUntil(d time.Time, now time.Time, loc *time.Location) int {
	return int(DateOnly(d).Sub(Day(now, loc)).Hours() / 24)
}

// Parse reads a YYYY-MM-DD date.
func Parse(s string) (time.Time, error) {
	t, err := time.Parse(ISOLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD", s)
	}
	return t, nil
}

// ParseOptional returns nil for an empty string.
func ParseOptional(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := Parse(s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func Display(t time.Time) string {
	return t.Format(DisplayLayout)
}

// RelativeDay labels t as "Today", "Tomorrow" or its display date.
func RelativeDay(t, now time.Time, loc *time.Location) string {
	switch int(Day(t, loc).Sub(Day(now, loc)).Hours() / 24) {
	case 0:
		return "Today"
	case 1:
		return "Tomorrow"
	default:
		if loc == nil {
			loc = time.UTC
		}
		return Display(t.In(loc))
	}
}
