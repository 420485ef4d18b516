package ledger

import (
	"fmt"
	"time"
)

// Filter returns the events with start <= timestamp <= end, preserving order.
// The input is not modified.
func Filter(events []Event, start, end time.Time) []Event {
	out := make([]Event, 0, len(events))
	for _, e := range events {
		if e.Timestamp.Before(start) || e.Timestamp.After(end) {
			continue
		}
		out = append(out, e)
	}
	return out
}

// DayRange expands date-only bounds to [start 00:00:00, end 23:59:59] in the
// bounds' own locations.
func DayRange(startDate, endDate time.Time) (time.Time, time.Time) {
	start := time.Date(startDate.Year(), startDate.Month(), startDate.Day(), 0, 0, 0, 0, startDate.Location())
	end := time.Date(endDate.Year(), endDate.Month(), endDate.Day(), 0, 0, 0, 0, endDate.Location()).
		AddDate(0, 0, 1).Add(-time.Second)
	return start, end
}

// ParseDate parses a YYYY-MM-DD date in loc.
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	d, err := time.ParseInLocation(DateLayout, s, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", s)
	}
	return d, nil
}

// ParseDayRange parses optional YYYY-MM-DD bounds. An empty start means the
// beginning of time and an empty end means no upper bound.
func ParseDayRange(startDate, endDate string, loc *time.Location) (time.Time, time.Time, error) {
	start := time.Time{}
	end := time.Date(9999, 12, 31, 23, 59, 59, 0, loc)

	if startDate != "" {
		d, err := ParseDate(startDate, loc)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		start, _ = DayRange(d, d)
	}
	if endDate != "" {
		d, err := ParseDate(endDate, loc)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		_, end = DayRange(d, d)
	}
	return start, end, nil
}
