// Package period implements the calendar-day date filter shared by metrics
// and reports.
package period

import (
	"fmt"
	"strings"
	"time"

	"smartpdv/backend/internal/domain"
)

// Range is an inclusive calendar-day window. A zero Start or End leaves
// that side unbounded.
type Range struct {
	Start time.Time
	End   time.Time
}

// All is the unbounded range.
var All = Range{}

// NewRange builds a range from the start of startDay to the last
// millisecond of endDay, both in loc. Zero days stay unbounded.
func NewRange(startDay, endDay time.Time, loc *time.Location) Range {
	if loc == nil {
		loc = time.Local
	}
	var r Range
	if !startDay.IsZero() {
		y, m, d := startDay.Date()
		r.Start = time.Date(y, m, d, 0, 0, 0, 0, loc)
	}
	if !endDay.IsZero() {
		y, m, d := endDay.Date()
		r.End = time.Date(y, m, d, 23, 59, 59, int(999*time.Millisecond), loc)
	}
	return r
}

// ParseRange parses "2006-01-02" bounds. Empty strings are unbounded.
func ParseRange(start, end string, loc *time.Location) (Range, error) {
	startDay, err := parseDay(start)
	if err != nil {
		return Range{}, err
	}
	endDay, err := parseDay(end)
	if err != nil {
		return Range{}, err
	}
	r := NewRange(startDay, endDay, loc)
	if !r.Start.IsZero() && !r.End.IsZero() && r.End.Before(r.Start) {
		return Range{}, fmt.Errorf("%w: end %s is before start %s", domain.ErrInvalidPeriod, end, start)
	}
	return r, nil
}

func FromGoal(goal domain.Goal, loc *time.Location) Range {
	return NewRange(goal.StartDate.Time, goal.EndDate.Time, loc)
}

func parseDay(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(domain.DateLayout, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q is not a YYYY-MM-DD date", domain.ErrInvalidPeriod, raw)
	}
	return t, nil
}

func (r Range) Bounded() bool {
	return !r.Start.IsZero() || !r.End.IsZero()
}

func (r Range) Contains(t time.Time) bool {
	if !r.Start.IsZero() && t.Before(r.Start) {
		return false
	}
	if !r.End.IsZero() && t.After(r.End) {
		return false
	}
	return true
}

// Label renders the bounds as dates, empty for an open side.
func (r Range) Label() (start, end string) {
	if !r.Start.IsZero() {
		start = r.Start.Format(domain.DateLayout)
	}
	if !r.End.IsZero() {
		end = r.End.Format(domain.DateLayout)
	}
	return start, end
}

// Filter returns the items whose date falls in r. An unbounded range
// returns items unchanged.
func Filter[T any](items []T, r Range, dateOf func(T) time.Time) []T {
	if !r.Bounded() {
		return items
	}
	out := make([]T, 0, len(items))
	for _, item := range items {
		if r.Contains(dateOf(item)) {
			out = append(out, item)
		}
	}
	return out
}
