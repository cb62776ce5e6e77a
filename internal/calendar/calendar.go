// Package calendar defines the reference calendar used for daily streaks and
// daily challenge rotation. Calendar dates are represented as time.Time values
// at midnight UTC carrying the local year, month and day.
package calendar

import (
	"time"

	"github.com/jonboulle/clockwork"
)

type Calendar struct {
	loc   *time.Location
	clock clockwork.Clock
}

func New(loc *time.Location, clock clockwork.Clock) *Calendar {
	if loc == nil {
		loc = time.UTC
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Calendar{loc: loc, clock: clock}
}

// Now returns the current instant from the calendar's clock.
func (c *Calendar) Now() time.Time {
	return c.clock.Now()
}

// Today returns the current calendar date in the reference location.
func (c *Calendar) Today() time.Time {
	return DateOf(c.clock.Now(), c.loc)
}

func (c *Calendar) Location() *time.Location {
	return c.loc
}

// DateOf returns the calendar date of t as observed in loc.
func DateOf(t time.Time, loc *time.Location) time.Time {
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.UTC)
}

// Date builds a calendar date value.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// DaysBetween returns the number of whole calendar days from `from` to `to`.
// Both arguments must be calendar dates.
func DaysBetween(from, to time.Time) int {
	from = time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, time.UTC)
	to = time.Date(to.Year(), to.Month(), to.Day(), 0, 0, 0, 0, time.UTC)
	return int(to.Sub(from).Hours() / 24)
}
