package services

import (
	"time"
)

const dateLayout = "2006-01-02"

// DayClock is the single source of "now" and "today" for the engine. Days are
// bucketed under a fixed offset from UTC with no daylight-saving adjustment, so
// a user acting around midnight is judged the same way regardless of client zone.
type DayClock struct {
	zone *time.Location
	now  func() time.Time
}

// NewDayClock builds a clock whose day boundary sits at offset from UTC.
func NewDayClock(offset time.Duration) *DayClock {
	return &DayClock{
		zone: time.FixedZone("day-boundary", int(offset/time.Second)),
		now:  time.Now,
	}
}

// WithNow returns a copy of the clock reading time from now. Intended for tests and replays.
func (c *DayClock) WithNow(now func() time.Time) *DayClock {
	return &DayClock{zone: c.zone, now: now}
}

// Now returns the current instant in UTC.
func (c *DayClock) Now() time.Time {
	return c.now().UTC()
}

// Today returns today's calendar date as YYYY-MM-DD.
func (c *DayClock) Today() string {
	return c.DayOf(c.now())
}

// StartOfToday returns midnight of today in the clock's zone.
func (c *DayClock) StartOfToday() time.Time {
	local := c.now().In(c.zone)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, c.zone)
}

// DayOf returns the calendar date t falls on.
func (c *DayClock) DayOf(t time.Time) string {
	return t.In(c.zone).Format(dateLayout)
}

// DaysSince returns the whole number of calendar days between the day of t and today.
// Dates are compared as UTC midnights so the result never depends on the process zone.
func (c *DayClock) DaysSince(t time.Time) int {
	return dayNumber(c.now().In(c.zone)) - dayNumber(t.In(c.zone))
}

func dayNumber(t time.Time) int {
	d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return int(d.Unix() / 86400)
}
