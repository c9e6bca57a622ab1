// Package market decides whether the Tokyo cash session is open and counts business days.
package market

import (
	"fmt"
	"time"
)

// Clock is a time of day in minutes after midnight.
type Clock int

// ParseClock parses "HH:MM".
func ParseClock(s string) (Clock, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("parse clock %q: %w", s, err)
	}
	return Clock(t.Hour()*60 + t.Minute()), nil
}

func (c Clock) String() string { return fmt.Sprintf("%02d:%02d", int(c)/60, int(c)%60) }

// Session is a half-open trading window [Start, End).
type Session struct {
	Name  string
	Start Clock
	End   Clock
}

// Calendar holds the exchange's timezone, sessions and holidays.
type Calendar struct {
	Location *time.Location
	Sessions []Session
	Holidays map[string]bool // "2006-01-02" in Location
}

// TokyoCalendar returns the TSE cash sessions: 09:00-11:30 and 12:30-15:30 JST.
func TokyoCalendar() *Calendar {
	loc, err := time.LoadLocation("Asia/Tokyo")
	if err != nil {
		// no tzdata on the host; JST has no DST
		loc = time.FixedZone("JST", 9*60*60)
	}
	return &Calendar{
		Location: loc,
		Sessions: []Session{
			{Name: "morning", Start: 9 * 60, End: 11*60 + 30},
			{Name: "afternoon", Start: 12*60 + 30, End: 15*60 + 30},
		},
		Holidays: map[string]bool{},
	}
}

// AddHolidays marks dates ("2006-01-02") as closed.
func (c *Calendar) AddHolidays(dates ...string) error {
	if c.Holidays == nil {
		c.Holidays = make(map[string]bool, len(dates))
	}
	for _, d := range dates {
		if _, err := time.ParseInLocation("2006-01-02", d, c.Location); err != nil {
			return fmt.Errorf("parse holiday %q: %w", d, err)
		}
		c.Holidays[d] = true
	}
	return nil
}

// IsBusinessDay reports whether t falls on a weekday that is not a holiday.
func (c *Calendar) IsBusinessDay(t time.Time) bool {
	lt := t.In(c.Location)
	switch lt.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	return !c.Holidays[lt.Format("2006-01-02")]
}

// SessionAt returns the session containing t, if any.
func (c *Calendar) SessionAt(t time.Time) (Session, bool) {
	if !c.IsBusinessDay(t) {
		return Session{}, false
	}
	lt := t.In(c.Location)
	now := Clock(lt.Hour()*60 + lt.Minute())
	for _, s := range c.Sessions {
		if now >= s.Start && now < s.End {
			return s, true
		}
	}
	return Session{}, false
}

// IsOpen reports whether a monitoring pass should run at t.
func (c *Calendar) IsOpen(t time.Time) bool {
	_, ok := c.SessionAt(t)
	return ok
}

// BusinessDaysBetween counts business days after from's date up to and including to's date.
// It is zero when to is on or before from.
func (c *Calendar) BusinessDaysBetween(from, to time.Time) int {
	start := dateOf(from.In(c.Location))
	end := dateOf(to.In(c.Location))
	n := 0
	for d := start.AddDate(0, 0, 1); !d.After(end); d = d.AddDate(0, 0, 1) {
		if c.IsBusinessDay(d) {
			n++
		}
	}
	return n
}

// AddBusinessDays moves t forward by n business days, keeping the time of day.
func (c *Calendar) AddBusinessDays(t time.Time, n int) time.Time {
	d := t.In(c.Location)
	for n > 0 {
		d = d.AddDate(0, 0, 1)
		if c.IsBusinessDay(d) {
			n--
		}
	}
	return d
}

func dateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
