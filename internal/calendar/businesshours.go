package calendar

import (
	"time"

	"github.com/shopspring/decimal"
)

var hourNanos = decimal.NewFromInt(int64(time.Hour))

// Hours expresses d as a decimal number of hours.
func Hours(d time.Duration) decimal.Decimal {
	return decimal.NewFromInt(int64(d)).Div(hourNanos)
}

// IsBusinessHour reports whether t falls inside the working window of a
// working, non-holiday day. The end of the window is exclusive.
func (c *Calendar) IsBusinessHour(t time.Time) bool {
	local := t.In(c.loc)
	day := DateOf(local)
	if !c.IsWorkingDate(day) {
		return false
	}
	start, end := c.dayBounds(day)
	return !local.Before(start) && local.Before(end)
}

// NextBusinessHourStart returns t itself when it is a business hour, else the
// start of the next business window.
func (c *Calendar) NextBusinessHourStart(t time.Time) time.Time {
	if c.IsBusinessHour(t) {
		return t
	}
	local := t.In(c.loc)
	day := DateOf(local)
	if c.IsWorkingDate(day) {
		start, _ := c.dayBounds(day)
		if local.Before(start) {
			return start
		}
	}
	// New guarantees an open month/day exists, so this terminates.
	for {
		day = day.AddDays(1)
		if c.IsWorkingDate(day) {
			start, _ := c.dayBounds(day)
			return start
		}
	}
}

// RemainingToday is the business time left in t's window, zero outside
// business hours.
func (c *Calendar) RemainingToday(t time.Time) time.Duration {
	if !c.IsBusinessHour(t) {
		return 0
	}
	_, end := c.dayBounds(c.LocalDate(t))
	return end.Sub(t)
}

// RemainingBusinessHoursToday is RemainingToday in fractional hours.
func (c *Calendar) RemainingBusinessHoursToday(t time.Time) decimal.Decimal {
	return Hours(c.RemainingToday(t))
}
