package calendar

import (
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"
)

// DayHours is the business time consumed on one local calendar day.
type DayHours struct {
	Date  Date            `json:"date"`
	Hours decimal.Decimal `json:"hours_worked"`
}

// Result is the outcome of a deadline calculation. BusinessHoursUsed always
// equals the requested hours and Breakdown sums to it exactly.
type Result struct {
	Start             time.Time       `json:"start"`
	Deadline          time.Time       `json:"deadline"`
	BusinessHoursUsed decimal.Decimal `json:"business_hours_used"`
	CalendarHoursUsed decimal.Decimal `json:"calendar_hours_used"`
	Breakdown         []DayHours      `json:"breakdown"`
}

// DefaultMaxSLAHours caps SLA hours when no limit is configured: one year of
// round-the-clock time.
var DefaultMaxSLAHours = decimal.NewFromInt(24 * 365)

var maxNanos = decimal.NewFromInt(math.MaxInt64)

// DurationOf converts SLA hours to an exact duration. Hours that are not a
// whole number of nanoseconds, or that overflow a time.Duration, are rejected
// rather than rounded.
func DurationOf(hours decimal.Decimal) (time.Duration, error) {
	if !hours.IsPositive() {
		return 0, fmt.Errorf("%w: got %s", ErrInvalidSLAHours, hours)
	}
	nanos := hours.Mul(hourNanos)
	if nanos.GreaterThan(maxNanos) {
		return 0, fmt.Errorf("%w: %s hours overflows a duration", ErrInvalidSLAHours, hours)
	}
	if !nanos.IsInteger() {
		return 0, fmt.Errorf("%w: %s hours is not representable", ErrInvalidSLAHours, hours)
	}
	return time.Duration(nanos.IntPart()), nil
}

// MaxSLAHours is the largest SLA the calendar accepts.
func (c *Calendar) MaxSLAHours() decimal.Decimal {
	return c.maxHours
}

// Deadline walks forward from createdAt through business windows until
// slaHours of business time have been consumed.
func (c *Calendar) Deadline(createdAt time.Time, slaHours decimal.Decimal) (Result, error) {
	if slaHours.GreaterThan(c.maxHours) {
		return Result{}, fmt.Errorf("%w: %s exceeds the maximum of %s hours", ErrInvalidSLAHours, slaHours, c.maxHours)
	}
	required, err := DurationOf(slaHours)
	if err != nil {
		return Result{}, err
	}

	cursor := c.NextBusinessHourStart(createdAt)
	res := Result{Start: cursor, BusinessHoursUsed: slaHours}
	remaining := required
	consumed := decimal.Zero

	for {
		day := c.LocalDate(cursor)
		left := c.RemainingToday(cursor)
		if remaining <= left {
			res.Breakdown = addDay(res.Breakdown, day, slaHours.Sub(consumed))
			res.Deadline = cursor.Add(remaining)
			break
		}
		hours := Hours(left)
		res.Breakdown = addDay(res.Breakdown, day, hours)
		consumed = consumed.Add(hours)
		remaining -= left
		_, end := c.dayBounds(day)
		cursor = c.NextBusinessHourStart(end)
	}

	elapsed := res.Deadline.Sub(createdAt)
	if elapsed == required {
		res.CalendarHoursUsed = slaHours
	} else {
		res.CalendarHoursUsed = Hours(elapsed)
	}
	return res, nil
}

// addDay merges into the last entry only; the walk never moves backwards.
func addDay(breakdown []DayHours, day Date, hours decimal.Decimal) []DayHours {
	if n := len(breakdown); n > 0 && breakdown[n-1].Date == day {
		breakdown[n-1].Hours = breakdown[n-1].Hours.Add(hours)
		return breakdown
	}
	return append(breakdown, DayHours{Date: day, Hours: hours})
}

// SkippedNonBusinessTime reports whether the calculation crossed any
// non-business interval.
func (r Result) SkippedNonBusinessTime() bool {
	return r.CalendarHoursUsed.GreaterThan(r.BusinessHoursUsed)
}
