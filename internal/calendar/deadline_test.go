package calendar_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fixzit/fm-service/internal/calendar"
)

func day(d int) calendar.Date {
	return calendar.Date{Year: 2024, Month: time.March, Day: d}
}

func sumBreakdown(res calendar.Result) decimal.Decimal {
	total := decimal.Zero
	for _, entry := range res.Breakdown {
		total = total.Add(entry.Hours)
	}
	return total
}

func TestDeadline_Scenarios(t *testing.T) {
	cal := newCalendar(t)

	cases := []struct {
		name      string
		createdAt time.Time
		sla       float64
		deadline  time.Time
		breakdown []calendar.DayHours
		calendarH float64
	}{
		{
			name:      "fits in the same day",
			createdAt: local(3, 9, 0),
			sla:       4,
			deadline:  local(3, 13, 0),
			breakdown: []calendar.DayHours{{Date: day(3), Hours: hours(4)}},
			calendarH: 4,
		},
		{
			name:      "spills into next day",
			createdAt: local(3, 15, 0),
			sla:       8,
			deadline:  local(4, 14, 0),
			breakdown: []calendar.DayHours{{Date: day(3), Hours: hours(2)}, {Date: day(4), Hours: hours(6)}},
			calendarH: 23,
		},
		{
			name:      "thursday afternoon skips the weekend",
			createdAt: local(7, 16, 0),
			sla:       4,
			deadline:  local(10, 11, 0),
			breakdown: []calendar.DayHours{{Date: day(7), Hours: hours(1)}, {Date: day(10), Hours: hours(3)}},
			calendarH: 67,
		},
		{
			name:      "created on the weekend",
			createdAt: local(9, 10, 0),
			sla:       2,
			deadline:  local(10, 10, 0),
			breakdown: []calendar.DayHours{{Date: day(10), Hours: hours(2)}},
			calendarH: 24,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res, err := cal.Deadline(tc.createdAt, hours(tc.sla))
			require.NoError(t, err)

			assert.True(t, tc.deadline.Equal(res.Deadline), "deadline want %s got %s", tc.deadline, res.Deadline)
			assert.True(t, res.BusinessHoursUsed.Equal(hours(tc.sla)))
			assert.True(t, res.CalendarHoursUsed.Equal(hours(tc.calendarH)), "calendar hours %s", res.CalendarHoursUsed)
			require.Len(t, res.Breakdown, len(tc.breakdown))
			for i, want := range tc.breakdown {
				assert.Equal(t, want.Date, res.Breakdown[i].Date)
				assert.True(t, want.Hours.Equal(res.Breakdown[i].Hours), "day %s hours %s", want.Date, res.Breakdown[i].Hours)
			}
		})
	}
}

func TestDeadline_SkipsHolidays(t *testing.T) {
	// GIVEN: Sunday the 10th is a one-off holiday and the 11th recurs yearly
	cal := newCalendar(t,
		calendar.Holiday{Date: day(10), Name: "Eid"},
		calendar.Holiday{Date: calendar.Date{Year: 1999, Month: time.March, Day: 11}, Name: "Annual", Recurring: true},
	)

	// WHEN: a 3 hour SLA starts at the last hour of Thursday
	res, err := cal.Deadline(local(7, 16, 0), hours(3))
	require.NoError(t, err)

	// THEN: the remaining 2 hours land on Tuesday the 12th
	assert.True(t, local(12, 10, 0).Equal(res.Deadline), res.Deadline.String())
	require.Len(t, res.Breakdown, 2)
	assert.Equal(t, day(12), res.Breakdown[1].Date)
	assert.True(t, res.Breakdown[1].Hours.Equal(hours(2)))
}

func TestDeadline_MultiDay(t *testing.T) {
	cal := newCalendar(t)

	res, err := cal.Deadline(local(3, 8, 0), hours(24))
	require.NoError(t, err)

	// 9 + 9 + 6 business hours.
	assert.True(t, local(5, 14, 0).Equal(res.Deadline), res.Deadline.String())
	assert.Len(t, res.Breakdown, 3)
	assert.True(t, sumBreakdown(res).Equal(hours(24)))
}

func TestDeadline_FractionalHours(t *testing.T) {
	cal := newCalendar(t)

	res, err := cal.Deadline(local(3, 16, 20), hours(1.5))
	require.NoError(t, err)

	assert.True(t, local(4, 8, 50).Equal(res.Deadline), res.Deadline.String())
	assert.True(t, sumBreakdown(res).Equal(hours(1.5)), sumBreakdown(res).String())
}

func TestDeadline_EndsExactlyAtClosing(t *testing.T) {
	cal := newCalendar(t)

	res, err := cal.Deadline(local(3, 15, 0), hours(2))
	require.NoError(t, err)

	assert.True(t, local(3, 17, 0).Equal(res.Deadline))
	assert.False(t, res.SkippedNonBusinessTime())
}

func TestDeadline_RejectsNonPositiveHours(t *testing.T) {
	cal := newCalendar(t)

	for _, v := range []decimal.Decimal{decimal.Zero, hours(-2)} {
		_, err := cal.Deadline(local(3, 9, 0), v)
		assert.ErrorIs(t, err, calendar.ErrInvalidSLAHours)
	}
}

func TestDurationOf_RejectsOverflow(t *testing.T) {
	_, err := calendar.DurationOf(hours(3000000))
	assert.ErrorIs(t, err, calendar.ErrInvalidSLAHours)

	d, err := calendar.DurationOf(hours(2500000))
	require.NoError(t, err)
	assert.Equal(t, 2500000*time.Hour, d)
}

func TestDeadline_RejectsHoursAboveMaximum(t *testing.T) {
	cal := newCalendar(t)
	assert.True(t, cal.MaxSLAHours().Equal(calendar.DefaultMaxSLAHours))

	for _, v := range []decimal.Decimal{hours(3000000), calendar.DefaultMaxSLAHours.Add(decimal.NewFromInt(1))} {
		_, err := cal.Deadline(local(3, 9, 0), v)
		assert.ErrorIs(t, err, calendar.ErrInvalidSLAHours, v.String())
	}

	capped, err := calendar.New(gccConfig(), calendar.WithMaxSLAHours(hours(10)))
	require.NoError(t, err)
	_, err = capped.Deadline(local(3, 9, 0), hours(10.5))
	assert.ErrorIs(t, err, calendar.ErrInvalidSLAHours)
	_, err = capped.Deadline(local(3, 9, 0), hours(10))
	assert.NoError(t, err)
}

func TestDeadline_LargeSLAKeepsOneEntryPerDay(t *testing.T) {
	cal := newCalendar(t)
	createdAt := local(3, 9, 0)

	res, err := cal.Deadline(createdAt, calendar.DefaultMaxSLAHours)
	require.NoError(t, err)

	assert.True(t, res.Deadline.After(createdAt))
	assert.True(t, sumBreakdown(res).Equal(calendar.DefaultMaxSLAHours))
	assert.True(t, res.CalendarHoursUsed.GreaterThan(res.BusinessHoursUsed))
	for i := 1; i < len(res.Breakdown); i++ {
		prev, cur := res.Breakdown[i-1].Date, res.Breakdown[i].Date
		require.True(t, dateBefore(prev, cur), "breakdown out of order at %s, %s", prev, cur)
	}
	last := res.Breakdown[len(res.Breakdown)-1].Date
	assert.Equal(t, calendar.DateOf(res.Deadline.In(cal.Location())), last)
}

func dateBefore(a, b calendar.Date) bool {
	return time.Date(a.Year, a.Month, a.Day, 0, 0, 0, 0, time.UTC).Before(time.Date(b.Year, b.Month, b.Day, 0, 0, 0, 0, time.UTC))
}

func TestDeadline_Properties(t *testing.T) {
	cal := newCalendar(t,
		calendar.Holiday{Date: day(5), Name: "One-off"},
		calendar.Holiday{Date: calendar.Date{Year: 2000, Month: time.March, Day: 13}, Name: "Annual", Recurring: true},
	)
	slas := []float64{0.25, 1, 2.5, 4, 8, 9, 17.75, 40, 72}

	start := local(1, 0, 0)
	for i := 0; i < 7*24*2; i++ {
		createdAt := start.Add(time.Duration(i) * 30 * time.Minute)
		for _, sla := range slas {
			res, err := cal.Deadline(createdAt, hours(sla))
			require.NoError(t, err)

			require.True(t, sumBreakdown(res).Equal(hours(sla)), "sum at %s sla %v", createdAt, sla)
			require.True(t, res.BusinessHoursUsed.Equal(hours(sla)))
			require.True(t, res.CalendarHoursUsed.GreaterThanOrEqual(res.BusinessHoursUsed))

			fitsToday := cal.IsBusinessHour(createdAt) && !calendar.Hours(cal.RemainingToday(createdAt)).LessThan(hours(sla))
			require.Equal(t, fitsToday, res.CalendarHoursUsed.Equal(res.BusinessHoursUsed), "equality at %s sla %v", createdAt, sla)

			for _, entry := range res.Breakdown {
				require.True(t, cal.IsWorkingDate(entry.Date), "breakdown on non-working %s", entry.Date)
			}
		}
	}
}
