package calendar_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fixzit/fm-service/internal/calendar"
)

var riyadh = mustLocation("Asia/Riyadh")

func mustLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		panic(err)
	}
	return loc
}

func gccConfig(holidays ...calendar.Holiday) calendar.Config {
	return calendar.Config{
		OrganizationID: "org-1",
		Timezone:       "Asia/Riyadh",
		WorkingDays:    []time.Weekday{time.Sunday, time.Monday, time.Tuesday, time.Wednesday, time.Thursday},
		DayStart:       calendar.MustClock("08:00"),
		DayEnd:         calendar.MustClock("17:00"),
		Holidays:       holidays,
	}
}

func newCalendar(t *testing.T, holidays ...calendar.Holiday) *calendar.Calendar {
	t.Helper()
	cal, err := calendar.New(gccConfig(holidays...))
	require.NoError(t, err)
	return cal
}

// local builds an instant in Riyadh. March 3rd 2024 is a Sunday.
func local(day, hour, minute int) time.Time {
	return time.Date(2024, time.March, day, hour, minute, 0, 0, riyadh)
}

func hours(v float64) decimal.Decimal {
	return decimal.NewFromFloat(v)
}

func TestNew_RejectsInvalidConfig(t *testing.T) {
	cases := map[string]func(*calendar.Config){
		"no working days":  func(c *calendar.Config) { c.WorkingDays = nil },
		"start after end":  func(c *calendar.Config) { c.DayStart = calendar.MustClock("18:00") },
		"start equals end": func(c *calendar.Config) { c.DayEnd = c.DayStart },
		"unknown timezone": func(c *calendar.Config) { c.Timezone = "Mars/Olympus" },
		"weekday range":    func(c *calendar.Config) { c.WorkingDays = []time.Weekday{7} },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := gccConfig()
			mutate(&cfg)
			_, err := calendar.New(cfg)
			assert.ErrorIs(t, err, calendar.ErrInvalidConfig)
		})
	}
}

func TestNew_RejectsCalendarWithNoOpenDay(t *testing.T) {
	var holidays []calendar.Holiday
	d := calendar.Date{Year: 2001, Month: time.January, Day: 1}
	for i := 0; i < 365; i++ {
		holidays = append(holidays, calendar.Holiday{Date: d, Name: "always", Recurring: true})
		d = d.AddDays(1)
	}
	_, err := calendar.New(gccConfig(holidays...))
	assert.ErrorIs(t, err, calendar.ErrInvalidConfig)
}

func TestParseClock(t *testing.T) {
	c, err := calendar.ParseClock("08:30")
	require.NoError(t, err)
	assert.Equal(t, calendar.Clock{Hour: 8, Minute: 30}, c)

	for _, bad := range []string{"", "8", "25:00", "10:61", "aa:bb", "24:30"} {
		_, err := calendar.ParseClock(bad)
		assert.Error(t, err, bad)
	}
}

func TestIsBusinessHour(t *testing.T) {
	cal := newCalendar(t)

	cases := []struct {
		name string
		at   time.Time
		want bool
	}{
		{"sunday morning", local(3, 9, 0), true},
		{"window start inclusive", local(3, 8, 0), true},
		{"window end exclusive", local(3, 17, 0), false},
		{"just before end", local(3, 16, 59), true},
		{"before opening", local(3, 7, 59), false},
		{"thursday afternoon", local(7, 16, 0), true},
		{"friday weekend", local(8, 10, 0), false},
		{"saturday weekend", local(9, 10, 0), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, cal.IsBusinessHour(tc.at))
		})
	}
}

func TestIsBusinessHour_ConvertsToCalendarZone(t *testing.T) {
	cal := newCalendar(t)
	// 06:00 UTC is 09:00 in Riyadh.
	assert.True(t, cal.IsBusinessHour(time.Date(2024, time.March, 3, 6, 0, 0, 0, time.UTC)))
	// 14:30 UTC is 17:30 in Riyadh.
	assert.False(t, cal.IsBusinessHour(time.Date(2024, time.March, 3, 14, 30, 0, 0, time.UTC)))
}

func TestIsBusinessHour_Holidays(t *testing.T) {
	cal := newCalendar(t,
		calendar.Holiday{Date: calendar.Date{Year: 2023, Month: time.March, Day: 4}, Name: "Annual", Recurring: true},
		calendar.Holiday{Date: calendar.Date{Year: 2024, Month: time.March, Day: 5}, Name: "One-off"},
		calendar.Holiday{Date: calendar.Date{Year: 2023, Month: time.March, Day: 6}, Name: "Last year only"},
	)

	for hour := 0; hour < 24; hour++ {
		assert.False(t, cal.IsBusinessHour(local(4, hour, 0)), "recurring holiday hour %d", hour)
		assert.False(t, cal.IsBusinessHour(local(5, hour, 0)), "exact holiday hour %d", hour)
	}
	// A non-recurring holiday from another year does not match.
	assert.True(t, cal.IsBusinessHour(local(6, 10, 0)))

	name, ok := cal.HolidayOn(calendar.Date{Year: 2030, Month: time.March, Day: 4})
	assert.True(t, ok)
	assert.Equal(t, "Annual", name)
}

func TestIsBusinessHour_NonWorkingDayAnyTime(t *testing.T) {
	cal := newCalendar(t)
	for minute := 0; minute < 24*60; minute += 15 {
		at := local(8, 0, 0).Add(time.Duration(minute) * time.Minute)
		assert.False(t, cal.IsBusinessHour(at), at.String())
	}
}

func TestNextBusinessHourStart(t *testing.T) {
	cal := newCalendar(t)

	cases := []struct {
		name string
		at   time.Time
		want time.Time
	}{
		{"already business hour", local(3, 9, 15), local(3, 9, 15)},
		{"before opening same day", local(3, 6, 0), local(3, 8, 0)},
		{"after closing", local(3, 17, 0), local(4, 8, 0)},
		{"thursday evening skips weekend", local(7, 18, 0), local(10, 8, 0)},
		{"saturday", local(9, 10, 0), local(10, 8, 0)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := cal.NextBusinessHourStart(tc.at)
			assert.True(t, tc.want.Equal(got), "want %s got %s", tc.want, got)
		})
	}
}

func TestNextBusinessHourStart_SkipsHolidays(t *testing.T) {
	cal := newCalendar(t,
		calendar.Holiday{Date: calendar.Date{Year: 2024, Month: time.March, Day: 10}, Name: "Eid"},
		calendar.Holiday{Date: calendar.Date{Year: 2020, Month: time.March, Day: 11}, Name: "Annual", Recurring: true},
	)
	got := cal.NextBusinessHourStart(local(7, 17, 30))
	assert.True(t, local(12, 8, 0).Equal(got), got.String())
}

func TestNextBusinessHourStart_Idempotent(t *testing.T) {
	cal := newCalendar(t, calendar.Holiday{Date: calendar.Date{Year: 2024, Month: time.March, Day: 5}, Name: "One-off"})
	start := local(1, 0, 0)
	for i := 0; i < 14*24*4; i++ {
		at := start.Add(time.Duration(i) * 15 * time.Minute)
		once := cal.NextBusinessHourStart(at)
		twice := cal.NextBusinessHourStart(once)
		require.True(t, once.Equal(twice), "not idempotent at %s", at)
		require.True(t, cal.IsBusinessHour(once), "not a business hour: %s", once)
		require.False(t, once.Before(at))
	}
}

func TestRemainingBusinessHoursToday(t *testing.T) {
	cal := newCalendar(t)

	assert.True(t, cal.RemainingBusinessHoursToday(local(3, 9, 0)).Equal(hours(8)))
	assert.True(t, cal.RemainingBusinessHoursToday(local(3, 16, 30)).Equal(hours(0.5)))
	assert.True(t, cal.RemainingBusinessHoursToday(local(3, 17, 0)).IsZero())
	assert.True(t, cal.RemainingBusinessHoursToday(local(9, 10, 0)).IsZero())
	assert.Equal(t, 45*time.Minute, cal.RemainingToday(local(3, 16, 15)))
}

func TestDate_TextRoundTrip(t *testing.T) {
	var d calendar.Date
	require.NoError(t, d.UnmarshalText([]byte("2024-09-23")))
	assert.Equal(t, time.Monday, d.Weekday())
	b, err := d.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "2024-09-23", string(b))
}

func TestRegistry(t *testing.T) {
	reg := calendar.NewRegistry()
	cal := newCalendar(t)

	_, _, ok := reg.Get("org-1")
	assert.False(t, ok)

	assert.True(t, reg.Put("org-1", 3, cal))
	got, version, ok := reg.Get("org-1")
	require.True(t, ok)
	assert.Same(t, cal, got)
	assert.Equal(t, int64(3), version)

	reg.Put("org-2", 1, cal)
	reg.Reset()
	_, _, ok = reg.Get("org-2")
	assert.False(t, ok)
}

func TestRegistry_KeepsNewerVersion(t *testing.T) {
	reg := calendar.NewRegistry()
	older := newCalendar(t)
	newer := newCalendar(t, calendar.Holiday{Date: day(4), Name: "Company day"})

	require.True(t, reg.Put("org-1", 2, newer))
	assert.False(t, reg.Put("org-1", 1, older))

	got, version, ok := reg.Get("org-1")
	require.True(t, ok)
	assert.Same(t, newer, got)
	assert.Equal(t, int64(2), version)

	// Same version replaces; a recompile of identical settings is harmless.
	assert.True(t, reg.Put("org-1", 2, older))
}
