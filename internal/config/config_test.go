package config_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fixzit/fm-service/internal/calendar"
	"github.com/fixzit/fm-service/internal/config"
	"github.com/fixzit/fm-service/internal/domain"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("STORE_DRIVER", "")
	t.Setenv("SLA_TIMEZONE", "")

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, config.DriverMemory, cfg.Store.Driver)
	assert.Equal(t, "Asia/Riyadh", cfg.SLA.Timezone)
	assert.Equal(t, 24*time.Hour, cfg.Idempotency.TTL())
}

func TestLoad_InvalidRedisDB(t *testing.T) {
	t.Setenv("REDIS_DB", "zero")
	_, err := config.Load()
	assert.Error(t, err)
}

func TestDefaultCalendar(t *testing.T) {
	cfg, err := config.Load()
	require.NoError(t, err)

	cal, err := cfg.SLA.DefaultCalendar("org-9")
	require.NoError(t, err)
	assert.Equal(t, "org-9", cal.OrganizationID)
	assert.Equal(t, []time.Weekday{time.Sunday, time.Monday, time.Tuesday, time.Wednesday, time.Thursday}, cal.WorkingDays)
	assert.Equal(t, calendar.MustClock("08:00"), cal.DayStart)
	assert.Len(t, cal.Holidays, 2)
}

func TestDefaultCalendar_FailsFast(t *testing.T) {
	cases := map[string]config.SLAConfig{
		"empty working days": {Timezone: "Asia/Riyadh", WorkingDays: "", DayStart: "08:00", DayEnd: "17:00"},
		"inverted window":    {Timezone: "Asia/Riyadh", WorkingDays: "0", DayStart: "17:00", DayEnd: "08:00"},
		"bad weekday":        {Timezone: "Asia/Riyadh", WorkingDays: "9", DayStart: "08:00", DayEnd: "17:00"},
	}
	for name, sla := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := sla.DefaultCalendar("org")
			assert.ErrorIs(t, err, calendar.ErrInvalidConfig)
		})
	}
}

func TestPolicy(t *testing.T) {
	sla := config.SLAConfig{HoursUrgent: "2.5", HoursLow: ""}
	policy, err := sla.Policy()
	require.NoError(t, err)
	assert.True(t, policy.HoursFor(domain.PriorityUrgent).Equal(decimal.RequireFromString("2.5")))
	assert.True(t, policy.HoursFor(domain.PriorityLow).Equal(decimal.NewFromInt(72)))

	_, err = config.SLAConfig{HoursHigh: "-1"}.Policy()
	assert.ErrorIs(t, err, calendar.ErrInvalidSLAHours)
}

func TestMaxSLAHours(t *testing.T) {
	limit, err := config.SLAConfig{}.MaxSLAHours()
	require.NoError(t, err)
	assert.True(t, limit.Equal(calendar.DefaultMaxSLAHours))

	limit, err = config.SLAConfig{MaxHours: "500"}.MaxSLAHours()
	require.NoError(t, err)
	assert.True(t, limit.Equal(decimal.NewFromInt(500)))

	for _, raw := range []string{"0", "-5", "lots"} {
		_, err := config.SLAConfig{MaxHours: raw}.MaxSLAHours()
		assert.ErrorIs(t, err, calendar.ErrInvalidSLAHours, raw)
	}
}

func TestPolicy_RespectsMaxHours(t *testing.T) {
	_, err := config.SLAConfig{MaxHours: "48", HoursLow: "72"}.Policy()
	assert.ErrorIs(t, err, calendar.ErrInvalidSLAHours)

	_, err = config.SLAConfig{MaxHours: "48", HoursMedium: "24", HoursLow: "48"}.Policy()
	assert.NoError(t, err)
}
