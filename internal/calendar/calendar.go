// Package calendar answers business-hour questions for an organization's
// working calendar and computes SLA deadlines measured in business hours.
//
// All functions are pure: a compiled Calendar is immutable and safe for
// concurrent use.
package calendar

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/shopspring/decimal"
)

var (
	// ErrInvalidConfig is returned when a calendar cannot make progress
	// (no working days, empty business window, unknown timezone).
	ErrInvalidConfig = errors.New("invalid calendar configuration")

	// ErrInvalidSLAHours is returned for SLA hours that are not positive, not
	// representable, or above the calendar's maximum.
	ErrInvalidSLAHours = errors.New("invalid sla hours")
)

// Clock is a local time of day with minute precision.
type Clock struct {
	Hour   int
	Minute int
}

// ParseClock parses "HH:MM".
func ParseClock(s string) (Clock, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 {
		return Clock{}, fmt.Errorf("clock %q: want HH:MM", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil {
		return Clock{}, fmt.Errorf("clock %q: %w", s, err)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil {
		return Clock{}, fmt.Errorf("clock %q: %w", s, err)
	}
	c := Clock{Hour: h, Minute: m}
	if h < 0 || h > 24 || m < 0 || m > 59 || (h == 24 && m != 0) {
		return Clock{}, fmt.Errorf("clock %q out of range", s)
	}
	return c, nil
}

// MustClock is ParseClock for literals.
func MustClock(s string) Clock {
	c, err := ParseClock(s)
	if err != nil {
		panic(err)
	}
	return c
}

func (c Clock) offset() time.Duration {
	return time.Duration(c.Hour)*time.Hour + time.Duration(c.Minute)*time.Minute
}

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

func (c Clock) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

func (c *Clock) UnmarshalText(b []byte) error {
	parsed, err := ParseClock(string(b))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// Date is a calendar date without a time zone.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// DateOf returns the calendar date of t in t's location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// ParseDate parses "2006-01-02".
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(time.DateOnly, strings.TrimSpace(s))
	if err != nil {
		return Date{}, err
	}
	return DateOf(t), nil
}

func (d Date) AddDays(n int) Date {
	return DateOf(time.Date(d.Year, d.Month, d.Day+n, 0, 0, 0, 0, time.UTC))
}

// Weekday is computed in UTC; the date itself carries no zone.
func (d Date) Weekday() time.Weekday {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC).Weekday()
}

// At returns the instant of clock c on date d in loc.
func (d Date) At(c Clock, loc *time.Location) time.Time {
	return time.Date(d.Year, d.Month, d.Day, c.Hour, c.Minute, 0, 0, loc)
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day)
}

func (d Date) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Date) UnmarshalText(b []byte) error {
	parsed, err := ParseDate(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Holiday is a non-working date. Recurring holidays match the same month/day
// in every year.
type Holiday struct {
	Date      Date   `json:"date"`
	Name      string `json:"name"`
	Recurring bool   `json:"recurring"`
}

// Config is an organization's working calendar as persisted in settings.
type Config struct {
	OrganizationID string         `json:"organization_id"`
	Timezone       string         `json:"timezone"`
	WorkingDays    []time.Weekday `json:"working_days"`
	DayStart       Clock          `json:"day_start"`
	DayEnd         Clock          `json:"day_end"`
	Holidays       []Holiday      `json:"holidays"`
}

// Validate reports configuration errors without compiling the calendar.
func (c Config) Validate() error {
	_, err := New(c)
	return err
}

type monthDay struct {
	month time.Month
	day   int
}

// Calendar is a compiled, validated Config.
type Calendar struct {
	cfg       Config
	loc       *time.Location
	working   [7]bool
	exact     map[Date]string
	recurring map[monthDay]string
	maxHours  decimal.Decimal
}

// Option customizes a compiled Calendar.
type Option func(*Calendar)

// WithMaxSLAHours sets the largest SLA Deadline accepts. Non-positive values
// keep DefaultMaxSLAHours.
func WithMaxSLAHours(limit decimal.Decimal) Option {
	return func(c *Calendar) {
		if limit.IsPositive() {
			c.maxHours = limit
		}
	}
}

// New validates cfg and compiles its lookup tables.
func New(cfg Config, opts ...Option) (*Calendar, error) {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("%w: timezone %q: %v", ErrInvalidConfig, cfg.Timezone, err)
	}
	if cfg.DayStart.offset() >= cfg.DayEnd.offset() {
		return nil, fmt.Errorf("%w: day start %s must be before day end %s", ErrInvalidConfig, cfg.DayStart, cfg.DayEnd)
	}
	cal := &Calendar{
		cfg:       cfg,
		loc:       loc,
		exact:     make(map[Date]string),
		recurring: make(map[monthDay]string),
		maxHours:  DefaultMaxSLAHours,
	}
	for _, opt := range opts {
		opt(cal)
	}
	for _, wd := range cfg.WorkingDays {
		if wd < time.Sunday || wd > time.Saturday {
			return nil, fmt.Errorf("%w: weekday %d out of range", ErrInvalidConfig, wd)
		}
		cal.working[wd] = true
	}
	if len(cfg.WorkingDays) == 0 {
		return nil, fmt.Errorf("%w: no working days", ErrInvalidConfig)
	}
	for _, h := range cfg.Holidays {
		if h.Recurring {
			cal.recurring[monthDay{h.Date.Month, h.Date.Day}] = h.Name
			continue
		}
		cal.exact[h.Date] = h.Name
	}
	if !cal.hasOpenMonthDay() {
		return nil, fmt.Errorf("%w: recurring holidays cover every day of the year", ErrInvalidConfig)
	}
	return cal, nil
}

// hasOpenMonthDay reports whether some non-leap month/day is not a recurring
// holiday. Every such month/day falls on every weekday over a few years, so
// the forward scan in NextBusinessHourStart always terminates.
func (c *Calendar) hasOpenMonthDay() bool {
	d := Date{Year: 2001, Month: time.January, Day: 1}
	for i := 0; i < 365; i++ {
		if _, ok := c.recurring[monthDay{d.Month, d.Day}]; !ok {
			return true
		}
		d = d.AddDays(1)
	}
	return false
}

// Config returns a copy of the source configuration with holidays sorted.
func (c *Calendar) Config() Config {
	cfg := c.cfg
	cfg.WorkingDays = append([]time.Weekday(nil), c.cfg.WorkingDays...)
	cfg.Holidays = append([]Holiday(nil), c.cfg.Holidays...)
	sort.Slice(cfg.Holidays, func(i, j int) bool {
		a, b := cfg.Holidays[i].Date, cfg.Holidays[j].Date
		if a.Year != b.Year {
			return a.Year < b.Year
		}
		if a.Month != b.Month {
			return a.Month < b.Month
		}
		return a.Day < b.Day
	})
	return cfg
}

// Location is the calendar's timezone.
func (c *Calendar) Location() *time.Location {
	return c.loc
}

// IsWorkingWeekday reports whether wd is in the working-day mask.
func (c *Calendar) IsWorkingWeekday(wd time.Weekday) bool {
	return c.working[wd]
}

// HolidayOn returns the holiday name for d if it is one.
func (c *Calendar) HolidayOn(d Date) (string, bool) {
	if name, ok := c.exact[d]; ok {
		return name, true
	}
	name, ok := c.recurring[monthDay{d.Month, d.Day}]
	return name, ok
}

// IsWorkingDate is true for working weekdays that are not holidays.
func (c *Calendar) IsWorkingDate(d Date) bool {
	if !c.working[d.Weekday()] {
		return false
	}
	_, holiday := c.HolidayOn(d)
	return !holiday
}

// LocalDate is the calendar date of t in the calendar's timezone.
func (c *Calendar) LocalDate(t time.Time) Date {
	return DateOf(t.In(c.loc))
}

func (c *Calendar) dayBounds(d Date) (time.Time, time.Time) {
	return d.At(c.cfg.DayStart, c.loc), d.At(c.cfg.DayEnd, c.loc)
}
