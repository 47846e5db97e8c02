// Command slactl answers business-hour and SLA deadline questions offline,
// using the same calendar defaults as the API.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/fixzit/fm-service/internal/calendar"
	"github.com/fixzit/fm-service/internal/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if err := newRootCmd(cfg.SLA, os.Stdout).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type calendarFlags struct {
	sla      config.SLAConfig
	holidays []string
	format   string
}

func (f *calendarFlags) build() (*calendar.Calendar, error) {
	cfg, err := f.sla.DefaultCalendar("")
	if err != nil {
		return nil, err
	}
	for _, raw := range f.holidays {
		d, err := calendar.ParseDate(raw)
		if err != nil {
			return nil, fmt.Errorf("holiday %q: %w", raw, err)
		}
		cfg.Holidays = append(cfg.Holidays, calendar.Holiday{Date: d, Name: "cli"})
	}
	limit, err := f.sla.MaxSLAHours()
	if err != nil {
		return nil, err
	}
	return calendar.New(cfg, calendar.WithMaxSLAHours(limit))
}

func (f *calendarFlags) print(out io.Writer, v any, text string) error {
	if f.format == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	_, err := fmt.Fprintln(out, text)
	return err
}

func newRootCmd(defaults config.SLAConfig, out io.Writer) *cobra.Command {
	flags := &calendarFlags{sla: defaults}

	root := &cobra.Command{
		Use:           "slactl",
		Short:         "Business-hour and SLA deadline calculator",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(out)
	pf := root.PersistentFlags()
	pf.StringVar(&flags.sla.Timezone, "timezone", defaults.Timezone, "IANA time zone of the calendar")
	pf.StringVar(&flags.sla.WorkingDays, "working-days", defaults.WorkingDays, "comma separated weekdays, 0 = Sunday")
	pf.StringVar(&flags.sla.DayStart, "day-start", defaults.DayStart, "start of the working day, HH:MM")
	pf.StringVar(&flags.sla.DayEnd, "day-end", defaults.DayEnd, "end of the working day, HH:MM")
	pf.StringSliceVar(&flags.holidays, "holiday", nil, "extra holiday, YYYY-MM-DD (repeatable)")
	pf.StringVar(&flags.format, "format", "text", "output format: text or json")

	root.AddCommand(deadlineCmd(flags, out), isBusinessHourCmd(flags, out), nextStartCmd(flags, out))
	return root
}

func parseInstant(raw string) (time.Time, error) {
	if raw == "" {
		return time.Now(), nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid instant %q: expected RFC 3339", raw)
	}
	return t, nil
}

func deadlineCmd(flags *calendarFlags, out io.Writer) *cobra.Command {
	var start, hours string
	cmd := &cobra.Command{
		Use:   "deadline",
		Short: "Compute the SLA deadline for a start instant and business hours",
		Example: `  slactl deadline --start 2024-03-03T15:00:00+03:00 --hours 8
  slactl deadline --hours 24 --format json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cal, err := flags.build()
			if err != nil {
				return err
			}
			at, err := parseInstant(start)
			if err != nil {
				return err
			}
			h, err := decimal.NewFromString(hours)
			if err != nil {
				return fmt.Errorf("invalid hours %q", hours)
			}
			res, err := cal.Deadline(at, h)
			if err != nil {
				return err
			}
			return flags.print(out, res, res.Deadline.In(cal.Location()).Format(time.RFC3339))
		},
	}
	cmd.Flags().StringVar(&start, "start", "", "start instant, RFC 3339 (default now)")
	cmd.Flags().StringVar(&hours, "hours", "", "business hours to add")
	_ = cmd.MarkFlagRequired("hours")
	return cmd
}

func isBusinessHourCmd(flags *calendarFlags, out io.Writer) *cobra.Command {
	var at string
	cmd := &cobra.Command{
		Use:   "is-business-hour",
		Short: "Report whether an instant falls inside business hours",
		RunE: func(cmd *cobra.Command, args []string) error {
			cal, err := flags.build()
			if err != nil {
				return err
			}
			t, err := parseInstant(at)
			if err != nil {
				return err
			}
			open := cal.IsBusinessHour(t)
			return flags.print(out, map[string]any{
				"at":                    t,
				"is_business_hour":      open,
				"remaining_hours_today": cal.RemainingBusinessHoursToday(t),
			}, fmt.Sprintf("%t", open))
		},
	}
	cmd.Flags().StringVar(&at, "at", "", "instant, RFC 3339 (default now)")
	return cmd
}

func nextStartCmd(flags *calendarFlags, out io.Writer) *cobra.Command {
	var at string
	cmd := &cobra.Command{
		Use:   "next-start",
		Short: "Print the start of the next business window",
		RunE: func(cmd *cobra.Command, args []string) error {
			cal, err := flags.build()
			if err != nil {
				return err
			}
			t, err := parseInstant(at)
			if err != nil {
				return err
			}
			next := cal.NextBusinessHourStart(t).In(cal.Location())
			return flags.print(out, map[string]any{"at": t, "next_start": next}, next.Format(time.RFC3339))
		},
	}
	cmd.Flags().StringVar(&at, "at", "", "instant, RFC 3339 (default now)")
	return cmd
}
