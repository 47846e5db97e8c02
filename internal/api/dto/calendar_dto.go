package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/fixzit/fm-service/internal/calendar"
)

// SaveCalendarRequest payload. Version is the version last read, 0 while the
// default calendar is in use.
type SaveCalendarRequest struct {
	Timezone    string             `json:"timezone"`
	WorkingDays []time.Weekday     `json:"working_days"`
	DayStart    string             `json:"day_start"`
	DayEnd      string             `json:"day_end"`
	Holidays    []calendar.Holiday `json:"holidays"`
	Version     int64              `json:"version"`
}

// DeadlineRequest payload.
type DeadlineRequest struct {
	Start    time.Time       `json:"start"`
	SLAHours decimal.Decimal `json:"sla_hours"`
}
