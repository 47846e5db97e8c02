// Package report renders printable documents.
package report

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/shopspring/decimal"

	"github.com/fixzit/fm-service/internal/calendar"
)

// SLASheet is the content of a work order SLA breakdown sheet.
type SLASheet struct {
	Code              string
	Title             string
	Priority          string
	Status            string
	CreatedAt         time.Time
	Deadline          *time.Time
	EffectiveDeadline *time.Time
	Remaining         time.Duration
	Breached          bool
	Paused            bool
	TotalPaused       time.Duration
	BusinessHours     decimal.Decimal
	CalendarHours     decimal.Decimal
	Breakdown         []calendar.DayHours
	Location          *time.Location
	GeneratedAt       time.Time
}

const stamp = "2006-01-02 15:04 MST"

// RenderSLASheet writes the sheet as a PDF document.
func RenderSLASheet(sheet SLASheet) ([]byte, error) {
	loc := sheet.Location
	if loc == nil {
		loc = time.UTC
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(fmt.Sprintf("SLA %s", sheet.Code), false)
	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 16)
	pdf.Cell(0, 10, fmt.Sprintf("SLA breakdown %s", sheet.Code))
	pdf.Ln(12)

	pdf.SetFont("Helvetica", "", 11)
	line := func(label, value string) {
		pdf.CellFormat(50, 7, label, "", 0, "L", false, 0, "")
		pdf.CellFormat(0, 7, value, "", 1, "L", false, 0, "")
	}
	line("Title", sheet.Title)
	line("Priority", sheet.Priority)
	line("Status", sheet.Status)
	line("Opened", sheet.CreatedAt.In(loc).Format(stamp))
	line("Deadline", formatOptional(sheet.Deadline, loc))
	line("Effective deadline", formatOptional(sheet.EffectiveDeadline, loc))
	line("Business hours", sheet.BusinessHours.StringFixed(2))
	line("Calendar hours", sheet.CalendarHours.StringFixed(2))
	line("Time paused", sheet.TotalPaused.Round(time.Minute).String())
	line("Remaining", remaining(sheet))
	pdf.Ln(6)

	pdf.SetFont("Helvetica", "B", 11)
	pdf.CellFormat(60, 8, "Date", "1", 0, "L", false, 0, "")
	pdf.CellFormat(40, 8, "Weekday", "1", 0, "L", false, 0, "")
	pdf.CellFormat(40, 8, "Hours", "1", 1, "R", false, 0, "")
	pdf.SetFont("Helvetica", "", 11)
	total := decimal.Zero
	for _, day := range sheet.Breakdown {
		pdf.CellFormat(60, 7, day.Date.String(), "1", 0, "L", false, 0, "")
		pdf.CellFormat(40, 7, day.Date.Weekday().String(), "1", 0, "L", false, 0, "")
		pdf.CellFormat(40, 7, day.Hours.StringFixed(2), "1", 1, "R", false, 0, "")
		total = total.Add(day.Hours)
	}
	pdf.SetFont("Helvetica", "B", 11)
	pdf.CellFormat(100, 8, "Total", "1", 0, "L", false, 0, "")
	pdf.CellFormat(40, 8, total.StringFixed(2), "1", 1, "R", false, 0, "")

	if !sheet.GeneratedAt.IsZero() {
		pdf.Ln(6)
		pdf.SetFont("Helvetica", "I", 9)
		pdf.Cell(0, 6, "Generated "+sheet.GeneratedAt.In(loc).Format(stamp))
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render sla sheet: %w", err)
	}
	return buf.Bytes(), nil
}

func formatOptional(t *time.Time, loc *time.Location) string {
	if t == nil {
		return "-"
	}
	return t.In(loc).Format(stamp)
}

func remaining(sheet SLASheet) string {
	switch {
	case sheet.EffectiveDeadline == nil:
		return "not applicable"
	case sheet.Breached:
		return fmt.Sprintf("breached by %s", (-sheet.Remaining).Round(time.Minute))
	case sheet.Paused:
		return fmt.Sprintf("%s (paused)", sheet.Remaining.Round(time.Minute))
	}
	return sheet.Remaining.Round(time.Minute).String()
}
