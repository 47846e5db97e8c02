package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/fixzit/fm-service/internal/api/dto"
	"github.com/fixzit/fm-service/internal/calendar"
	"github.com/fixzit/fm-service/internal/service"
	apperrors "github.com/fixzit/fm-service/pkg/util/errorutil"
)

// CalendarHandler exposes organization calendar settings and the business
// hours oracle.
type CalendarHandler struct {
	service *service.CalendarService
	now     func() time.Time
}

// NewCalendarHandler constructs handler.
func NewCalendarHandler(calendars *service.CalendarService, now func() time.Time) *CalendarHandler {
	if now == nil {
		now = time.Now
	}
	return &CalendarHandler{service: calendars, now: now}
}

// Get GET /calendar.
func (h *CalendarHandler) Get(c *fiber.Ctx) error {
	session, err := sessionOf(c)
	if err != nil {
		return err
	}
	view, err := h.service.Settings(c.UserContext(), session.OrganizationID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": view})
}

// Save POST /calendar.
func (h *CalendarHandler) Save(c *fiber.Ctx) error {
	session, err := sessionOf(c)
	if err != nil {
		return err
	}
	var req dto.SaveCalendarRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	start, err := calendar.ParseClock(req.DayStart)
	if err != nil {
		return apperrors.NewValidationError(err.Error(), map[string]any{"field": "day_start"})
	}
	end, err := calendar.ParseClock(req.DayEnd)
	if err != nil {
		return apperrors.NewValidationError(err.Error(), map[string]any{"field": "day_end"})
	}
	view, err := h.service.Save(c.UserContext(), session, calendar.Config{
		Timezone:    req.Timezone,
		WorkingDays: req.WorkingDays,
		DayStart:    start,
		DayEnd:      end,
		Holidays:    req.Holidays,
	}, req.Version)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": view})
}

// BusinessHours GET /calendar/business-hours?at=.
func (h *CalendarHandler) BusinessHours(c *fiber.Ctx) error {
	session, err := sessionOf(c)
	if err != nil {
		return err
	}
	at, err := parseTimeQuery(c, "at", h.now())
	if err != nil {
		return err
	}
	view, err := h.service.BusinessHours(c.UserContext(), session.OrganizationID, at)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": view})
}

// Deadline POST /calendar/deadline.
func (h *CalendarHandler) Deadline(c *fiber.Ctx) error {
	session, err := sessionOf(c)
	if err != nil {
		return err
	}
	var req dto.DeadlineRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.Start.IsZero() {
		req.Start = h.now()
	}
	res, err := h.service.Deadline(c.UserContext(), session.OrganizationID, req.Start, req.SLAHours)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": res})
}
