package handlers

import (
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/fixzit/fm-service/internal/api/dto"
	"github.com/fixzit/fm-service/internal/domain"
	"github.com/fixzit/fm-service/internal/report"
	"github.com/fixzit/fm-service/internal/service"
	apperrors "github.com/fixzit/fm-service/pkg/util/errorutil"
)

// WorkOrdersHandler manages work order endpoints.
type WorkOrdersHandler struct {
	service *service.WorkOrderService
	now     func() time.Time
}

// NewWorkOrdersHandler constructs handler.
func NewWorkOrdersHandler(workOrders *service.WorkOrderService, now func() time.Time) *WorkOrdersHandler {
	if now == nil {
		now = time.Now
	}
	return &WorkOrdersHandler{service: workOrders, now: now}
}

// Create POST /work-orders.
func (h *WorkOrdersHandler) Create(c *fiber.Ctx) error {
	session, err := sessionOf(c)
	if err != nil {
		return err
	}
	var req dto.CreateWorkOrderRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	wo, err := h.service.Create(c.UserContext(), session, service.WorkOrderCreateInput{
		Title:       req.Title,
		Description: req.Description,
		PropertyID:  req.PropertyID,
		Category:    req.Category,
		Priority:    domain.WorkOrderPriority(strings.ToUpper(string(req.Priority))),
		SLAHours:    req.SLAHours,
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": wo})
}

// List GET /work-orders?status=&limit=&offset=.
func (h *WorkOrdersHandler) List(c *fiber.Ctx) error {
	session, err := sessionOf(c)
	if err != nil {
		return err
	}
	filter := service.WorkOrderFilter{}
	for _, st := range parseList(c.Query("status")) {
		filter.Statuses = append(filter.Statuses, domain.WorkOrderStatus(st))
	}
	filter.Limit, filter.Offset = parsePaging(c)
	items, err := h.service.List(c.UserContext(), session, filter)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": items})
}

// Get GET /work-orders/:id.
func (h *WorkOrdersHandler) Get(c *fiber.Ctx) error {
	session, err := sessionOf(c)
	if err != nil {
		return err
	}
	wo, err := h.service.Get(c.UserContext(), session, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": wo})
}

// History GET /work-orders/:id/history.
func (h *WorkOrdersHandler) History(c *fiber.Ctx) error {
	session, err := sessionOf(c)
	if err != nil {
		return err
	}
	entries, err := h.service.History(c.UserContext(), session, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": entries})
}

// UpdateStatus POST /work-orders/:id/status.
func (h *WorkOrdersHandler) UpdateStatus(c *fiber.Ctx) error {
	session, err := sessionOf(c)
	if err != nil {
		return err
	}
	input, err := parseStatusRequest(c)
	if err != nil {
		return err
	}
	result, err := h.service.TransitionStatus(c.UserContext(), session, c.Params("id"), input, idempotencyKey(c))
	if err != nil {
		return err
	}
	return mutationResponse(c, result)
}

// Assign POST /work-orders/:id/assign.
func (h *WorkOrdersHandler) Assign(c *fiber.Ctx) error {
	session, err := sessionOf(c)
	if err != nil {
		return err
	}
	var req dto.AssignRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if strings.TrimSpace(req.TechnicianID) == "" {
		return apperrors.NewValidationError("technician_id required", map[string]any{"field": "technician_id"})
	}
	result, err := h.service.Assign(c.UserContext(), session, c.Params("id"), strings.TrimSpace(req.TechnicianID), idempotencyKey(c))
	if err != nil {
		return err
	}
	return mutationResponse(c, result)
}

// Schedule POST /work-orders/:id/schedule.
func (h *WorkOrdersHandler) Schedule(c *fiber.Ctx) error {
	session, err := sessionOf(c)
	if err != nil {
		return err
	}
	var req dto.ScheduleRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.ScheduledAt == nil || req.ScheduledAt.IsZero() {
		return apperrors.NewValidationError("scheduled_at required", map[string]any{"field": "scheduled_at"})
	}
	result, err := h.service.Schedule(c.UserContext(), session, c.Params("id"), *req.ScheduledAt, idempotencyKey(c))
	if err != nil {
		return err
	}
	return mutationResponse(c, result)
}

// SLA GET /work-orders/:id/sla.
func (h *WorkOrdersHandler) SLA(c *fiber.Ctx) error {
	session, err := sessionOf(c)
	if err != nil {
		return err
	}
	wo, status, err := h.service.SLAStatus(c.UserContext(), session, c.Params("id"), h.now())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewSLAStatusResponse(wo, status)})
}

// SLAReport GET /work-orders/:id/sla/report.pdf.
func (h *WorkOrdersHandler) SLAReport(c *fiber.Ctx) error {
	session, err := sessionOf(c)
	if err != nil {
		return err
	}
	now := h.now()
	rep, err := h.service.SLAReport(c.UserContext(), session, c.Params("id"), now)
	if err != nil {
		return err
	}
	wo := rep.WorkOrder
	pdf, err := report.RenderSLASheet(report.SLASheet{
		Code:              wo.Code,
		Title:             wo.Title,
		Priority:          string(wo.Priority),
		Status:            string(wo.Status),
		CreatedAt:         wo.CreatedAt,
		Deadline:          rep.Status.Deadline,
		EffectiveDeadline: rep.Status.EffectiveDeadline,
		Remaining:         rep.Status.Remaining,
		Breached:          rep.Status.Breached,
		Paused:            rep.Status.Paused,
		TotalPaused:       rep.Status.TotalPaused,
		BusinessHours:     rep.Calculation.BusinessHoursUsed,
		CalendarHours:     rep.Calculation.CalendarHoursUsed,
		Breakdown:         rep.Calculation.Breakdown,
		Location:          rep.Location,
		GeneratedAt:       now,
	})
	if err != nil {
		return apperrors.NewInternalError(err)
	}
	c.Set(fiber.HeaderContentType, "application/pdf")
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("inline; filename=%q", wo.Code+"-sla.pdf"))
	return c.Send(pdf)
}
