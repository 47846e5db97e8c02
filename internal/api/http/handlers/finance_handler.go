package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/fixzit/fm-service/internal/api/dto"
	"github.com/fixzit/fm-service/internal/domain"
	"github.com/fixzit/fm-service/internal/service"
	apperrors "github.com/fixzit/fm-service/pkg/util/errorutil"
)

// PayrollHandler manages payroll run endpoints.
type PayrollHandler struct {
	service *service.PayrollService
}

// NewPayrollHandler constructs handler.
func NewPayrollHandler(payroll *service.PayrollService) *PayrollHandler {
	return &PayrollHandler{service: payroll}
}

// Create POST /payroll-runs.
func (h *PayrollHandler) Create(c *fiber.Ctx) error {
	session, err := sessionOf(c)
	if err != nil {
		return err
	}
	var req dto.CreatePayrollRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	run, err := h.service.Create(c.UserContext(), session, service.PayrollCreateInput{
		PeriodStart:     req.PeriodStart,
		PeriodEnd:       req.PeriodEnd,
		Currency:        req.Currency,
		EmployeeCount:   req.EmployeeCount,
		TotalGross:      req.TotalGross,
		TotalDeductions: req.TotalDeductions,
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": run})
}

// List GET /payroll-runs?status=.
func (h *PayrollHandler) List(c *fiber.Ctx) error {
	session, err := sessionOf(c)
	if err != nil {
		return err
	}
	var statuses []domain.PayrollStatus
	for _, st := range parseList(c.Query("status")) {
		statuses = append(statuses, domain.PayrollStatus(st))
	}
	limit, offset := parsePaging(c)
	runs, err := h.service.List(c.UserContext(), session, statuses, limit, offset)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": runs})
}

// Get GET /payroll-runs/:id.
func (h *PayrollHandler) Get(c *fiber.Ctx) error {
	session, err := sessionOf(c)
	if err != nil {
		return err
	}
	run, err := h.service.Get(c.UserContext(), session, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": run})
}

// UpdateStatus POST /payroll-runs/:id/status.
func (h *PayrollHandler) UpdateStatus(c *fiber.Ctx) error {
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

// Reconcile POST /payroll-runs/reconcile.
func (h *PayrollHandler) Reconcile(c *fiber.Ctx) error {
	session, err := sessionOf(c)
	if err != nil {
		return err
	}
	rep, err := h.service.ReconcileUnposted(c.UserContext(), session.OrganizationID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": rep})
}

// QuotationsHandler manages quotation endpoints.
type QuotationsHandler struct {
	service *service.QuotationService
}

// NewQuotationsHandler constructs handler.
func NewQuotationsHandler(quotations *service.QuotationService) *QuotationsHandler {
	return &QuotationsHandler{service: quotations}
}

// Create POST /quotations.
func (h *QuotationsHandler) Create(c *fiber.Ctx) error {
	session, err := sessionOf(c)
	if err != nil {
		return err
	}
	var req dto.CreateQuotationRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	lines := make([]domain.QuotationLine, 0, len(req.Lines))
	for _, line := range req.Lines {
		lines = append(lines, domain.QuotationLine{Description: line.Description, Quantity: line.Quantity, UnitPrice: line.UnitPrice})
	}
	q, err := h.service.Create(c.UserContext(), session, service.QuotationCreateInput{
		WorkOrderID: req.WorkOrderID,
		VendorID:    req.VendorID,
		Currency:    req.Currency,
		Lines:       lines,
		ValidUntil:  req.ValidUntil,
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": q})
}

// Get GET /quotations/:id.
func (h *QuotationsHandler) Get(c *fiber.Ctx) error {
	session, err := sessionOf(c)
	if err != nil {
		return err
	}
	q, err := h.service.Get(c.UserContext(), session, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": q})
}

// UpdateStatus POST /quotations/:id/status.
func (h *QuotationsHandler) UpdateStatus(c *fiber.Ctx) error {
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
