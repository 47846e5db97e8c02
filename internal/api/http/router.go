package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/fixzit/fm-service/internal/api/http/handlers"
	"github.com/fixzit/fm-service/internal/auth"
	"github.com/fixzit/fm-service/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Calendar       *handlers.CalendarHandler
	WorkOrders     *handlers.WorkOrdersHandler
	Payroll        *handlers.PayrollHandler
	Quotations     *handlers.QuotationsHandler
	AuthMiddleware *auth.AuthMiddleware
}

// Role gates. SUPER_ADMIN passes all of them.
var (
	calendarAdmins  = []domain.Role{domain.RoleAdmin, domain.RoleFMManager}
	dispatchers     = []domain.Role{domain.RoleAdmin, domain.RoleFMManager, domain.RolePropertyManager}
	fieldStaff      = []domain.Role{domain.RoleAdmin, domain.RoleFMManager, domain.RolePropertyManager, domain.RoleTechnician}
	requesters      = []domain.Role{domain.RoleAdmin, domain.RoleFMManager, domain.RolePropertyManager, domain.RoleTenant}
	payrollOfficers = []domain.Role{domain.RoleAdmin, domain.RoleFinance, domain.RoleHR}
	quoteParties    = []domain.Role{domain.RoleAdmin, domain.RoleFMManager, domain.RoleFinance, domain.RoleVendor}
)

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	api := app.Group("", cfg.AuthMiddleware.Handle, auth.RequireAnyRole())

	cal := api.Group("/calendar")
	cal.Get("/", cfg.Calendar.Get)
	cal.Post("/", auth.RequireRole(calendarAdmins...), cfg.Calendar.Save)
	cal.Get("/business-hours", cfg.Calendar.BusinessHours)
	cal.Post("/deadline", cfg.Calendar.Deadline)

	wo := api.Group("/work-orders")
	wo.Post("/", auth.RequireRole(requesters...), cfg.WorkOrders.Create)
	wo.Get("/", cfg.WorkOrders.List)
	wo.Get("/:id", cfg.WorkOrders.Get)
	wo.Post("/:id/status", auth.RequireRole(fieldStaff...), cfg.WorkOrders.UpdateStatus)
	wo.Post("/:id/assign", auth.RequireRole(dispatchers...), cfg.WorkOrders.Assign)
	wo.Post("/:id/schedule", auth.RequireRole(dispatchers...), cfg.WorkOrders.Schedule)
	wo.Get("/:id/sla", cfg.WorkOrders.SLA)
	wo.Get("/:id/sla/report.pdf", cfg.WorkOrders.SLAReport)
	wo.Get("/:id/history", cfg.WorkOrders.History)

	payroll := api.Group("/payroll-runs", auth.RequireRole(payrollOfficers...))
	payroll.Post("/", cfg.Payroll.Create)
	payroll.Get("/", cfg.Payroll.List)
	payroll.Post("/reconcile", cfg.Payroll.Reconcile)
	payroll.Get("/:id", cfg.Payroll.Get)
	payroll.Post("/:id/status", cfg.Payroll.UpdateStatus)

	quotes := api.Group("/quotations", auth.RequireRole(quoteParties...))
	quotes.Post("/", cfg.Quotations.Create)
	quotes.Get("/:id", cfg.Quotations.Get)
	quotes.Post("/:id/status", cfg.Quotations.UpdateStatus)
}
