package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/fixzit/fm-service/internal/domain"
)

// CreateWorkOrderRequest payload.
type CreateWorkOrderRequest struct {
	Title       string                   `json:"title"`
	Description string                   `json:"description"`
	PropertyID  string                   `json:"property_id"`
	Category    string                   `json:"category"`
	Priority    domain.WorkOrderPriority `json:"priority"`
	SLAHours    *decimal.Decimal         `json:"sla_hours"`
}

// StatusRequest payload shared by every status endpoint.
type StatusRequest struct {
	Status  string `json:"status"`
	Comment string `json:"comment"`
}

// AssignRequest payload.
type AssignRequest struct {
	TechnicianID string `json:"technician_id"`
}

// ScheduleRequest payload.
type ScheduleRequest struct {
	ScheduledAt *time.Time `json:"scheduled_at"`
}

// MutationMeta describes how a mutation was applied.
type MutationMeta struct {
	Changed  bool   `json:"changed"`
	Replayed bool   `json:"replayed"`
	Message  string `json:"message,omitempty"`
}

// SLAStatusResponse is the live SLA clock of a work order.
type SLAStatusResponse struct {
	WorkOrderID        string     `json:"work_order_id"`
	Status             string     `json:"status"`
	Deadline           *time.Time `json:"deadline,omitempty"`
	EffectiveDeadline  *time.Time `json:"effective_deadline,omitempty"`
	RemainingSeconds   int64      `json:"remaining_seconds"`
	Breached           bool       `json:"breached"`
	Paused             bool       `json:"paused"`
	TotalPausedSeconds int64      `json:"total_paused_seconds"`
	Applies            bool       `json:"applies"`
}

// NewSLAStatusResponse converts the domain view.
func NewSLAStatusResponse(wo *domain.WorkOrder, status domain.SLAStatus) SLAStatusResponse {
	return SLAStatusResponse{
		WorkOrderID:        wo.ID,
		Status:             string(wo.Status),
		Deadline:           status.Deadline,
		EffectiveDeadline:  status.EffectiveDeadline,
		RemainingSeconds:   int64(status.Remaining / time.Second),
		Breached:           status.Breached,
		Paused:             status.Paused,
		TotalPausedSeconds: int64(status.TotalPaused / time.Second),
		Applies:            status.Applies,
	}
}
