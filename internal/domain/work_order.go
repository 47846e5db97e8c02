package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// WorkOrderStatus enumerates lifecycle states for work orders.
type WorkOrderStatus string

const (
	WorkOrderSubmitted  WorkOrderStatus = "SUBMITTED"
	WorkOrderAssigned   WorkOrderStatus = "ASSIGNED"
	WorkOrderScheduled  WorkOrderStatus = "SCHEDULED"
	WorkOrderInProgress WorkOrderStatus = "IN_PROGRESS"
	WorkOrderPaused     WorkOrderStatus = "PAUSED"
	WorkOrderCompleted  WorkOrderStatus = "COMPLETED"
	WorkOrderClosed     WorkOrderStatus = "CLOSED"
	WorkOrderCancelled  WorkOrderStatus = "CANCELLED"
	WorkOrderWontFix    WorkOrderStatus = "WONT_FIX"
)

// WorkOrderPriority enumerates SLA urgency.
type WorkOrderPriority string

const (
	PriorityLow    WorkOrderPriority = "LOW"
	PriorityMedium WorkOrderPriority = "MEDIUM"
	PriorityHigh   WorkOrderPriority = "HIGH"
	PriorityUrgent WorkOrderPriority = "URGENT"
)

// WorkOrderSLA holds the resolution deadline and pause bookkeeping.
type WorkOrderSLA struct {
	Hours              decimal.Decimal `json:"hours"`
	ResolutionDeadline *time.Time      `json:"resolution_deadline,omitempty"`
	Pause              SLAPauseState   `json:"pause"`
}

// WorkOrder is the facilities maintenance aggregate.
type WorkOrder struct {
	EntityHeader
	Code        string            `json:"code"`
	Title       string            `json:"title"`
	Description string            `json:"description"`
	PropertyID  string            `json:"property_id,omitempty"`
	Category    string            `json:"category,omitempty"`
	Priority    WorkOrderPriority `json:"priority"`
	Status      WorkOrderStatus   `json:"status"`
	RequesterID string            `json:"requester_id"`
	AssigneeID  *string           `json:"assignee_id,omitempty"`
	ScheduledAt *time.Time        `json:"scheduled_at,omitempty"`
	SLA         WorkOrderSLA      `json:"sla"`
	CompletedAt *time.Time        `json:"completed_at,omitempty"`
	ClosedAt    *time.Time        `json:"closed_at,omitempty"`
}

func (w *WorkOrder) Kind() EntityKind    { return KindWorkOrder }
func (w *WorkOrder) StatusValue() string { return string(w.Status) }
