package events

import (
	"time"

	"github.com/fixzit/fm-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventWorkOrderCreated       EventType = "work_order.created"
	EventWorkOrderStatusChanged EventType = "work_order.status_changed"
	EventWorkOrderAssigned      EventType = "work_order.assigned"
	EventWorkOrderScheduled     EventType = "work_order.scheduled"
	EventPayrollStatusChanged   EventType = "payroll.status_changed"
	EventPayrollPosted          EventType = "payroll.posted"
	EventQuotationStatusChanged EventType = "quotation.status_changed"
)

// Event represents a domain event emitted by services after commit.
type Event struct {
	ID             string            `json:"id"`
	Type           EventType         `json:"type"`
	OrganizationID string            `json:"organization_id"`
	EntityKind     domain.EntityKind `json:"entity_kind"`
	EntityID       string            `json:"entity_id"`
	Actor          domain.Actor      `json:"actor"`
	Timestamp      time.Time         `json:"timestamp"`
	Payload        interface{}       `json:"payload"`
}

// CreatedPayload payload.
type CreatedPayload struct {
	Status   string     `json:"status"`
	Deadline *time.Time `json:"deadline,omitempty"`
}

// StatusChangedPayload payload.
type StatusChangedPayload struct {
	OldStatus string `json:"old_status"`
	NewStatus string `json:"new_status"`
	Comment   string `json:"comment,omitempty"`
}

// AssignedPayload payload.
type AssignedPayload struct {
	PreviousAssigneeID *string `json:"previous_assignee_id,omitempty"`
	AssigneeID         string  `json:"assignee_id"`
	Status             string  `json:"status"`
}

// ScheduledPayload payload.
type ScheduledPayload struct {
	ScheduledAt time.Time  `json:"scheduled_at"`
	Deadline    *time.Time `json:"deadline,omitempty"`
}

// PostedPayload payload.
type PostedPayload struct {
	JournalID string `json:"journal_id"`
	Reference string `json:"reference"`
}
