package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fixzit/fm-service/internal/calendar"
	"github.com/fixzit/fm-service/internal/domain"
	"github.com/fixzit/fm-service/internal/events"
	"github.com/fixzit/fm-service/internal/repository"
	"github.com/fixzit/fm-service/internal/workflow"
	"github.com/fixzit/fm-service/pkg/util/errorutil"
)

const workOrderResource = "work order"

// WorkOrderService coordinates work order workflows.
type WorkOrderService struct {
	deps      Dependencies
	repo      *repository.Entities[domain.WorkOrder, *domain.WorkOrder]
	calendars *CalendarService
	policy    domain.SLAPolicy
}

// WorkOrderCreateInput describes work order creation payload.
type WorkOrderCreateInput struct {
	Title       string
	Description string
	PropertyID  string
	Category    string
	Priority    domain.WorkOrderPriority
	// SLAHours overrides the priority policy when set.
	SLAHours *decimal.Decimal
}

// WorkOrderFilter describes listing filters.
type WorkOrderFilter struct {
	Statuses []domain.WorkOrderStatus
	Limit    int
	Offset   int
}

// StatusInput is a status change request.
type StatusInput struct {
	Status  string `json:"status"`
	Comment string `json:"comment,omitempty"`
}

type assignRequest struct {
	TechnicianID string `json:"technician_id"`
}

type scheduleRequest struct {
	ScheduledAt time.Time `json:"scheduled_at"`
}

// NewWorkOrderService constructs the service.
func NewWorkOrderService(deps Dependencies, calendars *CalendarService, policy domain.SLAPolicy) *WorkOrderService {
	if policy == nil {
		policy = domain.DefaultSLAPolicy()
	}
	return &WorkOrderService{
		deps:      deps.withDefaults(),
		repo:      repository.NewEntities[domain.WorkOrder](domain.KindWorkOrder),
		calendars: calendars,
		policy:    policy,
	}
}

// Create opens a work order and computes its resolution deadline in business
// hours of the organization's calendar.
func (s *WorkOrderService) Create(ctx context.Context, session domain.Session, input WorkOrderCreateInput) (*domain.WorkOrder, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, errorutil.NewValidationError("title is required", map[string]any{"field": "title"})
	}
	priority := input.Priority
	if priority == "" {
		priority = domain.PriorityMedium
	}
	if _, ok := s.policy[priority]; !ok {
		return nil, errorutil.NewValidationError("unknown priority", map[string]any{"priority": string(priority)})
	}
	hours := s.policy.HoursFor(priority)
	if input.SLAHours != nil {
		hours = *input.SLAHours
	}

	cal, err := s.calendars.Calendar(ctx, session.OrganizationID)
	if err != nil {
		return nil, err
	}
	now := s.deps.Now()
	res, err := cal.Deadline(now, hours)
	if err != nil {
		if errors.Is(err, calendar.ErrInvalidSLAHours) {
			return nil, errorutil.NewValidationError(err.Error(), map[string]any{"field": "sla_hours"})
		}
		return nil, err
	}
	deadline := res.Deadline

	id := uuid.NewString()
	wo := &domain.WorkOrder{
		EntityHeader: domain.EntityHeader{ID: id, OrganizationID: session.OrganizationID, CreatedAt: now},
		Code:         workOrderCode(now, id),
		Title:        title,
		Description:  strings.TrimSpace(input.Description),
		PropertyID:   input.PropertyID,
		Category:     input.Category,
		Priority:     priority,
		Status:       workflow.WorkOrders.Initial(),
		RequesterID:  session.UserID,
		SLA: domain.WorkOrderSLA{
			Hours:              hours,
			ResolutionDeadline: &deadline,
		},
	}
	if err := create(ctx, s.deps, s.repo, wo, session.Actor()); err != nil {
		return nil, err
	}

	publish(ctx, s.deps, events.Event{
		Type:           events.EventWorkOrderCreated,
		OrganizationID: wo.OrganizationID,
		EntityKind:     domain.KindWorkOrder,
		EntityID:       wo.ID,
		Actor:          session.Actor(),
		Payload:        events.CreatedPayload{Status: string(wo.Status), Deadline: wo.SLA.ResolutionDeadline},
	})
	return wo, nil
}

// Get fetches a work order in the session's organization.
func (s *WorkOrderService) Get(ctx context.Context, session domain.Session, id string) (*domain.WorkOrder, error) {
	return load(ctx, s.deps.Store, s.repo, workOrderResource, session.OrganizationID, id)
}

// List returns a page of work orders, newest first.
func (s *WorkOrderService) List(ctx context.Context, session domain.Session, filter WorkOrderFilter) ([]*domain.WorkOrder, error) {
	statuses := make([]string, 0, len(filter.Statuses))
	for _, st := range filter.Statuses {
		statuses = append(statuses, string(st))
	}
	return s.repo.List(ctx, s.deps.Store, listFilter(session.OrganizationID, statuses, filter.Limit, filter.Offset))
}

// History lists the audit trail of a work order, oldest first.
func (s *WorkOrderService) History(ctx context.Context, session domain.Session, id string) ([]domain.AuditEntry, error) {
	if _, err := s.Get(ctx, session, id); err != nil {
		return nil, err
	}
	return s.deps.Store.ListAudit(ctx, session.OrganizationID, domain.KindWorkOrder, id)
}

// SLAStatus evaluates the SLA clock at now.
func (s *WorkOrderService) SLAStatus(ctx context.Context, session domain.Session, id string, now time.Time) (*domain.WorkOrder, domain.SLAStatus, error) {
	wo, err := s.Get(ctx, session, id)
	if err != nil {
		return nil, domain.SLAStatus{}, err
	}
	terminal := workflow.WorkOrders.IsTerminal(wo.Status)
	return wo, domain.EvaluateSLA(wo.SLA.ResolutionDeadline, wo.SLA.Pause, terminal, now), nil
}

// SLAReport bundles a work order with its live SLA status and the business
// hour breakdown of its deadline.
type SLAReport struct {
	WorkOrder   *domain.WorkOrder
	Status      domain.SLAStatus
	Calculation calendar.Result
	Location    *time.Location
}

// SLAReport recomputes the deadline breakdown from the work order's creation
// time with the organization's current calendar.
func (s *WorkOrderService) SLAReport(ctx context.Context, session domain.Session, id string, now time.Time) (SLAReport, error) {
	wo, status, err := s.SLAStatus(ctx, session, id, now)
	if err != nil {
		return SLAReport{}, err
	}
	cal, err := s.calendars.Calendar(ctx, session.OrganizationID)
	if err != nil {
		return SLAReport{}, err
	}
	calc, err := cal.Deadline(wo.CreatedAt, wo.SLA.Hours)
	if err != nil {
		return SLAReport{}, err
	}
	return SLAReport{WorkOrder: wo, Status: status, Calculation: calc, Location: cal.Location()}, nil
}

// TransitionStatus moves a work order along its lifecycle graph. Entering
// PAUSED stops the SLA clock and leaving it restarts the clock.
func (s *WorkOrderService) TransitionStatus(ctx context.Context, session domain.Session, id string, input StatusInput, requestID string) (Result[*domain.WorkOrder], error) {
	return guarded(ctx, s.deps, domain.KindWorkOrder, session.OrganizationID, id, "status", requestID, input,
		func(ctx context.Context) (Result[*domain.WorkOrder], error) {
			return s.transition(ctx, session, id, input)
		})
}

func (s *WorkOrderService) transition(ctx context.Context, session domain.Session, id string, input StatusInput) (Result[*domain.WorkOrder], error) {
	var none Result[*domain.WorkOrder]
	current, err := s.Get(ctx, session, id)
	if err != nil {
		return none, err
	}
	target := domain.WorkOrderStatus(strings.ToUpper(strings.TrimSpace(input.Status)))
	if err := workflow.WorkOrders.Validate(current.Status, target); err != nil {
		return none, err
	}

	now := s.deps.Now()
	next := *current
	if current.Status == domain.WorkOrderPaused {
		next.SLA.Pause.Resume(now)
	}
	if target == domain.WorkOrderPaused {
		if err := next.SLA.Pause.Pause(now); err != nil {
			return none, errorutil.NewValidationError(err.Error(), nil)
		}
	}
	switch target {
	case domain.WorkOrderCompleted:
		next.CompletedAt = &now
	case domain.WorkOrderClosed:
		next.ClosedAt = &now
	}
	next.Status = target

	updated, err := commit(ctx, s.deps, s.repo, current, &next, auditSpec{
		Action: domain.AuditStatusChanged,
		Actor:  session.Actor(),
		NewValue: map[string]any{
			"comment":         input.Comment,
			"total_paused_ms": fmt.Sprint(next.SLA.Pause.TotalPausedMs),
		},
	}, nil)
	if errors.Is(err, errLostRace) {
		return none, staleConflict(ctx, s.deps, s.repo, current, string(target))
	}
	if err != nil {
		return none, err
	}

	publish(ctx, s.deps, events.Event{
		Type:           events.EventWorkOrderStatusChanged,
		OrganizationID: updated.OrganizationID,
		EntityKind:     domain.KindWorkOrder,
		EntityID:       updated.ID,
		Actor:          session.Actor(),
		Payload: events.StatusChangedPayload{
			OldStatus: string(current.Status),
			NewStatus: string(updated.Status),
			Comment:   input.Comment,
		},
	})
	return applied(updated), nil
}

// Assign dispatches a technician. A SUBMITTED work order is promoted to
// ASSIGNED in the same write. Re-assigning the current technician after
// SUBMITTED writes nothing.
func (s *WorkOrderService) Assign(ctx context.Context, session domain.Session, id, technicianID, requestID string) (Result[*domain.WorkOrder], error) {
	technicianID = strings.TrimSpace(technicianID)
	req := assignRequest{TechnicianID: technicianID}
	return guarded(ctx, s.deps, domain.KindWorkOrder, session.OrganizationID, id, "assign", requestID, req,
		func(ctx context.Context) (Result[*domain.WorkOrder], error) {
			return s.assign(ctx, session, id, technicianID)
		})
}

func (s *WorkOrderService) assign(ctx context.Context, session domain.Session, id, technicianID string) (Result[*domain.WorkOrder], error) {
	var none Result[*domain.WorkOrder]
	if technicianID == "" {
		return none, errorutil.NewValidationError("technician_id is required", map[string]any{"field": "technician_id"})
	}
	current, err := s.Get(ctx, session, id)
	if err != nil {
		return none, err
	}
	if workflow.WorkOrders.IsTerminal(current.Status) {
		return none, &workflow.TransitionError{Kind: domain.KindWorkOrder, From: string(current.Status), To: string(domain.WorkOrderAssigned)}
	}
	if sameAssignee(current, technicianID) {
		return unchanged(current, MessageNoChanges), nil
	}

	next := *current
	next.AssigneeID = &technicianID
	if current.Status == domain.WorkOrderSubmitted {
		next.Status = domain.WorkOrderAssigned
	}

	updated, err := commit(ctx, s.deps, s.repo, current, &next, auditSpec{
		Action:   domain.AuditAssigned,
		Actor:    session.Actor(),
		OldValue: map[string]any{"assignee_id": deref(current.AssigneeID)},
		NewValue: map[string]any{"assignee_id": technicianID},
	}, nil)
	if errors.Is(err, errLostRace) {
		latest, getErr := s.Get(ctx, session, id)
		if getErr == nil && sameAssignee(latest, technicianID) {
			// Another request already reached this state.
			return unchanged(latest, MessageNoChanges), nil
		}
		return none, staleConflict(ctx, s.deps, s.repo, current, string(next.Status))
	}
	if err != nil {
		return none, err
	}

	publish(ctx, s.deps, events.Event{
		Type:           events.EventWorkOrderAssigned,
		OrganizationID: updated.OrganizationID,
		EntityKind:     domain.KindWorkOrder,
		EntityID:       updated.ID,
		Actor:          session.Actor(),
		Payload: events.AssignedPayload{
			PreviousAssigneeID: current.AssigneeID,
			AssigneeID:         technicianID,
			Status:             string(updated.Status),
		},
	})
	return applied(updated), nil
}

func sameAssignee(wo *domain.WorkOrder, technicianID string) bool {
	return wo.Status != domain.WorkOrderSubmitted && wo.AssigneeID != nil && *wo.AssigneeID == technicianID
}

// Schedule sets the visit date. An ASSIGNED work order is promoted to
// SCHEDULED. The resolution deadline is never moved earlier; a work order
// without one takes the visit date.
func (s *WorkOrderService) Schedule(ctx context.Context, session domain.Session, id string, scheduledAt time.Time, requestID string) (Result[*domain.WorkOrder], error) {
	req := scheduleRequest{ScheduledAt: scheduledAt.UTC()}
	return guarded(ctx, s.deps, domain.KindWorkOrder, session.OrganizationID, id, "schedule", requestID, req,
		func(ctx context.Context) (Result[*domain.WorkOrder], error) {
			return s.schedule(ctx, session, id, scheduledAt.UTC())
		})
}

func (s *WorkOrderService) schedule(ctx context.Context, session domain.Session, id string, scheduledAt time.Time) (Result[*domain.WorkOrder], error) {
	var none Result[*domain.WorkOrder]
	if scheduledAt.IsZero() {
		return none, errorutil.NewValidationError("scheduled_at is required", map[string]any{"field": "scheduled_at"})
	}
	current, err := s.Get(ctx, session, id)
	if err != nil {
		return none, err
	}
	if workflow.WorkOrders.IsTerminal(current.Status) {
		return none, &workflow.TransitionError{Kind: domain.KindWorkOrder, From: string(current.Status), To: string(domain.WorkOrderScheduled)}
	}

	next := *current
	next.ScheduledAt = &scheduledAt
	if current.SLA.ResolutionDeadline == nil {
		deadline := scheduledAt
		next.SLA.ResolutionDeadline = &deadline
	}
	if current.Status == domain.WorkOrderAssigned {
		next.Status = domain.WorkOrderScheduled
	}
	if next.Status == current.Status && sameInstant(current.ScheduledAt, next.ScheduledAt) &&
		sameInstant(current.SLA.ResolutionDeadline, next.SLA.ResolutionDeadline) {
		return unchanged(current, MessageUpToDate), nil
	}

	updated, err := commit(ctx, s.deps, s.repo, current, &next, auditSpec{
		Action: domain.AuditScheduled,
		Actor:  session.Actor(),
		OldValue: map[string]any{
			"scheduled_at": formatTime(current.ScheduledAt),
			"deadline":     formatTime(current.SLA.ResolutionDeadline),
		},
		NewValue: map[string]any{
			"scheduled_at": formatTime(next.ScheduledAt),
			"deadline":     formatTime(next.SLA.ResolutionDeadline),
		},
	}, nil)
	if errors.Is(err, errLostRace) {
		return none, staleConflict(ctx, s.deps, s.repo, current, string(next.Status))
	}
	if err != nil {
		return none, err
	}

	publish(ctx, s.deps, events.Event{
		Type:           events.EventWorkOrderScheduled,
		OrganizationID: updated.OrganizationID,
		EntityKind:     domain.KindWorkOrder,
		EntityID:       updated.ID,
		Actor:          session.Actor(),
		Payload:        events.ScheduledPayload{ScheduledAt: scheduledAt, Deadline: updated.SLA.ResolutionDeadline},
	})
	return applied(updated), nil
}

func sameInstant(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

func workOrderCode(now time.Time, id string) string {
	return fmt.Sprintf("WO-%s-%s", now.Format("20060102"), strings.ToUpper(id[:8]))
}
