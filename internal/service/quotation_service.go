package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/fixzit/fm-service/internal/domain"
	"github.com/fixzit/fm-service/internal/events"
	"github.com/fixzit/fm-service/internal/repository"
	"github.com/fixzit/fm-service/internal/workflow"
	"github.com/fixzit/fm-service/pkg/util/errorutil"
)

const quotationResource = "quotation"

// QuotationService coordinates vendor quotations.
type QuotationService struct {
	deps Dependencies
	repo *repository.Entities[domain.Quotation, *domain.Quotation]
}

// QuotationCreateInput describes a new quotation.
type QuotationCreateInput struct {
	WorkOrderID string
	VendorID    string
	Currency    string
	Lines       []domain.QuotationLine
	ValidUntil  *time.Time
}

// NewQuotationService constructs the service.
func NewQuotationService(deps Dependencies) *QuotationService {
	return &QuotationService{
		deps: deps.withDefaults(),
		repo: repository.NewEntities[domain.Quotation](domain.KindQuotation),
	}
}

// Create drafts a quotation and totals its lines.
func (s *QuotationService) Create(ctx context.Context, session domain.Session, input QuotationCreateInput) (*domain.Quotation, error) {
	vendorID := strings.TrimSpace(input.VendorID)
	if vendorID == "" {
		return nil, errorutil.NewValidationError("vendor_id is required", map[string]any{"field": "vendor_id"})
	}
	if len(input.Lines) == 0 {
		return nil, errorutil.NewValidationError("at least one line is required", map[string]any{"field": "lines"})
	}
	for i, line := range input.Lines {
		if !line.Quantity.IsPositive() || line.UnitPrice.IsNegative() {
			return nil, errorutil.NewValidationError("line quantity must be positive and unit price non-negative", map[string]any{"line": i})
		}
	}
	currency := strings.ToUpper(strings.TrimSpace(input.Currency))
	if currency == "" {
		currency = "SAR"
	}

	q := &domain.Quotation{
		EntityHeader: domain.EntityHeader{ID: uuid.NewString(), OrganizationID: session.OrganizationID, CreatedAt: s.deps.Now()},
		WorkOrderID:  input.WorkOrderID,
		VendorID:     vendorID,
		Currency:     currency,
		Lines:        input.Lines,
		ValidUntil:   input.ValidUntil,
		Status:       workflow.Quotations.Initial(),
	}
	q.Total = q.ComputeTotal()
	if err := create(ctx, s.deps, s.repo, q, session.Actor()); err != nil {
		return nil, err
	}
	return q, nil
}

// Get fetches a quotation in the session's organization.
func (s *QuotationService) Get(ctx context.Context, session domain.Session, id string) (*domain.Quotation, error) {
	return load(ctx, s.deps.Store, s.repo, quotationResource, session.OrganizationID, id)
}

// TransitionStatus moves a quotation along its graph.
func (s *QuotationService) TransitionStatus(ctx context.Context, session domain.Session, id string, input StatusInput, requestID string) (Result[*domain.Quotation], error) {
	return guarded(ctx, s.deps, domain.KindQuotation, session.OrganizationID, id, "status", requestID, input,
		func(ctx context.Context) (Result[*domain.Quotation], error) {
			var none Result[*domain.Quotation]
			current, err := s.Get(ctx, session, id)
			if err != nil {
				return none, err
			}
			target := domain.QuotationStatus(strings.ToUpper(strings.TrimSpace(input.Status)))
			if err := workflow.Quotations.Validate(current.Status, target); err != nil {
				return none, err
			}
			next := *current
			next.Status = target

			updated, err := commit(ctx, s.deps, s.repo, current, &next, auditSpec{
				Action:   domain.AuditStatusChanged,
				Actor:    session.Actor(),
				NewValue: map[string]any{"comment": input.Comment},
			}, nil)
			if errors.Is(err, errLostRace) {
				return none, staleConflict(ctx, s.deps, s.repo, current, string(target))
			}
			if err != nil {
				return none, err
			}

			publish(ctx, s.deps, events.Event{
				Type:           events.EventQuotationStatusChanged,
				OrganizationID: updated.OrganizationID,
				EntityKind:     domain.KindQuotation,
				EntityID:       updated.ID,
				Actor:          session.Actor(),
				Payload: events.StatusChangedPayload{
					OldStatus: string(current.Status),
					NewStatus: string(updated.Status),
					Comment:   input.Comment,
				},
			})
			return applied(updated), nil
		})
}
