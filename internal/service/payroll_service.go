package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/fixzit/fm-service/internal/domain"
	"github.com/fixzit/fm-service/internal/events"
	"github.com/fixzit/fm-service/internal/finance"
	"github.com/fixzit/fm-service/internal/repository"
	"github.com/fixzit/fm-service/internal/workflow"
	"github.com/fixzit/fm-service/pkg/util/errorutil"
)

const payrollResource = "payroll run"

// postingError marks a failure raised by the ledger inside the lock
// transaction.
type postingError struct{ err error }

func (e *postingError) Error() string { return "post payroll journal: " + e.err.Error() }
func (e *postingError) Unwrap() error { return e.err }

// PayrollService coordinates payroll runs and their ledger postings.
type PayrollService struct {
	deps   Dependencies
	repo   *repository.Entities[domain.PayrollRun, *domain.PayrollRun]
	poster finance.Poster
}

// PayrollCreateInput describes a new pay period.
type PayrollCreateInput struct {
	PeriodStart     time.Time
	PeriodEnd       time.Time
	Currency        string
	EmployeeCount   int
	TotalGross      decimal.Decimal
	TotalDeductions decimal.Decimal
}

// ReconcileReport summarizes a reconciliation pass.
type ReconcileReport struct {
	Checked int      `json:"checked"`
	Posted  []string `json:"posted"`
	Failed  []string `json:"failed"`
}

// NewPayrollService constructs the service.
func NewPayrollService(deps Dependencies, poster finance.Poster) *PayrollService {
	if poster == nil {
		poster = finance.NewLedgerPoster()
	}
	return &PayrollService{
		deps:   deps.withDefaults(),
		repo:   repository.NewEntities[domain.PayrollRun](domain.KindPayrollRun),
		poster: poster,
	}
}

// Create opens a payroll run in DRAFT.
func (s *PayrollService) Create(ctx context.Context, session domain.Session, input PayrollCreateInput) (*domain.PayrollRun, error) {
	if input.PeriodStart.IsZero() || !input.PeriodEnd.After(input.PeriodStart) {
		return nil, errorutil.NewValidationError("period_end must be after period_start", map[string]any{"field": "period_end"})
	}
	if !input.TotalGross.IsPositive() {
		return nil, errorutil.NewValidationError("total_gross must be positive", map[string]any{"field": "total_gross"})
	}
	if input.TotalDeductions.IsNegative() || input.TotalDeductions.GreaterThan(input.TotalGross) {
		return nil, errorutil.NewValidationError("total_deductions must be between zero and total_gross", map[string]any{"field": "total_deductions"})
	}
	currency := strings.ToUpper(strings.TrimSpace(input.Currency))
	if currency == "" {
		currency = "SAR"
	}

	run := &domain.PayrollRun{
		EntityHeader:    domain.EntityHeader{ID: uuid.NewString(), OrganizationID: session.OrganizationID, CreatedAt: s.deps.Now()},
		PeriodStart:     input.PeriodStart.UTC(),
		PeriodEnd:       input.PeriodEnd.UTC(),
		Currency:        currency,
		EmployeeCount:   input.EmployeeCount,
		TotalGross:      input.TotalGross,
		TotalDeductions: input.TotalDeductions,
		TotalNet:        input.TotalGross.Sub(input.TotalDeductions),
		Status:          workflow.PayrollRuns.Initial(),
	}
	if err := create(ctx, s.deps, s.repo, run, session.Actor()); err != nil {
		return nil, err
	}
	return run, nil
}

// Get fetches a payroll run in the session's organization.
func (s *PayrollService) Get(ctx context.Context, session domain.Session, id string) (*domain.PayrollRun, error) {
	return load(ctx, s.deps.Store, s.repo, payrollResource, session.OrganizationID, id)
}

// List returns a page of payroll runs.
func (s *PayrollService) List(ctx context.Context, session domain.Session, statuses []domain.PayrollStatus, limit, offset int) ([]*domain.PayrollRun, error) {
	raw := make([]string, 0, len(statuses))
	for _, st := range statuses {
		raw = append(raw, string(st))
	}
	return s.repo.List(ctx, s.deps.Store, listFilter(session.OrganizationID, raw, limit, offset))
}

// TransitionStatus moves a payroll run along its graph. Entering LOCKED posts
// the run's journal in the same transaction, once: a run already marked
// posted is never posted again. A failed posting rolls the lock back.
func (s *PayrollService) TransitionStatus(ctx context.Context, session domain.Session, id string, input StatusInput, requestID string) (Result[*domain.PayrollRun], error) {
	return guarded(ctx, s.deps, domain.KindPayrollRun, session.OrganizationID, id, "status", requestID, input,
		func(ctx context.Context) (Result[*domain.PayrollRun], error) {
			return s.transition(ctx, session.Actor(), session.OrganizationID, id, input)
		})
}

func (s *PayrollService) transition(ctx context.Context, actor domain.Actor, organizationID, id string, input StatusInput) (Result[*domain.PayrollRun], error) {
	var none Result[*domain.PayrollRun]
	current, err := load(ctx, s.deps.Store, s.repo, payrollResource, organizationID, id)
	if err != nil {
		return none, err
	}
	target := domain.PayrollStatus(strings.ToUpper(strings.TrimSpace(input.Status)))
	if err := workflow.PayrollRuns.Validate(current.Status, target); err != nil {
		return none, err
	}

	now := s.deps.Now()
	next := *current
	next.Status = target
	var prepare func(ctx context.Context, tx repository.Store, next *domain.PayrollRun) error
	if target == domain.PayrollLocked {
		next.LockedAt = &now
		if !current.Posted {
			prepare = s.postInto(now)
		}
	}

	updated, err := commit(ctx, s.deps, s.repo, current, &next, auditSpec{
		Action:   domain.AuditStatusChanged,
		Actor:    actor,
		NewValue: map[string]any{"comment": input.Comment},
	}, prepare)
	var perr *postingError
	switch {
	case errors.As(err, &perr):
		s.deps.Metrics.RecordPosting("failed")
		s.deps.Logger.Error("payroll posting failed; lock rolled back",
			zap.String("payroll_run_id", id), zap.Error(perr.err))
		return none, errorutil.NewPostingFailed(perr.err)
	case errors.Is(err, errLostRace):
		return none, staleConflict(ctx, s.deps, s.repo, current, string(target))
	case err != nil:
		return none, err
	}

	publish(ctx, s.deps, events.Event{
		Type:           events.EventPayrollStatusChanged,
		OrganizationID: updated.OrganizationID,
		EntityKind:     domain.KindPayrollRun,
		EntityID:       updated.ID,
		Actor:          actor,
		Payload: events.StatusChangedPayload{
			OldStatus: string(current.Status),
			NewStatus: string(updated.Status),
			Comment:   input.Comment,
		},
	})
	if prepare != nil {
		s.postedEvent(ctx, actor, updated)
	}
	return applied(updated), nil
}

// postInto returns a prepare hook that posts the run's journal through the
// transaction and marks next as posted. A journal that already exists aborts
// the transaction as a lost race.
func (s *PayrollService) postInto(now time.Time) func(ctx context.Context, tx repository.Store, next *domain.PayrollRun) error {
	return func(ctx context.Context, tx repository.Store, next *domain.PayrollRun) error {
		journalID, err := s.poster.Post(ctx, tx, finance.PayrollJournal(next))
		if errors.Is(err, repository.ErrDuplicate) {
			// A concurrent lock posted this run first.
			return errLostRace
		}
		if err != nil {
			return &postingError{err: err}
		}
		postedAt := now
		next.Posted = true
		next.JournalID = &journalID
		next.PostedAt = &postedAt
		return nil
	}
}

func (s *PayrollService) postedEvent(ctx context.Context, actor domain.Actor, run *domain.PayrollRun) {
	s.deps.Metrics.RecordPosting("posted")
	publish(ctx, s.deps, events.Event{
		Type:           events.EventPayrollPosted,
		OrganizationID: run.OrganizationID,
		EntityKind:     domain.KindPayrollRun,
		EntityID:       run.ID,
		Actor:          actor,
		Payload: events.PostedPayload{
			JournalID: deref(run.JournalID),
			Reference: finance.PayrollJournal(run).Reference,
		},
	})
}

// ReconcileUnposted posts every LOCKED run still marked unposted. Each run is
// posted in its own transaction through the conditional update, so a run
// posted concurrently is skipped.
func (s *PayrollService) ReconcileUnposted(ctx context.Context, organizationID string) (ReconcileReport, error) {
	report := ReconcileReport{Posted: []string{}, Failed: []string{}}
	offset := 0
	for {
		runs, err := s.repo.List(ctx, s.deps.Store, listFilter(organizationID, []string{string(domain.PayrollLocked)}, 200, offset))
		if err != nil {
			return report, err
		}
		for _, run := range runs {
			report.Checked++
			if run.Posted {
				continue
			}
			if err := s.reconcile(ctx, run); err != nil {
				s.deps.Logger.Warn("reconcile payroll run failed",
					zap.String("payroll_run_id", run.ID), zap.Error(err))
				report.Failed = append(report.Failed, run.ID)
				continue
			}
			report.Posted = append(report.Posted, run.ID)
		}
		if len(runs) < 200 {
			break
		}
		offset += len(runs)
	}
	s.deps.Logger.Info("payroll reconciliation finished",
		zap.String("organization_id", organizationID),
		zap.Int("checked", report.Checked),
		zap.Int("posted", len(report.Posted)),
		zap.Int("failed", len(report.Failed)))
	return report, nil
}

func (s *PayrollService) reconcile(ctx context.Context, current *domain.PayrollRun) error {
	next := *current
	updated, err := commit(ctx, s.deps, s.repo, current, &next, auditSpec{
		Action: domain.AuditPosted,
		Actor:  domain.SystemActor,
	}, s.postInto(s.deps.Now()))
	var perr *postingError
	if errors.As(err, &perr) {
		s.deps.Metrics.RecordPosting("failed")
		return perr
	}
	if errors.Is(err, errLostRace) {
		s.deps.Metrics.RecordConflict(string(domain.KindPayrollRun))
		return fmt.Errorf("payroll run %s: %w", current.ID, ErrConflict)
	}
	if err != nil {
		return err
	}
	s.postedEvent(ctx, domain.SystemActor, updated)
	return nil
}
