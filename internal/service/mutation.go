package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fixzit/fm-service/internal/domain"
	"github.com/fixzit/fm-service/internal/events"
	"github.com/fixzit/fm-service/internal/idempotency"
	"github.com/fixzit/fm-service/internal/observability"
	"github.com/fixzit/fm-service/internal/repository"
	"github.com/fixzit/fm-service/internal/workflow"
	"github.com/fixzit/fm-service/pkg/util/errorutil"
)

// ErrConflict is matched by errors.Is for every lost conditional update.
var ErrConflict = repository.ErrVersionConflict

// errLostRace aborts a transaction whose conditional update matched nothing.
var errLostRace = errors.New("conditional update precondition failed")

// Outcome messages.
const (
	MessageUpdated   = "updated"
	MessageNoChanges = "no changes"
	MessageUpToDate  = "already up to date"
)

// Result is the outcome of a mutation. Changed is false when the request was
// already satisfied and nothing was written.
type Result[T any] struct {
	Entity   T      `json:"entity"`
	Changed  bool   `json:"changed"`
	Replayed bool   `json:"replayed"`
	Message  string `json:"message"`
}

func applied[T any](entity T) Result[T] {
	return Result[T]{Entity: entity, Changed: true, Message: MessageUpdated}
}

func unchanged[T any](entity T, message string) Result[T] {
	return Result[T]{Entity: entity, Message: message}
}

type entityPtr[T any] interface {
	*T
	domain.Transitionable
}

// Dependencies are shared by every workflow service.
type Dependencies struct {
	Store   repository.TxStore
	Guard   *idempotency.Guard
	Events  events.Enqueuer
	Logger  *zap.Logger
	Metrics *observability.Metrics
	Now     func() time.Time
}

func (d Dependencies) withDefaults() Dependencies {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Now == nil {
		d.Now = func() time.Time { return time.Now().UTC() }
	}
	return d
}

// auditSpec describes the audit entry written with a mutation.
type auditSpec struct {
	Action   domain.AuditAction
	Actor    domain.Actor
	OldValue map[string]any
	NewValue map[string]any
}

// commit applies next over current through the conditional update and writes
// the audit entry in the same transaction. prepare runs first inside the
// transaction and may finish next; its error rolls everything back. A lost
// race returns errLostRace. A status change outside the kind's graph is
// refused before the transaction starts.
func commit[T any, P entityPtr[T]](
	ctx context.Context,
	deps Dependencies,
	repo *repository.Entities[T, P],
	current, next P,
	spec auditSpec,
	prepare func(ctx context.Context, tx repository.Store, next P) error,
) (P, error) {
	var out P
	if from, to := current.StatusValue(), next.StatusValue(); from != to && !workflow.ValidateTransition(current.Kind(), from, to) {
		return out, &workflow.TransitionError{Kind: current.Kind(), From: from, To: to}
	}
	err := deps.Store.WithTx(ctx, func(ctx context.Context, tx repository.Store) error {
		if prepare != nil {
			if err := prepare(ctx, tx, next); err != nil {
				return err
			}
		}
		entity, err := repo.Apply(ctx, tx, current, next)
		if err != nil {
			return err
		}
		if entity == nil {
			return errLostRace
		}
		h := entity.Header()
		if err := tx.AppendAudit(ctx, &domain.AuditEntry{
			ID:             uuid.NewString(),
			OrganizationID: h.OrganizationID,
			EntityKind:     entity.Kind(),
			EntityID:       h.ID,
			Actor:          spec.Actor,
			Action:         spec.Action,
			FromStatus:     current.StatusValue(),
			ToStatus:       entity.StatusValue(),
			Version:        h.Version,
			OldValue:       spec.OldValue,
			NewValue:       spec.NewValue,
			CreatedAt:      h.UpdatedAt,
		}); err != nil {
			return fmt.Errorf("append audit: %w", err)
		}
		out = entity
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// create inserts entity with its creation audit entry.
func create[T any, P entityPtr[T]](ctx context.Context, deps Dependencies, repo *repository.Entities[T, P], entity P, actor domain.Actor) error {
	return deps.Store.WithTx(ctx, func(ctx context.Context, tx repository.Store) error {
		if err := repo.Create(ctx, tx, entity); err != nil {
			return err
		}
		h := entity.Header()
		return tx.AppendAudit(ctx, &domain.AuditEntry{
			ID:             uuid.NewString(),
			OrganizationID: h.OrganizationID,
			EntityKind:     entity.Kind(),
			EntityID:       h.ID,
			Actor:          actor,
			Action:         domain.AuditCreated,
			ToStatus:       entity.StatusValue(),
			Version:        h.Version,
			CreatedAt:      h.CreatedAt,
		})
	})
}

// load fetches an entity inside the session's organization.
func load[T any, P entityPtr[T]](ctx context.Context, store repository.Store, repo *repository.Entities[T, P], resource, organizationID, id string) (P, error) {
	entity, err := repo.Get(ctx, store, organizationID, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, errorutil.NewNotFound(resource, map[string]any{"id": id})
	}
	return entity, err
}

// staleConflict reloads the entity so the error names its current status.
func staleConflict[T any, P entityPtr[T]](ctx context.Context, deps Dependencies, repo *repository.Entities[T, P], current P, attempted string) error {
	h := current.Header()
	kind := string(current.Kind())
	deps.Metrics.RecordConflict(kind)
	now := current.StatusValue()
	if latest, err := repo.Get(ctx, deps.Store, h.OrganizationID, h.ID); err == nil {
		now = latest.StatusValue()
	}
	deps.Logger.Warn("conditional update lost",
		zap.String("kind", kind),
		zap.String("id", h.ID),
		zap.String("expected_status", current.StatusValue()),
		zap.String("current_status", now),
		zap.String("attempted_status", attempted))
	return errorutil.NewStaleState(kind, h.ID, now, attempted)
}

// guarded runs fn under the idempotency guard scoped to one entity operation.
func guarded[T any](
	ctx context.Context,
	deps Dependencies,
	kind domain.EntityKind,
	organizationID, id, operation, requestID string,
	request any,
	fn func(ctx context.Context) (Result[T], error),
) (Result[T], error) {
	scope := fmt.Sprintf("%s:%s:%s:%s", kind, organizationID, id, operation)
	res, replayed, err := idempotency.Do(ctx, deps.Guard, scope, requestID, request, fn)
	if err != nil {
		return res, err
	}
	if replayed {
		deps.Metrics.RecordReplay(string(kind))
		deps.Logger.Debug("idempotent replay", zap.String("scope", scope), zap.String("request_id", requestID))
		res.Replayed = true
	}
	return res, nil
}

// publish hands an event to the queue after commit. Delivery failures are
// logged and never fail the mutation.
func publish(ctx context.Context, deps Dependencies, event events.Event) {
	if deps.Events == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = deps.Now()
	}
	if err := deps.Events.Enqueue(ctx, event); err != nil {
		deps.Logger.Warn("enqueue event failed",
			zap.String("event_type", string(event.Type)),
			zap.String("entity_id", event.EntityID),
			zap.Error(err))
	}
}

func listFilter(organizationID string, statuses []string, limit, offset int) repository.ListFilter {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return repository.ListFilter{OrganizationID: organizationID, Statuses: statuses, Limit: limit, Offset: offset}
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
