package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/fixzit/fm-service/internal/domain"
)

var (
	// ErrNotFound is returned when no document matches the tenant-scoped key.
	ErrNotFound = errors.New("not found")
	// ErrDuplicate is returned by Insert when the key already exists.
	ErrDuplicate = errors.New("duplicate document")
	// ErrVersionConflict is returned by callers that turn a missed
	// conditional update into an error.
	ErrVersionConflict = errors.New("document changed concurrently")
)

// Document is the persisted envelope of a status-bearing aggregate. Status and
// Version live outside the body so the store can match on them.
type Document struct {
	Kind           domain.EntityKind
	ID             string
	OrganizationID string
	Status         string
	Version        int64
	Body           json.RawMessage
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Filter is the precondition of a conditional update. Kind, OrganizationID, ID
// and ExpectedVersion always participate; ExpectedStatus does when non-empty.
type Filter struct {
	Kind            domain.EntityKind
	OrganizationID  string
	ID              string
	ExpectedStatus  string
	ExpectedVersion int64
}

// Update is applied when Filter matches. The store increments Version.
type Update struct {
	Status    string
	Body      json.RawMessage
	UpdatedAt time.Time
}

// ListFilter selects documents of one kind inside one tenant.
type ListFilter struct {
	Kind           domain.EntityKind
	OrganizationID string
	Statuses       []string
	Limit          int
	Offset         int
}

// Store is the atomic mutation gateway. ConditionalUpdate is the only write
// path for existing documents; it checks Filter and applies Update as one
// operation and returns (nil, nil) when the precondition did not hold.
type Store interface {
	Insert(ctx context.Context, doc *Document) error
	Get(ctx context.Context, kind domain.EntityKind, organizationID, id string) (*Document, error)
	List(ctx context.Context, filter ListFilter) ([]Document, error)
	ConditionalUpdate(ctx context.Context, filter Filter, update Update) (*Document, error)
	AppendAudit(ctx context.Context, entry *domain.AuditEntry) error
	ListAudit(ctx context.Context, organizationID string, kind domain.EntityKind, entityID string) ([]domain.AuditEntry, error)
}

// TxStore can group several Store calls into one all-or-nothing unit. The tx
// passed to fn must be used for every call inside the group; an error from fn
// rolls back every step.
type TxStore interface {
	Store
	WithTx(ctx context.Context, fn func(ctx context.Context, tx Store) error) error
	Ping(ctx context.Context) error
	Close() error
}

// Matches reports whether doc satisfies f. Backends without server-side
// predicates share it.
func (f Filter) Matches(doc Document) bool {
	if doc.Kind != f.Kind || doc.OrganizationID != f.OrganizationID || doc.ID != f.ID {
		return false
	}
	if doc.Version != f.ExpectedVersion {
		return false
	}
	return f.ExpectedStatus == "" || doc.Status == f.ExpectedStatus
}

// Matches reports whether doc is selected by f, ignoring paging.
func (f ListFilter) Matches(doc Document) bool {
	if doc.Kind != f.Kind || doc.OrganizationID != f.OrganizationID {
		return false
	}
	if len(f.Statuses) == 0 {
		return true
	}
	for _, s := range f.Statuses {
		if s == doc.Status {
			return true
		}
	}
	return false
}
