package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/fixzit/fm-service/internal/domain"
)

// Entities maps one aggregate type onto the document store.
type Entities[T any, P interface {
	*T
	domain.Transitionable
}] struct {
	kind domain.EntityKind
	now  func() time.Time
}

// NewEntities builds a typed repository for aggregates of kind.
func NewEntities[T any, P interface {
	*T
	domain.Transitionable
}](kind domain.EntityKind) *Entities[T, P] {
	return &Entities[T, P]{kind: kind, now: func() time.Time { return time.Now().UTC() }}
}

// Create inserts entity at version 1.
func (r *Entities[T, P]) Create(ctx context.Context, store Store, entity P) error {
	h := entity.Header()
	now := r.now()
	if h.CreatedAt.IsZero() {
		h.CreatedAt = now
	}
	h.UpdatedAt = h.CreatedAt
	h.Version = 1
	body, err := json.Marshal(entity)
	if err != nil {
		return fmt.Errorf("encode %s: %w", r.kind, err)
	}
	return store.Insert(ctx, &Document{
		Kind:           r.kind,
		ID:             h.ID,
		OrganizationID: h.OrganizationID,
		Status:         entity.StatusValue(),
		Version:        1,
		Body:           body,
		CreatedAt:      h.CreatedAt,
		UpdatedAt:      h.UpdatedAt,
	})
}

// Get loads an entity inside organizationID.
func (r *Entities[T, P]) Get(ctx context.Context, store Store, organizationID, id string) (P, error) {
	doc, err := store.Get(ctx, r.kind, organizationID, id)
	if err != nil {
		return nil, err
	}
	return r.decode(*doc)
}

// List loads every entity matching filter. Kind is forced to the repository's.
func (r *Entities[T, P]) List(ctx context.Context, store Store, filter ListFilter) ([]P, error) {
	filter.Kind = r.kind
	docs, err := store.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	out := make([]P, 0, len(docs))
	for _, doc := range docs {
		entity, err := r.decode(doc)
		if err != nil {
			return nil, err
		}
		out = append(out, entity)
	}
	return out, nil
}

// Apply writes next conditioned on current's status and version. It returns
// (nil, nil) when another writer got there first.
func (r *Entities[T, P]) Apply(ctx context.Context, store Store, current, next P) (P, error) {
	h := current.Header()
	updatedAt := r.now()
	nh := next.Header()
	nh.ID, nh.OrganizationID, nh.CreatedAt = h.ID, h.OrganizationID, h.CreatedAt
	nh.Version = h.Version + 1
	nh.UpdatedAt = updatedAt
	body, err := json.Marshal(next)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", r.kind, err)
	}
	doc, err := store.ConditionalUpdate(ctx, Filter{
		Kind:            r.kind,
		OrganizationID:  h.OrganizationID,
		ID:              h.ID,
		ExpectedStatus:  current.StatusValue(),
		ExpectedVersion: h.Version,
	}, Update{
		Status:    next.StatusValue(),
		Body:      body,
		UpdatedAt: updatedAt,
	})
	if err != nil || doc == nil {
		return nil, err
	}
	return r.decode(*doc)
}

func (r *Entities[T, P]) decode(doc Document) (P, error) {
	entity := P(new(T))
	if err := json.Unmarshal(doc.Body, entity); err != nil {
		return nil, fmt.Errorf("decode %s %s: %w", doc.Kind, doc.ID, err)
	}
	h := entity.Header()
	h.ID = doc.ID
	h.OrganizationID = doc.OrganizationID
	h.Version = doc.Version
	h.CreatedAt = doc.CreatedAt
	h.UpdatedAt = doc.UpdatedAt
	return entity, nil
}
