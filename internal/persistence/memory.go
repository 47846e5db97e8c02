package persistence

import (
	"context"
	"sort"
	"sync"

	"github.com/fixzit/fm-service/internal/domain"
	"github.com/fixzit/fm-service/internal/repository"
)

type docKey struct {
	kind domain.EntityKind
	org  string
	id   string
}

type memoryState struct {
	docs  map[docKey]repository.Document
	audit []domain.AuditEntry
}

func (s *memoryState) clone() *memoryState {
	out := &memoryState{
		docs:  make(map[docKey]repository.Document, len(s.docs)),
		audit: append([]domain.AuditEntry(nil), s.audit...),
	}
	for k, v := range s.docs {
		out.docs[k] = v
	}
	return out
}

// MemoryStore is an in-process repository.TxStore. Transactions run one at a
// time against a staged copy that replaces the live state on success.
type MemoryStore struct {
	mu    sync.Mutex
	state *memoryState
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{state: &memoryState{docs: make(map[docKey]repository.Document)}}
}

func (m *MemoryStore) Insert(ctx context.Context, doc *repository.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.insert(doc)
}

func (m *MemoryStore) Get(ctx context.Context, kind domain.EntityKind, organizationID, id string) (*repository.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.get(kind, organizationID, id)
}

func (m *MemoryStore) List(ctx context.Context, filter repository.ListFilter) ([]repository.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.list(filter), nil
}

func (m *MemoryStore) ConditionalUpdate(ctx context.Context, filter repository.Filter, update repository.Update) (*repository.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.conditionalUpdate(filter, update), nil
}

func (m *MemoryStore) AppendAudit(ctx context.Context, entry *domain.AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.audit = append(m.state.audit, *entry)
	return nil
}

func (m *MemoryStore) ListAudit(ctx context.Context, organizationID string, kind domain.EntityKind, entityID string) ([]domain.AuditEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.listAudit(organizationID, kind, entityID), nil
}

// WithTx holds the store lock for the whole of fn. fn must use tx, not m.
func (m *MemoryStore) WithTx(ctx context.Context, fn func(ctx context.Context, tx repository.Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	staged := m.state.clone()
	if err := fn(ctx, &memoryTx{state: staged}); err != nil {
		return err
	}
	m.state = staged
	return nil
}

func (m *MemoryStore) Ping(context.Context) error { return nil }
func (m *MemoryStore) Close() error              { return nil }

type memoryTx struct {
	state *memoryState
}

func (t *memoryTx) Insert(ctx context.Context, doc *repository.Document) error {
	return t.state.insert(doc)
}

func (t *memoryTx) Get(ctx context.Context, kind domain.EntityKind, organizationID, id string) (*repository.Document, error) {
	return t.state.get(kind, organizationID, id)
}

func (t *memoryTx) List(ctx context.Context, filter repository.ListFilter) ([]repository.Document, error) {
	return t.state.list(filter), nil
}

func (t *memoryTx) ConditionalUpdate(ctx context.Context, filter repository.Filter, update repository.Update) (*repository.Document, error) {
	return t.state.conditionalUpdate(filter, update), nil
}

func (t *memoryTx) AppendAudit(ctx context.Context, entry *domain.AuditEntry) error {
	t.state.audit = append(t.state.audit, *entry)
	return nil
}

func (t *memoryTx) ListAudit(ctx context.Context, organizationID string, kind domain.EntityKind, entityID string) ([]domain.AuditEntry, error) {
	return t.state.listAudit(organizationID, kind, entityID), nil
}

func (s *memoryState) insert(doc *repository.Document) error {
	key := docKey{doc.Kind, doc.OrganizationID, doc.ID}
	if _, exists := s.docs[key]; exists {
		return repository.ErrDuplicate
	}
	stored := *doc
	stored.Body = append([]byte(nil), doc.Body...)
	s.docs[key] = stored
	return nil
}

func (s *memoryState) get(kind domain.EntityKind, org, id string) (*repository.Document, error) {
	doc, ok := s.docs[docKey{kind, org, id}]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &doc, nil
}

func (s *memoryState) list(filter repository.ListFilter) []repository.Document {
	var out []repository.Document
	for _, doc := range s.docs {
		if filter.Matches(doc) {
			out = append(out, doc)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return page(out, filter.Limit, filter.Offset)
}

func (s *memoryState) conditionalUpdate(filter repository.Filter, update repository.Update) *repository.Document {
	key := docKey{filter.Kind, filter.OrganizationID, filter.ID}
	doc, ok := s.docs[key]
	if !ok || !filter.Matches(doc) {
		return nil
	}
	doc.Status = update.Status
	doc.Body = append([]byte(nil), update.Body...)
	doc.UpdatedAt = update.UpdatedAt
	doc.Version++
	s.docs[key] = doc
	return &doc
}

func (s *memoryState) listAudit(org string, kind domain.EntityKind, entityID string) []domain.AuditEntry {
	var out []domain.AuditEntry
	for _, entry := range s.audit {
		if entry.OrganizationID == org && entry.EntityKind == kind && entry.EntityID == entityID {
			out = append(out, entry)
		}
	}
	return out
}

func page(docs []repository.Document, limit, offset int) []repository.Document {
	if offset > 0 {
		if offset >= len(docs) {
			return nil
		}
		docs = docs[offset:]
	}
	if limit > 0 && limit < len(docs) {
		docs = docs[:limit]
	}
	return docs
}
