package idempotency

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

type memoryEntry struct {
	record    Record
	expiresAt time.Time
}

// sweepInterval is how often Claim drops expired entries.
const sweepInterval = time.Minute

// MemoryStore keeps request ids in process. Expired entries are swept on
// Claim at most once per sweepInterval.
type MemoryStore struct {
	mu        sync.Mutex
	entries   map[string]memoryEntry
	now       func() time.Time
	nextSweep time.Time
}

func NewMemoryStore() *MemoryStore {
	return NewMemoryStoreWithClock(time.Now)
}

// NewMemoryStoreWithClock uses now for expiry.
func NewMemoryStoreWithClock(now func() time.Time) *MemoryStore {
	return &MemoryStore{entries: make(map[string]memoryEntry), now: now}
}

// Len is the number of tracked request ids, expired or not.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// sweep must be called with mu held.
func (m *MemoryStore) sweep(now time.Time) {
	if now.Before(m.nextSweep) {
		return
	}
	for key, entry := range m.entries {
		if !now.Before(entry.expiresAt) {
			delete(m.entries, key)
		}
	}
	m.nextSweep = now.Add(sweepInterval)
}

func memoryKey(scope, requestID string) string {
	return scope + "\x00" + requestID
}

func (m *MemoryStore) Claim(_ context.Context, scope, requestID, requestHash string, ttl time.Duration) (bool, *Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := memoryKey(scope, requestID)
	now := m.now()
	m.sweep(now)
	if entry, ok := m.entries[key]; ok && now.Before(entry.expiresAt) {
		record := entry.record
		return false, &record, nil
	}
	m.entries[key] = memoryEntry{record: Record{RequestHash: requestHash}, expiresAt: now.Add(ttl)}
	return true, nil, nil
}

func (m *MemoryStore) Complete(_ context.Context, scope, requestID string, result json.RawMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := memoryKey(scope, requestID)
	entry, ok := m.entries[key]
	if !ok {
		return nil
	}
	entry.record.Result = append(json.RawMessage(nil), result...)
	entry.record.Completed = true
	m.entries[key] = entry
	return nil
}

func (m *MemoryStore) Release(_ context.Context, scope, requestID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, memoryKey(scope, requestID))
	return nil
}

// Reset forgets every request id.
func (m *MemoryStore) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = make(map[string]memoryEntry)
	m.nextSweep = time.Time{}
}
