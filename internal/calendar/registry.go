package calendar

import "sync"

type registryEntry struct {
	version int64
	cal     *Calendar
}

// Registry caches compiled calendars per organization, tagged with the
// settings version they were compiled from. It is created once per process
// and injected where needed.
type Registry struct {
	mu    sync.RWMutex
	byOrg map[string]registryEntry
}

func NewRegistry() *Registry {
	return &Registry{byOrg: make(map[string]registryEntry)}
}

// Get returns the cached calendar for orgID and the settings version it was
// compiled from.
func (r *Registry) Get(orgID string) (*Calendar, int64, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.byOrg[orgID]
	return e.cal, e.version, ok
}

// Put stores cal compiled from settings version. A calendar older than the
// cached one is not stored; Put reports whether cal was kept.
func (r *Registry) Put(orgID string, version int64, cal *Calendar) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.byOrg[orgID]; ok && e.version > version {
		return false
	}
	r.byOrg[orgID] = registryEntry{version: version, cal: cal}
	return true
}

// Reset empties the registry. Intended for tests.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byOrg = make(map[string]registryEntry)
}
