package observability

import (
	"strconv"
	"sync"
	"time"
)

// Metrics is an injectable registry of in-memory counters. One instance is
// created per process; Reset exists for tests.
type Metrics struct {
	mu             sync.Mutex
	requestCount   map[string]int64
	requestLatency map[string]time.Duration
	errorCount     map[string]int64
	conflicts      map[string]int64
	replays        map[string]int64
	postings       map[string]int64
}

// NewMetrics initializes metrics storage.
func NewMetrics() *Metrics {
	m := &Metrics{}
	m.Reset()
	return m
}

// Reset clears every counter.
func (m *Metrics) Reset() {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestCount = make(map[string]int64)
	m.requestLatency = make(map[string]time.Duration)
	m.errorCount = make(map[string]int64)
	m.conflicts = make(map[string]int64)
	m.replays = make(map[string]int64)
	m.postings = make(map[string]int64)
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(path, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	key := pathKey(path, method, status)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestCount[key]++
	m.requestLatency[key] += duration
}

// RecordError increments error counters.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	key := path + "|" + method + "|" + code
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errorCount[key]++
}

// RecordConflict counts lost conditional updates per entity kind.
func (m *Metrics) RecordConflict(kind string) {
	m.inc(func() map[string]int64 { return m.conflicts }, kind)
}

// RecordReplay counts idempotent replays per entity kind.
func (m *Metrics) RecordReplay(kind string) {
	m.inc(func() map[string]int64 { return m.replays }, kind)
}

// RecordPosting counts journal postings by outcome.
func (m *Metrics) RecordPosting(outcome string) {
	m.inc(func() map[string]int64 { return m.postings }, outcome)
}

func (m *Metrics) inc(counter func() map[string]int64, key string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	counter()[key]++
}

// Snapshot is a copy of the counters.
type Snapshot struct {
	Requests  map[string]int64 `json:"requests"`
	Errors    map[string]int64 `json:"errors"`
	Conflicts map[string]int64 `json:"conflicts"`
	Replays   map[string]int64 `json:"replays"`
	Postings  map[string]int64 `json:"postings"`
}

// Snapshot copies the current counters.
func (m *Metrics) Snapshot() Snapshot {
	if m == nil {
		return Snapshot{}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return Snapshot{
		Requests:  copyCounts(m.requestCount),
		Errors:    copyCounts(m.errorCount),
		Conflicts: copyCounts(m.conflicts),
		Replays:   copyCounts(m.replays),
		Postings:  copyCounts(m.postings),
	}
}

func copyCounts(in map[string]int64) map[string]int64 {
	out := make(map[string]int64, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func pathKey(path, method string, status int) string {
	return path + "|" + method + "|" + strconv.Itoa(status)
}
