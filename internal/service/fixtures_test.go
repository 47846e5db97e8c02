package service_test

import (
	"context"
	"errors"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fixzit/fm-service/internal/config"
	"github.com/fixzit/fm-service/internal/domain"
	"github.com/fixzit/fm-service/internal/events"
	"github.com/fixzit/fm-service/internal/finance"
	"github.com/fixzit/fm-service/internal/idempotency"
	"github.com/fixzit/fm-service/internal/observability"
	"github.com/fixzit/fm-service/internal/persistence"
	"github.com/fixzit/fm-service/internal/repository"
	"github.com/fixzit/fm-service/internal/service"
	"github.com/fixzit/fm-service/pkg/util/errorutil"
)

var riyadh = mustLocation("Asia/Riyadh")

func mustLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		panic(err)
	}
	return loc
}

// local builds an instant in Riyadh. March 3rd 2024 is a Sunday.
func local(day, hour, minute int) time.Time {
	return time.Date(2024, time.March, day, hour, minute, 0, 0, riyadh)
}

var session = domain.Session{UserID: "user-1", OrganizationID: "org-1", Role: domain.RoleFMManager}

func slaDefaults() config.SLAConfig {
	return config.SLAConfig{
		Timezone:    "Asia/Riyadh",
		WorkingDays: "0,1,2,3,4",
		DayStart:    "08:00",
		DayEnd:      "17:00",
	}
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// recordingQueue captures enqueued events.
type recordingQueue struct {
	mu     sync.Mutex
	events []events.Event
	fail   bool
}

func (q *recordingQueue) Enqueue(_ context.Context, event events.Event) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.fail {
		return errors.New("queue unavailable")
	}
	q.events = append(q.events, event)
	return nil
}

func (q *recordingQueue) count(eventType events.EventType) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := 0
	for _, e := range q.events {
		if e.Type == eventType {
			n++
		}
	}
	return n
}

// countingPoster counts ledger calls and optionally fails them.
type countingPoster struct {
	inner finance.Poster
	calls atomic.Int32
	err   error
}

func (p *countingPoster) Post(ctx context.Context, tx repository.Store, journal finance.Journal) (string, error) {
	p.calls.Add(1)
	if p.err != nil {
		return "", p.err
	}
	return p.inner.Post(ctx, tx, journal)
}

// lockstepStore makes the next n Get calls wait for each other, so racing
// requests all read the same snapshot before any of them writes.
type lockstepStore struct {
	repository.TxStore
	remaining atomic.Int32
	ready     chan struct{}
}

func (s *lockstepStore) arm(n int32) {
	s.ready = make(chan struct{})
	s.remaining.Store(n)
}

func (s *lockstepStore) Get(ctx context.Context, kind domain.EntityKind, organizationID, id string) (*repository.Document, error) {
	doc, err := s.TxStore.Get(ctx, kind, organizationID, id)
	n := s.remaining.Add(-1)
	if n == 0 {
		close(s.ready)
	}
	if n >= 0 {
		<-s.ready
	}
	return doc, err
}

type fixture struct {
	store      *lockstepStore
	clock      *testClock
	queue      *recordingQueue
	metrics    *observability.Metrics
	poster     *countingPoster
	calendars  *service.CalendarService
	workOrders *service.WorkOrderService
	payroll    *service.PayrollService
	quotations *service.QuotationService
}

func backends(t *testing.T) map[string]func(t *testing.T) repository.TxStore {
	t.Helper()
	return map[string]func(t *testing.T) repository.TxStore{
		"memory": func(t *testing.T) repository.TxStore {
			return persistence.NewMemoryStore()
		},
		"sqlite": func(t *testing.T) repository.TxStore {
			store, err := persistence.NewSQLiteStore(":memory:")
			require.NoError(t, err)
			t.Cleanup(func() { _ = store.Close() })
			return store
		},
	}
}

// raceBackends adds Postgres and Mongo when TEST_DATABASE_URL or
// TEST_MONGO_URI is set. Those databases outlive a test, so callers must use
// a fresh organization id.
func raceBackends(t *testing.T) map[string]func(t *testing.T) repository.TxStore {
	t.Helper()
	out := backends(t)
	if dsn := os.Getenv("TEST_DATABASE_URL"); dsn != "" {
		out["postgres"] = func(t *testing.T) repository.TxStore {
			ctx := context.Background()
			pool, err := persistence.NewPostgresPool(ctx, config.PostgresConfig{DSN: dsn}, zap.NewNop())
			require.NoError(t, err)
			require.NoError(t, persistence.RunMigrations(ctx, pool, zap.NewNop()))
			store := persistence.NewPostgresStore(pool)
			t.Cleanup(func() { _ = store.Close() })
			return store
		}
	}
	if uri := os.Getenv("TEST_MONGO_URI"); uri != "" {
		out["mongo"] = func(t *testing.T) repository.TxStore {
			store, err := persistence.NewMongoStore(context.Background(), config.MongoConfig{URI: uri, Database: "fixzit_test"}, zap.NewNop())
			require.NoError(t, err)
			t.Cleanup(func() { _ = store.Close() })
			return store
		}
	}
	return out
}

func newFixture(t *testing.T, store repository.TxStore) *fixture {
	t.Helper()
	f := &fixture{
		store:   &lockstepStore{TxStore: store},
		clock:   &testClock{now: local(3, 9, 0)},
		queue:   &recordingQueue{},
		metrics: observability.NewMetrics(),
		poster:  &countingPoster{inner: finance.NewLedgerPoster()},
	}
	deps := service.Dependencies{
		Store:   f.store,
		Guard:   idempotency.NewGuard(idempotency.NewMemoryStore(), time.Hour, zap.NewNop()),
		Events:  f.queue,
		Logger:  zap.NewNop(),
		Metrics: f.metrics,
		Now:     f.clock.Now,
	}
	f.calendars = service.NewCalendarService(store, nil, slaDefaults(), f.clock.Now, zap.NewNop())
	f.workOrders = service.NewWorkOrderService(deps, f.calendars, domain.DefaultSLAPolicy())
	f.payroll = service.NewPayrollService(deps, f.poster)
	f.quotations = service.NewQuotationService(deps)
	return f
}

// eachBackend runs fn against a fresh fixture per store backend.
func eachBackend(t *testing.T, fn func(t *testing.T, f *fixture)) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			fn(t, newFixture(t, open(t)))
		})
	}
}

func errorCode(err error) string {
	if de := errorutil.ToDomainError(err); de != nil {
		return de.Code
	}
	return ""
}
