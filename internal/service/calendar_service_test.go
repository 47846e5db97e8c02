package service_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fixzit/fm-service/internal/calendar"
	"github.com/fixzit/fm-service/internal/domain"
	"github.com/fixzit/fm-service/internal/repository"
	"github.com/fixzit/fm-service/internal/service"
	"github.com/fixzit/fm-service/pkg/util/errorutil"
)

func weekdayConfig() calendar.Config {
	return calendar.Config{
		Timezone:    "Asia/Dubai",
		WorkingDays: []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday},
		DayStart:    calendar.MustClock("09:00"),
		DayEnd:      calendar.MustClock("18:00"),
		Holidays:    []calendar.Holiday{{Date: calendar.Date{Year: 2024, Month: time.March, Day: 4}, Name: "Company day"}},
	}
}

func TestCalendar_DefaultsWhenNothingStored(t *testing.T) {
	eachBackend(t, func(t *testing.T, f *fixture) {
		view, err := f.calendars.Settings(context.Background(), "org-1")
		require.NoError(t, err)
		assert.True(t, view.IsDefault)
		assert.Equal(t, "Asia/Riyadh", view.Config.Timezone)
		assert.Len(t, view.Config.WorkingDays, 5)
		assert.NotEmpty(t, view.Config.Holidays)
	})
}

func TestCalendar_SaveReplacesDefault(t *testing.T) {
	eachBackend(t, func(t *testing.T, f *fixture) {
		ctx := context.Background()

		// Sunday is a business day under the default calendar.
		hours, err := f.calendars.BusinessHours(ctx, "org-1", local(3, 10, 0))
		require.NoError(t, err)
		assert.True(t, hours.IsBusinessHour)

		saved, err := f.calendars.Save(ctx, session, weekdayConfig(), 0)
		require.NoError(t, err)
		assert.Equal(t, int64(1), saved.Version)

		// The cached calendar is replaced: Sunday is now off and Monday a holiday.
		hours, err = f.calendars.BusinessHours(ctx, "org-1", local(3, 10, 0))
		require.NoError(t, err)
		assert.False(t, hours.IsBusinessHour)
		assert.True(t, hours.RemainingHoursToday.IsZero())
		dubai := mustLocation("Asia/Dubai")
		assert.True(t, time.Date(2024, time.March, 5, 9, 0, 0, 0, dubai).Equal(hours.NextStart), hours.NextStart.String())

		view, err := f.calendars.Settings(ctx, "org-1")
		require.NoError(t, err)
		assert.False(t, view.IsDefault)
		assert.Equal(t, int64(1), view.Version)
		assert.Equal(t, "org-1", view.Config.OrganizationID)

		// A writer holding the old version loses.
		_, err = f.calendars.Save(ctx, session, weekdayConfig(), 0)
		assert.Equal(t, errorutil.CodeConflict, errorCode(err))

		updated, err := f.calendars.Save(ctx, session, weekdayConfig(), 1)
		require.NoError(t, err)
		assert.Equal(t, int64(2), updated.Version)
	})
}

func TestCalendar_SaveRejectsInvalidConfig(t *testing.T) {
	eachBackend(t, func(t *testing.T, f *fixture) {
		cfg := weekdayConfig()
		cfg.WorkingDays = nil
		_, err := f.calendars.Save(context.Background(), session, cfg, 0)
		assert.Equal(t, errorutil.CodeValidation, errorCode(err))

		cfg = weekdayConfig()
		cfg.DayEnd = cfg.DayStart
		_, err = f.calendars.Save(context.Background(), session, cfg, 0)
		assert.Equal(t, errorutil.CodeValidation, errorCode(err))
	})
}

func TestCalendar_DeadlinePreview(t *testing.T) {
	eachBackend(t, func(t *testing.T, f *fixture) {
		res, err := f.calendars.Deadline(context.Background(), "org-1", local(3, 15, 0), decimal.NewFromInt(8))
		require.NoError(t, err)
		assert.True(t, local(4, 14, 0).Equal(res.Deadline), res.Deadline.String())
		require.Len(t, res.Breakdown, 2)

		_, err = f.calendars.Deadline(context.Background(), "org-1", local(3, 15, 0), decimal.Zero)
		assert.ErrorIs(t, err, calendar.ErrInvalidSLAHours)
	})
}

func TestCalendar_DeadlinePreviewRespectsMaxHours(t *testing.T) {
	sla := slaDefaults()
	sla.MaxHours = "40"
	svc := service.NewCalendarService(backends(t)["memory"](t), nil, sla, nil, zap.NewNop())
	ctx := context.Background()

	_, err := svc.Deadline(ctx, "org-1", local(3, 9, 0), decimal.NewFromInt(41))
	assert.ErrorIs(t, err, calendar.ErrInvalidSLAHours)
	assert.Equal(t, errorutil.CodeValidation, errorCode(err))

	_, err = svc.Deadline(ctx, "org-1", local(3, 9, 0), decimal.NewFromInt(3000000))
	assert.ErrorIs(t, err, calendar.ErrInvalidSLAHours)

	_, err = svc.Deadline(ctx, "org-1", local(3, 9, 0), decimal.NewFromInt(40))
	assert.NoError(t, err)
}

func TestCalendar_SaveUsesInjectedClock(t *testing.T) {
	eachBackend(t, func(t *testing.T, f *fixture) {
		ctx := context.Background()
		_, err := f.calendars.Save(ctx, session, weekdayConfig(), 0)
		require.NoError(t, err)

		audit, err := f.store.ListAudit(ctx, session.OrganizationID, domain.KindCalendarSettings, session.OrganizationID)
		require.NoError(t, err)
		require.Len(t, audit, 1)
		assert.True(t, f.clock.Now().Equal(audit[0].CreatedAt), audit[0].CreatedAt.String())

		doc, err := f.store.Get(ctx, domain.KindCalendarSettings, session.OrganizationID, session.OrganizationID)
		require.NoError(t, err)
		assert.True(t, f.clock.Now().Equal(doc.UpdatedAt), doc.UpdatedAt.String())
	})
}

// pausingStore holds the pauseAt-th calendar settings read, after it has
// returned, until release is closed.
type pausingStore struct {
	repository.TxStore
	reads   atomic.Int32
	pauseAt int32
	paused  chan struct{}
	release chan struct{}
}

func (s *pausingStore) Get(ctx context.Context, kind domain.EntityKind, organizationID, id string) (*repository.Document, error) {
	doc, err := s.TxStore.Get(ctx, kind, organizationID, id)
	if kind == domain.KindCalendarSettings && s.reads.Add(1) == s.pauseAt {
		close(s.paused)
		<-s.release
	}
	return doc, err
}

func mondayMornings() calendar.Config {
	return calendar.Config{
		Timezone:    "Asia/Riyadh",
		WorkingDays: []time.Weekday{time.Monday},
		DayStart:    calendar.MustClock("10:00"),
		DayEnd:      calendar.MustClock("12:00"),
	}
}

func TestCalendar_StaleFillDoesNotOutliveSave(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			store := &pausingStore{TxStore: open(t), paused: make(chan struct{}), release: make(chan struct{})}
			registry := calendar.NewRegistry()
			svc := service.NewCalendarService(store, registry, slaDefaults(), nil, zap.NewNop())

			_, err := svc.Save(ctx, session, weekdayConfig(), 0)
			require.NoError(t, err)
			registry.Reset()

			// GIVEN: a reader loads version 1 (its second settings read) and stalls
			store.pauseAt = 2
			done := make(chan *calendar.Calendar, 1)
			go func() {
				cal, err := svc.Calendar(ctx, "org-1")
				assert.NoError(t, err)
				done <- cal
			}()
			<-store.paused

			// WHEN: version 2 is saved before the reader fills the cache
			_, err = svc.Save(ctx, session, mondayMornings(), 1)
			require.NoError(t, err)
			close(store.release)
			stale := <-done
			require.NotNil(t, stale)
			assert.Len(t, stale.Config().WorkingDays, 5)

			// THEN: the late fill does not displace the saved calendar
			_, version, ok := registry.Get("org-1")
			require.True(t, ok)
			assert.Equal(t, int64(2), version)

			cal, err := svc.Calendar(ctx, "org-1")
			require.NoError(t, err)
			assert.Equal(t, []time.Weekday{time.Monday}, cal.Config().WorkingDays)
			assert.Equal(t, calendar.MustClock("10:00"), cal.Config().DayStart)
		})
	}
}

func TestCalendar_SeesSaveFromAnotherInstance(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			store := open(t)
			replicaA := service.NewCalendarService(store, nil, slaDefaults(), nil, zap.NewNop())
			replicaB := service.NewCalendarService(store, nil, slaDefaults(), nil, zap.NewNop())

			cal, err := replicaA.Calendar(ctx, "org-1")
			require.NoError(t, err)
			assert.Equal(t, "Asia/Riyadh", cal.Config().Timezone)

			_, err = replicaB.Save(ctx, session, weekdayConfig(), 0)
			require.NoError(t, err)

			cal, err = replicaA.Calendar(ctx, "org-1")
			require.NoError(t, err)
			assert.Equal(t, "Asia/Dubai", cal.Config().Timezone)
		})
	}
}
