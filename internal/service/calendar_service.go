package service

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/fixzit/fm-service/internal/calendar"
	"github.com/fixzit/fm-service/internal/config"
	"github.com/fixzit/fm-service/internal/domain"
	"github.com/fixzit/fm-service/internal/repository"
	"github.com/fixzit/fm-service/pkg/util/errorutil"
)

// CalendarService resolves each organization's working calendar, falling
// back to the configured default when nothing is stored.
type CalendarService struct {
	store    repository.TxStore
	settings repository.CalendarSettings
	registry *calendar.Registry
	defaults config.SLAConfig
	maxHours decimal.Decimal
	now      func() time.Time
	logger   *zap.Logger
}

// CalendarSettingsView is the stored or default calendar of an organization.
type CalendarSettingsView struct {
	Config    calendar.Config `json:"config"`
	Version   int64           `json:"version"`
	IsDefault bool            `json:"is_default"`
}

// BusinessHoursView answers the display questions for one instant.
type BusinessHoursView struct {
	At                  time.Time       `json:"at"`
	IsBusinessHour      bool            `json:"is_business_hour"`
	NextStart           time.Time       `json:"next_start"`
	RemainingHoursToday decimal.Decimal `json:"remaining_hours_today"`
}

// NewCalendarService constructs the service. registry may be shared with
// other components; a nil registry gets a private one. now defaults to the
// wall clock.
func NewCalendarService(store repository.TxStore, registry *calendar.Registry, defaults config.SLAConfig, now func() time.Time, logger *zap.Logger) *CalendarService {
	if registry == nil {
		registry = calendar.NewRegistry()
	}
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	maxHours, err := defaults.MaxSLAHours()
	if err != nil {
		logger.Warn("ignoring invalid SLA_MAX_HOURS", zap.Error(err))
		maxHours = calendar.DefaultMaxSLAHours
	}
	return &CalendarService{
		store:    store,
		registry: registry,
		defaults: defaults,
		maxHours: maxHours,
		now:      now,
		logger:   logger,
	}
}

// Settings returns the organization's calendar configuration.
func (s *CalendarService) Settings(ctx context.Context, organizationID string) (CalendarSettingsView, error) {
	cfg, version, err := s.settings.Load(ctx, s.store, organizationID)
	if errors.Is(err, repository.ErrNotFound) {
		def, err := s.defaults.DefaultCalendar(organizationID)
		if err != nil {
			return CalendarSettingsView{}, err
		}
		return CalendarSettingsView{Config: def, IsDefault: true}, nil
	}
	if err != nil {
		return CalendarSettingsView{}, err
	}
	return CalendarSettingsView{Config: cfg, Version: version}, nil
}

// Calendar returns the compiled calendar for an organization. The stored
// settings version is read on every call, so a save made by another process
// is picked up; only an unchanged version is served from the registry.
func (s *CalendarService) Calendar(ctx context.Context, organizationID string) (*calendar.Calendar, error) {
	version, err := s.settings.Version(ctx, s.store, organizationID)
	if err != nil {
		return nil, err
	}
	if cal, cached, ok := s.registry.Get(organizationID); ok && cached == version {
		return cal, nil
	}
	view, err := s.Settings(ctx, organizationID)
	if err != nil {
		return nil, err
	}
	cal, err := s.compile(view.Config)
	if err != nil {
		// Stored settings are validated on save, so this is an operator problem.
		s.logger.Error("stored calendar is invalid", zap.String("organization_id", organizationID), zap.Error(err))
		return nil, err
	}
	s.registry.Put(organizationID, view.Version, cal)
	return cal, nil
}

func (s *CalendarService) compile(cfg calendar.Config) (*calendar.Calendar, error) {
	return calendar.New(cfg, calendar.WithMaxSLAHours(s.maxHours))
}

// Save validates and stores cfg for the session's organization.
// expectedVersion is the version last read, 0 when the default was in use.
func (s *CalendarService) Save(ctx context.Context, session domain.Session, cfg calendar.Config, expectedVersion int64) (CalendarSettingsView, error) {
	cfg.OrganizationID = session.OrganizationID
	cal, err := s.compile(cfg)
	if err != nil {
		return CalendarSettingsView{}, errorutil.NewValidationError(err.Error(), map[string]any{"field": "calendar"})
	}

	now := s.now()
	var version int64
	err = s.store.WithTx(ctx, func(ctx context.Context, tx repository.Store) error {
		v, err := s.settings.Save(ctx, tx, cfg, expectedVersion, now)
		if err != nil {
			return err
		}
		version = v
		return tx.AppendAudit(ctx, &domain.AuditEntry{
			ID:             uuid.NewString(),
			OrganizationID: session.OrganizationID,
			EntityKind:     domain.KindCalendarSettings,
			EntityID:       session.OrganizationID,
			Actor:          session.Actor(),
			Action:         domain.AuditSettings,
			Version:        v,
			NewValue: map[string]any{
				"timezone":  cfg.Timezone,
				"day_start": cfg.DayStart.String(),
				"day_end":   cfg.DayEnd.String(),
				"holidays":  strconv.Itoa(len(cfg.Holidays)),
			},
			CreatedAt: now,
		})
	})
	if errors.Is(err, repository.ErrVersionConflict) {
		return CalendarSettingsView{}, errorutil.NewConflict("calendar settings were changed by someone else", map[string]any{
			"expected_version": expectedVersion,
		})
	}
	if err != nil {
		return CalendarSettingsView{}, err
	}
	s.registry.Put(session.OrganizationID, version, cal)
	s.logger.Info("calendar settings saved",
		zap.String("organization_id", session.OrganizationID),
		zap.Int64("version", version))
	return CalendarSettingsView{Config: cfg, Version: version}, nil
}

// BusinessHours reports the oracle's answers for at.
func (s *CalendarService) BusinessHours(ctx context.Context, organizationID string, at time.Time) (BusinessHoursView, error) {
	cal, err := s.Calendar(ctx, organizationID)
	if err != nil {
		return BusinessHoursView{}, err
	}
	return BusinessHoursView{
		At:                  at,
		IsBusinessHour:      cal.IsBusinessHour(at),
		NextStart:           cal.NextBusinessHourStart(at),
		RemainingHoursToday: cal.RemainingBusinessHoursToday(at),
	}, nil
}

// Deadline previews the SLA deadline for start and hours.
func (s *CalendarService) Deadline(ctx context.Context, organizationID string, start time.Time, hours decimal.Decimal) (calendar.Result, error) {
	cal, err := s.Calendar(ctx, organizationID)
	if err != nil {
		return calendar.Result{}, err
	}
	return cal.Deadline(start, hours)
}
