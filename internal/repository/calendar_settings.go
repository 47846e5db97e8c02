package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/fixzit/fm-service/internal/calendar"
	"github.com/fixzit/fm-service/internal/domain"
)

const settingsStatus = "ACTIVE"

// CalendarSettings persists one calendar.Config per organization, keyed by
// the organization id.
type CalendarSettings struct{}

// Load returns the stored config and its version.
func (CalendarSettings) Load(ctx context.Context, store Store, organizationID string) (calendar.Config, int64, error) {
	doc, err := store.Get(ctx, domain.KindCalendarSettings, organizationID, organizationID)
	if err != nil {
		return calendar.Config{}, 0, err
	}
	var cfg calendar.Config
	if err := json.Unmarshal(doc.Body, &cfg); err != nil {
		return calendar.Config{}, 0, fmt.Errorf("decode calendar settings: %w", err)
	}
	cfg.OrganizationID = organizationID
	return cfg, doc.Version, nil
}

// Version returns the stored settings version, 0 when none is stored.
func (CalendarSettings) Version(ctx context.Context, store Store, organizationID string) (int64, error) {
	doc, err := store.Get(ctx, domain.KindCalendarSettings, organizationID, organizationID)
	if errors.Is(err, ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return doc.Version, nil
}

// Save inserts or replaces the organization's config at now. expectedVersion
// is the version the caller loaded, or 0 when none existed.
func (r CalendarSettings) Save(ctx context.Context, store Store, cfg calendar.Config, expectedVersion int64, now time.Time) (int64, error) {
	body, err := json.Marshal(cfg)
	if err != nil {
		return 0, fmt.Errorf("encode calendar settings: %w", err)
	}
	now = now.UTC()
	if expectedVersion == 0 {
		err := store.Insert(ctx, &Document{
			Kind:           domain.KindCalendarSettings,
			ID:             cfg.OrganizationID,
			OrganizationID: cfg.OrganizationID,
			Status:         settingsStatus,
			Version:        1,
			Body:           body,
			CreatedAt:      now,
			UpdatedAt:      now,
		})
		if errors.Is(err, ErrDuplicate) {
			return 0, ErrVersionConflict
		}
		return 1, err
	}
	doc, err := store.ConditionalUpdate(ctx, Filter{
		Kind:            domain.KindCalendarSettings,
		OrganizationID:  cfg.OrganizationID,
		ID:              cfg.OrganizationID,
		ExpectedVersion: expectedVersion,
	}, Update{Status: settingsStatus, Body: body, UpdatedAt: now})
	if err != nil {
		return 0, err
	}
	if doc == nil {
		return 0, ErrVersionConflict
	}
	return doc.Version, nil
}
