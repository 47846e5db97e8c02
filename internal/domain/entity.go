package domain

import "time"

// EntityKind names a kind of status-bearing aggregate.
type EntityKind string

const (
	KindWorkOrder        EntityKind = "work_order"
	KindPayrollRun       EntityKind = "payroll_run"
	KindQuotation        EntityKind = "quotation"
	KindJournalEntry     EntityKind = "journal_entry"
	KindCalendarSettings EntityKind = "calendar_settings"
)

// EntityHeader carries identity, tenant scope and the optimistic-lock version.
type EntityHeader struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"organization_id"`
	Version        int64     `json:"version"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Header gives generic code access to the embedded header.
func (h *EntityHeader) Header() *EntityHeader {
	return h
}

// Transitionable is implemented by every aggregate mutated through the
// status state machine.
type Transitionable interface {
	Kind() EntityKind
	Header() *EntityHeader
	StatusValue() string
}
