package domain

import "time"

// AuditAction captures what kind of mutation an audit entry records.
type AuditAction string

const (
	AuditCreated       AuditAction = "CREATED"
	AuditStatusChanged AuditAction = "STATUS_CHANGE"
	AuditAssigned      AuditAction = "ASSIGNEE_CHANGE"
	AuditScheduled     AuditAction = "SCHEDULE_CHANGE"
	AuditPosted        AuditAction = "JOURNAL_POSTED"
	AuditSettings      AuditAction = "SETTINGS_CHANGE"
)

// AuditEntry is an immutable audit trail entry written in the same
// transaction as the change it describes.
type AuditEntry struct {
	ID             string         `json:"id"`
	OrganizationID string         `json:"organization_id"`
	EntityKind     EntityKind     `json:"entity_kind"`
	EntityID       string         `json:"entity_id"`
	Actor          Actor          `json:"actor"`
	Action         AuditAction    `json:"action"`
	FromStatus     string         `json:"from_status,omitempty"`
	ToStatus       string         `json:"to_status,omitempty"`
	Version        int64          `json:"version"`
	OldValue       map[string]any `json:"old_value,omitempty"`
	NewValue       map[string]any `json:"new_value,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
}
