package domain

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// ErrAlreadyPaused is returned when pausing an SLA clock that is not running.
var ErrAlreadyPaused = errors.New("sla clock already paused")

// SLAPauseState tracks cumulative paused time. PausedAt is set if and only if
// IsPaused is true.
type SLAPauseState struct {
	IsPaused      bool       `json:"is_paused"`
	PausedAt      *time.Time `json:"paused_at,omitempty"`
	TotalPausedMs int64      `json:"total_paused_ms"`
}

// Pause stops the clock at at.
func (s *SLAPauseState) Pause(at time.Time) error {
	if s.IsPaused {
		return ErrAlreadyPaused
	}
	pausedAt := at
	s.IsPaused = true
	s.PausedAt = &pausedAt
	return nil
}

// Resume restarts the clock. It is a no-op when the clock is running. A resume
// instant earlier than the pause adds nothing so the total never decreases.
func (s *SLAPauseState) Resume(at time.Time) {
	if !s.IsPaused || s.PausedAt == nil {
		s.IsPaused = false
		s.PausedAt = nil
		return
	}
	if elapsed := at.Sub(*s.PausedAt); elapsed > 0 {
		s.TotalPausedMs += elapsed.Milliseconds()
	}
	s.IsPaused = false
	s.PausedAt = nil
}

// PausedFor is the total paused time as of now, including an ongoing pause.
func (s SLAPauseState) PausedFor(now time.Time) time.Duration {
	total := time.Duration(s.TotalPausedMs) * time.Millisecond
	if s.IsPaused && s.PausedAt != nil {
		if ongoing := now.Sub(*s.PausedAt); ongoing > 0 {
			total += ongoing
		}
	}
	return total
}

// SLAStatus is the live view of an entity's SLA clock. Paused time extends
// the deadline.
type SLAStatus struct {
	Deadline          *time.Time    `json:"deadline,omitempty"`
	EffectiveDeadline *time.Time    `json:"effective_deadline,omitempty"`
	Remaining         time.Duration `json:"remaining"`
	Breached          bool          `json:"breached"`
	Paused            bool          `json:"paused"`
	TotalPaused       time.Duration `json:"total_paused"`
	Applies           bool          `json:"applies"`
}

// EvaluateSLA computes the SLA status at now. Terminal entities and entities
// without a deadline report zero remaining time.
func EvaluateSLA(deadline *time.Time, pause SLAPauseState, terminal bool, now time.Time) SLAStatus {
	status := SLAStatus{
		Deadline:    deadline,
		Paused:      pause.IsPaused,
		TotalPaused: pause.PausedFor(now),
	}
	if terminal || deadline == nil {
		return status
	}
	effective := deadline.Add(status.TotalPaused)
	status.Applies = true
	status.EffectiveDeadline = &effective
	status.Remaining = effective.Sub(now)
	status.Breached = status.Remaining < 0
	return status
}

// SLAPolicy maps work order priority to required business hours.
type SLAPolicy map[WorkOrderPriority]decimal.Decimal

// DefaultSLAPolicy is used when no override is configured.
func DefaultSLAPolicy() SLAPolicy {
	return SLAPolicy{
		PriorityUrgent: decimal.NewFromInt(4),
		PriorityHigh:   decimal.NewFromInt(8),
		PriorityMedium: decimal.NewFromInt(24),
		PriorityLow:    decimal.NewFromInt(72),
	}
}

// HoursFor returns the required hours for p, falling back to medium.
func (p SLAPolicy) HoursFor(priority WorkOrderPriority) decimal.Decimal {
	if hours, ok := p[priority]; ok {
		return hours
	}
	return p[PriorityMedium]
}
