package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PayrollStatus enumerates lifecycle states for payroll runs.
type PayrollStatus string

const (
	PayrollDraft      PayrollStatus = "DRAFT"
	PayrollCalculated PayrollStatus = "CALCULATED"
	PayrollApproved   PayrollStatus = "APPROVED"
	PayrollLocked     PayrollStatus = "LOCKED"
	PayrollPaid       PayrollStatus = "PAID"
	PayrollCancelled  PayrollStatus = "CANCELLED"
)

// PayrollRun is one pay period's payroll. Posted is set exactly once, when
// the run's journal reaches the ledger.
type PayrollRun struct {
	EntityHeader
	PeriodStart     time.Time       `json:"period_start"`
	PeriodEnd       time.Time       `json:"period_end"`
	Currency        string          `json:"currency"`
	EmployeeCount   int             `json:"employee_count"`
	TotalGross      decimal.Decimal `json:"total_gross"`
	TotalDeductions decimal.Decimal `json:"total_deductions"`
	TotalNet        decimal.Decimal `json:"total_net"`
	Status          PayrollStatus   `json:"status"`
	Posted          bool            `json:"posted"`
	JournalID       *string         `json:"journal_id,omitempty"`
	PostedAt        *time.Time      `json:"posted_at,omitempty"`
	LockedAt        *time.Time      `json:"locked_at,omitempty"`
}

func (p *PayrollRun) Kind() EntityKind    { return KindPayrollRun }
func (p *PayrollRun) StatusValue() string { return string(p.Status) }
