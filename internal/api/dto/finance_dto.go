package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// CreatePayrollRequest payload.
type CreatePayrollRequest struct {
	PeriodStart     time.Time       `json:"period_start"`
	PeriodEnd       time.Time       `json:"period_end"`
	Currency        string          `json:"currency"`
	EmployeeCount   int             `json:"employee_count"`
	TotalGross      decimal.Decimal `json:"total_gross"`
	TotalDeductions decimal.Decimal `json:"total_deductions"`
}

// QuotationLineRequest is one priced line.
type QuotationLineRequest struct {
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
}

// CreateQuotationRequest payload.
type CreateQuotationRequest struct {
	WorkOrderID string                 `json:"work_order_id"`
	VendorID    string                 `json:"vendor_id"`
	Currency    string                 `json:"currency"`
	Lines       []QuotationLineRequest `json:"lines"`
	ValidUntil  *time.Time             `json:"valid_until"`
}
