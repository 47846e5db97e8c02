package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// QuotationStatus enumerates lifecycle states for marketplace quotations.
type QuotationStatus string

const (
	QuotationDraft     QuotationStatus = "DRAFT"
	QuotationSent      QuotationStatus = "SENT"
	QuotationAccepted  QuotationStatus = "ACCEPTED"
	QuotationRejected  QuotationStatus = "REJECTED"
	QuotationExpired   QuotationStatus = "EXPIRED"
	QuotationConverted QuotationStatus = "CONVERTED"
	QuotationCancelled QuotationStatus = "CANCELLED"
)

// QuotationLine is a priced line item.
type QuotationLine struct {
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
}

// Quotation is a vendor price offer for a work order or marketplace request.
type Quotation struct {
	EntityHeader
	WorkOrderID string          `json:"work_order_id,omitempty"`
	VendorID    string          `json:"vendor_id"`
	Currency    string          `json:"currency"`
	Lines       []QuotationLine `json:"lines"`
	Total       decimal.Decimal `json:"total"`
	ValidUntil  *time.Time      `json:"valid_until,omitempty"`
	Status      QuotationStatus `json:"status"`
}

func (q *Quotation) Kind() EntityKind    { return KindQuotation }
func (q *Quotation) StatusValue() string { return string(q.Status) }

// ComputeTotal sums line amounts.
func (q *Quotation) ComputeTotal() decimal.Decimal {
	total := decimal.Zero
	for _, line := range q.Lines {
		total = total.Add(line.Quantity.Mul(line.UnitPrice))
	}
	return total
}
