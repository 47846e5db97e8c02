package workflow

import "github.com/fixzit/fm-service/internal/domain"

var WorkOrders = NewMachine(domain.KindWorkOrder, domain.WorkOrderSubmitted, map[domain.WorkOrderStatus][]domain.WorkOrderStatus{
	domain.WorkOrderSubmitted:  {domain.WorkOrderAssigned, domain.WorkOrderCancelled, domain.WorkOrderWontFix},
	domain.WorkOrderAssigned:   {domain.WorkOrderScheduled, domain.WorkOrderInProgress, domain.WorkOrderCancelled},
	domain.WorkOrderScheduled:  {domain.WorkOrderInProgress, domain.WorkOrderCancelled},
	domain.WorkOrderInProgress: {domain.WorkOrderPaused, domain.WorkOrderCompleted, domain.WorkOrderCancelled},
	domain.WorkOrderPaused:     {domain.WorkOrderInProgress, domain.WorkOrderCancelled},
	domain.WorkOrderCompleted:  {domain.WorkOrderClosed},
})

var PayrollRuns = NewMachine(domain.KindPayrollRun, domain.PayrollDraft, map[domain.PayrollStatus][]domain.PayrollStatus{
	domain.PayrollDraft:      {domain.PayrollCalculated, domain.PayrollCancelled},
	domain.PayrollCalculated: {domain.PayrollApproved, domain.PayrollDraft, domain.PayrollCancelled},
	domain.PayrollApproved:   {domain.PayrollLocked, domain.PayrollCalculated},
	domain.PayrollLocked:     {domain.PayrollPaid},
})

var Quotations = NewMachine(domain.KindQuotation, domain.QuotationDraft, map[domain.QuotationStatus][]domain.QuotationStatus{
	domain.QuotationDraft:    {domain.QuotationSent, domain.QuotationCancelled},
	domain.QuotationSent:     {domain.QuotationAccepted, domain.QuotationRejected, domain.QuotationExpired, domain.QuotationDraft},
	domain.QuotationAccepted: {domain.QuotationConverted},
})

// ValidateTransition looks up current -> requested in the graph for kind.
// Unknown kinds and terminal current states are always false.
func ValidateTransition(kind domain.EntityKind, current, requested string) bool {
	switch kind {
	case domain.KindWorkOrder:
		return WorkOrders.CanTransition(domain.WorkOrderStatus(current), domain.WorkOrderStatus(requested))
	case domain.KindPayrollRun:
		return PayrollRuns.CanTransition(domain.PayrollStatus(current), domain.PayrollStatus(requested))
	case domain.KindQuotation:
		return Quotations.CanTransition(domain.QuotationStatus(current), domain.QuotationStatus(requested))
	}
	return false
}
