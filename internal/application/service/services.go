package service

import (
	"github.com/sangkips/bursar-api/internal/domain/gateway"
)

// Services is the finance core wired together
type Services struct {
	Core           *Core
	Catalog        *CatalogService
	Assignments    *AssignmentService
	Reconciliation *ReconciliationService
	Invoices       *InvoiceService
	Payments       *PaymentService
	Installments   *InstallmentService
	Refunds        *RefundService
	Summaries      *SummaryService
	Events         *EventService
	Scheduler      *Scheduler
	Gateway        gateway.Gateway
}

// NewServices builds every service on top of core. gw may be nil.
func NewServices(core *Core, gw gateway.Gateway) *Services {
	recon := NewReconciliationService(core)
	assignments := NewAssignmentService(core)
	payments := NewPaymentService(core, recon, gw)
	summaries := NewSummaryService(core)

	return &Services{
		Core:           core,
		Catalog:        NewCatalogService(core),
		Assignments:    assignments,
		Reconciliation: recon,
		Invoices:       NewInvoiceService(core, assignments, recon),
		Payments:       payments,
		Installments:   NewInstallmentService(core, payments),
		Refunds:        NewRefundService(core, payments),
		Summaries:      summaries,
		Events:         NewEventService(core),
		Scheduler:      NewScheduler(core, recon, summaries),
		Gateway:        gw,
	}
}
