package enum

// SummaryPeriod is the granularity of a financial summary row
type SummaryPeriod string

const (
	SummaryDaily   SummaryPeriod = "daily"
	SummaryMonthly SummaryPeriod = "monthly"
)

// IsValid reports whether p is a known summary period
func (p SummaryPeriod) IsValid() bool {
	return p == SummaryDaily || p == SummaryMonthly
}

// EventType names the domain events emitted for external delivery
type EventType string

const (
	EventInvoiceCreated   EventType = "InvoiceCreated"
	EventPaymentAllocated EventType = "PaymentAllocated"
	EventInvoiceOverdue   EventType = "InvoiceOverdue"
	EventRefundProcessed  EventType = "RefundProcessed"
)
