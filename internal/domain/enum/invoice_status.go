package enum

// InvoiceStatus represents the status of an invoice. Apart from draft,
// cancelled and refunded it is derived by reconciliation.
type InvoiceStatus string

const (
	InvoiceDraft     InvoiceStatus = "draft"
	InvoicePending   InvoiceStatus = "pending"
	InvoiceSent      InvoiceStatus = "sent"
	InvoicePartial   InvoiceStatus = "partial"
	InvoicePaid      InvoiceStatus = "paid"
	InvoiceOverdue   InvoiceStatus = "overdue"
	InvoiceCancelled InvoiceStatus = "cancelled"
	InvoiceRefunded  InvoiceStatus = "refunded"
)

func (s InvoiceStatus) String() string {
	return string(s)
}

// IsSticky reports whether reconciliation must leave the status and money fields alone
func (s InvoiceStatus) IsSticky() bool {
	return s == InvoiceDraft || s == InvoiceCancelled || s == InvoiceRefunded
}

// IsOpen reports whether the invoice can still receive allocations
func (s InvoiceStatus) IsOpen() bool {
	switch s {
	case InvoicePending, InvoiceSent, InvoicePartial, InvoiceOverdue:
		return true
	}
	return false
}
