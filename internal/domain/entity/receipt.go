package entity

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ReceiptLine is one invoice a payment was applied to.
type ReceiptLine struct {
	InvoiceID     uuid.UUID       `json:"invoice_id"`
	InvoiceNumber string          `json:"invoice_number"`
	PeriodKey     string          `json:"period_key"`
	Amount        decimal.Decimal `json:"amount"`
	Outstanding   decimal.Decimal `json:"outstanding"`
}

// Receipt is a value object describing where a payment's money went.
// It is not persisted; it is composed from the payment and its allocations on read.
type Receipt struct {
	PaymentID   uuid.UUID       `json:"payment_id"`
	Reference   string          `json:"reference"`
	StudentID   uuid.UUID       `json:"student_id"`
	Date        time.Time       `json:"date"`
	Method      string          `json:"method,omitempty"`
	Currency    string          `json:"currency"`
	Status      string          `json:"status"`
	Amount      decimal.Decimal `json:"amount"`
	Allocated   decimal.Decimal `json:"allocated"`
	Unallocated decimal.Decimal `json:"unallocated"`
	Lines       []ReceiptLine   `json:"lines"`
	IssuedAt    time.Time       `json:"issued_at"`
}
