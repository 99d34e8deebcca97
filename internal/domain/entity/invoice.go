package entity

import (
	"time"

	"github.com/google/uuid"
	"github.com/sangkips/bursar-api/internal/domain/enum"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Invoice is a student's bill for one billing period. Its money fields after
// generation (paid, late fee, penalty, outstanding, status) are written by
// reconciliation only.
type Invoice struct {
	ID            uuid.UUID          `gorm:"type:uuid;primary_key" json:"id"`
	TenantID      uuid.UUID          `gorm:"type:uuid;not null;uniqueIndex:idx_invoices_tenant_number;index:idx_invoices_tenant_student" json:"tenant_id"`
	StudentID     uuid.UUID          `gorm:"type:uuid;not null;index:idx_invoices_tenant_student" json:"student_id"`
	InvoiceNumber string             `gorm:"size:50;not null;uniqueIndex:idx_invoices_tenant_number" json:"invoice_number"`
	PeriodKey     string             `gorm:"size:50;not null;index" json:"period_key"`
	PeriodType    enum.Frequency     `gorm:"size:20;not null" json:"period_type"`
	InvoiceDate   time.Time          `gorm:"type:date;not null" json:"invoice_date"`
	DueDate       time.Time          `gorm:"type:date;not null;index" json:"due_date"`
	Currency      string             `gorm:"size:3;not null" json:"currency"`
	Subtotal      decimal.Decimal    `gorm:"type:numeric(14,2);not null;default:0" json:"subtotal"`
	Discount      decimal.Decimal    `gorm:"type:numeric(14,2);not null;default:0" json:"discount"`
	Tax           decimal.Decimal    `gorm:"type:numeric(14,2);not null;default:0" json:"tax"`
	Total         decimal.Decimal    `gorm:"type:numeric(14,2);not null;default:0" json:"total"`
	Paid          decimal.Decimal    `gorm:"type:numeric(14,2);not null;default:0" json:"paid"`
	LateFee       decimal.Decimal    `gorm:"type:numeric(14,2);not null;default:0" json:"late_fee"`
	Penalty       decimal.Decimal    `gorm:"type:numeric(14,2);not null;default:0" json:"penalty"`
	Outstanding   decimal.Decimal    `gorm:"type:numeric(14,2);not null;default:0" json:"outstanding"`
	Status        enum.InvoiceStatus `gorm:"size:20;not null;index" json:"status"`

	// Collection policy snapshot taken from the billed fee items.
	LateFeeAmount    decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0" json:"late_fee_amount"`
	GraceDays        int             `gorm:"not null;default:0" json:"grace_days"`
	DailyPenaltyRate decimal.Decimal `gorm:"type:numeric(9,6);not null;default:0" json:"daily_penalty_rate"`
	LateFeeApplied   bool            `gorm:"not null;default:false" json:"late_fee_applied"`
	MaxInstallments  int             `gorm:"not null;default:1" json:"max_installments"`

	Notes            string     `gorm:"type:text" json:"notes,omitempty"`
	IssuedAt         *time.Time `json:"issued_at,omitempty"`
	CancelledAt      *time.Time `json:"cancelled_at,omitempty"`
	LastReconciledAt *time.Time `json:"last_reconciled_at,omitempty"`
	CreatedBy        uuid.UUID  `gorm:"type:uuid" json:"created_by"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`

	// Relationships
	LineItems []InvoiceLineItem `gorm:"foreignKey:InvoiceID" json:"line_items,omitempty"`
}

// BeforeCreate generates a UUID before creating a new invoice
func (i *Invoice) BeforeCreate(tx *gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}

// TableName returns the table name for the Invoice model
func (Invoice) TableName() string {
	return "invoices"
}

// Ceiling is the most that can ever be allocated to the invoice.
func (i *Invoice) Ceiling() decimal.Decimal {
	return i.Total.Add(i.LateFee).Add(i.Penalty)
}

// InvoiceLineItem is one billed fee item.
type InvoiceLineItem struct {
	ID             uuid.UUID       `gorm:"type:uuid;primary_key" json:"id"`
	TenantID       uuid.UUID       `gorm:"type:uuid;not null;index" json:"tenant_id"`
	InvoiceID      uuid.UUID       `gorm:"type:uuid;not null;index" json:"invoice_id"`
	FeeItemID      uuid.UUID       `gorm:"type:uuid;not null;index" json:"fee_item_id"`
	StructureID    uuid.UUID       `gorm:"type:uuid;not null;index" json:"structure_id"`
	AssignmentID   uuid.UUID       `gorm:"type:uuid;not null" json:"assignment_id"`
	Description    string          `gorm:"size:255;not null" json:"description"`
	Quantity       int             `gorm:"not null" json:"quantity"`
	UnitPrice      decimal.Decimal `gorm:"type:numeric(14,2);not null" json:"unit_price"`
	DiscountAmount decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0" json:"discount_amount"`
	LineTotal      decimal.Decimal `gorm:"type:numeric(14,2);not null" json:"line_total"`
	CreatedAt      time.Time       `json:"created_at"`
}

// BeforeCreate generates a UUID before creating a new line item
func (l *InvoiceLineItem) BeforeCreate(tx *gorm.DB) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	return nil
}

// TableName returns the table name for the InvoiceLineItem model
func (InvoiceLineItem) TableName() string {
	return "invoice_line_items"
}

// Gross is quantity times unit price before the line discount.
func (l *InvoiceLineItem) Gross() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}
