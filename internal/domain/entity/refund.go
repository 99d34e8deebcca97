package entity

import (
	"time"

	"github.com/google/uuid"
	"github.com/sangkips/bursar-api/internal/domain/enum"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Refund returns money to a payer. It is requested, approved by a different
// actor, then processed.
type Refund struct {
	ID                uuid.UUID         `gorm:"type:uuid;primary_key" json:"id"`
	TenantID          uuid.UUID         `gorm:"type:uuid;not null;index" json:"tenant_id"`
	StudentID         uuid.UUID         `gorm:"type:uuid;not null;index" json:"student_id"`
	OriginalPaymentID *uuid.UUID        `gorm:"type:uuid;index" json:"original_payment_id,omitempty"`
	Amount            decimal.Decimal   `gorm:"type:numeric(14,2);not null" json:"amount"`
	Reason            string            `gorm:"type:text;not null" json:"reason"`
	Type              enum.RefundType   `gorm:"size:20;not null" json:"type"`
	Method            enum.RefundMethod `gorm:"size:20;not null" json:"method"`
	Status            enum.RefundStatus `gorm:"size:20;not null;index" json:"status"`
	RequestedBy       uuid.UUID         `gorm:"type:uuid;not null" json:"requested_by"`
	ApprovedBy        *uuid.UUID        `gorm:"type:uuid" json:"approved_by,omitempty"`
	ApprovedAt        *time.Time        `json:"approved_at,omitempty"`
	ProcessedAt       *time.Time        `json:"processed_at,omitempty"`
	CancelledAt       *time.Time        `json:"cancelled_at,omitempty"`
	CreatedAt         time.Time         `json:"created_at"`
	UpdatedAt         time.Time         `json:"updated_at"`

	// Relationships
	Adjustments []RefundAdjustment `gorm:"foreignKey:RefundID" json:"adjustments,omitempty"`
}

// BeforeCreate generates a UUID before creating a new refund
func (r *Refund) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

// TableName returns the table name for the Refund model
func (Refund) TableName() string {
	return "refunds"
}

// RefundAdjustment is the reversal of part of a payment's allocation to one
// invoice. Reconciliation subtracts it from the invoice's paid amount.
type RefundAdjustment struct {
	ID        uuid.UUID       `gorm:"type:uuid;primary_key" json:"id"`
	TenantID  uuid.UUID       `gorm:"type:uuid;not null;index" json:"tenant_id"`
	RefundID  uuid.UUID       `gorm:"type:uuid;not null;index" json:"refund_id"`
	PaymentID uuid.UUID       `gorm:"type:uuid;not null;index" json:"payment_id"`
	InvoiceID uuid.UUID       `gorm:"type:uuid;not null;index" json:"invoice_id"`
	Amount    decimal.Decimal `gorm:"type:numeric(14,2);not null" json:"amount"`
	Date      time.Time       `gorm:"type:date;not null" json:"date"`
	CreatedAt time.Time       `json:"created_at"`
}

// BeforeCreate generates a UUID before creating a new adjustment
func (a *RefundAdjustment) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}

// TableName returns the table name for the RefundAdjustment model
func (RefundAdjustment) TableName() string {
	return "refund_adjustments"
}
