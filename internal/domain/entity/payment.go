package entity

import (
	"time"

	"github.com/google/uuid"
	"github.com/sangkips/bursar-api/internal/domain/enum"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// PaymentMethod is tenant reference data for the channels a school accepts.
type PaymentMethod struct {
	ID        uuid.UUID           `gorm:"type:uuid;primary_key" json:"id"`
	TenantID  uuid.UUID           `gorm:"type:uuid;not null;uniqueIndex:idx_payment_methods_tenant_code" json:"tenant_id"`
	Code      string              `gorm:"size:50;not null;uniqueIndex:idx_payment_methods_tenant_code" json:"code"`
	Name      string              `gorm:"size:255;not null" json:"name"`
	Channel   enum.PaymentChannel `gorm:"size:20;not null" json:"channel"`
	Active    bool                `gorm:"not null;default:true" json:"active"`
	CreatedAt time.Time           `json:"created_at"`
	UpdatedAt time.Time           `json:"updated_at"`
}

// BeforeCreate generates a UUID before creating a new payment method
func (m *PaymentMethod) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}

// TableName returns the table name for the PaymentMethod model
func (PaymentMethod) TableName() string {
	return "payment_methods"
}

// Payment is money received (or expected) from a payer on any channel.
type Payment struct {
	ID              uuid.UUID          `gorm:"type:uuid;primary_key" json:"id"`
	TenantID        uuid.UUID          `gorm:"type:uuid;not null;uniqueIndex:idx_payments_tenant_reference;index:idx_payments_tenant_student" json:"tenant_id"`
	StudentID       uuid.UUID          `gorm:"type:uuid;not null;index:idx_payments_tenant_student" json:"student_id"`
	Reference       string             `gorm:"size:100;not null;uniqueIndex:idx_payments_tenant_reference" json:"reference"`
	Date            time.Time          `gorm:"type:date;not null" json:"date"`
	MethodID        uuid.UUID          `gorm:"type:uuid;not null" json:"method_id"`
	Amount          decimal.Decimal    `gorm:"type:numeric(14,2);not null" json:"amount"`
	Currency        string             `gorm:"size:3;not null" json:"currency"`
	Status          enum.PaymentStatus `gorm:"size:20;not null;index" json:"status"`
	AutoAllocate    bool               `gorm:"not null;default:false" json:"auto_allocate"`
	CreditRefunded  decimal.Decimal    `gorm:"type:numeric(14,2);not null;default:0" json:"credit_refunded"`
	GatewayRef      *string            `gorm:"size:100;uniqueIndex" json:"gateway_ref,omitempty"`
	ExternalTxnID   string             `gorm:"size:100" json:"external_txn_id,omitempty"`
	GatewayResponse string             `gorm:"type:text" json:"gateway_response,omitempty"`
	ConfirmedAt     *time.Time         `json:"confirmed_at,omitempty"`
	CancelledAt     *time.Time         `json:"cancelled_at,omitempty"`
	CreatedBy       uuid.UUID          `gorm:"type:uuid" json:"created_by"`
	CreatedAt       time.Time          `json:"created_at"`
	UpdatedAt       time.Time          `json:"updated_at"`

	// Relationships
	Method *PaymentMethod `gorm:"foreignKey:MethodID" json:"method,omitempty"`
}

// BeforeCreate generates a UUID before creating a new payment
func (p *Payment) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// TableName returns the table name for the Payment model
func (Payment) TableName() string {
	return "payments"
}

// PaymentAllocation assigns part of a payment to an invoice. There is at most
// one row per (payment, invoice); further allocations grow the amount.
type PaymentAllocation struct {
	ID              uuid.UUID       `gorm:"type:uuid;primary_key" json:"id"`
	TenantID        uuid.UUID       `gorm:"type:uuid;not null;index" json:"tenant_id"`
	PaymentID       uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_allocations_payment_invoice" json:"payment_id"`
	InvoiceID       uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_allocations_payment_invoice;index" json:"invoice_id"`
	AllocatedAmount decimal.Decimal `gorm:"type:numeric(14,2);not null" json:"allocated_amount"`
	Date            time.Time       `gorm:"type:date;not null" json:"date"`
	CreatedBy       uuid.UUID       `gorm:"type:uuid" json:"created_by"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// BeforeCreate generates a UUID before creating a new allocation
func (a *PaymentAllocation) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}

// TableName returns the table name for the PaymentAllocation model
func (PaymentAllocation) TableName() string {
	return "payment_allocations"
}
