package entity

import (
	"time"

	"github.com/google/uuid"
	"github.com/sangkips/bursar-api/internal/domain/enum"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// PaymentPlan splits an invoice balance into installments. One plan per invoice.
type PaymentPlan struct {
	ID                uuid.UUID          `gorm:"type:uuid;primary_key" json:"id"`
	TenantID          uuid.UUID          `gorm:"type:uuid;not null;index" json:"tenant_id"`
	StudentID         uuid.UUID          `gorm:"type:uuid;not null;index" json:"student_id"`
	InvoiceID         uuid.UUID          `gorm:"type:uuid;not null;uniqueIndex" json:"invoice_id"`
	TotalAmount       decimal.Decimal    `gorm:"type:numeric(14,2);not null" json:"total_amount"`
	InstallmentCount  int                `gorm:"not null" json:"installment_count"`
	InstallmentAmount decimal.Decimal    `gorm:"type:numeric(14,2);not null" json:"installment_amount"`
	FirstDueDate      time.Time          `gorm:"type:date;not null" json:"first_due_date"`
	Frequency         enum.PlanFrequency `gorm:"size:20;not null" json:"frequency"`
	Status            enum.PlanStatus    `gorm:"size:20;not null;index" json:"status"`
	CreatedBy         uuid.UUID          `gorm:"type:uuid" json:"created_by"`
	CreatedAt         time.Time          `json:"created_at"`
	UpdatedAt         time.Time          `json:"updated_at"`

	// Relationships
	Installments []Installment `gorm:"foreignKey:PlanID" json:"installments,omitempty"`
}

// BeforeCreate generates a UUID before creating a new plan
func (p *PaymentPlan) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// TableName returns the table name for the PaymentPlan model
func (PaymentPlan) TableName() string {
	return "payment_plans"
}

// Installment is one scheduled due amount of a plan.
type Installment struct {
	ID          uuid.UUID              `gorm:"type:uuid;primary_key" json:"id"`
	TenantID    uuid.UUID              `gorm:"type:uuid;not null;index" json:"tenant_id"`
	PlanID      uuid.UUID              `gorm:"type:uuid;not null;uniqueIndex:idx_installments_plan_number" json:"plan_id"`
	Number      int                    `gorm:"not null;uniqueIndex:idx_installments_plan_number" json:"number"`
	DueDate     time.Time              `gorm:"type:date;not null;index" json:"due_date"`
	Amount      decimal.Decimal        `gorm:"type:numeric(14,2);not null" json:"amount"`
	Paid        decimal.Decimal        `gorm:"type:numeric(14,2);not null;default:0" json:"paid"`
	LateFee     decimal.Decimal        `gorm:"type:numeric(14,2);not null;default:0" json:"late_fee"`
	Outstanding decimal.Decimal        `gorm:"type:numeric(14,2);not null" json:"outstanding"`
	Status      enum.InstallmentStatus `gorm:"size:20;not null" json:"status"`
	PaidAt      *time.Time             `json:"paid_at,omitempty"`
	CreatedAt   time.Time              `json:"created_at"`
	UpdatedAt   time.Time              `json:"updated_at"`
}

// BeforeCreate generates a UUID before creating a new installment
func (i *Installment) BeforeCreate(tx *gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}

// TableName returns the table name for the Installment model
func (Installment) TableName() string {
	return "installments"
}
