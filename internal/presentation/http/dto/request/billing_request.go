package request

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Dates travel as YYYY-MM-DD strings and are parsed in the billing timezone.

// FeeCategoryRequest represents a fee category create/update request
type FeeCategoryRequest struct {
	Name       string `json:"name" binding:"required,max=255"`
	Code       string `json:"code" binding:"required,max=50"`
	Mandatory  bool   `json:"mandatory"`
	Refundable bool   `json:"refundable"`
}

// CreateFeeStructureRequest represents a fee structure creation request
type CreateFeeStructureRequest struct {
	Name          string   `json:"name" binding:"required,max=255"`
	AcademicYear  string   `json:"academic_year" binding:"required,max=20"`
	GradeLevels   []string `json:"grade_levels"`
	EffectiveFrom string   `json:"effective_from" binding:"required,datetime=2006-01-02"`
	EffectiveTo   string   `json:"effective_to" binding:"omitempty,datetime=2006-01-02"`
}

// TransitionRequest moves an entity to another status
type TransitionRequest struct {
	Status string `json:"status" binding:"required"`
}

// FeeItemRequest represents a fee item creation request
type FeeItemRequest struct {
	CategoryID       uuid.UUID       `json:"category_id" binding:"required"`
	Name             string          `json:"name" binding:"required,max=255"`
	BaseAmount       decimal.Decimal `json:"base_amount"`
	Currency         string          `json:"currency" binding:"omitempty,len=3"`
	Frequency        string          `json:"frequency" binding:"required"`
	MaxInstallments  int             `json:"max_installments"`
	LateFeeAmount    decimal.Decimal `json:"late_fee_amount"`
	GraceDays        int             `json:"grace_days" binding:"min=0"`
	DailyPenaltyRate decimal.Decimal `json:"daily_penalty_rate"`
}

// AssignRequest puts a student on a fee structure
type AssignRequest struct {
	StudentID       uuid.UUID       `json:"student_id" binding:"required"`
	StructureID     uuid.UUID       `json:"structure_id" binding:"required"`
	EffectiveFrom   string          `json:"effective_from" binding:"omitempty,datetime=2006-01-02"`
	EffectiveTo     string          `json:"effective_to" binding:"omitempty,datetime=2006-01-02"`
	DiscountPercent decimal.Decimal `json:"discount_percent"`
	DiscountAmount  decimal.Decimal `json:"discount_amount"`
}

// GenerateInvoicesRequest runs invoice generation for a billing period
type GenerateInvoicesRequest struct {
	PeriodKey     string      `json:"period_key" binding:"required,max=50"`
	PeriodType    string      `json:"period_type" binding:"required"`
	PeriodStart   string      `json:"period_start" binding:"required,datetime=2006-01-02"`
	PeriodEnd     string      `json:"period_end" binding:"required,datetime=2006-01-02"`
	InvoiceDate   string      `json:"invoice_date" binding:"required,datetime=2006-01-02"`
	DueDate       string      `json:"due_date" binding:"required,datetime=2006-01-02"`
	StudentIDs    []uuid.UUID `json:"student_ids"`
	AssignmentIDs []uuid.UUID `json:"assignment_ids"`
	Draft         bool        `json:"draft"`
	SkipExisting  bool        `json:"skip_existing"`
	Notes         string      `json:"notes" binding:"max=1000"`
}

// PaymentMethodRequest adds a payment method
type PaymentMethodRequest struct {
	Code    string `json:"code" binding:"required,max=50"`
	Name    string `json:"name" binding:"required,max=255"`
	Channel string `json:"channel" binding:"required"`
}

// RecordPaymentRequest records money received
type RecordPaymentRequest struct {
	StudentID    uuid.UUID       `json:"student_id" binding:"required"`
	Amount       decimal.Decimal `json:"amount"`
	MethodID     uuid.UUID       `json:"method_id" binding:"required"`
	Reference    string          `json:"reference" binding:"max=100"`
	Currency     string          `json:"currency" binding:"omitempty,len=3"`
	Date         string          `json:"date" binding:"omitempty,datetime=2006-01-02"`
	AutoAllocate bool            `json:"auto_allocate"`
}

// ConfirmPaymentRequest reports the definitive outcome of a payment
type ConfirmPaymentRequest struct {
	Result        string `json:"result" binding:"required,oneof=success failure"`
	ExternalTxnID string `json:"external_txn_id" binding:"max=100"`
}

// AllocationLineRequest is one invoice share of an allocation
type AllocationLineRequest struct {
	InvoiceID uuid.UUID       `json:"invoice_id" binding:"required"`
	Amount    decimal.Decimal `json:"amount"`
}

// AllocateRequest applies a payment to one or more invoices atomically
type AllocateRequest struct {
	Allocations []AllocationLineRequest `json:"allocations" binding:"required,min=1,dive"`
}

// CreatePlanRequest schedules an invoice balance into installments
type CreatePlanRequest struct {
	InstallmentCount int    `json:"installment_count" binding:"required,min=1"`
	FirstDueDate     string `json:"first_due_date" binding:"required,datetime=2006-01-02"`
	Frequency        string `json:"frequency" binding:"required"`
}

// PayInstallmentRequest pays an installment from a completed payment
type PayInstallmentRequest struct {
	PaymentID uuid.UUID       `json:"payment_id" binding:"required"`
	Amount    decimal.Decimal `json:"amount"`
}

// CreateRefundRequest requests a refund
type CreateRefundRequest struct {
	StudentID         uuid.UUID       `json:"student_id" binding:"required"`
	Amount            decimal.Decimal `json:"amount"`
	Reason            string          `json:"reason" binding:"required,max=1000"`
	Type              string          `json:"type" binding:"required"`
	Method            string          `json:"method" binding:"required"`
	OriginalPaymentID *uuid.UUID      `json:"original_payment_id"`
}

// RebuildSummariesRequest rebuilds reporting rollups for a range
type RebuildSummariesRequest struct {
	PeriodType string `json:"period_type" binding:"required,oneof=daily monthly"`
	From       string `json:"from" binding:"required,datetime=2006-01-02"`
	To         string `json:"to" binding:"required,datetime=2006-01-02"`
}

// AckEventsRequest marks outbox events as delivered
type AckEventsRequest struct {
	IDs []uuid.UUID `json:"ids" binding:"required,min=1,max=500"`
}
