package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sangkips/bursar-api/internal/domain/entity"
	"github.com/sangkips/bursar-api/internal/domain/enum"
	"github.com/sangkips/bursar-api/pkg/pagination"
	"github.com/shopspring/decimal"
)

// PaymentMethodRepository defines the interface for payment method data operations
type PaymentMethodRepository interface {
	Create(ctx context.Context, method *entity.PaymentMethod) error
	GetByID(ctx context.Context, id uuid.UUID) (*entity.PaymentMethod, error)
	GetByCode(ctx context.Context, tenantID uuid.UUID, code string) (*entity.PaymentMethod, error)
	List(ctx context.Context) ([]entity.PaymentMethod, error)
}

// PaymentRepository defines the interface for payment data operations
type PaymentRepository interface {
	Create(ctx context.Context, payment *entity.Payment) error
	GetByID(ctx context.Context, id uuid.UUID) (*entity.Payment, error)
	GetForUpdate(ctx context.Context, id uuid.UUID) (*entity.Payment, error)
	GetByReference(ctx context.Context, tenantID uuid.UUID, reference string) (*entity.Payment, error)
	// GetByGatewayRef looks a payment up across tenants.
	GetByGatewayRef(ctx context.Context, gatewayRef string) (*entity.Payment, error)
	Update(ctx context.Context, payment *entity.Payment) error
	List(ctx context.Context, params *PaymentFilterParams) ([]entity.Payment, int64, error)
	// ListSettledByStudent returns completed and refunded payments, newest first.
	ListSettledByStudent(ctx context.Context, studentID uuid.UUID) ([]entity.Payment, error)
	// ListCompleted returns completed or refunded payments dated in [from, to].
	ListCompleted(ctx context.Context, from, to time.Time) ([]entity.Payment, error)
	ListTenantIDs(ctx context.Context) ([]uuid.UUID, error)
}

// PaymentFilterParams contains filtering parameters for payment queries
type PaymentFilterParams struct {
	Pagination *pagination.PaginationParams
	Search     string
	StudentID  *uuid.UUID
	Status     *enum.PaymentStatus
	StartDate  *time.Time
	EndDate    *time.Time
}

// AllocationRepository defines the interface for payment allocation data operations
type AllocationRepository interface {
	Create(ctx context.Context, allocation *entity.PaymentAllocation) error
	Update(ctx context.Context, allocation *entity.PaymentAllocation) error
	Get(ctx context.Context, paymentID, invoiceID uuid.UUID) (*entity.PaymentAllocation, error)
	// ListByPayment returns the payment's allocations, oldest first.
	ListByPayment(ctx context.Context, paymentID uuid.UUID) ([]entity.PaymentAllocation, error)
	ListByInvoice(ctx context.Context, invoiceID uuid.UUID) ([]entity.PaymentAllocation, error)
	SumByPayment(ctx context.Context, paymentID uuid.UUID) (decimal.Decimal, error)
	// SumSettledByInvoice totals allocations to the invoice from completed or
	// refunded payments.
	SumSettledByInvoice(ctx context.Context, invoiceID uuid.UUID) (decimal.Decimal, error)
}
