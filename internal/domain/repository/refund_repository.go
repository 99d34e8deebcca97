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

// RefundRepository defines the interface for refund data operations
type RefundRepository interface {
	Create(ctx context.Context, refund *entity.Refund) error
	GetByID(ctx context.Context, id uuid.UUID) (*entity.Refund, error)
	GetForUpdate(ctx context.Context, id uuid.UUID) (*entity.Refund, error)
	Update(ctx context.Context, refund *entity.Refund) error
	List(ctx context.Context, params *RefundFilterParams) ([]entity.Refund, int64, error)
	// SumOpenByPayment totals non-cancelled, non-overpayment refunds against the
	// payment, leaving out excludeID.
	SumOpenByPayment(ctx context.Context, paymentID, excludeID uuid.UUID) (decimal.Decimal, error)
	// SumOpenOverpayment totals non-cancelled overpayment refunds of the student
	// that are not yet processed, leaving out excludeID.
	SumOpenOverpayment(ctx context.Context, studentID, excludeID uuid.UUID) (decimal.Decimal, error)
	// ListProcessed returns refunds processed in [from, to].
	ListProcessed(ctx context.Context, from, to time.Time) ([]entity.Refund, error)

	CreateAdjustments(ctx context.Context, adjustments []entity.RefundAdjustment) error
	SumAdjustmentsByInvoice(ctx context.Context, invoiceID uuid.UUID) (decimal.Decimal, error)
	ListAdjustmentsByPayment(ctx context.Context, paymentID uuid.UUID) ([]entity.RefundAdjustment, error)
}

// RefundFilterParams contains filtering parameters for refund queries
type RefundFilterParams struct {
	Pagination *pagination.PaginationParams
	StudentID  *uuid.UUID
	PaymentID  *uuid.UUID
	Status     *enum.RefundStatus
}
