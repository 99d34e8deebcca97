package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sangkips/bursar-api/internal/domain/entity"
	"github.com/sangkips/bursar-api/internal/domain/enum"
	domainRepo "github.com/sangkips/bursar-api/internal/domain/repository"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type refundRepository struct {
	db *gorm.DB
}

// NewRefundRepository creates a new refund repository
func NewRefundRepository(db *gorm.DB) domainRepo.RefundRepository {
	return &refundRepository{db: db}
}

func (r *refundRepository) Create(ctx context.Context, refund *entity.Refund) error {
	return translateError(conn(ctx, r.db).Omit("Adjustments").Create(refund).Error)
}

func (r *refundRepository) GetByID(ctx context.Context, id uuid.UUID) (*entity.Refund, error) {
	return first[entity.Refund](conn(ctx, r.db).Preload("Adjustments", orderByCreated), "id = ?", id)
}

func (r *refundRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (*entity.Refund, error) {
	return first[entity.Refund](forUpdate(conn(ctx, r.db)), "id = ?", id)
}

func (r *refundRepository) Update(ctx context.Context, refund *entity.Refund) error {
	return translateError(conn(ctx, r.db).Omit("Adjustments").Save(refund).Error)
}

func (r *refundRepository) List(ctx context.Context, params *domainRepo.RefundFilterParams) ([]entity.Refund, int64, error) {
	var refunds []entity.Refund
	var total int64

	query := conn(ctx, r.db).Model(&entity.Refund{}).Scopes(TenantScope(ctx))
	if params.StudentID != nil {
		query = query.Where("student_id = ?", *params.StudentID)
	}
	if params.PaymentID != nil {
		query = query.Where("original_payment_id = ?", *params.PaymentID)
	}
	if params.Status != nil {
		query = query.Where("status = ?", *params.Status)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	params.Pagination.Validate()
	err := query.Scopes(Paginate(params.Pagination.Page, params.Pagination.PerPage)).
		Order("created_at DESC").
		Find(&refunds).Error
	return refunds, total, err
}

// SumOpenByPayment totals non-cancelled refunds against a payment's allocations.
func (r *refundRepository) SumOpenByPayment(ctx context.Context, paymentID, excludeID uuid.UUID) (decimal.Decimal, error) {
	q := conn(ctx, r.db).Model(&entity.Refund{}).
		Where("original_payment_id = ? AND id <> ?", paymentID, excludeID).
		Where("status <> ? AND type <> ?", enum.RefundCancelled, enum.RefundOverpayment)
	return sum(q, "amount")
}

// SumOpenOverpayment totals overpayment refunds still waiting to be processed.
func (r *refundRepository) SumOpenOverpayment(ctx context.Context, studentID, excludeID uuid.UUID) (decimal.Decimal, error) {
	q := conn(ctx, r.db).Model(&entity.Refund{}).
		Where("student_id = ? AND id <> ? AND type = ?", studentID, excludeID, enum.RefundOverpayment).
		Where("status IN ?", []enum.RefundStatus{enum.RefundPending, enum.RefundApproved})
	return sum(q, "amount")
}

func (r *refundRepository) ListProcessed(ctx context.Context, from, to time.Time) ([]entity.Refund, error) {
	var refunds []entity.Refund
	err := conn(ctx, r.db).Scopes(TenantScope(ctx)).
		Where("status = ? AND processed_at >= ? AND processed_at < ?", enum.RefundProcessed, from, to.AddDate(0, 0, 1)).
		Find(&refunds).Error
	return refunds, err
}

func (r *refundRepository) CreateAdjustments(ctx context.Context, adjustments []entity.RefundAdjustment) error {
	if len(adjustments) == 0 {
		return nil
	}
	return translateError(conn(ctx, r.db).Create(&adjustments).Error)
}

func (r *refundRepository) SumAdjustmentsByInvoice(ctx context.Context, invoiceID uuid.UUID) (decimal.Decimal, error) {
	return sum(conn(ctx, r.db).Model(&entity.RefundAdjustment{}).Where("invoice_id = ?", invoiceID), "amount")
}

func (r *refundRepository) ListAdjustmentsByPayment(ctx context.Context, paymentID uuid.UUID) ([]entity.RefundAdjustment, error) {
	var adjustments []entity.RefundAdjustment
	err := conn(ctx, r.db).Where("payment_id = ?", paymentID).Order("created_at ASC").Find(&adjustments).Error
	return adjustments, err
}
