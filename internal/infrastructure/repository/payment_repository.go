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

var settledPaymentStatuses = []enum.PaymentStatus{enum.PaymentCompleted, enum.PaymentRefunded}

type paymentMethodRepository struct {
	db *gorm.DB
}

// NewPaymentMethodRepository creates a new payment method repository
func NewPaymentMethodRepository(db *gorm.DB) domainRepo.PaymentMethodRepository {
	return &paymentMethodRepository{db: db}
}

func (r *paymentMethodRepository) Create(ctx context.Context, method *entity.PaymentMethod) error {
	return translateError(conn(ctx, r.db).Create(method).Error)
}

func (r *paymentMethodRepository) GetByID(ctx context.Context, id uuid.UUID) (*entity.PaymentMethod, error) {
	return first[entity.PaymentMethod](conn(ctx, r.db), "id = ?", id)
}

func (r *paymentMethodRepository) GetByCode(ctx context.Context, tenantID uuid.UUID, code string) (*entity.PaymentMethod, error) {
	return first[entity.PaymentMethod](conn(ctx, r.db), "tenant_id = ? AND code = ?", tenantID, code)
}

func (r *paymentMethodRepository) List(ctx context.Context) ([]entity.PaymentMethod, error) {
	var methods []entity.PaymentMethod
	err := conn(ctx, r.db).Scopes(TenantScope(ctx)).Order("name ASC").Find(&methods).Error
	return methods, err
}

type paymentRepository struct {
	db *gorm.DB
}

// NewPaymentRepository creates a new payment repository
func NewPaymentRepository(db *gorm.DB) domainRepo.PaymentRepository {
	return &paymentRepository{db: db}
}

func (r *paymentRepository) Create(ctx context.Context, payment *entity.Payment) error {
	return translateError(conn(ctx, r.db).Omit("Method").Create(payment).Error)
}

func (r *paymentRepository) GetByID(ctx context.Context, id uuid.UUID) (*entity.Payment, error) {
	return first[entity.Payment](conn(ctx, r.db).Preload("Method"), "id = ?", id)
}

func (r *paymentRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (*entity.Payment, error) {
	return first[entity.Payment](forUpdate(conn(ctx, r.db)), "id = ?", id)
}

func (r *paymentRepository) GetByReference(ctx context.Context, tenantID uuid.UUID, reference string) (*entity.Payment, error) {
	return first[entity.Payment](conn(ctx, r.db), "tenant_id = ? AND reference = ?", tenantID, reference)
}

func (r *paymentRepository) GetByGatewayRef(ctx context.Context, gatewayRef string) (*entity.Payment, error) {
	return first[entity.Payment](conn(ctx, r.db), "gateway_ref = ?", gatewayRef)
}

func (r *paymentRepository) Update(ctx context.Context, payment *entity.Payment) error {
	return translateError(conn(ctx, r.db).Omit("Method").Save(payment).Error)
}

func (r *paymentRepository) List(ctx context.Context, params *domainRepo.PaymentFilterParams) ([]entity.Payment, int64, error) {
	var payments []entity.Payment
	var total int64

	query := conn(ctx, r.db).Model(&entity.Payment{}).Scopes(TenantScope(ctx))

	if params.Search != "" {
		query = query.Where("reference ILIKE ?", "%"+params.Search+"%")
	}
	if params.StudentID != nil {
		query = query.Where("student_id = ?", *params.StudentID)
	}
	if params.Status != nil {
		query = query.Where("status = ?", *params.Status)
	}
	if params.StartDate != nil {
		query = query.Where("date >= ?", *params.StartDate)
	}
	if params.EndDate != nil {
		query = query.Where("date <= ?", *params.EndDate)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	params.Pagination.Validate()
	err := query.Scopes(Paginate(params.Pagination.Page, params.Pagination.PerPage)).
		Order("created_at DESC").
		Find(&payments).Error
	return payments, total, err
}

func (r *paymentRepository) ListSettledByStudent(ctx context.Context, studentID uuid.UUID) ([]entity.Payment, error) {
	var payments []entity.Payment
	err := conn(ctx, r.db).Scopes(TenantScope(ctx)).
		Where("student_id = ? AND status IN ?", studentID, settledPaymentStatuses).
		Order("created_at DESC").
		Find(&payments).Error
	return payments, err
}

func (r *paymentRepository) ListCompleted(ctx context.Context, from, to time.Time) ([]entity.Payment, error) {
	var payments []entity.Payment
	err := conn(ctx, r.db).Scopes(TenantScope(ctx)).
		Where("status IN ? AND date BETWEEN ? AND ?", settledPaymentStatuses, from, to).
		Find(&payments).Error
	return payments, err
}

func (r *paymentRepository) ListTenantIDs(ctx context.Context) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := conn(ctx, r.db).Model(&entity.Payment{}).Distinct("tenant_id").Pluck("tenant_id", &ids).Error
	return ids, err
}

type allocationRepository struct {
	db *gorm.DB
}

// NewAllocationRepository creates a new payment allocation repository
func NewAllocationRepository(db *gorm.DB) domainRepo.AllocationRepository {
	return &allocationRepository{db: db}
}

func (r *allocationRepository) Create(ctx context.Context, allocation *entity.PaymentAllocation) error {
	return translateError(conn(ctx, r.db).Create(allocation).Error)
}

func (r *allocationRepository) Update(ctx context.Context, allocation *entity.PaymentAllocation) error {
	return translateError(conn(ctx, r.db).Save(allocation).Error)
}

func (r *allocationRepository) Get(ctx context.Context, paymentID, invoiceID uuid.UUID) (*entity.PaymentAllocation, error) {
	return first[entity.PaymentAllocation](conn(ctx, r.db), "payment_id = ? AND invoice_id = ?", paymentID, invoiceID)
}

func (r *allocationRepository) ListByPayment(ctx context.Context, paymentID uuid.UUID) ([]entity.PaymentAllocation, error) {
	var allocations []entity.PaymentAllocation
	err := conn(ctx, r.db).Where("payment_id = ?", paymentID).Order("created_at ASC, id ASC").Find(&allocations).Error
	return allocations, err
}

func (r *allocationRepository) ListByInvoice(ctx context.Context, invoiceID uuid.UUID) ([]entity.PaymentAllocation, error) {
	var allocations []entity.PaymentAllocation
	err := conn(ctx, r.db).Where("invoice_id = ?", invoiceID).Order("created_at ASC, id ASC").Find(&allocations).Error
	return allocations, err
}

func (r *allocationRepository) SumByPayment(ctx context.Context, paymentID uuid.UUID) (decimal.Decimal, error) {
	return sum(conn(ctx, r.db).Model(&entity.PaymentAllocation{}).Where("payment_id = ?", paymentID), "allocated_amount")
}

// SumSettledByInvoice totals allocations whose payment still counts as money received.
func (r *allocationRepository) SumSettledByInvoice(ctx context.Context, invoiceID uuid.UUID) (decimal.Decimal, error) {
	q := conn(ctx, r.db).Model(&entity.PaymentAllocation{}).
		Joins("JOIN payments p ON p.id = payment_allocations.payment_id").
		Where("payment_allocations.invoice_id = ? AND p.status IN ?", invoiceID, settledPaymentStatuses)
	return sum(q, "payment_allocations.allocated_amount")
}

// sum runs COALESCE(SUM(column), 0) over q.
func sum(q *gorm.DB, column string) (decimal.Decimal, error) {
	var row struct {
		Total decimal.Decimal
	}
	err := q.Select("COALESCE(SUM(" + column + "), 0) AS total").Scan(&row).Error
	return row.Total, err
}
