package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sangkips/bursar-api/internal/domain/entity"
	"github.com/sangkips/bursar-api/internal/domain/enum"
	domainRepo "github.com/sangkips/bursar-api/internal/domain/repository"
	"gorm.io/gorm"
)

type planRepository struct {
	db *gorm.DB
}

// NewPlanRepository creates a new payment plan repository
func NewPlanRepository(db *gorm.DB) domainRepo.PlanRepository {
	return &planRepository{db: db}
}

// Create inserts the plan together with its installments.
func (r *planRepository) Create(ctx context.Context, plan *entity.PaymentPlan) error {
	return translateError(conn(ctx, r.db).Create(plan).Error)
}

func (r *planRepository) GetByID(ctx context.Context, id uuid.UUID) (*entity.PaymentPlan, error) {
	return first[entity.PaymentPlan](conn(ctx, r.db).Preload("Installments", byNumber), "id = ?", id)
}

func (r *planRepository) GetByInvoiceID(ctx context.Context, invoiceID uuid.UUID) (*entity.PaymentPlan, error) {
	return first[entity.PaymentPlan](conn(ctx, r.db).Preload("Installments", byNumber), "invoice_id = ?", invoiceID)
}

func (r *planRepository) Update(ctx context.Context, plan *entity.PaymentPlan) error {
	return translateError(conn(ctx, r.db).Omit("Installments").Save(plan).Error)
}

func (r *planRepository) GetInstallment(ctx context.Context, id uuid.UUID) (*entity.Installment, error) {
	return first[entity.Installment](conn(ctx, r.db), "id = ?", id)
}

func (r *planRepository) UpdateInstallments(ctx context.Context, installments []entity.Installment) error {
	db := conn(ctx, r.db)
	for i := range installments {
		if err := db.Save(&installments[i]).Error; err != nil {
			return translateError(err)
		}
	}
	return nil
}

func (r *planRepository) ListPastDue(ctx context.Context, day time.Time) ([]entity.Installment, error) {
	var installments []entity.Installment
	err := conn(ctx, r.db).Model(&entity.Installment{}).Scopes(TenantScope(ctx)).
		Joins("JOIN payment_plans pp ON pp.id = installments.plan_id").
		Where("pp.status = ? AND installments.status = ? AND installments.due_date < ?", enum.PlanActive, enum.InstallmentPending, day).
		Order("installments.due_date ASC").
		Find(&installments).Error
	return installments, err
}

func byNumber(db *gorm.DB) *gorm.DB {
	return db.Order("number ASC")
}
