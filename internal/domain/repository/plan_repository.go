package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sangkips/bursar-api/internal/domain/entity"
)

// PlanRepository defines the interface for payment plan data operations
type PlanRepository interface {
	// Create stores the plan together with its installments.
	Create(ctx context.Context, plan *entity.PaymentPlan) error
	// GetByID returns the plan with its installments ordered by number.
	GetByID(ctx context.Context, id uuid.UUID) (*entity.PaymentPlan, error)
	// GetByInvoiceID returns the invoice's plan with installments, whatever its status.
	GetByInvoiceID(ctx context.Context, invoiceID uuid.UUID) (*entity.PaymentPlan, error)
	Update(ctx context.Context, plan *entity.PaymentPlan) error
	GetInstallment(ctx context.Context, id uuid.UUID) (*entity.Installment, error)
	UpdateInstallments(ctx context.Context, installments []entity.Installment) error
	// ListPastDue returns unpaid pending installments of active plans due before day.
	ListPastDue(ctx context.Context, day time.Time) ([]entity.Installment, error)
}
