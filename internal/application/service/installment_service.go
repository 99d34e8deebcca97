package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sangkips/bursar-api/internal/domain/billing"
	"github.com/sangkips/bursar-api/internal/domain/entity"
	"github.com/sangkips/bursar-api/internal/domain/enum"
	"github.com/sangkips/bursar-api/internal/infrastructure/lock"
	"github.com/sangkips/bursar-api/pkg/apperror"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// InstallmentService splits invoice balances into payment plans and keeps the
// installments in step with the money allocated to the invoice.
type InstallmentService struct {
	*Core
	payments *PaymentService
}

// NewInstallmentService creates a new installment service and subscribes it to
// allocation changes of the payment ledger.
func NewInstallmentService(core *Core, payments *PaymentService) *InstallmentService {
	s := &InstallmentService{Core: core, payments: payments}
	payments.RegisterObserver(s)
	return s
}

// CreatePlanInput is the input of CreatePlan
type CreatePlanInput struct {
	InstallmentCount int
	FirstDueDate     time.Time
	Frequency        enum.PlanFrequency `validate:"required"`
}

// CreatePlan schedules the invoice's unpaid balance over count installments.
func (s *InstallmentService) CreatePlan(ctx context.Context, invoiceID uuid.UUID, input *CreatePlanInput) (*entity.PaymentPlan, error) {
	if err := s.validate.Struct(input); err != nil {
		return nil, err
	}
	if !input.Frequency.IsValid() {
		return nil, apperror.NewFieldError("frequency", "frequency must be one of weekly, monthly, quarterly")
	}
	if input.FirstDueDate.IsZero() {
		return nil, apperror.NewFieldError("first_due_date", "first_due_date is required")
	}
	actor, err := actorFrom(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := s.loadInvoice(ctx, actor, invoiceID); err != nil {
		return nil, err
	}

	var planID uuid.UUID
	err = s.guarded(ctx, []string{lock.InvoiceKey(invoiceID)}, func(ctx context.Context) error {
		existing, err := s.Repos.Plans.GetByInvoiceID(ctx, invoiceID)
		if err != nil {
			return err
		}
		if existing != nil {
			return apperror.New(apperror.ErrPlanAlreadyExists, "Invoice already has a payment plan")
		}

		inv, err := s.payments.recon.reconcileLocked(ctx, invoiceID)
		if err != nil {
			return err
		}
		if !inv.Status.IsOpen() {
			return apperror.New(apperror.ErrInvalidTransition, "Invoice "+inv.InvoiceNumber+" is "+inv.Status.String()+" and cannot be put on a plan")
		}
		if input.InstallmentCount <= 0 || input.InstallmentCount > inv.MaxInstallments {
			return apperror.New(apperror.ErrInvalidSchedule, "Installment count must be between 1 and the invoice's limit")
		}
		balance := inv.Total.Sub(inv.Paid)
		if !balance.IsPositive() {
			return apperror.New(apperror.ErrInvalidSchedule, "Invoice has no unpaid balance to schedule")
		}

		rows, per, err := billing.Schedule(balance, input.InstallmentCount, s.day(input.FirstDueDate), input.Frequency)
		if err != nil {
			return apperror.New(apperror.ErrInvalidSchedule, err.Error())
		}

		plan := &entity.PaymentPlan{
			TenantID:          inv.TenantID,
			StudentID:         inv.StudentID,
			InvoiceID:         inv.ID,
			TotalAmount:       balance,
			InstallmentCount:  input.InstallmentCount,
			InstallmentAmount: per,
			FirstDueDate:      rows[0].DueDate,
			Frequency:         input.Frequency,
			Status:            enum.PlanActive,
			CreatedBy:         actor.UserID,
		}
		for _, row := range rows {
			plan.Installments = append(plan.Installments, entity.Installment{
				TenantID:    inv.TenantID,
				Number:      row.Number,
				DueDate:     row.DueDate,
				Amount:      row.Amount,
				Paid:        decimal.Zero,
				LateFee:     decimal.Zero,
				Outstanding: row.Amount,
				Status:      enum.InstallmentPending,
			})
		}
		if err := s.Repos.Plans.Create(ctx, plan); err != nil {
			return err
		}
		planID = plan.ID
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.Log.Info("payment plan created", zap.String("invoice_id", invoiceID.String()), zap.String("plan_id", planID.String()), zap.Int("installments", input.InstallmentCount))
	return s.Repos.Plans.GetByID(ctx, planID)
}

// PayInstallmentInput is the input of PayInstallment
type PayInstallmentInput struct {
	PaymentID uuid.UUID       `validate:"required"`
	Amount    decimal.Decimal `validate:"dgt=0"`
}

// PayInstallment allocates amount of a completed payment to the plan's invoice
// and credits it to the installment. Money beyond what the installment owes
// goes to the remaining installments in order.
func (s *InstallmentService) PayInstallment(ctx context.Context, installmentID uuid.UUID, input *PayInstallmentInput) (*entity.PaymentPlan, error) {
	if err := s.validate.Struct(input); err != nil {
		return nil, err
	}
	if !input.Amount.Equal(billing.Cents(input.Amount)) {
		return nil, apperror.NewFieldError("amount", "amount must have at most two decimal places")
	}
	actor, err := actorFrom(ctx)
	if err != nil {
		return nil, err
	}
	in, err := s.Repos.Plans.GetInstallment(ctx, installmentID)
	if err != nil {
		return nil, err
	}
	if _, err := check(actor, in, func(i *entity.Installment) uuid.UUID { return i.TenantID }, "Installment"); err != nil {
		return nil, err
	}
	plan, err := s.loadPlan(ctx, actor, in.PlanID)
	if err != nil {
		return nil, err
	}

	keys := []string{lock.PaymentKey(input.PaymentID), lock.InvoiceKey(plan.InvoiceID)}
	err = s.guarded(ctx, keys, func(ctx context.Context) error {
		current, err := s.Repos.Plans.GetByID(ctx, plan.ID)
		if err != nil {
			return err
		}
		if current.Status != enum.PlanActive {
			return apperror.New(apperror.ErrInvalidTransition, "Plan is "+string(current.Status)+" and cannot take payments")
		}
		target := -1
		for i := range current.Installments {
			if current.Installments[i].ID == installmentID {
				target = i
			}
		}
		if target < 0 {
			return apperror.NewNotFoundError("Installment")
		}
		if current.Installments[target].Status == enum.InstallmentPaid {
			return apperror.NewConflictError("Installment is already paid")
		}

		line := []AllocationLine{{InvoiceID: plan.InvoiceID, Amount: input.Amount}}
		if _, err := s.payments.allocateLocked(ctx, actor, input.PaymentID, line, false); err != nil {
			return err
		}

		now := s.Clock.Now()
		rest := billing.PayInstallment(&current.Installments[target], input.Amount, now)
		if rest.IsPositive() {
			billing.ApplyOldestFirst(current.Installments, rest, now)
		}
		return s.saveProgress(ctx, current)
	})
	if err != nil {
		return nil, err
	}
	return s.Repos.Plans.GetByID(ctx, plan.ID)
}

// saveProgress stores the installments and settles the plan once all are paid.
func (s *InstallmentService) saveProgress(ctx context.Context, plan *entity.PaymentPlan) error {
	if err := s.Repos.Plans.UpdateInstallments(ctx, plan.Installments); err != nil {
		return err
	}
	settled := billing.PlanSettled(plan.Installments)
	switch {
	case settled && plan.Status == enum.PlanActive:
		plan.Status = enum.PlanCompleted
	case !settled && plan.Status == enum.PlanCompleted:
		plan.Status = enum.PlanActive
	default:
		return nil
	}
	return s.Repos.Plans.Update(ctx, plan)
}

// OnAllocated credits money allocated directly to an invoice to its active
// plan, oldest installment first.
func (s *InstallmentService) OnAllocated(ctx context.Context, invoiceID uuid.UUID, amount decimal.Decimal) error {
	plan, err := s.Repos.Plans.GetByInvoiceID(ctx, invoiceID)
	if err != nil || plan == nil || plan.Status != enum.PlanActive {
		return err
	}
	billing.ApplyOldestFirst(plan.Installments, amount, s.Clock.Now())
	return s.saveProgress(ctx, plan)
}

// OnReversed takes refunded money back out of the plan, newest installment first.
func (s *InstallmentService) OnReversed(ctx context.Context, invoiceID uuid.UUID, amount decimal.Decimal) error {
	plan, err := s.Repos.Plans.GetByInvoiceID(ctx, invoiceID)
	if err != nil || plan == nil || plan.Status == enum.PlanCancelled {
		return err
	}
	billing.ReverseNewestFirst(plan.Installments, amount, s.Clock.Now())
	return s.saveProgress(ctx, plan)
}

// MarkDefaulted flags an active plan as defaulted. Deciding when a plan has
// defaulted is up to the caller.
func (s *InstallmentService) MarkDefaulted(ctx context.Context, planID uuid.UUID) (*entity.PaymentPlan, error) {
	return s.transition(ctx, planID, enum.PlanDefaulted, enum.PlanActive)
}

// CancelPlan stops a plan. Money already allocated to the invoice stays there.
func (s *InstallmentService) CancelPlan(ctx context.Context, planID uuid.UUID) (*entity.PaymentPlan, error) {
	return s.transition(ctx, planID, enum.PlanCancelled, enum.PlanActive, enum.PlanDefaulted)
}

func (s *InstallmentService) transition(ctx context.Context, planID uuid.UUID, to enum.PlanStatus, from ...enum.PlanStatus) (*entity.PaymentPlan, error) {
	actor, err := actorFrom(ctx)
	if err != nil {
		return nil, err
	}
	plan, err := s.loadPlan(ctx, actor, planID)
	if err != nil {
		return nil, err
	}

	err = s.guarded(ctx, []string{lock.InvoiceKey(plan.InvoiceID)}, func(ctx context.Context) error {
		current, err := s.Repos.Plans.GetByID(ctx, planID)
		if err != nil {
			return err
		}
		allowed := false
		for _, f := range from {
			allowed = allowed || current.Status == f
		}
		if !allowed {
			return apperror.New(apperror.ErrInvalidTransition, "Plan cannot move from "+string(current.Status)+" to "+string(to))
		}
		current.Status = to
		if to == enum.PlanDefaulted {
			var changed []entity.Installment
			for _, in := range current.Installments {
				if in.Status == enum.InstallmentOverdue {
					in.Status = enum.InstallmentDefaulted
					changed = append(changed, in)
				}
			}
			if len(changed) > 0 {
				if err := s.Repos.Plans.UpdateInstallments(ctx, changed); err != nil {
					return err
				}
			}
		}
		return s.Repos.Plans.Update(ctx, current)
	})
	if err != nil {
		return nil, err
	}
	s.Log.Info("payment plan status changed", zap.String("plan_id", planID.String()), zap.String("status", string(to)))
	return s.Repos.Plans.GetByID(ctx, planID)
}

// GetPlan returns a plan with its installments
func (s *InstallmentService) GetPlan(ctx context.Context, planID uuid.UUID) (*entity.PaymentPlan, error) {
	actor, err := actorFrom(ctx)
	if err != nil {
		return nil, err
	}
	return s.loadPlan(ctx, actor, planID)
}
