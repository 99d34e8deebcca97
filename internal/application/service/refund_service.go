package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/sangkips/bursar-api/internal/domain/billing"
	"github.com/sangkips/bursar-api/internal/domain/entity"
	"github.com/sangkips/bursar-api/internal/domain/enum"
	"github.com/sangkips/bursar-api/internal/domain/repository"
	"github.com/sangkips/bursar-api/internal/domain/tenancy"
	"github.com/sangkips/bursar-api/internal/infrastructure/lock"
	"github.com/sangkips/bursar-api/pkg/apperror"
	"github.com/sangkips/bursar-api/pkg/pagination"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// RefundService runs the request, approve, process lifecycle of refunds
type RefundService struct {
	*Core
	payments *PaymentService
}

// NewRefundService creates a new refund service
func NewRefundService(core *Core, payments *PaymentService) *RefundService {
	return &RefundService{Core: core, payments: payments}
}

// CreateRefundInput is the input of Create
type CreateRefundInput struct {
	StudentID         uuid.UUID         `validate:"required"`
	Amount            decimal.Decimal   `validate:"dgt=0"`
	Reason            string            `validate:"required,max=1000"`
	Type              enum.RefundType   `validate:"required"`
	Method            enum.RefundMethod `validate:"required"`
	OriginalPaymentID *uuid.UUID
}

// Create requests a refund. Refunds against a payment are limited to what the
// payment contributed to invoices less other open refunds against it;
// overpayment refunds are limited to the student's credit.
func (s *RefundService) Create(ctx context.Context, input *CreateRefundInput) (*entity.Refund, error) {
	if err := s.validate.Struct(input); err != nil {
		return nil, err
	}
	if !input.Type.IsValid() {
		return nil, apperror.NewFieldError("type", "type must be one of partial, full, overpayment, cancellation")
	}
	if !input.Method.IsValid() {
		return nil, apperror.NewFieldError("method", "method must be one of cash, bank_transfer, original_method")
	}
	if !input.Amount.Equal(billing.Cents(input.Amount)) {
		return nil, apperror.NewFieldError("amount", "amount must have at most two decimal places")
	}
	if input.Type != enum.RefundOverpayment && input.OriginalPaymentID == nil {
		return nil, apperror.NewFieldError("original_payment_id", "original_payment_id is required for this refund type")
	}
	if input.Type == enum.RefundOverpayment && input.Method == enum.RefundMethodOriginalMethod && input.OriginalPaymentID == nil {
		return nil, apperror.NewFieldError("original_payment_id", "original_payment_id is required to refund by the original method")
	}

	actor, err := actorFrom(ctx)
	if err != nil {
		return nil, err
	}
	if input.OriginalPaymentID != nil {
		payment, err := s.loadPayment(ctx, actor, *input.OriginalPaymentID)
		if err != nil {
			return nil, err
		}
		if payment.StudentID != input.StudentID {
			return nil, apperror.NewFieldError("original_payment_id", "payment belongs to another student")
		}
		if !payment.Status.Settled() {
			return nil, apperror.New(apperror.ErrPaymentNotCompleted, "Payment "+payment.Reference+" is "+payment.Status.String()+" and cannot be refunded")
		}
	}

	refund := &entity.Refund{
		TenantID:          actor.TenantID,
		StudentID:         input.StudentID,
		OriginalPaymentID: input.OriginalPaymentID,
		Amount:            input.Amount,
		Reason:            input.Reason,
		Type:              input.Type,
		Method:            input.Method,
		Status:            enum.RefundPending,
		RequestedBy:       actor.UserID,
	}

	err = s.guarded(ctx, []string{lock.StudentKey(input.StudentID)}, func(ctx context.Context) error {
		limit, err := s.limit(ctx, refund)
		if err != nil {
			return err
		}
		if refund.Type == enum.RefundFull && !refund.Amount.Equal(limit) {
			return apperror.NewFieldError("amount", "a full refund must be for the whole refundable amount of "+limit.StringFixed(2))
		}
		if refund.Amount.GreaterThan(limit) {
			return exceeds(refund.Amount, limit)
		}
		return s.Repos.Refunds.Create(ctx, refund)
	})
	if err != nil {
		return nil, err
	}
	return refund, nil
}

func exceeds(amount, limit decimal.Decimal) error {
	return apperror.New(apperror.ErrRefundExceedsPayment,
		fmt.Sprintf("Refund of %s exceeds the refundable amount of %s", amount.StringFixed(2), limit.StringFixed(2)))
}

// limit is the most refund may be for, leaving itself out of the open refunds.
func (s *RefundService) limit(ctx context.Context, refund *entity.Refund) (decimal.Decimal, error) {
	if refund.Type == enum.RefundOverpayment {
		credit, err := s.payments.creditOf(ctx, refund.StudentID)
		if err != nil {
			return decimal.Zero, err
		}
		open, err := s.Repos.Refunds.SumOpenOverpayment(ctx, refund.StudentID, refund.ID)
		if err != nil {
			return decimal.Zero, err
		}
		return billing.Max(decimal.Zero, credit.Sub(open)), nil
	}

	allocated, err := s.Repos.Allocations.SumByPayment(ctx, *refund.OriginalPaymentID)
	if err != nil {
		return decimal.Zero, err
	}
	open, err := s.Repos.Refunds.SumOpenByPayment(ctx, *refund.OriginalPaymentID, refund.ID)
	if err != nil {
		return decimal.Zero, err
	}
	return billing.Max(decimal.Zero, allocated.Sub(open)), nil
}

// Approve is the checker step. The approver must not be the requester.
func (s *RefundService) Approve(ctx context.Context, id uuid.UUID) (*entity.Refund, error) {
	actor, err := actorFrom(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := s.loadRefund(ctx, actor, id); err != nil {
		return nil, err
	}

	var refund *entity.Refund
	err = s.guarded(ctx, []string{lock.RefundKey(id)}, func(ctx context.Context) error {
		r, err := s.Repos.Refunds.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if r.Status != enum.RefundPending {
			return apperror.New(apperror.ErrInvalidTransition, "Only pending refunds can be approved, refund is "+r.Status.String())
		}
		if actor.UserID == uuid.Nil || actor.UserID == r.RequestedBy {
			return apperror.New(apperror.ErrForbidden, "A refund must be approved by someone other than its requester")
		}
		now := s.Clock.Now()
		approver := actor.UserID
		r.Status = enum.RefundApproved
		r.ApprovedBy = &approver
		r.ApprovedAt = &now
		refund = r
		return s.Repos.Refunds.Update(ctx, r)
	})
	if err != nil {
		return nil, err
	}
	return refund, nil
}

// Process pays an approved refund out. Refunds against a payment reverse its
// allocations newest first and reconcile every affected invoice; overpayment
// refunds draw down the student's credit. Any failure leaves the refund approved.
func (s *RefundService) Process(ctx context.Context, id uuid.UUID) (*entity.Refund, error) {
	actor, err := actorFrom(ctx)
	if err != nil {
		return nil, err
	}
	refund, err := s.loadRefund(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if refund.Status != enum.RefundApproved {
		return nil, apperror.New(apperror.ErrInvalidTransition, "Only approved refunds can be processed, refund is "+refund.Status.String())
	}

	keys := []string{lock.RefundKey(id), lock.StudentKey(refund.StudentID)}
	var settled []entity.Payment
	if refund.Type == enum.RefundOverpayment {
		settled, err = s.Repos.Payments.ListSettledByStudent(ctx, refund.StudentID)
		if err != nil {
			return nil, err
		}
		for _, p := range settled {
			keys = append(keys, lock.PaymentKey(p.ID))
		}
	} else {
		allocations, err := s.Repos.Allocations.ListByPayment(ctx, *refund.OriginalPaymentID)
		if err != nil {
			return nil, err
		}
		keys = append(keys, lock.PaymentKey(*refund.OriginalPaymentID))
		for _, a := range allocations {
			keys = append(keys, lock.InvoiceKey(a.InvoiceID))
		}
	}

	var invoices []uuid.UUID
	err = s.guarded(ctx, keys, func(ctx context.Context) error {
		r, err := s.Repos.Refunds.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if r.Status != enum.RefundApproved {
			return apperror.New(apperror.ErrInvalidTransition, "Only approved refunds can be processed, refund is "+r.Status.String())
		}
		limit, err := s.limit(ctx, r)
		if err != nil {
			return err
		}
		if r.Amount.GreaterThan(limit) {
			return exceeds(r.Amount, limit)
		}

		if r.Type == enum.RefundOverpayment {
			invoices = nil
			err = s.drawCredit(ctx, r, settled)
		} else {
			invoices, err = s.reverse(ctx, actor, r)
		}
		if err != nil {
			return err
		}

		now := s.Clock.Now()
		r.Status = enum.RefundProcessed
		r.ProcessedAt = &now
		if err := s.Repos.Refunds.Update(ctx, r); err != nil {
			return err
		}
		refund = r

		return s.record(ctx, r.TenantID, enum.EventRefundProcessed, "refund", r.ID, map[string]interface{}{
			"student_id":          r.StudentID,
			"original_payment_id": r.OriginalPaymentID,
			"amount":              r.Amount,
			"type":                r.Type,
			"method":              r.Method,
			"invoices":            invoices,
		})
	})
	if err != nil {
		return nil, err
	}

	s.Log.Info("refund processed", zap.String("refund_id", id.String()), zap.String("amount", refund.Amount.StringFixed(2)), zap.Int("invoices", len(invoices)))
	return refund, nil
}

// reverse takes the refund back out of the payment's allocations, newest first,
// and returns the invoices it touched. The caller holds the payment and
// invoice locks.
func (s *RefundService) reverse(ctx context.Context, actor tenancy.Actor, r *entity.Refund) ([]uuid.UUID, error) {
	payment, err := s.Repos.Payments.GetForUpdate(ctx, *r.OriginalPaymentID)
	if err != nil {
		return nil, err
	}
	if _, err := check(actor, payment, func(p *entity.Payment) uuid.UUID { return p.TenantID }, "Payment"); err != nil {
		return nil, err
	}
	allocations, err := s.Repos.Allocations.ListByPayment(ctx, payment.ID)
	if err != nil {
		return nil, err
	}
	previous, err := s.Repos.Refunds.ListAdjustmentsByPayment(ctx, payment.ID)
	if err != nil {
		return nil, err
	}
	reversed := lo.GroupBy(previous, func(a entity.RefundAdjustment) uuid.UUID { return a.InvoiceID })

	today := s.today()
	remaining := r.Amount
	var adjustments []entity.RefundAdjustment
	for i := len(allocations) - 1; i >= 0 && remaining.IsPositive(); i-- {
		a := allocations[i]
		done := decimal.Sum(decimal.Zero, lo.Map(reversed[a.InvoiceID], func(adj entity.RefundAdjustment, _ int) decimal.Decimal { return adj.Amount })...)
		net := a.AllocatedAmount.Sub(done)
		if !net.IsPositive() {
			continue
		}
		take := billing.Min(net, remaining)
		adjustments = append(adjustments, entity.RefundAdjustment{
			TenantID:  r.TenantID,
			RefundID:  r.ID,
			PaymentID: payment.ID,
			InvoiceID: a.InvoiceID,
			Amount:    take,
			Date:      today,
		})
		remaining = remaining.Sub(take)
	}
	if remaining.IsPositive() {
		return nil, exceeds(r.Amount, r.Amount.Sub(remaining))
	}

	if err := s.Repos.Refunds.CreateAdjustments(ctx, adjustments); err != nil {
		return nil, err
	}

	invoices := make([]uuid.UUID, 0, len(adjustments))
	for _, adj := range adjustments {
		inv, err := s.payments.recon.reconcileLocked(ctx, adj.InvoiceID)
		if err != nil {
			return nil, err
		}
		if r.Type == enum.RefundCancellation && !inv.Status.IsSticky() {
			now := s.Clock.Now()
			inv.Status = enum.InvoiceRefunded
			inv.CancelledAt = &now
			if err := s.Repos.Invoices.Update(ctx, inv); err != nil {
				return nil, err
			}
		}
		for _, o := range s.payments.observers {
			if err := o.OnReversed(ctx, adj.InvoiceID, adj.Amount); err != nil {
				return nil, err
			}
		}
		invoices = append(invoices, adj.InvoiceID)
	}

	allocated := decimal.Sum(decimal.Zero, lo.Map(allocations, func(a entity.PaymentAllocation, _ int) decimal.Decimal { return a.AllocatedAmount })...)
	total := decimal.Sum(r.Amount, lo.Map(previous, func(a entity.RefundAdjustment, _ int) decimal.Decimal { return a.Amount })...)
	if allocated.IsPositive() && total.GreaterThanOrEqual(allocated) && payment.Status == enum.PaymentCompleted {
		payment.Status = enum.PaymentRefunded
		if err := s.Repos.Payments.Update(ctx, payment); err != nil {
			return nil, err
		}
	}
	return invoices, nil
}

// drawCredit pays an overpayment refund out of the unallocated part of the
// student's settled payments, newest payment first.
func (s *RefundService) drawCredit(ctx context.Context, r *entity.Refund, settled []entity.Payment) error {
	remaining := r.Amount
	var touched []*entity.Payment
	for _, candidate := range settled {
		if !remaining.IsPositive() {
			break
		}
		p, err := s.Repos.Payments.GetForUpdate(ctx, candidate.ID)
		if err != nil {
			return err
		}
		left, err := s.payments.available(ctx, p)
		if err != nil {
			return err
		}
		if !left.IsPositive() {
			continue
		}
		take := billing.Min(left, remaining)
		p.CreditRefunded = p.CreditRefunded.Add(take)
		touched = append(touched, p)
		remaining = remaining.Sub(take)
	}
	if remaining.IsPositive() {
		return exceeds(r.Amount, r.Amount.Sub(remaining))
	}
	for _, p := range touched {
		if err := s.Repos.Payments.Update(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

// Cancel withdraws a refund that has not been processed
func (s *RefundService) Cancel(ctx context.Context, id uuid.UUID) (*entity.Refund, error) {
	actor, err := actorFrom(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := s.loadRefund(ctx, actor, id); err != nil {
		return nil, err
	}

	var refund *entity.Refund
	err = s.guarded(ctx, []string{lock.RefundKey(id)}, func(ctx context.Context) error {
		r, err := s.Repos.Refunds.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if r.Status != enum.RefundPending && r.Status != enum.RefundApproved {
			return apperror.New(apperror.ErrInvalidTransition, "Only pending or approved refunds can be cancelled, refund is "+r.Status.String())
		}
		now := s.Clock.Now()
		r.Status = enum.RefundCancelled
		r.CancelledAt = &now
		refund = r
		return s.Repos.Refunds.Update(ctx, r)
	})
	if err != nil {
		return nil, err
	}
	return refund, nil
}

// Get returns a refund
func (s *RefundService) Get(ctx context.Context, id uuid.UUID) (*entity.Refund, error) {
	actor, err := actorFrom(ctx)
	if err != nil {
		return nil, err
	}
	return s.loadRefund(ctx, actor, id)
}

// List lists refunds with filters and pagination
func (s *RefundService) List(ctx context.Context, params *repository.RefundFilterParams) (*pagination.PaginatedResult[entity.Refund], error) {
	if _, err := actorFrom(ctx); err != nil {
		return nil, err
	}
	params.Pagination = page(params.Pagination)

	refunds, total, err := s.Repos.Refunds.List(ctx, params)
	if err != nil {
		return nil, err
	}
	return pagination.NewPaginatedResult(refunds, pagination.NewPagination(params.Pagination.Page, params.Pagination.PerPage, total)), nil
}
