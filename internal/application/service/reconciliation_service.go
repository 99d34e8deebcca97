package service

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/sangkips/bursar-api/internal/domain/billing"
	"github.com/sangkips/bursar-api/internal/domain/entity"
	"github.com/sangkips/bursar-api/internal/domain/enum"
	"github.com/sangkips/bursar-api/internal/domain/tenancy"
	"github.com/sangkips/bursar-api/internal/infrastructure/lock"
	"github.com/sangkips/bursar-api/pkg/apperror"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ReconciliationService is the only writer of an invoice's paid, late fee,
// penalty, outstanding and status fields.
type ReconciliationService struct {
	*Core
}

// NewReconciliationService creates a new reconciliation service
func NewReconciliationService(core *Core) *ReconciliationService {
	return &ReconciliationService{Core: core}
}

// SweepReport counts what a sweep did.
type SweepReport struct {
	Day                 time.Time `json:"day"`
	Tenants             int       `json:"tenants"`
	Invoices            int64     `json:"invoices"`
	Changed             int64     `json:"changed"`
	OverdueInstallments int64     `json:"overdue_installments"`
	Failures            int64     `json:"failures"`
}

// ReconcileInvoice recomputes one invoice under its lock
func (s *ReconciliationService) ReconcileInvoice(ctx context.Context, id uuid.UUID) (*entity.Invoice, error) {
	actor, err := actorFrom(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := s.loadInvoice(ctx, actor, id); err != nil {
		return nil, err
	}

	err = s.guarded(ctx, []string{lock.InvoiceKey(id)}, func(ctx context.Context) error {
		_, err := s.reconcileLocked(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return s.Repos.Invoices.GetByID(ctx, id)
}

// reconcileLocked recomputes and stores an invoice. The caller holds the
// invoice lock and an open transaction.
func (s *ReconciliationService) reconcileLocked(ctx context.Context, id uuid.UUID) (*entity.Invoice, error) {
	inv, err := s.Repos.Invoices.GetForUpdate(ctx, id)
	if err != nil {
		return nil, err
	}
	if inv == nil {
		return nil, apperror.NewNotFoundError("Invoice")
	}
	if inv.Status.IsSticky() {
		return inv, nil
	}

	allocated, err := s.Repos.Allocations.SumSettledByInvoice(ctx, id)
	if err != nil {
		return nil, err
	}
	reversed, err := s.Repos.Refunds.SumAdjustmentsByInvoice(ctx, id)
	if err != nil {
		return nil, err
	}

	previous := inv.Status
	result := billing.Reconcile(billing.StateOf(inv, allocated, reversed), s.today())
	if !billing.Apply(inv, result) {
		return inv, nil
	}
	if err := billing.CheckInvoice(inv); err != nil {
		return nil, fmt.Errorf("reconcile: %w", err)
	}

	now := s.Clock.Now()
	inv.LastReconciledAt = &now
	if err := s.Repos.Invoices.Update(ctx, inv); err != nil {
		return nil, err
	}

	if previous != enum.InvoiceOverdue && inv.Status == enum.InvoiceOverdue {
		err := s.record(ctx, inv.TenantID, enum.EventInvoiceOverdue, "invoice", inv.ID, map[string]interface{}{
			"invoice_number": inv.InvoiceNumber,
			"student_id":     inv.StudentID,
			"due_date":       inv.DueDate.Format("2006-01-02"),
			"outstanding":    inv.Outstanding,
		})
		if err != nil {
			return nil, err
		}
	}
	return inv, nil
}

// Sweep reconciles every open invoice of every tenant and marks unpaid
// installments past their due date overdue. Tenants run in parallel up to the
// configured limit; a failing invoice is logged and counted, not fatal.
func (s *ReconciliationService) Sweep(ctx context.Context) (*SweepReport, error) {
	today := s.today()
	tenants, err := s.Repos.Invoices.ListTenantIDs(tenancy.WithSkipTenantScope(ctx))
	if err != nil {
		return nil, err
	}

	report := &SweepReport{Day: today, Tenants: len(tenants)}
	var invoices, changed, overdue, failures atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, s.Billing.SweepConcurrency))
	for _, tenantID := range tenants {
		g.Go(func() error {
			tctx := tenancy.WithSystemActor(gctx, tenantID)
			n, c, f, err := s.sweepInvoices(tctx)
			invoices.Add(n)
			changed.Add(c)
			failures.Add(f)
			if err != nil {
				return err
			}
			marked, err := s.markOverdueInstallments(tctx, today)
			overdue.Add(marked)
			return err
		})
	}
	err = g.Wait()

	report.Invoices = invoices.Load()
	report.Changed = changed.Load()
	report.OverdueInstallments = overdue.Load()
	report.Failures = failures.Load()
	s.Log.Info("reconciliation sweep finished",
		zap.Time("day", today),
		zap.Int("tenants", report.Tenants),
		zap.Int64("invoices", report.Invoices),
		zap.Int64("changed", report.Changed),
		zap.Int64("overdue_installments", report.OverdueInstallments),
		zap.Int64("failures", report.Failures),
	)
	return report, err
}

func (s *ReconciliationService) sweepInvoices(ctx context.Context) (n, changed, failed int64, err error) {
	open, err := s.Repos.Invoices.ListOpen(ctx)
	if err != nil {
		return 0, 0, 0, err
	}
	for _, inv := range open {
		if err := ctx.Err(); err != nil {
			return n, changed, failed, err
		}
		n++
		before := inv.Status
		beforeOutstanding := inv.Outstanding
		var after *entity.Invoice
		err := s.guarded(ctx, []string{lock.InvoiceKey(inv.ID)}, func(ctx context.Context) error {
			var err error
			after, err = s.reconcileLocked(ctx, inv.ID)
			return err
		})
		if err != nil {
			failed++
			s.Log.Warn("sweep could not reconcile invoice", zap.String("invoice_id", inv.ID.String()), zap.Error(err))
			continue
		}
		if after.Status != before || !after.Outstanding.Equal(beforeOutstanding) {
			changed++
		}
	}
	return n, changed, failed, nil
}

// markOverdueInstallments flags pending installments of active plans whose due
// date has passed. Each plan is updated under its invoice's lock.
func (s *ReconciliationService) markOverdueInstallments(ctx context.Context, today time.Time) (int64, error) {
	due, err := s.Repos.Plans.ListPastDue(ctx, today)
	if err != nil {
		return 0, err
	}

	var marked int64
	for planID := range lo.GroupBy(due, func(in entity.Installment) uuid.UUID { return in.PlanID }) {
		plan, err := s.Repos.Plans.GetByID(ctx, planID)
		if err != nil {
			return marked, err
		}
		if plan == nil {
			continue
		}
		var count int64
		err = s.guarded(ctx, []string{lock.InvoiceKey(plan.InvoiceID)}, func(ctx context.Context) error {
			count = 0
			current, err := s.Repos.Plans.GetByID(ctx, planID)
			if err != nil || current == nil || current.Status != enum.PlanActive {
				return err
			}
			var changed []entity.Installment
			for _, in := range current.Installments {
				if in.Status == enum.InstallmentPending && in.DueDate.Before(today) {
					in.Status = enum.InstallmentOverdue
					changed = append(changed, in)
				}
			}
			if len(changed) == 0 {
				return nil
			}
			count = int64(len(changed))
			return s.Repos.Plans.UpdateInstallments(ctx, changed)
		})
		if err != nil {
			s.Log.Warn("sweep could not update installments", zap.String("plan_id", planID.String()), zap.Error(err))
			continue
		}
		marked += count
	}
	return marked, nil
}
