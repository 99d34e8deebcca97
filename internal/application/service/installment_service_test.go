package service

import (
	"context"
	"testing"

	"github.com/sangkips/bursar-api/internal/domain/entity"
	"github.com/sangkips/bursar-api/internal/domain/enum"
	"github.com/sangkips/bursar-api/pkg/apperror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (f *fixture) plan(inv *entity.Invoice, count int) *entity.PaymentPlan {
	f.t.Helper()
	plan, err := f.Installments.CreatePlan(f.ctx, inv.ID, &CreatePlanInput{
		InstallmentCount: count,
		FirstDueDate:     date(2026, 1, 20),
		Frequency:        enum.PlanMonthly,
	})
	require.NoError(f.t, err)
	require.Len(f.t, plan.Installments, count)
	return plan
}

func TestCreatePlan(t *testing.T) {
	t.Run("splits the balance evenly", func(t *testing.T) {
		f := newFixture(t)
		plan := f.plan(f.invoice(), 3)

		assert.Equal(t, enum.PlanActive, plan.Status)
		assert.True(t, plan.TotalAmount.Equal(dec("300")))
		for i, in := range plan.Installments {
			assert.Equal(t, i+1, in.Number)
			assert.True(t, in.Amount.Equal(dec("100")))
			assert.Equal(t, enum.InstallmentPending, in.Status)
		}
		assert.Equal(t, date(2026, 2, 20), plan.Installments[1].DueDate)
	})

	t.Run("one plan per invoice", func(t *testing.T) {
		f := newFixture(t)
		inv := f.invoice()
		f.plan(inv, 2)

		_, err := f.Installments.CreatePlan(f.ctx, inv.ID, &CreatePlanInput{InstallmentCount: 2, FirstDueDate: date(2026, 1, 20), Frequency: enum.PlanMonthly})
		assert.ErrorIs(t, err, apperror.ErrPlanAlreadyExists)
	})

	t.Run("count beyond the fee item limit", func(t *testing.T) {
		f := newFixture(t)
		inv := f.invoice()
		_, err := f.Installments.CreatePlan(f.ctx, inv.ID, &CreatePlanInput{InstallmentCount: 4, FirstDueDate: date(2026, 1, 20), Frequency: enum.PlanMonthly})
		assert.ErrorIs(t, err, apperror.ErrInvalidSchedule)
	})

	t.Run("only the unpaid balance is scheduled", func(t *testing.T) {
		f := newFixture(t)
		inv := f.invoice()
		p := f.paid(inv.StudentID, "90")
		_, err := f.Payments.Allocate(f.ctx, p.ID, inv.ID, dec("90"))
		require.NoError(t, err)

		plan := f.plan(inv, 3)
		assert.True(t, plan.TotalAmount.Equal(dec("210")))
		assert.True(t, plan.Installments[0].Amount.Equal(dec("70")))
	})
}

func TestPayInstallment(t *testing.T) {
	f := newFixture(t)
	inv := f.invoice()
	plan := f.plan(inv, 3)
	p := f.paid(inv.StudentID, "100")

	got, err := f.Installments.PayInstallment(f.ctx, plan.Installments[0].ID, &PayInstallmentInput{PaymentID: p.ID, Amount: dec("100")})
	require.NoError(t, err)

	assert.Equal(t, enum.InstallmentPaid, got.Installments[0].Status)
	assert.NotNil(t, got.Installments[0].PaidAt)
	assert.Equal(t, enum.InstallmentPending, got.Installments[1].Status)
	assert.True(t, f.reload(inv.ID).Outstanding.Equal(dec("200")))

	t.Run("paid installment cannot be paid again", func(t *testing.T) {
		extra := f.paid(inv.StudentID, "100")
		_, err := f.Installments.PayInstallment(f.ctx, plan.Installments[0].ID, &PayInstallmentInput{PaymentID: extra.ID, Amount: dec("100")})
		assert.ErrorIs(t, err, apperror.ErrConflict)
	})

	t.Run("direct allocations settle installments oldest first", func(t *testing.T) {
		rest := f.paid(inv.StudentID, "200")
		_, err := f.Payments.Allocate(f.ctx, rest.ID, inv.ID, dec("200"))
		require.NoError(t, err)

		settled, err := f.Installments.GetPlan(f.ctx, plan.ID)
		require.NoError(t, err)
		assert.Equal(t, enum.PlanCompleted, settled.Status)
		for _, in := range settled.Installments {
			assert.Equal(t, enum.InstallmentPaid, in.Status)
		}
		assert.Equal(t, enum.InvoicePaid, f.reload(inv.ID).Status)
	})
}

func TestPlanStatusChanges(t *testing.T) {
	f := newFixture(t)
	inv := f.invoice()
	plan := f.plan(inv, 3)

	f.clock.Set(date(2026, 1, 25))
	_, err := f.Reconciliation.Sweep(context.Background())
	require.NoError(t, err)
	swept, err := f.Installments.GetPlan(f.ctx, plan.ID)
	require.NoError(t, err)
	assert.Equal(t, enum.InstallmentOverdue, swept.Installments[0].Status)

	defaulted, err := f.Installments.MarkDefaulted(f.ctx, plan.ID)
	require.NoError(t, err)
	assert.Equal(t, enum.PlanDefaulted, defaulted.Status)
	assert.Equal(t, enum.InstallmentDefaulted, defaulted.Installments[0].Status)

	_, err = f.Installments.MarkDefaulted(f.ctx, plan.ID)
	assert.ErrorIs(t, err, apperror.ErrInvalidTransition)

	cancelled, err := f.Installments.CancelPlan(f.ctx, plan.ID)
	require.NoError(t, err)
	assert.Equal(t, enum.PlanCancelled, cancelled.Status)
}
