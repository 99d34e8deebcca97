package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sangkips/bursar-api/internal/domain/enum"
	"github.com/sangkips/bursar-api/internal/domain/tenancy"
	"github.com/sangkips/bursar-api/pkg/apperror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateInvoice(t *testing.T) {
	t.Run("unpaid invoice before its due date is pending", func(t *testing.T) {
		f := newFixture(t)
		inv := f.invoice()

		assert.Equal(t, enum.InvoicePending, inv.Status)
		assert.True(t, inv.Total.Equal(dec("300")))
		assert.True(t, inv.Outstanding.Equal(dec("300")))
		assert.True(t, inv.Paid.IsZero())
		assert.Equal(t, "INV-2026-000001", inv.InvoiceNumber)
		assert.Equal(t, 3, inv.MaxInstallments)
		assert.Len(t, inv.LineItems, 1)
		assert.Equal(t, []enum.EventType{enum.EventInvoiceCreated}, f.events())
	})

	t.Run("numbers are sequential per tenant", func(t *testing.T) {
		f := newFixture(t)
		first := f.invoice()
		second := f.invoice()
		assert.Equal(t, "INV-2026-000001", first.InvoiceNumber)
		assert.Equal(t, "INV-2026-000002", second.InvoiceNumber)
	})

	t.Run("second invoice for the same period is rejected", func(t *testing.T) {
		f := newFixture(t)
		studentID := uuid.New()
		f.assign(studentID, f.structure)
		f.invoiceFor(studentID)

		_, err := f.Invoices.Generate(f.ctx, &GenerateInput{
			Period:      termOne(),
			InvoiceDate: date(2026, 1, 10),
			DueDate:     date(2026, 1, 20),
			StudentIDs:  []uuid.UUID{studentID},
		})
		assert.ErrorIs(t, err, apperror.ErrDuplicateInvoice)
	})

	t.Run("skip existing reports the student instead of failing", func(t *testing.T) {
		f := newFixture(t)
		billed, fresh := uuid.New(), uuid.New()
		f.assign(billed, f.structure)
		f.assign(fresh, f.structure)
		f.invoiceFor(billed)

		res, err := f.Invoices.Generate(f.ctx, &GenerateInput{
			Period:       termOne(),
			InvoiceDate:  date(2026, 1, 10),
			DueDate:      date(2026, 1, 20),
			StudentIDs:   []uuid.UUID{billed, fresh},
			SkipExisting: true,
		})
		require.NoError(t, err)
		require.Len(t, res.Invoices, 1)
		assert.Equal(t, fresh, res.Invoices[0].StudentID)
		require.Len(t, res.Skipped, 1)
		assert.Equal(t, billed, res.Skipped[0].StudentID)
	})

	t.Run("due date before invoice date is rejected", func(t *testing.T) {
		f := newFixture(t)
		studentID := uuid.New()
		f.assign(studentID, f.structure)
		_, err := f.Invoices.Generate(f.ctx, &GenerateInput{
			Period:      termOne(),
			InvoiceDate: date(2026, 1, 10),
			DueDate:     date(2026, 1, 5),
			StudentIDs:  []uuid.UUID{studentID},
		})
		assert.Error(t, err)
	})

	t.Run("percentage discount on the assignment", func(t *testing.T) {
		f := newFixture(t)
		studentID := uuid.New()
		_, err := f.Assignments.Assign(f.ctx, &AssignInput{StudentID: studentID, StructureID: f.structure.ID, DiscountPercent: dec("10")})
		require.NoError(t, err)

		inv := f.invoiceFor(studentID)
		assert.True(t, inv.Subtotal.Equal(dec("300")))
		assert.True(t, inv.Discount.Equal(dec("30")))
		assert.True(t, inv.Total.Equal(dec("270")))
	})

	t.Run("items of another frequency are not billed", func(t *testing.T) {
		f := newFixture(t)
		monthly := f.newStructure(FeeItemInput{Name: "Bus", BaseAmount: dec("40"), Frequency: enum.FrequencyMonthly})
		studentID := uuid.New()
		f.assign(studentID, monthly)

		res, err := f.Invoices.Generate(f.ctx, &GenerateInput{
			Period:      termOne(),
			InvoiceDate: date(2026, 1, 10),
			DueDate:     date(2026, 1, 20),
			StudentIDs:  []uuid.UUID{studentID},
		})
		require.NoError(t, err)
		assert.Empty(t, res.Invoices)
		assert.Len(t, res.Skipped, 1)
	})

	t.Run("other tenants cannot read the invoice", func(t *testing.T) {
		f := newFixture(t)
		inv := f.invoice()
		other := tenancy.WithActor(context.Background(), tenancy.Actor{TenantID: uuid.New(), UserID: uuid.New(), Role: tenancy.RoleBursar})

		_, err := f.Invoices.Get(other, inv.ID)
		assert.Error(t, err)
		assert.False(t, apperror.IsKind(err, apperror.KindInternal))
	})

	t.Run("named assignments must be active at the invoice date", func(t *testing.T) {
		f := newFixture(t)
		suspended := f.assign(uuid.New(), f.structure)
		_, err := f.Assignments.Suspend(f.ctx, suspended.ID)
		require.NoError(t, err)

		ended := date(2026, 1, 5)
		expired, err := f.Assignments.Assign(f.ctx, &AssignInput{StudentID: uuid.New(), StructureID: f.structure.ID, EffectiveTo: &ended})
		require.NoError(t, err)

		live := f.assign(uuid.New(), f.structure)

		for name, id := range map[string]uuid.UUID{"suspended": suspended.ID, "expired": expired.ID} {
			_, err := f.Invoices.Generate(f.ctx, &GenerateInput{
				Period:        termOne(),
				InvoiceDate:   date(2026, 1, 10),
				DueDate:       date(2026, 1, 20),
				AssignmentIDs: []uuid.UUID{live.ID, id},
			})
			assert.ErrorIs(t, err, apperror.ErrInvalidAssignment, name)
		}
		assert.Empty(t, f.events())
	})

	t.Run("calls without a tenant are rejected", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.Invoices.Generate(context.Background(), &GenerateInput{Period: termOne(), InvoiceDate: date(2026, 1, 10), DueDate: date(2026, 1, 20)})
		assert.Error(t, err)
	})
}

func TestInvoiceLifecycle(t *testing.T) {
	t.Run("draft is issued as sent", func(t *testing.T) {
		f := newFixture(t)
		studentID := uuid.New()
		f.assign(studentID, f.structure)
		res, err := f.Invoices.Generate(f.ctx, &GenerateInput{
			Period:      termOne(),
			InvoiceDate: date(2026, 1, 10),
			DueDate:     date(2026, 1, 20),
			StudentIDs:  []uuid.UUID{studentID},
			Draft:       true,
		})
		require.NoError(t, err)
		require.Len(t, res.Invoices, 1)
		assert.Equal(t, enum.InvoiceDraft, res.Invoices[0].Status)

		inv, err := f.Invoices.Issue(f.ctx, res.Invoices[0].ID)
		require.NoError(t, err)
		assert.Equal(t, enum.InvoiceSent, inv.Status)
		assert.NotNil(t, inv.IssuedAt)
	})

	t.Run("unpaid invoice can be cancelled once", func(t *testing.T) {
		f := newFixture(t)
		inv := f.invoice()

		cancelled, err := f.Invoices.Cancel(f.ctx, inv.ID)
		require.NoError(t, err)
		assert.Equal(t, enum.InvoiceCancelled, cancelled.Status)

		_, err = f.Invoices.Cancel(f.ctx, inv.ID)
		assert.Error(t, err)
	})

	t.Run("invoice with money on it cannot be cancelled", func(t *testing.T) {
		f := newFixture(t)
		inv := f.invoice()
		p := f.paid(inv.StudentID, "100")
		_, err := f.Payments.Allocate(f.ctx, p.ID, inv.ID, dec("100"))
		require.NoError(t, err)

		_, err = f.Invoices.Cancel(f.ctx, inv.ID)
		assert.ErrorIs(t, err, apperror.ErrConflict)
	})
}

func TestReconcileOverdue(t *testing.T) {
	f := newFixture(t)
	inv := f.invoice()
	p := f.paid(inv.StudentID, "100")
	_, err := f.Payments.Allocate(f.ctx, p.ID, inv.ID, dec("100"))
	require.NoError(t, err)

	// 20 days past due with 7 days of grace leaves 13 chargeable days.
	f.clock.Set(inv.DueDate.AddDate(0, 0, 20).Add(9 * time.Hour))
	got, err := f.Reconciliation.ReconcileInvoice(f.ctx, inv.ID)
	require.NoError(t, err)

	assert.Equal(t, enum.InvoiceOverdue, got.Status)
	assert.True(t, got.LateFeeApplied)
	assert.True(t, got.LateFee.Equal(dec("25")))
	assert.True(t, got.Penalty.Equal(dec("3.9")), got.Penalty.String())
	assert.True(t, got.Outstanding.Equal(dec("228.9")), got.Outstanding.String())

	t.Run("reconciling again on the same day changes nothing", func(t *testing.T) {
		again, err := f.Reconciliation.ReconcileInvoice(f.ctx, inv.ID)
		require.NoError(t, err)
		assert.True(t, again.Outstanding.Equal(got.Outstanding))
		assert.True(t, again.LateFee.Equal(dec("25")))
	})

	t.Run("overdue is announced once", func(t *testing.T) {
		overdue := 0
		for _, e := range f.events() {
			if e == enum.EventInvoiceOverdue {
				overdue++
			}
		}
		assert.Equal(t, 1, overdue)
	})
}

func TestSweep(t *testing.T) {
	f := newFixture(t)
	first := f.invoice()
	second := f.invoice()

	f.clock.Set(date(2026, 2, 1))
	report, err := f.Reconciliation.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Tenants)
	assert.EqualValues(t, 2, report.Invoices)
	assert.EqualValues(t, 2, report.Changed)
	assert.Zero(t, report.Failures)

	for _, id := range []uuid.UUID{first.ID, second.ID} {
		assert.Equal(t, enum.InvoiceOverdue, f.reload(id).Status)
	}
}
