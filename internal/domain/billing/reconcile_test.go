package billing

import (
	"testing"
	"time"

	"github.com/sangkips/bursar-api/internal/domain/entity"
	"github.com/sangkips/bursar-api/internal/domain/enum"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func baseState() State {
	return State{
		Status:  enum.InvoicePending,
		Total:   dec("300"),
		DueDate: date(2026, 3, 10),
		Policy: Policy{
			LateFeeAmount:    dec("25"),
			GraceDays:        7,
			DailyPenaltyRate: dec("0.001"),
		},
		LateFee:   decimal.Zero,
		Penalty:   decimal.Zero,
		Allocated: decimal.Zero,
		Reversed:  decimal.Zero,
	}
}

func TestReconcile(t *testing.T) {
	t.Run("unpaid invoice before due date is pending", func(t *testing.T) {
		r := Reconcile(baseState(), date(2026, 2, 28))

		assert.Equal(t, enum.InvoicePending, r.Status)
		assert.True(t, r.Outstanding.Equal(dec("300")))
		assert.True(t, r.Paid.IsZero())
		assert.False(t, r.LateFeeApplied)
	})

	t.Run("fully allocated invoice is paid", func(t *testing.T) {
		s := baseState()
		s.Allocated = dec("300")

		r := Reconcile(s, date(2026, 2, 28))

		assert.Equal(t, enum.InvoicePaid, r.Status)
		assert.True(t, r.Outstanding.IsZero())
	})

	t.Run("late fee and penalty after grace period", func(t *testing.T) {
		s := baseState()
		s.Allocated = dec("100")

		r := Reconcile(s, date(2026, 3, 30)) // 20 days past due, grace 7

		assert.Equal(t, enum.InvoiceOverdue, r.Status)
		assert.True(t, r.LateFeeApplied)
		assert.True(t, r.LateFee.Equal(dec("25")))
		assert.True(t, r.Penalty.Equal(dec("3.9")), "penalty %s", r.Penalty)
		assert.True(t, r.Outstanding.Equal(dec("228.9")), "outstanding %s", r.Outstanding)
	})

	t.Run("late fee is applied only once", func(t *testing.T) {
		s := baseState()
		first := Reconcile(s, date(2026, 3, 30))

		s.LateFee, s.LateFeeApplied, s.Penalty = first.LateFee, first.LateFeeApplied, first.Penalty
		second := Reconcile(s, date(2026, 4, 2))

		assert.True(t, second.LateFee.Equal(dec("25")))
		assert.True(t, second.Penalty.GreaterThan(first.Penalty))
	})

	t.Run("within grace period only status changes", func(t *testing.T) {
		r := Reconcile(baseState(), date(2026, 3, 15))

		assert.Equal(t, enum.InvoiceOverdue, r.Status)
		assert.False(t, r.LateFeeApplied)
		assert.True(t, r.Penalty.IsZero())
		assert.True(t, r.Outstanding.Equal(dec("300")))
	})

	t.Run("partial payment before due date", func(t *testing.T) {
		s := baseState()
		s.Allocated = dec("120")

		r := Reconcile(s, date(2026, 3, 1))

		assert.Equal(t, enum.InvoicePartial, r.Status)
		assert.True(t, r.Outstanding.Equal(dec("180")))
	})

	t.Run("refund adjustment reopens a paid invoice", func(t *testing.T) {
		s := baseState()
		s.Status = enum.InvoicePaid
		s.Allocated = dec("300")
		s.Reversed = dec("50")

		r := Reconcile(s, date(2026, 3, 1))

		assert.True(t, r.Paid.Equal(dec("250")))
		assert.Equal(t, enum.InvoicePartial, r.Status)
		assert.True(t, r.Outstanding.Equal(dec("50")))
	})

	t.Run("issued invoice keeps sent while nothing is paid", func(t *testing.T) {
		s := baseState()
		s.Status = enum.InvoiceSent

		r := Reconcile(s, date(2026, 3, 1))

		assert.Equal(t, enum.InvoiceSent, r.Status)
	})

	t.Run("sticky statuses are not recomputed", func(t *testing.T) {
		for _, st := range []enum.InvoiceStatus{enum.InvoiceDraft, enum.InvoiceCancelled, enum.InvoiceRefunded} {
			s := baseState()
			s.Status = st
			s.Allocated = dec("300")

			r := Reconcile(s, date(2026, 5, 1))

			assert.True(t, r.Skipped, st)
			assert.Equal(t, st, r.Status)
			assert.False(t, r.LateFeeApplied, st)
		}
	})

	t.Run("penalty freezes once principal is paid", func(t *testing.T) {
		s := baseState()
		s.Allocated = dec("100")
		late := Reconcile(s, date(2026, 3, 30))

		s.LateFee, s.LateFeeApplied, s.Penalty = late.LateFee, late.LateFeeApplied, late.Penalty
		s.Allocated = dec("300")
		r := Reconcile(s, date(2026, 4, 20))

		assert.True(t, r.Penalty.Equal(late.Penalty))
		assert.True(t, r.Outstanding.Equal(dec("28.9")))
		assert.Equal(t, enum.InvoiceOverdue, r.Status)
	})

	t.Run("penalty never decreases", func(t *testing.T) {
		s := baseState()
		s.Penalty = dec("10")
		s.LateFeeApplied = true
		s.LateFee = dec("25")

		r := Reconcile(s, date(2026, 3, 20))

		assert.True(t, r.Penalty.Equal(dec("10")))
	})
}

func TestReconcileIsIdempotent(t *testing.T) {
	s := baseState()
	s.Allocated = dec("40")
	today := date(2026, 4, 11)

	first := Reconcile(s, today)
	s.LateFee, s.LateFeeApplied, s.Penalty, s.Status = first.LateFee, first.LateFeeApplied, first.Penalty, first.Status
	second := Reconcile(s, today)

	assert.Equal(t, first.Status, second.Status)
	assert.Equal(t, first.LateFeeApplied, second.LateFeeApplied)
	for name, pair := range map[string][2]decimal.Decimal{
		"paid":        {first.Paid, second.Paid},
		"late fee":    {first.LateFee, second.LateFee},
		"penalty":     {first.Penalty, second.Penalty},
		"outstanding": {first.Outstanding, second.Outstanding},
	} {
		assert.True(t, pair[0].Equal(pair[1]), "%s: %s != %s", name, pair[0], pair[1])
	}
}

func TestApplyKeepsInvariants(t *testing.T) {
	inv := &entity.Invoice{
		InvoiceNumber:    "INV-2026-000001",
		Status:           enum.InvoicePending,
		Subtotal:         dec("350"),
		Discount:         dec("50"),
		Tax:              decimal.Zero,
		Total:            dec("300"),
		DueDate:          date(2026, 3, 10),
		LateFeeAmount:    dec("25"),
		GraceDays:        7,
		DailyPenaltyRate: dec("0.001"),
	}

	changed := Apply(inv, Reconcile(StateOf(inv, dec("100"), decimal.Zero), date(2026, 3, 30)))

	assert.True(t, changed)
	require.NoError(t, CheckInvoice(inv))
	assert.False(t, Apply(inv, Reconcile(StateOf(inv, dec("100"), decimal.Zero), date(2026, 3, 30))))
}

func TestPolicyFromItems(t *testing.T) {
	p := PolicyFromItems([]entity.FeeItem{
		{LateFeeAmount: dec("10"), GraceDays: 14, DailyPenaltyRate: dec("0.0005")},
		{LateFeeAmount: dec("5"), GraceDays: 7, DailyPenaltyRate: dec("0.001")},
	})

	assert.True(t, p.LateFeeAmount.Equal(dec("15")))
	assert.Equal(t, 7, p.GraceDays)
	assert.True(t, p.DailyPenaltyRate.Equal(dec("0.001")))
}
