package billing

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sangkips/bursar-api/internal/domain/entity"
	"github.com/sangkips/bursar-api/internal/domain/enum"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchedule(t *testing.T) {
	t.Run("even split", func(t *testing.T) {
		rows, per, err := Schedule(dec("300"), 3, date(2026, 1, 31), enum.PlanMonthly)

		require.NoError(t, err)
		require.Len(t, rows, 3)
		assert.True(t, per.Equal(dec("100")))
		for _, r := range rows {
			assert.True(t, r.Amount.Equal(dec("100")))
		}
		assert.Equal(t, date(2026, 2, 28), rows[1].DueDate)
		assert.Equal(t, date(2026, 3, 31), rows[2].DueDate)
	})

	t.Run("remainder goes to the last installment", func(t *testing.T) {
		rows, _, err := Schedule(dec("100"), 3, date(2026, 1, 5), enum.PlanWeekly)

		require.NoError(t, err)
		assert.True(t, rows[0].Amount.Equal(dec("33.33")))
		assert.True(t, rows[2].Amount.Equal(dec("33.34")))
		assert.Equal(t, date(2026, 1, 19), rows[2].DueDate)

		sum := decimal.Zero
		for _, r := range rows {
			sum = sum.Add(r.Amount)
		}
		assert.True(t, sum.Equal(dec("100")))
	})

	t.Run("quarterly dates", func(t *testing.T) {
		rows, _, err := Schedule(dec("90"), 2, date(2026, 1, 15), enum.PlanQuarterly)

		require.NoError(t, err)
		assert.Equal(t, date(2026, 4, 15), rows[1].DueDate)
	})

	t.Run("invalid counts", func(t *testing.T) {
		_, _, err := Schedule(dec("100"), 0, date(2026, 1, 5), enum.PlanWeekly)
		assert.ErrorIs(t, err, ErrNoInstallments)

		_, _, err = Schedule(dec("0.02"), 3, date(2026, 1, 5), enum.PlanWeekly)
		assert.ErrorIs(t, err, ErrZeroInstallment)
	})
}

func installmentsOf(amounts ...string) []entity.Installment {
	out := make([]entity.Installment, len(amounts))
	for i, a := range amounts {
		out[i] = entity.Installment{
			Number:      i + 1,
			Amount:      dec(a),
			Paid:        decimal.Zero,
			LateFee:     decimal.Zero,
			Outstanding: dec(a),
			Status:      enum.InstallmentPending,
		}
	}
	return out
}

func TestInstallmentApplication(t *testing.T) {
	now := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)

	t.Run("oldest first", func(t *testing.T) {
		ins := installmentsOf("100", "100", "100")

		touched, rest := ApplyOldestFirst(ins, dec("150"), now)

		assert.Equal(t, []int{0, 1}, touched)
		assert.True(t, rest.IsZero())
		assert.Equal(t, enum.InstallmentPaid, ins[0].Status)
		assert.NotNil(t, ins[0].PaidAt)
		assert.True(t, ins[1].Outstanding.Equal(dec("50")))
		assert.Equal(t, enum.InstallmentPending, ins[1].Status)
	})

	t.Run("overflow is returned", func(t *testing.T) {
		ins := installmentsOf("100")

		_, rest := ApplyOldestFirst(ins, dec("130"), now)

		assert.True(t, rest.Equal(dec("30")))
		assert.True(t, PlanSettled(ins))
	})

	t.Run("reversal newest first reopens installments", func(t *testing.T) {
		ins := installmentsOf("100", "100", "100")
		ApplyOldestFirst(ins, dec("250"), now)

		touched, rest := ReverseNewestFirst(ins, dec("80"), now)

		assert.Equal(t, []int{2, 1}, touched)
		assert.True(t, rest.IsZero())
		assert.True(t, ins[2].Paid.IsZero())
		assert.True(t, ins[1].Paid.Equal(dec("70")))
		assert.Equal(t, enum.InstallmentPending, ins[1].Status)
		assert.Nil(t, ins[1].PaidAt)
		assert.False(t, PlanSettled(ins))
	})
}

func TestPlanAutoAllocation(t *testing.T) {
	a, b, c := uuid.New(), uuid.New(), uuid.New()
	open := []OpenInvoice{
		{ID: a, DueDate: date(2026, 3, 1), Outstanding: dec("100")},
		{ID: b, DueDate: date(2026, 1, 1), Outstanding: dec("50")},
		{ID: c, DueDate: date(2026, 2, 1), Outstanding: dec("80")},
	}

	t.Run("fills oldest invoices first", func(t *testing.T) {
		portions, rest := PlanAutoAllocation(dec("100"), open)

		require.Len(t, portions, 2)
		assert.Equal(t, b, portions[0].InvoiceID)
		assert.True(t, portions[0].Amount.Equal(dec("50")))
		assert.Equal(t, c, portions[1].InvoiceID)
		assert.True(t, portions[1].Amount.Equal(dec("50")))
		assert.True(t, rest.IsZero())
	})

	t.Run("excess stays as credit", func(t *testing.T) {
		portions, rest := PlanAutoAllocation(dec("300"), open)

		assert.Len(t, portions, 3)
		assert.True(t, rest.Equal(dec("70")))
	})
}

func TestDiscounts(t *testing.T) {
	t.Run("percent plus fixed capped at gross", func(t *testing.T) {
		assert.True(t, AssignmentDiscount(dec("1000"), dec("10"), dec("50")).Equal(dec("150")))
		assert.True(t, AssignmentDiscount(dec("100"), dec("50"), dec("80")).Equal(dec("100")))
		assert.True(t, AssignmentDiscount(decimal.Zero, dec("50"), dec("80")).IsZero())
	})

	t.Run("spread sums to the discount", func(t *testing.T) {
		grosses := []decimal.Decimal{dec("100"), dec("100"), dec("100")}

		shares := SpreadDiscount(grosses, dec("100"))

		sum := decimal.Zero
		for _, s := range shares {
			sum = sum.Add(s)
		}
		assert.True(t, sum.Equal(dec("100")))
		assert.True(t, shares[0].Equal(dec("33.34")))
		assert.True(t, shares[1].Equal(dec("33.33")))
	})

	t.Run("proportional to line gross", func(t *testing.T) {
		shares := SpreadDiscount([]decimal.Decimal{dec("300"), dec("100")}, dec("40"))

		assert.True(t, shares[0].Equal(dec("30")))
		assert.True(t, shares[1].Equal(dec("10")))
	})
}
