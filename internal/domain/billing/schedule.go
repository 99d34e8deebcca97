package billing

import (
	"errors"
	"time"

	"github.com/sangkips/bursar-api/internal/domain/enum"
	"github.com/shopspring/decimal"
)

var (
	// ErrNoInstallments is returned for a count below one.
	ErrNoInstallments = errors.New("installment count must be at least 1")
	// ErrZeroInstallment is returned when the per-installment amount rounds to zero.
	ErrZeroInstallment = errors.New("installment amount rounds to zero")
)

// ScheduledInstallment is one row of a generated plan.
type ScheduledInstallment struct {
	Number  int
	DueDate time.Time
	Amount  decimal.Decimal
}

// Schedule divides total into count installments. Every installment gets the
// total divided by count truncated to cents; the last one also takes the
// remainder, so the amounts add up to total exactly.
func Schedule(total decimal.Decimal, count int, firstDue time.Time, freq enum.PlanFrequency) ([]ScheduledInstallment, decimal.Decimal, error) {
	if count < 1 {
		return nil, decimal.Zero, ErrNoInstallments
	}
	per := total.Div(decimal.NewFromInt(int64(count))).RoundDown(AmountPlaces)
	if !per.IsPositive() {
		return nil, decimal.Zero, ErrZeroInstallment
	}

	out := make([]ScheduledInstallment, count)
	for i := 0; i < count; i++ {
		out[i] = ScheduledInstallment{
			Number:  i + 1,
			DueDate: NthDueDate(firstDue, freq, i),
			Amount:  per,
		}
	}
	remainder := total.Sub(per.Mul(decimal.NewFromInt(int64(count))))
	out[count-1].Amount = per.Add(remainder)
	return out, per, nil
}

// NthDueDate returns the due date of the installment n steps after first.
func NthDueDate(first time.Time, freq enum.PlanFrequency, n int) time.Time {
	switch freq {
	case enum.PlanWeekly:
		return first.AddDate(0, 0, 7*n)
	case enum.PlanQuarterly:
		return AddMonths(first, 3*n)
	default:
		return AddMonths(first, n)
	}
}
