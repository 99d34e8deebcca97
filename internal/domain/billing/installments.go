package billing

import (
	"time"

	"github.com/sangkips/bursar-api/internal/domain/entity"
	"github.com/sangkips/bursar-api/internal/domain/enum"
	"github.com/shopspring/decimal"
)

// RefreshInstallment recomputes outstanding and the paid/pending status of an
// installment. Overdue and defaulted are kept while money is still owed.
func RefreshInstallment(in *entity.Installment, now time.Time) {
	in.Outstanding = Max(decimal.Zero, in.Amount.Sub(in.Paid).Add(in.LateFee))
	switch {
	case in.Outstanding.IsZero():
		if in.Status != enum.InstallmentPaid {
			paidAt := now
			in.PaidAt = &paidAt
		}
		in.Status = enum.InstallmentPaid
	case in.Status == enum.InstallmentPaid:
		in.Status = enum.InstallmentPending
		in.PaidAt = nil
	}
}

// PayInstallment applies up to amount to one installment and returns what is left.
func PayInstallment(in *entity.Installment, amount decimal.Decimal, now time.Time) decimal.Decimal {
	owed := Max(decimal.Zero, in.Amount.Sub(in.Paid).Add(in.LateFee))
	take := Min(owed, amount)
	in.Paid = in.Paid.Add(take)
	RefreshInstallment(in, now)
	return amount.Sub(take)
}

// ApplyOldestFirst spreads amount over installments in number order and returns
// the indexes it touched together with the unapplied rest.
func ApplyOldestFirst(installments []entity.Installment, amount decimal.Decimal, now time.Time) ([]int, decimal.Decimal) {
	var touched []int
	for i := range installments {
		if !amount.IsPositive() {
			break
		}
		if installments[i].Status == enum.InstallmentPaid {
			continue
		}
		before := amount
		amount = PayInstallment(&installments[i], amount, now)
		if !amount.Equal(before) {
			touched = append(touched, i)
		}
	}
	return touched, amount
}

// ReverseNewestFirst takes amount back out of installments, latest number first.
func ReverseNewestFirst(installments []entity.Installment, amount decimal.Decimal, now time.Time) ([]int, decimal.Decimal) {
	var touched []int
	for i := len(installments) - 1; i >= 0 && amount.IsPositive(); i-- {
		if !installments[i].Paid.IsPositive() {
			continue
		}
		take := Min(installments[i].Paid, amount)
		installments[i].Paid = installments[i].Paid.Sub(take)
		amount = amount.Sub(take)
		RefreshInstallment(&installments[i], now)
		touched = append(touched, i)
	}
	return touched, amount
}

// PlanSettled reports whether every installment is paid.
func PlanSettled(installments []entity.Installment) bool {
	for _, in := range installments {
		if in.Status != enum.InstallmentPaid {
			return false
		}
	}
	return len(installments) > 0
}
