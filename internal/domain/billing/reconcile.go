package billing

import (
	"time"

	"github.com/sangkips/bursar-api/internal/domain/entity"
	"github.com/sangkips/bursar-api/internal/domain/enum"
	"github.com/shopspring/decimal"
)

// Policy is the late-fee and penalty rule captured on an invoice at generation.
type Policy struct {
	LateFeeAmount    decimal.Decimal
	GraceDays        int
	DailyPenaltyRate decimal.Decimal
}

// PolicyFromItems combines the policies of the billed fee items: late fees add
// up, the shortest grace period and the highest daily rate win.
func PolicyFromItems(items []entity.FeeItem) Policy {
	p := Policy{LateFeeAmount: decimal.Zero, DailyPenaltyRate: decimal.Zero}
	for i, item := range items {
		p.LateFeeAmount = p.LateFeeAmount.Add(item.LateFeeAmount)
		if i == 0 || item.GraceDays < p.GraceDays {
			p.GraceDays = item.GraceDays
		}
		p.DailyPenaltyRate = Max(p.DailyPenaltyRate, item.DailyPenaltyRate)
	}
	return p
}

// State is everything reconciliation needs to know about an invoice.
type State struct {
	Status         enum.InvoiceStatus
	Total          decimal.Decimal
	DueDate        time.Time
	Policy         Policy
	LateFee        decimal.Decimal
	LateFeeApplied bool
	Penalty        decimal.Decimal
	// Allocated is the sum of allocations from completed or refunded payments.
	Allocated decimal.Decimal
	// Reversed is the sum of processed refund adjustments on the invoice.
	Reversed decimal.Decimal
}

// StateOf builds the reconciliation input from a stored invoice.
func StateOf(inv *entity.Invoice, allocated, reversed decimal.Decimal) State {
	return State{
		Status:  inv.Status,
		Total:   inv.Total,
		DueDate: inv.DueDate,
		Policy: Policy{
			LateFeeAmount:    inv.LateFeeAmount,
			GraceDays:        inv.GraceDays,
			DailyPenaltyRate: inv.DailyPenaltyRate,
		},
		LateFee:        inv.LateFee,
		LateFeeApplied: inv.LateFeeApplied,
		Penalty:        inv.Penalty,
		Allocated:      allocated,
		Reversed:       reversed,
	}
}

// Result holds the derived money fields of an invoice.
type Result struct {
	Paid           decimal.Decimal
	LateFee        decimal.Decimal
	LateFeeApplied bool
	Penalty        decimal.Decimal
	Outstanding    decimal.Decimal
	Status         enum.InvoiceStatus
	// Skipped is set when the status is sticky and nothing was recomputed.
	Skipped bool
}

// Reconcile derives paid, fees, outstanding and status for today. It is a pure
// function: the same state and day always give the same result, and feeding a
// result back in as state changes nothing.
//
// Penalty accrues on the original total, never decreases, and stops growing
// once the principal is fully paid.
func Reconcile(s State, today time.Time) Result {
	if s.Status.IsSticky() {
		paid := Max(decimal.Zero, s.Allocated.Sub(s.Reversed))
		return Result{
			Paid:           paid,
			LateFee:        s.LateFee,
			LateFeeApplied: s.LateFeeApplied,
			Penalty:        s.Penalty,
			Outstanding:    Max(decimal.Zero, s.Total.Sub(paid).Add(s.LateFee).Add(s.Penalty)),
			Status:         s.Status,
			Skipped:        true,
		}
	}

	paid := Max(decimal.Zero, s.Allocated.Sub(s.Reversed))
	principal := s.Total.Sub(paid)

	daysPastDue := DaysBetween(s.DueDate, today)
	chargeable := daysPastDue - s.Policy.GraceDays

	lateFee, applied := s.LateFee, s.LateFeeApplied
	if !applied && chargeable > 0 && principal.IsPositive() {
		lateFee = lateFee.Add(s.Policy.LateFeeAmount)
		applied = true
	}

	penalty := s.Penalty
	if principal.IsPositive() && chargeable > 0 {
		accrued := Cents(s.Policy.DailyPenaltyRate.Mul(s.Total).Mul(decimal.NewFromInt(int64(chargeable))))
		penalty = Max(penalty, accrued)
	}

	outstanding := Max(decimal.Zero, principal.Add(lateFee).Add(penalty))

	var status enum.InvoiceStatus
	switch {
	case outstanding.IsZero():
		status = enum.InvoicePaid
	case daysPastDue > 0:
		status = enum.InvoiceOverdue
	case paid.IsPositive():
		status = enum.InvoicePartial
	case s.Status == enum.InvoiceSent:
		status = enum.InvoiceSent
	default:
		status = enum.InvoicePending
	}

	return Result{
		Paid:           paid,
		LateFee:        lateFee,
		LateFeeApplied: applied,
		Penalty:        penalty,
		Outstanding:    outstanding,
		Status:         status,
	}
}

// Apply copies a result onto the invoice. It reports whether anything changed.
func Apply(inv *entity.Invoice, r Result) bool {
	if r.Skipped {
		return false
	}
	changed := !inv.Paid.Equal(r.Paid) ||
		!inv.LateFee.Equal(r.LateFee) ||
		inv.LateFeeApplied != r.LateFeeApplied ||
		!inv.Penalty.Equal(r.Penalty) ||
		!inv.Outstanding.Equal(r.Outstanding) ||
		inv.Status != r.Status

	inv.Paid = r.Paid
	inv.LateFee = r.LateFee
	inv.LateFeeApplied = r.LateFeeApplied
	inv.Penalty = r.Penalty
	inv.Outstanding = r.Outstanding
	inv.Status = r.Status
	return changed
}
