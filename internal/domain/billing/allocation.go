package billing

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OpenInvoice is an invoice that can still take money.
type OpenInvoice struct {
	ID          uuid.UUID
	DueDate     time.Time
	Outstanding decimal.Decimal
}

// Portion is an amount destined for one invoice.
type Portion struct {
	InvoiceID uuid.UUID
	Amount    decimal.Decimal
}

// PlanAutoAllocation spreads available over invoices oldest due date first,
// filling each before moving on. Whatever is left over stays unallocated.
func PlanAutoAllocation(available decimal.Decimal, invoices []OpenInvoice) ([]Portion, decimal.Decimal) {
	ordered := make([]OpenInvoice, len(invoices))
	copy(ordered, invoices)
	sort.SliceStable(ordered, func(i, j int) bool {
		if !ordered[i].DueDate.Equal(ordered[j].DueDate) {
			return ordered[i].DueDate.Before(ordered[j].DueDate)
		}
		return ordered[i].ID.String() < ordered[j].ID.String()
	})

	var out []Portion
	remaining := available
	for _, inv := range ordered {
		if !remaining.IsPositive() {
			break
		}
		if !inv.Outstanding.IsPositive() {
			continue
		}
		take := Min(remaining, inv.Outstanding)
		out = append(out, Portion{InvoiceID: inv.ID, Amount: take})
		remaining = remaining.Sub(take)
	}
	return out, remaining
}

// SortIDs orders ids ascending; lock acquisition follows this order.
func SortIDs(ids []uuid.UUID) []uuid.UUID {
	out := make([]uuid.UUID, len(ids))
	copy(out, ids)
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}
