package billing

import (
	"fmt"

	"github.com/sangkips/bursar-api/internal/domain/entity"
	"github.com/shopspring/decimal"
)

// CheckInvoice verifies the arithmetic relations between an invoice's money fields.
func CheckInvoice(inv *entity.Invoice) error {
	if want := inv.Subtotal.Sub(inv.Discount).Add(inv.Tax); !inv.Total.Equal(want) {
		return fmt.Errorf("invoice %s: total %s, want subtotal-discount+tax %s", inv.InvoiceNumber, inv.Total, want)
	}
	want := Max(decimal.Zero, inv.Total.Sub(inv.Paid).Add(inv.LateFee).Add(inv.Penalty))
	if !inv.Outstanding.Equal(want) {
		return fmt.Errorf("invoice %s: outstanding %s, want %s", inv.InvoiceNumber, inv.Outstanding, want)
	}
	for _, line := range inv.LineItems {
		if lt := line.Gross().Sub(line.DiscountAmount); !line.LineTotal.Equal(lt) {
			return fmt.Errorf("invoice %s line %s: total %s, want %s", inv.InvoiceNumber, line.Description, line.LineTotal, lt)
		}
	}
	return nil
}
