package billing

import (
	"github.com/shopspring/decimal"
)

// AssignmentDiscount returns the discount an assignment gives on gross: the
// percentage of gross plus the fixed amount, never more than gross.
func AssignmentDiscount(gross, percent, fixed decimal.Decimal) decimal.Decimal {
	if !gross.IsPositive() {
		return decimal.Zero
	}
	d := Cents(gross.Mul(percent).Div(hundred)).Add(fixed)
	return Min(Max(d, decimal.Zero), gross)
}

// SpreadDiscount splits discount across lines in proportion to their gross.
// Shares are truncated to cents and the remainder goes to the largest line, so
// the shares always add up to discount exactly.
func SpreadDiscount(grosses []decimal.Decimal, discount decimal.Decimal) []decimal.Decimal {
	shares := make([]decimal.Decimal, len(grosses))
	total := decimal.Zero
	largest := -1
	for i, g := range grosses {
		shares[i] = decimal.Zero
		total = total.Add(g)
		if largest < 0 || g.GreaterThan(grosses[largest]) {
			largest = i
		}
	}
	if !total.IsPositive() || !discount.IsPositive() {
		return shares
	}

	given := decimal.Zero
	for i, g := range grosses {
		shares[i] = discount.Mul(g).Div(total).RoundDown(AmountPlaces)
		given = given.Add(shares[i])
	}
	shares[largest] = shares[largest].Add(discount.Sub(given))
	return shares
}
