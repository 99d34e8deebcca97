// Package billing holds the pure money rules of the finance core: invoice
// reconciliation, discount spreading, installment schedules and allocation
// ordering. Nothing here touches storage or the clock.
package billing

import (
	"time"

	"github.com/shopspring/decimal"
)

// Amounts are kept to cents, rates to six places.
const (
	AmountPlaces = 2
	RatePlaces   = 6
)

var hundred = decimal.NewFromInt(100)

// Cents rounds an amount half away from zero to two places.
func Cents(d decimal.Decimal) decimal.Decimal {
	return d.Round(AmountPlaces)
}

// Max returns the larger of a and b.
func Max(a, b decimal.Decimal) decimal.Decimal {
	if a.GreaterThan(b) {
		return a
	}
	return b
}

// Min returns the smaller of a and b.
func Min(a, b decimal.Decimal) decimal.Decimal {
	if a.LessThan(b) {
		return a
	}
	return b
}

// Day normalises t to midnight UTC of its calendar day in loc. All business
// dates are compared in this form.
func Day(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DaysBetween returns the whole days from a to b, negative when b is before a.
func DaysBetween(a, b time.Time) int {
	a = time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	b = time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	return int(b.Sub(a).Hours() / 24)
}

// AddMonths moves t by n calendar months, clamping to the last day of the
// target month (Jan 31 + 1 month is Feb 28/29, not Mar 3).
func AddMonths(t time.Time, n int) time.Time {
	first := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location()).AddDate(0, n, 0)
	last := first.AddDate(0, 1, -1).Day()
	day := t.Day()
	if day > last {
		day = last
	}
	return time.Date(first.Year(), first.Month(), day, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}
