package enum

// RefundStatus represents the maker-checker lifecycle of a refund
type RefundStatus string

const (
	RefundPending   RefundStatus = "pending"
	RefundApproved  RefundStatus = "approved"
	RefundProcessed RefundStatus = "processed"
	RefundCancelled RefundStatus = "cancelled"
)

func (s RefundStatus) String() string {
	return string(s)
}

// RefundType says what the refund is reversing
type RefundType string

const (
	RefundPartial      RefundType = "partial"
	RefundFull         RefundType = "full"
	RefundOverpayment  RefundType = "overpayment"
	RefundCancellation RefundType = "cancellation"
)

// IsValid reports whether t is a known refund type
func (t RefundType) IsValid() bool {
	switch t {
	case RefundPartial, RefundFull, RefundOverpayment, RefundCancellation:
		return true
	}
	return false
}

// RefundMethod is how the money goes back to the payer
type RefundMethod string

const (
	RefundMethodCash           RefundMethod = "cash"
	RefundMethodBankTransfer   RefundMethod = "bank_transfer"
	RefundMethodOriginalMethod RefundMethod = "original_method"
)

// IsValid reports whether m is a known refund method
func (m RefundMethod) IsValid() bool {
	switch m {
	case RefundMethodCash, RefundMethodBankTransfer, RefundMethodOriginalMethod:
		return true
	}
	return false
}
