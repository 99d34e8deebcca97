package enum

// PaymentStatus represents the status of a payment
type PaymentStatus string

const (
	PaymentPending    PaymentStatus = "pending"
	PaymentProcessing PaymentStatus = "processing"
	PaymentCompleted  PaymentStatus = "completed"
	PaymentFailed     PaymentStatus = "failed"
	PaymentCancelled  PaymentStatus = "cancelled"
	PaymentRefunded   PaymentStatus = "refunded"
)

func (s PaymentStatus) String() string {
	return string(s)
}

// IsTerminal reports whether the gateway outcome is settled
func (s PaymentStatus) IsTerminal() bool {
	switch s {
	case PaymentCompleted, PaymentFailed, PaymentCancelled, PaymentRefunded:
		return true
	}
	return false
}

// Settled reports whether allocations from a payment in this status count as paid.
// Refunded payments keep counting; their reversal is carried by refund adjustments.
func (s PaymentStatus) Settled() bool {
	return s == PaymentCompleted || s == PaymentRefunded
}

// PaymentChannel describes how money reaches the school
type PaymentChannel string

const (
	ChannelCash         PaymentChannel = "cash"
	ChannelBankTransfer PaymentChannel = "bank_transfer"
	ChannelCard         PaymentChannel = "card"
	ChannelMobileMoney  PaymentChannel = "mobile_money"
	ChannelGateway      PaymentChannel = "gateway"
)

// IsValid reports whether c is a known channel
func (c PaymentChannel) IsValid() bool {
	switch c {
	case ChannelCash, ChannelBankTransfer, ChannelCard, ChannelMobileMoney, ChannelGateway:
		return true
	}
	return false
}

// GatewayResult is the definitive outcome reported by a payment gateway
type GatewayResult string

const (
	GatewaySuccess GatewayResult = "success"
	GatewayFailure GatewayResult = "failure"
)
