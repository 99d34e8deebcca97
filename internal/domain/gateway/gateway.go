// Package gateway is the narrow boundary between the payment ledger and online
// payment providers.
package gateway

import (
	"context"
	"errors"

	"github.com/sangkips/bursar-api/internal/domain/entity"
	"github.com/sangkips/bursar-api/internal/domain/enum"
)

// ErrInvalidSignature is returned for callbacks that fail verification.
var ErrInvalidSignature = errors.New("gateway: invalid notification signature")

// Session is what a provider hands back when a payment is initiated.
type Session struct {
	Ref         string
	RedirectURL string
	Raw         string
}

// Notification is a verified provider callback. Pending is set when the
// provider has not reached a definitive outcome yet.
type Notification struct {
	Ref           string
	ExternalTxnID string
	Result        enum.GatewayResult
	Pending       bool
	Raw           string
}

// Gateway starts online payments and verifies their callbacks.
type Gateway interface {
	Initiate(ctx context.Context, payment *entity.Payment) (*Session, error)
	ParseNotification(body []byte) (*Notification, error)
}
