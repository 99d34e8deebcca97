// Package gateway adapts online payment providers to the ledger's gateway boundary.
package gateway

import (
	"context"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	midtrans "github.com/midtrans/midtrans-go"
	"github.com/midtrans/midtrans-go/snap"
	"github.com/sangkips/bursar-api/internal/config"
	"github.com/sangkips/bursar-api/internal/domain/entity"
	"github.com/sangkips/bursar-api/internal/domain/enum"
	domain "github.com/sangkips/bursar-api/internal/domain/gateway"
)

var _ domain.Gateway = (*Midtrans)(nil)

// snapAPI is the part of the Snap client the adapter uses.
type snapAPI interface {
	CreateTransaction(req *snap.Request) (*snap.Response, *midtrans.Error)
}

// Midtrans starts payments through Midtrans Snap and verifies its HTTP
// notifications.
type Midtrans struct {
	client    snapAPI
	serverKey string
}

// NewMidtrans returns nil when no server key is configured, which leaves
// online payments disabled.
func NewMidtrans(cfg config.GatewayConfig) *Midtrans {
	if cfg.MidtransServerKey == "" {
		return nil
	}
	var client snap.Client
	if cfg.MidtransProduction {
		client.New(cfg.MidtransServerKey, midtrans.Production)
	} else {
		client.New(cfg.MidtransServerKey, midtrans.Sandbox)
	}
	return &Midtrans{client: &client, serverKey: cfg.MidtransServerKey}
}

// Initiate creates a Snap transaction keyed by the payment id.
func (m *Midtrans) Initiate(ctx context.Context, payment *entity.Payment) (*domain.Session, error) {
	if !payment.Amount.Equal(payment.Amount.Truncate(0)) {
		return nil, fmt.Errorf("midtrans: amount %s has a fractional part", payment.Amount.String())
	}
	orderID := payment.ID.String()
	gross := payment.Amount.IntPart()

	req := &snap.Request{
		TransactionDetails: midtrans.TransactionDetails{
			OrderID:  orderID,
			GrossAmt: gross,
		},
		CreditCard: &snap.CreditCardDetails{Secure: true},
		Items: &[]midtrans.ItemDetails{{
			ID:       payment.Reference,
			Name:     "School fees " + payment.Reference,
			Price:    gross,
			Qty:      1,
			Category: "fees",
		}},
		CustomField1: payment.StudentID.String(),
	}

	resp, merr := m.client.CreateTransaction(req)
	if merr != nil {
		return nil, fmt.Errorf("midtrans: %s", merr.Message)
	}
	if resp == nil || resp.Token == "" {
		return nil, errors.New("midtrans: empty snap response")
	}
	raw, _ := json.Marshal(resp)
	return &domain.Session{Ref: orderID, RedirectURL: resp.RedirectURL, Raw: string(raw)}, nil
}

type notification struct {
	TransactionStatus string `json:"transaction_status"`
	StatusCode        string `json:"status_code"`
	SignatureKey      string `json:"signature_key"`
	OrderID           string `json:"order_id"`
	GrossAmount       string `json:"gross_amount"`
	FraudStatus       string `json:"fraud_status"`
	TransactionID     string `json:"transaction_id"`
}

// ParseNotification verifies SHA512(order_id + status_code + gross_amount +
// server key) and maps the transaction status onto a ledger outcome.
func (m *Midtrans) ParseNotification(body []byte) (*domain.Notification, error) {
	var n notification
	if err := json.Unmarshal(body, &n); err != nil {
		return nil, fmt.Errorf("midtrans: decode notification: %w", err)
	}
	if n.OrderID == "" || n.SignatureKey == "" {
		return nil, domain.ErrInvalidSignature
	}
	if Signature(n.OrderID, n.StatusCode, n.GrossAmount, m.serverKey) != strings.ToLower(n.SignatureKey) {
		return nil, domain.ErrInvalidSignature
	}

	out := &domain.Notification{Ref: n.OrderID, ExternalTxnID: n.TransactionID, Raw: string(body)}
	switch strings.ToLower(n.TransactionStatus) {
	case "settlement":
		out.Result = enum.GatewaySuccess
	case "capture":
		switch strings.ToLower(n.FraudStatus) {
		case "accept", "":
			out.Result = enum.GatewaySuccess
		case "challenge":
			out.Pending = true
		default:
			out.Result = enum.GatewayFailure
		}
	case "pending", "authorize":
		out.Pending = true
	case "deny", "cancel", "expire", "failure":
		out.Result = enum.GatewayFailure
	default:
		// refund notifications and unknown statuses leave the payment alone
		out.Pending = true
	}
	return out, nil
}

// Signature is the hex SHA512 Midtrans signs notifications with.
func Signature(orderID, statusCode, grossAmount, serverKey string) string {
	sum := sha512.Sum512([]byte(orderID + statusCode + grossAmount + serverKey))
	return hex.EncodeToString(sum[:])
}
