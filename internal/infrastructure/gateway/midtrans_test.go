package gateway

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	midtrans "github.com/midtrans/midtrans-go"
	"github.com/midtrans/midtrans-go/snap"
	"github.com/sangkips/bursar-api/internal/config"
	"github.com/sangkips/bursar-api/internal/domain/entity"
	"github.com/sangkips/bursar-api/internal/domain/enum"
	domain "github.com/sangkips/bursar-api/internal/domain/gateway"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSnap struct {
	got  *snap.Request
	resp *snap.Response
	err  *midtrans.Error
}

func (f *fakeSnap) CreateTransaction(req *snap.Request) (*snap.Response, *midtrans.Error) {
	f.got = req
	return f.resp, f.err
}

func body(t *testing.T, fields map[string]string) []byte {
	t.Helper()
	raw, err := json.Marshal(fields)
	require.NoError(t, err)
	return raw
}

func signed(status, fraud string) map[string]string {
	return map[string]string{
		"order_id":           "order-1",
		"status_code":        "200",
		"gross_amount":       "300.00",
		"transaction_status": status,
		"fraud_status":       fraud,
		"transaction_id":     "txn-9",
		"signature_key":      Signature("order-1", "200", "300.00", "server-key"),
	}
}

func TestNewMidtransWithoutKey(t *testing.T) {
	assert.Nil(t, NewMidtrans(config.GatewayConfig{}))
	assert.NotNil(t, NewMidtrans(config.GatewayConfig{MidtransServerKey: "k"}))
}

func TestParseNotification(t *testing.T) {
	m := &Midtrans{serverKey: "server-key"}

	tests := []struct {
		status, fraud string
		result        enum.GatewayResult
		pending       bool
	}{
		{"settlement", "", enum.GatewaySuccess, false},
		{"capture", "accept", enum.GatewaySuccess, false},
		{"capture", "challenge", "", true},
		{"capture", "deny", enum.GatewayFailure, false},
		{"pending", "", "", true},
		{"deny", "", enum.GatewayFailure, false},
		{"cancel", "", enum.GatewayFailure, false},
		{"expire", "", enum.GatewayFailure, false},
		{"failure", "", enum.GatewayFailure, false},
		{"refund", "", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.status+"/"+tt.fraud, func(t *testing.T) {
			n, err := m.ParseNotification(body(t, signed(tt.status, tt.fraud)))
			require.NoError(t, err)
			assert.Equal(t, "order-1", n.Ref)
			assert.Equal(t, "txn-9", n.ExternalTxnID)
			assert.Equal(t, tt.result, n.Result)
			assert.Equal(t, tt.pending, n.Pending)
		})
	}

	t.Run("tampered amount", func(t *testing.T) {
		fields := signed("settlement", "")
		fields["gross_amount"] = "3.00"
		_, err := m.ParseNotification(body(t, fields))
		assert.ErrorIs(t, err, domain.ErrInvalidSignature)
	})

	t.Run("missing signature", func(t *testing.T) {
		fields := signed("settlement", "")
		delete(fields, "signature_key")
		_, err := m.ParseNotification(body(t, fields))
		assert.ErrorIs(t, err, domain.ErrInvalidSignature)
	})

	t.Run("not json", func(t *testing.T) {
		_, err := m.ParseNotification([]byte("{"))
		assert.Error(t, err)
	})
}

func TestInitiate(t *testing.T) {
	payment := &entity.Payment{ID: uuid.New(), StudentID: uuid.New(), Reference: "PAY-2026-000001", Amount: decimal.RequireFromString("300")}

	t.Run("creates a snap transaction keyed by payment id", func(t *testing.T) {
		fake := &fakeSnap{resp: &snap.Response{Token: "tok", RedirectURL: "https://pay.example/tok"}}
		m := &Midtrans{client: fake, serverKey: "k"}

		session, err := m.Initiate(context.Background(), payment)
		require.NoError(t, err)
		assert.Equal(t, payment.ID.String(), session.Ref)
		assert.Equal(t, "https://pay.example/tok", session.RedirectURL)
		assert.Equal(t, int64(300), fake.got.TransactionDetails.GrossAmt)
	})

	t.Run("provider errors surface", func(t *testing.T) {
		fake := &fakeSnap{err: &midtrans.Error{Message: "unauthorized", StatusCode: 401}}
		m := &Midtrans{client: fake, serverKey: "k"}
		_, err := m.Initiate(context.Background(), payment)
		assert.Error(t, err)
	})

	t.Run("fractional amounts are refused", func(t *testing.T) {
		m := &Midtrans{client: &fakeSnap{}, serverKey: "k"}
		p := *payment
		p.Amount = decimal.RequireFromString("300.50")
		_, err := m.Initiate(context.Background(), &p)
		assert.Error(t, err)
	})
}
