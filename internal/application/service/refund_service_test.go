package service

import (
	"testing"

	"github.com/google/uuid"
	"github.com/sangkips/bursar-api/internal/domain/entity"
	"github.com/sangkips/bursar-api/internal/domain/enum"
	"github.com/sangkips/bursar-api/pkg/apperror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// settledInvoice is an invoice fully paid by a single payment.
func (f *fixture) settledInvoice() (*entity.Invoice, *entity.Payment) {
	f.t.Helper()
	inv := f.invoice()
	p := f.paid(inv.StudentID, "300")
	_, err := f.Payments.Allocate(f.ctx, p.ID, inv.ID, dec("300"))
	require.NoError(f.t, err)
	return inv, p
}

func (f *fixture) refund(input *CreateRefundInput) *entity.Refund {
	f.t.Helper()
	r, err := f.Refunds.Create(f.ctx, input)
	require.NoError(f.t, err)
	r, err = f.Refunds.Approve(f.checker, r.ID)
	require.NoError(f.t, err)
	r, err = f.Refunds.Process(f.checker, r.ID)
	require.NoError(f.t, err)
	return r
}

func TestPartialRefundReopensInvoice(t *testing.T) {
	f := newFixture(t)
	inv, p := f.settledInvoice()

	r := f.refund(&CreateRefundInput{
		StudentID:         inv.StudentID,
		Amount:            dec("50"),
		Reason:            "Dropped a subject",
		Type:              enum.RefundPartial,
		Method:            enum.RefundMethodCash,
		OriginalPaymentID: &p.ID,
	})
	assert.Equal(t, enum.RefundProcessed, r.Status)
	assert.NotNil(t, r.ProcessedAt)

	got := f.reload(inv.ID)
	assert.True(t, got.Paid.Equal(dec("250")))
	assert.Equal(t, enum.InvoicePartial, got.Status)
	assert.True(t, got.Outstanding.Equal(dec("50")))
	assert.Contains(t, f.events(), enum.EventRefundProcessed)

	payment, err := f.Payments.Get(f.ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, enum.PaymentCompleted, payment.Status)

	t.Run("the rest is all that can still be refunded", func(t *testing.T) {
		_, err := f.Refunds.Create(f.ctx, &CreateRefundInput{
			StudentID: inv.StudentID, Amount: dec("250.01"), Reason: "more", Type: enum.RefundPartial,
			Method: enum.RefundMethodCash, OriginalPaymentID: &p.ID,
		})
		assert.ErrorIs(t, err, apperror.ErrRefundExceedsPayment)
	})
}

func TestFullRefund(t *testing.T) {
	f := newFixture(t)
	inv, p := f.settledInvoice()

	_, err := f.Refunds.Create(f.ctx, &CreateRefundInput{
		StudentID: inv.StudentID, Amount: dec("200"), Reason: "wrong amount", Type: enum.RefundFull,
		Method: enum.RefundMethodBankTransfer, OriginalPaymentID: &p.ID,
	})
	assert.Error(t, err)

	f.refund(&CreateRefundInput{
		StudentID: inv.StudentID, Amount: dec("300"), Reason: "left school", Type: enum.RefundFull,
		Method: enum.RefundMethodBankTransfer, OriginalPaymentID: &p.ID,
	})

	payment, err := f.Payments.Get(f.ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, enum.PaymentRefunded, payment.Status)
	got := f.reload(inv.ID)
	assert.True(t, got.Paid.IsZero())
	assert.True(t, got.Outstanding.Equal(dec("300")))
}

func TestCancellationRefundClosesInvoice(t *testing.T) {
	f := newFixture(t)
	inv, p := f.settledInvoice()

	f.refund(&CreateRefundInput{
		StudentID: inv.StudentID, Amount: dec("300"), Reason: "withdrawn", Type: enum.RefundCancellation,
		Method: enum.RefundMethodOriginalMethod, OriginalPaymentID: &p.ID,
	})

	got := f.reload(inv.ID)
	assert.Equal(t, enum.InvoiceRefunded, got.Status)

	later := f.paid(inv.StudentID, "10")
	_, err := f.Payments.Allocate(f.ctx, later.ID, inv.ID, dec("10"))
	assert.ErrorIs(t, err, apperror.ErrInvalidTransition)
}

func TestRefundMakerChecker(t *testing.T) {
	f := newFixture(t)
	inv, p := f.settledInvoice()

	r, err := f.Refunds.Create(f.ctx, &CreateRefundInput{
		StudentID: inv.StudentID, Amount: dec("20"), Reason: "fee waiver", Type: enum.RefundPartial,
		Method: enum.RefundMethodCash, OriginalPaymentID: &p.ID,
	})
	require.NoError(t, err)
	assert.Equal(t, enum.RefundPending, r.Status)

	_, err = f.Refunds.Process(f.checker, r.ID)
	assert.ErrorIs(t, err, apperror.ErrInvalidTransition)

	_, err = f.Refunds.Approve(f.ctx, r.ID)
	assert.ErrorIs(t, err, apperror.ErrForbidden)

	approved, err := f.Refunds.Approve(f.checker, r.ID)
	require.NoError(t, err)
	assert.Equal(t, enum.RefundApproved, approved.Status)
	require.NotNil(t, approved.ApprovedBy)

	cancelled, err := f.Refunds.Cancel(f.ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, enum.RefundCancelled, cancelled.Status)

	_, err = f.Refunds.Process(f.checker, r.ID)
	assert.ErrorIs(t, err, apperror.ErrInvalidTransition)
	assert.True(t, f.reload(inv.ID).Paid.Equal(dec("300")))
}

func TestOpenRefundsShareTheLimit(t *testing.T) {
	f := newFixture(t)
	inv, p := f.settledInvoice()

	_, err := f.Refunds.Create(f.ctx, &CreateRefundInput{
		StudentID: inv.StudentID, Amount: dec("200"), Reason: "a", Type: enum.RefundPartial,
		Method: enum.RefundMethodCash, OriginalPaymentID: &p.ID,
	})
	require.NoError(t, err)

	_, err = f.Refunds.Create(f.ctx, &CreateRefundInput{
		StudentID: inv.StudentID, Amount: dec("150"), Reason: "b", Type: enum.RefundPartial,
		Method: enum.RefundMethodCash, OriginalPaymentID: &p.ID,
	})
	assert.ErrorIs(t, err, apperror.ErrRefundExceedsPayment)
}

func TestOverpaymentRefund(t *testing.T) {
	f := newFixture(t)
	studentID := uuid.New()
	f.paid(studentID, "80")

	_, err := f.Refunds.Create(f.ctx, &CreateRefundInput{
		StudentID: studentID, Amount: dec("90"), Reason: "credit", Type: enum.RefundOverpayment, Method: enum.RefundMethodCash,
	})
	assert.ErrorIs(t, err, apperror.ErrRefundExceedsPayment)

	f.refund(&CreateRefundInput{
		StudentID: studentID, Amount: dec("30"), Reason: "credit", Type: enum.RefundOverpayment, Method: enum.RefundMethodCash,
	})

	credit, err := f.Payments.CreditBalance(f.ctx, studentID)
	require.NoError(t, err)
	assert.True(t, credit.Amount.Equal(dec("50")))
}

func TestRefundNeedsSettledPayment(t *testing.T) {
	f := newFixture(t)
	studentID := uuid.New()
	p, err := f.Payments.Record(f.ctx, &RecordPaymentInput{StudentID: studentID, Amount: dec("40"), MethodID: f.cash.ID})
	require.NoError(t, err)

	_, err = f.Refunds.Create(f.ctx, &CreateRefundInput{
		StudentID: studentID, Amount: dec("40"), Reason: "x", Type: enum.RefundPartial,
		Method: enum.RefundMethodCash, OriginalPaymentID: &p.ID,
	})
	assert.ErrorIs(t, err, apperror.ErrPaymentNotCompleted)
}
