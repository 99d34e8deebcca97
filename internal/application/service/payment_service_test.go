package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sangkips/bursar-api/internal/domain/entity"
	"github.com/sangkips/bursar-api/internal/domain/enum"
	"github.com/sangkips/bursar-api/internal/domain/gateway"
	"github.com/sangkips/bursar-api/internal/domain/tenancy"
	"github.com/sangkips/bursar-api/pkg/apperror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordPayment(t *testing.T) {
	t.Run("generated references are sequential", func(t *testing.T) {
		f := newFixture(t)
		studentID := uuid.New()
		first, err := f.Payments.Record(f.ctx, &RecordPaymentInput{StudentID: studentID, Amount: dec("10"), MethodID: f.cash.ID})
		require.NoError(t, err)
		second, err := f.Payments.Record(f.ctx, &RecordPaymentInput{StudentID: studentID, Amount: dec("10"), MethodID: f.cash.ID})
		require.NoError(t, err)

		assert.Equal(t, "PAY-2026-000001", first.Reference)
		assert.Equal(t, "PAY-2026-000002", second.Reference)
		assert.Equal(t, enum.PaymentPending, first.Status)
	})

	t.Run("replaying a reference returns the same payment", func(t *testing.T) {
		f := newFixture(t)
		studentID := uuid.New()
		input := &RecordPaymentInput{StudentID: studentID, Amount: dec("150"), MethodID: f.cash.ID, Reference: "RCPT-9"}
		first, err := f.Payments.Record(f.ctx, input)
		require.NoError(t, err)
		again, err := f.Payments.Record(f.ctx, input)
		require.NoError(t, err)
		assert.Equal(t, first.ID, again.ID)

		_, err = f.Payments.Record(f.ctx, &RecordPaymentInput{StudentID: studentID, Amount: dec("151"), MethodID: f.cash.ID, Reference: "RCPT-9"})
		assert.ErrorIs(t, err, apperror.ErrConflict)
	})

	t.Run("rejects bad amounts and currencies", func(t *testing.T) {
		f := newFixture(t)
		studentID := uuid.New()
		_, err := f.Payments.Record(f.ctx, &RecordPaymentInput{StudentID: studentID, Amount: dec("0"), MethodID: f.cash.ID})
		assert.Error(t, err)
		_, err = f.Payments.Record(f.ctx, &RecordPaymentInput{StudentID: studentID, Amount: dec("10.005"), MethodID: f.cash.ID})
		assert.Error(t, err)
		_, err = f.Payments.Record(f.ctx, &RecordPaymentInput{StudentID: studentID, Amount: dec("10"), MethodID: f.cash.ID, Currency: "USD"})
		assert.Error(t, err)
	})
}

func TestConfirmPayment(t *testing.T) {
	t.Run("confirming twice is harmless", func(t *testing.T) {
		f := newFixture(t)
		p := f.paid(uuid.New(), "50")

		again, err := f.Payments.Confirm(f.ctx, p.ID, &ConfirmInput{Result: enum.GatewayFailure})
		require.NoError(t, err)
		assert.Equal(t, enum.PaymentCompleted, again.Status)
	})

	t.Run("failed payments cannot be allocated", func(t *testing.T) {
		f := newFixture(t)
		inv := f.invoice()
		p, err := f.Payments.Record(f.ctx, &RecordPaymentInput{StudentID: inv.StudentID, Amount: dec("50"), MethodID: f.cash.ID})
		require.NoError(t, err)
		p, err = f.Payments.Confirm(f.ctx, p.ID, &ConfirmInput{Result: enum.GatewayFailure})
		require.NoError(t, err)
		assert.Equal(t, enum.PaymentFailed, p.Status)

		_, err = f.Payments.Allocate(f.ctx, p.ID, inv.ID, dec("50"))
		assert.ErrorIs(t, err, apperror.ErrPaymentNotCompleted)
	})

	t.Run("completed payment auto allocates when asked", func(t *testing.T) {
		f := newFixture(t)
		inv := f.invoice()
		p, err := f.Payments.Record(f.ctx, &RecordPaymentInput{StudentID: inv.StudentID, Amount: dec("350"), MethodID: f.cash.ID, AutoAllocate: true})
		require.NoError(t, err)
		_, err = f.Payments.Confirm(f.ctx, p.ID, &ConfirmInput{Result: enum.GatewaySuccess})
		require.NoError(t, err)

		assert.Equal(t, enum.InvoicePaid, f.reload(inv.ID).Status)
		credit, err := f.Payments.CreditBalance(f.ctx, inv.StudentID)
		require.NoError(t, err)
		assert.True(t, credit.Amount.Equal(dec("50")))
		assert.Nil(t, credit.DisplayAmount)
	})

	t.Run("pending payments can be cancelled, completed ones cannot", func(t *testing.T) {
		f := newFixture(t)
		studentID := uuid.New()
		p, err := f.Payments.Record(f.ctx, &RecordPaymentInput{StudentID: studentID, Amount: dec("20"), MethodID: f.cash.ID})
		require.NoError(t, err)
		cancelled, err := f.Payments.Cancel(f.ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, enum.PaymentCancelled, cancelled.Status)

		done := f.paid(studentID, "20")
		_, err = f.Payments.Cancel(f.ctx, done.ID)
		assert.ErrorIs(t, err, apperror.ErrConflict)
	})

	t.Run("gateway payments need a configured gateway", func(t *testing.T) {
		f := newFixture(t)
		p, err := f.Payments.Record(f.ctx, &RecordPaymentInput{StudentID: uuid.New(), Amount: dec("20"), MethodID: f.online.ID})
		require.NoError(t, err)
		_, err = f.Payments.Initiate(f.ctx, p.ID)
		assert.ErrorIs(t, err, apperror.ErrExternal)
	})
}

func TestAllocate(t *testing.T) {
	t.Run("full allocation pays the invoice", func(t *testing.T) {
		f := newFixture(t)
		inv := f.invoice()
		p := f.paid(inv.StudentID, "300")

		alloc, err := f.Payments.Allocate(f.ctx, p.ID, inv.ID, dec("300"))
		require.NoError(t, err)
		assert.True(t, alloc.AllocatedAmount.Equal(dec("300")))

		got := f.reload(inv.ID)
		assert.Equal(t, enum.InvoicePaid, got.Status)
		assert.True(t, got.Outstanding.IsZero())
		assert.True(t, got.Paid.Equal(dec("300")))
		assert.Contains(t, f.events(), enum.EventPaymentAllocated)
	})

	t.Run("partial allocations grow a single row", func(t *testing.T) {
		f := newFixture(t)
		inv := f.invoice()
		p := f.paid(inv.StudentID, "200")

		_, err := f.Payments.Allocate(f.ctx, p.ID, inv.ID, dec("120"))
		require.NoError(t, err)
		assert.Equal(t, enum.InvoicePartial, f.reload(inv.ID).Status)
		_, err = f.Payments.Allocate(f.ctx, p.ID, inv.ID, dec("80"))
		require.NoError(t, err)

		rows, err := f.Payments.ListAllocations(f.ctx, p.ID)
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.True(t, rows[0].AllocatedAmount.Equal(dec("200")))
		assert.True(t, f.reload(inv.ID).Outstanding.Equal(dec("100")))
	})

	t.Run("cannot allocate more than the payment holds", func(t *testing.T) {
		f := newFixture(t)
		inv := f.invoice()
		p := f.paid(inv.StudentID, "100")

		_, err := f.Payments.Allocate(f.ctx, p.ID, inv.ID, dec("150"))
		assert.ErrorIs(t, err, apperror.ErrAllocationExceeds)
		assert.True(t, f.reload(inv.ID).Paid.IsZero())
	})

	t.Run("cannot allocate more than the invoice owes", func(t *testing.T) {
		f := newFixture(t)
		inv := f.invoice()
		p := f.paid(inv.StudentID, "500")

		_, err := f.Payments.Allocate(f.ctx, p.ID, inv.ID, dec("300.01"))
		assert.ErrorIs(t, err, apperror.ErrAllocationExceeds)
	})

	t.Run("a batch with one bad line writes nothing", func(t *testing.T) {
		f := newFixture(t)
		first := f.invoice()
		otherStudent := f.invoice()
		p := f.paid(first.StudentID, "300")

		_, err := f.Payments.AllocateBatch(f.ctx, p.ID, []AllocationLine{
			{InvoiceID: first.ID, Amount: dec("100")},
			{InvoiceID: otherStudent.ID, Amount: dec("100")},
		})
		assert.Error(t, err)

		rows, err := f.Payments.ListAllocations(f.ctx, p.ID)
		require.NoError(t, err)
		assert.Empty(t, rows)
	})

	t.Run("another tenant's invoice is refused and left untouched", func(t *testing.T) {
		f := newFixture(t)
		inv := f.invoice()
		f.clock.Set(inv.DueDate.AddDate(0, 0, 20).Add(9 * time.Hour))

		otherCtx := tenancy.WithActor(context.Background(), tenancy.Actor{TenantID: uuid.New(), UserID: uuid.New(), Role: tenancy.RoleBursar})
		method, err := f.Payments.CreateMethod(otherCtx, &MethodInput{Code: "cash", Name: "Cash", Channel: enum.ChannelCash})
		require.NoError(t, err)
		p, err := f.Payments.Record(otherCtx, &RecordPaymentInput{StudentID: inv.StudentID, Amount: dec("300"), MethodID: method.ID})
		require.NoError(t, err)
		_, err = f.Payments.Confirm(otherCtx, p.ID, &ConfirmInput{Result: enum.GatewaySuccess})
		require.NoError(t, err)

		_, err = f.Payments.Allocate(otherCtx, p.ID, inv.ID, dec("100"))
		assert.ErrorIs(t, err, apperror.ErrCrossTenantAccess)

		stored, err := f.Core.Repos.Invoices.GetByID(context.Background(), inv.ID)
		require.NoError(t, err)
		assert.Equal(t, enum.InvoicePending, stored.Status)
		assert.True(t, stored.Outstanding.Equal(dec("300")), stored.Outstanding.String())
		assert.False(t, stored.LateFeeApplied)
		assert.Equal(t, []enum.EventType{enum.EventInvoiceCreated}, f.events())
	})

	t.Run("cancelled invoices take no money", func(t *testing.T) {
		f := newFixture(t)
		inv := f.invoice()
		_, err := f.Invoices.Cancel(f.ctx, inv.ID)
		require.NoError(t, err)
		p := f.paid(inv.StudentID, "100")

		_, err = f.Payments.Allocate(f.ctx, p.ID, inv.ID, dec("100"))
		assert.ErrorIs(t, err, apperror.ErrInvalidTransition)
	})
}

func TestConcurrentAllocationsRespectOutstanding(t *testing.T) {
	f := newFixture(t)
	small := f.newStructure(FeeItemInput{Name: "Exam", BaseAmount: dec("100"), Frequency: enum.FrequencyTerm})
	studentID := uuid.New()
	f.assign(studentID, small)
	inv := f.invoiceFor(studentID)
	require.True(t, inv.Outstanding.Equal(dec("100")))

	payments := []*entity.Payment{f.paid(studentID, "60"), f.paid(studentID, "60")}

	var wg sync.WaitGroup
	errs := make([]error, len(payments))
	for i, p := range payments {
		wg.Add(1)
		go func(i int, id uuid.UUID) {
			defer wg.Done()
			_, errs[i] = f.Payments.Allocate(f.ctx, id, inv.ID, dec("60"))
		}(i, p.ID)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.True(t, errors.Is(err, apperror.ErrAllocationExceeds), err.Error())
	}
	assert.Equal(t, 1, succeeded)

	got := f.reload(inv.ID)
	assert.True(t, got.Paid.Equal(dec("60")))
	assert.True(t, got.Outstanding.Equal(dec("40")))
}

func TestAutoAllocateOldestFirst(t *testing.T) {
	f := newFixture(t)
	studentID := uuid.New()
	f.assign(studentID, f.structure)
	older := f.invoiceFor(studentID)

	second, err := f.Invoices.Generate(f.ctx, &GenerateInput{
		Period:      BillingPeriod{Key: "2026-T2", Type: enum.FrequencyTerm, Start: date(2026, 5, 1), End: date(2026, 8, 1)},
		InvoiceDate: date(2026, 1, 10),
		DueDate:     date(2026, 5, 10),
		StudentIDs:  []uuid.UUID{studentID},
	})
	require.NoError(t, err)
	require.Len(t, second.Invoices, 1)
	newer := second.Invoices[0]

	p := f.paid(studentID, "400")
	res, err := f.Payments.AutoAllocate(f.ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, res.Allocations, 2)
	assert.True(t, res.Credit.IsZero())

	assert.Equal(t, enum.InvoicePaid, f.reload(older.ID).Status)
	assert.True(t, f.reload(newer.ID).Outstanding.Equal(dec("200")))
}

func TestCreditBalanceInDisplayCurrency(t *testing.T) {
	f := newFixture(t, func(s *fixtureSetup) {
		s.billing.DisplayCurrency = "USD"
		s.billing.DisplayRate = dec("0.0077")
	})
	studentID := uuid.New()
	f.paid(studentID, "1000")

	credit, err := f.Payments.CreditBalance(f.ctx, studentID)
	require.NoError(t, err)
	assert.True(t, credit.Amount.Equal(dec("1000")))
	require.NotNil(t, credit.DisplayAmount)
	assert.True(t, credit.DisplayAmount.Equal(dec("7.7")))
	assert.Equal(t, "USD", credit.DisplayCurrency)
}

func TestReceipt(t *testing.T) {
	t.Run("lists allocations and the unallocated rest", func(t *testing.T) {
		f := newFixture(t)
		inv := f.invoice()
		p := f.paid(inv.StudentID, "350")

		_, err := f.Payments.Allocate(f.ctx, p.ID, inv.ID, dec("200"))
		require.NoError(t, err)

		receipt, err := f.Payments.Receipt(f.ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, p.Reference, receipt.Reference)
		assert.Equal(t, "Cash", receipt.Method)
		assert.True(t, receipt.Allocated.Equal(dec("200")))
		assert.True(t, receipt.Unallocated.Equal(dec("150")))
		require.Len(t, receipt.Lines, 1)
		assert.Equal(t, inv.InvoiceNumber, receipt.Lines[0].InvoiceNumber)
		assert.True(t, receipt.Lines[0].Outstanding.Equal(dec("100")))
	})

	t.Run("unknown payment method leaves the method blank", func(t *testing.T) {
		f := newFixture(t)
		inv := f.invoice()
		p := f.paid(inv.StudentID, "100")

		stored, err := f.Core.Repos.Payments.GetByID(context.Background(), p.ID)
		require.NoError(t, err)
		stored.MethodID = uuid.New()
		require.NoError(t, f.Core.Repos.Payments.Update(context.Background(), stored))

		receipt, err := f.Payments.Receipt(f.ctx, p.ID)
		require.NoError(t, err)
		assert.Empty(t, receipt.Method)
		assert.True(t, receipt.Unallocated.Equal(dec("100")))
	})
}

type fakeGateway struct {
	sessions int
}

func (g *fakeGateway) Initiate(ctx context.Context, p *entity.Payment) (*gateway.Session, error) {
	g.sessions++
	return &gateway.Session{Ref: "ord-" + p.ID.String(), RedirectURL: "https://pay.example/" + p.Reference}, nil
}

func (g *fakeGateway) ParseNotification(body []byte) (*gateway.Notification, error) {
	return nil, gateway.ErrInvalidSignature
}

func TestGatewayPayment(t *testing.T) {
	gw := &fakeGateway{}
	f := newFixture(t, func(s *fixtureSetup) { s.gateway = gw })
	inv := f.invoice()

	p, err := f.Payments.Record(f.ctx, &RecordPaymentInput{StudentID: inv.StudentID, Amount: dec("300"), MethodID: f.online.ID, AutoAllocate: true})
	require.NoError(t, err)

	started, err := f.Payments.Initiate(f.ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, enum.PaymentProcessing, started.Payment.Status)
	assert.Equal(t, "https://pay.example/"+p.Reference, started.RedirectURL)
	require.NotNil(t, started.Payment.GatewayRef)

	t.Run("cash payments are not initiated", func(t *testing.T) {
		cash, err := f.Payments.Record(f.ctx, &RecordPaymentInput{StudentID: inv.StudentID, Amount: dec("5"), MethodID: f.cash.ID})
		require.NoError(t, err)
		_, err = f.Payments.Initiate(f.ctx, cash.ID)
		assert.Error(t, err)
		assert.Equal(t, 1, gw.sessions)
	})

	// Callbacks arrive without a caller identity.
	ref := *started.Payment.GatewayRef
	pending, err := f.Payments.HandleGatewayCallback(context.Background(), &gateway.Notification{Ref: ref, Pending: true})
	require.NoError(t, err)
	assert.Equal(t, enum.PaymentProcessing, pending.Status)

	done, err := f.Payments.HandleGatewayCallback(context.Background(), &gateway.Notification{Ref: ref, Result: enum.GatewaySuccess, ExternalTxnID: "txn-1"})
	require.NoError(t, err)
	assert.Equal(t, enum.PaymentCompleted, done.Status)
	assert.Equal(t, "txn-1", done.ExternalTxnID)
	assert.Equal(t, enum.InvoicePaid, f.reload(inv.ID).Status)

	again, err := f.Payments.HandleGatewayCallback(context.Background(), &gateway.Notification{Ref: ref, Result: enum.GatewayFailure})
	require.NoError(t, err)
	assert.Equal(t, enum.PaymentCompleted, again.Status)

	_, err = f.Payments.HandleGatewayCallback(context.Background(), &gateway.Notification{Ref: "unknown", Result: enum.GatewaySuccess})
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}
