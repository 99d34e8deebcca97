package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/sangkips/bursar-api/internal/domain/enum"
	"github.com/sangkips/bursar-api/internal/domain/tenancy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRebuildSummaries(t *testing.T) {
	f := newFixture(t)
	inv, p := f.settledInvoice()
	f.invoice()
	f.refund(&CreateRefundInput{
		StudentID: inv.StudentID, Amount: dec("50"), Reason: "adjustment", Type: enum.RefundPartial,
		Method: enum.RefundMethodCash, OriginalPaymentID: &p.ID,
	})

	rows, err := f.Summaries.Rebuild(f.ctx, &SummaryRange{PeriodType: enum.SummaryDaily, From: date(2026, 1, 1), To: date(2026, 1, 31)})
	require.NoError(t, err)
	require.Len(t, rows, 1)

	day := rows[0]
	assert.Equal(t, date(2026, 1, 10), day.PeriodDate)
	assert.Equal(t, 2, day.InvoiceCount)
	assert.Equal(t, 1, day.PaymentCount)
	assert.True(t, day.TotalInvoiced.Equal(dec("600")))
	assert.True(t, day.TotalCollected.Equal(dec("250")))
	assert.True(t, day.TotalRefunded.Equal(dec("50")))
	assert.True(t, day.TotalOutstanding.Equal(dec("350")))
	assert.True(t, day.CollectionRate.Equal(dec("41.67")), day.CollectionRate.String())

	t.Run("rebuilding replaces rows", func(t *testing.T) {
		_, err := f.Summaries.Rebuild(f.ctx, &SummaryRange{PeriodType: enum.SummaryDaily, From: date(2026, 1, 1), To: date(2026, 1, 31)})
		require.NoError(t, err)
		stored, err := f.Summaries.List(f.ctx, &SummaryRange{PeriodType: enum.SummaryDaily, From: date(2026, 1, 1), To: date(2026, 1, 31)})
		require.NoError(t, err)
		assert.Len(t, stored, 1)
	})

	t.Run("monthly ranges cover whole months", func(t *testing.T) {
		months, err := f.Summaries.Rebuild(f.ctx, &SummaryRange{PeriodType: enum.SummaryMonthly, From: date(2026, 1, 15), To: date(2026, 1, 15)})
		require.NoError(t, err)
		require.Len(t, months, 1)
		assert.Equal(t, date(2026, 1, 1), months[0].PeriodDate)
		assert.True(t, months[0].TotalInvoiced.Equal(dec("600")))
	})

	t.Run("ranges are bounded", func(t *testing.T) {
		_, err := f.Summaries.Rebuild(f.ctx, &SummaryRange{PeriodType: enum.SummaryDaily, From: date(2024, 1, 1), To: date(2026, 6, 1)})
		assert.Error(t, err)
		_, err = f.Summaries.Rebuild(f.ctx, &SummaryRange{PeriodType: enum.SummaryDaily, From: date(2026, 2, 1), To: date(2026, 1, 1)})
		assert.Error(t, err)
	})
}

func TestRebuildAllIsolatesTenants(t *testing.T) {
	f := newFixture(t)
	f.invoice()

	other := tenancy.WithActor(context.Background(), tenancy.Actor{TenantID: uuid.New(), UserID: uuid.New(), Role: tenancy.RoleBursar})
	method, err := f.Payments.CreateMethod(other, &MethodInput{Code: "cash", Name: "Cash", Channel: enum.ChannelCash})
	require.NoError(t, err)
	_, err = f.Payments.Record(other, &RecordPaymentInput{StudentID: uuid.New(), Amount: dec("10"), MethodID: method.ID})
	require.NoError(t, err)

	report, err := f.Summaries.RebuildAll(context.Background(), &SummaryRange{PeriodType: enum.SummaryDaily, From: date(2026, 1, 10), To: date(2026, 1, 10)})
	require.NoError(t, err)
	assert.Equal(t, 2, report.Tenants)
	assert.EqualValues(t, 1, report.Rows)

	mine, err := f.Summaries.List(f.ctx, &SummaryRange{PeriodType: enum.SummaryDaily, From: date(2026, 1, 10), To: date(2026, 1, 10)})
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, f.tenantID, mine[0].TenantID)

	theirs, err := f.Summaries.List(other, &SummaryRange{PeriodType: enum.SummaryDaily, From: date(2026, 1, 10), To: date(2026, 1, 10)})
	require.NoError(t, err)
	assert.Empty(t, theirs)
}
