package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sangkips/bursar-api/internal/domain/enum"
	"github.com/sangkips/bursar-api/internal/domain/tenancy"
	"github.com/sangkips/bursar-api/pkg/pagination"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventFeed(t *testing.T) {
	f := newFixture(t)
	inv := f.invoice()
	p := f.paid(inv.StudentID, "300")
	_, err := f.Payments.Allocate(f.ctx, p.ID, inv.ID, dec("300"))
	require.NoError(t, err)

	assert.Equal(t, []enum.EventType{enum.EventInvoiceCreated, enum.EventPaymentAllocated}, f.events())

	t.Run("other tenants see nothing", func(t *testing.T) {
		other := tenancy.WithActor(context.Background(), tenancy.Actor{TenantID: uuid.New(), UserID: uuid.New()})
		res, err := f.Events.ListPending(other, nil)
		require.NoError(t, err)
		assert.Empty(t, res.Items)
	})

	t.Run("pages follow the cursor", func(t *testing.T) {
		first, err := f.Events.ListPending(f.ctx, &pagination.CursorParams{Limit: 1})
		require.NoError(t, err)
		require.Len(t, first.Items, 1)
		require.True(t, first.Pagination.HasNext)

		second, err := f.Events.ListPending(f.ctx, &pagination.CursorParams{Limit: 1, Cursor: *first.Pagination.NextCursor})
		require.NoError(t, err)
		require.Len(t, second.Items, 1)
		assert.NotEqual(t, first.Items[0].ID, second.Items[0].ID)
	})

	t.Run("a garbled cursor is a bad request", func(t *testing.T) {
		_, err := f.Events.ListPending(f.ctx, &pagination.CursorParams{Cursor: "not-a-cursor"})
		assert.Error(t, err)
	})

	t.Run("acknowledged events leave the feed", func(t *testing.T) {
		res, err := f.Events.ListPending(f.ctx, nil)
		require.NoError(t, err)
		n, err := f.Events.Ack(f.ctx, []uuid.UUID{res.Items[0].ID})
		require.NoError(t, err)
		assert.EqualValues(t, 1, n)

		n, err = f.Events.Ack(f.ctx, []uuid.UUID{res.Items[0].ID})
		require.NoError(t, err)
		assert.Zero(t, n)
		assert.Equal(t, []enum.EventType{enum.EventPaymentAllocated}, f.events())
	})
}

func TestSchedulerTick(t *testing.T) {
	f := newFixture(t)
	inv := f.invoice()

	f.clock.Set(date(2026, 2, 1).Add(2 * time.Hour))
	f.Scheduler.Tick(context.Background())

	assert.Equal(t, enum.InvoiceOverdue, f.reload(inv.ID).Status)
	assert.Equal(t, date(2026, 2, 1), f.Scheduler.lastRebuild)
}
