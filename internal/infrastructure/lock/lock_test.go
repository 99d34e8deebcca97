package lock

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquireIsExclusive(t *testing.T) {
	m := NewManager(time.Second)
	key := InvoiceKey(uuid.New())

	var inside, maxInside int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := m.Acquire(context.Background(), key)
			if !assert.NoError(t, err) {
				return
			}
			n := atomic.AddInt32(&inside, 1)
			for {
				cur := atomic.LoadInt32(&maxInside)
				if n <= cur || atomic.CompareAndSwapInt32(&maxInside, cur, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inside, -1)
			release()
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxInside)
	assert.Equal(t, 0, m.Held())
}

func TestAcquireTimesOut(t *testing.T) {
	m := NewManager(20 * time.Millisecond)
	key := PaymentKey(uuid.New())

	release, err := m.Acquire(context.Background(), key)
	require.NoError(t, err)
	defer release()

	_, err = m.Acquire(context.Background(), key)
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestFailedAcquireReleasesPartialSet(t *testing.T) {
	m := NewManager(20 * time.Millisecond)
	a, b := "a", "b"

	releaseB, err := m.Acquire(context.Background(), b)
	require.NoError(t, err)

	_, err = m.Acquire(context.Background(), b, a)
	require.ErrorIs(t, err, ErrTimeout)

	releaseA, err := m.Acquire(context.Background(), a)
	require.NoError(t, err, "a must not stay held after the failed attempt")
	releaseA()
	releaseB()
	assert.Equal(t, 0, m.Held())
}

func TestOverlappingSetsDoNotDeadlock(t *testing.T) {
	m := NewManager(time.Second)
	x, y := InvoiceKey(uuid.New()), InvoiceKey(uuid.New())

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			release, err := m.Acquire(context.Background(), x, y)
			if assert.NoError(t, err) {
				release()
			}
		}()
		go func() {
			defer wg.Done()
			release, err := m.Acquire(context.Background(), y, x)
			if assert.NoError(t, err) {
				release()
			}
		}()
	}
	wg.Wait()
}

func TestCancelledContext(t *testing.T) {
	m := NewManager(0)
	release, err := m.Acquire(context.Background(), "k")
	require.NoError(t, err)
	defer release()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = m.Acquire(ctx, "k")
	assert.ErrorIs(t, err, context.Canceled)
}
