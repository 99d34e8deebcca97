// Package lock serializes work on the same invoice or payment inside the process.
// Keys are always taken in sorted order so two callers locking overlapping sets
// can not deadlock.
package lock

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

// ErrTimeout is returned when a key could not be taken within the wait limit.
var ErrTimeout = errors.New("lock: timed out waiting for key")

// Manager hands out exclusive locks by key.
type Manager struct {
	mu      sync.Mutex
	keys    map[string]*entry
	timeout time.Duration
}

type entry struct {
	ch   chan struct{}
	refs int
}

// NewManager creates a manager whose Acquire gives up after timeout. A zero
// timeout waits until the context is done.
func NewManager(timeout time.Duration) *Manager {
	return &Manager{
		keys:    make(map[string]*entry),
		timeout: timeout,
	}
}

// InvoiceKey is the lock key of an invoice.
func InvoiceKey(id uuid.UUID) string {
	return "invoice:" + id.String()
}

// PaymentKey is the lock key of a payment.
func PaymentKey(id uuid.UUID) string {
	return "payment:" + id.String()
}

// RefundKey is the lock key of a refund.
func RefundKey(id uuid.UUID) string {
	return "refund:" + id.String()
}

// StudentKey serializes work spanning all of a student's documents, such as
// invoice generation for a period.
func StudentKey(id uuid.UUID) string {
	return "student:" + id.String()
}

// Acquire takes every key, in sorted order, and returns a func releasing them.
// On failure nothing stays held.
func (m *Manager) Acquire(ctx context.Context, keys ...string) (func(), error) {
	ordered := lo.Uniq(keys)
	sort.Strings(ordered)

	waitCtx := ctx
	if m.timeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, m.timeout)
		defer cancel()
	}

	held := make([]string, 0, len(ordered))
	for _, key := range ordered {
		e := m.ref(key)
		select {
		case e.ch <- struct{}{}:
			held = append(held, key)
		case <-waitCtx.Done():
			m.unref(key)
			m.release(held)
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			return nil, ErrTimeout
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() { m.release(held) })
	}, nil
}

// Held reports how many keys are currently referenced.
func (m *Manager) Held() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.keys)
}

func (m *Manager) ref(key string) *entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.keys[key]
	if !ok {
		e = &entry{ch: make(chan struct{}, 1)}
		m.keys[key] = e
	}
	e.refs++
	return e
}

func (m *Manager) unref(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := m.keys[key]
	e.refs--
	if e.refs == 0 {
		delete(m.keys, key)
	}
}

func (m *Manager) release(keys []string) {
	for i := len(keys) - 1; i >= 0; i-- {
		m.mu.Lock()
		e := m.keys[keys[i]]
		m.mu.Unlock()
		<-e.ch
		m.unref(keys[i])
	}
}
