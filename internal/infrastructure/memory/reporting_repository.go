package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/sangkips/bursar-api/internal/domain/entity"
	"github.com/sangkips/bursar-api/internal/domain/enum"
	"github.com/sangkips/bursar-api/internal/domain/repository"
	"github.com/sangkips/bursar-api/pkg/pagination"
)

type summaryRepository struct {
	s *Store
}

// NewSummaryRepository creates an in-memory summary repository
func NewSummaryRepository(s *Store) repository.SummaryRepository {
	return &summaryRepository{s: s}
}

func (r *summaryRepository) Replace(ctx context.Context, tenantID uuid.UUID, periodType enum.SummaryPeriod, from, to time.Time, summaries []entity.FinancialSummary) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for id, sm := range r.s.summaries {
		if sm.TenantID == tenantID && sm.PeriodType == periodType && !sm.PeriodDate.Before(from) && !sm.PeriodDate.After(to) {
			delete(r.s.summaries, id)
		}
	}
	for i := range summaries {
		summaries[i].ID = newID(summaries[i].ID)
		row := summaries[i]
		r.s.summaries[row.ID] = &row
	}
	return nil
}

func (r *summaryRepository) List(ctx context.Context, periodType enum.SummaryPeriod, from, to time.Time) ([]entity.FinancialSummary, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]entity.FinancialSummary, 0)
	for _, sm := range r.s.summaries {
		if visible(ctx, sm.TenantID) && sm.PeriodType == periodType && !sm.PeriodDate.Before(from) && !sm.PeriodDate.After(to) {
			out = append(out, *sm)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PeriodDate.Before(out[j].PeriodDate) })
	return out, nil
}

type eventRepository struct {
	s *Store
}

// NewEventRepository creates an in-memory event outbox
func NewEventRepository(s *Store) repository.EventRepository {
	return &eventRepository{s: s}
}

func (r *eventRepository) Create(ctx context.Context, e *entity.DomainEvent) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	e.ID = newID(e.ID)
	stamp(&e.CreatedAt, nil)
	row := *e
	r.s.events[e.ID] = &row
	return nil
}

func (r *eventRepository) ListPending(ctx context.Context, params *pagination.CursorParams) ([]entity.DomainEvent, error) {
	params.Validate()
	cursor, err := params.DecodeCursor()
	if err != nil {
		return nil, err
	}

	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]entity.DomainEvent, 0)
	for _, e := range r.s.events {
		if !visible(ctx, e.TenantID) || e.PublishedAt != nil {
			continue
		}
		if cursor != nil && !after(e, cursor) {
			continue
		}
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	if len(out) > params.Limit+1 {
		out = out[:params.Limit+1]
	}
	return out, nil
}

func after(e *entity.DomainEvent, c *pagination.Cursor) bool {
	if e.CreatedAt.Equal(c.CreatedAt) {
		return e.ID.String() > c.ID
	}
	return e.CreatedAt.After(c.CreatedAt)
}

func (r *eventRepository) MarkPublished(ctx context.Context, ids []uuid.UUID, at time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for _, id := range ids {
		e, ok := r.s.events[id]
		if !ok || e.PublishedAt != nil || !visible(ctx, e.TenantID) {
			continue
		}
		published := at
		e.PublishedAt = &published
		n++
	}
	return n, nil
}

type idempotencyRepository struct {
	s *Store
}

// NewIdempotencyRepository creates an in-memory idempotency key repository
func NewIdempotencyRepository(s *Store) repository.IdempotencyRepository {
	return &idempotencyRepository{s: s}
}

func (r *idempotencyRepository) GetByKey(ctx context.Context, tenantID uuid.UUID, key string) (*entity.IdempotencyKey, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, k := range r.s.idempotency {
		if k.TenantID == tenantID && k.Key == key {
			row := *k
			return &row, nil
		}
	}
	return nil, nil
}

func (r *idempotencyRepository) Create(ctx context.Context, k *entity.IdempotencyKey) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	k.ID = newID(k.ID)
	stamp(&k.CreatedAt, nil)
	row := *k
	r.s.idempotency[k.ID] = &row
	return nil
}

func (r *idempotencyRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for id, k := range r.s.idempotency {
		if k.IsExpired(now) {
			delete(r.s.idempotency, id)
			n++
		}
	}
	return n, nil
}
