package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/sangkips/bursar-api/internal/domain/entity"
	"github.com/sangkips/bursar-api/internal/domain/enum"
	"github.com/sangkips/bursar-api/internal/domain/repository"
)

type planRepository struct {
	s *Store
}

// NewPlanRepository creates an in-memory payment plan repository
func NewPlanRepository(s *Store) repository.PlanRepository {
	return &planRepository{s: s}
}

func (r *planRepository) Create(ctx context.Context, p *entity.PaymentPlan) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p.ID = newID(p.ID)
	stamp(&p.CreatedAt, &p.UpdatedAt)
	for i := range p.Installments {
		in := &p.Installments[i]
		in.ID = newID(in.ID)
		in.PlanID = p.ID
		stamp(&in.CreatedAt, &in.UpdatedAt)
		row := *in
		r.s.instalments[in.ID] = &row
	}
	row := *p
	row.Installments = nil
	r.s.plans[p.ID] = &row
	return nil
}

func (r *planRepository) GetByID(ctx context.Context, id uuid.UUID) (*entity.PaymentPlan, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	p, ok := r.s.plans[id]
	if !ok {
		return nil, nil
	}
	row := r.s.withInstallments(p)
	return &row, nil
}

func (r *planRepository) GetByInvoiceID(ctx context.Context, invoiceID uuid.UUID) (*entity.PaymentPlan, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, p := range r.s.plans {
		if p.InvoiceID == invoiceID {
			row := r.s.withInstallments(p)
			return &row, nil
		}
	}
	return nil, nil
}

func (r *planRepository) Update(ctx context.Context, p *entity.PaymentPlan) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stamp(nil, &p.UpdatedAt)
	row := *p
	row.Installments = nil
	r.s.plans[p.ID] = &row
	return nil
}

func (r *planRepository) GetInstallment(ctx context.Context, id uuid.UUID) (*entity.Installment, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if in, ok := r.s.instalments[id]; ok {
		row := *in
		return &row, nil
	}
	return nil, nil
}

func (r *planRepository) UpdateInstallments(ctx context.Context, installments []entity.Installment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for i := range installments {
		stamp(nil, &installments[i].UpdatedAt)
		row := installments[i]
		r.s.instalments[row.ID] = &row
	}
	return nil
}

func (r *planRepository) ListPastDue(ctx context.Context, day time.Time) ([]entity.Installment, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]entity.Installment, 0)
	for _, in := range r.s.instalments {
		plan, ok := r.s.plans[in.PlanID]
		if !ok || plan.Status != enum.PlanActive || !visible(ctx, in.TenantID) {
			continue
		}
		if in.Status == enum.InstallmentPending && in.DueDate.Before(day) {
			out = append(out, *in)
		}
	}
	return out, nil
}

// withInstallments copies a plan with its installments by number. Caller holds the lock.
func (s *Store) withInstallments(p *entity.PaymentPlan) entity.PaymentPlan {
	row := *p
	row.Installments = nil
	for _, in := range s.instalments {
		if in.PlanID == p.ID {
			row.Installments = append(row.Installments, *in)
		}
	}
	sort.Slice(row.Installments, func(i, j int) bool { return row.Installments[i].Number < row.Installments[j].Number })
	return row
}
