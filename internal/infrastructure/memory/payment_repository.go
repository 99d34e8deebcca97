package memory

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/sangkips/bursar-api/internal/domain/entity"
	"github.com/sangkips/bursar-api/internal/domain/repository"
	"github.com/shopspring/decimal"
)

type paymentMethodRepository struct {
	s *Store
}

// NewPaymentMethodRepository creates an in-memory payment method repository
func NewPaymentMethodRepository(s *Store) repository.PaymentMethodRepository {
	return &paymentMethodRepository{s: s}
}

func (r *paymentMethodRepository) Create(ctx context.Context, m *entity.PaymentMethod) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	m.ID = newID(m.ID)
	stamp(&m.CreatedAt, &m.UpdatedAt)
	row := *m
	r.s.methods[m.ID] = &row
	return nil
}

func (r *paymentMethodRepository) GetByID(ctx context.Context, id uuid.UUID) (*entity.PaymentMethod, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if m, ok := r.s.methods[id]; ok {
		row := *m
		return &row, nil
	}
	return nil, nil
}

func (r *paymentMethodRepository) GetByCode(ctx context.Context, tenantID uuid.UUID, code string) (*entity.PaymentMethod, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, m := range r.s.methods {
		if m.TenantID == tenantID && m.Code == code {
			row := *m
			return &row, nil
		}
	}
	return nil, nil
}

func (r *paymentMethodRepository) List(ctx context.Context) ([]entity.PaymentMethod, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]entity.PaymentMethod, 0)
	for _, m := range r.s.methods {
		if visible(ctx, m.TenantID) {
			out = append(out, *m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

type paymentRepository struct {
	s *Store
}

// NewPaymentRepository creates an in-memory payment repository
func NewPaymentRepository(s *Store) repository.PaymentRepository {
	return &paymentRepository{s: s}
}

func (r *paymentRepository) Create(ctx context.Context, p *entity.Payment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p.ID = newID(p.ID)
	stamp(&p.CreatedAt, &p.UpdatedAt)
	row := *p
	row.Method = nil
	r.s.payments[p.ID] = &row
	return nil
}

func (r *paymentRepository) GetByID(ctx context.Context, id uuid.UUID) (*entity.Payment, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if p, ok := r.s.payments[id]; ok {
		row := *p
		return &row, nil
	}
	return nil, nil
}

func (r *paymentRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (*entity.Payment, error) {
	return r.GetByID(ctx, id)
}

func (r *paymentRepository) GetByReference(ctx context.Context, tenantID uuid.UUID, reference string) (*entity.Payment, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, p := range r.s.payments {
		if p.TenantID == tenantID && p.Reference == reference {
			row := *p
			return &row, nil
		}
	}
	return nil, nil
}

func (r *paymentRepository) GetByGatewayRef(ctx context.Context, gatewayRef string) (*entity.Payment, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, p := range r.s.payments {
		if p.GatewayRef != nil && *p.GatewayRef == gatewayRef {
			row := *p
			return &row, nil
		}
	}
	return nil, nil
}

func (r *paymentRepository) Update(ctx context.Context, p *entity.Payment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stamp(nil, &p.UpdatedAt)
	row := *p
	row.Method = nil
	r.s.payments[p.ID] = &row
	return nil
}

func (r *paymentRepository) List(ctx context.Context, params *repository.PaymentFilterParams) ([]entity.Payment, int64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []entity.Payment
	for _, p := range r.s.payments {
		if !visible(ctx, p.TenantID) {
			continue
		}
		if params.Search != "" && !strings.Contains(strings.ToLower(p.Reference), strings.ToLower(params.Search)) {
			continue
		}
		if params.StudentID != nil && p.StudentID != *params.StudentID {
			continue
		}
		if params.Status != nil && p.Status != *params.Status {
			continue
		}
		if params.StartDate != nil && p.Date.Before(*params.StartDate) {
			continue
		}
		if params.EndDate != nil && p.Date.After(*params.EndDate) {
			continue
		}
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })

	params.Pagination.Validate()
	start, end := params.Pagination.Window(len(out))
	return out[start:end], int64(len(out)), nil
}

func (r *paymentRepository) ListSettledByStudent(ctx context.Context, studentID uuid.UUID) ([]entity.Payment, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]entity.Payment, 0)
	for _, p := range r.s.payments {
		if visible(ctx, p.TenantID) && p.StudentID == studentID && p.Status.Settled() {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *paymentRepository) ListCompleted(ctx context.Context, from, to time.Time) ([]entity.Payment, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]entity.Payment, 0)
	for _, p := range r.s.payments {
		if visible(ctx, p.TenantID) && p.Status.Settled() && !p.Date.Before(from) && !p.Date.After(to) {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (r *paymentRepository) ListTenantIDs(ctx context.Context) ([]uuid.UUID, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	ids := make([]uuid.UUID, 0)
	for _, p := range r.s.payments {
		ids = append(ids, p.TenantID)
	}
	return lo.Uniq(ids), nil
}

type allocationRepository struct {
	s *Store
}

// NewAllocationRepository creates an in-memory allocation repository
func NewAllocationRepository(s *Store) repository.AllocationRepository {
	return &allocationRepository{s: s}
}

func (r *allocationRepository) Create(ctx context.Context, a *entity.PaymentAllocation) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a.ID = newID(a.ID)
	stamp(&a.CreatedAt, &a.UpdatedAt)
	row := *a
	r.s.allocations[a.ID] = &row
	return nil
}

func (r *allocationRepository) Update(ctx context.Context, a *entity.PaymentAllocation) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stamp(nil, &a.UpdatedAt)
	row := *a
	r.s.allocations[a.ID] = &row
	return nil
}

func (r *allocationRepository) Get(ctx context.Context, paymentID, invoiceID uuid.UUID) (*entity.PaymentAllocation, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, a := range r.s.allocations {
		if a.PaymentID == paymentID && a.InvoiceID == invoiceID {
			row := *a
			return &row, nil
		}
	}
	return nil, nil
}

func (r *allocationRepository) ListByPayment(ctx context.Context, paymentID uuid.UUID) ([]entity.PaymentAllocation, error) {
	return r.list(func(a *entity.PaymentAllocation) bool { return a.PaymentID == paymentID }), nil
}

func (r *allocationRepository) ListByInvoice(ctx context.Context, invoiceID uuid.UUID) ([]entity.PaymentAllocation, error) {
	return r.list(func(a *entity.PaymentAllocation) bool { return a.InvoiceID == invoiceID }), nil
}

func (r *allocationRepository) list(keep func(*entity.PaymentAllocation) bool) []entity.PaymentAllocation {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]entity.PaymentAllocation, 0)
	for _, a := range r.s.allocations {
		if keep(a) {
			out = append(out, *a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out
}

func (r *allocationRepository) SumByPayment(ctx context.Context, paymentID uuid.UUID) (decimal.Decimal, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	sum := decimal.Zero
	for _, a := range r.s.allocations {
		if a.PaymentID == paymentID {
			sum = sum.Add(a.AllocatedAmount)
		}
	}
	return sum, nil
}

func (r *allocationRepository) SumSettledByInvoice(ctx context.Context, invoiceID uuid.UUID) (decimal.Decimal, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	sum := decimal.Zero
	for _, a := range r.s.allocations {
		if a.InvoiceID != invoiceID {
			continue
		}
		if p, ok := r.s.payments[a.PaymentID]; ok && p.Status.Settled() {
			sum = sum.Add(a.AllocatedAmount)
		}
	}
	return sum, nil
}
