package memory

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/sangkips/bursar-api/internal/domain/entity"
	"github.com/sangkips/bursar-api/internal/domain/enum"
	"github.com/sangkips/bursar-api/internal/domain/repository"
)

type invoiceRepository struct {
	s *Store
}

// NewInvoiceRepository creates an in-memory invoice repository
func NewInvoiceRepository(s *Store) repository.InvoiceRepository {
	return &invoiceRepository{s: s}
}

func (r *invoiceRepository) Create(ctx context.Context, inv *entity.Invoice) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	inv.ID = newID(inv.ID)
	stamp(&inv.CreatedAt, &inv.UpdatedAt)
	lines := make([]entity.InvoiceLineItem, len(inv.LineItems))
	for i := range inv.LineItems {
		inv.LineItems[i].ID = newID(inv.LineItems[i].ID)
		inv.LineItems[i].InvoiceID = inv.ID
		stamp(&inv.LineItems[i].CreatedAt, nil)
		lines[i] = inv.LineItems[i]
	}
	row := *inv
	row.LineItems = nil
	r.s.invoices[inv.ID] = &row
	r.s.lines[inv.ID] = lines
	return nil
}

func (r *invoiceRepository) GetByID(ctx context.Context, id uuid.UUID) (*entity.Invoice, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	inv, ok := r.s.invoices[id]
	if !ok {
		return nil, nil
	}
	row := *inv
	row.LineItems = append([]entity.InvoiceLineItem(nil), r.s.lines[id]...)
	return &row, nil
}

func (r *invoiceRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (*entity.Invoice, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if inv, ok := r.s.invoices[id]; ok {
		row := *inv
		row.LineItems = nil
		return &row, nil
	}
	return nil, nil
}

func (r *invoiceRepository) Update(ctx context.Context, inv *entity.Invoice) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stamp(nil, &inv.UpdatedAt)
	row := *inv
	row.LineItems = nil
	r.s.invoices[inv.ID] = &row
	return nil
}

func (r *invoiceRepository) List(ctx context.Context, params *repository.InvoiceFilterParams) ([]entity.Invoice, int64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []entity.Invoice
	for _, inv := range r.s.invoices {
		if !visible(ctx, inv.TenantID) {
			continue
		}
		if params.Search != "" && !strings.Contains(strings.ToLower(inv.InvoiceNumber), strings.ToLower(params.Search)) {
			continue
		}
		if params.StudentID != nil && inv.StudentID != *params.StudentID {
			continue
		}
		if params.Status != nil && inv.Status != *params.Status {
			continue
		}
		if params.PeriodKey != "" && inv.PeriodKey != params.PeriodKey {
			continue
		}
		if params.StartDate != nil && inv.InvoiceDate.Before(*params.StartDate) {
			continue
		}
		if params.EndDate != nil && inv.InvoiceDate.After(*params.EndDate) {
			continue
		}
		out = append(out, *inv)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].InvoiceNumber > out[j].InvoiceNumber })

	params.Pagination.Validate()
	start, end := params.Pagination.Window(len(out))
	return out[start:end], int64(len(out)), nil
}

func (r *invoiceRepository) ListOpenByStudent(ctx context.Context, studentID uuid.UUID) ([]entity.Invoice, error) {
	return r.open(ctx, func(inv *entity.Invoice) bool { return inv.StudentID == studentID }), nil
}

func (r *invoiceRepository) ListOpen(ctx context.Context) ([]entity.Invoice, error) {
	return r.open(ctx, func(*entity.Invoice) bool { return true }), nil
}

func (r *invoiceRepository) open(ctx context.Context, keep func(*entity.Invoice) bool) []entity.Invoice {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]entity.Invoice, 0)
	for _, inv := range r.s.invoices {
		if visible(ctx, inv.TenantID) && inv.Status.IsOpen() && keep(inv) {
			out = append(out, *inv)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].DueDate.Equal(out[j].DueDate) {
			return out[i].DueDate.Before(out[j].DueDate)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out
}

func (r *invoiceRepository) ExistsForPeriod(ctx context.Context, studentID, structureID uuid.UUID, periodKey string) (bool, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for id, inv := range r.s.invoices {
		if !visible(ctx, inv.TenantID) || inv.StudentID != studentID || inv.PeriodKey != periodKey || inv.Status == enum.InvoiceCancelled {
			continue
		}
		if lo.ContainsBy(r.s.lines[id], func(l entity.InvoiceLineItem) bool { return l.StructureID == structureID }) {
			return true, nil
		}
	}
	return false, nil
}

func (r *invoiceRepository) HasBilledFeeItem(ctx context.Context, studentID, feeItemID uuid.UUID) (bool, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for id, inv := range r.s.invoices {
		if !visible(ctx, inv.TenantID) || inv.StudentID != studentID || inv.Status == enum.InvoiceCancelled {
			continue
		}
		if lo.ContainsBy(r.s.lines[id], func(l entity.InvoiceLineItem) bool { return l.FeeItemID == feeItemID }) {
			return true, nil
		}
	}
	return false, nil
}

func (r *invoiceRepository) ListBilled(ctx context.Context, from, to time.Time) ([]entity.Invoice, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]entity.Invoice, 0)
	for _, inv := range r.s.invoices {
		if !visible(ctx, inv.TenantID) || inv.Status == enum.InvoiceDraft || inv.Status == enum.InvoiceCancelled {
			continue
		}
		if inv.InvoiceDate.Before(from) || inv.InvoiceDate.After(to) {
			continue
		}
		out = append(out, *inv)
	}
	return out, nil
}

func (r *invoiceRepository) ListTenantIDs(ctx context.Context) ([]uuid.UUID, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	ids := make([]uuid.UUID, 0)
	for _, inv := range r.s.invoices {
		ids = append(ids, inv.TenantID)
	}
	return lo.Uniq(ids), nil
}
