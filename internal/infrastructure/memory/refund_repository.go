package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/sangkips/bursar-api/internal/domain/entity"
	"github.com/sangkips/bursar-api/internal/domain/enum"
	"github.com/sangkips/bursar-api/internal/domain/repository"
	"github.com/shopspring/decimal"
)

type refundRepository struct {
	s *Store
}

// NewRefundRepository creates an in-memory refund repository
func NewRefundRepository(s *Store) repository.RefundRepository {
	return &refundRepository{s: s}
}

func (r *refundRepository) Create(ctx context.Context, rf *entity.Refund) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	rf.ID = newID(rf.ID)
	stamp(&rf.CreatedAt, &rf.UpdatedAt)
	row := *rf
	row.Adjustments = nil
	r.s.refunds[rf.ID] = &row
	return nil
}

func (r *refundRepository) GetByID(ctx context.Context, id uuid.UUID) (*entity.Refund, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	rf, ok := r.s.refunds[id]
	if !ok {
		return nil, nil
	}
	row := *rf
	for _, adj := range r.s.adjustments {
		if adj.RefundID == id {
			row.Adjustments = append(row.Adjustments, *adj)
		}
	}
	return &row, nil
}

func (r *refundRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (*entity.Refund, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if rf, ok := r.s.refunds[id]; ok {
		row := *rf
		row.Adjustments = nil
		return &row, nil
	}
	return nil, nil
}

func (r *refundRepository) Update(ctx context.Context, rf *entity.Refund) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stamp(nil, &rf.UpdatedAt)
	row := *rf
	row.Adjustments = nil
	r.s.refunds[rf.ID] = &row
	return nil
}

func (r *refundRepository) List(ctx context.Context, params *repository.RefundFilterParams) ([]entity.Refund, int64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []entity.Refund
	for _, rf := range r.s.refunds {
		if !visible(ctx, rf.TenantID) {
			continue
		}
		if params.StudentID != nil && rf.StudentID != *params.StudentID {
			continue
		}
		if params.PaymentID != nil && (rf.OriginalPaymentID == nil || *rf.OriginalPaymentID != *params.PaymentID) {
			continue
		}
		if params.Status != nil && rf.Status != *params.Status {
			continue
		}
		out = append(out, *rf)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })

	params.Pagination.Validate()
	start, end := params.Pagination.Window(len(out))
	return out[start:end], int64(len(out)), nil
}

func (r *refundRepository) SumOpenByPayment(ctx context.Context, paymentID, excludeID uuid.UUID) (decimal.Decimal, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	sum := decimal.Zero
	for _, rf := range r.s.refunds {
		if rf.ID == excludeID || rf.OriginalPaymentID == nil || *rf.OriginalPaymentID != paymentID {
			continue
		}
		if rf.Status == enum.RefundCancelled || rf.Type == enum.RefundOverpayment {
			continue
		}
		sum = sum.Add(rf.Amount)
	}
	return sum, nil
}

func (r *refundRepository) SumOpenOverpayment(ctx context.Context, studentID, excludeID uuid.UUID) (decimal.Decimal, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	sum := decimal.Zero
	for _, rf := range r.s.refunds {
		if rf.ID == excludeID || rf.StudentID != studentID || rf.Type != enum.RefundOverpayment {
			continue
		}
		if rf.Status == enum.RefundPending || rf.Status == enum.RefundApproved {
			sum = sum.Add(rf.Amount)
		}
	}
	return sum, nil
}

func (r *refundRepository) ListProcessed(ctx context.Context, from, to time.Time) ([]entity.Refund, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]entity.Refund, 0)
	for _, rf := range r.s.refunds {
		if !visible(ctx, rf.TenantID) || rf.Status != enum.RefundProcessed || rf.ProcessedAt == nil {
			continue
		}
		if rf.ProcessedAt.Before(from) || !rf.ProcessedAt.Before(to.AddDate(0, 0, 1)) {
			continue
		}
		out = append(out, *rf)
	}
	return out, nil
}

func (r *refundRepository) CreateAdjustments(ctx context.Context, adjustments []entity.RefundAdjustment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for i := range adjustments {
		adjustments[i].ID = newID(adjustments[i].ID)
		stamp(&adjustments[i].CreatedAt, nil)
		row := adjustments[i]
		r.s.adjustments[row.ID] = &row
	}
	return nil
}

func (r *refundRepository) SumAdjustmentsByInvoice(ctx context.Context, invoiceID uuid.UUID) (decimal.Decimal, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	sum := decimal.Zero
	for _, adj := range r.s.adjustments {
		if adj.InvoiceID == invoiceID {
			sum = sum.Add(adj.Amount)
		}
	}
	return sum, nil
}

func (r *refundRepository) ListAdjustmentsByPayment(ctx context.Context, paymentID uuid.UUID) ([]entity.RefundAdjustment, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]entity.RefundAdjustment, 0)
	for _, adj := range r.s.adjustments {
		if adj.PaymentID == paymentID {
			out = append(out, *adj)
		}
	}
	return out, nil
}
