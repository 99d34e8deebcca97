package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sangkips/bursar-api/internal/domain/entity"
	"github.com/sangkips/bursar-api/internal/domain/enum"
	domainRepo "github.com/sangkips/bursar-api/internal/domain/repository"
	"gorm.io/gorm"
)

var openInvoiceStatuses = []enum.InvoiceStatus{
	enum.InvoicePending, enum.InvoiceSent, enum.InvoicePartial, enum.InvoiceOverdue,
}

type invoiceRepository struct {
	db *gorm.DB
}

// NewInvoiceRepository creates a new invoice repository
func NewInvoiceRepository(db *gorm.DB) domainRepo.InvoiceRepository {
	return &invoiceRepository{db: db}
}

// Create inserts the invoice together with its line items.
func (r *invoiceRepository) Create(ctx context.Context, invoice *entity.Invoice) error {
	return translateError(conn(ctx, r.db).Create(invoice).Error)
}

func (r *invoiceRepository) GetByID(ctx context.Context, id uuid.UUID) (*entity.Invoice, error) {
	return first[entity.Invoice](conn(ctx, r.db).Preload("LineItems", orderByCreated), "id = ?", id)
}

func (r *invoiceRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (*entity.Invoice, error) {
	return first[entity.Invoice](forUpdate(conn(ctx, r.db)), "id = ?", id)
}

// Update saves the header only; line items are immutable after creation.
func (r *invoiceRepository) Update(ctx context.Context, invoice *entity.Invoice) error {
	return translateError(conn(ctx, r.db).Omit("LineItems").Save(invoice).Error)
}

func (r *invoiceRepository) List(ctx context.Context, params *domainRepo.InvoiceFilterParams) ([]entity.Invoice, int64, error) {
	var invoices []entity.Invoice
	var total int64

	query := conn(ctx, r.db).Model(&entity.Invoice{}).Scopes(TenantScope(ctx))

	if params.Search != "" {
		query = query.Where("invoice_number ILIKE ?", "%"+params.Search+"%")
	}
	if params.StudentID != nil {
		query = query.Where("student_id = ?", *params.StudentID)
	}
	if params.Status != nil {
		query = query.Where("status = ?", *params.Status)
	}
	if params.PeriodKey != "" {
		query = query.Where("period_key = ?", params.PeriodKey)
	}
	if params.StartDate != nil {
		query = query.Where("invoice_date >= ?", *params.StartDate)
	}
	if params.EndDate != nil {
		query = query.Where("invoice_date <= ?", *params.EndDate)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	params.Pagination.Validate()
	err := query.Scopes(Paginate(params.Pagination.Page, params.Pagination.PerPage)).
		Order("invoice_number DESC").
		Find(&invoices).Error
	return invoices, total, err
}

func (r *invoiceRepository) ListOpenByStudent(ctx context.Context, studentID uuid.UUID) ([]entity.Invoice, error) {
	var invoices []entity.Invoice
	err := conn(ctx, r.db).Scopes(TenantScope(ctx)).
		Where("student_id = ? AND status IN ?", studentID, openInvoiceStatuses).
		Order("due_date ASC, id ASC").
		Find(&invoices).Error
	return invoices, err
}

func (r *invoiceRepository) ListOpen(ctx context.Context) ([]entity.Invoice, error) {
	var invoices []entity.Invoice
	err := conn(ctx, r.db).Scopes(TenantScope(ctx)).
		Where("status IN ?", openInvoiceStatuses).
		Order("due_date ASC, id ASC").
		Find(&invoices).Error
	return invoices, err
}

func (r *invoiceRepository) ExistsForPeriod(ctx context.Context, studentID, structureID uuid.UUID, periodKey string) (bool, error) {
	var count int64
	err := conn(ctx, r.db).Model(&entity.Invoice{}).Scopes(TenantScope(ctx)).
		Joins("JOIN invoice_line_items li ON li.invoice_id = invoices.id").
		Where("invoices.student_id = ? AND invoices.period_key = ? AND invoices.status <> ?", studentID, periodKey, enum.InvoiceCancelled).
		Where("li.structure_id = ?", structureID).
		Count(&count).Error
	return count > 0, err
}

func (r *invoiceRepository) HasBilledFeeItem(ctx context.Context, studentID, feeItemID uuid.UUID) (bool, error) {
	var count int64
	err := conn(ctx, r.db).Model(&entity.Invoice{}).Scopes(TenantScope(ctx)).
		Joins("JOIN invoice_line_items li ON li.invoice_id = invoices.id").
		Where("invoices.student_id = ? AND invoices.status <> ?", studentID, enum.InvoiceCancelled).
		Where("li.fee_item_id = ?", feeItemID).
		Count(&count).Error
	return count > 0, err
}

func (r *invoiceRepository) ListBilled(ctx context.Context, from, to time.Time) ([]entity.Invoice, error) {
	var invoices []entity.Invoice
	err := conn(ctx, r.db).Scopes(TenantScope(ctx)).
		Where("status NOT IN ?", []enum.InvoiceStatus{enum.InvoiceDraft, enum.InvoiceCancelled}).
		Where("invoice_date BETWEEN ? AND ?", from, to).
		Find(&invoices).Error
	return invoices, err
}

func (r *invoiceRepository) ListTenantIDs(ctx context.Context) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := conn(ctx, r.db).Model(&entity.Invoice{}).Distinct("tenant_id").Pluck("tenant_id", &ids).Error
	return ids, err
}
