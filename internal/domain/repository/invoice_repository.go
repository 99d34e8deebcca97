package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sangkips/bursar-api/internal/domain/entity"
	"github.com/sangkips/bursar-api/internal/domain/enum"
	"github.com/sangkips/bursar-api/pkg/pagination"
)

// InvoiceRepository defines the interface for invoice data operations
type InvoiceRepository interface {
	// Create stores the invoice together with its line items.
	Create(ctx context.Context, invoice *entity.Invoice) error
	// GetByID returns the invoice with its line items.
	GetByID(ctx context.Context, id uuid.UUID) (*entity.Invoice, error)
	// GetForUpdate returns the invoice row locked for the current transaction.
	GetForUpdate(ctx context.Context, id uuid.UUID) (*entity.Invoice, error)
	// Update writes the invoice header only.
	Update(ctx context.Context, invoice *entity.Invoice) error
	List(ctx context.Context, params *InvoiceFilterParams) ([]entity.Invoice, int64, error)
	// ListOpenByStudent returns invoices that can receive allocations, oldest due date first.
	ListOpenByStudent(ctx context.Context, studentID uuid.UUID) ([]entity.Invoice, error)
	// ListOpen returns every open invoice of the caller tenant.
	ListOpen(ctx context.Context) ([]entity.Invoice, error)
	// ExistsForPeriod reports whether a non-cancelled invoice already bills the
	// structure to the student for the period.
	ExistsForPeriod(ctx context.Context, studentID, structureID uuid.UUID, periodKey string) (bool, error)
	// HasBilledFeeItem reports whether the fee item was ever billed to the student
	// on a non-cancelled invoice.
	HasBilledFeeItem(ctx context.Context, studentID, feeItemID uuid.UUID) (bool, error)
	// ListBilled returns issued (non draft, non cancelled) invoices dated in [from, to].
	ListBilled(ctx context.Context, from, to time.Time) ([]entity.Invoice, error)
	// ListTenantIDs returns the tenants that have open invoices. It ignores tenant scope.
	ListTenantIDs(ctx context.Context) ([]uuid.UUID, error)
}

// InvoiceFilterParams contains filtering parameters for invoice queries
type InvoiceFilterParams struct {
	Pagination *pagination.PaginationParams
	Search     string
	StudentID  *uuid.UUID
	Status     *enum.InvoiceStatus
	PeriodKey  string
	StartDate  *time.Time
	EndDate    *time.Time
}
