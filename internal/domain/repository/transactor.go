package repository

import (
	"context"

	"github.com/google/uuid"
)

// Transactor runs fn as one unit of work. Repository calls made with the context
// passed to fn join the same transaction.
type Transactor interface {
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// SequenceRepository hands out per-tenant monotonically increasing numbers.
type SequenceRepository interface {
	// Next atomically increments and returns the named counter of the tenant.
	Next(ctx context.Context, tenantID uuid.UUID, name string) (int64, error)
}

// Registry bundles one implementation of every repository so the storage
// driver can be chosen in one place.
type Registry struct {
	Tx          Transactor
	Sequences   SequenceRepository
	Categories  FeeCategoryRepository
	Structures  FeeStructureRepository
	Items       FeeItemRepository
	Assignments AssignmentRepository
	Invoices    InvoiceRepository
	Methods     PaymentMethodRepository
	Payments    PaymentRepository
	Allocations AllocationRepository
	Refunds     RefundRepository
	Plans       PlanRepository
	Summaries   SummaryRepository
	Events      EventRepository
	Idempotency IdempotencyRepository
}
