// Package memory is an in-process implementation of the repositories, used for
// local runs (STORAGE_DRIVER=memory) and the service tests.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sangkips/bursar-api/internal/domain/entity"
	"github.com/sangkips/bursar-api/internal/domain/repository"
	"github.com/sangkips/bursar-api/internal/domain/tenancy"
)

// Store holds every table. A single lock guards all of them so lookups that
// join tables see one consistent state.
type Store struct {
	mu sync.RWMutex

	categories  map[uuid.UUID]*entity.FeeCategory
	structures  map[uuid.UUID]*entity.FeeStructure
	items       map[uuid.UUID]*entity.FeeItem
	assignments map[uuid.UUID]*entity.StudentFeeAssignment
	invoices    map[uuid.UUID]*entity.Invoice
	lines       map[uuid.UUID][]entity.InvoiceLineItem
	methods     map[uuid.UUID]*entity.PaymentMethod
	payments    map[uuid.UUID]*entity.Payment
	allocations map[uuid.UUID]*entity.PaymentAllocation
	refunds     map[uuid.UUID]*entity.Refund
	adjustments map[uuid.UUID]*entity.RefundAdjustment
	plans       map[uuid.UUID]*entity.PaymentPlan
	instalments map[uuid.UUID]*entity.Installment
	summaries   map[uuid.UUID]*entity.FinancialSummary
	sequences   map[sequenceKey]int64
	events      map[uuid.UUID]*entity.DomainEvent
	idempotency map[uuid.UUID]*entity.IdempotencyKey
}

type sequenceKey struct {
	tenantID uuid.UUID
	name     string
}

// Open creates an empty store.
func Open() *Store {
	return &Store{
		categories:  make(map[uuid.UUID]*entity.FeeCategory),
		structures:  make(map[uuid.UUID]*entity.FeeStructure),
		items:       make(map[uuid.UUID]*entity.FeeItem),
		assignments: make(map[uuid.UUID]*entity.StudentFeeAssignment),
		invoices:    make(map[uuid.UUID]*entity.Invoice),
		lines:       make(map[uuid.UUID][]entity.InvoiceLineItem),
		methods:     make(map[uuid.UUID]*entity.PaymentMethod),
		payments:    make(map[uuid.UUID]*entity.Payment),
		allocations: make(map[uuid.UUID]*entity.PaymentAllocation),
		refunds:     make(map[uuid.UUID]*entity.Refund),
		adjustments: make(map[uuid.UUID]*entity.RefundAdjustment),
		plans:       make(map[uuid.UUID]*entity.PaymentPlan),
		instalments: make(map[uuid.UUID]*entity.Installment),
		summaries:   make(map[uuid.UUID]*entity.FinancialSummary),
		sequences:   make(map[sequenceKey]int64),
		events:      make(map[uuid.UUID]*entity.DomainEvent),
		idempotency: make(map[uuid.UUID]*entity.IdempotencyKey),
	}
}

// visible reports whether a row of tenantID can be listed with ctx. Without a
// tenant on the context nothing is visible.
func visible(ctx context.Context, tenantID uuid.UUID) bool {
	if tenancy.SkipTenantScope(ctx) {
		return true
	}
	current, ok := tenancy.TenantID(ctx)
	return ok && current == tenantID
}

func newID(id uuid.UUID) uuid.UUID {
	if id == uuid.Nil {
		return uuid.New()
	}
	return id
}

func stamp(created, updated *time.Time) {
	now := time.Now()
	if created != nil && created.IsZero() {
		*created = now
	}
	if updated != nil {
		*updated = now
	}
}

type transactor struct{}

// NewTransactor returns a Transactor that runs fn directly. Each repository call
// is atomic on its own; services validate before they write so a failing unit
// of work leaves nothing behind.
func NewTransactor() repository.Transactor {
	return transactor{}
}

func (transactor) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type sequenceRepository struct {
	s *Store
}

// NewSequenceRepository creates an in-memory sequence repository
func NewSequenceRepository(s *Store) repository.SequenceRepository {
	return &sequenceRepository{s: s}
}

func (r *sequenceRepository) Next(ctx context.Context, tenantID uuid.UUID, name string) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	key := sequenceKey{tenantID: tenantID, name: name}
	r.s.sequences[key]++
	return r.s.sequences[key], nil
}

// NewRegistry wires every in-memory repository to s.
func NewRegistry(s *Store) *repository.Registry {
	return &repository.Registry{
		Tx:          NewTransactor(),
		Sequences:   NewSequenceRepository(s),
		Categories:  NewFeeCategoryRepository(s),
		Structures:  NewFeeStructureRepository(s),
		Items:       NewFeeItemRepository(s),
		Assignments: NewAssignmentRepository(s),
		Invoices:    NewInvoiceRepository(s),
		Methods:     NewPaymentMethodRepository(s),
		Payments:    NewPaymentRepository(s),
		Allocations: NewAllocationRepository(s),
		Refunds:     NewRefundRepository(s),
		Plans:       NewPlanRepository(s),
		Summaries:   NewSummaryRepository(s),
		Events:      NewEventRepository(s),
		Idempotency: NewIdempotencyRepository(s),
	}
}
