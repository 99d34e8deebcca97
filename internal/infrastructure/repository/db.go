package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	domainRepo "github.com/sangkips/bursar-api/internal/domain/repository"
	"github.com/sangkips/bursar-api/pkg/apperror"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type txKey struct{}

// conn returns the transaction carried by ctx, or the pool.
func conn(ctx context.Context, db *gorm.DB) *gorm.DB {
	if tx, ok := ctx.Value(txKey{}).(*gorm.DB); ok {
		return tx.WithContext(ctx)
	}
	return db.WithContext(ctx)
}

// forUpdate locks the selected rows until the surrounding transaction ends.
func forUpdate(db *gorm.DB) *gorm.DB {
	return db.Clauses(clause.Locking{Strength: "UPDATE"})
}

// Postgres error codes worth a retry or a specific answer.
const (
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
	pgLockNotAvailable     = "55P03"
	pgUniqueViolation      = "23505"
)

// translateError maps driver errors onto application errors.
func translateError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case pgSerializationFailure, pgDeadlockDetected, pgLockNotAvailable:
		return apperror.New(apperror.ErrConcurrency, "Concurrent update detected, please retry")
	case pgUniqueViolation:
		return apperror.NewConflictError("Record already exists: " + pgErr.ConstraintName)
	}
	return err
}

type transactor struct {
	db *gorm.DB
}

// NewTransactor creates a Transactor backed by database transactions.
func NewTransactor(db *gorm.DB) domainRepo.Transactor {
	return &transactor{db: db}
}

func (t *transactor) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(*gorm.DB); ok {
		return fn(ctx)
	}
	err := t.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(context.WithValue(ctx, txKey{}, tx))
	})
	return translateError(err)
}

type sequenceRepository struct {
	db *gorm.DB
}

// NewSequenceRepository creates a new sequence repository
func NewSequenceRepository(db *gorm.DB) domainRepo.SequenceRepository {
	return &sequenceRepository{db: db}
}

func (r *sequenceRepository) Next(ctx context.Context, tenantID uuid.UUID, name string) (int64, error) {
	var value int64
	err := conn(ctx, r.db).Raw(`
		INSERT INTO tenant_sequences (tenant_id, name, last_value, updated_at)
		VALUES (?, ?, 1, ?)
		ON CONFLICT (tenant_id, name)
		DO UPDATE SET last_value = tenant_sequences.last_value + 1, updated_at = EXCLUDED.updated_at
		RETURNING last_value`, tenantID, name, time.Now()).
		Scan(&value).Error
	return value, translateError(err)
}

// NewRegistry wires every gorm repository to db.
func NewRegistry(db *gorm.DB) *domainRepo.Registry {
	return &domainRepo.Registry{
		Tx:          NewTransactor(db),
		Sequences:   NewSequenceRepository(db),
		Categories:  NewFeeCategoryRepository(db),
		Structures:  NewFeeStructureRepository(db),
		Items:       NewFeeItemRepository(db),
		Assignments: NewAssignmentRepository(db),
		Invoices:    NewInvoiceRepository(db),
		Methods:     NewPaymentMethodRepository(db),
		Payments:    NewPaymentRepository(db),
		Allocations: NewAllocationRepository(db),
		Refunds:     NewRefundRepository(db),
		Plans:       NewPlanRepository(db),
		Summaries:   NewSummaryRepository(db),
		Events:      NewEventRepository(db),
		Idempotency: NewIdempotencyRepository(db),
	}
}

// first runs a First query and maps "not found" to a nil result.
func first[T any](q *gorm.DB, conds ...interface{}) (*T, error) {
	var row T
	err := q.First(&row, conds...).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}
