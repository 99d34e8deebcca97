package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sangkips/bursar-api/internal/domain/entity"
	"github.com/sangkips/bursar-api/internal/domain/enum"
	"github.com/sangkips/bursar-api/pkg/pagination"
)

// SummaryRepository defines the interface for financial summary data operations
type SummaryRepository interface {
	// Replace deletes the tenant's rows of periodType in [from, to] and stores summaries.
	Replace(ctx context.Context, tenantID uuid.UUID, periodType enum.SummaryPeriod, from, to time.Time, summaries []entity.FinancialSummary) error
	List(ctx context.Context, periodType enum.SummaryPeriod, from, to time.Time) ([]entity.FinancialSummary, error)
}

// EventRepository defines the interface for the domain event outbox
type EventRepository interface {
	Create(ctx context.Context, event *entity.DomainEvent) error
	// ListPending returns unpublished events oldest first using keyset pagination.
	ListPending(ctx context.Context, params *pagination.CursorParams) ([]entity.DomainEvent, error)
	MarkPublished(ctx context.Context, ids []uuid.UUID, at time.Time) (int64, error)
}
