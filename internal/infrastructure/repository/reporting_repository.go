package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sangkips/bursar-api/internal/domain/entity"
	"github.com/sangkips/bursar-api/internal/domain/enum"
	domainRepo "github.com/sangkips/bursar-api/internal/domain/repository"
	"github.com/sangkips/bursar-api/pkg/pagination"
	"gorm.io/gorm"
)

type summaryRepository struct {
	db *gorm.DB
}

// NewSummaryRepository creates a new financial summary repository
func NewSummaryRepository(db *gorm.DB) domainRepo.SummaryRepository {
	return &summaryRepository{db: db}
}

// Replace drops the tenant's rows for the period range and writes summaries in their place.
func (r *summaryRepository) Replace(ctx context.Context, tenantID uuid.UUID, periodType enum.SummaryPeriod, from, to time.Time, summaries []entity.FinancialSummary) error {
	err := conn(ctx, r.db).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("tenant_id = ? AND period_type = ? AND period_date BETWEEN ? AND ?", tenantID, periodType, from, to).
			Delete(&entity.FinancialSummary{}).Error; err != nil {
			return err
		}
		if len(summaries) == 0 {
			return nil
		}
		return tx.Create(&summaries).Error
	})
	return translateError(err)
}

func (r *summaryRepository) List(ctx context.Context, periodType enum.SummaryPeriod, from, to time.Time) ([]entity.FinancialSummary, error) {
	var summaries []entity.FinancialSummary
	err := conn(ctx, r.db).Scopes(TenantScope(ctx)).
		Where("period_type = ? AND period_date BETWEEN ? AND ?", periodType, from, to).
		Order("period_date ASC").
		Find(&summaries).Error
	return summaries, err
}

type eventRepository struct {
	db *gorm.DB
}

// NewEventRepository creates a new domain event outbox repository
func NewEventRepository(db *gorm.DB) domainRepo.EventRepository {
	return &eventRepository{db: db}
}

func (r *eventRepository) Create(ctx context.Context, event *entity.DomainEvent) error {
	return translateError(conn(ctx, r.db).Create(event).Error)
}

// ListPending returns up to Limit+1 unpublished events after the cursor so the
// caller can tell whether another page exists.
func (r *eventRepository) ListPending(ctx context.Context, params *pagination.CursorParams) ([]entity.DomainEvent, error) {
	params.Validate()
	cursor, err := params.DecodeCursor()
	if err != nil {
		return nil, err
	}

	query := conn(ctx, r.db).Scopes(TenantScope(ctx)).Where("published_at IS NULL")
	if cursor != nil {
		query = query.Where("(created_at, id) > (?, ?)", cursor.CreatedAt, cursor.ID)
	}

	var events []entity.DomainEvent
	err = query.Order("created_at ASC, id ASC").Limit(params.Limit + 1).Find(&events).Error
	return events, err
}

func (r *eventRepository) MarkPublished(ctx context.Context, ids []uuid.UUID, at time.Time) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res := conn(ctx, r.db).Model(&entity.DomainEvent{}).Scopes(TenantScope(ctx)).
		Where("id IN ? AND published_at IS NULL", ids).
		Update("published_at", at)
	return res.RowsAffected, res.Error
}
