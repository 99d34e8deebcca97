package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sangkips/bursar-api/internal/domain/entity"
	domainRepo "github.com/sangkips/bursar-api/internal/domain/repository"
	"gorm.io/gorm"
)

type idempotencyRepository struct {
	db *gorm.DB
}

// NewIdempotencyRepository creates a new idempotency key repository
func NewIdempotencyRepository(db *gorm.DB) domainRepo.IdempotencyRepository {
	return &idempotencyRepository{db: db}
}

// GetByKey retrieves a stored response by tenant and key
func (r *idempotencyRepository) GetByKey(ctx context.Context, tenantID uuid.UUID, key string) (*entity.IdempotencyKey, error) {
	return first[entity.IdempotencyKey](conn(ctx, r.db), "tenant_id = ? AND key = ?", tenantID, key)
}

// Create stores a new idempotency key
func (r *idempotencyRepository) Create(ctx context.Context, ikey *entity.IdempotencyKey) error {
	return translateError(conn(ctx, r.db).Create(ikey).Error)
}

// DeleteExpired removes keys past their expiry
func (r *idempotencyRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res := conn(ctx, r.db).Where("expires_at < ?", now).Delete(&entity.IdempotencyKey{})
	return res.RowsAffected, res.Error
}
