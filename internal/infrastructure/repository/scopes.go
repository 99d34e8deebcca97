package repository

import (
	"context"

	"github.com/sangkips/bursar-api/internal/domain/tenancy"
	"gorm.io/gorm"
)

// TenantScope returns a GORM scope that filters by the caller's tenant.
// It should be applied to every list query of tenant-scoped entities.
// Batch jobs that mark the context with tenancy.WithSkipTenantScope see all rows.
func TenantScope(ctx context.Context) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if tenancy.SkipTenantScope(ctx) {
			return db
		}

		tenantID, ok := tenancy.TenantID(ctx)
		if !ok {
			// Fail-safe: return no results if tenant context missing
			return db.Where("1 = 0")
		}
		return db.Where("tenant_id = ?", tenantID)
	}
}

// Paginate applies limit and offset of validated page parameters.
func Paginate(page, perPage int) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Offset((page - 1) * perPage).Limit(perPage)
	}
}
