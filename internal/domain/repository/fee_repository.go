package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/sangkips/bursar-api/internal/domain/entity"
	"github.com/sangkips/bursar-api/internal/domain/enum"
	"github.com/sangkips/bursar-api/pkg/pagination"
)

// FeeCategoryRepository defines the interface for fee category data operations
type FeeCategoryRepository interface {
	Create(ctx context.Context, category *entity.FeeCategory) error
	GetByID(ctx context.Context, id uuid.UUID) (*entity.FeeCategory, error)
	GetByCode(ctx context.Context, tenantID uuid.UUID, code string) (*entity.FeeCategory, error)
	Update(ctx context.Context, category *entity.FeeCategory) error
	List(ctx context.Context) ([]entity.FeeCategory, error)
	// IsReferenced reports whether any fee item uses the category.
	IsReferenced(ctx context.Context, id uuid.UUID) (bool, error)
}

// FeeStructureRepository defines the interface for fee structure data operations
type FeeStructureRepository interface {
	Create(ctx context.Context, structure *entity.FeeStructure) error
	GetByID(ctx context.Context, id uuid.UUID) (*entity.FeeStructure, error)
	GetWithItems(ctx context.Context, id uuid.UUID) (*entity.FeeStructure, error)
	GetByIDsWithItems(ctx context.Context, ids []uuid.UUID) ([]entity.FeeStructure, error)
	Update(ctx context.Context, structure *entity.FeeStructure) error
	List(ctx context.Context, params *FeeStructureFilterParams) ([]entity.FeeStructure, int64, error)
}

// FeeStructureFilterParams contains filtering parameters for structure queries
type FeeStructureFilterParams struct {
	Pagination   *pagination.PaginationParams
	AcademicYear string
	Status       *enum.FeeStructureStatus
}

// FeeItemRepository defines the interface for fee item data operations
type FeeItemRepository interface {
	Create(ctx context.Context, item *entity.FeeItem) error
	GetByID(ctx context.Context, id uuid.UUID) (*entity.FeeItem, error)
	ListByStructure(ctx context.Context, structureID uuid.UUID) ([]entity.FeeItem, error)
}
