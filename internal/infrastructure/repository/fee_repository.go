package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/sangkips/bursar-api/internal/domain/entity"
	domainRepo "github.com/sangkips/bursar-api/internal/domain/repository"
	"gorm.io/gorm"
)

type feeCategoryRepository struct {
	db *gorm.DB
}

// NewFeeCategoryRepository creates a new fee category repository
func NewFeeCategoryRepository(db *gorm.DB) domainRepo.FeeCategoryRepository {
	return &feeCategoryRepository{db: db}
}

func (r *feeCategoryRepository) Create(ctx context.Context, category *entity.FeeCategory) error {
	return translateError(conn(ctx, r.db).Create(category).Error)
}

func (r *feeCategoryRepository) GetByID(ctx context.Context, id uuid.UUID) (*entity.FeeCategory, error) {
	return first[entity.FeeCategory](conn(ctx, r.db), "id = ?", id)
}

func (r *feeCategoryRepository) GetByCode(ctx context.Context, tenantID uuid.UUID, code string) (*entity.FeeCategory, error) {
	return first[entity.FeeCategory](conn(ctx, r.db), "tenant_id = ? AND code = ?", tenantID, code)
}

func (r *feeCategoryRepository) Update(ctx context.Context, category *entity.FeeCategory) error {
	return translateError(conn(ctx, r.db).Save(category).Error)
}

func (r *feeCategoryRepository) List(ctx context.Context) ([]entity.FeeCategory, error) {
	var categories []entity.FeeCategory
	err := conn(ctx, r.db).Scopes(TenantScope(ctx)).Order("name ASC").Find(&categories).Error
	return categories, err
}

func (r *feeCategoryRepository) IsReferenced(ctx context.Context, id uuid.UUID) (bool, error) {
	var count int64
	err := conn(ctx, r.db).Model(&entity.FeeItem{}).Where("category_id = ?", id).Count(&count).Error
	return count > 0, err
}

type feeStructureRepository struct {
	db *gorm.DB
}

// NewFeeStructureRepository creates a new fee structure repository
func NewFeeStructureRepository(db *gorm.DB) domainRepo.FeeStructureRepository {
	return &feeStructureRepository{db: db}
}

func (r *feeStructureRepository) Create(ctx context.Context, structure *entity.FeeStructure) error {
	return translateError(conn(ctx, r.db).Omit("Items").Create(structure).Error)
}

func (r *feeStructureRepository) GetByID(ctx context.Context, id uuid.UUID) (*entity.FeeStructure, error) {
	return first[entity.FeeStructure](conn(ctx, r.db), "id = ?", id)
}

func (r *feeStructureRepository) GetWithItems(ctx context.Context, id uuid.UUID) (*entity.FeeStructure, error) {
	return first[entity.FeeStructure](conn(ctx, r.db).Preload("Items", orderByCreated), "id = ?", id)
}

func (r *feeStructureRepository) GetByIDsWithItems(ctx context.Context, ids []uuid.UUID) ([]entity.FeeStructure, error) {
	var structures []entity.FeeStructure
	if len(ids) == 0 {
		return structures, nil
	}
	err := conn(ctx, r.db).Preload("Items", orderByCreated).Where("id IN ?", ids).Find(&structures).Error
	return structures, err
}

func (r *feeStructureRepository) Update(ctx context.Context, structure *entity.FeeStructure) error {
	return translateError(conn(ctx, r.db).Omit("Items").Save(structure).Error)
}

func (r *feeStructureRepository) List(ctx context.Context, params *domainRepo.FeeStructureFilterParams) ([]entity.FeeStructure, int64, error) {
	var structures []entity.FeeStructure
	var total int64

	query := conn(ctx, r.db).Model(&entity.FeeStructure{}).Scopes(TenantScope(ctx))
	if params.AcademicYear != "" {
		query = query.Where("academic_year = ?", params.AcademicYear)
	}
	if params.Status != nil {
		query = query.Where("status = ?", *params.Status)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	params.Pagination.Validate()
	err := query.Scopes(Paginate(params.Pagination.Page, params.Pagination.PerPage)).
		Order("created_at DESC").
		Find(&structures).Error
	return structures, total, err
}

func orderByCreated(db *gorm.DB) *gorm.DB {
	return db.Order("created_at ASC")
}

type feeItemRepository struct {
	db *gorm.DB
}

// NewFeeItemRepository creates a new fee item repository
func NewFeeItemRepository(db *gorm.DB) domainRepo.FeeItemRepository {
	return &feeItemRepository{db: db}
}

func (r *feeItemRepository) Create(ctx context.Context, item *entity.FeeItem) error {
	return translateError(conn(ctx, r.db).Omit("Category").Create(item).Error)
}

func (r *feeItemRepository) GetByID(ctx context.Context, id uuid.UUID) (*entity.FeeItem, error) {
	return first[entity.FeeItem](conn(ctx, r.db), "id = ?", id)
}

func (r *feeItemRepository) ListByStructure(ctx context.Context, structureID uuid.UUID) ([]entity.FeeItem, error) {
	var items []entity.FeeItem
	err := conn(ctx, r.db).Where("structure_id = ?", structureID).Order("created_at ASC").Find(&items).Error
	return items, err
}
