package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sangkips/bursar-api/internal/domain/entity"
	"github.com/sangkips/bursar-api/internal/domain/enum"
	"github.com/sangkips/bursar-api/internal/domain/repository"
	"github.com/sangkips/bursar-api/internal/domain/tenancy"
	"github.com/sangkips/bursar-api/pkg/apperror"
	"github.com/sangkips/bursar-api/pkg/pagination"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// CatalogService manages fee categories, structures and items
type CatalogService struct {
	*Core
}

// NewCatalogService creates a new catalog service
func NewCatalogService(core *Core) *CatalogService {
	return &CatalogService{Core: core}
}

// CategoryInput is the create/update input of a fee category
type CategoryInput struct {
	Name       string `validate:"required,max=255"`
	Code       string `validate:"required,max=50"`
	Mandatory  bool
	Refundable bool
}

// CreateCategory creates a fee category. Codes are unique per tenant.
func (s *CatalogService) CreateCategory(ctx context.Context, input *CategoryInput) (*entity.FeeCategory, error) {
	if err := s.validate.Struct(input); err != nil {
		return nil, err
	}
	actor, err := actorFrom(ctx)
	if err != nil {
		return nil, err
	}

	code := strings.ToUpper(strings.TrimSpace(input.Code))
	existing, err := s.Repos.Categories.GetByCode(ctx, actor.TenantID, code)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, apperror.NewConflictError("Fee category code already exists")
	}

	category := &entity.FeeCategory{
		TenantID:   actor.TenantID,
		Name:       input.Name,
		Code:       code,
		Mandatory:  input.Mandatory,
		Refundable: input.Refundable,
	}
	if err := s.Repos.Categories.Create(ctx, category); err != nil {
		return nil, err
	}
	return category, nil
}

// UpdateCategory changes a category that no fee item uses yet.
func (s *CatalogService) UpdateCategory(ctx context.Context, id uuid.UUID, input *CategoryInput) (*entity.FeeCategory, error) {
	if err := s.validate.Struct(input); err != nil {
		return nil, err
	}
	actor, err := actorFrom(ctx)
	if err != nil {
		return nil, err
	}
	category, err := s.category(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	referenced, err := s.Repos.Categories.IsReferenced(ctx, id)
	if err != nil {
		return nil, err
	}
	if referenced {
		return nil, apperror.NewConflictError("Fee category is used by fee items and can no longer change")
	}

	code := strings.ToUpper(strings.TrimSpace(input.Code))
	if code != category.Code {
		existing, err := s.Repos.Categories.GetByCode(ctx, actor.TenantID, code)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return nil, apperror.NewConflictError("Fee category code already exists")
		}
	}

	category.Name = input.Name
	category.Code = code
	category.Mandatory = input.Mandatory
	category.Refundable = input.Refundable
	if err := s.Repos.Categories.Update(ctx, category); err != nil {
		return nil, err
	}
	return category, nil
}

// ListCategories returns the tenant's fee categories
func (s *CatalogService) ListCategories(ctx context.Context) ([]entity.FeeCategory, error) {
	if _, err := actorFrom(ctx); err != nil {
		return nil, err
	}
	return s.Repos.Categories.List(ctx)
}

// StructureInput is the create input of a fee structure
type StructureInput struct {
	Name          string   `validate:"required,max=255"`
	AcademicYear  string   `validate:"required,max=20"`
	GradeLevels   []string `validate:"dive,required"`
	EffectiveFrom time.Time
	EffectiveTo   *time.Time
}

// CreateStructure creates a fee structure in draft
func (s *CatalogService) CreateStructure(ctx context.Context, input *StructureInput) (*entity.FeeStructure, error) {
	if err := s.validate.Struct(input); err != nil {
		return nil, err
	}
	actor, err := actorFrom(ctx)
	if err != nil {
		return nil, err
	}
	if input.EffectiveFrom.IsZero() {
		return nil, apperror.NewFieldError("effective_from", "effective_from is required")
	}

	from := s.day(input.EffectiveFrom)
	var to *time.Time
	if input.EffectiveTo != nil {
		t := s.day(*input.EffectiveTo)
		if t.Before(from) {
			return nil, apperror.NewFieldError("effective_to", "effective_to must not be before effective_from")
		}
		to = &t
	}

	structure := &entity.FeeStructure{
		TenantID:      actor.TenantID,
		Name:          input.Name,
		AcademicYear:  input.AcademicYear,
		GradeLevels:   datatypes.JSONSlice[string](input.GradeLevels),
		EffectiveFrom: from,
		EffectiveTo:   to,
		Status:        enum.FeeStructureDraft,
	}
	if err := s.Repos.Structures.Create(ctx, structure); err != nil {
		return nil, err
	}
	return structure, nil
}

// TransitionStructure moves a structure through its lifecycle. Archived is terminal.
func (s *CatalogService) TransitionStructure(ctx context.Context, id uuid.UUID, to enum.FeeStructureStatus) (*entity.FeeStructure, error) {
	actor, err := actorFrom(ctx)
	if err != nil {
		return nil, err
	}
	structure, err := s.structure(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if !structure.Status.CanTransitionTo(to) {
		return nil, apperror.New(apperror.ErrInvalidTransition,
			"Fee structure cannot move from "+structure.Status.String()+" to "+to.String())
	}

	structure.Status = to
	if err := s.Repos.Structures.Update(ctx, structure); err != nil {
		return nil, err
	}
	return structure, nil
}

// FeeItemInput is the input of AddFeeItem
type FeeItemInput struct {
	CategoryID       uuid.UUID       `validate:"required"`
	Name             string          `validate:"required,max=255"`
	BaseAmount       decimal.Decimal `validate:"dgte=0"`
	Currency         string          `validate:"omitempty,len=3"`
	Frequency        enum.Frequency  `validate:"required"`
	MaxInstallments  int             `validate:"min=1"`
	LateFeeAmount    decimal.Decimal `validate:"dgte=0"`
	GraceDays        int             `validate:"min=0"`
	DailyPenaltyRate decimal.Decimal `validate:"dgte=0,dlte=1"`
}

// AddFeeItem adds a priced item to a structure that is not archived
func (s *CatalogService) AddFeeItem(ctx context.Context, structureID uuid.UUID, input *FeeItemInput) (*entity.FeeItem, error) {
	if err := s.validate.Struct(input); err != nil {
		return nil, err
	}
	if !input.Frequency.IsValid() {
		return nil, apperror.NewFieldError("frequency", "frequency must be one of term, annual, monthly, quarterly, one_time")
	}
	actor, err := actorFrom(ctx)
	if err != nil {
		return nil, err
	}

	structure, err := s.structure(ctx, actor, structureID)
	if err != nil {
		return nil, err
	}
	if structure.Status == enum.FeeStructureArchived {
		return nil, apperror.New(apperror.ErrInvalidTransition, "Archived fee structures cannot change")
	}
	if _, err := s.category(ctx, actor, input.CategoryID); err != nil {
		return nil, err
	}

	currency := strings.ToUpper(input.Currency)
	if currency == "" {
		currency = s.Billing.Currency
	}
	if currency != s.Billing.Currency {
		return nil, apperror.NewFieldError("currency", "currency must be "+s.Billing.Currency)
	}

	item := &entity.FeeItem{
		TenantID:         actor.TenantID,
		StructureID:      structureID,
		CategoryID:       input.CategoryID,
		Name:             input.Name,
		BaseAmount:       input.BaseAmount.Round(2),
		Currency:         currency,
		Frequency:        input.Frequency,
		MaxInstallments:  input.MaxInstallments,
		LateFeeAmount:    input.LateFeeAmount.Round(2),
		GraceDays:        input.GraceDays,
		DailyPenaltyRate: input.DailyPenaltyRate.Round(6),
	}
	if err := s.Repos.Items.Create(ctx, item); err != nil {
		return nil, err
	}
	return item, nil
}

// GetStructure returns a structure with its items
func (s *CatalogService) GetStructure(ctx context.Context, id uuid.UUID) (*entity.FeeStructure, error) {
	actor, err := actorFrom(ctx)
	if err != nil {
		return nil, err
	}
	structure, err := s.Repos.Structures.GetWithItems(ctx, id)
	if err != nil {
		return nil, err
	}
	return check(actor, structure, func(fs *entity.FeeStructure) uuid.UUID { return fs.TenantID }, "Fee structure")
}

// ListStructures lists structures with pagination
func (s *CatalogService) ListStructures(ctx context.Context, params *repository.FeeStructureFilterParams) (*pagination.PaginatedResult[entity.FeeStructure], error) {
	if _, err := actorFrom(ctx); err != nil {
		return nil, err
	}
	params.Pagination = page(params.Pagination)

	structures, total, err := s.Repos.Structures.List(ctx, params)
	if err != nil {
		return nil, err
	}
	return pagination.NewPaginatedResult(structures, pagination.NewPagination(params.Pagination.Page, params.Pagination.PerPage, total)), nil
}

func (s *CatalogService) structure(ctx context.Context, actor tenancy.Actor, id uuid.UUID) (*entity.FeeStructure, error) {
	structure, err := s.Repos.Structures.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return check(actor, structure, func(fs *entity.FeeStructure) uuid.UUID { return fs.TenantID }, "Fee structure")
}

func (s *CatalogService) category(ctx context.Context, actor tenancy.Actor, id uuid.UUID) (*entity.FeeCategory, error) {
	category, err := s.Repos.Categories.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return check(actor, category, func(fc *entity.FeeCategory) uuid.UUID { return fc.TenantID }, "Fee category")
}
