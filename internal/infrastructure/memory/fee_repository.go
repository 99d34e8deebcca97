package memory

import (
	"context"
	"sort"

	"github.com/google/uuid"
	"github.com/sangkips/bursar-api/internal/domain/entity"
	"github.com/sangkips/bursar-api/internal/domain/repository"
)

type feeCategoryRepository struct {
	s *Store
}

// NewFeeCategoryRepository creates an in-memory fee category repository
func NewFeeCategoryRepository(s *Store) repository.FeeCategoryRepository {
	return &feeCategoryRepository{s: s}
}

func (r *feeCategoryRepository) Create(ctx context.Context, c *entity.FeeCategory) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c.ID = newID(c.ID)
	stamp(&c.CreatedAt, &c.UpdatedAt)
	row := *c
	r.s.categories[c.ID] = &row
	return nil
}

func (r *feeCategoryRepository) GetByID(ctx context.Context, id uuid.UUID) (*entity.FeeCategory, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if c, ok := r.s.categories[id]; ok {
		row := *c
		return &row, nil
	}
	return nil, nil
}

func (r *feeCategoryRepository) GetByCode(ctx context.Context, tenantID uuid.UUID, code string) (*entity.FeeCategory, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, c := range r.s.categories {
		if c.TenantID == tenantID && c.Code == code {
			row := *c
			return &row, nil
		}
	}
	return nil, nil
}

func (r *feeCategoryRepository) Update(ctx context.Context, c *entity.FeeCategory) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stamp(nil, &c.UpdatedAt)
	row := *c
	r.s.categories[c.ID] = &row
	return nil
}

func (r *feeCategoryRepository) List(ctx context.Context) ([]entity.FeeCategory, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]entity.FeeCategory, 0)
	for _, c := range r.s.categories {
		if visible(ctx, c.TenantID) {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *feeCategoryRepository) IsReferenced(ctx context.Context, id uuid.UUID) (bool, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, item := range r.s.items {
		if item.CategoryID == id {
			return true, nil
		}
	}
	return false, nil
}

type feeStructureRepository struct {
	s *Store
}

// NewFeeStructureRepository creates an in-memory fee structure repository
func NewFeeStructureRepository(s *Store) repository.FeeStructureRepository {
	return &feeStructureRepository{s: s}
}

func (r *feeStructureRepository) Create(ctx context.Context, fs *entity.FeeStructure) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	fs.ID = newID(fs.ID)
	stamp(&fs.CreatedAt, &fs.UpdatedAt)
	row := *fs
	row.Items = nil
	r.s.structures[fs.ID] = &row
	return nil
}

func (r *feeStructureRepository) GetByID(ctx context.Context, id uuid.UUID) (*entity.FeeStructure, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if fs, ok := r.s.structures[id]; ok {
		row := *fs
		return &row, nil
	}
	return nil, nil
}

func (r *feeStructureRepository) GetWithItems(ctx context.Context, id uuid.UUID) (*entity.FeeStructure, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	fs, ok := r.s.structures[id]
	if !ok {
		return nil, nil
	}
	row := r.s.withItems(fs)
	return &row, nil
}

func (r *feeStructureRepository) GetByIDsWithItems(ctx context.Context, ids []uuid.UUID) ([]entity.FeeStructure, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]entity.FeeStructure, 0, len(ids))
	for _, id := range ids {
		if fs, ok := r.s.structures[id]; ok {
			out = append(out, r.s.withItems(fs))
		}
	}
	return out, nil
}

func (r *feeStructureRepository) Update(ctx context.Context, fs *entity.FeeStructure) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stamp(nil, &fs.UpdatedAt)
	row := *fs
	row.Items = nil
	r.s.structures[fs.ID] = &row
	return nil
}

func (r *feeStructureRepository) List(ctx context.Context, params *repository.FeeStructureFilterParams) ([]entity.FeeStructure, int64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []entity.FeeStructure
	for _, fs := range r.s.structures {
		if !visible(ctx, fs.TenantID) {
			continue
		}
		if params.AcademicYear != "" && fs.AcademicYear != params.AcademicYear {
			continue
		}
		if params.Status != nil && fs.Status != *params.Status {
			continue
		}
		out = append(out, *fs)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })

	params.Pagination.Validate()
	start, end := params.Pagination.Window(len(out))
	return out[start:end], int64(len(out)), nil
}

// withItems copies a structure with its items, oldest first. Caller holds the lock.
func (s *Store) withItems(fs *entity.FeeStructure) entity.FeeStructure {
	row := *fs
	row.Items = nil
	for _, item := range s.items {
		if item.StructureID == fs.ID {
			row.Items = append(row.Items, *item)
		}
	}
	sort.Slice(row.Items, func(i, j int) bool { return row.Items[i].CreatedAt.Before(row.Items[j].CreatedAt) })
	return row
}

type feeItemRepository struct {
	s *Store
}

// NewFeeItemRepository creates an in-memory fee item repository
func NewFeeItemRepository(s *Store) repository.FeeItemRepository {
	return &feeItemRepository{s: s}
}

func (r *feeItemRepository) Create(ctx context.Context, item *entity.FeeItem) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	item.ID = newID(item.ID)
	stamp(&item.CreatedAt, &item.UpdatedAt)
	row := *item
	row.Category = nil
	r.s.items[item.ID] = &row
	return nil
}

func (r *feeItemRepository) GetByID(ctx context.Context, id uuid.UUID) (*entity.FeeItem, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if item, ok := r.s.items[id]; ok {
		row := *item
		return &row, nil
	}
	return nil, nil
}

func (r *feeItemRepository) ListByStructure(ctx context.Context, structureID uuid.UUID) ([]entity.FeeItem, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	fs, ok := r.s.structures[structureID]
	if !ok {
		return []entity.FeeItem{}, nil
	}
	return r.s.withItems(fs).Items, nil
}
