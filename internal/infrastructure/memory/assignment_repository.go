package memory

import (
	"context"
	"sort"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/sangkips/bursar-api/internal/domain/entity"
	"github.com/sangkips/bursar-api/internal/domain/enum"
	"github.com/sangkips/bursar-api/internal/domain/repository"
)

type assignmentRepository struct {
	s *Store
}

// NewAssignmentRepository creates an in-memory assignment repository
func NewAssignmentRepository(s *Store) repository.AssignmentRepository {
	return &assignmentRepository{s: s}
}

func (r *assignmentRepository) Create(ctx context.Context, a *entity.StudentFeeAssignment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a.ID = newID(a.ID)
	stamp(&a.CreatedAt, &a.UpdatedAt)
	row := *a
	row.Structure = nil
	r.s.assignments[a.ID] = &row
	return nil
}

func (r *assignmentRepository) GetByID(ctx context.Context, id uuid.UUID) (*entity.StudentFeeAssignment, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if a, ok := r.s.assignments[id]; ok {
		row := *a
		return &row, nil
	}
	return nil, nil
}

func (r *assignmentRepository) Update(ctx context.Context, a *entity.StudentFeeAssignment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stamp(nil, &a.UpdatedAt)
	row := *a
	row.Structure = nil
	r.s.assignments[a.ID] = &row
	return nil
}

func (r *assignmentRepository) FindActive(ctx context.Context, studentID, structureID uuid.UUID) (*entity.StudentFeeAssignment, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, a := range r.s.assignments {
		if a.StudentID == studentID && a.StructureID == structureID && a.Status == enum.AssignmentActive {
			row := *a
			return &row, nil
		}
	}
	return nil, nil
}

func (r *assignmentRepository) ListByStudent(ctx context.Context, studentID uuid.UUID) ([]entity.StudentFeeAssignment, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]entity.StudentFeeAssignment, 0)
	for _, a := range r.s.assignments {
		if visible(ctx, a.TenantID) && a.StudentID == studentID {
			out = append(out, *a)
		}
	}
	sortAssignments(out)
	return out, nil
}

func (r *assignmentRepository) ListActive(ctx context.Context, studentIDs []uuid.UUID) ([]entity.StudentFeeAssignment, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	wanted := lo.SliceToMap(studentIDs, func(id uuid.UUID) (uuid.UUID, struct{}) { return id, struct{}{} })
	out := make([]entity.StudentFeeAssignment, 0)
	for _, a := range r.s.assignments {
		if !visible(ctx, a.TenantID) || a.Status != enum.AssignmentActive {
			continue
		}
		if _, ok := wanted[a.StudentID]; len(wanted) > 0 && !ok {
			continue
		}
		out = append(out, *a)
	}
	sortAssignments(out)
	return out, nil
}

func sortAssignments(out []entity.StudentFeeAssignment) {
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
}
