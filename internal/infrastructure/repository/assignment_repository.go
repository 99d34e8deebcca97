package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/sangkips/bursar-api/internal/domain/entity"
	"github.com/sangkips/bursar-api/internal/domain/enum"
	domainRepo "github.com/sangkips/bursar-api/internal/domain/repository"
	"gorm.io/gorm"
)

type assignmentRepository struct {
	db *gorm.DB
}

// NewAssignmentRepository creates a new assignment repository
func NewAssignmentRepository(db *gorm.DB) domainRepo.AssignmentRepository {
	return &assignmentRepository{db: db}
}

func (r *assignmentRepository) Create(ctx context.Context, a *entity.StudentFeeAssignment) error {
	return translateError(conn(ctx, r.db).Omit("Structure").Create(a).Error)
}

func (r *assignmentRepository) GetByID(ctx context.Context, id uuid.UUID) (*entity.StudentFeeAssignment, error) {
	return first[entity.StudentFeeAssignment](conn(ctx, r.db), "id = ?", id)
}

func (r *assignmentRepository) Update(ctx context.Context, a *entity.StudentFeeAssignment) error {
	return translateError(conn(ctx, r.db).Omit("Structure").Save(a).Error)
}

func (r *assignmentRepository) FindActive(ctx context.Context, studentID, structureID uuid.UUID) (*entity.StudentFeeAssignment, error) {
	return first[entity.StudentFeeAssignment](conn(ctx, r.db),
		"student_id = ? AND structure_id = ? AND status = ?", studentID, structureID, enum.AssignmentActive)
}

func (r *assignmentRepository) ListByStudent(ctx context.Context, studentID uuid.UUID) ([]entity.StudentFeeAssignment, error) {
	var assignments []entity.StudentFeeAssignment
	err := conn(ctx, r.db).Scopes(TenantScope(ctx)).
		Where("student_id = ?", studentID).
		Order("created_at ASC, id ASC").
		Find(&assignments).Error
	return assignments, err
}

func (r *assignmentRepository) ListActive(ctx context.Context, studentIDs []uuid.UUID) ([]entity.StudentFeeAssignment, error) {
	var assignments []entity.StudentFeeAssignment
	query := conn(ctx, r.db).Scopes(TenantScope(ctx)).Where("status = ?", enum.AssignmentActive)
	if len(studentIDs) > 0 {
		query = query.Where("student_id IN ?", studentIDs)
	}
	err := query.Order("created_at ASC, id ASC").Find(&assignments).Error
	return assignments, err
}
