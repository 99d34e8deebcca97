package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/sangkips/bursar-api/internal/domain/entity"
)

// AssignmentRepository defines the interface for student fee assignment data operations
type AssignmentRepository interface {
	Create(ctx context.Context, assignment *entity.StudentFeeAssignment) error
	GetByID(ctx context.Context, id uuid.UUID) (*entity.StudentFeeAssignment, error)
	Update(ctx context.Context, assignment *entity.StudentFeeAssignment) error
	// FindActive returns the active assignment of a student to a structure, if any.
	FindActive(ctx context.Context, studentID, structureID uuid.UUID) (*entity.StudentFeeAssignment, error)
	ListByStudent(ctx context.Context, studentID uuid.UUID) ([]entity.StudentFeeAssignment, error)
	// ListActive returns the caller tenant's active assignments, limited to
	// studentIDs when it is not empty.
	ListActive(ctx context.Context, studentIDs []uuid.UUID) ([]entity.StudentFeeAssignment, error)
}
