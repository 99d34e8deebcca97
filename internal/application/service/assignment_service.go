package service

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/sangkips/bursar-api/internal/domain/entity"
	"github.com/sangkips/bursar-api/internal/domain/enum"
	"github.com/sangkips/bursar-api/internal/domain/tenancy"
	"github.com/sangkips/bursar-api/internal/infrastructure/lock"
	"github.com/sangkips/bursar-api/pkg/apperror"
	"github.com/shopspring/decimal"
)

// AssignmentService links students to fee structures and resolves which
// assignments apply on a given day.
type AssignmentService struct {
	*Core
}

// NewAssignmentService creates a new assignment service
func NewAssignmentService(core *Core) *AssignmentService {
	return &AssignmentService{Core: core}
}

// AssignInput is the input of Assign
type AssignInput struct {
	StudentID       uuid.UUID `validate:"required"`
	StructureID     uuid.UUID `validate:"required"`
	EffectiveFrom   time.Time
	EffectiveTo     *time.Time
	DiscountPercent decimal.Decimal `validate:"dgte=0,dlte=100"`
	DiscountAmount  decimal.Decimal `validate:"dgte=0"`
}

// ResolvedAssignment is an assignment in effect together with its structure and items.
type ResolvedAssignment struct {
	Assignment entity.StudentFeeAssignment
	Structure  entity.FeeStructure
}

// Assign puts a student on an active fee structure. A student holds at most
// one active assignment per structure.
func (s *AssignmentService) Assign(ctx context.Context, input *AssignInput) (*entity.StudentFeeAssignment, error) {
	if err := s.validate.Struct(input); err != nil {
		return nil, err
	}
	actor, err := actorFrom(ctx)
	if err != nil {
		return nil, err
	}

	structure, err := s.Repos.Structures.GetByID(ctx, input.StructureID)
	if err != nil {
		return nil, err
	}
	if _, err := check(actor, structure, func(fs *entity.FeeStructure) uuid.UUID { return fs.TenantID }, "Fee structure"); err != nil {
		return nil, err
	}
	if structure.Status != enum.FeeStructureActive {
		return nil, apperror.NewBadRequestError("Students can only be assigned to active fee structures")
	}

	from := input.EffectiveFrom
	if from.IsZero() {
		from = structure.EffectiveFrom
	}
	from = s.day(from)
	var to *time.Time
	if input.EffectiveTo != nil {
		t := s.day(*input.EffectiveTo)
		if t.Before(from) {
			return nil, apperror.NewFieldError("effective_to", "effective_to must not be before effective_from")
		}
		to = &t
	}

	var assignment *entity.StudentFeeAssignment
	err = s.guarded(ctx, []string{lock.StudentKey(input.StudentID)}, func(ctx context.Context) error {
		existing, err := s.Repos.Assignments.FindActive(ctx, input.StudentID, input.StructureID)
		if err != nil {
			return err
		}
		if existing != nil {
			return apperror.NewConflictError("Student already has an active assignment to this fee structure")
		}

		assignment = &entity.StudentFeeAssignment{
			TenantID:        actor.TenantID,
			StudentID:       input.StudentID,
			StructureID:     input.StructureID,
			EffectiveFrom:   from,
			EffectiveTo:     to,
			DiscountPercent: input.DiscountPercent.Round(2),
			DiscountAmount:  input.DiscountAmount.Round(2),
			Status:          enum.AssignmentActive,
			CreatedBy:       actor.UserID,
		}
		return s.Repos.Assignments.Create(ctx, assignment)
	})
	if err != nil {
		return nil, err
	}
	return assignment, nil
}

// Suspend pauses an active assignment
func (s *AssignmentService) Suspend(ctx context.Context, id uuid.UUID) (*entity.StudentFeeAssignment, error) {
	return s.transition(ctx, id, enum.AssignmentSuspended, enum.AssignmentActive)
}

// Cancel ends an assignment for good
func (s *AssignmentService) Cancel(ctx context.Context, id uuid.UUID) (*entity.StudentFeeAssignment, error) {
	return s.transition(ctx, id, enum.AssignmentCancelled, enum.AssignmentActive, enum.AssignmentSuspended)
}

// Reactivate resumes a suspended assignment
func (s *AssignmentService) Reactivate(ctx context.Context, id uuid.UUID) (*entity.StudentFeeAssignment, error) {
	return s.transition(ctx, id, enum.AssignmentActive, enum.AssignmentSuspended)
}

func (s *AssignmentService) transition(ctx context.Context, id uuid.UUID, to enum.AssignmentStatus, from ...enum.AssignmentStatus) (*entity.StudentFeeAssignment, error) {
	actor, err := actorFrom(ctx)
	if err != nil {
		return nil, err
	}
	assignment, err := s.assignment(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	err = s.guarded(ctx, []string{lock.StudentKey(assignment.StudentID)}, func(ctx context.Context) error {
		current, err := s.Repos.Assignments.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if !lo.Contains(from, current.Status) {
			return apperror.New(apperror.ErrInvalidTransition,
				"Assignment cannot move from "+current.Status.String()+" to "+to.String())
		}
		if to == enum.AssignmentActive {
			other, err := s.Repos.Assignments.FindActive(ctx, current.StudentID, current.StructureID)
			if err != nil {
				return err
			}
			if other != nil && other.ID != current.ID {
				return apperror.NewConflictError("Student already has an active assignment to this fee structure")
			}
		}
		current.Status = to
		assignment = current
		return s.Repos.Assignments.Update(ctx, current)
	})
	if err != nil {
		return nil, err
	}
	return assignment, nil
}

// ListByStudent returns all assignments of a student
func (s *AssignmentService) ListByStudent(ctx context.Context, studentID uuid.UUID) ([]entity.StudentFeeAssignment, error) {
	if _, err := actorFrom(ctx); err != nil {
		return nil, err
	}
	return s.Repos.Assignments.ListByStudent(ctx, studentID)
}

// Resolve returns the assignments in effect at the given day for the students
// (all students when none are given), each with its active structure and items.
// The result is ordered by student, then assignment creation.
func (s *AssignmentService) Resolve(ctx context.Context, studentIDs []uuid.UUID, at time.Time) ([]ResolvedAssignment, error) {
	if _, err := actorFrom(ctx); err != nil {
		return nil, err
	}
	day := s.day(at)

	assignments, err := s.Repos.Assignments.ListActive(ctx, studentIDs)
	if err != nil {
		return nil, err
	}
	assignments = lo.Filter(assignments, func(a entity.StudentFeeAssignment, _ int) bool { return a.ActiveOn(day) })
	if len(assignments) == 0 {
		return nil, nil
	}

	structureIDs := lo.Uniq(lo.Map(assignments, func(a entity.StudentFeeAssignment, _ int) uuid.UUID { return a.StructureID }))
	structures, err := s.Repos.Structures.GetByIDsWithItems(ctx, structureIDs)
	if err != nil {
		return nil, err
	}
	byID := lo.KeyBy(structures, func(fs entity.FeeStructure) uuid.UUID { return fs.ID })

	resolved := make([]ResolvedAssignment, 0, len(assignments))
	for _, a := range assignments {
		structure, ok := byID[a.StructureID]
		if !ok || structure.Status != enum.FeeStructureActive {
			continue
		}
		resolved = append(resolved, ResolvedAssignment{Assignment: a, Structure: structure})
	}

	sort.SliceStable(resolved, func(i, j int) bool {
		return resolved[i].Assignment.StudentID.String() < resolved[j].Assignment.StudentID.String()
	})
	return resolved, nil
}

func (s *AssignmentService) assignment(ctx context.Context, actor tenancy.Actor, id uuid.UUID) (*entity.StudentFeeAssignment, error) {
	a, err := s.Repos.Assignments.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return check(actor, a, func(a *entity.StudentFeeAssignment) uuid.UUID { return a.TenantID }, "Assignment")
}
