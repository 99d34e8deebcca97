package service

import (
	"testing"

	"github.com/google/uuid"
	"github.com/sangkips/bursar-api/internal/domain/enum"
	"github.com/sangkips/bursar-api/pkg/apperror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAssign(t *testing.T) {
	t.Run("one active assignment per structure", func(t *testing.T) {
		f := newFixture(t)
		student := uuid.New()
		first := f.assign(student, f.structure)
		assert.Equal(t, enum.AssignmentActive, first.Status)

		_, err := f.Assignments.Assign(f.ctx, &AssignInput{StudentID: student, StructureID: f.structure.ID})
		assert.ErrorIs(t, err, apperror.ErrConflict)

		other := f.newStructure()
		_, err = f.Assignments.Assign(f.ctx, &AssignInput{StudentID: student, StructureID: other.ID})
		assert.NoError(t, err)
	})

	t.Run("draft structures cannot be assigned", func(t *testing.T) {
		f := newFixture(t)
		draft, err := f.Catalog.CreateStructure(f.ctx, &StructureInput{
			Name:          "Grade 6",
			AcademicYear:  "2026",
			GradeLevels:   []string{"6"},
			EffectiveFrom: date(2026, 1, 1),
		})
		require.NoError(t, err)

		_, err = f.Assignments.Assign(f.ctx, &AssignInput{StudentID: uuid.New(), StructureID: draft.ID})
		assert.ErrorIs(t, err, apperror.ErrBadRequest)
	})

	t.Run("effective window must not be inverted", func(t *testing.T) {
		f := newFixture(t)
		to := date(2025, 12, 1)
		_, err := f.Assignments.Assign(f.ctx, &AssignInput{StudentID: uuid.New(), StructureID: f.structure.ID, EffectiveTo: &to})
		assert.Error(t, err)
	})
}

func TestAssignmentTransitions(t *testing.T) {
	t.Run("suspend then reactivate", func(t *testing.T) {
		f := newFixture(t)
		a := f.assign(uuid.New(), f.structure)

		suspended, err := f.Assignments.Suspend(f.ctx, a.ID)
		require.NoError(t, err)
		assert.Equal(t, enum.AssignmentSuspended, suspended.Status)

		_, err = f.Assignments.Suspend(f.ctx, a.ID)
		assert.ErrorIs(t, err, apperror.ErrInvalidTransition)

		active, err := f.Assignments.Reactivate(f.ctx, a.ID)
		require.NoError(t, err)
		assert.Equal(t, enum.AssignmentActive, active.Status)

		_, err = f.Assignments.Reactivate(f.ctx, a.ID)
		assert.ErrorIs(t, err, apperror.ErrInvalidTransition)
	})

	t.Run("reactivation cannot create a second active assignment", func(t *testing.T) {
		f := newFixture(t)
		student := uuid.New()
		old := f.assign(student, f.structure)
		_, err := f.Assignments.Suspend(f.ctx, old.ID)
		require.NoError(t, err)

		replacement := f.assign(student, f.structure)

		_, err = f.Assignments.Reactivate(f.ctx, old.ID)
		assert.ErrorIs(t, err, apperror.ErrConflict)

		list, err := f.Assignments.ListByStudent(f.ctx, student)
		require.NoError(t, err)
		statuses := map[uuid.UUID]enum.AssignmentStatus{}
		for _, a := range list {
			statuses[a.ID] = a.Status
		}
		assert.Equal(t, enum.AssignmentSuspended, statuses[old.ID])
		assert.Equal(t, enum.AssignmentActive, statuses[replacement.ID])
	})

	t.Run("cancel is terminal", func(t *testing.T) {
		f := newFixture(t)
		a := f.assign(uuid.New(), f.structure)
		_, err := f.Assignments.Suspend(f.ctx, a.ID)
		require.NoError(t, err)

		cancelled, err := f.Assignments.Cancel(f.ctx, a.ID)
		require.NoError(t, err)
		assert.Equal(t, enum.AssignmentCancelled, cancelled.Status)

		_, err = f.Assignments.Reactivate(f.ctx, a.ID)
		assert.ErrorIs(t, err, apperror.ErrInvalidTransition)
		_, err = f.Assignments.Suspend(f.ctx, a.ID)
		assert.ErrorIs(t, err, apperror.ErrInvalidTransition)
		_, err = f.Assignments.Cancel(f.ctx, a.ID)
		assert.ErrorIs(t, err, apperror.ErrInvalidTransition)
	})

	t.Run("a cancelled assignment frees the structure", func(t *testing.T) {
		f := newFixture(t)
		student := uuid.New()
		a := f.assign(student, f.structure)
		_, err := f.Assignments.Cancel(f.ctx, a.ID)
		require.NoError(t, err)

		_, err = f.Assignments.Assign(f.ctx, &AssignInput{StudentID: student, StructureID: f.structure.ID})
		assert.NoError(t, err)
	})
}
