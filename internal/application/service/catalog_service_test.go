package service

import (
	"testing"

	"github.com/google/uuid"
	"github.com/sangkips/bursar-api/internal/domain/enum"
	"github.com/sangkips/bursar-api/pkg/apperror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFeeCategories(t *testing.T) {
	t.Run("codes are unique per tenant", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.Catalog.CreateCategory(f.ctx, &CategoryInput{Name: "Tuition again", Code: "TUITION"})
		assert.ErrorIs(t, err, apperror.ErrConflict)
	})

	t.Run("unused category can be renamed", func(t *testing.T) {
		f := newFixture(t)
		transport, err := f.Catalog.CreateCategory(f.ctx, &CategoryInput{Name: "Bus", Code: "bus"})
		require.NoError(t, err)
		assert.Equal(t, "BUS", transport.Code)

		updated, err := f.Catalog.UpdateCategory(f.ctx, transport.ID, &CategoryInput{Name: "Transport", Code: "transport", Refundable: true})
		require.NoError(t, err)
		assert.Equal(t, "TRANSPORT", updated.Code)
		assert.True(t, updated.Refundable)
	})

	t.Run("category used by a fee item is frozen", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.Catalog.UpdateCategory(f.ctx, f.category.ID, &CategoryInput{Name: "School fees", Code: "tuition"})
		assert.ErrorIs(t, err, apperror.ErrConflict)

		categories, err := f.Catalog.ListCategories(f.ctx)
		require.NoError(t, err)
		require.Len(t, categories, 1)
		assert.Equal(t, "Tuition", categories[0].Name)
	})
}

func TestFeeStructureLifecycle(t *testing.T) {
	newDraft := func(f *fixture) uuid.UUID {
		fs, err := f.Catalog.CreateStructure(f.ctx, &StructureInput{
			Name:          "Grade 5",
			AcademicYear:  "2026",
			GradeLevels:   []string{"5"},
			EffectiveFrom: date(2026, 1, 1),
		})
		require.NoError(t, err)
		assert.Equal(t, enum.FeeStructureDraft, fs.Status)
		return fs.ID
	}

	t.Run("draft cannot go straight to inactive", func(t *testing.T) {
		f := newFixture(t)
		id := newDraft(f)

		_, err := f.Catalog.TransitionStructure(f.ctx, id, enum.FeeStructureInactive)
		assert.ErrorIs(t, err, apperror.ErrInvalidTransition)
	})

	t.Run("active structures can be paused and resumed", func(t *testing.T) {
		f := newFixture(t)
		id := newDraft(f)

		for _, to := range []enum.FeeStructureStatus{enum.FeeStructureActive, enum.FeeStructureInactive, enum.FeeStructureActive} {
			fs, err := f.Catalog.TransitionStructure(f.ctx, id, to)
			require.NoError(t, err)
			assert.Equal(t, to, fs.Status)
		}
	})

	t.Run("archived is terminal", func(t *testing.T) {
		f := newFixture(t)
		id := newDraft(f)
		_, err := f.Catalog.TransitionStructure(f.ctx, id, enum.FeeStructureActive)
		require.NoError(t, err)
		_, err = f.Catalog.TransitionStructure(f.ctx, id, enum.FeeStructureArchived)
		require.NoError(t, err)

		for _, to := range []enum.FeeStructureStatus{enum.FeeStructureActive, enum.FeeStructureInactive, enum.FeeStructureDraft} {
			_, err := f.Catalog.TransitionStructure(f.ctx, id, to)
			assert.ErrorIs(t, err, apperror.ErrInvalidTransition, "to %s", to)
		}

		_, err = f.Catalog.AddFeeItem(f.ctx, id, &FeeItemInput{
			CategoryID:      f.category.ID,
			Name:            "Lab",
			BaseAmount:      dec("50"),
			Frequency:       enum.FrequencyTerm,
			MaxInstallments: 1,
		})
		assert.ErrorIs(t, err, apperror.ErrInvalidTransition)
	})

	t.Run("items are read back with the structure", func(t *testing.T) {
		f := newFixture(t)
		fs, err := f.Catalog.GetStructure(f.ctx, f.structure.ID)
		require.NoError(t, err)
		require.Len(t, fs.Items, 1)
		assert.True(t, fs.Items[0].BaseAmount.Equal(dec("300")))
		assert.Equal(t, "KES", fs.Items[0].Currency)
	})

	t.Run("fee items reject a foreign currency", func(t *testing.T) {
		f := newFixture(t)
		id := newDraft(f)
		_, err := f.Catalog.AddFeeItem(f.ctx, id, &FeeItemInput{
			CategoryID:      f.category.ID,
			Name:            "Trip",
			BaseAmount:      dec("20"),
			Currency:        "USD",
			Frequency:       enum.FrequencyOneTime,
			MaxInstallments: 1,
		})
		assert.Error(t, err)
	})
}
