package service

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/academic-records-api/internal/models"
	appErrors "github.com/noah-isme/academic-records-api/pkg/errors"
)

func newTestAllocator() *AllocationValidator {
	n := 0
	return &AllocationValidator{newID: func() string {
		n++
		return fmt.Sprintf("item-%d", n)
	}}
}

func defaultSchema() models.AssessmentSchema {
	return models.NewAssessmentSchema(10, 10, 30, 50)
}

func TestAddItemSeedsScoresAndNames(t *testing.T) {
	v := newTestAllocator()
	schema := defaultSchema()

	item, err := v.AddItem(&schema, models.CategoryQuiz, 4, "", []string{"s1", "s2"})
	require.NoError(t, err)
	assert.Equal(t, "item-1", item.ID)
	assert.Equal(t, "Quiz 1", item.Name)
	assert.True(t, item.Considered)
	assert.Equal(t, map[string]float64{"s1": 0, "s2": 0}, item.Scores)
	require.Len(t, schema.Quiz.Items, 1)

	item.Scores["s1"] = 3
	assert.Equal(t, 0.0, schema.Quiz.Items[0].Scores["s1"], "returned item must not alias the schema")
}

func TestAddItemRejectsWhenCategoryFull(t *testing.T) {
	v := newTestAllocator()
	schema := defaultSchema()
	_, err := v.AddItem(&schema, models.CategoryQuiz, 10, "Quiz 1", nil)
	require.NoError(t, err)

	_, err = v.AddItem(&schema, models.CategoryQuiz, 1, "Quiz 2", nil)
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrCapacityExceeded))
	assert.Len(t, schema.Quiz.Items, 1)
}

func TestAddItemIgnoredItemFreesRoom(t *testing.T) {
	v := newTestAllocator()
	schema := defaultSchema()
	a, err := v.AddItem(&schema, models.CategoryQuiz, 6, "A", nil)
	require.NoError(t, err)

	considered, err := v.ToggleConsidered(&schema, a.ID)
	require.NoError(t, err)
	assert.False(t, considered)

	_, err = v.AddItem(&schema, models.CategoryQuiz, 6, "B", nil)
	require.NoError(t, err)
	assert.Len(t, schema.Quiz.Items, 2)
}

func TestAddItemValidatesInput(t *testing.T) {
	v := newTestAllocator()
	schema := defaultSchema()

	_, err := v.AddItem(&schema, models.CategoryName("homework"), 1, "", nil)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))

	_, err = v.AddItem(&schema, models.CategoryMidterm, 0, "", nil)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
}

func TestResizeCategoryCountsIgnoredItems(t *testing.T) {
	v := newTestAllocator()
	schema := defaultSchema()
	a, err := v.AddItem(&schema, models.CategoryQuiz, 6, "A", nil)
	require.NoError(t, err)
	_, err = v.ToggleConsidered(&schema, a.ID)
	require.NoError(t, err)
	_, err = v.AddItem(&schema, models.CategoryQuiz, 3, "B", nil)
	require.NoError(t, err)

	err = v.ResizeCategory(&schema, models.CategoryQuiz, 8)
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrBelowMinimum))
	assert.Equal(t, 10.0, schema.Quiz.Capacity)

	require.NoError(t, v.ResizeCategory(&schema, models.CategoryQuiz, 9))
	assert.Equal(t, 9.0, schema.Quiz.Capacity)
}

func TestResizeItemGrowthMustFit(t *testing.T) {
	v := newTestAllocator()
	schema := defaultSchema()
	a, err := v.AddItem(&schema, models.CategoryAssignment, 4, "A", nil)
	require.NoError(t, err)
	_, err = v.AddItem(&schema, models.CategoryAssignment, 4, "B", nil)
	require.NoError(t, err)

	require.NoError(t, v.ResizeItem(&schema, a.ID, 6))
	assert.Equal(t, 6.0, schema.Assignment.Items[0].ItemCapacity)

	err = v.ResizeItem(&schema, a.ID, 7)
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrCapacityExceeded))
	assert.Equal(t, 6.0, schema.Assignment.Items[0].ItemCapacity)
}

func TestResizeItemShrinkCapsScores(t *testing.T) {
	v := newTestAllocator()
	schema := defaultSchema()
	a, err := v.AddItem(&schema, models.CategoryFinal, 50, "Final", []string{"s1", "s2"})
	require.NoError(t, err)
	_, item, _ := schema.FindItem(a.ID)
	SetScore(item, "s1", 45)
	SetScore(item, "s2", 20)

	require.NoError(t, v.ResizeItem(&schema, a.ID, 40))
	assert.Equal(t, 40.0, item.ItemCapacity)
	assert.Equal(t, 40.0, item.Scores["s1"])
	assert.Equal(t, 20.0, item.Scores["s2"])
}

func TestRemoveItem(t *testing.T) {
	v := newTestAllocator()
	schema := defaultSchema()
	a, err := v.AddItem(&schema, models.CategoryQuiz, 10, "A", nil)
	require.NoError(t, err)

	require.NoError(t, v.RemoveItem(&schema, a.ID))
	assert.Empty(t, schema.Quiz.Items)

	err = v.RemoveItem(&schema, a.ID)
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))

	_, err = v.AddItem(&schema, models.CategoryQuiz, 10, "B", nil)
	assert.NoError(t, err)
}

func TestToggleKeepsScores(t *testing.T) {
	v := newTestAllocator()
	schema := defaultSchema()
	a, err := v.AddItem(&schema, models.CategoryQuiz, 10, "A", []string{"s1"})
	require.NoError(t, err)
	_, item, _ := schema.FindItem(a.ID)
	SetScore(item, "s1", 7)

	_, err = v.ToggleConsidered(&schema, a.ID)
	require.NoError(t, err)
	assert.Equal(t, 0.0, ComputeTotal(schema, "s1"))

	_, err = v.ToggleConsidered(&schema, a.ID)
	require.NoError(t, err)
	assert.Equal(t, 7.0, ComputeTotal(schema, "s1"))
}

func TestCapacityConservationUnderMixedMutations(t *testing.T) {
	v := newTestAllocator()
	schema := defaultSchema()
	capacities := []float64{3, 4, 2, 5, 1, 6, 0.5, 2.5}

	var ids []string
	for i, c := range capacities {
		if item, err := v.AddItem(&schema, models.CategoryQuiz, c, "", nil); err == nil {
			ids = append(ids, item.ID)
		}
		if len(ids) > 0 {
			_ = v.ResizeItem(&schema, ids[i%len(ids)], c+1)
		}
		_ = v.ResizeCategory(&schema, models.CategoryQuiz, float64(6+i))

		usage := Usage(schema.Quiz)
		assert.LessOrEqual(t, usage.Used, schema.Quiz.Capacity+capacityEpsilon, "step %d", i)
		assert.LessOrEqual(t, usage.Footprint, schema.Quiz.Capacity+capacityEpsilon, "step %d", i)
	}
}
