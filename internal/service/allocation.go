package service

import (
	"fmt"
	"math"

	"github.com/google/uuid"

	"github.com/noah-isme/academic-records-api/internal/models"
	appErrors "github.com/noah-isme/academic-records-api/pkg/errors"
)

const capacityEpsilon = 1e-9

// AllocationValidator gates every schema mutation so a category never hands out more
// marks than its capacity. Rejected mutations leave the schema untouched.
type AllocationValidator struct {
	newID func() string
}

// NewAllocationValidator constructs a validator that issues uuid item ids.
func NewAllocationValidator() *AllocationValidator {
	return &AllocationValidator{newID: uuid.NewString}
}

// AllocationUsage describes how much of a category is handed out.
type AllocationUsage struct {
	Capacity  float64
	Used      float64
	Footprint float64
	Free      float64
}

// Usage reports the considered and total item footprint of a category.
func Usage(cat models.Category) AllocationUsage {
	used := consideredCapacity(cat, "")
	footprint := 0.0
	for _, item := range cat.Items {
		footprint += item.ItemCapacity
	}
	return AllocationUsage{
		Capacity:  cat.Capacity,
		Used:      used,
		Footprint: footprint,
		Free:      math.Max(cat.Capacity-used, 0),
	}
}

// consideredCapacity sums the capacities of considered items, skipping excludeID.
func consideredCapacity(cat models.Category, excludeID string) float64 {
	total := 0.0
	for _, item := range cat.Items {
		if !item.Considered || item.ID == excludeID {
			continue
		}
		total += item.ItemCapacity
	}
	return total
}

func lookupCategory(schema *models.AssessmentSchema, name models.CategoryName) (*models.Category, error) {
	if schema == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "assessment schema missing")
	}
	cat := schema.Category(name)
	if cat == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown category %q", name))
	}
	return cat, nil
}

// AddItem appends a considered item to the category. Only considered items count against
// the room available, so an ignored item frees space for a replacement. Every listed
// student is seeded with a zero score.
func (v *AllocationValidator) AddItem(schema *models.AssessmentSchema, category models.CategoryName, capacity float64, name string, students []string) (models.AssessmentItem, error) {
	cat, err := lookupCategory(schema, category)
	if err != nil {
		return models.AssessmentItem{}, err
	}
	if capacity <= 0 || math.IsNaN(capacity) || math.IsInf(capacity, 0) {
		return models.AssessmentItem{}, appErrors.Clone(appErrors.ErrValidation, "item capacity must be greater than zero")
	}

	free := cat.Capacity - consideredCapacity(*cat, "")
	if capacity > free+capacityEpsilon {
		return models.AssessmentItem{}, appErrors.Clone(appErrors.ErrCapacityExceeded,
			fmt.Sprintf("%s has %.2f marks free, requested %.2f", category, math.Max(free, 0), capacity))
	}

	if name == "" {
		name = defaultItemName(category, len(cat.Items)+1)
	}
	item := models.AssessmentItem{
		ID:           v.newID(),
		Name:         name,
		ItemCapacity: capacity,
		Considered:   true,
		Scores:       make(map[string]float64, len(students)),
	}
	for _, studentID := range students {
		item.Scores[studentID] = 0
	}
	cat.Items = append(cat.Items, item)

	return copyItem(item), nil
}

// ResizeCategory changes a category capacity. The floor is the footprint of every item,
// ignored ones included, so re-enabling an ignored item can never overflow the category.
func (v *AllocationValidator) ResizeCategory(schema *models.AssessmentSchema, category models.CategoryName, capacity float64) error {
	cat, err := lookupCategory(schema, category)
	if err != nil {
		return err
	}
	if capacity < 0 || math.IsNaN(capacity) || math.IsInf(capacity, 0) {
		return appErrors.Clone(appErrors.ErrValidation, "category capacity must not be negative")
	}

	minRequired := Usage(*cat).Footprint
	if capacity+capacityEpsilon < minRequired {
		return appErrors.Clone(appErrors.ErrBelowMinimum,
			fmt.Sprintf("%s items need at least %.2f marks, requested %.2f", category, minRequired, capacity))
	}
	cat.Capacity = capacity
	return nil
}

// ResizeItem changes an item capacity. Growth must fit in the room left by the other
// considered items; shrinking always succeeds and caps stored scores at the new capacity.
func (v *AllocationValidator) ResizeItem(schema *models.AssessmentSchema, itemID string, capacity float64) error {
	if schema == nil {
		return appErrors.Clone(appErrors.ErrInternal, "assessment schema missing")
	}
	if capacity <= 0 || math.IsNaN(capacity) || math.IsInf(capacity, 0) {
		return appErrors.Clone(appErrors.ErrValidation, "item capacity must be greater than zero")
	}
	category, item, ok := schema.FindItem(itemID)
	if !ok {
		return appErrors.Clone(appErrors.ErrNotFound, "assessment item not found")
	}

	if capacity > item.ItemCapacity {
		cat := schema.Category(category)
		free := cat.Capacity - consideredCapacity(*cat, item.ID)
		if capacity > free+capacityEpsilon {
			return appErrors.Clone(appErrors.ErrCapacityExceeded,
				fmt.Sprintf("%s has room for at most %.2f marks on this item, requested %.2f", category, math.Max(free, 0), capacity))
		}
		item.ItemCapacity = capacity
		return nil
	}

	item.ItemCapacity = capacity
	for studentID, score := range item.Scores {
		if score > capacity {
			item.Scores[studentID] = capacity
		}
	}
	return nil
}

// RemoveItem drops an item and its scores.
func (v *AllocationValidator) RemoveItem(schema *models.AssessmentSchema, itemID string) error {
	if schema == nil {
		return appErrors.Clone(appErrors.ErrInternal, "assessment schema missing")
	}
	category, _, ok := schema.FindItem(itemID)
	if !ok {
		return appErrors.Clone(appErrors.ErrNotFound, "assessment item not found")
	}
	cat := schema.Category(category)
	items := make([]models.AssessmentItem, 0, len(cat.Items)-1)
	for _, item := range cat.Items {
		if item.ID != itemID {
			items = append(items, item)
		}
	}
	cat.Items = items
	return nil
}

// ToggleConsidered flips the considered flag and keeps the stored scores.
//
// Re-enabling an item is not checked against the category budget: an item added while
// another was ignored can push considered capacity past the category capacity once the
// ignored one is turned back on. Callers surface this through Usage.
func (v *AllocationValidator) ToggleConsidered(schema *models.AssessmentSchema, itemID string) (bool, error) {
	if schema == nil {
		return false, appErrors.Clone(appErrors.ErrInternal, "assessment schema missing")
	}
	_, item, ok := schema.FindItem(itemID)
	if !ok {
		return false, appErrors.Clone(appErrors.ErrNotFound, "assessment item not found")
	}
	item.Considered = !item.Considered
	return item.Considered, nil
}

func defaultItemName(category models.CategoryName, n int) string {
	switch category {
	case models.CategoryQuiz:
		return fmt.Sprintf("Quiz %d", n)
	case models.CategoryAssignment:
		return fmt.Sprintf("Assignment %d", n)
	case models.CategoryMidterm:
		return fmt.Sprintf("Midterm %d", n)
	default:
		return fmt.Sprintf("Final %d", n)
	}
}

func copyItem(item models.AssessmentItem) models.AssessmentItem {
	scores := make(map[string]float64, len(item.Scores))
	for k, v := range item.Scores {
		scores[k] = v
	}
	item.Scores = scores
	return item
}
