package service

import (
	"math"

	"github.com/noah-isme/academic-records-api/internal/models"
)

// SetScore clamps value into [0, item capacity], stores it for the student and returns
// the stored value. Out of range input is corrected rather than rejected.
func SetScore(item *models.AssessmentItem, studentID string, value float64) float64 {
	if item == nil {
		return 0
	}
	if item.Scores == nil {
		item.Scores = make(map[string]float64)
	}
	stored := clampScore(value, item.ItemCapacity)
	item.Scores[studentID] = stored
	return stored
}

// SetScores applies SetScore to every entry and returns the stored values.
func SetScores(item *models.AssessmentItem, values map[string]float64) map[string]float64 {
	stored := make(map[string]float64, len(values))
	for studentID, value := range values {
		stored[studentID] = SetScore(item, studentID, value)
	}
	return stored
}

func clampScore(value, capacity float64) float64 {
	switch {
	case math.IsNaN(value), value < 0:
		return 0
	case value > capacity:
		return capacity
	default:
		return value
	}
}
