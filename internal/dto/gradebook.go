package dto

import (
	"time"

	"github.com/noah-isme/academic-records-api/internal/models"
)

// CategoryAllocation summarises how a category's capacity is handed out.
type CategoryAllocation struct {
	Capacity  float64 `json:"capacity"`
	Used      float64 `json:"used"`
	Footprint float64 `json:"footprint"`
	Free      float64 `json:"free"`
}

// GradebookView is the working copy a teacher edits for one course.
type GradebookView struct {
	CourseID   string                                     `json:"course_id"`
	Students   []string                                   `json:"students"`
	Schema     models.AssessmentSchema                    `json:"schema"`
	Allocation map[models.CategoryName]CategoryAllocation `json:"allocation"`
}

// CategoryScore is one student's standing in a category.
type CategoryScore struct {
	Category  models.CategoryName `json:"category"`
	Capacity  float64             `json:"capacity"`
	Allocated float64             `json:"allocated"`
	Obtained  float64             `json:"obtained"`
}

// GradebookPreview holds totals computed from the working copy without saving.
type GradebookPreview struct {
	CourseID     string                `json:"course_id"`
	Totals       []models.StudentTotal `json:"totals"`
	ClassAverage float64               `json:"class_average"`
}

// GradebookSaveResult reports a committed result batch.
type GradebookSaveResult struct {
	CourseID string                `json:"course_id"`
	Saved    int                   `json:"saved"`
	Totals   []models.StudentTotal `json:"totals"`
	SavedAt  time.Time             `json:"saved_at"`
}

// ScoreUpdate reports the stored (possibly clamped) scores for an item.
type ScoreUpdate struct {
	ItemID string             `json:"item_id"`
	Scores map[string]float64 `json:"scores"`
}
