package service

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/noah-isme/academic-records-api/internal/dto"
	"github.com/noah-isme/academic-records-api/internal/models"
	appErrors "github.com/noah-isme/academic-records-api/pkg/errors"
)

type gradeThreshold struct {
	min   float64
	grade string
}

// Evaluated top-down, first match wins.
var gradeThresholds = []gradeThreshold{
	{min: 90, grade: "A+"},
	{min: 80, grade: "A"},
	{min: 70, grade: "B+"},
	{min: 60, grade: "B"},
	{min: 50, grade: "C"},
	{min: 40, grade: "D"},
}

const failingGrade = "F"

// GradeScale lists every letter grade from best to worst.
func GradeScale() []string {
	scale := make([]string, 0, len(gradeThresholds)+1)
	for _, t := range gradeThresholds {
		scale = append(scale, t.grade)
	}
	return append(scale, failingGrade)
}

// ComputeTotal is the raw sum of the student's scores on considered items, rounded to
// two decimals. Category capacities are not normalised.
func ComputeTotal(schema models.AssessmentSchema, studentID string) float64 {
	total := 0.0
	for _, name := range models.CategoryNames {
		for _, item := range schema.Category(name).Items {
			if !item.Considered {
				continue
			}
			total += item.Scores[studentID]
		}
	}
	return round2(total)
}

// ComputeGrade maps a 0-100 total to a letter grade.
func ComputeGrade(total float64) string {
	for _, t := range gradeThresholds {
		if total >= t.min {
			return t.grade
		}
	}
	return failingGrade
}

// CategoryScores breaks a student's total down per category.
func CategoryScores(schema models.AssessmentSchema, studentID string) []dto.CategoryScore {
	scores := make([]dto.CategoryScore, 0, len(models.CategoryNames))
	for _, name := range models.CategoryNames {
		cat := schema.Category(name)
		row := dto.CategoryScore{Category: name, Capacity: cat.Capacity}
		for _, item := range cat.Items {
			if !item.Considered {
				continue
			}
			row.Obtained += item.Scores[studentID]
			row.Allocated += item.ItemCapacity
		}
		row.Obtained = round2(row.Obtained)
		scores = append(scores, row)
	}
	return scores
}

// PreviewTotals computes totals and grades without building records.
func PreviewTotals(schema models.AssessmentSchema, students []string) []models.StudentTotal {
	totals := make([]models.StudentTotal, 0, len(students))
	for _, studentID := range students {
		total := ComputeTotal(schema, studentID)
		totals = append(totals, models.StudentTotal{StudentID: studentID, OverallTotal: total, Grade: ComputeGrade(total)})
	}
	return totals
}

// BuildCourseResults builds one record per student, each embedding its own copy of the
// same schema snapshot. Every record is built and checked before any is returned so a
// caller never persists a partial batch.
func BuildCourseResults(courseID string, schema models.AssessmentSchema, students []string, now time.Time) ([]models.ResultRecord, error) {
	records := make([]models.ResultRecord, 0, len(students))
	for _, studentID := range students {
		total := ComputeTotal(schema, studentID)
		records = append(records, models.ResultRecord{
			CourseID:     courseID,
			StudentID:    studentID,
			Schema:       schema.Clone(),
			OverallTotal: total,
			Grade:        ComputeGrade(total),
			UpdatedAt:    now,
		})
	}
	if err := CheckSchemaConsistency(records); err != nil {
		return nil, err
	}
	return records, nil
}

// CheckSchemaConsistency fails with SchemaDivergence when two records of the same course
// carry different schema snapshots.
func CheckSchemaConsistency(records []models.ResultRecord) error {
	reference := make(map[string][]byte)
	owner := make(map[string]string)
	for _, record := range records {
		encoded, err := encodeSchema(record.Schema)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode assessment schema")
		}
		first, ok := reference[record.CourseID]
		if !ok {
			reference[record.CourseID] = encoded
			owner[record.CourseID] = record.StudentID
			continue
		}
		if !bytes.Equal(first, encoded) {
			return appErrors.Clone(appErrors.ErrSchemaDivergence,
				fmt.Sprintf("course %s: schema of student %s differs from student %s", record.CourseID, record.StudentID, owner[record.CourseID]))
		}
	}
	return nil
}

func encodeSchema(schema models.AssessmentSchema) ([]byte, error) {
	return json.Marshal(schema.Clone())
}

// ClassAverage is the mean of the totals rounded to two decimals, 0 for an empty class.
func ClassAverage(totals []float64) float64 {
	if len(totals) == 0 {
		return 0
	}
	sum := 0.0
	for _, t := range totals {
		sum += t
	}
	return round2(sum / float64(len(totals)))
}

// GradeDistribution counts grades, listing every grade on the scale.
func GradeDistribution(grades []string) map[string]int {
	dist := make(map[string]int, len(gradeThresholds)+1)
	for _, g := range GradeScale() {
		dist[g] = 0
	}
	for _, g := range grades {
		dist[g]++
	}
	return dist
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
