package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/academic-records-api/internal/models"
	appErrors "github.com/noah-isme/academic-records-api/pkg/errors"
)

func gradedSchema(t *testing.T, students []string) models.AssessmentSchema {
	t.Helper()
	v := newTestAllocator()
	schema := defaultSchema()
	for _, name := range models.CategoryNames {
		_, err := v.AddItem(&schema, name, schema.Category(name).Capacity, "", students)
		require.NoError(t, err)
	}
	return schema
}

func TestComputeTotalAndGrade(t *testing.T) {
	schema := gradedSchema(t, []string{"s1"})
	SetScore(&schema.Quiz.Items[0], "s1", 8)
	SetScore(&schema.Assignment.Items[0], "s1", 9)
	SetScore(&schema.Midterm.Items[0], "s1", 25)
	SetScore(&schema.Final.Items[0], "s1", 45)

	total := ComputeTotal(schema, "s1")
	assert.Equal(t, 87.0, total)
	assert.Equal(t, "A", ComputeGrade(total))
}

func TestComputeTotalSkipsIgnoredAndRounds(t *testing.T) {
	schema := gradedSchema(t, []string{"s1"})
	SetScore(&schema.Quiz.Items[0], "s1", 3.333)
	SetScore(&schema.Assignment.Items[0], "s1", 3.333)
	SetScore(&schema.Final.Items[0], "s1", 40)
	schema.Final.Items[0].Considered = false

	assert.Equal(t, 6.67, ComputeTotal(schema, "s1"))
	assert.Equal(t, 0.0, ComputeTotal(schema, "unknown"))
}

func TestComputeGradeThresholds(t *testing.T) {
	cases := map[float64]string{
		100: "A+", 90: "A+", 89.99: "A", 80: "A", 70: "B+", 60: "B",
		50: "C", 40: "D", 39.99: "F", 0: "F",
	}
	for total, grade := range cases {
		assert.Equal(t, grade, ComputeGrade(total), "total %.2f", total)
	}
}

func TestComputeGradeMonotonic(t *testing.T) {
	rank := make(map[string]int)
	for i, g := range GradeScale() {
		rank[g] = i
	}
	prev := rank[ComputeGrade(0)]
	for total := 0.0; total <= 100; total += 0.25 {
		current := rank[ComputeGrade(total)]
		assert.LessOrEqual(t, current, prev, "total %.2f", total)
		prev = current
	}
}

func TestBuildCourseResultsSharesSchema(t *testing.T) {
	students := []string{"s1", "s2", "s3"}
	schema := gradedSchema(t, students)
	SetScore(&schema.Final.Items[0], "s2", 30)
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	records, err := BuildCourseResults("c1", schema, students, now)
	require.NoError(t, err)
	require.Len(t, records, 3)
	for _, r := range records {
		assert.Equal(t, records[0].Schema, r.Schema)
		assert.Equal(t, now, r.UpdatedAt)
	}
	assert.Equal(t, 30.0, records[1].OverallTotal)
	assert.Equal(t, "F", records[0].Grade)

	records[0].Schema.Final.Items[0].Scores["s1"] = 50
	assert.Equal(t, 0.0, records[1].Schema.Final.Items[0].Scores["s1"], "each record owns its snapshot")
}

func TestCheckSchemaConsistencyDetectsDivergence(t *testing.T) {
	schema := gradedSchema(t, []string{"s1", "s2"})
	other := schema.Clone()
	other.Quiz.Capacity = 5

	err := CheckSchemaConsistency([]models.ResultRecord{
		{CourseID: "c1", StudentID: "s1", Schema: schema},
		{CourseID: "c1", StudentID: "s2", Schema: other},
		{CourseID: "c2", StudentID: "s1", Schema: other},
	})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrSchemaDivergence))

	err = CheckSchemaConsistency([]models.ResultRecord{
		{CourseID: "c1", StudentID: "s1", Schema: schema},
		{CourseID: "c2", StudentID: "s1", Schema: other},
	})
	assert.NoError(t, err)
}

func TestClassAverageAndDistribution(t *testing.T) {
	assert.Equal(t, 0.0, ClassAverage(nil))
	assert.Equal(t, 64.25, ClassAverage([]float64{87, 41.5}))
	assert.Equal(t, 33.33, ClassAverage([]float64{100, 0, 0}))

	dist := GradeDistribution([]string{"A", "A", "F"})
	assert.Equal(t, 2, dist["A"])
	assert.Equal(t, 1, dist["F"])
	assert.Equal(t, 0, dist["A+"])
	assert.Len(t, dist, 7)
}
