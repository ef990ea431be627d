package repository

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/academic-records-api/internal/models"
)

func TestMemoryStoreCourseClones(t *testing.T) {
	store := NewMemoryRecordStore()
	ctx := context.Background()
	require.NoError(t, store.UpsertCourse(ctx, models.Course{ID: "1", Name: "Mathematics", StudentsEnrolled: []string{"3"}}))

	course, err := store.FindCourse(ctx, "1")
	require.NoError(t, err)
	course.StudentsEnrolled[0] = "99"

	again, err := store.FindCourse(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, []string{"3"}, again.StudentsEnrolled)

	_, err = store.FindCourse(ctx, "2")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestMemoryStoreResultUpsertReplaces(t *testing.T) {
	store := NewMemoryRecordStore()
	ctx := context.Background()
	schema := models.NewAssessmentSchema(10, 10, 30, 50)

	require.NoError(t, store.UpsertResultRecords(ctx, []models.ResultRecord{
		{CourseID: "1", StudentID: "3", Schema: schema, OverallTotal: 10, Grade: "F"},
		{CourseID: "2", StudentID: "3", Schema: schema, OverallTotal: 95, Grade: "A+"},
	}))
	require.NoError(t, store.UpsertResultRecords(ctx, []models.ResultRecord{
		{CourseID: "1", StudentID: "3", Schema: schema, OverallTotal: 72, Grade: "B+"},
	}))

	records, err := store.ListResultRecords(ctx, models.ResultFilter{StudentID: "3"})
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "B+", records[0].Grade)
	assert.Equal(t, "2", records[1].CourseID)

	records[0].Schema.Quiz.Capacity = 1
	fresh, err := store.ListResultRecords(ctx, models.ResultFilter{CourseID: "1"})
	require.NoError(t, err)
	assert.Equal(t, 10.0, fresh[0].Schema.Quiz.Capacity)
}

func TestMemoryStoreAttendanceUpsertByNaturalKey(t *testing.T) {
	store := NewMemoryRecordStore()
	ctx := context.Background()
	entry := models.AttendanceEntry{StudentID: "3", CourseID: "1", Date: "2026-02-01", Status: models.AttendanceStatusPresent}
	require.NoError(t, store.UpsertAttendanceEntry(ctx, entry))
	entry.Status = models.AttendanceStatusAbsent
	require.NoError(t, store.UpsertAttendanceEntry(ctx, entry))
	require.NoError(t, store.UpsertAttendanceEntries(ctx, []models.AttendanceEntry{
		{StudentID: "3", CourseID: "1", Date: "2026-01-31", Status: models.AttendanceStatusPresent},
		{StudentID: "3", CourseID: "2", Date: "2026-02-01", Status: models.AttendanceStatusPresent},
	}))

	entries, err := store.ListAttendanceEntries(ctx, models.AttendanceFilter{StudentID: "3", CourseID: "1"})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "2026-01-31", entries[0].Date)
	assert.Equal(t, models.AttendanceStatusAbsent, entries[1].Status)

	entries, err = store.ListAttendanceEntries(ctx, models.AttendanceFilter{From: "2026-02-01"})
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}
