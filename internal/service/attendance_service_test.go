package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/academic-records-api/internal/models"
	appErrors "github.com/noah-isme/academic-records-api/pkg/errors"
)

func newTestAttendanceService(store *fakeRecordStore) *AttendanceService {
	svc := NewAttendanceService(store, 75, nil, NewMetricsService(), nil, zap.NewNop())
	svc.now = func() time.Time { return time.Date(2026, 2, 10, 8, 0, 0, 0, time.UTC) }
	return svc
}

func TestMarkDayDefaultsAbsentAndToday(t *testing.T) {
	store := newFakeRecordStore()
	svc := newTestAttendanceService(store)

	result, err := svc.MarkDay(context.Background(), teacherActor, "c1", MarkDayRequest{
		Statuses: map[string]models.AttendanceStatus{"3": models.AttendanceStatusPresent},
	})
	require.NoError(t, err)
	assert.Equal(t, "2026-02-10", result.Date)
	assert.Equal(t, 1, result.Present)
	assert.Equal(t, 1, result.Absent)
	require.Len(t, store.attendance, 2)
	assert.Equal(t, models.AttendanceStatusAbsent, store.attendance[models.AttendanceKey{StudentID: "4", CourseID: "c1", Date: "2026-02-10"}].Status)
}

func TestMarkDayIsIdempotentPerKey(t *testing.T) {
	store := newFakeRecordStore()
	svc := newTestAttendanceService(store)
	ctx := context.Background()

	_, err := svc.MarkDay(ctx, teacherActor, "c2", MarkDayRequest{Date: "2026-02-01", Statuses: map[string]models.AttendanceStatus{"3": "present"}})
	require.NoError(t, err)
	_, err = svc.MarkDay(ctx, teacherActor, "c2", MarkDayRequest{Date: "2026-02-01", Statuses: map[string]models.AttendanceStatus{"3": "absent"}})
	require.NoError(t, err)

	entries, err := svc.List(ctx, teacherActor, models.AttendanceFilter{StudentID: "3", CourseID: "c2"})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, models.AttendanceStatusAbsent, entries[0].Status)
}

func TestMarkDayValidation(t *testing.T) {
	svc := newTestAttendanceService(newFakeRecordStore())
	ctx := context.Background()

	_, err := svc.MarkDay(ctx, teacherActor, "c1", MarkDayRequest{Date: "10/02/2026", Statuses: map[string]models.AttendanceStatus{}})
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))

	_, err = svc.MarkDay(ctx, teacherActor, "c1", MarkDayRequest{Statuses: map[string]models.AttendanceStatus{"3": "late"}})
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))

	_, err = svc.MarkDay(ctx, teacherActor, "c1", MarkDayRequest{Statuses: map[string]models.AttendanceStatus{"77": "present"}})
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))

	_, err = svc.MarkDay(ctx, teacherActor, "nope", MarkDayRequest{Statuses: map[string]models.AttendanceStatus{}})
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}

func TestAttendancePercentage(t *testing.T) {
	assert.Equal(t, 0, AttendancePercentage(nil))

	entries := make([]models.AttendanceEntry, 0, 15)
	for i := 0; i < 15; i++ {
		status := models.AttendanceStatusAbsent
		if i < 11 {
			status = models.AttendanceStatusPresent
		}
		entries = append(entries, models.AttendanceEntry{StudentID: "3", CourseID: "c1", Date: fmt.Sprintf("2026-01-%02d", i+1), Status: status})
	}
	assert.Equal(t, 73, AttendancePercentage(entries))

	summary := SummarizeAttendance(entries, 75)
	assert.Equal(t, 11, summary.Present)
	assert.Equal(t, 4, summary.Absent)
	assert.Equal(t, 15, summary.Total)
	assert.False(t, summary.GoodStanding)
}

func TestAttendanceSummaryScopesByActor(t *testing.T) {
	store := newFakeRecordStore()
	svc := newTestAttendanceService(store)
	ctx := context.Background()
	for day := 1; day <= 4; day++ {
		status := models.AttendanceStatusPresent
		if day == 4 {
			status = models.AttendanceStatusAbsent
		}
		_, err := svc.MarkDay(ctx, teacherActor, "c1", MarkDayRequest{
			Date:     fmt.Sprintf("2026-03-%02d", day),
			Statuses: map[string]models.AttendanceStatus{"3": status, "4": models.AttendanceStatusPresent},
		})
		require.NoError(t, err)
	}

	student := models.Actor{UserID: "3", Role: models.RoleStudent}
	summary, hit, err := svc.Summary(ctx, student, models.AttendanceFilter{})
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, "3", summary.StudentID)
	assert.Equal(t, 75, summary.Percentage)
	assert.True(t, summary.GoodStanding)

	parent := models.Actor{UserID: "5", Role: models.RoleParent, StudentID: "3"}
	summary, _, err = svc.Summary(ctx, parent, models.AttendanceFilter{CourseID: "c1"})
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Present)
	assert.Equal(t, 1, summary.Absent)

	_, _, err = svc.Summary(ctx, student, models.AttendanceFilter{StudentID: "4"})
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))

	_, _, err = svc.Summary(ctx, teacherActor, models.AttendanceFilter{})
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))

	summary, _, err = svc.Summary(ctx, teacherActor, models.AttendanceFilter{StudentID: "4", From: "2026-03-02", To: "2026-03-03"})
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Total)
	assert.Equal(t, 100, summary.Percentage)

	_, _, err = svc.Summary(ctx, teacherActor, models.AttendanceFilter{StudentID: "4", From: "2026-03-05", To: "2026-03-01"})
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
}

func TestCourseRoster(t *testing.T) {
	store := newFakeRecordStore()
	svc := newTestAttendanceService(store)
	ctx := context.Background()
	_, err := svc.MarkDay(ctx, teacherActor, "c1", MarkDayRequest{Date: "2026-03-01", Statuses: map[string]models.AttendanceStatus{"4": "present"}})
	require.NoError(t, err)

	roster, err := svc.CourseRoster(ctx, teacherActor, "c1")
	require.NoError(t, err)
	require.Len(t, roster.Students, 2)
	assert.Equal(t, "3", roster.Students[0].StudentID)
	assert.Equal(t, 0, roster.Students[0].Percentage)
	assert.Equal(t, 100, roster.Students[1].Percentage)

	_, err = svc.CourseRoster(ctx, models.Actor{UserID: "3", Role: models.RoleStudent}, "c1")
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))
}
