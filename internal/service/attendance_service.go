package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/academic-records-api/internal/dto"
	"github.com/noah-isme/academic-records-api/internal/models"
	appErrors "github.com/noah-isme/academic-records-api/pkg/errors"
)

type attendanceStore interface {
	FindCourse(ctx context.Context, id string) (*models.Course, error)
	ListUsers(ctx context.Context) ([]models.User, error)
	ListAttendanceEntries(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceEntry, error)
	UpsertAttendanceEntries(ctx context.Context, entries []models.AttendanceEntry) error
}

// MarkDayRequest is a teacher's presence map for one course day. Enrolled students left
// out of Statuses are recorded absent.
type MarkDayRequest struct {
	Date     string                             `json:"date" validate:"omitempty,datetime=2006-01-02"`
	Statuses map[string]models.AttendanceStatus `json:"statuses" validate:"required,dive,keys,required,endkeys,attendance_status"`
}

// DefaultGoodStandingThreshold is the attendance percentage a student needs to stay in good standing.
const DefaultGoodStandingThreshold = 75

// AttendanceService records presence per (student, course, date) and derives percentages on read.
type AttendanceService struct {
	store        attendanceStore
	cache        *CacheService
	metrics      *MetricsService
	goodStanding int
	validator    *validator.Validate
	logger       *zap.Logger
	now          func() time.Time
}

// NewAttendanceService constructs the attendance service.
func NewAttendanceService(store attendanceStore, goodStanding int, cache *CacheService, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *AttendanceService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if goodStanding <= 0 {
		goodStanding = DefaultGoodStandingThreshold
	}
	svc := &AttendanceService{
		store:        store,
		cache:        cache,
		metrics:      metrics,
		goodStanding: goodStanding,
		validator:    validate,
		logger:       logger,
		now:          time.Now,
	}
	svc.validator.RegisterValidation("attendance_status", func(fl validator.FieldLevel) bool {
		status := models.AttendanceStatus(strings.ToLower(fl.Field().String()))
		return status.Valid()
	})
	return svc
}

// MarkDay upserts one entry per enrolled student for the date. Re-marking a day replaces
// the earlier entries.
func (s *AttendanceService) MarkDay(ctx context.Context, actor models.Actor, courseID string, req MarkDayRequest) (*dto.AttendanceDayResult, error) {
	if !actor.Valid() {
		return nil, appErrors.ErrUnauthorized
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}
	date := req.Date
	if date == "" {
		date = s.now().Format(models.AttendanceDateLayout)
	}

	students, err := s.enrolledStudents(ctx, courseID)
	if err != nil {
		return nil, err
	}
	enrolled := studentSet(students)
	for studentID := range req.Statuses {
		if _, ok := enrolled[studentID]; !ok {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("student %s is not enrolled in course %s", studentID, courseID))
		}
	}

	result := &dto.AttendanceDayResult{CourseID: courseID, Date: date, Entries: make([]models.AttendanceEntry, 0, len(students))}
	for _, studentID := range students {
		status := models.AttendanceStatusAbsent
		if marked, ok := req.Statuses[studentID]; ok {
			status = models.AttendanceStatus(strings.ToLower(string(marked)))
		}
		if status == models.AttendanceStatusPresent {
			result.Present++
		} else {
			result.Absent++
		}
		result.Entries = append(result.Entries, models.AttendanceEntry{
			StudentID: studentID,
			CourseID:  courseID,
			Date:      date,
			Status:    status,
		})
	}

	start := time.Now()
	err = s.store.UpsertAttendanceEntries(ctx, result.Entries)
	s.metrics.ObserveStoreOperation("upsert_attendance_entries", time.Since(start))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record attendance")
	}
	s.metrics.RecordAttendanceMarks(result.Present, result.Absent)
	s.cache.InvalidateAttendance(ctx)

	s.logger.Info("attendance marked",
		zap.String("course_id", courseID),
		zap.String("date", date),
		zap.String("actor_id", actor.UserID),
		zap.Int("present", result.Present),
		zap.Int("absent", result.Absent),
	)
	return result, nil
}

// List returns entries visible to the actor, narrowed by the filter.
func (s *AttendanceService) List(ctx context.Context, actor models.Actor, filter models.AttendanceFilter) ([]models.AttendanceEntry, error) {
	if err := validateDateRange(filter); err != nil {
		return nil, err
	}
	studentID, err := resolveStudent(actor, filter.StudentID, false)
	if err != nil {
		return nil, err
	}
	filter.StudentID = studentID

	start := time.Now()
	entries, err := s.store.ListAttendanceEntries(ctx, filter)
	s.metrics.ObserveStoreOperation("list_attendance_entries", time.Since(start))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list attendance")
	}
	return entries, nil
}

// Summary derives present/absent counts and the percentage for one student, optionally
// scoped to a course and date range. The boolean reports a cache hit.
func (s *AttendanceService) Summary(ctx context.Context, actor models.Actor, filter models.AttendanceFilter) (*models.AttendanceSummary, bool, error) {
	if err := validateDateRange(filter); err != nil {
		return nil, false, err
	}
	studentID, err := resolveStudent(actor, filter.StudentID, true)
	if err != nil {
		return nil, false, err
	}
	filter.StudentID = studentID

	key := attendanceSummaryCacheKey(filter.StudentID, filter.CourseID, filter.From, filter.To)
	var cached models.AttendanceSummary
	if hit, err := s.cache.Get(ctx, key, &cached); err == nil && hit {
		return &cached, true, nil
	}

	entries, err := s.store.ListAttendanceEntries(ctx, filter)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load attendance")
	}
	summary := SummarizeAttendance(entries, s.goodStanding)
	summary.StudentID = filter.StudentID
	summary.CourseID = filter.CourseID

	_ = s.cache.Set(ctx, key, summary, 0)
	return &summary, false, nil
}

// CourseRoster summarises attendance for every enrolled student of a course.
func (s *AttendanceService) CourseRoster(ctx context.Context, actor models.Actor, courseID string) (*dto.AttendanceRoster, error) {
	if !actor.Valid() {
		return nil, appErrors.ErrUnauthorized
	}
	if actor.Role == models.RoleStudent || actor.Role == models.RoleParent {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "course roster is limited to staff")
	}
	students, err := s.enrolledStudents(ctx, courseID)
	if err != nil {
		return nil, err
	}
	entries, err := s.store.ListAttendanceEntries(ctx, models.AttendanceFilter{CourseID: courseID})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load attendance")
	}

	byStudent := make(map[string][]models.AttendanceEntry, len(students))
	for _, e := range entries {
		byStudent[e.StudentID] = append(byStudent[e.StudentID], e)
	}
	roster := &dto.AttendanceRoster{CourseID: courseID, Students: make([]models.AttendanceSummary, 0, len(students))}
	for _, studentID := range students {
		summary := SummarizeAttendance(byStudent[studentID], s.goodStanding)
		summary.StudentID = studentID
		summary.CourseID = courseID
		roster.Students = append(roster.Students, summary)
	}
	return roster, nil
}

func (s *AttendanceService) enrolledStudents(ctx context.Context, courseID string) ([]string, error) {
	if courseID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "course id is required")
	}
	course, err := s.store.FindCourse(ctx, courseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	users, err := s.store.ListUsers(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load users")
	}
	return ValidStudentIDs(course.StudentsEnrolled, users), nil
}

// AttendancePercentage is round(100 * present / total), 0 when there are no entries.
func AttendancePercentage(entries []models.AttendanceEntry) int {
	if len(entries) == 0 {
		return 0
	}
	present := 0
	for _, e := range entries {
		if e.Status == models.AttendanceStatusPresent {
			present++
		}
	}
	return int(math.Round(100 * float64(present) / float64(len(entries))))
}

// SummarizeAttendance counts entries and applies the good standing threshold.
func SummarizeAttendance(entries []models.AttendanceEntry, threshold int) models.AttendanceSummary {
	summary := models.AttendanceSummary{Total: len(entries)}
	for _, e := range entries {
		if e.Status == models.AttendanceStatusPresent {
			summary.Present++
		} else {
			summary.Absent++
		}
	}
	summary.Percentage = AttendancePercentage(entries)
	summary.GoodStanding = summary.Total > 0 && summary.Percentage >= threshold
	return summary
}

// resolveStudent narrows a read to the student the actor may see. Students see
// themselves and parents see their linked student; staff must name a student when
// required is set.
func resolveStudent(actor models.Actor, requested string, required bool) (string, error) {
	if !actor.Valid() {
		return "", appErrors.ErrUnauthorized
	}
	switch actor.Role {
	case models.RoleStudent:
		if requested != "" && requested != actor.UserID {
			return "", appErrors.Clone(appErrors.ErrForbidden, "students may only read their own records")
		}
		return actor.UserID, nil
	case models.RoleParent:
		if requested != "" && requested != actor.StudentID {
			return "", appErrors.Clone(appErrors.ErrForbidden, "parents may only read their linked student's records")
		}
		return actor.StudentID, nil
	default:
		if required && requested == "" {
			return "", appErrors.Clone(appErrors.ErrValidation, "student id is required")
		}
		return requested, nil
	}
}

func validateDateRange(filter models.AttendanceFilter) error {
	for _, raw := range []string{filter.From, filter.To} {
		if raw == "" {
			continue
		}
		if _, err := time.Parse(models.AttendanceDateLayout, raw); err != nil {
			return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("invalid date %q, expected YYYY-MM-DD", raw))
		}
	}
	if filter.From != "" && filter.To != "" && filter.From > filter.To {
		return appErrors.Clone(appErrors.ErrValidation, "from must not be after to")
	}
	return nil
}
