package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/academic-records-api/internal/dto"
	"github.com/noah-isme/academic-records-api/internal/models"
	appErrors "github.com/noah-isme/academic-records-api/pkg/errors"
	"github.com/noah-isme/academic-records-api/pkg/export"
)

type resultStore interface {
	ListCourses(ctx context.Context) ([]models.Course, error)
	FindCourse(ctx context.Context, id string) (*models.Course, error)
	ListUsers(ctx context.Context) ([]models.User, error)
	ListResultRecords(ctx context.Context, filter models.ResultFilter) ([]models.ResultRecord, error)
}

type sheetRenderer interface {
	Render(format export.Format, data export.Dataset, title string) ([]byte, error)
}

// ExportedFile is a rendered download.
type ExportedFile struct {
	Filename    string
	ContentType string
	Body        []byte
}

// ResultService serves saved result records to students, parents and staff.
type ResultService struct {
	store    resultStore
	renderer sheetRenderer
	cache    *CacheService
	logger   *zap.Logger
}

// NewResultService constructs the result service.
func NewResultService(store resultStore, renderer sheetRenderer, cache *CacheService, logger *zap.Logger) *ResultService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if renderer == nil {
		renderer = export.NewRenderer()
	}
	return &ResultService{store: store, renderer: renderer, cache: cache, logger: logger}
}

// StudentResults lists the saved results of one student across courses, ordered by course name.
func (s *ResultService) StudentResults(ctx context.Context, actor models.Actor, studentID string) ([]dto.StudentResult, error) {
	resolved, err := resolveStudent(actor, studentID, true)
	if err != nil {
		return nil, err
	}
	records, err := s.store.ListResultRecords(ctx, models.ResultFilter{StudentID: resolved})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load results")
	}
	courses, err := s.store.ListCourses(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load courses")
	}
	byID := make(map[string]models.Course, len(courses))
	for _, c := range courses {
		byID[c.ID] = c
	}

	results := make([]dto.StudentResult, 0, len(records))
	for _, r := range records {
		course := byID[r.CourseID]
		name := course.Name
		if name == "" {
			name = r.CourseID
		}
		results = append(results, dto.StudentResult{
			CourseID:     r.CourseID,
			CourseName:   name,
			CourseCode:   course.Code,
			OverallTotal: r.OverallTotal,
			Grade:        r.Grade,
			Categories:   CategoryScores(r.Schema, r.StudentID),
			UpdatedAt:    r.UpdatedAt,
		})
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].CourseName < results[j].CourseName })
	return results, nil
}

// CourseSheet lists the saved results of every enrolled student with the class average
// and grade distribution. The boolean reports a cache hit.
func (s *ResultService) CourseSheet(ctx context.Context, actor models.Actor, courseID string) (*dto.CourseResultSheet, bool, error) {
	if !actor.Valid() {
		return nil, false, appErrors.ErrUnauthorized
	}
	if actor.Role == models.RoleStudent || actor.Role == models.RoleParent {
		return nil, false, appErrors.Clone(appErrors.ErrForbidden, "course result sheets are limited to staff")
	}

	key := courseSheetCacheKey(courseID)
	var cached dto.CourseResultSheet
	if hit, err := s.cache.Get(ctx, key, &cached); err == nil && hit {
		return &cached, true, nil
	}

	course, err := s.store.FindCourse(ctx, courseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	users, err := s.store.ListUsers(ctx)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load users")
	}
	records, err := s.store.ListResultRecords(ctx, models.ResultFilter{CourseID: courseID})
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load results")
	}

	names := make(map[string]string, len(users))
	for _, u := range users {
		names[u.ID] = u.Name
	}
	byStudent := make(map[string]models.ResultRecord, len(records))
	for _, r := range records {
		byStudent[r.StudentID] = r
	}

	sheet := &dto.CourseResultSheet{CourseID: course.ID, CourseName: course.Name, CourseCode: course.Code, Rows: []dto.ResultRow{}}
	totals := make([]float64, 0, len(records))
	grades := make([]string, 0, len(records))
	for _, studentID := range ValidStudentIDs(course.StudentsEnrolled, users) {
		record, ok := byStudent[studentID]
		if !ok {
			continue
		}
		sheet.Rows = append(sheet.Rows, dto.ResultRow{
			StudentID:    studentID,
			StudentName:  names[studentID],
			Categories:   CategoryScores(record.Schema, studentID),
			OverallTotal: record.OverallTotal,
			Grade:        record.Grade,
		})
		totals = append(totals, record.OverallTotal)
		grades = append(grades, record.Grade)
	}
	sheet.ClassAverage = ClassAverage(totals)
	sheet.Distribution = GradeDistribution(grades)

	_ = s.cache.Set(ctx, key, sheet, 0)
	return sheet, false, nil
}

// ExportCourseSheet renders the course sheet as CSV or PDF.
func (s *ResultService) ExportCourseSheet(ctx context.Context, actor models.Actor, courseID, rawFormat string) (*ExportedFile, error) {
	format, err := export.ParseFormat(rawFormat)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid export format")
	}
	sheet, _, err := s.CourseSheet(ctx, actor, courseID)
	if err != nil {
		return nil, err
	}

	title := fmt.Sprintf("%s (%s) results", sheet.CourseName, sheet.CourseCode)
	body, err := s.renderer.Render(format, CourseSheetDataset(sheet), title)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render result sheet")
	}
	s.logger.Info("result sheet exported",
		zap.String("course_id", courseID),
		zap.String("format", string(format)),
		zap.String("actor_id", actor.UserID),
	)
	return &ExportedFile{
		Filename:    fmt.Sprintf("%s-results.%s", strings.ToLower(sheet.CourseCode), format),
		ContentType: format.ContentType(),
		Body:        body,
	}, nil
}

// CourseSheetDataset flattens a sheet into export rows.
func CourseSheetDataset(sheet *dto.CourseResultSheet) export.Dataset {
	headers := []string{"Student"}
	for _, name := range models.CategoryNames {
		headers = append(headers, strings.ToUpper(string(name[:1]))+string(name[1:]))
	}
	headers = append(headers, "Total", "Grade")

	rows := make([]map[string]string, 0, len(sheet.Rows))
	for _, row := range sheet.Rows {
		name := row.StudentName
		if name == "" {
			name = row.StudentID
		}
		line := map[string]string{
			"Student": name,
			"Total":   fmt.Sprintf("%.2f", row.OverallTotal),
			"Grade":   row.Grade,
		}
		for i, cat := range row.Categories {
			line[headers[i+1]] = fmt.Sprintf("%.2f", cat.Obtained)
		}
		rows = append(rows, line)
	}

	return export.Dataset{
		Headers: headers,
		Rows:    rows,
		Summary: [][2]string{
			{"Students", fmt.Sprintf("%d", len(sheet.Rows))},
			{"Class average", fmt.Sprintf("%.2f", sheet.ClassAverage)},
		},
	}
}
