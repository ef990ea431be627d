package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/academic-records-api/internal/dto"
	"github.com/noah-isme/academic-records-api/internal/models"
	"github.com/noah-isme/academic-records-api/internal/service"
	appErrors "github.com/noah-isme/academic-records-api/pkg/errors"
)

type fakeResultSrv struct {
	studentID string
	format    string
	sheetHit  bool
}

func (f *fakeResultSrv) StudentResults(_ context.Context, _ models.Actor, studentID string) ([]dto.StudentResult, error) {
	f.studentID = studentID
	return []dto.StudentResult{{CourseID: "c1", CourseName: "Mathematics", OverallTotal: 55, Grade: "C"}}, nil
}

func (f *fakeResultSrv) CourseSheet(_ context.Context, _ models.Actor, courseID string) (*dto.CourseResultSheet, bool, error) {
	return &dto.CourseResultSheet{CourseID: courseID, ClassAverage: 37.5}, f.sheetHit, nil
}

func (f *fakeResultSrv) ExportCourseSheet(_ context.Context, _ models.Actor, _ string, rawFormat string) (*service.ExportedFile, error) {
	f.format = rawFormat
	if rawFormat != "csv" && rawFormat != "pdf" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unsupported export format")
	}
	return &service.ExportedFile{Filename: "math101-results.csv", ContentType: "text/csv", Body: []byte("Student,Total\n")}, nil
}

func TestResultHandlerStudentResults(t *testing.T) {
	srv := &fakeResultSrv{}
	h := NewResultHandler(srv)
	c, rec := newContext(http.MethodGet, "/results?student_id=3", nil, &teacher, nil)

	h.StudentResults(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "3", srv.studentID)
}

func TestResultHandlerCourseSheetMeta(t *testing.T) {
	h := NewResultHandler(&fakeResultSrv{sheetHit: false})
	c, rec := newContext(http.MethodGet, "/courses/c1/results", nil, &teacher, courseParams())

	h.CourseSheet(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, decodeEnvelope(t, rec).Meta["cache_hit"])
}

func TestResultHandlerExportDefaultsToCSV(t *testing.T) {
	srv := &fakeResultSrv{}
	h := NewResultHandler(srv)
	c, rec := newContext(http.MethodGet, "/courses/c1/results/export", nil, &teacher, courseParams())

	h.Export(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "csv", srv.format)
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "math101-results.csv")
	assert.Equal(t, "Student,Total\n", rec.Body.String())
}

func TestResultHandlerExportRejectsUnknownFormat(t *testing.T) {
	h := NewResultHandler(&fakeResultSrv{})
	c, rec := newContext(http.MethodGet, "/courses/c1/results/export?format=xlsx", nil, &teacher, courseParams())

	h.Export(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
