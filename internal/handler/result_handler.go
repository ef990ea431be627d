package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/academic-records-api/internal/dto"
	"github.com/noah-isme/academic-records-api/internal/middleware"
	"github.com/noah-isme/academic-records-api/internal/models"
	"github.com/noah-isme/academic-records-api/internal/service"
	"github.com/noah-isme/academic-records-api/pkg/response"
)

type resultService interface {
	StudentResults(ctx context.Context, actor models.Actor, studentID string) ([]dto.StudentResult, error)
	CourseSheet(ctx context.Context, actor models.Actor, courseID string) (*dto.CourseResultSheet, bool, error)
	ExportCourseSheet(ctx context.Context, actor models.Actor, courseID, rawFormat string) (*service.ExportedFile, error)
}

// ResultHandler exposes saved result records.
type ResultHandler struct {
	service resultService
}

// NewResultHandler constructs the handler.
func NewResultHandler(service resultService) *ResultHandler {
	return &ResultHandler{service: service}
}

// StudentResults godoc
// @Summary Saved results of one student
// @Tags Results
// @Produce json
// @Param student_id query string false "Student ID, implied for students and parents"
// @Success 200 {object} response.Envelope
// @Router /results [get]
func (h *ResultHandler) StudentResults(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	results, err := h.service.StudentResults(c.Request.Context(), actor, c.Query("student_id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, results, map[string]interface{}{"total": len(results)})
}

// CourseSheet godoc
// @Summary Course result sheet
// @Tags Results
// @Produce json
// @Param courseId path string true "Course ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /courses/{courseId}/results [get]
func (h *ResultHandler) CourseSheet(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	courseID, ok := courseParam(c)
	if !ok {
		return
	}
	start := time.Now()
	sheet, cacheHit, err := h.service.CourseSheet(c.Request.Context(), actor, courseID)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, cacheHit)
	response.JSON(c, http.StatusOK, sheet, middleware.ResponseMeta(c, start))
}

// Export godoc
// @Summary Export the course result sheet
// @Tags Results
// @Produce text/csv
// @Produce application/pdf
// @Param courseId path string true "Course ID"
// @Param format query string false "csv or pdf" default(csv)
// @Success 200 {file} file
// @Router /courses/{courseId}/results/export [get]
func (h *ResultHandler) Export(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	courseID, ok := courseParam(c)
	if !ok {
		return
	}
	file, err := h.service.ExportCourseSheet(c.Request.Context(), actor, courseID, c.DefaultQuery("format", "csv"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, file.Filename, file.ContentType, file.Body)
}
