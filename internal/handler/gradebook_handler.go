package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/academic-records-api/internal/dto"
	"github.com/noah-isme/academic-records-api/internal/models"
	"github.com/noah-isme/academic-records-api/internal/service"
	appErrors "github.com/noah-isme/academic-records-api/pkg/errors"
	"github.com/noah-isme/academic-records-api/pkg/response"
)

type gradebookService interface {
	Open(ctx context.Context, actor models.Actor, courseID string) (*dto.GradebookView, error)
	Schema(ctx context.Context, actor models.Actor, courseID string) (*dto.GradebookView, error)
	AddItem(ctx context.Context, actor models.Actor, courseID string, req service.AddItemRequest) (*models.AssessmentItem, error)
	RemoveItem(ctx context.Context, actor models.Actor, courseID, itemID string) (*dto.GradebookView, error)
	ResizeItem(ctx context.Context, actor models.Actor, courseID, itemID string, req service.ResizeItemRequest) (*dto.GradebookView, error)
	ResizeCategory(ctx context.Context, actor models.Actor, courseID string, category models.CategoryName, req service.ResizeCategoryRequest) (*dto.GradebookView, error)
	ToggleConsidered(ctx context.Context, actor models.Actor, courseID, itemID string) (*dto.GradebookView, error)
	SetScore(ctx context.Context, actor models.Actor, courseID, itemID, studentID string, value float64) (float64, error)
	SetScores(ctx context.Context, actor models.Actor, courseID, itemID string, req service.SetScoresRequest) (*dto.ScoreUpdate, error)
	Preview(ctx context.Context, actor models.Actor, courseID string) (*dto.GradebookPreview, error)
	Save(ctx context.Context, actor models.Actor, courseID string) (*dto.GradebookSaveResult, error)
	Discard(actor models.Actor, courseID string)
}

// GradebookHandler exposes the teacher's working copy of a course gradebook.
type GradebookHandler struct {
	service gradebookService
}

// NewGradebookHandler constructs the handler.
func NewGradebookHandler(service gradebookService) *GradebookHandler {
	return &GradebookHandler{service: service}
}

type scoreRequest struct {
	Score *float64 `json:"score" binding:"required"`
}

// Get godoc
// @Summary Get the gradebook working copy
// @Tags Gradebook
// @Produce json
// @Param courseId path string true "Course ID"
// @Param reload query bool false "Discard uncommitted edits and reload from the store"
// @Success 200 {object} response.Envelope
// @Router /courses/{courseId}/gradebook [get]
func (h *GradebookHandler) Get(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	courseID, ok := courseParam(c)
	if !ok {
		return
	}
	load := h.service.Schema
	if reload, _ := strconv.ParseBool(c.Query("reload")); reload {
		load = h.service.Open
	}
	view, err := load(c.Request.Context(), actor, courseID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view)
}

// AddItem godoc
// @Summary Add an assessment item
// @Tags Gradebook
// @Accept json
// @Produce json
// @Param courseId path string true "Course ID"
// @Param payload body service.AddItemRequest true "Item payload"
// @Success 201 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /courses/{courseId}/gradebook/items [post]
func (h *GradebookHandler) AddItem(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	courseID, ok := courseParam(c)
	if !ok {
		return
	}
	var req service.AddItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	item, err := h.service.AddItem(c.Request.Context(), actor, courseID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, item)
}

// RemoveItem godoc
// @Summary Remove an assessment item
// @Tags Gradebook
// @Produce json
// @Param courseId path string true "Course ID"
// @Param itemId path string true "Item ID"
// @Success 200 {object} response.Envelope
// @Router /courses/{courseId}/gradebook/items/{itemId} [delete]
func (h *GradebookHandler) RemoveItem(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	courseID, ok := courseParam(c)
	if !ok {
		return
	}
	view, err := h.service.RemoveItem(c.Request.Context(), actor, courseID, c.Param("itemId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view)
}

// ResizeItem godoc
// @Summary Change an item capacity
// @Tags Gradebook
// @Accept json
// @Produce json
// @Param courseId path string true "Course ID"
// @Param itemId path string true "Item ID"
// @Param payload body service.ResizeItemRequest true "Capacity payload"
// @Success 200 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /courses/{courseId}/gradebook/items/{itemId} [patch]
func (h *GradebookHandler) ResizeItem(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	courseID, ok := courseParam(c)
	if !ok {
		return
	}
	var req service.ResizeItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	view, err := h.service.ResizeItem(c.Request.Context(), actor, courseID, c.Param("itemId"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view)
}

// Toggle godoc
// @Summary Toggle whether an item counts toward totals
// @Tags Gradebook
// @Produce json
// @Param courseId path string true "Course ID"
// @Param itemId path string true "Item ID"
// @Success 200 {object} response.Envelope
// @Router /courses/{courseId}/gradebook/items/{itemId}/toggle [post]
func (h *GradebookHandler) Toggle(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	courseID, ok := courseParam(c)
	if !ok {
		return
	}
	view, err := h.service.ToggleConsidered(c.Request.Context(), actor, courseID, c.Param("itemId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view)
}

// ResizeCategory godoc
// @Summary Change a category capacity
// @Tags Gradebook
// @Accept json
// @Produce json
// @Param courseId path string true "Course ID"
// @Param category path string true "quiz, assignment, midterm or final"
// @Param payload body service.ResizeCategoryRequest true "Capacity payload"
// @Success 200 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /courses/{courseId}/gradebook/categories/{category} [put]
func (h *GradebookHandler) ResizeCategory(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	courseID, ok := courseParam(c)
	if !ok {
		return
	}
	var req service.ResizeCategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	category := models.CategoryName(c.Param("category"))
	view, err := h.service.ResizeCategory(c.Request.Context(), actor, courseID, category, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view)
}

// SetScores godoc
// @Summary Grade many students on one item
// @Tags Gradebook
// @Accept json
// @Produce json
// @Param courseId path string true "Course ID"
// @Param itemId path string true "Item ID"
// @Param payload body service.SetScoresRequest true "Scores keyed by student ID"
// @Success 200 {object} response.Envelope
// @Router /courses/{courseId}/gradebook/items/{itemId}/scores [put]
func (h *GradebookHandler) SetScores(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	courseID, ok := courseParam(c)
	if !ok {
		return
	}
	var req service.SetScoresRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	update, err := h.service.SetScores(c.Request.Context(), actor, courseID, c.Param("itemId"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, update)
}

// SetScore godoc
// @Summary Grade one student on one item
// @Tags Gradebook
// @Accept json
// @Produce json
// @Param courseId path string true "Course ID"
// @Param itemId path string true "Item ID"
// @Param studentId path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /courses/{courseId}/gradebook/items/{itemId}/scores/{studentId} [put]
func (h *GradebookHandler) SetScore(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	courseID, ok := courseParam(c)
	if !ok {
		return
	}
	var req scoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	itemID, studentID := c.Param("itemId"), c.Param("studentId")
	stored, err := h.service.SetScore(c.Request.Context(), actor, courseID, itemID, studentID, *req.Score)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.ScoreUpdate{ItemID: itemID, Scores: map[string]float64{studentID: stored}})
}

// Preview godoc
// @Summary Preview totals and grades without saving
// @Tags Gradebook
// @Produce json
// @Param courseId path string true "Course ID"
// @Success 200 {object} response.Envelope
// @Router /courses/{courseId}/gradebook/preview [get]
func (h *GradebookHandler) Preview(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	courseID, ok := courseParam(c)
	if !ok {
		return
	}
	preview, err := h.service.Preview(c.Request.Context(), actor, courseID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, preview)
}

// Save godoc
// @Summary Commit the working copy as result records
// @Tags Gradebook
// @Produce json
// @Param courseId path string true "Course ID"
// @Success 200 {object} response.Envelope
// @Failure 500 {object} response.Envelope
// @Router /courses/{courseId}/gradebook/save [post]
func (h *GradebookHandler) Save(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	courseID, ok := courseParam(c)
	if !ok {
		return
	}
	result, err := h.service.Save(c.Request.Context(), actor, courseID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result)
}

// Discard godoc
// @Summary Drop uncommitted gradebook edits
// @Tags Gradebook
// @Param courseId path string true "Course ID"
// @Success 204
// @Router /courses/{courseId}/gradebook [delete]
func (h *GradebookHandler) Discard(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	courseID, ok := courseParam(c)
	if !ok {
		return
	}
	h.service.Discard(actor, courseID)
	response.NoContent(c)
}
