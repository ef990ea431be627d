package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/academic-records-api/internal/dto"
	"github.com/noah-isme/academic-records-api/internal/models"
	appErrors "github.com/noah-isme/academic-records-api/pkg/errors"
)

type gradebookStore interface {
	FindCourse(ctx context.Context, id string) (*models.Course, error)
	ListUsers(ctx context.Context) ([]models.User, error)
	ListResultRecords(ctx context.Context, filter models.ResultFilter) ([]models.ResultRecord, error)
	UpsertResultRecords(ctx context.Context, records []models.ResultRecord) error
}

// AddItemRequest describes a new assessment item.
type AddItemRequest struct {
	Category models.CategoryName `json:"category" validate:"required,category"`
	Capacity float64             `json:"capacity" validate:"gt=0"`
	Name     string              `json:"name" validate:"omitempty,max=100"`
}

// ResizeItemRequest carries a new item capacity.
type ResizeItemRequest struct {
	Capacity float64 `json:"capacity" validate:"gt=0"`
}

// ResizeCategoryRequest carries a new category capacity.
type ResizeCategoryRequest struct {
	Capacity float64 `json:"capacity" validate:"gte=0"`
}

// SetScoresRequest grades many students on one item.
type SetScoresRequest struct {
	Scores map[string]float64 `json:"scores" validate:"required,min=1,dive,keys,required,endkeys"`
}

type sessionKey struct {
	actorID  string
	courseID string
}

// gradebookSession is a teacher's uncommitted working copy of one course.
type gradebookSession struct {
	courseID string
	students []string
	enrolled map[string]struct{}
	schema   models.AssessmentSchema
}

// GradebookService holds per-teacher working copies of course schemas and commits them
// as result record batches. Concurrent sessions on the same course are last writer wins.
type GradebookService struct {
	store     gradebookStore
	allocator *AllocationValidator
	defaults  models.AssessmentSchema
	cache     *CacheService
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time

	mu       sync.Mutex
	sessions map[sessionKey]*gradebookSession
}

// NewGradebookService constructs the gradebook service. defaults is the schema a course
// starts from before its first save.
func NewGradebookService(store gradebookStore, defaults models.AssessmentSchema, cache *CacheService, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *GradebookService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &GradebookService{
		store:     store,
		allocator: NewAllocationValidator(),
		defaults:  defaults.Clone(),
		cache:     cache,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		now:       time.Now,
		sessions:  make(map[sessionKey]*gradebookSession),
	}
	svc.validator.RegisterValidation("category", func(fl validator.FieldLevel) bool {
		return models.CategoryName(fl.Field().String()).Valid()
	})
	return svc
}

// Open starts a fresh working copy from the store, dropping any uncommitted edits.
func (s *GradebookService) Open(ctx context.Context, actor models.Actor, courseID string) (*dto.GradebookView, error) {
	if !actor.Valid() {
		return nil, appErrors.ErrUnauthorized
	}
	sess, err := s.load(ctx, courseID)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sessionKey{actorID: actor.UserID, courseID: courseID}] = sess
	return buildView(sess), nil
}

// Schema returns the current working copy, opening one when none exists.
func (s *GradebookService) Schema(ctx context.Context, actor models.Actor, courseID string) (*dto.GradebookView, error) {
	var view *dto.GradebookView
	err := s.withSession(ctx, actor, courseID, func(sess *gradebookSession) error {
		view = buildView(sess)
		return nil
	})
	return view, err
}

// AddItem appends an item to a category of the working copy.
func (s *GradebookService) AddItem(ctx context.Context, actor models.Actor, courseID string, req AddItemRequest) (*models.AssessmentItem, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}
	var item models.AssessmentItem
	err := s.withSession(ctx, actor, courseID, func(sess *gradebookSession) error {
		added, err := s.allocator.AddItem(&sess.schema, req.Category, req.Capacity, req.Name, sess.students)
		if err != nil {
			return err
		}
		item = added
		return nil
	})
	if err != nil {
		return nil, s.rejected(err)
	}
	return &item, nil
}

// RemoveItem drops an item from the working copy.
func (s *GradebookService) RemoveItem(ctx context.Context, actor models.Actor, courseID, itemID string) (*dto.GradebookView, error) {
	return s.mutate(ctx, actor, courseID, func(schema *models.AssessmentSchema) error {
		return s.allocator.RemoveItem(schema, itemID)
	})
}

// ResizeItem changes an item capacity, capping scores when it shrinks.
func (s *GradebookService) ResizeItem(ctx context.Context, actor models.Actor, courseID, itemID string, req ResizeItemRequest) (*dto.GradebookView, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}
	return s.mutate(ctx, actor, courseID, func(schema *models.AssessmentSchema) error {
		return s.allocator.ResizeItem(schema, itemID, req.Capacity)
	})
}

// ResizeCategory changes a category capacity.
func (s *GradebookService) ResizeCategory(ctx context.Context, actor models.Actor, courseID string, category models.CategoryName, req ResizeCategoryRequest) (*dto.GradebookView, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}
	if !category.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown category %q", category))
	}
	return s.mutate(ctx, actor, courseID, func(schema *models.AssessmentSchema) error {
		return s.allocator.ResizeCategory(schema, category, req.Capacity)
	})
}

// ToggleConsidered flips whether an item counts toward totals.
func (s *GradebookService) ToggleConsidered(ctx context.Context, actor models.Actor, courseID, itemID string) (*dto.GradebookView, error) {
	return s.mutate(ctx, actor, courseID, func(schema *models.AssessmentSchema) error {
		_, err := s.allocator.ToggleConsidered(schema, itemID)
		return err
	})
}

// SetScore records one student's score, clamped to the item capacity.
func (s *GradebookService) SetScore(ctx context.Context, actor models.Actor, courseID, itemID, studentID string, value float64) (float64, error) {
	update, err := s.SetScores(ctx, actor, courseID, itemID, SetScoresRequest{Scores: map[string]float64{studentID: value}})
	if err != nil {
		return 0, err
	}
	return update.Scores[studentID], nil
}

// SetScores records scores for many students on one item. Every student must be in the
// valid enrollment; otherwise nothing is written.
func (s *GradebookService) SetScores(ctx context.Context, actor models.Actor, courseID, itemID string, req SetScoresRequest) (*dto.ScoreUpdate, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}
	var update *dto.ScoreUpdate
	err := s.withSession(ctx, actor, courseID, func(sess *gradebookSession) error {
		_, item, ok := sess.schema.FindItem(itemID)
		if !ok {
			return appErrors.Clone(appErrors.ErrNotFound, "assessment item not found")
		}
		for studentID := range req.Scores {
			if _, enrolled := sess.enrolled[studentID]; !enrolled {
				return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("student %s is not enrolled in course %s", studentID, courseID))
			}
		}
		update = &dto.ScoreUpdate{ItemID: itemID, Scores: SetScores(item, req.Scores)}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return update, nil
}

// Preview computes totals and grades from the working copy without writing anything.
func (s *GradebookService) Preview(ctx context.Context, actor models.Actor, courseID string) (*dto.GradebookPreview, error) {
	var preview *dto.GradebookPreview
	err := s.withSession(ctx, actor, courseID, func(sess *gradebookSession) error {
		totals := PreviewTotals(sess.schema, sess.students)
		values := make([]float64, len(totals))
		for i, t := range totals {
			values[i] = t.OverallTotal
		}
		preview = &dto.GradebookPreview{CourseID: courseID, Totals: totals, ClassAverage: ClassAverage(values)}
		return nil
	})
	return preview, err
}

// Save commits the working copy as one result record per enrolled student, all carrying
// the same schema snapshot, in a single store write. The working copy stays open.
func (s *GradebookService) Save(ctx context.Context, actor models.Actor, courseID string) (*dto.GradebookSaveResult, error) {
	var (
		snapshot models.AssessmentSchema
		students []string
	)
	err := s.withSession(ctx, actor, courseID, func(sess *gradebookSession) error {
		snapshot = sess.schema.Clone()
		students = append([]string(nil), sess.students...)
		return nil
	})
	if err != nil {
		return nil, err
	}

	savedAt := s.now().UTC()
	records, err := BuildCourseResults(courseID, snapshot, students, savedAt)
	if err != nil {
		s.metrics.RecordGradebookSave(SaveOutcomeDivergence, 0)
		s.logger.Error("gradebook save aborted", zap.String("course_id", courseID), zap.Error(err))
		return nil, err
	}

	start := time.Now()
	err = s.store.UpsertResultRecords(ctx, records)
	s.metrics.ObserveStoreOperation("upsert_result_records", time.Since(start))
	if err != nil {
		s.metrics.RecordGradebookSave(SaveOutcomeStoreError, 0)
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save result records")
	}
	s.metrics.RecordGradebookSave(SaveOutcomeSuccess, len(records))
	s.cache.InvalidateResults(ctx)

	totals := make([]models.StudentTotal, len(records))
	for i, r := range records {
		totals[i] = models.StudentTotal{StudentID: r.StudentID, OverallTotal: r.OverallTotal, Grade: r.Grade}
	}
	s.logger.Info("gradebook saved",
		zap.String("course_id", courseID),
		zap.String("actor_id", actor.UserID),
		zap.Int("records", len(records)),
	)
	return &dto.GradebookSaveResult{CourseID: courseID, Saved: len(records), Totals: totals, SavedAt: savedAt}, nil
}

// Discard drops the actor's working copy for a course.
func (s *GradebookService) Discard(actor models.Actor, courseID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionKey{actorID: actor.UserID, courseID: courseID})
}

func (s *GradebookService) mutate(ctx context.Context, actor models.Actor, courseID string, fn func(schema *models.AssessmentSchema) error) (*dto.GradebookView, error) {
	var view *dto.GradebookView
	err := s.withSession(ctx, actor, courseID, func(sess *gradebookSession) error {
		if err := fn(&sess.schema); err != nil {
			return err
		}
		view = buildView(sess)
		return nil
	})
	if err != nil {
		return nil, s.rejected(err)
	}
	return view, nil
}

// rejected counts allocation rejections before handing the error back.
func (s *GradebookService) rejected(err error) error {
	if appErrors.Is(err, appErrors.ErrCapacityExceeded) || appErrors.Is(err, appErrors.ErrBelowMinimum) {
		s.metrics.RecordAllocationRejection(appErrors.FromError(err).Code)
	}
	return err
}

// withSession runs fn against the actor's working copy under the service lock, loading
// the copy from the store first when needed.
func (s *GradebookService) withSession(ctx context.Context, actor models.Actor, courseID string, fn func(sess *gradebookSession) error) error {
	if !actor.Valid() {
		return appErrors.ErrUnauthorized
	}
	if courseID == "" {
		return appErrors.Clone(appErrors.ErrValidation, "course id is required")
	}
	key := sessionKey{actorID: actor.UserID, courseID: courseID}

	s.mu.Lock()
	sess, ok := s.sessions[key]
	s.mu.Unlock()

	if !ok {
		loaded, err := s.load(ctx, courseID)
		if err != nil {
			return err
		}
		s.mu.Lock()
		if existing, raced := s.sessions[key]; raced {
			sess = existing
		} else {
			s.sessions[key] = loaded
			sess = loaded
		}
		s.mu.Unlock()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(sess)
}

func (s *GradebookService) load(ctx context.Context, courseID string) (*gradebookSession, error) {
	start := time.Now()
	defer func() { s.metrics.ObserveStoreOperation("load_gradebook", time.Since(start)) }()

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
	records, err := s.store.ListResultRecords(ctx, models.ResultFilter{CourseID: courseID})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load result records")
	}

	students := ValidStudentIDs(course.StudentsEnrolled, users)
	enrolled := studentSet(students)

	schema, err := s.storedSchema(records, enrolled)
	if err != nil {
		s.logger.Error("stored gradebook diverged", zap.String("course_id", courseID), zap.Error(err))
		return nil, err
	}
	reconcileScores(&schema, students, enrolled)

	return &gradebookSession{
		courseID: courseID,
		students: students,
		enrolled: enrolled,
		schema:   schema,
	}, nil
}

// storedSchema picks the course schema from existing records. Records of students who
// are no longer enrolled are not checked; they are only used when nobody enrolled has one.
func (s *GradebookService) storedSchema(records []models.ResultRecord, enrolled map[string]struct{}) (models.AssessmentSchema, error) {
	if len(records) == 0 {
		return s.defaults.Clone(), nil
	}
	current := make([]models.ResultRecord, 0, len(records))
	for _, r := range records {
		if _, ok := enrolled[r.StudentID]; ok {
			current = append(current, r)
		}
	}
	if len(current) == 0 {
		latest := records[0]
		for _, r := range records[1:] {
			if r.UpdatedAt.After(latest.UpdatedAt) {
				latest = r
			}
		}
		return latest.Schema.Clone(), nil
	}
	if err := CheckSchemaConsistency(current); err != nil {
		return models.AssessmentSchema{}, err
	}
	return current[0].Schema.Clone(), nil
}

// reconcileScores seeds a zero score for every enrolled student and drops scores of
// students who left the course.
func reconcileScores(schema *models.AssessmentSchema, students []string, enrolled map[string]struct{}) {
	for _, name := range models.CategoryNames {
		cat := schema.Category(name)
		for i := range cat.Items {
			item := &cat.Items[i]
			if item.Scores == nil {
				item.Scores = make(map[string]float64, len(students))
			}
			for studentID := range item.Scores {
				if _, ok := enrolled[studentID]; !ok {
					delete(item.Scores, studentID)
				}
			}
			for _, studentID := range students {
				if _, ok := item.Scores[studentID]; !ok {
					item.Scores[studentID] = 0
				}
			}
		}
	}
}

func buildView(sess *gradebookSession) *dto.GradebookView {
	allocation := make(map[models.CategoryName]dto.CategoryAllocation, len(models.CategoryNames))
	for _, name := range models.CategoryNames {
		usage := Usage(*sess.schema.Category(name))
		allocation[name] = dto.CategoryAllocation{
			Capacity:  usage.Capacity,
			Used:      usage.Used,
			Footprint: usage.Footprint,
			Free:      usage.Free,
		}
	}
	return &dto.GradebookView{
		CourseID:   sess.courseID,
		Students:   append([]string(nil), sess.students...),
		Schema:     sess.schema.Clone(),
		Allocation: allocation,
	}
}
