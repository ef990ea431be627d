package repository

import (
	"context"
	"database/sql"
	"sort"
	"sync"

	"github.com/noah-isme/academic-records-api/internal/models"
)

type resultKey struct {
	courseID  string
	studentID string
}

// MemoryRecordStore keeps every collection in process memory. Values are cloned on the
// way in and out so callers never share state with the store.
type MemoryRecordStore struct {
	mu         sync.RWMutex
	users      map[string]models.User
	courses    map[string]models.Course
	results    map[resultKey]models.ResultRecord
	attendance map[models.AttendanceKey]models.AttendanceEntry
}

// NewMemoryRecordStore constructs an empty store.
func NewMemoryRecordStore() *MemoryRecordStore {
	return &MemoryRecordStore{
		users:      make(map[string]models.User),
		courses:    make(map[string]models.Course),
		results:    make(map[resultKey]models.ResultRecord),
		attendance: make(map[models.AttendanceKey]models.AttendanceEntry),
	}
}

// ListUsers returns every user ordered by id.
func (s *MemoryRecordStore) ListUsers(ctx context.Context) ([]models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	users := make([]models.User, 0, len(s.users))
	for _, u := range s.users {
		users = append(users, u)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users, nil
}

// ListCourses returns every course ordered by id.
func (s *MemoryRecordStore) ListCourses(ctx context.Context) ([]models.Course, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	courses := make([]models.Course, 0, len(s.courses))
	for _, c := range s.courses {
		courses = append(courses, cloneCourse(c))
	}
	sort.Slice(courses, func(i, j int) bool { return courses[i].ID < courses[j].ID })
	return courses, nil
}

// FindCourse returns a course or sql.ErrNoRows.
func (s *MemoryRecordStore) FindCourse(ctx context.Context, id string) (*models.Course, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.courses[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	course := cloneCourse(c)
	return &course, nil
}

// ListResultRecords returns records matching the filter ordered by course and student.
func (s *MemoryRecordStore) ListResultRecords(ctx context.Context, filter models.ResultFilter) ([]models.ResultRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	records := make([]models.ResultRecord, 0)
	for _, r := range s.results {
		if !filter.Matches(r) {
			continue
		}
		r.Schema = r.Schema.Clone()
		records = append(records, r)
	}
	sort.Slice(records, func(i, j int) bool {
		if records[i].CourseID != records[j].CourseID {
			return records[i].CourseID < records[j].CourseID
		}
		return records[i].StudentID < records[j].StudentID
	})
	return records, nil
}

// UpsertResultRecords replaces records by (course, student) under one lock.
func (s *MemoryRecordStore) UpsertResultRecords(ctx context.Context, records []models.ResultRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range records {
		r.Schema = r.Schema.Clone()
		s.results[resultKey{courseID: r.CourseID, studentID: r.StudentID}] = r
	}
	return nil
}

// ListAttendanceEntries returns entries matching the filter ordered by date, course and student.
func (s *MemoryRecordStore) ListAttendanceEntries(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entries := make([]models.AttendanceEntry, 0)
	for _, e := range s.attendance {
		if filter.Matches(e) {
			entries = append(entries, e)
		}
	}
	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.Date != b.Date {
			return a.Date < b.Date
		}
		if a.CourseID != b.CourseID {
			return a.CourseID < b.CourseID
		}
		return a.StudentID < b.StudentID
	})
	return entries, nil
}

// UpsertAttendanceEntry replaces any entry sharing (student, course, date).
func (s *MemoryRecordStore) UpsertAttendanceEntry(ctx context.Context, entry models.AttendanceEntry) error {
	return s.UpsertAttendanceEntries(ctx, []models.AttendanceEntry{entry})
}

// UpsertAttendanceEntries upserts a batch under one lock.
func (s *MemoryRecordStore) UpsertAttendanceEntries(ctx context.Context, entries []models.AttendanceEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range entries {
		s.attendance[e.Key()] = e
	}
	return nil
}

// UpsertUser creates or replaces a user by id.
func (s *MemoryRecordStore) UpsertUser(ctx context.Context, user models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[user.ID] = user
	return nil
}

// UpsertCourse creates or replaces a course by id.
func (s *MemoryRecordStore) UpsertCourse(ctx context.Context, course models.Course) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.courses[course.ID] = cloneCourse(course)
	return nil
}

// Ping always succeeds.
func (s *MemoryRecordStore) Ping(ctx context.Context) error {
	return nil
}

func cloneCourse(c models.Course) models.Course {
	c.StudentsEnrolled = append([]string{}, c.StudentsEnrolled...)
	return c
}
