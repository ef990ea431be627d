package service

import (
	"context"
	"database/sql"
	"sort"
	"sync"

	"github.com/noah-isme/academic-records-api/internal/models"
)

// fakeRecordStore is an in-package record store double with failure injection.
type fakeRecordStore struct {
	mu         sync.Mutex
	users      []models.User
	courses    map[string]models.Course
	results    map[string]models.ResultRecord
	attendance map[models.AttendanceKey]models.AttendanceEntry

	upsertResultCalls int
	upsertResultErr   error
	upsertAttendErr   error
}

func newFakeRecordStore() *fakeRecordStore {
	return &fakeRecordStore{
		users: []models.User{
			{ID: "1", Username: "admin", Name: "Admin", Role: models.RoleAdmin},
			{ID: "2", Username: "teacher1", Name: "John Smith", Role: models.RoleTeacher},
			{ID: "3", Username: "student1", Name: "Alice Johnson", Role: models.RoleStudent},
			{ID: "4", Username: "student2", Name: "Bob Lee", Role: models.RoleStudent},
			{ID: "5", Username: "parent1", Name: "Mary Johnson", Role: models.RoleParent, LinkedStudentID: "3"},
		},
		courses: map[string]models.Course{
			"c1": {ID: "c1", Name: "Mathematics", Code: "MATH101", TeacherID: "2", StudentsEnrolled: []string{"3", "4", "", "2", "77"}},
			"c2": {ID: "c2", Name: "Physics", Code: "PHY101", TeacherID: "2", StudentsEnrolled: []string{"3"}},
		},
		results:    make(map[string]models.ResultRecord),
		attendance: make(map[models.AttendanceKey]models.AttendanceEntry),
	}
}

func (f *fakeRecordStore) ListUsers(ctx context.Context) ([]models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.User(nil), f.users...), nil
}

func (f *fakeRecordStore) ListCourses(ctx context.Context) ([]models.Course, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	courses := make([]models.Course, 0, len(f.courses))
	for _, c := range f.courses {
		courses = append(courses, c)
	}
	sort.Slice(courses, func(i, j int) bool { return courses[i].ID < courses[j].ID })
	return courses, nil
}

func (f *fakeRecordStore) FindCourse(ctx context.Context, id string) (*models.Course, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.courses[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	c.StudentsEnrolled = append([]string(nil), c.StudentsEnrolled...)
	return &c, nil
}

func (f *fakeRecordStore) ListResultRecords(ctx context.Context, filter models.ResultFilter) ([]models.ResultRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.ResultRecord
	for _, r := range f.results {
		if filter.Matches(r) {
			r.Schema = r.Schema.Clone()
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StudentID < out[j].StudentID })
	return out, nil
}

func (f *fakeRecordStore) UpsertResultRecords(ctx context.Context, records []models.ResultRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.upsertResultCalls++
	if f.upsertResultErr != nil {
		return f.upsertResultErr
	}
	for _, r := range records {
		r.Schema = r.Schema.Clone()
		f.results[r.CourseID+"/"+r.StudentID] = r
	}
	return nil
}

func (f *fakeRecordStore) ListAttendanceEntries(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.AttendanceEntry
	for _, e := range f.attendance {
		if filter.Matches(e) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date < out[j].Date
		}
		return out[i].StudentID < out[j].StudentID
	})
	return out, nil
}

func (f *fakeRecordStore) UpsertAttendanceEntries(ctx context.Context, entries []models.AttendanceEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.upsertAttendErr != nil {
		return f.upsertAttendErr
	}
	for _, e := range entries {
		f.attendance[e.Key()] = e
	}
	return nil
}
