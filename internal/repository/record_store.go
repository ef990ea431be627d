package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/academic-records-api/internal/models"
)

// PostgresRecordStore persists users, courses, result records and attendance entries.
// Writes upsert on the natural keys.
type PostgresRecordStore struct {
	db *sqlx.DB
}

// NewPostgresRecordStore constructs the store.
func NewPostgresRecordStore(db *sqlx.DB) *PostgresRecordStore {
	return &PostgresRecordStore{db: db}
}

type courseRow struct {
	ID               string         `db:"id"`
	Name             string         `db:"name"`
	Code             string         `db:"code"`
	TeacherID        string         `db:"teacher_id"`
	StudentsEnrolled pq.StringArray `db:"students_enrolled"`
}

func (r courseRow) toModel() models.Course {
	enrolled := []string(r.StudentsEnrolled)
	if enrolled == nil {
		enrolled = []string{}
	}
	return models.Course{ID: r.ID, Name: r.Name, Code: r.Code, TeacherID: r.TeacherID, StudentsEnrolled: enrolled}
}

type resultRow struct {
	CourseID       string    `db:"course_id"`
	StudentID      string    `db:"student_id"`
	SchemaSnapshot []byte    `db:"schema_snapshot"`
	OverallTotal   float64   `db:"overall_total"`
	Grade          string    `db:"grade"`
	UpdatedAt      time.Time `db:"updated_at"`
}

const courseColumns = "id, name, code, teacher_id, students_enrolled"

// ListUsers returns every user ordered by id.
func (r *PostgresRecordStore) ListUsers(ctx context.Context) ([]models.User, error) {
	var users []models.User
	const query = `SELECT id, username, name, email, role, linked_student_id FROM users ORDER BY id`
	if err := r.db.SelectContext(ctx, &users, query); err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

// ListCourses returns every course ordered by id.
func (r *PostgresRecordStore) ListCourses(ctx context.Context) ([]models.Course, error) {
	var rows []courseRow
	query := "SELECT " + courseColumns + " FROM courses ORDER BY id"
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("list courses: %w", err)
	}
	courses := make([]models.Course, 0, len(rows))
	for _, row := range rows {
		courses = append(courses, row.toModel())
	}
	return courses, nil
}

// FindCourse returns a course or sql.ErrNoRows.
func (r *PostgresRecordStore) FindCourse(ctx context.Context, id string) (*models.Course, error) {
	var row courseRow
	query := "SELECT " + courseColumns + " FROM courses WHERE id = $1"
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find course %s: %w", id, err)
	}
	course := row.toModel()
	return &course, nil
}

// ListResultRecords returns records matching the filter ordered by course and student.
func (r *PostgresRecordStore) ListResultRecords(ctx context.Context, filter models.ResultFilter) ([]models.ResultRecord, error) {
	var conditions []string
	var args []interface{}
	if filter.CourseID != "" {
		conditions = append(conditions, fmt.Sprintf("course_id = $%d", len(args)+1))
		args = append(args, filter.CourseID)
	}
	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	query := "SELECT course_id, student_id, schema_snapshot, overall_total, grade, updated_at FROM result_records"
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY course_id, student_id"

	var rows []resultRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list result records: %w", err)
	}
	records := make([]models.ResultRecord, 0, len(rows))
	for _, row := range rows {
		var schema models.AssessmentSchema
		if err := json.Unmarshal(row.SchemaSnapshot, &schema); err != nil {
			return nil, fmt.Errorf("decode schema for %s/%s: %w", row.CourseID, row.StudentID, err)
		}
		records = append(records, models.ResultRecord{
			CourseID:     row.CourseID,
			StudentID:    row.StudentID,
			Schema:       schema.Clone(),
			OverallTotal: row.OverallTotal,
			Grade:        row.Grade,
			UpdatedAt:    row.UpdatedAt,
		})
	}
	return records, nil
}

// UpsertResultRecords replaces the records sharing (course_id, student_id) in a single
// transaction, so a batch is either fully written or not at all.
func (r *PostgresRecordStore) UpsertResultRecords(ctx context.Context, records []models.ResultRecord) error {
	if len(records) == 0 {
		return nil
	}
	rows := make([]resultRow, 0, len(records))
	for _, rec := range records {
		snapshot, err := json.Marshal(rec.Schema.Clone())
		if err != nil {
			return fmt.Errorf("encode schema for %s/%s: %w", rec.CourseID, rec.StudentID, err)
		}
		updatedAt := rec.UpdatedAt
		if updatedAt.IsZero() {
			updatedAt = time.Now().UTC()
		}
		rows = append(rows, resultRow{
			CourseID:       rec.CourseID,
			StudentID:      rec.StudentID,
			SchemaSnapshot: snapshot,
			OverallTotal:   rec.OverallTotal,
			Grade:          rec.Grade,
			UpdatedAt:      updatedAt,
		})
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin result records tx: %w", err)
	}
	const query = `INSERT INTO result_records (course_id, student_id, schema_snapshot, overall_total, grade, updated_at)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (course_id, student_id)
DO UPDATE SET schema_snapshot = EXCLUDED.schema_snapshot, overall_total = EXCLUDED.overall_total,
              grade = EXCLUDED.grade, updated_at = EXCLUDED.updated_at`
	for _, row := range rows {
		if _, err := tx.ExecContext(ctx, query, row.CourseID, row.StudentID, row.SchemaSnapshot, row.OverallTotal, row.Grade, row.UpdatedAt); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("upsert result record %s/%s: %w", row.CourseID, row.StudentID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit result records tx: %w", err)
	}
	return nil
}

// ListAttendanceEntries returns entries matching the filter ordered by date then student.
func (r *PostgresRecordStore) ListAttendanceEntries(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceEntry, error) {
	var conditions []string
	var args []interface{}
	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.CourseID != "" {
		conditions = append(conditions, fmt.Sprintf("course_id = $%d", len(args)+1))
		args = append(args, filter.CourseID)
	}
	if filter.From != "" {
		conditions = append(conditions, fmt.Sprintf("date >= $%d::date", len(args)+1))
		args = append(args, filter.From)
	}
	if filter.To != "" {
		conditions = append(conditions, fmt.Sprintf("date <= $%d::date", len(args)+1))
		args = append(args, filter.To)
	}
	query := "SELECT student_id, course_id, to_char(date, 'YYYY-MM-DD') AS date, status FROM attendance_entries"
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY date, course_id, student_id"

	var entries []models.AttendanceEntry
	if err := r.db.SelectContext(ctx, &entries, query, args...); err != nil {
		return nil, fmt.Errorf("list attendance entries: %w", err)
	}
	return entries, nil
}

const upsertAttendanceQuery = `INSERT INTO attendance_entries (student_id, course_id, date, status)
VALUES ($1, $2, $3::date, $4)
ON CONFLICT (student_id, course_id, date)
DO UPDATE SET status = EXCLUDED.status`

// UpsertAttendanceEntry replaces any entry sharing (student_id, course_id, date).
func (r *PostgresRecordStore) UpsertAttendanceEntry(ctx context.Context, entry models.AttendanceEntry) error {
	if _, err := r.db.ExecContext(ctx, upsertAttendanceQuery, entry.StudentID, entry.CourseID, entry.Date, entry.Status); err != nil {
		return fmt.Errorf("upsert attendance entry: %w", err)
	}
	return nil
}

// UpsertAttendanceEntries upserts a marked day in one transaction.
func (r *PostgresRecordStore) UpsertAttendanceEntries(ctx context.Context, entries []models.AttendanceEntry) error {
	if len(entries) == 0 {
		return nil
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin attendance tx: %w", err)
	}
	for _, entry := range entries {
		if _, err := tx.ExecContext(ctx, upsertAttendanceQuery, entry.StudentID, entry.CourseID, entry.Date, entry.Status); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("upsert attendance entry %s/%s/%s: %w", entry.StudentID, entry.CourseID, entry.Date, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit attendance tx: %w", err)
	}
	return nil
}

// UpsertUser creates or replaces a user by id.
func (r *PostgresRecordStore) UpsertUser(ctx context.Context, user models.User) error {
	const query = `INSERT INTO users (id, username, name, email, role, linked_student_id)
VALUES (:id, :username, :name, :email, :role, :linked_student_id)
ON CONFLICT (id)
DO UPDATE SET username = EXCLUDED.username, name = EXCLUDED.name, email = EXCLUDED.email,
              role = EXCLUDED.role, linked_student_id = EXCLUDED.linked_student_id`
	if _, err := r.db.NamedExecContext(ctx, query, user); err != nil {
		return fmt.Errorf("upsert user %s: %w", user.ID, err)
	}
	return nil
}

// UpsertCourse creates or replaces a course by id.
func (r *PostgresRecordStore) UpsertCourse(ctx context.Context, course models.Course) error {
	const query = `INSERT INTO courses (id, name, code, teacher_id, students_enrolled)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (id)
DO UPDATE SET name = EXCLUDED.name, code = EXCLUDED.code, teacher_id = EXCLUDED.teacher_id,
              students_enrolled = EXCLUDED.students_enrolled`
	enrolled := course.StudentsEnrolled
	if enrolled == nil {
		enrolled = []string{}
	}
	if _, err := r.db.ExecContext(ctx, query, course.ID, course.Name, course.Code, course.TeacherID, pq.Array(enrolled)); err != nil {
		return fmt.Errorf("upsert course %s: %w", course.ID, err)
	}
	return nil
}

// Ping checks connectivity for readiness probes.
func (r *PostgresRecordStore) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}
