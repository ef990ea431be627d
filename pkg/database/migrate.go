package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// migrations run in order; every statement is idempotent.
var migrations = []struct {
	name string
	sql  string
}{
	{name: "001_users", sql: `
CREATE TABLE IF NOT EXISTS users (
    id TEXT PRIMARY KEY,
    username TEXT NOT NULL UNIQUE,
    name TEXT NOT NULL,
    email TEXT NOT NULL DEFAULT '',
    role TEXT NOT NULL,
    linked_student_id TEXT NOT NULL DEFAULT '',
    CONSTRAINT valid_role CHECK (role IN ('admin', 'teacher', 'student', 'parent'))
);`},
	{name: "002_courses", sql: `
CREATE TABLE IF NOT EXISTS courses (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    code TEXT NOT NULL,
    teacher_id TEXT NOT NULL DEFAULT '',
    students_enrolled TEXT[] NOT NULL DEFAULT '{}'
);`},
	{name: "003_result_records", sql: `
CREATE TABLE IF NOT EXISTS result_records (
    course_id TEXT NOT NULL,
    student_id TEXT NOT NULL,
    schema_snapshot JSONB NOT NULL,
    overall_total NUMERIC(6,2) NOT NULL DEFAULT 0,
    grade TEXT NOT NULL,
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    PRIMARY KEY (course_id, student_id)
);
CREATE INDEX IF NOT EXISTS idx_result_records_student ON result_records(student_id);`},
	{name: "004_attendance_entries", sql: `
CREATE TABLE IF NOT EXISTS attendance_entries (
    student_id TEXT NOT NULL,
    course_id TEXT NOT NULL,
    date DATE NOT NULL,
    status TEXT NOT NULL,
    PRIMARY KEY (student_id, course_id, date),
    CONSTRAINT valid_status CHECK (status IN ('present', 'absent'))
);
CREATE INDEX IF NOT EXISTS idx_attendance_entries_course ON attendance_entries(course_id, date);`},
}

// Migrate creates the record store tables when they do not exist yet.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	for _, m := range migrations {
		if _, err := db.ExecContext(ctx, m.sql); err != nil {
			return fmt.Errorf("migration %s: %w", m.name, err)
		}
	}
	return nil
}
