package dto

import "github.com/noah-isme/academic-records-api/internal/models"

// AttendanceDayResult reports one marked day for a course.
type AttendanceDayResult struct {
	CourseID string                   `json:"course_id"`
	Date     string                   `json:"date"`
	Present  int                      `json:"present"`
	Absent   int                      `json:"absent"`
	Entries  []models.AttendanceEntry `json:"entries"`
}

// AttendanceRoster lists per-student summaries for a course.
type AttendanceRoster struct {
	CourseID string                     `json:"course_id"`
	Students []models.AttendanceSummary `json:"students"`
}
