package dto

import "time"

// StudentResult is one course result as seen by a student or parent.
type StudentResult struct {
	CourseID     string          `json:"course_id"`
	CourseName   string          `json:"course_name"`
	CourseCode   string          `json:"course_code"`
	OverallTotal float64         `json:"overall_total"`
	Grade        string          `json:"grade"`
	Categories   []CategoryScore `json:"categories"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// ResultRow is one student line of a course result sheet.
type ResultRow struct {
	StudentID    string          `json:"student_id"`
	StudentName  string          `json:"student_name"`
	Categories   []CategoryScore `json:"categories"`
	OverallTotal float64         `json:"overall_total"`
	Grade        string          `json:"grade"`
}

// CourseResultSheet is the teacher view of a saved course.
type CourseResultSheet struct {
	CourseID     string         `json:"course_id"`
	CourseName   string         `json:"course_name"`
	CourseCode   string         `json:"course_code"`
	Rows         []ResultRow    `json:"rows"`
	ClassAverage float64        `json:"class_average"`
	Distribution map[string]int `json:"distribution"`
}
