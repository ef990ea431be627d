package models

// AttendanceStatus represents the status for attendance entries.
type AttendanceStatus string

const (
	AttendanceStatusPresent AttendanceStatus = "present"
	AttendanceStatusAbsent  AttendanceStatus = "absent"
)

// Valid returns true when the status is a supported value.
func (s AttendanceStatus) Valid() bool {
	return s == AttendanceStatusPresent || s == AttendanceStatusAbsent
}

// AttendanceDateLayout is the ISO date layout used for entry dates.
const AttendanceDateLayout = "2006-01-02"

// AttendanceEntry is one presence event. (StudentID, CourseID, Date) is the natural key.
type AttendanceEntry struct {
	StudentID string           `db:"student_id" json:"student_id"`
	CourseID  string           `db:"course_id" json:"course_id"`
	Date      string           `db:"date" json:"date"`
	Status    AttendanceStatus `db:"status" json:"status"`
}

// Key returns the natural key of the entry.
func (e AttendanceEntry) Key() AttendanceKey {
	return AttendanceKey{StudentID: e.StudentID, CourseID: e.CourseID, Date: e.Date}
}

// AttendanceKey identifies a single attendance entry.
type AttendanceKey struct {
	StudentID string
	CourseID  string
	Date      string
}

// AttendanceFilter narrows an attendance listing. Empty fields match everything;
// From and To are inclusive ISO dates.
type AttendanceFilter struct {
	StudentID string `form:"student_id"`
	CourseID  string `form:"course_id"`
	From      string `form:"from"`
	To        string `form:"to"`
}

// Matches applies the filter to one entry. ISO dates compare correctly as strings.
func (f AttendanceFilter) Matches(e AttendanceEntry) bool {
	if f.StudentID != "" && e.StudentID != f.StudentID {
		return false
	}
	if f.CourseID != "" && e.CourseID != f.CourseID {
		return false
	}
	if f.From != "" && e.Date < f.From {
		return false
	}
	if f.To != "" && e.Date > f.To {
		return false
	}
	return true
}

// AttendanceSummary is derived on read from a set of entries.
type AttendanceSummary struct {
	StudentID    string `json:"student_id,omitempty"`
	CourseID     string `json:"course_id,omitempty"`
	Present      int    `json:"present"`
	Absent       int    `json:"absent"`
	Total        int    `json:"total"`
	Percentage   int    `json:"percentage"`
	GoodStanding bool   `json:"good_standing"`
}
