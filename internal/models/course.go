package models

// Course is owned by the admin screens; the engine only reads it for the enrollment list.
type Course struct {
	ID               string   `db:"id" json:"id" yaml:"id"`
	Name             string   `db:"name" json:"name" yaml:"name"`
	Code             string   `db:"code" json:"code" yaml:"code"`
	TeacherID        string   `db:"teacher_id" json:"teacher_id,omitempty" yaml:"teacher_id"`
	StudentsEnrolled []string `db:"-" json:"students_enrolled" yaml:"students_enrolled"`
}
