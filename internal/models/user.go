package models

// UserRole represents the four portal roles.
type UserRole string

const (
	RoleAdmin   UserRole = "admin"
	RoleTeacher UserRole = "teacher"
	RoleStudent UserRole = "student"
	RoleParent  UserRole = "parent"
)

// Valid returns true when the role is one of the supported values.
func (r UserRole) Valid() bool {
	switch r {
	case RoleAdmin, RoleTeacher, RoleStudent, RoleParent:
		return true
	default:
		return false
	}
}

// User represents a portal account. Parents carry the id of the student they follow.
type User struct {
	ID              string   `db:"id" json:"id" yaml:"id"`
	Username        string   `db:"username" json:"username" yaml:"username"`
	Name            string   `db:"name" json:"name" yaml:"name"`
	Email           string   `db:"email" json:"email,omitempty" yaml:"email"`
	Role            UserRole `db:"role" json:"role" yaml:"role"`
	LinkedStudentID string   `db:"linked_student_id" json:"linked_student_id,omitempty" yaml:"linked_student_id"`
}

// Actor is the identity performing an operation. It is passed explicitly into every
// service call instead of being read from ambient session state.
type Actor struct {
	UserID    string   `json:"user_id"`
	Role      UserRole `json:"role"`
	StudentID string   `json:"student_id,omitempty"`
}

// Valid reports whether the actor carries enough identity to act.
func (a Actor) Valid() bool {
	if a.UserID == "" || !a.Role.Valid() {
		return false
	}
	if a.Role == RoleParent && a.StudentID == "" {
		return false
	}
	return true
}
