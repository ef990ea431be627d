package models

import "time"

// CategoryName is one of the four fixed assessment buckets.
type CategoryName string

const (
	CategoryQuiz       CategoryName = "quiz"
	CategoryAssignment CategoryName = "assignment"
	CategoryMidterm    CategoryName = "midterm"
	CategoryFinal      CategoryName = "final"
)

// CategoryNames lists the categories in their canonical order.
var CategoryNames = []CategoryName{CategoryQuiz, CategoryAssignment, CategoryMidterm, CategoryFinal}

// Valid returns true when the category is one of the four buckets.
func (c CategoryName) Valid() bool {
	switch c {
	case CategoryQuiz, CategoryAssignment, CategoryMidterm, CategoryFinal:
		return true
	default:
		return false
	}
}

// AssessmentItem is one gradable unit inside a category. Scores are keyed by student id.
type AssessmentItem struct {
	ID           string             `json:"id"`
	Name         string             `json:"name"`
	ItemCapacity float64            `json:"item_capacity"`
	Considered   bool               `json:"considered"`
	Scores       map[string]float64 `json:"scores"`
}

// Category holds the marks capacity of a bucket and its ordered items.
type Category struct {
	Capacity float64          `json:"capacity"`
	Items    []AssessmentItem `json:"items"`
}

// AssessmentSchema is the course-level grading layout shared by every enrolled student.
type AssessmentSchema struct {
	Quiz       Category `json:"quiz"`
	Assignment Category `json:"assignment"`
	Midterm    Category `json:"midterm"`
	Final      Category `json:"final"`
}

// NewAssessmentSchema builds an empty schema with the given category capacities.
func NewAssessmentSchema(quiz, assignment, midterm, final float64) AssessmentSchema {
	return AssessmentSchema{
		Quiz:       Category{Capacity: quiz, Items: []AssessmentItem{}},
		Assignment: Category{Capacity: assignment, Items: []AssessmentItem{}},
		Midterm:    Category{Capacity: midterm, Items: []AssessmentItem{}},
		Final:      Category{Capacity: final, Items: []AssessmentItem{}},
	}
}

// Category returns the bucket for name, or nil for an unknown name.
func (s *AssessmentSchema) Category(name CategoryName) *Category {
	switch name {
	case CategoryQuiz:
		return &s.Quiz
	case CategoryAssignment:
		return &s.Assignment
	case CategoryMidterm:
		return &s.Midterm
	case CategoryFinal:
		return &s.Final
	default:
		return nil
	}
}

// FindItem locates an item by id across all categories.
func (s *AssessmentSchema) FindItem(id string) (CategoryName, *AssessmentItem, bool) {
	for _, name := range CategoryNames {
		cat := s.Category(name)
		for i := range cat.Items {
			if cat.Items[i].ID == id {
				return name, &cat.Items[i], true
			}
		}
	}
	return "", nil, false
}

// Clone returns a deep copy. Empty item lists and score maps are normalised to non-nil
// values so two clones of equal schemas always encode to the same bytes.
func (s AssessmentSchema) Clone() AssessmentSchema {
	return AssessmentSchema{
		Quiz:       s.Quiz.clone(),
		Assignment: s.Assignment.clone(),
		Midterm:    s.Midterm.clone(),
		Final:      s.Final.clone(),
	}
}

func (c Category) clone() Category {
	items := make([]AssessmentItem, len(c.Items))
	for i, item := range c.Items {
		scores := make(map[string]float64, len(item.Scores))
		for studentID, score := range item.Scores {
			scores[studentID] = score
		}
		item.Scores = scores
		items[i] = item
	}
	return Category{Capacity: c.Capacity, Items: items}
}

// ResultRecord is the persisted per-student snapshot of the course schema plus the
// derived total and grade. (CourseID, StudentID) is the natural key.
type ResultRecord struct {
	CourseID     string           `db:"course_id" json:"course_id"`
	StudentID    string           `db:"student_id" json:"student_id"`
	Schema       AssessmentSchema `db:"-" json:"schema"`
	OverallTotal float64          `db:"overall_total" json:"overall_total"`
	Grade        string           `db:"grade" json:"grade"`
	UpdatedAt    time.Time        `db:"updated_at" json:"updated_at"`
}

// ResultFilter narrows a result listing. Empty fields match everything.
type ResultFilter struct {
	CourseID  string
	StudentID string
}

// Matches applies the filter to one record.
func (f ResultFilter) Matches(r ResultRecord) bool {
	if f.CourseID != "" && r.CourseID != f.CourseID {
		return false
	}
	if f.StudentID != "" && r.StudentID != f.StudentID {
		return false
	}
	return true
}

// StudentTotal is a preview row computed from a working schema.
type StudentTotal struct {
	StudentID    string  `json:"student_id"`
	OverallTotal float64 `json:"overall_total"`
	Grade        string  `json:"grade"`
}
