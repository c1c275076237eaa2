package class

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/schoolcrm/core"
)

type Class struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Year        int        `json:"year"`
	Teacher     TeacherRef `json:"teacher"`
	Fees        float64    `json:"fees"`
	MaxStudents int        `json:"max_students"`
	Students    []string   `json:"students"` // roster of Student IDs, in enrollment order
	CreatedAt   time.Time  `json:"created_at"` // UTC
	UpdatedAt   time.Time  `json:"updated_at"` // UTC

	// Roster is only populated on demand
	Roster []RosterEntry `json:"roster,omitempty"`
}

// TeacherRef is the Teacher assigned to a Class.
type TeacherRef struct {
	ID        string `json:"id"`
	TeacherID string `json:"teacher_id,omitempty"`
	Name      string `json:"name,omitempty"`
}

// RosterEntry is an enrolled Student.
type RosterEntry struct {
	ID             string              `json:"id"`
	StudentID      string              `json:"student_id"`
	Name           string              `json:"name"`
	Gender         string              `json:"gender"`
	DOB            core.Date           `json:"dob"`
	ContactDetails core.ContactDetails `json:"contact_details"`
}

func (c Class) Enrolled() int {
	return len(c.Students)
}

func (c Class) HasSeat() bool {
	return c.Enrolled() < c.MaxStudents
}

func (c Class) IsEnrolled(studentID string) bool {
	for _, id := range c.Students {
		if id == studentID {
			return true
		}
	}
	return false
}

// NewClass contains information needed to create a new Class.
type NewClass struct {
	Name        string  `json:"name" validate:"required,notblank"`
	Year        int     `json:"year" validate:"required,gte=1900,lte=2200"`
	Teacher     string  `json:"teacher" validate:"required,notblank"` // Teacher.TeacherID
	Fees        float64 `json:"fees" validate:"required,gt=0"`
	MaxStudents int     `json:"max_students" validate:"required,gte=1"`
}

func (nc *NewClass) Validate(validate *validator.Validate) error {
	nc.Name = core.CleanString(nc.Name)
	nc.Teacher = core.CleanString(nc.Teacher)
	return validate.Struct(nc)
}

// UpdateClass defines what information may be provided to modify an existing Class.
type UpdateClass NewClass

func (uc *UpdateClass) Validate(validate *validator.Validate) error {
	uc.Name = core.CleanString(uc.Name)
	uc.Teacher = core.CleanString(uc.Teacher)
	return validate.Struct(uc)
}

type SetCapacity struct {
	MaxStudents int `json:"max_students" validate:"required,gte=1"`
}

type QueryFilter struct {
	core.Page
}

func (qf *QueryFilter) Clean() {
	qf.Page.Clean()
}
