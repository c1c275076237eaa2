package teacher

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/schoolcrm/core"
)

// sortable fields
var orderingFields = []string{"name", "teacher_id", "salary", "dob", "created_at"}

type Teacher struct {
	ID             string              `json:"id"`
	TeacherID      string              `json:"teacher_id"`
	Name           string              `json:"name"`
	Gender         string              `json:"gender"`
	DOB            core.Date           `json:"dob"`
	ContactDetails core.ContactDetails `json:"contact_details"`
	Salary         float64             `json:"salary"`
	CreatedAt      time.Time           `json:"created_at"` // UTC
	UpdatedAt      time.Time           `json:"updated_at"` // UTC
}

// NewTeacher contains information needed to create a new Teacher.
type NewTeacher struct {
	TeacherID      string              `json:"teacher_id" validate:"required,notblank,max=32"`
	Name           string              `json:"name" validate:"required,notblank"`
	Gender         string              `json:"gender" validate:"required,oneof=male female other"`
	DOB            core.Date           `json:"dob" validate:"required,pastdate"`
	ContactDetails core.ContactDetails `json:"contact_details"`
	Salary         float64             `json:"salary" validate:"required,gt=0"`
}

func (nt *NewTeacher) Validate(validate *validator.Validate) error {
	nt.TeacherID = core.CleanString(nt.TeacherID)
	nt.Name = core.CleanString(nt.Name)
	nt.Gender = core.CleanString(nt.Gender, true /* lower */)
	nt.ContactDetails.Clean()
	return validate.Struct(nt)
}

// UpdateTeacher defines what information may be provided to modify an existing Teacher.
// The business key (TeacherID) cannot be changed.
type UpdateTeacher struct {
	Name           string              `json:"name" validate:"required,notblank"`
	Gender         string              `json:"gender" validate:"required,oneof=male female other"`
	DOB            core.Date           `json:"dob" validate:"required,pastdate"`
	ContactDetails core.ContactDetails `json:"contact_details"`
	Salary         float64             `json:"salary" validate:"required,gt=0"`
}

func (ut *UpdateTeacher) Validate(validate *validator.Validate) error {
	ut.Name = core.CleanString(ut.Name)
	ut.Gender = core.CleanString(ut.Gender, true /* lower */)
	ut.ContactDetails.Clean()
	return validate.Struct(ut)
}

type QueryFilter struct {
	Search string `query:"name"`
	Sort   string `query:"sort"`
	Order  string `query:"order"`
	core.Page

	Ordering core.DBOrdering `query:"-"`
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.Page.Clean()
	qf.Ordering = core.NewOrdering(qf.Sort, qf.Order, "name", orderingFields...)
}
