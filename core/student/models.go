package student

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/schoolcrm/core"
)

// sortable fields
var orderingFields = []string{"name", "student_id", "dob", "created_at"}

type Student struct {
	ID             string              `json:"id"`
	StudentID      string              `json:"student_id"`
	Name           string              `json:"name"`
	Gender         string              `json:"gender"`
	DOB            core.Date           `json:"dob"`
	ContactDetails core.ContactDetails `json:"contact_details"`
	AssignedClass  ClassRef            `json:"assigned_class"`
	CreatedAt      time.Time           `json:"created_at"` // UTC
	UpdatedAt      time.Time           `json:"updated_at"` // UTC
}

// ClassRef is the Class a Student is enrolled in.
type ClassRef struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

// NewStudent contains information needed to enroll a new Student.
type NewStudent struct {
	StudentID      string              `json:"student_id" validate:"required,notblank,max=32"`
	Name           string              `json:"name" validate:"required,notblank"`
	Gender         string              `json:"gender" validate:"required,oneof=male female other"`
	DOB            core.Date           `json:"dob" validate:"required,pastdate"`
	ContactDetails core.ContactDetails `json:"contact_details"`
	AssignedClass  string              `json:"assigned_class" validate:"required,notblank"` // Class.ID
}

func (ns *NewStudent) Validate(validate *validator.Validate) error {
	ns.StudentID = core.CleanString(ns.StudentID)
	ns.Name = core.CleanString(ns.Name)
	ns.Gender = core.CleanString(ns.Gender, true /* lower */)
	ns.AssignedClass = core.CleanString(ns.AssignedClass)
	ns.ContactDetails.Clean()
	return validate.Struct(ns)
}

// UpdateStudent defines what information may be provided to modify an existing Student.
// Moving a Student to another Class is done with a Transfer.
type UpdateStudent struct {
	Name           string              `json:"name" validate:"required,notblank"`
	Gender         string              `json:"gender" validate:"required,oneof=male female other"`
	DOB            core.Date           `json:"dob" validate:"required,pastdate"`
	ContactDetails core.ContactDetails `json:"contact_details"`
}

func (us *UpdateStudent) Validate(validate *validator.Validate) error {
	us.Name = core.CleanString(us.Name)
	us.Gender = core.CleanString(us.Gender, true /* lower */)
	us.ContactDetails.Clean()
	return validate.Struct(us)
}

type Transfer struct {
	ToClass string `json:"assigned_class" validate:"required,notblank"` // Class.ID
}

func (tr *Transfer) Validate(validate *validator.Validate) error {
	tr.ToClass = core.CleanString(tr.ToClass)
	return validate.Struct(tr)
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
