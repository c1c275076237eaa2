package class

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// errors
	ErrNotFound = errors.New("class not found")
)

type RosterErrorKind string

const (
	// CapacityExceeded: the roster is already at MaxStudents.
	CapacityExceeded RosterErrorKind = "capacity_exceeded"
	// CapacityBelowEnrollment: MaxStudents cannot go below the roster size.
	CapacityBelowEnrollment RosterErrorKind = "capacity_below_enrollment"
	// NotEmpty: a Class with enrolled Students cannot be deleted.
	NotEmpty RosterErrorKind = "class_not_empty"
)

// RosterError reports an operation rejected because of the state of a Class roster.
// No write has been performed when it is returned.
type RosterError struct {
	Kind     RosterErrorKind `json:"kind"`
	ClassID  string          `json:"class_id"`
	Enrolled int             `json:"enrolled"`
	Max      int             `json:"max_students"`
}

func (e *RosterError) Error() string {
	switch e.Kind {
	case CapacityExceeded:
		return fmt.Sprintf("class has reached the maximum number of students (%d/%d)", e.Enrolled, e.Max)
	case CapacityBelowEnrollment:
		return fmt.Sprintf("max students cannot be less than the current number of students (%d) enrolled", e.Enrolled)
	case NotEmpty:
		return fmt.Sprintf("class still has %d enrolled student(s)", e.Enrolled)
	default:
		return string(e.Kind)
	}
}

func NewCapacityExceededError(c Class) error {
	return &RosterError{Kind: CapacityExceeded, ClassID: c.ID, Enrolled: c.Enrolled(), Max: c.MaxStudents}
}

func NewBelowEnrollmentError(c Class) error {
	return &RosterError{Kind: CapacityBelowEnrollment, ClassID: c.ID, Enrolled: c.Enrolled(), Max: c.MaxStudents}
}

func NewNotEmptyError(c Class) error {
	return &RosterError{Kind: NotEmpty, ClassID: c.ID, Enrolled: c.Enrolled(), Max: c.MaxStudents}
}

// IsRosterError reports whether err is a RosterError of the given kind.
func IsRosterError(err error, kind RosterErrorKind) bool {
	var rErr *RosterError
	return errors.As(err, &rErr) && rErr.Kind == kind
}
