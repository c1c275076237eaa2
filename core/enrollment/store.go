package enrollment

import (
	"context"

	"github.com/trezcool/schoolcrm/core/class"
	"github.com/trezcool/schoolcrm/core/student"
)

type (
	// Store is the persistence the Manager relies on.
	// Every write re-checks the roster capacity, so it stays consistent even without a Locker.
	Store interface {
		GetClass(ctx context.Context, id string, withRoster bool) (class.Class, error)
		GetStudent(ctx context.Context, id string) (student.Student, error)

		// EnrollStudent creates `s` and appends it to the roster of s.AssignedClass as one unit,
		// only if the roster is below MaxStudents.
		// It fails with a class.RosterError (CapacityExceeded), class.ErrNotFound or student.ErrStudentIDExists,
		// leaving no Student and no roster entry behind.
		EnrollStudent(ctx context.Context, s student.Student) (student.Student, error)

		// UpdateClass persists the editable fields of `c`, only if the current roster fits in c.MaxStudents.
		// It fails with a class.RosterError (CapacityBelowEnrollment) or class.ErrNotFound.
		UpdateClass(ctx context.Context, c class.Class) (class.Class, error)

		// TransferStudent moves a Student to the roster of another Class as one unit,
		// only if the target roster is below MaxStudents.
		TransferStudent(ctx context.Context, studentID, toClassID string) (student.Student, error)

		// DeleteStudent deletes a Student and its roster entry as one unit.
		DeleteStudent(ctx context.Context, id string) error

		// DeleteClass deletes a Class, only if its roster is empty.
		// It fails with a class.RosterError (NotEmpty) or class.ErrNotFound.
		DeleteClass(ctx context.Context, id string) error
	}

	// Locker serializes roster changes of a Class across requests.
	Locker interface {
		// Lock blocks until the lock on `key` is acquired or `ctx` is done.
		Lock(ctx context.Context, key string) (unlock func(), err error)
	}
)

func classKey(classID string) string {
	return "class:" + classID
}
