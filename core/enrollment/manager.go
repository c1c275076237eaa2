package enrollment

import (
	"context"
	"fmt"
	"net/mail"
	"sort"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/schoolcrm/core"
	"github.com/trezcool/schoolcrm/core/class"
	"github.com/trezcool/schoolcrm/core/student"
)

const confirmationTemplate = "enrollment_confirmation"

// Manager keeps Class rosters & Student class assignments consistent:
// a roster never exceeds its Class capacity, and an enrolled Student is always listed by its Class.
type Manager struct {
	store      Store
	teachers   class.TeacherGetter
	locker     Locker
	validate   *validator.Validate
	translator ut.Translator
	mailer     core.EmailService
	logger     core.Logger
	notify     bool
}

func NewManager(
	store Store,
	teachers class.TeacherGetter,
	locker Locker,
	validate *validator.Validate,
	translator ut.Translator,
	mailer core.EmailService,
	logger core.Logger,
	notify bool,
) *Manager {
	return &Manager{
		store:      store,
		teachers:   teachers,
		locker:     locker,
		validate:   validate,
		translator: translator,
		mailer:     mailer,
		logger:     logger,
		notify:     notify,
	}
}

func (m *Manager) lock(ctx context.Context, classIDs ...string) (func(), error) {
	keys := make([]string, 0, len(classIDs))
	seen := make(map[string]bool, len(classIDs))
	for _, id := range classIDs {
		if !seen[id] {
			seen[id] = true
			keys = append(keys, classKey(id))
		}
	}
	sort.Strings(keys) // always acquire in the same order

	unlocks := make([]func(), 0, len(keys))
	release := func() {
		for i := len(unlocks) - 1; i >= 0; i-- {
			unlocks[i]()
		}
	}
	for _, key := range keys {
		unlock, err := m.locker.Lock(ctx, key)
		if err != nil {
			release()
			return nil, errors.Wrapf(err, "locking %s", key)
		}
		unlocks = append(unlocks, unlock)
	}
	return release, nil
}

// Enroll creates a Student and adds it to the roster of its assigned Class.
func (m *Manager) Enroll(ctx context.Context, ns student.NewStudent) (student.Student, error) {
	if err := ns.Validate(m.validate); err != nil {
		return student.Student{}, err
	}

	unlock, err := m.lock(ctx, ns.AssignedClass)
	if err != nil {
		return student.Student{}, err
	}
	defer unlock()

	c, err := m.store.GetClass(ctx, ns.AssignedClass, false)
	if err != nil {
		return student.Student{}, classFieldError(err, "assigned_class", "getting class")
	}
	if !c.HasSeat() {
		return student.Student{}, class.NewCapacityExceededError(c)
	}

	now := time.Now().UTC()
	s, err := m.store.EnrollStudent(ctx, student.Student{
		StudentID:      ns.StudentID,
		Name:           ns.Name,
		Gender:         ns.Gender,
		DOB:            ns.DOB,
		ContactDetails: ns.ContactDetails,
		AssignedClass:  student.ClassRef{ID: c.ID, Name: c.Name},
		CreatedAt:      now,
		UpdatedAt:      now,
	})
	if err != nil {
		if errors.Is(err, student.ErrStudentIDExists) {
			return student.Student{}, core.NewValidationError(err, core.FieldError{Field: "student_id", Error: err.Error()})
		}
		if class.IsRosterError(err, class.CapacityExceeded) {
			// the class filled up outside of our lock (eg: another instance without a shared Locker)
			m.logger.Warn("enrollment rejected by store capacity guard", map[string]interface{}{"class_id": c.ID})
			return student.Student{}, err
		}
		return student.Student{}, classFieldError(err, "assigned_class", "enrolling student")
	}

	if m.notify {
		m.sendConfirmation(s, c)
	}
	return s, nil
}

// SetClassCapacity changes the maximum number of Students of a Class.
// It cannot go below the number of Students already enrolled.
func (m *Manager) SetClassCapacity(ctx context.Context, classID string, sc class.SetCapacity) (class.Class, error) {
	if err := m.validate.Struct(sc); err != nil {
		return class.Class{}, err
	}
	return m.updateClass(ctx, core.CleanString(classID), func(c *class.Class) {
		c.MaxStudents = sc.MaxStudents
	})
}

// UpdateClass edits a Class. A capacity change is guarded like SetClassCapacity.
func (m *Manager) UpdateClass(ctx context.Context, classID string, uc class.UpdateClass) (class.Class, error) {
	if err := uc.Validate(m.validate); err != nil {
		return class.Class{}, err
	}
	tchr, err := class.ResolveTeacher(ctx, m.teachers, uc.Teacher)
	if err != nil {
		return class.Class{}, err
	}
	return m.updateClass(ctx, core.CleanString(classID), func(c *class.Class) {
		c.Name = uc.Name
		c.Year = uc.Year
		c.Teacher = tchr
		c.Fees = uc.Fees
		c.MaxStudents = uc.MaxStudents
	})
}

func (m *Manager) updateClass(ctx context.Context, classID string, apply func(c *class.Class)) (class.Class, error) {
	unlock, err := m.lock(ctx, classID)
	if err != nil {
		return class.Class{}, err
	}
	defer unlock()

	c, err := m.store.GetClass(ctx, classID, false)
	if err != nil {
		return class.Class{}, wrapStoreErr(err, "getting class")
	}
	apply(&c)
	if c.MaxStudents < c.Enrolled() {
		return class.Class{}, class.NewBelowEnrollmentError(c)
	}
	c.UpdatedAt = time.Now().UTC()

	c, err = m.store.UpdateClass(ctx, c)
	if err != nil {
		if isDomainErr(err) {
			return class.Class{}, err
		}
		return class.Class{}, class.TeacherFieldError(err, "updating class")
	}
	return c, nil
}

// TransferStudent moves a Student to another Class, if it has a free seat.
func (m *Manager) TransferStudent(ctx context.Context, studentID string, tr student.Transfer) (student.Student, error) {
	if err := tr.Validate(m.validate); err != nil {
		return student.Student{}, err
	}
	studentID = core.CleanString(studentID)

	s, err := m.store.GetStudent(ctx, studentID)
	if err != nil {
		return student.Student{}, wrapStoreErr(err, "getting student")
	}
	if s.AssignedClass.ID == tr.ToClass {
		return s, nil
	}

	unlock, err := m.lock(ctx, s.AssignedClass.ID, tr.ToClass)
	if err != nil {
		return student.Student{}, err
	}
	defer unlock()

	to, err := m.store.GetClass(ctx, tr.ToClass, false)
	if err != nil {
		return student.Student{}, classFieldError(err, "assigned_class", "getting class")
	}
	if !to.HasSeat() {
		return student.Student{}, class.NewCapacityExceededError(to)
	}

	s, err = m.store.TransferStudent(ctx, studentID, to.ID)
	if err != nil {
		return student.Student{}, classFieldError(err, "assigned_class", "transferring student")
	}
	return s, nil
}

// DeleteStudent deletes a Student and removes it from its Class roster.
func (m *Manager) DeleteStudent(ctx context.Context, studentID string) error {
	studentID = core.CleanString(studentID)
	s, err := m.store.GetStudent(ctx, studentID)
	if err != nil {
		return wrapStoreErr(err, "getting student")
	}

	unlock, err := m.lock(ctx, s.AssignedClass.ID)
	if err != nil {
		return err
	}
	defer unlock()

	return wrapStoreErr(m.store.DeleteStudent(ctx, studentID), "deleting student")
}

// DeleteClass deletes a Class which has no enrolled Students.
func (m *Manager) DeleteClass(ctx context.Context, classID string) error {
	classID = core.CleanString(classID)
	unlock, err := m.lock(ctx, classID)
	if err != nil {
		return err
	}
	defer unlock()

	c, err := m.store.GetClass(ctx, classID, false)
	if err != nil {
		return wrapStoreErr(err, "getting class")
	}
	if c.Enrolled() > 0 {
		return class.NewNotEmptyError(c)
	}
	return wrapStoreErr(m.store.DeleteClass(ctx, classID), "deleting class")
}

func (m *Manager) sendConfirmation(s student.Student, c class.Class) {
	if s.ContactDetails.Email == "" || m.mailer == nil {
		return
	}
	m.mailer.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: s.Name, Address: s.ContactDetails.Email}},
		Subject:      fmt.Sprintf("Enrollment in %s", c.Name),
		TemplateName: confirmationTemplate,
		TemplateData: map[string]interface{}{
			"StudentName": s.Name,
			"StudentID":   s.StudentID,
			"ClassName":   c.Name,
			"ClassYear":   c.Year,
		},
	})
}

// wrapStoreErr keeps domain errors as they are and wraps store failures.
func wrapStoreErr(err error, msg string) error {
	if err == nil || isDomainErr(err) {
		return err
	}
	return errors.Wrap(err, msg)
}

func isDomainErr(err error) bool {
	var rErr *class.RosterError
	return errors.As(err, &rErr) ||
		errors.Is(err, class.ErrNotFound) ||
		errors.Is(err, student.ErrNotFound) ||
		errors.Is(err, student.ErrStudentIDExists)
}

// classFieldError reports a missing Class referenced by an input field as a validation error.
func classFieldError(err error, field, msg string) error {
	if errors.Is(err, class.ErrNotFound) {
		return core.NewValidationError(err, core.FieldError{Field: field, Error: err.Error()})
	}
	return wrapStoreErr(err, msg)
}
