package enrollment_test

import (
	"context"
	"log"
	"os"
	"sync"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/schoolcrm/core"
	"github.com/trezcool/schoolcrm/core/class"
	"github.com/trezcool/schoolcrm/core/enrollment"
	"github.com/trezcool/schoolcrm/core/student"
	"github.com/trezcool/schoolcrm/core/teacher"
	emailsvc "github.com/trezcool/schoolcrm/services/email"
	locksvc "github.com/trezcool/schoolcrm/services/lock"
	logsvc "github.com/trezcool/schoolcrm/services/logger"
	inmemdb "github.com/trezcool/schoolcrm/storage/database/inmem"
	"github.com/trezcool/schoolcrm/tests/testutil"
)

// noLock lets every caller through, leaving the store as the only guard.
type noLock struct{}

func (noLock) Lock(context.Context, string) (func(), error) { return func() {}, nil }

type env struct {
	db       *inmemdb.DB
	store    enrollment.Store
	teachers teacher.Repository
	classes  class.Repository
	mailer   *emailsvc.ConsoleServiceMock
	mgr      *enrollment.Manager
	tchr     teacher.Teacher
}

func newEnv(t *testing.T, locker enrollment.Locker) *env {
	conf := &core.Config{Env: "TEST", AppName: "SchoolCRM", DefaultFromEmail: "noreply@school.test"}
	logger := logsvc.NewRollbarLogger(log.New(os.Stderr, "TEST : ", 0), conf)
	logger.Enable(false)
	validate, translator := core.NewValidator()

	db := inmemdb.NewDB()
	e := &env{
		db:       db,
		store:    inmemdb.NewEnrollmentStore(db),
		teachers: inmemdb.NewTeacherRepository(db),
		classes:  inmemdb.NewClassRepository(db),
		mailer:   emailsvc.NewConsoleServiceMock(conf, logger),
	}
	e.mgr = enrollment.NewManager(e.store, e.teachers, locker, validate, translator, e.mailer, logger, true)
	e.tchr = testutil.CreateTeacher(t, e.teachers, "TCH-001", "Ada Lovelace", 1500)
	return e
}

func (e *env) roster(t *testing.T, classID string) []string {
	c, err := e.classes.GetClass(context.Background(), classID, false)
	require.NoError(t, err)
	return c.Students
}

func TestManager_Enroll(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, locksvc.NewLocal())
	c := testutil.CreateClass(t, e.classes, "Grade 1", e.tchr, 100, 2)
	s1 := testutil.EnrollStudent(t, e.store, "STD-001", "John Doe", core.GenderMale, c)

	t.Run("last seat", func(t *testing.T) {
		s2, err := e.mgr.Enroll(ctx, testutil.NewStudent("STD-002", "Jane Doe", c.ID))
		require.NoError(t, err)
		assert.NotEmpty(t, s2.ID)
		assert.Equal(t, student.ClassRef{ID: c.ID, Name: "Grade 1"}, s2.AssignedClass)
		assert.Equal(t, []string{s1.ID, s2.ID}, e.roster(t, c.ID))
	})

	t.Run("class is full", func(t *testing.T) {
		_, err := e.mgr.Enroll(ctx, testutil.NewStudent("STD-003", "Jim Doe", c.ID))
		var rErr *class.RosterError
		require.True(t, errors.As(err, &rErr), "got %v", err)
		assert.Equal(t, class.CapacityExceeded, rErr.Kind)
		assert.Equal(t, 2, rErr.Enrolled)
		assert.Equal(t, 2, rErr.Max)
		assert.Len(t, e.roster(t, c.ID), 2)

		_, total, err := inmemdb.NewStudentRepository(e.db).QueryStudents(ctx, student.QueryFilter{Page: core.Page{Limit: 10}})
		require.NoError(t, err)
		assert.Equal(t, 2, total)
	})

	t.Run("confirmation email", func(t *testing.T) {
		sent := e.mailer.SentMessages()
		if assert.Len(t, sent, 1) {
			assert.Equal(t, "jane.doe@school.test", sent[0].To[0].Address)
			assert.Contains(t, sent[0].TextContent, "Grade 1")
		}
	})
}

func TestManager_Enroll_invalid(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, locksvc.NewLocal())
	c := testutil.CreateClass(t, e.classes, "Grade 2", e.tchr, 100, 5)
	testutil.EnrollStudent(t, e.store, "STD-001", "John Doe", core.GenderMale, c)

	noEmail := testutil.NewStudent("STD-010", "No Email", c.ID)
	noEmail.ContactDetails.Email = ""

	badGender := testutil.NewStudent("STD-011", "Bad Gender", c.ID)
	badGender.Gender = "unknown"

	tests := []struct {
		name  string
		input student.NewStudent
		field string
	}{
		{"missing email", noEmail, "contact_details.email"},
		{"invalid gender", badGender, "gender"},
		{"unknown class", testutil.NewStudent("STD-012", "Lost Student", "nope"), "assigned_class"},
		{"duplicate student_id", testutil.NewStudent("STD-001", "Twin Doe", c.ID), "student_id"},
	}
	students := inmemdb.NewStudentRepository(e.db)
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := e.mgr.Enroll(ctx, tc.input)
			require.Error(t, err)
			assert.Contains(t, fieldErrors(err), tc.field)

			_, total, err := students.QueryStudents(ctx, student.QueryFilter{Page: core.Page{Limit: 10}})
			require.NoError(t, err)
			assert.Equal(t, 1, total)
			assert.Len(t, e.roster(t, c.ID), 1)
		})
	}

	assert.Empty(t, e.mailer.SentMessages())
}

func TestManager_Enroll_concurrent(t *testing.T) {
	lockers := map[string]enrollment.Locker{
		"with lock":  locksvc.NewLocal(),
		"store only": noLock{},
	}
	for name, locker := range lockers {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			e := newEnv(t, locker)
			c := testutil.CreateClass(t, e.classes, "Grade 3", e.tchr, 100, 2)
			testutil.EnrollStudent(t, e.store, "STD-000", "First Student", core.GenderFemale, c)

			const n = 10
			var (
				wg        sync.WaitGroup
				mu        sync.Mutex
				succeeded int
				rejected  int
			)
			for i := 0; i < n; i++ {
				i := i
				wg.Add(1)
				go func() {
					defer wg.Done()
					_, err := e.mgr.Enroll(ctx, testutil.NewStudent("STD-10"+string(rune('0'+i)), "Racer", c.ID))
					mu.Lock()
					defer mu.Unlock()
					if err == nil {
						succeeded++
					} else if class.IsRosterError(err, class.CapacityExceeded) {
						rejected++
					}
				}()
			}
			wg.Wait()

			assert.Equal(t, 1, succeeded)
			assert.Equal(t, n-1, rejected)
			assert.Len(t, e.roster(t, c.ID), 2)
		})
	}
}

func TestManager_SetClassCapacity(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, locksvc.NewLocal())
	c := testutil.CreateClass(t, e.classes, "Grade 4", e.tchr, 100, 3)
	testutil.EnrollStudent(t, e.store, "STD-001", "John Doe", core.GenderMale, c)
	testutil.EnrollStudent(t, e.store, "STD-002", "Jane Doe", core.GenderFemale, c)

	_, err := e.mgr.SetClassCapacity(ctx, c.ID, class.SetCapacity{MaxStudents: 1})
	assert.True(t, class.IsRosterError(err, class.CapacityBelowEnrollment), "got %v", err)
	got, _ := e.classes.GetClass(ctx, c.ID, false)
	assert.Equal(t, 3, got.MaxStudents)

	updated, err := e.mgr.SetClassCapacity(ctx, c.ID, class.SetCapacity{MaxStudents: 2})
	require.NoError(t, err)
	assert.Equal(t, 2, updated.MaxStudents)

	_, err = e.mgr.SetClassCapacity(ctx, c.ID, class.SetCapacity{MaxStudents: 0})
	var vErrs validator.ValidationErrors
	assert.True(t, errors.As(err, &vErrs))

	_, err = e.mgr.SetClassCapacity(ctx, "nope", class.SetCapacity{MaxStudents: 2})
	assert.ErrorIs(t, err, class.ErrNotFound)
}

func TestManager_UpdateClass(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, locksvc.NewLocal())
	other := testutil.CreateTeacher(t, e.teachers, "TCH-002", "Grace Hopper", 1800)
	c := testutil.CreateClass(t, e.classes, "Grade 5", e.tchr, 100, 3)
	testutil.EnrollStudent(t, e.store, "STD-001", "John Doe", core.GenderMale, c)
	testutil.EnrollStudent(t, e.store, "STD-002", "Jane Doe", core.GenderFemale, c)

	input := class.UpdateClass{Name: " Grade 5B ", Year: 2025, Teacher: other.TeacherID, Fees: 120, MaxStudents: 2}
	updated, err := e.mgr.UpdateClass(ctx, c.ID, input)
	require.NoError(t, err)
	assert.Equal(t, "Grade 5B", updated.Name)
	assert.Equal(t, class.TeacherRef{ID: other.ID, TeacherID: "TCH-002", Name: "Grace Hopper"}, updated.Teacher)
	assert.Len(t, updated.Students, 2)

	input.MaxStudents = 1
	_, err = e.mgr.UpdateClass(ctx, c.ID, input)
	assert.True(t, class.IsRosterError(err, class.CapacityBelowEnrollment))

	input.MaxStudents = 3
	input.Teacher = "TCH-404"
	_, err = e.mgr.UpdateClass(ctx, c.ID, input)
	assert.Contains(t, fieldErrors(err), "teacher")
}

func TestManager_TransferStudent(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, locksvc.NewLocal())
	from := testutil.CreateClass(t, e.classes, "Grade 6A", e.tchr, 100, 3)
	to := testutil.CreateClass(t, e.classes, "Grade 6B", e.tchr, 100, 1)
	s1 := testutil.EnrollStudent(t, e.store, "STD-001", "John Doe", core.GenderMale, from)
	s2 := testutil.EnrollStudent(t, e.store, "STD-002", "Jane Doe", core.GenderFemale, from)

	moved, err := e.mgr.TransferStudent(ctx, s1.ID, student.Transfer{ToClass: to.ID})
	require.NoError(t, err)
	assert.Equal(t, student.ClassRef{ID: to.ID, Name: "Grade 6B"}, moved.AssignedClass)
	assert.Equal(t, []string{s2.ID}, e.roster(t, from.ID))
	assert.Equal(t, []string{s1.ID}, e.roster(t, to.ID))

	_, err = e.mgr.TransferStudent(ctx, s2.ID, student.Transfer{ToClass: to.ID})
	assert.True(t, class.IsRosterError(err, class.CapacityExceeded))
	assert.Equal(t, []string{s2.ID}, e.roster(t, from.ID))

	same, err := e.mgr.TransferStudent(ctx, s1.ID, student.Transfer{ToClass: to.ID})
	assert.NoError(t, err)
	assert.Equal(t, to.ID, same.AssignedClass.ID)

	_, err = e.mgr.TransferStudent(ctx, s2.ID, student.Transfer{ToClass: "nope"})
	assert.Contains(t, fieldErrors(err), "assigned_class")

	_, err = e.mgr.TransferStudent(ctx, "nope", student.Transfer{ToClass: to.ID})
	assert.ErrorIs(t, err, student.ErrNotFound)
}

func TestManager_DeleteStudent(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, locksvc.NewLocal())
	c := testutil.CreateClass(t, e.classes, "Grade 7", e.tchr, 100, 3)
	s1 := testutil.EnrollStudent(t, e.store, "STD-001", "John Doe", core.GenderMale, c)
	s2 := testutil.EnrollStudent(t, e.store, "STD-002", "Jane Doe", core.GenderFemale, c)

	require.NoError(t, e.mgr.DeleteStudent(ctx, s1.ID))
	assert.Equal(t, []string{s2.ID}, e.roster(t, c.ID))
	_, err := e.store.GetStudent(ctx, s1.ID)
	assert.ErrorIs(t, err, student.ErrNotFound)

	assert.ErrorIs(t, e.mgr.DeleteStudent(ctx, s1.ID), student.ErrNotFound)
}

func TestManager_DeleteClass(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, locksvc.NewLocal())
	c := testutil.CreateClass(t, e.classes, "Grade 8", e.tchr, 100, 3)
	s := testutil.EnrollStudent(t, e.store, "STD-001", "John Doe", core.GenderMale, c)

	err := e.mgr.DeleteClass(ctx, c.ID)
	var rErr *class.RosterError
	require.True(t, errors.As(err, &rErr))
	assert.Equal(t, class.NotEmpty, rErr.Kind)
	assert.Equal(t, 1, rErr.Enrolled)

	require.NoError(t, e.mgr.DeleteStudent(ctx, s.ID))
	require.NoError(t, e.mgr.DeleteClass(ctx, c.ID))
	assert.ErrorIs(t, e.mgr.DeleteClass(ctx, c.ID), class.ErrNotFound)
}

func TestManager_ImportRoster(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, locksvc.NewLocal())
	c := testutil.CreateClass(t, e.classes, "Grade 9", e.tchr, 100, 2)

	rows := []enrollment.ImportRow{
		{NewStudent: testutil.NewStudent("STD-001", "John Doe", "")},
		{NewStudent: testutil.NewStudent("STD-002", "", "")},
		{NewStudent: testutil.NewStudent("STD-003", "Jane Doe", "")},
		{NewStudent: testutil.NewStudent("STD-004", "Jim Doe", "")},
		{NewStudent: testutil.NewStudent("STD-005", "Joe Doe", "")},
	}

	report, err := e.mgr.ImportRoster(ctx, c.ID, rows)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Enrolled)
	assert.Equal(t, 3, report.Skipped)
	assert.True(t, report.CapacityReached)
	if assert.Len(t, report.Results, 4) {
		assert.Contains(t, report.Results[1].Errors, "name")
		assert.Equal(t, 3, report.Results[1].Row)
		assert.Equal(t, "STD-004", report.Results[3].StudentID)
		assert.Contains(t, report.Results[3].Errors, "assigned_class")
	}
	assert.Len(t, e.roster(t, c.ID), 2)

	_, err = e.mgr.ImportRoster(ctx, "nope", rows)
	assert.ErrorIs(t, err, class.ErrNotFound)
}

func TestManager_ImportRoster_unreadableDate(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, locksvc.NewLocal())
	c := testutil.CreateClass(t, e.classes, "Grade 9", e.tchr, 100, 5)

	badDOB := testutil.NewStudent("STD-002", "Jane Doe", "")
	badDOB.DOB = core.Date{}
	badName := testutil.NewStudent("STD-003", "", "")
	badName.DOB = core.Date{}
	rows := []enrollment.ImportRow{
		{NewStudent: testutil.NewStudent("STD-001", "John Doe", "")},
		{NewStudent: badDOB, Errors: map[string]string{"dob": `"32/13/2012" is not a date (expected YYYY-MM-DD)`}},
		{NewStudent: badName, Errors: map[string]string{"dob": `"soon" is not a date (expected YYYY-MM-DD)`}},
	}

	report, err := e.mgr.ImportRoster(ctx, c.ID, rows)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Enrolled)
	assert.Equal(t, 2, report.Skipped)
	if assert.Len(t, report.Results, 3) {
		assert.Equal(t, map[string]string{"dob": `"32/13/2012" is not a date (expected YYYY-MM-DD)`}, report.Results[1].Errors)
		assert.Equal(t, `"soon" is not a date (expected YYYY-MM-DD)`, report.Results[2].Errors["dob"])
		assert.Contains(t, report.Results[2].Errors, "name")
	}
	assert.Len(t, e.roster(t, c.ID), 1)
}

func fieldErrors(err error) map[string]string {
	var vErr *core.ValidationError
	if errors.As(err, &vErr) {
		return vErr.FieldErrors()
	}
	var vErrs validator.ValidationErrors
	if errors.As(err, &vErrs) {
		return core.TranslateValidationErrors(vErrs, core.NewTranslator())
	}
	return nil
}
