// Package storetest checks that a storage backend honours the repository contracts.
package storetest

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/schoolcrm/core"
	"github.com/trezcool/schoolcrm/core/class"
	"github.com/trezcool/schoolcrm/core/enrollment"
	"github.com/trezcool/schoolcrm/core/student"
	"github.com/trezcool/schoolcrm/core/teacher"
	"github.com/trezcool/schoolcrm/tests/testutil"
)

type Repos struct {
	Teachers   teacher.Repository
	Classes    class.Repository
	Students   student.Repository
	Enrollment enrollment.Store
}

// Run runs every contract test. `setup` must return repositories over an empty database.
func Run(t *testing.T, setup func(t *testing.T) Repos) {
	tests := []struct {
		name string
		fn   func(t *testing.T, r Repos)
	}{
		{"Teachers", testTeachers},
		{"Classes", testClasses},
		{"EnrollStudent", testEnrollStudent},
		{"EnrollStudentConcurrently", testEnrollStudentConcurrently},
		{"Students", testStudents},
		{"UpdateClass", testUpdateClass},
		{"TransferStudent", testTransferStudent},
		{"DeleteStudent", testDeleteStudent},
		{"DeleteClass", testDeleteClass},
		{"ClassOfDeletedTeacher", testClassOfDeletedTeacher},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tc.fn(t, setup(t))
		})
	}
}

func isRosterErr(t *testing.T, err error, kind class.RosterErrorKind, enrolled, max int) {
	t.Helper()
	var rErr *class.RosterError
	if assert.True(t, errors.As(err, &rErr), "expected a RosterError, got: %v", err) {
		assert.Equal(t, kind, rErr.Kind)
		assert.Equal(t, enrolled, rErr.Enrolled)
		assert.Equal(t, max, rErr.Max)
	}
}

func testTeachers(t *testing.T, r Repos) {
	ctx := context.Background()
	now := time.Now().UTC()
	ada := testutil.CreateTeacher(t, r.Teachers, "TCH-001", "Ada Lovelace", 1500, now.Add(-time.Hour))
	testutil.CreateTeacher(t, r.Teachers, "TCH-002", "Grace Hopper", 2500, now.Add(-time.Minute))
	testutil.CreateTeacher(t, r.Teachers, "TCH-003", "Alan Turing", 2000, now)

	_, err := r.Teachers.CreateTeacher(ctx, teacher.Teacher{TeacherID: "TCH-001", Name: "Dup", DOB: core.NewDate(1990, 1, 1), Salary: 1})
	assert.ErrorIs(t, err, teacher.ErrTeacherIDExists)

	got, err := r.Teachers.GetTeacher(ctx, "TCH-001")
	require.NoError(t, err)
	assert.Equal(t, ada.ID, got.ID)
	assert.Equal(t, core.NewDate(1980, time.March, 14), got.DOB)
	assert.Equal(t, ada.ContactDetails, got.ContactDetails)

	_, err = r.Teachers.GetTeacher(ctx, "TCH-404")
	assert.ErrorIs(t, err, teacher.ErrNotFound)

	filter := teacher.QueryFilter{Search: "A", Sort: "salary", Order: "desc", Page: core.Page{Number: 1, Limit: 2}}
	filter.Clean()
	teachers, total, err := r.Teachers.QueryTeachers(ctx, filter)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	if assert.Len(t, teachers, 2) {
		assert.Equal(t, "TCH-002", teachers[0].TeacherID)
		assert.Equal(t, "TCH-003", teachers[1].TeacherID)
	}

	filter = teacher.QueryFilter{Search: "TURI"}
	filter.Clean()
	teachers, total, err = r.Teachers.QueryTeachers(ctx, filter)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, "Alan Turing", teachers[0].Name)

	filter = teacher.QueryFilter{Page: core.Page{Number: 922337203685477590}}
	filter.Clean()
	teachers, total, err = r.Teachers.QueryTeachers(ctx, filter)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Empty(t, teachers)

	ada.Name = "Ada King"
	ada.Salary = 1600
	_, err = r.Teachers.UpdateTeacher(ctx, ada)
	require.NoError(t, err)
	got, _ = r.Teachers.GetTeacher(ctx, "TCH-001")
	assert.Equal(t, "Ada King", got.Name)
	assert.Equal(t, 1600.0, got.Salary)

	all, err := r.Teachers.AllTeachers(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	testutil.CreateClass(t, r.Classes, "Grade 1", ada, 100, 2)
	assert.ErrorIs(t, r.Teachers.DeleteTeacher(ctx, "TCH-001"), teacher.ErrInUse)
	assert.NoError(t, r.Teachers.DeleteTeacher(ctx, "TCH-003"))
	assert.ErrorIs(t, r.Teachers.DeleteTeacher(ctx, "TCH-003"), teacher.ErrNotFound)
}

func testClasses(t *testing.T, r Repos) {
	ctx := context.Background()
	now := time.Now().UTC()
	tchr := testutil.CreateTeacher(t, r.Teachers, "TCH-001", "Ada Lovelace", 1500)
	c1 := testutil.CreateClass(t, r.Classes, "Grade 1", tchr, 100, 2, now.Add(-time.Hour))
	c2 := testutil.CreateClass(t, r.Classes, "Grade 2", tchr, 150, 3, now)
	s := testutil.EnrollStudent(t, r.Enrollment, "STD-001", "John Doe", core.GenderMale, c1)

	got, err := r.Classes.GetClass(ctx, c1.ID, false)
	require.NoError(t, err)
	assert.Equal(t, class.TeacherRef{ID: tchr.ID, TeacherID: "TCH-001", Name: "Ada Lovelace"}, got.Teacher)
	assert.Equal(t, []string{s.ID}, got.Students)
	assert.Nil(t, got.Roster)

	got, err = r.Classes.GetClass(ctx, c1.ID, true)
	require.NoError(t, err)
	if assert.Len(t, got.Roster, 1) {
		assert.Equal(t, "STD-001", got.Roster[0].StudentID)
		assert.Equal(t, core.GenderMale, got.Roster[0].Gender)
	}

	_, err = r.Classes.GetClass(ctx, "nope", false)
	assert.ErrorIs(t, err, class.ErrNotFound)

	classes, total, err := r.Classes.QueryClasses(ctx, class.QueryFilter{Page: core.Page{Number: 2, Limit: 1}})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	if assert.Len(t, classes, 1) {
		assert.Equal(t, c2.ID, classes[0].ID)
		assert.Empty(t, classes[0].Students)
	}

	all, err := r.Classes.AllClasses(ctx)
	require.NoError(t, err)
	if assert.Len(t, all, 2) {
		assert.Equal(t, c1.ID, all[0].ID)
		assert.Len(t, all[0].Students, 1)
		assert.Equal(t, "Ada Lovelace", all[1].Teacher.Name)
	}
}

func testEnrollStudent(t *testing.T, r Repos) {
	ctx := context.Background()
	tchr := testutil.CreateTeacher(t, r.Teachers, "TCH-001", "Ada Lovelace", 1500)
	c := testutil.CreateClass(t, r.Classes, "Grade 1", tchr, 100, 2)
	s1 := testutil.EnrollStudent(t, r.Enrollment, "STD-001", "John Doe", core.GenderMale, c)
	assert.Equal(t, c.ID, s1.AssignedClass.ID)

	dup := student.Student{StudentID: "STD-001", Name: "Twin", DOB: core.NewDate(2012, 1, 1), AssignedClass: student.ClassRef{ID: c.ID}}
	_, err := r.Enrollment.EnrollStudent(ctx, dup)
	assert.ErrorIs(t, err, student.ErrStudentIDExists)

	got, _ := r.Classes.GetClass(ctx, c.ID, false)
	assert.Equal(t, []string{s1.ID}, got.Students, "failed enrollment must not leave a roster entry")

	s2 := testutil.EnrollStudent(t, r.Enrollment, "STD-002", "Jane Doe", core.GenderFemale, c)
	_, err = r.Enrollment.EnrollStudent(ctx, student.Student{
		StudentID: "STD-003", Name: "Jim", DOB: core.NewDate(2012, 1, 1), AssignedClass: student.ClassRef{ID: c.ID},
	})
	isRosterErr(t, err, class.CapacityExceeded, 2, 2)

	got, _ = r.Classes.GetClass(ctx, c.ID, false)
	assert.Equal(t, []string{s1.ID, s2.ID}, got.Students)

	_, err = r.Enrollment.EnrollStudent(ctx, student.Student{StudentID: "STD-004", AssignedClass: student.ClassRef{ID: "nope"}})
	assert.ErrorIs(t, err, class.ErrNotFound)
}

func testEnrollStudentConcurrently(t *testing.T, r Repos) {
	ctx := context.Background()
	tchr := testutil.CreateTeacher(t, r.Teachers, "TCH-001", "Ada Lovelace", 1500)
	c := testutil.CreateClass(t, r.Classes, "Grade 1", tchr, 100, 3)
	testutil.EnrollStudent(t, r.Enrollment, "STD-000", "First", core.GenderMale, c)

	const n = 8
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		oks  int
		errs int
	)
	for i := 0; i < n; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := r.Enrollment.EnrollStudent(ctx, student.Student{
				StudentID:     fmt.Sprintf("STD-%03d", i+1),
				Name:          "Racer",
				Gender:        core.GenderOther,
				DOB:           core.NewDate(2012, 1, 1),
				AssignedClass: student.ClassRef{ID: c.ID},
			})
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				oks++
			} else if class.IsRosterError(err, class.CapacityExceeded) {
				errs++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 2, oks)
	assert.Equal(t, n-2, errs)
	got, _ := r.Classes.GetClass(ctx, c.ID, false)
	assert.Len(t, got.Students, 3)
}

func testStudents(t *testing.T, r Repos) {
	ctx := context.Background()
	tchr := testutil.CreateTeacher(t, r.Teachers, "TCH-001", "Ada Lovelace", 1500)
	c := testutil.CreateClass(t, r.Classes, "Grade 1", tchr, 100, 5)
	john := testutil.EnrollStudent(t, r.Enrollment, "STD-002", "John Doe", core.GenderMale, c)
	testutil.EnrollStudent(t, r.Enrollment, "STD-001", "Jane Doe", core.GenderFemale, c)
	testutil.EnrollStudent(t, r.Enrollment, "STD-003", "Alice Smith", core.GenderFemale, c)

	got, err := r.Students.GetStudent(ctx, john.ID)
	require.NoError(t, err)
	assert.Equal(t, student.ClassRef{ID: c.ID, Name: "Grade 1"}, got.AssignedClass)
	assert.Equal(t, core.NewDate(2012, time.June, 1), got.DOB)

	filter := student.QueryFilter{Search: "doe", Sort: "student_id", Page: core.Page{Limit: 10}}
	filter.Clean()
	students, total, err := r.Students.QueryStudents(ctx, filter)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	if assert.Len(t, students, 2) {
		assert.Equal(t, "STD-001", students[0].StudentID)
		assert.Equal(t, "Grade 1", students[0].AssignedClass.Name)
	}

	john.Name = "Johnny Doe"
	john.ContactDetails.Phone = "+1 555 0100"
	updated, err := r.Students.UpdateStudent(ctx, john)
	require.NoError(t, err)
	assert.Equal(t, "Johnny Doe", updated.Name)
	assert.Equal(t, c.ID, updated.AssignedClass.ID)

	_, err = r.Students.GetStudent(ctx, "nope")
	assert.ErrorIs(t, err, student.ErrNotFound)
}

func testUpdateClass(t *testing.T, r Repos) {
	ctx := context.Background()
	tchr := testutil.CreateTeacher(t, r.Teachers, "TCH-001", "Ada Lovelace", 1500)
	other := testutil.CreateTeacher(t, r.Teachers, "TCH-002", "Grace Hopper", 1500)
	c := testutil.CreateClass(t, r.Classes, "Grade 1", tchr, 100, 3)
	testutil.EnrollStudent(t, r.Enrollment, "STD-001", "John Doe", core.GenderMale, c)
	testutil.EnrollStudent(t, r.Enrollment, "STD-002", "Jane Doe", core.GenderFemale, c)

	c.MaxStudents = 1
	_, err := r.Enrollment.UpdateClass(ctx, c)
	isRosterErr(t, err, class.CapacityBelowEnrollment, 2, 1)
	got, _ := r.Classes.GetClass(ctx, c.ID, false)
	assert.Equal(t, 3, got.MaxStudents)

	c.MaxStudents = 2
	c.Name = "Grade 1B"
	c.Teacher = class.TeacherRef{ID: other.ID}
	updated, err := r.Enrollment.UpdateClass(ctx, c)
	require.NoError(t, err)
	assert.Equal(t, 2, updated.MaxStudents)
	assert.Equal(t, "Grade 1B", updated.Name)
	assert.Equal(t, "Grace Hopper", updated.Teacher.Name)
	assert.Len(t, updated.Students, 2)

	c.ID = "nope"
	_, err = r.Enrollment.UpdateClass(ctx, c)
	assert.ErrorIs(t, err, class.ErrNotFound)
}

func testTransferStudent(t *testing.T, r Repos) {
	ctx := context.Background()
	tchr := testutil.CreateTeacher(t, r.Teachers, "TCH-001", "Ada Lovelace", 1500)
	from := testutil.CreateClass(t, r.Classes, "Grade 1A", tchr, 100, 3)
	to := testutil.CreateClass(t, r.Classes, "Grade 1B", tchr, 100, 1)
	s1 := testutil.EnrollStudent(t, r.Enrollment, "STD-001", "John Doe", core.GenderMale, from)
	s2 := testutil.EnrollStudent(t, r.Enrollment, "STD-002", "Jane Doe", core.GenderFemale, from)

	moved, err := r.Enrollment.TransferStudent(ctx, s1.ID, to.ID)
	require.NoError(t, err)
	assert.Equal(t, student.ClassRef{ID: to.ID, Name: "Grade 1B"}, moved.AssignedClass)

	_, err = r.Enrollment.TransferStudent(ctx, s2.ID, to.ID)
	isRosterErr(t, err, class.CapacityExceeded, 1, 1)

	gotFrom, _ := r.Classes.GetClass(ctx, from.ID, false)
	gotTo, _ := r.Classes.GetClass(ctx, to.ID, false)
	assert.Equal(t, []string{s2.ID}, gotFrom.Students)
	assert.Equal(t, []string{s1.ID}, gotTo.Students)

	_, err = r.Enrollment.TransferStudent(ctx, "nope", to.ID)
	assert.ErrorIs(t, err, student.ErrNotFound)
	_, err = r.Enrollment.TransferStudent(ctx, s2.ID, "nope")
	assert.ErrorIs(t, err, class.ErrNotFound)
}

func testDeleteStudent(t *testing.T, r Repos) {
	ctx := context.Background()
	tchr := testutil.CreateTeacher(t, r.Teachers, "TCH-001", "Ada Lovelace", 1500)
	c := testutil.CreateClass(t, r.Classes, "Grade 1", tchr, 100, 3)
	s1 := testutil.EnrollStudent(t, r.Enrollment, "STD-001", "John Doe", core.GenderMale, c)
	s2 := testutil.EnrollStudent(t, r.Enrollment, "STD-002", "Jane Doe", core.GenderFemale, c)

	require.NoError(t, r.Enrollment.DeleteStudent(ctx, s1.ID))
	got, _ := r.Classes.GetClass(ctx, c.ID, true)
	assert.Equal(t, []string{s2.ID}, got.Students)
	assert.Len(t, got.Roster, 1)

	assert.ErrorIs(t, r.Enrollment.DeleteStudent(ctx, s1.ID), student.ErrNotFound)
	assert.ErrorIs(t, r.Enrollment.DeleteStudent(ctx, "nope"), student.ErrNotFound)
}

func testDeleteClass(t *testing.T, r Repos) {
	ctx := context.Background()
	tchr := testutil.CreateTeacher(t, r.Teachers, "TCH-001", "Ada Lovelace", 1500)
	c := testutil.CreateClass(t, r.Classes, "Grade 1", tchr, 100, 3)
	s := testutil.EnrollStudent(t, r.Enrollment, "STD-001", "John Doe", core.GenderMale, c)

	isRosterErr(t, r.Enrollment.DeleteClass(ctx, c.ID), class.NotEmpty, 1, 3)

	require.NoError(t, r.Enrollment.DeleteStudent(ctx, s.ID))
	require.NoError(t, r.Enrollment.DeleteClass(ctx, c.ID))
	assert.ErrorIs(t, r.Enrollment.DeleteClass(ctx, c.ID), class.ErrNotFound)
	assert.ErrorIs(t, r.Enrollment.DeleteClass(ctx, "nope"), class.ErrNotFound)
}

// testClassOfDeletedTeacher writes classes referencing a teacher resolved before its deletion.
func testClassOfDeletedTeacher(t *testing.T, r Repos) {
	ctx := context.Background()
	now := time.Now().UTC()
	gone := testutil.CreateTeacher(t, r.Teachers, "TCH-001", "Ada Lovelace", 1500)
	kept := testutil.CreateTeacher(t, r.Teachers, "TCH-002", "Grace Hopper", 2500)
	c := testutil.CreateClass(t, r.Classes, "Grade 1", kept, 100, 2)
	require.NoError(t, r.Teachers.DeleteTeacher(ctx, gone.TeacherID))

	staleRef := class.TeacherRef{ID: gone.ID, TeacherID: gone.TeacherID, Name: gone.Name}
	_, err := r.Classes.CreateClass(ctx, class.Class{
		Name: "Grade 2", Year: 2024, Teacher: staleRef, Fees: 100, MaxStudents: 2,
		Students: []string{}, CreatedAt: now, UpdatedAt: now,
	})
	assert.ErrorIs(t, err, teacher.ErrNotFound)

	upd := c
	upd.Teacher = staleRef
	upd.UpdatedAt = now
	_, err = r.Enrollment.UpdateClass(ctx, upd)
	assert.ErrorIs(t, err, teacher.ErrNotFound)

	all, err := r.Classes.AllClasses(ctx)
	require.NoError(t, err)
	if assert.Len(t, all, 1) {
		assert.Equal(t, c.ID, all[0].ID)
		assert.Equal(t, kept.ID, all[0].Teacher.ID)
	}
}
