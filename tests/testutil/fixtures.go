package testutil

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/trezcool/schoolcrm/core"
	"github.com/trezcool/schoolcrm/core/class"
	"github.com/trezcool/schoolcrm/core/enrollment"
	"github.com/trezcool/schoolcrm/core/student"
	"github.com/trezcool/schoolcrm/core/teacher"
)

func CreateTeacher(t *testing.T, repo teacher.Repository, teacherID, name string, salary float64, createdAt ...time.Time) teacher.Teacher {
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	tchr, err := repo.CreateTeacher(context.Background(), teacher.Teacher{
		TeacherID:      teacherID,
		Name:           name,
		Gender:         core.GenderFemale,
		DOB:            core.NewDate(1980, time.March, 14),
		ContactDetails: contacts(name),
		Salary:         salary,
		CreatedAt:      tstamp,
		UpdatedAt:      tstamp,
	})
	if err != nil {
		t.Fatalf("createTeacher() failed: %v", err)
	}
	return tchr
}

func CreateClass(t *testing.T, repo class.Repository, name string, tchr teacher.Teacher, fees float64, maxStudents int, createdAt ...time.Time) class.Class {
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	c, err := repo.CreateClass(context.Background(), class.Class{
		Name:        name,
		Year:        2024,
		Teacher:     class.TeacherRef{ID: tchr.ID, TeacherID: tchr.TeacherID, Name: tchr.Name},
		Fees:        fees,
		MaxStudents: maxStudents,
		Students:    []string{},
		CreatedAt:   tstamp,
		UpdatedAt:   tstamp,
	})
	if err != nil {
		t.Fatalf("createClass() failed: %v", err)
	}
	return c
}

// EnrollStudent writes a Student straight through the store, bypassing the Manager checks.
func EnrollStudent(t *testing.T, store enrollment.Store, studentID, name, gender string, c class.Class) student.Student {
	tstamp := time.Now().UTC()
	s, err := store.EnrollStudent(context.Background(), student.Student{
		StudentID:      studentID,
		Name:           name,
		Gender:         gender,
		DOB:            core.NewDate(2012, time.June, 1),
		ContactDetails: contacts(name),
		AssignedClass:  student.ClassRef{ID: c.ID},
		CreatedAt:      tstamp,
		UpdatedAt:      tstamp,
	})
	if err != nil {
		t.Fatalf("enrollStudent() failed: %v", err)
	}
	return s
}

// NewStudent returns a valid enrollment input for class `classID`.
func NewStudent(studentID, name, classID string) student.NewStudent {
	return student.NewStudent{
		StudentID:      studentID,
		Name:           name,
		Gender:         core.GenderMale,
		DOB:            core.NewDate(2012, time.June, 1),
		ContactDetails: contacts(name),
		AssignedClass:  classID,
	}
}

func contacts(name string) core.ContactDetails {
	return core.ContactDetails{
		Phone: "+243 810 000 000",
		Email: strings.ReplaceAll(strings.ToLower(name), " ", ".") + "@school.test",
	}
}
