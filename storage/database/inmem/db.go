package inmemdb

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/trezcool/schoolcrm/core/class"
	"github.com/trezcool/schoolcrm/core/student"
	"github.com/trezcool/schoolcrm/core/teacher"
)

// DB keeps every table behind a single mutex, so multi-record writes are atomic.
type DB struct {
	mutex    sync.RWMutex
	teachers map[string]*teacher.Teacher
	classes  map[string]*class.Class
	students map[string]*student.Student
}

func NewDB() *DB {
	return &DB{
		teachers: make(map[string]*teacher.Teacher),
		classes:  make(map[string]*class.Class),
		students: make(map[string]*student.Student),
	}
}

// Reset empties all tables.
func (db *DB) Reset() {
	db.mutex.Lock()
	defer db.mutex.Unlock()
	db.teachers = make(map[string]*teacher.Teacher)
	db.classes = make(map[string]*class.Class)
	db.students = make(map[string]*student.Student)
}

func newID() string {
	return uuid.NewString()
}

func contains(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

// readers below expect the mutex to be held

func (db *DB) teacherByKey(teacherID string) (*teacher.Teacher, bool) {
	for _, t := range db.teachers {
		if t.TeacherID == teacherID {
			return t, true
		}
	}
	return nil, false
}

func (db *DB) class(id string, withRoster bool) (class.Class, bool) {
	c, ok := db.classes[id]
	if !ok {
		return class.Class{}, false
	}
	cls := *c
	cls.Students = append(make([]string, 0, len(c.Students)), c.Students...)
	if t, ok := db.teachers[c.Teacher.ID]; ok {
		cls.Teacher = class.TeacherRef{ID: t.ID, TeacherID: t.TeacherID, Name: t.Name}
	}
	if withRoster {
		cls.Roster = make([]class.RosterEntry, 0, len(c.Students))
		for _, sid := range c.Students {
			if s, ok := db.students[sid]; ok {
				cls.Roster = append(cls.Roster, class.RosterEntry{
					ID:             s.ID,
					StudentID:      s.StudentID,
					Name:           s.Name,
					Gender:         s.Gender,
					DOB:            s.DOB,
					ContactDetails: s.ContactDetails,
				})
			}
		}
	}
	return cls, true
}

func (db *DB) student(id string) (student.Student, bool) {
	s, ok := db.students[id]
	if !ok {
		return student.Student{}, false
	}
	std := *s
	if c, ok := db.classes[s.AssignedClass.ID]; ok {
		std.AssignedClass.Name = c.Name
	}
	return std, true
}

func removeID(ids []string, id string) []string {
	out := ids[:0]
	for _, i := range ids {
		if i != id {
			out = append(out, i)
		}
	}
	return out
}

func lessTime(a, b time.Time, asc bool) bool {
	if asc {
		return a.Before(b)
	}
	return a.After(b)
}

func lessString(a, b string, asc bool) bool {
	if asc {
		return a < b
	}
	return a > b
}

func lessFloat(a, b float64, asc bool) bool {
	if asc {
		return a < b
	}
	return a > b
}
