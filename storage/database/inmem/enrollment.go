package inmemdb

import (
	"context"
	"time"

	"github.com/trezcool/schoolcrm/core/class"
	"github.com/trezcool/schoolcrm/core/enrollment"
	"github.com/trezcool/schoolcrm/core/student"
	"github.com/trezcool/schoolcrm/core/teacher"
)

type enrollmentStore struct {
	classRepository
	studentRepository
}

var _ enrollment.Store = (*enrollmentStore)(nil)

func NewEnrollmentStore(db *DB) enrollment.Store {
	return &enrollmentStore{
		classRepository:   classRepository{db: db},
		studentRepository: studentRepository{db: db},
	}
}

func (st *enrollmentStore) EnrollStudent(_ context.Context, s student.Student) (student.Student, error) {
	db := st.classRepository.db
	db.mutex.Lock()
	defer db.mutex.Unlock()

	c, ok := db.classes[s.AssignedClass.ID]
	if !ok {
		return student.Student{}, class.ErrNotFound
	}
	if !c.HasSeat() {
		return student.Student{}, class.NewCapacityExceededError(*c)
	}
	for _, other := range db.students {
		if other.StudentID == s.StudentID {
			return student.Student{}, student.ErrStudentIDExists
		}
	}

	s.ID = newID()
	s.AssignedClass = student.ClassRef{ID: c.ID}
	db.students[s.ID] = &s
	c.Students = append(c.Students, s.ID)

	enrolled, _ := db.student(s.ID)
	return enrolled, nil
}

func (st *enrollmentStore) UpdateClass(_ context.Context, c class.Class) (class.Class, error) {
	db := st.classRepository.db
	db.mutex.Lock()
	defer db.mutex.Unlock()

	orig, ok := db.classes[c.ID]
	if !ok {
		return class.Class{}, class.ErrNotFound
	}
	if c.MaxStudents < orig.Enrolled() {
		cur := *orig
		cur.MaxStudents = c.MaxStudents
		return class.Class{}, class.NewBelowEnrollmentError(cur)
	}
	if _, ok := db.teachers[c.Teacher.ID]; !ok {
		return class.Class{}, teacher.ErrNotFound
	}
	orig.Name = c.Name
	orig.Year = c.Year
	orig.Teacher = class.TeacherRef{ID: c.Teacher.ID}
	orig.Fees = c.Fees
	orig.MaxStudents = c.MaxStudents
	orig.UpdatedAt = c.UpdatedAt

	updated, _ := db.class(c.ID, false)
	return updated, nil
}

func (st *enrollmentStore) TransferStudent(_ context.Context, studentID, toClassID string) (student.Student, error) {
	db := st.classRepository.db
	db.mutex.Lock()
	defer db.mutex.Unlock()

	s, ok := db.students[studentID]
	if !ok {
		return student.Student{}, student.ErrNotFound
	}
	to, ok := db.classes[toClassID]
	if !ok {
		return student.Student{}, class.ErrNotFound
	}
	if s.AssignedClass.ID != to.ID {
		if !to.HasSeat() {
			return student.Student{}, class.NewCapacityExceededError(*to)
		}
		if from, ok := db.classes[s.AssignedClass.ID]; ok {
			from.Students = removeID(from.Students, s.ID)
		}
		to.Students = append(to.Students, s.ID)
		s.AssignedClass = student.ClassRef{ID: to.ID}
		s.UpdatedAt = time.Now().UTC()
	}

	transferred, _ := db.student(studentID)
	return transferred, nil
}

func (st *enrollmentStore) DeleteStudent(_ context.Context, id string) error {
	db := st.classRepository.db
	db.mutex.Lock()
	defer db.mutex.Unlock()

	s, ok := db.students[id]
	if !ok {
		return student.ErrNotFound
	}
	if c, ok := db.classes[s.AssignedClass.ID]; ok {
		c.Students = removeID(c.Students, s.ID)
	}
	delete(db.students, id)
	return nil
}

func (st *enrollmentStore) DeleteClass(_ context.Context, id string) error {
	db := st.classRepository.db
	db.mutex.Lock()
	defer db.mutex.Unlock()

	c, ok := db.classes[id]
	if !ok {
		return class.ErrNotFound
	}
	if c.Enrolled() > 0 {
		return class.NewNotEmptyError(*c)
	}
	delete(db.classes, id)
	return nil
}
