package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/schoolcrm/core/teacher"
)

type teacherRepository struct {
	db *DB
}

var _ teacher.Repository = (*teacherRepository)(nil)

func NewTeacherRepository(db *DB) teacher.Repository {
	return &teacherRepository{db: db}
}

func (repo *teacherRepository) CreateTeacher(_ context.Context, t teacher.Teacher) (teacher.Teacher, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, exists := repo.db.teacherByKey(t.TeacherID); exists {
		return teacher.Teacher{}, teacher.ErrTeacherIDExists
	}
	t.ID = newID()
	repo.db.teachers[t.ID] = &t
	return t, nil
}

func (repo *teacherRepository) GetTeacher(_ context.Context, teacherID string) (teacher.Teacher, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if t, ok := repo.db.teacherByKey(teacherID); ok {
		return *t, nil
	}
	return teacher.Teacher{}, teacher.ErrNotFound
}

func (repo *teacherRepository) QueryTeachers(_ context.Context, filter teacher.QueryFilter) ([]teacher.Teacher, int, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	matches := make([]teacher.Teacher, 0)
	for _, t := range repo.db.teachers {
		if filter.Search == "" || contains(t.Name, filter.Search) {
			matches = append(matches, *t)
		}
	}

	asc := filter.Ordering.Ascending
	sort.SliceStable(matches, func(i, j int) bool {
		a, b := matches[i], matches[j]
		switch filter.Ordering.Field {
		case "teacher_id":
			return lessString(a.TeacherID, b.TeacherID, asc)
		case "salary":
			return lessFloat(a.Salary, b.Salary, asc)
		case "dob":
			return lessTime(a.DOB.Time, b.DOB.Time, asc)
		case "created_at":
			return lessTime(a.CreatedAt, b.CreatedAt, asc)
		default:
			return lessString(a.Name, b.Name, asc)
		}
	})

	start, end := filter.Page.Slice(len(matches))
	return matches[start:end], len(matches), nil
}

func (repo *teacherRepository) AllTeachers(_ context.Context) ([]teacher.Teacher, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	teachers := make([]teacher.Teacher, 0, len(repo.db.teachers))
	for _, t := range repo.db.teachers {
		teachers = append(teachers, *t)
	}
	return teachers, nil
}

func (repo *teacherRepository) UpdateTeacher(_ context.Context, t teacher.Teacher) (teacher.Teacher, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	orig, ok := repo.db.teachers[t.ID]
	if !ok {
		return teacher.Teacher{}, teacher.ErrNotFound
	}
	orig.Name = t.Name
	orig.Gender = t.Gender
	orig.DOB = t.DOB
	orig.ContactDetails = t.ContactDetails
	orig.Salary = t.Salary
	orig.UpdatedAt = t.UpdatedAt
	return *orig, nil
}

func (repo *teacherRepository) DeleteTeacher(_ context.Context, teacherID string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	t, ok := repo.db.teacherByKey(teacherID)
	if !ok {
		return teacher.ErrNotFound
	}
	for _, c := range repo.db.classes {
		if c.Teacher.ID == t.ID {
			return teacher.ErrInUse
		}
	}
	delete(repo.db.teachers, t.ID)
	return nil
}
