package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/schoolcrm/core/student"
)

type studentRepository struct {
	db *DB
}

var _ student.Repository = (*studentRepository)(nil)

func NewStudentRepository(db *DB) student.Repository {
	return &studentRepository{db: db}
}

func (repo *studentRepository) GetStudent(_ context.Context, id string) (student.Student, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if s, ok := repo.db.student(id); ok {
		return s, nil
	}
	return student.Student{}, student.ErrNotFound
}

func (repo *studentRepository) QueryStudents(_ context.Context, filter student.QueryFilter) ([]student.Student, int, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	matches := make([]student.Student, 0)
	for id, s := range repo.db.students {
		if filter.Search == "" || contains(s.Name, filter.Search) {
			std, _ := repo.db.student(id)
			matches = append(matches, std)
		}
	}

	asc := filter.Ordering.Ascending
	sort.SliceStable(matches, func(i, j int) bool {
		a, b := matches[i], matches[j]
		switch filter.Ordering.Field {
		case "student_id":
			return lessString(a.StudentID, b.StudentID, asc)
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

func (repo *studentRepository) UpdateStudent(_ context.Context, s student.Student) (student.Student, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	orig, ok := repo.db.students[s.ID]
	if !ok {
		return student.Student{}, student.ErrNotFound
	}
	orig.Name = s.Name
	orig.Gender = s.Gender
	orig.DOB = s.DOB
	orig.ContactDetails = s.ContactDetails
	orig.UpdatedAt = s.UpdatedAt

	updated, _ := repo.db.student(s.ID)
	return updated, nil
}
