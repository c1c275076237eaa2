package student

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/schoolcrm/core"
)

var (
	// errors
	ErrNotFound        = errors.New("student not found")
	ErrStudentIDExists = errors.New("a student with this student_id already exists")
)

type (
	// Repository covers the Student operations that do not touch a Class roster.
	// Enrollment, transfer & deletion go through the enrollment.Manager.
	Repository interface {
		// GetStudent finds a Student by its store ID, with the assigned Class name populated.
		GetStudent(ctx context.Context, id string) (Student, error)
		// QueryStudents does a case-insensitive match of QueryFilter.Search on Student.Name.
		QueryStudents(ctx context.Context, filter QueryFilter) ([]Student, int, error)
		// UpdateStudent persists the non-class fields of a Student.
		UpdateStudent(ctx context.Context, s Student) (Student, error)
	}

	Service struct {
		repo     Repository
		validate *validator.Validate
	}
)

func NewService(repo Repository, validate *validator.Validate) *Service {
	return &Service{repo: repo, validate: validate}
}

func (svc *Service) Get(ctx context.Context, id string) (Student, error) {
	return svc.repo.GetStudent(ctx, core.CleanString(id))
}

func (svc *Service) Query(ctx context.Context, filter QueryFilter) ([]Student, int, error) {
	filter.Clean()
	return svc.repo.QueryStudents(ctx, filter)
}

func (svc *Service) Update(ctx context.Context, id string, us UpdateStudent) (Student, error) {
	if err := us.Validate(svc.validate); err != nil {
		return Student{}, err
	}
	s, err := svc.repo.GetStudent(ctx, core.CleanString(id))
	if err != nil {
		return Student{}, err
	}
	s.Name = us.Name
	s.Gender = us.Gender
	s.DOB = us.DOB
	s.ContactDetails = us.ContactDetails
	s.UpdatedAt = time.Now().UTC()
	s, err = svc.repo.UpdateStudent(ctx, s)
	if err != nil {
		return Student{}, errors.Wrap(err, "updating student")
	}
	return s, nil
}
