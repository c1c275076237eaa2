package teacher

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/schoolcrm/core"
)

var (
	// errors
	ErrNotFound        = errors.New("teacher not found")
	ErrTeacherIDExists = errors.New("a teacher with this teacher_id already exists")
	ErrInUse           = errors.New("teacher is still assigned to a class")
)

type (
	Repository interface {
		CreateTeacher(ctx context.Context, t Teacher) (Teacher, error)
		// GetTeacher finds a Teacher by its business key.
		GetTeacher(ctx context.Context, teacherID string) (Teacher, error)
		// QueryTeachers does a case-insensitive match of QueryFilter.Search on Teacher.Name.
		// It returns the requested page and the total number of matches.
		QueryTeachers(ctx context.Context, filter QueryFilter) ([]Teacher, int, error)
		AllTeachers(ctx context.Context) ([]Teacher, error)
		UpdateTeacher(ctx context.Context, t Teacher) (Teacher, error)
		// DeleteTeacher fails with ErrInUse while a Class references the Teacher.
		DeleteTeacher(ctx context.Context, teacherID string) error
	}

	Service struct {
		repo     Repository
		validate *validator.Validate
	}
)

func NewService(repo Repository, validate *validator.Validate) *Service {
	return &Service{repo: repo, validate: validate}
}

func (svc *Service) Create(ctx context.Context, nt NewTeacher) (Teacher, error) {
	if err := nt.Validate(svc.validate); err != nil {
		return Teacher{}, err
	}
	now := time.Now().UTC()
	t, err := svc.repo.CreateTeacher(ctx, Teacher{
		TeacherID:      nt.TeacherID,
		Name:           nt.Name,
		Gender:         nt.Gender,
		DOB:            nt.DOB,
		ContactDetails: nt.ContactDetails,
		Salary:         nt.Salary,
		CreatedAt:      now,
		UpdatedAt:      now,
	})
	if err != nil {
		if errors.Is(err, ErrTeacherIDExists) {
			return Teacher{}, core.NewValidationError(err, core.FieldError{Field: "teacher_id", Error: err.Error()})
		}
		return Teacher{}, errors.Wrap(err, "creating teacher")
	}
	return t, nil
}

func (svc *Service) Get(ctx context.Context, teacherID string) (Teacher, error) {
	return svc.repo.GetTeacher(ctx, core.CleanString(teacherID))
}

func (svc *Service) Query(ctx context.Context, filter QueryFilter) ([]Teacher, int, error) {
	filter.Clean()
	return svc.repo.QueryTeachers(ctx, filter)
}

func (svc *Service) Update(ctx context.Context, teacherID string, ut UpdateTeacher) (Teacher, error) {
	if err := ut.Validate(svc.validate); err != nil {
		return Teacher{}, err
	}
	t, err := svc.repo.GetTeacher(ctx, core.CleanString(teacherID))
	if err != nil {
		return Teacher{}, err
	}
	t.Name = ut.Name
	t.Gender = ut.Gender
	t.DOB = ut.DOB
	t.ContactDetails = ut.ContactDetails
	t.Salary = ut.Salary
	t.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateTeacher(ctx, t)
}

func (svc *Service) Delete(ctx context.Context, teacherID string) error {
	return svc.repo.DeleteTeacher(ctx, core.CleanString(teacherID))
}
