package class

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/schoolcrm/core"
	"github.com/trezcool/schoolcrm/core/teacher"
)

type (
	Repository interface {
		CreateClass(ctx context.Context, c Class) (Class, error)
		// GetClass finds a Class by its store ID, with its Teacher populated.
		// The Roster is only loaded when `withRoster` is set.
		GetClass(ctx context.Context, id string, withRoster bool) (Class, error)
		// QueryClasses returns the requested page, ordered by creation date, and the total number of classes.
		QueryClasses(ctx context.Context, filter QueryFilter) ([]Class, int, error)
		AllClasses(ctx context.Context) ([]Class, error)
	}

	// TeacherGetter resolves a Teacher by its business key.
	TeacherGetter interface {
		GetTeacher(ctx context.Context, teacherID string) (teacher.Teacher, error)
	}

	Service struct {
		repo     Repository
		teachers TeacherGetter
		validate *validator.Validate
	}
)

func NewService(repo Repository, teachers TeacherGetter, validate *validator.Validate) *Service {
	return &Service{repo: repo, teachers: teachers, validate: validate}
}

func (svc *Service) Create(ctx context.Context, nc NewClass) (Class, error) {
	if err := nc.Validate(svc.validate); err != nil {
		return Class{}, err
	}
	tchr, err := ResolveTeacher(ctx, svc.teachers, nc.Teacher)
	if err != nil {
		return Class{}, err
	}
	now := time.Now().UTC()
	c, err := svc.repo.CreateClass(ctx, Class{
		Name:        nc.Name,
		Year:        nc.Year,
		Teacher:     tchr,
		Fees:        nc.Fees,
		MaxStudents: nc.MaxStudents,
		Students:    []string{},
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		return Class{}, TeacherFieldError(err, "creating class")
	}
	return c, nil
}

func (svc *Service) Get(ctx context.Context, id string, withRoster bool) (Class, error) {
	return svc.repo.GetClass(ctx, core.CleanString(id), withRoster)
}

func (svc *Service) Query(ctx context.Context, filter QueryFilter) ([]Class, int, error) {
	filter.Clean()
	return svc.repo.QueryClasses(ctx, filter)
}

// ResolveTeacher looks up a Teacher by business key.
// A missing Teacher is reported as a validation error on the "teacher" field.
func ResolveTeacher(ctx context.Context, teachers TeacherGetter, teacherID string) (TeacherRef, error) {
	t, err := teachers.GetTeacher(ctx, teacherID)
	if err != nil {
		return TeacherRef{}, TeacherFieldError(err, "resolving teacher")
	}
	return TeacherRef{ID: t.ID, TeacherID: t.TeacherID, Name: t.Name}, nil
}

// TeacherFieldError reports a missing Teacher as a validation error on the "teacher" field,
// and wraps any other error with `msg`.
func TeacherFieldError(err error, msg string) error {
	if errors.Is(err, teacher.ErrNotFound) {
		return core.NewValidationError(err, core.FieldError{Field: "teacher", Error: err.Error()})
	}
	return errors.Wrap(err, msg)
}
