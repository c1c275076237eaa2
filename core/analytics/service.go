package analytics

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/schoolcrm/core"
	"github.com/trezcool/schoolcrm/core/class"
	"github.com/trezcool/schoolcrm/core/teacher"
)

type (
	GenderDistribution struct {
		Male   int `json:"male"`
		Female int `json:"female"`
		Other  int `json:"other"`
	}

	ClassAnalytics struct {
		Class              class.Class        `json:"class"`
		GenderDistribution GenderDistribution `json:"gender_distribution"`
	}

	ClassSummary struct {
		ClassID          string  `json:"class_id"`
		ClassName        string  `json:"class_name"`
		Year             int     `json:"year"`
		Teacher          string  `json:"teacher"`
		NumberOfStudents int     `json:"number_of_students"`
		MaxStudents      int     `json:"max_students"`
		TotalFees        float64 `json:"total_fees"`
	}

	Financials struct {
		Income   float64 `json:"income"`   // fees of all enrolled students
		Expenses float64 `json:"expenses"` // salaries of all teachers
		Balance  float64 `json:"balance"`
	}

	ClassRepository interface {
		GetClass(ctx context.Context, id string, withRoster bool) (class.Class, error)
		AllClasses(ctx context.Context) ([]class.Class, error)
	}

	TeacherRepository interface {
		AllTeachers(ctx context.Context) ([]teacher.Teacher, error)
	}

	Service struct {
		classes  ClassRepository
		teachers TeacherRepository
	}
)

func NewService(classes ClassRepository, teachers TeacherRepository) *Service {
	return &Service{classes: classes, teachers: teachers}
}

// Class returns a Class with its roster and the gender distribution of its Students.
func (svc *Service) Class(ctx context.Context, classID string) (ClassAnalytics, error) {
	c, err := svc.classes.GetClass(ctx, core.CleanString(classID), true)
	if err != nil {
		return ClassAnalytics{}, err
	}
	var dist GenderDistribution
	for _, s := range c.Roster {
		switch s.Gender {
		case core.GenderMale:
			dist.Male++
		case core.GenderFemale:
			dist.Female++
		default:
			dist.Other++
		}
	}
	return ClassAnalytics{Class: c, GenderDistribution: dist}, nil
}

// Classes summarizes the head-count and fees of every Class.
func (svc *Service) Classes(ctx context.Context) ([]ClassSummary, error) {
	classes, err := svc.classes.AllClasses(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "listing classes")
	}
	summaries := make([]ClassSummary, 0, len(classes))
	for _, c := range classes {
		summaries = append(summaries, ClassSummary{
			ClassID:          c.ID,
			ClassName:        c.Name,
			Year:             c.Year,
			Teacher:          c.Teacher.Name,
			NumberOfStudents: c.Enrolled(),
			MaxStudents:      c.MaxStudents,
			TotalFees:        c.Fees * float64(c.Enrolled()),
		})
	}
	return summaries, nil
}

// Financials compares the fees of enrolled Students with the salaries of Teachers.
func (svc *Service) Financials(ctx context.Context) (Financials, error) {
	classes, err := svc.classes.AllClasses(ctx)
	if err != nil {
		return Financials{}, errors.Wrap(err, "listing classes")
	}
	teachers, err := svc.teachers.AllTeachers(ctx)
	if err != nil {
		return Financials{}, errors.Wrap(err, "listing teachers")
	}

	var fin Financials
	for _, c := range classes {
		fin.Income += c.Fees * float64(c.Enrolled())
	}
	for _, t := range teachers {
		fin.Expenses += t.Salary
	}
	fin.Balance = fin.Income - fin.Expenses
	return fin, nil
}
