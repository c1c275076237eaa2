package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/schoolcrm/core"
	"github.com/trezcool/schoolcrm/core/class"
	"github.com/trezcool/schoolcrm/core/student"
)

const selectStudent = `SELECT s.id, s.student_id, s.name, s.gender, s.dob, s.phone, s.email,
	s.class_id, c.name AS class_name, s.enrolled_at, s.created_at, s.updated_at
	FROM student s JOIN class c ON c.id = s.class_id`

type studentRow struct {
	ID         string    `db:"id"`
	StudentID  string    `db:"student_id"`
	Name       string    `db:"name"`
	Gender     string    `db:"gender"`
	DOB        time.Time `db:"dob"`
	Phone      string    `db:"phone"`
	Email      string    `db:"email"`
	ClassID    string    `db:"class_id"`
	ClassName  string    `db:"class_name"`
	EnrolledAt time.Time `db:"enrolled_at"`
	CreatedAt  time.Time `db:"created_at"`
	UpdatedAt  time.Time `db:"updated_at"`
}

func newStudentRow(s student.Student) studentRow {
	return studentRow{
		ID:         s.ID,
		StudentID:  s.StudentID,
		Name:       s.Name,
		Gender:     s.Gender,
		DOB:        s.DOB.Time,
		Phone:      s.ContactDetails.Phone,
		Email:      s.ContactDetails.Email,
		ClassID:    s.AssignedClass.ID,
		EnrolledAt: s.CreatedAt,
		CreatedAt:  s.CreatedAt,
		UpdatedAt:  s.UpdatedAt,
	}
}

func (r studentRow) toStudent() student.Student {
	return student.Student{
		ID:             r.ID,
		StudentID:      r.StudentID,
		Name:           r.Name,
		Gender:         r.Gender,
		DOB:            toDate(r.DOB),
		ContactDetails: core.ContactDetails{Phone: r.Phone, Email: r.Email},
		AssignedClass:  student.ClassRef{ID: r.ClassID, Name: r.ClassName},
		CreatedAt:      utc(r.CreatedAt),
		UpdatedAt:      utc(r.UpdatedAt),
	}
}

func (r studentRow) toRosterEntry() class.RosterEntry {
	return class.RosterEntry{
		ID:             r.ID,
		StudentID:      r.StudentID,
		Name:           r.Name,
		Gender:         r.Gender,
		DOB:            toDate(r.DOB),
		ContactDetails: core.ContactDetails{Phone: r.Phone, Email: r.Email},
	}
}

func getStudent(ctx context.Context, q sqlx.QueryerContext, id string) (student.Student, error) {
	if !isUUID(id) {
		return student.Student{}, student.ErrNotFound
	}
	var row studentRow
	if err := sqlx.GetContext(ctx, q, &row, selectStudent+` WHERE s.id = $1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return student.Student{}, student.ErrNotFound
		}
		return student.Student{}, errors.Wrap(err, "selecting student")
	}
	return row.toStudent(), nil
}

type studentRepository struct {
	db *sqlx.DB
}

var _ student.Repository = (*studentRepository)(nil)

func NewStudentRepository(db *sqlx.DB) student.Repository {
	return &studentRepository{db: db}
}

func (repo *studentRepository) GetStudent(ctx context.Context, id string) (student.Student, error) {
	return getStudent(ctx, repo.db, id)
}

func (repo *studentRepository) QueryStudents(ctx context.Context, filter student.QueryFilter) ([]student.Student, int, error) {
	where := ` WHERE ($1 = '' OR s.name ILIKE $2)`
	args := []interface{}{filter.Search, likePattern(filter.Search)}

	var total int
	if err := repo.db.GetContext(ctx, &total, `SELECT count(*) FROM student s`+where, args...); err != nil {
		return nil, 0, errors.Wrap(err, "counting students")
	}

	// ordering fields are whitelisted by QueryFilter.Clean
	q := selectStudent + where + ` ORDER BY s.` + filter.Ordering.String() + `, s.id LIMIT $3 OFFSET $4`
	var rows []studentRow
	if err := repo.db.SelectContext(ctx, &rows, q, append(args, filter.Limit, filter.Offset())...); err != nil {
		return nil, 0, errors.Wrap(err, "selecting students")
	}
	students := make([]student.Student, 0, len(rows))
	for _, r := range rows {
		students = append(students, r.toStudent())
	}
	return students, total, nil
}

func (repo *studentRepository) UpdateStudent(ctx context.Context, s student.Student) (student.Student, error) {
	q := `UPDATE student SET name = :name, gender = :gender, dob = :dob, phone = :phone, email = :email,
		updated_at = :updated_at WHERE id = :id`
	res, err := repo.db.NamedExecContext(ctx, q, newStudentRow(s))
	if err != nil {
		return student.Student{}, errors.Wrap(err, "updating student")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return student.Student{}, student.ErrNotFound
	}
	return getStudent(ctx, repo.db, s.ID)
}
