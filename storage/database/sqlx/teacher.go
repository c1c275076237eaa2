package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/schoolcrm/core"
	"github.com/trezcool/schoolcrm/core/teacher"
)

const teacherColumns = `id, teacher_id, name, gender, dob, phone, email, salary, created_at, updated_at`

type teacherRow struct {
	ID        string    `db:"id"`
	TeacherID string    `db:"teacher_id"`
	Name      string    `db:"name"`
	Gender    string    `db:"gender"`
	DOB       time.Time `db:"dob"`
	Phone     string    `db:"phone"`
	Email     string    `db:"email"`
	Salary    float64   `db:"salary"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

func newTeacherRow(t teacher.Teacher) teacherRow {
	return teacherRow{
		ID:        t.ID,
		TeacherID: t.TeacherID,
		Name:      t.Name,
		Gender:    t.Gender,
		DOB:       t.DOB.Time,
		Phone:     t.ContactDetails.Phone,
		Email:     t.ContactDetails.Email,
		Salary:    t.Salary,
		CreatedAt: t.CreatedAt,
		UpdatedAt: t.UpdatedAt,
	}
}

func (r teacherRow) toTeacher() teacher.Teacher {
	return teacher.Teacher{
		ID:             r.ID,
		TeacherID:      r.TeacherID,
		Name:           r.Name,
		Gender:         r.Gender,
		DOB:            toDate(r.DOB),
		ContactDetails: core.ContactDetails{Phone: r.Phone, Email: r.Email},
		Salary:         r.Salary,
		CreatedAt:      utc(r.CreatedAt),
		UpdatedAt:      utc(r.UpdatedAt),
	}
}

func toTeachers(rows []teacherRow) []teacher.Teacher {
	teachers := make([]teacher.Teacher, 0, len(rows))
	for _, r := range rows {
		teachers = append(teachers, r.toTeacher())
	}
	return teachers
}

type teacherRepository struct {
	db *sqlx.DB
}

var _ teacher.Repository = (*teacherRepository)(nil)

func NewTeacherRepository(db *sqlx.DB) teacher.Repository {
	return &teacherRepository{db: db}
}

func (repo *teacherRepository) CreateTeacher(ctx context.Context, t teacher.Teacher) (teacher.Teacher, error) {
	t.ID = newID()
	q := `INSERT INTO teacher (` + teacherColumns + `)
		VALUES (:id, :teacher_id, :name, :gender, :dob, :phone, :email, :salary, :created_at, :updated_at)`
	if _, err := repo.db.NamedExecContext(ctx, q, newTeacherRow(t)); err != nil {
		if isPQError(err, uniqueViolation) {
			return teacher.Teacher{}, teacher.ErrTeacherIDExists
		}
		return teacher.Teacher{}, errors.Wrap(err, "inserting teacher")
	}
	return t, nil
}

func (repo *teacherRepository) GetTeacher(ctx context.Context, teacherID string) (teacher.Teacher, error) {
	var row teacherRow
	err := repo.db.GetContext(ctx, &row, `SELECT `+teacherColumns+` FROM teacher WHERE teacher_id = $1`, teacherID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return teacher.Teacher{}, teacher.ErrNotFound
		}
		return teacher.Teacher{}, errors.Wrap(err, "selecting teacher")
	}
	return row.toTeacher(), nil
}

func (repo *teacherRepository) QueryTeachers(ctx context.Context, filter teacher.QueryFilter) ([]teacher.Teacher, int, error) {
	where := ` WHERE ($1 = '' OR name ILIKE $2)`
	args := []interface{}{filter.Search, likePattern(filter.Search)}

	var total int
	if err := repo.db.GetContext(ctx, &total, `SELECT count(*) FROM teacher`+where, args...); err != nil {
		return nil, 0, errors.Wrap(err, "counting teachers")
	}

	// ordering fields are whitelisted by QueryFilter.Clean
	q := `SELECT ` + teacherColumns + ` FROM teacher` + where +
		` ORDER BY ` + filter.Ordering.String() + `, id LIMIT $3 OFFSET $4`
	var rows []teacherRow
	if err := repo.db.SelectContext(ctx, &rows, q, append(args, filter.Limit, filter.Offset())...); err != nil {
		return nil, 0, errors.Wrap(err, "selecting teachers")
	}
	return toTeachers(rows), total, nil
}

func (repo *teacherRepository) AllTeachers(ctx context.Context) ([]teacher.Teacher, error) {
	var rows []teacherRow
	if err := repo.db.SelectContext(ctx, &rows, `SELECT `+teacherColumns+` FROM teacher ORDER BY name`); err != nil {
		return nil, errors.Wrap(err, "selecting teachers")
	}
	return toTeachers(rows), nil
}

func (repo *teacherRepository) UpdateTeacher(ctx context.Context, t teacher.Teacher) (teacher.Teacher, error) {
	q := `UPDATE teacher SET name = :name, gender = :gender, dob = :dob, phone = :phone, email = :email,
		salary = :salary, updated_at = :updated_at WHERE id = :id`
	res, err := repo.db.NamedExecContext(ctx, q, newTeacherRow(t))
	if err != nil {
		return teacher.Teacher{}, errors.Wrap(err, "updating teacher")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return teacher.Teacher{}, teacher.ErrNotFound
	}
	return t, nil
}

func (repo *teacherRepository) DeleteTeacher(ctx context.Context, teacherID string) error {
	res, err := repo.db.ExecContext(ctx, `DELETE FROM teacher WHERE teacher_id = $1`, teacherID)
	if err != nil {
		if isPQError(err, foreignKeyViolation) {
			return teacher.ErrInUse
		}
		return errors.Wrap(err, "deleting teacher")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return teacher.ErrNotFound
	}
	return nil
}
