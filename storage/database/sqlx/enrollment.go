package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/schoolcrm/core/class"
	"github.com/trezcool/schoolcrm/core/enrollment"
	"github.com/trezcool/schoolcrm/core/student"
	"github.com/trezcool/schoolcrm/core/teacher"
)

// enrollmentStore locks the Class rows (SELECT ... FOR UPDATE) of every roster it changes,
// so capacity checks & writes run against a roster no other transaction can change.
type enrollmentStore struct {
	db *sqlx.DB
}

var _ enrollment.Store = (*enrollmentStore)(nil)

func NewEnrollmentStore(db *sqlx.DB) enrollment.Store {
	return &enrollmentStore{db: db}
}

type lockedClass struct {
	ID          string `db:"id"`
	MaxStudents int    `db:"max_students"`
	Enrolled    int    `db:"enrolled"`
}

func (lc lockedClass) rosterError(kind class.RosterErrorKind) error {
	return &class.RosterError{Kind: kind, ClassID: lc.ID, Enrolled: lc.Enrolled, Max: lc.MaxStudents}
}

// lockClasses locks Class rows in id order and counts their rosters.
func lockClasses(ctx context.Context, tx *sqlx.Tx, ids ...string) (map[string]lockedClass, error) {
	for _, id := range ids {
		if !isUUID(id) {
			return nil, class.ErrNotFound
		}
	}
	var locked []lockedClass
	if err := tx.SelectContext(ctx, &locked,
		`SELECT id, max_students, 0 AS enrolled FROM class WHERE id = ANY($1::uuid[]) ORDER BY id FOR UPDATE`,
		pq.Array(ids),
	); err != nil {
		return nil, errors.Wrap(err, "locking classes")
	}

	classes := make(map[string]lockedClass, len(locked))
	for _, lc := range locked {
		if err := tx.GetContext(ctx, &lc.Enrolled, `SELECT count(*) FROM student WHERE class_id = $1`, lc.ID); err != nil {
			return nil, errors.Wrap(err, "counting roster")
		}
		classes[lc.ID] = lc
	}
	for _, id := range ids {
		if _, ok := classes[id]; !ok {
			return nil, class.ErrNotFound
		}
	}
	return classes, nil
}

func (st *enrollmentStore) GetClass(ctx context.Context, id string, withRoster bool) (class.Class, error) {
	return getClass(ctx, st.db, id, withRoster)
}

func (st *enrollmentStore) GetStudent(ctx context.Context, id string) (student.Student, error) {
	return getStudent(ctx, st.db, id)
}

func (st *enrollmentStore) EnrollStudent(ctx context.Context, s student.Student) (student.Student, error) {
	s.ID = newID()
	err := withTx(ctx, st.db, func(tx *sqlx.Tx) error {
		classes, err := lockClasses(ctx, tx, s.AssignedClass.ID)
		if err != nil {
			return err
		}
		if c := classes[s.AssignedClass.ID]; c.Enrolled >= c.MaxStudents {
			return c.rosterError(class.CapacityExceeded)
		}

		q := `INSERT INTO student (id, student_id, name, gender, dob, phone, email, class_id, enrolled_at, created_at, updated_at)
			VALUES (:id, :student_id, :name, :gender, :dob, :phone, :email, :class_id, :enrolled_at, :created_at, :updated_at)`
		if _, err = tx.NamedExecContext(ctx, q, newStudentRow(s)); err != nil {
			if isPQError(err, uniqueViolation) {
				return student.ErrStudentIDExists
			}
			return errors.Wrap(err, "inserting student")
		}
		return nil
	})
	if err != nil {
		return student.Student{}, err
	}
	return getStudent(ctx, st.db, s.ID)
}

func (st *enrollmentStore) UpdateClass(ctx context.Context, c class.Class) (class.Class, error) {
	err := withTx(ctx, st.db, func(tx *sqlx.Tx) error {
		classes, err := lockClasses(ctx, tx, c.ID)
		if err != nil {
			return err
		}
		if cur := classes[c.ID]; c.MaxStudents < cur.Enrolled {
			cur.MaxStudents = c.MaxStudents
			return cur.rosterError(class.CapacityBelowEnrollment)
		}

		q := `UPDATE class SET name = :name, year = :year, teacher_id = :teacher_id, fees = :fees,
			max_students = :max_students, updated_at = :updated_at WHERE id = :id`
		if _, err = tx.NamedExecContext(ctx, q, newClassRow(c)); err != nil {
			if isPQError(err, foreignKeyViolation) {
				return teacher.ErrNotFound
			}
			return errors.Wrap(err, "updating class")
		}
		return nil
	})
	if err != nil {
		return class.Class{}, err
	}
	return getClass(ctx, st.db, c.ID, false)
}

func (st *enrollmentStore) TransferStudent(ctx context.Context, studentID, toClassID string) (student.Student, error) {
	if !isUUID(studentID) {
		return student.Student{}, student.ErrNotFound
	}
	err := withTx(ctx, st.db, func(tx *sqlx.Tx) error {
		var fromClassID string
		err := tx.GetContext(ctx, &fromClassID, `SELECT class_id FROM student WHERE id = $1 FOR UPDATE`, studentID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return student.ErrNotFound
			}
			return errors.Wrap(err, "selecting student")
		}
		if fromClassID == toClassID {
			return nil
		}

		classes, err := lockClasses(ctx, tx, fromClassID, toClassID)
		if err != nil {
			return err
		}
		if to := classes[toClassID]; to.Enrolled >= to.MaxStudents {
			return to.rosterError(class.CapacityExceeded)
		}

		now := time.Now().UTC()
		_, err = tx.ExecContext(ctx,
			`UPDATE student SET class_id = $1, enrolled_at = $2, updated_at = $2 WHERE id = $3`,
			toClassID, now, studentID,
		)
		return errors.Wrap(err, "moving student")
	})
	if err != nil {
		return student.Student{}, err
	}
	return getStudent(ctx, st.db, studentID)
}

// DeleteStudent removes the Student row, which is also its roster entry.
func (st *enrollmentStore) DeleteStudent(ctx context.Context, id string) error {
	if !isUUID(id) {
		return student.ErrNotFound
	}
	res, err := st.db.ExecContext(ctx, `DELETE FROM student WHERE id = $1`, id)
	if err != nil {
		return errors.Wrap(err, "deleting student")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return student.ErrNotFound
	}
	return nil
}

func (st *enrollmentStore) DeleteClass(ctx context.Context, id string) error {
	return withTx(ctx, st.db, func(tx *sqlx.Tx) error {
		classes, err := lockClasses(ctx, tx, id)
		if err != nil {
			return err
		}
		if c := classes[id]; c.Enrolled > 0 {
			return c.rosterError(class.NotEmpty)
		}
		_, err = tx.ExecContext(ctx, `DELETE FROM class WHERE id = $1`, id)
		return errors.Wrap(err, "deleting class")
	})
}
