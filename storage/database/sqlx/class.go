package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/schoolcrm/core/class"
	"github.com/trezcool/schoolcrm/core/teacher"
)

const selectClass = `SELECT c.id, c.name, c.year, c.teacher_id, t.teacher_id AS teacher_key, t.name AS teacher_name,
	c.fees, c.max_students, c.created_at, c.updated_at
	FROM class c JOIN teacher t ON t.id = c.teacher_id`

type classRow struct {
	ID          string    `db:"id"`
	Name        string    `db:"name"`
	Year        int       `db:"year"`
	TeacherID   string    `db:"teacher_id"`
	TeacherKey  string    `db:"teacher_key"`
	TeacherName string    `db:"teacher_name"`
	Fees        float64   `db:"fees"`
	MaxStudents int       `db:"max_students"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

func newClassRow(c class.Class) classRow {
	return classRow{
		ID:          c.ID,
		Name:        c.Name,
		Year:        c.Year,
		TeacherID:   c.Teacher.ID,
		Fees:        c.Fees,
		MaxStudents: c.MaxStudents,
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
	}
}

func (r classRow) toClass(students []string) class.Class {
	if students == nil {
		students = []string{}
	}
	return class.Class{
		ID:          r.ID,
		Name:        r.Name,
		Year:        r.Year,
		Teacher:     class.TeacherRef{ID: r.TeacherID, TeacherID: r.TeacherKey, Name: r.TeacherName},
		Fees:        r.Fees,
		MaxStudents: r.MaxStudents,
		Students:    students,
		CreatedAt:   utc(r.CreatedAt),
		UpdatedAt:   utc(r.UpdatedAt),
	}
}

// rosterIDs returns the Student IDs of each Class, in enrollment order.
func rosterIDs(ctx context.Context, q sqlx.QueryerContext, classIDs ...string) (map[string][]string, error) {
	rows, err := q.QueryxContext(ctx,
		`SELECT class_id, id FROM student WHERE class_id = ANY($1::uuid[]) ORDER BY enrolled_at, id`,
		pq.Array(classIDs),
	)
	if err != nil {
		return nil, errors.Wrap(err, "selecting rosters")
	}
	defer func() { _ = rows.Close() }()

	rosters := make(map[string][]string, len(classIDs))
	for rows.Next() {
		var classID, studentID string
		if err = rows.Scan(&classID, &studentID); err != nil {
			return nil, errors.Wrap(err, "scanning roster")
		}
		rosters[classID] = append(rosters[classID], studentID)
	}
	return rosters, errors.Wrap(rows.Err(), "iterating rosters")
}

func getClass(ctx context.Context, q sqlx.QueryerContext, id string, withRoster bool) (class.Class, error) {
	if !isUUID(id) {
		return class.Class{}, class.ErrNotFound
	}
	var row classRow
	if err := sqlx.GetContext(ctx, q, &row, selectClass+` WHERE c.id = $1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return class.Class{}, class.ErrNotFound
		}
		return class.Class{}, errors.Wrap(err, "selecting class")
	}
	rosters, err := rosterIDs(ctx, q, id)
	if err != nil {
		return class.Class{}, err
	}
	c := row.toClass(rosters[id])

	if withRoster {
		var students []studentRow
		if err = sqlx.SelectContext(ctx, q, &students,
			selectStudent+` WHERE s.class_id = $1 ORDER BY s.enrolled_at, s.id`, id,
		); err != nil {
			return class.Class{}, errors.Wrap(err, "selecting roster")
		}
		c.Roster = make([]class.RosterEntry, 0, len(students))
		for _, s := range students {
			c.Roster = append(c.Roster, s.toRosterEntry())
		}
	}
	return c, nil
}

func toClasses(ctx context.Context, q sqlx.QueryerContext, rows []classRow) ([]class.Class, error) {
	ids := make([]string, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.ID)
	}
	rosters, err := rosterIDs(ctx, q, ids...)
	if err != nil {
		return nil, err
	}
	classes := make([]class.Class, 0, len(rows))
	for _, r := range rows {
		classes = append(classes, r.toClass(rosters[r.ID]))
	}
	return classes, nil
}

type classRepository struct {
	db *sqlx.DB
}

var _ class.Repository = (*classRepository)(nil)

func NewClassRepository(db *sqlx.DB) class.Repository {
	return &classRepository{db: db}
}

func (repo *classRepository) CreateClass(ctx context.Context, c class.Class) (class.Class, error) {
	c.ID = newID()
	q := `INSERT INTO class (id, name, year, teacher_id, fees, max_students, created_at, updated_at)
		VALUES (:id, :name, :year, :teacher_id, :fees, :max_students, :created_at, :updated_at)`
	if _, err := repo.db.NamedExecContext(ctx, q, newClassRow(c)); err != nil {
		if isPQError(err, foreignKeyViolation) {
			return class.Class{}, teacher.ErrNotFound
		}
		return class.Class{}, errors.Wrap(err, "inserting class")
	}
	c.Students = []string{}
	return c, nil
}

func (repo *classRepository) GetClass(ctx context.Context, id string, withRoster bool) (class.Class, error) {
	return getClass(ctx, repo.db, id, withRoster)
}

func (repo *classRepository) QueryClasses(ctx context.Context, filter class.QueryFilter) ([]class.Class, int, error) {
	var total int
	if err := repo.db.GetContext(ctx, &total, `SELECT count(*) FROM class`); err != nil {
		return nil, 0, errors.Wrap(err, "counting classes")
	}
	var rows []classRow
	if err := repo.db.SelectContext(ctx, &rows,
		selectClass+` ORDER BY c.created_at, c.id LIMIT $1 OFFSET $2`, filter.Limit, filter.Offset(),
	); err != nil {
		return nil, 0, errors.Wrap(err, "selecting classes")
	}
	classes, err := toClasses(ctx, repo.db, rows)
	return classes, total, err
}

func (repo *classRepository) AllClasses(ctx context.Context) ([]class.Class, error) {
	var rows []classRow
	if err := repo.db.SelectContext(ctx, &rows, selectClass+` ORDER BY c.created_at, c.id`); err != nil {
		return nil, errors.Wrap(err, "selecting classes")
	}
	return toClasses(ctx, repo.db, rows)
}
