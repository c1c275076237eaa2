package mongorepos

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/trezcool/schoolcrm/core/teacher"
)

type teacherDoc struct {
	ID             primitive.ObjectID `bson:"_id"`
	TeacherID      string             `bson:"teacher_id"`
	Name           string             `bson:"name"`
	Gender         string             `bson:"gender"`
	DOB            time.Time          `bson:"dob"`
	ContactDetails contactDoc         `bson:"contact_details"`
	Salary         float64            `bson:"salary"`
	CreatedAt      time.Time          `bson:"created_at"`
	UpdatedAt      time.Time          `bson:"updated_at"`
}

func newTeacherDoc(t teacher.Teacher, oid primitive.ObjectID) teacherDoc {
	return teacherDoc{
		ID:             oid,
		TeacherID:      t.TeacherID,
		Name:           t.Name,
		Gender:         t.Gender,
		DOB:            t.DOB.Time,
		ContactDetails: newContactDoc(t.ContactDetails),
		Salary:         t.Salary,
		CreatedAt:      t.CreatedAt,
		UpdatedAt:      t.UpdatedAt,
	}
}

func (d teacherDoc) toTeacher() teacher.Teacher {
	return teacher.Teacher{
		ID:             d.ID.Hex(),
		TeacherID:      d.TeacherID,
		Name:           d.Name,
		Gender:         d.Gender,
		DOB:            toDate(d.DOB),
		ContactDetails: d.ContactDetails.toContactDetails(),
		Salary:         d.Salary,
		CreatedAt:      d.CreatedAt.UTC(),
		UpdatedAt:      d.UpdatedAt.UTC(),
	}
}

type teacherRepository struct {
	db *mongo.Database
}

var _ teacher.Repository = (*teacherRepository)(nil)

func NewTeacherRepository(db *mongo.Database) teacher.Repository {
	return &teacherRepository{db: db}
}

func (repo *teacherRepository) coll() *mongo.Collection {
	return repo.db.Collection(teachersColl)
}

func (repo *teacherRepository) CreateTeacher(ctx context.Context, t teacher.Teacher) (teacher.Teacher, error) {
	doc := newTeacherDoc(t, primitive.NewObjectID())
	if _, err := repo.coll().InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return teacher.Teacher{}, teacher.ErrTeacherIDExists
		}
		return teacher.Teacher{}, errors.Wrap(err, "inserting teacher")
	}
	return doc.toTeacher(), nil
}

func (repo *teacherRepository) find(ctx context.Context, filter bson.D) (teacherDoc, error) {
	var doc teacherDoc
	if err := repo.coll().FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return teacherDoc{}, teacher.ErrNotFound
		}
		return teacherDoc{}, errors.Wrap(err, "finding teacher")
	}
	return doc, nil
}

func (repo *teacherRepository) GetTeacher(ctx context.Context, teacherID string) (teacher.Teacher, error) {
	doc, err := repo.find(ctx, bson.D{{Key: "teacher_id", Value: teacherID}})
	if err != nil {
		return teacher.Teacher{}, err
	}
	return doc.toTeacher(), nil
}

func (repo *teacherRepository) list(ctx context.Context, filter bson.D, opts *options.FindOptions) ([]teacher.Teacher, error) {
	cur, err := repo.coll().Find(ctx, filter, opts)
	if err != nil {
		return nil, errors.Wrap(err, "finding teachers")
	}
	var docs []teacherDoc
	if err = cur.All(ctx, &docs); err != nil {
		return nil, errors.Wrap(err, "decoding teachers")
	}
	teachers := make([]teacher.Teacher, 0, len(docs))
	for _, d := range docs {
		teachers = append(teachers, d.toTeacher())
	}
	return teachers, nil
}

func (repo *teacherRepository) QueryTeachers(ctx context.Context, filter teacher.QueryFilter) ([]teacher.Teacher, int, error) {
	match := nameFilter(filter.Search)
	total, err := repo.coll().CountDocuments(ctx, match)
	if err != nil {
		return nil, 0, errors.Wrap(err, "counting teachers")
	}
	opts := options.Find().
		SetSort(sortBy(filter.Ordering)).
		SetSkip(int64(filter.Offset())).
		SetLimit(int64(filter.Limit))
	teachers, err := repo.list(ctx, match, opts)
	return teachers, int(total), err
}

func (repo *teacherRepository) AllTeachers(ctx context.Context) ([]teacher.Teacher, error) {
	return repo.list(ctx, bson.D{}, options.Find().SetSort(bson.D{{Key: "name", Value: 1}}))
}

func (repo *teacherRepository) UpdateTeacher(ctx context.Context, t teacher.Teacher) (teacher.Teacher, error) {
	oid, ok := objectID(t.ID)
	if !ok {
		return teacher.Teacher{}, teacher.ErrNotFound
	}
	res, err := repo.coll().UpdateByID(ctx, oid, bson.D{{Key: "$set", Value: bson.D{
		{Key: "name", Value: t.Name},
		{Key: "gender", Value: t.Gender},
		{Key: "dob", Value: t.DOB.Time},
		{Key: "contact_details", Value: newContactDoc(t.ContactDetails)},
		{Key: "salary", Value: t.Salary},
		{Key: "updated_at", Value: t.UpdatedAt},
	}}})
	if err != nil {
		return teacher.Teacher{}, errors.Wrap(err, "updating teacher")
	}
	if res.MatchedCount == 0 {
		return teacher.Teacher{}, teacher.ErrNotFound
	}
	return t, nil
}

func (repo *teacherRepository) DeleteTeacher(ctx context.Context, teacherID string) error {
	doc, err := repo.find(ctx, bson.D{{Key: "teacher_id", Value: teacherID}})
	if err != nil {
		return err
	}
	n, err := repo.db.Collection(classesColl).CountDocuments(ctx, bson.D{{Key: "teacher", Value: doc.ID}})
	if err != nil {
		return errors.Wrap(err, "counting classes")
	}
	if n > 0 {
		return teacher.ErrInUse
	}
	if _, err = repo.coll().DeleteOne(ctx, bson.D{{Key: "_id", Value: doc.ID}}); err != nil {
		return errors.Wrap(err, "deleting teacher")
	}

	// a class may have been assigned the teacher between the count & the delete
	n, err = repo.db.Collection(classesColl).CountDocuments(ctx, bson.D{{Key: "teacher", Value: doc.ID}})
	if err == nil && n == 0 {
		return nil
	}
	undoCtx, cancel := detached(ctx)
	defer cancel()
	if _, insErr := repo.coll().InsertOne(undoCtx, doc); insErr != nil {
		return errors.Wrap(insErr, "restoring teacher")
	}
	if err != nil {
		return errors.Wrap(err, "counting classes")
	}
	return teacher.ErrInUse
}
