package mongorepos

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/trezcool/schoolcrm/core/class"
	"github.com/trezcool/schoolcrm/core/student"
)

type studentDoc struct {
	ID             primitive.ObjectID `bson:"_id"`
	StudentID      string             `bson:"student_id"`
	Name           string             `bson:"name"`
	Gender         string             `bson:"gender"`
	DOB            time.Time          `bson:"dob"`
	ContactDetails contactDoc         `bson:"contact_details"`
	AssignedClass  primitive.ObjectID `bson:"assigned_class"`
	CreatedAt      time.Time          `bson:"created_at"`
	UpdatedAt      time.Time          `bson:"updated_at"`
}

func newStudentDoc(s student.Student, oid, classOID primitive.ObjectID) studentDoc {
	return studentDoc{
		ID:             oid,
		StudentID:      s.StudentID,
		Name:           s.Name,
		Gender:         s.Gender,
		DOB:            s.DOB.Time,
		ContactDetails: newContactDoc(s.ContactDetails),
		AssignedClass:  classOID,
		CreatedAt:      s.CreatedAt,
		UpdatedAt:      s.UpdatedAt,
	}
}

func (d studentDoc) toStudent() student.Student {
	return student.Student{
		ID:             d.ID.Hex(),
		StudentID:      d.StudentID,
		Name:           d.Name,
		Gender:         d.Gender,
		DOB:            toDate(d.DOB),
		ContactDetails: d.ContactDetails.toContactDetails(),
		AssignedClass:  student.ClassRef{ID: d.AssignedClass.Hex()},
		CreatedAt:      d.CreatedAt.UTC(),
		UpdatedAt:      d.UpdatedAt.UTC(),
	}
}

func (d studentDoc) toRosterEntry() class.RosterEntry {
	return class.RosterEntry{
		ID:             d.ID.Hex(),
		StudentID:      d.StudentID,
		Name:           d.Name,
		Gender:         d.Gender,
		DOB:            toDate(d.DOB),
		ContactDetails: d.ContactDetails.toContactDetails(),
	}
}

// studentView is a studentDoc joined with its class.
type studentView struct {
	studentDoc `bson:",inline"`
	Classes    []classDoc `bson:"class_docs"`
}

func (v studentView) toStudent() student.Student {
	s := v.studentDoc.toStudent()
	if len(v.Classes) > 0 {
		s.AssignedClass.Name = v.Classes[0].Name
	}
	return s
}

func aggregateStudents(ctx context.Context, db *mongo.Database, match bson.D, stages ...bson.D) ([]student.Student, error) {
	pipeline := mongo.Pipeline{{{Key: "$match", Value: match}}}
	pipeline = append(pipeline, stages...)
	pipeline = append(pipeline, lookupOne(classesColl, "assigned_class", "class_docs"))

	cur, err := db.Collection(studentsColl).Aggregate(ctx, pipeline)
	if err != nil {
		return nil, errors.Wrap(err, "aggregating students")
	}
	var views []studentView
	if err = cur.All(ctx, &views); err != nil {
		return nil, errors.Wrap(err, "decoding students")
	}
	students := make([]student.Student, 0, len(views))
	for _, v := range views {
		students = append(students, v.toStudent())
	}
	return students, nil
}

func getStudent(ctx context.Context, db *mongo.Database, id string) (student.Student, error) {
	oid, ok := objectID(id)
	if !ok {
		return student.Student{}, student.ErrNotFound
	}
	students, err := aggregateStudents(ctx, db, bson.D{{Key: "_id", Value: oid}})
	if err != nil {
		return student.Student{}, err
	}
	if len(students) == 0 {
		return student.Student{}, student.ErrNotFound
	}
	return students[0], nil
}

type studentRepository struct {
	db *mongo.Database
}

var _ student.Repository = (*studentRepository)(nil)

func NewStudentRepository(db *mongo.Database) student.Repository {
	return &studentRepository{db: db}
}

func (repo *studentRepository) GetStudent(ctx context.Context, id string) (student.Student, error) {
	return getStudent(ctx, repo.db, id)
}

func (repo *studentRepository) QueryStudents(ctx context.Context, filter student.QueryFilter) ([]student.Student, int, error) {
	match := nameFilter(filter.Search)
	total, err := repo.db.Collection(studentsColl).CountDocuments(ctx, match)
	if err != nil {
		return nil, 0, errors.Wrap(err, "counting students")
	}
	stages := append(mongo.Pipeline{{{Key: "$sort", Value: sortBy(filter.Ordering)}}}, paginate(filter.Page)...)
	students, err := aggregateStudents(ctx, repo.db, match, stages...)
	return students, int(total), err
}

func (repo *studentRepository) UpdateStudent(ctx context.Context, s student.Student) (student.Student, error) {
	oid, ok := objectID(s.ID)
	if !ok {
		return student.Student{}, student.ErrNotFound
	}
	res, err := repo.db.Collection(studentsColl).UpdateByID(ctx, oid, bson.D{{Key: "$set", Value: bson.D{
		{Key: "name", Value: s.Name},
		{Key: "gender", Value: s.Gender},
		{Key: "dob", Value: s.DOB.Time},
		{Key: "contact_details", Value: newContactDoc(s.ContactDetails)},
		{Key: "updated_at", Value: s.UpdatedAt},
	}}})
	if err != nil {
		return student.Student{}, errors.Wrap(err, "updating student")
	}
	if res.MatchedCount == 0 {
		return student.Student{}, student.ErrNotFound
	}
	return getStudent(ctx, repo.db, s.ID)
}
