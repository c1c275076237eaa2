package mongorepos

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/trezcool/schoolcrm/core"
	"github.com/trezcool/schoolcrm/core/class"
	"github.com/trezcool/schoolcrm/core/enrollment"
	"github.com/trezcool/schoolcrm/core/student"
	"github.com/trezcool/schoolcrm/core/teacher"
)

// hasSeat matches a class whose roster is below its capacity.
var hasSeat = bson.D{{Key: "$expr", Value: bson.D{{Key: "$lt", Value: bson.A{
	bson.D{{Key: "$size", Value: "$students"}}, "$max_students",
}}}}}

// enrollmentStore writes rosters with conditional updates: a roster push only matches a class with a free seat.
// The student document is written after the push, and the push is undone (compensated) if that write fails.
type enrollmentStore struct {
	db     *mongo.Database
	logger core.Logger
}

var _ enrollment.Store = (*enrollmentStore)(nil)

func NewEnrollmentStore(db *mongo.Database, logger core.Logger) enrollment.Store {
	return &enrollmentStore{db: db, logger: logger}
}

func (st *enrollmentStore) classes() *mongo.Collection  { return st.db.Collection(classesColl) }
func (st *enrollmentStore) students() *mongo.Collection { return st.db.Collection(studentsColl) }

func (st *enrollmentStore) GetClass(ctx context.Context, id string, withRoster bool) (class.Class, error) {
	return getClass(ctx, st.db, id, withRoster)
}

func (st *enrollmentStore) GetStudent(ctx context.Context, id string) (student.Student, error) {
	return getStudent(ctx, st.db, id)
}

// rejection explains why a conditional class update matched nothing.
func (st *enrollmentStore) rejection(ctx context.Context, classOID primitive.ObjectID, kind class.RosterErrorKind, max int) error {
	var doc classDoc
	if err := st.classes().FindOne(ctx, bson.D{{Key: "_id", Value: classOID}}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return class.ErrNotFound
		}
		return errors.Wrap(err, "finding class")
	}
	if max < 0 {
		max = doc.MaxStudents
	}
	return &class.RosterError{Kind: kind, ClassID: doc.ID.Hex(), Enrolled: len(doc.Students), Max: max}
}

// pushToRoster appends a student to a class roster, if the class has a free seat.
func (st *enrollmentStore) pushToRoster(ctx context.Context, classOID, studentOID primitive.ObjectID) error {
	filter := append(bson.D{{Key: "_id", Value: classOID}}, hasSeat...)
	res, err := st.classes().UpdateOne(ctx, filter, bson.D{{Key: "$push", Value: bson.D{{Key: "students", Value: studentOID}}}})
	if err != nil {
		return errors.Wrap(err, "pushing to roster")
	}
	if res.MatchedCount == 0 {
		return st.rejection(ctx, classOID, class.CapacityExceeded, -1)
	}
	return nil
}

func (st *enrollmentStore) pullFromRoster(ctx context.Context, classOID, studentOID primitive.ObjectID) error {
	_, err := st.classes().UpdateOne(ctx,
		bson.D{{Key: "_id", Value: classOID}},
		bson.D{{Key: "$pull", Value: bson.D{{Key: "students", Value: studentOID}}}},
	)
	return errors.Wrap(err, "pulling from roster")
}

// compensate runs an undo write, logging if it fails too: the roster then keeps a dangling id.
func (st *enrollmentStore) compensate(ctx context.Context, cause error, undo func(ctx context.Context) error) {
	ctx, cancel := detached(ctx)
	defer cancel()
	if err := undo(ctx); err != nil {
		st.logger.Error("compensating roster write", err, map[string]interface{}{"cause": cause.Error()})
	}
}

func (st *enrollmentStore) EnrollStudent(ctx context.Context, s student.Student) (student.Student, error) {
	classOID, ok := objectID(s.AssignedClass.ID)
	if !ok {
		return student.Student{}, class.ErrNotFound
	}
	studentOID := primitive.NewObjectID()

	if err := st.pushToRoster(ctx, classOID, studentOID); err != nil {
		return student.Student{}, err
	}
	doc := newStudentDoc(s, studentOID, classOID)
	if _, err := st.students().InsertOne(ctx, doc); err != nil {
		st.compensate(ctx, err, func(ctx context.Context) error {
			return st.pullFromRoster(ctx, classOID, studentOID)
		})
		if mongo.IsDuplicateKeyError(err) {
			return student.Student{}, student.ErrStudentIDExists
		}
		return student.Student{}, errors.Wrap(err, "inserting student")
	}
	return doc.toStudent(), nil
}

func (st *enrollmentStore) UpdateClass(ctx context.Context, c class.Class) (class.Class, error) {
	classOID, ok := objectID(c.ID)
	if !ok {
		return class.Class{}, class.ErrNotFound
	}
	teacherOID, ok := objectID(c.Teacher.ID)
	if !ok {
		return class.Class{}, errors.Errorf("invalid teacher id %q", c.Teacher.ID)
	}

	// only match if the current roster fits in the new capacity
	filter := bson.D{
		{Key: "_id", Value: classOID},
		{Key: "$expr", Value: bson.D{{Key: "$lte", Value: bson.A{
			bson.D{{Key: "$size", Value: "$students"}}, c.MaxStudents,
		}}}},
	}
	var before classDoc
	err := st.classes().FindOneAndUpdate(ctx, filter,
		bson.D{{Key: "$set", Value: classFields(c.Name, c.Year, teacherOID, c.Fees, c.MaxStudents, c.UpdatedAt)}},
		options.FindOneAndUpdate().SetReturnDocument(options.Before),
	).Decode(&before)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return class.Class{}, st.rejection(ctx, classOID, class.CapacityBelowEnrollment, c.MaxStudents)
		}
		return class.Class{}, errors.Wrap(err, "updating class")
	}

	// the new teacher may have been deleted since it was resolved
	if before.Teacher != teacherOID {
		exists, err := teacherExists(ctx, st.db, teacherOID)
		if err != nil || !exists {
			if err == nil {
				err = teacher.ErrNotFound
			}
			st.compensate(ctx, err, func(ctx context.Context) error {
				_, err := st.classes().UpdateOne(ctx, bson.D{{Key: "_id", Value: classOID}}, bson.D{{Key: "$set",
					Value: classFields(before.Name, before.Year, before.Teacher, before.Fees, before.MaxStudents, before.UpdatedAt),
				}})
				return err
			})
			return class.Class{}, err
		}
	}
	return getClass(ctx, st.db, c.ID, false)
}

func (st *enrollmentStore) TransferStudent(ctx context.Context, studentID, toClassID string) (student.Student, error) {
	studentOID, ok := objectID(studentID)
	if !ok {
		return student.Student{}, student.ErrNotFound
	}
	toOID, ok := objectID(toClassID)
	if !ok {
		return student.Student{}, class.ErrNotFound
	}

	var doc studentDoc
	if err := st.students().FindOne(ctx, bson.D{{Key: "_id", Value: studentOID}}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return student.Student{}, student.ErrNotFound
		}
		return student.Student{}, errors.Wrap(err, "finding student")
	}
	fromOID := doc.AssignedClass
	if fromOID == toOID {
		return getStudent(ctx, st.db, studentID)
	}

	if err := st.pushToRoster(ctx, toOID, studentOID); err != nil {
		return student.Student{}, err
	}
	_, err := st.students().UpdateByID(ctx, studentOID, bson.D{{Key: "$set", Value: bson.D{
		{Key: "assigned_class", Value: toOID},
		{Key: "updated_at", Value: time.Now().UTC()},
	}}})
	if err != nil {
		st.compensate(ctx, err, func(ctx context.Context) error {
			return st.pullFromRoster(ctx, toOID, studentOID)
		})
		return student.Student{}, errors.Wrap(err, "moving student")
	}
	if err = st.pullFromRoster(ctx, fromOID, studentOID); err != nil {
		// the student is moved: only the old roster keeps a dangling id
		st.logger.Error("transferring student", err, map[string]interface{}{"student_id": studentID})
	}
	return getStudent(ctx, st.db, studentID)
}

func (st *enrollmentStore) DeleteStudent(ctx context.Context, id string) error {
	studentOID, ok := objectID(id)
	if !ok {
		return student.ErrNotFound
	}

	var doc studentDoc
	err := st.students().FindOneAndDelete(ctx, bson.D{{Key: "_id", Value: studentOID}}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return student.ErrNotFound
		}
		return errors.Wrap(err, "deleting student")
	}
	if err = st.pullFromRoster(ctx, doc.AssignedClass, studentOID); err != nil {
		st.compensate(ctx, err, func(ctx context.Context) error {
			_, err := st.students().InsertOne(ctx, doc)
			return err
		})
		return err
	}
	return nil
}

func (st *enrollmentStore) DeleteClass(ctx context.Context, id string) error {
	classOID, ok := objectID(id)
	if !ok {
		return class.ErrNotFound
	}
	res, err := st.classes().DeleteOne(ctx, bson.D{
		{Key: "_id", Value: classOID},
		{Key: "students", Value: bson.D{{Key: "$size", Value: 0}}},
	})
	if err != nil {
		return errors.Wrap(err, "deleting class")
	}
	if res.DeletedCount == 0 {
		return st.rejection(ctx, classOID, class.NotEmpty, -1)
	}
	return nil
}
