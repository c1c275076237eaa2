package mongorepos

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/trezcool/schoolcrm/core/class"
	"github.com/trezcool/schoolcrm/core/teacher"
)

type classDoc struct {
	ID          primitive.ObjectID   `bson:"_id"`
	Name        string               `bson:"name"`
	Year        int                  `bson:"year"`
	Teacher     primitive.ObjectID   `bson:"teacher"`
	Fees        float64              `bson:"fees"`
	MaxStudents int                  `bson:"max_students"`
	Students    []primitive.ObjectID `bson:"students"`
	CreatedAt   time.Time            `bson:"created_at"`
	UpdatedAt   time.Time            `bson:"updated_at"`
}

// classFields are the editable fields of a classDoc, as a $set document.
func classFields(name string, year int, teacherOID primitive.ObjectID, fees float64, max int, updatedAt time.Time) bson.D {
	return bson.D{
		{Key: "name", Value: name},
		{Key: "year", Value: year},
		{Key: "teacher", Value: teacherOID},
		{Key: "fees", Value: fees},
		{Key: "max_students", Value: max},
		{Key: "updated_at", Value: updatedAt},
	}
}

// classView is a classDoc joined with its teacher & (optionally) its students.
type classView struct {
	classDoc `bson:",inline"`
	Teachers []teacherDoc `bson:"teacher_docs"`
	Roster   []studentDoc `bson:"roster_docs"`
}

func (v classView) toClass() class.Class {
	c := class.Class{
		ID:          v.ID.Hex(),
		Name:        v.Name,
		Year:        v.Year,
		Teacher:     class.TeacherRef{ID: v.Teacher.Hex()},
		Fees:        v.Fees,
		MaxStudents: v.MaxStudents,
		Students:    hexIDs(v.Students),
		CreatedAt:   v.CreatedAt.UTC(),
		UpdatedAt:   v.UpdatedAt.UTC(),
	}
	if len(v.Teachers) > 0 {
		c.Teacher.TeacherID = v.Teachers[0].TeacherID
		c.Teacher.Name = v.Teachers[0].Name
	}
	if v.Roster != nil {
		// $lookup does not keep the roster order
		byID := make(map[primitive.ObjectID]studentDoc, len(v.Roster))
		for _, s := range v.Roster {
			byID[s.ID] = s
		}
		c.Roster = make([]class.RosterEntry, 0, len(v.Students))
		for _, sid := range v.Students {
			if s, ok := byID[sid]; ok {
				c.Roster = append(c.Roster, s.toRosterEntry())
			}
		}
	}
	return c
}

func classPipeline(match bson.D, withRoster bool, stages ...bson.D) mongo.Pipeline {
	pipeline := mongo.Pipeline{{{Key: "$match", Value: match}}}
	pipeline = append(pipeline, stages...)
	pipeline = append(pipeline, lookupOne(teachersColl, "teacher", "teacher_docs"))
	if withRoster {
		pipeline = append(pipeline, lookupOne(studentsColl, "students", "roster_docs"))
	}
	return pipeline
}

func aggregateClasses(ctx context.Context, db *mongo.Database, pipeline mongo.Pipeline) ([]class.Class, error) {
	cur, err := db.Collection(classesColl).Aggregate(ctx, pipeline)
	if err != nil {
		return nil, errors.Wrap(err, "aggregating classes")
	}
	var views []classView
	if err = cur.All(ctx, &views); err != nil {
		return nil, errors.Wrap(err, "decoding classes")
	}
	classes := make([]class.Class, 0, len(views))
	for _, v := range views {
		classes = append(classes, v.toClass())
	}
	return classes, nil
}

func getClass(ctx context.Context, db *mongo.Database, id string, withRoster bool) (class.Class, error) {
	oid, ok := objectID(id)
	if !ok {
		return class.Class{}, class.ErrNotFound
	}
	classes, err := aggregateClasses(ctx, db, classPipeline(bson.D{{Key: "_id", Value: oid}}, withRoster))
	if err != nil {
		return class.Class{}, err
	}
	if len(classes) == 0 {
		return class.Class{}, class.ErrNotFound
	}
	c := classes[0]
	if withRoster && c.Roster == nil {
		c.Roster = []class.RosterEntry{}
	}
	return c, nil
}

type classRepository struct {
	db *mongo.Database
}

var _ class.Repository = (*classRepository)(nil)

func NewClassRepository(db *mongo.Database) class.Repository {
	return &classRepository{db: db}
}

func (repo *classRepository) CreateClass(ctx context.Context, c class.Class) (class.Class, error) {
	teacherOID, ok := objectID(c.Teacher.ID)
	if !ok {
		return class.Class{}, errors.Errorf("invalid teacher id %q", c.Teacher.ID)
	}
	doc := classDoc{
		ID:          primitive.NewObjectID(),
		Name:        c.Name,
		Year:        c.Year,
		Teacher:     teacherOID,
		Fees:        c.Fees,
		MaxStudents: c.MaxStudents,
		Students:    []primitive.ObjectID{},
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
	}
	if _, err := repo.db.Collection(classesColl).InsertOne(ctx, doc); err != nil {
		return class.Class{}, errors.Wrap(err, "inserting class")
	}
	// the teacher may have been deleted since it was resolved
	if exists, err := teacherExists(ctx, repo.db, teacherOID); err != nil || !exists {
		undoCtx, cancel := detached(ctx)
		defer cancel()
		if _, delErr := repo.db.Collection(classesColl).DeleteOne(undoCtx, bson.D{{Key: "_id", Value: doc.ID}}); delErr != nil {
			return class.Class{}, errors.Wrap(delErr, "deleting class of a missing teacher")
		}
		if err != nil {
			return class.Class{}, err
		}
		return class.Class{}, teacher.ErrNotFound
	}
	c.ID = doc.ID.Hex()
	c.Students = []string{}
	return c, nil
}

func (repo *classRepository) GetClass(ctx context.Context, id string, withRoster bool) (class.Class, error) {
	return getClass(ctx, repo.db, id, withRoster)
}

func (repo *classRepository) QueryClasses(ctx context.Context, filter class.QueryFilter) ([]class.Class, int, error) {
	total, err := repo.db.Collection(classesColl).CountDocuments(ctx, bson.D{})
	if err != nil {
		return nil, 0, errors.Wrap(err, "counting classes")
	}
	stages := append(mongo.Pipeline{{{Key: "$sort", Value: bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}}}}},
		paginate(filter.Page)...)
	classes, err := aggregateClasses(ctx, repo.db, classPipeline(bson.D{}, false, stages...))
	return classes, int(total), err
}

func (repo *classRepository) AllClasses(ctx context.Context) ([]class.Class, error) {
	sortStage := bson.D{{Key: "$sort", Value: bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}}}}
	return aggregateClasses(ctx, repo.db, classPipeline(bson.D{}, false, sortStage))
}
