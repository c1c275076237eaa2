package mongorepos

import (
	"context"
	"regexp"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/trezcool/schoolcrm/core"
)

// collections
const (
	teachersColl = "teachers"
	classesColl  = "classes"
	studentsColl = "students"
)

type contactDoc struct {
	Phone string `bson:"phone"`
	Email string `bson:"email"`
}

func newContactDoc(cd core.ContactDetails) contactDoc {
	return contactDoc{Phone: cd.Phone, Email: cd.Email}
}

func (d contactDoc) toContactDetails() core.ContactDetails {
	return core.ContactDetails{Phone: d.Phone, Email: d.Email}
}

// EnsureIndexes creates the indexes the repositories rely on: unique business keys & roster lookups.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	indexes := map[string][]mongo.IndexModel{
		teachersColl: {
			{Keys: bson.D{{Key: "teacher_id", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		classesColl: {
			{Keys: bson.D{{Key: "teacher", Value: 1}}},
			{Keys: bson.D{{Key: "created_at", Value: 1}}},
		},
		studentsColl: {
			{Keys: bson.D{{Key: "student_id", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "assigned_class", Value: 1}}},
		},
	}
	for coll, models := range indexes {
		if _, err := db.Collection(coll).Indexes().CreateMany(ctx, models); err != nil {
			return errors.Wrapf(err, "creating %s indexes", coll)
		}
	}
	return nil
}

// objectID parses a hex id as returned by ObjectID.Hex.
// A malformed or non-canonical (eg: uppercase) id cannot match any document.
func objectID(id string) (primitive.ObjectID, bool) {
	oid, err := primitive.ObjectIDFromHex(id)
	return oid, err == nil && oid.Hex() == id
}

// detached returns a context for undoing a write, alive even if `ctx` is done.
func detached(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
}

func teacherExists(ctx context.Context, db *mongo.Database, oid primitive.ObjectID) (bool, error) {
	n, err := db.Collection(teachersColl).CountDocuments(ctx, bson.D{{Key: "_id", Value: oid}}, options.Count().SetLimit(1))
	if err != nil {
		return false, errors.Wrap(err, "counting teachers")
	}
	return n > 0, nil
}

func hexIDs(oids []primitive.ObjectID) []string {
	ids := make([]string, 0, len(oids))
	for _, oid := range oids {
		ids = append(ids, oid.Hex())
	}
	return ids
}

// nameFilter does a case-insensitive "contains" match on `name`.
func nameFilter(search string) bson.D {
	if search == "" {
		return bson.D{}
	}
	return bson.D{{Key: "name", Value: primitive.Regex{Pattern: regexp.QuoteMeta(search), Options: "i"}}}
}

func sortBy(ord core.DBOrdering) bson.D {
	dir := -1
	if ord.Ascending {
		dir = 1
	}
	return bson.D{{Key: ord.Field, Value: dir}, {Key: "_id", Value: 1}}
}

func toDate(t time.Time) core.Date {
	if t.IsZero() {
		return core.Date{}
	}
	y, m, d := t.UTC().Date()
	return core.NewDate(y, m, d)
}

func lookupOne(from, localField, as string) bson.D {
	return bson.D{{Key: "$lookup", Value: bson.D{
		{Key: "from", Value: from},
		{Key: "localField", Value: localField},
		{Key: "foreignField", Value: "_id"},
		{Key: "as", Value: as},
	}}}
}

func paginate(page core.Page) mongo.Pipeline {
	return mongo.Pipeline{
		{{Key: "$skip", Value: int64(page.Offset())}},
		{{Key: "$limit", Value: int64(page.Limit)}},
	}
}
