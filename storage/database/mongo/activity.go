package mongorepos

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/adribv/edutool/core"
	"github.com/adribv/edutool/core/activity"
	"github.com/adribv/edutool/core/rbac"
)

type activityAssignmentDoc struct {
	Activity    string `bson:"activity"`
	AccessLevel string `bson:"accessLevel"`
}

type activityDoc struct {
	ID                  string                  `bson:"_id"`
	StaffID             string                  `bson:"staffId"`
	Department          string                  `bson:"department,omitempty"`
	Remarks             string                  `bson:"remarks,omitempty"`
	ActivityAssignments []activityAssignmentDoc `bson:"activityAssignments"`
	AssignedBy          string                  `bson:"assignedBy,omitempty"`
	AssignedDate        time.Time               `bson:"assignedDate"`
	LastModified        time.Time               `bson:"lastModified"`
	IsActive            bool                    `bson:"isActive"`
	Version             int                     `bson:"version"`
}

func newActivityDoc(rec activity.Record) activityDoc {
	list := make([]activityAssignmentDoc, 0, len(rec.ActivityAssignments))
	for _, aa := range rec.ActivityAssignments {
		list = append(list, activityAssignmentDoc{Activity: string(aa.Activity), AccessLevel: string(aa.AccessLevel)})
	}
	return activityDoc{
		ID:                  rec.ID,
		StaffID:             rec.StaffID,
		Department:          rec.Department,
		Remarks:             rec.Remarks,
		ActivityAssignments: list,
		AssignedBy:          rec.AssignedBy,
		AssignedDate:        rec.AssignedDate.UTC(),
		LastModified:        rec.LastModified.UTC(),
		IsActive:            rec.IsActive,
		Version:             rec.Version,
	}
}

func (d activityDoc) record() activity.Record {
	list := make([]activity.ActivityAssignment, 0, len(d.ActivityAssignments))
	for _, aa := range d.ActivityAssignments {
		list = append(list, activity.ActivityAssignment{Activity: rbac.Activity(aa.Activity), AccessLevel: rbac.Level(aa.AccessLevel)})
	}
	return activity.Record{
		ID:                  d.ID,
		StaffID:             d.StaffID,
		Department:          d.Department,
		Remarks:             d.Remarks,
		ActivityAssignments: list,
		AssignedBy:          d.AssignedBy,
		AssignedDate:        d.AssignedDate.UTC(),
		LastModified:        d.LastModified.UTC(),
		IsActive:            d.IsActive,
		Version:             d.Version,
	}
}

type activityRepository struct {
	collection *mongo.Collection
}

var _ activity.Repository = (*activityRepository)(nil) // interface compliance check

func NewActivityRepository(db *mongo.Database) activity.Repository {
	return &activityRepository{collection: db.Collection(activityCollection)}
}

func (repo *activityRepository) FindActiveRecord(ctx context.Context, staffID string) (activity.Record, error) {
	var doc activityDoc
	err := repo.collection.FindOne(ctx, bson.M{"staffId": staffID, "isActive": true}).Decode(&doc)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return activity.Record{}, activity.ErrNotFound
		}
		return activity.Record{}, errors.Wrap(err, "finding activities control record")
	}
	return doc.record(), nil
}

func (repo *activityRepository) CreateRecord(ctx context.Context, rec activity.Record) (activity.Record, error) {
	doc := newActivityDoc(rec)
	if _, err := repo.collection.InsertOne(ctx, doc); err != nil {
		return activity.Record{}, mapError(errors.Wrap(err, "inserting activities control record"))
	}
	return doc.record(), nil
}

func (repo *activityRepository) UpdateRecord(ctx context.Context, rec activity.Record, version int) (activity.Record, error) {
	doc := newActivityDoc(rec)
	update := bson.M{
		"$set": bson.M{
			"department":          doc.Department,
			"remarks":             doc.Remarks,
			"activityAssignments": doc.ActivityAssignments,
			"assignedBy":          doc.AssignedBy,
			"lastModified":        doc.LastModified,
			"isActive":            doc.IsActive,
		},
		"$inc": bson.M{"version": 1},
	}

	var updated activityDoc
	err := repo.collection.FindOneAndUpdate(ctx,
		bson.M{"_id": doc.ID, "version": version},
		update,
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&updated)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			n, cerr := repo.collection.CountDocuments(ctx, bson.M{"_id": doc.ID})
			if cerr != nil {
				return activity.Record{}, errors.Wrap(cerr, "checking activities control record")
			}
			if n == 0 {
				return activity.Record{}, activity.ErrNotFound
			}
			return activity.Record{}, core.ErrVersionConflict
		}
		return activity.Record{}, mapError(errors.Wrap(err, "updating activities control record"))
	}
	return updated.record(), nil
}

// grantingLevels lists the activity levels that satisfy a View check.
func grantingLevels() bson.A {
	var levels bson.A
	for _, lvl := range rbac.ActivityScale.Levels() {
		if rbac.ActivityScale.Allows(lvl, rbac.View) {
			levels = append(levels, string(lvl))
		}
	}
	return levels
}

func (repo *activityRepository) QueryActiveRecords(ctx context.Context, filter activity.QueryFilter) ([]activity.Record, error) {
	query := bson.M{"isActive": true}
	if filter.Department != "" {
		query["department"] = equalFold(filter.Department)
	}
	if filter.Activity != "" {
		query["activityAssignments"] = bson.M{"$elemMatch": bson.M{
			"activity":    filter.Activity,
			"accessLevel": bson.M{"$in": grantingLevels()},
		}}
	}
	if filter.Search != "" {
		query["$or"] = bson.A{
			bson.M{"staffId": contains(filter.Search)},
			bson.M{"department": contains(filter.Search)},
			bson.M{"remarks": contains(filter.Search)},
		}
	}

	opts := options.Find().SetSort(bson.D{{Key: "assignedDate", Value: 1}, {Key: "_id", Value: 1}})
	cursor, err := repo.collection.Find(ctx, query, opts)
	if err != nil {
		return nil, errors.Wrap(err, "querying activities control records")
	}
	defer cursor.Close(ctx)

	var docs []activityDoc
	if err = cursor.All(ctx, &docs); err != nil {
		return nil, errors.Wrap(err, "decoding activities control records")
	}
	records := make([]activity.Record, 0, len(docs))
	for _, d := range docs {
		records = append(records, d.record())
	}
	return records, nil
}
