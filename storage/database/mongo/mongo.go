package mongorepos

import (
	"context"
	"regexp"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/adribv/edutool/core"
)

const (
	staffCollection      = "staff"
	permissionCollection = "permissions"
	activityCollection   = "activities_control"
)

// Open connects to the configured deployment and pings it.
func Open(ctx context.Context, conf *core.Config) (*mongo.Client, *mongo.Database, error) {
	opts := options.Client().
		ApplyURI(conf.Mongo.URI).
		SetServerAPIOptions(options.ServerAPI(options.ServerAPIVersion1)).
		SetConnectTimeout(conf.Mongo.ConnectTimeout).
		SetRetryWrites(true).
		SetRetryReads(true)
	if conf.Mongo.MaxPoolSize > 0 {
		opts.SetMaxPoolSize(conf.Mongo.MaxPoolSize)
	}

	client, err := mongo.Connect(opts)
	if err != nil {
		return nil, nil, errors.Wrap(err, "connecting to mongo")
	}

	pingCtx, cancel := context.WithTimeout(ctx, conf.Mongo.ConnectTimeout)
	defer cancel()
	if err = client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, nil, errors.Wrap(err, "pinging mongo")
	}
	return client, client.Database(conf.Mongo.Database), nil
}

// InitializeIndexes creates the indexes of every collection the repositories use.
func InitializeIndexes(ctx context.Context, db *mongo.Database) error {
	active := options.Index().SetUnique(true).SetPartialFilterExpression(bson.M{"isActive": true})
	specs := map[string][]mongo.IndexModel{
		permissionCollection: {
			{Keys: bson.D{{Key: "staffId", Value: 1}}, Options: active},
			{Keys: bson.D{{Key: "role", Value: 1}, {Key: "isActive", Value: 1}}},
		},
		activityCollection: {
			{Keys: bson.D{{Key: "staffId", Value: 1}}, Options: active},
			{Keys: bson.D{{Key: "activityAssignments.activity", Value: 1}}},
		},
	}
	for coll, indexes := range specs {
		if _, err := db.Collection(coll).Indexes().CreateMany(ctx, indexes); err != nil {
			return errors.Wrapf(err, "creating %s indexes", coll)
		}
	}
	return nil
}

func mapError(err error) error {
	if mongo.IsDuplicateKeyError(errors.Cause(err)) {
		return core.ErrActiveRecordExists
	}
	return err
}

// contains matches s anywhere, case-insensitively.
func contains(s string) bson.M {
	return bson.M{"$regex": regexp.QuoteMeta(s), "$options": "i"}
}

// equalFold matches s exactly, case-insensitively.
func equalFold(s string) bson.M {
	return bson.M{"$regex": "^" + regexp.QuoteMeta(s) + "$", "$options": "i"}
}
