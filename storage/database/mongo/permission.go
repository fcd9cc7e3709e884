package mongorepos

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/adribv/edutool/core"
	"github.com/adribv/edutool/core/permission"
	"github.com/adribv/edutool/core/rbac"
)

type customPermissionDoc struct {
	Module      string `bson:"module"`
	AccessLevel string `bson:"accessLevel"`
}

type permissionDoc struct {
	ID                  string                `bson:"_id"`
	StaffID             string                `bson:"staffId"`
	Role                string                `bson:"role"`
	Department          string                `bson:"department,omitempty"`
	Permissions         map[string]string     `bson:"permissions"`
	CustomPermissions   []customPermissionDoc `bson:"customPermissions"`
	ApprovalPermissions map[string]string     `bson:"approvalPermissions"`
	AssignedBy          string                `bson:"assignedBy,omitempty"`
	AssignedDate        time.Time             `bson:"assignedDate"`
	LastModified        time.Time             `bson:"lastModified"`
	IsActive            bool                  `bson:"isActive"`
	Version             int                   `bson:"version"`
}

func toStrings[K ~string](m map[K]rbac.Level) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[string(k)] = string(v)
	}
	return out
}

func toLevels[K ~string](m map[string]string) map[K]rbac.Level {
	out := make(map[K]rbac.Level, len(m))
	for k, v := range m {
		out[K(k)] = rbac.Level(v)
	}
	return out
}

func newPermissionDoc(rec permission.Record) permissionDoc {
	customs := make([]customPermissionDoc, 0, len(rec.CustomPermissions))
	for _, cp := range rec.CustomPermissions {
		customs = append(customs, customPermissionDoc{Module: cp.Module, AccessLevel: string(cp.AccessLevel)})
	}
	return permissionDoc{
		ID:                  rec.ID,
		StaffID:             rec.StaffID,
		Role:                string(rec.Role),
		Department:          rec.Department,
		Permissions:         toStrings(rec.Permissions),
		CustomPermissions:   customs,
		ApprovalPermissions: toStrings(rec.ApprovalPermissions),
		AssignedBy:          rec.AssignedBy,
		AssignedDate:        rec.AssignedDate.UTC(),
		LastModified:        rec.LastModified.UTC(),
		IsActive:            rec.IsActive,
		Version:             rec.Version,
	}
}

func (d permissionDoc) record() permission.Record {
	customs := make([]permission.CustomPermission, 0, len(d.CustomPermissions))
	for _, cp := range d.CustomPermissions {
		customs = append(customs, permission.CustomPermission{Module: cp.Module, AccessLevel: rbac.Level(cp.AccessLevel)})
	}
	return permission.Record{
		ID:                  d.ID,
		StaffID:             d.StaffID,
		Role:                rbac.Role(d.Role),
		Department:          d.Department,
		Permissions:         toLevels[rbac.Module](d.Permissions),
		CustomPermissions:   customs,
		ApprovalPermissions: toLevels[rbac.ApprovalKey](d.ApprovalPermissions),
		AssignedBy:          d.AssignedBy,
		AssignedDate:        d.AssignedDate.UTC(),
		LastModified:        d.LastModified.UTC(),
		IsActive:            d.IsActive,
		Version:             d.Version,
	}
}

type permissionRepository struct {
	collection *mongo.Collection
}

var _ permission.Repository = (*permissionRepository)(nil) // interface compliance check

func NewPermissionRepository(db *mongo.Database) permission.Repository {
	return &permissionRepository{collection: db.Collection(permissionCollection)}
}

func (repo *permissionRepository) FindActiveRecord(ctx context.Context, staffID string) (permission.Record, error) {
	var doc permissionDoc
	err := repo.collection.FindOne(ctx, bson.M{"staffId": staffID, "isActive": true}).Decode(&doc)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return permission.Record{}, permission.ErrNotFound
		}
		return permission.Record{}, errors.Wrap(err, "finding permission record")
	}
	return doc.record(), nil
}

func (repo *permissionRepository) CreateRecord(ctx context.Context, rec permission.Record) (permission.Record, error) {
	doc := newPermissionDoc(rec)
	if _, err := repo.collection.InsertOne(ctx, doc); err != nil {
		return permission.Record{}, mapError(errors.Wrap(err, "inserting permission record"))
	}
	return doc.record(), nil
}

func (repo *permissionRepository) UpdateRecord(ctx context.Context, rec permission.Record, version int) (permission.Record, error) {
	doc := newPermissionDoc(rec)
	update := bson.M{
		"$set": bson.M{
			"role":                doc.Role,
			"department":          doc.Department,
			"permissions":         doc.Permissions,
			"customPermissions":   doc.CustomPermissions,
			"approvalPermissions": doc.ApprovalPermissions,
			"assignedBy":          doc.AssignedBy,
			"lastModified":        doc.LastModified,
			"isActive":            doc.IsActive,
		},
		"$inc": bson.M{"version": 1},
	}

	var updated permissionDoc
	err := repo.collection.FindOneAndUpdate(ctx,
		bson.M{"_id": doc.ID, "version": version},
		update,
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&updated)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			n, cerr := repo.collection.CountDocuments(ctx, bson.M{"_id": doc.ID})
			if cerr != nil {
				return permission.Record{}, errors.Wrap(cerr, "checking permission record")
			}
			if n == 0 {
				return permission.Record{}, permission.ErrNotFound
			}
			return permission.Record{}, core.ErrVersionConflict
		}
		return permission.Record{}, mapError(errors.Wrap(err, "updating permission record"))
	}
	return updated.record(), nil
}

func (repo *permissionRepository) QueryActiveRecords(ctx context.Context, filter permission.QueryFilter) ([]permission.Record, error) {
	query := bson.M{"isActive": true}
	if filter.Role != "" {
		query["role"] = filter.Role
	}
	if filter.Department != "" {
		query["department"] = equalFold(filter.Department)
	}
	if filter.Search != "" {
		query["$or"] = bson.A{
			bson.M{"staffId": contains(filter.Search)},
			bson.M{"role": contains(filter.Search)},
			bson.M{"department": contains(filter.Search)},
		}
	}

	opts := options.Find().SetSort(bson.D{{Key: "assignedDate", Value: 1}, {Key: "_id", Value: 1}})
	cursor, err := repo.collection.Find(ctx, query, opts)
	if err != nil {
		return nil, errors.Wrap(err, "querying permission records")
	}
	defer cursor.Close(ctx)

	var docs []permissionDoc
	if err = cursor.All(ctx, &docs); err != nil {
		return nil, errors.Wrap(err, "decoding permission records")
	}
	records := make([]permission.Record, 0, len(docs))
	for _, d := range docs {
		records = append(records, d.record())
	}
	return records, nil
}

func (repo *permissionRepository) CountActiveByRole(ctx context.Context) ([]permission.RoleCount, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.D{{Key: "isActive", Value: true}}}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$role"},
			{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
	}
	cursor, err := repo.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, errors.Wrap(err, "counting permission records")
	}
	defer cursor.Close(ctx)

	var rows []struct {
		Role  string `bson:"_id"`
		Count int    `bson:"count"`
	}
	if err = cursor.All(ctx, &rows); err != nil {
		return nil, errors.Wrap(err, "decoding role counts")
	}
	counts := make([]permission.RoleCount, 0, len(rows))
	for _, r := range rows {
		counts = append(counts, permission.RoleCount{Role: rbac.Role(r.Role), Count: r.Count})
	}
	return counts, nil
}
