package mongorepos

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/adribv/edutool/core/rbac"
	"github.com/adribv/edutool/core/staff"
)

type staffDoc struct {
	ID         string    `bson:"_id"`
	Name       string    `bson:"name"`
	Email      string    `bson:"email,omitempty"`
	Role       string    `bson:"role"`
	Department string    `bson:"department,omitempty"`
	IsActive   bool      `bson:"isActive"`
	CreatedAt  time.Time `bson:"createdAt"`
	UpdatedAt  time.Time `bson:"updatedAt"`
}

func (d staffDoc) staff() staff.Staff {
	return staff.Staff{
		ID:         d.ID,
		Name:       d.Name,
		Email:      d.Email,
		Role:       rbac.Role(d.Role),
		Department: d.Department,
		IsActive:   d.IsActive,
		CreatedAt:  d.CreatedAt.UTC(),
		UpdatedAt:  d.UpdatedAt.UTC(),
	}
}

type staffRepository struct {
	collection *mongo.Collection
}

var _ staff.Repository = (*staffRepository)(nil) // interface compliance check

func NewStaffRepository(db *mongo.Database) staff.Repository {
	return &staffRepository{collection: db.Collection(staffCollection)}
}

func (repo *staffRepository) CreateStaff(ctx context.Context, s staff.Staff) (staff.Staff, error) {
	_, err := repo.collection.InsertOne(ctx, staffDoc{
		ID:         s.ID,
		Name:       s.Name,
		Email:      s.Email,
		Role:       string(s.Role),
		Department: s.Department,
		IsActive:   s.IsActive,
		CreatedAt:  s.CreatedAt.UTC(),
		UpdatedAt:  s.UpdatedAt.UTC(),
	})
	if err != nil {
		return staff.Staff{}, errors.Wrap(err, "inserting staff")
	}
	return s, nil
}

func (repo *staffRepository) GetStaffByID(ctx context.Context, id string) (staff.Staff, error) {
	var doc staffDoc
	if err := repo.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		if err == mongo.ErrNoDocuments {
			return staff.Staff{}, staff.ErrNotFound
		}
		return staff.Staff{}, errors.Wrap(err, "finding staff")
	}
	return doc.staff(), nil
}

func (repo *staffRepository) UpdateStaffAssignment(ctx context.Context, id string, role rbac.Role, department string, updatedAt time.Time) (staff.Staff, error) {
	set := bson.M{"updatedAt": updatedAt.UTC()}
	if role != "" {
		set["role"] = string(role)
	}
	if department != "" {
		set["department"] = department
	}

	var doc staffDoc
	err := repo.collection.FindOneAndUpdate(ctx,
		bson.M{"_id": id},
		bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return staff.Staff{}, staff.ErrNotFound
		}
		return staff.Staff{}, errors.Wrap(err, "updating staff")
	}
	return doc.staff(), nil
}
