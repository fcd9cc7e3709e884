package staff

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/adribv/edutool/core/rbac"
)

var ErrNotFound = errors.New("staff not found")

type (
	Repository interface {
		CreateStaff(ctx context.Context, s Staff) (Staff, error)
		GetStaffByID(ctx context.Context, id string) (Staff, error)
		// UpdateStaffAssignment writes role and department; empty values are left untouched.
		UpdateStaffAssignment(ctx context.Context, id string, role rbac.Role, department string, updatedAt time.Time) (Staff, error)
	}

	Service interface {
		Create(ctx context.Context, ns NewStaff) (Staff, error)
		GetByID(ctx context.Context, id string) (Staff, error)
		// SyncAssignment mirrors a grant's role and department onto the staff record.
		SyncAssignment(ctx context.Context, id string, role rbac.Role, department string) (Staff, error)
	}

	service struct {
		repo Repository
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

func (svc *service) Create(ctx context.Context, ns NewStaff) (Staff, error) {
	now := time.Now().UTC()
	return svc.repo.CreateStaff(ctx, Staff{
		ID:         uuid.NewString(),
		Name:       ns.Name,
		Email:      ns.Email,
		Role:       rbac.Role(ns.Role),
		Department: ns.Department,
		IsActive:   true,
		CreatedAt:  now,
		UpdatedAt:  now,
	})
}

func (svc *service) GetByID(ctx context.Context, id string) (Staff, error) {
	if id == "" {
		return Staff{}, ErrNotFound
	}
	return svc.repo.GetStaffByID(ctx, id)
}

func (svc *service) SyncAssignment(ctx context.Context, id string, role rbac.Role, department string) (Staff, error) {
	if role == "" && department == "" {
		return svc.GetByID(ctx, id)
	}
	s, err := svc.repo.UpdateStaffAssignment(ctx, id, role, department, time.Now().UTC())
	if err != nil {
		return Staff{}, errors.Wrap(err, "updating staff assignment")
	}
	return s, nil
}
