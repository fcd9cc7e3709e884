package inmemdb

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/adribv/edutool/core/rbac"
	"github.com/adribv/edutool/core/staff"
)

type staffRepository struct {
	db *staffTable
}

var _ staff.Repository = (*staffRepository)(nil) // interface compliance check

func NewStaffRepository(db *DB) staff.Repository {
	return &staffRepository{db: db.staff}
}

func (repo *staffRepository) CreateStaff(_ context.Context, s staff.Staff) (staff.Staff, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.table[s.ID]; ok {
		return staff.Staff{}, errors.Errorf("staff %s already exists", s.ID)
	}
	repo.db.table[s.ID] = s
	return s, nil
}

func (repo *staffRepository) GetStaffByID(_ context.Context, id string) (staff.Staff, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if s, ok := repo.db.table[id]; ok {
		return s, nil
	}
	return staff.Staff{}, staff.ErrNotFound
}

func (repo *staffRepository) UpdateStaffAssignment(_ context.Context, id string, role rbac.Role, department string, updatedAt time.Time) (staff.Staff, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	s, ok := repo.db.table[id]
	if !ok {
		return staff.Staff{}, staff.ErrNotFound
	}
	// only save set fields
	if role != "" {
		s.Role = role
	}
	if department != "" {
		s.Department = department
	}
	s.UpdatedAt = updatedAt
	repo.db.table[id] = s
	return s, nil
}
