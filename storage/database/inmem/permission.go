package inmemdb

import (
	"context"
	"sort"

	"github.com/adribv/edutool/core"
	"github.com/adribv/edutool/core/permission"
	"github.com/adribv/edutool/core/rbac"
)

type permissionRepository struct {
	db *permissionTable
}

var _ permission.Repository = (*permissionRepository)(nil) // interface compliance check

func NewPermissionRepository(db *DB) permission.Repository {
	return &permissionRepository{db: db.permissions}
}

// findActive must be called with the lock held.
func (repo *permissionRepository) findActive(staffID string) (permission.Record, bool) {
	for _, id := range repo.db.order {
		if rec := repo.db.table[id]; rec.IsActive && rec.StaffID == staffID {
			return rec, true
		}
	}
	return permission.Record{}, false
}

func (repo *permissionRepository) FindActiveRecord(_ context.Context, staffID string) (permission.Record, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if rec, ok := repo.findActive(staffID); ok {
		return rec.Clone(), nil
	}
	return permission.Record{}, permission.ErrNotFound
}

func (repo *permissionRepository) CreateRecord(_ context.Context, rec permission.Record) (permission.Record, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if rec.IsActive {
		if _, exists := repo.findActive(rec.StaffID); exists {
			return permission.Record{}, core.ErrActiveRecordExists
		}
	}
	repo.db.table[rec.ID] = rec.Clone()
	repo.db.order = append(repo.db.order, rec.ID)
	return rec, nil
}

func (repo *permissionRepository) UpdateRecord(_ context.Context, rec permission.Record, version int) (permission.Record, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	stored, ok := repo.db.table[rec.ID]
	if !ok {
		return permission.Record{}, permission.ErrNotFound
	}
	if stored.Version != version {
		return permission.Record{}, core.ErrVersionConflict
	}
	if rec.IsActive && !stored.IsActive {
		if _, exists := repo.findActive(rec.StaffID); exists {
			return permission.Record{}, core.ErrActiveRecordExists
		}
	}
	rec.Version = version + 1
	repo.db.table[rec.ID] = rec.Clone()
	return rec, nil
}

func (repo *permissionRepository) QueryActiveRecords(_ context.Context, filter permission.QueryFilter) ([]permission.Record, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	records := make([]permission.Record, 0)
	for _, id := range repo.db.order {
		if rec := repo.db.table[id]; rec.IsActive && filter.Match(rec) {
			records = append(records, rec.Clone())
		}
	}
	return records, nil
}

func (repo *permissionRepository) CountActiveByRole(_ context.Context) ([]permission.RoleCount, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	byRole := make(map[rbac.Role]int)
	for _, rec := range repo.db.table {
		if rec.IsActive {
			byRole[rec.Role]++
		}
	}
	counts := make([]permission.RoleCount, 0, len(byRole))
	for role, n := range byRole {
		counts = append(counts, permission.RoleCount{Role: role, Count: n})
	}
	sort.Slice(counts, func(i, j int) bool { return counts[i].Role < counts[j].Role })
	return counts, nil
}
