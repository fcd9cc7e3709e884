package inmemdb

import (
	"context"

	"github.com/adribv/edutool/core"
	"github.com/adribv/edutool/core/activity"
)

type activityRepository struct {
	db *activityTable
}

var _ activity.Repository = (*activityRepository)(nil) // interface compliance check

func NewActivityRepository(db *DB) activity.Repository {
	return &activityRepository{db: db.activities}
}

// findActive must be called with the lock held.
func (repo *activityRepository) findActive(staffID string) (activity.Record, bool) {
	for _, id := range repo.db.order {
		if rec := repo.db.table[id]; rec.IsActive && rec.StaffID == staffID {
			return rec, true
		}
	}
	return activity.Record{}, false
}

func (repo *activityRepository) FindActiveRecord(_ context.Context, staffID string) (activity.Record, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if rec, ok := repo.findActive(staffID); ok {
		return rec.Clone(), nil
	}
	return activity.Record{}, activity.ErrNotFound
}

func (repo *activityRepository) CreateRecord(_ context.Context, rec activity.Record) (activity.Record, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if rec.IsActive {
		if _, exists := repo.findActive(rec.StaffID); exists {
			return activity.Record{}, core.ErrActiveRecordExists
		}
	}
	repo.db.table[rec.ID] = rec.Clone()
	repo.db.order = append(repo.db.order, rec.ID)
	return rec, nil
}

func (repo *activityRepository) UpdateRecord(_ context.Context, rec activity.Record, version int) (activity.Record, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	stored, ok := repo.db.table[rec.ID]
	if !ok {
		return activity.Record{}, activity.ErrNotFound
	}
	if stored.Version != version {
		return activity.Record{}, core.ErrVersionConflict
	}
	if rec.IsActive && !stored.IsActive {
		if _, exists := repo.findActive(rec.StaffID); exists {
			return activity.Record{}, core.ErrActiveRecordExists
		}
	}
	rec.Version = version + 1
	repo.db.table[rec.ID] = rec.Clone()
	return rec, nil
}

func (repo *activityRepository) QueryActiveRecords(_ context.Context, filter activity.QueryFilter) ([]activity.Record, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	records := make([]activity.Record, 0)
	for _, id := range repo.db.order {
		if rec := repo.db.table[id]; rec.IsActive && filter.Match(rec) {
			records = append(records, rec.Clone())
		}
	}
	return records, nil
}
