package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/adribv/edutool/core"
	"github.com/adribv/edutool/core/activity"
)

type activityRepository struct {
	activity.Repository
	cache backend
}

var _ activity.Repository = (*activityRepository)(nil) // interface compliance check

// NewActivityRepository caches FindActiveRecord results of next for ttl.
func NewActivityRepository(next activity.Repository, client redis.UniversalClient, ttl time.Duration, logger core.Logger) activity.Repository {
	return &activityRepository{
		Repository: next,
		cache:      store{client: client, ttl: ttl, logger: logger},
	}
}

func activityKey(staffID string) string {
	return keyPrefix + "activities:" + staffID
}

func (repo *activityRepository) FindActiveRecord(ctx context.Context, staffID string) (activity.Record, error) {
	key := activityKey(staffID)
	var rec activity.Record
	if repo.cache.get(ctx, key, &rec) {
		return rec, nil
	}
	gen, cacheable := repo.cache.generation(ctx, key)

	rec, err := repo.Repository.FindActiveRecord(ctx, staffID)
	if err != nil {
		return rec, err
	}
	if cacheable {
		repo.cache.fill(ctx, key, gen, rec)
	}
	return rec, nil
}

func (repo *activityRepository) CreateRecord(ctx context.Context, rec activity.Record) (activity.Record, error) {
	defer repo.cache.invalidate(ctx, activityKey(rec.StaffID))
	return repo.Repository.CreateRecord(ctx, rec)
}

func (repo *activityRepository) UpdateRecord(ctx context.Context, rec activity.Record, version int) (activity.Record, error) {
	defer repo.cache.invalidate(ctx, activityKey(rec.StaffID))
	return repo.Repository.UpdateRecord(ctx, rec, version)
}
