package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/adribv/edutool/core"
	"github.com/adribv/edutool/core/permission"
)

type permissionRepository struct {
	permission.Repository
	cache backend
}

var _ permission.Repository = (*permissionRepository)(nil) // interface compliance check

// NewPermissionRepository caches FindActiveRecord results of next for ttl.
// Writes through the returned repository invalidate the staff member's entry.
func NewPermissionRepository(next permission.Repository, client redis.UniversalClient, ttl time.Duration, logger core.Logger) permission.Repository {
	return &permissionRepository{
		Repository: next,
		cache:      store{client: client, ttl: ttl, logger: logger},
	}
}

func permissionKey(staffID string) string {
	return keyPrefix + "permissions:" + staffID
}

func (repo *permissionRepository) FindActiveRecord(ctx context.Context, staffID string) (permission.Record, error) {
	key := permissionKey(staffID)
	var rec permission.Record
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

func (repo *permissionRepository) CreateRecord(ctx context.Context, rec permission.Record) (permission.Record, error) {
	defer repo.cache.invalidate(ctx, permissionKey(rec.StaffID))
	return repo.Repository.CreateRecord(ctx, rec)
}

func (repo *permissionRepository) UpdateRecord(ctx context.Context, rec permission.Record, version int) (permission.Record, error) {
	defer repo.cache.invalidate(ctx, permissionKey(rec.StaffID))
	return repo.Repository.UpdateRecord(ctx, rec, version)
}
