package cache_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adribv/edutool/core/activity"
	"github.com/adribv/edutool/core/permission"
	"github.com/adribv/edutool/core/rbac"
	"github.com/adribv/edutool/storage/cache"
	"github.com/adribv/edutool/storage/database/inmem"
)

type countingRepo struct {
	permission.Repository
	finds int
}

func (r *countingRepo) FindActiveRecord(ctx context.Context, staffID string) (permission.Record, error) {
	r.finds++
	return r.Repository.FindActiveRecord(ctx, staffID)
}

func newRecord(staffID string) permission.Record {
	now := time.Now().UTC()
	return permission.Record{
		ID:                  uuid.NewString(),
		StaffID:             staffID,
		Role:                rbac.RoleTeacher,
		Permissions:         map[rbac.Module]rbac.Level{rbac.ModuleStudents: rbac.ViewAccess},
		CustomPermissions:   []permission.CustomPermission{},
		ApprovalPermissions: map[rbac.ApprovalKey]rbac.Level{},
		AssignedDate:        now,
		LastModified:        now,
		IsActive:            true,
		Version:             1,
	}
}

func TestPermissionRepository_redisDown(t *testing.T) {
	db, err := inmemdb.Open()
	require.NoError(t, err)
	inner := &countingRepo{Repository: inmemdb.NewPermissionRepository(db)}

	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1, DialTimeout: 50 * time.Millisecond})
	defer client.Close()
	repo := cache.NewPermissionRepository(inner, client, time.Minute, nil)

	ctx := context.Background()
	_, err = repo.CreateRecord(ctx, newRecord("s-1"))
	require.NoError(t, err)

	// an unreachable cache is skipped, never surfaced
	rec, err := repo.FindActiveRecord(ctx, "s-1")
	require.NoError(t, err)
	assert.Equal(t, "s-1", rec.StaffID)
	assert.Equal(t, 1, inner.finds)

	_, err = repo.FindActiveRecord(ctx, "nobody")
	assert.Equal(t, permission.ErrNotFound, errors.Cause(err))
}

func redisClient(t *testing.T) *redis.Client {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	require.NoError(t, client.Ping(context.Background()).Err())
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestPermissionRepository_readThrough(t *testing.T) {
	client := redisClient(t)
	db, err := inmemdb.Open()
	require.NoError(t, err)
	inner := &countingRepo{Repository: inmemdb.NewPermissionRepository(db)}
	repo := cache.NewPermissionRepository(inner, client, time.Minute, nil)

	ctx := context.Background()
	staffID := "cache-" + uuid.NewString()
	created, err := repo.CreateRecord(ctx, newRecord(staffID))
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		rec, err := repo.FindActiveRecord(ctx, staffID)
		require.NoError(t, err)
		assert.Equal(t, rbac.ViewAccess, rec.Permissions[rbac.ModuleStudents])
	}
	assert.Equal(t, 1, inner.finds)

	upd := created.Clone()
	upd.Permissions[rbac.ModuleStudents] = rbac.EditAccess
	_, err = repo.UpdateRecord(ctx, upd, created.Version)
	require.NoError(t, err)

	rec, err := repo.FindActiveRecord(ctx, staffID)
	require.NoError(t, err)
	assert.Equal(t, rbac.EditAccess, rec.Permissions[rbac.ModuleStudents])
	assert.Equal(t, 2, rec.Version)
	assert.Equal(t, 2, inner.finds)
}

func TestActivityRepository_readThrough(t *testing.T) {
	client := redisClient(t)
	db, err := inmemdb.Open()
	require.NoError(t, err)
	repo := cache.NewActivityRepository(inmemdb.NewActivityRepository(db), client, time.Minute, nil)

	ctx := context.Background()
	staffID := "cache-" + uuid.NewString()
	now := time.Now().UTC()
	_, err = repo.CreateRecord(ctx, activity.Record{
		ID:           uuid.NewString(),
		StaffID:      staffID,
		IsActive:     true,
		Version:      1,
		AssignedDate: now,
		LastModified: now,
		ActivityAssignments: []activity.ActivityAssignment{
			{Activity: rbac.ActivityHomework, AccessLevel: rbac.Edit},
		},
	})
	require.NoError(t, err)

	rec, err := repo.FindActiveRecord(ctx, staffID)
	require.NoError(t, err)
	rec, err = repo.FindActiveRecord(ctx, staffID)
	require.NoError(t, err)
	assert.True(t, rbac.HasAccess(rec, rbac.ActivityScale, string(rbac.ActivityHomework), rbac.View))
}

// revokingRepo deactivates the record through the cached repository while a lookup is in flight.
type revokingRepo struct {
	permission.Repository
	cached permission.Repository
	revoke bool
}

func (r *revokingRepo) FindActiveRecord(ctx context.Context, staffID string) (permission.Record, error) {
	rec, err := r.Repository.FindActiveRecord(ctx, staffID)
	if err == nil && r.revoke {
		r.revoke = false
		revoked := rec.Clone()
		revoked.IsActive = false
		if _, uerr := r.cached.UpdateRecord(ctx, revoked, rec.Version); uerr != nil {
			return permission.Record{}, uerr
		}
	}
	return rec, err
}

func TestPermissionRepository_revokeDuringLookup(t *testing.T) {
	client := redisClient(t)
	db, err := inmemdb.Open()
	require.NoError(t, err)
	inner := &revokingRepo{Repository: inmemdb.NewPermissionRepository(db)}
	repo := cache.NewPermissionRepository(inner, client, time.Minute, nil)
	inner.cached = repo

	ctx := context.Background()
	staffID := "cache-" + uuid.NewString()
	_, err = repo.CreateRecord(ctx, newRecord(staffID))
	require.NoError(t, err)

	inner.revoke = true
	rec, err := repo.FindActiveRecord(ctx, staffID)
	require.NoError(t, err)
	assert.True(t, rec.IsActive)

	_, err = repo.FindActiveRecord(ctx, staffID)
	assert.Equal(t, permission.ErrNotFound, errors.Cause(err))
}
