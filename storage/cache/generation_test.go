package cache

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adribv/edutool/core/activity"
	"github.com/adribv/edutool/core/permission"
	"github.com/adribv/edutool/core/rbac"
)

// memBackend follows the generation rules of store without a redis server.
type memBackend struct {
	mu     sync.Mutex
	values map[string][]byte
	gens   map[string]int64
	fills  int
}

func newMemBackend() *memBackend {
	return &memBackend{values: make(map[string][]byte), gens: make(map[string]int64)}
}

func (b *memBackend) get(_ context.Context, key string, v interface{}) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	data, ok := b.values[key]
	return ok && json.Unmarshal(data, v) == nil
}

func (b *memBackend) generation(_ context.Context, key string) (int64, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.gens[key], true
}

func (b *memBackend) fill(_ context.Context, key string, gen int64, v interface{}) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.gens[key] != gen {
		return
	}
	data, _ := json.Marshal(v)
	b.values[key] = data
	b.fills++
}

func (b *memBackend) invalidate(_ context.Context, key string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.gens[key]++
	delete(b.values, key)
}

// slowPermissions returns the stored record, running duringRead after it was read
// and before it is handed back.
type slowPermissions struct {
	permission.Repository
	mu         sync.Mutex
	rec        *permission.Record
	duringRead func()
}

func (r *slowPermissions) FindActiveRecord(_ context.Context, staffID string) (permission.Record, error) {
	r.mu.Lock()
	var snapshot *permission.Record
	if r.rec != nil && r.rec.StaffID == staffID && r.rec.IsActive {
		c := r.rec.Clone()
		snapshot = &c
	}
	hook := r.duringRead
	r.duringRead = nil
	r.mu.Unlock()

	if hook != nil {
		hook()
	}
	if snapshot == nil {
		return permission.Record{}, permission.ErrNotFound
	}
	return *snapshot, nil
}

func (r *slowPermissions) UpdateRecord(_ context.Context, rec permission.Record, version int) (permission.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec.Version = version + 1
	r.rec = &rec
	return rec, nil
}

func TestPermissionRepository_staleFillAfterRevoke(t *testing.T) {
	ctx := context.Background()
	active := permission.Record{
		ID:          "rec-1",
		StaffID:     "s-1",
		Role:        rbac.RoleTeacher,
		Permissions: map[rbac.Module]rbac.Level{rbac.ModuleStaff: rbac.EditAccess},
		IsActive:    true,
		Version:     1,
	}
	inner := &slowPermissions{rec: &active}
	mem := newMemBackend()
	repo := &permissionRepository{Repository: inner, cache: mem}

	// the record is revoked while a lookup is between its database read and its cache fill
	inner.duringRead = func() {
		revoked := active.Clone()
		revoked.IsActive = false
		_, err := repo.UpdateRecord(ctx, revoked, active.Version)
		require.NoError(t, err)
	}
	rec, err := repo.FindActiveRecord(ctx, "s-1")
	require.NoError(t, err)
	assert.True(t, rec.IsActive, "the in-flight lookup still sees what it read")
	assert.Equal(t, 0, mem.fills, "a fill racing a revoke is dropped")

	_, err = repo.FindActiveRecord(ctx, "s-1")
	assert.Equal(t, permission.ErrNotFound, errors.Cause(err))
}

func TestPermissionRepository_fillsWhenUntouched(t *testing.T) {
	ctx := context.Background()
	active := permission.Record{ID: "rec-1", StaffID: "s-1", IsActive: true, Version: 1}
	inner := &slowPermissions{rec: &active}
	mem := newMemBackend()
	repo := &permissionRepository{Repository: inner, cache: mem}

	_, err := repo.FindActiveRecord(ctx, "s-1")
	require.NoError(t, err)
	assert.Equal(t, 1, mem.fills)

	// served from the cache even though the inner repository would now miss
	inner.rec = nil
	rec, err := repo.FindActiveRecord(ctx, "s-1")
	require.NoError(t, err)
	assert.Equal(t, "rec-1", rec.ID)
}

type slowActivities struct {
	activity.Repository
	rec        activity.Record
	duringRead func()
}

func (r *slowActivities) FindActiveRecord(context.Context, string) (activity.Record, error) {
	snapshot := r.rec.Clone()
	if r.duringRead != nil {
		hook := r.duringRead
		r.duringRead = nil
		hook()
	}
	if !snapshot.IsActive {
		return activity.Record{}, activity.ErrNotFound
	}
	return snapshot, nil
}

func (r *slowActivities) UpdateRecord(_ context.Context, rec activity.Record, version int) (activity.Record, error) {
	rec.Version = version + 1
	r.rec = rec
	return rec, nil
}

func TestActivityRepository_staleFillAfterUpdate(t *testing.T) {
	ctx := context.Background()
	inner := &slowActivities{rec: activity.Record{
		ID:       "rec-1",
		StaffID:  "s-1",
		IsActive: true,
		Version:  1,
		ActivityAssignments: []activity.ActivityAssignment{
			{Activity: rbac.ActivityStaffManagement, AccessLevel: rbac.Edit},
		},
	}}
	mem := newMemBackend()
	repo := &activityRepository{Repository: inner, cache: mem}

	inner.duringRead = func() {
		downgraded := inner.rec.Clone()
		downgraded.ActivityAssignments = []activity.ActivityAssignment{
			{Activity: rbac.ActivityStaffManagement, AccessLevel: rbac.View},
		}
		_, err := repo.UpdateRecord(ctx, downgraded, 1)
		require.NoError(t, err)
	}
	_, err := repo.FindActiveRecord(ctx, "s-1")
	require.NoError(t, err)
	assert.Equal(t, 0, mem.fills)

	rec, err := repo.FindActiveRecord(ctx, "s-1")
	require.NoError(t, err)
	assert.False(t, rbac.HasAccess(rec, rbac.ActivityScale, string(rbac.ActivityStaffManagement), rbac.Edit))
	assert.Equal(t, 2, rec.Version)
}
