package mongorepos_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/adribv/edutool/core"
	"github.com/adribv/edutool/core/activity"
	"github.com/adribv/edutool/core/permission"
	"github.com/adribv/edutool/core/rbac"
	"github.com/adribv/edutool/core/staff"
	mongorepos "github.com/adribv/edutool/storage/database/mongo"
	"github.com/adribv/edutool/tests"
)

// openTestDB connects to TEST_MONGO_URI, skipping the test when it is unset.
// Every test gets its own database, dropped on cleanup.
func openTestDB(t *testing.T) *mongo.Database {
	uri := os.Getenv("TEST_MONGO_URI")
	if uri == "" {
		t.Skip("TEST_MONGO_URI not set")
	}
	conf := &core.Config{}
	conf.Mongo.URI = uri
	conf.Mongo.Database = "edutool_test_" + uuid.NewString()[:8]
	conf.Mongo.ConnectTimeout = 5 * time.Second

	ctx := context.Background()
	client, db, err := mongorepos.Open(ctx, conf)
	require.NoError(t, err)
	require.NoError(t, mongorepos.InitializeIndexes(ctx, db))
	t.Cleanup(func() {
		_ = db.Drop(ctx)
		_ = client.Disconnect(ctx)
	})
	return db
}

func TestPermissionRepository(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	validate, _ := testutil.NewValidator()

	staffRepo := mongorepos.NewStaffRepository(db)
	svc := permission.NewService(mongorepos.NewPermissionRepository(db), staff.NewService(staffRepo), nil, validate)
	testutil.CreateStaff(t, staffRepo, "t-1", "Tina", "", rbac.RoleTeacher, "Science")
	testutil.CreateStaff(t, staffRepo, "t-2", "Tom", "", rbac.RoleAccountant, "Finance")

	rec, created, err := svc.Upsert(ctx, permission.Assignment{StaffID: "t-1"})
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "Science", rec.Department)

	rec, _, err = svc.Upsert(ctx, permission.Assignment{
		StaffID:     "t-1",
		Permissions: map[rbac.Module]rbac.Level{rbac.ModuleLibrary: rbac.EditAccess},
		Version:     testutil.IntPtr(rec.Version),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, rec.Version)
	assert.Equal(t, rbac.EditAccess, rec.Permissions[rbac.ModuleLibrary])

	_, _, err = svc.Upsert(ctx, permission.Assignment{StaffID: "t-1", Version: testutil.IntPtr(1)})
	assert.Equal(t, core.ErrVersionConflict, errors.Cause(err))

	_, _, err = svc.Upsert(ctx, permission.Assignment{StaffID: "t-2"})
	require.NoError(t, err)

	records, err := svc.QueryActive(ctx, permission.QueryFilter{Department: "finance"})
	require.NoError(t, err)
	if assert.Len(t, records, 1) {
		assert.Equal(t, "t-2", records[0].StaffID)
	}

	summary, err := svc.RoleSummary(ctx)
	require.NoError(t, err)
	assert.Len(t, summary, 2)
}

func TestPermissionRepository_singleActiveRecord(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	repo := mongorepos.NewPermissionRepository(db)

	rec := permission.Record{ID: "r-1", StaffID: "u-1", IsActive: true, Version: 1}
	_, err := repo.CreateRecord(ctx, rec)
	require.NoError(t, err)

	rec.ID = "r-2"
	_, err = repo.CreateRecord(ctx, rec)
	assert.Equal(t, core.ErrActiveRecordExists, errors.Cause(err))

	// inactive records do not count against the index
	rec.IsActive = false
	_, err = repo.CreateRecord(ctx, rec)
	assert.NoError(t, err)
}

func TestActivityRepository_Query(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	repo := mongorepos.NewActivityRepository(db)

	for _, rec := range []activity.Record{
		{ID: "a-1", StaffID: "s-1", IsActive: true, Version: 1, ActivityAssignments: []activity.ActivityAssignment{
			{Activity: rbac.ActivityHomework, AccessLevel: rbac.Edit},
		}},
		{ID: "a-2", StaffID: "s-2", IsActive: true, Version: 1, Remarks: "cover teacher", ActivityAssignments: []activity.ActivityAssignment{
			{Activity: rbac.ActivityHomework, AccessLevel: rbac.Unauthorized},
		}},
	} {
		_, err := repo.CreateRecord(ctx, rec)
		require.NoError(t, err)
	}

	records, err := repo.QueryActiveRecords(ctx, activity.QueryFilter{Activity: string(rbac.ActivityHomework)})
	require.NoError(t, err)
	if assert.Len(t, records, 1) {
		assert.Equal(t, "s-1", records[0].StaffID)
	}

	records, err = repo.QueryActiveRecords(ctx, activity.QueryFilter{Search: "COVER"})
	require.NoError(t, err)
	assert.Len(t, records, 1)

	_, err = repo.UpdateRecord(ctx, activity.Record{ID: "a-1", StaffID: "s-1", IsActive: true}, 7)
	assert.Equal(t, core.ErrVersionConflict, errors.Cause(err))
	_, err = repo.UpdateRecord(ctx, activity.Record{ID: "missing"}, 1)
	assert.Equal(t, activity.ErrNotFound, errors.Cause(err))
}
