package permission_test

import (
	"context"
	"sync"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adribv/edutool/core"
	"github.com/adribv/edutool/core/permission"
	"github.com/adribv/edutool/core/rbac"
	"github.com/adribv/edutool/core/staff"
	"github.com/adribv/edutool/storage/database/inmem"
	"github.com/adribv/edutool/tests"
)

type mailRecorder struct {
	mu   sync.Mutex
	sent []*core.EmailMessage
}

func (r *mailRecorder) SendMessages(messages ...*core.EmailMessage) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, messages...)
}

type fixture struct {
	svc       permission.Service
	staffRepo staff.Repository
	mail      *mailRecorder
}

func setup(t *testing.T) fixture {
	db, err := inmemdb.Open()
	require.NoError(t, err)
	validate, _ := testutil.NewValidator()

	f := fixture{
		staffRepo: inmemdb.NewStaffRepository(db),
		mail:      new(mailRecorder),
	}
	f.svc = permission.NewService(
		inmemdb.NewPermissionRepository(db),
		staff.NewService(f.staffRepo),
		f.mail,
		validate,
	)
	return f
}

func TestService_Upsert_teacherScenario(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	testutil.CreateStaff(t, f.staffRepo, "t-1", "Jane Teacher", "jane@school.test", rbac.RoleTeacher, "")

	defaults := rbac.ResolveDefaults(rbac.RoleTeacher, "")
	require.Equal(t, rbac.EditAccess, defaults[rbac.ModuleAttendance])
	require.Equal(t, rbac.NoAccess, defaults[rbac.ModuleFees])

	rec, created, err := f.svc.Upsert(ctx, permission.Assignment{
		StaffID:     "t-1",
		Role:        string(rbac.RoleTeacher),
		Permissions: map[rbac.Module]rbac.Level{rbac.ModuleAttendance: rbac.ViewAccess},
		AssignedBy:  "vp-1",
	})
	require.NoError(t, err)
	assert.True(t, created)
	assert.True(t, rec.IsActive)
	assert.Equal(t, 1, rec.Version)
	assert.Equal(t, "vp-1", rec.AssignedBy)

	want := rbac.ResolveDefaults(rbac.RoleTeacher, "")
	want[rbac.ModuleAttendance] = rbac.ViewAccess
	assert.Equal(t, want, rec.Permissions)

	for _, k := range rbac.AllApprovalKeys() {
		assert.Equal(t, rbac.NoAccess, rec.ApprovalPermissions[k])
	}
	assert.NotNil(t, rec.CustomPermissions)

	// the grant is announced to the staff member
	if assert.Len(t, f.mail.sent, 1) {
		msg := f.mail.sent[0]
		assert.Equal(t, "jane@school.test", msg.To[0].Address)
		assert.Equal(t, "access_changed", msg.TemplateName)
	}
}

func TestService_Upsert_roleWithoutDefaults(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	testutil.CreateStaff(t, f.staffRepo, "it-1", "Ian", "", rbac.RoleITSupport, "")

	overrides := map[rbac.Module]rbac.Level{
		rbac.ModuleSettings:  rbac.EditAccess,
		rbac.ModuleDashboard: rbac.ViewAccess,
	}
	rec, created, err := f.svc.Upsert(ctx, permission.Assignment{
		StaffID:     "it-1",
		Role:        string(rbac.RoleITSupport),
		Permissions: overrides,
	})
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, overrides, rec.Permissions)

	// no email address, no notification
	assert.Empty(t, f.mail.sent)
}

func TestService_Upsert_idempotent(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	testutil.CreateStaff(t, f.staffRepo, "hod-1", "Harry", "", rbac.RoleHOD, "Science")

	first, _, err := f.svc.Upsert(ctx, permission.Assignment{StaffID: "hod-1", Role: string(rbac.RoleHOD)})
	require.NoError(t, err)

	second, created, err := f.svc.Upsert(ctx, permission.Assignment{StaffID: "hod-1", Permissions: map[rbac.Module]rbac.Level{}})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.Permissions, second.Permissions)
	assert.Equal(t, first.ApprovalPermissions, second.ApprovalPermissions)
	assert.Equal(t, first.Role, second.Role)
	assert.Equal(t, first.Department, second.Department)
	assert.False(t, second.LastModified.Before(first.LastModified))
	assert.Equal(t, first.Version+1, second.Version)
}

func TestService_Upsert_shallowMerge(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	testutil.CreateStaff(t, f.staffRepo, "os-1", "Olga", "", rbac.RoleOfficeManager, "Admin Block")

	_, _, err := f.svc.Upsert(ctx, permission.Assignment{
		StaffID: "os-1",
		Permissions: map[rbac.Module]rbac.Level{
			rbac.ModuleStudents: rbac.ViewAccess,
			rbac.ModuleFees:     rbac.NoAccess,
		},
		CustomPermissions:   []permission.CustomPermission{{Module: "canteen", AccessLevel: rbac.EditAccess}},
		ApprovalPermissions: map[rbac.ApprovalKey]rbac.Level{rbac.ApproveLeaves: rbac.ViewAccess},
	})
	require.NoError(t, err)

	rec, created, err := f.svc.Upsert(ctx, permission.Assignment{
		StaffID:     "os-1",
		Permissions: map[rbac.Module]rbac.Level{rbac.ModuleFees: rbac.EditAccess},
	})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, map[rbac.Module]rbac.Level{
		rbac.ModuleStudents: rbac.ViewAccess,
		rbac.ModuleFees:     rbac.EditAccess,
	}, rec.Permissions)

	// absent values never clobber stored data
	assert.Equal(t, rbac.RoleOfficeManager, rec.Role)
	assert.Equal(t, "Admin Block", rec.Department)
	assert.Equal(t, []permission.CustomPermission{{Module: "canteen", AccessLevel: rbac.EditAccess}}, rec.CustomPermissions)
	assert.Equal(t, rbac.ViewAccess, rec.ApprovalLevel(rbac.ApproveLeaves))

	// supplied values do
	rec, _, err = f.svc.Upsert(ctx, permission.Assignment{
		StaffID:             "os-1",
		Role:                string(rbac.RoleAccountant),
		CustomPermissions:   []permission.CustomPermission{},
		ApprovalPermissions: map[rbac.ApprovalKey]rbac.Level{rbac.ApproveExpenses: rbac.EditAccess},
	})
	require.NoError(t, err)
	assert.Equal(t, rbac.RoleAccountant, rec.Role)
	assert.Empty(t, rec.CustomPermissions)
	assert.Equal(t, rbac.ViewAccess, rec.ApprovalLevel(rbac.ApproveLeaves))
	assert.Equal(t, rbac.EditAccess, rec.ApprovalLevel(rbac.ApproveExpenses))
	// the role change does not re-apply defaults on an existing record
	assert.Len(t, rec.Permissions, 2)
}

func TestService_Upsert_versionConflict(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	testutil.CreateStaff(t, f.staffRepo, "lib-1", "Lily", "", rbac.RoleLibrarian, "")

	rec, _, err := f.svc.Upsert(ctx, permission.Assignment{StaffID: "lib-1"})
	require.NoError(t, err)

	_, _, err = f.svc.Upsert(ctx, permission.Assignment{StaffID: "lib-1", Version: testutil.IntPtr(rec.Version + 3)})
	assert.Equal(t, core.ErrVersionConflict, errors.Cause(err))

	rec, _, err = f.svc.Upsert(ctx, permission.Assignment{StaffID: "lib-1", Version: testutil.IntPtr(rec.Version)})
	require.NoError(t, err)
	assert.Equal(t, 2, rec.Version)
}

func TestService_Upsert_errors(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	testutil.CreateStaff(t, f.staffRepo, "s-1", "Sam", "", rbac.RoleTeacher, "")

	tests := []struct {
		name      string
		a         permission.Assignment
		wantValid bool // a validation error is expected
		wantErr   error
	}{
		{name: "staff id required", a: permission.Assignment{StaffID: "  "}, wantValid: true},
		{name: "unknown role", a: permission.Assignment{StaffID: "s-1", Role: "Janitor"}, wantValid: true},
		{
			name:      "unknown module",
			a:         permission.Assignment{StaffID: "s-1", Permissions: map[rbac.Module]rbac.Level{"canteen": rbac.ViewAccess}},
			wantValid: true,
		},
		{
			name:      "activity level on a module",
			a:         permission.Assignment{StaffID: "s-1", Permissions: map[rbac.Module]rbac.Level{rbac.ModuleFees: rbac.Approve}},
			wantValid: true,
		},
		{
			name:      "custom permission shadowing a catalog module",
			a:         permission.Assignment{StaffID: "s-1", CustomPermissions: []permission.CustomPermission{{Module: "fees", AccessLevel: rbac.ViewAccess}}},
			wantValid: true,
		},
		{
			name:      "blank custom permission",
			a:         permission.Assignment{StaffID: "s-1", CustomPermissions: []permission.CustomPermission{{Module: " ", AccessLevel: rbac.ViewAccess}}},
			wantValid: true,
		},
		{
			name:      "unknown approval key",
			a:         permission.Assignment{StaffID: "s-1", ApprovalPermissions: map[rbac.ApprovalKey]rbac.Level{"payroll": rbac.EditAccess}},
			wantValid: true,
		},
		{name: "unknown staff", a: permission.Assignment{StaffID: "ghost"}, wantErr: permission.ErrStaffNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := f.svc.Upsert(ctx, tt.a)
			require.Error(t, err)
			if tt.wantValid {
				assert.True(t, isValidationErr(err), "got %T: %v", errors.Cause(err), err)
			}
			if tt.wantErr != nil {
				assert.Equal(t, tt.wantErr, errors.Cause(err))
			}
		})
	}

	_, err := f.svc.FindActiveByStaff(ctx, "s-1")
	assert.Equal(t, permission.ErrNotFound, errors.Cause(err))
}

func TestService_Deactivate(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	testutil.CreateStaff(t, f.staffRepo, "wc-1", "Wendy", "", rbac.RoleWellnessCounsellor, "")

	_, err := f.svc.Deactivate(ctx, "wc-1")
	assert.Equal(t, permission.ErrNotFound, errors.Cause(err))

	orig, _, err := f.svc.Upsert(ctx, permission.Assignment{
		StaffID:     "wc-1",
		Permissions: map[rbac.Module]rbac.Level{rbac.ModuleFees: rbac.ViewAccess},
	})
	require.NoError(t, err)

	deact, err := f.svc.Deactivate(ctx, "wc-1")
	require.NoError(t, err)
	assert.False(t, deact.IsActive)
	assert.Equal(t, orig.ID, deact.ID)

	_, err = f.svc.FindActiveByStaff(ctx, "wc-1")
	assert.Equal(t, permission.ErrNotFound, errors.Cause(err))

	// a later upsert starts over from the defaults
	fresh, created, err := f.svc.Upsert(ctx, permission.Assignment{StaffID: "wc-1"})
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEqual(t, orig.ID, fresh.ID)
	assert.Equal(t, rbac.ResolveDefaults(rbac.RoleWellnessCounsellor, ""), fresh.Permissions)

	active, err := f.svc.FindActiveByStaff(ctx, "wc-1")
	require.NoError(t, err)
	assert.Equal(t, fresh.ID, active.ID)
}

func TestService_BulkUpsert(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	testutil.CreateStaff(t, f.staffRepo, "b-1", "Ann", "", rbac.RoleTeacher, "")
	testutil.CreateStaff(t, f.staffRepo, "b-2", "Ben", "", rbac.RoleLibrarian, "")
	testutil.CreateStaff(t, f.staffRepo, "b-4", "Dan", "", rbac.RoleAccountant, "")

	items := []permission.Assignment{
		{StaffID: "b-1", Permissions: map[rbac.Module]rbac.Level{rbac.ModuleFees: rbac.ViewAccess}},
		{StaffID: "b-2"},
		{StaffID: "missing", Role: string(rbac.RoleTeacher)},
		{StaffID: "b-4", Role: string(rbac.RoleAccountant)},
	}
	results := f.svc.BulkUpsert(ctx, items)

	require.Len(t, results, len(items))
	for i, res := range results {
		assert.Equal(t, items[i].StaffID, res.StaffID)
		if i == 2 {
			assert.False(t, res.Success)
			assert.Contains(t, res.Error, "staff not found")
			assert.Contains(t, res.Error, "missing")
			assert.Nil(t, res.Record)
			continue
		}
		assert.True(t, res.Success, "item %d: %s", i, res.Error)
		if assert.NotNil(t, res.Record) {
			assert.Equal(t, items[i].StaffID, res.Record.StaffID)
		}
	}

	records, err := f.svc.QueryActive(ctx, permission.QueryFilter{})
	require.NoError(t, err)
	assert.Len(t, records, 3)

	assert.Empty(t, f.svc.BulkUpsert(ctx, nil))
}

func TestService_QueryActive(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	testutil.CreateStaff(t, f.staffRepo, "q-1", "Quinn", "", rbac.RoleTeacher, "Mathematics")
	testutil.CreateStaff(t, f.staffRepo, "q-2", "Quentin", "", rbac.RoleTeacher, "Science")
	testutil.CreateStaff(t, f.staffRepo, "q-3", "Queenie", "", rbac.RoleAccountant, "Finance")
	for _, id := range []string{"q-1", "q-2", "q-3"} {
		_, _, err := f.svc.Upsert(ctx, permission.Assignment{StaffID: id})
		require.NoError(t, err)
	}
	_, err := f.svc.Deactivate(ctx, "q-2")
	require.NoError(t, err)

	ids := func(records []permission.Record) []string {
		out := make([]string, 0, len(records))
		for _, r := range records {
			out = append(out, r.StaffID)
		}
		return out
	}

	tests := []struct {
		name   string
		filter permission.QueryFilter
		want   []string
	}{
		{name: "all active", filter: permission.QueryFilter{}, want: []string{"q-1", "q-3"}},
		{name: "by role", filter: permission.QueryFilter{Role: "Teacher"}, want: []string{"q-1"}},
		{name: "by department", filter: permission.QueryFilter{Department: " finance "}, want: []string{"q-3"}},
		{name: "search", filter: permission.QueryFilter{Search: "MATH"}, want: []string{"q-1"}},
		{name: "no match", filter: permission.QueryFilter{Role: "Principal"}, want: []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			records, err := f.svc.QueryActive(ctx, tt.filter)
			require.NoError(t, err)
			assert.ElementsMatch(t, tt.want, ids(records))
		})
	}

	summary, err := f.svc.RoleSummary(ctx)
	require.NoError(t, err)
	assert.Equal(t, []permission.RoleCount{
		{Role: rbac.RoleAccountant, Count: 1},
		{Role: rbac.RoleTeacher, Count: 1},
	}, summary)
}

func TestRecord_Grants(t *testing.T) {
	rec := permission.Record{
		Permissions:       map[rbac.Module]rbac.Level{rbac.ModuleFees: rbac.EditAccess},
		CustomPermissions: []permission.CustomPermission{{Module: "canteen", AccessLevel: rbac.ViewAccess}},
	}
	assert.True(t, rbac.HasAccess(rec, rbac.ModuleScale, "fees", rbac.EditAccess))
	assert.True(t, rbac.HasAccess(rec, rbac.ModuleScale, "canteen", rbac.ViewAccess))
	assert.False(t, rbac.HasAccess(rec, rbac.ModuleScale, "canteen", rbac.EditAccess))
	assert.False(t, rbac.HasAccess(rec, rbac.ModuleScale, "students", rbac.ViewAccess))
	assert.True(t, rbac.HasAnyAccess(rec, rbac.ModuleScale))
	assert.Equal(t, rbac.NoAccess, rec.ApprovalLevel(rbac.ApproveEvents))

	clone := rec.Clone()
	clone.Permissions[rbac.ModuleFees] = rbac.NoAccess
	clone.CustomPermissions[0].AccessLevel = rbac.NoAccess
	assert.Equal(t, rbac.EditAccess, rec.Permissions[rbac.ModuleFees])
	assert.Equal(t, rbac.ViewAccess, rec.CustomPermissions[0].AccessLevel)
}

func isValidationErr(err error) bool {
	if core.IsValidation(err) {
		return true
	}
	_, ok := errors.Cause(err).(validator.ValidationErrors)
	return ok
}
