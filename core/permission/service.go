package permission

import (
	"context"
	"fmt"
	"net/mail"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/adribv/edutool/core"
	"github.com/adribv/edutool/core/rbac"
	"github.com/adribv/edutool/core/staff"
)

var (
	// errors
	ErrNotFound      = errors.New("No permissions found")
	ErrStaffNotFound = errors.New("staff not found")
)

type (
	Repository interface {
		// FindActiveRecord returns ErrNotFound when the staff member has no active record.
		FindActiveRecord(ctx context.Context, staffID string) (Record, error)
		// CreateRecord returns core.ErrActiveRecordExists when an active record already exists.
		CreateRecord(ctx context.Context, rec Record) (Record, error)
		// UpdateRecord stores rec only if the stored version still equals version,
		// bumping it by one; core.ErrVersionConflict otherwise.
		UpdateRecord(ctx context.Context, rec Record, version int) (Record, error)
		QueryActiveRecords(ctx context.Context, filter QueryFilter) ([]Record, error)
		CountActiveByRole(ctx context.Context) ([]RoleCount, error)
	}

	// StaffFinder resolves the subject of an assignment.
	StaffFinder interface {
		GetByID(ctx context.Context, id string) (staff.Staff, error)
	}

	Service interface {
		FindActiveByStaff(ctx context.Context, staffID string) (Record, error)
		// Upsert creates the active record of a.StaffID from the role defaults merged with
		// a.Permissions, or merges a.Permissions into the existing one key by key.
		// created reports which of the two happened.
		Upsert(ctx context.Context, a Assignment) (rec Record, created bool, err error)
		Deactivate(ctx context.Context, staffID string) (Record, error)
		// BulkUpsert applies Upsert to every item in order. It never fails as a whole.
		BulkUpsert(ctx context.Context, items []Assignment) []BulkResult
		QueryActive(ctx context.Context, filter QueryFilter) ([]Record, error)
		RoleSummary(ctx context.Context) ([]RoleCount, error)
	}

	service struct {
		repo     Repository
		staff    StaffFinder
		mailSvc  core.EmailService
		validate *validator.Validate
		now      func() time.Time
	}
)

var _ Service = (*service)(nil)

// NewService returns the permission record service. mailSvc may be nil to disable notifications.
func NewService(repo Repository, staffFinder StaffFinder, mailSvc core.EmailService, validate *validator.Validate) Service {
	return &service{
		repo:     repo,
		staff:    staffFinder,
		mailSvc:  mailSvc,
		validate: validate,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (svc *service) FindActiveByStaff(ctx context.Context, staffID string) (Record, error) {
	return svc.repo.FindActiveRecord(ctx, core.CleanString(staffID))
}

func (svc *service) Upsert(ctx context.Context, a Assignment) (Record, bool, error) {
	if err := a.Validate(svc.validate); err != nil {
		return Record{}, false, err
	}

	subject, err := svc.staff.GetByID(ctx, a.StaffID)
	if err != nil {
		if errors.Cause(err) == staff.ErrNotFound {
			return Record{}, false, errors.Wrapf(ErrStaffNotFound, "staff %s", a.StaffID)
		}
		return Record{}, false, errors.Wrap(err, "finding staff")
	}

	rec, created, err := svc.upsert(ctx, a, subject)
	if errors.Cause(err) == core.ErrActiveRecordExists {
		// lost a creation race: merge into the record that won
		rec, created, err = svc.upsert(ctx, a, subject)
	}
	if err != nil {
		return Record{}, false, err
	}

	svc.notify(subject, rec, created)
	return rec, created, nil
}

func (svc *service) upsert(ctx context.Context, a Assignment, subject staff.Staff) (Record, bool, error) {
	existing, err := svc.repo.FindActiveRecord(ctx, a.StaffID)
	switch errors.Cause(err) {
	case nil:
		rec, err := svc.merge(ctx, existing, a)
		return rec, false, err
	case ErrNotFound:
		rec, err := svc.create(ctx, a, subject)
		return rec, true, err
	default:
		return Record{}, false, errors.Wrap(err, "finding active permission record")
	}
}

func (svc *service) create(ctx context.Context, a Assignment, subject staff.Staff) (Record, error) {
	role := rbac.Role(a.Role)
	if role == "" {
		role = subject.Role
	}
	dept := a.Department
	if dept == "" {
		dept = subject.Department
	}

	defaults := rbac.ResolveDefaults(role, dept)
	approvals := make(map[rbac.ApprovalKey]rbac.Level, len(rbac.AllApprovalKeys()))
	for _, k := range rbac.AllApprovalKeys() {
		approvals[k] = rbac.ModuleScale.Lowest()
	}
	customs := a.CustomPermissions
	if customs == nil {
		customs = []CustomPermission{}
	}

	now := svc.now()
	rec := Record{
		ID:                  uuid.NewString(),
		StaffID:             a.StaffID,
		Role:                role,
		Department:          dept,
		Permissions:         rbac.MergeLevels(defaults, a.Permissions),
		CustomPermissions:   customs,
		ApprovalPermissions: rbac.MergeLevels(approvals, a.ApprovalPermissions),
		AssignedBy:          a.AssignedBy,
		AssignedDate:        now,
		LastModified:        now,
		IsActive:            true,
		Version:             1,
	}
	rec, err := svc.repo.CreateRecord(ctx, rec)
	if err != nil {
		return Record{}, errors.Wrap(err, "creating permission record")
	}
	return rec, nil
}

func (svc *service) merge(ctx context.Context, existing Record, a Assignment) (Record, error) {
	if a.Version != nil && *a.Version != existing.Version {
		return Record{}, core.ErrVersionConflict
	}

	rec := existing.Clone()
	rec.Permissions = rbac.MergeLevels(rec.Permissions, a.Permissions)
	if a.Role != "" {
		rec.Role = rbac.Role(a.Role)
	}
	if a.Department != "" {
		rec.Department = a.Department
	}
	if a.AssignedBy != "" {
		rec.AssignedBy = a.AssignedBy
	}
	if a.CustomPermissions != nil {
		rec.CustomPermissions = a.CustomPermissions
	}
	if a.ApprovalPermissions != nil {
		rec.ApprovalPermissions = rbac.MergeLevels(rec.ApprovalPermissions, a.ApprovalPermissions)
	}
	rec.LastModified = svc.now()

	rec, err := svc.repo.UpdateRecord(ctx, rec, existing.Version)
	if err != nil {
		return Record{}, errors.Wrap(err, "updating permission record")
	}
	return rec, nil
}

func (svc *service) Deactivate(ctx context.Context, staffID string) (Record, error) {
	existing, err := svc.repo.FindActiveRecord(ctx, core.CleanString(staffID))
	if err != nil {
		return Record{}, err
	}

	rec := existing.Clone()
	rec.IsActive = false
	rec.LastModified = svc.now()
	rec, err = svc.repo.UpdateRecord(ctx, rec, existing.Version)
	if err != nil {
		return Record{}, errors.Wrap(err, "deactivating permission record")
	}
	return rec, nil
}

func (svc *service) BulkUpsert(ctx context.Context, items []Assignment) []BulkResult {
	results := make([]BulkResult, 0, len(items))
	for _, item := range items {
		res := BulkResult{StaffID: core.CleanString(item.StaffID)}
		rec, _, err := svc.Upsert(ctx, item)
		if err != nil {
			res.Error = err.Error()
		} else {
			res.Success = true
			res.Record = &rec
		}
		results = append(results, res)
	}
	return results
}

func (svc *service) QueryActive(ctx context.Context, filter QueryFilter) ([]Record, error) {
	filter.Clean()
	return svc.repo.QueryActiveRecords(ctx, filter)
}

func (svc *service) RoleSummary(ctx context.Context) ([]RoleCount, error) {
	counts, err := svc.repo.CountActiveByRole(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "counting active records by role")
	}
	sort.Slice(counts, func(i, j int) bool {
		if counts[i].Count != counts[j].Count {
			return counts[i].Count > counts[j].Count
		}
		return counts[i].Role < counts[j].Role
	})
	return counts, nil
}

type accessChange struct {
	StaffName  string
	Kind       string
	Action     string
	AssignedBy string
	Lines      []string
}

func (svc *service) notify(subject staff.Staff, rec Record, created bool) {
	if svc.mailSvc == nil || subject.Email == "" {
		return
	}

	action := "updated"
	if created {
		action = "granted"
	}
	lines := make([]string, 0, len(rec.Permissions))
	for _, m := range rbac.AllModules() {
		if lvl, ok := rec.Permissions[m]; ok && lvl != rbac.ModuleScale.Lowest() {
			lines = append(lines, fmt.Sprintf("%s: %s", m, lvl))
		}
	}
	for _, cp := range rec.CustomPermissions {
		lines = append(lines, fmt.Sprintf("%s: %s", cp.Module, cp.AccessLevel))
	}

	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: subject.Name, Address: subject.Email}},
		Subject:      "Your module permissions were " + action,
		TemplateName: "access_changed",
		TemplateData: accessChange{
			StaffName:  subject.Name,
			Kind:       "module permissions",
			Action:     action,
			AssignedBy: rec.AssignedBy,
			Lines:      lines,
		},
	})
}
