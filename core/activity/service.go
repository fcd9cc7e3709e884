package activity

import (
	"context"
	"fmt"
	"net/mail"
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
	ErrNotFound      = errors.New("No activities control found")
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
	}

	StaffFinder interface {
		GetByID(ctx context.Context, id string) (staff.Staff, error)
	}

	Service interface {
		FindActiveByStaff(ctx context.Context, staffID string) (Record, error)
		// Upsert creates the active record of a.StaffID, or replaces the whole assignment
		// list of the existing one when a.ActivityAssignments is not nil.
		Upsert(ctx context.Context, a Assignment) (rec Record, created bool, err error)
		Deactivate(ctx context.Context, staffID string) (Record, error)
		BulkUpsert(ctx context.Context, items []Assignment) []BulkResult
		QueryActive(ctx context.Context, filter QueryFilter) ([]Record, error)
		ActivitySummary(ctx context.Context) ([]ActivityCount, error)
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

// NewService returns the activities control service. mailSvc may be nil to disable notifications.
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

	rec, created, err := svc.upsert(ctx, a)
	if errors.Cause(err) == core.ErrActiveRecordExists {
		rec, created, err = svc.upsert(ctx, a)
	}
	if err != nil {
		return Record{}, false, err
	}

	svc.notify(subject, rec, created)
	return rec, created, nil
}

func (svc *service) upsert(ctx context.Context, a Assignment) (Record, bool, error) {
	existing, err := svc.repo.FindActiveRecord(ctx, a.StaffID)
	if err != nil {
		if errors.Cause(err) != ErrNotFound {
			return Record{}, false, errors.Wrap(err, "finding active activities control record")
		}

		assignments := a.ActivityAssignments
		if assignments == nil {
			assignments = []ActivityAssignment{}
		}
		now := svc.now()
		rec, err := svc.repo.CreateRecord(ctx, Record{
			ID:                  uuid.NewString(),
			StaffID:             a.StaffID,
			Department:          a.Department,
			Remarks:             a.Remarks,
			ActivityAssignments: assignments,
			AssignedBy:          a.AssignedBy,
			AssignedDate:        now,
			LastModified:        now,
			IsActive:            true,
			Version:             1,
		})
		if err != nil {
			return Record{}, false, errors.Wrap(err, "creating activities control record")
		}
		return rec, true, nil
	}

	if a.Version != nil && *a.Version != existing.Version {
		return Record{}, false, core.ErrVersionConflict
	}

	rec := existing.Clone()
	if a.ActivityAssignments != nil {
		rec.ActivityAssignments = a.ActivityAssignments
	}
	if a.Department != "" {
		rec.Department = a.Department
	}
	if a.Remarks != "" {
		rec.Remarks = a.Remarks
	}
	if a.AssignedBy != "" {
		rec.AssignedBy = a.AssignedBy
	}
	rec.LastModified = svc.now()

	rec, err = svc.repo.UpdateRecord(ctx, rec, existing.Version)
	if err != nil {
		return Record{}, false, errors.Wrap(err, "updating activities control record")
	}
	return rec, false, nil
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
		return Record{}, errors.Wrap(err, "deactivating activities control record")
	}
	return rec, nil
}

func (svc *service) BulkUpsert(ctx context.Context, items []Assignment) []BulkResult {
	results := make([]BulkResult, 0, len(items))
	for _, item := range items {
		res := BulkResult{StaffID: core.CleanString(item.StaffID)}
		if rec, _, err := svc.Upsert(ctx, item); err != nil {
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

// ActivitySummary counts, for every catalog activity, the active records granting it above Unauthorized.
func (svc *service) ActivitySummary(ctx context.Context) ([]ActivityCount, error) {
	records, err := svc.repo.QueryActiveRecords(ctx, QueryFilter{})
	if err != nil {
		return nil, errors.Wrap(err, "querying active records")
	}

	counts := make(map[rbac.Activity]*ActivityCount)
	for _, rec := range records {
		for _, aa := range rec.ActivityAssignments {
			if rbac.ActivityScale.Rank(aa.AccessLevel) <= 0 {
				continue
			}
			c, ok := counts[aa.Activity]
			if !ok {
				grp, _ := aa.Activity.Group()
				c = &ActivityCount{Activity: aa.Activity, Group: grp, Levels: make(map[rbac.Level]int)}
				counts[aa.Activity] = c
			}
			c.Levels[aa.AccessLevel]++
			c.Total++
		}
	}

	summary := make([]ActivityCount, 0, len(counts))
	for _, g := range rbac.ActivityGroups() {
		for _, a := range g.Activities {
			if c, ok := counts[a]; ok {
				summary = append(summary, *c)
			}
		}
	}
	return summary, nil
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
	lines := make([]string, 0, len(rec.ActivityAssignments))
	for _, aa := range rec.ActivityAssignments {
		lines = append(lines, fmt.Sprintf("%s: %s", aa.Activity, aa.AccessLevel))
	}

	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: subject.Name, Address: subject.Email}},
		Subject:      "Your activity assignments were " + action,
		TemplateName: "access_changed",
		TemplateData: accessChange{
			StaffName:  subject.Name,
			Kind:       "activity assignments",
			Action:     action,
			AssignedBy: rec.AssignedBy,
			Lines:      lines,
		},
	})
}
