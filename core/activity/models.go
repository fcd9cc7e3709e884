package activity

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/adribv/edutool/core"
	"github.com/adribv/edutool/core/rbac"
)

// ActivityAssignment grants one activity at a level of the activity scale.
type ActivityAssignment struct {
	Activity    rbac.Activity `json:"activity" validate:"required,activity_key"`
	AccessLevel rbac.Level    `json:"accessLevel" validate:"required,activity_level"`
}

// Record holds the activity grants of one staff member.
type Record struct {
	ID                  string               `json:"id"`
	StaffID             string               `json:"staffId"`
	Department          string               `json:"department,omitempty"`
	Remarks             string               `json:"remarks,omitempty"`
	ActivityAssignments []ActivityAssignment `json:"activityAssignments"`
	AssignedBy          string               `json:"assignedBy,omitempty"`
	AssignedDate        time.Time            `json:"assignedDate"` // UTC
	LastModified        time.Time            `json:"lastModified"` // UTC
	IsActive            bool                 `json:"isActive"`
	Version             int                  `json:"version"`
}

var _ rbac.Grants = Record{}

func (r Record) Level(key string) (rbac.Level, bool) {
	for _, aa := range r.ActivityAssignments {
		if string(aa.Activity) == key {
			return aa.AccessLevel, true
		}
	}
	return "", false
}

func (r Record) Range(fn func(key string, level rbac.Level) bool) {
	for _, aa := range r.ActivityAssignments {
		if !fn(string(aa.Activity), aa.AccessLevel) {
			return
		}
	}
}

// Accessible lists the assignments ranking above Unauthorized, in catalog group order.
func (r Record) Accessible() []rbac.ActivityGroupView {
	granted := make(map[rbac.Activity]bool, len(r.ActivityAssignments))
	for _, aa := range r.ActivityAssignments {
		if rbac.ActivityScale.Rank(aa.AccessLevel) > 0 {
			granted[aa.Activity] = true
		}
	}

	groups := make([]rbac.ActivityGroupView, 0)
	for _, g := range rbac.ActivityGroups() {
		view := rbac.ActivityGroupView{Group: g.Group, Activities: make([]rbac.Activity, 0)}
		for _, a := range g.Activities {
			if granted[a] {
				view.Activities = append(view.Activities, a)
			}
		}
		if len(view.Activities) > 0 {
			groups = append(groups, view)
		}
	}
	return groups
}

func (r Record) Clone() Record {
	c := r
	if r.ActivityAssignments != nil {
		c.ActivityAssignments = append([]ActivityAssignment(nil), r.ActivityAssignments...)
	}
	return c
}

// Assignment is what an authority submits for one staff member.
// A nil ActivityAssignments leaves the stored list untouched; any other value replaces it.
type Assignment struct {
	StaffID             string               `json:"staffId" validate:"required,notblank"`
	Department          string               `json:"department"`
	Remarks             string               `json:"remarks"`
	ActivityAssignments []ActivityAssignment `json:"activityAssignments" validate:"omitempty,dive"`
	AssignedBy          string               `json:"-"`
	// Version, when set, must match the stored record's version.
	Version *int `json:"version,omitempty"`
}

func (a *Assignment) Validate(validate *validator.Validate) error {
	a.StaffID = core.CleanString(a.StaffID)
	a.Department = core.CleanString(a.Department)
	a.Remarks = core.CleanString(a.Remarks)

	if err := validate.Struct(a); err != nil {
		return err
	}

	seen := make(map[rbac.Activity]bool, len(a.ActivityAssignments))
	for _, aa := range a.ActivityAssignments {
		if seen[aa.Activity] {
			return core.NewFieldError("activityAssignments", fmt.Sprintf("%s is listed more than once", aa.Activity))
		}
		seen[aa.Activity] = true
	}
	return nil
}

type QueryFilter struct {
	Department string `query:"department"`
	// Activity keeps records granting the activity above Unauthorized.
	Activity string `query:"activity"`
	// Search does a case-insensitive match on the staff id, department or remarks.
	Search string `query:"search"`
}

func (qf *QueryFilter) Clean() {
	qf.Department = core.CleanString(qf.Department)
	qf.Activity = core.CleanString(qf.Activity)
	qf.Search = core.CleanString(qf.Search)
}

func (qf QueryFilter) Match(r Record) bool {
	if qf.Department != "" && !strings.EqualFold(r.Department, qf.Department) {
		return false
	}
	if qf.Activity != "" && !rbac.HasAccess(r, rbac.ActivityScale, qf.Activity, rbac.View) {
		return false
	}
	if qf.Search != "" {
		s := strings.ToLower(qf.Search)
		return strings.Contains(strings.ToLower(r.StaffID), s) ||
			strings.Contains(strings.ToLower(r.Department), s) ||
			strings.Contains(strings.ToLower(r.Remarks), s)
	}
	return true
}

// ActivityCount tells how many active records grant an activity, per level.
type ActivityCount struct {
	Activity rbac.Activity      `json:"activity"`
	Group    rbac.ActivityGroup `json:"group"`
	Levels   map[rbac.Level]int `json:"levels"`
	Total    int                `json:"total"`
}

// BulkResult is the outcome of one item of a bulk upsert.
type BulkResult struct {
	StaffID string  `json:"staffId"`
	Success bool    `json:"success"`
	Error   string  `json:"error,omitempty"`
	Record  *Record `json:"record,omitempty"`
}
