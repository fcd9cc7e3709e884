package permission

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/adribv/edutool/core"
	"github.com/adribv/edutool/core/rbac"
)

// CustomPermission grants a level on a module outside of the fixed catalog.
type CustomPermission struct {
	Module      string     `json:"module" validate:"required,notblank"`
	AccessLevel rbac.Level `json:"accessLevel" validate:"required,module_level"`
}

// Record holds the module-level grants of one staff member.
type Record struct {
	ID                  string                          `json:"id"`
	StaffID             string                          `json:"staffId"`
	Role                rbac.Role                       `json:"role"`
	Department          string                          `json:"department,omitempty"`
	Permissions         map[rbac.Module]rbac.Level      `json:"permissions"`
	CustomPermissions   []CustomPermission              `json:"customPermissions"`
	ApprovalPermissions map[rbac.ApprovalKey]rbac.Level `json:"approvalPermissions"`
	AssignedBy          string                          `json:"assignedBy,omitempty"`
	AssignedDate        time.Time                       `json:"assignedDate"` // UTC
	LastModified        time.Time                       `json:"lastModified"` // UTC
	IsActive            bool                            `json:"isActive"`
	Version             int                             `json:"version"`
}

var _ rbac.Grants = Record{}

// Level looks key up in the catalog permissions first, then in the custom permissions.
func (r Record) Level(key string) (rbac.Level, bool) {
	if lvl, ok := r.Permissions[rbac.Module(key)]; ok {
		return lvl, true
	}
	for _, cp := range r.CustomPermissions {
		if cp.Module == key {
			return cp.AccessLevel, true
		}
	}
	return "", false
}

func (r Record) Range(fn func(key string, level rbac.Level) bool) {
	for m, lvl := range r.Permissions {
		if !fn(string(m), lvl) {
			return
		}
	}
	for _, cp := range r.CustomPermissions {
		if !fn(cp.Module, cp.AccessLevel) {
			return
		}
	}
}

// ApprovalLevel returns the approval level for key, No Access when unset.
func (r Record) ApprovalLevel(key rbac.ApprovalKey) rbac.Level {
	if lvl, ok := r.ApprovalPermissions[key]; ok && rbac.ModuleScale.Valid(lvl) {
		return lvl
	}
	return rbac.ModuleScale.Lowest()
}

// Clone returns a deep copy, so merges never alias a stored record.
func (r Record) Clone() Record {
	c := r
	c.Permissions = rbac.CopyLevels(r.Permissions)
	c.ApprovalPermissions = rbac.CopyLevels(r.ApprovalPermissions)
	if r.CustomPermissions != nil {
		c.CustomPermissions = append([]CustomPermission(nil), r.CustomPermissions...)
	}
	return c
}

// Assignment is what an authority submits for one staff member.
// Nil fields are left untouched on an existing record.
type Assignment struct {
	StaffID             string                          `json:"staffId" validate:"required,notblank"`
	Role                string                          `json:"role" validate:"omitempty,staff_role"`
	Department          string                          `json:"department"`
	Permissions         map[rbac.Module]rbac.Level      `json:"permissions" validate:"omitempty,dive,keys,module_key,endkeys,module_level"`
	CustomPermissions   []CustomPermission              `json:"customPermissions" validate:"omitempty,dive"`
	ApprovalPermissions map[rbac.ApprovalKey]rbac.Level `json:"approvalPermissions" validate:"omitempty,dive,keys,approval_key,endkeys,module_level"`
	AssignedBy          string                          `json:"-"`
	// Version, when set, must match the stored record's version.
	Version *int `json:"version,omitempty"`
}

func (a *Assignment) Validate(validate *validator.Validate) error {
	a.StaffID = core.CleanString(a.StaffID)
	a.Role = core.CleanString(a.Role)
	a.Department = core.CleanString(a.Department)
	for i := range a.CustomPermissions {
		a.CustomPermissions[i].Module = core.CleanString(a.CustomPermissions[i].Module)
	}

	if err := validate.Struct(a); err != nil {
		return err
	}

	seen := make(map[string]bool, len(a.CustomPermissions))
	for _, cp := range a.CustomPermissions {
		if rbac.Module(cp.Module).Valid() {
			return core.NewFieldError("customPermissions", fmt.Sprintf("%s is a catalog module, set it in permissions", cp.Module))
		}
		key := strings.ToLower(cp.Module)
		if seen[key] {
			return core.NewFieldError("customPermissions", fmt.Sprintf("%s is listed more than once", cp.Module))
		}
		seen[key] = true
	}
	return nil
}

type QueryFilter struct {
	Role       string `query:"role"`
	Department string `query:"department"`
	// Search does a case-insensitive match on the staff id, role or department.
	Search string `query:"search"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.Role == "" && qf.Department == "" && qf.Search == ""
}

func (qf *QueryFilter) Clean() {
	qf.Role = core.CleanString(qf.Role)
	qf.Department = core.CleanString(qf.Department)
	qf.Search = core.CleanString(qf.Search)
}

// Match applies the filter in memory, with the semantics the SQL and Mongo repositories implement.
func (qf QueryFilter) Match(r Record) bool {
	if qf.Role != "" && string(r.Role) != qf.Role {
		return false
	}
	if qf.Department != "" && !strings.EqualFold(r.Department, qf.Department) {
		return false
	}
	if qf.Search != "" {
		s := strings.ToLower(qf.Search)
		return strings.Contains(strings.ToLower(r.StaffID), s) ||
			strings.Contains(strings.ToLower(string(r.Role)), s) ||
			strings.Contains(strings.ToLower(r.Department), s)
	}
	return true
}

// RoleCount is the number of active records carrying a role.
type RoleCount struct {
	Role  rbac.Role `json:"role"`
	Count int       `json:"count"`
}

// BulkResult is the outcome of one item of a bulk upsert.
type BulkResult struct {
	StaffID string  `json:"staffId"`
	Success bool    `json:"success"`
	Error   string  `json:"error,omitempty"`
	Record  *Record `json:"record,omitempty"`
}
