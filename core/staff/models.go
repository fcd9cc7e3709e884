package staff

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/adribv/edutool/core"
	"github.com/adribv/edutool/core/rbac"
)

// Staff is the subject of access grants.
// Only Role and Department are ever written by access-control flows.
type Staff struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Email      string    `json:"email"`
	Role       rbac.Role `json:"role"`
	Department string    `json:"department,omitempty"`
	IsActive   bool      `json:"isActive"`
	CreatedAt  time.Time `json:"createdAt"` // UTC
	UpdatedAt  time.Time `json:"updatedAt"` // UTC
}

// NewStaff contains information needed to create a new Staff.
type NewStaff struct {
	Name       string `json:"name" validate:"required,notblank"`
	Email      string `json:"email" validate:"omitempty,email"`
	Role       string `json:"role" validate:"required,staff_role"`
	Department string `json:"department"`
}

func (ns *NewStaff) Validate(validate *validator.Validate) error {
	ns.Name = core.CleanString(ns.Name)
	ns.Email = core.CleanString(ns.Email, true /* lower */)
	ns.Role = core.CleanString(ns.Role)
	ns.Department = core.CleanString(ns.Department)
	return validate.Struct(ns)
}
