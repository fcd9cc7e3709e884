package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/adribv/edutool/core/rbac"
	"github.com/adribv/edutool/core/staff"
)

type staffRow struct {
	ID         string      `db:"id"`
	Name       string      `db:"name"`
	Email      null.String `db:"email"`
	Role       string      `db:"role"`
	Department null.String `db:"department"`
	IsActive   bool        `db:"is_active"`
	CreatedAt  time.Time   `db:"created_at"`
	UpdatedAt  time.Time   `db:"updated_at"`
}

func (r staffRow) staff() staff.Staff {
	return staff.Staff{
		ID:         r.ID,
		Name:       r.Name,
		Email:      r.Email.String,
		Role:       rbac.Role(r.Role),
		Department: r.Department.String,
		IsActive:   r.IsActive,
		CreatedAt:  r.CreatedAt.UTC(),
		UpdatedAt:  r.UpdatedAt.UTC(),
	}
}

type staffRepository struct {
	db sqlx.ExtContext
}

var _ staff.Repository = (*staffRepository)(nil) // interface compliance check

func NewStaffRepository(db sqlx.ExtContext) staff.Repository {
	return &staffRepository{db: db}
}

const staffColumns = `id, name, email, role, department, is_active, created_at, updated_at`

func (repo *staffRepository) CreateStaff(ctx context.Context, s staff.Staff) (staff.Staff, error) {
	_, err := repo.db.ExecContext(ctx,
		`INSERT INTO staff (`+staffColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		s.ID, s.Name, null.NewString(s.Email, s.Email != ""), string(s.Role),
		null.NewString(s.Department, s.Department != ""), s.IsActive, s.CreatedAt.UTC(), s.UpdatedAt.UTC(),
	)
	if err != nil {
		return staff.Staff{}, errors.Wrap(err, "inserting staff")
	}
	return s, nil
}

func (repo *staffRepository) GetStaffByID(ctx context.Context, id string) (staff.Staff, error) {
	var row staffRow
	err := sqlx.GetContext(ctx, repo.db, &row, `SELECT `+staffColumns+` FROM staff WHERE id = $1`, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return staff.Staff{}, staff.ErrNotFound
		}
		return staff.Staff{}, errors.Wrap(err, "selecting staff")
	}
	return row.staff(), nil
}

func (repo *staffRepository) UpdateStaffAssignment(ctx context.Context, id string, role rbac.Role, department string, updatedAt time.Time) (staff.Staff, error) {
	var row staffRow
	err := sqlx.GetContext(ctx, repo.db, &row, `
		UPDATE staff SET
			role = COALESCE(NULLIF($2, ''), role),
			department = COALESCE(NULLIF($3, ''), department),
			updated_at = $4
		WHERE id = $1
		RETURNING `+staffColumns,
		id, string(role), department, updatedAt.UTC(),
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return staff.Staff{}, staff.ErrNotFound
		}
		return staff.Staff{}, errors.Wrap(err, "updating staff")
	}
	return row.staff(), nil
}
