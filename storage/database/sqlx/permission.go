package sqlxrepos

import (
	"context"
	"database/sql"
	"strconv"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/adribv/edutool/core"
	"github.com/adribv/edutool/core/permission"
	"github.com/adribv/edutool/core/rbac"
)

type permissionRow struct {
	ID                  string         `db:"id"`
	StaffID             string         `db:"staff_id"`
	Role                string         `db:"role"`
	Department          null.String    `db:"department"`
	Permissions         types.JSONText `db:"permissions"`
	CustomPermissions   types.JSONText `db:"custom_permissions"`
	ApprovalPermissions types.JSONText `db:"approval_permissions"`
	AssignedBy          null.String    `db:"assigned_by"`
	AssignedDate        time.Time      `db:"assigned_date"`
	LastModified        time.Time      `db:"last_modified"`
	IsActive            bool           `db:"is_active"`
	Version             int            `db:"version"`
}

func newPermissionRow(rec permission.Record) (permissionRow, error) {
	row := permissionRow{
		ID:           rec.ID,
		StaffID:      rec.StaffID,
		Role:         string(rec.Role),
		Department:   null.NewString(rec.Department, rec.Department != ""),
		AssignedBy:   null.NewString(rec.AssignedBy, rec.AssignedBy != ""),
		AssignedDate: rec.AssignedDate.UTC(),
		LastModified: rec.LastModified.UTC(),
		IsActive:     rec.IsActive,
		Version:      rec.Version,
	}

	var err error
	if row.Permissions, err = toJSON(nonNilLevels(rec.Permissions)); err != nil {
		return row, err
	}
	customs := rec.CustomPermissions
	if customs == nil {
		customs = []permission.CustomPermission{}
	}
	if row.CustomPermissions, err = toJSON(customs); err != nil {
		return row, err
	}
	if row.ApprovalPermissions, err = toJSON(nonNilLevels(rec.ApprovalPermissions)); err != nil {
		return row, err
	}
	return row, nil
}

func nonNilLevels[K ~string](m map[K]rbac.Level) map[K]rbac.Level {
	if m == nil {
		return map[K]rbac.Level{}
	}
	return m
}

func (r permissionRow) record() (permission.Record, error) {
	rec := permission.Record{
		ID:           r.ID,
		StaffID:      r.StaffID,
		Role:         rbac.Role(r.Role),
		Department:   r.Department.String,
		AssignedBy:   r.AssignedBy.String,
		AssignedDate: r.AssignedDate.UTC(),
		LastModified: r.LastModified.UTC(),
		IsActive:     r.IsActive,
		Version:      r.Version,
	}
	if err := fromJSON(r.Permissions, &rec.Permissions); err != nil {
		return rec, err
	}
	if err := fromJSON(r.CustomPermissions, &rec.CustomPermissions); err != nil {
		return rec, err
	}
	if err := fromJSON(r.ApprovalPermissions, &rec.ApprovalPermissions); err != nil {
		return rec, err
	}
	return rec, nil
}

type permissionRepository struct {
	db sqlx.ExtContext
}

var _ permission.Repository = (*permissionRepository)(nil) // interface compliance check

func NewPermissionRepository(db sqlx.ExtContext) permission.Repository {
	return &permissionRepository{db: db}
}

const permissionColumns = `id, staff_id, role, department, permissions, custom_permissions,
	approval_permissions, assigned_by, assigned_date, last_modified, is_active, version`

func (repo *permissionRepository) FindActiveRecord(ctx context.Context, staffID string) (permission.Record, error) {
	var row permissionRow
	err := sqlx.GetContext(ctx, repo.db, &row,
		`SELECT `+permissionColumns+` FROM permission_records WHERE staff_id = $1 AND is_active`, staffID)
	if err != nil {
		if err == sql.ErrNoRows {
			return permission.Record{}, permission.ErrNotFound
		}
		return permission.Record{}, errors.Wrap(err, "selecting permission record")
	}
	return row.record()
}

func (repo *permissionRepository) CreateRecord(ctx context.Context, rec permission.Record) (permission.Record, error) {
	row, err := newPermissionRow(rec)
	if err != nil {
		return permission.Record{}, err
	}
	_, err = sqlx.NamedExecContext(ctx, repo.db, `
		INSERT INTO permission_records (`+permissionColumns+`)
		VALUES (:id, :staff_id, :role, :department, :permissions, :custom_permissions,
			:approval_permissions, :assigned_by, :assigned_date, :last_modified, :is_active, :version)`,
		row,
	)
	if err != nil {
		return permission.Record{}, mapError(errors.Wrap(err, "inserting permission record"))
	}
	return row.record()
}

func (repo *permissionRepository) UpdateRecord(ctx context.Context, rec permission.Record, version int) (permission.Record, error) {
	row, err := newPermissionRow(rec)
	if err != nil {
		return permission.Record{}, err
	}

	var updated permissionRow
	err = sqlx.GetContext(ctx, repo.db, &updated, `
		UPDATE permission_records SET
			role = $3, department = $4, permissions = $5, custom_permissions = $6,
			approval_permissions = $7, assigned_by = $8, last_modified = $9, is_active = $10,
			version = version + 1
		WHERE id = $1 AND version = $2
		RETURNING `+permissionColumns,
		row.ID, version, row.Role, row.Department, row.Permissions, row.CustomPermissions,
		row.ApprovalPermissions, row.AssignedBy, row.LastModified, row.IsActive,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return permission.Record{}, repo.missOrConflict(ctx, row.ID)
		}
		return permission.Record{}, mapError(errors.Wrap(err, "updating permission record"))
	}
	return updated.record()
}

func (repo *permissionRepository) missOrConflict(ctx context.Context, id string) error {
	var found bool
	err := sqlx.GetContext(ctx, repo.db, &found, `SELECT true FROM permission_records WHERE id = $1`, id)
	switch {
	case err == sql.ErrNoRows:
		return permission.ErrNotFound
	case err != nil:
		return errors.Wrap(err, "checking permission record")
	default:
		return core.ErrVersionConflict
	}
}

func (repo *permissionRepository) QueryActiveRecords(ctx context.Context, filter permission.QueryFilter) ([]permission.Record, error) {
	where := []string{"is_active"}
	var args []interface{}
	arg := func(v interface{}) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}

	if filter.Role != "" {
		where = append(where, "role = "+arg(filter.Role))
	}
	if filter.Department != "" {
		where = append(where, "lower(department) = lower("+arg(filter.Department)+")")
	}
	if filter.Search != "" {
		p := arg(likePattern(filter.Search))
		where = append(where, "(staff_id ILIKE "+p+likeEscape+" OR role ILIKE "+p+likeEscape+" OR department ILIKE "+p+likeEscape+")")
	}

	query := `SELECT ` + permissionColumns + ` FROM permission_records WHERE ` +
		strings.Join(where, " AND ") + ` ORDER BY assigned_date, id`

	var rows []permissionRow
	if err := sqlx.SelectContext(ctx, repo.db, &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "selecting permission records")
	}
	records := make([]permission.Record, 0, len(rows))
	for _, row := range rows {
		rec, err := row.record()
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

func (repo *permissionRepository) CountActiveByRole(ctx context.Context) ([]permission.RoleCount, error) {
	var rows []struct {
		Role  string `db:"role"`
		Count int    `db:"count"`
	}
	err := sqlx.SelectContext(ctx, repo.db, &rows,
		`SELECT role, COUNT(*) AS count FROM permission_records WHERE is_active GROUP BY role`)
	if err != nil {
		return nil, errors.Wrap(err, "counting permission records")
	}
	counts := make([]permission.RoleCount, 0, len(rows))
	for _, r := range rows {
		counts = append(counts, permission.RoleCount{Role: rbac.Role(r.Role), Count: r.Count})
	}
	return counts, nil
}
