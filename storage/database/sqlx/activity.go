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
	"github.com/adribv/edutool/core/activity"
)

type activityRow struct {
	ID                  string         `db:"id"`
	StaffID             string         `db:"staff_id"`
	Department          null.String    `db:"department"`
	Remarks             null.String    `db:"remarks"`
	ActivityAssignments types.JSONText `db:"activity_assignments"`
	AssignedBy          null.String    `db:"assigned_by"`
	AssignedDate        time.Time      `db:"assigned_date"`
	LastModified        time.Time      `db:"last_modified"`
	IsActive            bool           `db:"is_active"`
	Version             int            `db:"version"`
}

func newActivityRow(rec activity.Record) (activityRow, error) {
	row := activityRow{
		ID:           rec.ID,
		StaffID:      rec.StaffID,
		Department:   null.NewString(rec.Department, rec.Department != ""),
		Remarks:      null.NewString(rec.Remarks, rec.Remarks != ""),
		AssignedBy:   null.NewString(rec.AssignedBy, rec.AssignedBy != ""),
		AssignedDate: rec.AssignedDate.UTC(),
		LastModified: rec.LastModified.UTC(),
		IsActive:     rec.IsActive,
		Version:      rec.Version,
	}
	list := rec.ActivityAssignments
	if list == nil {
		list = []activity.ActivityAssignment{}
	}
	var err error
	row.ActivityAssignments, err = toJSON(list)
	return row, err
}

func (r activityRow) record() (activity.Record, error) {
	rec := activity.Record{
		ID:           r.ID,
		StaffID:      r.StaffID,
		Department:   r.Department.String,
		Remarks:      r.Remarks.String,
		AssignedBy:   r.AssignedBy.String,
		AssignedDate: r.AssignedDate.UTC(),
		LastModified: r.LastModified.UTC(),
		IsActive:     r.IsActive,
		Version:      r.Version,
	}
	err := fromJSON(r.ActivityAssignments, &rec.ActivityAssignments)
	return rec, err
}

type activityRepository struct {
	db sqlx.ExtContext
}

var _ activity.Repository = (*activityRepository)(nil) // interface compliance check

func NewActivityRepository(db sqlx.ExtContext) activity.Repository {
	return &activityRepository{db: db}
}

const activityColumns = `id, staff_id, department, remarks, activity_assignments,
	assigned_by, assigned_date, last_modified, is_active, version`

func (repo *activityRepository) FindActiveRecord(ctx context.Context, staffID string) (activity.Record, error) {
	var row activityRow
	err := sqlx.GetContext(ctx, repo.db, &row,
		`SELECT `+activityColumns+` FROM activities_control_records WHERE staff_id = $1 AND is_active`, staffID)
	if err != nil {
		if err == sql.ErrNoRows {
			return activity.Record{}, activity.ErrNotFound
		}
		return activity.Record{}, errors.Wrap(err, "selecting activities control record")
	}
	return row.record()
}

func (repo *activityRepository) CreateRecord(ctx context.Context, rec activity.Record) (activity.Record, error) {
	row, err := newActivityRow(rec)
	if err != nil {
		return activity.Record{}, err
	}
	_, err = sqlx.NamedExecContext(ctx, repo.db, `
		INSERT INTO activities_control_records (`+activityColumns+`)
		VALUES (:id, :staff_id, :department, :remarks, :activity_assignments,
			:assigned_by, :assigned_date, :last_modified, :is_active, :version)`,
		row,
	)
	if err != nil {
		return activity.Record{}, mapError(errors.Wrap(err, "inserting activities control record"))
	}
	return row.record()
}

func (repo *activityRepository) UpdateRecord(ctx context.Context, rec activity.Record, version int) (activity.Record, error) {
	row, err := newActivityRow(rec)
	if err != nil {
		return activity.Record{}, err
	}

	var updated activityRow
	err = sqlx.GetContext(ctx, repo.db, &updated, `
		UPDATE activities_control_records SET
			department = $3, remarks = $4, activity_assignments = $5, assigned_by = $6,
			last_modified = $7, is_active = $8, version = version + 1
		WHERE id = $1 AND version = $2
		RETURNING `+activityColumns,
		row.ID, version, row.Department, row.Remarks, row.ActivityAssignments,
		row.AssignedBy, row.LastModified, row.IsActive,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			var found bool
			switch ferr := sqlx.GetContext(ctx, repo.db, &found,
				`SELECT true FROM activities_control_records WHERE id = $1`, row.ID); {
			case ferr == sql.ErrNoRows:
				return activity.Record{}, activity.ErrNotFound
			case ferr != nil:
				return activity.Record{}, errors.Wrap(ferr, "checking activities control record")
			}
			return activity.Record{}, core.ErrVersionConflict
		}
		return activity.Record{}, mapError(errors.Wrap(err, "updating activities control record"))
	}
	return updated.record()
}

// QueryActiveRecords filters on department and search in SQL. The activity filter
// depends on the access scale so it is applied once the rows are decoded.
func (repo *activityRepository) QueryActiveRecords(ctx context.Context, filter activity.QueryFilter) ([]activity.Record, error) {
	where := []string{"is_active"}
	var args []interface{}
	arg := func(v interface{}) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}

	if filter.Department != "" {
		where = append(where, "lower(department) = lower("+arg(filter.Department)+")")
	}
	if filter.Search != "" {
		p := arg(likePattern(filter.Search))
		where = append(where, "(staff_id ILIKE "+p+likeEscape+" OR department ILIKE "+p+likeEscape+" OR remarks ILIKE "+p+likeEscape+")")
	}

	query := `SELECT ` + activityColumns + ` FROM activities_control_records WHERE ` +
		strings.Join(where, " AND ") + ` ORDER BY assigned_date, id`

	var rows []activityRow
	if err := sqlx.SelectContext(ctx, repo.db, &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "selecting activities control records")
	}
	records := make([]activity.Record, 0, len(rows))
	for _, row := range rows {
		rec, err := row.record()
		if err != nil {
			return nil, err
		}
		if filter.Activity != "" && !filter.Match(rec) {
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}
