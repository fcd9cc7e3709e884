package echoapi

import (
	"net/http"
	"net/url"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/adribv/edutool/core"
	"github.com/adribv/edutool/core/permission"
	"github.com/adribv/edutool/core/rbac"
	"github.com/adribv/edutool/core/staff"
)

type permissionAPI struct {
	svc      permission.Service
	staffSvc staff.Service
	logger   core.Logger
}

func registerPermissionAPI(g *echo.Group, gt *gate, svc permission.Service, staffSvc staff.Service, logger core.Logger) {
	api := permissionAPI{svc: svc, staffSvc: staffSvc, logger: logger}

	view := gt.authorize(action(string(rbac.ModuleStaff), rbac.ActionView))
	edit := gt.authorize(action(string(rbac.ModuleStaff), rbac.ActionEdit))

	pg := g.Group("/permissions")
	pg.GET("/me", api.me)
	pg.GET("/defaults/:role", api.defaults)
	pg.GET("", api.query, view)
	pg.GET("/summary", api.summary, view)
	pg.POST("/bulk", api.bulkUpsert, edit)

	// detail endpoints
	pg.GET("/:staffId", api.retrieve, view)
	pg.PUT("/:staffId", api.upsert, edit)
	pg.DELETE("/:staffId", api.deactivate, edit)
}

type bulkPermissionsRequest struct {
	Assignments []permission.Assignment `json:"assignments"`
}

// Handlers

func (api *permissionAPI) me(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	rec, err := api.svc.FindActiveByStaff(ctx.Request().Context(), claims.Subject)
	if err != nil {
		if errors.Cause(err) == permission.ErrNotFound {
			return respond(ctx, http.StatusOK, nil)
		}
		return errors.Wrap(err, "finding caller permissions")
	}
	return respond(ctx, http.StatusOK, rec)
}

func (api *permissionAPI) defaults(ctx echo.Context) error {
	role := ctx.Param("role")
	if unescaped, err := url.PathUnescape(role); err == nil {
		role = unescaped
	}
	if !rbac.Role(role).Valid() {
		return core.NewFieldError("role", "unknown role "+role)
	}
	return respond(ctx, http.StatusOK, echo.Map{
		"role":        role,
		"permissions": rbac.ResolveDefaults(rbac.Role(role), ctx.QueryParam("department")),
	})
}

func (api *permissionAPI) query(ctx echo.Context) error {
	var filter permission.QueryFilter
	if err := ctx.Bind(&filter); err != nil {
		return errors.Wrap(err, "binding to QueryFilter")
	}
	records, err := api.svc.QueryActive(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying permissions")
	}
	return respond(ctx, http.StatusOK, records)
}

func (api *permissionAPI) summary(ctx echo.Context) error {
	counts, err := api.svc.RoleSummary(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "summarizing permissions")
	}
	return respond(ctx, http.StatusOK, counts)
}

func (api *permissionAPI) retrieve(ctx echo.Context) error {
	rec, err := api.svc.FindActiveByStaff(ctx.Request().Context(), ctx.Param("staffId"))
	if err != nil {
		return errors.Wrap(err, "finding permissions")
	}
	return respond(ctx, http.StatusOK, rec)
}

func (api *permissionAPI) upsert(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	var data permission.Assignment
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Assignment")
	}
	data.StaffID = ctx.Param("staffId")
	data.AssignedBy = claims.Subject

	rec, created, err := api.svc.Upsert(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "upserting permissions")
	}
	api.syncStaff(ctx, rec.StaffID, rbac.Role(data.Role), data.Department)

	if created {
		return respond(ctx, http.StatusCreated, rec, "Permissions assigned")
	}
	return respond(ctx, http.StatusOK, rec, "Permissions updated")
}

func (api *permissionAPI) bulkUpsert(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	var data bulkPermissionsRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to bulkPermissionsRequest")
	}
	if data.Assignments == nil {
		return core.NewFieldError("assignments", "assignments is required")
	}

	for i := range data.Assignments {
		data.Assignments[i].AssignedBy = claims.Subject
	}
	results := api.svc.BulkUpsert(ctx.Request().Context(), data.Assignments)
	for i, res := range results {
		if res.Success {
			api.syncStaff(ctx, res.StaffID, rbac.Role(data.Assignments[i].Role), data.Assignments[i].Department)
		}
	}
	return respond(ctx, http.StatusOK, results)
}

func (api *permissionAPI) deactivate(ctx echo.Context) error {
	rec, err := api.svc.Deactivate(ctx.Request().Context(), ctx.Param("staffId"))
	if err != nil {
		return errors.Wrap(err, "deactivating permissions")
	}
	return respond(ctx, http.StatusOK, rec, "Permissions deactivated")
}

// syncStaff mirrors an assignment's role and department onto the staff record.
// The grant is already stored, so a failure here is only logged.
func (api *permissionAPI) syncStaff(ctx echo.Context, staffID string, role rbac.Role, department string) {
	if role == "" && department == "" {
		return
	}
	if _, err := api.staffSvc.SyncAssignment(ctx.Request().Context(), staffID, role, department); err != nil {
		api.logger.Error("syncing staff assignment", errors.Wrap(err, "syncing staff assignment"), contextPerson(ctx))
	}
}
