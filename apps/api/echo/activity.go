package echoapi

import (
	"net/http"
	"sort"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/adribv/edutool/core"
	"github.com/adribv/edutool/core/activity"
	"github.com/adribv/edutool/core/rbac"
	"github.com/adribv/edutool/core/staff"
)

type activityAPI struct {
	svc      activity.Service
	staffSvc staff.Service
	gate     *gate
	logger   core.Logger
}

func registerActivityAPI(g *echo.Group, gt *gate, svc activity.Service, staffSvc staff.Service, logger core.Logger) {
	api := activityAPI{svc: svc, staffSvc: staffSvc, gate: gt, logger: logger}

	staffMgmt := string(rbac.ActivityStaffManagement)
	view := gt.authorize(single(KindActivities, staffMgmt, rbac.View))
	edit := gt.authorize(single(KindActivities, staffMgmt, rbac.Edit))
	dashboard := gt.authorize(Policy{Kind: KindActivities, Mode: ModeAnyAccess})

	ag := g.Group("/activities")
	ag.GET("/catalog", api.catalog)
	ag.GET("/me", api.me, gt.loadActivities())
	ag.GET("/dashboard", api.dashboard, dashboard)
	ag.POST("/check", api.check)
	ag.GET("", api.query, view)
	ag.GET("/summary", api.summary, view)
	ag.POST("/bulk", api.bulkUpsert, edit)

	// detail endpoints
	ag.GET("/:staffId", api.retrieve, view)
	ag.PUT("/:staffId", api.upsert, edit)
	ag.DELETE("/:staffId", api.deactivate, edit)
}

type (
	catalogResponse struct {
		Groups         []rbac.ActivityGroupView `json:"groups"`
		ActivityLevels []rbac.Level             `json:"activityLevels"`
		Modules        []rbac.Module            `json:"modules"`
		ModuleLevels   []rbac.Level             `json:"moduleLevels"`
		Roles          []rbac.Role              `json:"roles"`
		ApprovalKeys   []rbac.ApprovalKey       `json:"approvalKeys"`
	}

	dashboardResponse struct {
		Configured bool                     `json:"configured"`
		Groups     []rbac.ActivityGroupView `json:"groups"`
	}

	checkRequest struct {
		Activities map[rbac.Activity]rbac.Level `json:"activities"`
		// Mode is "all" (default) or "any".
		Mode string `json:"mode"`
	}

	bulkActivitiesRequest struct {
		Assignments []activity.Assignment `json:"assignments"`
	}
)

// Handlers

func (api *activityAPI) catalog(ctx echo.Context) error {
	return respond(ctx, http.StatusOK, catalogResponse{
		Groups:         rbac.ActivityGroups(),
		ActivityLevels: rbac.ActivityScale.Levels(),
		Modules:        rbac.AllModules(),
		ModuleLevels:   rbac.ModuleScale.Levels(),
		Roles:          rbac.AllRoles(),
		ApprovalKeys:   rbac.AllApprovalKeys(),
	})
}

func (api *activityAPI) me(ctx echo.Context) error {
	if rec, ok := ctx.Get(ContextActivitiesRecord).(activity.Record); ok {
		return respond(ctx, http.StatusOK, rec)
	}
	return respond(ctx, http.StatusOK, nil)
}

func (api *activityAPI) dashboard(ctx echo.Context) error {
	rec, ok := ctx.Get(ContextActivitiesRecord).(activity.Record)
	if !ok {
		return respond(ctx, http.StatusOK, dashboardResponse{Groups: []rbac.ActivityGroupView{}})
	}
	return respond(ctx, http.StatusOK, dashboardResponse{Configured: true, Groups: rec.Accessible()})
}

// check tells whether the caller holds every activity level of the body, or one of them
// with mode "any". Checks run in activity name order, so the pair named by a denial is stable.
func (api *activityAPI) check(ctx echo.Context) error {
	var data checkRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to checkRequest")
	}
	if len(data.Activities) == 0 {
		return core.NewFieldError("activities", "activities is required")
	}
	mode := ModeAll
	switch core.CleanString(data.Mode, true /* lower */) {
	case "", "all":
	case "any":
		mode = ModeAny
	default:
		return core.NewFieldError("mode", "mode must be all or any")
	}

	checks := make([]Check, 0, len(data.Activities))
	for act, lvl := range data.Activities {
		if !act.Valid() {
			return core.NewFieldError("activities", "unknown activity "+string(act))
		}
		if !rbac.ActivityScale.Valid(lvl) {
			return core.NewFieldError("activities", "invalid level "+string(lvl)+" for "+string(act))
		}
		checks = append(checks, Check{Key: string(act), Level: lvl})
	}
	sort.Slice(checks, func(i, j int) bool { return checks[i].Key < checks[j].Key })

	if err := api.gate.decide(ctx, Policy{Kind: KindActivities, Mode: mode, Checks: checks}); err != nil {
		return err
	}
	level, _ := ctx.Get(ContextAccessLevel).(rbac.Level)
	return respond(ctx, http.StatusOK, echo.Map{"allowed": true, "accessLevel": level})
}

func (api *activityAPI) query(ctx echo.Context) error {
	var filter activity.QueryFilter
	if err := ctx.Bind(&filter); err != nil {
		return errors.Wrap(err, "binding to QueryFilter")
	}
	records, err := api.svc.QueryActive(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying activities control")
	}
	return respond(ctx, http.StatusOK, records)
}

func (api *activityAPI) summary(ctx echo.Context) error {
	counts, err := api.svc.ActivitySummary(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "summarizing activities control")
	}
	return respond(ctx, http.StatusOK, counts)
}

func (api *activityAPI) retrieve(ctx echo.Context) error {
	rec, err := api.svc.FindActiveByStaff(ctx.Request().Context(), ctx.Param("staffId"))
	if err != nil {
		return errors.Wrap(err, "finding activities control")
	}
	return respond(ctx, http.StatusOK, rec)
}

func (api *activityAPI) upsert(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	var data activity.Assignment
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Assignment")
	}
	data.StaffID = ctx.Param("staffId")
	data.AssignedBy = claims.Subject

	rec, created, err := api.svc.Upsert(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "upserting activities control")
	}
	api.syncDepartment(ctx, rec.StaffID, data.Department)

	if created {
		return respond(ctx, http.StatusCreated, rec, "Activities assigned")
	}
	return respond(ctx, http.StatusOK, rec, "Activities updated")
}

func (api *activityAPI) bulkUpsert(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	var data bulkActivitiesRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to bulkActivitiesRequest")
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
			api.syncDepartment(ctx, res.StaffID, data.Assignments[i].Department)
		}
	}
	return respond(ctx, http.StatusOK, results)
}

func (api *activityAPI) deactivate(ctx echo.Context) error {
	rec, err := api.svc.Deactivate(ctx.Request().Context(), ctx.Param("staffId"))
	if err != nil {
		return errors.Wrap(err, "deactivating activities control")
	}
	return respond(ctx, http.StatusOK, rec, "Activities deactivated")
}

func (api *activityAPI) syncDepartment(ctx echo.Context, staffID, department string) {
	if department == "" {
		return
	}
	if _, err := api.staffSvc.SyncAssignment(ctx.Request().Context(), staffID, "", department); err != nil {
		api.logger.Error("syncing staff department", errors.Wrap(err, "syncing staff department"), contextPerson(ctx))
	}
}
