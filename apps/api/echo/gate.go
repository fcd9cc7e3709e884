package echoapi

import (
	"context"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/adribv/edutool/core"
	"github.com/adribv/edutool/core/activity"
	"github.com/adribv/edutool/core/permission"
	"github.com/adribv/edutool/core/rbac"
)

// echo.Context keys set by the gate
const (
	ContextPermissionRecord = "permissionRecord"
	ContextActivitiesRecord = "activitiesRecord"
	ContextAccessLevel      = "accessLevel"
)

type (
	// GrantKind selects the record a Policy is checked against.
	GrantKind string

	// Mode tells how the checks of a Policy combine.
	Mode int

	// LookupErrorPolicy tells what to do when the record lookup itself fails.
	LookupErrorPolicy int

	// Check is one (key, level) requirement. When Action is set, Level is resolved
	// through the action policy when the gate is built.
	Check struct {
		Key    string
		Level  rbac.Level
		Action rbac.Action
	}

	// Policy describes what a route requires.
	Policy struct {
		Kind          GrantKind
		Mode          Mode
		Checks        []Check
		OnLookupError LookupErrorPolicy
	}
)

const (
	KindPermissions GrantKind = "permissions"
	KindActivities  GrantKind = "activities"
)

const (
	// ModeAll passes when every check passes. The first failing check names the denial.
	ModeAll Mode = iota
	// ModeAny passes when one check passes. The last checked pair names the denial.
	ModeAny
	// ModeAnyAccess passes when the staff member has no record at all,
	// or when any key of the record ranks above the lowest level.
	ModeAnyAccess
)

const (
	FailHard LookupErrorPolicy = iota
	Continue
)

// decision results, as counted by the metrics
const (
	resultAllowed      = "allowed"
	resultUnconfigured = "unconfigured"
	resultDenied       = "denied"
	resultNoRecord     = "no_record"
	resultError        = "error"
	resultAnonymous    = "unauthenticated"
)

const errCheckingPermissions = "Error checking permissions"

type gate struct {
	permissions permission.Service
	activities  activity.Service
	actions     rbac.ActionPolicy
	softLookup  bool
	logger      core.Logger
	decisions   *prometheus.CounterVec
}

func newGate(
	permissions permission.Service,
	activities activity.Service,
	actions rbac.ActionPolicy,
	softLookup bool,
	logger core.Logger,
	reg prometheus.Registerer,
) *gate {
	return &gate{
		permissions: permissions,
		activities:  activities,
		actions:     actions,
		softLookup:  softLookup,
		logger:      logger,
		decisions: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "edutool_access_decisions_total",
				Help: "Access decisions taken by the request gate",
			},
			[]string{"kind", "result"},
		),
	}
}

func (g *gate) scale(kind GrantKind) rbac.Scale {
	if kind == KindActivities {
		return rbac.ActivityScale
	}
	return rbac.ModuleScale
}

// resolve fills the level of action checks. Unknown actions are a programming error.
func (g *gate) resolve(p Policy) Policy {
	checks := make([]Check, len(p.Checks))
	for i, c := range p.Checks {
		if c.Action != "" {
			lvl, ok := g.actions.Required(c.Action)
			if !ok {
				panic(fmt.Sprintf("gate: unknown action %q for %s", c.Action, c.Key))
			}
			c.Level = lvl
		}
		checks[i] = c
	}
	p.Checks = checks
	if g.softLookup {
		p.OnLookupError = Continue
	}
	return p
}

type grantSet struct {
	grants rbac.Grants
	record interface{}
}

// lookup returns the caller's active record of the given kind.
func (g *gate) lookup(ctx context.Context, kind GrantKind, staffID string) (grantSet, error) {
	if kind == KindActivities {
		rec, err := g.activities.FindActiveByStaff(ctx, staffID)
		if err != nil {
			return grantSet{}, err
		}
		return grantSet{grants: rec, record: rec}, nil
	}
	rec, err := g.permissions.FindActiveByStaff(ctx, staffID)
	if err != nil {
		return grantSet{}, err
	}
	return grantSet{grants: rec, record: rec}, nil
}

func isNoRecord(err error) bool {
	cause := errors.Cause(err)
	return cause == permission.ErrNotFound || cause == activity.ErrNotFound
}

func contextRecordKey(kind GrantKind) string {
	if kind == KindActivities {
		return ContextActivitiesRecord
	}
	return ContextPermissionRecord
}

func (g *gate) count(kind GrantKind, result string) {
	g.decisions.WithLabelValues(string(kind), result).Inc()
}

func denied(c Check) error {
	return echo.NewHTTPError(http.StatusForbidden, fmt.Sprintf("Access denied: need %s for %s", c.Level, c.Key))
}

// decide runs p for the caller of ctx. A nil error means the request may continue.
// The record and level are attached to ctx when a record allowed it.
func (g *gate) decide(ctx echo.Context, p Policy) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		g.count(p.Kind, resultAnonymous)
		return err
	}

	set, err := g.lookup(ctx.Request().Context(), p.Kind, claims.Subject)
	switch {
	case err == nil:
	case isNoRecord(err):
		if p.Mode == ModeAnyAccess {
			g.count(p.Kind, resultUnconfigured)
			return nil
		}
		g.count(p.Kind, resultNoRecord)
		return echo.NewHTTPError(http.StatusForbidden, errors.Cause(err).Error())
	default:
		g.count(p.Kind, resultError)
		if p.OnLookupError == Continue {
			g.logger.Warn("access lookup failed, continuing", err, claims.person())
			return nil
		}
		return &echo.HTTPError{Code: http.StatusInternalServerError, Message: errCheckingPermissions, Internal: err}
	}

	scale := g.scale(p.Kind)
	var passed *Check
	switch p.Mode {
	case ModeAnyAccess:
		if !rbac.HasAnyAccess(set.grants, scale) {
			g.count(p.Kind, resultDenied)
			return echo.NewHTTPError(http.StatusForbidden, "Access denied: no "+string(p.Kind)+" granted")
		}
	case ModeAny:
		for i := range p.Checks {
			if rbac.HasAccess(set.grants, scale, p.Checks[i].Key, p.Checks[i].Level) {
				passed = &p.Checks[i]
				break
			}
		}
		if passed == nil {
			g.count(p.Kind, resultDenied)
			if len(p.Checks) == 0 {
				return echo.NewHTTPError(http.StatusForbidden, "Access denied")
			}
			return denied(p.Checks[len(p.Checks)-1])
		}
	default:
		for i := range p.Checks {
			if !rbac.HasAccess(set.grants, scale, p.Checks[i].Key, p.Checks[i].Level) {
				g.count(p.Kind, resultDenied)
				return denied(p.Checks[i])
			}
		}
		if len(p.Checks) > 0 {
			passed = &p.Checks[0]
		}
	}

	g.count(p.Kind, resultAllowed)
	ctx.Set(contextRecordKey(p.Kind), set.record)
	if passed != nil {
		ctx.Set(ContextAccessLevel, rbac.CurrentLevel(set.grants, scale, passed.Key))
	}
	return nil
}

// authorize returns a middleware enforcing p.
func (g *gate) authorize(p Policy) echo.MiddlewareFunc {
	p = g.resolve(p)
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			if err := g.decide(ctx, p); err != nil {
				return err
			}
			return next(ctx)
		}
	}
}

// loadActivities attaches the caller's activities record when there is one.
// It never fails the request: lookup errors are logged and skipped.
func (g *gate) loadActivities() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return err
			}
			rec, err := g.activities.FindActiveByStaff(ctx.Request().Context(), claims.Subject)
			switch {
			case err == nil:
				ctx.Set(ContextActivitiesRecord, rec)
			case !isNoRecord(err):
				g.logger.Warn("loading activities control failed", err, claims.person())
			}
			return next(ctx)
		}
	}
}

// single builds the common one-check policy.
func single(kind GrantKind, key string, level rbac.Level) Policy {
	return Policy{Kind: kind, Mode: ModeAll, Checks: []Check{{Key: key, Level: level}}}
}

func action(key string, act rbac.Action) Policy {
	return Policy{Kind: KindPermissions, Mode: ModeAll, Checks: []Check{{Key: key, Action: act}}}
}
