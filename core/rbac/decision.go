package rbac

import (
	"strings"

	"github.com/pkg/errors"
)

// Grants is a set of access levels keyed by module or activity name.
// Both permission records and activities control records implement it.
type Grants interface {
	// Level returns the level granted for key, if any.
	Level(key string) (Level, bool)
	// Range calls fn for every granted key until fn returns false.
	Range(fn func(key string, level Level) bool)
}

// CurrentLevel returns the level g grants for key, falling back to the lowest level of the scale.
func CurrentLevel(g Grants, scale Scale, key string) Level {
	if g == nil {
		return scale.Lowest()
	}
	lvl, ok := g.Level(key)
	if !ok || !scale.Valid(lvl) {
		return scale.Lowest()
	}
	return lvl
}

// HasAccess reports whether g grants at least required for key.
// A missing record or key is a denial, never an error.
func HasAccess(g Grants, scale Scale, key string, required Level) bool {
	return scale.Allows(CurrentLevel(g, scale, key), required)
}

// HasAnyAccess reports whether g grants anything above the lowest level of the scale.
func HasAnyAccess(g Grants, scale Scale) bool {
	if g == nil {
		return false
	}
	var found bool
	g.Range(func(_ string, lvl Level) bool {
		if scale.Rank(lvl) > 0 {
			found = true
			return false
		}
		return true
	})
	return found
}

// Action is a coarse request verb mapped to a required level by an ActionPolicy.
type Action string

const (
	ActionView    Action = "view"
	ActionEdit    Action = "edit"
	ActionCreate  Action = "create"
	ActionDelete  Action = "delete"
	ActionApprove Action = "approve"
	ActionReject  Action = "reject"
)

// ActionPolicy maps actions to the level they require on a scale.
type ActionPolicy struct {
	scale    Scale
	required map[Action]Level
}

// DefaultActionPolicy is the module action vocabulary:
// view needs View Access, edit and create need Edit Access, the rest need the highest level.
func DefaultActionPolicy() ActionPolicy {
	return ActionPolicy{
		scale: ModuleScale,
		required: map[Action]Level{
			ActionView:    ViewAccess,
			ActionEdit:    EditAccess,
			ActionCreate:  EditAccess,
			ActionDelete:  ModuleScale.Highest(),
			ActionApprove: ModuleScale.Highest(),
			ActionReject:  ModuleScale.Highest(),
		},
	}
}

// WithOverrides returns a copy of the policy where each action in overrides requires the given level.
// Keys are matched case-insensitively.
func (p ActionPolicy) WithOverrides(overrides map[string]string) (ActionPolicy, error) {
	np := ActionPolicy{scale: p.scale, required: make(map[Action]Level, len(p.required)+len(overrides))}
	for act, lvl := range p.required {
		np.required[act] = lvl
	}
	for act, lvl := range overrides {
		level := Level(lvl)
		if !p.scale.Valid(level) {
			return ActionPolicy{}, errors.Errorf("action %q: level %q is not on the %s scale", act, lvl, p.scale.Name())
		}
		np.required[Action(strings.ToLower(strings.TrimSpace(act)))] = level
	}
	return np, nil
}

// Required returns the level an action requires.
func (p ActionPolicy) Required(act Action) (Level, bool) {
	lvl, ok := p.required[act]
	return lvl, ok
}

func (p ActionPolicy) Scale() Scale { return p.scale }

// Allows reports whether g may perform act on key. Unknown actions are denied.
func (p ActionPolicy) Allows(g Grants, key string, act Action) bool {
	lvl, ok := p.Required(act)
	if !ok {
		return false
	}
	return HasAccess(g, p.scale, key, lvl)
}

// MergeLevels writes every override onto base key by key and returns base.
// Keys missing from overrides keep their current level. A nil base is allocated.
func MergeLevels[K ~string](base, overrides map[K]Level) map[K]Level {
	if base == nil {
		base = make(map[K]Level, len(overrides))
	}
	for k, lvl := range overrides {
		base[k] = lvl
	}
	return base
}

// CopyLevels returns a shallow copy of m; nil stays nil.
func CopyLevels[K ~string](m map[K]Level) map[K]Level {
	if m == nil {
		return nil
	}
	cp := make(map[K]Level, len(m))
	for k, lvl := range m {
		cp[k] = lvl
	}
	return cp
}
