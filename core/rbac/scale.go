package rbac

// Level is an access level on a Scale.
type Level string

// Module access levels
const (
	NoAccess   Level = "No Access"
	ViewAccess Level = "View Access"
	EditAccess Level = "Edit Access"
)

// Activity access levels
const (
	Unauthorized Level = "Unauthorized"
	View         Level = "View"
	Edit         Level = "Edit"
	Approve      Level = "Approve"
)

// Scale is a totally ordered set of access levels, lowest first.
type Scale struct {
	name   string
	levels []Level
}

var (
	// ModuleScale orders the levels of permission records.
	ModuleScale = NewScale("module", NoAccess, ViewAccess, EditAccess)

	// ActivityScale orders the levels of activities control records.
	ActivityScale = NewScale("activity", Unauthorized, View, Edit, Approve)
)

// NewScale returns a Scale ranking levels in the given order, lowest first.
func NewScale(name string, levels ...Level) Scale {
	if len(levels) == 0 {
		panic("rbac: a scale needs at least one level")
	}
	return Scale{name: name, levels: append([]Level(nil), levels...)}
}

func (s Scale) Name() string { return s.name }

func (s Scale) Levels() []Level {
	return append([]Level(nil), s.levels...)
}

// Rank returns the position of l on the scale, or -1 when l is not part of it.
func (s Scale) Rank(l Level) int {
	for i, lvl := range s.levels {
		if lvl == l {
			return i
		}
	}
	return -1
}

func (s Scale) Valid(l Level) bool {
	return s.Rank(l) >= 0
}

func (s Scale) Lowest() Level {
	return s.levels[0]
}

func (s Scale) Highest() Level {
	return s.levels[len(s.levels)-1]
}

// Allows reports whether current ranks at or above required.
// Levels outside the scale never satisfy and are never satisfied.
func (s Scale) Allows(current, required Level) bool {
	req := s.Rank(required)
	if req < 0 {
		return false
	}
	cur := s.Rank(current)
	if cur < 0 {
		cur = 0
	}
	return cur >= req
}
