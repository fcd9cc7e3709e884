package rbac

// ResolveDefaults returns the default module permissions of a role.
// Roles without a default table get an empty map: every module then reads as No Access.
// The department is accepted but does not change the result.
func ResolveDefaults(role Role, _ string) map[Module]Level {
	switch role {
	case RoleAdmin:
		return fill(EditAccess, nil)
	case RolePrincipal:
		return fill(EditAccess, map[Module]Level{
			ModulePayroll:  ViewAccess,
			ModuleSettings: ViewAccess,
		})
	case RoleVicePrincipal:
		return fill(ViewAccess, map[Module]Level{
			ModuleStudents:       EditAccess,
			ModuleTeachers:       EditAccess,
			ModuleClasses:        EditAccess,
			ModuleSubjects:       EditAccess,
			ModuleAttendance:     EditAccess,
			ModuleExaminations:   EditAccess,
			ModuleResults:        EditAccess,
			ModuleTimetable:      EditAccess,
			ModuleLessonPlans:    EditAccess,
			ModuleStaff:          EditAccess,
			ModuleLeaveRequests:  EditAccess,
			ModuleEvents:         EditAccess,
			ModuleCommunications: EditAccess,
			ModuleNotifications:  EditAccess,
			ModulePayroll:        NoAccess,
			ModuleSettings:       NoAccess,
		})
	case RoleHOD:
		return fill(NoAccess, map[Module]Level{
			ModuleStudents:       ViewAccess,
			ModuleTeachers:       ViewAccess,
			ModuleClasses:        ViewAccess,
			ModuleSubjects:       EditAccess,
			ModuleAttendance:     EditAccess,
			ModuleExaminations:   EditAccess,
			ModuleResults:        EditAccess,
			ModuleTimetable:      ViewAccess,
			ModuleLessonPlans:    EditAccess,
			ModuleLeaveRequests:  ViewAccess,
			ModuleReports:        ViewAccess,
			ModuleEvents:         ViewAccess,
			ModuleCommunications: ViewAccess,
			ModuleNotifications:  ViewAccess,
			ModuleDashboard:      ViewAccess,
		})
	case RoleTeacher:
		return fill(NoAccess, map[Module]Level{
			ModuleStudents:       ViewAccess,
			ModuleClasses:        ViewAccess,
			ModuleSubjects:       ViewAccess,
			ModuleAttendance:     EditAccess,
			ModuleExaminations:   ViewAccess,
			ModuleResults:        EditAccess,
			ModuleTimetable:      ViewAccess,
			ModuleLessonPlans:    EditAccess,
			ModuleLeaveRequests:  ViewAccess,
			ModuleEvents:         ViewAccess,
			ModuleCommunications: ViewAccess,
			ModuleNotifications:  ViewAccess,
			ModuleDashboard:      ViewAccess,
		})
	case RoleLibrarian:
		return fill(NoAccess, map[Module]Level{
			ModuleLibrary:       EditAccess,
			ModuleStudents:      ViewAccess,
			ModuleTeachers:      ViewAccess,
			ModuleInventory:     ViewAccess,
			ModuleEvents:        ViewAccess,
			ModuleNotifications: ViewAccess,
			ModuleLeaveRequests: ViewAccess,
			ModuleDashboard:     ViewAccess,
		})
	case RoleWellnessCounsellor:
		return fill(NoAccess, map[Module]Level{
			ModuleWellness:       EditAccess,
			ModuleCounselling:    EditAccess,
			ModuleStudents:       ViewAccess,
			ModuleParents:        ViewAccess,
			ModuleAttendance:     ViewAccess,
			ModuleCommunications: ViewAccess,
			ModuleNotifications:  ViewAccess,
			ModuleLeaveRequests:  ViewAccess,
			ModuleDashboard:      ViewAccess,
		})
	case RoleAccountant:
		return fill(NoAccess, map[Module]Level{
			ModuleFees:          EditAccess,
			ModulePayments:      EditAccess,
			ModuleExpenses:      EditAccess,
			ModulePayroll:       EditAccess,
			ModuleReports:       ViewAccess,
			ModuleStudents:      ViewAccess,
			ModuleStaff:         ViewAccess,
			ModuleParents:       ViewAccess,
			ModuleAdmissions:    ViewAccess,
			ModuleInventory:     ViewAccess,
			ModuleNotifications: ViewAccess,
			ModuleLeaveRequests: ViewAccess,
			ModuleDashboard:     ViewAccess,
		})
	default:
		return make(map[Module]Level)
	}
}

// HasDefaults reports whether ResolveDefaults knows a table for the role.
func HasDefaults(role Role) bool {
	return len(ResolveDefaults(role, "")) > 0
}

// fill returns a map covering every module with base, then applies overrides.
func fill(base Level, overrides map[Module]Level) map[Module]Level {
	perms := make(map[Module]Level, len(allModules))
	for _, m := range allModules {
		perms[m] = base
	}
	for m, lvl := range overrides {
		perms[m] = lvl
	}
	return perms
}
