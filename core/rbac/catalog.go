package rbac

import "sort"

// Role is a staff role. The set of roles is closed; see AllRoles.
type Role string

// Roles
const (
	RoleAdmin              Role = "Admin"
	RolePrincipal          Role = "Principal"
	RoleVicePrincipal      Role = "Vice Principal"
	RoleHOD                Role = "HOD"
	RoleTeacher            Role = "Teacher"
	RoleAccountant         Role = "Accountant"
	RoleLibrarian          Role = "Librarian"
	RoleWellnessCounsellor Role = "Wellness Counsellor"
	RoleITSupport          Role = "IT Support"
	RoleOfficeManager      Role = "Office Manager"
	RoleFacilityManager    Role = "Facility Manager"
	RoleSupportStaff       Role = "Support Staff"
)

var allRoles = []Role{
	RoleAdmin,
	RolePrincipal,
	RoleVicePrincipal,
	RoleHOD,
	RoleTeacher,
	RoleAccountant,
	RoleLibrarian,
	RoleWellnessCounsellor,
	RoleITSupport,
	RoleOfficeManager,
	RoleFacilityManager,
	RoleSupportStaff,
}

func AllRoles() []Role {
	return append([]Role(nil), allRoles...)
}

func (r Role) Valid() bool {
	for _, role := range allRoles {
		if r == role {
			return true
		}
	}
	return false
}

// Module is a functional area of the system carrying its own access level in a permission record.
type Module string

// Modules
const (
	ModuleStudents       Module = "students"
	ModuleTeachers       Module = "teachers"
	ModuleClasses        Module = "classes"
	ModuleSubjects       Module = "subjects"
	ModuleAttendance     Module = "attendance"
	ModuleExaminations   Module = "examinations"
	ModuleResults        Module = "results"
	ModuleTimetable      Module = "timetable"
	ModuleLessonPlans    Module = "lessonPlans"
	ModuleFees           Module = "fees"
	ModulePayments       Module = "payments"
	ModuleExpenses       Module = "expenses"
	ModulePayroll        Module = "payroll"
	ModuleStaff          Module = "staff"
	ModuleParents        Module = "parents"
	ModuleAdmissions     Module = "admissions"
	ModuleReports        Module = "reports"
	ModuleSettings       Module = "settings"
	ModuleLibrary        Module = "library"
	ModuleTransport      Module = "transport"
	ModuleInventory      Module = "inventory"
	ModuleEvents         Module = "events"
	ModuleCommunications Module = "communications"
	ModuleNotifications  Module = "notifications"
	ModuleWellness       Module = "wellness"
	ModuleCounselling    Module = "counselling"
	ModuleLeaveRequests  Module = "leaveRequests"
	ModuleDashboard      Module = "dashboard"
)

var allModules = []Module{
	ModuleStudents,
	ModuleTeachers,
	ModuleClasses,
	ModuleSubjects,
	ModuleAttendance,
	ModuleExaminations,
	ModuleResults,
	ModuleTimetable,
	ModuleLessonPlans,
	ModuleFees,
	ModulePayments,
	ModuleExpenses,
	ModulePayroll,
	ModuleStaff,
	ModuleParents,
	ModuleAdmissions,
	ModuleReports,
	ModuleSettings,
	ModuleLibrary,
	ModuleTransport,
	ModuleInventory,
	ModuleEvents,
	ModuleCommunications,
	ModuleNotifications,
	ModuleWellness,
	ModuleCounselling,
	ModuleLeaveRequests,
	ModuleDashboard,
}

func AllModules() []Module {
	return append([]Module(nil), allModules...)
}

func (m Module) Valid() bool {
	for _, mod := range allModules {
		if m == mod {
			return true
		}
	}
	return false
}

// ApprovalKey is one of the areas where a staff member may approve requests.
type ApprovalKey string

const (
	ApproveLeaves         ApprovalKey = "leaves"
	ApproveExpenses       ApprovalKey = "expenses"
	ApproveEvents         ApprovalKey = "events"
	ApproveCommunications ApprovalKey = "communications"
)

var allApprovalKeys = []ApprovalKey{ApproveLeaves, ApproveExpenses, ApproveEvents, ApproveCommunications}

func AllApprovalKeys() []ApprovalKey {
	return append([]ApprovalKey(nil), allApprovalKeys...)
}

func (k ApprovalKey) Valid() bool {
	for _, key := range allApprovalKeys {
		if k == key {
			return true
		}
	}
	return false
}

// Activity is an entry of the activities control catalog.
type Activity string

// ActivityGroup is the display group an Activity belongs to.
type ActivityGroup string

const (
	GroupAdministration ActivityGroup = "Administration"
	GroupAcademics      ActivityGroup = "Academics"
	GroupStudents       ActivityGroup = "Student Affairs"
	GroupFinance        ActivityGroup = "Finance"
	GroupWellbeing      ActivityGroup = "Wellbeing"
	GroupOperations     ActivityGroup = "Operations"
	GroupCommunication  ActivityGroup = "Communication"
)

var groupOrder = []ActivityGroup{
	GroupAdministration,
	GroupAcademics,
	GroupStudents,
	GroupFinance,
	GroupWellbeing,
	GroupOperations,
	GroupCommunication,
}

// Activities
const (
	ActivityStaffManagement        Activity = "Staff Management"
	ActivityStaffAttendance        Activity = "Staff Attendance"
	ActivityLeaveApprovals         Activity = "Leave Approvals"
	ActivityDepartmentManagement   Activity = "Department Management"
	ActivityRoleAssignment         Activity = "Role Assignment"
	ActivitySchoolSettings         Activity = "School Settings"
	ActivityAuditLogs              Activity = "Audit Logs"
	ActivityAcademicCalendar       Activity = "Academic Calendar"
	ActivityClassManagement        Activity = "Class Management"
	ActivitySubjectManagement      Activity = "Subject Management"
	ActivityTimetableManagement    Activity = "Timetable Management"
	ActivityLessonPlans            Activity = "Lesson Plans"
	ActivityLessonPlanApprovals    Activity = "Lesson Plan Approvals"
	ActivityExamManagement         Activity = "Exam Management"
	ActivityQuestionPapers         Activity = "Question Papers"
	ActivityResultEntry            Activity = "Result Entry"
	ActivityResultApprovals        Activity = "Result Approvals"
	ActivityReportCards            Activity = "Report Cards"
	ActivityHomework               Activity = "Homework"
	ActivitySyllabusTracking       Activity = "Syllabus Tracking"
	ActivityStudentRecords         Activity = "Student Records"
	ActivityStudentAdmissions      Activity = "Student Admissions"
	ActivityStudentAttendance      Activity = "Student Attendance"
	ActivityStudentPromotions      Activity = "Student Promotions"
	ActivityDisciplinaryRecords    Activity = "Disciplinary Records"
	ActivityParentManagement       Activity = "Parent Management"
	ActivityTransferCertificates   Activity = "Transfer Certificates"
	ActivityFeeManagement          Activity = "Fee Management"
	ActivityFeeCollection          Activity = "Fee Collection"
	ActivityFeeConcessions         Activity = "Fee Concessions"
	ActivityExpenseManagement      Activity = "Expense Management"
	ActivityExpenseApprovals       Activity = "Expense Approvals"
	ActivityPayroll                Activity = "Payroll"
	ActivityBudgetPlanning         Activity = "Budget Planning"
	ActivityFinancialReports       Activity = "Financial Reports"
	ActivityCounsellingSessions    Activity = "Counselling Sessions"
	ActivityWellnessRecords        Activity = "Wellness Records"
	ActivityCounsellingRequests    Activity = "Counselling Requests"
	ActivitySpecialNeedsSupport    Activity = "Special Needs Support"
	ActivityHealthRecords          Activity = "Health Records"
	ActivityLibraryManagement      Activity = "Library Management"
	ActivityInventoryManagement    Activity = "Inventory Management"
	ActivityTransportManagement    Activity = "Transport Management"
	ActivityFacilityBookings       Activity = "Facility Bookings"
	ActivityMaintenanceRequests    Activity = "Maintenance Requests"
	ActivityITSupportTickets       Activity = "IT Support Tickets"
	ActivityEventManagement        Activity = "Event Management"
	ActivityEventApprovals         Activity = "Event Approvals"
	ActivityCircularsAndNotices    Activity = "Circulars and Notices"
	ActivityCommunicationApprovals Activity = "Communication Approvals"
)

type activityEntry struct {
	activity Activity
	group    ActivityGroup
}

var activityCatalog = []activityEntry{
	{ActivityStaffManagement, GroupAdministration},
	{ActivityStaffAttendance, GroupAdministration},
	{ActivityLeaveApprovals, GroupAdministration},
	{ActivityDepartmentManagement, GroupAdministration},
	{ActivityRoleAssignment, GroupAdministration},
	{ActivitySchoolSettings, GroupAdministration},
	{ActivityAuditLogs, GroupAdministration},
	{ActivityAcademicCalendar, GroupAcademics},
	{ActivityClassManagement, GroupAcademics},
	{ActivitySubjectManagement, GroupAcademics},
	{ActivityTimetableManagement, GroupAcademics},
	{ActivityLessonPlans, GroupAcademics},
	{ActivityLessonPlanApprovals, GroupAcademics},
	{ActivityExamManagement, GroupAcademics},
	{ActivityQuestionPapers, GroupAcademics},
	{ActivityResultEntry, GroupAcademics},
	{ActivityResultApprovals, GroupAcademics},
	{ActivityReportCards, GroupAcademics},
	{ActivityHomework, GroupAcademics},
	{ActivitySyllabusTracking, GroupAcademics},
	{ActivityStudentRecords, GroupStudents},
	{ActivityStudentAdmissions, GroupStudents},
	{ActivityStudentAttendance, GroupStudents},
	{ActivityStudentPromotions, GroupStudents},
	{ActivityDisciplinaryRecords, GroupStudents},
	{ActivityParentManagement, GroupStudents},
	{ActivityTransferCertificates, GroupStudents},
	{ActivityFeeManagement, GroupFinance},
	{ActivityFeeCollection, GroupFinance},
	{ActivityFeeConcessions, GroupFinance},
	{ActivityExpenseManagement, GroupFinance},
	{ActivityExpenseApprovals, GroupFinance},
	{ActivityPayroll, GroupFinance},
	{ActivityBudgetPlanning, GroupFinance},
	{ActivityFinancialReports, GroupFinance},
	{ActivityCounsellingSessions, GroupWellbeing},
	{ActivityWellnessRecords, GroupWellbeing},
	{ActivityCounsellingRequests, GroupWellbeing},
	{ActivitySpecialNeedsSupport, GroupWellbeing},
	{ActivityHealthRecords, GroupWellbeing},
	{ActivityLibraryManagement, GroupOperations},
	{ActivityInventoryManagement, GroupOperations},
	{ActivityTransportManagement, GroupOperations},
	{ActivityFacilityBookings, GroupOperations},
	{ActivityMaintenanceRequests, GroupOperations},
	{ActivityITSupportTickets, GroupOperations},
	{ActivityEventManagement, GroupCommunication},
	{ActivityEventApprovals, GroupCommunication},
	{ActivityCircularsAndNotices, GroupCommunication},
	{ActivityCommunicationApprovals, GroupCommunication},
}

func AllActivities() []Activity {
	all := make([]Activity, 0, len(activityCatalog))
	for _, e := range activityCatalog {
		all = append(all, e.activity)
	}
	return all
}

func (a Activity) Valid() bool {
	_, ok := a.Group()
	return ok
}

// Group returns the display group of the activity.
func (a Activity) Group() (ActivityGroup, bool) {
	for _, e := range activityCatalog {
		if e.activity == a {
			return e.group, true
		}
	}
	return "", false
}

// ActivityGroupView is one group of the grouped catalog shown by the frontend.
type ActivityGroupView struct {
	Group      ActivityGroup `json:"group"`
	Activities []Activity    `json:"activities"`
}

// ActivityGroups projects the activity catalog into its display groups.
func ActivityGroups() []ActivityGroupView {
	byGroup := make(map[ActivityGroup][]Activity, len(groupOrder))
	for _, e := range activityCatalog {
		byGroup[e.group] = append(byGroup[e.group], e.activity)
	}

	views := make([]ActivityGroupView, 0, len(byGroup))
	for _, g := range groupOrder {
		acts := byGroup[g]
		sort.Slice(acts, func(i, j int) bool { return acts[i] < acts[j] })
		views = append(views, ActivityGroupView{Group: g, Activities: acts})
	}
	return views
}
