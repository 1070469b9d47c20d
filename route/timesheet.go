package route

// Route names used by the timesheet application.
const (
	NameLogin          = "login"
	NameDashboard      = "dashboard"
	NameProjects       = "projects"
	NameReports        = "reports"
	NameLogs           = "logs"
	NameEmailSettings  = "email-settings"
	NameTeamTimesheets = "team-timesheets"
	NameLogWork        = "log-work"
	NameEmployees      = "employees"
)

// TimesheetRoutes returns the route descriptors of the timesheet front end.
func TimesheetRoutes() []Route {
	return []Route{
		{Path: "/login", Name: NameLogin, View: "Login"},
		{Path: "/", Name: NameDashboard, View: "Dashboard", Requires: Requires(RequireAuth)},
		{Path: "/projects", Name: NameProjects, View: "Projects", Requires: Requires(RequireAuth)},
		{Path: "/reports", Name: NameReports, View: "Reports", Requires: Requires(RequireAuth)},
		{Path: "/logs", Name: NameLogs, View: "ActivityLogs", Requires: Requires(RequireAuth, RequireAdmin)},
		{Path: "/email-settings", Name: NameEmailSettings, View: "EmailSettings", Requires: Requires(RequireAuth, RequireAdmin)},
		{Path: "/team-timesheets", Name: NameTeamTimesheets, View: "TeamTimesheets", Requires: Requires(RequireAuth, RequireTeamLeader)},
		{Path: "/log-work", Name: NameLogWork, View: "LogWork"},
		{Path: "/employees", Name: NameEmployees, View: "Employees", Requires: Requires(RequireAuth)},
	}
}

// TimesheetTable builds the timesheet route table.
func TimesheetTable() (*Table, error) {
	return NewTable(TimesheetRoutes()...)
}
