package domain

type Role string

const (
	RoleAdmin    Role = "admin"
	RoleHR       Role = "hr"
	RoleManager  Role = "manager"
	RoleEmployee Role = "employee"
)

type Permission string

const (
	PermManagePayroll    Permission = "payroll.manage"
	PermManageEmployees  Permission = "employees.manage"
	PermViewReports      Permission = "reports.view"
	PermManageCompany    Permission = "company.manage"
	PermViewOwnRecords   Permission = "records.view_own"
	PermApproveLeave     Permission = "leave.approve"
	PermRunBackups       Permission = "backups.run"
	PermViewNotification Permission = "notifications.view"
)

// capabilities is the single source of truth for role -> permission mapping.
// Audience predicates below are derived from the same table so fan-out and
// the permission middleware agree on who sees what.
var capabilities = map[Role][]Permission{
	RoleAdmin: {PermManagePayroll, PermManageEmployees, PermViewReports,
		PermManageCompany, PermApproveLeave, PermRunBackups, PermViewNotification, PermViewOwnRecords},
	RoleHR: {PermManagePayroll, PermManageEmployees, PermViewReports,
		PermApproveLeave, PermViewNotification, PermViewOwnRecords},
	RoleManager:  {PermViewReports, PermApproveLeave, PermViewNotification, PermViewOwnRecords},
	RoleEmployee: {PermViewNotification, PermViewOwnRecords},
}

func (r Role) Can(p Permission) bool {
	for _, have := range capabilities[r] {
		if have == p {
			return true
		}
	}
	return false
}

// Audience is a role predicate used by notification fan-out.
type Audience []Role

func (a Audience) Includes(r Role) bool {
	for _, role := range a {
		if role == r {
			return true
		}
	}
	return false
}

var (
	// PayrollAudience receives payroll and attendance outcome notifications.
	PayrollAudience = Audience{RoleAdmin, RoleHR}
	// OpsAudience receives backup and sync outcome notifications.
	OpsAudience = Audience{RoleAdmin}
)
