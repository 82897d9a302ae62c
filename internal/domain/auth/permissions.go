package auth

import "context"

const (
	RoleOwner    = "owner"
	RoleHRD      = "hrd"
	RoleManager  = "manager"
	RoleEmployee = "employee"
)

var Roles = []string{RoleOwner, RoleHRD, RoleManager, RoleEmployee}

const (
	PermOrgRead            = "org:read"
	PermOrgManage          = "org:manage"
	PermUsersManage        = "users:manage"
	PermRubricRead         = "rubric:read"
	PermRubricWrite        = "rubric:write"
	PermRubricReview       = "rubric:review"
	PermPeriodRead         = "period:read"
	PermPeriodWrite        = "period:write"
	PermAssessmentScore    = "assessment:score"
	PermAssessmentOverride = "assessment:override"
	PermDashboardSelf      = "dashboard:self"
	PermDashboardTeam      = "dashboard:team"
	PermDashboardOrg       = "dashboard:org"
	PermTaskWrite          = "task:write"
	PermTaskReview         = "task:review"
	PermAuditRead          = "audit:read"
)

var DefaultPermissions = []string{
	PermOrgRead,
	PermOrgManage,
	PermUsersManage,
	PermRubricRead,
	PermRubricWrite,
	PermRubricReview,
	PermPeriodRead,
	PermPeriodWrite,
	PermAssessmentScore,
	PermAssessmentOverride,
	PermDashboardSelf,
	PermDashboardTeam,
	PermDashboardOrg,
	PermTaskWrite,
	PermTaskReview,
	PermAuditRead,
}

var employeePermissions = []string{
	PermOrgRead,
	PermRubricRead,
	PermPeriodRead,
	PermAssessmentScore,
	PermDashboardSelf,
	PermTaskWrite,
}

var managerPermissions = append(append([]string{}, employeePermissions...),
	PermRubricWrite,
	PermDashboardTeam,
	PermTaskReview,
)

var RolePermissions = map[string][]string{
	RoleEmployee: employeePermissions,
	RoleManager:  managerPermissions,
	RoleHRD:      DefaultPermissions,
	RoleOwner:    DefaultPermissions,
}

func ValidRole(role string) bool {
	_, ok := RolePermissions[role]
	return ok
}

// IsAdmin reports whether the role administers the whole organization.
func IsAdmin(role string) bool {
	return role == RoleOwner || role == RoleHRD
}

// Policy resolves permissions from the static RolePermissions table.
type Policy struct{}

func (Policy) HasPermission(ctx context.Context, role, permission string) (bool, error) {
	for _, perm := range RolePermissions[role] {
		if perm == permission {
			return true, nil
		}
	}
	return false, nil
}
