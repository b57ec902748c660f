// Package rolepolicy is the single source of truth for role-derived
// destinations: the default dashboard route per role and the path segment
// each role uses against the upstream API. Screens and collaborators consume
// this package instead of re-deriving the mapping ad hoc.
package rolepolicy

import "github.com/crewboard/crewboard/internal/session"

var dashboardRoutes = map[session.Role]string{
	session.RoleAdmin:          "/dashboard/admin",
	session.RoleProjectManager: "/dashboard/project-manager",
	session.RoleTeamLead:       "/dashboard/team-lead",
	session.RoleEmployee:       "/dashboard/employee",
}

var apiNamespaces = map[session.Role]string{
	session.RoleAdmin:          "admin",
	session.RoleProjectManager: "project-manager",
	session.RoleTeamLead:       "team-lead",
	session.RoleEmployee:       "employee",
}

// DashboardRoute maps a role to its default landing route. Total: an
// unrecognised role falls back to the lowest-privilege route rather than
// erroring.
func DashboardRoute(role session.Role) string {
	if route, ok := dashboardRoutes[session.NormalizeRole(string(role))]; ok {
		return route
	}
	return dashboardRoutes[session.RoleEmployee]
}

// APINamespace resolves the role-specific path segment of the upstream API.
// Unknown roles are scoped to the employee namespace.
func APINamespace(role session.Role) string {
	if ns, ok := apiNamespaces[session.NormalizeRole(string(role))]; ok {
		return ns
	}
	return apiNamespaces[session.RoleEmployee]
}

// Roles lists the four supported roles in privilege order, highest first.
func Roles() []session.Role {
	return []session.Role{
		session.RoleAdmin,
		session.RoleProjectManager,
		session.RoleTeamLead,
		session.RoleEmployee,
	}
}
