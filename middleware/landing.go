package middleware

import "rwandabill/models"

// LandingPath is the view a user lands on after login.
func LandingPath(role models.Role) string {
	switch role {
	case models.RoleSuperAdmin:
		return "/super-admin"
	case models.RoleAdmin:
		return "/admin"
	case models.RoleMember:
		return "/dashboard"
	default:
		return "/"
	}
}
