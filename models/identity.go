package models

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Role is the client-side role of an authenticated user. The set is closed.
type Role string

const (
	RoleMember     Role = "member"
	RoleAdmin      Role = "admin"
	RoleSuperAdmin Role = "superadmin"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleMember, RoleAdmin, RoleSuperAdmin:
		return true
	}
	return false
}

// Service is the billing service an admin is responsible for.
type Service string

const (
	ServiceWater      Service = "water"
	ServiceSanitation Service = "sanitation"
	ServiceSecurity   Service = "security"
)

// Valid reports whether s is one of the known services.
func (s Service) Valid() bool {
	switch s {
	case ServiceWater, ServiceSanitation, ServiceSecurity:
		return true
	}
	return false
}

// backendRoles maps the backend role names onto client roles.
var backendRoles = map[string]Role{
	"SUPER_ADMIN": RoleSuperAdmin,
	"ADMIN":       RoleAdmin,
	"USER":        RoleMember,
}

// MapBackendRole maps a backend role string onto a Role. Unknown values get
// the least privileged role.
func MapBackendRole(backendRole string) Role {
	if role, ok := backendRoles[backendRole]; ok {
		return role
	}
	return RoleMember
}

// BackendRole is the inverse of MapBackendRole.
func BackendRole(r Role) string {
	switch r {
	case RoleSuperAdmin:
		return "SUPER_ADMIN"
	case RoleAdmin:
		return "ADMIN"
	default:
		return "USER"
	}
}

// ParseBackendService maps a backend service type (WATER, SANITATION,
// SECURITY; any case) onto a Service.
func ParseBackendService(s string) (Service, bool) {
	svc := Service(strings.ToLower(strings.TrimSpace(s)))
	if !svc.Valid() {
		return "", false
	}
	return svc, true
}

// Access is the role-specific half of an Identity. Only the types in this
// package implement it.
type Access interface {
	Role() Role
	sealed()
}

// MemberAccess is held by ordinary bill payers.
type MemberAccess struct{}

// AdminAccess is held by service admins. Service is empty when the backend
// did not assign one.
type AdminAccess struct {
	Service Service
}

// SuperAdminAccess is held by platform operators.
type SuperAdminAccess struct{}

func (MemberAccess) Role() Role     { return RoleMember }
func (AdminAccess) Role() Role      { return RoleAdmin }
func (SuperAdminAccess) Role() Role { return RoleSuperAdmin }

func (MemberAccess) sealed()     {}
func (AdminAccess) sealed()      {}
func (SuperAdminAccess) sealed() {}

// AccessFor builds the Access value for role. service is ignored for every
// role except admin.
func AccessFor(role Role, service Service) (Access, error) {
	switch role {
	case RoleMember:
		return MemberAccess{}, nil
	case RoleAdmin:
		if service != "" && !service.Valid() {
			return nil, fmt.Errorf("unknown service %q", service)
		}
		return AdminAccess{Service: service}, nil
	case RoleSuperAdmin:
		return SuperAdminAccess{}, nil
	}
	return nil, fmt.Errorf("unknown role %q", role)
}

// Profile holds the descriptive attributes of a user.
type Profile struct {
	ID        string
	FullName  string
	Email     string
	Telephone string
	District  string
	Sector    string
	// Group is a display label only.
	Group string
}

// DefaultGroup is used when the backend does not report a group.
const DefaultGroup = "Default Group"

// Identity is the normalized, role-tagged representation of the
// authenticated user.
type Identity struct {
	Profile
	access Access
}

// NewIdentity pairs a profile with its access.
func NewIdentity(p Profile, access Access) Identity {
	if access == nil {
		access = MemberAccess{}
	}
	return Identity{Profile: p, access: access}
}

// Access returns the role-specific part of the identity.
func (i Identity) Access() Access {
	if i.access == nil {
		return MemberAccess{}
	}
	return i.access
}

// Role returns the identity's role.
func (i Identity) Role() Role {
	return i.Access().Role()
}

// Service returns the admin's service. ok is false for non-admins and for
// admins without an assigned service.
func (i Identity) Service() (Service, bool) {
	if a, isAdmin := i.Access().(AdminAccess); isAdmin && a.Service != "" {
		return a.Service, true
	}
	return "", false
}

// identityJSON is the persisted layout of an Identity.
type identityJSON struct {
	ID        string  `json:"id"`
	FullName  string  `json:"fullName"`
	Email     string  `json:"email"`
	Telephone string  `json:"telephone"`
	District  string  `json:"district"`
	Sector    string  `json:"sector"`
	Role      Role    `json:"role"`
	Service   Service `json:"service,omitempty"`
	Group     string  `json:"group"`
}

// MarshalJSON writes the flat layout with "role" and, for admins, "service".
func (i Identity) MarshalJSON() ([]byte, error) {
	svc, _ := i.Service()
	return json.Marshal(identityJSON{
		ID:        i.ID,
		FullName:  i.FullName,
		Email:     i.Email,
		Telephone: i.Telephone,
		District:  i.District,
		Sector:    i.Sector,
		Role:      i.Role(),
		Service:   svc,
		Group:     i.Group,
	})
}

// UnmarshalJSON rejects unknown roles and services on non-admin roles.
func (i *Identity) UnmarshalJSON(data []byte) error {
	var raw identityJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw.Service != "" && raw.Role != RoleAdmin {
		return fmt.Errorf("identity: service %q is only valid for admins, got role %q", raw.Service, raw.Role)
	}
	access, err := AccessFor(raw.Role, raw.Service)
	if err != nil {
		return fmt.Errorf("identity: %w", err)
	}
	*i = Identity{
		Profile: Profile{
			ID:        raw.ID,
			FullName:  raw.FullName,
			Email:     raw.Email,
			Telephone: raw.Telephone,
			District:  raw.District,
			Sector:    raw.Sector,
			Group:     raw.Group,
		},
		access: access,
	}
	return nil
}
