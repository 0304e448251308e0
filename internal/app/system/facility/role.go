package facility

import "strings"

// Role is a user's access level inside one facility.
type Role string

const (
	RoleViewer        Role = "viewer"
	RoleEditor        Role = "editor"
	RoleFacilityAdmin Role = "facility_admin"
)

// Roles lists every recognized role, lowest access first.
var Roles = []Role{RoleViewer, RoleEditor, RoleFacilityAdmin}

// ParseRole normalizes s and reports whether it names a known role.
func ParseRole(s string) (Role, bool) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Roles {
		if r == known {
			return r, true
		}
	}
	return "", false
}

// CanEdit reports whether the role may create, edit or delete facility data.
// This is the only place that decides which roles are edit-capable.
func (r Role) CanEdit() bool {
	switch r {
	case RoleEditor, RoleFacilityAdmin:
		return true
	}
	return false
}

// CanManageMembers reports whether the role may grant and revoke memberships.
func (r Role) CanManageMembers() bool {
	return r == RoleFacilityAdmin
}

// RoleCanEdit is the function form of Role.CanEdit for raw role strings
// read from storage. Unknown roles cannot edit.
func RoleCanEdit(role string) bool {
	r, ok := ParseRole(role)
	return ok && r.CanEdit()
}
