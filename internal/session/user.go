package session

// User is the authenticated identity derived from provider profile claims
// or the demo user table. UI code never constructs one itself.
type User struct {
	ID          string   `json:"id"`
	Email       string   `json:"email"`
	DisplayName string   `json:"display_name"`
	Roles       []string `json:"roles"`
	Permissions []string `json:"permissions"`
}

// AdminRole is the role that grants access to admin-only routes.
const AdminRole = "admin"

// HasRole returns true if the user carries the given role.
func (u *User) HasRole(role string) bool {
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// HasPermission returns true if the user carries the given permission.
func (u *User) HasPermission(perm string) bool {
	for _, p := range u.Permissions {
		if p == perm {
			return true
		}
	}
	return false
}

// IsAdmin returns true if the user has the admin role.
func (u *User) IsAdmin() bool {
	return u.HasRole(AdminRole)
}
