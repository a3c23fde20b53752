package domain

import "time"

// DefaultAdminRoleName is the role seeded when no roles exist.
const DefaultAdminRoleName = "Admin"

// Role bundles permissions and service visibility for staff.
type Role struct {
	ID            int64
	Name          string
	Permissions   []PermissionKind
	ServiceAccess []string
	Status        RecordStatus
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// IsAdmin reports whether the role carries ADMIN_PANEL, which absorbs every other permission.
func (r *Role) IsAdmin() bool {
	for _, p := range r.Permissions {
		if p == PermissionAdminPanel {
			return true
		}
	}
	return false
}
