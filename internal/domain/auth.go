package domain

import "github.com/citydesk/emergency-portal/pkg/util/setutil"

// Identity is the external user reference yielded by the identity provider.
// Both fields are opaque; DisplayName is snapshotted wherever it is stored.
type Identity struct {
	ExternalID  string `json:"external_id"`
	DisplayName string `json:"display_name"`
}

// Access is the resolved permission set and service scope of an identity.
type Access struct {
	Identity        Identity
	Permissions     PermissionSet
	AllowedServices setutil.Set[string]
	IsSuper         bool
}

// Has reports whether the permission is held.
func (a *Access) Has(p PermissionKind) bool {
	if a == nil {
		return false
	}
	return a.Permissions.Has(p)
}

// CanSeeService reports whether tickets of the named service are in scope.
func (a *Access) CanSeeService(name string) bool {
	if a == nil {
		return false
	}
	if a.IsSuper {
		return true
	}
	return a.AllowedServices.Has(name)
}

// IsStaff reports whether any permission was resolved.
func (a *Access) IsStaff() bool {
	return a != nil && a.Permissions.Len() > 0
}
