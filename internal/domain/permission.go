package domain

import "github.com/citydesk/emergency-portal/pkg/util/setutil"

// PermissionKind is a capability tag gating an operation.
type PermissionKind string

const (
	PermissionViewTickets    PermissionKind = "view_tickets"
	PermissionAcceptTickets  PermissionKind = "accept_tickets"
	PermissionDenyTickets    PermissionKind = "deny_tickets"
	PermissionCloseTickets   PermissionKind = "close_tickets"
	PermissionAdminPanel     PermissionKind = "admin_panel"
	PermissionManageStaff    PermissionKind = "manage_staff"
	PermissionManageRoles    PermissionKind = "manage_roles"
	PermissionManageServices PermissionKind = "manage_services"
)

var allPermissions = []PermissionKind{
	PermissionViewTickets,
	PermissionAcceptTickets,
	PermissionDenyTickets,
	PermissionCloseTickets,
	PermissionAdminPanel,
	PermissionManageStaff,
	PermissionManageRoles,
	PermissionManageServices,
}

// AllPermissions returns every known PermissionKind.
func AllPermissions() []PermissionKind {
	return append([]PermissionKind(nil), allPermissions...)
}

// Valid reports whether p is one of the known kinds.
func (p PermissionKind) Valid() bool {
	for _, known := range allPermissions {
		if p == known {
			return true
		}
	}
	return false
}

// ParsePermissions keeps the known kinds from raw stored values, dropping the rest.
func ParsePermissions(raw []string) []PermissionKind {
	out := make([]PermissionKind, 0, len(raw))
	for _, r := range raw {
		if p := PermissionKind(r); p.Valid() {
			out = append(out, p)
		}
	}
	return out
}

// PermissionSet is an effective permission set.
type PermissionSet = setutil.Set[PermissionKind]

// NewPermissionSet builds a set from kinds.
func NewPermissionSet(kinds ...PermissionKind) PermissionSet {
	return setutil.New(kinds...)
}
