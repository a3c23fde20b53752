package domain

import "time"

// StaffMember binds an external identity to a role.
type StaffMember struct {
	ID          int64
	ExternalID  string
	DisplayName string
	RoleID      *int64
	Status      RecordStatus
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Active reports whether the binding currently grants anything.
func (s *StaffMember) Active() bool {
	return s.Status == StatusActive
}
