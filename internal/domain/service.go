package domain

import "time"

// RecordStatus is the active flag shared by services, roles and staff.
type RecordStatus string

const (
	StatusActive   RecordStatus = "active"
	StatusInactive RecordStatus = "inactive"
)

// Valid reports whether s is a known status.
func (s RecordStatus) Valid() bool {
	return s == StatusActive || s == StatusInactive
}

// Service is a configured responder category such as Police or Fire.
type Service struct {
	ID                int64
	Name              string
	Description       string
	DiscordRole       string
	WebhookURL        string
	Status            RecordStatus
	LastWebhookTestAt *time.Time
	LastWebhookTestOK *bool
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Active reports whether tickets may be opened against the service.
func (s *Service) Active() bool {
	return s.Status == StatusActive
}

// HasWebhook reports whether notifications can be delivered for the service.
func (s *Service) HasWebhook() bool {
	return s.WebhookURL != ""
}

// DefaultServices are seeded into an empty directory.
func DefaultServices() []Service {
	return []Service{
		{Name: "Police", DiscordRole: "@Police", Description: "Police emergency services", Status: StatusActive},
		{Name: "UHS", DiscordRole: "@UHS", Description: "Unmatched Health Services", Status: StatusActive},
		{Name: "Fire", DiscordRole: "@Fire", Description: "Fire emergency services", Status: StatusActive},
		{Name: "Coastguard", DiscordRole: "@Coastguard", Description: "Coastguard emergency services", Status: StatusActive},
		{Name: "Highways", DiscordRole: "@Highways", Description: "Highway emergency services", Status: StatusActive},
	}
}
