package dto

import (
	"time"

	"github.com/citydesk/emergency-portal/internal/domain"
)

// ServiceRequest creates or replaces a service.
type ServiceRequest struct {
	Name        string              `json:"name" validate:"required,max=100"`
	Description string              `json:"description" validate:"max=500"`
	DiscordRole string              `json:"discord_role" validate:"max=100"`
	WebhookURL  string              `json:"webhook_url" validate:"omitempty,url,max=500"`
	Status      domain.RecordStatus `json:"status" validate:"omitempty,oneof=active inactive"`
}

// ServiceResponse is the admin view of a service.
type ServiceResponse struct {
	ID                int64               `json:"id"`
	Name              string              `json:"name"`
	Description       string              `json:"description"`
	DiscordRole       string              `json:"discord_role"`
	WebhookURL        string              `json:"webhook_url,omitempty"`
	Status            domain.RecordStatus `json:"status"`
	LastWebhookTestAt *time.Time          `json:"last_webhook_test_at,omitempty"`
	LastWebhookTestOK *bool               `json:"last_webhook_test_ok,omitempty"`
	CreatedAt         time.Time           `json:"created_at"`
	UpdatedAt         time.Time           `json:"updated_at"`
}

// PublicServiceResponse is what the ticket form sees; webhook details stay hidden.
type PublicServiceResponse struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// RoleRequest creates or replaces a role.
type RoleRequest struct {
	Name          string              `json:"name" validate:"required,max=100"`
	Permissions   []string            `json:"permissions"`
	ServiceAccess []string            `json:"service_access"`
	Status        domain.RecordStatus `json:"status" validate:"omitempty,oneof=active inactive"`
}

// RoleResponse is a role.
type RoleResponse struct {
	ID            int64               `json:"id"`
	Name          string              `json:"name"`
	Permissions   []string            `json:"permissions"`
	ServiceAccess []string            `json:"service_access"`
	Status        domain.RecordStatus `json:"status"`
	CreatedAt     time.Time           `json:"created_at"`
	UpdatedAt     time.Time           `json:"updated_at"`
}

// StaffRequest creates or replaces a staff binding.
type StaffRequest struct {
	ExternalID  string              `json:"external_id" validate:"required,max=64"`
	DisplayName string              `json:"display_name" validate:"max=100"`
	RoleID      *int64              `json:"role_id" validate:"omitempty,gt=0"`
	Status      domain.RecordStatus `json:"status" validate:"omitempty,oneof=active inactive"`
}

// StaffResponse is a staff binding.
type StaffResponse struct {
	ID          int64               `json:"id"`
	ExternalID  string              `json:"external_id"`
	DisplayName string              `json:"display_name"`
	RoleID      *int64              `json:"role_id"`
	Status      domain.RecordStatus `json:"status"`
	CreatedAt   time.Time           `json:"created_at"`
	UpdatedAt   time.Time           `json:"updated_at"`
}

// WebhookTestResponse is the outcome of one webhook test.
type WebhookTestResponse struct {
	ServiceID int64     `json:"service_id"`
	Service   string    `json:"service"`
	OK        bool      `json:"ok"`
	Error     string    `json:"error,omitempty"`
	TestedAt  time.Time `json:"tested_at"`
}

// NewServiceResponse maps a service.
func NewServiceResponse(s *domain.Service) ServiceResponse {
	return ServiceResponse{
		ID:                s.ID,
		Name:              s.Name,
		Description:       s.Description,
		DiscordRole:       s.DiscordRole,
		WebhookURL:        s.WebhookURL,
		Status:            s.Status,
		LastWebhookTestAt: s.LastWebhookTestAt,
		LastWebhookTestOK: s.LastWebhookTestOK,
		CreatedAt:         s.CreatedAt,
		UpdatedAt:         s.UpdatedAt,
	}
}

// NewServiceResponses maps a list of services.
func NewServiceResponses(services []domain.Service) []ServiceResponse {
	out := make([]ServiceResponse, 0, len(services))
	for i := range services {
		out = append(out, NewServiceResponse(&services[i]))
	}
	return out
}

// NewPublicServiceResponses maps services for the ticket form.
func NewPublicServiceResponses(services []domain.Service) []PublicServiceResponse {
	out := make([]PublicServiceResponse, 0, len(services))
	for _, s := range services {
		out = append(out, PublicServiceResponse{ID: s.ID, Name: s.Name, Description: s.Description})
	}
	return out
}

// NewRoleResponse maps a role.
func NewRoleResponse(r *domain.Role) RoleResponse {
	perms := make([]string, 0, len(r.Permissions))
	for _, p := range r.Permissions {
		perms = append(perms, string(p))
	}
	access := r.ServiceAccess
	if access == nil {
		access = []string{}
	}
	return RoleResponse{
		ID:            r.ID,
		Name:          r.Name,
		Permissions:   perms,
		ServiceAccess: access,
		Status:        r.Status,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
}

// NewRoleResponses maps a list of roles.
func NewRoleResponses(roles []domain.Role) []RoleResponse {
	out := make([]RoleResponse, 0, len(roles))
	for i := range roles {
		out = append(out, NewRoleResponse(&roles[i]))
	}
	return out
}

// NewStaffResponse maps a staff binding.
func NewStaffResponse(m *domain.StaffMember) StaffResponse {
	return StaffResponse{
		ID:          m.ID,
		ExternalID:  m.ExternalID,
		DisplayName: m.DisplayName,
		RoleID:      m.RoleID,
		Status:      m.Status,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}

// NewStaffResponses maps a list of staff bindings.
func NewStaffResponses(members []domain.StaffMember) []StaffResponse {
	out := make([]StaffResponse, 0, len(members))
	for i := range members {
		out = append(out, NewStaffResponse(&members[i]))
	}
	return out
}
