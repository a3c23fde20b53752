package dto

import (
	"time"

	"github.com/citydesk/emergency-portal/internal/domain"
)

// MeResponse describes the caller and what they may currently do.
type MeResponse struct {
	Identity    domain.Identity `json:"identity"`
	IsSuper     bool            `json:"is_super"`
	IsStaff     bool            `json:"is_staff"`
	Permissions []string        `json:"permissions"`
	Services    []string        `json:"services"`
}

// SessionResponse is a minted session token.
type SessionResponse struct {
	Token     string     `json:"token"`
	ExpiresAt time.Time  `json:"expires_at"`
	Me        MeResponse `json:"me"`
}

// NewMeResponse maps resolved access. A superuser's service list is empty since they
// see every service.
func NewMeResponse(identity domain.Identity, access *domain.Access) MeResponse {
	resp := MeResponse{Identity: identity, Permissions: []string{}, Services: []string{}}
	if access == nil {
		return resp
	}
	resp.IsSuper = access.IsSuper
	resp.IsStaff = access.IsStaff()
	for _, p := range access.Permissions.Sorted() {
		resp.Permissions = append(resp.Permissions, string(p))
	}
	resp.Services = access.AllowedServices.Sorted()
	return resp
}
