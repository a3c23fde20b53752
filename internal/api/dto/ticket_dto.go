package dto

import (
	"time"

	"github.com/citydesk/emergency-portal/internal/domain"
)

// CreateTicketRequest payload. Service may be a service id or name.
type CreateTicketRequest struct {
	Service     string                `json:"service" validate:"required,max=100"`
	Description string                `json:"description" validate:"required,max=4000"`
	Location    string                `json:"location" validate:"max=500"`
	Priority    domain.TicketPriority `json:"priority" validate:"omitempty,oneof=low medium high critical"`
}

// TransitionRequest is the optional body of accept, deny and close.
type TransitionRequest struct {
	Notes string `json:"notes" validate:"max=1000"`
}

// TicketResponse is the API view of a ticket.
type TicketResponse struct {
	ID          int64                 `json:"id"`
	Service     string                `json:"service"`
	Description string                `json:"description"`
	Location    string                `json:"location"`
	Priority    domain.TicketPriority `json:"priority"`
	Status      domain.TicketStatus   `json:"status"`
	CreatedBy   domain.Identity       `json:"created_by"`
	CreatedAt   time.Time             `json:"created_at"`
	UpdatedAt   time.Time             `json:"updated_at"`
	ClosedAt    *time.Time            `json:"closed_at,omitempty"`
}

// AuditEntryResponse is one entry of a ticket's action history.
type AuditEntryResponse struct {
	ID          int64               `json:"id"`
	Action      domain.TicketAction `json:"action"`
	Notes       string              `json:"notes,omitempty"`
	PerformedBy domain.Identity     `json:"performed_by"`
	PerformedAt time.Time           `json:"performed_at"`
}

// TicketStatsResponse counts tickets per status.
type TicketStatsResponse struct {
	Total    int `json:"total"`
	Open     int `json:"open"`
	Accepted int `json:"accepted"`
	Denied   int `json:"denied"`
	Closed   int `json:"closed"`
}

// NewTicketResponse maps a ticket.
func NewTicketResponse(t *domain.Ticket) TicketResponse {
	return TicketResponse{
		ID:          t.ID,
		Service:     t.ServiceRef,
		Description: t.Description,
		Location:    t.Location,
		Priority:    t.Priority,
		Status:      t.Status,
		CreatedBy:   t.CreatedBy,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
		ClosedAt:    t.ClosedAt,
	}
}

// NewTicketResponses maps a list of tickets.
func NewTicketResponses(tickets []domain.Ticket) []TicketResponse {
	out := make([]TicketResponse, 0, len(tickets))
	for i := range tickets {
		out = append(out, NewTicketResponse(&tickets[i]))
	}
	return out
}

// NewAuditEntryResponses maps a ticket history.
func NewAuditEntryResponses(entries []domain.AuditEntry) []AuditEntryResponse {
	out := make([]AuditEntryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, AuditEntryResponse{
			ID:          e.ID,
			Action:      e.Action,
			Notes:       e.Notes,
			PerformedBy: e.PerformedBy,
			PerformedAt: e.PerformedAt,
		})
	}
	return out
}

// NewTicketStatsResponse maps stats.
func NewTicketStatsResponse(s domain.TicketStats) TicketStatsResponse {
	return TicketStatsResponse(s)
}
