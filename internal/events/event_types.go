package events

import (
	"time"

	"github.com/citydesk/emergency-portal/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated      EventType = "ticket_created"
	EventTicketTransitioned EventType = "ticket_transitioned"
)

// Event represents a domain event emitted after a committed ticket change.
// Ticket is a snapshot taken at commit time; subscribers must not re-read it.
type Event struct {
	ID        string              `json:"id"`
	Type      EventType           `json:"type"`
	Ticket    domain.Ticket       `json:"ticket"`
	Action    domain.TicketAction `json:"action,omitempty"`
	Actor     domain.Identity     `json:"actor"`
	Notes     string              `json:"notes,omitempty"`
	Timestamp time.Time           `json:"timestamp"`
}
