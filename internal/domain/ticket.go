package domain

import "time"

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusOpen     TicketStatus = "open"
	TicketStatusAccepted TicketStatus = "accepted"
	TicketStatusDenied   TicketStatus = "denied"
	TicketStatusClosed   TicketStatus = "closed"
)

// Valid reports whether s is a known status.
func (s TicketStatus) Valid() bool {
	switch s {
	case TicketStatusOpen, TicketStatusAccepted, TicketStatusDenied, TicketStatusClosed:
		return true
	}
	return false
}

// TicketPriority enumerates urgency.
type TicketPriority string

const (
	TicketPriorityLow      TicketPriority = "low"
	TicketPriorityMedium   TicketPriority = "medium"
	TicketPriorityHigh     TicketPriority = "high"
	TicketPriorityCritical TicketPriority = "critical"
)

// Valid reports whether p is a known priority.
func (p TicketPriority) Valid() bool {
	switch p {
	case TicketPriorityLow, TicketPriorityMedium, TicketPriorityHigh, TicketPriorityCritical:
		return true
	}
	return false
}

// Ticket is a single emergency-service request.
type Ticket struct {
	ID          int64
	ServiceRef  string
	Description string
	Location    string
	Priority    TicketPriority
	Status      TicketStatus
	CreatedBy   Identity
	CreatedAt   time.Time
	UpdatedAt   time.Time
	ClosedAt    *time.Time
}

// TicketStats counts tickets per status.
type TicketStats struct {
	Total    int
	Open     int
	Accepted int
	Denied   int
	Closed   int
}
