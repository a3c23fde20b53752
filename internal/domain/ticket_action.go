package domain

import "time"

// TicketAction is a staff-triggered lifecycle transition.
type TicketAction string

const (
	TicketActionAccept TicketAction = "accept"
	TicketActionDeny   TicketAction = "deny"
	TicketActionClose  TicketAction = "close"
)

type transitionRule struct {
	from       TicketStatus
	to         TicketStatus
	permission PermissionKind
}

// close is only reachable from accepted; open tickets must be accepted or denied first.
var transitionRules = map[TicketAction]transitionRule{
	TicketActionAccept: {from: TicketStatusOpen, to: TicketStatusAccepted, permission: PermissionAcceptTickets},
	TicketActionDeny:   {from: TicketStatusOpen, to: TicketStatusDenied, permission: PermissionDenyTickets},
	TicketActionClose:  {from: TicketStatusAccepted, to: TicketStatusClosed, permission: PermissionCloseTickets},
}

// Valid reports whether a is a known action.
func (a TicketAction) Valid() bool {
	_, ok := transitionRules[a]
	return ok
}

// RequiredPermission returns the permission gating the action.
func (a TicketAction) RequiredPermission() PermissionKind {
	return transitionRules[a].permission
}

// SourceStatus is the only status the action may be applied from.
func (a TicketAction) SourceStatus() TicketStatus {
	return transitionRules[a].from
}

// TargetStatus is the status the ticket ends in.
func (a TicketAction) TargetStatus() TicketStatus {
	return transitionRules[a].to
}

// CanApply reports whether the action is a valid transition out of current.
func (a TicketAction) CanApply(current TicketStatus) bool {
	rule, ok := transitionRules[a]
	return ok && rule.from == current
}

// AuditEntry is the immutable record of one accepted transition.
type AuditEntry struct {
	ID          int64
	TicketID    int64
	Action      TicketAction
	Notes       string
	PerformedBy Identity
	PerformedAt time.Time
}

// TicketTransition is the atomic unit written by the lifecycle engine.
type TicketTransition struct {
	TicketID int64
	From     TicketStatus
	To       TicketStatus
	At       time.Time
	Entry    AuditEntry
}
