package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/citydesk/emergency-portal/internal/domain"
	"github.com/citydesk/emergency-portal/internal/events"
	"github.com/citydesk/emergency-portal/internal/observability"
	"github.com/citydesk/emergency-portal/internal/repository"
	apperrors "github.com/citydesk/emergency-portal/pkg/util"
	"github.com/citydesk/emergency-portal/pkg/util/setutil"
)

// DefaultDeletionGrace is how long a closed ticket stays readable.
const DefaultDeletionGrace = 5 * time.Second

// TicketService is the ticket lifecycle engine. It is the only writer of tickets
// and their audit entries.
type TicketService struct {
	tickets   repository.TicketRepository
	actions   repository.TicketActionRepository
	services  repository.ServiceRepository
	deletions repository.DeletionQueue
	publisher events.Publisher
	metrics   *observability.Metrics
	logger    *zap.Logger
	grace     time.Duration
	now       func() time.Time
}

// TicketDependencies bundles collaborators for the ticket service.
type TicketDependencies struct {
	TicketRepo    repository.TicketRepository
	ActionRepo    repository.TicketActionRepository
	ServiceRepo   repository.ServiceRepository
	DeletionQueue repository.DeletionQueue
	Publisher     events.Publisher
	Metrics       *observability.Metrics
	Logger        *zap.Logger
	DeletionGrace time.Duration
	Clock         func() time.Time
}

// TicketCreateInput describes ticket creation payload. Service is the canonical service
// name; see ServiceRefResolver for callers that accept ids.
type TicketCreateInput struct {
	Service     string
	Description string
	Location    string
	Priority    domain.TicketPriority
}

// TicketListFilter narrows a scoped listing. Services outside the caller's scope are ignored.
type TicketListFilter struct {
	Services   []string
	Statuses   []domain.TicketStatus
	Priorities []domain.TicketPriority
	Limit      int
	Offset     int
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	s := &TicketService{
		tickets:   deps.TicketRepo,
		actions:   deps.ActionRepo,
		services:  deps.ServiceRepo,
		deletions: deps.DeletionQueue,
		publisher: deps.Publisher,
		metrics:   deps.Metrics,
		logger:    deps.Logger,
		grace:     deps.DeletionGrace,
		now:       deps.Clock,
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.grace <= 0 {
		s.grace = DefaultDeletionGrace
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// Create opens a ticket. Any authenticated identity may open one against an active service.
func (s *TicketService) Create(ctx context.Context, creator domain.Identity, input TicketCreateInput) (*domain.Ticket, error) {
	if strings.TrimSpace(creator.ExternalID) == "" {
		return nil, apperrors.NewUnauthorized("authentication required")
	}

	description := strings.TrimSpace(input.Description)
	if description == "" {
		return nil, apperrors.NewValidationError("description is required", map[string]any{"field": "description"})
	}
	priority := input.Priority
	if priority == "" {
		priority = domain.TicketPriorityMedium
	}
	if !priority.Valid() {
		return nil, apperrors.NewValidationError("invalid priority", map[string]any{"priority": priority})
	}

	svc, err := s.lookupService(ctx, input.Service)
	if err != nil {
		return nil, err
	}
	if !svc.Active() {
		return nil, apperrors.NewValidationError("service is not accepting tickets", map[string]any{"service": svc.Name})
	}

	ticket := &domain.Ticket{
		ServiceRef:  svc.Name,
		Description: description,
		Location:    strings.TrimSpace(input.Location),
		Priority:    priority,
		Status:      domain.TicketStatusOpen,
		CreatedBy:   creator,
	}
	if err := s.tickets.Create(ctx, ticket); err != nil {
		s.logger.Error("create ticket failed", zap.String("service", svc.Name), zap.Error(err))
		return nil, apperrors.NewStoreError(err)
	}

	s.metrics.RecordTicketEvent("created")
	s.publishEvent(ctx, events.Event{
		Type:   events.EventTicketCreated,
		Ticket: *ticket,
		Actor:  creator,
	})
	return ticket, nil
}

func (s *TicketService) lookupService(ctx context.Context, name string) (*domain.Service, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperrors.NewValidationError("service is required", map[string]any{"field": "service"})
	}
	svc, err := s.services.GetByName(ctx, name)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, apperrors.NewNotFound("service", map[string]any{"service": name})
		}
		return nil, apperrors.NewStoreError(err)
	}
	return svc, nil
}

// List returns tickets in the caller's service scope, newest first.
func (s *TicketService) List(ctx context.Context, access *domain.Access, filter TicketListFilter) ([]domain.Ticket, error) {
	if err := requireViewTickets(access); err != nil {
		return nil, err
	}
	repoFilter := repository.TicketFilter{
		ServiceRefs: scopeFor(access, filter.Services),
		Statuses:    filter.Statuses,
		Priorities:  filter.Priorities,
		Limit:       filter.Limit,
		Offset:      filter.Offset,
	}
	if repoFilter.ServiceRefs != nil && len(repoFilter.ServiceRefs) == 0 {
		return []domain.Ticket{}, nil
	}
	tickets, err := s.tickets.ListWithFilter(ctx, repoFilter)
	if err != nil {
		return nil, apperrors.NewStoreError(err)
	}
	if tickets == nil {
		tickets = []domain.Ticket{}
	}
	return tickets, nil
}

func requireViewTickets(access *domain.Access) error {
	if !access.Has(domain.PermissionViewTickets) {
		return apperrors.NewForbidden("missing permission " + string(domain.PermissionViewTickets))
	}
	return nil
}

// scopeFor returns the service names to restrict by: nil means unrestricted, an empty
// slice means nothing is visible.
func scopeFor(access *domain.Access, requested []string) []string {
	if access != nil && access.IsSuper {
		if len(requested) == 0 {
			return nil
		}
		return setutil.New(requested...).Sorted()
	}
	if access == nil {
		return []string{}
	}
	if len(requested) == 0 {
		return access.AllowedServices.Sorted()
	}
	scoped := []string{}
	for _, name := range setutil.New(requested...).Sorted() {
		if access.AllowedServices.Has(name) {
			scoped = append(scoped, name)
		}
	}
	return scoped
}

// Get returns one ticket. Tickets outside the caller's scope are reported as not found.
func (s *TicketService) Get(ctx context.Context, access *domain.Access, id int64) (*domain.Ticket, error) {
	if err := requireViewTickets(access); err != nil {
		return nil, err
	}
	ticket, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !access.CanSeeService(ticket.ServiceRef) {
		return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": id})
	}
	return ticket, nil
}

func (s *TicketService) load(ctx context.Context, id int64) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, id)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": id})
		}
		return nil, apperrors.NewStoreError(err)
	}
	return ticket, nil
}

// Accept moves an open ticket to accepted.
func (s *TicketService) Accept(ctx context.Context, access *domain.Access, id int64, notes string) (*domain.Ticket, error) {
	return s.Transition(ctx, access, id, domain.TicketActionAccept, notes)
}

// Deny moves an open ticket to denied.
func (s *TicketService) Deny(ctx context.Context, access *domain.Access, id int64, notes string) (*domain.Ticket, error) {
	return s.Transition(ctx, access, id, domain.TicketActionDeny, notes)
}

// Close moves an accepted ticket to closed and schedules its deletion.
func (s *TicketService) Close(ctx context.Context, access *domain.Access, id int64, notes string) (*domain.Ticket, error) {
	return s.Transition(ctx, access, id, domain.TicketActionClose, notes)
}

// Transition applies action to the ticket. Checks run in order: known action, ticket
// exists, permission, service scope, source status. The status change and its audit
// entry are written atomically against the status observed here; losing a concurrent
// race is reported as an invalid transition.
func (s *TicketService) Transition(ctx context.Context, access *domain.Access, id int64, action domain.TicketAction, notes string) (*domain.Ticket, error) {
	if !action.Valid() {
		return nil, apperrors.NewValidationError("unknown action", map[string]any{"action": action})
	}

	ticket, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !access.Has(action.RequiredPermission()) {
		return nil, apperrors.NewForbidden("missing permission " + string(action.RequiredPermission()))
	}
	if !access.CanSeeService(ticket.ServiceRef) {
		return nil, apperrors.NewForbidden("ticket belongs to a service outside your scope")
	}
	if !action.CanApply(ticket.Status) {
		return nil, invalidTransition(ticket, action)
	}

	at := s.now()
	notes = strings.TrimSpace(notes)
	change := &domain.TicketTransition{
		TicketID: ticket.ID,
		From:     ticket.Status,
		To:       action.TargetStatus(),
		At:       at,
		Entry: domain.AuditEntry{
			TicketID:    ticket.ID,
			Action:      action,
			Notes:       notes,
			PerformedBy: access.Identity,
			PerformedAt: at,
		},
	}
	if err := s.tickets.ApplyTransition(ctx, change); err != nil {
		switch {
		case errors.Is(err, repository.ErrStaleStatus):
			return nil, invalidTransition(ticket, action)
		case repository.IsNotFound(err):
			return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": id})
		default:
			s.logger.Error("apply transition failed",
				zap.Int64("ticket_id", id),
				zap.String("action", string(action)),
				zap.Error(err))
			return nil, apperrors.NewStoreError(err)
		}
	}

	ticket.Status = change.To
	ticket.UpdatedAt = at
	if change.To == domain.TicketStatusClosed {
		ticket.ClosedAt = &at
		s.scheduleDeletion(ctx, ticket.ID, at)
	}

	s.metrics.RecordTicketEvent(string(action))
	s.publishEvent(ctx, events.Event{
		Type:   events.EventTicketTransitioned,
		Ticket: *ticket,
		Action: action,
		Actor:  access.Identity,
		Notes:  notes,
	})
	return ticket, nil
}

func invalidTransition(ticket *domain.Ticket, action domain.TicketAction) error {
	return apperrors.NewInvalidTransition("cannot "+string(action)+" a ticket that is "+string(ticket.Status), map[string]any{
		"ticket_id": ticket.ID,
		"status":    ticket.Status,
		"action":    action,
	})
}

// scheduleDeletion queues the closed ticket. A failure here is logged only; the
// deletion worker's reconciliation sweep picks up closed tickets that were never queued.
func (s *TicketService) scheduleDeletion(ctx context.Context, id int64, closedAt time.Time) {
	if s.deletions == nil {
		return
	}
	if err := s.deletions.Schedule(context.WithoutCancel(ctx), id, closedAt.Add(s.grace)); err != nil {
		s.logger.Error("schedule ticket deletion failed", zap.Int64("ticket_id", id), zap.Error(err))
	}
}

// History returns the audit entries of a ticket in the order they were performed.
func (s *TicketService) History(ctx context.Context, access *domain.Access, id int64) ([]domain.AuditEntry, error) {
	if _, err := s.Get(ctx, access, id); err != nil {
		return nil, err
	}
	entries, err := s.actions.ListByTicket(ctx, id)
	if err != nil {
		return nil, apperrors.NewStoreError(err)
	}
	if entries == nil {
		entries = []domain.AuditEntry{}
	}
	return entries, nil
}

// Delete removes a ticket and its audit entries immediately. Admin only.
func (s *TicketService) Delete(ctx context.Context, access *domain.Access, id int64) error {
	if !access.Has(domain.PermissionAdminPanel) {
		return apperrors.NewForbidden("admin access required")
	}
	if err := s.tickets.Delete(ctx, id); err != nil {
		if repository.IsNotFound(err) {
			return apperrors.NewNotFound("ticket", map[string]any{"ticket_id": id})
		}
		return apperrors.NewStoreError(err)
	}
	if s.deletions != nil {
		if err := s.deletions.Cancel(ctx, id); err != nil {
			s.logger.Warn("cancel queued deletion failed", zap.Int64("ticket_id", id), zap.Error(err))
		}
	}
	s.metrics.RecordTicketDeleted()
	s.logger.Info("ticket deleted", zap.Int64("ticket_id", id), zap.String("by", access.Identity.ExternalID))
	return nil
}

// Stats counts tickets per status within the caller's scope.
func (s *TicketService) Stats(ctx context.Context, access *domain.Access) (domain.TicketStats, error) {
	if err := requireViewTickets(access); err != nil {
		return domain.TicketStats{}, err
	}
	scope := scopeFor(access, nil)
	if scope != nil && len(scope) == 0 {
		return domain.TicketStats{}, nil
	}
	counts, err := s.tickets.CountByStatus(ctx, scope)
	if err != nil {
		return domain.TicketStats{}, apperrors.NewStoreError(err)
	}
	stats := domain.TicketStats{
		Open:     counts[domain.TicketStatusOpen],
		Accepted: counts[domain.TicketStatusAccepted],
		Denied:   counts[domain.TicketStatusDenied],
		Closed:   counts[domain.TicketStatusClosed],
	}
	stats.Total = stats.Open + stats.Accepted + stats.Denied + stats.Closed
	return stats, nil
}

func (s *TicketService) publishEvent(ctx context.Context, event events.Event) {
	if s.publisher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = s.now()
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Warn("publish event failed",
			zap.String("event_type", string(event.Type)),
			zap.Int64("ticket_id", event.Ticket.ID),
			zap.Error(err))
	}
}
