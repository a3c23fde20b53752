package memory

import (
	"context"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/citydesk/emergency-portal/internal/domain"
	"github.com/citydesk/emergency-portal/internal/repository"
	"github.com/citydesk/emergency-portal/pkg/util/setutil"
)

// TicketRepository is the in-memory repository.TicketRepository.
type TicketRepository struct{ s *Store }

var _ repository.TicketRepository = (*TicketRepository)(nil)

func (r *TicketRepository) Create(_ context.Context, ticket *domain.Ticket) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	now := r.s.now()
	ticket.ID = r.s.id()
	ticket.CreatedAt, ticket.UpdatedAt = now, now
	r.s.tickets[ticket.ID] = *ticket
	return nil
}

func (r *TicketRepository) GetByID(_ context.Context, id int64) (*domain.Ticket, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	ticket, ok := r.s.tickets[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &ticket, nil
}

func (r *TicketRepository) ListWithFilter(_ context.Context, filter repository.TicketFilter) ([]domain.Ticket, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var (
		services   setutil.Set[string]
		statuses   = setutil.New(filter.Statuses...)
		priorities = setutil.New(filter.Priorities...)
	)
	if filter.ServiceRefs != nil {
		services = setutil.New(filter.ServiceRefs...)
	}

	var out []domain.Ticket
	for _, ticket := range r.s.tickets {
		if filter.ServiceRefs != nil && !services.Has(ticket.ServiceRef) {
			continue
		}
		if len(filter.Statuses) > 0 && !statuses.Has(ticket.Status) {
			continue
		}
		if len(filter.Priorities) > 0 && !priorities.Has(ticket.Priority) {
			continue
		}
		out = append(out, ticket)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return paginate(out, filter.Limit, filter.Offset, 50), nil
}

func (r *TicketRepository) CountByStatus(_ context.Context, serviceRefs []string) (map[domain.TicketStatus]int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	scope := setutil.New(serviceRefs...)
	counts := make(map[domain.TicketStatus]int)
	for _, ticket := range r.s.tickets {
		if serviceRefs != nil && !scope.Has(ticket.ServiceRef) {
			continue
		}
		counts[ticket.Status]++
	}
	return counts, nil
}

func (r *TicketRepository) CountByService(_ context.Context, serviceRef string) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	count := 0
	for _, ticket := range r.s.tickets {
		if ticket.ServiceRef == serviceRef {
			count++
		}
	}
	return count, nil
}

func (r *TicketRepository) ApplyTransition(_ context.Context, change *domain.TicketTransition) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	ticket, ok := r.s.tickets[change.TicketID]
	if !ok {
		return pgx.ErrNoRows
	}
	if ticket.Status != change.From {
		return repository.ErrStaleStatus
	}
	ticket.Status = change.To
	ticket.UpdatedAt = change.At
	if change.To == domain.TicketStatusClosed {
		at := change.At
		ticket.ClosedAt = &at
	}
	r.s.tickets[ticket.ID] = ticket

	change.Entry.ID = r.s.id()
	r.s.actions[ticket.ID] = append(r.s.actions[ticket.ID], change.Entry)
	return nil
}

func (r *TicketRepository) Delete(_ context.Context, id int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.tickets[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(r.s.tickets, id)
	delete(r.s.actions, id)
	return nil
}

func (r *TicketRepository) ListClosedBefore(_ context.Context, cutoff time.Time, limit int) ([]int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if limit <= 0 {
		limit = 100
	}
	var closed []domain.Ticket
	for _, ticket := range r.s.tickets {
		if ticket.Status == domain.TicketStatusClosed && ticket.ClosedAt != nil && !ticket.ClosedAt.After(cutoff) {
			closed = append(closed, ticket)
		}
	}
	sort.Slice(closed, func(i, j int) bool { return closed[i].ClosedAt.Before(*closed[j].ClosedAt) })
	ids := make([]int64, 0, len(closed))
	for i, ticket := range closed {
		if i == limit {
			break
		}
		ids = append(ids, ticket.ID)
	}
	return ids, nil
}

// TicketActionRepository is the in-memory repository.TicketActionRepository.
type TicketActionRepository struct{ s *Store }

var _ repository.TicketActionRepository = (*TicketActionRepository)(nil)

func (r *TicketActionRepository) ListByTicket(_ context.Context, ticketID int64) ([]domain.AuditEntry, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return append([]domain.AuditEntry(nil), r.s.actions[ticketID]...), nil
}

// DeletionQueue is the in-memory repository.DeletionQueue. Pending entries do not
// survive a restart; the worker's reconciliation sweep covers that gap.
type DeletionQueue struct{ s *Store }

var _ repository.DeletionQueue = (*DeletionQueue)(nil)

func (q *DeletionQueue) Schedule(_ context.Context, ticketID int64, dueAt time.Time) error {
	q.s.mu.Lock()
	defer q.s.mu.Unlock()
	q.s.pending[ticketID] = dueAt
	return nil
}

func (q *DeletionQueue) Cancel(_ context.Context, ticketID int64) error {
	q.s.mu.Lock()
	defer q.s.mu.Unlock()
	delete(q.s.pending, ticketID)
	return nil
}

func (q *DeletionQueue) Due(_ context.Context, now time.Time, limit int) ([]int64, error) {
	q.s.mu.Lock()
	defer q.s.mu.Unlock()
	type entry struct {
		id  int64
		due time.Time
	}
	var due []entry
	for id, at := range q.s.pending {
		if !at.After(now) {
			due = append(due, entry{id: id, due: at})
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].due.Before(due[j].due) })
	ids := make([]int64, 0, len(due))
	for i, e := range due {
		if limit > 0 && i == limit {
			break
		}
		ids = append(ids, e.id)
	}
	return ids, nil
}

func (q *DeletionQueue) Claim(_ context.Context, ticketID int64) (bool, error) {
	q.s.mu.Lock()
	defer q.s.mu.Unlock()
	if _, ok := q.s.pending[ticketID]; !ok {
		return false, nil
	}
	delete(q.s.pending, ticketID)
	return true, nil
}

// Pending reports whether a deletion is queued for the ticket.
func (q *DeletionQueue) Pending(ticketID int64) bool {
	q.s.mu.Lock()
	defer q.s.mu.Unlock()
	_, ok := q.s.pending[ticketID]
	return ok
}
