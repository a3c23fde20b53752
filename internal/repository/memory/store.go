// Package memory provides in-process implementations of the repository interfaces.
// They back local runs without POSTGRES_DSN/Redis and the package tests.
package memory

import (
	"sync"
	"time"

	"github.com/citydesk/emergency-portal/internal/domain"
)

// Store holds every table behind a single mutex so multi-table writes stay atomic.
type Store struct {
	mu sync.Mutex

	nextID   int64
	services map[int64]domain.Service
	roles    map[int64]domain.Role
	staff    map[int64]domain.StaffMember
	tickets  map[int64]domain.Ticket
	actions  map[int64][]domain.AuditEntry

	pending map[int64]time.Time

	now func() time.Time
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		services: make(map[int64]domain.Service),
		roles:    make(map[int64]domain.Role),
		staff:    make(map[int64]domain.StaffMember),
		tickets:  make(map[int64]domain.Ticket),
		actions:  make(map[int64][]domain.AuditEntry),
		pending:  make(map[int64]time.Time),
		now:      time.Now,
	}
}

func (s *Store) id() int64 {
	s.nextID++
	return s.nextID
}

// TicketCount reports how many tickets exist.
func (s *Store) TicketCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tickets)
}

// ActionCount reports how many audit entries exist for a ticket.
func (s *Store) ActionCount(ticketID int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.actions[ticketID])
}

// Services returns the service repository view.
func (s *Store) Services() *ServiceRepository { return &ServiceRepository{s: s} }

// Roles returns the role repository view.
func (s *Store) Roles() *RoleRepository { return &RoleRepository{s: s} }

// Staff returns the staff repository view.
func (s *Store) Staff() *StaffRepository { return &StaffRepository{s: s} }

// Tickets returns the ticket repository view.
func (s *Store) Tickets() *TicketRepository { return &TicketRepository{s: s} }

// Actions returns the audit log view.
func (s *Store) Actions() *TicketActionRepository { return &TicketActionRepository{s: s} }

// DeletionQueue returns the pending deletion queue view.
func (s *Store) DeletionQueue() *DeletionQueue { return &DeletionQueue{s: s} }

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	return append([]string(nil), in...)
}
