package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/citydesk/emergency-portal/internal/auth"
	"github.com/citydesk/emergency-portal/internal/config"
	"github.com/citydesk/emergency-portal/internal/discord"
	"github.com/citydesk/emergency-portal/internal/domain"
	"github.com/citydesk/emergency-portal/internal/events"
	"github.com/citydesk/emergency-portal/internal/observability"
	"github.com/citydesk/emergency-portal/internal/repository/memory"
)

type sentMessage struct {
	URL string
	Msg discord.Message
}

type recordingSender struct {
	mu   sync.Mutex
	sent []sentMessage
	err  error
}

func (s *recordingSender) Send(_ context.Context, url string, msg discord.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, sentMessage{URL: url, Msg: msg})
	return s.err
}

func (s *recordingSender) Sent() []sentMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]sentMessage(nil), s.sent...)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) Events() []events.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]events.Event(nil), p.events...)
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type portal struct {
	store     *memory.Store
	clock     *fakeClock
	publisher *recordingPublisher
	tickets   *TicketService
	resolver  *auth.Resolver
	directory *DirectoryService
	metrics   *observability.Metrics
}

// newPortal wires the engine against the in-memory store with the default services seeded.
func newPortal(t *testing.T) *portal {
	t.Helper()
	store := memory.NewStore()
	clock := newFakeClock()
	publisher := &recordingPublisher{}
	metrics := observability.NewMetrics()

	p := &portal{
		store:     store,
		clock:     clock,
		publisher: publisher,
		metrics:   metrics,
		resolver:  auth.NewResolver(store.Staff(), store.Roles(), store.Services(), "root", nil),
		tickets: NewTicketService(TicketDependencies{
			TicketRepo:    store.Tickets(),
			ActionRepo:    store.Actions(),
			ServiceRepo:   store.Services(),
			DeletionQueue: store.DeletionQueue(),
			Publisher:     publisher,
			Metrics:       metrics,
			DeletionGrace: 5 * time.Second,
			Clock:         clock.Now,
		}),
		directory: NewDirectoryService(DirectoryDependencies{
			ServiceRepo: store.Services(),
			RoleRepo:    store.Roles(),
			StaffRepo:   store.Staff(),
			TicketRepo:  store.Tickets(),
			Clock:       clock.Now,
		}),
	}
	require.NoError(t, p.directory.EnsureDefaults(context.Background()))
	return p
}

func (p *portal) access(t *testing.T, externalID string) *domain.Access {
	t.Helper()
	access, err := p.resolver.Resolve(context.Background(), domain.Identity{ExternalID: externalID, DisplayName: "name-" + externalID})
	require.NoError(t, err)
	return access
}

func (p *portal) root(t *testing.T) *domain.Access {
	return p.access(t, "root")
}

// staffWith binds externalID to a fresh role with the given permissions and services.
func (p *portal) staffWith(t *testing.T, externalID string, perms []domain.PermissionKind, services ...string) *domain.Access {
	t.Helper()
	ctx := context.Background()
	role := &domain.Role{Name: "role-" + externalID, Permissions: perms, ServiceAccess: services, Status: domain.StatusActive}
	require.NoError(t, p.store.Roles().Create(ctx, role))
	require.NoError(t, p.store.Staff().Create(ctx, &domain.StaffMember{
		ExternalID:  externalID,
		DisplayName: "name-" + externalID,
		RoleID:      &role.ID,
		Status:      domain.StatusActive,
	}))
	return p.access(t, externalID)
}

func (p *portal) open(t *testing.T, service string) *domain.Ticket {
	t.Helper()
	ticket, err := p.tickets.Create(context.Background(), domain.Identity{ExternalID: "citizen", DisplayName: "Citizen"}, TicketCreateInput{
		Service:     service,
		Description: "help needed",
		Location:    "Main St",
		Priority:    domain.TicketPriorityHigh,
	})
	require.NoError(t, err)
	return ticket
}

func (p *portal) setWebhook(t *testing.T, service, url string) {
	t.Helper()
	ctx := context.Background()
	svc, err := p.store.Services().GetByName(ctx, service)
	require.NoError(t, err)
	svc.WebhookURL = url
	require.NoError(t, p.store.Services().Update(ctx, svc))
}

func newNotifier(p *portal, dispatcher events.Dispatcher, sender discord.Sender) *NotificationService {
	n := NewNotificationService(dispatcher, p.store.Services(), sender, p.metrics, nil, config.NotificationConfig{FooterText: "Emergency Services Portal"})
	n.RegisterHandlers()
	return n
}
