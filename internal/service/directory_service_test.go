package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/citydesk/emergency-portal/internal/domain"
	"github.com/citydesk/emergency-portal/internal/repository"
	apperrors "github.com/citydesk/emergency-portal/pkg/util"
)

type stubTester struct {
	mu    sync.Mutex
	calls []string
	fail  map[string]error
}

func (s *stubTester) SendTest(_ context.Context, svc domain.Service) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, svc.Name)
	return s.fail[svc.Name]
}

func (s *stubTester) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

func directoryWithTester(p *portal, tester WebhookTester, delay time.Duration) *DirectoryService {
	return NewDirectoryService(DirectoryDependencies{
		ServiceRepo:   p.store.Services(),
		RoleRepo:      p.store.Roles(),
		StaffRepo:     p.store.Staff(),
		TicketRepo:    p.store.Tickets(),
		WebhookTester: tester,
		BulkTestDelay: delay,
		Clock:         p.clock.Now,
	})
}

func TestDirectoryService_EnsureDefaultsIsIdempotent(t *testing.T) {
	p := newPortal(t)
	ctx := context.Background()
	require.NoError(t, p.directory.EnsureDefaults(ctx))

	services, err := p.store.Services().List(ctx, repository.ServiceFilter{})
	require.NoError(t, err)
	assert.Len(t, services, len(domain.DefaultServices()))

	roles, err := p.store.Roles().List(ctx)
	require.NoError(t, err)
	require.Len(t, roles, 1)
	assert.Equal(t, domain.DefaultAdminRoleName, roles[0].Name)
	assert.True(t, roles[0].IsAdmin())
}

func TestDirectoryService_RequiresManagementPermissions(t *testing.T) {
	p := newPortal(t)
	ctx := context.Background()
	crew := p.staffWith(t, "crew", allTicketPerms, "Fire")

	_, err := p.directory.ListServices(ctx, crew)
	assert.ErrorIs(t, err, apperrors.ErrForbidden)
	_, err = p.directory.ListRoles(ctx, crew)
	assert.ErrorIs(t, err, apperrors.ErrForbidden)
	_, err = p.directory.ListStaff(ctx, crew, StaffListFilters{})
	assert.ErrorIs(t, err, apperrors.ErrForbidden)

	services, err := p.directory.ListActiveServices(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, services)

	manager := p.staffWith(t, "mgr", []domain.PermissionKind{domain.PermissionManageRoles})
	_, err = p.directory.ListRoles(ctx, manager)
	assert.NoError(t, err)
	_, err = p.directory.ListServices(ctx, manager)
	assert.ErrorIs(t, err, apperrors.ErrForbidden)
}

func TestDirectoryService_Services(t *testing.T) {
	p := newPortal(t)
	ctx := context.Background()
	root := p.root(t)

	svc, err := p.directory.CreateService(ctx, root, ServiceInput{Name: " Mountain Rescue ", DiscordRole: "123"})
	require.NoError(t, err)
	assert.Equal(t, "Mountain Rescue", svc.Name)
	assert.Equal(t, domain.StatusActive, svc.Status)

	_, err = p.directory.CreateService(ctx, root, ServiceInput{Name: "Mountain Rescue"})
	assert.ErrorIs(t, err, apperrors.ErrConflict)

	_, err = p.directory.CreateService(ctx, root, ServiceInput{Name: ""})
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	_, err = p.directory.CreateService(ctx, root, ServiceInput{Name: "X", Status: "paused"})
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	updated, err := p.directory.UpdateService(ctx, root, svc.ID, ServiceInput{Name: "Mountain Rescue Team", Status: domain.StatusInactive})
	require.NoError(t, err)
	assert.Equal(t, "Mountain Rescue Team", updated.Name)
	assert.False(t, updated.Active())
	assert.Equal(t, svc.CreatedAt, updated.CreatedAt)

	require.NoError(t, p.directory.DeleteService(ctx, root, svc.ID))
	_, err = p.directory.GetService(ctx, root, svc.ID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestDirectoryService_ServiceWithTicketsKeepsItsName(t *testing.T) {
	p := newPortal(t)
	ctx := context.Background()
	root := p.root(t)
	p.open(t, "Fire")
	fire, err := p.store.Services().GetByName(ctx, "Fire")
	require.NoError(t, err)

	_, err = p.directory.UpdateService(ctx, root, fire.ID, ServiceInput{Name: "Fire & Rescue"})
	assert.ErrorIs(t, err, apperrors.ErrConflict)

	err = p.directory.DeleteService(ctx, root, fire.ID)
	assert.ErrorIs(t, err, apperrors.ErrConflict)

	updated, err := p.directory.UpdateService(ctx, root, fire.ID, ServiceInput{Name: "Fire", WebhookURL: "https://discord.test/fire"})
	require.NoError(t, err)
	assert.Equal(t, "https://discord.test/fire", updated.WebhookURL)
}

func TestDirectoryService_Roles(t *testing.T) {
	p := newPortal(t)
	ctx := context.Background()
	root := p.root(t)

	_, err := p.directory.CreateRole(ctx, root, RoleInput{Name: "Dispatcher", Permissions: []string{"view_tickets", "fly_helicopter"}})
	require.ErrorIs(t, err, apperrors.ErrValidation)
	assert.Equal(t, []string{"fly_helicopter"}, apperrors.ToDomainError(err).Details["permissions"])

	role, err := p.directory.CreateRole(ctx, root, RoleInput{
		Name:          "Dispatcher",
		Permissions:   []string{"VIEW_TICKETS", "accept_tickets", "view_tickets"},
		ServiceAccess: []string{"Fire", " "},
	})
	require.NoError(t, err)
	assert.Equal(t, []domain.PermissionKind{domain.PermissionViewTickets, domain.PermissionAcceptTickets}, role.Permissions)
	assert.Equal(t, []string{"Fire"}, role.ServiceAccess)

	_, err = p.directory.CreateRole(ctx, root, RoleInput{Name: "Dispatcher"})
	assert.ErrorIs(t, err, apperrors.ErrConflict)

	member, err := p.directory.CreateStaff(ctx, root, StaffInput{ExternalID: "d1", RoleID: &role.ID})
	require.NoError(t, err)
	assert.True(t, p.access(t, "d1").Has(domain.PermissionAcceptTickets))

	// permission changes apply on the next resolution
	_, err = p.directory.UpdateRole(ctx, root, role.ID, RoleInput{Name: "Dispatcher", Permissions: []string{"view_tickets"}, ServiceAccess: []string{"Fire"}})
	require.NoError(t, err)
	assert.False(t, p.access(t, "d1").Has(domain.PermissionAcceptTickets))

	require.NoError(t, p.directory.DeleteRole(ctx, root, role.ID))
	stored, err := p.directory.GetStaff(ctx, root, member.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.RoleID)
	assert.False(t, p.access(t, "d1").IsStaff())
}

func TestDirectoryService_Staff(t *testing.T) {
	p := newPortal(t)
	ctx := context.Background()
	root := p.root(t)

	missing := int64(9999)
	_, err := p.directory.CreateStaff(ctx, root, StaffInput{ExternalID: "s1", RoleID: &missing})
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	_, err = p.directory.CreateStaff(ctx, root, StaffInput{ExternalID: " "})
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	member, err := p.directory.CreateStaff(ctx, root, StaffInput{ExternalID: "s1", DisplayName: "Sam"})
	require.NoError(t, err)

	_, err = p.directory.CreateStaff(ctx, root, StaffInput{ExternalID: "s1"})
	assert.ErrorIs(t, err, apperrors.ErrConflict)

	updated, err := p.directory.UpdateStaff(ctx, root, member.ID, StaffInput{ExternalID: "s1", DisplayName: "Samantha", Status: domain.StatusInactive})
	require.NoError(t, err)
	assert.Equal(t, "Samantha", updated.DisplayName)
	assert.False(t, updated.Active())

	inactive := domain.StatusInactive
	list, err := p.directory.ListStaff(ctx, root, StaffListFilters{Status: &inactive})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, member.ID, list[0].ID)

	require.NoError(t, p.directory.DeleteStaff(ctx, root, member.ID))
	assert.ErrorIs(t, p.directory.DeleteStaff(ctx, root, member.ID), apperrors.ErrNotFound)
}

func TestDirectoryService_TestWebhook(t *testing.T) {
	p := newPortal(t)
	ctx := context.Background()
	root := p.root(t)
	tester := &stubTester{fail: map[string]error{"Police": errors.New("404 Unknown Webhook")}}
	dir := directoryWithTester(p, tester, 0)

	fire, err := p.store.Services().GetByName(ctx, "Fire")
	require.NoError(t, err)
	_, err = dir.TestWebhook(ctx, root, fire.ID)
	assert.ErrorIs(t, err, apperrors.ErrValidation)
	assert.Empty(t, tester.Calls())

	p.setWebhook(t, "Fire", "https://discord.test/fire")
	result, err := dir.TestWebhook(ctx, root, fire.ID)
	require.NoError(t, err)
	assert.True(t, result.OK)
	assert.Equal(t, p.clock.Now(), result.TestedAt)

	p.setWebhook(t, "Police", "https://discord.test/police")
	police, err := p.store.Services().GetByName(ctx, "Police")
	require.NoError(t, err)
	result, err = dir.TestWebhook(ctx, root, police.ID)
	require.Error(t, err)
	require.NotNil(t, result)
	assert.False(t, result.OK)
	assert.Contains(t, result.Error, "Unknown Webhook")

	police, err = p.store.Services().GetByName(ctx, "Police")
	require.NoError(t, err)
	require.NotNil(t, police.LastWebhookTestOK)
	assert.False(t, *police.LastWebhookTestOK)
}

func TestDirectoryService_TestAllWebhooks(t *testing.T) {
	p := newPortal(t)
	ctx := context.Background()
	root := p.root(t)
	p.setWebhook(t, "Fire", "https://discord.test/fire")
	p.setWebhook(t, "Police", "https://discord.test/police")
	p.setWebhook(t, "UHS", "https://discord.test/uhs")
	tester := &stubTester{fail: map[string]error{"Police": errors.New("rate limited")}}

	t.Run("reports each service", func(t *testing.T) {
		dir := directoryWithTester(p, tester, 10*time.Millisecond)
		start := time.Now()
		results, err := dir.TestAllWebhooks(ctx, root)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)

		require.Len(t, results, 3)
		byName := map[string]WebhookTestResult{}
		for _, r := range results {
			byName[r.Service] = r
		}
		assert.True(t, byName["Fire"].OK)
		assert.False(t, byName["Police"].OK)
		assert.True(t, byName["UHS"].OK)
	})

	t.Run("stops when cancelled", func(t *testing.T) {
		dir := directoryWithTester(p, tester, time.Hour)
		cctx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
		defer cancel()
		results, err := dir.TestAllWebhooks(cctx, root)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
		assert.Len(t, results, 1)
	})

	t.Run("forbidden without manage services", func(t *testing.T) {
		dir := directoryWithTester(p, tester, 0)
		_, err := dir.TestAllWebhooks(ctx, p.access(t, "nobody"))
		assert.ErrorIs(t, err, apperrors.ErrForbidden)
	})
}
