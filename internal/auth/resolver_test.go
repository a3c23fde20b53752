package auth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/citydesk/emergency-portal/internal/domain"
	"github.com/citydesk/emergency-portal/internal/repository/memory"
)

type resolverFixture struct {
	store    *memory.Store
	resolver *Resolver
}

func newResolverFixture(t *testing.T, superuserID string) *resolverFixture {
	t.Helper()
	store := memory.NewStore()
	ctx := context.Background()
	for _, svc := range domain.DefaultServices() {
		svc := svc
		require.NoError(t, store.Services().Create(ctx, &svc))
	}
	return &resolverFixture{
		store:    store,
		resolver: NewResolver(store.Staff(), store.Roles(), store.Services(), superuserID, nil),
	}
}

func (f *resolverFixture) addStaff(t *testing.T, externalID string, role *domain.Role, status domain.RecordStatus) {
	t.Helper()
	ctx := context.Background()
	member := &domain.StaffMember{ExternalID: externalID, DisplayName: externalID, Status: status}
	if role != nil {
		if role.Status == "" {
			role.Status = domain.StatusActive
		}
		require.NoError(t, f.store.Roles().Create(ctx, role))
		member.RoleID = &role.ID
	}
	require.NoError(t, f.store.Staff().Create(ctx, member))
}

func TestResolver_Superuser(t *testing.T) {
	f := newResolverFixture(t, "root-1")

	access, err := f.resolver.Resolve(context.Background(), domain.Identity{ExternalID: "root-1", DisplayName: "Root"})
	require.NoError(t, err)

	assert.True(t, access.IsSuper)
	for _, p := range domain.AllPermissions() {
		assert.True(t, access.Has(p), "missing %s", p)
	}
	assert.Equal(t, []string{"Coastguard", "Fire", "Highways", "Police", "UHS"}, access.AllowedServices.Sorted())
	assert.True(t, access.CanSeeService("Anything"))
}

func TestResolver_UnknownIdentityGetsNothing(t *testing.T) {
	f := newResolverFixture(t, "root-1")

	access, err := f.resolver.Resolve(context.Background(), domain.Identity{ExternalID: "nobody"})
	require.NoError(t, err)

	assert.False(t, access.IsSuper)
	assert.False(t, access.IsStaff())
	assert.Zero(t, access.AllowedServices.Len())
	assert.False(t, access.CanSeeService("Fire"))
}

func TestResolver_EmptySuperuserIDNeverMatches(t *testing.T) {
	f := newResolverFixture(t, "")

	access, err := f.resolver.Resolve(context.Background(), domain.Identity{ExternalID: ""})
	require.NoError(t, err)
	assert.False(t, access.IsSuper)
}

func TestResolver_RoleScopes(t *testing.T) {
	tests := []struct {
		name         string
		role         *domain.Role
		staffStatus  domain.RecordStatus
		wantPerms    []domain.PermissionKind
		wantServices []string
	}{
		{
			name: "literal permissions and services",
			role: &domain.Role{
				Name:          "Fire Crew",
				Permissions:   []domain.PermissionKind{domain.PermissionViewTickets, domain.PermissionAcceptTickets},
				ServiceAccess: []string{"Fire"},
			},
			staffStatus:  domain.StatusActive,
			wantPerms:    []domain.PermissionKind{domain.PermissionAcceptTickets, domain.PermissionViewTickets},
			wantServices: []string{"Fire"},
		},
		{
			name: "stale service names are carried but harmless",
			role: &domain.Role{
				Name:          "Legacy",
				Permissions:   []domain.PermissionKind{domain.PermissionViewTickets},
				ServiceAccess: []string{"Ambulance", "Police"},
			},
			staffStatus:  domain.StatusActive,
			wantPerms:    []domain.PermissionKind{domain.PermissionViewTickets},
			wantServices: []string{"Ambulance", "Police"},
		},
		{
			name: "admin panel implies everything",
			role: &domain.Role{
				Name:          "Admin",
				Permissions:   []domain.PermissionKind{domain.PermissionAdminPanel},
				ServiceAccess: []string{},
			},
			staffStatus:  domain.StatusActive,
			wantPerms:    domain.AllPermissions(),
			wantServices: []string{"Coastguard", "Fire", "Highways", "Police", "UHS"},
		},
		{
			name: "inactive staff",
			role: &domain.Role{
				Name:          "Police Crew",
				Permissions:   []domain.PermissionKind{domain.PermissionViewTickets},
				ServiceAccess: []string{"Police"},
			},
			staffStatus:  domain.StatusInactive,
			wantPerms:    nil,
			wantServices: []string{},
		},
		{
			name: "inactive role",
			role: &domain.Role{
				Name:          "Retired",
				Permissions:   []domain.PermissionKind{domain.PermissionViewTickets},
				ServiceAccess: []string{"Police"},
				Status:        domain.StatusInactive,
			},
			staffStatus:  domain.StatusActive,
			wantPerms:    nil,
			wantServices: []string{},
		},
		{
			name:         "no role",
			role:         nil,
			staffStatus:  domain.StatusActive,
			wantPerms:    nil,
			wantServices: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newResolverFixture(t, "root-1")
			f.addStaff(t, "staff-1", tt.role, tt.staffStatus)

			access, err := f.resolver.Resolve(context.Background(), domain.Identity{ExternalID: "staff-1"})
			require.NoError(t, err)

			assert.False(t, access.IsSuper)
			assert.ElementsMatch(t, tt.wantPerms, access.Permissions.Sorted())
			assert.Equal(t, tt.wantServices, access.AllowedServices.Sorted())
		})
	}
}

func TestResolver_DeletedRoleResolvesEmpty(t *testing.T) {
	f := newResolverFixture(t, "")
	role := &domain.Role{Name: "Temp", Permissions: []domain.PermissionKind{domain.PermissionViewTickets}}
	f.addStaff(t, "staff-1", role, domain.StatusActive)
	require.NoError(t, f.store.Roles().Delete(context.Background(), role.ID))

	access, err := f.resolver.Resolve(context.Background(), domain.Identity{ExternalID: "staff-1"})
	require.NoError(t, err)
	assert.False(t, access.IsStaff())
}

func TestResolver_IsReadOnly(t *testing.T) {
	f := newResolverFixture(t, "")
	role := &domain.Role{Name: "Crew", Permissions: []domain.PermissionKind{domain.PermissionViewTickets}, ServiceAccess: []string{"Fire"}}
	f.addStaff(t, "staff-1", role, domain.StatusActive)

	before, err := f.store.Roles().GetByID(context.Background(), role.ID)
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		_, err := f.resolver.Resolve(context.Background(), domain.Identity{ExternalID: "staff-1"})
		require.NoError(t, err)
	}
	after, err := f.store.Roles().GetByID(context.Background(), role.ID)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}
