package repository

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/citydesk/emergency-portal/internal/domain"
)

func TestServiceRepository_CreateMapsUniqueViolation(t *testing.T) {
	mock := newMockPool(t)
	repo := NewServiceRepository(mock)
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`INSERT INTO services`).
		WithArgs("Fire", "Fire and rescue", "1234", "", domain.StatusActive).
		WillReturnRows(pgxmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(int64(1), now, now))
	mock.ExpectQuery(`INSERT INTO services`).
		WillReturnError(&pgconn.PgError{Code: "23505", Message: "duplicate key value violates unique constraint"})

	svc := &domain.Service{Name: "Fire", Description: "Fire and rescue", DiscordRole: "1234", Status: domain.StatusActive}
	require.NoError(t, repo.Create(context.Background(), svc))
	assert.Equal(t, int64(1), svc.ID)
	assert.Equal(t, now, svc.CreatedAt)

	err := repo.Create(context.Background(), &domain.Service{Name: "Fire", Status: domain.StatusActive})
	assert.ErrorIs(t, err, ErrDuplicate)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestServiceRepository_ListFilters(t *testing.T) {
	mock := newMockPool(t)
	repo := NewServiceRepository(mock)
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	columns := []string{"id", "name", "description", "discord_role", "webhook_url", "status",
		"last_webhook_test_at", "last_webhook_test_ok", "created_at", "updated_at"}
	mock.ExpectQuery(`AND status = 'active' AND webhook_url <> '' ORDER BY name`).
		WillReturnRows(pgxmock.NewRows(columns).AddRow(
			int64(2), "Police", "", "", "https://discord.test/hook", domain.StatusActive,
			(*time.Time)(nil), (*bool)(nil), now, now,
		))

	services, err := repo.List(context.Background(), ServiceFilter{ActiveOnly: true, WithWebhook: true})
	require.NoError(t, err)
	require.Len(t, services, 1)
	assert.Equal(t, "Police", services[0].Name)
	assert.True(t, services[0].HasWebhook())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestServiceRepository_MissingRows(t *testing.T) {
	mock := newMockPool(t)
	repo := NewServiceRepository(mock)

	mock.ExpectExec(`DELETE FROM services WHERE id=\$1`).
		WithArgs(int64(9)).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectExec(`UPDATE services SET last_webhook_test_at=\$1`).
		WithArgs(pgxmock.AnyArg(), false, int64(9)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectQuery(`FROM services WHERE name=\$1`).
		WithArgs("Coastguard").
		WillReturnError(pgx.ErrNoRows)

	ctx := context.Background()
	assert.True(t, IsNotFound(repo.Delete(ctx, 9)))
	assert.True(t, IsNotFound(repo.RecordWebhookTest(ctx, 9, time.Now(), false)))
	_, err := repo.GetByName(ctx, "Coastguard")
	assert.True(t, IsNotFound(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRoleRepository_CreateStoresPermissionNames(t *testing.T) {
	mock := newMockPool(t)
	repo := NewRoleRepository(mock)
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`INSERT INTO roles`).
		WithArgs("Dispatcher", []string{"view_tickets", "accept_tickets"}, []string{}, domain.StatusActive).
		WillReturnRows(pgxmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(int64(4), now, now))

	role := &domain.Role{
		Name:        "Dispatcher",
		Permissions: []domain.PermissionKind{domain.PermissionViewTickets, domain.PermissionAcceptTickets},
		Status:      domain.StatusActive,
	}
	require.NoError(t, repo.Create(context.Background(), role))
	assert.Equal(t, int64(4), role.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRoleRepository_GetByIDDropsUnknownPermissions(t *testing.T) {
	mock := newMockPool(t)
	repo := NewRoleRepository(mock)
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`FROM roles WHERE id=\$1`).
		WithArgs(int64(4)).
		WillReturnRows(pgxmock.NewRows([]string{"id", "name", "permissions", "service_access", "status", "created_at", "updated_at"}).
			AddRow(int64(4), "Dispatcher", []string{"view_tickets", "launch_rockets"}, []string{"Fire"}, domain.StatusActive, now, now))

	role, err := repo.GetByID(context.Background(), 4)
	require.NoError(t, err)
	assert.Equal(t, []domain.PermissionKind{domain.PermissionViewTickets}, role.Permissions)
	assert.Equal(t, []string{"Fire"}, role.ServiceAccess)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStaffRepository_GetByExternalID(t *testing.T) {
	mock := newMockPool(t)
	repo := NewStaffRepository(mock)
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	roleID := int64(4)

	columns := []string{"id", "external_id", "display_name", "role_id", "status", "created_at", "updated_at"}
	mock.ExpectQuery(`FROM staff_members WHERE external_id=\$1`).
		WithArgs("821445289477931069").
		WillReturnRows(pgxmock.NewRows(columns).AddRow(int64(7), "821445289477931069", "Sam", &roleID, domain.StatusActive, now, now))
	mock.ExpectQuery(`FROM staff_members WHERE external_id=\$1`).
		WithArgs("nobody").
		WillReturnError(pgx.ErrNoRows)

	member, err := repo.GetByExternalID(context.Background(), "821445289477931069")
	require.NoError(t, err)
	require.NotNil(t, member.RoleID)
	assert.Equal(t, roleID, *member.RoleID)
	assert.True(t, member.Active())

	_, err = repo.GetByExternalID(context.Background(), "nobody")
	assert.True(t, IsNotFound(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}
