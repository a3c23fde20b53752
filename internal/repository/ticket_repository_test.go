package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/citydesk/emergency-portal/internal/domain"
)

func newMockPool(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock
}

func acceptChange(at time.Time) *domain.TicketTransition {
	return &domain.TicketTransition{
		TicketID: 11,
		From:     domain.TicketStatusOpen,
		To:       domain.TicketStatusAccepted,
		At:       at,
		Entry: domain.AuditEntry{
			TicketID:    11,
			Action:      domain.TicketActionAccept,
			Notes:       "on it",
			PerformedBy: domain.Identity{ExternalID: "crew-1", DisplayName: "Crew"},
			PerformedAt: at,
		},
	}
}

func TestTicketRepository_ApplyTransitionWritesStatusAndAudit(t *testing.T) {
	mock := newMockPool(t)
	repo := NewTicketRepository(mock)
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	change := acceptChange(at)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE tickets SET status=\$1`).
		WithArgs(domain.TicketStatusAccepted, at, pgxmock.AnyArg(), int64(11), domain.TicketStatusOpen).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectQuery(`INSERT INTO ticket_actions`).
		WithArgs(int64(11), domain.TicketActionAccept, "on it", "crew-1", "Crew", at).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(99)))
	mock.ExpectCommit()

	require.NoError(t, repo.ApplyTransition(context.Background(), change))
	assert.Equal(t, int64(99), change.Entry.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTicketRepository_ApplyTransitionStaleStatus(t *testing.T) {
	mock := newMockPool(t)
	repo := NewTicketRepository(mock)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE tickets SET status=\$1`).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs(int64(11)).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectRollback()

	err := repo.ApplyTransition(context.Background(), acceptChange(time.Now()))
	assert.ErrorIs(t, err, ErrStaleStatus)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTicketRepository_ApplyTransitionMissingTicket(t *testing.T) {
	mock := newMockPool(t)
	repo := NewTicketRepository(mock)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE tickets SET status=\$1`).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs(int64(11)).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectRollback()

	err := repo.ApplyTransition(context.Background(), acceptChange(time.Now()))
	assert.True(t, IsNotFound(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTicketRepository_ApplyTransitionRollsBackWhenAuditFails(t *testing.T) {
	mock := newMockPool(t)
	repo := NewTicketRepository(mock)
	auditErr := errors.New("ticket_actions unavailable")

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE tickets SET status=\$1`).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectQuery(`INSERT INTO ticket_actions`).
		WillReturnError(auditErr)
	mock.ExpectRollback()

	err := repo.ApplyTransition(context.Background(), acceptChange(time.Now()))
	assert.ErrorIs(t, err, auditErr)
	// no commit was expected, so the status update never became visible
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTicketRepository_ApplyTransitionStampsClosedAt(t *testing.T) {
	mock := newMockPool(t)
	repo := NewTicketRepository(mock)
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	change := acceptChange(at)
	change.From, change.To = domain.TicketStatusAccepted, domain.TicketStatusClosed
	change.Entry.Action = domain.TicketActionClose

	mock.ExpectBegin()
	mock.ExpectExec(`closed_at=COALESCE\(\$3, closed_at\)`).
		WithArgs(domain.TicketStatusClosed, at, &at, int64(11), domain.TicketStatusAccepted).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectQuery(`INSERT INTO ticket_actions`).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(100)))
	mock.ExpectCommit()

	require.NoError(t, repo.ApplyTransition(context.Background(), change))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTicketRepository_DeleteCascadesAuditEntries(t *testing.T) {
	mock := newMockPool(t)
	repo := NewTicketRepository(mock)

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM ticket_actions WHERE ticket_id=\$1`).
		WithArgs(int64(11)).
		WillReturnResult(pgxmock.NewResult("DELETE", 2))
	mock.ExpectExec(`DELETE FROM tickets WHERE id=\$1`).
		WithArgs(int64(11)).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectCommit()

	require.NoError(t, repo.Delete(context.Background(), 11))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTicketRepository_DeleteMissingTicket(t *testing.T) {
	mock := newMockPool(t)
	repo := NewTicketRepository(mock)

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM ticket_actions`).
		WithArgs(int64(11)).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectExec(`DELETE FROM tickets`).
		WithArgs(int64(11)).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectRollback()

	err := repo.Delete(context.Background(), 11)
	assert.ErrorIs(t, err, pgx.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTicketRepository_ListClosedBefore(t *testing.T) {
	mock := newMockPool(t)
	repo := NewTicketRepository(mock)
	cutoff := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`WHERE status='closed' AND closed_at IS NOT NULL AND closed_at <= \$1`).
		WithArgs(cutoff, 100).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(3)).AddRow(int64(8)))

	ids, err := repo.ListClosedBefore(context.Background(), cutoff, 0)
	require.NoError(t, err)
	assert.Equal(t, []int64{3, 8}, ids)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTicketRepository_GetByID(t *testing.T) {
	mock := newMockPool(t)
	repo := NewTicketRepository(mock)
	created := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	closed := created.Add(time.Hour)

	columns := []string{"id", "service_ref", "description", "location", "priority", "status",
		"created_by_external_id", "created_by_name", "created_at", "updated_at", "closed_at"}
	mock.ExpectQuery(`FROM tickets WHERE id=\$1`).
		WithArgs(int64(5)).
		WillReturnRows(pgxmock.NewRows(columns).AddRow(
			int64(5), "Fire", "smoke", "Dock 4", domain.TicketPriorityHigh, domain.TicketStatusClosed,
			"u1", "Jo", created, closed, &closed,
		))
	mock.ExpectQuery(`FROM tickets WHERE id=\$1`).
		WithArgs(int64(6)).
		WillReturnError(pgx.ErrNoRows)

	ticket, err := repo.GetByID(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, "Fire", ticket.ServiceRef)
	assert.Equal(t, domain.TicketStatusClosed, ticket.Status)
	assert.Equal(t, domain.Identity{ExternalID: "u1", DisplayName: "Jo"}, ticket.CreatedBy)
	require.NotNil(t, ticket.ClosedAt)
	assert.Equal(t, closed, *ticket.ClosedAt)

	_, err = repo.GetByID(context.Background(), 6)
	assert.True(t, IsNotFound(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTicketRepository_ListWithFilterBuildsScopedQuery(t *testing.T) {
	mock := newMockPool(t)
	repo := NewTicketRepository(mock)

	mock.ExpectQuery(`service_ref = ANY\(\$1\) AND status IN \(\$2\) ORDER BY created_at DESC, id DESC LIMIT 10 OFFSET 20`).
		WithArgs([]string{"Fire"}, domain.TicketStatusOpen).
		WillReturnRows(pgxmock.NewRows([]string{"id", "service_ref", "description", "location", "priority", "status",
			"created_by_external_id", "created_by_name", "created_at", "updated_at", "closed_at"}))

	tickets, err := repo.ListWithFilter(context.Background(), TicketFilter{
		ServiceRefs: []string{"Fire"},
		Statuses:    []domain.TicketStatus{domain.TicketStatusOpen},
		Limit:       10,
		Offset:      20,
	})
	require.NoError(t, err)
	assert.Empty(t, tickets)
	assert.NoError(t, mock.ExpectationsWereMet())
}
