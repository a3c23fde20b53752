package repository

import (
	"context"

	"github.com/citydesk/emergency-portal/internal/domain"
)

// TicketActionRepository reads the audit log. Entries are written only inside
// TicketRepository.ApplyTransition and removed only with their ticket.
type TicketActionRepository interface {
	ListByTicket(ctx context.Context, ticketID int64) ([]domain.AuditEntry, error)
}

type ticketActionRepository struct {
	pool DB
}

// NewTicketActionRepository builds repository.
func NewTicketActionRepository(pool DB) TicketActionRepository {
	return &ticketActionRepository{pool: pool}
}

func insertTicketAction(ctx context.Context, q execQuerier, entry *domain.AuditEntry) error {
	const query = `
        INSERT INTO ticket_actions (ticket_id, action, notes, performed_by_external_id, performed_by_name, performed_at)
        VALUES ($1,$2,$3,$4,$5,$6)
        RETURNING id`
	return q.QueryRow(ctx, query,
		entry.TicketID,
		entry.Action,
		entry.Notes,
		entry.PerformedBy.ExternalID,
		entry.PerformedBy.DisplayName,
		entry.PerformedAt,
	).Scan(&entry.ID)
}

func deleteTicketActions(ctx context.Context, q execQuerier, ticketID int64) error {
	_, err := q.Exec(ctx, `DELETE FROM ticket_actions WHERE ticket_id=$1`, ticketID)
	return err
}

func (r *ticketActionRepository) ListByTicket(ctx context.Context, ticketID int64) ([]domain.AuditEntry, error) {
	const query = `
        SELECT id, ticket_id, action, notes, performed_by_external_id, performed_by_name, performed_at
        FROM ticket_actions WHERE ticket_id=$1 ORDER BY performed_at ASC, id ASC`
	rows, err := r.pool.Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.AuditEntry
	for rows.Next() {
		var entry domain.AuditEntry
		if err := rows.Scan(
			&entry.ID,
			&entry.TicketID,
			&entry.Action,
			&entry.Notes,
			&entry.PerformedBy.ExternalID,
			&entry.PerformedBy.DisplayName,
			&entry.PerformedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, entry)
	}
	return result, rows.Err()
}
