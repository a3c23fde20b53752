package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/citydesk/emergency-portal/internal/domain"
)

// TicketFilter captures listing parameters. A nil ServiceRefs means no scope restriction;
// an empty non-nil slice matches nothing.
type TicketFilter struct {
	ServiceRefs []string
	Statuses    []domain.TicketStatus
	Priorities  []domain.TicketPriority
	Limit       int
	Offset      int
}

// TicketRepository encapsulates ticket persistence.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	GetByID(ctx context.Context, id int64) (*domain.Ticket, error)
	ListWithFilter(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error)
	CountByStatus(ctx context.Context, serviceRefs []string) (map[domain.TicketStatus]int, error)
	CountByService(ctx context.Context, serviceRef string) (int, error)
	// ApplyTransition sets the new status only if the stored status still equals From and
	// appends the audit entry in the same transaction. It returns ErrStaleStatus when the
	// compare fails and pgx.ErrNoRows when the ticket is gone.
	ApplyTransition(ctx context.Context, change *domain.TicketTransition) error
	// Delete removes the ticket together with its audit entries.
	Delete(ctx context.Context, id int64) error
	ListClosedBefore(ctx context.Context, cutoff time.Time, limit int) ([]int64, error)
}

type ticketRepository struct {
	pool DB
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(pool DB) TicketRepository {
	return &ticketRepository{pool: pool}
}

const ticketColumns = `id, service_ref, description, location, priority, status,
        created_by_external_id, created_by_name, created_at, updated_at, closed_at`

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO tickets (service_ref, description, location, priority, status, created_by_external_id, created_by_name)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
        RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		ticket.ServiceRef,
		ticket.Description,
		ticket.Location,
		ticket.Priority,
		ticket.Status,
		ticket.CreatedBy.ExternalID,
		ticket.CreatedBy.DisplayName,
	).Scan(&ticket.ID, &ticket.CreatedAt, &ticket.UpdatedAt)
}

func (r *ticketRepository) GetByID(ctx context.Context, id int64) (*domain.Ticket, error) {
	return scanTicket(r.pool.QueryRow(ctx, `SELECT `+ticketColumns+` FROM tickets WHERE id=$1`, id))
}

func (r *ticketRepository) ListWithFilter(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	clauses, args := ticketClauses(filter)

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`SELECT %s FROM tickets WHERE %s ORDER BY created_at DESC, id DESC LIMIT %d OFFSET %d`,
		ticketColumns, strings.Join(clauses, " AND "), limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Ticket
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *ticket)
	}
	return result, rows.Err()
}

func ticketClauses(filter TicketFilter) ([]string, []any) {
	clauses := []string{"1=1"}
	args := []any{}

	if filter.ServiceRefs != nil {
		args = append(args, filter.ServiceRefs)
		clauses = append(clauses, fmt.Sprintf("service_ref = ANY($%d)", len(args)))
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if len(filter.Priorities) > 0 {
		placeholders := make([]string, len(filter.Priorities))
		for i, pr := range filter.Priorities {
			args = append(args, pr)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("priority IN (%s)", strings.Join(placeholders, ",")))
	}
	return clauses, args
}

func (r *ticketRepository) CountByStatus(ctx context.Context, serviceRefs []string) (map[domain.TicketStatus]int, error) {
	clauses, args := ticketClauses(TicketFilter{ServiceRefs: serviceRefs})
	query := fmt.Sprintf(`SELECT status, COUNT(*) FROM tickets WHERE %s GROUP BY status`, strings.Join(clauses, " AND "))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[domain.TicketStatus]int)
	for rows.Next() {
		var (
			status domain.TicketStatus
			count  int
		)
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		counts[status] = count
	}
	return counts, rows.Err()
}

func (r *ticketRepository) CountByService(ctx context.Context, serviceRef string) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM tickets WHERE service_ref=$1`, serviceRef).Scan(&count)
	return count, err
}

func (r *ticketRepository) ApplyTransition(ctx context.Context, change *domain.TicketTransition) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	var closedAt *time.Time
	if change.To == domain.TicketStatusClosed {
		closedAt = &change.At
	}

	const update = `
        UPDATE tickets SET status=$1, updated_at=$2, closed_at=COALESCE($3, closed_at)
        WHERE id=$4 AND status=$5`
	cmd, err := tx.Exec(ctx, update, change.To, change.At, closedAt, change.TicketID, change.From)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM tickets WHERE id=$1)`, change.TicketID).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return pgx.ErrNoRows
		}
		return ErrStaleStatus
	}

	if err := insertTicketAction(ctx, tx, &change.Entry); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *ticketRepository) Delete(ctx context.Context, id int64) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if err := deleteTicketActions(ctx, tx, id); err != nil {
		return err
	}
	cmd, err := tx.Exec(ctx, `DELETE FROM tickets WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return tx.Commit(ctx)
}

func (r *ticketRepository) ListClosedBefore(ctx context.Context, cutoff time.Time, limit int) ([]int64, error) {
	if limit <= 0 {
		limit = 100
	}
	const query = `
        SELECT id FROM tickets
        WHERE status='closed' AND closed_at IS NOT NULL AND closed_at <= $1
        ORDER BY closed_at LIMIT $2`
	rows, err := r.pool.Query(ctx, query, cutoff, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func scanTicket(row pgx.Row) (*domain.Ticket, error) {
	var ticket domain.Ticket
	if err := row.Scan(
		&ticket.ID,
		&ticket.ServiceRef,
		&ticket.Description,
		&ticket.Location,
		&ticket.Priority,
		&ticket.Status,
		&ticket.CreatedBy.ExternalID,
		&ticket.CreatedBy.DisplayName,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
		&ticket.ClosedAt,
	); err != nil {
		return nil, err
	}
	return &ticket, nil
}

// IsNotFound reports whether err means the row does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
