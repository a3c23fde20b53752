package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/citydesk/emergency-portal/internal/domain"
)

// ServiceFilter restricts service listings.
type ServiceFilter struct {
	ActiveOnly  bool
	WithWebhook bool
}

// ServiceRepository manages responder service persistence.
type ServiceRepository interface {
	Create(ctx context.Context, svc *domain.Service) error
	Update(ctx context.Context, svc *domain.Service) error
	Delete(ctx context.Context, id int64) error
	GetByID(ctx context.Context, id int64) (*domain.Service, error)
	GetByName(ctx context.Context, name string) (*domain.Service, error)
	List(ctx context.Context, filter ServiceFilter) ([]domain.Service, error)
	RecordWebhookTest(ctx context.Context, id int64, at time.Time, ok bool) error
}

type serviceRepository struct {
	pool DB
}

// NewServiceRepository builds the repository.
func NewServiceRepository(pool DB) ServiceRepository {
	return &serviceRepository{pool: pool}
}

const serviceColumns = `id, name, description, discord_role, webhook_url, status,
        last_webhook_test_at, last_webhook_test_ok, created_at, updated_at`

func (r *serviceRepository) Create(ctx context.Context, svc *domain.Service) error {
	const query = `
        INSERT INTO services (name, description, discord_role, webhook_url, status)
        VALUES ($1,$2,$3,$4,$5)
        RETURNING id, created_at, updated_at`
	err := r.pool.QueryRow(ctx, query,
		svc.Name,
		svc.Description,
		svc.DiscordRole,
		svc.WebhookURL,
		svc.Status,
	).Scan(&svc.ID, &svc.CreatedAt, &svc.UpdatedAt)
	return mapWriteError(err)
}

func (r *serviceRepository) Update(ctx context.Context, svc *domain.Service) error {
	const query = `
        UPDATE services SET name=$1, description=$2, discord_role=$3, webhook_url=$4, status=$5, updated_at=NOW()
        WHERE id=$6
        RETURNING updated_at`
	err := r.pool.QueryRow(ctx, query,
		svc.Name,
		svc.Description,
		svc.DiscordRole,
		svc.WebhookURL,
		svc.Status,
		svc.ID,
	).Scan(&svc.UpdatedAt)
	return mapWriteError(err)
}

func (r *serviceRepository) Delete(ctx context.Context, id int64) error {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM services WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *serviceRepository) GetByID(ctx context.Context, id int64) (*domain.Service, error) {
	return r.fetchSingle(ctx, `SELECT `+serviceColumns+` FROM services WHERE id=$1`, id)
}

func (r *serviceRepository) GetByName(ctx context.Context, name string) (*domain.Service, error) {
	return r.fetchSingle(ctx, `SELECT `+serviceColumns+` FROM services WHERE name=$1`, name)
}

func (r *serviceRepository) fetchSingle(ctx context.Context, query string, arg any) (*domain.Service, error) {
	svc, err := scanService(r.pool.QueryRow(ctx, query, arg))
	if err != nil {
		return nil, err
	}
	return svc, nil
}

func (r *serviceRepository) List(ctx context.Context, filter ServiceFilter) ([]domain.Service, error) {
	query := `SELECT ` + serviceColumns + ` FROM services WHERE 1=1`
	if filter.ActiveOnly {
		query += ` AND status = 'active'`
	}
	if filter.WithWebhook {
		query += ` AND webhook_url <> ''`
	}
	query += ` ORDER BY name`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Service
	for rows.Next() {
		svc, err := scanService(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *svc)
	}
	return result, rows.Err()
}

func (r *serviceRepository) RecordWebhookTest(ctx context.Context, id int64, at time.Time, ok bool) error {
	const query = `UPDATE services SET last_webhook_test_at=$1, last_webhook_test_ok=$2 WHERE id=$3`
	cmd, err := r.pool.Exec(ctx, query, at, ok, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func scanService(row pgx.Row) (*domain.Service, error) {
	var svc domain.Service
	if err := row.Scan(
		&svc.ID,
		&svc.Name,
		&svc.Description,
		&svc.DiscordRole,
		&svc.WebhookURL,
		&svc.Status,
		&svc.LastWebhookTestAt,
		&svc.LastWebhookTestOK,
		&svc.CreatedAt,
		&svc.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &svc, nil
}
