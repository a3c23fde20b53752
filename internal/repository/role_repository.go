package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/citydesk/emergency-portal/internal/domain"
)

// RoleRepository manages role persistence.
type RoleRepository interface {
	Create(ctx context.Context, role *domain.Role) error
	Update(ctx context.Context, role *domain.Role) error
	Delete(ctx context.Context, id int64) error
	GetByID(ctx context.Context, id int64) (*domain.Role, error)
	List(ctx context.Context) ([]domain.Role, error)
}

type roleRepository struct {
	pool DB
}

// NewRoleRepository builds the repository.
func NewRoleRepository(pool DB) RoleRepository {
	return &roleRepository{pool: pool}
}

func (r *roleRepository) Create(ctx context.Context, role *domain.Role) error {
	const query = `
        INSERT INTO roles (name, permissions, service_access, status)
        VALUES ($1,$2,$3,$4)
        RETURNING id, created_at, updated_at`
	err := r.pool.QueryRow(ctx, query,
		role.Name,
		permissionStrings(role.Permissions),
		nonNil(role.ServiceAccess),
		role.Status,
	).Scan(&role.ID, &role.CreatedAt, &role.UpdatedAt)
	return mapWriteError(err)
}

func (r *roleRepository) Update(ctx context.Context, role *domain.Role) error {
	const query = `
        UPDATE roles SET name=$1, permissions=$2, service_access=$3, status=$4, updated_at=NOW()
        WHERE id=$5
        RETURNING updated_at`
	err := r.pool.QueryRow(ctx, query,
		role.Name,
		permissionStrings(role.Permissions),
		nonNil(role.ServiceAccess),
		role.Status,
		role.ID,
	).Scan(&role.UpdatedAt)
	return mapWriteError(err)
}

func (r *roleRepository) Delete(ctx context.Context, id int64) error {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM roles WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *roleRepository) GetByID(ctx context.Context, id int64) (*domain.Role, error) {
	const query = `
        SELECT id, name, permissions, service_access, status, created_at, updated_at
        FROM roles WHERE id=$1`
	return scanRole(r.pool.QueryRow(ctx, query, id))
}

func (r *roleRepository) List(ctx context.Context) ([]domain.Role, error) {
	const query = `
        SELECT id, name, permissions, service_access, status, created_at, updated_at
        FROM roles ORDER BY name`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Role
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *role)
	}
	return result, rows.Err()
}

func scanRole(row pgx.Row) (*domain.Role, error) {
	var (
		role        domain.Role
		permissions []string
	)
	if err := row.Scan(
		&role.ID,
		&role.Name,
		&permissions,
		&role.ServiceAccess,
		&role.Status,
		&role.CreatedAt,
		&role.UpdatedAt,
	); err != nil {
		return nil, err
	}
	role.Permissions = domain.ParsePermissions(permissions)
	return &role, nil
}

func permissionStrings(kinds []domain.PermissionKind) []string {
	out := make([]string, 0, len(kinds))
	for _, k := range kinds {
		out = append(out, string(k))
	}
	return out
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
