package memory

import (
	"context"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/citydesk/emergency-portal/internal/domain"
	"github.com/citydesk/emergency-portal/internal/repository"
)

// ServiceRepository is the in-memory repository.ServiceRepository.
type ServiceRepository struct{ s *Store }

var _ repository.ServiceRepository = (*ServiceRepository)(nil)

func (r *ServiceRepository) Create(_ context.Context, svc *domain.Service) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.services {
		if existing.Name == svc.Name {
			return repository.ErrDuplicate
		}
	}
	now := r.s.now()
	svc.ID = r.s.id()
	svc.CreatedAt, svc.UpdatedAt = now, now
	r.s.services[svc.ID] = *svc
	return nil
}

func (r *ServiceRepository) Update(_ context.Context, svc *domain.Service) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	current, ok := r.s.services[svc.ID]
	if !ok {
		return pgx.ErrNoRows
	}
	for id, existing := range r.s.services {
		if id != svc.ID && existing.Name == svc.Name {
			return repository.ErrDuplicate
		}
	}
	svc.CreatedAt = current.CreatedAt
	svc.LastWebhookTestAt, svc.LastWebhookTestOK = current.LastWebhookTestAt, current.LastWebhookTestOK
	svc.UpdatedAt = r.s.now()
	r.s.services[svc.ID] = *svc
	return nil
}

func (r *ServiceRepository) Delete(_ context.Context, id int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.services[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(r.s.services, id)
	return nil
}

func (r *ServiceRepository) GetByID(_ context.Context, id int64) (*domain.Service, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	svc, ok := r.s.services[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &svc, nil
}

func (r *ServiceRepository) GetByName(_ context.Context, name string) (*domain.Service, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, svc := range r.s.services {
		if svc.Name == name {
			return &svc, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *ServiceRepository) List(_ context.Context, filter repository.ServiceFilter) ([]domain.Service, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []domain.Service
	for _, svc := range r.s.services {
		if filter.ActiveOnly && !svc.Active() {
			continue
		}
		if filter.WithWebhook && !svc.HasWebhook() {
			continue
		}
		out = append(out, svc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *ServiceRepository) RecordWebhookTest(_ context.Context, id int64, at time.Time, ok bool) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	svc, found := r.s.services[id]
	if !found {
		return pgx.ErrNoRows
	}
	svc.LastWebhookTestAt = &at
	svc.LastWebhookTestOK = &ok
	r.s.services[id] = svc
	return nil
}

// RoleRepository is the in-memory repository.RoleRepository.
type RoleRepository struct{ s *Store }

var _ repository.RoleRepository = (*RoleRepository)(nil)

func (r *RoleRepository) Create(_ context.Context, role *domain.Role) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.roles {
		if existing.Name == role.Name {
			return repository.ErrDuplicate
		}
	}
	now := r.s.now()
	role.ID = r.s.id()
	role.CreatedAt, role.UpdatedAt = now, now
	r.s.roles[role.ID] = cloneRole(*role)
	return nil
}

func (r *RoleRepository) Update(_ context.Context, role *domain.Role) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	current, ok := r.s.roles[role.ID]
	if !ok {
		return pgx.ErrNoRows
	}
	for id, existing := range r.s.roles {
		if id != role.ID && existing.Name == role.Name {
			return repository.ErrDuplicate
		}
	}
	role.CreatedAt = current.CreatedAt
	role.UpdatedAt = r.s.now()
	r.s.roles[role.ID] = cloneRole(*role)
	return nil
}

func (r *RoleRepository) Delete(_ context.Context, id int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.roles[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(r.s.roles, id)
	for sid, member := range r.s.staff {
		if member.RoleID != nil && *member.RoleID == id {
			member.RoleID = nil
			r.s.staff[sid] = member
		}
	}
	return nil
}

func (r *RoleRepository) GetByID(_ context.Context, id int64) (*domain.Role, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	role, ok := r.s.roles[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	role = cloneRole(role)
	return &role, nil
}

func (r *RoleRepository) List(_ context.Context) ([]domain.Role, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]domain.Role, 0, len(r.s.roles))
	for _, role := range r.s.roles {
		out = append(out, cloneRole(role))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func cloneRole(role domain.Role) domain.Role {
	role.Permissions = append([]domain.PermissionKind(nil), role.Permissions...)
	role.ServiceAccess = cloneStrings(role.ServiceAccess)
	return role
}

// StaffRepository is the in-memory repository.StaffRepository.
type StaffRepository struct{ s *Store }

var _ repository.StaffRepository = (*StaffRepository)(nil)

func (r *StaffRepository) Create(_ context.Context, staff *domain.StaffMember) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.staff {
		if existing.ExternalID == staff.ExternalID {
			return repository.ErrDuplicate
		}
	}
	now := r.s.now()
	staff.ID = r.s.id()
	staff.CreatedAt, staff.UpdatedAt = now, now
	r.s.staff[staff.ID] = *staff
	return nil
}

func (r *StaffRepository) Update(_ context.Context, staff *domain.StaffMember) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	current, ok := r.s.staff[staff.ID]
	if !ok {
		return pgx.ErrNoRows
	}
	for id, existing := range r.s.staff {
		if id != staff.ID && existing.ExternalID == staff.ExternalID {
			return repository.ErrDuplicate
		}
	}
	staff.CreatedAt = current.CreatedAt
	staff.UpdatedAt = r.s.now()
	r.s.staff[staff.ID] = *staff
	return nil
}

func (r *StaffRepository) Delete(_ context.Context, id int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.staff[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(r.s.staff, id)
	return nil
}

func (r *StaffRepository) GetByID(_ context.Context, id int64) (*domain.StaffMember, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	staff, ok := r.s.staff[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &staff, nil
}

func (r *StaffRepository) GetByExternalID(_ context.Context, externalID string) (*domain.StaffMember, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, staff := range r.s.staff {
		if staff.ExternalID == externalID {
			return &staff, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *StaffRepository) List(_ context.Context, filter repository.StaffFilter) ([]domain.StaffMember, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []domain.StaffMember
	for _, staff := range r.s.staff {
		if filter.RoleID != nil && (staff.RoleID == nil || *staff.RoleID != *filter.RoleID) {
			continue
		}
		if filter.Status != nil && staff.Status != *filter.Status {
			continue
		}
		out = append(out, staff)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return paginate(out, filter.Limit, filter.Offset, 50), nil
}

func paginate[T any](items []T, limit, offset, def int) []T {
	if limit <= 0 {
		limit = def
	}
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return nil
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}
