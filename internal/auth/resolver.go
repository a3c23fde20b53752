package auth

import (
	"context"

	"go.uber.org/zap"

	"github.com/citydesk/emergency-portal/internal/domain"
	"github.com/citydesk/emergency-portal/internal/repository"
	apperrors "github.com/citydesk/emergency-portal/pkg/util"
	"github.com/citydesk/emergency-portal/pkg/util/setutil"
)

// Resolver turns an identity into its effective permissions and service scope.
// It reads the directory on every call; nothing is cached.
type Resolver struct {
	staff       repository.StaffRepository
	roles       repository.RoleRepository
	services    repository.ServiceRepository
	superuserID string
	logger      *zap.Logger
}

// NewResolver builds a resolver. An empty superuserID disables the override.
func NewResolver(staff repository.StaffRepository, roles repository.RoleRepository, services repository.ServiceRepository, superuserID string, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{staff: staff, roles: roles, services: services, superuserID: superuserID, logger: logger}
}

// Resolve computes the Access for identity. Unknown or inactive staff, and staff whose
// role is missing or inactive, resolve to an empty Access rather than an error.
func (r *Resolver) Resolve(ctx context.Context, identity domain.Identity) (*domain.Access, error) {
	empty := &domain.Access{
		Identity:        identity,
		Permissions:     domain.NewPermissionSet(),
		AllowedServices: setutil.New[string](),
	}

	if r.superuserID != "" && identity.ExternalID == r.superuserID {
		return r.fullAccess(ctx, identity, true)
	}

	member, err := r.staff.GetByExternalID(ctx, identity.ExternalID)
	if err != nil {
		if repository.IsNotFound(err) {
			return empty, nil
		}
		return nil, apperrors.NewStoreError(err)
	}
	if !member.Active() || member.RoleID == nil {
		return empty, nil
	}

	role, err := r.roles.GetByID(ctx, *member.RoleID)
	if err != nil {
		if repository.IsNotFound(err) {
			r.logger.Warn("staff references missing role",
				zap.String("external_id", identity.ExternalID),
				zap.Int64("role_id", *member.RoleID))
			return empty, nil
		}
		return nil, apperrors.NewStoreError(err)
	}
	if role.Status != domain.StatusActive {
		return empty, nil
	}

	if role.IsAdmin() {
		return r.fullAccess(ctx, identity, false)
	}

	return &domain.Access{
		Identity:        identity,
		Permissions:     domain.NewPermissionSet(role.Permissions...),
		AllowedServices: setutil.New(role.ServiceAccess...),
	}, nil
}

func (r *Resolver) fullAccess(ctx context.Context, identity domain.Identity, super bool) (*domain.Access, error) {
	services, err := r.services.List(ctx, repository.ServiceFilter{})
	if err != nil {
		return nil, apperrors.NewStoreError(err)
	}
	names := setutil.New[string]()
	for _, svc := range services {
		names.Add(svc.Name)
	}
	return &domain.Access{
		Identity:        identity,
		Permissions:     domain.NewPermissionSet(domain.AllPermissions()...),
		AllowedServices: names,
		IsSuper:         super,
	}, nil
}
