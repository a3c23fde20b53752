package service

import (
	"context"
	"strconv"
	"strings"

	"github.com/citydesk/emergency-portal/internal/repository"
	apperrors "github.com/citydesk/emergency-portal/pkg/util"
)

// ServiceRefResolver turns a client-supplied service reference, either a numeric id or a
// name, into the canonical service name used everywhere past the API boundary.
type ServiceRefResolver struct {
	services repository.ServiceRepository
}

// NewServiceRefResolver creates the resolver.
func NewServiceRefResolver(services repository.ServiceRepository) *ServiceRefResolver {
	return &ServiceRefResolver{services: services}
}

// Canonical returns the service name for ref. A numeric ref naming an existing service id
// resolves to that service's name; anything else is returned trimmed and treated as a name.
// Existence of a name is left to the caller.
func (r *ServiceRefResolver) Canonical(ctx context.Context, ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	id, err := strconv.ParseInt(ref, 10, 64)
	if err != nil {
		return ref, nil
	}
	svc, err := r.services.GetByID(ctx, id)
	if err != nil {
		if repository.IsNotFound(err) {
			return ref, nil
		}
		return "", apperrors.NewStoreError(err)
	}
	return svc.Name, nil
}
