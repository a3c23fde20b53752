package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/citydesk/emergency-portal/internal/domain"
	"github.com/citydesk/emergency-portal/internal/repository"
	apperrors "github.com/citydesk/emergency-portal/pkg/util"
)

// WebhookTester sends the canned test message for a service.
type WebhookTester interface {
	SendTest(ctx context.Context, svc domain.Service) error
}

// DirectoryService manages services, roles and staff bindings.
type DirectoryService struct {
	services repository.ServiceRepository
	roles    repository.RoleRepository
	staff    repository.StaffRepository
	tickets  repository.TicketRepository
	tester   WebhookTester
	logger   *zap.Logger
	delay    time.Duration
	now      func() time.Time
}

// DirectoryDependencies encapsulates collaborators required for directory management.
type DirectoryDependencies struct {
	ServiceRepo   repository.ServiceRepository
	RoleRepo      repository.RoleRepository
	StaffRepo     repository.StaffRepository
	TicketRepo    repository.TicketRepository
	WebhookTester WebhookTester
	Logger        *zap.Logger
	// BulkTestDelay spaces out calls in TestAllWebhooks.
	BulkTestDelay time.Duration
	Clock         func() time.Time
}

// ServiceInput is the writable part of a Service.
type ServiceInput struct {
	Name        string
	Description string
	DiscordRole string
	WebhookURL  string
	Status      domain.RecordStatus
}

// RoleInput is the writable part of a Role. Permissions are raw strings so unknown
// values can be reported back.
type RoleInput struct {
	Name          string
	Permissions   []string
	ServiceAccess []string
	Status        domain.RecordStatus
}

// StaffInput is the writable part of a staff binding.
type StaffInput struct {
	ExternalID  string
	DisplayName string
	RoleID      *int64
	Status      domain.RecordStatus
}

// StaffListFilters define listing parameters.
type StaffListFilters struct {
	RoleID *int64
	Status *domain.RecordStatus
	Limit  int
	Offset int
}

// WebhookTestResult is the outcome of one webhook test.
type WebhookTestResult struct {
	ServiceID int64
	Service   string
	OK        bool
	Error     string
	TestedAt  time.Time
}

// NewDirectoryService constructs the service.
func NewDirectoryService(deps DirectoryDependencies) *DirectoryService {
	s := &DirectoryService{
		services: deps.ServiceRepo,
		roles:    deps.RoleRepo,
		staff:    deps.StaffRepo,
		tickets:  deps.TicketRepo,
		tester:   deps.WebhookTester,
		logger:   deps.Logger,
		delay:    deps.BulkTestDelay,
		now:      deps.Clock,
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

func requirePermission(access *domain.Access, perm domain.PermissionKind) error {
	if !access.Has(perm) {
		return apperrors.NewForbidden("missing permission " + string(perm))
	}
	return nil
}

func mapRepoError(err error, resource string, details map[string]any) error {
	switch {
	case err == nil:
		return nil
	case repository.IsNotFound(err):
		return apperrors.NewNotFound(resource, details)
	case errors.Is(err, repository.ErrDuplicate):
		return apperrors.NewConflict(resource+" already exists", details)
	default:
		return apperrors.NewStoreError(err)
	}
}

func normalizeStatus(status domain.RecordStatus) (domain.RecordStatus, error) {
	if status == "" {
		return domain.StatusActive, nil
	}
	if !status.Valid() {
		return "", apperrors.NewValidationError("invalid status", map[string]any{"status": status})
	}
	return status, nil
}

// EnsureDefaults seeds the default services and an Admin role into empty tables.
func (s *DirectoryService) EnsureDefaults(ctx context.Context) error {
	services, err := s.services.List(ctx, repository.ServiceFilter{})
	if err != nil {
		return apperrors.NewStoreError(err)
	}
	if len(services) == 0 {
		for _, svc := range domain.DefaultServices() {
			svc := svc
			if err := s.services.Create(ctx, &svc); err != nil && !errors.Is(err, repository.ErrDuplicate) {
				return apperrors.NewStoreError(err)
			}
		}
		s.logger.Info("seeded default services", zap.Int("count", len(domain.DefaultServices())))
	}

	roles, err := s.roles.List(ctx)
	if err != nil {
		return apperrors.NewStoreError(err)
	}
	if len(roles) == 0 {
		admin := &domain.Role{
			Name:          domain.DefaultAdminRoleName,
			Permissions:   domain.AllPermissions(),
			ServiceAccess: []string{},
			Status:        domain.StatusActive,
		}
		if err := s.roles.Create(ctx, admin); err != nil && !errors.Is(err, repository.ErrDuplicate) {
			return apperrors.NewStoreError(err)
		}
		s.logger.Info("seeded default admin role")
	}
	return nil
}

// ListActiveServices lists services open for new tickets. Available to any identity.
func (s *DirectoryService) ListActiveServices(ctx context.Context) ([]domain.Service, error) {
	services, err := s.services.List(ctx, repository.ServiceFilter{ActiveOnly: true})
	if err != nil {
		return nil, apperrors.NewStoreError(err)
	}
	if services == nil {
		services = []domain.Service{}
	}
	return services, nil
}

// ListServices lists every service.
func (s *DirectoryService) ListServices(ctx context.Context, access *domain.Access) ([]domain.Service, error) {
	if err := requirePermission(access, domain.PermissionManageServices); err != nil {
		return nil, err
	}
	services, err := s.services.List(ctx, repository.ServiceFilter{})
	if err != nil {
		return nil, apperrors.NewStoreError(err)
	}
	if services == nil {
		services = []domain.Service{}
	}
	return services, nil
}

// GetService fetches a service.
func (s *DirectoryService) GetService(ctx context.Context, access *domain.Access, id int64) (*domain.Service, error) {
	if err := requirePermission(access, domain.PermissionManageServices); err != nil {
		return nil, err
	}
	svc, err := s.services.GetByID(ctx, id)
	if err != nil {
		return nil, mapRepoError(err, "service", map[string]any{"service_id": id})
	}
	return svc, nil
}

func buildService(input ServiceInput) (*domain.Service, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, apperrors.NewValidationError("name is required", map[string]any{"field": "name"})
	}
	status, err := normalizeStatus(input.Status)
	if err != nil {
		return nil, err
	}
	return &domain.Service{
		Name:        name,
		Description: strings.TrimSpace(input.Description),
		DiscordRole: strings.TrimSpace(input.DiscordRole),
		WebhookURL:  strings.TrimSpace(input.WebhookURL),
		Status:      status,
	}, nil
}

// CreateService adds a service. Names are unique.
func (s *DirectoryService) CreateService(ctx context.Context, access *domain.Access, input ServiceInput) (*domain.Service, error) {
	if err := requirePermission(access, domain.PermissionManageServices); err != nil {
		return nil, err
	}
	svc, err := buildService(input)
	if err != nil {
		return nil, err
	}
	if err := s.services.Create(ctx, svc); err != nil {
		return nil, mapRepoError(err, "service", map[string]any{"name": svc.Name})
	}
	return svc, nil
}

// UpdateService replaces a service's settings. The name is the key tickets and roles
// refer to, so it cannot change once tickets use it.
func (s *DirectoryService) UpdateService(ctx context.Context, access *domain.Access, id int64, input ServiceInput) (*domain.Service, error) {
	if err := requirePermission(access, domain.PermissionManageServices); err != nil {
		return nil, err
	}
	current, err := s.services.GetByID(ctx, id)
	if err != nil {
		return nil, mapRepoError(err, "service", map[string]any{"service_id": id})
	}
	svc, err := buildService(input)
	if err != nil {
		return nil, err
	}
	if svc.Name != current.Name {
		if err := s.ensureUnreferenced(ctx, current.Name, "rename"); err != nil {
			return nil, err
		}
	}
	svc.ID = id
	if err := s.services.Update(ctx, svc); err != nil {
		return nil, mapRepoError(err, "service", map[string]any{"service_id": id, "name": svc.Name})
	}
	updated, err := s.services.GetByID(ctx, id)
	if err != nil {
		return nil, mapRepoError(err, "service", map[string]any{"service_id": id})
	}
	return updated, nil
}

// DeleteService removes a service that no ticket references.
func (s *DirectoryService) DeleteService(ctx context.Context, access *domain.Access, id int64) error {
	if err := requirePermission(access, domain.PermissionManageServices); err != nil {
		return err
	}
	current, err := s.services.GetByID(ctx, id)
	if err != nil {
		return mapRepoError(err, "service", map[string]any{"service_id": id})
	}
	if err := s.ensureUnreferenced(ctx, current.Name, "delete"); err != nil {
		return err
	}
	return mapRepoError(s.services.Delete(ctx, id), "service", map[string]any{"service_id": id})
}

func (s *DirectoryService) ensureUnreferenced(ctx context.Context, name, op string) error {
	count, err := s.tickets.CountByService(ctx, name)
	if err != nil {
		return apperrors.NewStoreError(err)
	}
	if count > 0 {
		return apperrors.NewConflict("cannot "+op+" a service with tickets", map[string]any{"service": name, "tickets": count})
	}
	return nil
}

// TestWebhook sends the test message to one service and records the attempt. The
// delivery error, if any, is returned to the caller.
func (s *DirectoryService) TestWebhook(ctx context.Context, access *domain.Access, id int64) (*WebhookTestResult, error) {
	if err := requirePermission(access, domain.PermissionManageServices); err != nil {
		return nil, err
	}
	svc, err := s.services.GetByID(ctx, id)
	if err != nil {
		return nil, mapRepoError(err, "service", map[string]any{"service_id": id})
	}
	if !svc.HasWebhook() {
		return nil, apperrors.NewValidationError("service has no webhook configured", map[string]any{"service": svc.Name})
	}
	return s.testOne(ctx, *svc)
}

func (s *DirectoryService) testOne(ctx context.Context, svc domain.Service) (*WebhookTestResult, error) {
	sendErr := s.tester.SendTest(ctx, svc)
	result := &WebhookTestResult{
		ServiceID: svc.ID,
		Service:   svc.Name,
		OK:        sendErr == nil,
		TestedAt:  s.now(),
	}
	if sendErr != nil {
		result.Error = sendErr.Error()
		s.logger.Warn("webhook test failed", zap.String("service", svc.Name), zap.Error(sendErr))
	}
	if err := s.services.RecordWebhookTest(ctx, svc.ID, result.TestedAt, result.OK); err != nil {
		return result, mapRepoError(err, "service", map[string]any{"service_id": svc.ID})
	}
	return result, sendErr
}

// TestAllWebhooks tests every service with a webhook, one at a time, pausing between
// calls to stay under Discord's rate limits. Individual failures are reported in the
// results; only cancellation or a store failure aborts the run.
func (s *DirectoryService) TestAllWebhooks(ctx context.Context, access *domain.Access) ([]WebhookTestResult, error) {
	if err := requirePermission(access, domain.PermissionManageServices); err != nil {
		return nil, err
	}
	services, err := s.services.List(ctx, repository.ServiceFilter{WithWebhook: true})
	if err != nil {
		return nil, apperrors.NewStoreError(err)
	}

	results := make([]WebhookTestResult, 0, len(services))
	for i, svc := range services {
		if i > 0 && s.delay > 0 {
			timer := time.NewTimer(s.delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return results, ctx.Err()
			case <-timer.C:
			}
		}
		result, err := s.testOne(ctx, svc)
		if result == nil {
			return results, err
		}
		results = append(results, *result)
		if err != nil && apperrors.ToDomainError(err).Code == apperrors.CodeStore {
			return results, err
		}
	}
	return results, nil
}

// ListRoles lists roles.
func (s *DirectoryService) ListRoles(ctx context.Context, access *domain.Access) ([]domain.Role, error) {
	if err := requirePermission(access, domain.PermissionManageRoles); err != nil {
		return nil, err
	}
	roles, err := s.roles.List(ctx)
	if err != nil {
		return nil, apperrors.NewStoreError(err)
	}
	if roles == nil {
		roles = []domain.Role{}
	}
	return roles, nil
}

// GetRole fetches a role.
func (s *DirectoryService) GetRole(ctx context.Context, access *domain.Access, id int64) (*domain.Role, error) {
	if err := requirePermission(access, domain.PermissionManageRoles); err != nil {
		return nil, err
	}
	role, err := s.roles.GetByID(ctx, id)
	if err != nil {
		return nil, mapRepoError(err, "role", map[string]any{"role_id": id})
	}
	return role, nil
}

func buildRole(input RoleInput) (*domain.Role, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, apperrors.NewValidationError("name is required", map[string]any{"field": "name"})
	}
	var unknown []string
	perms := make([]domain.PermissionKind, 0, len(input.Permissions))
	seen := domain.NewPermissionSet()
	for _, raw := range input.Permissions {
		p := domain.PermissionKind(strings.ToLower(strings.TrimSpace(raw)))
		if !p.Valid() {
			unknown = append(unknown, raw)
			continue
		}
		if !seen.Has(p) {
			seen.Add(p)
			perms = append(perms, p)
		}
	}
	if len(unknown) > 0 {
		return nil, apperrors.NewValidationError("unknown permissions", map[string]any{"permissions": unknown})
	}
	status, err := normalizeStatus(input.Status)
	if err != nil {
		return nil, err
	}
	access := make([]string, 0, len(input.ServiceAccess))
	for _, name := range input.ServiceAccess {
		if name = strings.TrimSpace(name); name != "" {
			access = append(access, name)
		}
	}
	return &domain.Role{Name: name, Permissions: perms, ServiceAccess: access, Status: status}, nil
}

// CreateRole adds a role. Names are unique.
func (s *DirectoryService) CreateRole(ctx context.Context, access *domain.Access, input RoleInput) (*domain.Role, error) {
	if err := requirePermission(access, domain.PermissionManageRoles); err != nil {
		return nil, err
	}
	role, err := buildRole(input)
	if err != nil {
		return nil, err
	}
	if err := s.roles.Create(ctx, role); err != nil {
		return nil, mapRepoError(err, "role", map[string]any{"name": role.Name})
	}
	return role, nil
}

// UpdateRole replaces a role's settings. Staff holding it see the change on their next request.
func (s *DirectoryService) UpdateRole(ctx context.Context, access *domain.Access, id int64, input RoleInput) (*domain.Role, error) {
	if err := requirePermission(access, domain.PermissionManageRoles); err != nil {
		return nil, err
	}
	role, err := buildRole(input)
	if err != nil {
		return nil, err
	}
	role.ID = id
	if err := s.roles.Update(ctx, role); err != nil {
		return nil, mapRepoError(err, "role", map[string]any{"role_id": id, "name": role.Name})
	}
	updated, err := s.roles.GetByID(ctx, id)
	if err != nil {
		return nil, mapRepoError(err, "role", map[string]any{"role_id": id})
	}
	return updated, nil
}

// DeleteRole removes a role; staff that held it are left without one.
func (s *DirectoryService) DeleteRole(ctx context.Context, access *domain.Access, id int64) error {
	if err := requirePermission(access, domain.PermissionManageRoles); err != nil {
		return err
	}
	return mapRepoError(s.roles.Delete(ctx, id), "role", map[string]any{"role_id": id})
}

// ListStaff lists staff bindings.
func (s *DirectoryService) ListStaff(ctx context.Context, access *domain.Access, filters StaffListFilters) ([]domain.StaffMember, error) {
	if err := requirePermission(access, domain.PermissionManageStaff); err != nil {
		return nil, err
	}
	staff, err := s.staff.List(ctx, repository.StaffFilter{
		RoleID: filters.RoleID,
		Status: filters.Status,
		Limit:  filters.Limit,
		Offset: filters.Offset,
	})
	if err != nil {
		return nil, apperrors.NewStoreError(err)
	}
	if staff == nil {
		staff = []domain.StaffMember{}
	}
	return staff, nil
}

// GetStaff fetches a staff binding.
func (s *DirectoryService) GetStaff(ctx context.Context, access *domain.Access, id int64) (*domain.StaffMember, error) {
	if err := requirePermission(access, domain.PermissionManageStaff); err != nil {
		return nil, err
	}
	member, err := s.staff.GetByID(ctx, id)
	if err != nil {
		return nil, mapRepoError(err, "staff member", map[string]any{"staff_id": id})
	}
	return member, nil
}

func (s *DirectoryService) buildStaff(ctx context.Context, input StaffInput) (*domain.StaffMember, error) {
	externalID := strings.TrimSpace(input.ExternalID)
	if externalID == "" {
		return nil, apperrors.NewValidationError("external_id is required", map[string]any{"field": "external_id"})
	}
	status, err := normalizeStatus(input.Status)
	if err != nil {
		return nil, err
	}
	if input.RoleID != nil {
		if _, err := s.roles.GetByID(ctx, *input.RoleID); err != nil {
			return nil, mapRepoError(err, "role", map[string]any{"role_id": *input.RoleID})
		}
	}
	return &domain.StaffMember{
		ExternalID:  externalID,
		DisplayName: strings.TrimSpace(input.DisplayName),
		RoleID:      input.RoleID,
		Status:      status,
	}, nil
}

// CreateStaff binds an identity to a role. An identity can be bound only once.
func (s *DirectoryService) CreateStaff(ctx context.Context, access *domain.Access, input StaffInput) (*domain.StaffMember, error) {
	if err := requirePermission(access, domain.PermissionManageStaff); err != nil {
		return nil, err
	}
	member, err := s.buildStaff(ctx, input)
	if err != nil {
		return nil, err
	}
	if err := s.staff.Create(ctx, member); err != nil {
		return nil, mapRepoError(err, "staff member", map[string]any{"external_id": member.ExternalID})
	}
	return member, nil
}

// UpdateStaff replaces a staff binding.
func (s *DirectoryService) UpdateStaff(ctx context.Context, access *domain.Access, id int64, input StaffInput) (*domain.StaffMember, error) {
	if err := requirePermission(access, domain.PermissionManageStaff); err != nil {
		return nil, err
	}
	member, err := s.buildStaff(ctx, input)
	if err != nil {
		return nil, err
	}
	member.ID = id
	if err := s.staff.Update(ctx, member); err != nil {
		return nil, mapRepoError(err, "staff member", map[string]any{"staff_id": id, "external_id": member.ExternalID})
	}
	updated, err := s.staff.GetByID(ctx, id)
	if err != nil {
		return nil, mapRepoError(err, "staff member", map[string]any{"staff_id": id})
	}
	return updated, nil
}

// DeleteStaff removes a staff binding; the identity falls back to no access.
func (s *DirectoryService) DeleteStaff(ctx context.Context, access *domain.Access, id int64) error {
	if err := requirePermission(access, domain.PermissionManageStaff); err != nil {
		return err
	}
	return mapRepoError(s.staff.Delete(ctx, id), "staff member", map[string]any{"staff_id": id})
}
