package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/citydesk/emergency-portal/internal/api/dto"
	"github.com/citydesk/emergency-portal/internal/domain"
	"github.com/citydesk/emergency-portal/internal/service"
)

// AdminHandler exposes directory administration: services, roles and staff.
type AdminHandler struct {
	directory *service.DirectoryService
}

// NewAdminHandler constructs handler.
func NewAdminHandler(directory *service.DirectoryService) *AdminHandler {
	return &AdminHandler{directory: directory}
}

// ListServices GET /admin/services.
func (h *AdminHandler) ListServices(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	services, err := h.directory.ListServices(c.UserContext(), p.Access)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewServiceResponses(services)})
}

// GetService GET /admin/services/:id.
func (h *AdminHandler) GetService(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	id, err := paramID(c)
	if err != nil {
		return err
	}
	svc, err := h.directory.GetService(c.UserContext(), p.Access, id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewServiceResponse(svc)})
}

// CreateService POST /admin/services.
func (h *AdminHandler) CreateService(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	var req dto.ServiceRequest
	if err := bind(c, &req, false); err != nil {
		return err
	}
	svc, err := h.directory.CreateService(c.UserContext(), p.Access, serviceInput(req))
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": dto.NewServiceResponse(svc)})
}

// UpdateService PUT /admin/services/:id.
func (h *AdminHandler) UpdateService(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	id, err := paramID(c)
	if err != nil {
		return err
	}
	var req dto.ServiceRequest
	if err := bind(c, &req, false); err != nil {
		return err
	}
	svc, err := h.directory.UpdateService(c.UserContext(), p.Access, id, serviceInput(req))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewServiceResponse(svc)})
}

// DeleteService DELETE /admin/services/:id.
func (h *AdminHandler) DeleteService(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	id, err := paramID(c)
	if err != nil {
		return err
	}
	if err := h.directory.DeleteService(c.UserContext(), p.Access, id); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// TestWebhook POST /admin/services/:id/test. A failed delivery is reported in the
// body with 502 so the caller sees what Discord said.
func (h *AdminHandler) TestWebhook(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	id, err := paramID(c)
	if err != nil {
		return err
	}
	result, err := h.directory.TestWebhook(c.UserContext(), p.Access, id)
	if result == nil {
		return err
	}
	status := fiber.StatusOK
	if !result.OK {
		status = fiber.StatusBadGateway
	}
	return c.Status(status).JSON(fiber.Map{"data": webhookTestResponse(*result)})
}

// TestAllWebhooks POST /admin/services/test.
func (h *AdminHandler) TestAllWebhooks(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	results, err := h.directory.TestAllWebhooks(c.UserContext(), p.Access)
	if err != nil && len(results) == 0 {
		return err
	}
	items := make([]dto.WebhookTestResponse, 0, len(results))
	for _, r := range results {
		items = append(items, webhookTestResponse(r))
	}
	resp := fiber.Map{"data": items}
	if err != nil {
		resp["incomplete"] = true
	}
	return c.JSON(resp)
}

// ListRoles GET /admin/roles.
func (h *AdminHandler) ListRoles(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	roles, err := h.directory.ListRoles(c.UserContext(), p.Access)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewRoleResponses(roles)})
}

// GetRole GET /admin/roles/:id.
func (h *AdminHandler) GetRole(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	id, err := paramID(c)
	if err != nil {
		return err
	}
	role, err := h.directory.GetRole(c.UserContext(), p.Access, id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewRoleResponse(role)})
}

// CreateRole POST /admin/roles.
func (h *AdminHandler) CreateRole(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	var req dto.RoleRequest
	if err := bind(c, &req, false); err != nil {
		return err
	}
	role, err := h.directory.CreateRole(c.UserContext(), p.Access, roleInput(req))
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": dto.NewRoleResponse(role)})
}

// UpdateRole PUT /admin/roles/:id.
func (h *AdminHandler) UpdateRole(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	id, err := paramID(c)
	if err != nil {
		return err
	}
	var req dto.RoleRequest
	if err := bind(c, &req, false); err != nil {
		return err
	}
	role, err := h.directory.UpdateRole(c.UserContext(), p.Access, id, roleInput(req))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewRoleResponse(role)})
}

// DeleteRole DELETE /admin/roles/:id.
func (h *AdminHandler) DeleteRole(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	id, err := paramID(c)
	if err != nil {
		return err
	}
	if err := h.directory.DeleteRole(c.UserContext(), p.Access, id); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// ListStaff GET /admin/staff.
func (h *AdminHandler) ListStaff(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	filters := service.StaffListFilters{Limit: parseInt(c.Query("page_size"), 50)}
	filters.Offset = (parseInt(c.Query("page"), 1) - 1) * filters.Limit
	if raw := c.Query("role_id"); raw != "" {
		if id := int64(parseInt(raw, 0)); id > 0 {
			filters.RoleID = &id
		}
	}
	if raw := c.Query("status"); raw != "" {
		status := domain.RecordStatus(raw)
		filters.Status = &status
	}
	members, err := h.directory.ListStaff(c.UserContext(), p.Access, filters)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewStaffResponses(members)})
}

// GetStaff GET /admin/staff/:id.
func (h *AdminHandler) GetStaff(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	id, err := paramID(c)
	if err != nil {
		return err
	}
	member, err := h.directory.GetStaff(c.UserContext(), p.Access, id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewStaffResponse(member)})
}

// CreateStaff POST /admin/staff.
func (h *AdminHandler) CreateStaff(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	var req dto.StaffRequest
	if err := bind(c, &req, false); err != nil {
		return err
	}
	member, err := h.directory.CreateStaff(c.UserContext(), p.Access, staffInput(req))
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": dto.NewStaffResponse(member)})
}

// UpdateStaff PUT /admin/staff/:id.
func (h *AdminHandler) UpdateStaff(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	id, err := paramID(c)
	if err != nil {
		return err
	}
	var req dto.StaffRequest
	if err := bind(c, &req, false); err != nil {
		return err
	}
	member, err := h.directory.UpdateStaff(c.UserContext(), p.Access, id, staffInput(req))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewStaffResponse(member)})
}

// DeleteStaff DELETE /admin/staff/:id.
func (h *AdminHandler) DeleteStaff(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	id, err := paramID(c)
	if err != nil {
		return err
	}
	if err := h.directory.DeleteStaff(c.UserContext(), p.Access, id); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func serviceInput(req dto.ServiceRequest) service.ServiceInput {
	return service.ServiceInput{
		Name:        req.Name,
		Description: req.Description,
		DiscordRole: req.DiscordRole,
		WebhookURL:  req.WebhookURL,
		Status:      req.Status,
	}
}

func roleInput(req dto.RoleRequest) service.RoleInput {
	return service.RoleInput{
		Name:          req.Name,
		Permissions:   req.Permissions,
		ServiceAccess: req.ServiceAccess,
		Status:        req.Status,
	}
}

func staffInput(req dto.StaffRequest) service.StaffInput {
	return service.StaffInput{
		ExternalID:  req.ExternalID,
		DisplayName: req.DisplayName,
		RoleID:      req.RoleID,
		Status:      req.Status,
	}
}

func webhookTestResponse(r service.WebhookTestResult) dto.WebhookTestResponse {
	return dto.WebhookTestResponse{
		ServiceID: r.ServiceID,
		Service:   r.Service,
		OK:        r.OK,
		Error:     r.Error,
		TestedAt:  r.TestedAt,
	}
}
