package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/citydesk/emergency-portal/internal/api/dto"
	"github.com/citydesk/emergency-portal/internal/service"
)

// UsersHandler serves endpoints open to any authenticated identity.
type UsersHandler struct {
	directory *service.DirectoryService
}

// NewUsersHandler constructs handler.
func NewUsersHandler(directory *service.DirectoryService) *UsersHandler {
	return &UsersHandler{directory: directory}
}

// Me GET /me.
func (h *UsersHandler) Me(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewMeResponse(p.Identity, p.Access)})
}

// Services GET /services lists services open for new tickets.
func (h *UsersHandler) Services(c *fiber.Ctx) error {
	services, err := h.directory.ListActiveServices(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewPublicServiceResponses(services)})
}
