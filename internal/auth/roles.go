package auth

import (
	"github.com/gofiber/fiber/v2"

	"github.com/citydesk/emergency-portal/internal/domain"
	apperrors "github.com/citydesk/emergency-portal/pkg/util"
)

// RequireAuthenticated ensures the auth middleware ran and stored a principal.
func RequireAuthenticated() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if _, ok := PrincipalFromContext(c); !ok {
			return apperrors.NewUnauthorized("authentication required")
		}
		return c.Next()
	}
}

// RequirePermission lets the request through when the caller holds any of the permissions.
func RequirePermission(perms ...domain.PermissionKind) fiber.Handler {
	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok {
			return apperrors.NewUnauthorized("authentication required")
		}
		for _, p := range perms {
			if principal.Access.Has(p) {
				return c.Next()
			}
		}
		return apperrors.NewForbidden("insufficient permissions")
	}
}
