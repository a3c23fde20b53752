package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/citydesk/emergency-portal/internal/domain"
	apperrors "github.com/citydesk/emergency-portal/pkg/util"
)

const principalKey = "auth_principal"

// Principal represents the authenticated caller and what they may do.
type Principal struct {
	Identity domain.Identity
	Access   *domain.Access
}

// AuthMiddleware validates bearer tokens and resolves access for the caller.
type AuthMiddleware struct {
	tokens   *TokenManager
	resolver *Resolver
}

// NewAuthMiddleware constructs middleware.
func NewAuthMiddleware(tokens *TokenManager, resolver *Resolver) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens, resolver: resolver}
}

// Handle enforces authentication for protected routes. Access is resolved on every
// request so role changes apply immediately.
func (m *AuthMiddleware) Handle(c *fiber.Ctx) error {
	authHeader := c.Get(fiber.HeaderAuthorization)
	if authHeader == "" {
		return apperrors.NewUnauthorized("missing authorization header")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return apperrors.NewUnauthorized("invalid authorization header")
	}

	claims, err := m.tokens.ParseToken(strings.TrimSpace(parts[1]))
	if err != nil {
		return apperrors.NewUnauthorized("invalid token")
	}

	identity := claims.Identity()
	access, err := m.resolver.Resolve(c.UserContext(), identity)
	if err != nil {
		return err
	}

	c.Locals(principalKey, &Principal{Identity: identity, Access: access})
	return c.Next()
}

// PrincipalFromContext retrieves the authenticated entity.
func PrincipalFromContext(c *fiber.Ctx) (*Principal, bool) {
	val := c.Locals(principalKey)
	if val == nil {
		return nil, false
	}
	principal, ok := val.(*Principal)
	return principal, ok
}
