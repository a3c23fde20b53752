package service

import (
	"context"
	"strings"
	"time"

	"github.com/citydesk/emergency-portal/internal/auth"
	"github.com/citydesk/emergency-portal/internal/domain"
	apperrors "github.com/citydesk/emergency-portal/pkg/util"
)

// Session is a signed token for an identity together with what it currently grants.
type Session struct {
	Token     string
	ExpiresAt time.Time
	Access    *domain.Access
}

// AuthService issues session tokens once the identity provider has vouched for a user.
type AuthService struct {
	tokens   *auth.TokenManager
	resolver *auth.Resolver
}

// NewAuthService builds the service.
func NewAuthService(tokens *auth.TokenManager, resolver *auth.Resolver) *AuthService {
	return &AuthService{tokens: tokens, resolver: resolver}
}

// IssueSession signs a token for identity and resolves its current access.
func (s *AuthService) IssueSession(ctx context.Context, identity domain.Identity) (*Session, error) {
	identity.ExternalID = strings.TrimSpace(identity.ExternalID)
	if identity.ExternalID == "" {
		return nil, apperrors.NewValidationError("external id is required", map[string]any{"field": "external_id"})
	}
	access, err := s.resolver.Resolve(ctx, identity)
	if err != nil {
		return nil, err
	}
	token, expiresAt, err := s.tokens.GenerateToken(identity)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return &Session{Token: token, ExpiresAt: expiresAt, Access: access}, nil
}

// TokenManager exposes the token manager for middleware wiring.
func (s *AuthService) TokenManager() *auth.TokenManager {
	return s.tokens
}
