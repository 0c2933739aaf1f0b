package services

import (
	"context"
	"time"

	"github.com/nexkb/nexkb-core/internal/core/domain"
	"github.com/nexkb/nexkb-core/internal/core/ports/driven"
	"github.com/nexkb/nexkb-core/internal/core/ports/driving"
)

// Ensure authService implements AuthService
var _ driving.AuthService = (*authService)(nil)

// authService verifies bearer tokens minted by the external identity
// system. Sessions live there; this side only checks signature, expiry
// and tenant scope.
type authService struct {
	tokens driven.TokenVerifier
}

// NewAuthService creates a new AuthService
func NewAuthService(tokens driven.TokenVerifier) driving.AuthService {
	return &authService{tokens: tokens}
}

// ValidateToken validates a JWT token and returns the auth context
func (s *authService) ValidateToken(ctx context.Context, token string) (*domain.AuthContext, error) {
	if token == "" {
		return nil, domain.ErrTokenInvalid
	}

	claims, err := s.tokens.ParseToken(token)
	if err != nil {
		return nil, err
	}

	if claims.ExpiresAt > 0 && time.Now().Unix() > claims.ExpiresAt {
		return nil, domain.ErrTokenExpired
	}

	if claims.UserID == "" || claims.OrganizationID == "" {
		return nil, domain.ErrTokenInvalid
	}

	return &domain.AuthContext{
		UserID:         claims.UserID,
		Email:          claims.Email,
		Role:           claims.Role,
		OrganizationID: claims.OrganizationID,
	}, nil
}
