package driving

import (
	"context"

	"github.com/nexkb/nexkb-core/internal/core/domain"
)

// AuthService validates caller identity for the HTTP surface
type AuthService interface {
	// ValidateToken validates a JWT bearer token and returns the auth context
	ValidateToken(ctx context.Context, token string) (*domain.AuthContext, error)
}
