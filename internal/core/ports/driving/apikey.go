package driving

import (
	"context"

	"github.com/nexkb/nexkb-core/internal/core/domain"
)

// IssueKeyRequest represents a request to issue a folder API key
type IssueKeyRequest struct {
	Name string `json:"name"`

	// ExpiresIn is an expiration expression such as "30d", "6m", "1y" or
	// "never". Empty means never.
	ExpiresIn string `json:"expires_in,omitempty"`

	// Permissions defaults to folder:query and folder:mcp when empty.
	Permissions []string `json:"permissions,omitempty"`
}

// APIKeyService manages folder-scoped API keys
type APIKeyService interface {
	// Issue creates a key for an indexing-enabled folder. The returned
	// secret is shown exactly once.
	Issue(ctx context.Context, organizationID, actorID, folderID string, req IssueKeyRequest) (*domain.IssuedAPIKey, error)

	// List retrieves a folder's keys without secrets
	List(ctx context.Context, organizationID, folderID string) ([]*domain.APIKey, error)

	// Revoke deactivates a key. Revoking an already revoked key succeeds.
	Revoke(ctx context.Context, organizationID, actorID, folderID, keyID string) error

	// Authenticate resolves a presented secret to its key. Returns
	// domain.ErrUnauthorized for unknown, revoked or expired secrets.
	Authenticate(ctx context.Context, secret string) (*domain.APIKey, error)
}
