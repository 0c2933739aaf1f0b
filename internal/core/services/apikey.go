package services

import (
	"context"
	"strings"
	"time"

	"github.com/nexkb/nexkb-core/internal/core/domain"
	"github.com/nexkb/nexkb-core/internal/core/ports/driven"
	"github.com/nexkb/nexkb-core/internal/core/ports/driving"
)

// Ensure apiKeyService implements APIKeyService
var _ driving.APIKeyService = (*apiKeyService)(nil)

// apiKeyService implements the APIKeyService interface
type apiKeyService struct {
	store   driven.Store
	lookup  driven.APIKeyLookup
	secrets driven.SecretHasher
}

// NewAPIKeyService creates a new APIKeyService
func NewAPIKeyService(store driven.Store, lookup driven.APIKeyLookup, secrets driven.SecretHasher) driving.APIKeyService {
	return &apiKeyService{
		store:   store,
		lookup:  lookup,
		secrets: secrets,
	}
}

// Issue creates a key for an indexing-enabled folder. Only the hash and
// a display prefix are stored; the plaintext secret in the result is the
// one chance to see it.
func (s *apiKeyService) Issue(ctx context.Context, organizationID, actorID, folderID string, req driving.IssueKeyRequest) (*domain.IssuedAPIKey, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, domain.ErrInvalidArgument
	}

	expiresAt, err := domain.ParseExpiration(req.ExpiresIn, time.Now())
	if err != nil {
		return nil, err
	}

	permissions := req.Permissions
	if len(permissions) == 0 {
		permissions = domain.DefaultKeyPermissions()
	}
	for _, p := range permissions {
		if p != domain.PermissionFolderQuery && p != domain.PermissionFolderMcp {
			return nil, domain.ErrInvalidArgument
		}
	}

	secret := domain.GenerateAPIKeySecret()
	hash, err := s.secrets.HashSecret(secret)
	if err != nil {
		return nil, err
	}

	var issued *domain.IssuedAPIKey
	err = s.store.WithTenant(ctx, organizationID, func(uow driven.UnitOfWork) error {
		folder, err := uow.Folders().Get(ctx, folderID)
		if err != nil {
			return err
		}
		if !folder.McpEnabled {
			return domain.ErrInvalidState
		}

		key := &domain.APIKey{
			ID:             domain.GenerateID(),
			OrganizationID: organizationID,
			FolderID:       folder.ID,
			Name:           name,
			KeyHash:        hash,
			KeyPrefix:      domain.KeyDisplayPrefix(secret),
			Permissions:    permissions,
			ExpiresAt:      expiresAt,
			IsActive:       true,
			CreatedBy:      actorID,
			CreatedAt:      time.Now(),
		}
		if err := uow.APIKeys().Create(ctx, key); err != nil {
			return err
		}

		issued = &domain.IssuedAPIKey{Key: key, Secret: secret}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return issued, nil
}

// List retrieves a folder's keys without secrets
func (s *apiKeyService) List(ctx context.Context, organizationID, folderID string) ([]*domain.APIKey, error) {
	var keys []*domain.APIKey
	err := s.store.WithTenant(ctx, organizationID, func(uow driven.UnitOfWork) error {
		if _, err := uow.Folders().Get(ctx, folderID); err != nil {
			return err
		}
		var err error
		keys, err = uow.APIKeys().ListByFolder(ctx, folderID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return keys, nil
}

// Revoke deactivates a key. A key that is already revoked stays revoked;
// a key belonging to a different folder is NotFound.
func (s *apiKeyService) Revoke(ctx context.Context, organizationID, actorID, folderID, keyID string) error {
	return s.store.WithTenant(ctx, organizationID, func(uow driven.UnitOfWork) error {
		key, err := uow.APIKeys().Get(ctx, keyID)
		if err != nil {
			return err
		}
		if key.FolderID != folderID {
			return domain.ErrNotFound
		}
		return uow.APIKeys().Revoke(ctx, keyID)
	})
}

// Authenticate resolves a presented secret to its key. Candidates are
// found by display prefix, then the full secret is verified against each
// hash. Unknown, revoked and expired secrets all look the same to the
// caller.
func (s *apiKeyService) Authenticate(ctx context.Context, secret string) (*domain.APIKey, error) {
	secret = strings.TrimSpace(secret)
	if !strings.HasPrefix(secret, domain.APIKeySecretPrefix) {
		return nil, domain.ErrUnauthorized
	}

	candidates, err := s.lookup.FindByPrefix(ctx, domain.KeyDisplayPrefix(secret))
	if err != nil {
		return nil, err
	}

	now := time.Now()
	for _, key := range candidates {
		if !key.IsUsable(now) {
			continue
		}
		if s.secrets.VerifySecret(secret, key.KeyHash) {
			_ = s.lookup.TouchLastUsed(ctx, key.ID, now)
			return key, nil
		}
	}
	return nil, domain.ErrUnauthorized
}
