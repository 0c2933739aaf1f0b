package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/lib/pq"
	"github.com/nexkb/nexkb-core/internal/core/domain"
	"github.com/nexkb/nexkb-core/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.APIKeyStore = (*APIKeyStore)(nil)

// APIKeyStore implements driven.APIKeyStore using PostgreSQL
type APIKeyStore struct {
	q     querier
	orgID string
}

const apiKeyColumns = `id, organization_id, folder_id, name, key_hash, key_prefix,
	       permissions, expires_at, is_active, created_by, created_at, last_used_at`

// Create inserts a new API key
func (s *APIKeyStore) Create(ctx context.Context, key *domain.APIKey) error {
	query := `
		INSERT INTO api_keys (id, organization_id, folder_id, name, key_hash, key_prefix,
		                      permissions, expires_at, is_active, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := s.q.ExecContext(ctx, query,
		key.ID,
		s.orgID,
		key.FolderID,
		key.Name,
		key.KeyHash,
		key.KeyPrefix,
		pq.Array(key.Permissions),
		NullTime(key.ExpiresAt),
		key.IsActive,
		key.CreatedBy,
		key.CreatedAt,
	)
	return err
}

// Get retrieves a key by ID
func (s *APIKeyStore) Get(ctx context.Context, id string) (*domain.APIKey, error) {
	query := `SELECT ` + apiKeyColumns + ` FROM api_keys WHERE id = $1 AND organization_id = $2`

	key, err := scanAPIKey(s.q.QueryRowContext(ctx, query, id, s.orgID).Scan)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return key, nil
}

// ListByFolder retrieves all keys for a folder, newest first
func (s *APIKeyStore) ListByFolder(ctx context.Context, folderID string) ([]*domain.APIKey, error) {
	query := `
		SELECT ` + apiKeyColumns + `
		FROM api_keys
		WHERE organization_id = $1 AND folder_id = $2
		ORDER BY created_at DESC
	`
	rows, err := s.q.QueryContext(ctx, query, s.orgID, folderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []*domain.APIKey
	for rows.Next() {
		key, err := scanAPIKey(rows.Scan)
		if err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return keys, nil
}

// Revoke marks a key inactive. Revoking an already revoked key leaves
// it unchanged.
func (s *APIKeyStore) Revoke(ctx context.Context, id string) error {
	query := `UPDATE api_keys SET is_active = false WHERE id = $1 AND organization_id = $2`

	result, err := s.q.ExecContext(ctx, query, id, s.orgID)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// RevokeByFolders marks every active key in the given folders inactive
// and returns the number of keys revoked
func (s *APIKeyStore) RevokeByFolders(ctx context.Context, folderIDs []string) (int, error) {
	if len(folderIDs) == 0 {
		return 0, nil
	}

	query := `
		UPDATE api_keys
		SET is_active = false
		WHERE organization_id = $1 AND folder_id = ANY($2) AND is_active
	`
	result, err := s.q.ExecContext(ctx, query, s.orgID, pq.Array(folderIDs))
	if err != nil {
		return 0, err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(rows), nil
}

func scanAPIKey(scan func(dest ...interface{}) error) (*domain.APIKey, error) {
	var key domain.APIKey
	var permissions pq.StringArray
	var expiresAt, lastUsedAt sql.NullTime

	err := scan(
		&key.ID,
		&key.OrganizationID,
		&key.FolderID,
		&key.Name,
		&key.KeyHash,
		&key.KeyPrefix,
		&permissions,
		&expiresAt,
		&key.IsActive,
		&key.CreatedBy,
		&key.CreatedAt,
		&lastUsedAt,
	)
	if err != nil {
		return nil, err
	}

	key.Permissions = []string(permissions)
	key.ExpiresAt = TimePtr(expiresAt)
	key.LastUsedAt = TimePtr(lastUsedAt)
	return &key, nil
}

// touchAPIKeyLastUsed is shared with the cross-tenant lookup adapter.
func touchAPIKeyLastUsed(ctx context.Context, q querier, keyID string, usedAt time.Time) error {
	query := `UPDATE api_keys SET last_used_at = $1 WHERE id = $2`
	_, err := q.ExecContext(ctx, query, usedAt, keyID)
	return err
}
