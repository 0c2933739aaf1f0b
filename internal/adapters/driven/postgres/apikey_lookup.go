package postgres

import (
	"context"
	"time"

	"github.com/nexkb/nexkb-core/internal/core/domain"
	"github.com/nexkb/nexkb-core/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.APIKeyLookup = (*APIKeyLookup)(nil)

// APIKeyLookup resolves API key secrets across organizations. It runs
// outside the tenant transaction because authentication happens before
// any tenant is known.
type APIKeyLookup struct {
	db *DB
}

// NewAPIKeyLookup creates a cross-tenant key lookup
func NewAPIKeyLookup(db *DB) *APIKeyLookup {
	return &APIKeyLookup{db: db}
}

// FindByPrefix retrieves the active keys whose display prefix matches.
// Keys on folders that are no longer indexing-enabled are excluded, so
// disabling a folder suspends its keys without revoking them. Prefixes
// are not unique, so callers verify the full secret against each
// candidate's hash.
func (l *APIKeyLookup) FindByPrefix(ctx context.Context, keyPrefix string) ([]*domain.APIKey, error) {
	query := `
		SELECT ` + apiKeyColumns + `
		FROM api_keys
		WHERE key_prefix = $1 AND is_active
		  AND EXISTS (
		      SELECT 1 FROM folders f
		      WHERE f.id = api_keys.folder_id AND f.mcp_enabled
		  )
	`
	rows, err := l.db.QueryContext(ctx, query, keyPrefix)
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

// TouchLastUsed records that a key was used at the given time
func (l *APIKeyLookup) TouchLastUsed(ctx context.Context, keyID string, usedAt time.Time) error {
	return touchAPIKeyLastUsed(ctx, l.db, keyID, usedAt)
}
