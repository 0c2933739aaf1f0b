package driven

import (
	"context"
	"time"

	"github.com/nexkb/nexkb-core/internal/core/domain"
)

// EmbeddingService talks to the retrieval backend that chunks, embeds and
// stores folder content. Backend outages surface as domain.ErrUnavailable.
type EmbeddingService interface {
	// IndexFolder embeds every active file in the folder with the given
	// config, replacing any previous index for it.
	IndexFolder(ctx context.Context, organizationID, folderID string, config domain.McpConfig) (*domain.IndexResult, error)

	// DeleteFolderEmbeddings removes all stored embeddings for a folder.
	// Idempotent; returns the number removed.
	DeleteFolderEmbeddings(ctx context.Context, organizationID, folderID string) (int, error)

	// GetFolderStats returns embedding counts for a folder's index.
	GetFolderStats(ctx context.Context, organizationID, folderID string) (*domain.EmbeddingStats, error)

	// HealthCheck verifies the retrieval backend is reachable.
	HealthCheck(ctx context.Context) error
}

// FolderQueryService answers natural-language questions against a folder's
// index. The engine also owns query accounting, so usage totals come from
// it rather than from the local query log.
type FolderQueryService interface {
	// QueryFolder runs retrieval-augmented answering over the folder index.
	QueryFolder(ctx context.Context, organizationID, folderID, question string, config domain.McpConfig) (*domain.FolderAnswer, error)

	// GetUsageStats aggregates query counts, token usage and cost for a
	// folder over a period.
	GetUsageStats(ctx context.Context, organizationID, folderID string, since, until time.Time) (*domain.UsageStats, error)
}

// APIKeyLookup resolves API key secrets to key rows across organizations.
// It backs the scoped-key authentication path, which runs before any
// tenant is known.
type APIKeyLookup interface {
	// FindByPrefix retrieves the active keys whose display prefix matches.
	// Keys bound to folders that are not indexing-enabled are excluded, so
	// disabling a folder suspends its keys without revoking them. Callers
	// verify the full secret against each candidate's hash.
	FindByPrefix(ctx context.Context, keyPrefix string) ([]*domain.APIKey, error)

	// TouchLastUsed records that a key was used at the given time.
	// Best effort; failures are logged, not surfaced.
	TouchLastUsed(ctx context.Context, keyID string, usedAt time.Time) error
}
