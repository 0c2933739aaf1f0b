package driving

import (
	"context"

	"github.com/nexkb/nexkb-core/internal/core/domain"
)

// EnableMcpRequest represents a request to enable folder indexing.
// Omitted config fields fall back to system defaults.
type EnableMcpRequest struct {
	Config *domain.McpConfig `json:"config,omitempty"`
}

// EnableMcpResult is returned when indexing is enabled for a folder
type EnableMcpResult struct {
	Folder *domain.Folder        `json:"folder"`
	Job    *domain.BackgroundJob `json:"job"`
}

// McpService manages per-folder indexing for MCP access
type McpService interface {
	// Enable turns on indexing for a folder and queues the initial
	// embedding job
	Enable(ctx context.Context, organizationID, actorID, folderID string, req EnableMcpRequest) (*EnableMcpResult, error)

	// Disable turns off indexing and removes the folder's embeddings.
	// Returns how many embeddings were removed.
	Disable(ctx context.Context, organizationID, actorID, folderID string) (int, error)

	// Reindex queues a rebuild of an enabled folder's index
	Reindex(ctx context.Context, organizationID, actorID, folderID string) (*domain.BackgroundJob, error)

	// Status reports a folder's indexing state and active jobs
	Status(ctx context.Context, organizationID, folderID string) (*domain.McpStatus, error)

	// UpdateConfig replaces an enabled folder's indexing config. Changes
	// apply on the next index run.
	UpdateConfig(ctx context.Context, organizationID, actorID, folderID string, config domain.McpConfig) (*domain.Folder, error)
}
