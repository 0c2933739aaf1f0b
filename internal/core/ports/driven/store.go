package driven

import (
	"context"
	"time"

	"github.com/nexkb/nexkb-core/internal/core/domain"
)

// Store is the persistence entry point. All tenant data access goes through
// WithTenant so that every read and write inside fn is scoped to one
// organization and committed atomically.
type Store interface {
	// WithTenant runs fn inside a transaction scoped to the organization.
	// The transaction commits when fn returns nil and rolls back otherwise.
	WithTenant(ctx context.Context, organizationID string, fn func(UnitOfWork) error) error

	// Ping checks if the backing database is reachable.
	Ping(ctx context.Context) error

	// Close releases database resources.
	Close() error
}

// UnitOfWork exposes the per-tenant stores inside a single transaction.
// Every store returned from the same unit of work shares that transaction.
type UnitOfWork interface {
	Folders() FolderStore
	Files() FileStore
	Jobs() JobStore
	APIKeys() APIKeyStore
	Queries() QueryLogStore
}

// FolderStore handles folder persistence within a tenant transaction.
// Paths are unique per organization; implementations surface duplicate
// paths as domain.ErrConflict.
type FolderStore interface {
	// Create inserts a new folder.
	Create(ctx context.Context, folder *domain.Folder) error

	// Get retrieves a folder by ID.
	Get(ctx context.Context, id string) (*domain.Folder, error)

	// GetByPath retrieves a folder by its materialized path.
	GetByPath(ctx context.Context, path string) (*domain.Folder, error)

	// GetRoot retrieves the organization's root folder.
	GetRoot(ctx context.Context) (*domain.Folder, error)

	// EnsureRoot retrieves the root folder, creating it if absent.
	EnsureRoot(ctx context.Context) (*domain.Folder, error)

	// ListChildren retrieves the direct children of a folder, sorted by name.
	ListChildren(ctx context.Context, parentID string) ([]*domain.Folder, error)

	// CountChildren returns the number of direct children for each of the
	// given folders. Folders with no children are absent from the map.
	CountChildren(ctx context.Context, folderIDs []string) (map[string]int, error)

	// ListAll retrieves every folder in the organization.
	ListAll(ctx context.Context) ([]*domain.Folder, error)

	// ListSubtree retrieves a folder and all its descendants.
	ListSubtree(ctx context.Context, folderID string) ([]*domain.Folder, error)

	// MaxSubtreeDepth returns the largest depth among the folder and its
	// descendants.
	MaxSubtreeDepth(ctx context.Context, folderID string) (int, error)

	// Update persists name, path, parent, depth and config changes.
	Update(ctx context.Context, folder *domain.Folder) error

	// MoveSubtree rewrites the paths and depths of every descendant after
	// the folder itself moved from oldPath to newPath.
	MoveSubtree(ctx context.Context, folderID, oldPath, newPath string, depthDelta int) error

	// Delete removes a single folder row.
	Delete(ctx context.Context, id string) error

	// DeleteSubtree removes a folder and all its descendants. Returns the
	// IDs of every removed folder.
	DeleteSubtree(ctx context.Context, folderID string) ([]string, error)

	// SetMcpEnabled flips a disabled folder to enabled with the given
	// config and marks indexing pending. Returns domain.ErrInvalidState if
	// the folder is already enabled.
	SetMcpEnabled(ctx context.Context, folderID string, config domain.McpConfig) error

	// SetMcpDisabled flips an enabled folder back to disabled and resets
	// indexing state. Returns domain.ErrInvalidState if the folder is not
	// enabled.
	SetMcpDisabled(ctx context.Context, folderID string) error

	// SetIndexingStatus transitions the indexing status, guarded so the
	// write only lands when the folder is still enabled and currently in
	// one of the from statuses. Returns domain.ErrInvalidState otherwise.
	SetIndexingStatus(ctx context.Context, folderID string, from []domain.IndexingStatus, to domain.IndexingStatus) error

	// CompleteIndexing records a finished index run: status, embedding
	// count and last indexed time. Guarded like SetIndexingStatus.
	CompleteIndexing(ctx context.Context, folderID string, status domain.IndexingStatus, embeddingCount int, indexedAt time.Time) error
}

// FileStore handles file metadata within a tenant transaction.
type FileStore interface {
	// Create inserts a new file row.
	Create(ctx context.Context, file *domain.File) error

	// Get retrieves a file by ID.
	Get(ctx context.Context, id string) (*domain.File, error)

	// CountByFolder returns the number of active files directly in a folder.
	CountByFolder(ctx context.Context, folderID string) (int, error)

	// CountByFolders returns active file counts for each of the given
	// folders. Folders with no files are absent from the map.
	CountByFolders(ctx context.Context, folderIDs []string) (map[string]int, error)

	// ListByFolder retrieves the active files directly in a folder.
	ListByFolder(ctx context.Context, folderID string) ([]*domain.File, error)

	// ReassignByFolders moves every file in the given folders to a new
	// parent folder. Returns the number of files moved.
	ReassignByFolders(ctx context.Context, folderIDs []string, newFolderID string) (int, error)

	// DeactivateByFolders soft-deletes every file in the given folders and
	// detaches them. Returns the number of files affected.
	DeactivateByFolders(ctx context.Context, folderIDs []string) (int, error)
}

// JobStore handles background job rows within a tenant transaction.
// Queue consumption goes through JobQueue; this store covers the
// producer side and status reads.
type JobStore interface {
	// Enqueue inserts a pending job. If the folder already has a pending
	// job of any type, no row is inserted and the existing job is
	// returned instead.
	Enqueue(ctx context.Context, job *domain.BackgroundJob) (*domain.BackgroundJob, error)

	// Get retrieves a job by ID.
	Get(ctx context.Context, id string) (*domain.BackgroundJob, error)

	// ListByFolder retrieves jobs for a folder, newest first.
	ListByFolder(ctx context.Context, folderID string, limit int) ([]*domain.BackgroundJob, error)

	// ListActiveByFolder retrieves pending and processing jobs for a folder.
	ListActiveByFolder(ctx context.Context, folderID string) ([]*domain.BackgroundJob, error)
}

// APIKeyStore handles folder API keys within a tenant transaction.
type APIKeyStore interface {
	// Create inserts a new API key.
	Create(ctx context.Context, key *domain.APIKey) error

	// Get retrieves a key by ID.
	Get(ctx context.Context, id string) (*domain.APIKey, error)

	// ListByFolder retrieves all keys for a folder, newest first.
	ListByFolder(ctx context.Context, folderID string) ([]*domain.APIKey, error)

	// Revoke marks a key inactive. Revoking an already revoked key is a
	// no-op.
	Revoke(ctx context.Context, id string) error

	// RevokeByFolders marks every key in the given folders inactive.
	// Returns the number of keys revoked.
	RevokeByFolders(ctx context.Context, folderIDs []string) (int, error)
}

// QueryLogStore records folder query activity within a tenant transaction.
// Usage aggregation lives on the engine; this store only keeps the
// per-query history.
type QueryLogStore interface {
	// Save inserts a query record.
	Save(ctx context.Context, record *domain.QueryRecord) error

	// ListByFolder retrieves recent query records for a folder, newest first.
	ListByFolder(ctx context.Context, folderID string, limit int) ([]*domain.QueryRecord, error)
}
