package driving

import (
	"context"

	"github.com/nexkb/nexkb-core/internal/core/domain"
)

// CreateFolderRequest represents a request to create a new folder.
// ParentPath selects where the folder goes; empty or "/" means the root.
type CreateFolderRequest struct {
	Name       string `json:"name"`
	ParentPath string `json:"parent_path,omitempty"`
}

// RenameFolderRequest represents a request to rename a folder
type RenameFolderRequest struct {
	Name string `json:"name"`
}

// MoveFolderRequest represents a request to move a folder under a new parent
type MoveFolderRequest struct {
	NewParentPath string `json:"new_parent_path"`
}

// DeleteFolderRequest controls how a folder delete treats its contents
type DeleteFolderRequest struct {
	// Recursive permits deleting a folder that still has subfolders.
	// Without it such a delete fails.
	Recursive bool `json:"recursive"`

	// DeleteFiles deactivates contained files when true. When false the
	// files move up to the deleted folder's parent.
	DeleteFiles bool `json:"delete_files"`
}

// DeleteFolderResult reports what a delete removed
type DeleteFolderResult struct {
	FoldersDeleted int `json:"folders_deleted"`
	FilesDeleted   int `json:"files_deleted"`
	FilesMoved     int `json:"files_moved"`
	KeysRevoked    int `json:"keys_revoked"`
}

// ListChildrenRequest selects a folder by path and pages its contents
type ListChildrenRequest struct {
	Path   string `json:"path"`
	Limit  int    `json:"limit,omitempty"`
	Offset int    `json:"offset,omitempty"`
}

// FolderListing holds one folder's immediate contents: subfolders with
// live counts, then files.
type FolderListing struct {
	Folders []*domain.FolderSummary `json:"folders"`
	Files   []*domain.File          `json:"files"`
	Total   int                     `json:"total"`
}

// FolderService manages the folder hierarchy
type FolderService interface {
	// Create creates a new folder under the parent path
	Create(ctx context.Context, organizationID, actorID string, req CreateFolderRequest) (*domain.Folder, error)

	// Get retrieves a folder by ID
	Get(ctx context.Context, organizationID, id string) (*domain.Folder, error)

	// GetByPath retrieves a folder by its path
	GetByPath(ctx context.Context, organizationID, path string) (*domain.Folder, error)

	// ListChildren retrieves a folder's immediate subfolders and files
	ListChildren(ctx context.Context, organizationID string, req ListChildrenRequest) (*FolderListing, error)

	// Tree retrieves the folder hierarchy as a forest of top-level
	// folders. maxDepth <= 0 returns the full tree.
	Tree(ctx context.Context, organizationID string, maxDepth int) ([]*domain.FolderTreeNode, error)

	// Rename renames a folder in place
	Rename(ctx context.Context, organizationID, actorID, id string, req RenameFolderRequest) (*domain.Folder, error)

	// Move reparents a folder, carrying its subtree along
	Move(ctx context.Context, organizationID, actorID, id string, req MoveFolderRequest) (*domain.Folder, error)

	// Delete removes a folder, and with Recursive its entire subtree
	Delete(ctx context.Context, organizationID, actorID, id string, req DeleteFolderRequest) (*DeleteFolderResult, error)
}
