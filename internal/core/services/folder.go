package services

import (
	"context"
	"strings"
	"time"

	"github.com/nexkb/nexkb-core/internal/core/domain"
	"github.com/nexkb/nexkb-core/internal/core/ports/driven"
	"github.com/nexkb/nexkb-core/internal/core/ports/driving"
)

// Ensure folderService implements FolderService
var _ driving.FolderService = (*folderService)(nil)

// folderService implements the FolderService interface
type folderService struct {
	store      driven.Store
	embeddings driven.EmbeddingService
}

// NewFolderService creates a new FolderService
func NewFolderService(store driven.Store, embeddings driven.EmbeddingService) driving.FolderService {
	return &folderService{
		store:      store,
		embeddings: embeddings,
	}
}

// resolveParent loads the folder at parentPath. The root row is created
// lazily on first use; any other missing parent is NotFound.
func resolveParent(ctx context.Context, folders driven.FolderStore, parentPath string) (*domain.Folder, error) {
	parentPath = strings.TrimSpace(parentPath)
	if parentPath == "" || parentPath == domain.RootPath {
		return folders.EnsureRoot(ctx)
	}
	if !strings.HasPrefix(parentPath, domain.RootPath) {
		return nil, domain.ErrInvalidArgument
	}
	return folders.GetByPath(ctx, parentPath)
}

// Create creates a new folder under the parent path
func (s *folderService) Create(ctx context.Context, organizationID, actorID string, req driving.CreateFolderRequest) (*domain.Folder, error) {
	var created *domain.Folder

	err := s.store.WithTenant(ctx, organizationID, func(uow driven.UnitOfWork) error {
		parent, err := resolveParent(ctx, uow.Folders(), req.ParentPath)
		if err != nil {
			return err
		}

		folder, err := domain.NewFolder(organizationID, req.Name, parent, actorID)
		if err != nil {
			return err
		}

		if err := uow.Folders().Create(ctx, folder); err != nil {
			return err
		}

		created = folder
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// Get retrieves a folder by ID
func (s *folderService) Get(ctx context.Context, organizationID, id string) (*domain.Folder, error) {
	var folder *domain.Folder
	err := s.store.WithTenant(ctx, organizationID, func(uow driven.UnitOfWork) error {
		var err error
		folder, err = uow.Folders().Get(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return folder, nil
}

// GetByPath retrieves a folder by its path
func (s *folderService) GetByPath(ctx context.Context, organizationID, path string) (*domain.Folder, error) {
	var folder *domain.Folder
	err := s.store.WithTenant(ctx, organizationID, func(uow driven.UnitOfWork) error {
		var err error
		folder, err = resolveParent(ctx, uow.Folders(), path)
		return err
	})
	if err != nil {
		return nil, err
	}
	return folder, nil
}

// ListChildren retrieves a folder's immediate subfolders and files.
// Folder entries carry live child and file counts; pagination covers the
// combined folders-then-files listing.
func (s *folderService) ListChildren(ctx context.Context, organizationID string, req driving.ListChildrenRequest) (*driving.FolderListing, error) {
	var listing *driving.FolderListing

	err := s.store.WithTenant(ctx, organizationID, func(uow driven.UnitOfWork) error {
		parent, err := resolveParent(ctx, uow.Folders(), req.Path)
		if err != nil {
			return err
		}

		children, err := uow.Folders().ListChildren(ctx, parent.ID)
		if err != nil {
			return err
		}

		ids := make([]string, 0, len(children))
		for _, c := range children {
			ids = append(ids, c.ID)
		}

		childCounts, err := uow.Folders().CountChildren(ctx, ids)
		if err != nil {
			return err
		}
		fileCounts, err := uow.Files().CountByFolders(ctx, ids)
		if err != nil {
			return err
		}

		summaries := make([]*domain.FolderSummary, 0, len(children))
		for _, c := range children {
			summaries = append(summaries, &domain.FolderSummary{
				Folder:     c,
				ChildCount: childCounts[c.ID],
				FileCount:  fileCounts[c.ID],
			})
		}

		files, err := uow.Files().ListByFolder(ctx, parent.ID)
		if err != nil {
			return err
		}

		listing = paginateListing(summaries, files, req.Offset, req.Limit)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return listing, nil
}

// paginateListing applies offset and limit across the concatenation of
// folders then files.
func paginateListing(folders []*domain.FolderSummary, files []*domain.File, offset, limit int) *driving.FolderListing {
	total := len(folders) + len(files)

	if offset > 0 {
		if offset >= len(folders) {
			offset -= len(folders)
			folders = nil
			if offset >= len(files) {
				files = nil
			} else {
				files = files[offset:]
			}
		} else {
			folders = folders[offset:]
		}
	}

	if limit > 0 {
		if len(folders) >= limit {
			folders = folders[:limit]
			files = nil
		} else if rest := limit - len(folders); len(files) > rest {
			files = files[:rest]
		}
	}

	if folders == nil {
		folders = []*domain.FolderSummary{}
	}
	if files == nil {
		files = []*domain.File{}
	}
	return &driving.FolderListing{Folders: folders, Files: files, Total: total}
}

// Tree retrieves the folder hierarchy as a forest of top-level folders
func (s *folderService) Tree(ctx context.Context, organizationID string, maxDepth int) ([]*domain.FolderTreeNode, error) {
	var forest []*domain.FolderTreeNode

	err := s.store.WithTenant(ctx, organizationID, func(uow driven.UnitOfWork) error {
		if _, err := uow.Folders().EnsureRoot(ctx); err != nil {
			return err
		}

		all, err := uow.Folders().ListAll(ctx)
		if err != nil {
			return err
		}

		if maxDepth > 0 {
			filtered := all[:0]
			for _, f := range all {
				if f.Depth <= maxDepth {
					filtered = append(filtered, f)
				}
			}
			all = filtered
		}

		root := domain.BuildFolderTree(all)
		if root == nil {
			forest = []*domain.FolderTreeNode{}
			return nil
		}
		forest = root.Children
		return nil
	})
	if err != nil {
		return nil, err
	}
	return forest, nil
}

// Rename renames a folder in place. Renaming to the current name is a
// no-op; otherwise the folder's path and its whole subtree's paths are
// rewritten in the same transaction.
func (s *folderService) Rename(ctx context.Context, organizationID, actorID, id string, req driving.RenameFolderRequest) (*domain.Folder, error) {
	var renamed *domain.Folder

	err := s.store.WithTenant(ctx, organizationID, func(uow driven.UnitOfWork) error {
		folder, err := uow.Folders().Get(ctx, id)
		if err != nil {
			return err
		}
		if folder.IsRoot {
			return domain.ErrInvalidOperation
		}

		name, err := domain.NormalizeFolderName(req.Name)
		if err != nil {
			return err
		}
		if name == folder.Name {
			renamed = folder
			return nil
		}

		oldPath := folder.Path
		folder.Name = name
		folder.Path = domain.JoinPath(domain.ParentPath(oldPath), name)
		folder.UpdatedAt = time.Now()

		if err := uow.Folders().Update(ctx, folder); err != nil {
			return err
		}
		if err := uow.Folders().MoveSubtree(ctx, folder.ID, oldPath, folder.Path, 0); err != nil {
			return err
		}

		renamed = folder
		return nil
	})
	if err != nil {
		return nil, err
	}
	return renamed, nil
}

// Move reparents a folder, carrying its subtree along
func (s *folderService) Move(ctx context.Context, organizationID, actorID, id string, req driving.MoveFolderRequest) (*domain.Folder, error) {
	var moved *domain.Folder

	err := s.store.WithTenant(ctx, organizationID, func(uow driven.UnitOfWork) error {
		folder, err := uow.Folders().Get(ctx, id)
		if err != nil {
			return err
		}
		if folder.IsRoot {
			return domain.ErrInvalidOperation
		}

		target, err := resolveParent(ctx, uow.Folders(), req.NewParentPath)
		if err != nil {
			return err
		}
		if folder.WouldCycle(target) {
			return domain.ErrInvalidOperation
		}
		if folder.ParentID != nil && *folder.ParentID == target.ID {
			moved = folder
			return nil
		}

		// The deepest descendant must still fit under the depth limit.
		deepest, err := uow.Folders().MaxSubtreeDepth(ctx, folder.ID)
		if err != nil {
			return err
		}
		newDepth := target.Depth + 1
		if newDepth+(deepest-folder.Depth) > domain.MaxFolderDepth {
			return domain.ErrInvalidOperation
		}

		oldPath := folder.Path
		newPath := domain.JoinPath(target.Path, folder.Name)
		depthDelta := newDepth - folder.Depth

		targetID := target.ID
		folder.ParentID = &targetID
		folder.Path = newPath
		folder.Depth = newDepth
		folder.UpdatedAt = time.Now()

		if err := uow.Folders().Update(ctx, folder); err != nil {
			return err
		}
		if err := uow.Folders().MoveSubtree(ctx, folder.ID, oldPath, newPath, depthDelta); err != nil {
			return err
		}

		moved = folder
		return nil
	})
	if err != nil {
		return nil, err
	}
	return moved, nil
}

// Delete removes a folder, and with Recursive its entire subtree.
// Contained files are deactivated or moved to the deleted folder's
// parent depending on DeleteFiles; keys scoped to removed folders are
// revoked. All of it commits atomically.
func (s *folderService) Delete(ctx context.Context, organizationID, actorID, id string, req driving.DeleteFolderRequest) (*driving.DeleteFolderResult, error) {
	var result *driving.DeleteFolderResult
	var enabledIDs []string

	err := s.store.WithTenant(ctx, organizationID, func(uow driven.UnitOfWork) error {
		folder, err := uow.Folders().Get(ctx, id)
		if err != nil {
			return err
		}
		if folder.IsRoot {
			return domain.ErrInvalidOperation
		}

		childCounts, err := uow.Folders().CountChildren(ctx, []string{id})
		if err != nil {
			return err
		}
		if childCounts[id] > 0 && !req.Recursive {
			return domain.ErrInvalidOperation
		}

		subtree, err := uow.Folders().ListSubtree(ctx, id)
		if err != nil {
			return err
		}
		ids := make([]string, 0, len(subtree))
		for _, f := range subtree {
			ids = append(ids, f.ID)
			if f.McpEnabled {
				enabledIDs = append(enabledIDs, f.ID)
			}
		}

		res := &driving.DeleteFolderResult{}
		if req.DeleteFiles {
			n, err := uow.Files().DeactivateByFolders(ctx, ids)
			if err != nil {
				return err
			}
			res.FilesDeleted = n
		} else {
			n, err := uow.Files().ReassignByFolders(ctx, ids, *folder.ParentID)
			if err != nil {
				return err
			}
			res.FilesMoved = n
		}

		revoked, err := uow.APIKeys().RevokeByFolders(ctx, ids)
		if err != nil {
			return err
		}
		res.KeysRevoked = revoked

		deleted, err := uow.Folders().DeleteSubtree(ctx, id)
		if err != nil {
			return err
		}
		res.FoldersDeleted = len(deleted)

		result = res
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Embedding cleanup is best-effort; the engine tolerates deletes for
	// folders it no longer tracks.
	for _, fid := range enabledIDs {
		_, _ = s.embeddings.DeleteFolderEmbeddings(ctx, organizationID, fid)
	}

	return result, nil
}
