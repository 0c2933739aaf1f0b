package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/nexkb/nexkb-core/internal/core/domain"
	"github.com/nexkb/nexkb-core/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.FolderStore = (*FolderStore)(nil)

// FolderStore implements driven.FolderStore using PostgreSQL.
// All queries are scoped to one organization; the (organization_id, path)
// unique constraint is the final arbiter for duplicate paths.
type FolderStore struct {
	q     querier
	orgID string
}

// NewFolderStore creates a FolderStore outside a unit of work, scoped to
// one organization.
func NewFolderStore(db *DB, organizationID string) *FolderStore {
	return &FolderStore{q: db, orgID: organizationID}
}

const folderColumns = `id, organization_id, name, path, parent_id, depth, is_root,
	       mcp_enabled, mcp_config, indexing_status, embedding_count, last_indexed_at,
	       created_by, created_at, updated_at`

// Create inserts a new folder
func (s *FolderStore) Create(ctx context.Context, folder *domain.Folder) error {
	configJSON, err := marshalMcpConfig(folder.McpConfig)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO folders (id, organization_id, name, path, parent_id, depth, is_root,
		                     mcp_enabled, mcp_config, indexing_status, embedding_count, last_indexed_at,
		                     created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`

	_, err = s.q.ExecContext(ctx, query,
		folder.ID,
		s.orgID,
		folder.Name,
		folder.Path,
		NullString(folder.ParentID),
		folder.Depth,
		folder.IsRoot,
		folder.McpEnabled,
		configJSON,
		string(folder.IndexingStatus),
		folder.EmbeddingCount,
		NullTime(folder.LastIndexedAt),
		folder.CreatedBy,
		folder.CreatedAt,
		folder.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return domain.ErrConflict
	}
	return err
}

// Get retrieves a folder by ID
func (s *FolderStore) Get(ctx context.Context, id string) (*domain.Folder, error) {
	query := `SELECT ` + folderColumns + ` FROM folders WHERE id = $1 AND organization_id = $2`
	return s.queryFolder(ctx, query, id, s.orgID)
}

// GetByPath retrieves a folder by its materialized path
func (s *FolderStore) GetByPath(ctx context.Context, path string) (*domain.Folder, error) {
	query := `SELECT ` + folderColumns + ` FROM folders WHERE organization_id = $1 AND path = $2`
	return s.queryFolder(ctx, query, s.orgID, path)
}

// GetRoot retrieves the organization's root folder
func (s *FolderStore) GetRoot(ctx context.Context) (*domain.Folder, error) {
	query := `SELECT ` + folderColumns + ` FROM folders WHERE organization_id = $1 AND is_root = true`
	return s.queryFolder(ctx, query, s.orgID)
}

// EnsureRoot retrieves the root folder, creating it if absent.
// Concurrent first use is resolved by the unique path constraint.
func (s *FolderStore) EnsureRoot(ctx context.Context) (*domain.Folder, error) {
	root, err := s.GetRoot(ctx)
	if err == nil {
		return root, nil
	}
	if err != domain.ErrNotFound {
		return nil, err
	}

	root = domain.NewRootFolder(s.orgID)
	query := `
		INSERT INTO folders (id, organization_id, name, path, depth, is_root,
		                     indexing_status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, true, $6, $7, $8)
		ON CONFLICT (organization_id, path) DO NOTHING
	`
	_, err = s.q.ExecContext(ctx, query,
		root.ID,
		s.orgID,
		root.Name,
		root.Path,
		root.Depth,
		string(root.IndexingStatus),
		root.CreatedAt,
		root.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	return s.GetRoot(ctx)
}

// ListChildren retrieves the direct children of a folder, sorted by name
func (s *FolderStore) ListChildren(ctx context.Context, parentID string) ([]*domain.Folder, error) {
	query := `
		SELECT ` + folderColumns + `
		FROM folders
		WHERE organization_id = $1 AND parent_id = $2
		ORDER BY name ASC
	`
	return s.queryFolders(ctx, query, s.orgID, parentID)
}

// CountChildren returns direct child counts for each of the given folders
func (s *FolderStore) CountChildren(ctx context.Context, folderIDs []string) (map[string]int, error) {
	counts := make(map[string]int)
	if len(folderIDs) == 0 {
		return counts, nil
	}

	query := `
		SELECT parent_id, COUNT(*)
		FROM folders
		WHERE organization_id = $1 AND parent_id = ANY($2)
		GROUP BY parent_id
	`
	rows, err := s.q.QueryContext(ctx, query, s.orgID, pq.Array(folderIDs))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var parentID string
		var count int
		if err := rows.Scan(&parentID, &count); err != nil {
			return nil, err
		}
		counts[parentID] = count
	}
	return counts, rows.Err()
}

// ListAll retrieves every folder in the organization
func (s *FolderStore) ListAll(ctx context.Context) ([]*domain.Folder, error) {
	query := `SELECT ` + folderColumns + ` FROM folders WHERE organization_id = $1 ORDER BY path ASC`
	return s.queryFolders(ctx, query, s.orgID)
}

// ListSubtree retrieves a folder and all its descendants
func (s *FolderStore) ListSubtree(ctx context.Context, folderID string) ([]*domain.Folder, error) {
	folder, err := s.Get(ctx, folderID)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT ` + folderColumns + `
		FROM folders
		WHERE organization_id = $1 AND (id = $2 OR path LIKE $3)
		ORDER BY path ASC
	`
	return s.queryFolders(ctx, query, s.orgID, folderID, likePrefix(folder.Path))
}

// MaxSubtreeDepth returns the largest depth in a folder's subtree
func (s *FolderStore) MaxSubtreeDepth(ctx context.Context, folderID string) (int, error) {
	folder, err := s.Get(ctx, folderID)
	if err != nil {
		return 0, err
	}

	query := `
		SELECT MAX(depth)
		FROM folders
		WHERE organization_id = $1 AND (id = $2 OR path LIKE $3)
	`
	var depth int
	err = s.q.QueryRowContext(ctx, query, s.orgID, folderID, likePrefix(folder.Path)).Scan(&depth)
	if err != nil {
		return 0, err
	}
	return depth, nil
}

// Update persists name, path, parent, depth and config changes
func (s *FolderStore) Update(ctx context.Context, folder *domain.Folder) error {
	configJSON, err := marshalMcpConfig(folder.McpConfig)
	if err != nil {
		return err
	}

	query := `
		UPDATE folders
		SET name = $1, path = $2, parent_id = $3, depth = $4, mcp_config = $5, updated_at = $6
		WHERE id = $7 AND organization_id = $8
	`
	result, err := s.q.ExecContext(ctx, query,
		folder.Name,
		folder.Path,
		NullString(folder.ParentID),
		folder.Depth,
		configJSON,
		folder.UpdatedAt,
		folder.ID,
		s.orgID,
	)
	if isUniqueViolation(err) {
		return domain.ErrConflict
	}
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

// MoveSubtree rewrites descendant paths and depths in one statement
// after the folder row itself moved from oldPath to newPath.
func (s *FolderStore) MoveSubtree(ctx context.Context, folderID, oldPath, newPath string, depthDelta int) error {
	query := `
		UPDATE folders
		SET path = $1 || substr(path, char_length($2) + 1), depth = depth + $3, updated_at = NOW()
		WHERE organization_id = $4 AND path LIKE $5
	`
	_, err := s.q.ExecContext(ctx, query,
		newPath,
		oldPath,
		depthDelta,
		s.orgID,
		likePrefix(oldPath),
	)
	if isUniqueViolation(err) {
		return domain.ErrConflict
	}
	return err
}

// Delete removes a single folder row
func (s *FolderStore) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM folders WHERE id = $1 AND organization_id = $2`
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

// DeleteSubtree removes a folder and all its descendants, returning the
// removed IDs
func (s *FolderStore) DeleteSubtree(ctx context.Context, folderID string) ([]string, error) {
	folder, err := s.Get(ctx, folderID)
	if err != nil {
		return nil, err
	}

	query := `
		DELETE FROM folders
		WHERE organization_id = $1 AND (id = $2 OR path LIKE $3)
		RETURNING id
	`
	rows, err := s.q.QueryContext(ctx, query, s.orgID, folderID, likePrefix(folder.Path))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// SetMcpEnabled flips a disabled folder to enabled with the given config
func (s *FolderStore) SetMcpEnabled(ctx context.Context, folderID string, config domain.McpConfig) error {
	configJSON, err := json.Marshal(config)
	if err != nil {
		return err
	}

	query := `
		UPDATE folders
		SET mcp_enabled = true, mcp_config = $1, indexing_status = $2, updated_at = NOW()
		WHERE id = $3 AND organization_id = $4 AND mcp_enabled = false
	`
	result, err := s.q.ExecContext(ctx, query,
		configJSON,
		string(domain.IndexingStatusPending),
		folderID,
		s.orgID,
	)
	if err != nil {
		return err
	}
	return s.guardResult(ctx, result, folderID)
}

// SetMcpDisabled flips an enabled folder back to disabled and resets its
// indexing state
func (s *FolderStore) SetMcpDisabled(ctx context.Context, folderID string) error {
	query := `
		UPDATE folders
		SET mcp_enabled = false, mcp_config = NULL, indexing_status = $1,
		    embedding_count = 0, last_indexed_at = NULL, updated_at = NOW()
		WHERE id = $2 AND organization_id = $3 AND mcp_enabled = true
	`
	result, err := s.q.ExecContext(ctx, query,
		string(domain.IndexingStatusIdle),
		folderID,
		s.orgID,
	)
	if err != nil {
		return err
	}
	return s.guardResult(ctx, result, folderID)
}

// SetIndexingStatus transitions the indexing status, guarded by the
// current status and enablement
func (s *FolderStore) SetIndexingStatus(ctx context.Context, folderID string, from []domain.IndexingStatus, to domain.IndexingStatus) error {
	fromStrs := make([]string, len(from))
	for i, st := range from {
		fromStrs[i] = string(st)
	}

	query := `
		UPDATE folders
		SET indexing_status = $1, updated_at = NOW()
		WHERE id = $2 AND organization_id = $3 AND mcp_enabled = true AND indexing_status = ANY($4)
	`
	result, err := s.q.ExecContext(ctx, query,
		string(to),
		folderID,
		s.orgID,
		pq.Array(fromStrs),
	)
	if err != nil {
		return err
	}
	return s.guardResult(ctx, result, folderID)
}

// CompleteIndexing records a finished index run. The write only lands
// while the folder is still enabled and processing, so a disable racing
// the worker wins.
func (s *FolderStore) CompleteIndexing(ctx context.Context, folderID string, status domain.IndexingStatus, embeddingCount int, indexedAt time.Time) error {
	query := `
		UPDATE folders
		SET indexing_status = $1,
		    embedding_count = $2,
		    last_indexed_at = CASE WHEN $1 = $3 THEN $4 ELSE last_indexed_at END,
		    updated_at = NOW()
		WHERE id = $5 AND organization_id = $6 AND mcp_enabled = true AND indexing_status = $7
	`
	result, err := s.q.ExecContext(ctx, query,
		string(status),
		embeddingCount,
		string(domain.IndexingStatusCompleted),
		indexedAt,
		folderID,
		s.orgID,
		string(domain.IndexingStatusProcessing),
	)
	if err != nil {
		return err
	}
	return s.guardResult(ctx, result, folderID)
}

// guardResult maps a zero-row guarded update to NotFound or InvalidState
// depending on whether the folder exists at all.
func (s *FolderStore) guardResult(ctx context.Context, result sql.Result, folderID string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows > 0 {
		return nil
	}
	if _, err := s.Get(ctx, folderID); err != nil {
		return err
	}
	return domain.ErrInvalidState
}

func (s *FolderStore) queryFolder(ctx context.Context, query string, args ...interface{}) (*domain.Folder, error) {
	row := s.q.QueryRowContext(ctx, query, args...)
	folder, err := scanFolder(row.Scan)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return folder, nil
}

func (s *FolderStore) queryFolders(ctx context.Context, query string, args ...interface{}) ([]*domain.Folder, error) {
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var folders []*domain.Folder
	for rows.Next() {
		folder, err := scanFolder(rows.Scan)
		if err != nil {
			return nil, err
		}
		folders = append(folders, folder)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return folders, nil
}

func scanFolder(scan func(dest ...interface{}) error) (*domain.Folder, error) {
	var folder domain.Folder
	var parentID sql.NullString
	var configJSON []byte
	var lastIndexedAt sql.NullTime

	err := scan(
		&folder.ID,
		&folder.OrganizationID,
		&folder.Name,
		&folder.Path,
		&parentID,
		&folder.Depth,
		&folder.IsRoot,
		&folder.McpEnabled,
		&configJSON,
		&folder.IndexingStatus,
		&folder.EmbeddingCount,
		&lastIndexedAt,
		&folder.CreatedBy,
		&folder.CreatedAt,
		&folder.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	folder.ParentID = StringPtr(parentID)
	folder.LastIndexedAt = TimePtr(lastIndexedAt)
	if len(configJSON) > 0 {
		var config domain.McpConfig
		if err := json.Unmarshal(configJSON, &config); err != nil {
			return nil, err
		}
		folder.McpConfig = &config
	}
	return &folder, nil
}

// marshalMcpConfig serializes an optional config to a nullable JSONB value
func marshalMcpConfig(config *domain.McpConfig) (interface{}, error) {
	if config == nil {
		return nil, nil
	}
	return json.Marshal(config)
}

// likePrefix builds a LIKE pattern matching strict descendants of path,
// escaping any wildcard characters folder names may contain.
func likePrefix(path string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(path) + "/%"
}
