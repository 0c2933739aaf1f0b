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
var _ driven.FileStore = (*FileStore)(nil)

// FileStore implements driven.FileStore using PostgreSQL
type FileStore struct {
	q     querier
	orgID string
}

const fileColumns = `id, organization_id, folder_id, name, size, content_type,
	       is_active, created_by, created_at, updated_at`

// Create inserts a new file row
func (s *FileStore) Create(ctx context.Context, file *domain.File) error {
	query := `
		INSERT INTO files (id, organization_id, folder_id, name, size, content_type,
		                   is_active, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := s.q.ExecContext(ctx, query,
		file.ID,
		s.orgID,
		NullString(file.FolderID),
		file.Name,
		file.Size,
		file.ContentType,
		file.IsActive,
		file.CreatedBy,
		file.CreatedAt,
		file.UpdatedAt,
	)
	return err
}

// Get retrieves a file by ID
func (s *FileStore) Get(ctx context.Context, id string) (*domain.File, error) {
	query := `SELECT ` + fileColumns + ` FROM files WHERE id = $1 AND organization_id = $2`

	file, err := scanFile(s.q.QueryRowContext(ctx, query, id, s.orgID).Scan)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return file, nil
}

// CountByFolder returns the number of active files directly in a folder
func (s *FileStore) CountByFolder(ctx context.Context, folderID string) (int, error) {
	query := `SELECT COUNT(*) FROM files WHERE organization_id = $1 AND folder_id = $2 AND is_active`
	var count int
	err := s.q.QueryRowContext(ctx, query, s.orgID, folderID).Scan(&count)
	if err != nil {
		return 0, err
	}
	return count, nil
}

// CountByFolders returns active file counts for each of the given folders
func (s *FileStore) CountByFolders(ctx context.Context, folderIDs []string) (map[string]int, error) {
	counts := make(map[string]int)
	if len(folderIDs) == 0 {
		return counts, nil
	}

	query := `
		SELECT folder_id, COUNT(*)
		FROM files
		WHERE organization_id = $1 AND folder_id = ANY($2) AND is_active
		GROUP BY folder_id
	`
	rows, err := s.q.QueryContext(ctx, query, s.orgID, pq.Array(folderIDs))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var folderID string
		var count int
		if err := rows.Scan(&folderID, &count); err != nil {
			return nil, err
		}
		counts[folderID] = count
	}
	return counts, rows.Err()
}

// ListByFolder retrieves the active files directly in a folder, sorted
// by name
func (s *FileStore) ListByFolder(ctx context.Context, folderID string) ([]*domain.File, error) {
	query := `
		SELECT ` + fileColumns + `
		FROM files
		WHERE organization_id = $1 AND folder_id = $2 AND is_active
		ORDER BY name ASC
	`
	rows, err := s.q.QueryContext(ctx, query, s.orgID, folderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var files []*domain.File
	for rows.Next() {
		file, err := scanFile(rows.Scan)
		if err != nil {
			return nil, err
		}
		files = append(files, file)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return files, nil
}

// ReassignByFolders moves every active file in the given folders to a
// new parent folder
func (s *FileStore) ReassignByFolders(ctx context.Context, folderIDs []string, newFolderID string) (int, error) {
	if len(folderIDs) == 0 {
		return 0, nil
	}

	query := `
		UPDATE files
		SET folder_id = $1, updated_at = $2
		WHERE organization_id = $3 AND folder_id = ANY($4) AND is_active
	`
	result, err := s.q.ExecContext(ctx, query, newFolderID, time.Now(), s.orgID, pq.Array(folderIDs))
	if err != nil {
		return 0, err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(rows), nil
}

// DeactivateByFolders soft-deletes every active file in the given
// folders and detaches them from their folder
func (s *FileStore) DeactivateByFolders(ctx context.Context, folderIDs []string) (int, error) {
	if len(folderIDs) == 0 {
		return 0, nil
	}

	query := `
		UPDATE files
		SET is_active = false, folder_id = NULL, updated_at = $1
		WHERE organization_id = $2 AND folder_id = ANY($3) AND is_active
	`
	result, err := s.q.ExecContext(ctx, query, time.Now(), s.orgID, pq.Array(folderIDs))
	if err != nil {
		return 0, err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(rows), nil
}

func scanFile(scan func(dest ...interface{}) error) (*domain.File, error) {
	var file domain.File
	var folderID sql.NullString

	err := scan(
		&file.ID,
		&file.OrganizationID,
		&folderID,
		&file.Name,
		&file.Size,
		&file.ContentType,
		&file.IsActive,
		&file.CreatedBy,
		&file.CreatedAt,
		&file.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	file.FolderID = StringPtr(folderID)
	return &file, nil
}
