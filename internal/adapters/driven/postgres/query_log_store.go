package postgres

import (
	"context"
	"database/sql"

	"github.com/nexkb/nexkb-core/internal/core/domain"
	"github.com/nexkb/nexkb-core/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.QueryLogStore = (*QueryLogStore)(nil)

// QueryLogStore implements driven.QueryLogStore using PostgreSQL
type QueryLogStore struct {
	q     querier
	orgID string
}

const queryLogColumns = `id, organization_id, folder_id, question, answer, relevance_score,
	       response_time_ms, tokens_used, cost_usd, api_key_id, created_by, created_at`

// Save inserts a query record
func (s *QueryLogStore) Save(ctx context.Context, record *domain.QueryRecord) error {
	query := `
		INSERT INTO query_log (id, organization_id, folder_id, question, answer, relevance_score,
		                       response_time_ms, tokens_used, cost_usd, api_key_id, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err := s.q.ExecContext(ctx, query,
		record.ID,
		s.orgID,
		record.FolderID,
		record.Question,
		record.Answer,
		record.RelevanceScore,
		record.ResponseTimeMs,
		record.TokensUsed,
		record.CostUSD,
		NullString(record.APIKeyID),
		record.CreatedBy,
		record.CreatedAt,
	)
	return err
}

// ListByFolder retrieves recent query records for a folder, newest first
func (s *QueryLogStore) ListByFolder(ctx context.Context, folderID string, limit int) ([]*domain.QueryRecord, error) {
	query := `
		SELECT ` + queryLogColumns + `
		FROM query_log
		WHERE organization_id = $1 AND folder_id = $2
		ORDER BY created_at DESC
		LIMIT $3
	`
	rows, err := s.q.QueryContext(ctx, query, s.orgID, folderID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*domain.QueryRecord
	for rows.Next() {
		record, err := scanQueryRecord(rows.Scan)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

func scanQueryRecord(scan func(dest ...interface{}) error) (*domain.QueryRecord, error) {
	var record domain.QueryRecord
	var apiKeyID sql.NullString

	err := scan(
		&record.ID,
		&record.OrganizationID,
		&record.FolderID,
		&record.Question,
		&record.Answer,
		&record.RelevanceScore,
		&record.ResponseTimeMs,
		&record.TokensUsed,
		&record.CostUSD,
		&apiKeyID,
		&record.CreatedBy,
		&record.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	record.APIKeyID = StringPtr(apiKeyID)
	return &record, nil
}
