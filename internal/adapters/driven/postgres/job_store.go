package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/nexkb/nexkb-core/internal/core/domain"
	"github.com/nexkb/nexkb-core/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.JobStore = (*JobStore)(nil)

// JobStore implements driven.JobStore using PostgreSQL. It covers the
// producer side of the job table; workers consume through the queue
// adapter.
type JobStore struct {
	q     querier
	orgID string
}

const jobColumns = `id, organization_id, folder_id, type, status, priority, payload,
	       attempts, max_attempts, error, created_at, updated_at,
	       started_at, completed_at, scheduled_for`

// Enqueue inserts a pending job. A partial unique index allows at most
// one pending job per folder; when the insert is skipped the existing
// pending job is returned instead.
func (s *JobStore) Enqueue(ctx context.Context, job *domain.BackgroundJob) (*domain.BackgroundJob, error) {
	payload, err := json.Marshal(job.Payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}

	query := `
		INSERT INTO background_jobs (id, organization_id, folder_id, type, status, priority,
		                             payload, attempts, max_attempts, error,
		                             created_at, updated_at, scheduled_for)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (folder_id) WHERE status = 'pending' DO NOTHING
	`
	result, err := s.q.ExecContext(ctx, query,
		job.ID,
		s.orgID,
		job.FolderID,
		string(job.Type),
		string(job.Status),
		job.Priority,
		payload,
		job.Attempts,
		job.MaxAttempts,
		job.Error,
		job.CreatedAt,
		job.UpdatedAt,
		job.ScheduledFor,
	)
	if err != nil {
		return nil, err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return nil, err
	}
	if rows > 0 {
		return job, nil
	}
	return s.pendingByFolder(ctx, job.FolderID)
}

// Get retrieves a job by ID
func (s *JobStore) Get(ctx context.Context, id string) (*domain.BackgroundJob, error) {
	query := `SELECT ` + jobColumns + ` FROM background_jobs WHERE id = $1 AND organization_id = $2`

	job, err := scanJob(s.q.QueryRowContext(ctx, query, id, s.orgID).Scan)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return job, nil
}

// ListByFolder retrieves jobs for a folder, newest first
func (s *JobStore) ListByFolder(ctx context.Context, folderID string, limit int) ([]*domain.BackgroundJob, error) {
	query := `
		SELECT ` + jobColumns + `
		FROM background_jobs
		WHERE organization_id = $1 AND folder_id = $2
		ORDER BY created_at DESC
		LIMIT $3
	`
	return s.queryJobs(ctx, query, s.orgID, folderID, limit)
}

// ListActiveByFolder retrieves pending and processing jobs for a folder
func (s *JobStore) ListActiveByFolder(ctx context.Context, folderID string) ([]*domain.BackgroundJob, error) {
	query := `
		SELECT ` + jobColumns + `
		FROM background_jobs
		WHERE organization_id = $1 AND folder_id = $2 AND status IN ('pending', 'processing')
		ORDER BY created_at DESC
	`
	return s.queryJobs(ctx, query, s.orgID, folderID)
}

func (s *JobStore) pendingByFolder(ctx context.Context, folderID string) (*domain.BackgroundJob, error) {
	query := `
		SELECT ` + jobColumns + `
		FROM background_jobs
		WHERE organization_id = $1 AND folder_id = $2 AND status = 'pending'
	`
	job, err := scanJob(s.q.QueryRowContext(ctx, query, s.orgID, folderID).Scan)
	if err == sql.ErrNoRows {
		// The pending job was consumed between insert and read. Rare
		// enough that callers just retry the enqueue.
		return nil, domain.ErrConflict
	}
	if err != nil {
		return nil, err
	}
	return job, nil
}

func (s *JobStore) queryJobs(ctx context.Context, query string, args ...interface{}) ([]*domain.BackgroundJob, error) {
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []*domain.BackgroundJob
	for rows.Next() {
		job, err := scanJob(rows.Scan)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return jobs, nil
}

func scanJob(scan func(dest ...interface{}) error) (*domain.BackgroundJob, error) {
	var job domain.BackgroundJob
	var payload []byte
	var startedAt, completedAt sql.NullTime

	err := scan(
		&job.ID,
		&job.OrganizationID,
		&job.FolderID,
		&job.Type,
		&job.Status,
		&job.Priority,
		&payload,
		&job.Attempts,
		&job.MaxAttempts,
		&job.Error,
		&job.CreatedAt,
		&job.UpdatedAt,
		&startedAt,
		&completedAt,
		&job.ScheduledFor,
	)
	if err != nil {
		return nil, err
	}

	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &job.Payload); err != nil {
			return nil, fmt.Errorf("failed to unmarshal payload: %w", err)
		}
	}
	job.StartedAt = TimePtr(startedAt)
	job.CompletedAt = TimePtr(completedAt)
	return &job, nil
}
