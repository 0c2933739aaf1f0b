package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nexkb/nexkb-core/internal/core/domain"
	"github.com/nexkb/nexkb-core/internal/core/ports/driven"
)

// Ensure Queue implements JobQueue
var _ driven.JobQueue = (*Queue)(nil)

// Queue implements JobQueue over the background_jobs table using
// SELECT FOR UPDATE SKIP LOCKED. Dequeue crosses organizations; the
// tenant travels in the job payload.
type Queue struct {
	db *sql.DB
}

// NewQueue creates a new PostgreSQL-backed job queue.
// Assumes the background_jobs table has been created via InitSchema.
func NewQueue(db *sql.DB) *Queue {
	return &Queue{db: db}
}

// Dequeue retrieves the next ready job using SELECT FOR UPDATE SKIP LOCKED.
// This ensures only one worker gets each job even with multiple workers.
func (q *Queue) Dequeue(ctx context.Context) (*domain.BackgroundJob, error) {
	return q.dequeue(ctx, 0)
}

// DequeueWithTimeout retrieves the next ready job, waiting up to timeout seconds
func (q *Queue) DequeueWithTimeout(ctx context.Context, timeout int) (*domain.BackgroundJob, error) {
	return q.dequeue(ctx, timeout)
}

func (q *Queue) dequeue(ctx context.Context, timeoutSeconds int) (*domain.BackgroundJob, error) {
	// Use a transaction to atomically select and update
	tx, err := q.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Select next ready job with SKIP LOCKED to avoid contention.
	// Lower priority values dequeue first.
	selectQuery := `
		SELECT id, organization_id, folder_id, type, status, priority, payload,
			   attempts, max_attempts, error, created_at, updated_at,
			   started_at, completed_at, scheduled_for
		FROM background_jobs
		WHERE status = $1
		  AND scheduled_for <= NOW()
		ORDER BY priority ASC, created_at ASC
		LIMIT 1
		FOR UPDATE SKIP LOCKED
	`

	var job domain.BackgroundJob
	var payload []byte
	var startedAt, completedAt sql.NullTime

	err = tx.QueryRowContext(ctx, selectQuery, domain.JobStatusPending).Scan(
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

	if err == sql.ErrNoRows {
		// No jobs ready
		_ = tx.Rollback()

		// If timeout specified, wait and retry
		if timeoutSeconds > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(timeoutSeconds) * time.Second):
				// Retry after timeout
				return q.dequeue(ctx, 0)
			}
		}
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select job: %w", err)
	}

	// Parse payload
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &job.Payload); err != nil {
			return nil, fmt.Errorf("unmarshal payload: %w", err)
		}
	}

	// Handle nullable times
	if startedAt.Valid {
		job.StartedAt = &startedAt.Time
	}
	if completedAt.Valid {
		job.CompletedAt = &completedAt.Time
	}

	// Mark job as processing
	now := time.Now()
	updateQuery := `
		UPDATE background_jobs
		SET status = $1, started_at = $2, updated_at = $3, attempts = attempts + 1
		WHERE id = $4
	`
	_, err = tx.ExecContext(ctx, updateQuery,
		domain.JobStatusProcessing,
		now,
		now,
		job.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("update job status: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}

	// Update in-memory job state
	job.Status = domain.JobStatusProcessing
	job.StartedAt = &now
	job.UpdatedAt = now
	job.Attempts++

	return &job, nil
}

// Ack marks a job as completed
func (q *Queue) Ack(ctx context.Context, jobID string) error {
	now := time.Now()
	query := `
		UPDATE background_jobs
		SET status = $1, completed_at = $2, updated_at = $3, error = ''
		WHERE id = $4
	`

	result, err := q.db.ExecContext(ctx, query,
		domain.JobStatusCompleted,
		now,
		now,
		jobID,
	)
	if err != nil {
		return fmt.Errorf("update job: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		return domain.ErrNotFound
	}

	return nil
}

// Nack records a failed attempt, scheduling a retry while attempts remain
func (q *Queue) Nack(ctx context.Context, jobID string, reason string) error {
	// First get the job to check retry count
	job, err := q.getJob(ctx, jobID)
	if err != nil {
		return fmt.Errorf("get job: %w", err)
	}

	now := time.Now()

	if job.CanRetry() {
		// Schedule retry with exponential backoff
		backoff := time.Duration(1<<job.Attempts) * time.Second
		if backoff > 5*time.Minute {
			backoff = 5 * time.Minute
		}

		query := `
			UPDATE background_jobs
			SET status = $1, error = $2, updated_at = $3, scheduled_for = $4
			WHERE id = $5
		`
		_, err = q.db.ExecContext(ctx, query,
			domain.JobStatusPending,
			reason,
			now,
			now.Add(backoff),
			jobID,
		)
	} else {
		// Max retries exceeded, mark as failed
		query := `
			UPDATE background_jobs
			SET status = $1, error = $2, updated_at = $3, completed_at = $4
			WHERE id = $5
		`
		_, err = q.db.ExecContext(ctx, query,
			domain.JobStatusFailed,
			reason,
			now,
			now,
			jobID,
		)
	}

	if err != nil {
		return fmt.Errorf("update job: %w", err)
	}

	return nil
}

// RequeueStale returns jobs stuck in processing longer than olderThan
// seconds to pending. Stale jobs with no attempts left are marked failed
// instead of requeued.
func (q *Queue) RequeueStale(ctx context.Context, olderThan int) (int, error) {
	cutoff := time.Now().Add(-time.Duration(olderThan) * time.Second)
	now := time.Now()

	failQuery := `
		UPDATE background_jobs
		SET status = $1, error = 'worker lost', updated_at = $2, completed_at = $3
		WHERE status = $4 AND started_at < $5 AND attempts >= max_attempts
	`
	_, err := q.db.ExecContext(ctx, failQuery,
		domain.JobStatusFailed,
		now,
		now,
		domain.JobStatusProcessing,
		cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("fail exhausted jobs: %w", err)
	}

	requeueQuery := `
		UPDATE background_jobs
		SET status = $1, updated_at = $2, scheduled_for = $3
		WHERE status = $4 AND started_at < $5
	`
	result, err := q.db.ExecContext(ctx, requeueQuery,
		domain.JobStatusPending,
		now,
		now,
		domain.JobStatusProcessing,
		cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("requeue jobs: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("get rows affected: %w", err)
	}

	return int(rows), nil
}

// Purge removes old completed/failed jobs
func (q *Queue) Purge(ctx context.Context, olderThan int) (int, error) {
	cutoff := time.Now().Add(-time.Duration(olderThan) * time.Second)

	query := `
		DELETE FROM background_jobs
		WHERE status IN ($1, $2)
		  AND updated_at < $3
	`

	result, err := q.db.ExecContext(ctx, query,
		domain.JobStatusCompleted,
		domain.JobStatusFailed,
		cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("delete jobs: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("get rows affected: %w", err)
	}

	return int(rows), nil
}

// Stats returns queue statistics
func (q *Queue) Stats(ctx context.Context) (*driven.QueueStats, error) {
	stats := &driven.QueueStats{}

	// Count by status
	query := `
		SELECT status, COUNT(*) FROM background_jobs GROUP BY status
	`
	rows, err := q.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query stats: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var status string
		var count int64
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("scan stats: %w", err)
		}

		switch domain.JobStatus(status) {
		case domain.JobStatusPending:
			stats.PendingCount = count
		case domain.JobStatusProcessing:
			stats.ProcessingCount = count
		case domain.JobStatusCompleted:
			stats.CompletedCount = count
		case domain.JobStatusFailed:
			stats.FailedCount = count
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate stats: %w", err)
	}

	// Get oldest pending job age
	ageQuery := `
		SELECT EXTRACT(EPOCH FROM (NOW() - MIN(created_at)))::bigint
		FROM background_jobs
		WHERE status = $1
	`
	var age sql.NullInt64
	err = q.db.QueryRowContext(ctx, ageQuery, domain.JobStatusPending).Scan(&age)
	if err != nil && err != sql.ErrNoRows {
		return nil, fmt.Errorf("query oldest age: %w", err)
	}
	if age.Valid {
		stats.OldestPendingAge = age.Int64
	}

	return stats, nil
}

// Ping checks database connectivity
func (q *Queue) Ping(ctx context.Context) error {
	return q.db.PingContext(ctx)
}

// Close is a no-op for the Postgres queue (db connection managed externally)
func (q *Queue) Close() error {
	return nil
}

func (q *Queue) getJob(ctx context.Context, jobID string) (*domain.BackgroundJob, error) {
	query := `
		SELECT id, organization_id, folder_id, type, status, priority, payload,
			   attempts, max_attempts, error, created_at, updated_at,
			   started_at, completed_at, scheduled_for
		FROM background_jobs
		WHERE id = $1
	`

	var job domain.BackgroundJob
	var payload []byte
	var startedAt, completedAt sql.NullTime

	err := q.db.QueryRowContext(ctx, query, jobID).Scan(
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

	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query job: %w", err)
	}

	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &job.Payload); err != nil {
			return nil, fmt.Errorf("unmarshal payload: %w", err)
		}
	}

	if startedAt.Valid {
		job.StartedAt = &startedAt.Time
	}
	if completedAt.Valid {
		job.CompletedAt = &completedAt.Time
	}

	return &job, nil
}
