package driven

import (
	"context"

	"github.com/nexkb/nexkb-core/internal/core/domain"
)

// JobQueue is the worker-side view of the background job table. Dequeue
// crosses organizations; workers read the tenant from the job payload.
type JobQueue interface {
	// Dequeue retrieves the next ready job ordered by priority then age.
	// The job is marked processing and will not be handed to other workers.
	// Returns nil, nil when no job is ready.
	Dequeue(ctx context.Context) (*domain.BackgroundJob, error)

	// DequeueWithTimeout polls for a ready job for up to timeout seconds.
	// Returns nil, nil if the timeout passes with nothing ready.
	DequeueWithTimeout(ctx context.Context, timeout int) (*domain.BackgroundJob, error)

	// Ack marks a processing job completed.
	Ack(ctx context.Context, jobID string) error

	// Nack records a failed attempt. The job is rescheduled with backoff
	// while attempts remain, otherwise marked failed.
	Nack(ctx context.Context, jobID string, reason string) error

	// RequeueStale returns jobs stuck in processing longer than olderThan
	// seconds to pending. Returns the number of jobs recovered.
	RequeueStale(ctx context.Context, olderThan int) (int, error)

	// Purge removes terminal jobs older than olderThan seconds.
	// Returns the number of jobs removed.
	Purge(ctx context.Context, olderThan int) (int, error)

	// Stats returns queue statistics.
	Stats(ctx context.Context) (*QueueStats, error)

	// Ping checks if the queue backend is healthy.
	Ping(ctx context.Context) error

	// Close cleans up resources.
	Close() error
}

// QueueStats contains queue statistics
type QueueStats struct {
	// PendingCount is the number of jobs waiting to be processed
	PendingCount int64 `json:"pending_count"`

	// ProcessingCount is the number of jobs currently being processed
	ProcessingCount int64 `json:"processing_count"`

	// CompletedCount is the number of successfully completed jobs
	CompletedCount int64 `json:"completed_count"`

	// FailedCount is the number of jobs that failed after all retries
	FailedCount int64 `json:"failed_count"`

	// OldestPendingAge is the age of the oldest pending job in seconds
	OldestPendingAge int64 `json:"oldest_pending_age"`
}
