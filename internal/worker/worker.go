package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nexkb/nexkb-core/internal/core/domain"
	"github.com/nexkb/nexkb-core/internal/core/ports/driven"
	"github.com/nexkb/nexkb-core/internal/metrics"
)

// Worker processes background jobs from the job queue. It owns every
// job transition past pending: it claims jobs, runs folder indexing
// against the embedding engine and reports the outcome back to the
// queue and the folder row.
type Worker struct {
	jobQueue   driven.JobQueue
	store      driven.Store
	embeddings driven.EmbeddingService
	janitor    *Janitor
	metrics    *metrics.Metrics
	logger     *slog.Logger

	// Configuration
	concurrency    int
	dequeueTimeout int // seconds

	// Internal state
	mu      sync.RWMutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// WorkerConfig holds configuration for the worker.
type WorkerConfig struct {
	JobQueue       driven.JobQueue
	Store          driven.Store
	Embeddings     driven.EmbeddingService
	Janitor        *Janitor         // Optional: queue maintenance loop started with the worker
	Metrics        *metrics.Metrics // Optional
	Logger         *slog.Logger
	Concurrency    int // Number of concurrent job processors
	DequeueTimeout int // Seconds to wait for a job before checking again
}

// NewWorker creates a new job worker.
func NewWorker(cfg WorkerConfig) *Worker {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}

	dequeueTimeout := cfg.DequeueTimeout
	if dequeueTimeout <= 0 {
		dequeueTimeout = 5
	}

	return &Worker{
		jobQueue:       cfg.JobQueue,
		store:          cfg.Store,
		embeddings:     cfg.Embeddings,
		janitor:        cfg.Janitor,
		metrics:        cfg.Metrics,
		logger:         logger,
		concurrency:    concurrency,
		dequeueTimeout: dequeueTimeout,
	}
}

// Start begins the worker loop.
// It runs until Stop is called or context is cancelled.
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})
	w.mu.Unlock()

	w.logger.Info("worker starting",
		"concurrency", w.concurrency,
		"dequeue_timeout", w.dequeueTimeout,
	)

	// Start the janitor if provided
	if w.janitor != nil {
		if err := w.janitor.Start(ctx); err != nil {
			w.logger.Error("failed to start janitor", "error", err)
		}
	}

	// Start worker goroutines
	var wg sync.WaitGroup
	for i := 0; i < w.concurrency; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			w.processLoop(ctx, workerID)
		}(i)
	}

	// Wait for all workers to finish
	go func() {
		wg.Wait()
		close(w.doneCh)
	}()

	return nil
}

// Stop gracefully stops the worker.
func (w *Worker) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	close(w.stopCh)
	w.mu.Unlock()

	// Stop the janitor
	if w.janitor != nil {
		w.janitor.Stop()
	}

	// Wait for workers to finish
	<-w.doneCh

	w.mu.Lock()
	w.running = false
	w.mu.Unlock()

	w.logger.Info("worker stopped")
}

// Wait blocks until the worker stops.
func (w *Worker) Wait() {
	<-w.doneCh
}

// processLoop is the main processing loop for a worker goroutine.
func (w *Worker) processLoop(ctx context.Context, workerID int) {
	logger := w.logger.With("worker_id", workerID)
	logger.Info("worker goroutine started")

	for {
		select {
		case <-ctx.Done():
			logger.Info("worker context cancelled")
			return
		case <-w.stopCh:
			logger.Info("worker stop signal received")
			return
		default:
		}

		// Dequeue a job with timeout
		job, err := w.jobQueue.DequeueWithTimeout(ctx, w.dequeueTimeout)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				continue
			}
			logger.Error("failed to dequeue job", "error", err)
			time.Sleep(time.Second) // Back off on error
			continue
		}

		if job == nil {
			// No job available, continue
			continue
		}

		// Process the job
		w.processJob(ctx, job, logger)
	}
}

// processJob processes a single job.
func (w *Worker) processJob(ctx context.Context, job *domain.BackgroundJob, logger *slog.Logger) {
	logger = logger.With(
		"job_id", job.ID,
		"job_type", job.Type,
		"folder_id", job.FolderID,
		"organization_id", job.OrganizationID,
	)
	logger.Info("processing job", "attempt", job.Attempts)

	startTime := time.Now()
	var err error

	switch job.Type {
	case domain.JobTypeFolderEmbedding, domain.JobTypeFolderReindex:
		err = w.handleIndexJob(ctx, job)
	default:
		err = fmt.Errorf("unknown job type: %s", job.Type)
	}

	duration := time.Since(startTime)

	if err != nil {
		// A folder deleted or disabled after the job was queued makes the
		// job obsolete, not failed.
		if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrInvalidState) {
			logger.Info("job obsolete, acknowledging",
				"reason", err,
				"duration", duration,
			)
			w.recordJob(job.Type, "skipped", duration)
			if ackErr := w.jobQueue.Ack(ctx, job.ID); ackErr != nil {
				logger.Error("failed to ack job", "ack_error", ackErr)
			}
			return
		}

		logger.Error("job failed",
			"duration", duration,
			"error", err,
		)
		w.recordJob(job.Type, "failed", duration)

		// Nack the job so it can be retried
		if nackErr := w.jobQueue.Nack(ctx, job.ID, err.Error()); nackErr != nil {
			logger.Error("failed to nack job", "nack_error", nackErr)
		}
		return
	}

	logger.Info("job completed", "duration", duration)
	w.recordJob(job.Type, "completed", duration)

	// Ack the job
	if ackErr := w.jobQueue.Ack(ctx, job.ID); ackErr != nil {
		logger.Error("failed to ack job", "ack_error", ackErr)
	}
}

// indexableStatuses lists every status an enabled folder can be in when
// its job comes up. The status guard exists to reject disabled folders,
// not to sequence enabled ones; a reindex queued behind a finished run
// still has to execute.
var indexableStatuses = []domain.IndexingStatus{
	domain.IndexingStatusPending,
	domain.IndexingStatusProcessing,
	domain.IndexingStatusCompleted,
	domain.IndexingStatusFailed,
}

// handleIndexJob runs a folder embedding or reindex job. The folder is
// flipped to processing in one transaction, indexed against the engine
// outside any transaction, and completed in a second transaction.
func (w *Worker) handleIndexJob(ctx context.Context, job *domain.BackgroundJob) error {
	if job.FolderID == "" || job.OrganizationID == "" {
		return fmt.Errorf("job %s missing folder or organization", job.ID)
	}

	var cfg domain.McpConfig
	err := w.store.WithTenant(ctx, job.OrganizationID, func(uow driven.UnitOfWork) error {
		folder, err := uow.Folders().Get(ctx, job.FolderID)
		if err != nil {
			return err
		}
		if !folder.McpEnabled {
			return domain.ErrInvalidState
		}

		c := domain.DefaultMcpConfig()
		if folder.McpConfig != nil {
			c = folder.McpConfig
		}
		cfg = *c

		return uow.Folders().SetIndexingStatus(ctx, job.FolderID, indexableStatuses, domain.IndexingStatusProcessing)
	})
	if err != nil {
		return err
	}

	result, err := w.embeddings.IndexFolder(ctx, job.OrganizationID, job.FolderID, cfg)
	if err != nil {
		w.recordIndexFailure(ctx, job, err)
		return err
	}

	return w.store.WithTenant(ctx, job.OrganizationID, func(uow driven.UnitOfWork) error {
		return uow.Folders().CompleteIndexing(ctx, job.FolderID, domain.IndexingStatusCompleted, result.EmbeddingCount, time.Now())
	})
}

// recordIndexFailure moves the folder out of processing after an engine
// failure: back to pending while the job has retries left, failed once
// it does not. Dequeue already counted this attempt, so CanRetry here
// matches what Nack will decide.
func (w *Worker) recordIndexFailure(ctx context.Context, job *domain.BackgroundJob, cause error) {
	to := domain.IndexingStatusPending
	if !job.CanRetry() {
		to = domain.IndexingStatusFailed
	}

	from := []domain.IndexingStatus{domain.IndexingStatusProcessing}
	err := w.store.WithTenant(ctx, job.OrganizationID, func(uow driven.UnitOfWork) error {
		return uow.Folders().SetIndexingStatus(ctx, job.FolderID, from, to)
	})
	if err != nil {
		w.logger.Warn("failed to reset folder indexing status",
			"folder_id", job.FolderID,
			"target_status", to,
			"index_error", cause,
			"error", err,
		)
	}
}

func (w *Worker) recordJob(jobType domain.JobType, status string, duration time.Duration) {
	if w.metrics == nil {
		return
	}
	w.metrics.RecordJob(string(jobType), status, duration)
}

// Health returns health status of the worker.
type Health struct {
	Running     bool   `json:"running"`
	QueueHealth bool   `json:"queue_health"`
	Error       string `json:"error,omitempty"`
}

// Health returns the health status of the worker.
func (w *Worker) Health(ctx context.Context) Health {
	w.mu.RLock()
	running := w.running
	w.mu.RUnlock()

	health := Health{
		Running: running,
	}

	// Check queue health
	if err := w.jobQueue.Ping(ctx); err != nil {
		health.QueueHealth = false
		health.Error = err.Error()
	} else {
		health.QueueHealth = true
	}

	return health
}
