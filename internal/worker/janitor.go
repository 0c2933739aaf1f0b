package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/nexkb/nexkb-core/internal/core/ports/driven"
	"github.com/nexkb/nexkb-core/internal/metrics"
)

// janitorLockName is the distributed lock guarding maintenance passes.
const janitorLockName = "janitor"

// Janitor performs periodic queue maintenance: it returns jobs stuck in
// processing to the queue, removes terminal jobs past retention and
// refreshes queue depth gauges.
//
// For multi-instance deployments, configure a DistributedLock so only
// one instance runs maintenance at a time.
type Janitor struct {
	jobQueue driven.JobQueue
	lock     driven.DistributedLock
	metrics  *metrics.Metrics
	logger   *slog.Logger

	// Internal state
	mu      sync.RWMutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}

	interval   time.Duration
	staleAfter time.Duration
	retention  time.Duration

	// Lock configuration
	lockTTL      time.Duration
	lockRequired bool
}

// JanitorConfig holds configuration for the janitor.
type JanitorConfig struct {
	JobQueue     driven.JobQueue
	Lock         driven.DistributedLock // Optional: distributed lock for multi-instance coordination
	Metrics      *metrics.Metrics       // Optional
	Logger       *slog.Logger
	Interval     time.Duration // How often to run maintenance (default: 1m)
	StaleAfter   time.Duration // Age at which a processing job counts as abandoned (default: 10m)
	Retention    time.Duration // How long terminal jobs are kept (default: 24h)
	LockTTL      time.Duration // TTL for the distributed lock (default: 2x interval)
	LockRequired bool          // If true, skip maintenance when the lock cannot be acquired
}

// NewJanitor creates a new janitor.
func NewJanitor(cfg JanitorConfig) *Janitor {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	interval := cfg.Interval
	if interval == 0 {
		interval = time.Minute
	}

	staleAfter := cfg.StaleAfter
	if staleAfter == 0 {
		staleAfter = 10 * time.Minute
	}

	retention := cfg.Retention
	if retention == 0 {
		retention = 24 * time.Hour
	}

	lockTTL := cfg.LockTTL
	if lockTTL == 0 {
		lockTTL = 2 * interval
	}

	// Default to requiring the lock whenever one is provided
	lockRequired := cfg.LockRequired
	if cfg.Lock != nil && !cfg.LockRequired {
		lockRequired = true
	}

	return &Janitor{
		jobQueue:     cfg.JobQueue,
		lock:         cfg.Lock,
		metrics:      cfg.Metrics,
		logger:       logger,
		interval:     interval,
		staleAfter:   staleAfter,
		retention:    retention,
		lockTTL:      lockTTL,
		lockRequired: lockRequired,
	}
}

// Start begins the janitor loop.
// It runs until Stop is called or context is cancelled.
func (j *Janitor) Start(ctx context.Context) error {
	j.mu.Lock()
	if j.running {
		j.mu.Unlock()
		return nil
	}
	j.running = true
	j.stopCh = make(chan struct{})
	j.doneCh = make(chan struct{})
	j.mu.Unlock()

	j.logger.Info("janitor starting",
		"interval", j.interval,
		"stale_after", j.staleAfter,
		"retention", j.retention,
	)

	go j.run(ctx)

	return nil
}

// Stop gracefully stops the janitor.
func (j *Janitor) Stop() {
	j.mu.Lock()
	if !j.running {
		j.mu.Unlock()
		return
	}
	close(j.stopCh)
	j.mu.Unlock()

	// Wait for the janitor to finish
	<-j.doneCh

	j.mu.Lock()
	j.running = false
	j.mu.Unlock()

	j.logger.Info("janitor stopped")
}

// run is the main janitor loop.
func (j *Janitor) run(ctx context.Context) {
	defer close(j.doneCh)

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	// Run immediately on start
	j.RunOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			j.logger.Info("janitor context cancelled")
			return
		case <-j.stopCh:
			return
		case <-ticker.C:
			j.RunOnce(ctx)
		}
	}
}

// RunOnce performs a single maintenance pass. If a distributed lock is
// configured, it acquires the lock first so overlapping passes from
// other instances are skipped rather than doubled.
func (j *Janitor) RunOnce(ctx context.Context) {
	// Attempt to acquire distributed lock if configured
	if j.lock != nil {
		acquired, err := j.lock.Acquire(ctx, janitorLockName, j.lockTTL)
		if err != nil {
			j.logger.Warn("failed to acquire janitor lock", "error", err)
			if j.lockRequired {
				j.recordRun(0, 0, err)
				return // Skip this cycle
			}
			// Fall through if lock not required (single-instance mode)
		} else if !acquired {
			j.logger.Debug("janitor lock held by another instance, skipping cycle")
			return
		} else {
			// Lock acquired, release when done
			defer func() {
				if err := j.lock.Release(ctx, janitorLockName); err != nil {
					j.logger.Warn("failed to release janitor lock", "error", err)
				}
			}()
		}
	}

	requeued, requeueErr := j.jobQueue.RequeueStale(ctx, int(j.staleAfter.Seconds()))
	if requeueErr != nil {
		j.logger.Error("failed to requeue stale jobs", "error", requeueErr)
	} else if requeued > 0 {
		j.logger.Info("requeued stale jobs", "count", requeued)
	}

	purged, purgeErr := j.jobQueue.Purge(ctx, int(j.retention.Seconds()))
	if purgeErr != nil {
		j.logger.Error("failed to purge old jobs", "error", purgeErr)
	} else if purged > 0 {
		j.logger.Info("purged old jobs", "count", purged)
	}

	j.refreshQueueDepth(ctx)
	j.recordRun(requeued, purged, errors.Join(requeueErr, purgeErr))
}

// refreshQueueDepth updates the queue depth gauges from queue stats.
func (j *Janitor) refreshQueueDepth(ctx context.Context) {
	if j.metrics == nil {
		return
	}

	stats, err := j.jobQueue.Stats(ctx)
	if err != nil {
		j.logger.Warn("failed to read queue stats", "error", err)
		return
	}
	j.metrics.SetQueueDepth(stats.PendingCount, stats.ProcessingCount, stats.CompletedCount, stats.FailedCount)
}

func (j *Janitor) recordRun(requeued, purged int, err error) {
	if j.metrics == nil {
		return
	}
	j.metrics.RecordJanitorRun(requeued, purged, err)
}
