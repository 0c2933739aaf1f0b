package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/nexkb/nexkb-core/internal/core/domain"
	"github.com/nexkb/nexkb-core/internal/core/ports/driven"
	"github.com/nexkb/nexkb-core/internal/core/ports/driving"
)

// Ensure mcpService implements McpService
var _ driving.McpService = (*mcpService)(nil)

// mcpService drives a folder's indexing lifecycle. It flips enablement
// state, hands indexing work to the job queue and talks to the external
// embedding engine on disable. Jobs are only ever created here; the
// worker owns every transition past pending.
type mcpService struct {
	store      driven.Store
	embeddings driven.EmbeddingService
	logger     *slog.Logger
}

// McpServiceConfig holds dependencies for McpService.
type McpServiceConfig struct {
	Store      driven.Store
	Embeddings driven.EmbeddingService
	Logger     *slog.Logger
}

// NewMcpService creates a new McpService
func NewMcpService(cfg McpServiceConfig) driving.McpService {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &mcpService{
		store:      cfg.Store,
		embeddings: cfg.Embeddings,
		logger:     logger,
	}
}

// Enable turns on indexing for a folder and queues the initial embedding
// job. The folder update and job insert commit together; omitted config
// fields get defaults.
func (s *mcpService) Enable(ctx context.Context, organizationID, actorID, folderID string, req driving.EnableMcpRequest) (*driving.EnableMcpResult, error) {
	cfg := domain.DefaultMcpConfig()
	if req.Config != nil {
		cfg = req.Config
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var result *driving.EnableMcpResult
	err := s.store.WithTenant(ctx, organizationID, func(uow driven.UnitOfWork) error {
		folder, err := uow.Folders().Get(ctx, folderID)
		if err != nil {
			return err
		}

		if err := uow.Folders().SetMcpEnabled(ctx, folder.ID, *cfg); err != nil {
			return err
		}

		job, err := uow.Jobs().Enqueue(ctx, domain.NewFolderEmbeddingJob(organizationID, folder.ID, actorID))
		if err != nil {
			return err
		}

		updated, err := uow.Folders().Get(ctx, folder.ID)
		if err != nil {
			return err
		}

		result = &driving.EnableMcpResult{Folder: updated, Job: job}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("folder indexing enabled",
		"organization_id", organizationID,
		"folder_id", folderID,
		"job_id", result.Job.ID,
	)
	return result, nil
}

// Disable turns off indexing and removes the folder's embeddings.
// Embedding deletion runs before the folder row is reset; if the engine
// is unreachable the folder stays enabled rather than leaving orphaned
// vectors behind a clean-looking folder.
func (s *mcpService) Disable(ctx context.Context, organizationID, actorID, folderID string) (int, error) {
	err := s.store.WithTenant(ctx, organizationID, func(uow driven.UnitOfWork) error {
		folder, err := uow.Folders().Get(ctx, folderID)
		if err != nil {
			return err
		}
		if !folder.McpEnabled {
			return domain.ErrInvalidState
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	count, err := s.embeddings.DeleteFolderEmbeddings(ctx, organizationID, folderID)
	if err != nil {
		return 0, err
	}

	err = s.store.WithTenant(ctx, organizationID, func(uow driven.UnitOfWork) error {
		return uow.Folders().SetMcpDisabled(ctx, folderID)
	})
	if err != nil {
		return 0, err
	}

	s.logger.Info("folder indexing disabled",
		"organization_id", organizationID,
		"folder_id", folderID,
		"embeddings_deleted", count,
	)
	return count, nil
}

// Reindex queues a rebuild of an enabled folder's index. The stale
// embedding count stays visible until the worker reports completion. A
// folder with a job already queued gets that job back instead of a
// duplicate.
func (s *mcpService) Reindex(ctx context.Context, organizationID, actorID, folderID string) (*domain.BackgroundJob, error) {
	var job *domain.BackgroundJob

	err := s.store.WithTenant(ctx, organizationID, func(uow driven.UnitOfWork) error {
		folder, err := uow.Folders().Get(ctx, folderID)
		if err != nil {
			return err
		}
		if !folder.McpEnabled {
			return domain.ErrInvalidState
		}

		from := []domain.IndexingStatus{
			domain.IndexingStatusPending,
			domain.IndexingStatusProcessing,
			domain.IndexingStatusCompleted,
			domain.IndexingStatusFailed,
		}
		if err := uow.Folders().SetIndexingStatus(ctx, folder.ID, from, domain.IndexingStatusPending); err != nil {
			return err
		}

		job, err = uow.Jobs().Enqueue(ctx, domain.NewFolderReindexJob(organizationID, folder.ID, actorID))
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("folder reindex queued",
		"organization_id", organizationID,
		"folder_id", folderID,
		"job_id", job.ID,
	)
	return job, nil
}

// Status reports a folder's indexing state and active jobs
func (s *mcpService) Status(ctx context.Context, organizationID, folderID string) (*domain.McpStatus, error) {
	var status *domain.McpStatus

	err := s.store.WithTenant(ctx, organizationID, func(uow driven.UnitOfWork) error {
		folder, err := uow.Folders().Get(ctx, folderID)
		if err != nil {
			return err
		}

		fileCount, err := uow.Files().CountByFolder(ctx, folder.ID)
		if err != nil {
			return err
		}

		active, err := uow.Jobs().ListActiveByFolder(ctx, folder.ID)
		if err != nil {
			return err
		}

		status = &domain.McpStatus{
			FolderID:       folder.ID,
			Enabled:        folder.McpEnabled,
			IndexingStatus: folder.IndexingStatus,
			EmbeddingCount: folder.EmbeddingCount,
			FileCount:      fileCount,
			LastIndexedAt:  folder.LastIndexedAt,
			Config:         folder.McpConfig,
			ActiveJobs:     active,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return status, nil
}

// UpdateConfig replaces an enabled folder's indexing config. The new
// settings take effect on the next index run.
func (s *mcpService) UpdateConfig(ctx context.Context, organizationID, actorID, folderID string, config domain.McpConfig) (*domain.Folder, error) {
	config.ApplyDefaults()
	if err := config.Validate(); err != nil {
		return nil, err
	}

	var updated *domain.Folder
	err := s.store.WithTenant(ctx, organizationID, func(uow driven.UnitOfWork) error {
		folder, err := uow.Folders().Get(ctx, folderID)
		if err != nil {
			return err
		}
		if !folder.McpEnabled {
			return domain.ErrInvalidState
		}

		folder.McpConfig = &config
		folder.UpdatedAt = time.Now()
		if err := uow.Folders().Update(ctx, folder); err != nil {
			return err
		}

		updated = folder
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}
