package services

import (
	"context"
	"strings"
	"time"

	"github.com/nexkb/nexkb-core/internal/core/domain"
	"github.com/nexkb/nexkb-core/internal/core/ports/driven"
	"github.com/nexkb/nexkb-core/internal/core/ports/driving"
)

// Ensure queryService implements QueryService
var _ driving.QueryService = (*queryService)(nil)

const defaultHistoryLimit = 50

// queryService forwards questions to the external retrieval engine and
// records the exchange. Enablement is enforced by the engine itself,
// which rejects folders that are not indexed.
type queryService struct {
	store     driven.Store
	retrieval driven.FolderQueryService
}

// NewQueryService creates a new QueryService
func NewQueryService(store driven.Store, retrieval driven.FolderQueryService) driving.QueryService {
	return &queryService{
		store:     store,
		retrieval: retrieval,
	}
}

// Query answers a question using the folder's index
func (s *queryService) Query(ctx context.Context, organizationID, actorID, apiKeyID, folderID string, req driving.QueryFolderRequest) (*driving.QueryFolderResponse, error) {
	question := strings.TrimSpace(req.Question)
	if question == "" {
		return nil, domain.ErrInvalidArgument
	}

	var folder *domain.Folder
	err := s.store.WithTenant(ctx, organizationID, func(uow driven.UnitOfWork) error {
		var err error
		folder, err = uow.Folders().Get(ctx, folderID)
		return err
	})
	if err != nil {
		return nil, err
	}

	config := domain.DefaultMcpConfig()
	if folder.McpConfig != nil {
		config = folder.McpConfig
	}

	start := time.Now()
	answer, err := s.retrieval.QueryFolder(ctx, organizationID, folderID, question, *config)
	if err != nil {
		return nil, err
	}
	elapsed := int(time.Since(start).Milliseconds())

	record := &domain.QueryRecord{
		ID:             domain.GenerateID(),
		OrganizationID: organizationID,
		FolderID:       folderID,
		Question:       question,
		Answer:         answer.Answer,
		RelevanceScore: answer.RelevanceScore,
		ResponseTimeMs: elapsed,
		TokensUsed:     answer.TokensUsed,
		CostUSD:        answer.CostUSD,
		CreatedBy:      actorID,
		CreatedAt:      time.Now(),
	}
	if apiKeyID != "" {
		record.APIKeyID = &apiKeyID
	}

	err = s.store.WithTenant(ctx, organizationID, func(uow driven.UnitOfWork) error {
		return uow.Queries().Save(ctx, record)
	})
	if err != nil {
		return nil, err
	}

	return &driving.QueryFolderResponse{
		Answer:         answer.Answer,
		RelevanceScore: answer.RelevanceScore,
		TokensUsed:     answer.TokensUsed,
		CostUSD:        answer.CostUSD,
		ResponseTimeMs: elapsed,
		Sources:        answer.Sources,
	}, nil
}

// UsageStats reports a folder's query volume, token usage and cost over
// a period. The engine owns query accounting, so after verifying the
// folder exists the bounds are forwarded there. Zero bounds default to
// the last 30 days.
func (s *queryService) UsageStats(ctx context.Context, organizationID, folderID string, req driving.UsageStatsRequest) (*domain.UsageStats, error) {
	until := req.Until
	if until.IsZero() {
		until = time.Now()
	}
	since := req.Since
	if since.IsZero() {
		since = until.AddDate(0, 0, -30)
	}
	if since.After(until) {
		return nil, domain.ErrInvalidArgument
	}

	err := s.store.WithTenant(ctx, organizationID, func(uow driven.UnitOfWork) error {
		_, err := uow.Folders().Get(ctx, folderID)
		return err
	})
	if err != nil {
		return nil, err
	}

	stats, err := s.retrieval.GetUsageStats(ctx, organizationID, folderID, since, until)
	if err != nil {
		return nil, err
	}
	stats.FolderID = folderID
	stats.PeriodStart = since
	stats.PeriodEnd = until
	return stats, nil
}

// History retrieves recent query records for a folder
func (s *queryService) History(ctx context.Context, organizationID, folderID string, limit int) ([]*domain.QueryRecord, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}

	var records []*domain.QueryRecord
	err := s.store.WithTenant(ctx, organizationID, func(uow driven.UnitOfWork) error {
		if _, err := uow.Folders().Get(ctx, folderID); err != nil {
			return err
		}
		var err error
		records, err = uow.Queries().ListByFolder(ctx, folderID, limit)
		return err
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}
