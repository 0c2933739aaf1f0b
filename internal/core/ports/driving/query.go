package driving

import (
	"context"
	"time"

	"github.com/nexkb/nexkb-core/internal/core/domain"
)

// QueryFolderRequest represents a natural-language question against a folder
type QueryFolderRequest struct {
	Question string `json:"question"`
}

// QueryFolderResponse carries the answer and its supporting sources
type QueryFolderResponse struct {
	Answer         string                `json:"answer"`
	RelevanceScore float64               `json:"relevance_score"`
	TokensUsed     int                   `json:"tokens_used"`
	CostUSD        float64               `json:"cost_usd"`
	ResponseTimeMs int                   `json:"response_time_ms"`
	Sources        []domain.AnswerSource `json:"sources"`
}

// UsageStatsRequest bounds a usage report period. Zero times default to
// the last 30 days.
type UsageStatsRequest struct {
	Since time.Time `json:"since,omitempty"`
	Until time.Time `json:"until,omitempty"`
}

// QueryService answers questions against indexed folders
type QueryService interface {
	// Query answers a question using the folder's index. The apiKeyID is
	// recorded when the caller authenticated with a folder key; empty for
	// session users.
	Query(ctx context.Context, organizationID, actorID, apiKeyID, folderID string, req QueryFolderRequest) (*QueryFolderResponse, error)

	// UsageStats aggregates a folder's query activity over a period
	UsageStats(ctx context.Context, organizationID, folderID string, req UsageStatsRequest) (*domain.UsageStats, error)

	// History retrieves recent query records for a folder
	History(ctx context.Context, organizationID, folderID string, limit int) ([]*domain.QueryRecord, error)
}
