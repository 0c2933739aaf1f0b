package domain

import "time"

// QueryRecord is the audit row persisted for every folder query.
type QueryRecord struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"organization_id"`
	FolderID       string    `json:"folder_id"`
	Question       string    `json:"question"`
	Answer         string    `json:"answer"`
	RelevanceScore float64   `json:"relevance_score"`
	ResponseTimeMs int       `json:"response_time_ms"`
	TokensUsed     int       `json:"tokens_used"`
	CostUSD        float64   `json:"cost_usd"`
	// APIKeyID is set when the query arrived through a scoped key,
	// nil for interactive users
	APIKeyID  *string   `json:"api_key_id,omitempty"`
	CreatedBy string    `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
}

// AnswerSource points at a file passage that contributed to an answer.
type AnswerSource struct {
	FileID   string  `json:"file_id"`
	FileName string  `json:"file_name"`
	Score    float64 `json:"score"`
	Excerpt  string  `json:"excerpt,omitempty"`
}

// FolderAnswer is what the retrieval engine returns for one question.
type FolderAnswer struct {
	Answer         string         `json:"answer"`
	RelevanceScore float64        `json:"relevance_score"`
	TokensUsed     int            `json:"tokens_used"`
	CostUSD        float64        `json:"cost_usd"`
	Sources        []AnswerSource `json:"sources,omitempty"`
}

// UsageStats aggregates query activity for a folder over a period.
type UsageStats struct {
	FolderID          string    `json:"folder_id"`
	TotalQueries      int       `json:"total_queries"`
	TotalTokens       int       `json:"total_tokens"`
	TotalCostUSD      float64   `json:"total_cost_usd"`
	AvgResponseTimeMs float64   `json:"avg_response_time_ms"`
	PeriodStart       time.Time `json:"period_start"`
	PeriodEnd         time.Time `json:"period_end"`
}
