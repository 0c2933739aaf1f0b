package domain

import "time"

// IndexingStatus tracks where a folder is in its indexing lifecycle
type IndexingStatus string

const (
	IndexingStatusIdle       IndexingStatus = "idle"
	IndexingStatusPending    IndexingStatus = "pending"
	IndexingStatusProcessing IndexingStatus = "processing"
	IndexingStatusCompleted  IndexingStatus = "completed"
	IndexingStatusFailed     IndexingStatus = "failed"
)

// IsTerminal reports whether the status is a finished state.
func (s IndexingStatus) IsTerminal() bool {
	return s == IndexingStatusCompleted || s == IndexingStatusFailed
}

// IsActive reports whether indexing work is queued or running.
func (s IndexingStatus) IsActive() bool {
	return s == IndexingStatusPending || s == IndexingStatusProcessing
}

// Retrieval configuration defaults, applied on enable for omitted fields.
const (
	DefaultEmbeddingModel      = "text-embedding-3-small"
	DefaultLLMModel            = "gpt-4o-mini"
	DefaultChunkSize           = 1000
	DefaultChunkOverlap        = 200
	DefaultTopK                = 5
	DefaultSimilarityThreshold = 0.7
)

// McpConfig holds the per-folder retrieval configuration.
// It exists only while the folder is enabled.
type McpConfig struct {
	// EmbeddingModel names the model used to embed folder content
	EmbeddingModel string `json:"embedding_model"`

	// LLMModel names the model used to generate answers
	LLMModel string `json:"llm_model"`

	// ChunkSize is the target chunk length in tokens
	ChunkSize int `json:"chunk_size"`

	// ChunkOverlap is the token overlap between adjacent chunks
	ChunkOverlap int `json:"chunk_overlap"`

	// TopK is the number of chunks retrieved per query
	TopK int `json:"top_k"`

	// SimilarityThreshold is the minimum relevance score for a chunk
	// to be considered, in [0, 1]
	SimilarityThreshold float64 `json:"similarity_threshold"`
}

// DefaultMcpConfig returns the configuration used when a folder is
// enabled without explicit settings.
func DefaultMcpConfig() *McpConfig {
	return &McpConfig{
		EmbeddingModel:      DefaultEmbeddingModel,
		LLMModel:            DefaultLLMModel,
		ChunkSize:           DefaultChunkSize,
		ChunkOverlap:        DefaultChunkOverlap,
		TopK:                DefaultTopK,
		SimilarityThreshold: DefaultSimilarityThreshold,
	}
}

// ApplyDefaults fills omitted fields with their defaults.
// A zero SimilarityThreshold is treated as omitted.
func (c *McpConfig) ApplyDefaults() {
	if c.EmbeddingModel == "" {
		c.EmbeddingModel = DefaultEmbeddingModel
	}
	if c.LLMModel == "" {
		c.LLMModel = DefaultLLMModel
	}
	if c.ChunkSize == 0 {
		c.ChunkSize = DefaultChunkSize
	}
	if c.ChunkOverlap == 0 {
		c.ChunkOverlap = DefaultChunkOverlap
	}
	if c.TopK == 0 {
		c.TopK = DefaultTopK
	}
	if c.SimilarityThreshold == 0 {
		c.SimilarityThreshold = DefaultSimilarityThreshold
	}
}

// Validate checks the configuration after defaults have been applied.
func (c *McpConfig) Validate() error {
	if c.ChunkSize <= 0 {
		return ErrInvalidArgument
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		return ErrInvalidArgument
	}
	if c.TopK <= 0 {
		return ErrInvalidArgument
	}
	if c.SimilarityThreshold < 0 || c.SimilarityThreshold > 1 {
		return ErrInvalidArgument
	}
	return nil
}

// McpStatus is the read-only aggregation of a folder's retrieval state,
// including any queued or running indexing jobs.
type McpStatus struct {
	FolderID       string           `json:"folder_id"`
	Enabled        bool             `json:"enabled"`
	IndexingStatus IndexingStatus   `json:"indexing_status"`
	EmbeddingCount int              `json:"embedding_count"`
	FileCount      int              `json:"file_count"`
	LastIndexedAt  *time.Time       `json:"last_indexed_at,omitempty"`
	Config         *McpConfig       `json:"config,omitempty"`
	ActiveJobs     []*BackgroundJob `json:"active_jobs"`
}

// IndexResult is what the embedding engine reports after indexing a folder.
type IndexResult struct {
	EmbeddingCount int `json:"embedding_count"`
	FilesIndexed   int `json:"files_indexed"`
}

// EmbeddingStats is the engine-side view of a folder's index.
type EmbeddingStats struct {
	EmbeddingCount int        `json:"embedding_count"`
	FileCount      int        `json:"file_count"`
	LastIndexedAt  *time.Time `json:"last_indexed_at,omitempty"`
}
