// Package mcp serves one indexed folder over the Model Context Protocol.
//
// The server binds to a single folder-scoped API key at startup and
// exposes query and status tools on the stdio transport, so an MCP
// client configured with the key talks to exactly that folder.
package mcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/nexkb/nexkb-core/internal/core/domain"
	"github.com/nexkb/nexkb-core/internal/core/ports/driving"
)

// Config configures the stdio MCP server.
type Config struct {
	// Name is the implementation name advertised to clients
	Name string

	// Version is the implementation version advertised to clients
	Version string

	// APIKey is the folder-scoped secret the server runs as
	APIKey string

	// Logger for structured logging
	Logger *slog.Logger
}

// Server exposes a folder's query surface as MCP tools.
type Server struct {
	mcp          *mcp.Server
	keyService   driving.APIKeyService
	mcpService   driving.McpService
	queryService driving.QueryService
	apiKey       string
	logger       *slog.Logger

	// key is resolved from apiKey when Run starts and scopes every
	// tool call to one folder
	key *domain.APIKey
}

// NewServer creates an MCP server bound to the key in cfg. The key is
// not validated until Run.
func NewServer(cfg Config, keyService driving.APIKeyService, mcpService driving.McpService, queryService driving.QueryService) (*Server, error) {
	if keyService == nil {
		return nil, fmt.Errorf("key service is required")
	}
	if mcpService == nil {
		return nil, fmt.Errorf("mcp service is required")
	}
	if queryService == nil {
		return nil, fmt.Errorf("query service is required")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("api key is required")
	}

	name := cfg.Name
	if name == "" {
		name = "nexkb"
	}
	version := cfg.Version
	if version == "" {
		version = "dev"
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		keyService:   keyService,
		mcpService:   mcpService,
		queryService: queryService,
		apiKey:       cfg.APIKey,
		logger:       logger,
	}

	s.mcp = mcp.NewServer(
		&mcp.Implementation{
			Name:    name,
			Version: version,
		},
		nil,
	)
	s.registerTools()

	return s, nil
}

// Run authenticates the configured key and serves on the stdio
// transport until ctx is cancelled or the client disconnects.
func (s *Server) Run(ctx context.Context) error {
	key, err := s.keyService.Authenticate(ctx, s.apiKey)
	if err != nil {
		return fmt.Errorf("api key rejected: %w", err)
	}
	if !key.HasPermission(domain.PermissionFolderMcp) {
		return fmt.Errorf("api key lacks the %s permission", domain.PermissionFolderMcp)
	}
	s.key = key

	s.logger.Info("starting mcp server on stdio",
		"folder_id", key.FolderID,
		"key_id", key.ID)

	if err := s.mcp.Run(ctx, &mcp.StdioTransport{}); err != nil {
		return fmt.Errorf("mcp server failed: %w", err)
	}
	return nil
}

func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "folder_query",
		Description: "Ask a natural-language question against the folder's indexed files. Returns a generated answer with the sources it drew on.",
	}, s.handleQuery)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "folder_info",
		Description: "Report the folder's indexing state: status, embedding count, file count and the time of the last completed index.",
	}, s.handleInfo)
}

type queryInput struct {
	Question string `json:"question" jsonschema:"required,Natural-language question to answer from the folder's files"`
}

type querySource struct {
	FileID   string  `json:"file_id" jsonschema:"File the passage came from"`
	FileName string  `json:"file_name" jsonschema:"Display name of the file"`
	Score    float64 `json:"score" jsonschema:"Relevance score of the passage"`
	Excerpt  string  `json:"excerpt,omitempty" jsonschema:"Supporting passage text"`
}

type queryOutput struct {
	Answer         string        `json:"answer" jsonschema:"Generated answer"`
	RelevanceScore float64       `json:"relevance_score" jsonschema:"Overall answer relevance"`
	TokensUsed     int           `json:"tokens_used" jsonschema:"LLM tokens consumed"`
	Sources        []querySource `json:"sources" jsonschema:"Passages the answer drew on"`
}

func (s *Server) handleQuery(ctx context.Context, req *mcp.CallToolRequest, args queryInput) (*mcp.CallToolResult, queryOutput, error) {
	key := s.key
	if key == nil {
		return nil, queryOutput{}, fmt.Errorf("server is not bound to a folder")
	}
	if !key.HasPermission(domain.PermissionFolderQuery) {
		return nil, queryOutput{}, fmt.Errorf("api key lacks the %s permission", domain.PermissionFolderQuery)
	}

	resp, err := s.queryService.Query(ctx, key.OrganizationID, key.CreatedBy, key.ID, key.FolderID,
		driving.QueryFolderRequest{Question: args.Question})
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidArgument):
			return nil, queryOutput{}, fmt.Errorf("question is required")
		case errors.Is(err, domain.ErrInvalidState):
			return nil, queryOutput{}, fmt.Errorf("folder indexing is not enabled")
		case errors.Is(err, domain.ErrUnavailable):
			return nil, queryOutput{}, fmt.Errorf("retrieval engine unavailable")
		default:
			return nil, queryOutput{}, fmt.Errorf("query failed: %w", err)
		}
	}

	out := queryOutput{
		Answer:         resp.Answer,
		RelevanceScore: resp.RelevanceScore,
		TokensUsed:     resp.TokensUsed,
		Sources:        make([]querySource, 0, len(resp.Sources)),
	}
	for _, src := range resp.Sources {
		out.Sources = append(out.Sources, querySource{
			FileID:   src.FileID,
			FileName: src.FileName,
			Score:    src.Score,
			Excerpt:  src.Excerpt,
		})
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: resp.Answer},
		},
	}, out, nil
}

type infoInput struct{}

type infoOutput struct {
	FolderID       string `json:"folder_id" jsonschema:"Folder this server answers for"`
	Enabled        bool   `json:"enabled" jsonschema:"Whether indexing is enabled"`
	IndexingStatus string `json:"indexing_status" jsonschema:"Current indexing state"`
	EmbeddingCount int    `json:"embedding_count" jsonschema:"Number of stored embeddings"`
	FileCount      int    `json:"file_count" jsonschema:"Number of files in the folder"`
	LastIndexedAt  string `json:"last_indexed_at,omitempty" jsonschema:"RFC 3339 time of the last completed index"`
}

func (s *Server) handleInfo(ctx context.Context, req *mcp.CallToolRequest, args infoInput) (*mcp.CallToolResult, infoOutput, error) {
	key := s.key
	if key == nil {
		return nil, infoOutput{}, fmt.Errorf("server is not bound to a folder")
	}

	status, err := s.mcpService.Status(ctx, key.OrganizationID, key.FolderID)
	if err != nil {
		return nil, infoOutput{}, fmt.Errorf("status lookup failed: %w", err)
	}

	out := infoOutput{
		FolderID:       status.FolderID,
		Enabled:        status.Enabled,
		IndexingStatus: string(status.IndexingStatus),
		EmbeddingCount: status.EmbeddingCount,
		FileCount:      status.FileCount,
	}
	if status.LastIndexedAt != nil {
		out.LastIndexedAt = status.LastIndexedAt.Format(time.RFC3339)
	}

	text := fmt.Sprintf("Folder %s: indexing %s, %d embeddings across %d files.",
		out.FolderID, out.IndexingStatus, out.EmbeddingCount, out.FileCount)

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: text},
		},
	}, out, nil
}
