package retrieval

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/nexkb/nexkb-core/internal/core/domain"
	"github.com/nexkb/nexkb-core/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.EmbeddingService = (*Client)(nil)
var _ driven.FolderQueryService = (*Client)(nil)

// Client implements the retrieval ports against the external engine's
// REST API. The engine owns chunking, embedding storage and answer
// generation; this client only moves requests and results across.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Config holds engine connection configuration
type Config struct {
	// BaseURL is the engine endpoint (e.g., http://localhost:8091)
	BaseURL string

	// Timeout for HTTP requests. Indexing runs synchronously on the
	// engine, so this bounds a whole folder index.
	Timeout time.Duration
}

// DefaultConfig returns sensible defaults
func DefaultConfig(baseURL string) Config {
	return Config{
		BaseURL: baseURL,
		Timeout: 60 * time.Second,
	}
}

// NewClient creates a new engine client
func NewClient(cfg Config) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// indexRequest is the engine's folder index payload
type indexRequest struct {
	Config domain.McpConfig `json:"config"`
}

// IndexFolder embeds every active file in the folder, replacing any
// previous index for it
func (c *Client) IndexFolder(ctx context.Context, organizationID, folderID string, config domain.McpConfig) (*domain.IndexResult, error) {
	body, err := json.Marshal(indexRequest{Config: config})
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/v1/orgs/%s/folders/%s/index", c.baseURL, organizationID, folderID)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("engine index request: %v: %w", err, domain.ErrUnavailable)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return nil, fmt.Errorf("engine index failed: %s: %w", resp.Status, domain.ErrUnavailable)
	}
	if resp.StatusCode >= 400 {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("engine index failed: %s - %s", resp.Status, string(respBody))
	}

	var result domain.IndexResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}
	return &result, nil
}

// deleteResponse is the engine's embedding removal report
type deleteResponse struct {
	Deleted int `json:"deleted"`
}

// DeleteFolderEmbeddings removes all stored embeddings for a folder.
// Deleting an unknown folder is not an error; the engine has nothing
// to remove.
func (c *Client) DeleteFolderEmbeddings(ctx context.Context, organizationID, folderID string) (int, error) {
	url := fmt.Sprintf("%s/v1/orgs/%s/folders/%s/embeddings", c.baseURL, organizationID, folderID)

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, url, nil)
	if err != nil {
		return 0, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("engine delete request: %v: %w", err, domain.ErrUnavailable)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return 0, nil
	}
	if resp.StatusCode >= 500 {
		return 0, fmt.Errorf("engine delete failed: %s: %w", resp.Status, domain.ErrUnavailable)
	}
	if resp.StatusCode >= 400 {
		respBody, _ := io.ReadAll(resp.Body)
		return 0, fmt.Errorf("engine delete failed: %s - %s", resp.Status, string(respBody))
	}

	var result deleteResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return 0, err
	}
	return result.Deleted, nil
}

// GetFolderStats returns embedding counts for a folder's index
func (c *Client) GetFolderStats(ctx context.Context, organizationID, folderID string) (*domain.EmbeddingStats, error) {
	url := fmt.Sprintf("%s/v1/orgs/%s/folders/%s/stats", c.baseURL, organizationID, folderID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("engine stats request: %v: %w", err, domain.ErrUnavailable)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, domain.ErrNotFound
	}
	if resp.StatusCode >= 500 {
		return nil, fmt.Errorf("engine stats failed: %s: %w", resp.Status, domain.ErrUnavailable)
	}
	if resp.StatusCode >= 400 {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("engine stats failed: %s - %s", resp.Status, string(respBody))
	}

	var stats domain.EmbeddingStats
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

// GetUsageStats retrieves the engine's query accounting for a folder
// over a period. Bounds are sent as UTC RFC3339.
func (c *Client) GetUsageStats(ctx context.Context, organizationID, folderID string, since, until time.Time) (*domain.UsageStats, error) {
	url := fmt.Sprintf("%s/v1/orgs/%s/folders/%s/usage?since=%s&until=%s",
		c.baseURL, organizationID, folderID,
		since.UTC().Format(time.RFC3339), until.UTC().Format(time.RFC3339))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("engine usage request: %v: %w", err, domain.ErrUnavailable)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, domain.ErrNotFound
	}
	if resp.StatusCode >= 500 {
		return nil, fmt.Errorf("engine usage failed: %s: %w", resp.Status, domain.ErrUnavailable)
	}
	if resp.StatusCode >= 400 {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("engine usage failed: %s - %s", resp.Status, string(respBody))
	}

	var stats domain.UsageStats
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

// HealthCheck verifies the retrieval backend is reachable
func (c *Client) HealthCheck(ctx context.Context) error {
	url := fmt.Sprintf("%s/health", c.baseURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("engine health check: %v: %w", err, domain.ErrUnavailable)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("engine unhealthy: %s: %w", resp.Status, domain.ErrUnavailable)
	}
	return nil
}

// queryRequest is the engine's folder query payload
type queryRequest struct {
	Question string           `json:"question"`
	Config   domain.McpConfig `json:"config"`
}

// QueryFolder runs retrieval-augmented answering over the folder index.
// The engine rejects folders it has no index for; that surfaces as
// domain.ErrInvalidState.
func (c *Client) QueryFolder(ctx context.Context, organizationID, folderID, question string, config domain.McpConfig) (*domain.FolderAnswer, error) {
	body, err := json.Marshal(queryRequest{Question: question, Config: config})
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/v1/orgs/%s/folders/%s/query", c.baseURL, organizationID, folderID)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("engine query request: %v: %w", err, domain.ErrUnavailable)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, domain.ErrNotFound
	case resp.StatusCode == http.StatusConflict:
		return nil, domain.ErrInvalidState
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("engine query failed: %s: %w", resp.Status, domain.ErrUnavailable)
	case resp.StatusCode >= 400:
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("engine query failed: %s - %s", resp.Status, string(respBody))
	}

	var answer domain.FolderAnswer
	if err := json.NewDecoder(resp.Body).Decode(&answer); err != nil {
		return nil, err
	}
	return &answer, nil
}
