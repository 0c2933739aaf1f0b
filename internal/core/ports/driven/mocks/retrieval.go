package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/nexkb/nexkb-core/internal/core/domain"
	"github.com/nexkb/nexkb-core/internal/core/ports/driven"
)

// Ensure mocks implement their ports
var (
	_ driven.EmbeddingService   = (*MockEmbeddingService)(nil)
	_ driven.FolderQueryService = (*MockFolderQueryService)(nil)
	_ driven.APIKeyLookup       = (*MockAPIKeyLookup)(nil)
)

// MockEmbeddingService is a mock implementation of EmbeddingService for testing.
// Results and errors are configurable per call via the hook functions;
// without hooks it reports a small successful index run.
type MockEmbeddingService struct {
	mu sync.Mutex

	// Custom behavior hooks (optional)
	IndexFn  func(organizationID, folderID string, config domain.McpConfig) (*domain.IndexResult, error)
	DeleteFn func(organizationID, folderID string) (int, error)
	StatsFn  func(organizationID, folderID string) (*domain.EmbeddingStats, error)
	HealthFn func() error

	indexed []string
	deleted []string
}

// NewMockEmbeddingService creates a new MockEmbeddingService
func NewMockEmbeddingService() *MockEmbeddingService {
	return &MockEmbeddingService{}
}

func (m *MockEmbeddingService) IndexFolder(ctx context.Context, organizationID, folderID string, config domain.McpConfig) (*domain.IndexResult, error) {
	m.mu.Lock()
	m.indexed = append(m.indexed, folderID)
	m.mu.Unlock()

	if m.IndexFn != nil {
		return m.IndexFn(organizationID, folderID, config)
	}
	return &domain.IndexResult{EmbeddingCount: 42, FilesIndexed: 3}, nil
}

func (m *MockEmbeddingService) DeleteFolderEmbeddings(ctx context.Context, organizationID, folderID string) (int, error) {
	m.mu.Lock()
	m.deleted = append(m.deleted, folderID)
	m.mu.Unlock()

	if m.DeleteFn != nil {
		return m.DeleteFn(organizationID, folderID)
	}
	return 42, nil
}

func (m *MockEmbeddingService) GetFolderStats(ctx context.Context, organizationID, folderID string) (*domain.EmbeddingStats, error) {
	if m.StatsFn != nil {
		return m.StatsFn(organizationID, folderID)
	}
	return &domain.EmbeddingStats{EmbeddingCount: 42, FileCount: 3}, nil
}

func (m *MockEmbeddingService) HealthCheck(ctx context.Context) error {
	if m.HealthFn != nil {
		return m.HealthFn()
	}
	return nil
}

// Helper methods for testing

// IndexedFolders returns the folder IDs passed to IndexFolder, in order.
func (m *MockEmbeddingService) IndexedFolders() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.indexed...)
}

// DeletedFolders returns the folder IDs passed to DeleteFolderEmbeddings, in order.
func (m *MockEmbeddingService) DeletedFolders() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.deleted...)
}

// MockFolderQueryService is a mock implementation of FolderQueryService for testing
type MockFolderQueryService struct {
	mu sync.Mutex

	// QueryFn overrides the canned answer when set
	QueryFn func(organizationID, folderID, question string, config domain.McpConfig) (*domain.FolderAnswer, error)

	// UsageFn overrides the canned usage stats when set
	UsageFn func(organizationID, folderID string, since, until time.Time) (*domain.UsageStats, error)

	questions []string
}

// NewMockFolderQueryService creates a new MockFolderQueryService
func NewMockFolderQueryService() *MockFolderQueryService {
	return &MockFolderQueryService{}
}

func (m *MockFolderQueryService) QueryFolder(ctx context.Context, organizationID, folderID, question string, config domain.McpConfig) (*domain.FolderAnswer, error) {
	m.mu.Lock()
	m.questions = append(m.questions, question)
	m.mu.Unlock()

	if m.QueryFn != nil {
		return m.QueryFn(organizationID, folderID, question, config)
	}
	return &domain.FolderAnswer{
		Answer:         "mock answer",
		RelevanceScore: 0.9,
		TokensUsed:     100,
		CostUSD:        0.001,
		Sources: []domain.AnswerSource{
			{FileID: "file-1", FileName: "doc.pdf", Score: 0.9},
		},
	}, nil
}

func (m *MockFolderQueryService) GetUsageStats(ctx context.Context, organizationID, folderID string, since, until time.Time) (*domain.UsageStats, error) {
	if m.UsageFn != nil {
		return m.UsageFn(organizationID, folderID, since, until)
	}
	return &domain.UsageStats{
		FolderID:          folderID,
		TotalQueries:      12,
		TotalTokens:       3400,
		TotalCostUSD:      0.034,
		AvgResponseTimeMs: 150,
		PeriodStart:       since,
		PeriodEnd:         until,
	}, nil
}

// Questions returns every question asked, in order.
func (m *MockFolderQueryService) Questions() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.questions...)
}

// MockAPIKeyLookup resolves key prefixes against a MockStore so tests
// share seeded keys between the tenant stores and the auth path.
type MockAPIKeyLookup struct {
	store *MockStore
}

// NewMockAPIKeyLookup creates a lookup over the given store
func NewMockAPIKeyLookup(store *MockStore) *MockAPIKeyLookup {
	return &MockAPIKeyLookup{store: store}
}

func (m *MockAPIKeyLookup) FindByPrefix(ctx context.Context, keyPrefix string) ([]*domain.APIKey, error) {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()

	var result []*domain.APIKey
	for _, k := range m.store.keys {
		if !k.IsActive || k.KeyPrefix != keyPrefix {
			continue
		}
		// Keys on folders that are no longer indexing-enabled are suspended
		f, ok := m.store.folders[k.FolderID]
		if !ok || !f.McpEnabled {
			continue
		}
		result = append(result, cloneKey(k))
	}
	return result, nil
}

func (m *MockAPIKeyLookup) TouchLastUsed(ctx context.Context, keyID string, usedAt time.Time) error {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()

	k, ok := m.store.keys[keyID]
	if !ok {
		return domain.ErrNotFound
	}
	touched := cloneKey(k)
	at := usedAt
	touched.LastUsedAt = &at
	m.store.keys[keyID] = touched
	return nil
}
