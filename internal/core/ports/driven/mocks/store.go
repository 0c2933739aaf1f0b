package mocks

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/nexkb/nexkb-core/internal/core/domain"
	"github.com/nexkb/nexkb-core/internal/core/ports/driven"
)

// Ensure MockStore implements Store
var _ driven.Store = (*MockStore)(nil)

// MockStore is an in-memory implementation of Store for testing.
// Transactions are serialized under one mutex; when the transaction
// function returns an error every change made inside it is rolled back.
// All reads and writes copy rows, matching database behavior where
// mutating a returned struct never writes through.
type MockStore struct {
	mu      sync.Mutex
	folders map[string]*domain.Folder
	files   map[string]*domain.File
	jobs    map[string]*domain.BackgroundJob
	keys    map[string]*domain.APIKey
	queries map[string]*domain.QueryRecord

	// WithTenantErr aborts WithTenant before the function runs when set
	WithTenantErr error
}

// NewMockStore creates a new MockStore
func NewMockStore() *MockStore {
	return &MockStore{
		folders: make(map[string]*domain.Folder),
		files:   make(map[string]*domain.File),
		jobs:    make(map[string]*domain.BackgroundJob),
		keys:    make(map[string]*domain.APIKey),
		queries: make(map[string]*domain.QueryRecord),
	}
}

func (m *MockStore) WithTenant(ctx context.Context, organizationID string, fn func(driven.UnitOfWork) error) error {
	if m.WithTenantErr != nil {
		return m.WithTenantErr
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	snap := m.snapshot()
	uow := &mockUnitOfWork{store: m, orgID: organizationID}
	if err := fn(uow); err != nil {
		m.restore(snap)
		return err
	}
	return nil
}

func (m *MockStore) Ping(ctx context.Context) error { return nil }

func (m *MockStore) Close() error { return nil }

type storeSnapshot struct {
	folders map[string]*domain.Folder
	files   map[string]*domain.File
	jobs    map[string]*domain.BackgroundJob
	keys    map[string]*domain.APIKey
	queries map[string]*domain.QueryRecord
}

// snapshot copies the maps. Entries themselves are never mutated in
// place (writes replace them with fresh copies), so sharing row
// pointers with the snapshot is safe.
func (m *MockStore) snapshot() storeSnapshot {
	snap := storeSnapshot{
		folders: make(map[string]*domain.Folder, len(m.folders)),
		files:   make(map[string]*domain.File, len(m.files)),
		jobs:    make(map[string]*domain.BackgroundJob, len(m.jobs)),
		keys:    make(map[string]*domain.APIKey, len(m.keys)),
		queries: make(map[string]*domain.QueryRecord, len(m.queries)),
	}
	for k, v := range m.folders {
		snap.folders[k] = v
	}
	for k, v := range m.files {
		snap.files[k] = v
	}
	for k, v := range m.jobs {
		snap.jobs[k] = v
	}
	for k, v := range m.keys {
		snap.keys[k] = v
	}
	for k, v := range m.queries {
		snap.queries[k] = v
	}
	return snap
}

func (m *MockStore) restore(snap storeSnapshot) {
	m.folders = snap.folders
	m.files = snap.files
	m.jobs = snap.jobs
	m.keys = snap.keys
	m.queries = snap.queries
}

// Helper methods for testing

// Reset clears all rows.
func (m *MockStore) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.folders = make(map[string]*domain.Folder)
	m.files = make(map[string]*domain.File)
	m.jobs = make(map[string]*domain.BackgroundJob)
	m.keys = make(map[string]*domain.APIKey)
	m.queries = make(map[string]*domain.QueryRecord)
}

// AddFolder seeds a folder without a transaction.
func (m *MockStore) AddFolder(f *domain.Folder) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.folders[f.ID] = cloneFolder(f)
}

// AddFile seeds a file without a transaction.
func (m *MockStore) AddFile(f *domain.File) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[f.ID] = cloneFile(f)
}

// AddJob seeds a job without a transaction.
func (m *MockStore) AddJob(j *domain.BackgroundJob) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs[j.ID] = cloneJob(j)
}

// AddKey seeds an API key without a transaction.
func (m *MockStore) AddKey(k *domain.APIKey) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.keys[k.ID] = cloneKey(k)
}

// AddQuery seeds a query record without a transaction.
func (m *MockStore) AddQuery(q *domain.QueryRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queries[q.ID] = cloneQuery(q)
}

// GetFolder reads a folder directly for assertions. Returns nil if absent.
func (m *MockStore) GetFolder(id string) *domain.Folder {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.folders[id]
	if !ok {
		return nil
	}
	return cloneFolder(f)
}

// GetFile reads a file directly for assertions. Returns nil if absent.
func (m *MockStore) GetFile(id string) *domain.File {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.files[id]
	if !ok {
		return nil
	}
	return cloneFile(f)
}

// GetJob reads a job directly for assertions. Returns nil if absent.
func (m *MockStore) GetJob(id string) *domain.BackgroundJob {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok {
		return nil
	}
	return cloneJob(j)
}

// GetKey reads an API key directly for assertions. Returns nil if absent.
func (m *MockStore) GetKey(id string) *domain.APIKey {
	m.mu.Lock()
	defer m.mu.Unlock()
	k, ok := m.keys[id]
	if !ok {
		return nil
	}
	return cloneKey(k)
}

// FolderCount returns the number of folder rows across all organizations.
func (m *MockStore) FolderCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.folders)
}

// JobCount returns the number of job rows across all organizations.
func (m *MockStore) JobCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.jobs)
}

// QueryCount returns the number of query records across all organizations.
func (m *MockStore) QueryCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queries)
}

// mockUnitOfWork exposes org-scoped stores over the shared maps.
// Its stores run under the mutex already held by WithTenant.
type mockUnitOfWork struct {
	store *MockStore
	orgID string
}

func (u *mockUnitOfWork) Folders() driven.FolderStore  { return &mockFolderStore{u.store, u.orgID} }
func (u *mockUnitOfWork) Files() driven.FileStore      { return &mockFileStore{u.store, u.orgID} }
func (u *mockUnitOfWork) Jobs() driven.JobStore        { return &mockJobStore{u.store, u.orgID} }
func (u *mockUnitOfWork) APIKeys() driven.APIKeyStore  { return &mockAPIKeyStore{u.store, u.orgID} }
func (u *mockUnitOfWork) Queries() driven.QueryLogStore { return &mockQueryLogStore{u.store, u.orgID} }

// clone helpers keep stored rows isolated from caller mutations

func cloneFolder(f *domain.Folder) *domain.Folder {
	c := *f
	c.ParentID = copyStringPtr(f.ParentID)
	c.LastIndexedAt = copyTimePtr(f.LastIndexedAt)
	if f.McpConfig != nil {
		cfg := *f.McpConfig
		c.McpConfig = &cfg
	}
	return &c
}

func cloneFile(f *domain.File) *domain.File {
	c := *f
	c.FolderID = copyStringPtr(f.FolderID)
	return &c
}

func cloneJob(j *domain.BackgroundJob) *domain.BackgroundJob {
	c := *j
	c.StartedAt = copyTimePtr(j.StartedAt)
	c.CompletedAt = copyTimePtr(j.CompletedAt)
	if j.Payload != nil {
		c.Payload = make(map[string]string, len(j.Payload))
		for k, v := range j.Payload {
			c.Payload[k] = v
		}
	}
	return &c
}

func cloneKey(k *domain.APIKey) *domain.APIKey {
	c := *k
	c.ExpiresAt = copyTimePtr(k.ExpiresAt)
	c.LastUsedAt = copyTimePtr(k.LastUsedAt)
	c.Permissions = append([]string(nil), k.Permissions...)
	return &c
}

func cloneQuery(q *domain.QueryRecord) *domain.QueryRecord {
	c := *q
	c.APIKeyID = copyStringPtr(q.APIKeyID)
	return &c
}

func copyStringPtr(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func copyTimePtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

// mockFolderStore implements FolderStore over the shared folder map.
type mockFolderStore struct {
	store *MockStore
	orgID string
}

func (s *mockFolderStore) Create(ctx context.Context, folder *domain.Folder) error {
	for _, f := range s.store.folders {
		if f.OrganizationID == s.orgID && f.Path == folder.Path {
			return domain.ErrConflict
		}
	}
	s.store.folders[folder.ID] = cloneFolder(folder)
	return nil
}

func (s *mockFolderStore) Get(ctx context.Context, id string) (*domain.Folder, error) {
	f, ok := s.store.folders[id]
	if !ok || f.OrganizationID != s.orgID {
		return nil, domain.ErrNotFound
	}
	return cloneFolder(f), nil
}

func (s *mockFolderStore) GetByPath(ctx context.Context, path string) (*domain.Folder, error) {
	for _, f := range s.store.folders {
		if f.OrganizationID == s.orgID && f.Path == path {
			return cloneFolder(f), nil
		}
	}
	return nil, domain.ErrNotFound
}

func (s *mockFolderStore) GetRoot(ctx context.Context) (*domain.Folder, error) {
	for _, f := range s.store.folders {
		if f.OrganizationID == s.orgID && f.IsRoot {
			return cloneFolder(f), nil
		}
	}
	return nil, domain.ErrNotFound
}

func (s *mockFolderStore) EnsureRoot(ctx context.Context) (*domain.Folder, error) {
	root, err := s.GetRoot(ctx)
	if err == nil {
		return root, nil
	}
	root = domain.NewRootFolder(s.orgID)
	s.store.folders[root.ID] = cloneFolder(root)
	return root, nil
}

func (s *mockFolderStore) ListChildren(ctx context.Context, parentID string) ([]*domain.Folder, error) {
	var result []*domain.Folder
	for _, f := range s.store.folders {
		if f.OrganizationID == s.orgID && f.ParentID != nil && *f.ParentID == parentID {
			result = append(result, cloneFolder(f))
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

func (s *mockFolderStore) CountChildren(ctx context.Context, folderIDs []string) (map[string]int, error) {
	inSet := make(map[string]bool, len(folderIDs))
	for _, id := range folderIDs {
		inSet[id] = true
	}
	counts := make(map[string]int)
	for _, f := range s.store.folders {
		if f.OrganizationID == s.orgID && f.ParentID != nil && inSet[*f.ParentID] {
			counts[*f.ParentID]++
		}
	}
	return counts, nil
}

func (s *mockFolderStore) ListAll(ctx context.Context) ([]*domain.Folder, error) {
	var result []*domain.Folder
	for _, f := range s.store.folders {
		if f.OrganizationID == s.orgID {
			result = append(result, cloneFolder(f))
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Path < result[j].Path })
	return result, nil
}

func (s *mockFolderStore) ListSubtree(ctx context.Context, folderID string) ([]*domain.Folder, error) {
	top, ok := s.store.folders[folderID]
	if !ok || top.OrganizationID != s.orgID {
		return nil, domain.ErrNotFound
	}
	var result []*domain.Folder
	for _, f := range s.store.folders {
		if f.OrganizationID != s.orgID {
			continue
		}
		if f.ID == folderID || f.IsDescendantOf(top) {
			result = append(result, cloneFolder(f))
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Path < result[j].Path })
	return result, nil
}

func (s *mockFolderStore) MaxSubtreeDepth(ctx context.Context, folderID string) (int, error) {
	subtree, err := s.ListSubtree(ctx, folderID)
	if err != nil {
		return 0, err
	}
	max := 0
	for _, f := range subtree {
		if f.Depth > max {
			max = f.Depth
		}
	}
	return max, nil
}

func (s *mockFolderStore) Update(ctx context.Context, folder *domain.Folder) error {
	existing, ok := s.store.folders[folder.ID]
	if !ok || existing.OrganizationID != s.orgID {
		return domain.ErrNotFound
	}
	for _, f := range s.store.folders {
		if f.OrganizationID == s.orgID && f.ID != folder.ID && f.Path == folder.Path {
			return domain.ErrConflict
		}
	}
	s.store.folders[folder.ID] = cloneFolder(folder)
	return nil
}

func (s *mockFolderStore) MoveSubtree(ctx context.Context, folderID, oldPath, newPath string, depthDelta int) error {
	prefix := oldPath + "/"
	for id, f := range s.store.folders {
		if f.OrganizationID != s.orgID || !strings.HasPrefix(f.Path, prefix) {
			continue
		}
		moved := cloneFolder(f)
		moved.Path = newPath + strings.TrimPrefix(f.Path, oldPath)
		moved.Depth += depthDelta
		for _, other := range s.store.folders {
			if other.OrganizationID == s.orgID && other.ID != id && other.Path == moved.Path {
				return domain.ErrConflict
			}
		}
		s.store.folders[id] = moved
	}
	return nil
}

func (s *mockFolderStore) Delete(ctx context.Context, id string) error {
	f, ok := s.store.folders[id]
	if !ok || f.OrganizationID != s.orgID {
		return domain.ErrNotFound
	}
	delete(s.store.folders, id)
	return nil
}

func (s *mockFolderStore) DeleteSubtree(ctx context.Context, folderID string) ([]string, error) {
	subtree, err := s.ListSubtree(ctx, folderID)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(subtree))
	for _, f := range subtree {
		delete(s.store.folders, f.ID)
		ids = append(ids, f.ID)
	}
	return ids, nil
}

func (s *mockFolderStore) SetMcpEnabled(ctx context.Context, folderID string, config domain.McpConfig) error {
	f, ok := s.store.folders[folderID]
	if !ok || f.OrganizationID != s.orgID {
		return domain.ErrNotFound
	}
	if f.McpEnabled {
		return domain.ErrInvalidState
	}
	updated := cloneFolder(f)
	updated.McpEnabled = true
	updated.McpConfig = &config
	updated.IndexingStatus = domain.IndexingStatusPending
	updated.UpdatedAt = time.Now()
	s.store.folders[folderID] = updated
	return nil
}

func (s *mockFolderStore) SetMcpDisabled(ctx context.Context, folderID string) error {
	f, ok := s.store.folders[folderID]
	if !ok || f.OrganizationID != s.orgID {
		return domain.ErrNotFound
	}
	if !f.McpEnabled {
		return domain.ErrInvalidState
	}
	updated := cloneFolder(f)
	updated.McpEnabled = false
	updated.McpConfig = nil
	updated.IndexingStatus = domain.IndexingStatusIdle
	updated.EmbeddingCount = 0
	updated.LastIndexedAt = nil
	updated.UpdatedAt = time.Now()
	s.store.folders[folderID] = updated
	return nil
}

func (s *mockFolderStore) SetIndexingStatus(ctx context.Context, folderID string, from []domain.IndexingStatus, to domain.IndexingStatus) error {
	f, ok := s.store.folders[folderID]
	if !ok || f.OrganizationID != s.orgID {
		return domain.ErrNotFound
	}
	if !f.McpEnabled || !statusIn(f.IndexingStatus, from) {
		return domain.ErrInvalidState
	}
	updated := cloneFolder(f)
	updated.IndexingStatus = to
	updated.UpdatedAt = time.Now()
	s.store.folders[folderID] = updated
	return nil
}

func (s *mockFolderStore) CompleteIndexing(ctx context.Context, folderID string, status domain.IndexingStatus, embeddingCount int, indexedAt time.Time) error {
	f, ok := s.store.folders[folderID]
	if !ok || f.OrganizationID != s.orgID {
		return domain.ErrNotFound
	}
	if !f.McpEnabled || f.IndexingStatus != domain.IndexingStatusProcessing {
		return domain.ErrInvalidState
	}
	updated := cloneFolder(f)
	updated.IndexingStatus = status
	updated.EmbeddingCount = embeddingCount
	if status == domain.IndexingStatusCompleted {
		at := indexedAt
		updated.LastIndexedAt = &at
	}
	updated.UpdatedAt = time.Now()
	s.store.folders[folderID] = updated
	return nil
}

func statusIn(status domain.IndexingStatus, set []domain.IndexingStatus) bool {
	for _, s := range set {
		if s == status {
			return true
		}
	}
	return false
}

// mockFileStore implements FileStore over the shared file map.
type mockFileStore struct {
	store *MockStore
	orgID string
}

func (s *mockFileStore) Create(ctx context.Context, file *domain.File) error {
	s.store.files[file.ID] = cloneFile(file)
	return nil
}

func (s *mockFileStore) Get(ctx context.Context, id string) (*domain.File, error) {
	f, ok := s.store.files[id]
	if !ok || f.OrganizationID != s.orgID {
		return nil, domain.ErrNotFound
	}
	return cloneFile(f), nil
}

func (s *mockFileStore) CountByFolder(ctx context.Context, folderID string) (int, error) {
	count := 0
	for _, f := range s.store.files {
		if f.OrganizationID == s.orgID && f.IsActive && f.FolderID != nil && *f.FolderID == folderID {
			count++
		}
	}
	return count, nil
}

func (s *mockFileStore) CountByFolders(ctx context.Context, folderIDs []string) (map[string]int, error) {
	inSet := make(map[string]bool, len(folderIDs))
	for _, id := range folderIDs {
		inSet[id] = true
	}
	counts := make(map[string]int)
	for _, f := range s.store.files {
		if f.OrganizationID == s.orgID && f.IsActive && f.FolderID != nil && inSet[*f.FolderID] {
			counts[*f.FolderID]++
		}
	}
	return counts, nil
}

func (s *mockFileStore) ListByFolder(ctx context.Context, folderID string) ([]*domain.File, error) {
	var result []*domain.File
	for _, f := range s.store.files {
		if f.OrganizationID == s.orgID && f.IsActive && f.FolderID != nil && *f.FolderID == folderID {
			result = append(result, cloneFile(f))
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

func (s *mockFileStore) ReassignByFolders(ctx context.Context, folderIDs []string, newFolderID string) (int, error) {
	inSet := make(map[string]bool, len(folderIDs))
	for _, id := range folderIDs {
		inSet[id] = true
	}
	count := 0
	for id, f := range s.store.files {
		if f.OrganizationID != s.orgID || !f.IsActive || f.FolderID == nil || !inSet[*f.FolderID] {
			continue
		}
		moved := cloneFile(f)
		target := newFolderID
		moved.FolderID = &target
		moved.UpdatedAt = time.Now()
		s.store.files[id] = moved
		count++
	}
	return count, nil
}

func (s *mockFileStore) DeactivateByFolders(ctx context.Context, folderIDs []string) (int, error) {
	inSet := make(map[string]bool, len(folderIDs))
	for _, id := range folderIDs {
		inSet[id] = true
	}
	count := 0
	for id, f := range s.store.files {
		if f.OrganizationID != s.orgID || !f.IsActive || f.FolderID == nil || !inSet[*f.FolderID] {
			continue
		}
		gone := cloneFile(f)
		gone.IsActive = false
		gone.FolderID = nil
		gone.UpdatedAt = time.Now()
		s.store.files[id] = gone
		count++
	}
	return count, nil
}

// mockJobStore implements JobStore over the shared job map.
type mockJobStore struct {
	store *MockStore
	orgID string
}

func (s *mockJobStore) Enqueue(ctx context.Context, job *domain.BackgroundJob) (*domain.BackgroundJob, error) {
	for _, j := range s.store.jobs {
		if j.OrganizationID == s.orgID && j.FolderID == job.FolderID && j.Status == domain.JobStatusPending {
			return cloneJob(j), nil
		}
	}
	s.store.jobs[job.ID] = cloneJob(job)
	return cloneJob(job), nil
}

func (s *mockJobStore) Get(ctx context.Context, id string) (*domain.BackgroundJob, error) {
	j, ok := s.store.jobs[id]
	if !ok || j.OrganizationID != s.orgID {
		return nil, domain.ErrNotFound
	}
	return cloneJob(j), nil
}

func (s *mockJobStore) ListByFolder(ctx context.Context, folderID string, limit int) ([]*domain.BackgroundJob, error) {
	var result []*domain.BackgroundJob
	for _, j := range s.store.jobs {
		if j.OrganizationID == s.orgID && j.FolderID == folderID {
			result = append(result, cloneJob(j))
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (s *mockJobStore) ListActiveByFolder(ctx context.Context, folderID string) ([]*domain.BackgroundJob, error) {
	var result []*domain.BackgroundJob
	for _, j := range s.store.jobs {
		if j.OrganizationID == s.orgID && j.FolderID == folderID && !j.IsTerminal() {
			result = append(result, cloneJob(j))
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })
	return result, nil
}

// mockAPIKeyStore implements APIKeyStore over the shared key map.
type mockAPIKeyStore struct {
	store *MockStore
	orgID string
}

func (s *mockAPIKeyStore) Create(ctx context.Context, key *domain.APIKey) error {
	s.store.keys[key.ID] = cloneKey(key)
	return nil
}

func (s *mockAPIKeyStore) Get(ctx context.Context, id string) (*domain.APIKey, error) {
	k, ok := s.store.keys[id]
	if !ok || k.OrganizationID != s.orgID {
		return nil, domain.ErrNotFound
	}
	return cloneKey(k), nil
}

func (s *mockAPIKeyStore) ListByFolder(ctx context.Context, folderID string) ([]*domain.APIKey, error) {
	var result []*domain.APIKey
	for _, k := range s.store.keys {
		if k.OrganizationID == s.orgID && k.FolderID == folderID {
			result = append(result, cloneKey(k))
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })
	return result, nil
}

func (s *mockAPIKeyStore) Revoke(ctx context.Context, id string) error {
	k, ok := s.store.keys[id]
	if !ok || k.OrganizationID != s.orgID {
		return domain.ErrNotFound
	}
	if !k.IsActive {
		return nil
	}
	revoked := cloneKey(k)
	revoked.IsActive = false
	s.store.keys[id] = revoked
	return nil
}

func (s *mockAPIKeyStore) RevokeByFolders(ctx context.Context, folderIDs []string) (int, error) {
	inSet := make(map[string]bool, len(folderIDs))
	for _, id := range folderIDs {
		inSet[id] = true
	}
	count := 0
	for id, k := range s.store.keys {
		if k.OrganizationID != s.orgID || !inSet[k.FolderID] || !k.IsActive {
			continue
		}
		revoked := cloneKey(k)
		revoked.IsActive = false
		s.store.keys[id] = revoked
		count++
	}
	return count, nil
}

// mockQueryLogStore implements QueryLogStore over the shared query map.
type mockQueryLogStore struct {
	store *MockStore
	orgID string
}

func (s *mockQueryLogStore) Save(ctx context.Context, record *domain.QueryRecord) error {
	s.store.queries[record.ID] = cloneQuery(record)
	return nil
}

func (s *mockQueryLogStore) ListByFolder(ctx context.Context, folderID string, limit int) ([]*domain.QueryRecord, error) {
	var result []*domain.QueryRecord
	for _, q := range s.store.queries {
		if q.OrganizationID == s.orgID && q.FolderID == folderID {
			result = append(result, cloneQuery(q))
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}
