package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/nexkb/nexkb-core/internal/core/domain"
	"github.com/nexkb/nexkb-core/internal/core/ports/driving"
)

// Mock services for testing

type mockAuthService struct {
	validateTokenFn func(ctx context.Context, token string) (*domain.AuthContext, error)
}

func (m *mockAuthService) ValidateToken(ctx context.Context, token string) (*domain.AuthContext, error) {
	if m.validateTokenFn != nil {
		return m.validateTokenFn(ctx, token)
	}
	return nil, errors.New("not implemented")
}

type mockFolderService struct {
	createFn       func(ctx context.Context, organizationID, actorID string, req driving.CreateFolderRequest) (*domain.Folder, error)
	getFn          func(ctx context.Context, organizationID, id string) (*domain.Folder, error)
	getByPathFn    func(ctx context.Context, organizationID, path string) (*domain.Folder, error)
	listChildrenFn func(ctx context.Context, organizationID string, req driving.ListChildrenRequest) (*driving.FolderListing, error)
	treeFn         func(ctx context.Context, organizationID string, maxDepth int) ([]*domain.FolderTreeNode, error)
	renameFn       func(ctx context.Context, organizationID, actorID, id string, req driving.RenameFolderRequest) (*domain.Folder, error)
	moveFn         func(ctx context.Context, organizationID, actorID, id string, req driving.MoveFolderRequest) (*domain.Folder, error)
	deleteFn       func(ctx context.Context, organizationID, actorID, id string, req driving.DeleteFolderRequest) (*driving.DeleteFolderResult, error)
}

func (m *mockFolderService) Create(ctx context.Context, organizationID, actorID string, req driving.CreateFolderRequest) (*domain.Folder, error) {
	if m.createFn != nil {
		return m.createFn(ctx, organizationID, actorID, req)
	}
	return nil, errors.New("not implemented")
}

func (m *mockFolderService) Get(ctx context.Context, organizationID, id string) (*domain.Folder, error) {
	if m.getFn != nil {
		return m.getFn(ctx, organizationID, id)
	}
	return nil, errors.New("not implemented")
}

func (m *mockFolderService) GetByPath(ctx context.Context, organizationID, path string) (*domain.Folder, error) {
	if m.getByPathFn != nil {
		return m.getByPathFn(ctx, organizationID, path)
	}
	return nil, errors.New("not implemented")
}

func (m *mockFolderService) ListChildren(ctx context.Context, organizationID string, req driving.ListChildrenRequest) (*driving.FolderListing, error) {
	if m.listChildrenFn != nil {
		return m.listChildrenFn(ctx, organizationID, req)
	}
	return nil, errors.New("not implemented")
}

func (m *mockFolderService) Tree(ctx context.Context, organizationID string, maxDepth int) ([]*domain.FolderTreeNode, error) {
	if m.treeFn != nil {
		return m.treeFn(ctx, organizationID, maxDepth)
	}
	return nil, errors.New("not implemented")
}

func (m *mockFolderService) Rename(ctx context.Context, organizationID, actorID, id string, req driving.RenameFolderRequest) (*domain.Folder, error) {
	if m.renameFn != nil {
		return m.renameFn(ctx, organizationID, actorID, id, req)
	}
	return nil, errors.New("not implemented")
}

func (m *mockFolderService) Move(ctx context.Context, organizationID, actorID, id string, req driving.MoveFolderRequest) (*domain.Folder, error) {
	if m.moveFn != nil {
		return m.moveFn(ctx, organizationID, actorID, id, req)
	}
	return nil, errors.New("not implemented")
}

func (m *mockFolderService) Delete(ctx context.Context, organizationID, actorID, id string, req driving.DeleteFolderRequest) (*driving.DeleteFolderResult, error) {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, organizationID, actorID, id, req)
	}
	return nil, errors.New("not implemented")
}

type mockMcpService struct {
	enableFn       func(ctx context.Context, organizationID, actorID, folderID string, req driving.EnableMcpRequest) (*driving.EnableMcpResult, error)
	disableFn      func(ctx context.Context, organizationID, actorID, folderID string) (int, error)
	reindexFn      func(ctx context.Context, organizationID, actorID, folderID string) (*domain.BackgroundJob, error)
	statusFn       func(ctx context.Context, organizationID, folderID string) (*domain.McpStatus, error)
	updateConfigFn func(ctx context.Context, organizationID, actorID, folderID string, config domain.McpConfig) (*domain.Folder, error)
}

func (m *mockMcpService) Enable(ctx context.Context, organizationID, actorID, folderID string, req driving.EnableMcpRequest) (*driving.EnableMcpResult, error) {
	if m.enableFn != nil {
		return m.enableFn(ctx, organizationID, actorID, folderID, req)
	}
	return nil, errors.New("not implemented")
}

func (m *mockMcpService) Disable(ctx context.Context, organizationID, actorID, folderID string) (int, error) {
	if m.disableFn != nil {
		return m.disableFn(ctx, organizationID, actorID, folderID)
	}
	return 0, errors.New("not implemented")
}

func (m *mockMcpService) Reindex(ctx context.Context, organizationID, actorID, folderID string) (*domain.BackgroundJob, error) {
	if m.reindexFn != nil {
		return m.reindexFn(ctx, organizationID, actorID, folderID)
	}
	return nil, errors.New("not implemented")
}

func (m *mockMcpService) Status(ctx context.Context, organizationID, folderID string) (*domain.McpStatus, error) {
	if m.statusFn != nil {
		return m.statusFn(ctx, organizationID, folderID)
	}
	return nil, errors.New("not implemented")
}

func (m *mockMcpService) UpdateConfig(ctx context.Context, organizationID, actorID, folderID string, config domain.McpConfig) (*domain.Folder, error) {
	if m.updateConfigFn != nil {
		return m.updateConfigFn(ctx, organizationID, actorID, folderID, config)
	}
	return nil, errors.New("not implemented")
}

type mockKeyService struct {
	issueFn        func(ctx context.Context, organizationID, actorID, folderID string, req driving.IssueKeyRequest) (*domain.IssuedAPIKey, error)
	listFn         func(ctx context.Context, organizationID, folderID string) ([]*domain.APIKey, error)
	revokeFn       func(ctx context.Context, organizationID, actorID, folderID, keyID string) error
	authenticateFn func(ctx context.Context, secret string) (*domain.APIKey, error)
}

func (m *mockKeyService) Issue(ctx context.Context, organizationID, actorID, folderID string, req driving.IssueKeyRequest) (*domain.IssuedAPIKey, error) {
	if m.issueFn != nil {
		return m.issueFn(ctx, organizationID, actorID, folderID, req)
	}
	return nil, errors.New("not implemented")
}

func (m *mockKeyService) List(ctx context.Context, organizationID, folderID string) ([]*domain.APIKey, error) {
	if m.listFn != nil {
		return m.listFn(ctx, organizationID, folderID)
	}
	return nil, errors.New("not implemented")
}

func (m *mockKeyService) Revoke(ctx context.Context, organizationID, actorID, folderID, keyID string) error {
	if m.revokeFn != nil {
		return m.revokeFn(ctx, organizationID, actorID, folderID, keyID)
	}
	return errors.New("not implemented")
}

func (m *mockKeyService) Authenticate(ctx context.Context, secret string) (*domain.APIKey, error) {
	if m.authenticateFn != nil {
		return m.authenticateFn(ctx, secret)
	}
	return nil, errors.New("not implemented")
}

type mockQueryService struct {
	queryFn      func(ctx context.Context, organizationID, actorID, apiKeyID, folderID string, req driving.QueryFolderRequest) (*driving.QueryFolderResponse, error)
	usageStatsFn func(ctx context.Context, organizationID, folderID string, req driving.UsageStatsRequest) (*domain.UsageStats, error)
	historyFn    func(ctx context.Context, organizationID, folderID string, limit int) ([]*domain.QueryRecord, error)
}

func (m *mockQueryService) Query(ctx context.Context, organizationID, actorID, apiKeyID, folderID string, req driving.QueryFolderRequest) (*driving.QueryFolderResponse, error) {
	if m.queryFn != nil {
		return m.queryFn(ctx, organizationID, actorID, apiKeyID, folderID, req)
	}
	return nil, errors.New("not implemented")
}

func (m *mockQueryService) UsageStats(ctx context.Context, organizationID, folderID string, req driving.UsageStatsRequest) (*domain.UsageStats, error) {
	if m.usageStatsFn != nil {
		return m.usageStatsFn(ctx, organizationID, folderID, req)
	}
	return nil, errors.New("not implemented")
}

func (m *mockQueryService) History(ctx context.Context, organizationID, folderID string, limit int) ([]*domain.QueryRecord, error) {
	if m.historyFn != nil {
		return m.historyFn(ctx, organizationID, folderID, limit)
	}
	return nil, errors.New("not implemented")
}

type mockPinger struct {
	pingFn func(ctx context.Context) error
}

func (m *mockPinger) Ping(ctx context.Context) error {
	if m.pingFn != nil {
		return m.pingFn(ctx)
	}
	return nil
}

func adminContext() *domain.AuthContext {
	return &domain.AuthContext{
		UserID:         "user-1",
		Email:          "admin@example.com",
		Role:           domain.RoleAdmin,
		OrganizationID: "org-1",
	}
}

func authenticatedRequest(req *http.Request, authCtx *domain.AuthContext) *http.Request {
	ctx := context.WithValue(req.Context(), authContextKey, authCtx)
	return req.WithContext(ctx)
}

// Health endpoint tests

func TestHealthHandler(t *testing.T) {
	server := &Server{version: "test"}

	req := httptest.NewRequest("GET", "/health", nil)
	rr := httptest.NewRecorder()

	server.handleHealth(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rr.Code)
	}

	var response map[string]string
	if err := json.NewDecoder(rr.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if response["status"] != "ok" {
		t.Errorf("expected status 'ok', got %s", response["status"])
	}
}

func TestReadyHandler_NoBackends(t *testing.T) {
	server := &Server{version: "test"}

	req := httptest.NewRequest("GET", "/ready", nil)
	rr := httptest.NewRecorder()

	server.handleReady(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rr.Code)
	}

	var response ReadyResponse
	if err := json.NewDecoder(rr.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if response.Status != "ready" {
		t.Errorf("expected status 'ready', got %s", response.Status)
	}
}

func TestReadyHandler_AllHealthy(t *testing.T) {
	server := &Server{
		db:          &mockPinger{},
		redisClient: &mockPinger{},
	}

	req := httptest.NewRequest("GET", "/ready", nil)
	rr := httptest.NewRecorder()

	server.handleReady(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rr.Code)
	}

	var response ReadyResponse
	if err := json.NewDecoder(rr.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if response.Components["database"] != "ok" {
		t.Errorf("expected database component ok, got %s", response.Components["database"])
	}
	if response.Components["redis"] != "ok" {
		t.Errorf("expected redis component ok, got %s", response.Components["redis"])
	}
}

func TestReadyHandler_DatabaseDown(t *testing.T) {
	server := &Server{
		db: &mockPinger{pingFn: func(ctx context.Context) error {
			return errors.New("connection refused")
		}},
		redisClient: &mockPinger{},
	}

	req := httptest.NewRequest("GET", "/ready", nil)
	rr := httptest.NewRecorder()

	server.handleReady(rr, req)

	if rr.Code != http.StatusServiceUnavailable {
		t.Errorf("expected status 503, got %d", rr.Code)
	}

	var response ReadyResponse
	if err := json.NewDecoder(rr.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if response.Status != "not ready" {
		t.Errorf("expected status 'not ready', got %s", response.Status)
	}
	if response.Components["database"] != "unavailable" {
		t.Errorf("expected database component unavailable, got %s", response.Components["database"])
	}
	if response.Components["redis"] != "ok" {
		t.Errorf("expected redis component ok, got %s", response.Components["redis"])
	}
}

func TestVersionHandler(t *testing.T) {
	server := &Server{version: "1.2.3"}

	req := httptest.NewRequest("GET", "/version", nil)
	rr := httptest.NewRecorder()

	server.handleVersion(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rr.Code)
	}

	var response map[string]string
	if err := json.NewDecoder(rr.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if response["version"] != "1.2.3" {
		t.Errorf("expected version '1.2.3', got %s", response["version"])
	}
}

func TestWriteJSON(t *testing.T) {
	rr := httptest.NewRecorder()

	data := map[string]string{"foo": "bar"}
	writeJSON(rr, http.StatusCreated, data)

	if rr.Code != http.StatusCreated {
		t.Errorf("expected status 201, got %d", rr.Code)
	}
	if rr.Header().Get("Content-Type") != "application/json" {
		t.Errorf("expected Content-Type application/json, got %s", rr.Header().Get("Content-Type"))
	}

	var response map[string]string
	if err := json.NewDecoder(rr.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if response["foo"] != "bar" {
		t.Errorf("expected foo 'bar', got %s", response["foo"])
	}
}

func TestWriteError(t *testing.T) {
	rr := httptest.NewRecorder()

	writeError(rr, http.StatusBadRequest, "invalid input")

	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", rr.Code)
	}

	var response map[string]string
	if err := json.NewDecoder(rr.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if response["error"] != "invalid input" {
		t.Errorf("expected error 'invalid input', got %s", response["error"])
	}
}

// Folder handler tests

func TestHandleCreateFolder_Success(t *testing.T) {
	mockFolders := &mockFolderService{
		createFn: func(ctx context.Context, organizationID, actorID string, req driving.CreateFolderRequest) (*domain.Folder, error) {
			if organizationID != "org-1" {
				t.Errorf("expected organization org-1, got %s", organizationID)
			}
			if actorID != "user-1" {
				t.Errorf("expected actor user-1, got %s", actorID)
			}
			return &domain.Folder{
				ID:             "folder-1",
				OrganizationID: organizationID,
				Name:           req.Name,
				Path:           "/Reports",
				Depth:          1,
			}, nil
		},
	}

	server := &Server{folderService: mockFolders}

	body, _ := json.Marshal(driving.CreateFolderRequest{Name: "Reports"})
	req := httptest.NewRequest("POST", "/api/v1/folders", bytes.NewBuffer(body))
	req = authenticatedRequest(req, adminContext())
	rr := httptest.NewRecorder()

	server.handleCreateFolder(rr, req)

	if rr.Code != http.StatusCreated {
		t.Errorf("expected status 201, got %d", rr.Code)
	}

	var response domain.Folder
	if err := json.NewDecoder(rr.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if response.Path != "/Reports" {
		t.Errorf("expected path '/Reports', got %s", response.Path)
	}
}

func TestHandleCreateFolder_Unauthenticated(t *testing.T) {
	server := &Server{}

	body, _ := json.Marshal(driving.CreateFolderRequest{Name: "Reports"})
	req := httptest.NewRequest("POST", "/api/v1/folders", bytes.NewBuffer(body))
	rr := httptest.NewRecorder()

	server.handleCreateFolder(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Errorf("expected status 401, got %d", rr.Code)
	}
}

func TestHandleCreateFolder_InvalidJSON(t *testing.T) {
	server := &Server{}

	req := httptest.NewRequest("POST", "/api/v1/folders", bytes.NewBufferString("invalid json"))
	req = authenticatedRequest(req, adminContext())
	rr := httptest.NewRecorder()

	server.handleCreateFolder(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", rr.Code)
	}
}

func TestHandleCreateFolder_ParentNotFound(t *testing.T) {
	mockFolders := &mockFolderService{
		createFn: func(ctx context.Context, organizationID, actorID string, req driving.CreateFolderRequest) (*domain.Folder, error) {
			return nil, domain.ErrNotFound
		},
	}

	server := &Server{folderService: mockFolders}

	body, _ := json.Marshal(driving.CreateFolderRequest{Name: "Q3", ParentPath: "/missing"})
	req := httptest.NewRequest("POST", "/api/v1/folders", bytes.NewBuffer(body))
	req = authenticatedRequest(req, adminContext())
	rr := httptest.NewRecorder()

	server.handleCreateFolder(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", rr.Code)
	}

	var response map[string]string
	if err := json.NewDecoder(rr.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if response["error"] != "parent folder not found" {
		t.Errorf("expected error 'parent folder not found', got %s", response["error"])
	}
}

func TestHandleCreateFolder_Duplicate(t *testing.T) {
	mockFolders := &mockFolderService{
		createFn: func(ctx context.Context, organizationID, actorID string, req driving.CreateFolderRequest) (*domain.Folder, error) {
			return nil, domain.ErrConflict
		},
	}

	server := &Server{folderService: mockFolders}

	body, _ := json.Marshal(driving.CreateFolderRequest{Name: "Reports"})
	req := httptest.NewRequest("POST", "/api/v1/folders", bytes.NewBuffer(body))
	req = authenticatedRequest(req, adminContext())
	rr := httptest.NewRecorder()

	server.handleCreateFolder(rr, req)

	if rr.Code != http.StatusConflict {
		t.Errorf("expected status 409, got %d", rr.Code)
	}
}

func TestHandleCreateFolder_TooDeep(t *testing.T) {
	mockFolders := &mockFolderService{
		createFn: func(ctx context.Context, organizationID, actorID string, req driving.CreateFolderRequest) (*domain.Folder, error) {
			return nil, domain.ErrInvalidOperation
		},
	}

	server := &Server{folderService: mockFolders}

	body, _ := json.Marshal(driving.CreateFolderRequest{Name: "deep"})
	req := httptest.NewRequest("POST", "/api/v1/folders", bytes.NewBuffer(body))
	req = authenticatedRequest(req, adminContext())
	rr := httptest.NewRecorder()

	server.handleCreateFolder(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", rr.Code)
	}

	var response map[string]string
	if err := json.NewDecoder(rr.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if response["error"] != "folder nesting too deep" {
		t.Errorf("expected error 'folder nesting too deep', got %s", response["error"])
	}
}

func TestHandleGetFolder_Success(t *testing.T) {
	mockFolders := &mockFolderService{
		getFn: func(ctx context.Context, organizationID, id string) (*domain.Folder, error) {
			return &domain.Folder{ID: id, Name: "Reports", Path: "/Reports"}, nil
		},
	}

	server := &Server{folderService: mockFolders}

	req := httptest.NewRequest("GET", "/api/v1/folders/folder-1", nil)
	req.SetPathValue("id", "folder-1")
	req = authenticatedRequest(req, adminContext())
	rr := httptest.NewRecorder()

	server.handleGetFolder(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rr.Code)
	}

	var response domain.Folder
	if err := json.NewDecoder(rr.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if response.ID != "folder-1" {
		t.Errorf("expected id 'folder-1', got %s", response.ID)
	}
}

func TestHandleGetFolder_NotFound(t *testing.T) {
	mockFolders := &mockFolderService{
		getFn: func(ctx context.Context, organizationID, id string) (*domain.Folder, error) {
			return nil, domain.ErrNotFound
		},
	}

	server := &Server{folderService: mockFolders}

	req := httptest.NewRequest("GET", "/api/v1/folders/missing", nil)
	req.SetPathValue("id", "missing")
	req = authenticatedRequest(req, adminContext())
	rr := httptest.NewRecorder()

	server.handleGetFolder(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", rr.Code)
	}
}

func TestHandleGetFolderByPath(t *testing.T) {
	mockFolders := &mockFolderService{
		getByPathFn: func(ctx context.Context, organizationID, path string) (*domain.Folder, error) {
			if path != "/Reports/2024" {
				t.Errorf("expected path '/Reports/2024', got %s", path)
			}
			return &domain.Folder{ID: "folder-2", Path: path}, nil
		},
	}

	server := &Server{folderService: mockFolders}

	req := httptest.NewRequest("GET", "/api/v1/folders/by-path?path=/Reports/2024", nil)
	req = authenticatedRequest(req, adminContext())
	rr := httptest.NewRecorder()

	server.handleGetFolderByPath(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rr.Code)
	}
}

func TestHandleListChildren(t *testing.T) {
	mockFolders := &mockFolderService{
		listChildrenFn: func(ctx context.Context, organizationID string, req driving.ListChildrenRequest) (*driving.FolderListing, error) {
			if req.Path != "/Reports" {
				t.Errorf("expected path '/Reports', got %s", req.Path)
			}
			if req.Limit != 10 || req.Offset != 5 {
				t.Errorf("expected limit 10 offset 5, got %d %d", req.Limit, req.Offset)
			}
			return &driving.FolderListing{
				Folders: []*domain.FolderSummary{
					{Folder: &domain.Folder{ID: "folder-2", Name: "2024"}, ChildCount: 1, FileCount: 3},
				},
				Files: []*domain.File{},
				Total: 1,
			}, nil
		},
	}

	server := &Server{folderService: mockFolders}

	req := httptest.NewRequest("GET", "/api/v1/folders/children?path=/Reports&limit=10&offset=5", nil)
	req = authenticatedRequest(req, adminContext())
	rr := httptest.NewRecorder()

	server.handleListChildren(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rr.Code)
	}

	var response driving.FolderListing
	if err := json.NewDecoder(rr.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if response.Total != 1 {
		t.Errorf("expected total 1, got %d", response.Total)
	}
	if len(response.Folders) != 1 || response.Folders[0].FileCount != 3 {
		t.Errorf("unexpected folder listing: %+v", response.Folders)
	}
}

func TestHandleListChildren_InvalidLimit(t *testing.T) {
	server := &Server{}

	req := httptest.NewRequest("GET", "/api/v1/folders/children?limit=abc", nil)
	req = authenticatedRequest(req, adminContext())
	rr := httptest.NewRecorder()

	server.handleListChildren(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", rr.Code)
	}
}

func TestHandleFolderTree(t *testing.T) {
	mockFolders := &mockFolderService{
		treeFn: func(ctx context.Context, organizationID string, maxDepth int) ([]*domain.FolderTreeNode, error) {
			if maxDepth != 2 {
				t.Errorf("expected depth 2, got %d", maxDepth)
			}
			return []*domain.FolderTreeNode{
				{
					Folder:   &domain.Folder{ID: "folder-1", Name: "Reports"},
					Children: []*domain.FolderTreeNode{},
				},
			}, nil
		},
	}

	server := &Server{folderService: mockFolders}

	req := httptest.NewRequest("GET", "/api/v1/folders/tree?depth=2", nil)
	req = authenticatedRequest(req, adminContext())
	rr := httptest.NewRecorder()

	server.handleFolderTree(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rr.Code)
	}

	var response []*domain.FolderTreeNode
	if err := json.NewDecoder(rr.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(response) != 1 || response[0].Name != "Reports" {
		t.Errorf("unexpected tree: %+v", response)
	}
}

func TestHandleRenameFolder_Root(t *testing.T) {
	mockFolders := &mockFolderService{
		renameFn: func(ctx context.Context, organizationID, actorID, id string, req driving.RenameFolderRequest) (*domain.Folder, error) {
			return nil, domain.ErrInvalidOperation
		},
	}

	server := &Server{folderService: mockFolders}

	body, _ := json.Marshal(driving.RenameFolderRequest{Name: "New Name"})
	req := httptest.NewRequest("PUT", "/api/v1/folders/root-1", bytes.NewBuffer(body))
	req.SetPathValue("id", "root-1")
	req = authenticatedRequest(req, adminContext())
	rr := httptest.NewRecorder()

	server.handleRenameFolder(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", rr.Code)
	}

	var response map[string]string
	if err := json.NewDecoder(rr.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if response["error"] != "the root folder cannot be renamed" {
		t.Errorf("unexpected error message: %s", response["error"])
	}
}

func TestHandleRenameFolder_Success(t *testing.T) {
	mockFolders := &mockFolderService{
		renameFn: func(ctx context.Context, organizationID, actorID, id string, req driving.RenameFolderRequest) (*domain.Folder, error) {
			return &domain.Folder{ID: id, Name: req.Name, Path: "/" + req.Name}, nil
		},
	}

	server := &Server{folderService: mockFolders}

	body, _ := json.Marshal(driving.RenameFolderRequest{Name: "Archive"})
	req := httptest.NewRequest("PUT", "/api/v1/folders/folder-1", bytes.NewBuffer(body))
	req.SetPathValue("id", "folder-1")
	req = authenticatedRequest(req, adminContext())
	rr := httptest.NewRecorder()

	server.handleRenameFolder(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rr.Code)
	}

	var response domain.Folder
	if err := json.NewDecoder(rr.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if response.Name != "Archive" {
		t.Errorf("expected name 'Archive', got %s", response.Name)
	}
}

func TestHandleMoveFolder_Conflict(t *testing.T) {
	mockFolders := &mockFolderService{
		moveFn: func(ctx context.Context, organizationID, actorID, id string, req driving.MoveFolderRequest) (*domain.Folder, error) {
			return nil, domain.ErrConflict
		},
	}

	server := &Server{folderService: mockFolders}

	body, _ := json.Marshal(driving.MoveFolderRequest{NewParentPath: "/Archive"})
	req := httptest.NewRequest("POST", "/api/v1/folders/folder-1/move", bytes.NewBuffer(body))
	req.SetPathValue("id", "folder-1")
	req = authenticatedRequest(req, adminContext())
	rr := httptest.NewRecorder()

	server.handleMoveFolder(rr, req)

	if rr.Code != http.StatusConflict {
		t.Errorf("expected status 409, got %d", rr.Code)
	}
}

func TestHandleMoveFolder_Cycle(t *testing.T) {
	mockFolders := &mockFolderService{
		moveFn: func(ctx context.Context, organizationID, actorID, id string, req driving.MoveFolderRequest) (*domain.Folder, error) {
			return nil, domain.ErrInvalidOperation
		},
	}

	server := &Server{folderService: mockFolders}

	body, _ := json.Marshal(driving.MoveFolderRequest{NewParentPath: "/Reports/2024"})
	req := httptest.NewRequest("POST", "/api/v1/folders/folder-1/move", bytes.NewBuffer(body))
	req.SetPathValue("id", "folder-1")
	req = authenticatedRequest(req, adminContext())
	rr := httptest.NewRecorder()

	server.handleMoveFolder(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", rr.Code)
	}

	var response map[string]string
	if err := json.NewDecoder(rr.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if response["error"] != "move not allowed" {
		t.Errorf("unexpected error message: %s", response["error"])
	}
}

func TestHandleDeleteFolder_Flags(t *testing.T) {
	var captured driving.DeleteFolderRequest
	mockFolders := &mockFolderService{
		deleteFn: func(ctx context.Context, organizationID, actorID, id string, req driving.DeleteFolderRequest) (*driving.DeleteFolderResult, error) {
			captured = req
			return &driving.DeleteFolderResult{
				FoldersDeleted: 3,
				FilesDeleted:   7,
				KeysRevoked:    2,
			}, nil
		},
	}

	server := &Server{folderService: mockFolders}

	req := httptest.NewRequest("DELETE", "/api/v1/folders/folder-1?recursive=true&delete_files=true", nil)
	req.SetPathValue("id", "folder-1")
	req = authenticatedRequest(req, adminContext())
	rr := httptest.NewRecorder()

	server.handleDeleteFolder(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rr.Code)
	}
	if !captured.Recursive || !captured.DeleteFiles {
		t.Errorf("expected both flags set, got %+v", captured)
	}

	var response driving.DeleteFolderResult
	if err := json.NewDecoder(rr.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if response.FoldersDeleted != 3 {
		t.Errorf("expected 3 folders deleted, got %d", response.FoldersDeleted)
	}
	if response.KeysRevoked != 2 {
		t.Errorf("expected 2 keys revoked, got %d", response.KeysRevoked)
	}
}

func TestHandleDeleteFolder_NonRecursiveWithChildren(t *testing.T) {
	mockFolders := &mockFolderService{
		deleteFn: func(ctx context.Context, organizationID, actorID, id string, req driving.DeleteFolderRequest) (*driving.DeleteFolderResult, error) {
			return nil, domain.ErrInvalidOperation
		},
	}

	server := &Server{folderService: mockFolders}

	req := httptest.NewRequest("DELETE", "/api/v1/folders/folder-1", nil)
	req.SetPathValue("id", "folder-1")
	req = authenticatedRequest(req, adminContext())
	rr := httptest.NewRecorder()

	server.handleDeleteFolder(rr, req)

	if rr.Code != http.StatusConflict {
		t.Errorf("expected status 409, got %d", rr.Code)
	}
}

// Indexing handler tests

func TestHandleEnableMcp_NoBody(t *testing.T) {
	mockMcp := &mockMcpService{
		enableFn: func(ctx context.Context, organizationID, actorID, folderID string, req driving.EnableMcpRequest) (*driving.EnableMcpResult, error) {
			if req.Config != nil {
				t.Errorf("expected nil config, got %+v", req.Config)
			}
			return &driving.EnableMcpResult{
				Folder: &domain.Folder{ID: folderID, McpEnabled: true},
				Job:    &domain.BackgroundJob{ID: "job-1", Status: domain.JobStatusPending},
			}, nil
		},
	}

	server := &Server{mcpService: mockMcp}

	req := httptest.NewRequest("POST", "/api/v1/folders/folder-1/mcp/enable", nil)
	req.SetPathValue("id", "folder-1")
	req = authenticatedRequest(req, adminContext())
	rr := httptest.NewRecorder()

	server.handleEnableMcp(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rr.Code)
	}

	var response driving.EnableMcpResult
	if err := json.NewDecoder(rr.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if response.Job == nil || response.Job.ID != "job-1" {
		t.Errorf("expected job-1 in response, got %+v", response.Job)
	}
}

func TestHandleEnableMcp_WithConfig(t *testing.T) {
	mockMcp := &mockMcpService{
		enableFn: func(ctx context.Context, organizationID, actorID, folderID string, req driving.EnableMcpRequest) (*driving.EnableMcpResult, error) {
			if req.Config == nil || req.Config.ChunkSize != 1024 {
				t.Errorf("expected chunk size 1024, got %+v", req.Config)
			}
			return &driving.EnableMcpResult{
				Folder: &domain.Folder{ID: folderID, McpEnabled: true},
			}, nil
		},
	}

	server := &Server{mcpService: mockMcp}

	body, _ := json.Marshal(driving.EnableMcpRequest{
		Config: &domain.McpConfig{ChunkSize: 1024},
	})
	req := httptest.NewRequest("POST", "/api/v1/folders/folder-1/mcp/enable", bytes.NewBuffer(body))
	req.SetPathValue("id", "folder-1")
	req = authenticatedRequest(req, adminContext())
	rr := httptest.NewRecorder()

	server.handleEnableMcp(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rr.Code)
	}
}

func TestHandleEnableMcp_InvalidConfig(t *testing.T) {
	mockMcp := &mockMcpService{
		enableFn: func(ctx context.Context, organizationID, actorID, folderID string, req driving.EnableMcpRequest) (*driving.EnableMcpResult, error) {
			return nil, domain.ErrInvalidArgument
		},
	}

	server := &Server{mcpService: mockMcp}

	body, _ := json.Marshal(driving.EnableMcpRequest{
		Config: &domain.McpConfig{SimilarityThreshold: 5},
	})
	req := httptest.NewRequest("POST", "/api/v1/folders/folder-1/mcp/enable", bytes.NewBuffer(body))
	req.SetPathValue("id", "folder-1")
	req = authenticatedRequest(req, adminContext())
	rr := httptest.NewRecorder()

	server.handleEnableMcp(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", rr.Code)
	}
}

func TestHandleDisableMcp_Success(t *testing.T) {
	mockMcp := &mockMcpService{
		disableFn: func(ctx context.Context, organizationID, actorID, folderID string) (int, error) {
			return 42, nil
		},
	}

	server := &Server{mcpService: mockMcp}

	req := httptest.NewRequest("POST", "/api/v1/folders/folder-1/mcp/disable", nil)
	req.SetPathValue("id", "folder-1")
	req = authenticatedRequest(req, adminContext())
	rr := httptest.NewRecorder()

	server.handleDisableMcp(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rr.Code)
	}

	var response disableMcpResponse
	if err := json.NewDecoder(rr.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if response.Status != "disabled" {
		t.Errorf("expected status 'disabled', got %s", response.Status)
	}
	if response.EmbeddingsDeleted != 42 {
		t.Errorf("expected 42 embeddings deleted, got %d", response.EmbeddingsDeleted)
	}
}

func TestHandleDisableMcp_NotEnabled(t *testing.T) {
	mockMcp := &mockMcpService{
		disableFn: func(ctx context.Context, organizationID, actorID, folderID string) (int, error) {
			return 0, domain.ErrInvalidState
		},
	}

	server := &Server{mcpService: mockMcp}

	req := httptest.NewRequest("POST", "/api/v1/folders/folder-1/mcp/disable", nil)
	req.SetPathValue("id", "folder-1")
	req = authenticatedRequest(req, adminContext())
	rr := httptest.NewRecorder()

	server.handleDisableMcp(rr, req)

	if rr.Code != http.StatusConflict {
		t.Errorf("expected status 409, got %d", rr.Code)
	}
}

func TestHandleReindexMcp_Success(t *testing.T) {
	mockMcp := &mockMcpService{
		reindexFn: func(ctx context.Context, organizationID, actorID, folderID string) (*domain.BackgroundJob, error) {
			return &domain.BackgroundJob{
				ID:       "job-2",
				FolderID: folderID,
				Type:     domain.JobTypeFolderReindex,
				Status:   domain.JobStatusPending,
			}, nil
		},
	}

	server := &Server{mcpService: mockMcp}

	req := httptest.NewRequest("POST", "/api/v1/folders/folder-1/mcp/reindex", nil)
	req.SetPathValue("id", "folder-1")
	req = authenticatedRequest(req, adminContext())
	rr := httptest.NewRecorder()

	server.handleReindexMcp(rr, req)

	if rr.Code != http.StatusAccepted {
		t.Errorf("expected status 202, got %d", rr.Code)
	}

	var response domain.BackgroundJob
	if err := json.NewDecoder(rr.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if response.Type != domain.JobTypeFolderReindex {
		t.Errorf("expected reindex job, got %s", response.Type)
	}
}

func TestHandleReindexMcp_AlreadyQueued(t *testing.T) {
	mockMcp := &mockMcpService{
		reindexFn: func(ctx context.Context, organizationID, actorID, folderID string) (*domain.BackgroundJob, error) {
			return nil, domain.ErrConflict
		},
	}

	server := &Server{mcpService: mockMcp}

	req := httptest.NewRequest("POST", "/api/v1/folders/folder-1/mcp/reindex", nil)
	req.SetPathValue("id", "folder-1")
	req = authenticatedRequest(req, adminContext())
	rr := httptest.NewRecorder()

	server.handleReindexMcp(rr, req)

	if rr.Code != http.StatusConflict {
		t.Errorf("expected status 409, got %d", rr.Code)
	}
}

func TestHandleMcpStatus(t *testing.T) {
	mockMcp := &mockMcpService{
		statusFn: func(ctx context.Context, organizationID, folderID string) (*domain.McpStatus, error) {
			return &domain.McpStatus{
				FolderID:       folderID,
				Enabled:        true,
				IndexingStatus: domain.IndexingStatusCompleted,
				EmbeddingCount: 120,
				FileCount:      15,
				ActiveJobs:     []*domain.BackgroundJob{},
			}, nil
		},
	}

	server := &Server{mcpService: mockMcp}

	req := httptest.NewRequest("GET", "/api/v1/folders/folder-1/mcp/status", nil)
	req.SetPathValue("id", "folder-1")
	req = authenticatedRequest(req, adminContext())
	rr := httptest.NewRecorder()

	server.handleMcpStatus(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rr.Code)
	}

	var response domain.McpStatus
	if err := json.NewDecoder(rr.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if !response.Enabled || response.EmbeddingCount != 120 {
		t.Errorf("unexpected status: %+v", response)
	}
}

func TestHandleUpdateMcpConfig_NotEnabled(t *testing.T) {
	mockMcp := &mockMcpService{
		updateConfigFn: func(ctx context.Context, organizationID, actorID, folderID string, config domain.McpConfig) (*domain.Folder, error) {
			return nil, domain.ErrInvalidState
		},
	}

	server := &Server{mcpService: mockMcp}

	body, _ := json.Marshal(domain.McpConfig{ChunkSize: 512})
	req := httptest.NewRequest("PUT", "/api/v1/folders/folder-1/mcp/config", bytes.NewBuffer(body))
	req.SetPathValue("id", "folder-1")
	req = authenticatedRequest(req, adminContext())
	rr := httptest.NewRecorder()

	server.handleUpdateMcpConfig(rr, req)

	if rr.Code != http.StatusConflict {
		t.Errorf("expected status 409, got %d", rr.Code)
	}

	var response map[string]string
	if err := json.NewDecoder(rr.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if response["error"] != "folder indexing is not enabled" {
		t.Errorf("unexpected error message: %s", response["error"])
	}
}

// Key handler tests

func TestHandleIssueKey_Success(t *testing.T) {
	mockKeys := &mockKeyService{
		issueFn: func(ctx context.Context, organizationID, actorID, folderID string, req driving.IssueKeyRequest) (*domain.IssuedAPIKey, error) {
			return &domain.IssuedAPIKey{
				Key: &domain.APIKey{
					ID:          "key-1",
					FolderID:    folderID,
					Name:        req.Name,
					Permissions: domain.DefaultKeyPermissions(),
					IsActive:    true,
				},
				Secret: "nk_folder_abc123",
			}, nil
		},
	}

	server := &Server{keyService: mockKeys}

	body, _ := json.Marshal(driving.IssueKeyRequest{Name: "ci key", ExpiresIn: "30d"})
	req := httptest.NewRequest("POST", "/api/v1/folders/folder-1/keys", bytes.NewBuffer(body))
	req.SetPathValue("id", "folder-1")
	req = authenticatedRequest(req, adminContext())
	rr := httptest.NewRecorder()

	server.handleIssueKey(rr, req)

	if rr.Code != http.StatusCreated {
		t.Errorf("expected status 201, got %d", rr.Code)
	}

	var response domain.IssuedAPIKey
	if err := json.NewDecoder(rr.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if response.Secret != "nk_folder_abc123" {
		t.Errorf("expected secret in response, got %s", response.Secret)
	}
	if response.Key == nil || response.Key.Name != "ci key" {
		t.Errorf("unexpected key: %+v", response.Key)
	}
}

func TestHandleIssueKey_FolderNotEnabled(t *testing.T) {
	mockKeys := &mockKeyService{
		issueFn: func(ctx context.Context, organizationID, actorID, folderID string, req driving.IssueKeyRequest) (*domain.IssuedAPIKey, error) {
			return nil, domain.ErrInvalidState
		},
	}

	server := &Server{keyService: mockKeys}

	body, _ := json.Marshal(driving.IssueKeyRequest{Name: "ci key"})
	req := httptest.NewRequest("POST", "/api/v1/folders/folder-1/keys", bytes.NewBuffer(body))
	req.SetPathValue("id", "folder-1")
	req = authenticatedRequest(req, adminContext())
	rr := httptest.NewRecorder()

	server.handleIssueKey(rr, req)

	if rr.Code != http.StatusConflict {
		t.Errorf("expected status 409, got %d", rr.Code)
	}
}

func TestHandleIssueKey_InvalidExpiration(t *testing.T) {
	mockKeys := &mockKeyService{
		issueFn: func(ctx context.Context, organizationID, actorID, folderID string, req driving.IssueKeyRequest) (*domain.IssuedAPIKey, error) {
			return nil, domain.ErrInvalidArgument
		},
	}

	server := &Server{keyService: mockKeys}

	body, _ := json.Marshal(driving.IssueKeyRequest{Name: "ci key", ExpiresIn: "sometime"})
	req := httptest.NewRequest("POST", "/api/v1/folders/folder-1/keys", bytes.NewBuffer(body))
	req.SetPathValue("id", "folder-1")
	req = authenticatedRequest(req, adminContext())
	rr := httptest.NewRecorder()

	server.handleIssueKey(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", rr.Code)
	}
}

func TestHandleListKeys(t *testing.T) {
	mockKeys := &mockKeyService{
		listFn: func(ctx context.Context, organizationID, folderID string) ([]*domain.APIKey, error) {
			return []*domain.APIKey{
				{ID: "key-1", FolderID: folderID, Name: "ci key", IsActive: true},
				{ID: "key-2", FolderID: folderID, Name: "old key", IsActive: false},
			}, nil
		},
	}

	server := &Server{keyService: mockKeys}

	req := httptest.NewRequest("GET", "/api/v1/folders/folder-1/keys", nil)
	req.SetPathValue("id", "folder-1")
	req = authenticatedRequest(req, adminContext())
	rr := httptest.NewRecorder()

	server.handleListKeys(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rr.Code)
	}

	var response []*domain.APIKey
	if err := json.NewDecoder(rr.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(response) != 2 {
		t.Errorf("expected 2 keys, got %d", len(response))
	}
}

func TestHandleRevokeKey_Success(t *testing.T) {
	revoked := false
	mockKeys := &mockKeyService{
		revokeFn: func(ctx context.Context, organizationID, actorID, folderID, keyID string) error {
			if folderID != "folder-1" || keyID != "key-1" {
				t.Errorf("unexpected ids: %s %s", folderID, keyID)
			}
			revoked = true
			return nil
		},
	}

	server := &Server{keyService: mockKeys}

	req := httptest.NewRequest("DELETE", "/api/v1/folders/folder-1/keys/key-1", nil)
	req.SetPathValue("id", "folder-1")
	req.SetPathValue("keyId", "key-1")
	req = authenticatedRequest(req, adminContext())
	rr := httptest.NewRecorder()

	server.handleRevokeKey(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rr.Code)
	}
	if !revoked {
		t.Error("expected revoke to be called")
	}

	var response map[string]string
	if err := json.NewDecoder(rr.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if response["status"] != "revoked" {
		t.Errorf("expected status 'revoked', got %s", response["status"])
	}
}

func TestHandleRevokeKey_NotFound(t *testing.T) {
	mockKeys := &mockKeyService{
		revokeFn: func(ctx context.Context, organizationID, actorID, folderID, keyID string) error {
			return domain.ErrNotFound
		},
	}

	server := &Server{keyService: mockKeys}

	req := httptest.NewRequest("DELETE", "/api/v1/folders/folder-1/keys/missing", nil)
	req.SetPathValue("id", "folder-1")
	req.SetPathValue("keyId", "missing")
	req = authenticatedRequest(req, adminContext())
	rr := httptest.NewRecorder()

	server.handleRevokeKey(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", rr.Code)
	}
}

// Query handler tests

func TestHandleQueryFolder_Session(t *testing.T) {
	mockQuery := &mockQueryService{
		queryFn: func(ctx context.Context, organizationID, actorID, apiKeyID, folderID string, req driving.QueryFolderRequest) (*driving.QueryFolderResponse, error) {
			if actorID != "user-1" {
				t.Errorf("expected actor user-1, got %s", actorID)
			}
			if apiKeyID != "" {
				t.Errorf("expected empty api key id, got %s", apiKeyID)
			}
			return &driving.QueryFolderResponse{
				Answer:     "The Q3 revenue was $1.2M.",
				TokensUsed: 350,
				Sources: []domain.AnswerSource{
					{FileID: "file-1", FileName: "q3-report.pdf", Score: 0.92},
				},
			}, nil
		},
	}

	server := &Server{queryService: mockQuery}

	body, _ := json.Marshal(driving.QueryFolderRequest{Question: "What was Q3 revenue?"})
	req := httptest.NewRequest("POST", "/api/v1/folders/folder-1/query", bytes.NewBuffer(body))
	req.SetPathValue("id", "folder-1")
	req = authenticatedRequest(req, adminContext())
	rr := httptest.NewRecorder()

	server.handleQueryFolder(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rr.Code)
	}

	var response driving.QueryFolderResponse
	if err := json.NewDecoder(rr.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if response.Answer == "" {
		t.Error("expected an answer")
	}
	if len(response.Sources) != 1 {
		t.Errorf("expected 1 source, got %d", len(response.Sources))
	}
}

func TestHandleQueryFolder_APIKey(t *testing.T) {
	mockQuery := &mockQueryService{
		queryFn: func(ctx context.Context, organizationID, actorID, apiKeyID, folderID string, req driving.QueryFolderRequest) (*driving.QueryFolderResponse, error) {
			if organizationID != "org-1" {
				t.Errorf("expected organization org-1, got %s", organizationID)
			}
			if actorID != "user-9" {
				t.Errorf("expected actor user-9, got %s", actorID)
			}
			if apiKeyID != "key-1" {
				t.Errorf("expected api key id key-1, got %s", apiKeyID)
			}
			return &driving.QueryFolderResponse{Answer: "42"}, nil
		},
	}

	server := &Server{queryService: mockQuery}

	key := &domain.APIKey{
		ID:             "key-1",
		OrganizationID: "org-1",
		FolderID:       "folder-1",
		Permissions:    []string{domain.PermissionFolderQuery},
		CreatedBy:      "user-9",
		IsActive:       true,
	}

	body, _ := json.Marshal(driving.QueryFolderRequest{Question: "What is the answer?"})
	req := httptest.NewRequest("POST", "/api/v1/folders/folder-1/query", bytes.NewBuffer(body))
	req.SetPathValue("id", "folder-1")
	ctx := context.WithValue(req.Context(), apiKeyKey, key)
	req = req.WithContext(ctx)
	rr := httptest.NewRecorder()

	server.handleQueryFolder(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rr.Code)
	}
}

func TestHandleQueryFolder_KeyWrongFolder(t *testing.T) {
	server := &Server{}

	key := &domain.APIKey{
		ID:          "key-1",
		FolderID:    "folder-other",
		Permissions: []string{domain.PermissionFolderQuery},
	}

	body, _ := json.Marshal(driving.QueryFolderRequest{Question: "anything"})
	req := httptest.NewRequest("POST", "/api/v1/folders/folder-1/query", bytes.NewBuffer(body))
	req.SetPathValue("id", "folder-1")
	ctx := context.WithValue(req.Context(), apiKeyKey, key)
	req = req.WithContext(ctx)
	rr := httptest.NewRecorder()

	server.handleQueryFolder(rr, req)

	if rr.Code != http.StatusForbidden {
		t.Errorf("expected status 403, got %d", rr.Code)
	}

	var response map[string]string
	if err := json.NewDecoder(rr.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if response["error"] != "key is not scoped to this folder" {
		t.Errorf("unexpected error message: %s", response["error"])
	}
}

func TestHandleQueryFolder_KeyMissingPermission(t *testing.T) {
	server := &Server{}

	key := &domain.APIKey{
		ID:          "key-1",
		FolderID:    "folder-1",
		Permissions: []string{domain.PermissionFolderMcp},
	}

	body, _ := json.Marshal(driving.QueryFolderRequest{Question: "anything"})
	req := httptest.NewRequest("POST", "/api/v1/folders/folder-1/query", bytes.NewBuffer(body))
	req.SetPathValue("id", "folder-1")
	ctx := context.WithValue(req.Context(), apiKeyKey, key)
	req = req.WithContext(ctx)
	rr := httptest.NewRecorder()

	server.handleQueryFolder(rr, req)

	if rr.Code != http.StatusForbidden {
		t.Errorf("expected status 403, got %d", rr.Code)
	}
}

func TestHandleQueryFolder_Unauthenticated(t *testing.T) {
	server := &Server{}

	body, _ := json.Marshal(driving.QueryFolderRequest{Question: "anything"})
	req := httptest.NewRequest("POST", "/api/v1/folders/folder-1/query", bytes.NewBuffer(body))
	req.SetPathValue("id", "folder-1")
	rr := httptest.NewRecorder()

	server.handleQueryFolder(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Errorf("expected status 401, got %d", rr.Code)
	}
}

func TestHandleQueryFolder_EmptyQuestion(t *testing.T) {
	mockQuery := &mockQueryService{
		queryFn: func(ctx context.Context, organizationID, actorID, apiKeyID, folderID string, req driving.QueryFolderRequest) (*driving.QueryFolderResponse, error) {
			return nil, domain.ErrInvalidArgument
		},
	}

	server := &Server{queryService: mockQuery}

	body, _ := json.Marshal(driving.QueryFolderRequest{Question: ""})
	req := httptest.NewRequest("POST", "/api/v1/folders/folder-1/query", bytes.NewBuffer(body))
	req.SetPathValue("id", "folder-1")
	req = authenticatedRequest(req, adminContext())
	rr := httptest.NewRecorder()

	server.handleQueryFolder(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", rr.Code)
	}

	var response map[string]string
	if err := json.NewDecoder(rr.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if response["error"] != "question is required" {
		t.Errorf("expected error 'question is required', got %s", response["error"])
	}
}

func TestHandleQueryFolder_EngineUnavailable(t *testing.T) {
	mockQuery := &mockQueryService{
		queryFn: func(ctx context.Context, organizationID, actorID, apiKeyID, folderID string, req driving.QueryFolderRequest) (*driving.QueryFolderResponse, error) {
			return nil, domain.ErrUnavailable
		},
	}

	server := &Server{queryService: mockQuery}

	body, _ := json.Marshal(driving.QueryFolderRequest{Question: "anything"})
	req := httptest.NewRequest("POST", "/api/v1/folders/folder-1/query", bytes.NewBuffer(body))
	req.SetPathValue("id", "folder-1")
	req = authenticatedRequest(req, adminContext())
	rr := httptest.NewRecorder()

	server.handleQueryFolder(rr, req)

	if rr.Code != http.StatusServiceUnavailable {
		t.Errorf("expected status 503, got %d", rr.Code)
	}
}

func TestHandleQueryHistory(t *testing.T) {
	mockQuery := &mockQueryService{
		historyFn: func(ctx context.Context, organizationID, folderID string, limit int) ([]*domain.QueryRecord, error) {
			if limit != 20 {
				t.Errorf("expected limit 20, got %d", limit)
			}
			return []*domain.QueryRecord{
				{ID: "query-1", FolderID: folderID, Question: "What was Q3 revenue?"},
			}, nil
		},
	}

	server := &Server{queryService: mockQuery}

	req := httptest.NewRequest("GET", "/api/v1/folders/folder-1/queries?limit=20", nil)
	req.SetPathValue("id", "folder-1")
	req = authenticatedRequest(req, adminContext())
	rr := httptest.NewRecorder()

	server.handleQueryHistory(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rr.Code)
	}

	var response []*domain.QueryRecord
	if err := json.NewDecoder(rr.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(response) != 1 {
		t.Errorf("expected 1 record, got %d", len(response))
	}
}

func TestHandleUsageStats(t *testing.T) {
	since := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	until := time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)

	mockQuery := &mockQueryService{
		usageStatsFn: func(ctx context.Context, organizationID, folderID string, req driving.UsageStatsRequest) (*domain.UsageStats, error) {
			if !req.Since.Equal(since) || !req.Until.Equal(until) {
				t.Errorf("unexpected bounds: %v %v", req.Since, req.Until)
			}
			return &domain.UsageStats{
				FolderID:     folderID,
				TotalQueries: 57,
				TotalTokens:  12800,
				PeriodStart:  since,
				PeriodEnd:    until,
			}, nil
		},
	}

	server := &Server{queryService: mockQuery}

	url := "/api/v1/folders/folder-1/usage?since=2024-06-01T00:00:00Z&until=2024-07-01T00:00:00Z"
	req := httptest.NewRequest("GET", url, nil)
	req.SetPathValue("id", "folder-1")
	req = authenticatedRequest(req, adminContext())
	rr := httptest.NewRecorder()

	server.handleUsageStats(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rr.Code)
	}

	var response domain.UsageStats
	if err := json.NewDecoder(rr.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if response.TotalQueries != 57 {
		t.Errorf("expected 57 queries, got %d", response.TotalQueries)
	}
}

func TestHandleUsageStats_BadSince(t *testing.T) {
	server := &Server{}

	req := httptest.NewRequest("GET", "/api/v1/folders/folder-1/usage?since=yesterday", nil)
	req.SetPathValue("id", "folder-1")
	req = authenticatedRequest(req, adminContext())
	rr := httptest.NewRecorder()

	server.handleUsageStats(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", rr.Code)
	}
}

func TestHandleUsageStats_InvertedBounds(t *testing.T) {
	mockQuery := &mockQueryService{
		usageStatsFn: func(ctx context.Context, organizationID, folderID string, req driving.UsageStatsRequest) (*domain.UsageStats, error) {
			return nil, domain.ErrInvalidArgument
		},
	}

	server := &Server{queryService: mockQuery}

	url := "/api/v1/folders/folder-1/usage?since=2024-07-01T00:00:00Z&until=2024-06-01T00:00:00Z"
	req := httptest.NewRequest("GET", url, nil)
	req.SetPathValue("id", "folder-1")
	req = authenticatedRequest(req, adminContext())
	rr := httptest.NewRecorder()

	server.handleUsageStats(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", rr.Code)
	}

	var response map[string]string
	if err := json.NewDecoder(rr.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if response["error"] != "since must be before until" {
		t.Errorf("unexpected error message: %s", response["error"])
	}
}
