package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/nexkb/nexkb-core/internal/core/domain"
	"github.com/nexkb/nexkb-core/internal/core/ports/driving"
)

// ErrorResponse represents an API error response
type ErrorResponse struct {
	Error string `json:"error"`
}

// StatusResponse represents a simple status response
type StatusResponse struct {
	Status string `json:"status"`
}

// ReadyResponse reports readiness per infrastructure component
type ReadyResponse struct {
	Status     string            `json:"status"`
	Components map[string]string `json:"components"`
}

// Health endpoints

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleReady pings the configured backends. Any failing component turns
// the response into a 503 so the load balancer stops routing here.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	resp := ReadyResponse{Status: "ready", Components: map[string]string{}}

	if s.db != nil {
		if err := s.db.Ping(r.Context()); err != nil {
			resp.Components["database"] = "unavailable"
			resp.Status = "not ready"
		} else {
			resp.Components["database"] = "ok"
		}
	}
	if s.redisClient != nil {
		if err := s.redisClient.Ping(r.Context()); err != nil {
			resp.Components["redis"] = "unavailable"
			resp.Status = "not ready"
		} else {
			resp.Components["redis"] = "ok"
		}
	}

	status := http.StatusOK
	if resp.Status != "ready" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"version": s.version})
}

// Folder endpoints

func (s *Server) handleCreateFolder(w http.ResponseWriter, r *http.Request) {
	authCtx := GetAuthContext(r.Context())
	if authCtx == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req driving.CreateFolderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	folder, err := s.folderService.Create(r.Context(), authCtx.OrganizationID, authCtx.UserID, req)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound):
			writeError(w, http.StatusNotFound, "parent folder not found")
		case errors.Is(err, domain.ErrConflict):
			writeError(w, http.StatusConflict, "folder already exists")
		case errors.Is(err, domain.ErrInvalidArgument):
			writeError(w, http.StatusBadRequest, "invalid folder name")
		case errors.Is(err, domain.ErrInvalidOperation):
			writeError(w, http.StatusBadRequest, "folder nesting too deep")
		default:
			writeError(w, http.StatusInternalServerError, "failed to create folder")
		}
		return
	}

	writeJSON(w, http.StatusCreated, folder)
}

func (s *Server) handleGetFolder(w http.ResponseWriter, r *http.Request) {
	authCtx := GetAuthContext(r.Context())
	if authCtx == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing folder id")
		return
	}

	folder, err := s.folderService.Get(r.Context(), authCtx.OrganizationID, id)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound):
			writeError(w, http.StatusNotFound, "folder not found")
		default:
			writeError(w, http.StatusInternalServerError, "failed to get folder")
		}
		return
	}

	writeJSON(w, http.StatusOK, folder)
}

func (s *Server) handleGetFolderByPath(w http.ResponseWriter, r *http.Request) {
	authCtx := GetAuthContext(r.Context())
	if authCtx == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	path := r.URL.Query().Get("path")

	folder, err := s.folderService.GetByPath(r.Context(), authCtx.OrganizationID, path)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound):
			writeError(w, http.StatusNotFound, "folder not found")
		case errors.Is(err, domain.ErrInvalidArgument):
			writeError(w, http.StatusBadRequest, "invalid path")
		default:
			writeError(w, http.StatusInternalServerError, "failed to get folder")
		}
		return
	}

	writeJSON(w, http.StatusOK, folder)
}

func (s *Server) handleListChildren(w http.ResponseWriter, r *http.Request) {
	authCtx := GetAuthContext(r.Context())
	if authCtx == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	limit, err := queryInt(r, "limit")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid limit")
		return
	}
	offset, err := queryInt(r, "offset")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid offset")
		return
	}

	req := driving.ListChildrenRequest{
		Path:   r.URL.Query().Get("path"),
		Limit:  limit,
		Offset: offset,
	}

	listing, err := s.folderService.ListChildren(r.Context(), authCtx.OrganizationID, req)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound):
			writeError(w, http.StatusNotFound, "folder not found")
		case errors.Is(err, domain.ErrInvalidArgument):
			writeError(w, http.StatusBadRequest, "invalid path")
		default:
			writeError(w, http.StatusInternalServerError, "failed to list folder")
		}
		return
	}

	writeJSON(w, http.StatusOK, listing)
}

func (s *Server) handleFolderTree(w http.ResponseWriter, r *http.Request) {
	authCtx := GetAuthContext(r.Context())
	if authCtx == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	depth, err := queryInt(r, "depth")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid depth")
		return
	}

	forest, err := s.folderService.Tree(r.Context(), authCtx.OrganizationID, depth)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load folder tree")
		return
	}

	writeJSON(w, http.StatusOK, forest)
}

func (s *Server) handleRenameFolder(w http.ResponseWriter, r *http.Request) {
	authCtx := GetAuthContext(r.Context())
	if authCtx == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing folder id")
		return
	}

	var req driving.RenameFolderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	folder, err := s.folderService.Rename(r.Context(), authCtx.OrganizationID, authCtx.UserID, id, req)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound):
			writeError(w, http.StatusNotFound, "folder not found")
		case errors.Is(err, domain.ErrConflict):
			writeError(w, http.StatusConflict, "a folder with that name already exists")
		case errors.Is(err, domain.ErrInvalidArgument):
			writeError(w, http.StatusBadRequest, "invalid folder name")
		case errors.Is(err, domain.ErrInvalidOperation):
			writeError(w, http.StatusBadRequest, "the root folder cannot be renamed")
		default:
			writeError(w, http.StatusInternalServerError, "failed to rename folder")
		}
		return
	}

	writeJSON(w, http.StatusOK, folder)
}

func (s *Server) handleMoveFolder(w http.ResponseWriter, r *http.Request) {
	authCtx := GetAuthContext(r.Context())
	if authCtx == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing folder id")
		return
	}

	var req driving.MoveFolderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	folder, err := s.folderService.Move(r.Context(), authCtx.OrganizationID, authCtx.UserID, id, req)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound):
			writeError(w, http.StatusNotFound, "folder or target not found")
		case errors.Is(err, domain.ErrConflict):
			writeError(w, http.StatusConflict, "a folder with that name already exists at the destination")
		case errors.Is(err, domain.ErrInvalidArgument):
			writeError(w, http.StatusBadRequest, "invalid target path")
		case errors.Is(err, domain.ErrInvalidOperation):
			writeError(w, http.StatusBadRequest, "move not allowed")
		default:
			writeError(w, http.StatusInternalServerError, "failed to move folder")
		}
		return
	}

	writeJSON(w, http.StatusOK, folder)
}

func (s *Server) handleDeleteFolder(w http.ResponseWriter, r *http.Request) {
	authCtx := GetAuthContext(r.Context())
	if authCtx == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing folder id")
		return
	}

	req := driving.DeleteFolderRequest{
		Recursive:   r.URL.Query().Get("recursive") == "true",
		DeleteFiles: r.URL.Query().Get("delete_files") == "true",
	}

	result, err := s.folderService.Delete(r.Context(), authCtx.OrganizationID, authCtx.UserID, id, req)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound):
			writeError(w, http.StatusNotFound, "folder not found")
		case errors.Is(err, domain.ErrInvalidOperation):
			writeError(w, http.StatusConflict, "folder is the root or still has subfolders")
		default:
			writeError(w, http.StatusInternalServerError, "failed to delete folder")
		}
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// Indexing endpoints

func (s *Server) handleEnableMcp(w http.ResponseWriter, r *http.Request) {
	authCtx := GetAuthContext(r.Context())
	if authCtx == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing folder id")
		return
	}

	// Body is optional; enabling without config uses defaults.
	var req driving.EnableMcpRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && r.ContentLength > 0 {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := s.mcpService.Enable(r.Context(), authCtx.OrganizationID, authCtx.UserID, id, req)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound):
			writeError(w, http.StatusNotFound, "folder not found")
		case errors.Is(err, domain.ErrInvalidArgument):
			writeError(w, http.StatusBadRequest, "invalid indexing config")
		case errors.Is(err, domain.ErrConflict):
			writeError(w, http.StatusConflict, "an indexing job is already queued")
		default:
			writeError(w, http.StatusInternalServerError, "failed to enable indexing")
		}
		return
	}

	writeJSON(w, http.StatusOK, result)
}

type disableMcpResponse struct {
	Status            string `json:"status"`
	EmbeddingsDeleted int    `json:"embeddings_deleted"`
}

func (s *Server) handleDisableMcp(w http.ResponseWriter, r *http.Request) {
	authCtx := GetAuthContext(r.Context())
	if authCtx == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing folder id")
		return
	}

	deleted, err := s.mcpService.Disable(r.Context(), authCtx.OrganizationID, authCtx.UserID, id)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound):
			writeError(w, http.StatusNotFound, "folder not found")
		case errors.Is(err, domain.ErrInvalidState):
			writeError(w, http.StatusConflict, "folder indexing is not enabled")
		case errors.Is(err, domain.ErrUnavailable):
			writeError(w, http.StatusServiceUnavailable, "embedding engine unavailable")
		default:
			writeError(w, http.StatusInternalServerError, "failed to disable indexing")
		}
		return
	}

	writeJSON(w, http.StatusOK, disableMcpResponse{
		Status:            "disabled",
		EmbeddingsDeleted: deleted,
	})
}

func (s *Server) handleReindexMcp(w http.ResponseWriter, r *http.Request) {
	authCtx := GetAuthContext(r.Context())
	if authCtx == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing folder id")
		return
	}

	job, err := s.mcpService.Reindex(r.Context(), authCtx.OrganizationID, authCtx.UserID, id)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound):
			writeError(w, http.StatusNotFound, "folder not found")
		case errors.Is(err, domain.ErrInvalidState):
			writeError(w, http.StatusConflict, "folder indexing is not enabled")
		case errors.Is(err, domain.ErrConflict):
			writeError(w, http.StatusConflict, "an indexing job is already queued")
		default:
			writeError(w, http.StatusInternalServerError, "failed to queue reindex")
		}
		return
	}

	writeJSON(w, http.StatusAccepted, job)
}

func (s *Server) handleMcpStatus(w http.ResponseWriter, r *http.Request) {
	authCtx := GetAuthContext(r.Context())
	if authCtx == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing folder id")
		return
	}

	status, err := s.mcpService.Status(r.Context(), authCtx.OrganizationID, id)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound):
			writeError(w, http.StatusNotFound, "folder not found")
		default:
			writeError(w, http.StatusInternalServerError, "failed to get indexing status")
		}
		return
	}

	writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleUpdateMcpConfig(w http.ResponseWriter, r *http.Request) {
	authCtx := GetAuthContext(r.Context())
	if authCtx == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing folder id")
		return
	}

	var config domain.McpConfig
	if err := json.NewDecoder(r.Body).Decode(&config); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	folder, err := s.mcpService.UpdateConfig(r.Context(), authCtx.OrganizationID, authCtx.UserID, id, config)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound):
			writeError(w, http.StatusNotFound, "folder not found")
		case errors.Is(err, domain.ErrInvalidState):
			writeError(w, http.StatusConflict, "folder indexing is not enabled")
		case errors.Is(err, domain.ErrInvalidArgument):
			writeError(w, http.StatusBadRequest, "invalid indexing config")
		default:
			writeError(w, http.StatusInternalServerError, "failed to update indexing config")
		}
		return
	}

	writeJSON(w, http.StatusOK, folder)
}

// Key endpoints

func (s *Server) handleIssueKey(w http.ResponseWriter, r *http.Request) {
	authCtx := GetAuthContext(r.Context())
	if authCtx == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing folder id")
		return
	}

	var req driving.IssueKeyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	issued, err := s.keyService.Issue(r.Context(), authCtx.OrganizationID, authCtx.UserID, id, req)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound):
			writeError(w, http.StatusNotFound, "folder not found")
		case errors.Is(err, domain.ErrInvalidState):
			writeError(w, http.StatusConflict, "folder indexing is not enabled")
		case errors.Is(err, domain.ErrInvalidArgument):
			writeError(w, http.StatusBadRequest, "invalid key request")
		default:
			writeError(w, http.StatusInternalServerError, "failed to issue key")
		}
		return
	}

	writeJSON(w, http.StatusCreated, issued)
}

func (s *Server) handleListKeys(w http.ResponseWriter, r *http.Request) {
	authCtx := GetAuthContext(r.Context())
	if authCtx == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing folder id")
		return
	}

	keys, err := s.keyService.List(r.Context(), authCtx.OrganizationID, id)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound):
			writeError(w, http.StatusNotFound, "folder not found")
		default:
			writeError(w, http.StatusInternalServerError, "failed to list keys")
		}
		return
	}

	writeJSON(w, http.StatusOK, keys)
}

func (s *Server) handleRevokeKey(w http.ResponseWriter, r *http.Request) {
	authCtx := GetAuthContext(r.Context())
	if authCtx == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id := r.PathValue("id")
	keyID := r.PathValue("keyId")
	if id == "" || keyID == "" {
		writeError(w, http.StatusBadRequest, "missing folder or key id")
		return
	}

	if err := s.keyService.Revoke(r.Context(), authCtx.OrganizationID, authCtx.UserID, id, keyID); err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound):
			writeError(w, http.StatusNotFound, "key not found")
		default:
			writeError(w, http.StatusInternalServerError, "failed to revoke key")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "revoked"})
}

// Query endpoints

// handleQueryFolder answers a question against an indexed folder. The
// caller is either a session user or a folder API key; keys must be
// scoped to the requested folder and carry the query permission.
func (s *Server) handleQueryFolder(w http.ResponseWriter, r *http.Request) {
	folderID := r.PathValue("id")
	if folderID == "" {
		writeError(w, http.StatusBadRequest, "missing folder id")
		return
	}

	var organizationID, actorID, apiKeyID string
	if key := GetAPIKey(r.Context()); key != nil {
		if key.FolderID != folderID {
			writeError(w, http.StatusForbidden, "key is not scoped to this folder")
			return
		}
		if !key.HasPermission(domain.PermissionFolderQuery) {
			writeError(w, http.StatusForbidden, "key lacks query permission")
			return
		}
		organizationID = key.OrganizationID
		actorID = key.CreatedBy
		apiKeyID = key.ID
	} else if authCtx := GetAuthContext(r.Context()); authCtx != nil {
		organizationID = authCtx.OrganizationID
		actorID = authCtx.UserID
	} else {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req driving.QueryFolderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	resp, err := s.queryService.Query(r.Context(), organizationID, actorID, apiKeyID, folderID, req)
	if s.metrics != nil {
		tokens := 0
		if resp != nil {
			tokens = resp.TokensUsed
		}
		s.metrics.RecordQuery(err, tokens)
	}
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound):
			writeError(w, http.StatusNotFound, "folder not found")
		case errors.Is(err, domain.ErrInvalidArgument):
			writeError(w, http.StatusBadRequest, "question is required")
		case errors.Is(err, domain.ErrInvalidState):
			writeError(w, http.StatusConflict, "folder indexing is not enabled")
		case errors.Is(err, domain.ErrUnavailable):
			writeError(w, http.StatusServiceUnavailable, "retrieval engine unavailable")
		default:
			writeError(w, http.StatusInternalServerError, "query failed")
		}
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleQueryHistory(w http.ResponseWriter, r *http.Request) {
	authCtx := GetAuthContext(r.Context())
	if authCtx == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing folder id")
		return
	}

	limit, err := queryInt(r, "limit")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid limit")
		return
	}

	records, err := s.queryService.History(r.Context(), authCtx.OrganizationID, id, limit)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound):
			writeError(w, http.StatusNotFound, "folder not found")
		default:
			writeError(w, http.StatusInternalServerError, "failed to load query history")
		}
		return
	}

	writeJSON(w, http.StatusOK, records)
}

func (s *Server) handleUsageStats(w http.ResponseWriter, r *http.Request) {
	authCtx := GetAuthContext(r.Context())
	if authCtx == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing folder id")
		return
	}

	var req driving.UsageStatsRequest
	var err error
	if req.Since, err = queryTime(r, "since"); err != nil {
		writeError(w, http.StatusBadRequest, "invalid since time")
		return
	}
	if req.Until, err = queryTime(r, "until"); err != nil {
		writeError(w, http.StatusBadRequest, "invalid until time")
		return
	}

	stats, err := s.queryService.UsageStats(r.Context(), authCtx.OrganizationID, id, req)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound):
			writeError(w, http.StatusNotFound, "folder not found")
		case errors.Is(err, domain.ErrInvalidArgument):
			writeError(w, http.StatusBadRequest, "since must be before until")
		case errors.Is(err, domain.ErrUnavailable):
			writeError(w, http.StatusServiceUnavailable, "retrieval engine unavailable")
		default:
			writeError(w, http.StatusInternalServerError, "failed to load usage stats")
		}
		return
	}

	writeJSON(w, http.StatusOK, stats)
}

// Helper functions

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// queryInt parses an optional integer query parameter, zero when absent.
func queryInt(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}

// queryTime parses an optional RFC 3339 query parameter, zero when absent.
func queryTime(r *http.Request, name string) (time.Time, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, raw)
}
