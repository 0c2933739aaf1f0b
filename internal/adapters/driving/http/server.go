package http

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nexkb/nexkb-core/internal/core/ports/driving"
	"github.com/nexkb/nexkb-core/internal/metrics"
)

// Pinger is a simple health check interface
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server represents the HTTP server
type Server struct {
	httpServer *http.Server
	router     *http.ServeMux
	handler    http.Handler
	version    string
	logger     *slog.Logger

	// Services
	authService   driving.AuthService
	folderService driving.FolderService
	mcpService    driving.McpService
	keyService    driving.APIKeyService
	queryService  driving.QueryService

	// Infrastructure
	metrics     *metrics.Metrics
	db          Pinger // PostgreSQL health check
	redisClient Pinger // Redis health check (optional)
}

// Config holds server configuration
type Config struct {
	Host           string
	Port           int
	Version        string
	AllowedOrigins []string
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Host:           "0.0.0.0",
		Port:           8080,
		Version:        "dev",
		AllowedOrigins: []string{"*"},
	}
}

// NewServer creates a new HTTP server
func NewServer(
	cfg Config,
	authService driving.AuthService,
	folderService driving.FolderService,
	mcpService driving.McpService,
	keyService driving.APIKeyService,
	queryService driving.QueryService,
	m *metrics.Metrics,
	logger *slog.Logger,
	db Pinger,
	redisClient Pinger, // can be nil
) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		router:        http.NewServeMux(),
		version:       cfg.Version,
		logger:        logger,
		authService:   authService,
		folderService: folderService,
		mcpService:    mcpService,
		keyService:    keyService,
		queryService:  queryService,
		metrics:       m,
		db:            db,
		redisClient:   redisClient,
	}

	s.setupRoutes()

	// Middleware chain, innermost first. Metrics sits directly on the
	// router so it sees the matched route pattern.
	handler := http.Handler(s.router)
	if m != nil {
		handler = NewMetricsMiddleware(m).Handler(handler)
	}
	handler = NewCORSMiddleware(cfg.AllowedOrigins).Handler(handler)
	handler = NewLoggingMiddleware(logger).Handler(handler)
	handler = NewRecoveryMiddleware(logger).Handler(handler)
	s.handler = handler

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      s.handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	authMiddleware := NewAuthMiddleware(s.authService, s.keyService)

	// Health and observability endpoints (no auth)
	s.router.HandleFunc("GET /health", s.handleHealth)
	s.router.HandleFunc("GET /ready", s.handleReady)
	s.router.HandleFunc("GET /version", s.handleVersion)
	s.router.Handle("GET /metrics", promhttp.Handler())

	// Folder reads (authenticated)
	s.router.Handle("GET /api/v1/folders/tree",
		authMiddleware.Authenticate(http.HandlerFunc(s.handleFolderTree)))
	s.router.Handle("GET /api/v1/folders/children",
		authMiddleware.Authenticate(http.HandlerFunc(s.handleListChildren)))
	s.router.Handle("GET /api/v1/folders/by-path",
		authMiddleware.Authenticate(http.HandlerFunc(s.handleGetFolderByPath)))
	s.router.Handle("GET /api/v1/folders/{id}",
		authMiddleware.Authenticate(http.HandlerFunc(s.handleGetFolder)))

	// Folder mutations (admin-only)
	s.router.Handle("POST /api/v1/folders",
		authMiddleware.Authenticate(
			authMiddleware.RequireAdmin(http.HandlerFunc(s.handleCreateFolder))))
	s.router.Handle("PUT /api/v1/folders/{id}",
		authMiddleware.Authenticate(
			authMiddleware.RequireAdmin(http.HandlerFunc(s.handleRenameFolder))))
	s.router.Handle("POST /api/v1/folders/{id}/move",
		authMiddleware.Authenticate(
			authMiddleware.RequireAdmin(http.HandlerFunc(s.handleMoveFolder))))
	s.router.Handle("DELETE /api/v1/folders/{id}",
		authMiddleware.Authenticate(
			authMiddleware.RequireAdmin(http.HandlerFunc(s.handleDeleteFolder))))

	// Folder indexing lifecycle (admin-only mutations, status readable)
	s.router.Handle("POST /api/v1/folders/{id}/mcp/enable",
		authMiddleware.Authenticate(
			authMiddleware.RequireAdmin(http.HandlerFunc(s.handleEnableMcp))))
	s.router.Handle("POST /api/v1/folders/{id}/mcp/disable",
		authMiddleware.Authenticate(
			authMiddleware.RequireAdmin(http.HandlerFunc(s.handleDisableMcp))))
	s.router.Handle("POST /api/v1/folders/{id}/mcp/reindex",
		authMiddleware.Authenticate(
			authMiddleware.RequireAdmin(http.HandlerFunc(s.handleReindexMcp))))
	s.router.Handle("PUT /api/v1/folders/{id}/mcp/config",
		authMiddleware.Authenticate(
			authMiddleware.RequireAdmin(http.HandlerFunc(s.handleUpdateMcpConfig))))
	s.router.Handle("GET /api/v1/folders/{id}/mcp/status",
		authMiddleware.Authenticate(http.HandlerFunc(s.handleMcpStatus)))

	// Folder API keys (admin-only)
	s.router.Handle("POST /api/v1/folders/{id}/keys",
		authMiddleware.Authenticate(
			authMiddleware.RequireAdmin(http.HandlerFunc(s.handleIssueKey))))
	s.router.Handle("GET /api/v1/folders/{id}/keys",
		authMiddleware.Authenticate(
			authMiddleware.RequireAdmin(http.HandlerFunc(s.handleListKeys))))
	s.router.Handle("DELETE /api/v1/folders/{id}/keys/{keyId}",
		authMiddleware.Authenticate(
			authMiddleware.RequireAdmin(http.HandlerFunc(s.handleRevokeKey))))

	// Folder queries. The query endpoint itself also accepts folder API
	// keys; history and usage are session-only.
	s.router.Handle("POST /api/v1/folders/{id}/query",
		authMiddleware.AuthenticateOrKey(http.HandlerFunc(s.handleQueryFolder)))
	s.router.Handle("GET /api/v1/folders/{id}/queries",
		authMiddleware.Authenticate(http.HandlerFunc(s.handleQueryHistory)))
	s.router.Handle("GET /api/v1/folders/{id}/usage",
		authMiddleware.Authenticate(http.HandlerFunc(s.handleUsageStats)))
}

// Start starts the HTTP server with graceful shutdown
func (s *Server) Start() error {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting http server", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-stop:
	}

	s.logger.Info("shutting down http server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	s.logger.Info("http server stopped")
	return nil
}

// Stop stops the server
func (s *Server) Stop(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
