package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/nexkb/nexkb-core/internal/adapters/driven/auth"
	"github.com/nexkb/nexkb-core/internal/adapters/driven/postgres"
	postgresqueue "github.com/nexkb/nexkb-core/internal/adapters/driven/queue/postgres"
	redisadapter "github.com/nexkb/nexkb-core/internal/adapters/driven/redis"
	"github.com/nexkb/nexkb-core/internal/adapters/driven/retrieval"
	"github.com/nexkb/nexkb-core/internal/adapters/driving/http"
	"github.com/nexkb/nexkb-core/internal/adapters/driving/mcp"
	"github.com/nexkb/nexkb-core/internal/config"
	"github.com/nexkb/nexkb-core/internal/core/ports/driven"
	"github.com/nexkb/nexkb-core/internal/core/ports/driving"
	"github.com/nexkb/nexkb-core/internal/core/services"
	"github.com/nexkb/nexkb-core/internal/metrics"
	"github.com/nexkb/nexkb-core/internal/worker"
	"github.com/redis/go-redis/v9"
)

var version = "dev"

func main() {
	// Get run mode from environment (RUN_MODE) or command line arg
	mode := os.Getenv("RUN_MODE")
	if mode == "" {
		mode = "all"
	}
	if len(os.Args) > 1 {
		mode = os.Args[1]
	}

	log.Printf("nexkb-core %s starting in %s mode", version, mode)

	// Configuration from an optional YAML file plus environment overrides
	cfg, err := config.LoadWithFile(os.Getenv("CONFIG_FILE"))
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Setup context with cancellation for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("Shutdown signal received, stopping...")
		cancel()
	}()

	// ===== Initialize PostgreSQL =====
	log.Println("Connecting to PostgreSQL...")
	db, err := postgres.Connect(ctx, postgres.Config{
		URL:             cfg.Database.URL,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.Database.ConnMaxIdleTime,
	})
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	// Initialize schema (idempotent)
	if err := db.InitSchema(ctx); err != nil {
		log.Fatalf("Failed to initialize schema: %v", err)
	}
	log.Println("PostgreSQL connected and schema initialized")

	// ===== Initialize Redis (optional) =====
	var redisClient *redis.Client
	if cfg.Redis.URL != "" {
		log.Println("Connecting to Redis...")
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			log.Fatalf("Failed to parse Redis URL: %v", err)
		}
		redisClient = redis.NewClient(opts)
		if err := redisClient.Ping(ctx).Err(); err != nil {
			log.Fatalf("Failed to connect to Redis: %v", err)
		}
		defer redisClient.Close()
		log.Println("Redis connected")
	}

	// ===== Initialize retrieval engine =====
	engine := retrieval.NewClient(retrieval.Config{
		BaseURL: cfg.Retrieval.URL,
		Timeout: cfg.Retrieval.Timeout,
	})
	if err := engine.HealthCheck(ctx); err != nil {
		log.Printf("Warning: retrieval engine health check failed: %v (indexing and queries may not work)", err)
	} else {
		log.Println("Retrieval engine connected")
	}

	// ===== Driven adapters (infrastructure) =====
	authAdapter := auth.NewAdapter(cfg.Auth.JWTSecret)
	store := postgres.NewStore(db)
	keyLookup := postgres.NewAPIKeyLookup(db)
	jobQueue := postgresqueue.NewQueue(db.DB)

	// ===== Distributed Lock (Redis if available, otherwise PostgreSQL advisory locks) =====
	var distributedLock driven.DistributedLock
	var redisPinger http.Pinger
	if redisClient != nil {
		redisLock := redisadapter.NewLock(redisClient)
		distributedLock = redisLock
		redisPinger = redisLock
		log.Println("Using Redis distributed lock")
	} else {
		distributedLock = postgres.NewAdvisoryLock(db)
		log.Println("Using PostgreSQL advisory lock")
	}

	// ===== Metrics =====
	m := metrics.New()

	// Services (core business logic)
	authService := services.NewAuthService(authAdapter)
	folderService := services.NewFolderService(store, engine)
	mcpService := services.NewMcpService(services.McpServiceConfig{
		Store:      store,
		Embeddings: engine,
		Logger:     slog.Default(),
	})
	keyService := services.NewAPIKeyService(store, keyLookup, authAdapter)
	queryService := services.NewQueryService(store, engine)

	// Create janitor for worker mode (if enabled)
	var janitor *worker.Janitor
	if cfg.Janitor.Enabled {
		janitor = worker.NewJanitor(worker.JanitorConfig{
			JobQueue:     jobQueue,
			Lock:         distributedLock,
			Metrics:      m,
			Logger:       slog.Default(),
			Interval:     cfg.Janitor.Interval,
			StaleAfter:   cfg.Janitor.StaleAfter,
			Retention:    cfg.Janitor.Retention,
			LockRequired: cfg.Janitor.LockRequired,
		})
		log.Printf("Janitor enabled (interval=%s, lock_required=%t)", cfg.Janitor.Interval, cfg.Janitor.LockRequired)
	} else {
		log.Println("Janitor disabled via janitor.enabled=false")
	}

	switch mode {
	case "api":
		// API-only mode: HTTP server, no worker
		runAPI(cfg, authService, folderService, mcpService, keyService, queryService, m, db, redisPinger)

	case "worker":
		// Worker-only mode: job processing and queue maintenance, no HTTP server
		runWorkerMode(ctx, cfg, jobQueue, store, engine, janitor, m)

	case "all":
		// Combined mode: Run both API and Worker
		// Start worker in background
		go runWorkerMode(ctx, cfg, jobQueue, store, engine, janitor, m)
		// Run API in foreground (blocks)
		runAPI(cfg, authService, folderService, mcpService, keyService, queryService, m, db, redisPinger)

	case "mcp":
		// MCP mode: stdio server bound to one folder API key
		runMcp(ctx, cfg, keyService, mcpService, queryService)

	default:
		log.Fatalf("Unknown mode: %s (use: api, worker, all, or mcp)", mode)
	}
}

func runAPI(
	cfg *config.Config,
	authService driving.AuthService,
	folderService driving.FolderService,
	mcpService driving.McpService,
	keyService driving.APIKeyService,
	queryService driving.QueryService,
	m *metrics.Metrics,
	db http.Pinger,
	redisPinger http.Pinger,
) {
	serverCfg := http.Config{
		Host:           cfg.Server.Host,
		Port:           cfg.Server.Port,
		Version:        version,
		AllowedOrigins: cfg.Server.AllowedOrigins,
	}

	server := http.NewServer(
		serverCfg,
		authService,
		folderService,
		mcpService,
		keyService,
		queryService,
		m,
		slog.Default(),
		db,
		redisPinger,
	)

	log.Printf("API server starting on :%d", cfg.Server.Port)
	if err := server.Start(); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}

// runWorkerMode starts the worker and, when configured, the janitor.
// It processes embedding jobs from the queue until the context ends.
func runWorkerMode(
	ctx context.Context,
	cfg *config.Config,
	jobQueue driven.JobQueue,
	store driven.Store,
	embeddings driven.EmbeddingService,
	janitor *worker.Janitor,
	m *metrics.Metrics,
) {
	log.Println("Starting worker mode...")

	w := worker.NewWorker(worker.WorkerConfig{
		JobQueue:       jobQueue,
		Store:          store,
		Embeddings:     embeddings,
		Janitor:        janitor,
		Metrics:        m,
		Logger:         slog.Default(),
		Concurrency:    cfg.Worker.Concurrency,
		DequeueTimeout: cfg.Worker.DequeueTimeout,
	})

	if err := w.Start(ctx); err != nil {
		log.Fatalf("Failed to start worker: %v", err)
	}

	log.Println("Worker started, processing jobs...")
	log.Println("Worker handles:")
	log.Println("  - folder_embedding: index a folder's files after enable")
	log.Println("  - folder_reindex: rebuild a folder's embeddings")

	// Wait for context cancellation
	<-ctx.Done()

	// Graceful shutdown
	log.Println("Stopping worker...")
	w.Stop()
	log.Println("Worker stopped")
}

// runMcp serves one folder over stdio. Logs go to stderr so stdout
// stays clean for the protocol.
func runMcp(
	ctx context.Context,
	cfg *config.Config,
	keyService driving.APIKeyService,
	mcpService driving.McpService,
	queryService driving.QueryService,
) {
	server, err := mcp.NewServer(mcp.Config{
		Name:    "nexkb",
		Version: version,
		APIKey:  cfg.Mcp.APIKey,
		Logger:  slog.Default(),
	}, keyService, mcpService, queryService)
	if err != nil {
		log.Fatalf("Failed to create MCP server: %v", err)
	}

	log.Println("MCP server starting on stdio")
	if err := server.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("MCP server error: %v", err)
	}
	log.Println("MCP server stopped")
}
