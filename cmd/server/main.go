package main

import (
	"context"
	"errors"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"drivemirror/internal/auth"
	"drivemirror/internal/config"
	"drivemirror/internal/handler"
	"drivemirror/internal/lock"
	"drivemirror/internal/metrics"
	"drivemirror/internal/middleware"
	"drivemirror/internal/remote/googledrive"
	"drivemirror/internal/repository/postgres"
	postgresDocsys "drivemirror/internal/repository/postgres/docsystem"
	"drivemirror/internal/scheduler"
	serviceDocsys "drivemirror/internal/service/docsystem"
	"drivemirror/internal/service/docsystem/converter"
	"drivemirror/internal/storage"
	"drivemirror/internal/tenants"
	"drivemirror/internal/tracing"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	// Load .env file (ignore error if not exists)
	_ = godotenv.Load()

	cfg := config.Load()

	logLevel := slog.LevelInfo
	if cfg.Environment == "dev" {
		logLevel = slog.LevelDebug
	}

	var logOutput io.Writer = os.Stdout
	if cfg.LogDir != "" {
		logFile, err := config.SetupLogFile(cfg.LogDir, cfg.LogMaxFiles)
		if err != nil {
			log.Fatalf("Failed to set up log file: %v", err)
		}
		defer logFile.Close()
		logOutput = io.MultiWriter(os.Stdout, logFile)
	}

	logger := slog.New(slog.NewJSONHandler(logOutput, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("server starting",
		"environment", cfg.Environment,
		"port", cfg.Port,
		"table_prefix", cfg.TablePrefix,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Init(ctx, "drivemirror", logger)
	if err != nil {
		log.Fatalf("Failed to initialize tracing: %v", err)
	}

	// JWT verifier (dev may run without one; every request is then a local admin)
	var jwtVerifier auth.JWTVerifier
	if cfg.JWKSURL != "" {
		jwtVerifier, err = auth.NewJWTVerifier(cfg.JWKSURL, logger)
		if err != nil {
			log.Fatalf("Failed to create JWT verifier: %v", err)
		}
		defer jwtVerifier.Close()
	} else if cfg.Environment != "dev" {
		log.Fatalf("JWKS_URL is required outside dev")
	} else {
		logger.Warn("DEV MODE: authentication disabled (JWKS_URL not set)")
	}

	// Database
	pool, err := postgres.CreateConnectionPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to create connection pool: %v", err)
	}
	defer pool.Close()

	tables := postgres.NewTableNames(cfg.TablePrefix)
	if err := postgres.Migrate(ctx, pool, tables, logger); err != nil {
		log.Fatalf("Failed to migrate schema: %v", err)
	}

	repoConfig := &postgres.RepositoryConfig{
		Pool:   pool,
		Tables: tables,
		Logger: logger,
	}
	folderRepo := postgresDocsys.NewFolderRepository(repoConfig)
	docRepo := postgresDocsys.NewDocumentRepository(repoConfig)
	assetRepo := postgresDocsys.NewAssetRepository(repoConfig)
	txManager := postgres.NewTransactionManager(pool, logger)

	// Object storage
	var store storage.Storage
	if cfg.MinIO.Enabled() {
		store, err = storage.NewMinIO(cfg.MinIO)
		if err != nil {
			log.Fatalf("Failed to connect object storage: %v", err)
		}
		logger.Info("object storage connected", "endpoint", cfg.MinIO.Endpoint, "bucket", cfg.MinIO.Bucket)
	} else {
		store = storage.NewMemory()
		logger.Warn("MINIO_ENDPOINT not set, storing files in memory")
	}

	// Sync leases
	var locker lock.Locker
	if cfg.RedisURL != "" {
		redisLocker, err := lock.NewRedisLocker(ctx, cfg.RedisURL, "drivemirror:")
		if err != nil {
			log.Fatalf("Failed to connect redis: %v", err)
		}
		defer redisLocker.Close()
		locker = redisLocker
	} else {
		locker = lock.NewMemoryLocker()
		logger.Warn("REDIS_URL not set, sync leases are process-local")
	}

	// Remote drive
	driveClient, err := googledrive.New(ctx, googledrive.Config{
		CredentialsFile:   cfg.GoogleCredentialsFile,
		RequestsPerSecond: cfg.DriveRequestsPerSecond,
		Burst:             cfg.DriveBurst,
		MaxRetries:        cfg.DriveMaxRetries,
	}, logger)
	if err != nil {
		log.Fatalf("Failed to create Drive client: %v", err)
	}

	registry, err := tenants.Load(cfg.TenantsFile)
	if err != nil {
		log.Fatalf("Failed to load tenants: %v", err)
	}

	// Metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	syncMetrics, err := metrics.NewSyncMetrics(reg)
	if err != nil {
		log.Fatalf("Failed to register sync metrics: %v", err)
	}
	httpMetrics, err := middleware.NewHTTPMetrics(reg)
	if err != nil {
		log.Fatalf("Failed to register HTTP metrics: %v", err)
	}

	// Services
	contentAnalyzer := serviceDocsys.NewContentAnalyzer()
	rehoster := serviceDocsys.NewAssetRehoster(driveClient, logger)
	reconciler := serviceDocsys.NewFolderReconciler(folderRepo, docRepo, txManager, logger)
	importer := serviceDocsys.NewFileImporter(
		driveClient,
		docRepo,
		assetRepo,
		txManager,
		store,
		rehoster,
		converter.NewConverterRegistry(),
		contentAnalyzer,
		logger,
	)
	syncService := serviceDocsys.NewSyncService(
		driveClient,
		reconciler,
		importer,
		docRepo,
		locker,
		syncMetrics,
		serviceDocsys.SyncConfig{LockTTL: cfg.SyncLockTTL, RunTimeout: cfg.SyncRunTimeout},
		logger,
	)
	docService := serviceDocsys.NewDocumentService(docRepo, folderRepo, assetRepo, store, logger)
	treeService := serviceDocsys.NewTreeService(folderRepo, docRepo, logger)

	sched, err := scheduler.New(syncService, registry, cfg.SyncRunTimeout, logger)
	if err != nil {
		log.Fatalf("Failed to schedule tenants: %v", err)
	}

	// Handlers
	healthHandler := handler.NewHealthHandler(pool, logger)
	syncHandler := handler.NewSyncHandler(syncService, registry, logger)
	docHandler := handler.NewDocumentHandler(docService, logger)
	treeHandler := handler.NewTreeHandler(treeService, logger)

	logger.Info("services initialized", "tenants", len(registry.All()), "scheduled", sched.Jobs())

	protect := middleware.Auth(jwtVerifier, logger)
	admin := func(h http.HandlerFunc) http.Handler { return protect(h) }

	mux := http.NewServeMux()

	// Public
	mux.HandleFunc("GET /health", healthHandler.HealthCheck)
	mux.Handle("GET /metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	mux.HandleFunc("GET /api/documents/{id}/assets/{filename}", docHandler.GetAsset)

	// Tenant routes
	mux.Handle("POST /api/tenants/{tenant}/sync", admin(syncHandler.Sync))
	mux.Handle("GET /api/tenants/{tenant}/tree", admin(treeHandler.GetTree))
	mux.Handle("POST /api/tenants/{tenant}/documents/link", admin(docHandler.LinkDocument))
	mux.Handle("GET /api/tenants/{tenant}/documents/{id}", admin(docHandler.GetDocument))
	mux.Handle("GET /api/tenants/{tenant}/documents/{id}/file", admin(docHandler.DownloadFile))
	mux.Handle("POST /api/tenants/{tenant}/documents/{id}/reimport", admin(syncHandler.Reimport))

	var handler http.Handler = mux

	handler = httpMetrics.Handler(handler)
	handler = middleware.Recovery(logger)(handler)
	handler = middleware.RequestLogger(logger)(handler)
	handler = otelhttp.NewHandler(handler, "drivemirror",
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + r.URL.Path
		}),
	)

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   strings.Split(cfg.CORSOrigins, ","),
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Origin", "Content-Type", "Accept", "Authorization", middleware.RequestIDHeader},
		ExposedHeaders:   []string{middleware.RequestIDHeader},
		AllowCredentials: true,
	})
	handler = corsHandler.Handler(handler)

	server := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     handler,
		ReadTimeout: 15 * time.Second,
		// Manual syncs answer when the run finishes
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	sched.Start()

	go func() {
		logger.Info("server listening", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown failed", "error", err)
	}
	if err := sched.Stop(shutdownCtx); err != nil {
		logger.Error("scheduler stop timed out", "error", err)
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Error("tracing shutdown failed", "error", err)
	}
}
