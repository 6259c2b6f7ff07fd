package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"doccontrol/api/internal/ai"
	"doccontrol/api/internal/app"
	"doccontrol/api/internal/archive"
	"doccontrol/api/internal/blob"
	"doccontrol/api/internal/config"
	"doccontrol/api/internal/email"
	"doccontrol/api/internal/jobs"
	"doccontrol/api/internal/logger"
	"doccontrol/api/internal/render"
	"doccontrol/api/internal/search"
	"doccontrol/api/internal/store"
)

func main() {
	cfg := config.Load()
	ctx := context.Background()

	log, err := logger.New(cfg.LogMode, cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	db, err := store.Open(ctx, cfg.DatabaseURL, store.PoolOptions{MaxOpenConns: cfg.DBMaxConns})
	if err != nil {
		log.Fatal("database connection failed", "error", err)
	}
	defer db.Close()

	applied, err := store.ApplyMigrations(ctx, db, cfg.MigrationsDir)
	if err != nil {
		log.Fatal("migrations failed", "error", err)
	}
	if len(applied) > 0 {
		log.Info("migrations applied", "files", applied)
	}
	dataStore := store.NewPostgresStore(db)

	gateway := buildGateway(cfg, log)
	blobs := buildBlobStore(ctx, cfg, log)

	var meiliClient *search.Meili
	if strings.TrimSpace(cfg.MeiliURL) != "" {
		meiliClient = search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey, log)
		defer meiliClient.Close()
	}
	searchService := search.NewService(meiliClient, search.NewPgFTS(dataStore), log)

	mailer := email.NewService(email.Config{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
		FromName: cfg.SMTPFromName,
	}, log)
	if !mailer.IsConfigured() {
		log.Info("smtp not configured, notifications are logged only")
	}

	if err := os.MkdirAll(cfg.ArchiveDir, 0o755); err != nil {
		log.Fatal("failed to create archive dir", "dir", cfg.ArchiveDir, "error", err)
	}

	service := app.New(app.Deps{
		Store:    dataStore,
		AI:       gateway,
		Blobs:    blobs,
		Renderer: render.NewService(blobs, render.ToolConverter{}, cfg.CompanyName, log),
		Archive:  archive.New(cfg.ArchiveDir),
		Search:   searchService,
		Notifier: mailer,
		Log:      log,
	})

	runner := jobs.NewRunner(jobs.Config{
		Workers:   cfg.AnalysisWorkers,
		QueueSize: cfg.AnalysisQueueSize,
		Timeout:   cfg.AnalysisTimeout,
	}, log)
	if err := runner.Register(service.AnalysisHandler()); err != nil {
		log.Fatal("register analysis handler", "error", err)
	}
	service.SetJobs(runner)
	runner.Start()

	go searchService.ReindexAllFromPG(context.Background())

	httpServer := app.NewHTTPServer(service, cfg.CORSOrigin, log)
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      120 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("document control API listening", "addr", cfg.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server failed", "error", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown error", "error", err)
	}
	if err := runner.Stop(shutdownCtx); err != nil {
		log.Error("job runner shutdown error", "error", err)
	}
}

// buildGateway answers every agent call with the live model when an API key
// is set, falling back to the mock. Live answers are cached in Redis when
// REDIS_URL is configured.
func buildGateway(cfg config.Config, log *logger.Logger) ai.Gateway {
	var primary ai.Gateway
	if strings.TrimSpace(cfg.OpenAIAPIKey) != "" {
		live, err := ai.NewOpenAI(ai.OpenAIConfig{
			APIKey:  cfg.OpenAIAPIKey,
			BaseURL: cfg.OpenAIBaseURL,
			Model:   cfg.OpenAIModel,
		}, log)
		if err != nil {
			log.Warn("openai gateway disabled", "error", err)
		} else {
			primary = live
		}
	} else {
		log.Info("OPENAI_API_KEY not set, using mock agents")
	}

	var gateway ai.Gateway = ai.NewFallback(primary, ai.NewMock(), cfg.AITimeout, log)
	if strings.TrimSpace(cfg.RedisURL) == "" {
		return gateway
	}
	client, err := ai.OpenRedis(cfg.RedisURL)
	if err != nil {
		log.Warn("redis unavailable, ai cache disabled", "error", err)
		return gateway
	}
	return ai.NewCache(gateway, client, cfg.AICacheTTL, log)
}

func buildBlobStore(ctx context.Context, cfg config.Config, log *logger.Logger) blob.Store {
	if strings.TrimSpace(cfg.MinioEndpoint) != "" {
		minioStore, err := blob.NewMinioStore(ctx, blob.MinioConfig{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Bucket:    cfg.MinioBucket,
			UseSSL:    cfg.MinioUseSSL,
		})
		if err == nil {
			log.Info("using minio object storage", "endpoint", cfg.MinioEndpoint, "bucket", cfg.MinioBucket)
			return minioStore
		}
		log.Warn("minio unavailable, falling back to local storage", "error", err)
	}
	local, err := blob.NewLocalStore(cfg.StorageDir)
	if err != nil {
		log.Fatal("failed to create storage dir", "dir", cfg.StorageDir, "error", err)
	}
	return local
}
