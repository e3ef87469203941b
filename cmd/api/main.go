package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"callaudit-platform/internal/audit"
	"callaudit-platform/internal/auth"
	"callaudit-platform/internal/calls"
	"callaudit-platform/internal/config"
	"callaudit-platform/internal/httpapi"
	"callaudit-platform/internal/ingest"
	"callaudit-platform/internal/insights"
	"callaudit-platform/internal/provider"
	"callaudit-platform/internal/queue"
	"callaudit-platform/internal/reporting"
	"callaudit-platform/internal/rubric"
	"callaudit-platform/internal/transcription"
	"callaudit-platform/pkg/logger"
	"callaudit-platform/pkg/utils"

	"github.com/gin-gonic/gin"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
)

func main() {
	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Local development convenience; a missing .env is not an error.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env)
	slog.SetDefault(log)

	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	authManager, err := auth.NewManager(cfg.Auth)
	if err != nil {
		log.Error("auth init failed", "err", err)
		os.Exit(1)
	}

	db, err := utils.OpenPostgres(rootCtx, "pgx", cfg.PostgresDSN(), utils.PostgresPoolConfig{})
	if err != nil {
		log.Error("postgres init failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	rdb, err := utils.OpenRedis(rootCtx, utils.RedisConfig{Addr: cfg.RedisAddr()})
	if err != nil {
		log.Error("redis init failed", "err", err)
		os.Exit(1)
	}
	defer rdb.Close()

	// Repositories
	callRepo := calls.NewPostgresRepo(db)
	templateRepo := rubric.NewPostgresRepo(db)
	reportRepo := audit.NewPostgresRepo(db)
	insightsRepo := insights.NewPostgresRepo(db)

	// Language-model backends
	selector := provider.Selector{PreferLocal: cfg.Provider.PreferLocal}
	if cfg.Provider.LocalBaseURL != "" {
		selector.Local = provider.NewLocalProvider(provider.LocalConfig{
			BaseURL:        cfg.Provider.LocalBaseURL,
			Model:          cfg.Provider.LocalModel,
			ProbeTimeout:   cfg.Provider.ProbeTimeout,
			RequestTimeout: cfg.Provider.RequestTimeout,
		})
	}
	if cfg.Provider.CloudAPIKey != "" {
		selector.Cloud = provider.NewCloudProvider(cfg.Provider.CloudAPIKey, cfg.Provider.CloudModel)
	}
	completion := provider.Options{
		Temperature: cfg.Pipeline.AuditTemperature,
		MaxTokens:   cfg.Pipeline.AuditMaxTokens,
	}

	// Pipeline stages
	transcriber := transcription.NewService(callRepo, transcription.NewHTTPClient(transcription.HTTPClientConfig{
		BaseURL: cfg.Transcription.BaseURL,
		Timeout: cfg.Transcription.Timeout,
	}), cfg.Transcription.MinTranscriptChars)
	auditor := audit.NewService(callRepo, templateRepo, reportRepo, selector, completion)
	analyzer := insights.NewService(callRepo, insightsRepo, selector, completion)

	runner := queue.NewRunner(callRepo, transcriber, auditor, analyzer)
	batch := queue.NewService(callRepo, runner, rdb,
		cfg.Pipeline.DefaultBatchSize, cfg.Pipeline.MaxBatchSize, cfg.Pipeline.ClaimTimeout)
	ingestSvc := ingest.NewService(callRepo, ingest.NewPostgresAgentResolver(db), rdb, runner)

	// Gin router
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))

	h := httpapi.Handlers{
		Auth:      authManager,
		Ingest:    ingestSvc,
		Calls:     callRepo,
		Reports:   reportRepo,
		Batch:     batch,
		Pipeline:  runner,
		Reporting: reporting.NewService(reporting.NewPostgresRepo(db)),
	}
	registerRoutes(r, h, auth.RequireAccessToken(authManager))

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("api listening", "addr", srv.Addr, "env", cfg.App.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "err", err)
	}
}
