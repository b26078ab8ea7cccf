package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/unipulse/unipulse/internal/access"
	"github.com/unipulse/unipulse/internal/app"
	"github.com/unipulse/unipulse/internal/audit"
	"github.com/unipulse/unipulse/internal/auth"
	"github.com/unipulse/unipulse/internal/directory"
	"github.com/unipulse/unipulse/internal/platform/cache"
	"github.com/unipulse/unipulse/internal/platform/db"
	"github.com/unipulse/unipulse/internal/scope"
	"github.com/unipulse/unipulse/internal/shared"
	"github.com/unipulse/unipulse/internal/survey"
	"github.com/unipulse/unipulse/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN, cfg.PGMaxConns)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	sessionManager := shared.NewSessionManager(redisClient, "unipulse_session", cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())

	scopeRepo := scope.NewRepository(pool)
	resolver := scope.NewResolver(logger)

	authRepo := auth.NewRepository(pool)
	authService := auth.NewService(authRepo)
	authHandler := auth.NewHandler(logger, authService, sessionManager)

	recorder := audit.NewRecorder(pool)

	accessRepo := access.NewRepository(pool)
	descriptors, err := accessRepo.ListDescriptors(ctx)
	if err != nil {
		logger.Error("load resource descriptors", slog.Any("error", err))
		os.Exit(1)
	}
	registry := access.NewRegistry(descriptors, accessRepo, recorder, logger)
	accessService := access.NewService(accessRepo, registry, logger)
	accessHandler := access.NewHandler(logger, registry, accessService)

	surveyRepo := survey.NewRepository(pool)
	surveyService := survey.NewService(surveyRepo, recorder, logger)
	surveyHandler := survey.NewHandler(logger, surveyService)

	auditRepo := audit.NewRepository(pool)
	auditService := audit.NewService(auditRepo)
	auditHandler := audit.NewHandler(logger, auditService)

	directoryRepo := directory.NewRepository(pool)
	directoryService := directory.NewService(directoryRepo, logger)
	if _, err := directoryService.Reload(ctx); err != nil {
		logger.Warn("preload directory", slog.Any("error", err))
	}
	directoryHandler := directory.NewHandler(logger, directoryService)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		SessionManager:   sessionManager,
		ScopeSource:      scopeRepo,
		Resolver:         resolver,
		AuthHandler:      authHandler,
		AccessHandler:    accessHandler,
		SurveyHandler:    surveyHandler,
		AuditHandler:     auditHandler,
		DirectoryHandler: directoryHandler,
		JobHandler:       jobHandler,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
