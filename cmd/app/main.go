package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"

	"repo-freeze-service/internal/config"
	"repo-freeze-service/internal/database"
	"repo-freeze-service/internal/github"
	"repo-freeze-service/internal/handler"
	"repo-freeze-service/internal/permission"
	"repo-freeze-service/internal/repository"
	"repo-freeze-service/internal/usecase"
)

func main() {
	// Logger
	logger := logrus.New()
	logger.SetLevel(logrus.InfoLevel)
	logger.SetFormatter(&logrus.JSONFormatter{})

	// Config
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Warnf(".env not found: %v", err)
	}

	// Database (database/sql over pgx)
	db, err := database.NewPostgresDB(cfg)
	if err != nil {
		logger.Fatalf("Database connection failed: %v", err)
	}
	defer db.Close()
	logger.Info("Database connected")

	// Permissions snapshot
	permissions, err := config.LoadPermissions(cfg.PermissionsPath)
	if err != nil {
		logger.Fatalf("Failed to load permissions: %v", err)
	}
	resolver := permission.NewResolver(permissions)

	// GitHub client
	platform, err := github.NewClient(cfg.GitHubToken, cfg.GitHubBaseURL, logger)
	if err != nil {
		logger.Fatalf("Failed to create GitHub client: %v", err)
	}

	// Repositories
	freezeRepo := repository.NewFreezeRepository(db)
	unlockRepo := repository.NewUnlockRepository(db)

	// Use cases
	reconciler := usecase.NewReconciler(freezeRepo, unlockRepo, platform, logger)
	manager := usecase.NewFreezeManager(freezeRepo, unlockRepo, platform, reconciler, logger)
	executor := usecase.NewExecutor(manager, resolver, platform, logger)

	// Echo + handlers
	e := echo.New()
	e.Use(middleware.Recover())
	e.Use(handler.LoggingMiddleware(logger))

	webhook := handler.NewWebhookHandler(executor, reconciler, platform, cfg.WebhookSecret, logger)
	handler.RegisterRoutes(e, webhook)

	// Scheduler loop: expire and promote freezes, then re-sync every
	// repository that still carries an active freeze.
	tickInterval, err := time.ParseDuration(cfg.TickInterval)
	if err != nil {
		logger.Warnf("Invalid TICK_INTERVAL %q, using 60s", cfg.TickInterval)
		tickInterval = time.Minute
	}
	schedulerCtx, stopScheduler := context.WithCancel(context.Background())
	go runScheduler(schedulerCtx, manager, reconciler, tickInterval, logger)

	// Start server
	go func() {
		if err := e.Start(":" + cfg.ServerPort); err != nil {
			logger.Infof("Server stopped: %v", err)
		}
	}()

	// Graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	logger.Info("Shutting down...")
	stopScheduler()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(ctx); err != nil {
		logger.Fatalf("Shutdown failed: %v", err)
	}

	logger.Info("Server exited")
}

func runScheduler(ctx context.Context, manager *usecase.FreezeManager, reconciler *usecase.Reconciler, interval time.Duration, logger *logrus.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("Scheduler stopped")
			return
		case <-ticker.C:
			report, err := manager.Tick(ctx)
			if err != nil {
				logger.WithError(err).Error("Scheduler tick failed")
				continue
			}
			if report.Promoted > 0 || report.Expired > 0 || len(report.Conflicts) > 0 {
				logger.WithFields(logrus.Fields{
					"promoted":  report.Promoted,
					"expired":   report.Expired,
					"conflicts": report.Conflicts,
				}).Info("Scheduler tick applied transitions")
			}
			reconciler.ReconcileAllActive(ctx)
		}
	}
}
