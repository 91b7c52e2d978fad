package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/datapulse/insight-engine/internal/api"
	"github.com/datapulse/insight-engine/internal/api/handlers"
	"github.com/datapulse/insight-engine/internal/config"
	"github.com/datapulse/insight-engine/internal/database"
	"github.com/datapulse/insight-engine/internal/engine"
	"github.com/datapulse/insight-engine/internal/logging"
	"github.com/datapulse/insight-engine/internal/middleware"
	"github.com/datapulse/insight-engine/internal/monitor"
	"github.com/datapulse/insight-engine/internal/notify"
	"github.com/datapulse/insight-engine/internal/store"
	"github.com/datapulse/insight-engine/internal/telemetry"
)

const runHistorySize = 64

func main() {
	// A missing .env is fine in deployed environments
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := logging.NewLogger(cfg.LogLevel, cfg.Environment)

	shutdownTelemetry, err := telemetry.Init(context.Background(), cfg.Telemetry, cfg.Environment)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize telemetry")
	}

	db, err := database.NewPostgresConnection(cfg.Database)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to database")
	}
	defer db.Close()

	redis, err := database.NewRedisConnection(cfg.Redis)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to Redis")
	}
	defer redis.Close()

	resources := monitor.NewResourceMonitor(logger)
	if cfg.Insights.MaxWorkers == 0 {
		cfg.Insights.MaxWorkers = resources.OptimalWorkers()
		logger.WithField("max_workers", cfg.Insights.MaxWorkers).Info("Sized detector worker pool from host resources")
	}

	seriesStore := store.NewCachedSeriesStore(
		store.NewPostgresSeriesStore(db.Pool, logger),
		redis.Client,
		cfg.Redis.CacheTTLDuration(),
		logger,
	)

	eng, err := engine.NewEngine(cfg.Insights, seriesStore, logger)
	if err != nil {
		logger.WithError(err).Fatal("Invalid insight configuration")
	}

	notifier, err := notify.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize Telegram notifier")
	}

	runs := handlers.NewRunStore(runHistorySize)
	auth := middleware.NewAuthMiddleware(cfg.Security.JWTSecret, cfg.Security.APIKeyHash)

	if cfg.Environment != "development" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(telemetry.ServiceName))

	api.SetupRoutes(router, api.Handlers{
		Health:  handlers.NewHealthHandler(db, redis, resources),
		Insight: handlers.NewInsightHandler(eng, runs, notifier, logger),
		Story:   handlers.NewStoryHandler(runs, logger),
	}, auth)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.WithField("port", cfg.Server.Port).Info("Server starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.WithError(err).Error("Server forced to shutdown")
	}
	if err := shutdownTelemetry(ctx); err != nil {
		logger.WithError(err).Warn("Telemetry shutdown failed")
	}

	logger.Info("Server exited")
}
